package memory

import (
	"context"
	"errors"

	"github.com/fastresult/results-core/internal/domain/approval"
)

type auditLog struct {
	db *DB
}

// Record seals the entry onto the result's chain and appends it.
func (l *auditLog) Record(ctx context.Context, entry *approval.AuditEntry) error {
	if entry == nil {
		return errors.New("audit entry is nil")
	}
	if l.db.failAudit != nil {
		if err := l.db.failAudit(entry); err != nil {
			return err
		}
	}

	chain := l.db.data.audit[entry.ResultID]
	var prev *approval.AuditEntry
	if len(chain) > 0 {
		prev = chain[len(chain)-1]
	}
	approval.Seal(entry, prev)

	cp := *entry
	l.db.data.audit[entry.ResultID] = append(chain, &cp)
	return nil
}

func (l *auditLog) ListByResult(ctx context.Context, resultID string) ([]*approval.AuditEntry, error) {
	chain := l.db.data.audit[resultID]
	out := make([]*approval.AuditEntry, 0, len(chain))
	for _, e := range chain {
		cp := *e
		out = append(out, &cp)
	}
	return out, nil
}

// FailAuditWhen installs a hook consulted before every audit write; a non-nil
// error from it fails the write. Pass nil to remove the hook. Used to exercise
// commit aborts when the audit sink is unavailable.
func (db *DB) FailAuditWhen(hook func(entry *approval.AuditEntry) error) {
	db.sem <- struct{}{}
	db.failAudit = hook
	<-db.sem
}

var _ approval.AuditLog = (*auditLog)(nil)
