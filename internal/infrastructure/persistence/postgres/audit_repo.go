package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/fastresult/results-core/internal/domain/approval"
	"github.com/fastresult/results-core/internal/domain/shared"
)

// auditLog implements approval.AuditLog on the append-only audit_entries table.
type auditLog struct {
	q Querier
}

const auditColumns = `id, seq, result_id, actor_id, action, from_status, to_status, outcome,
	error, notes, occurred_at, prev_hash, hash`

// auditLockClass is the classid of the two-key advisory locks that serialize
// audit writers of one result. The two-key space never overlaps the
// single-key student locks taken by LockStudent.
const auditLockClass = 2

const constraintAuditSeq = "uq_audit_seq"

// Record seals the entry onto the result's chain and inserts it.
//
// Failed attempts are audited in their own transaction without the result's
// row lock, so every writer takes the chain lock before reading the head.
// A seq collision that still slips through is reported as a lock timeout
// and the caller's retrier re-runs the transaction.
func (l *auditLog) Record(ctx context.Context, entry *approval.AuditEntry) error {
	if entry == nil {
		return errors.New("audit entry is nil")
	}

	if _, err := l.q.Exec(ctx, `SELECT pg_advisory_xact_lock($1::int4, hashtext($2))`, auditLockClass, entry.ResultID); err != nil {
		return fmt.Errorf("lock audit chain: %w", mapError(err))
	}

	prev, err := scanAudit(l.q.QueryRow(ctx, `
		SELECT `+auditColumns+` FROM audit_entries
		WHERE result_id = $1
		ORDER BY seq DESC
		LIMIT 1
	`, entry.ResultID))
	switch {
	case IsNoRows(err):
		prev = nil
	case err != nil:
		return fmt.Errorf("load audit head: %w", mapError(err))
	}
	approval.Seal(entry, prev)

	_, err = l.q.Exec(ctx, `
		INSERT INTO audit_entries (`+auditColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, entry.ID, entry.Seq, entry.ResultID, entry.ActorID, string(entry.Action), entry.FromStatus, entry.ToStatus,
		string(entry.Outcome), entry.Error, entry.Notes, entry.OccurredAt, entry.PrevHash, entry.Hash)
	if isConstraintViolation(err, constraintAuditSeq) {
		return fmt.Errorf("insert audit entry: %v: %w", err, shared.ErrLockTimeout)
	}
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", mapError(err))
	}
	return nil
}

func (l *auditLog) ListByResult(ctx context.Context, resultID string) ([]*approval.AuditEntry, error) {
	rows, err := l.q.Query(ctx, `
		SELECT `+auditColumns+` FROM audit_entries
		WHERE result_id = $1
		ORDER BY seq
	`, resultID)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", mapError(err))
	}
	defer rows.Close()

	out := []*approval.AuditEntry{}
	for rows.Next() {
		e, err := scanAudit(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAudit(row rowScanner) (*approval.AuditEntry, error) {
	var (
		e               approval.AuditEntry
		action, outcome string
	)
	err := row.Scan(&e.ID, &e.Seq, &e.ResultID, &e.ActorID, &action, &e.FromStatus, &e.ToStatus, &outcome,
		&e.Error, &e.Notes, &e.OccurredAt, &e.PrevHash, &e.Hash)
	if err != nil {
		return nil, err
	}
	e.Action = approval.Action(action)
	e.Outcome = approval.Outcome(outcome)
	e.OccurredAt = e.OccurredAt.UTC()
	return &e, nil
}

var _ approval.AuditLog = (*auditLog)(nil)
