package approval

import (
	"context"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"github.com/fastresult/results-core/internal/domain/shared"
	"golang.org/x/crypto/blake2b"
)

// Outcome - итог попытки перехода.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// AuditEntry - запись журнала утверждения. Только добавляется, никогда не меняется.
//
// Записи одного результата связаны цепочкой хешей: Hash = BLAKE2b-256(PrevHash || запись).
// Подмена или удаление записи ломает цепочку и обнаруживается VerifyChain.
type AuditEntry struct {
	ID         string
	Seq        int64 // порядковый номер внутри журнала результата, с 1
	ResultID   string
	ActorID    string
	Action     Action
	FromStatus string
	ToStatus   string
	Outcome    Outcome
	Error      string
	Notes      string
	OccurredAt time.Time
	PrevHash   string
	Hash       string
}

// NewAuditEntry создаёт запись об успешной попытке; Fail переводит её в неудачу.
func NewAuditEntry(id, resultID, actorID string, action Action, from, to, notes string, at time.Time) *AuditEntry {
	return &AuditEntry{
		ID:         id,
		ResultID:   resultID,
		ActorID:    actorID,
		Action:     action,
		FromStatus: from,
		ToStatus:   to,
		Outcome:    OutcomeSuccess,
		Notes:      notes,
		OccurredAt: at.UTC().Truncate(time.Microsecond), // точность timestamptz
	}
}

// Fail отмечает попытку как неудачную с текстом ошибки.
func (e *AuditEntry) Fail(err error) *AuditEntry {
	e.Outcome = OutcomeFailure
	if err != nil {
		e.Error = err.Error()
	}
	return e
}

// IsFailure возвращает true для неудачной попытки.
func (e *AuditEntry) IsFailure() bool {
	return e.Outcome == OutcomeFailure
}

// ══════════════════════════════════════════════════════════════════════════════
// SINKS
// ══════════════════════════════════════════════════════════════════════════════

// AuditSink принимает записи журнала.
// Ошибка записи для успешного перехода отменяет коммит перехода.
type AuditSink interface {
	Record(ctx context.Context, entry *AuditEntry) error
}

// AuditLog - журнал с чтением.
type AuditLog interface {
	AuditSink

	// ListByResult возвращает записи результата в порядке Seq.
	ListByResult(ctx context.Context, resultID string) ([]*AuditEntry, error)
}

// ══════════════════════════════════════════════════════════════════════════════
// HASH CHAIN
// ══════════════════════════════════════════════════════════════════════════════

const fieldSep = "\x1f"

// Seal привязывает запись к предыдущей записи того же результата.
// prev == nil для первой записи.
func Seal(entry *AuditEntry, prev *AuditEntry) {
	entry.Seq = 1
	entry.PrevHash = ""
	if prev != nil {
		entry.Seq = prev.Seq + 1
		entry.PrevHash = prev.Hash
	}
	entry.Hash = ChainHash(entry)
}

// ChainHash вычисляет хеш записи вместе с хешем предыдущей.
func ChainHash(e *AuditEntry) string {
	canonical := strings.Join([]string{
		e.PrevHash,
		strconv.FormatInt(e.Seq, 10),
		e.ID,
		e.ResultID,
		e.ActorID,
		string(e.Action),
		e.FromStatus,
		e.ToStatus,
		string(e.Outcome),
		e.Error,
		e.Notes,
		e.OccurredAt.UTC().Format(time.RFC3339Nano),
	}, fieldSep)

	sum := blake2b.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])
}

// VerifyChain проверяет цепочку записей одного результата, упорядоченных по Seq.
func VerifyChain(entries []*AuditEntry) error {
	prevHash := ""
	for i, e := range entries {
		if e.Seq != int64(i+1) {
			return shared.WrapError("audit", "Verify", shared.ErrIntegrity,
				"sequence gap at entry "+e.ID, shared.ErrAuditChainBroken)
		}
		if e.PrevHash != prevHash || ChainHash(e) != e.Hash {
			return shared.WrapError("audit", "Verify", shared.ErrIntegrity,
				"hash mismatch at entry "+e.ID, shared.ErrAuditChainBroken)
		}
		prevHash = e.Hash
	}
	return nil
}
