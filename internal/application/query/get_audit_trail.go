package query

import (
	"context"
	"fmt"
	"time"

	"github.com/fastresult/results-core/internal/domain/approval"
	"github.com/fastresult/results-core/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET AUDIT TRAIL QUERY
// Журнал утверждения результата с проверкой цепочки хешей.
// ══════════════════════════════════════════════════════════════════════════════

// GetAuditTrailQuery содержит параметры запроса.
type GetAuditTrailQuery struct {
	ResultID string
}

// Validate проверяет корректность параметров запроса.
func (q GetAuditTrailQuery) Validate() error {
	return shared.RequireID("result id", q.ResultID)
}

// AuditEntryDTO - запись журнала.
type AuditEntryDTO struct {
	Seq        int64     `json:"seq"`
	ActorID    string    `json:"actor_id"`
	Action     string    `json:"action"`
	FromStatus string    `json:"from_status,omitempty"`
	ToStatus   string    `json:"to_status,omitempty"`
	Outcome    string    `json:"outcome"`
	Error      string    `json:"error,omitempty"`
	Notes      string    `json:"notes,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
	Hash       string    `json:"hash"`
}

// AuditTrailDTO - журнал результата.
type AuditTrailDTO struct {
	ResultID string          `json:"result_id"`
	Entries  []AuditEntryDTO `json:"entries"`

	// Verified - цепочка хешей цела. Иначе VerifyError объясняет, где она рвётся.
	Verified    bool   `json:"verified"`
	VerifyError string `json:"verify_error,omitempty"`
}

// GetAuditTrailHandler обрабатывает запрос.
type GetAuditTrailHandler struct {
	tx approval.Transactor
}

// NewGetAuditTrailHandler создаёт обработчик.
func NewGetAuditTrailHandler(tx approval.Transactor) *GetAuditTrailHandler {
	return &GetAuditTrailHandler{tx: tx}
}

// Handle выполняет запрос. Пустой журнал - не ошибка.
func (h *GetAuditTrailHandler) Handle(ctx context.Context, q GetAuditTrailQuery) (*AuditTrailDTO, error) {
	entries, err := h.load(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("get_audit_trail: %w", err)
	}

	dto := &AuditTrailDTO{
		ResultID: q.ResultID,
		Entries:  make([]AuditEntryDTO, 0, len(entries)),
		Verified: true,
	}
	for _, e := range entries {
		dto.Entries = append(dto.Entries, AuditEntryDTO{
			Seq:        e.Seq,
			ActorID:    e.ActorID,
			Action:     e.Action.String(),
			FromStatus: e.FromStatus,
			ToStatus:   e.ToStatus,
			Outcome:    string(e.Outcome),
			Error:      e.Error,
			Notes:      e.Notes,
			OccurredAt: e.OccurredAt,
			Hash:       e.Hash,
		})
	}
	if err := approval.VerifyChain(entries); err != nil {
		dto.Verified = false
		dto.VerifyError = err.Error()
	}
	return dto, nil
}

// VerifyAuditChain проверяет цепочку хешей результата.
// Возвращает ErrAuditChainBroken, если запись изменена, удалена или переставлена.
func (h *GetAuditTrailHandler) VerifyAuditChain(ctx context.Context, q GetAuditTrailQuery) error {
	entries, err := h.load(ctx, q)
	if err != nil {
		return fmt.Errorf("verify_audit_chain: %w", err)
	}
	return approval.VerifyChain(entries)
}

func (h *GetAuditTrailHandler) load(ctx context.Context, q GetAuditTrailQuery) ([]*approval.AuditEntry, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	var entries []*approval.AuditEntry
	err := h.tx.InReadTx(ctx, func(ctx context.Context, uow approval.UnitOfWork) error {
		var err error
		entries, err = uow.Audit().ListByResult(ctx, q.ResultID)
		return err
	})
	return entries, err
}
