// Package eventhandler содержит обработчики доменных событий.
// Обработчики получают события только после коммита транзакции и
// отвечают за побочные эффекты: сброс кэша, оповещения.
// Потеря события не портит данные: источник истины - база.
package eventhandler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/fastresult/results-core/internal/domain/result"
	"github.com/fastresult/results-core/internal/domain/shared"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON AGGREGATES RECOMPUTED HANDLER
// Сбрасывает закэшированные GPA/CGPA студента, когда агрегаты пересчитаны
// или результат покинул (или занял) учитываемый статус.
// ═══════════════════════════════════════════════════════════════════════════

// CacheInvalidator сбрасывает кэш агрегатов студента.
type CacheInvalidator interface {
	InvalidateStudent(ctx context.Context, studentID string) error
}

// OnAggregatesRecomputedHandler сбрасывает кэш агрегатов.
type OnAggregatesRecomputedHandler struct {
	cache   CacheInvalidator
	logger  *slog.Logger
	timeout time.Duration
}

// NewOnAggregatesRecomputedHandler создаёт обработчик.
func NewOnAggregatesRecomputedHandler(cache CacheInvalidator, logger *slog.Logger) *OnAggregatesRecomputedHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &OnAggregatesRecomputedHandler{
		cache:   cache,
		logger:  logger.With("handler", "on_aggregates_recomputed"),
		timeout: 5 * time.Second,
	}
}

// HandleRecomputed обрабатывает AggregatesRecomputed.
// Реализует shared.EventHandler. ID агрегата события - ID студента.
func (h *OnAggregatesRecomputedHandler) HandleRecomputed(event shared.Event) error {
	if event.EventType() != shared.EventAggregatesRecomputed {
		h.logger.Warn("unexpected event", "event_type", event.EventType())
		return nil
	}
	return h.invalidate(event.AggregateID())
}

// HandleTransitioned обрабатывает ResultTransitioned.
// Пересчёт публикует собственное событие, но только если агрегаты
// изменились; переход в учитываемый статус или из него сбрасывает кэш всегда.
func (h *OnAggregatesRecomputedHandler) HandleTransitioned(event shared.Event) error {
	if event.EventType() != shared.EventResultTransitioned {
		h.logger.Warn("unexpected event", "event_type", event.EventType())
		return nil
	}

	payload := event.Payload()
	from, _ := payload["from"].(string)
	to, _ := payload["to"].(string)
	if !result.Status(from).CountsForGPA() && !result.Status(to).CountsForGPA() {
		return nil
	}

	studentID, _ := payload["student_id"].(string)
	if studentID == "" {
		h.logger.Warn("transition event without student id", "result_id", event.AggregateID())
		return nil
	}
	return h.invalidate(studentID)
}

func (h *OnAggregatesRecomputedHandler) invalidate(studentID string) error {
	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	if err := h.cache.InvalidateStudent(ctx, studentID); err != nil {
		return fmt.Errorf("invalidate aggregates of %s: %w", studentID, err)
	}
	h.logger.Debug("aggregate cache invalidated", "student_id", studentID)
	return nil
}
