// Package command contains write operations (CQRS - Commands).
// Every command runs in one transaction, checks rights through the RoleGate
// and leaves an audit entry whether it succeeds or fails.
package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/fastresult/results-core/internal/domain/approval"
	"github.com/fastresult/results-core/internal/domain/grading"
	"github.com/fastresult/results-core/internal/domain/result"
	"github.com/fastresult/results-core/internal/domain/shared"
	"github.com/fastresult/results-core/pkg/retry"
	"github.com/google/uuid"
)

// ══════════════════════════════════════════════════════════════════════════════
// ENGINE
// The approval engine: the only writer of result status, grades and GPA
// aggregates.
// ══════════════════════════════════════════════════════════════════════════════

// EngineConfig contains configuration for the engine.
type EngineConfig struct {
	// BulkBatchSize is how many results one bulk transaction handles.
	BulkBatchSize int

	// MaxConflictRetries is how many times a transaction is re-run after a
	// lock timeout or serialization failure.
	MaxConflictRetries int
}

// DefaultEngineConfig returns default configuration.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		BulkBatchSize:      50,
		MaxConflictRetries: 3,
	}
}

// Engine handles result commands.
type Engine struct {
	tx        approval.Transactor
	gate      approval.RoleGate
	scales    grading.ScaleLookup
	catalog   result.CourseCatalog
	publisher shared.EventPublisher
	logger    *slog.Logger
	retrier   *retry.Retrier

	batchSize int
	now       func() time.Time
	newID     func() string
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithIDGenerator replaces the ID generator for results, components and audit entries.
func WithIDGenerator(newID func() string) Option {
	return func(e *Engine) {
		if newID != nil {
			e.newID = newID
		}
	}
}

// NewEngine creates a new Engine.
func NewEngine(
	tx approval.Transactor,
	gate approval.RoleGate,
	scales grading.ScaleLookup,
	catalog result.CourseCatalog,
	publisher shared.EventPublisher,
	config EngineConfig,
	opts ...Option,
) *Engine {
	defaults := DefaultEngineConfig()
	if config.BulkBatchSize <= 0 {
		config.BulkBatchSize = defaults.BulkBatchSize
	}
	if config.MaxConflictRetries <= 0 {
		config.MaxConflictRetries = defaults.MaxConflictRetries
	}
	if publisher == nil {
		publisher = shared.NopPublisher{}
	}

	e := &Engine{
		tx:        tx,
		gate:      gate,
		scales:    scales,
		catalog:   catalog,
		publisher: publisher,
		logger:    slog.Default(),
		batchSize: config.BulkBatchSize,
		now:       func() time.Time { return time.Now().UTC() },
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}

	// The first attempt plus MaxConflictRetries re-runs.
	e.retrier = retry.TransactionRetrier(config.MaxConflictRetries+1, shared.IsRetryable)
	return e
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// inTx runs fn in a transaction and re-runs the whole transaction on a
// concurrency conflict. fn must reset anything it accumulates.
func (e *Engine) inTx(ctx context.Context, fn func(ctx context.Context, uow approval.UnitOfWork) error) error {
	return e.retrier.Do(ctx, func(ctx context.Context) error {
		return e.tx.InTx(ctx, fn)
	})
}

func (e *Engine) store(uow approval.UnitOfWork) *result.Store {
	return result.NewStore(uow.Results(),
		result.WithClock(e.now),
		result.WithIDGenerator(e.newID),
	)
}

// authorize asks the RoleGate and turns a denial into ErrActorForbidden.
func (e *Engine) authorize(ctx context.Context, actorID string, action approval.Action, kind approval.ScopeKind, course *result.Course) error {
	scope, err := scopeFor(kind, course)
	if err != nil {
		return err
	}
	ok, err := e.gate.Authorize(ctx, actorID, action, scope)
	if err != nil {
		return fmt.Errorf("role gate: %w", err)
	}
	if !ok {
		return fmt.Errorf("actor %s may not %s on %s: %w", actorID, action, scope, shared.ErrActorForbidden)
	}
	return nil
}

// scopeFor picks the scope the rights check runs against.
func scopeFor(kind approval.ScopeKind, course *result.Course) (approval.ScopeKey, error) {
	var id string
	switch kind {
	case approval.ScopeCourse:
		id = course.ID
	case approval.ScopeDepartment:
		id = course.DepartmentID
	case approval.ScopeFaculty:
		id = course.FacultyID
	case approval.ScopeUniversity:
		id = course.UniversityID
	}
	if id == "" {
		return approval.ScopeKey{}, fmt.Errorf("course %s has no %s: %w", course.ID, kind, shared.ErrConfiguration)
	}
	return approval.ScopeKey{Kind: kind, ID: id}, nil
}

// recordFailure writes the audit entry for a failed attempt in its own
// transaction so it survives the rollback of the attempt. A failure here is
// logged; the caller still gets the original error. Chains are keyed by
// result id, so an attempt with a blank id has nowhere to be recorded.
func (e *Engine) recordFailure(ctx context.Context, entry *approval.AuditEntry, cause error) {
	if entry == nil || strings.TrimSpace(entry.ResultID) == "" {
		return
	}
	entry.Fail(cause)

	err := e.tx.InTx(context.WithoutCancel(ctx), func(ctx context.Context, uow approval.UnitOfWork) error {
		return uow.Audit().Record(ctx, entry)
	})
	if err != nil {
		e.logger.Error("failed to record audit entry for failed attempt",
			"result_id", entry.ResultID,
			"action", entry.Action,
			"cause", cause,
			"error", err,
		)
	}
}

// publish sends events after commit. Delivery failures never undo a commit.
func (e *Engine) publish(events []shared.Event) {
	for _, event := range events {
		if err := e.publisher.Publish(event); err != nil {
			e.logger.Warn("failed to publish event",
				"event_type", event.EventType(),
				"aggregate_id", event.AggregateID(),
				"error", err,
			)
		}
	}
}

func withCorrelation(events []shared.Event, correlationID string) []shared.Event {
	if correlationID == "" {
		return events
	}
	out := make([]shared.Event, 0, len(events))
	for _, ev := range events {
		switch v := ev.(type) {
		case shared.ResultTransitionedEvent:
			v.BaseEvent = v.BaseEvent.WithCorrelationID(correlationID)
			out = append(out, v)
		case shared.ResultDraftCreatedEvent:
			v.BaseEvent = v.BaseEvent.WithCorrelationID(correlationID)
			out = append(out, v)
		case shared.ResultComponentStoredEvent:
			v.BaseEvent = v.BaseEvent.WithCorrelationID(correlationID)
			out = append(out, v)
		case shared.AggregatesRecomputedEvent:
			v.BaseEvent = v.BaseEvent.WithCorrelationID(correlationID)
			out = append(out, v)
		default:
			out = append(out, ev)
		}
	}
	return out
}

// isAttemptFailure reports whether err comes from the request itself and
// not from a cancelled caller.
func isAttemptFailure(err error) bool {
	return err != nil && !errors.Is(err, context.Canceled)
}
