package command

import (
	"context"
	"errors"
	"fmt"

	"github.com/fastresult/results-core/internal/domain/approval"
	"github.com/fastresult/results-core/internal/domain/result"
	"github.com/fastresult/results-core/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// BULK ADVANCE COMMAND
// Applies one transition to many results. Items succeed or fail on their own;
// the batch is never all-or-nothing.
// ══════════════════════════════════════════════════════════════════════════════

// BulkAdvanceCommand requests the same transition for many results.
type BulkAdvanceCommand struct {
	ResultIDs     []string
	ActorID       string
	TargetStatus  result.Status
	Notes         string
	CorrelationID string
}

// Validate validates the command.
func (c BulkAdvanceCommand) Validate() error {
	if len(c.ResultIDs) == 0 {
		return fmt.Errorf("result ids: %w", shared.ErrEmptyValue)
	}
	if err := shared.RequireID("actor id", c.ActorID); err != nil {
		return err
	}
	if _, err := approval.RuleFor(c.TargetStatus); err != nil {
		return err
	}
	return nil
}

// ItemOutcome is the outcome for one result of a bulk request.
type ItemOutcome struct {
	ResultID string
	Success  bool
	NoOp     bool
	From     result.Status
	To       result.Status

	// Err and Category are set on failure.
	Err      error
	Category string
}

// BulkOutcome lists per-item outcomes in request order.
type BulkOutcome struct {
	Items     []ItemOutcome
	Succeeded int
	Failed    int
}

// BulkAdvance applies the single-result rule to every id. Ids are processed in
// batches; each batch is one transaction and each item runs in its own
// savepoint, so a failing item leaves its neighbours untouched. Duplicate ids
// are processed once and reported for every occurrence.
func (e *Engine) BulkAdvance(ctx context.Context, cmd BulkAdvanceCommand) (*BulkOutcome, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("bulk_advance: %w", err)
	}

	unique := make([]string, 0, len(cmd.ResultIDs))
	seen := make(map[string]struct{}, len(cmd.ResultIDs))
	for _, id := range cmd.ResultIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}

	byID := make(map[string]ItemOutcome, len(unique))
	for start := 0; start < len(unique); start += e.batchSize {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("bulk_advance: %w", err)
		}
		end := min(start+e.batchSize, len(unique))
		for _, item := range e.advanceBatch(ctx, cmd, unique[start:end]) {
			byID[item.ResultID] = item
		}
	}

	out := &BulkOutcome{Items: make([]ItemOutcome, 0, len(cmd.ResultIDs))}
	for _, id := range cmd.ResultIDs {
		item := byID[id]
		out.Items = append(out.Items, item)
		if item.Success {
			out.Succeeded++
		} else {
			out.Failed++
		}
	}

	e.logger.Info("bulk transition finished",
		"actor_id", cmd.ActorID,
		"target", cmd.TargetStatus,
		"requested", len(cmd.ResultIDs),
		"succeeded", out.Succeeded,
		"failed", out.Failed,
	)
	return out, nil
}

type pendingFailure struct {
	entry *approval.AuditEntry
	err   error
}

// advanceBatch runs one batch transaction.
func (e *Engine) advanceBatch(ctx context.Context, cmd BulkAdvanceCommand, ids []string) []ItemOutcome {
	var (
		items    []ItemOutcome
		events   []shared.Event
		failures []pendingFailure
	)

	err := e.inTx(ctx, func(ctx context.Context, uow approval.UnitOfWork) error {
		items, events, failures = make([]ItemOutcome, 0, len(ids)), nil, nil

		for _, id := range ids {
			single := AdvanceResultCommand{
				ResultID:     id,
				ActorID:      cmd.ActorID,
				TargetStatus: cmd.TargetStatus,
				Notes:        cmd.Notes,
			}
			entry := e.newTransitionEntry(single)

			if err := shared.RequireID("result id", id); err != nil {
				items = append(items, failedItem(id, err))
				failures = append(failures, pendingFailure{entry: entry, err: err})
				continue
			}

			var (
				outcome  *TransitionOutcome
				produced []shared.Event
			)
			err := uow.Savepoint(ctx, func(ctx context.Context) error {
				var err error
				outcome, produced, err = e.advance(ctx, uow, single, entry)
				return err
			})
			if err != nil {
				// A conflict poisons the whole transaction; let the retrier re-run the batch.
				if shared.IsRetryable(err) || errors.Is(err, context.Canceled) {
					return err
				}
				items = append(items, failedItem(id, err))
				failures = append(failures, pendingFailure{entry: entry, err: err})
				continue
			}

			items = append(items, ItemOutcome{
				ResultID: id,
				Success:  true,
				NoOp:     outcome.NoOp,
				From:     outcome.From,
				To:       outcome.To,
			})
			events = append(events, produced...)
		}
		return nil
	})

	if err != nil {
		// The batch transaction itself failed: nothing in it committed.
		items = make([]ItemOutcome, 0, len(ids))
		for _, id := range ids {
			items = append(items, failedItem(id, err))
			if isAttemptFailure(err) {
				entry := e.newTransitionEntry(AdvanceResultCommand{
					ResultID: id, ActorID: cmd.ActorID, TargetStatus: cmd.TargetStatus, Notes: cmd.Notes,
				})
				e.recordFailure(ctx, entry, err)
			}
		}
		e.logger.Warn("bulk batch failed",
			"size", len(ids),
			"category", shared.Category(err),
			"error", err,
		)
		return items
	}

	for _, f := range failures {
		e.recordFailure(ctx, f.entry, f.err)
	}
	e.publish(withCorrelation(events, cmd.CorrelationID))
	return items
}

func failedItem(id string, err error) ItemOutcome {
	return ItemOutcome{
		ResultID: id,
		Err:      err,
		Category: shared.Category(err),
	}
}
