package command

import (
	"context"
	"fmt"
	"strings"

	"github.com/fastresult/results-core/internal/domain/approval"
	"github.com/fastresult/results-core/internal/domain/result"
	"github.com/fastresult/results-core/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECORD COMPONENT COMMAND
// Adds or updates a weighted component of a draft result.
// ══════════════════════════════════════════════════════════════════════════════

// RecordComponentCommand adds a component, or updates one when ComponentID is set.
type RecordComponentCommand struct {
	ResultID    string
	ComponentID string
	ActorID     string

	Name          string
	MarksObtained *decimal.Decimal // nil: not marked yet
	MarksTotal    decimal.Decimal
	Weight        *decimal.Decimal // nil: weight 1

	CorrelationID string
}

// Validate validates the command.
func (c RecordComponentCommand) Validate() error {
	if err := shared.RequireID("result id", c.ResultID); err != nil {
		return err
	}
	if err := shared.RequireID("actor id", c.ActorID); err != nil {
		return err
	}
	if c.ComponentID != "" {
		if err := shared.RequireID("component id", c.ComponentID); err != nil {
			return err
		}
	}
	return c.input().Validate()
}

func (c RecordComponentCommand) input() result.ComponentInput {
	return result.ComponentInput{
		Name:          c.Name,
		MarksObtained: c.MarksObtained,
		MarksTotal:    c.MarksTotal,
		Weight:        c.Weight,
	}
}

// RemoveComponentCommand deletes a component of a draft result.
type RemoveComponentCommand struct {
	ResultID      string
	ComponentID   string
	ActorID       string
	CorrelationID string
}

// Validate validates the command.
func (c RemoveComponentCommand) Validate() error {
	if err := shared.RequireID("result id", c.ResultID); err != nil {
		return err
	}
	if err := shared.RequireID("component id", c.ComponentID); err != nil {
		return err
	}
	return shared.RequireID("actor id", c.ActorID)
}

// RecordComponent stores a component. Only drafts are editable.
func (e *Engine) RecordComponent(ctx context.Context, cmd RecordComponentCommand) (*result.Component, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("record_component: %w", err)
	}

	var stored *result.Component
	err := e.editDraft(ctx, cmd.ResultID, cmd.ActorID, func(ctx context.Context, uow approval.UnitOfWork) (string, error) {
		store := e.store(uow)
		var err error
		if cmd.ComponentID == "" {
			stored, err = store.AddComponent(ctx, cmd.ResultID, cmd.input())
		} else {
			stored, err = store.UpdateComponent(ctx, cmd.ResultID, cmd.ComponentID, cmd.input())
		}
		if err != nil {
			return "", err
		}
		return componentNote(stored), nil
	})
	if err != nil {
		return nil, fmt.Errorf("record_component: %w", err)
	}

	e.publish(withCorrelation([]shared.Event{
		shared.NewResultComponentStoredEvent(cmd.ResultID, stored.ID, stored.Name, false, cmd.ActorID),
	}, cmd.CorrelationID))
	return stored, nil
}

// RemoveComponent deletes a component. Only drafts are editable.
func (e *Engine) RemoveComponent(ctx context.Context, cmd RemoveComponentCommand) error {
	if err := cmd.Validate(); err != nil {
		return fmt.Errorf("remove_component: %w", err)
	}

	err := e.editDraft(ctx, cmd.ResultID, cmd.ActorID, func(ctx context.Context, uow approval.UnitOfWork) (string, error) {
		if err := e.store(uow).RemoveComponent(ctx, cmd.ResultID, cmd.ComponentID); err != nil {
			return "", err
		}
		return "component " + cmd.ComponentID + " removed", nil
	})
	if err != nil {
		return fmt.Errorf("remove_component: %w", err)
	}

	e.publish(withCorrelation([]shared.Event{
		shared.NewResultComponentStoredEvent(cmd.ResultID, cmd.ComponentID, "", true, cmd.ActorID),
	}, cmd.CorrelationID))
	return nil
}

// editDraft authorizes a component edit on the result's course, runs edit
// and audits it. The edit returns the audit note.
func (e *Engine) editDraft(ctx context.Context, resultID, actorID string, edit func(ctx context.Context, uow approval.UnitOfWork) (string, error)) error {
	entry := approval.NewAuditEntry(e.newID(), resultID, actorID, approval.ActionEdit, "", "", "", e.now())

	err := e.inTx(ctx, func(ctx context.Context, uow approval.UnitOfWork) error {
		r, err := uow.Results().GetForUpdate(ctx, resultID)
		if err != nil {
			return err
		}
		entry.FromStatus, entry.ToStatus = r.Status.String(), r.Status.String()

		course, err := e.catalog.Course(ctx, r.CourseID)
		if err != nil {
			return err
		}
		if err := e.authorize(ctx, actorID, approval.ActionEdit, approval.ScopeCourse, course); err != nil {
			return err
		}

		note, err := edit(ctx, uow)
		if err != nil {
			return err
		}

		attempt := *entry
		attempt.Notes = note
		if err := uow.Audit().Record(ctx, &attempt); err != nil {
			return fmt.Errorf("failed to record audit entry: %w", err)
		}
		return nil
	})
	if err != nil && isAttemptFailure(err) {
		e.recordFailure(ctx, entry, err)
	}
	return err
}

func componentNote(c *result.Component) string {
	var b strings.Builder
	b.WriteString("component ")
	b.WriteString(c.Name)
	b.WriteString(": ")
	if c.MarksObtained != nil {
		b.WriteString(c.MarksObtained.String())
	} else {
		b.WriteString("-")
	}
	b.WriteString("/")
	b.WriteString(c.MarksTotal.String())
	b.WriteString(" weight ")
	b.WriteString(c.Weight.String())
	return b.String()
}
