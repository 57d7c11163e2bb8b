package command

import (
	"context"
	"fmt"

	"github.com/fastresult/results-core/internal/domain/approval"
	"github.com/fastresult/results-core/internal/domain/result"
	"github.com/fastresult/results-core/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// CREATE DRAFT COMMAND
// Opens a result for a student in a course and semester.
// ══════════════════════════════════════════════════════════════════════════════

// CreateDraftCommand contains the data needed to open a draft.
type CreateDraftCommand struct {
	StudentID     string
	CourseID      string
	SemesterID    string
	ActorID       string
	CorrelationID string
}

// Validate validates the command.
func (c CreateDraftCommand) Validate() error {
	if err := shared.RequireID("actor id", c.ActorID); err != nil {
		return err
	}
	if err := shared.RequireID("student id", c.StudentID); err != nil {
		return err
	}
	if err := shared.RequireID("course id", c.CourseID); err != nil {
		return err
	}
	return shared.RequireID("semester id", c.SemesterID)
}

// CreateDraftResult contains the draft.
type CreateDraftResult struct {
	Result *result.Result

	// Existing is true when the triple already had a result; it is returned
	// unchanged whatever its status.
	Existing bool
}

// CreateDraft opens a draft. Repeating the call returns the same result.
func (e *Engine) CreateDraft(ctx context.Context, cmd CreateDraftCommand) (*CreateDraftResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("create_draft: %w", err)
	}

	course, err := e.catalog.Course(ctx, cmd.CourseID)
	if err != nil {
		return nil, fmt.Errorf("create_draft: %w", err)
	}
	if err := e.authorize(ctx, cmd.ActorID, approval.ActionEdit, approval.ScopeCourse, course); err != nil {
		return nil, fmt.Errorf("create_draft: %w", err)
	}

	var out *CreateDraftResult
	err = e.inTx(ctx, func(ctx context.Context, uow approval.UnitOfWork) error {
		r, existing, err := e.store(uow).CreateDraft(ctx, cmd.StudentID, cmd.CourseID, cmd.SemesterID)
		if err != nil {
			return err
		}
		out = &CreateDraftResult{Result: r, Existing: existing}
		if existing {
			return nil
		}

		entry := approval.NewAuditEntry(e.newID(), r.ID, cmd.ActorID, approval.ActionEdit,
			"", r.Status.String(), "draft created", e.now())
		if err := uow.Audit().Record(ctx, entry); err != nil {
			return fmt.Errorf("failed to record audit entry: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("create_draft: %w", err)
	}

	if !out.Existing {
		r := out.Result
		e.publish(withCorrelation([]shared.Event{
			shared.NewResultDraftCreatedEvent(r.ID, r.StudentID, r.CourseID, r.SemesterID, cmd.ActorID),
		}, cmd.CorrelationID))
		e.logger.Info("draft created",
			"result_id", r.ID,
			"student_id", r.StudentID,
			"course_id", r.CourseID,
			"semester_id", r.SemesterID,
		)
	}
	return out, nil
}
