package command

import (
	"context"
	"fmt"
	"time"

	"github.com/fastresult/results-core/internal/domain/approval"
	"github.com/fastresult/results-core/internal/domain/grading"
	"github.com/fastresult/results-core/internal/domain/result"
	"github.com/fastresult/results-core/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// ══════════════════════════════════════════════════════════════════════════════
// ADVANCE RESULT COMMAND
// Moves a result along the approval workflow.
// ══════════════════════════════════════════════════════════════════════════════

// AdvanceResultCommand requests a status transition.
type AdvanceResultCommand struct {
	ResultID     string
	ActorID      string
	TargetStatus result.Status

	// Notes are kept in the audit trail. Required when returning to draft
	// or rejecting.
	Notes string

	// CorrelationID for tracing across services.
	CorrelationID string
}

// Validate validates the command.
func (c AdvanceResultCommand) Validate() error {
	if err := shared.RequireID("result id", c.ResultID); err != nil {
		return err
	}
	if err := shared.RequireID("actor id", c.ActorID); err != nil {
		return err
	}
	if _, err := approval.RuleFor(c.TargetStatus); err != nil {
		return err
	}
	return nil
}

// SubmitResultCommand is the lecturer's draft → submitted request.
type SubmitResultCommand struct {
	ResultID      string
	ActorID       string
	Notes         string
	CorrelationID string
}

// TransitionOutcome describes a processed transition request.
type TransitionOutcome struct {
	ResultID string
	From     result.Status
	To       result.Status

	// NoOp is true when the result was already in (or past) the target status.
	NoOp bool

	// Grade is set when the transition wrote a grade.
	Grade *result.Grade

	// Aggregates is set when the transition recomputed the student's GPA and CGPA.
	Aggregates *RecomputeResult
}

// SubmitResult moves a draft to submitted after checking its score can be computed.
func (e *Engine) SubmitResult(ctx context.Context, cmd SubmitResultCommand) (*TransitionOutcome, error) {
	return e.AdvanceResult(ctx, AdvanceResultCommand{
		ResultID:      cmd.ResultID,
		ActorID:       cmd.ActorID,
		TargetStatus:  result.StatusSubmitted,
		Notes:         cmd.Notes,
		CorrelationID: cmd.CorrelationID,
	})
}

// AdvanceResult applies one transition.
//
// Checks run in a fixed order: request → lock and load → rights → idempotence →
// transition table → preconditions. Effects (status, grade, aggregates, audit)
// commit together or not at all. A failed attempt is audited separately.
func (e *Engine) AdvanceResult(ctx context.Context, cmd AdvanceResultCommand) (*TransitionOutcome, error) {
	entry := e.newTransitionEntry(cmd)

	if err := cmd.Validate(); err != nil {
		e.recordFailure(ctx, entry, err)
		return nil, fmt.Errorf("advance_result: %w", err)
	}

	var (
		outcome *TransitionOutcome
		events  []shared.Event
	)
	err := e.inTx(ctx, func(ctx context.Context, uow approval.UnitOfWork) error {
		outcome, events = nil, nil
		attempt := *entry

		var err error
		outcome, events, err = e.advance(ctx, uow, cmd, &attempt)
		if err != nil {
			entry.FromStatus = attempt.FromStatus
			return err
		}
		return nil
	})
	if err != nil {
		if isAttemptFailure(err) {
			e.recordFailure(ctx, entry, err)
		}
		e.logger.Info("transition refused",
			"result_id", cmd.ResultID,
			"actor_id", cmd.ActorID,
			"target", cmd.TargetStatus,
			"category", shared.Category(err),
			"error", err,
		)
		return nil, fmt.Errorf("advance_result: %w", err)
	}

	e.publish(withCorrelation(events, cmd.CorrelationID))

	e.logger.Info("result transitioned",
		"result_id", outcome.ResultID,
		"actor_id", cmd.ActorID,
		"from", outcome.From,
		"to", outcome.To,
		"no_op", outcome.NoOp,
	)
	return outcome, nil
}

// advance runs one transition inside uow. entry is the audit entry for the
// attempt; on success it is recorded in the same transaction.
func (e *Engine) advance(ctx context.Context, uow approval.UnitOfWork, cmd AdvanceResultCommand, entry *approval.AuditEntry) (*TransitionOutcome, []shared.Event, error) {
	results := uow.Results()

	r, err := results.GetForUpdate(ctx, cmd.ResultID)
	if err != nil {
		return nil, nil, err
	}
	entry.FromStatus = r.Status.String()

	rule, err := approval.RuleFor(cmd.TargetStatus)
	if err != nil {
		return nil, nil, err
	}

	course, err := e.catalog.Course(ctx, r.CourseID)
	if err != nil {
		return nil, nil, err
	}
	if err := e.authorize(ctx, cmd.ActorID, rule.Action, rule.Scope, course); err != nil {
		return nil, nil, err
	}

	decision, err := approval.Decide(r.Status, cmd.TargetStatus)
	if err != nil {
		return nil, nil, err
	}

	outcome := &TransitionOutcome{ResultID: r.ID, From: r.Status, To: r.Status}
	if decision.NoOp {
		entry.ToStatus = r.Status.String()
		entry.Notes = noOpNote(cmd.Notes)
		if err := uow.Audit().Record(ctx, entry); err != nil {
			return nil, nil, fmt.Errorf("failed to record audit entry: %w", err)
		}
		outcome.NoOp = true
		return outcome, nil, nil
	}

	if rule.RequiresReason {
		reason, err := shared.NewReason(cmd.Notes)
		if err != nil {
			return nil, nil, err
		}
		entry.Notes = reason.String()
	}

	score, err := e.checkPrecondition(ctx, results, r.ID, rule.Precondition)
	if err != nil {
		return nil, nil, err
	}

	now := e.now()
	from := r.Status
	r.MoveTo(rule.To, now)
	if err := results.UpdateStatus(ctx, r); err != nil {
		return nil, nil, fmt.Errorf("failed to update status: %w", err)
	}
	outcome.To = r.Status

	if rule.WritesGrade {
		grade, err := e.writeGrade(ctx, results, r, course, score, now)
		if err != nil {
			return nil, nil, err
		}
		outcome.Grade = grade
	}
	if rule.DropsGrade {
		if _, err := results.DeleteGrade(ctx, r.ID); err != nil {
			return nil, nil, fmt.Errorf("failed to drop grade: %w", err)
		}
	}

	entry.ToStatus = r.Status.String()
	if err := uow.Audit().Record(ctx, entry); err != nil {
		return nil, nil, fmt.Errorf("failed to record audit entry: %w", err)
	}

	events := []shared.Event{
		shared.NewResultTransitionedEvent(r.ID, r.StudentID, r.CourseID, r.SemesterID,
			from.String(), r.Status.String(), cmd.ActorID, entry.Notes),
	}

	if rule.RecomputesAggregates {
		recomputed, err := e.recompute(ctx, uow, r.StudentID)
		if err != nil {
			return nil, nil, err
		}
		outcome.Aggregates = recomputed
		events = append(events, recomputed.event(r.SemesterID))
	}

	return outcome, events, nil
}

// checkPrecondition evaluates the rule's precondition against the current
// components. For PreconditionScore it returns the computed score.
func (e *Engine) checkPrecondition(ctx context.Context, results result.Repository, resultID string, p approval.Precondition) (*decimal.Decimal, error) {
	if p == approval.PreconditionNone {
		return nil, nil
	}

	components, err := results.Components(ctx, resultID)
	if err != nil {
		return nil, fmt.Errorf("failed to load components: %w", err)
	}
	marks := result.Marks(components)

	if p == approval.PreconditionComplete {
		return nil, grading.CheckComplete(marks)
	}

	score, err := grading.ComputeScore(marks)
	if err != nil {
		return nil, err
	}
	return &score, nil
}

// writeGrade derives the grade from the score with the university's scale
// and stores it, replacing any previous grade.
func (e *Engine) writeGrade(ctx context.Context, results result.Repository, r *result.Result, course *result.Course, score *decimal.Decimal, now time.Time) (*result.Grade, error) {
	if score == nil {
		return nil, fmt.Errorf("grade without score for result %s: %w", r.ID, shared.ErrIncompleteResult)
	}

	scale, err := e.scales.Lookup(ctx, course.UniversityID)
	if err != nil {
		return nil, err
	}
	letter, point, err := grading.DeriveGrade(*score, scale)
	if err != nil {
		return nil, err
	}

	grade := &result.Grade{
		ResultID:    r.ID,
		TotalScore:  *score,
		LetterGrade: letter,
		GradePoint:  point,
		ScaleName:   scale.Name(),
		ComputedAt:  now,
	}
	if err := results.SaveGrade(ctx, grade); err != nil {
		return nil, fmt.Errorf("failed to save grade: %w", err)
	}
	return grade, nil
}

func (e *Engine) newTransitionEntry(cmd AdvanceResultCommand) *approval.AuditEntry {
	action := approval.Action("result.transition")
	if rule, err := approval.RuleFor(cmd.TargetStatus); err == nil {
		action = rule.Action
	}
	return approval.NewAuditEntry(e.newID(), cmd.ResultID, cmd.ActorID, action,
		"", cmd.TargetStatus.String(), cmd.Notes, e.now())
}

func noOpNote(notes string) string {
	if notes == "" {
		return "already in target status"
	}
	return "already in target status: " + notes
}
