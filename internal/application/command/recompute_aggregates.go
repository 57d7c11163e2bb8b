package command

import (
	"context"
	"fmt"
	"sort"

	"github.com/fastresult/results-core/internal/domain/approval"
	"github.com/fastresult/results-core/internal/domain/gpa"
	"github.com/fastresult/results-core/internal/domain/result"
	"github.com/fastresult/results-core/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECOMPUTE AGGREGATES COMMAND
// Rebuilds a student's semester GPAs and CGPA from counted grades.
// ══════════════════════════════════════════════════════════════════════════════

// RecomputeAggregatesCommand asks for a full rebuild of one student's aggregates.
type RecomputeAggregatesCommand struct {
	StudentID     string
	CorrelationID string
}

// Validate validates the command.
func (c RecomputeAggregatesCommand) Validate() error {
	return shared.RequireID("student id", c.StudentID)
}

// RecomputeResult contains the rebuilt aggregates.
type RecomputeResult struct {
	StudentID  string
	Semesters  []*gpa.SemesterRecord
	Cumulative *gpa.CumulativeRecord

	// Changed is true when any stored aggregate differed from the rebuilt one.
	Changed bool
}

// Semester returns the record for semesterID, or nil.
func (r *RecomputeResult) Semester(semesterID string) *gpa.SemesterRecord {
	for _, rec := range r.Semesters {
		if rec.SemesterID == semesterID {
			return rec
		}
	}
	return nil
}

func (r *RecomputeResult) event(semesterID string) shared.Event {
	semesterGPA := gpa.Aggregate{}
	if rec := r.Semester(semesterID); rec != nil {
		semesterGPA = rec.Aggregate
	}
	return shared.NewAggregatesRecomputedEvent(
		r.StudentID,
		semesterID,
		semesterGPA.Display(),
		r.Cumulative.Display(),
		r.Cumulative.TotalCredits,
	)
}

// RecomputeAggregates rebuilds the student's aggregates in its own transaction.
// The reconcile job uses it to repair drift.
func (e *Engine) RecomputeAggregates(ctx context.Context, cmd RecomputeAggregatesCommand) (*RecomputeResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("recompute_aggregates: %w", err)
	}

	var out *RecomputeResult
	err := e.inTx(ctx, func(ctx context.Context, uow approval.UnitOfWork) error {
		var err error
		out, err = e.recompute(ctx, uow, cmd.StudentID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("recompute_aggregates: %w", err)
	}

	if out.Changed {
		events := make([]shared.Event, 0, len(out.Semesters))
		for _, rec := range out.Semesters {
			events = append(events, out.event(rec.SemesterID))
		}
		e.publish(withCorrelation(events, cmd.CorrelationID))
	}
	return out, nil
}

// recompute rebuilds every semester aggregate of the student plus the CGPA
// from the grades of approved and published results. It runs under the
// student's aggregate lock so two transitions for one student cannot
// interleave their writes. Semesters left without counted grades are stored
// as empty aggregates.
func (e *Engine) recompute(ctx context.Context, uow approval.UnitOfWork, studentID string) (*RecomputeResult, error) {
	aggregates := uow.Aggregates()
	if err := aggregates.LockStudent(ctx, studentID); err != nil {
		return nil, err
	}

	counted, err := uow.Results().CountedGrades(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to load counted grades: %w", err)
	}

	entries := make(map[string][]gpa.Entry)
	credits := make(map[string]int)
	for _, g := range counted {
		hours, ok := credits[g.CourseID]
		if !ok {
			hours, err = result.CreditLookup(ctx, e.catalog, g.CourseID)
			if err != nil {
				return nil, err
			}
			credits[g.CourseID] = hours
		}
		entries[g.SemesterID] = append(entries[g.SemesterID], gpa.Entry{
			GradePoint:  g.GradePoint,
			CreditHours: hours,
		})
	}

	stored, err := aggregates.ListSemesters(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to load semester aggregates: %w", err)
	}
	previous := make(map[string]gpa.Aggregate, len(stored))
	for _, rec := range stored {
		previous[rec.SemesterID] = rec.Aggregate
		if _, ok := entries[rec.SemesterID]; !ok {
			entries[rec.SemesterID] = nil
		}
	}

	semesterIDs := make([]string, 0, len(entries))
	for id := range entries {
		semesterIDs = append(semesterIDs, id)
	}
	sort.Strings(semesterIDs)

	now := e.now()
	out := &RecomputeResult{StudentID: studentID}
	perSemester := make([]gpa.Aggregate, 0, len(semesterIDs))

	for _, semesterID := range semesterIDs {
		agg := gpa.ComputeSemesterGPA(entries[semesterID])
		rec := &gpa.SemesterRecord{
			StudentID:  studentID,
			SemesterID: semesterID,
			Aggregate:  agg,
			UpdatedAt:  now,
		}
		if prev, ok := previous[semesterID]; !ok || !prev.Equal(agg) {
			out.Changed = true
		}
		if err := aggregates.SaveSemester(ctx, rec); err != nil {
			return nil, fmt.Errorf("failed to save semester gpa: %w", err)
		}
		out.Semesters = append(out.Semesters, rec)
		perSemester = append(perSemester, agg)
	}

	cgpa := gpa.ComputeCGPA(perSemester)
	prevCum, err := aggregates.GetCumulative(ctx, studentID)
	switch {
	case err == nil:
		if !prevCum.Aggregate.Equal(cgpa) {
			out.Changed = true
		}
	case shared.IsNotFound(err):
		out.Changed = true
	default:
		return nil, fmt.Errorf("failed to load cgpa: %w", err)
	}

	out.Cumulative = &gpa.CumulativeRecord{
		StudentID: studentID,
		Aggregate: cgpa,
		UpdatedAt: now,
	}
	if err := aggregates.SaveCumulative(ctx, out.Cumulative); err != nil {
		return nil, fmt.Errorf("failed to save cgpa: %w", err)
	}
	return out, nil
}
