package postgres

import (
	"context"
	"fmt"

	"github.com/fastresult/results-core/internal/domain/gpa"
	"github.com/fastresult/results-core/internal/domain/shared"
	"github.com/jackc/pgx/v5"
)

// aggregateRepository implements gpa.Repository.
type aggregateRepository struct {
	q Querier
}

// LockStudent takes a transaction-scoped advisory lock keyed by the student
// ID. Concurrent recomputations for one student queue behind it; distinct
// students never contend.
func (repo *aggregateRepository) LockStudent(ctx context.Context, studentID string) error {
	if _, err := repo.q.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, studentID); err != nil {
		return fmt.Errorf("lock student %s: %w", studentID, mapError(err))
	}
	return nil
}

func (repo *aggregateRepository) SaveSemester(ctx context.Context, rec *gpa.SemesterRecord) error {
	_, err := repo.q.Exec(ctx, `
		INSERT INTO semester_gpa (student_id, semester_id, gpa, total_credits, quality_points, updated_at)
		VALUES ($1, $2, $3::numeric, $4, $5::numeric, $6)
		ON CONFLICT (student_id, semester_id) DO UPDATE SET
			gpa = EXCLUDED.gpa,
			total_credits = EXCLUDED.total_credits,
			quality_points = EXCLUDED.quality_points,
			updated_at = EXCLUDED.updated_at
	`, rec.StudentID, rec.SemesterID, numericArg(rec.GPA), rec.TotalCredits, numericArg(rec.QualityPoints), rec.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save semester gpa: %w", mapError(err))
	}
	return nil
}

func (repo *aggregateRepository) GetSemester(ctx context.Context, studentID, semesterID string) (*gpa.SemesterRecord, error) {
	rec, err := scanSemester(repo.q.QueryRow(ctx, `
		SELECT student_id, semester_id, gpa::text, total_credits, quality_points::text, updated_at
		FROM semester_gpa WHERE student_id = $1 AND semester_id = $2
	`, studentID, semesterID))
	if IsNoRows(err) {
		return nil, shared.ErrGPANotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get semester gpa: %w", mapError(err))
	}
	return rec, nil
}

func (repo *aggregateRepository) ListSemesters(ctx context.Context, studentID string) ([]*gpa.SemesterRecord, error) {
	rows, err := repo.q.Query(ctx, `
		SELECT student_id, semester_id, gpa::text, total_credits, quality_points::text, updated_at
		FROM semester_gpa WHERE student_id = $1
		ORDER BY semester_id
	`, studentID)
	if err != nil {
		return nil, fmt.Errorf("list semester gpa: %w", mapError(err))
	}
	defer rows.Close()

	out := []*gpa.SemesterRecord{}
	for rows.Next() {
		rec, err := scanSemester(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (repo *aggregateRepository) SaveCumulative(ctx context.Context, rec *gpa.CumulativeRecord) error {
	_, err := repo.q.Exec(ctx, `
		INSERT INTO cumulative_gpa (student_id, cgpa, total_credits, quality_points, updated_at)
		VALUES ($1, $2::numeric, $3, $4::numeric, $5)
		ON CONFLICT (student_id) DO UPDATE SET
			cgpa = EXCLUDED.cgpa,
			total_credits = EXCLUDED.total_credits,
			quality_points = EXCLUDED.quality_points,
			updated_at = EXCLUDED.updated_at
	`, rec.StudentID, numericArg(rec.GPA), rec.TotalCredits, numericArg(rec.QualityPoints), rec.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save cumulative gpa: %w", mapError(err))
	}
	return nil
}

func (repo *aggregateRepository) GetCumulative(ctx context.Context, studentID string) (*gpa.CumulativeRecord, error) {
	var (
		rec         gpa.CumulativeRecord
		value, qpts string
	)
	err := repo.q.QueryRow(ctx, `
		SELECT student_id, cgpa::text, total_credits, quality_points::text, updated_at
		FROM cumulative_gpa WHERE student_id = $1
	`, studentID).Scan(&rec.StudentID, &value, &rec.TotalCredits, &qpts, &rec.UpdatedAt)
	if IsNoRows(err) {
		return nil, shared.ErrGPANotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get cumulative gpa: %w", mapError(err))
	}
	if rec.GPA, err = parseNumeric("cgpa", value); err != nil {
		return nil, err
	}
	if rec.QualityPoints, err = parseNumeric("quality_points", qpts); err != nil {
		return nil, err
	}
	rec.UpdatedAt = rec.UpdatedAt.UTC()
	return &rec, nil
}

func scanSemester(row pgx.Row) (*gpa.SemesterRecord, error) {
	var (
		rec         gpa.SemesterRecord
		value, qpts string
	)
	if err := row.Scan(&rec.StudentID, &rec.SemesterID, &value, &rec.TotalCredits, &qpts, &rec.UpdatedAt); err != nil {
		return nil, err
	}
	var err error
	if rec.GPA, err = parseNumeric("gpa", value); err != nil {
		return nil, err
	}
	if rec.QualityPoints, err = parseNumeric("quality_points", qpts); err != nil {
		return nil, err
	}
	rec.UpdatedAt = rec.UpdatedAt.UTC()
	return &rec, nil
}

var _ gpa.Repository = (*aggregateRepository)(nil)
