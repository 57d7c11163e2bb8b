package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/fastresult/results-core/internal/domain/result"
	"github.com/fastresult/results-core/internal/domain/shared"
	"github.com/jackc/pgx/v5"
)

// resultRepository implements result.Repository.
// Inserts use ON CONFLICT DO NOTHING: a failed statement would abort the
// surrounding transaction, and duplicate keys are an expected outcome here.
type resultRepository struct {
	q Querier
}

const resultColumns = `id, student_id, course_id, semester_id, status, version, created_at, updated_at`

// ══════════════════════════════════════════════════════════════════════════════
// RESULTS
// ══════════════════════════════════════════════════════════════════════════════

func (repo *resultRepository) Create(ctx context.Context, r *result.Result) error {
	tag, err := repo.q.Exec(ctx, `
		INSERT INTO results (id, student_id, course_id, semester_id, status, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT DO NOTHING
	`, r.ID, r.StudentID, r.CourseID, r.SemesterID, string(r.Status), r.Version, r.CreatedAt, r.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert result: %w", mapError(err))
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrDuplicateResult
	}
	return nil
}

func (repo *resultRepository) GetByID(ctx context.Context, id string) (*result.Result, error) {
	return repo.getOne(ctx, `SELECT `+resultColumns+` FROM results WHERE id = $1`, id)
}

// GetForUpdate holds the row lock until the transaction ends. A wait longer
// than lock_timeout becomes ErrLockTimeout.
func (repo *resultRepository) GetForUpdate(ctx context.Context, id string) (*result.Result, error) {
	return repo.getOne(ctx, `SELECT `+resultColumns+` FROM results WHERE id = $1 FOR UPDATE`, id)
}

func (repo *resultRepository) GetByKey(ctx context.Context, studentID, courseID, semesterID string) (*result.Result, error) {
	return repo.getOne(ctx, `
		SELECT `+resultColumns+` FROM results
		WHERE student_id = $1 AND course_id = $2 AND semester_id = $3
	`, studentID, courseID, semesterID)
}

func (repo *resultRepository) UpdateStatus(ctx context.Context, r *result.Result) error {
	tag, err := repo.q.Exec(ctx, `
		UPDATE results SET status = $2, version = $3, updated_at = $4 WHERE id = $1
	`, r.ID, string(r.Status), r.Version, r.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update result status: %w", mapError(err))
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrResultNotFound
	}
	return nil
}

func (repo *resultRepository) ListByStudent(ctx context.Context, studentID string) ([]*result.Result, error) {
	rows, err := repo.q.Query(ctx, `
		SELECT `+resultColumns+` FROM results
		WHERE student_id = $1
		ORDER BY semester_id, course_id
	`, studentID)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", mapError(err))
	}
	defer rows.Close()

	var out []*result.Result
	for rows.Next() {
		r, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (repo *resultRepository) ListStudentsWithCounted(ctx context.Context) ([]string, error) {
	rows, err := repo.q.Query(ctx, `
		SELECT DISTINCT student_id FROM results
		WHERE status IN ('approved', 'published')
		ORDER BY student_id
	`)
	if err != nil {
		return nil, fmt.Errorf("list students: %w", mapError(err))
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (repo *resultRepository) getOne(ctx context.Context, sql string, args ...interface{}) (*result.Result, error) {
	r, err := scanResult(repo.q.QueryRow(ctx, sql, args...))
	if IsNoRows(err) {
		return nil, shared.ErrResultNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get result: %w", mapError(err))
	}
	return r, nil
}

func scanResult(row pgx.Row) (*result.Result, error) {
	var (
		r      result.Result
		status string
	)
	if err := row.Scan(&r.ID, &r.StudentID, &r.CourseID, &r.SemesterID, &status, &r.Version, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	s, ok := result.ParseStatus(status)
	if !ok {
		return nil, fmt.Errorf("result %s has unknown status %q: %w", r.ID, status, shared.ErrInvalidStatus)
	}
	r.Status = s
	r.CreatedAt = r.CreatedAt.UTC()
	r.UpdatedAt = r.UpdatedAt.UTC()
	return &r, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// COMPONENTS
// ══════════════════════════════════════════════════════════════════════════════

func (repo *resultRepository) Components(ctx context.Context, resultID string) ([]*result.Component, error) {
	rows, err := repo.q.Query(ctx, `
		SELECT id, result_id, name, marks_obtained::text, marks_total::text, weight::text, created_at, updated_at
		FROM result_components
		WHERE result_id = $1
		ORDER BY position
	`, resultID)
	if err != nil {
		return nil, fmt.Errorf("list components: %w", mapError(err))
	}
	defer rows.Close()

	out := []*result.Component{}
	for rows.Next() {
		var (
			c                    result.Component
			obtained             *string
			total, weight        string
			createdAt, updatedAt time.Time
		)
		if err := rows.Scan(&c.ID, &c.ResultID, &c.Name, &obtained, &total, &weight, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		if c.MarksObtained, err = parseNullableNumeric("marks_obtained", obtained); err != nil {
			return nil, err
		}
		if c.MarksTotal, err = parseNumeric("marks_total", total); err != nil {
			return nil, err
		}
		if c.Weight, err = parseNumeric("weight", weight); err != nil {
			return nil, err
		}
		c.CreatedAt, c.UpdatedAt = createdAt.UTC(), updatedAt.UTC()
		out = append(out, &c)
	}
	return out, rows.Err()
}

func (repo *resultRepository) AddComponent(ctx context.Context, c *result.Component) error {
	tag, err := repo.q.Exec(ctx, `
		INSERT INTO result_components (id, result_id, name, marks_obtained, marks_total, weight, created_at, updated_at)
		VALUES ($1, $2, $3, $4::numeric, $5::numeric, $6::numeric, $7, $8)
		ON CONFLICT (result_id, name) DO NOTHING
	`, c.ID, c.ResultID, c.Name, nullableNumericArg(c.MarksObtained), numericArg(c.MarksTotal), numericArg(c.Weight),
		c.CreatedAt, c.UpdatedAt)
	if err != nil {
		if IsForeignKeyViolation(err) {
			return shared.ErrResultNotFound
		}
		return fmt.Errorf("insert component: %w", mapError(err))
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrDuplicateComponent
	}
	return nil
}

func (repo *resultRepository) UpdateComponent(ctx context.Context, c *result.Component) error {
	// A rename onto a sibling's name is checked up front so the unique
	// constraint never fires inside the transaction.
	var clash bool
	err := repo.q.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM result_components WHERE result_id = $1 AND name = $2 AND id <> $3
		)
	`, c.ResultID, c.Name, c.ID).Scan(&clash)
	if err != nil {
		return fmt.Errorf("check component name: %w", mapError(err))
	}
	if clash {
		return shared.ErrDuplicateComponent
	}

	tag, err := repo.q.Exec(ctx, `
		UPDATE result_components
		SET name = $3, marks_obtained = $4::numeric, marks_total = $5::numeric, weight = $6::numeric, updated_at = $7
		WHERE id = $1 AND result_id = $2
	`, c.ID, c.ResultID, c.Name, nullableNumericArg(c.MarksObtained), numericArg(c.MarksTotal), numericArg(c.Weight), c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update component: %w", mapError(err))
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrComponentNotFound
	}
	return nil
}

func (repo *resultRepository) RemoveComponent(ctx context.Context, resultID, componentID string) error {
	tag, err := repo.q.Exec(ctx, `DELETE FROM result_components WHERE id = $1 AND result_id = $2`, componentID, resultID)
	if err != nil {
		return fmt.Errorf("delete component: %w", mapError(err))
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrComponentNotFound
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// GRADES
// ══════════════════════════════════════════════════════════════════════════════

func (repo *resultRepository) Grade(ctx context.Context, resultID string) (*result.Grade, error) {
	var (
		g                 result.Grade
		score, gradePoint string
	)
	err := repo.q.QueryRow(ctx, `
		SELECT result_id, total_score::text, letter_grade, grade_point::text, scale_name, computed_at
		FROM grades WHERE result_id = $1
	`, resultID).Scan(&g.ResultID, &score, &g.LetterGrade, &gradePoint, &g.ScaleName, &g.ComputedAt)
	if IsNoRows(err) {
		return nil, shared.ErrGradeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get grade: %w", mapError(err))
	}
	if g.TotalScore, err = parseNumeric("total_score", score); err != nil {
		return nil, err
	}
	if g.GradePoint, err = parseNumeric("grade_point", gradePoint); err != nil {
		return nil, err
	}
	g.ComputedAt = g.ComputedAt.UTC()
	return &g, nil
}

func (repo *resultRepository) SaveGrade(ctx context.Context, g *result.Grade) error {
	_, err := repo.q.Exec(ctx, `
		INSERT INTO grades (result_id, total_score, letter_grade, grade_point, scale_name, computed_at)
		VALUES ($1, $2::numeric, $3, $4::numeric, $5, $6)
		ON CONFLICT (result_id) DO UPDATE SET
			total_score = EXCLUDED.total_score,
			letter_grade = EXCLUDED.letter_grade,
			grade_point = EXCLUDED.grade_point,
			scale_name = EXCLUDED.scale_name,
			computed_at = EXCLUDED.computed_at
	`, g.ResultID, numericArg(g.TotalScore), g.LetterGrade, numericArg(g.GradePoint), g.ScaleName, g.ComputedAt)
	if err != nil {
		if IsForeignKeyViolation(err) {
			return shared.ErrResultNotFound
		}
		return fmt.Errorf("save grade: %w", mapError(err))
	}
	return nil
}

func (repo *resultRepository) DeleteGrade(ctx context.Context, resultID string) (bool, error) {
	tag, err := repo.q.Exec(ctx, `DELETE FROM grades WHERE result_id = $1`, resultID)
	if err != nil {
		return false, fmt.Errorf("delete grade: %w", mapError(err))
	}
	return tag.RowsAffected() > 0, nil
}

func (repo *resultRepository) CountedGrades(ctx context.Context, studentID string) ([]*result.CountedGrade, error) {
	rows, err := repo.q.Query(ctx, `
		SELECT r.id, r.course_id, r.semester_id, g.grade_point::text
		FROM results r
		JOIN grades g ON g.result_id = r.id
		WHERE r.student_id = $1 AND r.status IN ('approved', 'published')
		ORDER BY r.id
	`, studentID)
	if err != nil {
		return nil, fmt.Errorf("list counted grades: %w", mapError(err))
	}
	defer rows.Close()

	var out []*result.CountedGrade
	for rows.Next() {
		var (
			cg result.CountedGrade
			gp string
		)
		if err := rows.Scan(&cg.ResultID, &cg.CourseID, &cg.SemesterID, &gp); err != nil {
			return nil, err
		}
		if cg.GradePoint, err = parseNumeric("grade_point", gp); err != nil {
			return nil, err
		}
		out = append(out, &cg)
	}
	return out, rows.Err()
}

var _ result.Repository = (*resultRepository)(nil)
