package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/fastresult/results-core/internal/domain/approval"
	"github.com/fastresult/results-core/internal/domain/result"
	"github.com/fastresult/results-core/internal/domain/shared"
	"github.com/fastresult/results-core/internal/infrastructure/rolegate"
	"github.com/jackc/pgx/v5"
)

// ══════════════════════════════════════════════════════════════════════════════
// COURSE CATALOG
// ══════════════════════════════════════════════════════════════════════════════

// Catalog reads courses and the institutional hierarchy. It implements
// result.CourseCatalog and rolegate.Hierarchy. Catalog reads run on the pool,
// outside engine transactions.
type Catalog struct {
	conn *Connection
}

// NewCatalog creates a Catalog.
func NewCatalog(conn *Connection) *Catalog {
	return &Catalog{conn: conn}
}

// Course implements result.CourseCatalog.
func (c *Catalog) Course(ctx context.Context, courseID string) (*result.Course, error) {
	var course result.Course
	err := c.conn.QueryRow(ctx, `
		SELECT c.id, c.code, c.credit_hours, d.id, f.id, f.university_id
		FROM courses c
		JOIN departments d ON d.id = c.department_id
		JOIN faculties f ON f.id = d.faculty_id
		WHERE c.id = $1
	`, courseID).Scan(&course.ID, &course.Code, &course.CreditHours, &course.DepartmentID, &course.FacultyID, &course.UniversityID)
	if IsNoRows(err) {
		return nil, shared.ErrCourseNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get course: %w", err)
	}
	return &course, nil
}

// Ancestors implements rolegate.Hierarchy: the scope followed by every
// enclosing scope, narrowest first.
func (c *Catalog) Ancestors(ctx context.Context, scope approval.ScopeKey) ([]approval.ScopeKey, error) {
	chain := []approval.ScopeKey{scope}

	var departmentID, facultyID, universityID string
	switch scope.Kind {
	case approval.ScopeCourse:
		course, err := c.Course(ctx, scope.ID)
		if err != nil {
			return nil, err
		}
		return append(chain,
			approval.ScopeKey{Kind: approval.ScopeDepartment, ID: course.DepartmentID},
			approval.ScopeKey{Kind: approval.ScopeFaculty, ID: course.FacultyID},
			approval.ScopeKey{Kind: approval.ScopeUniversity, ID: course.UniversityID},
		), nil

	case approval.ScopeDepartment:
		departmentID = scope.ID
		err := c.conn.QueryRow(ctx, `
			SELECT f.id, f.university_id
			FROM departments d JOIN faculties f ON f.id = d.faculty_id
			WHERE d.id = $1
		`, departmentID).Scan(&facultyID, &universityID)
		if IsNoRows(err) {
			return chain, nil
		}
		if err != nil {
			return nil, fmt.Errorf("resolve department: %w", err)
		}
		return append(chain,
			approval.ScopeKey{Kind: approval.ScopeFaculty, ID: facultyID},
			approval.ScopeKey{Kind: approval.ScopeUniversity, ID: universityID},
		), nil

	case approval.ScopeFaculty:
		err := c.conn.QueryRow(ctx, `SELECT university_id FROM faculties WHERE id = $1`, scope.ID).Scan(&universityID)
		if IsNoRows(err) {
			return chain, nil
		}
		if err != nil {
			return nil, fmt.Errorf("resolve faculty: %w", err)
		}
		return append(chain, approval.ScopeKey{Kind: approval.ScopeUniversity, ID: universityID}), nil
	}
	return chain, nil
}

// RegisterCourse upserts a course together with its department, faculty and
// university. Used by seeding tools.
func (c *Catalog) RegisterCourse(ctx context.Context, course result.Course) error {
	return c.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		stmts := []struct {
			sql  string
			args []interface{}
		}{
			{`INSERT INTO universities (id) VALUES ($1) ON CONFLICT DO NOTHING`,
				[]interface{}{course.UniversityID}},
			{`INSERT INTO faculties (id, university_id) VALUES ($1, $2)
			  ON CONFLICT (id) DO UPDATE SET university_id = EXCLUDED.university_id`,
				[]interface{}{course.FacultyID, course.UniversityID}},
			{`INSERT INTO departments (id, faculty_id) VALUES ($1, $2)
			  ON CONFLICT (id) DO UPDATE SET faculty_id = EXCLUDED.faculty_id`,
				[]interface{}{course.DepartmentID, course.FacultyID}},
			{`INSERT INTO courses (id, code, credit_hours, department_id) VALUES ($1, $2, $3, $4)
			  ON CONFLICT (id) DO UPDATE SET code = EXCLUDED.code,
				credit_hours = EXCLUDED.credit_hours, department_id = EXCLUDED.department_id`,
				[]interface{}{course.ID, course.Code, course.CreditHours, course.DepartmentID}},
		}
		for _, s := range stmts {
			if _, err := tx.Exec(ctx, s.sql, s.args...); err != nil {
				return fmt.Errorf("register course %s: %w", course.ID, err)
			}
		}
		return nil
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// ROLE ASSIGNMENTS
// ══════════════════════════════════════════════════════════════════════════════

// Assignments implements rolegate.AssignmentSource on role_assignments.
type Assignments struct {
	conn *Connection
}

// NewAssignments creates an Assignments source.
func NewAssignments(conn *Connection) *Assignments {
	return &Assignments{conn: conn}
}

// AssignmentsFor implements rolegate.AssignmentSource.
func (a *Assignments) AssignmentsFor(ctx context.Context, actorID string) ([]rolegate.Assignment, error) {
	rows, err := a.conn.Query(ctx, `
		SELECT role, scope_kind, scope_id FROM role_assignments WHERE actor_id = $1
	`, actorID)
	if err != nil {
		return nil, fmt.Errorf("list role assignments: %w", err)
	}
	defer rows.Close()

	var out []rolegate.Assignment
	for rows.Next() {
		var role, kind, scopeID string
		if err := rows.Scan(&role, &kind, &scopeID); err != nil {
			return nil, err
		}
		out = append(out, rolegate.Assignment{
			ActorID: actorID,
			Role:    approval.Role(role),
			Scope:   approval.ScopeKey{Kind: approval.ScopeKind(kind), ID: scopeID},
		})
	}
	return out, rows.Err()
}

// Grant records a role on a scope. Granting twice is a no-op.
func (a *Assignments) Grant(ctx context.Context, actorID string, role approval.Role, kind approval.ScopeKind, scopeID string) error {
	if !role.IsValid() {
		return fmt.Errorf("role %q: %w", role, shared.ErrInvalidInput)
	}
	if !kind.IsValid() {
		return fmt.Errorf("scope kind %q: %w", kind, shared.ErrInvalidInput)
	}
	_, err := a.conn.Exec(ctx, `
		INSERT INTO role_assignments (actor_id, role, scope_kind, scope_id, granted_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT DO NOTHING
	`, actorID, string(role), string(kind), scopeID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("grant role: %w", err)
	}
	return nil
}

var (
	_ result.CourseCatalog      = (*Catalog)(nil)
	_ rolegate.Hierarchy        = (*Catalog)(nil)
	_ rolegate.AssignmentSource = (*Assignments)(nil)
)
