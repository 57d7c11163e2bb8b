package memory

import (
	"context"
	"sync"

	"github.com/fastresult/results-core/internal/domain/approval"
	"github.com/fastresult/results-core/internal/domain/result"
	"github.com/fastresult/results-core/internal/domain/shared"
	"github.com/fastresult/results-core/internal/infrastructure/rolegate"
)

// ══════════════════════════════════════════════════════════════════════════════
// COURSE CATALOG
// ══════════════════════════════════════════════════════════════════════════════

// Catalog is an in-memory course registry. It implements result.CourseCatalog
// and rolegate.Hierarchy.
type Catalog struct {
	mu          sync.RWMutex
	courses     map[string]result.Course
	departments map[string]string // department -> faculty
	faculties   map[string]string // faculty -> university
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		courses:     make(map[string]result.Course),
		departments: make(map[string]string),
		faculties:   make(map[string]string),
	}
}

// AddCourse registers a course together with its department and faculty.
func (c *Catalog) AddCourse(course result.Course) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.courses[course.ID] = course
	if course.DepartmentID != "" {
		c.departments[course.DepartmentID] = course.FacultyID
	}
	if course.FacultyID != "" {
		c.faculties[course.FacultyID] = course.UniversityID
	}
}

// Course implements result.CourseCatalog.
func (c *Catalog) Course(ctx context.Context, courseID string) (*result.Course, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	course, ok := c.courses[courseID]
	if !ok {
		return nil, shared.ErrCourseNotFound
	}
	return &course, nil
}

// Ancestors implements rolegate.Hierarchy.
func (c *Catalog) Ancestors(ctx context.Context, scope approval.ScopeKey) ([]approval.ScopeKey, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	chain := []approval.ScopeKey{scope}
	kind, id := scope.Kind, scope.ID

	if kind == approval.ScopeCourse {
		course, ok := c.courses[id]
		if !ok {
			return nil, shared.ErrCourseNotFound
		}
		kind, id = approval.ScopeDepartment, course.DepartmentID
		chain = append(chain, approval.ScopeKey{Kind: kind, ID: id})
	}
	if kind == approval.ScopeDepartment {
		faculty, ok := c.departments[id]
		if !ok {
			return chain, nil
		}
		kind, id = approval.ScopeFaculty, faculty
		chain = append(chain, approval.ScopeKey{Kind: kind, ID: id})
	}
	if kind == approval.ScopeFaculty {
		university, ok := c.faculties[id]
		if !ok {
			return chain, nil
		}
		chain = append(chain, approval.ScopeKey{Kind: approval.ScopeUniversity, ID: university})
	}
	return chain, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// ROLE ASSIGNMENTS
// ══════════════════════════════════════════════════════════════════════════════

// Assignments is an in-memory rolegate.AssignmentSource.
type Assignments struct {
	mu      sync.RWMutex
	byActor map[string][]rolegate.Assignment
}

// NewAssignments creates an empty assignment set.
func NewAssignments() *Assignments {
	return &Assignments{byActor: make(map[string][]rolegate.Assignment)}
}

// Grant gives actorID a role on a scope.
func (a *Assignments) Grant(actorID string, role approval.Role, kind approval.ScopeKind, scopeID string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.byActor[actorID] = append(a.byActor[actorID], rolegate.Assignment{
		ActorID: actorID,
		Role:    role,
		Scope:   approval.ScopeKey{Kind: kind, ID: scopeID},
	})
}

// AssignmentsFor implements rolegate.AssignmentSource.
func (a *Assignments) AssignmentsFor(ctx context.Context, actorID string) ([]rolegate.Assignment, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	held := a.byActor[actorID]
	out := make([]rolegate.Assignment, len(held))
	copy(out, held)
	return out, nil
}

var (
	_ result.CourseCatalog      = (*Catalog)(nil)
	_ rolegate.Hierarchy        = (*Catalog)(nil)
	_ rolegate.AssignmentSource = (*Assignments)(nil)
)
