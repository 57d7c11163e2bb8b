package rolegate_test

import (
	"context"
	"errors"
	"testing"

	"github.com/fastresult/results-core/internal/domain/approval"
	"github.com/fastresult/results-core/internal/domain/result"
	"github.com/fastresult/results-core/internal/domain/shared"
	"github.com/fastresult/results-core/internal/infrastructure/persistence/memory"
	"github.com/fastresult/results-core/internal/infrastructure/rolegate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFixture() (*memory.Catalog, *memory.Assignments) {
	catalog := memory.NewCatalog()
	catalog.AddCourse(result.Course{
		ID:           "CSC301",
		Code:         "CSC 301",
		CreditHours:  3,
		DepartmentID: "cs",
		FacultyID:    "science",
		UniversityID: "uni",
	})
	catalog.AddCourse(result.Course{
		ID:           "MTH201",
		Code:         "MTH 201",
		CreditHours:  2,
		DepartmentID: "math",
		FacultyID:    "science",
		UniversityID: "uni",
	})

	assignments := memory.NewAssignments()
	assignments.Grant("lecturer-1", approval.RoleLecturer, approval.ScopeCourse, "CSC301")
	assignments.Grant("hod-cs", approval.RoleHOD, approval.ScopeDepartment, "cs")
	assignments.Grant("officer-sci", approval.RoleExamOfficer, approval.ScopeFaculty, "science")
	assignments.Grant("admin", approval.RoleUniversityAdmin, approval.ScopeUniversity, "uni")
	return catalog, assignments
}

func TestGate_Authorize(t *testing.T) {
	catalog, assignments := newFixture()
	gate := rolegate.New(assignments, catalog)
	ctx := context.Background()

	course := func(id string) approval.ScopeKey {
		return approval.ScopeKey{Kind: approval.ScopeCourse, ID: id}
	}
	dept := func(id string) approval.ScopeKey {
		return approval.ScopeKey{Kind: approval.ScopeDepartment, ID: id}
	}
	uni := approval.ScopeKey{Kind: approval.ScopeUniversity, ID: "uni"}

	tests := []struct {
		name   string
		actor  string
		action approval.Action
		scope  approval.ScopeKey
		want   bool
	}{
		{"lecturer submits own course", "lecturer-1", approval.ActionSubmit, course("CSC301"), true},
		{"lecturer cannot submit other course", "lecturer-1", approval.ActionSubmit, course("MTH201"), false},
		{"lecturer cannot approve", "lecturer-1", approval.ActionApprove, dept("cs"), false},
		{"hod reviews own department", "hod-cs", approval.ActionReview, dept("cs"), true},
		{"hod cannot review other department", "hod-cs", approval.ActionReview, dept("math"), false},
		{"hod cannot approve", "hod-cs", approval.ActionApprove, dept("cs"), false},
		{"faculty officer approves any department", "officer-sci", approval.ActionApprove, dept("math"), true},
		{"officer publishes only with university scope", "officer-sci", approval.ActionPublish, uni, false},
		{"admin publishes", "admin", approval.ActionPublish, uni, true},
		{"unknown actor", "nobody", approval.ActionSubmit, course("CSC301"), false},
		{"unknown action", "admin", approval.Action("result.delete"), uni, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := gate.Authorize(ctx, tt.actor, tt.action, tt.scope)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGate_UnknownCourseIsConfigurationError(t *testing.T) {
	catalog, assignments := newFixture()
	gate := rolegate.New(assignments, catalog)

	_, err := gate.Authorize(context.Background(), "lecturer-1", approval.ActionSubmit,
		approval.ScopeKey{Kind: approval.ScopeCourse, ID: "GHOST"})
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrCourseNotFound)
	assert.True(t, shared.IsConfiguration(err))
}

type failingSource struct{}

func (failingSource) AssignmentsFor(ctx context.Context, actorID string) ([]rolegate.Assignment, error) {
	return nil, errors.New("directory unavailable")
}

func TestGate_SourceErrorPropagates(t *testing.T) {
	catalog, _ := newFixture()
	gate := rolegate.New(failingSource{}, catalog)

	ok, err := gate.Authorize(context.Background(), "hod-cs", approval.ActionReview,
		approval.ScopeKey{Kind: approval.ScopeDepartment, ID: "cs"})
	assert.False(t, ok)
	assert.ErrorContains(t, err, "directory unavailable")
}

func TestGate_CustomPolicy(t *testing.T) {
	catalog, assignments := newFixture()
	gate := rolegate.New(assignments, catalog, rolegate.WithPolicy(rolegate.Policy{
		approval.ActionApprove: {approval.RoleHOD},
	}))

	ok, err := gate.Authorize(context.Background(), "hod-cs", approval.ActionApprove,
		approval.ScopeKey{Kind: approval.ScopeDepartment, ID: "cs"})
	require.NoError(t, err)
	assert.True(t, ok)
}
