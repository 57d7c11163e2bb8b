package memory

import (
	"context"
	"sort"

	"github.com/fastresult/results-core/internal/domain/result"
	"github.com/fastresult/results-core/internal/domain/shared"
)

// resultRepository implements result.Repository. Callers hold the
// transaction lock, so methods touch db.data directly.
type resultRepository struct {
	db *DB
}

func tripleKey(studentID, courseID, semesterID string) string {
	return studentID + "\x00" + courseID + "\x00" + semesterID
}

func (repo *resultRepository) Create(ctx context.Context, r *result.Result) error {
	data := repo.db.data
	key := tripleKey(r.StudentID, r.CourseID, r.SemesterID)
	if _, exists := data.keys[key]; exists {
		return shared.ErrDuplicateResult
	}
	if _, exists := data.results[r.ID]; exists {
		return shared.ErrDuplicateResult
	}

	cp := *r
	data.results[r.ID] = &cp
	data.keys[key] = r.ID
	return nil
}

func (repo *resultRepository) GetByID(ctx context.Context, id string) (*result.Result, error) {
	r, ok := repo.db.data.results[id]
	if !ok {
		return nil, shared.ErrResultNotFound
	}
	cp := *r
	return &cp, nil
}

func (repo *resultRepository) GetForUpdate(ctx context.Context, id string) (*result.Result, error) {
	return repo.GetByID(ctx, id)
}

func (repo *resultRepository) GetByKey(ctx context.Context, studentID, courseID, semesterID string) (*result.Result, error) {
	id, ok := repo.db.data.keys[tripleKey(studentID, courseID, semesterID)]
	if !ok {
		return nil, shared.ErrResultNotFound
	}
	return repo.GetByID(ctx, id)
}

func (repo *resultRepository) UpdateStatus(ctx context.Context, r *result.Result) error {
	stored, ok := repo.db.data.results[r.ID]
	if !ok {
		return shared.ErrResultNotFound
	}
	stored.Status = r.Status
	stored.Version = r.Version
	stored.UpdatedAt = r.UpdatedAt
	return nil
}

func (repo *resultRepository) ListByStudent(ctx context.Context, studentID string) ([]*result.Result, error) {
	var out []*result.Result
	for _, r := range repo.db.data.results {
		if r.StudentID == studentID {
			cp := *r
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SemesterID != out[j].SemesterID {
			return out[i].SemesterID < out[j].SemesterID
		}
		return out[i].CourseID < out[j].CourseID
	})
	return out, nil
}

func (repo *resultRepository) ListStudentsWithCounted(ctx context.Context) ([]string, error) {
	seen := make(map[string]struct{})
	for _, r := range repo.db.data.results {
		if r.Status.CountsForGPA() {
			seen[r.StudentID] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

func (repo *resultRepository) Components(ctx context.Context, resultID string) ([]*result.Component, error) {
	list := repo.db.data.components[resultID]
	out := make([]*result.Component, 0, len(list))
	for _, c := range list {
		out = append(out, copyComponent(c))
	}
	return out, nil
}

func (repo *resultRepository) AddComponent(ctx context.Context, c *result.Component) error {
	data := repo.db.data
	if _, ok := data.results[c.ResultID]; !ok {
		return shared.ErrResultNotFound
	}
	for _, existing := range data.components[c.ResultID] {
		if existing.Name == c.Name {
			return shared.ErrDuplicateComponent
		}
	}
	data.components[c.ResultID] = append(data.components[c.ResultID], copyComponent(c))
	return nil
}

func (repo *resultRepository) UpdateComponent(ctx context.Context, c *result.Component) error {
	list := repo.db.data.components[c.ResultID]
	idx := -1
	for i, existing := range list {
		if existing.ID == c.ID {
			idx = i
			continue
		}
		if existing.Name == c.Name {
			return shared.ErrDuplicateComponent
		}
	}
	if idx < 0 {
		return shared.ErrComponentNotFound
	}
	list[idx] = copyComponent(c)
	return nil
}

func (repo *resultRepository) RemoveComponent(ctx context.Context, resultID, componentID string) error {
	list := repo.db.data.components[resultID]
	for i, c := range list {
		if c.ID == componentID {
			repo.db.data.components[resultID] = append(list[:i:i], list[i+1:]...)
			return nil
		}
	}
	return shared.ErrComponentNotFound
}

func (repo *resultRepository) Grade(ctx context.Context, resultID string) (*result.Grade, error) {
	g, ok := repo.db.data.grades[resultID]
	if !ok {
		return nil, shared.ErrGradeNotFound
	}
	cp := *g
	return &cp, nil
}

func (repo *resultRepository) SaveGrade(ctx context.Context, g *result.Grade) error {
	if _, ok := repo.db.data.results[g.ResultID]; !ok {
		return shared.ErrResultNotFound
	}
	cp := *g
	repo.db.data.grades[g.ResultID] = &cp
	return nil
}

func (repo *resultRepository) DeleteGrade(ctx context.Context, resultID string) (bool, error) {
	if _, ok := repo.db.data.grades[resultID]; !ok {
		return false, nil
	}
	delete(repo.db.data.grades, resultID)
	return true, nil
}

func (repo *resultRepository) CountedGrades(ctx context.Context, studentID string) ([]*result.CountedGrade, error) {
	var out []*result.CountedGrade
	for id, r := range repo.db.data.results {
		if r.StudentID != studentID || !r.Status.CountsForGPA() {
			continue
		}
		g, ok := repo.db.data.grades[id]
		if !ok {
			continue
		}
		out = append(out, &result.CountedGrade{
			ResultID:   id,
			CourseID:   r.CourseID,
			SemesterID: r.SemesterID,
			GradePoint: g.GradePoint,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ResultID < out[j].ResultID })
	return out, nil
}

var _ result.Repository = (*resultRepository)(nil)
