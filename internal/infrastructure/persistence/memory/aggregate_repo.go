package memory

import (
	"context"
	"sort"

	"github.com/fastresult/results-core/internal/domain/gpa"
	"github.com/fastresult/results-core/internal/domain/shared"
)

type aggregateRepository struct {
	db *DB
}

// LockStudent is a no-op: the transaction already holds the store lock.
func (repo *aggregateRepository) LockStudent(ctx context.Context, studentID string) error {
	return ctx.Err()
}

func (repo *aggregateRepository) SaveSemester(ctx context.Context, rec *gpa.SemesterRecord) error {
	bySem, ok := repo.db.data.semesters[rec.StudentID]
	if !ok {
		bySem = make(map[string]*gpa.SemesterRecord)
		repo.db.data.semesters[rec.StudentID] = bySem
	}
	cp := *rec
	bySem[rec.SemesterID] = &cp
	return nil
}

func (repo *aggregateRepository) GetSemester(ctx context.Context, studentID, semesterID string) (*gpa.SemesterRecord, error) {
	rec, ok := repo.db.data.semesters[studentID][semesterID]
	if !ok {
		return nil, shared.ErrGPANotFound
	}
	cp := *rec
	return &cp, nil
}

func (repo *aggregateRepository) ListSemesters(ctx context.Context, studentID string) ([]*gpa.SemesterRecord, error) {
	bySem := repo.db.data.semesters[studentID]
	out := make([]*gpa.SemesterRecord, 0, len(bySem))
	for _, rec := range bySem {
		cp := *rec
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SemesterID < out[j].SemesterID })
	return out, nil
}

func (repo *aggregateRepository) SaveCumulative(ctx context.Context, rec *gpa.CumulativeRecord) error {
	cp := *rec
	repo.db.data.cumulative[rec.StudentID] = &cp
	return nil
}

func (repo *aggregateRepository) GetCumulative(ctx context.Context, studentID string) (*gpa.CumulativeRecord, error) {
	rec, ok := repo.db.data.cumulative[studentID]
	if !ok {
		return nil, shared.ErrGPANotFound
	}
	cp := *rec
	return &cp, nil
}

var _ gpa.Repository = (*aggregateRepository)(nil)
