// Package memory implements the persistence contracts in process memory.
// It backs tests and single-process tooling. A transaction holds the store
// lock for its whole duration and restores a snapshot on rollback, so every
// transaction is serializable.
package memory

import (
	"context"
	"fmt"

	"github.com/fastresult/results-core/internal/domain/approval"
	"github.com/fastresult/results-core/internal/domain/gpa"
	"github.com/fastresult/results-core/internal/domain/result"
	"github.com/fastresult/results-core/internal/domain/shared"
)

// DB is an in-memory database.
type DB struct {
	// sem is a one-slot semaphore; holding it means holding the transaction lock.
	sem  chan struct{}
	data *state

	failAudit func(entry *approval.AuditEntry) error
}

type state struct {
	results    map[string]*result.Result
	keys       map[string]string // student/course/semester -> result id
	components map[string][]*result.Component
	grades     map[string]*result.Grade
	semesters  map[string]map[string]*gpa.SemesterRecord
	cumulative map[string]*gpa.CumulativeRecord
	audit      map[string][]*approval.AuditEntry
}

func newState() *state {
	return &state{
		results:    make(map[string]*result.Result),
		keys:       make(map[string]string),
		components: make(map[string][]*result.Component),
		grades:     make(map[string]*result.Grade),
		semesters:  make(map[string]map[string]*gpa.SemesterRecord),
		cumulative: make(map[string]*gpa.CumulativeRecord),
		audit:      make(map[string][]*approval.AuditEntry),
	}
}

// clone deep-copies the state for rollback.
func (s *state) clone() *state {
	c := newState()
	for id, r := range s.results {
		cp := *r
		c.results[id] = &cp
	}
	for k, v := range s.keys {
		c.keys[k] = v
	}
	for id, list := range s.components {
		out := make([]*result.Component, 0, len(list))
		for _, comp := range list {
			out = append(out, copyComponent(comp))
		}
		c.components[id] = out
	}
	for id, g := range s.grades {
		cp := *g
		c.grades[id] = &cp
	}
	for student, bySem := range s.semesters {
		m := make(map[string]*gpa.SemesterRecord, len(bySem))
		for sem, rec := range bySem {
			cp := *rec
			m[sem] = &cp
		}
		c.semesters[student] = m
	}
	for student, rec := range s.cumulative {
		cp := *rec
		c.cumulative[student] = &cp
	}
	for id, list := range s.audit {
		out := make([]*approval.AuditEntry, 0, len(list))
		for _, e := range list {
			cp := *e
			out = append(out, &cp)
		}
		c.audit[id] = out
	}
	return c
}

// NewDB creates an empty in-memory database.
func NewDB() *DB {
	return &DB{
		sem:  make(chan struct{}, 1),
		data: newState(),
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// TRANSACTIONS
// ══════════════════════════════════════════════════════════════════════════════

// Transactor implements approval.Transactor over DB.
type Transactor struct {
	db *DB
}

// NewTransactor creates a Transactor.
func NewTransactor(db *DB) *Transactor {
	return &Transactor{db: db}
}

// InTx runs fn holding the store lock. An error or panic restores the state
// captured when the transaction began. Waiting for the lock honours ctx and
// reports a concurrency conflict when ctx expires first.
func (t *Transactor) InTx(ctx context.Context, fn func(ctx context.Context, uow approval.UnitOfWork) error) (err error) {
	select {
	case t.db.sem <- struct{}{}:
	case <-ctx.Done():
		return fmt.Errorf("%v: %w", ctx.Err(), shared.ErrLockTimeout)
	}
	defer func() { <-t.db.sem }()

	snapshot := t.db.data.clone()
	defer func() {
		if p := recover(); p != nil {
			t.db.data = snapshot
			panic(p)
		}
		if err != nil {
			t.db.data = snapshot
		}
	}()

	return fn(ctx, &unitOfWork{db: t.db})
}

// InReadTx runs fn like InTx. Reads are serialized with writers.
func (t *Transactor) InReadTx(ctx context.Context, fn func(ctx context.Context, uow approval.UnitOfWork) error) error {
	return t.InTx(ctx, fn)
}

type unitOfWork struct {
	db *DB
}

func (u *unitOfWork) Results() result.Repository { return &resultRepository{db: u.db} }
func (u *unitOfWork) Aggregates() gpa.Repository { return &aggregateRepository{db: u.db} }
func (u *unitOfWork) Audit() approval.AuditLog   { return &auditLog{db: u.db} }

// Savepoint restores the state captured before fn when fn fails.
func (u *unitOfWork) Savepoint(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	snapshot := u.db.data.clone()
	defer func() {
		if p := recover(); p != nil {
			u.db.data = snapshot
			panic(p)
		}
		if err != nil {
			u.db.data = snapshot
		}
	}()
	return fn(ctx)
}

var _ approval.Transactor = (*Transactor)(nil)

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

func copyComponent(c *result.Component) *result.Component {
	cp := *c
	if c.MarksObtained != nil {
		v := *c.MarksObtained
		cp.MarksObtained = &v
	}
	return &cp
}
