package postgres

import (
	"context"
	"fmt"

	"github.com/fastresult/results-core/internal/domain/approval"
	"github.com/fastresult/results-core/internal/domain/gpa"
	"github.com/fastresult/results-core/internal/domain/result"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// ══════════════════════════════════════════════════════════════════════════════
// TRANSACTOR
// ══════════════════════════════════════════════════════════════════════════════

// Transactor implements approval.Transactor over a connection pool.
type Transactor struct {
	conn *Connection
}

// NewTransactor creates a Transactor.
func NewTransactor(conn *Connection) *Transactor {
	return &Transactor{conn: conn}
}

// InTx runs fn in a read-committed transaction. Row locks taken inside fn
// are held until commit or rollback.
func (t *Transactor) InTx(ctx context.Context, fn func(ctx context.Context, uow approval.UnitOfWork) error) error {
	return t.run(ctx, DefaultTxOptions(), fn)
}

// InReadTx runs fn in a read-only repeatable-read transaction.
func (t *Transactor) InReadTx(ctx context.Context, fn func(ctx context.Context, uow approval.UnitOfWork) error) error {
	return t.run(ctx, ReadOnlyTxOptions(), fn)
}

func (t *Transactor) run(ctx context.Context, opts TxOptions, fn func(ctx context.Context, uow approval.UnitOfWork) error) error {
	return t.conn.WithTx(ctx, opts, func(tx pgx.Tx) error {
		return fn(ctx, &unitOfWork{tx: tx})
	})
}

type unitOfWork struct {
	tx pgx.Tx
}

func (u *unitOfWork) Results() result.Repository { return &resultRepository{q: u.tx} }
func (u *unitOfWork) Aggregates() gpa.Repository { return &aggregateRepository{q: u.tx} }
func (u *unitOfWork) Audit() approval.AuditLog   { return &auditLog{q: u.tx} }

// Savepoint runs fn inside SAVEPOINT / RELEASE; a failing fn rolls back to
// the savepoint and the outer transaction stays usable.
func (u *unitOfWork) Savepoint(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	sp, err := u.tx.Begin(ctx)
	if err != nil {
		return fmt.Errorf("savepoint: %w", mapError(err))
	}
	defer func() {
		if p := recover(); p != nil {
			_ = sp.Rollback(ctx)
			panic(p)
		}
	}()

	if err := fn(ctx); err != nil {
		if rbErr := sp.Rollback(ctx); rbErr != nil {
			return fmt.Errorf("%w (rollback to savepoint: %v)", err, rbErr)
		}
		return err
	}
	if err := sp.Commit(ctx); err != nil {
		return fmt.Errorf("release savepoint: %w", mapError(err))
	}
	return nil
}

var _ approval.Transactor = (*Transactor)(nil)

// ══════════════════════════════════════════════════════════════════════════════
// NUMERIC HELPERS
// NUMERIC travels as text in both directions so no precision is lost
// between shopspring/decimal and PostgreSQL.
// ══════════════════════════════════════════════════════════════════════════════

func numericArg(d decimal.Decimal) string {
	return d.String()
}

func nullableNumericArg(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := d.String()
	return &s
}

func parseNumeric(column, s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("column %s: %w", column, err)
	}
	return d, nil
}

func parseNullableNumeric(column string, s *string) (*decimal.Decimal, error) {
	if s == nil {
		return nil, nil
	}
	d, err := parseNumeric(column, *s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
