package approval

import (
	"context"

	"github.com/fastresult/results-core/internal/domain/gpa"
	"github.com/fastresult/results-core/internal/domain/result"
)

// UnitOfWork - репозитории, привязанные к одной транзакции.
type UnitOfWork interface {
	Results() result.Repository
	Aggregates() gpa.Repository
	Audit() AuditLog

	// Savepoint выполняет fn во вложенной транзакции: ошибка fn откатывает
	// только её изменения, внешняя транзакция продолжается.
	Savepoint(ctx context.Context, fn func(ctx context.Context) error) error
}

// Transactor открывает транзакции.
// Ошибка fn или паника откатывает всё, что fn записала.
type Transactor interface {
	InTx(ctx context.Context, fn func(ctx context.Context, uow UnitOfWork) error) error

	// InReadTx открывает транзакцию только для чтения.
	InReadTx(ctx context.Context, fn func(ctx context.Context, uow UnitOfWork) error) error
}
