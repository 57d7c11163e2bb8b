package result

import (
	"context"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Эти интерфейсы определяют контракт для работы с хранилищем данных.
// Реализации находятся в infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// Repository - хранилище результатов, компонентов и оценок.
// Все методы работают в транзакции, из которой получен репозиторий.
type Repository interface {
	// ─────────────────────────────────────────────────────────────────────────
	// Results
	// ─────────────────────────────────────────────────────────────────────────

	// Create сохраняет новый результат.
	// Возвращает ErrDuplicateResult, если тройка (студент, курс, семестр) уже занята.
	Create(ctx context.Context, r *Result) error

	// GetByID возвращает результат по ID.
	// Возвращает ErrResultNotFound, если результат не найден.
	GetByID(ctx context.Context, id string) (*Result, error)

	// GetForUpdate возвращает результат и блокирует его до конца транзакции.
	// Возвращает ErrLockTimeout, если блокировку держит другая транзакция слишком долго.
	GetForUpdate(ctx context.Context, id string) (*Result, error)

	// GetByKey возвращает результат по тройке (студент, курс, семестр).
	GetByKey(ctx context.Context, studentID, courseID, semesterID string) (*Result, error)

	// UpdateStatus сохраняет статус и версию результата.
	UpdateStatus(ctx context.Context, r *Result) error

	// ListByStudent возвращает все результаты студента.
	ListByStudent(ctx context.Context, studentID string) ([]*Result, error)

	// ListStudentsWithCounted возвращает студентов, у которых есть засчитанные оценки.
	ListStudentsWithCounted(ctx context.Context) ([]string, error)

	// ─────────────────────────────────────────────────────────────────────────
	// Components
	// ─────────────────────────────────────────────────────────────────────────

	// Components возвращает компоненты результата в порядке создания.
	Components(ctx context.Context, resultID string) ([]*Component, error)

	// AddComponent сохраняет новый компонент.
	// Возвращает ErrDuplicateComponent, если имя уже занято в этом результате.
	AddComponent(ctx context.Context, c *Component) error

	// UpdateComponent сохраняет изменённый компонент.
	// Возвращает ErrComponentNotFound, если компонент не найден.
	UpdateComponent(ctx context.Context, c *Component) error

	// RemoveComponent удаляет компонент.
	RemoveComponent(ctx context.Context, resultID, componentID string) error

	// ─────────────────────────────────────────────────────────────────────────
	// Grades
	// ─────────────────────────────────────────────────────────────────────────

	// Grade возвращает оценку результата.
	// Возвращает ErrGradeNotFound, если оценки нет.
	Grade(ctx context.Context, resultID string) (*Grade, error)

	// SaveGrade создаёт или заменяет оценку результата.
	SaveGrade(ctx context.Context, g *Grade) error

	// DeleteGrade удаляет оценку; отсутствие оценки не ошибка.
	DeleteGrade(ctx context.Context, resultID string) (bool, error)

	// CountedGrades возвращает оценки студента, входящие в GPA (approved/published).
	CountedGrades(ctx context.Context, studentID string) ([]*CountedGrade, error)
}
