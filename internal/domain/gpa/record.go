package gpa

import (
	"context"
	"time"
)

// SemesterRecord - GPA студента за один семестр. Уникален по (StudentID, SemesterID).
type SemesterRecord struct {
	StudentID  string
	SemesterID string
	Aggregate
	UpdatedAt time.Time
}

// CumulativeRecord - CGPA студента. Один на студента.
type CumulativeRecord struct {
	StudentID string
	Aggregate
	UpdatedAt time.Time
}

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Реализации находятся в infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// Repository хранит агрегаты. Единственный писатель - пересчёт агрегатов.
type Repository interface {
	// LockStudent сериализует пересчёт агрегатов одного студента до конца транзакции.
	// Возвращает ErrLockTimeout, если блокировку не удалось взять вовремя.
	LockStudent(ctx context.Context, studentID string) error

	// SaveSemester создаёт или заменяет запись GPA за семестр.
	SaveSemester(ctx context.Context, rec *SemesterRecord) error

	// GetSemester возвращает GPA за семестр.
	// Возвращает ErrGPANotFound, если запись отсутствует.
	GetSemester(ctx context.Context, studentID, semesterID string) (*SemesterRecord, error)

	// ListSemesters возвращает все семестровые записи студента.
	ListSemesters(ctx context.Context, studentID string) ([]*SemesterRecord, error)

	// SaveCumulative создаёт или заменяет CGPA.
	SaveCumulative(ctx context.Context, rec *CumulativeRecord) error

	// GetCumulative возвращает CGPA.
	// Возвращает ErrGPANotFound, если запись отсутствует.
	GetCumulative(ctx context.Context, studentID string) (*CumulativeRecord, error)
}
