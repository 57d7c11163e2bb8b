package query

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/fastresult/results-core/internal/domain/approval"
	"github.com/fastresult/results-core/internal/domain/gpa"
	"github.com/fastresult/results-core/internal/domain/shared"
	"golang.org/x/sync/singleflight"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET STUDENT GPA / CGPA QUERIES
// Читают сохранённые агрегаты. Кэш - только ускорение: при его сбое
// запрос идёт в базу, при отсутствии записи возвращается нулевой агрегат.
// ══════════════════════════════════════════════════════════════════════════════

// GetStudentGPAQuery - GPA студента за семестр.
type GetStudentGPAQuery struct {
	StudentID  string
	SemesterID string
}

// Validate проверяет корректность параметров запроса.
func (q GetStudentGPAQuery) Validate() error {
	if err := shared.RequireID("student id", q.StudentID); err != nil {
		return err
	}
	return shared.RequireID("semester id", q.SemesterID)
}

// GetStudentCGPAQuery - накопительный CGPA студента.
type GetStudentCGPAQuery struct {
	StudentID string
}

// Validate проверяет корректность параметров запроса.
func (q GetStudentCGPAQuery) Validate() error {
	return shared.RequireID("student id", q.StudentID)
}

// AggregateDTO - GPA или CGPA в виде для отображения.
type AggregateDTO struct {
	StudentID  string `json:"student_id"`
	SemesterID string `json:"semester_id,omitempty"`

	// GPA округлён до 3 знаков; QualityPoints - точное значение.
	GPA           string    `json:"gpa"`
	TotalCredits  int       `json:"total_credits"`
	QualityPoints string    `json:"quality_points"`
	UpdatedAt     time.Time `json:"updated_at,omitempty"`
}

// AggregateCache - кэш агрегатов. Промах - (nil, false, nil).
//
// Записи версионируются поколением студента: InvalidateStudent увеличивает
// его, поэтому значение, прочитанное из базы до инвалидации, ложится под
// ключ старого поколения и больше никому не отдаётся.
type AggregateCache interface {
	Generation(ctx context.Context, studentID string) (int64, error)
	GetSemester(ctx context.Context, studentID, semesterID string, gen int64) (*gpa.SemesterRecord, bool, error)
	SetSemester(ctx context.Context, rec *gpa.SemesterRecord, gen int64) error
	GetCumulative(ctx context.Context, studentID string, gen int64) (*gpa.CumulativeRecord, bool, error)
	SetCumulative(ctx context.Context, rec *gpa.CumulativeRecord, gen int64) error
	InvalidateStudent(ctx context.Context, studentID string) error
}

// GetStudentGPAHandler обрабатывает запросы GPA и CGPA.
type GetStudentGPAHandler struct {
	tx     approval.Transactor
	cache  AggregateCache
	logger *slog.Logger

	// group склеивает одновременные промахи кэша по одному ключу в одно чтение.
	group singleflight.Group
}

// NewGetStudentGPAHandler создаёт обработчик. cache может быть nil.
func NewGetStudentGPAHandler(tx approval.Transactor, cache AggregateCache, logger *slog.Logger) *GetStudentGPAHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &GetStudentGPAHandler{tx: tx, cache: cache, logger: logger}
}

// GPA возвращает GPA за семестр.
func (h *GetStudentGPAHandler) GPA(ctx context.Context, q GetStudentGPAQuery) (*AggregateDTO, error) {
	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("get_student_gpa: %w", err)
	}

	// Поколение читается до базы: инвалидация после этой точки
	// отбрасывает наше заполнение кэша.
	gen, cached := h.generation(ctx, q.StudentID)
	if cached {
		rec, ok, err := h.cache.GetSemester(ctx, q.StudentID, q.SemesterID, gen)
		if err != nil {
			h.logger.Warn("aggregate cache read failed", "student_id", q.StudentID, "error", err)
		} else if ok {
			return semesterDTO(rec), nil
		}
	}

	key := fmt.Sprintf("gpa:%s:%s:%d", q.StudentID, q.SemesterID, gen)
	v, err, _ := h.group.Do(key, func() (interface{}, error) {
		var rec *gpa.SemesterRecord
		err := h.tx.InReadTx(ctx, func(ctx context.Context, uow approval.UnitOfWork) error {
			var err error
			rec, err = uow.Aggregates().GetSemester(ctx, q.StudentID, q.SemesterID)
			return err
		})
		if shared.IsNotFound(err) {
			return &gpa.SemesterRecord{StudentID: q.StudentID, SemesterID: q.SemesterID, Aggregate: gpa.ComputeSemesterGPA(nil)}, nil
		}
		if err != nil {
			return nil, err
		}
		if cached {
			if err := h.cache.SetSemester(ctx, rec, gen); err != nil {
				h.logger.Warn("aggregate cache write failed", "student_id", q.StudentID, "error", err)
			}
		}
		return rec, nil
	})
	if err != nil {
		return nil, fmt.Errorf("get_student_gpa: %w", err)
	}
	return semesterDTO(v.(*gpa.SemesterRecord)), nil
}

// CGPA возвращает накопительный CGPA.
func (h *GetStudentGPAHandler) CGPA(ctx context.Context, q GetStudentCGPAQuery) (*AggregateDTO, error) {
	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("get_student_cgpa: %w", err)
	}

	gen, cached := h.generation(ctx, q.StudentID)
	if cached {
		rec, ok, err := h.cache.GetCumulative(ctx, q.StudentID, gen)
		if err != nil {
			h.logger.Warn("aggregate cache read failed", "student_id", q.StudentID, "error", err)
		} else if ok {
			return cumulativeDTO(rec), nil
		}
	}

	key := fmt.Sprintf("cgpa:%s:%d", q.StudentID, gen)
	v, err, _ := h.group.Do(key, func() (interface{}, error) {
		var rec *gpa.CumulativeRecord
		err := h.tx.InReadTx(ctx, func(ctx context.Context, uow approval.UnitOfWork) error {
			var err error
			rec, err = uow.Aggregates().GetCumulative(ctx, q.StudentID)
			return err
		})
		if shared.IsNotFound(err) {
			return &gpa.CumulativeRecord{StudentID: q.StudentID, Aggregate: gpa.ComputeCGPA(nil)}, nil
		}
		if err != nil {
			return nil, err
		}
		if cached {
			if err := h.cache.SetCumulative(ctx, rec, gen); err != nil {
				h.logger.Warn("aggregate cache write failed", "student_id", q.StudentID, "error", err)
			}
		}
		return rec, nil
	})
	if err != nil {
		return nil, fmt.Errorf("get_student_cgpa: %w", err)
	}
	return cumulativeDTO(v.(*gpa.CumulativeRecord)), nil
}

// generation возвращает поколение кэша студента. false - кэш не
// используется в этом запросе: его нет или он недоступен.
func (h *GetStudentGPAHandler) generation(ctx context.Context, studentID string) (int64, bool) {
	if h.cache == nil {
		return 0, false
	}
	gen, err := h.cache.Generation(ctx, studentID)
	if err != nil {
		h.logger.Warn("aggregate cache read failed", "student_id", studentID, "error", err)
		return 0, false
	}
	return gen, true
}

func semesterDTO(rec *gpa.SemesterRecord) *AggregateDTO {
	return &AggregateDTO{
		StudentID:     rec.StudentID,
		SemesterID:    rec.SemesterID,
		GPA:           rec.Display(),
		TotalCredits:  rec.TotalCredits,
		QualityPoints: rec.QualityPoints.String(),
		UpdatedAt:     rec.UpdatedAt,
	}
}

func cumulativeDTO(rec *gpa.CumulativeRecord) *AggregateDTO {
	return &AggregateDTO{
		StudentID:     rec.StudentID,
		GPA:           rec.Display(),
		TotalCredits:  rec.TotalCredits,
		QualityPoints: rec.QualityPoints.String(),
		UpdatedAt:     rec.UpdatedAt,
	}
}
