package result

import (
	"context"
	"fmt"

	"github.com/fastresult/results-core/internal/domain/shared"
)

// Course - запись каталога курсов, нужная ядру: кредиты и место в иерархии
// университет → факультет → кафедра → курс.
type Course struct {
	ID           string
	Code         string
	CreditHours  int
	DepartmentID string
	FacultyID    string
	UniversityID string
}

// CourseCatalog - внешний реестр курсов.
type CourseCatalog interface {
	// Course возвращает курс по ID.
	// Возвращает ErrCourseNotFound, если курс не зарегистрирован.
	Course(ctx context.Context, courseID string) (*Course, error)
}

// CreditLookup возвращает кредиты курса.
// Отсутствие курса или неположительные кредиты - ошибка конфигурации, а не ввода.
func CreditLookup(ctx context.Context, catalog CourseCatalog, courseID string) (int, error) {
	course, err := catalog.Course(ctx, courseID)
	if err != nil {
		if shared.IsNotFound(err) || shared.IsConfiguration(err) {
			return 0, fmt.Errorf("course %s: %w", courseID, shared.ErrCreditLookup)
		}
		return 0, err
	}
	if course.CreditHours <= 0 {
		return 0, fmt.Errorf("course %s has %d credit hours: %w", courseID, course.CreditHours, shared.ErrCreditLookup)
	}
	return course.CreditHours, nil
}
