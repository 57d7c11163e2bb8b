package result

// Status определяет текущий этап результата в конвейере утверждения.
type Status string

const (
	// StatusDraft - преподаватель вводит компоненты.
	StatusDraft Status = "draft"
	// StatusSubmitted - отправлено преподавателем на проверку.
	StatusSubmitted Status = "submitted"
	// StatusUnderReview - на проверке у кафедры или экзаменационного отдела.
	StatusUnderReview Status = "under_review"
	// StatusHODApproved - одобрено заведующим кафедрой, ждёт экзаменационный отдел.
	StatusHODApproved Status = "hod_approved"
	// StatusApproved - утверждено, оценка выставлена, учитывается в GPA.
	StatusApproved Status = "approved"
	// StatusPublished - опубликовано и видно студенту.
	StatusPublished Status = "published"
	// StatusRejected - отклонено экзаменационным отделом.
	StatusRejected Status = "rejected"
)

// AllStatuses возвращает все статусы в порядке основного пути.
func AllStatuses() []Status {
	return []Status{
		StatusDraft,
		StatusSubmitted,
		StatusUnderReview,
		StatusHODApproved,
		StatusApproved,
		StatusPublished,
		StatusRejected,
	}
}

// ParseStatus разбирает статус из строки.
func ParseStatus(s string) (Status, bool) {
	st := Status(s)
	return st, st.IsValid()
}

// IsValid проверяет, что статус корректен.
func (s Status) IsValid() bool {
	switch s {
	case StatusDraft, StatusSubmitted, StatusUnderReview, StatusHODApproved,
		StatusApproved, StatusPublished, StatusRejected:
		return true
	default:
		return false
	}
}

// String возвращает строковое представление статуса.
func (s Status) String() string {
	return string(s)
}

// CountsForGPA возвращает true, если оценка с этим статусом входит в GPA/CGPA.
func (s Status) CountsForGPA() bool {
	return s == StatusApproved || s == StatusPublished
}

// IsVisibleToStudent возвращает true только для опубликованных результатов.
func (s Status) IsVisibleToStudent() bool {
	return s == StatusPublished
}

// IsEditable возвращает true, если компоненты можно менять.
func (s Status) IsEditable() bool {
	return s == StatusDraft
}

// Rank возвращает позицию статуса на основном пути draft → published.
// Для rejected возвращает -1: это боковая ветка.
func (s Status) Rank() int {
	switch s {
	case StatusDraft:
		return 0
	case StatusSubmitted:
		return 1
	case StatusUnderReview:
		return 2
	case StatusHODApproved:
		return 3
	case StatusApproved:
		return 4
	case StatusPublished:
		return 5
	default:
		return -1
	}
}
