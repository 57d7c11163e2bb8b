package approval

import (
	"fmt"

	"github.com/fastresult/results-core/internal/domain/result"
	"github.com/fastresult/results-core/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// TRANSITION TABLE
// ══════════════════════════════════════════════════════════════════════════════

// Precondition - что движок обязан проверить перед переходом.
type Precondition int

const (
	// PreconditionNone - только проверка прав.
	PreconditionNone Precondition = iota
	// PreconditionComplete - есть компоненты, у всех выставлены баллы.
	PreconditionComplete
	// PreconditionScore - ComputeScore завершается успешно.
	PreconditionScore
)

// Rule - строка таблицы переходов. Правило определяется целевым статусом:
// у каждого целевого статуса ровно одно действие и одна область проверки прав.
type Rule struct {
	From           []result.Status
	To             result.Status
	Action         Action
	Scope          ScopeKind
	Precondition   Precondition
	RequiresReason bool

	// WritesGrade - переход создаёт или заменяет оценку.
	WritesGrade bool
	// DropsGrade - переход аннулирует оценку.
	DropsGrade bool
	// RecomputesAggregates - после перехода пересчитываются GPA и CGPA студента.
	RecomputesAggregates bool
}

// Allows проверяет, что переход разрешён из статуса from.
func (r Rule) Allows(from result.Status) bool {
	for _, s := range r.From {
		if s == from {
			return true
		}
	}
	return false
}

var rules = map[result.Status]Rule{
	result.StatusSubmitted: {
		From:         []result.Status{result.StatusDraft},
		To:           result.StatusSubmitted,
		Action:       ActionSubmit,
		Scope:        ScopeCourse,
		Precondition: PreconditionScore,
	},
	result.StatusUnderReview: {
		From:         []result.Status{result.StatusSubmitted},
		To:           result.StatusUnderReview,
		Action:       ActionReview,
		Scope:        ScopeDepartment,
		Precondition: PreconditionComplete,
	},
	result.StatusHODApproved: {
		From:         []result.Status{result.StatusUnderReview},
		To:           result.StatusHODApproved,
		Action:       ActionHODApprove,
		Scope:        ScopeDepartment,
		Precondition: PreconditionScore,
	},
	result.StatusApproved: {
		From:                 []result.Status{result.StatusUnderReview, result.StatusHODApproved},
		To:                   result.StatusApproved,
		Action:               ActionApprove,
		Scope:                ScopeDepartment,
		Precondition:         PreconditionScore,
		WritesGrade:          true,
		RecomputesAggregates: true,
	},
	result.StatusPublished: {
		From:   []result.Status{result.StatusApproved},
		To:     result.StatusPublished,
		Action: ActionPublish,
		Scope:  ScopeUniversity,
	},
	result.StatusDraft: {
		From: []result.Status{
			result.StatusSubmitted,
			result.StatusUnderReview,
			result.StatusHODApproved,
			result.StatusApproved,
			result.StatusRejected,
		},
		To:                   result.StatusDraft,
		Action:               ActionReturn,
		Scope:                ScopeDepartment,
		RequiresReason:       true,
		DropsGrade:           true,
		RecomputesAggregates: true,
	},
	result.StatusRejected: {
		From: []result.Status{
			result.StatusSubmitted,
			result.StatusUnderReview,
			result.StatusHODApproved,
		},
		To:             result.StatusRejected,
		Action:         ActionReject,
		Scope:          ScopeDepartment,
		RequiresReason: true,
	},
}

// RuleFor возвращает правило перехода в целевой статус.
func RuleFor(target result.Status) (Rule, error) {
	if !target.IsValid() {
		return Rule{}, fmt.Errorf("status %q: %w", target, shared.ErrInvalidStatus)
	}
	rule, ok := rules[target]
	if !ok {
		return Rule{}, fmt.Errorf("status %q is not a transition target: %w", target, shared.ErrInvalidStatus)
	}
	return rule, nil
}

// Decision - результат сверки текущего статуса с целевым.
type Decision struct {
	Rule Rule
	// NoOp - результат уже в целевом статусе или прошёл его по основному пути.
	NoOp bool
}

// Decide сверяет текущий статус с целевым по таблице переходов.
//
// Запрос в текущий статус - успешный no-op, чтобы повтор после таймаута был безопасен.
// То же для целевого статуса основного пути, который результат уже прошёл
// (например, approve для опубликованного результата).
// Возврат в draft и отклонение никогда не считаются пройденными.
func Decide(current, target result.Status) (Decision, error) {
	rule, err := RuleFor(target)
	if err != nil {
		return Decision{}, err
	}

	if current == target {
		return Decision{Rule: rule, NoOp: true}, nil
	}
	if target.Rank() > 0 && current.Rank() > target.Rank() {
		return Decision{Rule: rule, NoOp: true}, nil
	}
	if !rule.Allows(current) {
		return Decision{}, fmt.Errorf("%s → %s: %w", current, target, shared.ErrTransitionDenied)
	}
	return Decision{Rule: rule}, nil
}
