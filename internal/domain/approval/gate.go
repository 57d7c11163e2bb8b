// Package approval содержит конечный автомат утверждения результатов,
// контракты внешних участников (RoleGate, AuditSink) и единицу работы,
// в которой движок выполняет переходы.
package approval

import (
	"context"
	"fmt"
)

// ══════════════════════════════════════════════════════════════════════════════
// ACTIONS & ROLES
// ══════════════════════════════════════════════════════════════════════════════

// Action - действие, на которое проверяются права.
type Action string

const (
	ActionEdit       Action = "result.edit"
	ActionSubmit     Action = "result.submit"
	ActionReview     Action = "result.review"
	ActionHODApprove Action = "result.hod_approve"
	ActionApprove    Action = "result.approve"
	ActionPublish    Action = "result.publish"
	ActionReturn     Action = "result.return"
	ActionReject     Action = "result.reject"
)

// String возвращает строковое представление действия.
func (a Action) String() string {
	return string(a)
}

// Role - роль участника. Движок ролей не знает: они нужны только реализации RoleGate.
type Role string

const (
	RoleLecturer        Role = "lecturer"
	RoleHOD             Role = "hod"
	RoleExamOfficer     Role = "exam_officer"
	RoleDean            Role = "dean"
	RoleUniversityAdmin Role = "university_admin"
)

// IsValid проверяет, что роль известна.
func (r Role) IsValid() bool {
	switch r {
	case RoleLecturer, RoleHOD, RoleExamOfficer, RoleDean, RoleUniversityAdmin:
		return true
	default:
		return false
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// SCOPE
// ══════════════════════════════════════════════════════════════════════════════

// ScopeKind - уровень иерархии, к которому относится действие.
type ScopeKind string

const (
	ScopeCourse     ScopeKind = "course"
	ScopeDepartment ScopeKind = "department"
	ScopeFaculty    ScopeKind = "faculty"
	ScopeUniversity ScopeKind = "university"
)

// IsValid проверяет, что уровень известен.
func (k ScopeKind) IsValid() bool {
	switch k {
	case ScopeCourse, ScopeDepartment, ScopeFaculty, ScopeUniversity:
		return true
	default:
		return false
	}
}

// ScopeKey - объект, над которым у участника должна быть власть.
type ScopeKey struct {
	Kind ScopeKind
	ID   string
}

// String возвращает ключ в виде "kind:id".
func (k ScopeKey) String() string {
	return fmt.Sprintf("%s:%s", k.Kind, k.ID)
}

// ══════════════════════════════════════════════════════════════════════════════
// ROLE GATE
// ══════════════════════════════════════════════════════════════════════════════

// RoleGate решает, есть ли у участника роль и полномочия на действие в области.
// Движок никогда не проверяет роли сам, он только выбирает ScopeKey.
type RoleGate interface {
	Authorize(ctx context.Context, actorID string, action Action, scope ScopeKey) (bool, error)
}

// RoleGateFunc адаптирует функцию к RoleGate.
type RoleGateFunc func(ctx context.Context, actorID string, action Action, scope ScopeKey) (bool, error)

// Authorize implements RoleGate.
func (f RoleGateFunc) Authorize(ctx context.Context, actorID string, action Action, scope ScopeKey) (bool, error) {
	return f(ctx, actorID, action, scope)
}
