// Package rolegate implements approval.RoleGate over role assignments.
//
// An actor holds a role on a scope (course, department, faculty or
// university). A role on a broader scope covers every narrower scope below
// it, so an exam officer assigned to a faculty may act on every department of
// that faculty. The action → roles policy lives here, not in the engine.
package rolegate

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/fastresult/results-core/internal/domain/approval"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONTRACTS
// ══════════════════════════════════════════════════════════════════════════════

// Assignment grants an actor a role on a scope.
type Assignment struct {
	ActorID string
	Role    approval.Role
	Scope   approval.ScopeKey
}

// AssignmentSource lists the roles an actor holds.
type AssignmentSource interface {
	AssignmentsFor(ctx context.Context, actorID string) ([]Assignment, error)
}

// Hierarchy resolves a scope to itself followed by every enclosing scope,
// narrowest first (course → department → faculty → university).
type Hierarchy interface {
	Ancestors(ctx context.Context, scope approval.ScopeKey) ([]approval.ScopeKey, error)
}

// ══════════════════════════════════════════════════════════════════════════════
// POLICY
// ══════════════════════════════════════════════════════════════════════════════

// Policy maps an action onto the roles allowed to perform it.
type Policy map[approval.Action][]approval.Role

// DefaultPolicy returns the university's standard approval policy.
func DefaultPolicy() Policy {
	return Policy{
		approval.ActionEdit:       {approval.RoleLecturer},
		approval.ActionSubmit:     {approval.RoleLecturer},
		approval.ActionReview:     {approval.RoleHOD, approval.RoleExamOfficer},
		approval.ActionHODApprove: {approval.RoleHOD},
		approval.ActionApprove:    {approval.RoleExamOfficer},
		approval.ActionPublish:    {approval.RoleExamOfficer, approval.RoleUniversityAdmin},
		approval.ActionReturn:     {approval.RoleHOD, approval.RoleExamOfficer, approval.RoleDean},
		approval.ActionReject:     {approval.RoleExamOfficer},
	}
}

// Allows reports whether role may perform action.
func (p Policy) Allows(action approval.Action, role approval.Role) bool {
	for _, r := range p[action] {
		if r == role {
			return true
		}
	}
	return false
}

// ══════════════════════════════════════════════════════════════════════════════
// GATE
// ══════════════════════════════════════════════════════════════════════════════

// Gate implements approval.RoleGate.
type Gate struct {
	assignments AssignmentSource
	hierarchy   Hierarchy
	policy      Policy
	logger      *slog.Logger
}

// Option configures a Gate.
type Option func(*Gate)

// WithPolicy replaces the default policy.
func WithPolicy(p Policy) Option {
	return func(g *Gate) {
		if p != nil {
			g.policy = p
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(g *Gate) {
		if l != nil {
			g.logger = l
		}
	}
}

// New creates a Gate.
func New(assignments AssignmentSource, hierarchy Hierarchy, opts ...Option) *Gate {
	g := &Gate{
		assignments: assignments,
		hierarchy:   hierarchy,
		policy:      DefaultPolicy(),
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Authorize implements approval.RoleGate.
func (g *Gate) Authorize(ctx context.Context, actorID string, action approval.Action, scope approval.ScopeKey) (bool, error) {
	if len(g.policy[action]) == 0 {
		return false, nil
	}

	held, err := g.assignments.AssignmentsFor(ctx, actorID)
	if err != nil {
		return false, fmt.Errorf("failed to load role assignments: %w", err)
	}
	if len(held) == 0 {
		return false, nil
	}

	chain, err := g.hierarchy.Ancestors(ctx, scope)
	if err != nil {
		return false, fmt.Errorf("failed to resolve scope %s: %w", scope, err)
	}

	for _, a := range held {
		if !g.policy.Allows(action, a.Role) {
			continue
		}
		for _, s := range chain {
			if a.Scope == s {
				g.logger.Debug("authorized",
					"actor_id", actorID,
					"action", action,
					"scope", scope.String(),
					"role", a.Role,
					"via", a.Scope.String(),
				)
				return true, nil
			}
		}
	}
	return false, nil
}

var _ approval.RoleGate = (*Gate)(nil)
