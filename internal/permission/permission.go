// Package permission decides whether an actor may perform an operation.
package permission

import (
	"context"
	"slices"

	"github.com/twiced-technology-gmbh/trackflow/internal/config"
)

// Capability keys checked by the workflow engine.
const (
	IssueCreate     = "issue.create"
	IssueEdit       = "issue.edit"
	IssueDelete     = "issue.delete"
	IssueTransition = "issue.transition"
	SprintPlan      = "sprint.plan"
	SprintManage    = "sprint.manage"
	EpicManage      = "epic.manage"
	ProjectManage   = "project.manage"
)

// Wildcard grants every capability.
const Wildcard = "*"

// Capabilities lists every key the engine checks.
var Capabilities = []string{
	IssueCreate, IssueEdit, IssueDelete, IssueTransition,
	SprintPlan, SprintManage, EpicManage, ProjectManage,
}

// Actor identifies who performs an operation.
type Actor struct {
	ID string `json:"id"`
}

// String returns the actor ID.
func (a Actor) String() string { return a.ID }

// Gate answers capability questions. Implementations must be safe for
// concurrent use.
type Gate interface {
	HasCapability(ctx context.Context, actor Actor, key string) bool
}

// AllowAll grants everything. Used when no roles are configured.
type AllowAll struct{}

// HasCapability implements Gate.
func (AllowAll) HasCapability(context.Context, Actor, string) bool { return true }

// GateFunc adapts a function to Gate.
type GateFunc func(ctx context.Context, actor Actor, key string) bool

// HasCapability implements Gate.
func (f GateFunc) HasCapability(ctx context.Context, actor Actor, key string) bool {
	return f(ctx, actor, key)
}

// RoleGate grants capabilities through roles. Actors without an explicit
// role assignment get the default role, if any.
type RoleGate struct {
	roles       map[string][]string
	actors      map[string][]string
	defaultRole string
}

// NewRoleGate builds a RoleGate from the permissions section of the config.
func NewRoleGate(pc config.PermissionsConfig) *RoleGate {
	g := &RoleGate{
		roles:       make(map[string][]string, len(pc.Roles)),
		actors:      make(map[string][]string, len(pc.Actors)),
		defaultRole: pc.DefaultRole,
	}
	for role, caps := range pc.Roles {
		g.roles[role] = slices.Clone(caps)
	}
	for actor, roles := range pc.Actors {
		g.actors[actor] = slices.Clone(roles)
	}
	return g
}

// HasCapability implements Gate.
func (g *RoleGate) HasCapability(_ context.Context, actor Actor, key string) bool {
	for _, role := range g.RolesOf(actor) {
		caps := g.roles[role]
		if slices.Contains(caps, Wildcard) || slices.Contains(caps, key) {
			return true
		}
	}
	return false
}

// RolesOf returns the roles the actor holds.
func (g *RoleGate) RolesOf(actor Actor) []string {
	if roles, ok := g.actors[actor.ID]; ok {
		return roles
	}
	if g.defaultRole != "" {
		return []string{g.defaultRole}
	}
	return nil
}

// FromConfig returns a RoleGate when roles are configured, AllowAll otherwise.
func FromConfig(pc config.PermissionsConfig) Gate {
	if !pc.Enabled() {
		return AllowAll{}
	}
	return NewRoleGate(pc)
}
