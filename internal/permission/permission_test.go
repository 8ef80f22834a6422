package permission

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/twiced-technology-gmbh/trackflow/internal/config"
)

func TestRoleGate(t *testing.T) {
	pc := config.PermissionsConfig{
		Roles:       config.DefaultRoles,
		Actors:      map[string][]string{"ana": {"admin"}, "bo": {"developer"}, "cy": {"viewer"}},
		DefaultRole: "viewer",
	}
	g := FromConfig(pc)
	ctx := context.Background()

	tests := []struct {
		actor string
		key   string
		want  bool
	}{
		{"ana", ProjectManage, true},
		{"ana", IssueDelete, true},
		{"bo", IssueTransition, true},
		{"bo", SprintPlan, true},
		{"bo", SprintManage, false},
		{"bo", IssueDelete, false},
		{"cy", IssueTransition, false},
		{"stranger", IssueCreate, false},
	}
	for _, tt := range tests {
		t.Run(tt.actor+"/"+tt.key, func(t *testing.T) {
			assert.Equal(t, tt.want, g.HasCapability(ctx, Actor{ID: tt.actor}, tt.key))
		})
	}
}

func TestRoleGateDefaultRole(t *testing.T) {
	g := NewRoleGate(config.PermissionsConfig{
		Roles:       map[string][]string{"member": {IssueCreate}},
		DefaultRole: "member",
	})
	assert.Equal(t, []string{"member"}, g.RolesOf(Actor{ID: "anyone"}))
	assert.True(t, g.HasCapability(context.Background(), Actor{ID: "anyone"}, IssueCreate))

	noDefault := NewRoleGate(config.PermissionsConfig{Roles: map[string][]string{"member": {IssueCreate}}})
	assert.Empty(t, noDefault.RolesOf(Actor{ID: "anyone"}))
	assert.False(t, noDefault.HasCapability(context.Background(), Actor{ID: "anyone"}, IssueCreate))
}

func TestFromConfigWithoutRolesAllowsAll(t *testing.T) {
	g := FromConfig(config.PermissionsConfig{})
	assert.IsType(t, AllowAll{}, g)
	for _, key := range Capabilities {
		assert.True(t, g.HasCapability(context.Background(), Actor{}, key))
	}
}

func TestGateFunc(t *testing.T) {
	g := GateFunc(func(_ context.Context, a Actor, key string) bool {
		return a.ID == "ana" && key == IssueEdit
	})
	assert.True(t, g.HasCapability(context.Background(), Actor{ID: "ana"}, IssueEdit))
	assert.False(t, g.HasCapability(context.Background(), Actor{ID: "ana"}, IssueDelete))
}
