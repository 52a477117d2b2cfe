package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/thorium-sh/thorium/pkg/types"
)

func group() *types.Group {
	g := types.NewGroup("corn")
	g.Owners["alice"] = struct{}{}
	g.Managers["bob"] = struct{}{}
	g.Users["carol"] = struct{}{}
	g.Allowed[types.AllowCreateReactions] = struct{}{}
	return g
}

func TestEditable(t *testing.T) {
	g := group()
	assert.NoError(t, Editable(g, &types.User{Username: "alice"}))
	assert.NoError(t, Editable(g, &types.User{Username: "bob"}))
	assert.Error(t, Editable(g, &types.User{Username: "carol"}))
	assert.NoError(t, Editable(g, &types.User{Username: "dave", Role: types.RoleAdmin}))
}

func TestModifiable(t *testing.T) {
	g := group()
	assert.NoError(t, Modifiable(g, &types.User{Username: "alice"}))
	assert.Error(t, Modifiable(g, &types.User{Username: "bob"}))
}

func TestAllowed(t *testing.T) {
	g := group()
	assert.NoError(t, Allowed(g, types.AllowCreateReactions))
	assert.Error(t, Allowed(g, types.AllowCreateImages))
}

func TestDeveloper(t *testing.T) {
	g := group()
	g.DeveloperScalers["carol"] = map[types.ScalerKind]struct{}{types.ScalerK8s: {}}
	assert.NoError(t, Developer(g, &types.User{Username: "carol", Role: types.RoleUser}, types.ScalerK8s))
	assert.Error(t, Developer(g, &types.User{Username: "carol", Role: types.RoleUser}, types.ScalerWindows))
}

func TestGroupMember(t *testing.T) {
	g := group()
	assert.True(t, g.Member("alice"))
	assert.True(t, g.Member("carol"))
	assert.False(t, g.Member("eve"))
}
