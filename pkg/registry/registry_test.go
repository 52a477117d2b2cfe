package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thorium-sh/thorium/pkg/identity"
	"github.com/thorium-sh/thorium/pkg/storage/memstore"
	"github.com/thorium-sh/thorium/pkg/types"
)

func testRegistry(t *testing.T) (*Registry, *memstore.MemStore) {
	store := memstore.New()
	idReg := identity.NewRegistry(store)
	return New(store, idReg), store
}

func ownerGroup(t *testing.T, store *memstore.MemStore, name types.GroupName, owner string, allow ...types.AllowAction) *types.Group {
	g := types.NewGroup(name)
	g.Owners[owner] = struct{}{}
	for _, a := range allow {
		g.Allowed[a] = struct{}{}
	}
	require.NoError(t, store.PutGroup(g))
	return g
}

func TestCreateImageRequiresAllowedAction(t *testing.T) {
	r, store := testRegistry(t)
	g := ownerGroup(t, store, "acme", "alice")
	user := &types.User{Username: "alice"}

	err := r.CreateImage(g, user, &types.Image{Name: "scanner"})
	assert.Error(t, err, "create_images is not in the group's allow-list")
}

func TestCreateImageRejectsInvalidName(t *testing.T) {
	r, store := testRegistry(t)
	g := ownerGroup(t, store, "acme", "alice", types.AllowCreateImages)
	user := &types.User{Username: "alice"}

	err := r.CreateImage(g, user, &types.Image{Name: "Scanner_NOT_VALID!"})
	assert.Error(t, err)
}

func TestCreateImageSucceeds(t *testing.T) {
	r, store := testRegistry(t)
	g := ownerGroup(t, store, "acme", "alice", types.AllowCreateImages)
	user := &types.User{Username: "alice"}

	img := &types.Image{Name: "scanner", Scaler: types.ScalerK8s}
	require.NoError(t, r.CreateImage(g, user, img))

	got, err := r.GetImage("acme", "scanner")
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Creator)
	assert.Equal(t, "acme", got.Group)
	assert.NotNil(t, got.UsedBy)

	_ = store
}

func TestDeleteImageRefusesWhileReferenced(t *testing.T) {
	r, store := testRegistry(t)
	g := ownerGroup(t, store, "acme", "alice", types.AllowCreateImages, types.AllowCreatePipelines)
	user := &types.User{Username: "alice", Role: types.RoleDeveloper}

	require.NoError(t, r.CreateImage(g, user, &types.Image{Name: "scanner", Scaler: types.ScalerK8s}))
	p := &types.Pipeline{Name: "scan-pipeline", Order: []types.Stage{types.NewStage("scanner")}}
	require.NoError(t, r.CreatePipeline(g, user, p))

	err := r.DeleteImage(g, user, "scanner")
	assert.Error(t, err, "image is referenced by scan-pipeline")

	require.NoError(t, r.DeletePipeline(g, user, "scan-pipeline"))
	assert.NoError(t, r.DeleteImage(g, user, "scanner"))
}

func TestCreatePipelineMaintainsUsedBy(t *testing.T) {
	r, store := testRegistry(t)
	g := ownerGroup(t, store, "acme", "alice", types.AllowCreateImages, types.AllowCreatePipelines)
	user := &types.User{Username: "alice"}

	require.NoError(t, r.CreateImage(g, user, &types.Image{Name: "scanner", Scaler: types.ScalerK8s}))
	require.NoError(t, r.CreateImage(g, user, &types.Image{Name: "reporter", Scaler: types.ScalerK8s}))

	p := &types.Pipeline{
		Name: "scan-pipeline",
		Order: []types.Stage{
			types.NewStage("scanner"),
			types.NewStage("reporter"),
		},
	}
	require.NoError(t, r.CreatePipeline(g, user, p))

	scanner, err := r.GetImage("acme", "scanner")
	require.NoError(t, err)
	_, used := scanner.UsedBy["acme/scan-pipeline"]
	assert.True(t, used)
}

func TestUpdatePipelineDiffsUsedBy(t *testing.T) {
	r, store := testRegistry(t)
	g := ownerGroup(t, store, "acme", "alice", types.AllowCreateImages, types.AllowCreatePipelines)
	user := &types.User{Username: "alice"}

	require.NoError(t, r.CreateImage(g, user, &types.Image{Name: "scanner", Scaler: types.ScalerK8s}))
	require.NoError(t, r.CreateImage(g, user, &types.Image{Name: "reporter", Scaler: types.ScalerK8s}))

	p := &types.Pipeline{Name: "scan-pipeline", Order: []types.Stage{types.NewStage("scanner")}}
	require.NoError(t, r.CreatePipeline(g, user, p))

	updated := &types.Pipeline{
		Group: "acme",
		Name:  "scan-pipeline",
		Order: []types.Stage{types.NewStage("reporter")},
	}
	require.NoError(t, r.UpdatePipeline(g, user, updated))

	scanner, err := r.GetImage("acme", "scanner")
	require.NoError(t, err)
	_, stillUsed := scanner.UsedBy["acme/scan-pipeline"]
	assert.False(t, stillUsed)

	reporter, err := r.GetImage("acme", "reporter")
	require.NoError(t, err)
	_, nowUsed := reporter.UsedBy["acme/scan-pipeline"]
	assert.True(t, nowUsed)
}

func TestBanImageThenUnban(t *testing.T) {
	r, store := testRegistry(t)
	g := ownerGroup(t, store, "acme", "alice", types.AllowCreateImages)
	user := &types.User{Username: "alice"}
	require.NoError(t, r.CreateImage(g, user, &types.Image{Name: "scanner", Scaler: types.ScalerK8s}))

	require.NoError(t, r.BanImage(g, user, "scanner", "suspicious behaviour", types.BanGeneric))
	banned, err := r.GetImage("acme", "scanner")
	require.NoError(t, err)
	assert.True(t, banned.Banned())

	var banID string
	for id := range banned.Bans {
		banID = id
	}
	require.NoError(t, r.UnbanImage(g, user, "scanner", banID))
	unbanned, err := r.GetImage("acme", "scanner")
	require.NoError(t, err)
	assert.False(t, unbanned.Banned())
}

func TestBanPipelineRequiresOwner(t *testing.T) {
	r, store := testRegistry(t)
	g := ownerGroup(t, store, "acme", "alice", types.AllowCreatePipelines)
	g.Users["bob"] = struct{}{}
	require.NoError(t, store.PutGroup(g))

	owner := &types.User{Username: "alice"}
	member := &types.User{Username: "bob"}
	require.NoError(t, r.CreatePipeline(g, owner, &types.Pipeline{Name: "p1", Order: []types.Stage{types.NewStage("x")}}))

	err := r.BanPipeline(g, member, "p1", "bad actor")
	assert.Error(t, err, "plain members cannot modify a pipeline")

	assert.NoError(t, r.BanPipeline(g, owner, "p1", "bad actor"))
}
