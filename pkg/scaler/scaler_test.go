package scaler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/apimachinery/pkg/api/resource"

	"github.com/thorium-sh/thorium/pkg/identity"
	"github.com/thorium-sh/thorium/pkg/registry"
	"github.com/thorium-sh/thorium/pkg/storage/memstore"
	"github.com/thorium-sh/thorium/pkg/types"
)

func seedScannerImage(t *testing.T, store *memstore.MemStore, reg *registry.Registry, cpu string) {
	t.Helper()
	g := types.NewGroup("acme")
	g.Owners["alice"] = struct{}{}
	g.Allowed[types.AllowCreateImages] = struct{}{}
	require.NoError(t, store.PutGroup(g))
	user := &types.User{Username: "alice"}
	require.NoError(t, reg.CreateImage(g, user, &types.Image{
		Name:   "scanner",
		Scaler: types.ScalerBareMetal,
		Resources: types.ImageResources{
			CPUMillis: resource.MustParse(cpu),
		},
	}))
}

func seedScanPipeline(t *testing.T, store *memstore.MemStore, reg *registry.Registry) {
	t.Helper()
	g, err := store.GetGroup("acme")
	require.NoError(t, err)
	user := &types.User{Username: "alice"}
	require.NoError(t, reg.CreatePipeline(g, user, &types.Pipeline{
		Name:  "scan-pipeline",
		Order: []types.Stage{types.NewStage("scanner")},
	}))
}

func seedCreatedJob(t *testing.T, store *memstore.MemStore, id, user string) {
	t.Helper()
	require.NoError(t, store.CreateJob(&types.Job{
		ID:       id,
		Group:    "acme",
		Pipeline: "scan-pipeline",
		Creator:  user,
		Image:    "scanner",
		Scaler:   types.ScalerBareMetal,
		Status:   types.JobCreated,
	}))
}

func seedHealthyNode(t *testing.T, store *memstore.MemStore, name, cpu string) {
	t.Helper()
	require.NoError(t, store.PutNode(&types.Node{
		Cluster: "default",
		Name:    name,
		Scaler:  types.ScalerBareMetal,
		Healthy: true,
		Total:   types.ImageResources{CPUMillis: resource.MustParse(cpu)},
		Available: types.ImageResources{
			CPUMillis: resource.MustParse(cpu),
		},
		Workers: map[string]*types.Worker{},
	}))
}

func TestPlanSpawnsForPendingDemand(t *testing.T) {
	store := memstore.New()
	idReg := identity.NewRegistry(store)
	reg := registry.New(store, idReg)
	seedScannerImage(t, store, reg, "500m")
	seedScanPipeline(t, store, reg)
	seedCreatedJob(t, store, "job1", "alice")
	seedHealthyNode(t, store, "node1", "2")

	core := New(store, store, reg, NewFairShare())
	spawns, deletions, errs, err := core.Plan(types.ScalerBareMetal, "default")
	require.NoError(t, err)
	assert.Len(t, spawns, 1)
	assert.Empty(t, deletions)
	assert.Empty(t, errs)
}

func TestPlanErrorsOutBannedImageDemand(t *testing.T) {
	store := memstore.New()
	idReg := identity.NewRegistry(store)
	reg := registry.New(store, idReg)
	seedScannerImage(t, store, reg, "500m")
	seedScanPipeline(t, store, reg)
	seedCreatedJob(t, store, "job1", "alice")
	seedHealthyNode(t, store, "node1", "2")

	g, err := store.GetGroup("acme")
	require.NoError(t, err)
	user := &types.User{Username: "alice"}
	require.NoError(t, reg.BanImage(g, user, "scanner", "compromised", types.BanGeneric))

	core := New(store, store, reg, NewFairShare())
	spawns, _, errs, err := core.Plan(types.ScalerBareMetal, "default")
	require.NoError(t, err)
	assert.Empty(t, spawns)
	require.Len(t, errs, 1)
	assert.Equal(t, "job1", errs[0].JobID)
}

func TestPlanRespectsInsufficientNodeResources(t *testing.T) {
	store := memstore.New()
	idReg := identity.NewRegistry(store)
	reg := registry.New(store, idReg)
	seedScannerImage(t, store, reg, "4")
	seedScanPipeline(t, store, reg)
	seedCreatedJob(t, store, "job1", "alice")
	seedHealthyNode(t, store, "node1", "1")

	core := New(store, store, reg, NewFairShare())
	spawns, _, _, err := core.Plan(types.ScalerBareMetal, "default")
	require.NoError(t, err)
	assert.Empty(t, spawns, "no node has enough CPU for the requested image")
}

func TestPlanDeletesWorkersWithNoPendingWork(t *testing.T) {
	store := memstore.New()
	idReg := identity.NewRegistry(store)
	reg := registry.New(store, idReg)
	seedHealthyNode(t, store, "node1", "2")
	require.NoError(t, store.RegisterWorker(&types.Worker{
		Name: "stale-worker", Cluster: "default", Node: "node1",
		Scaler: types.ScalerBareMetal, User: "alice", Group: "acme",
		Pipeline: "scan-pipeline", Stage: 0,
	}))

	core := New(store, store, reg, NewFairShare())
	_, deletions, _, err := core.Plan(types.ScalerBareMetal, "default")
	require.NoError(t, err)
	require.Len(t, deletions, 1)
	assert.Equal(t, "stale-worker", deletions[0].Name)
}

func TestPlanDeletesWorkersOnUnhealthyNode(t *testing.T) {
	store := memstore.New()
	idReg := identity.NewRegistry(store)
	reg := registry.New(store, idReg)
	require.NoError(t, store.PutNode(&types.Node{
		Cluster: "default", Name: "node1", Scaler: types.ScalerBareMetal,
		Healthy: false,
		Workers: map[string]*types.Worker{
			"w1": {Name: "w1", Cluster: "default", Node: "node1", Scaler: types.ScalerBareMetal},
		},
	}))

	core := New(store, store, reg, NewFairShare())
	_, deletions, _, err := core.Plan(types.ScalerBareMetal, "default")
	require.NoError(t, err)
	require.Len(t, deletions, 1)
	assert.Equal(t, "node shutdown", deletions[0].Reason)
}

func TestFairShareIncrementAndDecrease(t *testing.T) {
	f := NewFairShare()
	f.IncrementOnSpawn("alice")
	f.IncrementOnSpawn("alice")
	assert.Equal(t, 2, f.Rank("alice"))

	f.Decrease(1)
	assert.Equal(t, 1, f.Rank("alice"))

	f.Decrease(5)
	assert.Equal(t, 0, f.Rank("alice"), "rank should floor at zero, never go negative")
}

func TestPlanPrefersLowerFairShareRank(t *testing.T) {
	store := memstore.New()
	idReg := identity.NewRegistry(store)
	reg := registry.New(store, idReg)
	seedScannerImage(t, store, reg, "1")
	seedScanPipeline(t, store, reg)
	seedCreatedJob(t, store, "job-alice", "alice")
	seedCreatedJob(t, store, "job-bob", "bob")
	seedHealthyNode(t, store, "node1", "1")

	fairShare := NewFairShare()
	fairShare.IncrementOnSpawn("alice")
	fairShare.IncrementOnSpawn("alice")

	core := New(store, store, reg, fairShare)
	spawns, _, _, err := core.Plan(types.ScalerBareMetal, "default")
	require.NoError(t, err)
	require.Len(t, spawns, 1, "the single-CPU node can only satisfy one requisition this loop")
	assert.Equal(t, "bob", spawns[0].Requisition.User, "bob has the lower fair-share rank and should be served first")
}
