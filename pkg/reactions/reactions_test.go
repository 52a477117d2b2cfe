package reactions

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thorium-sh/thorium/pkg/identity"
	"github.com/thorium-sh/thorium/pkg/jobs"
	"github.com/thorium-sh/thorium/pkg/registry"
	"github.com/thorium-sh/thorium/pkg/storage/memstore"
	"github.com/thorium-sh/thorium/pkg/types"
)

func testEngine(t *testing.T) (*Engine, *registry.Registry, *memstore.MemStore) {
	t.Helper()
	store := memstore.New()
	idReg := identity.NewRegistry(store)
	reg := registry.New(store, idReg)
	jobEngine := jobs.New(store)
	return New(store, jobEngine, reg), reg, store
}

func seedTwoStagePipeline(t *testing.T, reg *registry.Registry, store *memstore.MemStore) (*types.Group, *types.User) {
	t.Helper()
	g := types.NewGroup("acme")
	g.Owners["alice"] = struct{}{}
	g.Allowed[types.AllowCreateImages] = struct{}{}
	g.Allowed[types.AllowCreatePipelines] = struct{}{}
	require.NoError(t, store.PutGroup(g))
	user := &types.User{Username: "alice"}

	require.NoError(t, reg.CreateImage(g, user, &types.Image{Name: "scanner", Scaler: types.ScalerBareMetal}))
	require.NoError(t, reg.CreateImage(g, user, &types.Image{Name: "reporter", Scaler: types.ScalerBareMetal}))

	p := &types.Pipeline{
		Name: "scan-pipeline",
		Order: []types.Stage{
			types.NewStage("scanner"),
			types.NewStage("reporter"),
		},
	}
	require.NoError(t, reg.CreatePipeline(g, user, p))
	return g, user
}

func TestCreateMaterialisesFirstStageJobs(t *testing.T) {
	e, reg, store := testEngine(t)
	seedTwoStagePipeline(t, reg, store)

	r, err := e.Create(types.ReactionRequest{
		Group:       "acme",
		Pipeline:    "scan-pipeline",
		Samples:     []string{"deadbeef"},
		RequestedBy: "alice",
	})
	require.NoError(t, err)
	assert.Equal(t, types.ReactionStarted, r.Status)
	assert.Equal(t, 0, r.CurrentStageIndex)
	assert.Len(t, r.StageImages, 2)
}

func TestCreateRejectsBannedPipeline(t *testing.T) {
	e, reg, store := testEngine(t)
	g, user := seedTwoStagePipeline(t, reg, store)
	require.NoError(t, reg.BanPipeline(g, user, "scan-pipeline", "compromised"))

	_, err := e.Create(types.ReactionRequest{
		Group:       "acme",
		Pipeline:    "scan-pipeline",
		Samples:     []string{"deadbeef"},
		RequestedBy: "alice",
	})
	assert.Error(t, err)
}

func TestCreateRejectsExcessiveTriggerDepth(t *testing.T) {
	e, reg, store := testEngine(t)
	seedTwoStagePipeline(t, reg, store)

	_, err := e.Create(types.ReactionRequest{
		Group:        "acme",
		Pipeline:     "scan-pipeline",
		Samples:      []string{"deadbeef"},
		RequestedBy:  "alice",
		TriggerDepth: maxTriggerDepth + 1,
	})
	assert.Error(t, err)
}

func TestAdvanceStageMaterialisesNextStage(t *testing.T) {
	e, reg, store := testEngine(t)
	seedTwoStagePipeline(t, reg, store)

	r, err := e.Create(types.ReactionRequest{
		Group:       "acme",
		Pipeline:    "scan-pipeline",
		Samples:     []string{"deadbeef"},
		RequestedBy: "alice",
	})
	require.NoError(t, err)

	advanced, err := e.AdvanceStage(r.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, advanced.CurrentStageIndex)
	assert.Equal(t, types.ReactionStarted, advanced.Status)
}

func TestAdvanceStageCompletesOnLastStage(t *testing.T) {
	e, reg, store := testEngine(t)
	seedTwoStagePipeline(t, reg, store)

	r, err := e.Create(types.ReactionRequest{
		Group:       "acme",
		Pipeline:    "scan-pipeline",
		Samples:     []string{"deadbeef"},
		RequestedBy: "alice",
	})
	require.NoError(t, err)

	_, err = e.AdvanceStage(r.ID)
	require.NoError(t, err)
	completed, err := e.AdvanceStage(r.ID)
	require.NoError(t, err)
	assert.Equal(t, types.ReactionCompleted, completed.Status)
}

func TestSpawnSubReactionLinksParent(t *testing.T) {
	e, reg, store := testEngine(t)
	seedTwoStagePipeline(t, reg, store)

	parent, err := e.Create(types.ReactionRequest{
		Group:       "acme",
		Pipeline:    "scan-pipeline",
		Samples:     []string{"deadbeef"},
		RequestedBy: "alice",
	})
	require.NoError(t, err)

	child, err := e.SpawnSubReaction(parent, map[int]types.GenericJobArgs{}, []string{"child-sample"})
	require.NoError(t, err)
	assert.Equal(t, parent.ID, child.Parent)

	done, err := e.SubReactionsDone(parent.ID)
	require.NoError(t, err)
	assert.False(t, done, "freshly created sub-reaction has not reached a terminal status")
}

func TestSubReactionsDoneTrueWhenNoChildren(t *testing.T) {
	e, reg, store := testEngine(t)
	seedTwoStagePipeline(t, reg, store)

	parent, err := e.Create(types.ReactionRequest{
		Group:       "acme",
		Pipeline:    "scan-pipeline",
		Samples:     []string{"deadbeef"},
		RequestedBy: "alice",
	})
	require.NoError(t, err)

	done, err := e.SubReactionsDone(parent.ID)
	require.NoError(t, err)
	assert.True(t, done)
}

func TestFailTransitionsStatus(t *testing.T) {
	e, reg, store := testEngine(t)
	seedTwoStagePipeline(t, reg, store)

	r, err := e.Create(types.ReactionRequest{
		Group:       "acme",
		Pipeline:    "scan-pipeline",
		Samples:     []string{"deadbeef"},
		RequestedBy: "alice",
	})
	require.NoError(t, err)

	require.NoError(t, e.Fail(r.ID))
	got, err := e.Get(r.ID)
	require.NoError(t, err)
	assert.Equal(t, types.ReactionFailed, got.Status)
}

func TestOnJobProceedAdvancesOnlyWhenStageFullyComplete(t *testing.T) {
	e, reg, store := testEngine(t)
	g, user := seedTwoStagePipeline(t, reg, store)
	require.NoError(t, reg.CreateImage(g, user, &types.Image{Name: "secondscan", Scaler: types.ScalerBareMetal}))
	p, err := store.GetPipeline("acme", "scan-pipeline")
	require.NoError(t, err)
	p.Order[0]["secondscan"] = struct{}{}
	require.NoError(t, store.UpdatePipeline(p))

	r, err := e.Create(types.ReactionRequest{
		Group:       "acme",
		Pipeline:    "scan-pipeline",
		Samples:     []string{"deadbeef"},
		RequestedBy: "alice",
	})
	require.NoError(t, err)

	jobsInStage, err := e.jobs.ListByReactionStage(r.ID, 0)
	require.NoError(t, err)
	require.Len(t, jobsInStage, 2)
	_, err = e.jobs.Claim("acme", "scan-pipeline", 0, "worker-1", 2)
	require.NoError(t, err)

	_, err = e.jobs.Proceed(jobsInStage[0].ID, "worker-1")
	require.NoError(t, err)
	require.NoError(t, e.OnJobProceed(r.ID, 0))
	unchanged, err := e.Get(r.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, unchanged.CurrentStageIndex, "reaction must not advance while a stage job is still outstanding")

	_, err = e.jobs.Proceed(jobsInStage[1].ID, "worker-1")
	require.NoError(t, err)
	require.NoError(t, e.OnJobProceed(r.ID, 0))
	advanced, err := e.Get(r.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, advanced.CurrentStageIndex)
}

func TestOnJobFailedFailsReactionImmediately(t *testing.T) {
	e, reg, store := testEngine(t)
	seedTwoStagePipeline(t, reg, store)

	r, err := e.Create(types.ReactionRequest{
		Group:       "acme",
		Pipeline:    "scan-pipeline",
		Samples:     []string{"deadbeef"},
		RequestedBy: "alice",
	})
	require.NoError(t, err)

	require.NoError(t, e.OnJobFailed(r.ID))
	got, err := e.Get(r.ID)
	require.NoError(t, err)
	assert.Equal(t, types.ReactionFailed, got.Status)
}

func TestMaybeResumeParentGeneratorWakesSleepingJobOnceSubReactionsDone(t *testing.T) {
	e, reg, store := testEngine(t)
	g := types.NewGroup("acme")
	g.Owners["alice"] = struct{}{}
	g.Allowed[types.AllowCreateImages] = struct{}{}
	g.Allowed[types.AllowCreatePipelines] = struct{}{}
	require.NoError(t, store.PutGroup(g))
	user := &types.User{Username: "alice"}
	require.NoError(t, reg.CreateImage(g, user, &types.Image{Name: "crawler", Scaler: types.ScalerBareMetal, Generator: true}))
	p := &types.Pipeline{Name: "crawl-pipeline", Order: []types.Stage{types.NewStage("crawler")}}
	require.NoError(t, reg.CreatePipeline(g, user, p))

	parent, err := e.Create(types.ReactionRequest{
		Group:       "acme",
		Pipeline:    "crawl-pipeline",
		Samples:     []string{"deadbeef"},
		RequestedBy: "alice",
	})
	require.NoError(t, err)

	claimed, err := e.jobs.Claim("acme", "crawl-pipeline", 0, "worker-1", 1)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	_, err = e.jobs.Sleep(claimed[0].ID, "worker-1", "ckpt-1")
	require.NoError(t, err)

	child, err := e.SpawnSubReaction(parent, map[int]types.GenericJobArgs{}, []string{"child-sample"})
	require.NoError(t, err)

	require.NoError(t, e.OnJobFailed(child.ID))

	stageJobs, err := e.jobs.ListByReactionStage(parent.ID, 0)
	require.NoError(t, err)
	require.Len(t, stageJobs, 1)
	assert.Equal(t, types.JobCreated, stageJobs[0].Status, "sleeping generator job should be woken once sub-reactions finish")
}

func TestBulkCreateByUserContinuesPastFailures(t *testing.T) {
	e, reg, store := testEngine(t)
	seedTwoStagePipeline(t, reg, store)

	created, errs := e.BulkCreateByUser([]types.ReactionRequest{
		{Group: "acme", Pipeline: "scan-pipeline", Samples: []string{"good"}, RequestedBy: "alice"},
		{Group: "acme", Pipeline: "missing-pipeline", Samples: []string{"bad"}, RequestedBy: "alice"},
	})
	assert.Len(t, created, 1)
	assert.Len(t, errs, 1)
}

func TestDeleteCascadesToJobsThenRemovesReaction(t *testing.T) {
	e, reg, store := testEngine(t)
	seedTwoStagePipeline(t, reg, store)

	r, err := e.Create(types.ReactionRequest{
		Group:       "acme",
		Pipeline:    "scan-pipeline",
		Samples:     []string{"deadbeef"},
		RequestedBy: "alice",
	})
	require.NoError(t, err)

	var deletedFor string
	require.NoError(t, e.Delete(r.ID, func(reactionID string) error {
		deletedFor = reactionID
		return nil
	}))
	assert.Equal(t, r.ID, deletedFor)

	_, err = e.Get(r.ID)
	assert.Error(t, err)
}
