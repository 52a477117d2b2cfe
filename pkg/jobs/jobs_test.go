package jobs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	thoriumerrors "github.com/thorium-sh/thorium/pkg/errors"
	"github.com/thorium-sh/thorium/pkg/types"
)

// fakeStore is a minimal in-memory Store, independent of
// pkg/storage/memstore, so these tests exercise the Engine's
// transition logic in isolation.
type fakeStore struct {
	jobs map[string]*types.Job
}

func newFakeStore() *fakeStore {
	return &fakeStore{jobs: map[string]*types.Job{}}
}

func (f *fakeStore) CreateJob(j *types.Job) error {
	f.jobs[j.ID] = j
	return nil
}

func (f *fakeStore) GetJob(id string) (*types.Job, error) {
	j, ok := f.jobs[id]
	if !ok {
		return nil, nil
	}
	cp := *j
	return &cp, nil
}

func (f *fakeStore) UpdateJob(j *types.Job) error {
	if _, ok := f.jobs[j.ID]; !ok {
		return thoriumerrors.NewNotFound("job not found")
	}
	cp := *j
	f.jobs[j.ID] = &cp
	return nil
}

func (f *fakeStore) ClaimJobs(group, pipeline string, stage int, worker string, limit int) ([]*types.Job, error) {
	var out []*types.Job
	for _, j := range f.jobs {
		if j.Group == group && j.Pipeline == pipeline && j.Stage == stage && j.Status == types.JobCreated {
			j.Status = types.JobRunning
			j.Worker = worker
			out = append(out, j)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (f *fakeStore) ListCreatedByRequisition() (map[types.Requisition][]*types.Job, error) {
	return nil, nil
}

func (f *fakeStore) ListRunningByRequisition() (map[types.Requisition][]*types.Job, error) {
	return nil, nil
}

func (f *fakeStore) BulkReset(jobIDs []string, reason, requestor string) error {
	for _, id := range jobIDs {
		j, ok := f.jobs[id]
		if !ok || j.Status.Terminal() {
			continue
		}
		j.Status = types.JobCreated
		j.Worker = ""
	}
	return nil
}

func (f *fakeStore) DeadlineStream(scaler types.ScalerKind, start, end time.Time, skip, limit int) ([]*types.Job, error) {
	return nil, nil
}

func (f *fakeStore) RunningStream(scaler types.ScalerKind, start, end time.Time, skip, limit int) ([]*types.Job, error) {
	return nil, nil
}

func (f *fakeStore) DeleteJobsForReaction(reactionID string) error { return nil }

func (f *fakeStore) ListJobsByReactionStage(reactionID string, stage int) ([]*types.Job, error) {
	return nil, nil
}

func (f *fakeStore) ListJobsByWorker(worker string) ([]*types.Job, error) { return nil, nil }

func testReaction() *types.Reaction {
	return &types.Reaction{
		ID:                "r1",
		Group:              "acme",
		Pipeline:           "scan",
		Creator:            "alice",
		CurrentStageIndex:  0,
		Samples:            []string{"deadbeef"},
		Args:               map[int]types.GenericJobArgs{0: {Positional: []string{"--fast"}}},
		ParentEphemeral:    map[int][]string{0: nil},
	}
}

func TestCreateMaterialisesJob(t *testing.T) {
	e := New(newFakeStore())
	r := testReaction()
	deadline := time.Now().Add(time.Hour)
	j, err := e.Create(r, types.ImageJobInfo{Image: "scanner:v1", Scaler: types.ScalerK8s}, deadline)
	require.NoError(t, err)
	assert.Equal(t, types.JobCreated, j.Status)
	assert.Equal(t, "scanner:v1", j.Image)
	assert.Equal(t, r.ID, j.Reaction)
	assert.Equal(t, r.Samples, j.Samples)
}

func TestClaimBindsWorkerAndRespectsLimit(t *testing.T) {
	store := newFakeStore()
	e := New(store)
	r := testReaction()
	for i := 0; i < 3; i++ {
		_, err := e.Create(r, types.ImageJobInfo{Image: "scanner:v1"}, time.Now().Add(time.Hour))
		require.NoError(t, err)
	}
	claimed, err := e.Claim("acme", "scan", 0, "worker-1", 2)
	require.NoError(t, err)
	assert.Len(t, claimed, 2)
}

func TestClaimRejectsOutOfRangeLimit(t *testing.T) {
	e := New(newFakeStore())
	_, err := e.Claim("acme", "scan", 0, "worker-1", 0)
	assert.Error(t, err)
	_, err = e.Claim("acme", "scan", 0, "worker-1", 101)
	assert.Error(t, err)
}

func TestProceedRequiresOwningWorker(t *testing.T) {
	store := newFakeStore()
	e := New(store)
	r := testReaction()
	j, err := e.Create(r, types.ImageJobInfo{Image: "scanner:v1"}, time.Now().Add(time.Hour))
	require.NoError(t, err)
	_, err = store.ClaimJobs(r.Group, r.Pipeline, 0, "worker-1", 1)
	require.NoError(t, err)

	_, err = e.Proceed(j.ID, "worker-2")
	assert.Error(t, err)

	done, err := e.Proceed(j.ID, "worker-1")
	require.NoError(t, err)
	assert.Equal(t, types.JobCompleted, done.Status)
}

func TestErrorTransitionsToFailed(t *testing.T) {
	store := newFakeStore()
	e := New(store)
	r := testReaction()
	j, _ := e.Create(r, types.ImageJobInfo{Image: "scanner:v1"}, time.Now().Add(time.Hour))
	store.ClaimJobs(r.Group, r.Pipeline, 0, "worker-1", 1)

	failed, err := e.Error(j.ID, "worker-1", "boom")
	require.NoError(t, err)
	assert.Equal(t, types.JobFailed, failed.Status)
}

func TestSleepRequiresGeneratorJob(t *testing.T) {
	store := newFakeStore()
	e := New(store)
	r := testReaction()
	j, _ := e.Create(r, types.ImageJobInfo{Image: "scanner:v1", Generator: false}, time.Now().Add(time.Hour))
	store.ClaimJobs(r.Group, r.Pipeline, 0, "worker-1", 1)

	_, err := e.Sleep(j.ID, "worker-1", "ckpt-1")
	assert.Error(t, err)
}

func TestSleepThenWakeSleepingReArmsJob(t *testing.T) {
	store := newFakeStore()
	e := New(store)
	r := testReaction()
	j, _ := e.Create(r, types.ImageJobInfo{Image: "scanner:v1", Generator: true}, time.Now().Add(time.Hour))
	store.ClaimJobs(r.Group, r.Pipeline, 0, "worker-1", 1)

	sleeping, err := e.Sleep(j.ID, "worker-1", "ckpt-1")
	require.NoError(t, err)
	assert.Equal(t, types.JobSleeping, sleeping.Status)

	reArmed, err := e.WakeSleeping(j.ID)
	require.NoError(t, err)
	assert.Equal(t, types.JobCreated, reArmed.Status)
	assert.Empty(t, reArmed.Worker)
	assert.Equal(t, "ckpt-1", reArmed.Args.Opts["checkpoint"])
}

func TestWakeSleepingRejectsNonSleepingJob(t *testing.T) {
	store := newFakeStore()
	e := New(store)
	r := testReaction()
	j, _ := e.Create(r, types.ImageJobInfo{Image: "scanner:v1"}, time.Now().Add(time.Hour))

	_, err := e.WakeSleeping(j.ID)
	assert.Error(t, err)
}

func TestCheckpointRewritesArgsWithoutChangingStatus(t *testing.T) {
	store := newFakeStore()
	e := New(store)
	r := testReaction()
	j, _ := e.Create(r, types.ImageJobInfo{Image: "scanner:v1"}, time.Now().Add(time.Hour))
	store.ClaimJobs(r.Group, r.Pipeline, 0, "worker-1", 1)

	updated, err := e.Checkpoint(j.ID, "worker-1", "ckpt-1")
	require.NoError(t, err)
	assert.Equal(t, types.JobRunning, updated.Status)
	assert.Equal(t, "worker-1", updated.Worker)
	assert.Equal(t, "ckpt-1", updated.Args.Kwargs["checkpoint"])
}

func TestCheckpointRejectsNonRunningJob(t *testing.T) {
	store := newFakeStore()
	e := New(store)
	r := testReaction()
	j, _ := e.Create(r, types.ImageJobInfo{Image: "scanner:v1"}, time.Now().Add(time.Hour))

	_, err := e.Checkpoint(j.ID, "worker-1", "ckpt-1")
	assert.Error(t, err)
}

func TestCheckpointRejectsWrongWorker(t *testing.T) {
	store := newFakeStore()
	e := New(store)
	r := testReaction()
	j, _ := e.Create(r, types.ImageJobInfo{Image: "scanner:v1"}, time.Now().Add(time.Hour))
	store.ClaimJobs(r.Group, r.Pipeline, 0, "worker-1", 1)

	_, err := e.Checkpoint(j.ID, "worker-2", "ckpt-1")
	assert.Error(t, err)
}

func TestBulkResetSkipsTerminalJobs(t *testing.T) {
	store := newFakeStore()
	e := New(store)
	r := testReaction()
	running, _ := e.Create(r, types.ImageJobInfo{Image: "scanner:v1"}, time.Now().Add(time.Hour))
	store.ClaimJobs(r.Group, r.Pipeline, 0, "worker-1", 1)
	done, _ := e.Proceed(running.ID, "worker-1")
	assert.Equal(t, types.JobCompleted, done.Status)

	err := e.BulkReset([]string{running.ID}, "operator requested", "admin")
	require.NoError(t, err)

	got, err := store.GetJob(running.ID)
	require.NoError(t, err)
	assert.Equal(t, types.JobCompleted, got.Status, "terminal jobs must not be reset")
}

func TestToGenericFlattensArgs(t *testing.T) {
	j := &types.Job{
		ID:       "j1",
		Image:    "scanner:v1",
		Deadline: time.Unix(1000, 0),
		Args: types.GenericJobArgs{
			Positional: []string{"input.bin"},
			Switches:   []string{"verbose"},
			Kwargs:     map[string]string{"mode": "fast"},
			Opts:       map[string]string{"retries": "3"},
		},
	}
	g := ToGeneric(j)
	assert.Contains(t, g.Args, "input.bin")
	assert.Contains(t, g.Args, "--verbose")
	assert.Contains(t, g.Args, "--mode")
	assert.Contains(t, g.Args, "fast")
	assert.Contains(t, g.Args, "--retries=3")
	assert.Equal(t, int64(1000), g.Deadline)
}
