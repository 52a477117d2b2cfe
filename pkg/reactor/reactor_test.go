package reactor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thorium-sh/thorium/pkg/types"
)

type fakeDesired struct {
	nodes map[string]*types.Node
}

func newFakeDesired() *fakeDesired {
	return &fakeDesired{nodes: map[string]*types.Node{}}
}

func (f *fakeDesired) GetNode(cluster, name string) (*types.Node, error) {
	return f.nodes[cluster+"/"+name], nil
}

func (f *fakeDesired) PutNode(n *types.Node) error {
	f.nodes[n.Cluster+"/"+n.Name] = n
	return nil
}

type fakeLauncher struct {
	launched  map[string]bool
	shutdown  map[string]bool
	total     types.ImageResources
	available types.ImageResources
	launchErr error
}

func newFakeLauncher() *fakeLauncher {
	return &fakeLauncher{launched: map[string]bool{}, shutdown: map[string]bool{}}
}

func (f *fakeLauncher) EnsureKeys(user string) error { return nil }

func (f *fakeLauncher) Launch(ctx context.Context, w *types.Worker) error {
	if f.launchErr != nil {
		return f.launchErr
	}
	f.launched[w.Name] = true
	return nil
}

func (f *fakeLauncher) Shutdown(ctx context.Context, w *types.Worker) error {
	f.shutdown[w.Name] = true
	return nil
}

func (f *fakeLauncher) Resources(ctx context.Context) (types.ImageResources, types.ImageResources, error) {
	return f.total, f.available, nil
}

func TestReconcileLaunchesNewWorker(t *testing.T) {
	desired := newFakeDesired()
	launcher := newFakeLauncher()
	desired.nodes["default/node1"] = &types.Node{
		Cluster: "default", Name: "node1",
		Workers: map[string]*types.Worker{
			"w1": {Name: "w1", User: "alice", Status: types.WorkerRunning},
		},
	}
	a := New("default", "node1", types.ScalerBareMetal, desired, launcher, "v1")

	require.NoError(t, a.reconcile(context.Background()))
	assert.True(t, launcher.launched["w1"])
	_, running := a.running["w1"]
	assert.True(t, running)
}

func TestReconcileShutsDownRunningWorkerMarkedShutdown(t *testing.T) {
	desired := newFakeDesired()
	launcher := newFakeLauncher()
	desired.nodes["default/node1"] = &types.Node{
		Cluster: "default", Name: "node1",
		Workers: map[string]*types.Worker{
			"w1": {Name: "w1", User: "alice", Status: types.WorkerRunning},
		},
	}
	a := New("default", "node1", types.ScalerBareMetal, desired, launcher, "v1")
	require.NoError(t, a.reconcile(context.Background()))

	desired.nodes["default/node1"].Workers["w1"].Status = types.WorkerShutdown
	require.NoError(t, a.reconcile(context.Background()))

	assert.True(t, launcher.shutdown["w1"])
	_, stillRunning := a.running["w1"]
	assert.False(t, stillRunning)
}

func TestReconcileSkipsWorkerAlreadyMarkedShutdownBeforeLaunch(t *testing.T) {
	desired := newFakeDesired()
	launcher := newFakeLauncher()
	desired.nodes["default/node1"] = &types.Node{
		Cluster: "default", Name: "node1",
		Workers: map[string]*types.Worker{
			"w1": {Name: "w1", User: "alice", Status: types.WorkerShutdown},
		},
	}
	a := New("default", "node1", types.ScalerBareMetal, desired, launcher, "v1")
	require.NoError(t, a.reconcile(context.Background()))

	assert.False(t, launcher.launched["w1"], "a worker that arrives already Shutdown should never be launched")
}

func TestReportResourcesUpdatesNodeSnapshot(t *testing.T) {
	desired := newFakeDesired()
	launcher := newFakeLauncher()
	launcher.total = types.ImageResources{}
	a := New("default", "node1", types.ScalerBareMetal, desired, launcher, "v1")

	require.NoError(t, a.reportResources(context.Background()))
	got, err := desired.GetNode("default", "node1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.Healthy)
}

func TestMaybeSelfUpdateSkipsWhenWorkersRunning(t *testing.T) {
	desired := newFakeDesired()
	launcher := newFakeLauncher()
	a := New("default", "node1", types.ScalerBareMetal, desired, launcher, "v1")
	a.running["w1"] = struct{}{}

	var updated bool
	a.SetSelfUpdate(func() string { return "v2" }, func() error { updated = true; return nil })
	a.maybeSelfUpdate(context.Background())

	assert.False(t, updated, "an in-progress worker must never be interrupted by a self-update")
}

func TestMaybeSelfUpdateAppliesWhenIdleAndVersionChanged(t *testing.T) {
	desired := newFakeDesired()
	launcher := newFakeLauncher()
	a := New("default", "node1", types.ScalerBareMetal, desired, launcher, "v1")

	var updated bool
	a.SetSelfUpdate(func() string { return "v2" }, func() error { updated = true; return nil })
	a.maybeSelfUpdate(context.Background())

	assert.True(t, updated)
}

func TestMaybeSelfUpdateNoopWhenVersionUnchanged(t *testing.T) {
	desired := newFakeDesired()
	launcher := newFakeLauncher()
	a := New("default", "node1", types.ScalerBareMetal, desired, launcher, "v1")

	var updated bool
	a.SetSelfUpdate(func() string { return "v1" }, func() error { updated = true; return nil })
	a.maybeSelfUpdate(context.Background())

	assert.False(t, updated)
}
