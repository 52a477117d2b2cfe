// Package reactor implements the node agent loop of spec §4.11: poll
// desired workers, diff against the local process/VM set, launch or
// shut down as needed, and report node resources. Grounded on
// node-agent's poll/diff/act main loop shape.
package reactor

import (
	"context"
	"time"

	"github.com/thorium-sh/thorium/pkg/log"
	"github.com/thorium-sh/thorium/pkg/types"
)

// DesiredSource answers "what should be running on this node" (spec
// §4.11 step 1).
type DesiredSource interface {
	GetNode(cluster, name string) (*types.Node, error)
	PutNode(n *types.Node) error
}

// Launcher starts and stops the local execution unit for a worker
// (process or VM, depending on scaler kind). Concrete launchers live
// beside the backend they pair with.
type Launcher interface {
	// EnsureKeys writes the owning user's keys file to disk if absent
	// (spec §4.11 step 3).
	EnsureKeys(user string) error
	Launch(ctx context.Context, w *types.Worker) error
	Shutdown(ctx context.Context, w *types.Worker) error
	// Resources reports this node's current total/available capacity.
	Resources(ctx context.Context) (types.ImageResources, types.ImageResources, error)
}

type Agent struct {
	cluster  string
	node     string
	scaler   types.ScalerKind
	desired  DesiredSource
	launcher Launcher
	running  map[string]struct{}

	pollInterval     time.Duration
	resourceInterval time.Duration

	version       string
	latestVersion func() string
	selfUpdate    func() error
}

func New(cluster, node string, kind types.ScalerKind, desired DesiredSource, launcher Launcher, version string) *Agent {
	return &Agent{
		cluster: cluster, node: node, scaler: kind,
		desired: desired, launcher: launcher, running: map[string]struct{}{},
		pollInterval: 10 * time.Second, resourceInterval: 30 * time.Second,
		version: version,
	}
}

// Run drives the single-node loop until ctx is cancelled (spec §4.11).
func (a *Agent) Run(ctx context.Context) error {
	l := log.Component("reactor")
	pollTicker := time.NewTicker(a.pollInterval)
	resourceTicker := time.NewTicker(a.resourceInterval)
	defer pollTicker.Stop()
	defer resourceTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-pollTicker.C:
			if err := a.reconcile(ctx); err != nil {
				l.Error(err, "reconcile failed")
			}
		case <-resourceTicker.C:
			if err := a.reportResources(ctx); err != nil {
				l.Error(err, "resource report failed")
			}
			a.maybeSelfUpdate(ctx)
		}
	}
}

// reconcile implements spec §4.11 steps 1-4: diff desired vs running,
// launch new workers, shut down ones marked Shutdown.
func (a *Agent) reconcile(ctx context.Context) error {
	node, err := a.desired.GetNode(a.cluster, a.node)
	if err != nil || node == nil {
		return err
	}
	seen := map[string]struct{}{}
	for name, w := range node.Workers {
		seen[name] = struct{}{}
		if _, already := a.running[name]; already {
			if w.Status == types.WorkerShutdown {
				if err := a.launcher.Shutdown(ctx, w); err != nil {
					return err
				}
				delete(a.running, name)
			}
			continue
		}
		if w.Status == types.WorkerShutdown {
			continue
		}
		if err := a.launcher.EnsureKeys(w.User); err != nil {
			return err
		}
		if err := a.launcher.Launch(ctx, w); err != nil {
			return err
		}
		a.running[name] = struct{}{}
	}
	for name := range a.running {
		if _, stillDesired := seen[name]; !stillDesired {
			delete(a.running, name)
		}
	}
	return nil
}

// reportResources implements spec §4.11 step 5's Resources half: push
// this node's current total/available capacity into the node registry
// for the scaler's next Allocatable snapshot.
func (a *Agent) reportResources(ctx context.Context) error {
	total, available, err := a.launcher.Resources(ctx)
	if err != nil {
		return err
	}
	node, err := a.desired.GetNode(a.cluster, a.node)
	if err != nil {
		return err
	}
	if node == nil {
		node = &types.Node{Cluster: a.cluster, Name: a.node, Scaler: a.scaler, Workers: map[string]*types.Worker{}}
	}
	node.Total = total
	node.Available = available
	node.Healthy = true
	node.Heartbeat = time.Now().UTC()
	return a.desired.PutNode(node)
}

// maybeSelfUpdate implements spec §4.11 step 5's self-update half:
// apply a published version change only while idle, so an in-progress
// worker launch is never interrupted.
func (a *Agent) maybeSelfUpdate(ctx context.Context) {
	if a.latestVersion == nil || a.selfUpdate == nil {
		return
	}
	if len(a.running) > 0 {
		return
	}
	if a.latestVersion() == a.version {
		return
	}
	if err := a.selfUpdate(); err != nil {
		log.Component("reactor").Error(err, "self-update failed")
	}
}

// SetSelfUpdate wires the version-check and update hooks; left unset
// by default so tests can exercise the reconcile loop without a real
// update mechanism.
func (a *Agent) SetSelfUpdate(latestVersion func() string, update func() error) {
	a.latestVersion = latestVersion
	a.selfUpdate = update
}
