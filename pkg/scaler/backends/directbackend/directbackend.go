// Package directbackend implements the Direct/BareMetal/Windows/Kvm
// ResourceBackend of spec §4.10: spawn writes a desired-worker row
// keyed by node; the on-node Reactor reads its desired workers and
// reports status back. Delete sets a worker's status to Shutdown and
// is two-phase: the scaler only confirms deletion once the node stops
// reporting the worker on a later loop. Grounded on node-agent's
// poll-desired-state/report-status loop shape.
package directbackend

import (
	"context"
	"sync"
	"time"

	"github.com/thorium-sh/thorium/pkg/scaler"
	"github.com/thorium-sh/thorium/pkg/scaler/backends"
	"github.com/thorium-sh/thorium/pkg/types"
)

// DesiredStore is the persistence surface the Reactor polls (spec
// §4.11 step 1 "query desired workers for (cluster, node, scaler)").
type DesiredStore interface {
	GetNode(cluster, name string) (*types.Node, error)
	PutNode(n *types.Node) error
	RegisterWorker(w *types.Worker) error
	RemoveWorker(cluster, node, worker string) error
}

type Backend struct {
	store  DesiredStore
	scaler types.ScalerKind

	// pendingDeletes tracks workers marked Shutdown awaiting the
	// Reactor's confirmation that it has actually torn them down
	// (spec §4.10 "two-phase: scaled_down list until the node no
	// longer reports the worker").
	mu             sync.Mutex
	pendingDeletes map[string]scaler.WorkerDeletion
}

func New(store DesiredStore, kind types.ScalerKind) *Backend {
	return &Backend{store: store, scaler: kind, pendingDeletes: map[string]scaler.WorkerDeletion{}}
}

var _ backends.ResourceBackend = (*Backend)(nil)

// ResourcesAvailable reports whatever the Reactor's most recent
// Resources-task report left in the node registry; this backend never
// polls the node directly (that's the Reactor's job).
func (b *Backend) ResourcesAvailable(ctx context.Context, settings map[string]string) ([]backends.AllocatableUpdate, error) {
	nodes, err := b.store.GetNode(settings["cluster"], settings["node"])
	if err != nil || nodes == nil {
		return nil, err
	}
	return []backends.AllocatableUpdate{{
		Cluster: nodes.Cluster, Node: nodes.Name,
		Total: nodes.Total, Available: nodes.Available, Healthy: nodes.Healthy,
	}}, nil
}

func (b *Backend) Setup(ctx context.Context, cluster string, bans map[string]struct{}) error {
	return nil
}

func (b *Backend) SyncToNewCache(ctx context.Context, cluster string, bans map[string]struct{}) error {
	return nil
}

// Spawn writes one desired-worker row per decision; the Reactor picks
// it up on its next poll and launches the process/VM (spec §4.11
// steps 1-3).
func (b *Backend) Spawn(ctx context.Context, spawns []scaler.Spawned) (map[string]error, error) {
	errs := map[string]error{}
	for _, s := range spawns {
		w := &types.Worker{
			Name: s.Name, Cluster: s.Cluster, Node: s.Node, Scaler: b.scaler,
			User: s.Requisition.User, Group: s.Requisition.Group, Pipeline: s.Requisition.Pipeline,
			Stage: s.Requisition.Stage, Resources: s.Resources, Status: types.WorkerSpawning,
			SpawnedAt: s.SpawnAt,
		}
		if err := b.store.RegisterWorker(w); err != nil {
			errs[s.Name] = err
		}
	}
	return errs, nil
}

// Delete marks each worker Shutdown and records it pending; a deletion
// is only reported confirmed once ConfirmDeletions observes the node
// no longer carrying the worker (spec §4.10 two-phase delete).
func (b *Backend) Delete(ctx context.Context, deletions []scaler.WorkerDeletion) ([]scaler.WorkerDeletion, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, d := range deletions {
		n, err := b.store.GetNode(d.Cluster, d.Node)
		if err != nil || n == nil {
			continue
		}
		if w, ok := n.Workers[d.Name]; ok {
			w.Status = types.WorkerShutdown
			if err := b.store.PutNode(n); err != nil {
				return nil, err
			}
		}
		b.pendingDeletes[d.Cluster+"/"+d.Node+"/"+d.Name] = d
	}
	return nil, nil // nothing is confirmed deleted on this call; see ConfirmDeletions
}

// ConfirmDeletions implements the second phase: called each loop, it
// checks whether the node has actually stopped reporting each pending
// worker and, if so, removes the record and returns it as confirmed.
func (b *Backend) ConfirmDeletions(ctx context.Context) ([]scaler.WorkerDeletion, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var confirmed []scaler.WorkerDeletion
	for key, d := range b.pendingDeletes {
		n, err := b.store.GetNode(d.Cluster, d.Node)
		if err != nil {
			return nil, err
		}
		if n == nil {
			confirmed = append(confirmed, d)
			delete(b.pendingDeletes, key)
			continue
		}
		if _, stillThere := n.Workers[d.Name]; !stillThere {
			confirmed = append(confirmed, d)
			delete(b.pendingDeletes, key)
		}
	}
	return confirmed, nil
}

func (b *Backend) ClearTerminal(ctx context.Context, errorOut []scaler.ErrorOut) error {
	return nil
}

func (b *Backend) TaskDelay(task string) time.Duration {
	if task == "Resources" {
		return 30 * time.Second
	}
	return 2 * time.Minute
}
