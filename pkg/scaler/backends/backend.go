// Package backends defines the ResourceBackend capability-bundle
// contract of spec §4.10 and its concrete implementations. Collapsing
// the backend-specific spawn/delete mechanics behind one small
// interface mirrors spec §9's "capability bundles, not deep
// inheritance" guidance, grounded on resource-manager's pluggable
// driver registration pattern (one package per backend, registered by
// ScalerKind).
package backends

import (
	"context"
	"time"

	"github.com/thorium-sh/thorium/pkg/scaler"
	"github.com/thorium-sh/thorium/pkg/types"
)

// AllocatableUpdate is one node's resource snapshot as reported by
// resources_available (spec §4.10).
type AllocatableUpdate struct {
	Cluster   string
	Node      string
	Total     types.ImageResources
	Available types.ImageResources
	Healthy   bool
}

// ResourceBackend is the abstract contract every scheduler backend
// implements (spec §4.10).
type ResourceBackend interface {
	// ResourcesAvailable polls node health and returns the current
	// per-node Allocatable snapshot.
	ResourcesAvailable(ctx context.Context, settings map[string]string) ([]AllocatableUpdate, error)

	// Setup performs per-loop, per-cluster preparation (e.g. syncing
	// per-user secrets before spawning against a cluster).
	Setup(ctx context.Context, cluster string, bans map[string]struct{}) error

	// SyncToNewCache runs after a CacheReload task to reconcile backend
	// state against the refreshed image/pipeline/user snapshots.
	SyncToNewCache(ctx context.Context, cluster string, bans map[string]struct{}) error

	// Spawn realises a batch of scaler.Spawned decisions, returning a
	// per-worker error for any that failed.
	Spawn(ctx context.Context, spawns []scaler.Spawned) (map[string]error, error)

	// Delete realises a batch of scaler.WorkerDeletion decisions.
	Delete(ctx context.Context, deletions []scaler.WorkerDeletion) ([]scaler.WorkerDeletion, error)

	// ClearTerminal reconciles Allocatable against workers the backend
	// now reports as terminated, failed, or otherwise errored out.
	ClearTerminal(ctx context.Context, errorOut []scaler.ErrorOut) error

	// TaskDelay reports the re-insertion delay for a given scaler task,
	// letting a backend override the default cadence (e.g. a bare-metal
	// Resources poll running slower than a K8s one).
	TaskDelay(task string) time.Duration
}
