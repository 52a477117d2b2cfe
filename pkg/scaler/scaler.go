// Package scaler implements the Scaler Core of spec §4.9: allocatable
// accounting, fair-share ranking, requisition-grouped spawn/delete
// decisions, and the ErrorOut path for banned/unreachable work.
// Grounded on job-manager/pkg/scheduler's preempt/bin-pack pass
// (greedy allocation in priority order over a node-resource snapshot),
// generalised here from pod preemption to requisition-keyed spawning.
package scaler

import (
	"sort"
	"strconv"
	"sync"
	"time"

	"k8s.io/apimachinery/pkg/api/resource"

	"github.com/thorium-sh/thorium/pkg/metrics"
	"github.com/thorium-sh/thorium/pkg/registry"
	"github.com/thorium-sh/thorium/pkg/types"
)

// NodeStore is the persistence contract this package needs for the
// node/worker side of Allocatable accounting.
type NodeStore interface {
	ListNodes(cluster string) ([]*types.Node, error)
	PutNode(n *types.Node) error
	RegisterWorker(w *types.Worker) error
	RemoveWorker(cluster, node, worker string) error
}

// JobDemand is the subset of pkg/jobs.Store the scaler loop consumes:
// demand grouped by requisition, without importing pkg/jobs itself
// (avoiding a cycle since jobs never needs the scaler).
type JobDemand interface {
	ListCreatedByRequisition() (map[types.Requisition][]*types.Job, error)
	ListRunningByRequisition() (map[types.Requisition][]*types.Job, error)
	BulkReset(jobIDs []string, reason, requestor string) error
}

// Spawned is one spawn decision for a loop (spec §4.9 "Outputs per loop").
type Spawned struct {
	Name        string
	Node        string
	Cluster     string
	Resources   types.ImageResources
	Requisition types.Requisition
	SpawnAt     time.Time
}

// WorkerDeletion is one delete decision for a loop.
type WorkerDeletion struct {
	Cluster string
	Node    string
	Name    string
	Reason  string
}

// ErrorOut is a job to mark Failed because its image/pipeline is banned
// or its scaler has no reachable cluster (spec §4.9).
type ErrorOut struct {
	JobID  string
	Reason string
}

// FairShare tracks a per-user integer rank, increased on every spawn
// and decayed by the DecreaseFairShare task (spec §4.9). Tie-break by
// user name is applied by Rank's caller when sorting requisitions.
type FairShare struct {
	mu    sync.RWMutex
	ranks map[string]int
}

func NewFairShare() *FairShare {
	return &FairShare{ranks: map[string]int{}}
}

func (f *FairShare) Rank(user string) int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.ranks[user]
}

func (f *FairShare) IncrementOnSpawn(user string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ranks[user]++
}

// Decrease implements spec §8's Open Question resolution (DESIGN.md):
// subtract a fixed decrement per tick, floored at zero, rather than a
// multiplicative decay — simpler to reason about and to test.
func (f *FairShare) Decrease(decrement int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for u, r := range f.ranks {
		r -= decrement
		if r < 0 {
			r = 0
		}
		f.ranks[u] = r
	}
}

// Core runs one scaler loop's spawn/delete/error-out decisions for a
// single scaler kind (spec §4.9).
type Core struct {
	nodes     NodeStore
	demand    JobDemand
	images    *registry.Registry
	fairShare *FairShare
}

func New(nodes NodeStore, demand JobDemand, images *registry.Registry, fairShare *FairShare) *Core {
	return &Core{nodes: nodes, demand: demand, images: images, fairShare: fairShare}
}

// nodeEligible checks scaler match, node health, and enough available
// resource along every dimension the image requests. Taints are not
// checked: Node carries no taint data.
func nodeEligible(n *types.Node, scaler types.ScalerKind, need types.ImageResources) bool {
	if n.Scaler != scaler || !n.Healthy {
		return false
	}
	fits := func(avail, want resource.Quantity) bool {
		return want.IsZero() || avail.Cmp(want) >= 0
	}
	return fits(n.Available.CPUMillis, need.CPUMillis) &&
		fits(n.Available.MemoryMiB, need.MemoryMiB) &&
		fits(n.Available.EphemeralMiB, need.EphemeralMiB) &&
		fits(n.Available.Nvidia, need.Nvidia) &&
		fits(n.Available.AMD, need.AMD)
}

func reserve(n *types.Node, need types.ImageResources) {
	n.Available.CPUMillis.Sub(need.CPUMillis)
	n.Available.MemoryMiB.Sub(need.MemoryMiB)
	n.Available.EphemeralMiB.Sub(need.EphemeralMiB)
	n.Available.Nvidia.Sub(need.Nvidia)
	n.Available.AMD.Sub(need.AMD)
}

// demandEntry pairs a requisition with its pending job count and the
// per-job resource need, resolved from the image registry.
type demandEntry struct {
	req       types.Requisition
	jobIDs    []string
	resources types.ImageResources
	image     string
	bannedOut []ErrorOut
}

// Plan implements spec §4.9's full loop: group Created demand by
// requisition, allocate greedily in fair-share order across eligible
// nodes, and compute delete decisions for workers whose requisition no
// longer has pending work.
func (c *Core) Plan(scaler types.ScalerKind, cluster string) ([]Spawned, []WorkerDeletion, []ErrorOut, error) {
	start := time.Now()
	defer func() {
		metrics.ScalerLoopDuration.WithLabelValues(string(scaler)).Observe(time.Since(start).Seconds())
	}()

	created, err := c.demand.ListCreatedByRequisition()
	if err != nil {
		return nil, nil, nil, err
	}
	running, err := c.demand.ListRunningByRequisition()
	if err != nil {
		return nil, nil, nil, err
	}
	nodes, err := c.nodes.ListNodes(cluster)
	if err != nil {
		return nil, nil, nil, err
	}

	var entries []demandEntry
	var errorOut []ErrorOut
	for req, jobs := range created {
		if req.Scaler != scaler || len(jobs) == 0 {
			continue
		}
		img, ierr := c.images.GetImage(req.Group, jobs[0].Image)
		if ierr != nil || img == nil || img.Banned() {
			for _, j := range jobs {
				errorOut = append(errorOut, ErrorOut{JobID: j.ID, Reason: "image is banned or missing"})
			}
			continue
		}
		p, perr := c.images.GetPipeline(req.Group, req.Pipeline)
		if perr != nil || p == nil || p.Banned() {
			for _, j := range jobs {
				errorOut = append(errorOut, ErrorOut{JobID: j.ID, Reason: "pipeline is banned or missing"})
			}
			continue
		}
		ids := make([]string, 0, len(jobs))
		for _, j := range jobs {
			ids = append(ids, j.ID)
		}
		entries = append(entries, demandEntry{req: req, jobIDs: ids, resources: img.Resources, image: jobs[0].Image})
		metrics.QueueDepth.WithLabelValues(req.Group, req.Pipeline, strconv.Itoa(req.Stage)).Set(float64(len(ids)))
	}

	// Fair-share order: lowest rank first, tie-break by user name.
	sort.Slice(entries, func(i, j int) bool {
		ri, rj := c.fairShare.Rank(entries[i].req.User), c.fairShare.Rank(entries[j].req.User)
		if ri != rj {
			return ri < rj
		}
		return entries[i].req.User < entries[j].req.User
	})

	var spawns []Spawned
	now := time.Now().UTC()
	for _, e := range entries {
		needed := len(e.jobIDs)
		for _, n := range nodes {
			for needed > 0 && nodeEligible(n, scaler, e.resources) {
				name := workerName(e.req, len(n.Workers))
				spawns = append(spawns, Spawned{
					Name: name, Node: n.Name, Cluster: n.Cluster,
					Resources: e.resources, Requisition: e.req, SpawnAt: now,
				})
				reserve(n, e.resources)
				c.fairShare.IncrementOnSpawn(e.req.User)
				needed--
			}
			if needed == 0 {
				break
			}
		}
	}

	allocated := 0
	for _, n := range nodes {
		allocated += len(n.Workers)
	}
	metrics.ScalerNodesAllocated.WithLabelValues(cluster, string(scaler)).Set(float64(allocated))

	var deletions []WorkerDeletion
	for _, n := range nodes {
		for name, w := range n.Workers {
			req := w.Requisition()
			_, hasCreated := created[req]
			_, hasRunning := running[req]
			if !n.Healthy {
				deletions = append(deletions, WorkerDeletion{Cluster: n.Cluster, Node: n.Name, Name: name, Reason: "node shutdown"})
				continue
			}
			if !hasCreated && !hasRunning {
				deletions = append(deletions, WorkerDeletion{Cluster: n.Cluster, Node: n.Name, Name: name, Reason: "requisition has no pending work"})
			}
		}
	}

	return spawns, deletions, errorOut, nil
}

func workerName(req types.Requisition, ordinal int) string {
	return req.User + "-" + req.Group + "-" + req.Pipeline + "-worker"
}
