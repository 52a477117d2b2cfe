// Package memstore is the in-process reference implementation of every
// storage contract the domain packages declare (pkg/identity.Store,
// pkg/registry.Store, pkg/artifacts.Store, pkg/tags.Store,
// pkg/events.Store, pkg/jobs.Store, pkg/reactions.Store,
// pkg/scaler.NodeStore). Spec §1 deliberately leaves the KV/wide-column
// choice abstract; MemStore satisfies every contract with plain Go maps
// behind a single RWMutex per concern, so the core is exercised without
// committing to a specific datastore. pkg/storage/sqlstore and
// pkg/storage/tagstore provide the production-shaped counterparts
// (gorm/postgres, squirrel/sqlx) for the hot paths spec §9 calls out.
package memstore

import (
	"sync"

	"github.com/thorium-sh/thorium/pkg/netpolicy"
	"github.com/thorium-sh/thorium/pkg/search"
	"github.com/thorium-sh/thorium/pkg/types"
)

// MemStore aggregates every sub-store. Each concern gets its own mutex
// so, e.g., a tag write never blocks a job claim (spec §9 "Shared-
// resource policy": keep hot writes to distinct partitions).
type MemStore struct {
	usersMu sync.RWMutex
	users   map[string]*types.User

	groupsMu sync.RWMutex
	groups   map[types.GroupName]*types.Group

	imagesMu sync.RWMutex
	images   map[string]*types.Image // "group/name"

	pipelinesMu sync.RWMutex
	pipelines   map[string]*types.Pipeline // "group/name"

	samplesMu sync.RWMutex
	samples   map[string]*types.Sample

	reposMu sync.RWMutex
	repos   map[string]*types.Repo

	tagsMu sync.RWMutex
	tags   []types.Tag

	eventsMu  sync.Mutex
	events    map[string]*types.Event
	eventSeq  []string // FIFO order by id
	inFlight  map[string]struct{}

	jobsMu    sync.RWMutex
	jobs      map[string]*types.Job
	jobQueues map[types.JobStatus]map[string]struct{} // status -> set of job ids

	reactionsMu sync.RWMutex
	reactions   map[string]*types.Reaction

	nodesMu sync.RWMutex
	nodes   map[string]*types.Node // "cluster/name"

	resultsMu sync.RWMutex
	results   map[string]*types.Result

	policiesMu sync.RWMutex
	policies   map[string]*netpolicy.Policy // "group/name"

	searchSessionsMu sync.RWMutex
	searchSessions   map[string]*search.Session
}

func New() *MemStore {
	return &MemStore{
		users:     map[string]*types.User{},
		groups:    map[types.GroupName]*types.Group{},
		images:    map[string]*types.Image{},
		pipelines: map[string]*types.Pipeline{},
		samples:   map[string]*types.Sample{},
		repos:     map[string]*types.Repo{},
		events:    map[string]*types.Event{},
		inFlight:  map[string]struct{}{},
		jobs:      map[string]*types.Job{},
		jobQueues: map[types.JobStatus]map[string]struct{}{
			types.JobCreated:   {},
			types.JobRunning:   {},
			types.JobCompleted: {},
			types.JobFailed:    {},
			types.JobSleeping:  {},
		},
		reactions: map[string]*types.Reaction{},
		nodes:     map[string]*types.Node{},
		results:        map[string]*types.Result{},
		policies:       map[string]*netpolicy.Policy{},
		searchSessions: map[string]*search.Session{},
	}
}

func imageKey(group, name string) string    { return group + "/" + name }
func pipelineKey(group, name string) string { return group + "/" + name }
func nodeKey(cluster, name string) string   { return cluster + "/" + name }
func policyKey(group, name string) string   { return group + "/" + name }
