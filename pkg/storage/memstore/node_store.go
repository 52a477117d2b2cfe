package memstore

import (
	thoriumerrors "github.com/thorium-sh/thorium/pkg/errors"
	"github.com/thorium-sh/thorium/pkg/types"
)

// GetNode implements pkg/scaler.NodeStore (spec §4.9/§4.10).
func (m *MemStore) GetNode(cluster, name string) (*types.Node, error) {
	m.nodesMu.RLock()
	defer m.nodesMu.RUnlock()
	n, ok := m.nodes[nodeKey(cluster, name)]
	if !ok {
		return nil, nil
	}
	return n, nil
}

// PutNode upserts a node's full record, including its Workers map. A
// resource backend's sync_to_new_cache rewrites this wholesale (spec
// §4.10 ResourceBackend.sync_to_new_cache).
func (m *MemStore) PutNode(n *types.Node) error {
	m.nodesMu.Lock()
	defer m.nodesMu.Unlock()
	m.nodes[nodeKey(n.Cluster, n.Name)] = n
	return nil
}

func (m *MemStore) DeleteNode(cluster, name string) error {
	m.nodesMu.Lock()
	defer m.nodesMu.Unlock()
	delete(m.nodes, nodeKey(cluster, name))
	return nil
}

// ListNodes implements the scaler's per-cycle cache read (spec §4.9).
func (m *MemStore) ListNodes(cluster string) ([]*types.Node, error) {
	m.nodesMu.RLock()
	defer m.nodesMu.RUnlock()
	var out []*types.Node
	for _, n := range m.nodes {
		if cluster == "" || n.Cluster == cluster {
			out = append(out, n)
		}
	}
	return out, nil
}

// RegisterWorker places a newly spawned worker onto its node, creating
// the node entry if the reactor hasn't reported it yet (spec §4.10
// "spawn" then "report_resources").
func (m *MemStore) RegisterWorker(w *types.Worker) error {
	m.nodesMu.Lock()
	defer m.nodesMu.Unlock()
	key := nodeKey(w.Cluster, w.Node)
	n, ok := m.nodes[key]
	if !ok {
		n = &types.Node{Cluster: w.Cluster, Name: w.Node, Scaler: w.Scaler, Workers: map[string]*types.Worker{}}
		m.nodes[key] = n
	}
	if n.Workers == nil {
		n.Workers = map[string]*types.Worker{}
	}
	cp := *w
	n.Workers[w.Name] = &cp
	return nil
}

// BindWorkerToJob implements spec §4.9 "a worker is bound to at most
// one job"; it is the spawn-side counterpart of ClaimJobs.
func (m *MemStore) BindWorkerToJob(cluster, node, worker, jobID string) error {
	m.nodesMu.Lock()
	defer m.nodesMu.Unlock()
	n, ok := m.nodes[nodeKey(cluster, node)]
	if !ok {
		return thoriumerrors.NewNotFound("node not found")
	}
	w, ok := n.Workers[worker]
	if !ok {
		return thoriumerrors.NewNotFound("worker not found")
	}
	w.Job = jobID
	w.Status = types.WorkerRunning
	return nil
}

// RemoveWorker implements a backend's delete/clear_terminal step (spec
// §4.10). Removing an unknown worker is a no-op, matching the
// idempotent-delete contract of object/resource stores elsewhere.
func (m *MemStore) RemoveWorker(cluster, node, worker string) error {
	m.nodesMu.Lock()
	defer m.nodesMu.Unlock()
	n, ok := m.nodes[nodeKey(cluster, node)]
	if !ok {
		return nil
	}
	delete(n.Workers, worker)
	return nil
}

// GetResult implements pkg/output.Store (spec §4.6).
func (m *MemStore) GetResult(id string) (*types.Result, error) {
	m.resultsMu.RLock()
	defer m.resultsMu.RUnlock()
	r, ok := m.results[id]
	if !ok {
		return nil, nil
	}
	return r, nil
}

func (m *MemStore) PutResult(r *types.Result) error {
	m.resultsMu.Lock()
	defer m.resultsMu.Unlock()
	m.results[r.ID] = r
	return nil
}

// ListResultsByKey backs re-ingestion / auto-tag replay for a given
// sample or repo (spec §4.6).
func (m *MemStore) ListResultsByKey(kind types.TagKind, key string) ([]*types.Result, error) {
	m.resultsMu.RLock()
	defer m.resultsMu.RUnlock()
	var out []*types.Result
	for _, r := range m.results {
		if r.Kind == kind && r.Key == key {
			out = append(out, r)
		}
	}
	return out, nil
}
