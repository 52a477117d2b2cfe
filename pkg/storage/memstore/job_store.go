package memstore

import (
	"sort"
	"time"

	thoriumerrors "github.com/thorium-sh/thorium/pkg/errors"
	"github.com/thorium-sh/thorium/pkg/types"
)

// CreateJob implements pkg/jobs.Store: persist and place in the Created
// queue (spec §4.4 step vii/viii, §4.5 invariant "exactly one status-
// queue membership per job").
func (m *MemStore) CreateJob(j *types.Job) error {
	m.jobsMu.Lock()
	defer m.jobsMu.Unlock()
	if _, ok := m.jobs[j.ID]; ok {
		return thoriumerrors.NewConflict("job already exists")
	}
	cp := *j
	m.jobs[j.ID] = &cp
	m.jobQueues[j.Status][j.ID] = struct{}{}
	return nil
}

func (m *MemStore) GetJob(id string) (*types.Job, error) {
	m.jobsMu.RLock()
	defer m.jobsMu.RUnlock()
	j, ok := m.jobs[id]
	if !ok {
		return nil, nil
	}
	cp := *j
	return &cp, nil
}

// moveQueue is the single place that mutates queue membership, keeping
// the "exactly one" invariant trivially true by construction.
func (m *MemStore) moveQueue(id string, from, to types.JobStatus) {
	delete(m.jobQueues[from], id)
	m.jobQueues[to][id] = struct{}{}
}

// UpdateJob persists a full job record and reconciles queue membership
// against its Status field. Callers (pkg/jobs) are expected to have
// already validated the transition.
func (m *MemStore) UpdateJob(j *types.Job) error {
	m.jobsMu.Lock()
	defer m.jobsMu.Unlock()
	existing, ok := m.jobs[j.ID]
	if !ok {
		return thoriumerrors.NewNotFound("job not found")
	}
	if existing.Status != j.Status {
		m.moveQueue(j.ID, existing.Status, j.Status)
	}
	cp := *j
	m.jobs[j.ID] = &cp
	return nil
}

// ClaimJobs implements spec §4.5's "claim is a bounded batch operation":
// dequeue up to limit Created jobs for (group, pipeline, stage), bind
// them to worker, and return them as Running, atomically under the
// single jobsMu.
func (m *MemStore) ClaimJobs(group, pipeline string, stage int, worker string, limit int) ([]*types.Job, error) {
	m.jobsMu.Lock()
	defer m.jobsMu.Unlock()
	var claimed []*types.Job
	ids := make([]string, 0, len(m.jobQueues[types.JobCreated]))
	for id := range m.jobQueues[types.JobCreated] {
		ids = append(ids, id)
	}
	sort.Strings(ids) // deterministic order so concurrent claims are disjoint in test harnesses
	for _, id := range ids {
		if len(claimed) >= limit {
			break
		}
		j := m.jobs[id]
		if j.Group != group || j.Pipeline != pipeline || j.Stage != stage {
			continue
		}
		m.moveQueue(id, types.JobCreated, types.JobRunning)
		j.Status = types.JobRunning
		j.Worker = worker
		cp := *j
		claimed = append(claimed, &cp)
	}
	return claimed, nil
}

// ListCreatedByRequisition backs the Scaler Core's per-loop demand scan
// (spec §4.9 "Spawn decision").
func (m *MemStore) ListCreatedByRequisition() (map[types.Requisition][]*types.Job, error) {
	m.jobsMu.RLock()
	defer m.jobsMu.RUnlock()
	out := map[types.Requisition][]*types.Job{}
	for id := range m.jobQueues[types.JobCreated] {
		j := m.jobs[id]
		cp := *j
		out[j.Requisition()] = append(out[j.Requisition()], &cp)
	}
	return out, nil
}

// ListRunningByRequisition backs the Scaler Core's "Delete decision"
// (spec §4.9): a worker whose requisition has no Created or Running
// jobs left is eligible for deletion.
func (m *MemStore) ListRunningByRequisition() (map[types.Requisition][]*types.Job, error) {
	m.jobsMu.RLock()
	defer m.jobsMu.RUnlock()
	out := map[types.Requisition][]*types.Job{}
	for id := range m.jobQueues[types.JobRunning] {
		j := m.jobs[id]
		cp := *j
		out[j.Requisition()] = append(out[j.Requisition()], &cp)
	}
	return out, nil
}

// BulkReset implements spec §4.5 bulk_reset: move named jobs from
// Running back to Created, clearing the worker binding. Jobs already
// terminal are left untouched (spec §8 invariant 7).
func (m *MemStore) BulkReset(jobIDs []string, reason, requestor string) error {
	m.jobsMu.Lock()
	defer m.jobsMu.Unlock()
	for _, id := range jobIDs {
		j, ok := m.jobs[id]
		if !ok || j.Status.Terminal() {
			continue
		}
		m.moveQueue(id, j.Status, types.JobCreated)
		j.Status = types.JobCreated
		j.Worker = ""
	}
	return nil
}

// DeadlineStream implements spec §4.5/§5: jobs sorted ascending by
// deadline for scaler within [start, end], paginated by (skip, limit).
func (m *MemStore) DeadlineStream(scaler types.ScalerKind, start, end time.Time, skip, limit int) ([]*types.Job, error) {
	m.jobsMu.RLock()
	defer m.jobsMu.RUnlock()
	var matched []*types.Job
	for _, j := range m.jobs {
		if j.Scaler != scaler {
			continue
		}
		if j.Deadline.Before(start) || j.Deadline.After(end) {
			continue
		}
		cp := *j
		matched = append(matched, &cp)
	}
	sort.Slice(matched, func(i, k int) bool { return matched[i].Deadline.Before(matched[k].Deadline) })
	return paginate(matched, skip, limit), nil
}

// RunningStream implements the admin "enumerate in-flight jobs" view
// (spec §4.5), mirroring the running-stream kept alongside the Running
// queue.
func (m *MemStore) RunningStream(scaler types.ScalerKind, start, end time.Time, skip, limit int) ([]*types.Job, error) {
	m.jobsMu.RLock()
	defer m.jobsMu.RUnlock()
	var matched []*types.Job
	for id := range m.jobQueues[types.JobRunning] {
		j := m.jobs[id]
		if j.Scaler != scaler {
			continue
		}
		if j.CreatedAt.Before(start) || j.CreatedAt.After(end) {
			continue
		}
		cp := *j
		matched = append(matched, &cp)
	}
	sort.Slice(matched, func(i, k int) bool { return matched[i].CreatedAt.Before(matched[k].CreatedAt) })
	return paginate(matched, skip, limit), nil
}

func paginate(jobs []*types.Job, skip, limit int) []*types.Job {
	if skip >= len(jobs) {
		return nil
	}
	end := skip + limit
	if limit <= 0 || end > len(jobs) {
		end = len(jobs)
	}
	return jobs[skip:end]
}

// DeleteJobsForReaction implements the cascade of spec §4.4 "Delete":
// remove jobs from every status queue.
func (m *MemStore) DeleteJobsForReaction(reactionID string) error {
	m.jobsMu.Lock()
	defer m.jobsMu.Unlock()
	for id, j := range m.jobs {
		if j.Reaction != reactionID {
			continue
		}
		delete(m.jobQueues[j.Status], id)
		delete(m.jobs, id)
	}
	return nil
}

// ListJobsByReactionStage backs stage-completion checks (spec §4.4).
func (m *MemStore) ListJobsByReactionStage(reactionID string, stage int) ([]*types.Job, error) {
	m.jobsMu.RLock()
	defer m.jobsMu.RUnlock()
	var out []*types.Job
	for _, j := range m.jobs {
		if j.Reaction == reactionID && j.Stage == stage {
			cp := *j
			out = append(out, &cp)
		}
	}
	return out, nil
}

// ListJobsByWorker backs zombie detection (spec §4.9 ZombieJobs task).
func (m *MemStore) ListJobsByWorker(worker string) ([]*types.Job, error) {
	m.jobsMu.RLock()
	defer m.jobsMu.RUnlock()
	var out []*types.Job
	for _, j := range m.jobs {
		if j.Worker == worker {
			cp := *j
			out = append(out, &cp)
		}
	}
	return out, nil
}
