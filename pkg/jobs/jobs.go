// Package jobs implements the Job State Machine of spec §4.5: claim,
// proceed, error, sleep, checkpoint and the bulk_reset admin escape
// hatch. Grounded on job-manager/pkg/scheduler's preempt tests for the
// generic-args/workload shape and on apiserver/pkg/handlers/cd-handlers
// for the validate -> authorise -> store call shape.
package jobs

import (
	"time"

	"github.com/google/uuid"

	thoriumerrors "github.com/thorium-sh/thorium/pkg/errors"
	"github.com/thorium-sh/thorium/pkg/types"
)

// Store is the persistence contract this package needs.
type Store interface {
	CreateJob(j *types.Job) error
	GetJob(id string) (*types.Job, error)
	UpdateJob(j *types.Job) error
	ClaimJobs(group, pipeline string, stage int, worker string, limit int) ([]*types.Job, error)
	ListCreatedByRequisition() (map[types.Requisition][]*types.Job, error)
	ListRunningByRequisition() (map[types.Requisition][]*types.Job, error)
	BulkReset(jobIDs []string, reason, requestor string) error
	DeadlineStream(scaler types.ScalerKind, start, end time.Time, skip, limit int) ([]*types.Job, error)
	RunningStream(scaler types.ScalerKind, start, end time.Time, skip, limit int) ([]*types.Job, error)
	DeleteJobsForReaction(reactionID string) error
	ListJobsByReactionStage(reactionID string, stage int) ([]*types.Job, error)
	ListJobsByWorker(worker string) ([]*types.Job, error)
}

// Engine implements the per-job lifecycle transitions of spec §4.5.
type Engine struct {
	store Store
}

func New(store Store) *Engine {
	return &Engine{store: store}
}

// Create materialises one job for a single (image, stage) slot of a
// reaction (spec §4.4 step vii). The reaction engine calls this once
// per image in the current stage.
func (e *Engine) Create(r *types.Reaction, info types.ImageJobInfo, deadline time.Time) (*types.Job, error) {
	j := &types.Job{
		ID:        uuid.NewString(),
		Reaction:  r.ID,
		Group:     r.Group,
		Pipeline:  r.Pipeline,
		Stage:     r.CurrentStageIndex,
		Creator:   r.Creator,
		Args:      r.Args[r.CurrentStageIndex],
		Status:    types.JobCreated,
		Deadline:  deadline,
		Parent:    r.Parent,
		Generator: info.Generator,
		Scaler:    info.Scaler,
		Samples:   r.Samples,
		Repos:     r.Repos,
		Ephemeral: r.Ephemeral,
		ParentEphemeral: r.ParentEphemeral[r.CurrentStageIndex],
		TriggerDepth:   r.TriggerDepth,
		Image:          info.Image,
		CreatedAt:      time.Now().UTC(),
	}
	if err := e.store.CreateJob(j); err != nil {
		return nil, err
	}
	return j, nil
}

// Claim implements spec §4.5 "claim": a worker atomically dequeues up
// to limit Created jobs matching (group, pipeline, stage) and binds
// itself to them.
func (e *Engine) Claim(group, pipeline string, stage int, worker string, limit int) ([]*GenericJob, error) {
	if limit <= 0 || limit > 100 {
		return nil, thoriumerrors.NewValidation("claim limit must be in (0, 100]")
	}
	jobs, err := e.store.ClaimJobs(group, pipeline, stage, worker, limit)
	if err != nil {
		return nil, err
	}
	out := make([]*GenericJob, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, ToGeneric(j))
	}
	return out, nil
}

// Proceed implements spec §4.5 "proceed": a running job reports
// success and transitions to Completed.
func (e *Engine) Proceed(jobID, worker string) (*types.Job, error) {
	j, err := e.get(jobID)
	if err != nil {
		return nil, err
	}
	if err := e.ownedBy(j, worker); err != nil {
		return nil, err
	}
	j.Status = types.JobCompleted
	if err := e.store.UpdateJob(j); err != nil {
		return nil, err
	}
	return j, nil
}

// Error implements spec §4.5 "error": a running job reports failure
// and transitions to Failed. Failed jobs are terminal; spec §9 leaves
// retry policy to the reaction engine, not automatic re-creation here.
func (e *Engine) Error(jobID, worker, reason string) (*types.Job, error) {
	j, err := e.get(jobID)
	if err != nil {
		return nil, err
	}
	if err := e.ownedBy(j, worker); err != nil {
		return nil, err
	}
	j.Status = types.JobFailed
	if err := e.store.UpdateJob(j); err != nil {
		return nil, err
	}
	return j, nil
}

// Sleep implements spec §4.5/§4.4 "sleep": a generator job yields
// without completing, carrying a checkpoint string forward so its
// reissued Created job resumes where it left off.
func (e *Engine) Sleep(jobID, worker, checkpoint string) (*types.Job, error) {
	j, err := e.get(jobID)
	if err != nil {
		return nil, err
	}
	if err := e.ownedBy(j, worker); err != nil {
		return nil, err
	}
	if !j.Generator {
		return nil, thoriumerrors.NewValidation("only generator jobs may sleep")
	}
	j.Status = types.JobSleeping
	j.Checkpoint = checkpoint
	if err := e.store.UpdateJob(j); err != nil {
		return nil, err
	}
	return j, nil
}

// Checkpoint implements spec §4.5 "checkpoint": a Running -> Running
// self-loop that rewrites a job's args in place without releasing the
// worker, so a long-running job can persist progress without
// completing. Matches the original backend's checkpoint(), which only
// ever calls set_args and never touches job status.
func (e *Engine) Checkpoint(jobID, worker, checkpoint string) (*types.Job, error) {
	j, err := e.get(jobID)
	if err != nil {
		return nil, err
	}
	if err := e.ownedBy(j, worker); err != nil {
		return nil, err
	}
	j.Args.Kwargs = withOpt(j.Args.Kwargs, "checkpoint", checkpoint)
	if err := e.store.UpdateJob(j); err != nil {
		return nil, err
	}
	return j, nil
}

// WakeSleeping re-arms a sleeping generator job as Created, carrying
// its checkpoint forward onto Args as "--checkpoint=<data>" (spec
// §4.4 Generators "sleep ... its reissued Created job resumes where it
// left off"). Called once every sub-reaction spawned by the generator
// has reached a terminal state (pkg/reactions.Engine's stage-completion
// watcher), distinct from the Running-self-loop Checkpoint above.
func (e *Engine) WakeSleeping(jobID string) (*types.Job, error) {
	j, err := e.get(jobID)
	if err != nil {
		return nil, err
	}
	if j.Status != types.JobSleeping {
		return nil, thoriumerrors.NewValidation("job is not sleeping")
	}
	if j.Checkpoint != "" {
		j.Args.Opts = withOpt(j.Args.Opts, "checkpoint", j.Checkpoint)
	}
	j.Status = types.JobCreated
	j.Worker = ""
	if err := e.store.UpdateJob(j); err != nil {
		return nil, err
	}
	return j, nil
}

// Get returns one job by ID, used by the results-ingestion route to
// resolve the owning image/group before calling into pkg/output.
func (e *Engine) Get(id string) (*types.Job, error) {
	return e.get(id)
}

// DeleteForReaction removes every job owned by a reaction, the job
// half of spec §4.4 "delete"'s cascade.
func (e *Engine) DeleteForReaction(reactionID string) error {
	return e.store.DeleteJobsForReaction(reactionID)
}

// ListByReactionStage returns every job materialised for one stage of
// a reaction, used by the reaction engine to find a sleeping generator
// job to wake once its sub-reactions finish.
func (e *Engine) ListByReactionStage(reactionID string, stage int) ([]*types.Job, error) {
	return e.store.ListJobsByReactionStage(reactionID, stage)
}

func withOpt(opts map[string]string, key, value string) map[string]string {
	if opts == nil {
		opts = map[string]string{}
	}
	opts[key] = value
	return opts
}

// BulkReset implements spec §4.5 "bulk_reset": an admin escape hatch
// that returns a batch of Running jobs to Created. Terminal jobs are
// silently skipped (spec §8 invariant 7).
func (e *Engine) BulkReset(jobIDs []string, reason, requestor string) error {
	return e.store.BulkReset(jobIDs, reason, requestor)
}

// Deadlines streams jobs within [start, end) ordered by deadline, used
// by the scaler's zombie-detection task (spec §4.9 ZombieJobs).
func (e *Engine) Deadlines(scaler types.ScalerKind, start, end time.Time, skip, limit int) ([]*types.Job, error) {
	return e.store.DeadlineStream(scaler, start, end, skip, limit)
}

// Running streams in-flight jobs for admin visibility (spec §4.5).
func (e *Engine) Running(scaler types.ScalerKind, start, end time.Time, skip, limit int) ([]*types.Job, error) {
	return e.store.RunningStream(scaler, start, end, skip, limit)
}

func (e *Engine) get(id string) (*types.Job, error) {
	j, err := e.store.GetJob(id)
	if err != nil {
		return nil, err
	}
	if j == nil {
		return nil, thoriumerrors.NewNotFound("job not found")
	}
	return j, nil
}

func (e *Engine) ownedBy(j *types.Job, worker string) error {
	if j.Status != types.JobRunning {
		return thoriumerrors.NewValidation("job is not running")
	}
	if j.Worker != worker {
		return thoriumerrors.NewForbidden("job is bound to a different worker")
	}
	return nil
}
