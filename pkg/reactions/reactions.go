// Package reactions implements the Reaction Engine of spec §4.4: one
// pipeline execution bound to concrete inputs, its per-stage job
// materialisation, generator fan-out with sleep/checkpoint, and delete
// cascade. It depends directly on pkg/jobs (not through an interface)
// since jobs never depends back on reactions, matching the teacher's
// job-manager -> scheduler call direction.
package reactions

import (
	"time"

	"github.com/google/uuid"

	thoriumerrors "github.com/thorium-sh/thorium/pkg/errors"
	"github.com/thorium-sh/thorium/pkg/jobs"
	"github.com/thorium-sh/thorium/pkg/types"
)

// Store is the persistence contract this package needs.
type Store interface {
	CreateReaction(r *types.Reaction) error
	GetReaction(id string) (*types.Reaction, error)
	UpdateReaction(r *types.Reaction) error
	DeleteReaction(id string) error
	ListSubReactions(parentID string) ([]*types.Reaction, error)
	AddSubReaction(parentID, childID string) error
	ListReactionsByPipeline(group, pipeline string) ([]*types.Reaction, error)
}

// PipelineLookup resolves the pipeline/image shape a new reaction needs
// (spec §4.4 step iv "compute per-stage ImageJobInfo"). pkg/registry
// satisfies this.
type PipelineLookup interface {
	GetPipeline(group, name string) (*types.Pipeline, error)
	GetImage(group, name string) (*types.Image, error)
}

const maxTriggerDepth = 6

type Engine struct {
	store    Store
	jobs     *jobs.Engine
	registry PipelineLookup
}

func New(store Store, jobEngine *jobs.Engine, registry PipelineLookup) *Engine {
	return &Engine{store: store, jobs: jobEngine, registry: registry}
}

// Create implements spec §4.4 "create_reaction": resolve the pipeline,
// compute per-stage ImageJobInfo, persist the Reaction, and materialise
// jobs for stage zero.
func (e *Engine) Create(req types.ReactionRequest) (*types.Reaction, error) {
	if req.TriggerDepth > maxTriggerDepth {
		return nil, thoriumerrors.NewForbidden("trigger depth exceeds the maximum chain length")
	}
	p, err := e.registry.GetPipeline(req.Group, req.Pipeline)
	if err != nil {
		return nil, err
	}
	if p.Banned() {
		return nil, thoriumerrors.NewForbidden("pipeline is banned")
	}
	stageImages, err := e.computeStageImages(req.Group, p)
	if err != nil {
		return nil, err
	}

	sla := p.SLASeconds
	if req.SLASeconds != nil {
		sla = *req.SLASeconds
	}

	r := &types.Reaction{
		ID:                uuid.NewString(),
		Group:             req.Group,
		Pipeline:          req.Pipeline,
		Creator:           req.RequestedBy,
		CurrentStageIndex: 0,
		Status:            types.ReactionCreated,
		Samples:           req.Samples,
		Repos:             req.Repos,
		Ephemeral:         req.Ephemeral,
		ParentEphemeral:   map[int][]string{},
		Args:              req.Args,
		Parent:            req.Parent,
		SubReactions:      map[string]struct{}{},
		TriggerDepth:      req.TriggerDepth,
		SLADeadline:       time.Now().UTC().Add(time.Duration(sla) * time.Second),
		CreatedAt:         time.Now().UTC(),
		StageImages:       stageImages,
	}
	if r.Args == nil {
		r.Args = map[int]types.GenericJobArgs{}
	}
	if err := e.store.CreateReaction(r); err != nil {
		return nil, err
	}
	if req.Parent != "" {
		if err := e.store.AddSubReaction(req.Parent, r.ID); err != nil {
			return nil, err
		}
	}
	r.Status = types.ReactionStarted
	if err := e.store.UpdateReaction(r); err != nil {
		return nil, err
	}
	if err := e.materialiseStage(r); err != nil {
		return nil, err
	}
	return r, nil
}

// BulkCreateByUser implements spec §4.4 "bulk_create_by_user", the
// Trigger Evaluator's submission path: create one reaction per request,
// continuing past individual failures so one bad match doesn't stall
// the whole batch, and reporting every error back to the caller.
func (e *Engine) BulkCreateByUser(reqs []types.ReactionRequest) ([]*types.Reaction, []error) {
	created := make([]*types.Reaction, 0, len(reqs))
	var errs []error
	for _, req := range reqs {
		r, err := e.Create(req)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		created = append(created, r)
	}
	return created, errs
}

func (e *Engine) computeStageImages(group string, p *types.Pipeline) ([][]types.ImageJobInfo, error) {
	out := make([][]types.ImageJobInfo, 0, len(p.Order))
	for _, stage := range p.Order {
		var infos []types.ImageJobInfo
		for name := range stage {
			img, err := e.registry.GetImage(group, name)
			if err != nil {
				return nil, err
			}
			if img == nil {
				return nil, thoriumerrors.NewValidation("pipeline references unknown image " + name)
			}
			if img.Banned() {
				return nil, thoriumerrors.NewForbidden("pipeline stage references banned image " + name)
			}
			infos = append(infos, types.ImageJobInfo{Image: name, Generator: img.Generator, Scaler: img.Scaler})
		}
		out = append(out, infos)
	}
	return out, nil
}

// materialiseStage creates one job per image in the reaction's current
// stage (spec §4.4 step vii).
func (e *Engine) materialiseStage(r *types.Reaction) error {
	stage := r.CurrentStage()
	for _, info := range stage {
		if _, err := e.jobs.Create(r, info, r.SLADeadline); err != nil {
			return err
		}
	}
	return nil
}

// AdvanceStage implements spec §4.4's stage-completion rule: once every
// job of the current stage (and, for a generator stage, every sub-
// reaction) has reported, move to the next stage or complete the
// reaction.
func (e *Engine) AdvanceStage(reactionID string) (*types.Reaction, error) {
	r, err := e.store.GetReaction(reactionID)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, thoriumerrors.NewNotFound("reaction not found")
	}
	if r.LastStage() {
		r.Status = types.ReactionCompleted
		if err := e.store.UpdateReaction(r); err != nil {
			return nil, err
		}
		if err := e.maybeResumeParentGenerator(r.Parent); err != nil {
			return nil, err
		}
		return r, nil
	}
	r.CurrentStageIndex++
	if err := e.store.UpdateReaction(r); err != nil {
		return nil, err
	}
	if err := e.materialiseStage(r); err != nil {
		return nil, err
	}
	return r, nil
}

// OnJobProceed implements spec §4.4 "Stage completion": once the last
// job of a stage transitions to Completed, the next stage materialises.
// Jobs still outstanding in the stage leave the reaction where it is.
func (e *Engine) OnJobProceed(reactionID string, stage int) error {
	stageJobs, err := e.jobs.ListByReactionStage(reactionID, stage)
	if err != nil {
		return err
	}
	for _, j := range stageJobs {
		if j.Status != types.JobCompleted {
			return nil
		}
	}
	_, err = e.AdvanceStage(reactionID)
	return err
}

// OnJobFailed implements spec §4.4: any job entering Failed transitions
// the whole reaction to Failed immediately, without waiting for the
// rest of the stage.
func (e *Engine) OnJobFailed(reactionID string) error {
	return e.Fail(reactionID)
}

// Fail transitions a reaction to Failed; spec §4.4 leaves propagation
// to dependent sub-reactions as a caller decision (a generator's
// sub-reaction failing does not automatically fail its parent).
func (e *Engine) Fail(reactionID string) error {
	r, err := e.store.GetReaction(reactionID)
	if err != nil {
		return err
	}
	if r == nil {
		return thoriumerrors.NewNotFound("reaction not found")
	}
	r.Status = types.ReactionFailed
	if err := e.store.UpdateReaction(r); err != nil {
		return err
	}
	return e.maybeResumeParentGenerator(r.Parent)
}

// maybeResumeParentGenerator implements spec §4.4 Generators: once
// every sub-reaction spawned off a generator job has reached a
// terminal status (success or failure), the generator's own Sleeping
// job is woken back to Created so it can pick up its next batch.
func (e *Engine) maybeResumeParentGenerator(parentID string) error {
	if parentID == "" {
		return nil
	}
	done, err := e.SubReactionsDone(parentID)
	if err != nil || !done {
		return err
	}
	parent, err := e.store.GetReaction(parentID)
	if err != nil || parent == nil {
		return err
	}
	stageJobs, err := e.jobs.ListByReactionStage(parentID, parent.CurrentStageIndex)
	if err != nil {
		return err
	}
	for _, j := range stageJobs {
		if j.Status != types.JobSleeping {
			continue
		}
		if _, err := e.jobs.WakeSleeping(j.ID); err != nil {
			return err
		}
	}
	return nil
}

// SpawnSubReaction implements spec §4.4 Generators: a generator job, on
// an upload carrying Image.output_collection.children, spawns one
// sub-reaction per child with the generator's own TriggerDepth carried
// forward unchanged (fan-out does not consume trigger-depth budget).
func (e *Engine) SpawnSubReaction(parent *types.Reaction, childArgs map[int]types.GenericJobArgs, ephemeral []string) (*types.Reaction, error) {
	return e.Create(types.ReactionRequest{
		Group:        parent.Group,
		Pipeline:     parent.Pipeline,
		Samples:      parent.Samples,
		Repos:        parent.Repos,
		Ephemeral:    ephemeral,
		Args:         childArgs,
		Parent:       parent.ID,
		TriggerDepth: parent.TriggerDepth,
		RequestedBy:  parent.Creator,
	})
}

// SubReactionsDone reports whether every sub-reaction of parent has
// reached a terminal status, the gate a generator's parent stage waits
// on before advancing (spec §4.4 Generators).
func (e *Engine) SubReactionsDone(parentID string) (bool, error) {
	subs, err := e.store.ListSubReactions(parentID)
	if err != nil {
		return false, err
	}
	for _, s := range subs {
		if !s.Status.Terminal() {
			return false, nil
		}
	}
	return true, nil
}

// Delete implements spec §4.4 "delete": remove the reaction and every
// job it owns. In-flight sub-reactions are left to finish on their own,
// matching spec §4.3's pipeline-delete behaviour for in-flight work.
func (e *Engine) Delete(reactionID string, deleteJobs func(reactionID string) error) error {
	if err := deleteJobs(reactionID); err != nil {
		return err
	}
	return e.store.DeleteReaction(reactionID)
}

func (e *Engine) Get(id string) (*types.Reaction, error) {
	r, err := e.store.GetReaction(id)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, thoriumerrors.NewNotFound("reaction not found")
	}
	return r, nil
}
