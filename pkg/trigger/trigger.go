// Package trigger implements the two-phase Trigger Evaluator of spec
// §4.8: a cheap potential-match filter over cached pipeline triggers,
// followed by a data-augmented confirm phase, bounded by max trigger
// depth. Grounded on job-manager/pkg/scheduler's periodic-reconcile
// loop shape (cache reload on interval, bounded worker pool for the
// expensive phase) and on cenkalti/backoff's retry idiom for the
// augment phase's transient failures.
package trigger

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/errgroup"

	"github.com/thorium-sh/thorium/pkg/events"
	"github.com/thorium-sh/thorium/pkg/metrics"
	"github.com/thorium-sh/thorium/pkg/reactions"
	"github.com/thorium-sh/thorium/pkg/tags"
	"github.com/thorium-sh/thorium/pkg/types"
)

const maxTriggerDepth = 6

// PipelineSource answers the evaluator's cache reload (spec §4.8 "cache
// reload on interval or invalidation").
type PipelineSource interface {
	ListAllPipelines() ([]*types.Pipeline, error)
}

// Config governs the evaluator's cadence and augment-phase concurrency.
type Config struct {
	PollInterval      time.Duration
	CacheReloadPeriod time.Duration
	AugmentConcurrency int
	AugmentRetryDelay  time.Duration
}

func DefaultConfig() Config {
	return Config{
		PollInterval:       2 * time.Second,
		CacheReloadPeriod:  30 * time.Second,
		AugmentConcurrency: 30,
		AugmentRetryDelay:  3 * time.Minute,
	}
}

// Evaluator drains the Event Bus, matches events against the cached
// pipeline trigger set, and submits confirmed matches as reactions.
type Evaluator struct {
	bus       *events.Bus
	tags      *tags.Service
	reactions *reactions.Engine
	pipelines PipelineSource
	cfg       Config

	cacheMu  sync.RWMutex
	cache    []*types.Pipeline
}

func New(bus *events.Bus, tagSvc *tags.Service, reactionEngine *reactions.Engine, pipelines PipelineSource, cfg Config) *Evaluator {
	return &Evaluator{bus: bus, tags: tagSvc, reactions: reactionEngine, pipelines: pipelines, cfg: cfg}
}

// Run drives the evaluator loop until ctx is cancelled: it resets any
// events left in-flight from a prior crash, then alternates cache
// reload and poll-evaluate-submit cycles (spec §4.8 steps 1-6).
func (ev *Evaluator) Run(ctx context.Context) error {
	if err := ev.bus.ResetAll(types.EventNewSample); err != nil {
		return err
	}
	if err := ev.bus.ResetAll(types.EventNewTags); err != nil {
		return err
	}
	if err := ev.reloadCache(); err != nil {
		return err
	}

	pollTicker := time.NewTicker(ev.cfg.PollInterval)
	reloadTicker := time.NewTicker(ev.cfg.CacheReloadPeriod)
	defer pollTicker.Stop()
	defer reloadTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-reloadTicker.C:
			if err := ev.reloadCache(); err != nil {
				return err
			}
		case <-pollTicker.C:
			if err := ev.cycle(ctx, types.EventNewSample); err != nil {
				return err
			}
			if err := ev.cycle(ctx, types.EventNewTags); err != nil {
				return err
			}
		}
	}
}

func (ev *Evaluator) reloadCache() error {
	pipelines, err := ev.pipelines.ListAllPipelines()
	if err != nil {
		return err
	}
	ev.cacheMu.Lock()
	ev.cache = pipelines
	ev.cacheMu.Unlock()
	return nil
}

func (ev *Evaluator) snapshot() []*types.Pipeline {
	ev.cacheMu.RLock()
	defer ev.cacheMu.RUnlock()
	out := make([]*types.Pipeline, len(ev.cache))
	copy(out, ev.cache)
	return out
}

// cycle runs one filter -> augment -> confirm -> submit -> clear pass
// over a batch of events of the given type (spec §4.8).
func (ev *Evaluator) cycle(ctx context.Context, eventType types.EventType) error {
	start := time.Now()
	defer func() {
		metrics.EvaluatorBatchDuration.WithLabelValues(string(eventType)).Observe(time.Since(start).Seconds())
	}()

	batch, err := ev.bus.Pop(eventType, 500)
	if err != nil || len(batch) == 0 {
		return err
	}

	// Phase 1: cheap potential-match filter, no I/O beyond the cache.
	type candidate struct {
		event    *types.Event
		pipeline *types.Pipeline
	}
	var candidates []candidate
	for _, e := range batch {
		if e.Depth >= maxTriggerDepth {
			continue
		}
		for _, p := range ev.snapshot() {
			if p.Banned() {
				continue
			}
			if potentialMatch(e, p) {
				candidates = append(candidates, candidate{event: e, pipeline: p})
			}
		}
	}

	// Phase 2: data-augmented confirm, bounded concurrency.
	var mu sync.Mutex
	var requests []types.ReactionRequest
	var resolved []string
	group, _ := errgroup.WithContext(ctx)
	group.SetLimit(ev.cfg.AugmentConcurrency)
	for _, c := range candidates {
		c := c
		group.Go(func() error {
			req, matched, err := ev.confirm(c.event, c.pipeline)
			if err != nil {
				_ = backoff.Retry(func() error {
					return ev.bus.Retry(c.event.ID, ev.cfg.AugmentRetryDelay)
				}, backoff.WithMaxRetries(backoff.NewConstantBackOff(time.Second), 3))
				return nil
			}
			if !matched {
				return nil
			}
			mu.Lock()
			requests = append(requests, req)
			mu.Unlock()
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return err
	}

	_, submitErrs := ev.reactions.BulkCreateByUser(requests)
	_ = submitErrs // spec §4.8: a submission failure does not block clearing the other matched events

	metrics.EvaluatorEventsProcessed.WithLabelValues(string(eventType), "matched").Add(float64(len(requests)))
	metrics.EvaluatorEventsProcessed.WithLabelValues(string(eventType), "resolved").Add(float64(len(batch)))

	for _, e := range batch {
		resolved = append(resolved, e.ID)
	}
	return ev.bus.Clear(eventType, resolved)
}

// potentialMatch implements spec §4.8 phase 1: type compatibility only,
// no tag-value comparison yet (that needs the augmented data).
func potentialMatch(e *types.Event, p *types.Pipeline) bool {
	for _, trig := range p.Triggers {
		if e.Type == types.EventNewSample && trig.Kind == types.TriggerNewSample {
			return true
		}
		if e.Type == types.EventNewTags && trig.Kind == types.TriggerTag {
			if _, ok := trig.TagTypes[e.Data.TagType]; ok {
				return true
			}
		}
	}
	return false
}

// confirm implements spec §4.8 phase 2: re-fetch the item's full tag
// set and test every Required/Not constraint, the data this event's
// single-batch Tags slice alone cannot answer.
func (ev *Evaluator) confirm(e *types.Event, p *types.Pipeline) (types.ReactionRequest, bool, error) {
	switch e.Type {
	case types.EventNewSample:
		return types.ReactionRequest{
			Group:        p.Group,
			Pipeline:     p.Name,
			Samples:      []string{e.Data.Sample},
			TriggerDepth: e.Depth + 1,
			RequestedBy:  e.User,
		}, true, nil
	case types.EventNewTags:
		fullTags, err := ev.tags.ListForItem(e.Data.TagType, e.Data.Item, e.Data.Groups)
		if err != nil {
			return types.ReactionRequest{}, false, err
		}
		present := map[string]map[string]struct{}{}
		for _, t := range fullTags {
			if present[t.Key] == nil {
				present[t.Key] = map[string]struct{}{}
			}
			present[t.Key][t.Value] = struct{}{}
		}
		for _, trig := range p.Triggers {
			if trig.Kind != types.TriggerTag {
				continue
			}
			if _, ok := trig.TagTypes[e.Data.TagType]; !ok {
				continue
			}
			if satisfiesTrigger(trig, present) {
				return types.ReactionRequest{
					Group:        p.Group,
					Pipeline:     p.Name,
					TriggerDepth: e.Depth + 1,
					RequestedBy:  e.User,
				}, true, nil
			}
		}
	}
	return types.ReactionRequest{}, false, nil
}

func satisfiesTrigger(trig types.EventTrigger, present map[string]map[string]struct{}) bool {
	for key, allowed := range trig.Required {
		values, ok := present[key]
		if !ok {
			return false
		}
		found := false
		for v := range allowed {
			if _, ok := values[v]; ok {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	for key, forbidden := range trig.Not {
		values, ok := present[key]
		if !ok {
			continue
		}
		for v := range forbidden {
			if _, ok := values[v]; ok {
				return false
			}
		}
	}
	return true
}
