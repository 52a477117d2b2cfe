// Package events implements the Event Bus of spec §4.7: a bounded
// producer/consumer surface the Trigger Evaluator drains. Grounded on
// common/pkg/notification/channel's producer/consumer split, adapted
// from email delivery to the NewSample/NewTags streams.
package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/thorium-sh/thorium/pkg/types"
)

// Store is the persistence contract this package needs.
type Store interface {
	Push(e *types.Event) error
	Pop(eventType types.EventType, limit int, now int64) ([]*types.Event, error)
	Clear(eventType types.EventType, ids []string) error
	SetRetry(id string, retryAt int64) error
	ResetAll(eventType types.EventType) error
}

type Bus struct {
	store Store
}

func New(store Store) *Bus {
	return &Bus{store: store}
}

// PushNewSample implements spec §4.7: every sample submission emits a
// NewSample event regardless of the submitting user's depth budget
// (depth accounting belongs to the trigger evaluator, not the producer
// side).
func (b *Bus) PushNewSample(sha256, user string) error {
	return b.store.Push(&types.Event{
		ID: uuid.NewString(), Type: types.EventNewSample, User: user,
		Timestamp: time.Now().UTC(), Data: types.EventData{Sample: sha256},
	})
}

// PushNewTags implements spec §4.7: one event per tagging call,
// carrying every (key, value) pair applied in that call so the
// evaluator can match multi-key Tag triggers against a single batch.
func (b *Bus) PushNewTags(kind types.TagKind, item, user string, groups map[string]struct{}, tags []types.TagKV) error {
	return b.store.Push(&types.Event{
		ID: uuid.NewString(), Type: types.EventNewTags, User: user,
		Timestamp: time.Now().UTC(),
		Data: types.EventData{TagType: kind, Item: item, Groups: groups, Tags: tags},
	})
}

// Pop implements spec §4.7/§4.8 step 1: lease up to limit unleased,
// non-retry-delayed events for the evaluator's filter phase.
func (b *Bus) Pop(eventType types.EventType, limit int) ([]*types.Event, error) {
	return b.store.Pop(eventType, limit, time.Now().UTC().Unix())
}

// Clear implements spec §4.8 step 6: drop events whose matching
// reactions have all been submitted.
func (b *Bus) Clear(eventType types.EventType, ids []string) error {
	return b.store.Clear(eventType, ids)
}

// Retry implements spec §4.8 step 3: an augmentation fetch failed;
// re-offer the event after delay instead of dropping it.
func (b *Bus) Retry(id string, delay time.Duration) error {
	return b.store.SetRetry(id, time.Now().UTC().Add(delay).Unix())
}

// ResetAll implements spec §4.7 "reset_all": release every in-flight
// lease of eventType, called at evaluator startup so a crash mid-batch
// doesn't strand events.
func (b *Bus) ResetAll(eventType types.EventType) error {
	return b.store.ResetAll(eventType)
}
