// Package tags implements spec §4.6's Tag Store surface: insertion,
// deletion and the key/value listing used by the Trigger Evaluator's
// augment phase. Grounded on common/pkg/database's cursor-pager idiom
// (spec §9 CursorPager capability), generalised here from SQL rows to
// any Store that can answer a bounded Query.
package tags

import (
	"time"

	thoriumerrors "github.com/thorium-sh/thorium/pkg/errors"
	"github.com/thorium-sh/thorium/pkg/types"
)

// Store is the persistence contract this package needs; the production
// implementation (pkg/storage/tagstore) partitions by (kind, group,
// year, bucket) per spec §3, while pkg/storage/memstore answers the
// same contract with a flat scan.
type Store interface {
	InsertTag(t types.Tag) error
	ListTags(kind types.TagKind, item string, groups map[string]struct{}) ([]types.Tag, error)
	Query(kind types.TagKind, group, key, value string) ([]types.Tag, error)
	DeleteTag(kind types.TagKind, group, key, value, item string) error
}

// DefaultBucketSize is the partition width of spec §3's "(kind, group,
// year, bucket)" key used when New gets a non-positive bucketSize; configurable so operators can trade partition
// count against scan size (spec §9).
const DefaultBucketSize = 24 * time.Hour

// EventProducer is the narrow slice of pkg/events.Bus this package
// needs, so Tag can push a NewTags event (spec §4.7) without depending
// on the whole Bus surface.
type EventProducer interface {
	PushNewTags(kind types.TagKind, item, user string, groups map[string]struct{}, tags []types.TagKV) error
}

type Service struct {
	store      Store
	bucketSize time.Duration
	bus        EventProducer
}

func New(store Store, bucketSize time.Duration, bus EventProducer) *Service {
	if bucketSize <= 0 {
		bucketSize = DefaultBucketSize
	}
	return &Service{store: store, bucketSize: bucketSize, bus: bus}
}

// Tag implements spec §4.6 "tag": insertion is idempotent under the
// primary key (kind, group, year, bucket, key, value, item). Every
// successful tag pushes a NewTags event (spec §4.7) scoped to group so
// the Trigger Evaluator only matches reactions the tagging group can
// see.
func (s *Service) Tag(kind types.TagKind, group, key, value, item string) error {
	if key == "" {
		return thoriumerrors.NewValidation("tag key is required")
	}
	now := time.Now().UTC()
	year, bucket := types.BucketFor(now, s.bucketSize)
	if err := s.store.InsertTag(types.Tag{
		Kind: kind, Group: group, Key: key, Value: value, Item: item,
		Timestamp: now, Year: year, Bucket: bucket,
	}); err != nil {
		return err
	}
	return s.bus.PushNewTags(kind, item, "", map[string]struct{}{group: {}}, []types.TagKV{{Key: key, Value: value}})
}

// Untag implements spec §4.6 "untag".
func (s *Service) Untag(kind types.TagKind, group, key, value, item string) error {
	return s.store.DeleteTag(kind, group, key, value, item)
}

// ListForItem returns every tag on item visible to userGroups, used by
// the Trigger Evaluator's augment phase (spec §4.8 step 2) and by the
// artifact detail view.
func (s *Service) ListForItem(kind types.TagKind, item string, userGroups map[string]struct{}) ([]types.Tag, error) {
	return s.store.ListTags(kind, item, userGroups)
}

// Query implements spec §4.6 "list(tags, group, key, value)"; value
// empty means "any value for key" (spec §8 invariant 5).
func (s *Service) Query(kind types.TagKind, group, key, value string) ([]types.Tag, error) {
	return s.store.Query(kind, group, key, value)
}
