package tags

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thorium-sh/thorium/pkg/events"
	"github.com/thorium-sh/thorium/pkg/storage/memstore"
	"github.com/thorium-sh/thorium/pkg/types"
)

func testService() *Service {
	store := memstore.New()
	return New(store, time.Hour, events.New(store))
}

func TestTagRejectsEmptyKey(t *testing.T) {
	s := testService()
	err := s.Tag(types.TagKindFiles, "acme", "", "value", "deadbeef")
	assert.Error(t, err)
}

func TestTagThenQuery(t *testing.T) {
	s := testService()
	require.NoError(t, s.Tag(types.TagKindFiles, "acme", "family", "trojan", "deadbeef"))

	got, err := s.Query(types.TagKindFiles, "acme", "family", "trojan")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "deadbeef", got[0].Item)
}

func TestQueryWithEmptyValueMatchesAny(t *testing.T) {
	s := testService()
	require.NoError(t, s.Tag(types.TagKindFiles, "acme", "family", "trojan", "item1"))
	require.NoError(t, s.Tag(types.TagKindFiles, "acme", "family", "worm", "item2"))

	got, err := s.Query(types.TagKindFiles, "acme", "family", "")
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestListForItemFiltersByVisibleGroups(t *testing.T) {
	s := testService()
	require.NoError(t, s.Tag(types.TagKindFiles, "acme", "family", "trojan", "item1"))
	require.NoError(t, s.Tag(types.TagKindFiles, "other", "family", "worm", "item1"))

	visible, err := s.ListForItem(types.TagKindFiles, "item1", map[string]struct{}{"acme": {}})
	require.NoError(t, err)
	require.Len(t, visible, 1)
	assert.Equal(t, "acme", visible[0].Group)
}

func TestUntagRemovesExactMatch(t *testing.T) {
	s := testService()
	require.NoError(t, s.Tag(types.TagKindFiles, "acme", "family", "trojan", "item1"))
	require.NoError(t, s.Untag(types.TagKindFiles, "acme", "family", "trojan", "item1"))

	got, err := s.Query(types.TagKindFiles, "acme", "family", "trojan")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestNewDefaultsInvalidBucketSize(t *testing.T) {
	store := memstore.New()
	s := New(store, 0, events.New(store))
	assert.Equal(t, DefaultBucketSize, s.bucketSize)
}
