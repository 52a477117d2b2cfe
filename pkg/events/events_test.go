package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thorium-sh/thorium/pkg/storage/memstore"
	"github.com/thorium-sh/thorium/pkg/types"
)

func TestPushNewSampleThenPop(t *testing.T) {
	b := New(memstore.New())
	require.NoError(t, b.PushNewSample("deadbeef", "alice"))

	got, err := b.Pop(types.EventNewSample, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "deadbeef", got[0].Data.Sample)
}

func TestPopLeasesSoASecondPopIsEmpty(t *testing.T) {
	b := New(memstore.New())
	require.NoError(t, b.PushNewSample("deadbeef", "alice"))

	first, err := b.Pop(types.EventNewSample, 10)
	require.NoError(t, err)
	require.Len(t, first, 1)

	second, err := b.Pop(types.EventNewSample, 10)
	require.NoError(t, err)
	assert.Empty(t, second, "an in-flight event must not be handed out twice")
}

func TestClearDropsEventPermanently(t *testing.T) {
	b := New(memstore.New())
	require.NoError(t, b.PushNewSample("deadbeef", "alice"))
	leased, err := b.Pop(types.EventNewSample, 10)
	require.NoError(t, err)
	require.Len(t, leased, 1)

	require.NoError(t, b.Clear(types.EventNewSample, []string{leased[0].ID}))
	require.NoError(t, b.ResetAll(types.EventNewSample))

	got, err := b.Pop(types.EventNewSample, 10)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestResetAllReturnsInFlightEventsToQueue(t *testing.T) {
	b := New(memstore.New())
	require.NoError(t, b.PushNewSample("deadbeef", "alice"))
	leased, err := b.Pop(types.EventNewSample, 10)
	require.NoError(t, err)
	require.Len(t, leased, 1)

	require.NoError(t, b.ResetAll(types.EventNewSample))

	got, err := b.Pop(types.EventNewSample, 10)
	require.NoError(t, err)
	require.Len(t, got, 1, "resetting in-flight leases must make the event claimable again")
}

func TestRetryDelaysReclaim(t *testing.T) {
	b := New(memstore.New())
	require.NoError(t, b.PushNewSample("deadbeef", "alice"))
	leased, err := b.Pop(types.EventNewSample, 10)
	require.NoError(t, err)
	require.Len(t, leased, 1)
	require.NoError(t, b.ResetAll(types.EventNewSample))

	require.NoError(t, b.Retry(leased[0].ID, time.Hour))

	got, err := b.Pop(types.EventNewSample, 10)
	require.NoError(t, err)
	assert.Empty(t, got, "an event on retry delay must not be immediately reclaimable")
}

func TestPushNewTagsCarriesBatch(t *testing.T) {
	b := New(memstore.New())
	tagged := []types.TagKV{{Key: "family", Value: "trojan"}}
	require.NoError(t, b.PushNewTags(types.TagKindFiles, "deadbeef", "alice", map[string]struct{}{"acme": {}}, tagged))

	got, err := b.Pop(types.EventNewTags, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, tagged, got[0].Data.Tags)
}
