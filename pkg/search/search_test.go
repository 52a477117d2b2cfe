package search

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thorium-sh/thorium/pkg/types"
)

type fakeSessionStore struct {
	sessions map[string]*Session
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{sessions: map[string]*Session{}}
}

func (f *fakeSessionStore) GetSession(index string) (*Session, error) {
	return f.sessions[index], nil
}

func (f *fakeSessionStore) PutSession(s *Session) error {
	f.sessions[s.Index] = s
	return nil
}

func evenTokenSpace(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = strconv.Itoa(i)
	}
	return out
}

func TestInitPartitionsTokenSpaceIntoWorkerChunks(t *testing.T) {
	s := New(newFakeSessionStore(), 2)
	session, ranges, err := s.Init("files", 3, 100, evenTokenSpace)
	require.NoError(t, err)
	assert.Equal(t, 6, session.ChunkCount)
	assert.Len(t, ranges, 6)
}

func TestInitRejectsNonPositiveChunkParams(t *testing.T) {
	s := New(newFakeSessionStore(), 2)
	_, _, err := s.Init("files", 0, 100, evenTokenSpace)
	assert.Error(t, err)
}

func TestInitResumesMatchingSession(t *testing.T) {
	store := newFakeSessionStore()
	s := New(store, 2)
	session, ranges, err := s.Init("files", 3, 100, evenTokenSpace)
	require.NoError(t, err)
	require.NoError(t, s.MarkComplete(session, ranges[0]))

	resumed, remaining, err := s.Init("files", 3, 100, evenTokenSpace)
	require.NoError(t, err)
	assert.Equal(t, session.Index, resumed.Index)
	assert.Len(t, remaining, len(ranges)-1)
}

func TestInitDiscardsSessionOnChunkMismatch(t *testing.T) {
	store := newFakeSessionStore()
	s := New(store, 2)
	session, ranges, err := s.Init("files", 3, 100, evenTokenSpace)
	require.NoError(t, err)
	require.NoError(t, s.MarkComplete(session, ranges[0]))

	restarted, freshRanges, err := s.Init("files", 4, 100, evenTokenSpace)
	require.NoError(t, err)
	assert.Len(t, freshRanges, 8)
	assert.Empty(t, restarted.Completed)
}

func TestSplitStopsAtMaxDepth(t *testing.T) {
	midpoint := func(r Range) string { return r.Start + "-mid" }
	r := Range{Start: "a", End: "z", Depth: maxSplitDepth}
	out := Split(r, maxRangeEntries+1, midpoint)
	assert.Equal(t, []Range{r}, out)
}

func TestSplitHalvesOversizedRange(t *testing.T) {
	midpoint := func(r Range) string { return "m" }
	r := Range{Start: "a", End: "z"}
	out := Split(r, maxRangeEntries+1, midpoint)
	assert.Len(t, out, 2)
	assert.Equal(t, 1, out[0].Depth)
}

func TestLiveUpdaterCompactsBurstToOneEvent(t *testing.T) {
	u := NewLiveUpdater()
	groups := map[string]struct{}{"acme": {}}
	u.Push(UpdateEvent{Item: "deadbeef", Kind: types.TagKindFiles, Groups: groups})
	u.Push(UpdateEvent{Item: "deadbeef", Kind: types.TagKindFiles, Groups: groups})

	drained := u.Drain()
	require.Len(t, drained, 1)
	assert.Equal(t, "deadbeef", drained[0].Item)
}

func TestLiveUpdaterDrainClearsPending(t *testing.T) {
	u := NewLiveUpdater()
	u.Push(UpdateEvent{Item: "deadbeef", Kind: types.TagKindFiles})
	require.Len(t, u.Drain(), 1)
	assert.Empty(t, u.Drain())
}
