// Package search implements the Search-Stream Initialisation of spec
// §4.12: chunked resumable indexing of file/repo results, plus a
// compacted live-update consumption path. Grounded on
// common/pkg/database's cursor-pager idiom for the chunk-range
// resumability and on the Trigger Evaluator's pop/augment/clear shape
// for the live-update half, adapted here with a (item, kind, groups)
// compaction key so a burst of updates collapses to one re-stream.
package search

import (
	"sort"
	"strings"
	"sync"
	"time"

	thoriumerrors "github.com/thorium-sh/thorium/pkg/errors"
	"github.com/thorium-sh/thorium/pkg/types"
)

// Session is the resumable state of one indexing run (spec §4.12
// "{chunk_count, chunk_size, start}"). Resumability requires an exact
// match on ChunkCount and ChunkSize; any mismatch discards the session.
type Session struct {
	Index      string
	ChunkCount int
	ChunkSize  int
	Start      string
	Completed  map[string]struct{} // durable set of completed "(start,end)" range keys
}

// SessionStore persists Session state across restarts.
type SessionStore interface {
	GetSession(index string) (*Session, error)
	PutSession(s *Session) error
}

// maxRangeEntries and maxSplitDepth implement spec §8's Open Question
// resolution (DESIGN.md): a chunk range is split further once it
// exceeds 10,000 entries, and splitting stops at recursion depth 10
// regardless of range size, trading completeness for a hard bound on
// fan-out.
const (
	maxRangeEntries = 10000
	maxSplitDepth   = 10
)

// Range is one primary-key-token-space slice of the index.
type Range struct {
	Start string
	End   string
	Depth int
}

type Streamer struct {
	store   SessionStore
	workers int
}

func New(store SessionStore, workers int) *Streamer {
	if workers <= 0 {
		workers = 1
	}
	return &Streamer{store: store, workers: workers}
}

// Init implements spec §4.12: partition the token space into
// workers × chunksPerWorker ranges and persist (or resume) a session.
// A mismatched chunkCount/chunkSize discards any prior session and
// restarts from scratch, per spec.
func (s *Streamer) Init(index string, chunksPerWorker, chunkSize int, tokenSpace func(n int) []string) (*Session, []Range, error) {
	if chunksPerWorker <= 0 || chunkSize <= 0 {
		return nil, nil, thoriumerrors.NewValidation("chunksPerWorker and chunkSize must be positive")
	}
	chunkCount := s.workers * chunksPerWorker
	existing, err := s.store.GetSession(index)
	if err != nil {
		return nil, nil, err
	}
	if existing != nil && existing.ChunkCount == chunkCount && existing.ChunkSize == chunkSize {
		return existing, s.remainingRanges(existing, tokenSpace), nil
	}

	session := &Session{Index: index, ChunkCount: chunkCount, ChunkSize: chunkSize, Completed: map[string]struct{}{}}
	if err := s.store.PutSession(session); err != nil {
		return nil, nil, err
	}
	return session, s.remainingRanges(session, tokenSpace), nil
}

func (s *Streamer) remainingRanges(session *Session, tokenSpace func(n int) []string) []Range {
	tokens := tokenSpace(session.ChunkCount + 1)
	var out []Range
	for i := 0; i+1 < len(tokens); i++ {
		r := Range{Start: tokens[i], End: tokens[i+1]}
		if _, done := session.Completed[rangeKey(r)]; done {
			continue
		}
		out = append(out, r)
	}
	return out
}

func rangeKey(r Range) string { return r.Start + ".." + r.End }

// MarkComplete logs a finished (start, end) range into the durable set
// so an interrupted init can resume without re-scanning it.
func (s *Streamer) MarkComplete(session *Session, r Range) error {
	if session.Completed == nil {
		session.Completed = map[string]struct{}{}
	}
	session.Completed[rangeKey(r)] = struct{}{}
	return s.store.PutSession(session)
}

// Split implements the Open Question resolution above: a range whose
// entry count exceeds maxRangeEntries is halved and recursed into,
// stopping at maxSplitDepth regardless of size.
func Split(r Range, entryCount int, midpoint func(Range) string) []Range {
	if entryCount <= maxRangeEntries || r.Depth >= maxSplitDepth {
		return []Range{r}
	}
	mid := midpoint(r)
	left := Range{Start: r.Start, End: mid, Depth: r.Depth + 1}
	right := Range{Start: mid, End: r.End, Depth: r.Depth + 1}
	return append(Split(left, entryCount/2, midpoint), Split(right, entryCount/2, midpoint)...)
}

// UpdateEvent is a live-update event for the compacted consumption
// path (spec §4.12 second paragraph).
type UpdateEvent struct {
	Item   string
	Kind   types.TagKind
	Groups map[string]struct{}
	At     time.Time
}

func compactKey(e UpdateEvent) string {
	key := string(e.Kind) + "/" + e.Item + "/"
	// Groups affect which index partitions need the re-stream, so they
	// are part of the compaction key even though they don't affect Item.
	// Sorted so the key does not depend on map iteration order.
	groups := make([]string, 0, len(e.Groups))
	for g := range e.Groups {
		groups = append(groups, g)
	}
	sort.Strings(groups)
	return key + strings.Join(groups, ",")
}

// LiveUpdater compacts a burst of updates to the same (item, kind,
// groups) into a single pending re-stream, the way the Trigger
// Evaluator's bus drains a batch without re-processing duplicates.
type LiveUpdater struct {
	mu      sync.Mutex
	pending map[string]UpdateEvent
}

func NewLiveUpdater() *LiveUpdater {
	return &LiveUpdater{pending: map[string]UpdateEvent{}}
}

// Push records an update, overwriting any already-pending event for
// the same compaction key (spec §4.12 "a burst ... produces one
// re-stream").
func (u *LiveUpdater) Push(e UpdateEvent) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.pending[compactKey(e)] = e
}

// Drain returns and clears every pending compacted update.
func (u *LiveUpdater) Drain() []UpdateEvent {
	u.mu.Lock()
	defer u.mu.Unlock()
	out := make([]UpdateEvent, 0, len(u.pending))
	for _, e := range u.pending {
		out = append(out, e)
	}
	u.pending = map[string]UpdateEvent{}
	return out
}
