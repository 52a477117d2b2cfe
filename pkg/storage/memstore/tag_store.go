package memstore

import "github.com/thorium-sh/thorium/pkg/types"

// InsertTag implements pkg/tags.Store. Insertion is idempotent under the
// (kind, group, year, bucket, key, value, item) primary key (spec §3).
func (m *MemStore) InsertTag(t types.Tag) error {
	m.tagsMu.Lock()
	defer m.tagsMu.Unlock()
	for i, existing := range m.tags {
		if sameTagIdentity(existing, t) {
			m.tags[i] = t // idempotent overwrite, e.g. timestamp correction
			return nil
		}
	}
	m.tags = append(m.tags, t)
	return nil
}

func sameTagIdentity(a, b types.Tag) bool {
	return a.Kind == b.Kind && a.Group == b.Group && a.Year == b.Year &&
		a.Bucket == b.Bucket && a.Key == b.Key && a.Value == b.Value && a.Item == b.Item
}

// ListTags implements the cursor-free convenience lookup used by
// pkg/trigger's augment phase: every tag on item within the visible
// groups.
func (m *MemStore) ListTags(kind types.TagKind, item string, groups map[string]struct{}) ([]types.Tag, error) {
	m.tagsMu.RLock()
	defer m.tagsMu.RUnlock()
	var out []types.Tag
	for _, t := range m.tags {
		if t.Kind != kind || t.Item != item {
			continue
		}
		if _, ok := groups[t.Group]; !ok {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

// Query implements pkg/tags.Store's filtered listing: list(tags, group,
// key, value) (spec §8 invariant 5).
func (m *MemStore) Query(kind types.TagKind, group, key, value string) ([]types.Tag, error) {
	m.tagsMu.RLock()
	defer m.tagsMu.RUnlock()
	var out []types.Tag
	for _, t := range m.tags {
		if t.Kind == kind && t.Group == group && t.Key == key && (value == "" || t.Value == value) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *MemStore) DeleteTag(kind types.TagKind, group, key, value, item string) error {
	m.tagsMu.Lock()
	defer m.tagsMu.Unlock()
	out := m.tags[:0]
	for _, t := range m.tags {
		if t.Kind == kind && t.Group == group && t.Key == key && t.Value == value && t.Item == item {
			continue
		}
		out = append(out, t)
	}
	m.tags = out
	return nil
}
