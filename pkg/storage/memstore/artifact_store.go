package memstore

import "github.com/thorium-sh/thorium/pkg/types"

// GetSample implements pkg/artifacts.Store.
func (m *MemStore) GetSample(sha256 string) (*types.Sample, error) {
	m.samplesMu.RLock()
	defer m.samplesMu.RUnlock()
	s, ok := m.samples[sha256]
	if !ok {
		return nil, nil
	}
	return s, nil
}

// PutSample upserts a sample, merging groups/tags the way a resubmission
// extends visibility rather than replacing it (spec §4.2).
func (m *MemStore) PutSample(s *types.Sample) error {
	m.samplesMu.Lock()
	defer m.samplesMu.Unlock()
	existing, ok := m.samples[s.SHA256]
	if !ok {
		m.samples[s.SHA256] = s
		return nil
	}
	for g := range s.Groups {
		existing.Groups[g] = struct{}{}
	}
	existing.Submissions = append(existing.Submissions, s.Submissions...)
	return nil
}

func (m *MemStore) GetRepo(url string) (*types.Repo, error) {
	m.reposMu.RLock()
	defer m.reposMu.RUnlock()
	r, ok := m.repos[url]
	if !ok {
		return nil, nil
	}
	return r, nil
}

func (m *MemStore) PutRepo(r *types.Repo) error {
	m.reposMu.Lock()
	defer m.reposMu.Unlock()
	existing, ok := m.repos[r.URL]
	if !ok {
		m.repos[r.URL] = r
		return nil
	}
	for g := range r.Groups {
		existing.Groups[g] = struct{}{}
	}
	existing.Submissions = append(existing.Submissions, r.Submissions...)
	return nil
}
