package memstore

import "github.com/thorium-sh/thorium/pkg/search"

// GetSession implements pkg/search.SessionStore (spec §4.12).
func (m *MemStore) GetSession(index string) (*search.Session, error) {
	m.searchSessionsMu.RLock()
	defer m.searchSessionsMu.RUnlock()
	s, ok := m.searchSessions[index]
	if !ok {
		return nil, nil
	}
	cp := *s
	cp.Completed = make(map[string]struct{}, len(s.Completed))
	for k := range s.Completed {
		cp.Completed[k] = struct{}{}
	}
	return &cp, nil
}

// PutSession implements pkg/search.SessionStore.
func (m *MemStore) PutSession(s *search.Session) error {
	m.searchSessionsMu.Lock()
	defer m.searchSessionsMu.Unlock()
	cp := *s
	cp.Completed = make(map[string]struct{}, len(s.Completed))
	for k := range s.Completed {
		cp.Completed[k] = struct{}{}
	}
	m.searchSessions[s.Index] = &cp
	return nil
}
