package memstore

import "github.com/thorium-sh/thorium/pkg/types"

// Push implements pkg/events.Store: append to the FIFO tail (spec §4.7).
func (m *MemStore) Push(e *types.Event) error {
	m.eventsMu.Lock()
	defer m.eventsMu.Unlock()
	m.events[e.ID] = e
	m.eventSeq = append(m.eventSeq, e.ID)
	return nil
}

// Pop dequeues up to limit events of type that are neither in flight nor
// waiting on a retry timestamp, and leases them (spec §4.7, §4.8 step 1).
func (m *MemStore) Pop(eventType types.EventType, limit int, now int64) ([]*types.Event, error) {
	m.eventsMu.Lock()
	defer m.eventsMu.Unlock()
	var out []*types.Event
	for _, id := range m.eventSeq {
		if len(out) >= limit {
			break
		}
		if _, leased := m.inFlight[id]; leased {
			continue
		}
		e, ok := m.events[id]
		if !ok || e.Type != eventType {
			continue
		}
		if !e.RetryAt.IsZero() && e.RetryAt.Unix() > now {
			continue
		}
		m.inFlight[id] = struct{}{}
		out = append(out, e)
	}
	return out, nil
}

// Clear implements pkg/events.Store: remove resolved events and their
// lease (spec §4.7, §4.8 step 6).
func (m *MemStore) Clear(eventType types.EventType, ids []string) error {
	m.eventsMu.Lock()
	defer m.eventsMu.Unlock()
	toDelete := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		toDelete[id] = struct{}{}
	}
	for _, id := range ids {
		delete(m.events, id)
		delete(m.inFlight, id)
	}
	newSeq := m.eventSeq[:0]
	for _, id := range m.eventSeq {
		if _, gone := toDelete[id]; gone {
			continue
		}
		newSeq = append(newSeq, id)
	}
	m.eventSeq = newSeq
	return nil
}

// SetRetry records an augmentation failure's retry timestamp without
// dropping the event (spec §4.8 step 3).
func (m *MemStore) SetRetry(id string, retryAt int64) error {
	m.eventsMu.Lock()
	defer m.eventsMu.Unlock()
	if e, ok := m.events[id]; ok {
		e.RetryAt = unixToTime(retryAt)
	}
	return nil
}

// ResetAll returns every in-flight event of type to the head of the
// queue, releasing its lease (spec §4.7 "reset_all", called at evaluator
// startup and on transient failure).
func (m *MemStore) ResetAll(eventType types.EventType) error {
	m.eventsMu.Lock()
	defer m.eventsMu.Unlock()
	var reset []string
	for _, id := range m.eventSeq {
		e, ok := m.events[id]
		if !ok || e.Type != eventType {
			continue
		}
		if _, leased := m.inFlight[id]; leased {
			delete(m.inFlight, id)
			reset = append(reset, id)
		}
	}
	if len(reset) == 0 {
		return nil
	}
	resetSet := make(map[string]struct{}, len(reset))
	for _, id := range reset {
		resetSet[id] = struct{}{}
	}
	remaining := make([]string, 0, len(m.eventSeq))
	for _, id := range m.eventSeq {
		if _, ok := resetSet[id]; !ok {
			remaining = append(remaining, id)
		}
	}
	m.eventSeq = append(reset, remaining...)
	return nil
}
