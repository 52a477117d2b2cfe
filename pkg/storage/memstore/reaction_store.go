package memstore

import (
	thoriumerrors "github.com/thorium-sh/thorium/pkg/errors"
	"github.com/thorium-sh/thorium/pkg/types"
)

// CreateReaction implements pkg/reactions.Store (spec §4.4 step viii).
func (m *MemStore) CreateReaction(r *types.Reaction) error {
	m.reactionsMu.Lock()
	defer m.reactionsMu.Unlock()
	if _, ok := m.reactions[r.ID]; ok {
		return thoriumerrors.NewConflict("reaction already exists")
	}
	cp := *r
	m.reactions[r.ID] = &cp
	return nil
}

func (m *MemStore) GetReaction(id string) (*types.Reaction, error) {
	m.reactionsMu.RLock()
	defer m.reactionsMu.RUnlock()
	r, ok := m.reactions[id]
	if !ok {
		return nil, nil
	}
	cp := *r
	return &cp, nil
}

func (m *MemStore) UpdateReaction(r *types.Reaction) error {
	m.reactionsMu.Lock()
	defer m.reactionsMu.Unlock()
	if _, ok := m.reactions[r.ID]; !ok {
		return thoriumerrors.NewNotFound("reaction not found")
	}
	cp := *r
	m.reactions[r.ID] = &cp
	return nil
}

// DeleteReaction implements the cascade delete of spec §4.4 "Delete":
// the reaction and its job rows are removed together by the caller
// (pkg/reactions orchestrates both stores).
func (m *MemStore) DeleteReaction(id string) error {
	m.reactionsMu.Lock()
	defer m.reactionsMu.Unlock()
	delete(m.reactions, id)
	return nil
}

// ListSubReactions implements the generator fan-out lookup of spec §4.4
// ("a generator's sub-reactions all report before the parent proceeds").
func (m *MemStore) ListSubReactions(parentID string) ([]*types.Reaction, error) {
	m.reactionsMu.RLock()
	defer m.reactionsMu.RUnlock()
	parent, ok := m.reactions[parentID]
	if !ok {
		return nil, nil
	}
	out := make([]*types.Reaction, 0, len(parent.SubReactions))
	for id := range parent.SubReactions {
		if sub, ok := m.reactions[id]; ok {
			cp := *sub
			out = append(out, &cp)
		}
	}
	return out, nil
}

// AddSubReaction records a generator-spawned child under its parent
// (spec §4.4 Generators).
func (m *MemStore) AddSubReaction(parentID, childID string) error {
	m.reactionsMu.Lock()
	defer m.reactionsMu.Unlock()
	parent, ok := m.reactions[parentID]
	if !ok {
		return thoriumerrors.NewNotFound("parent reaction not found")
	}
	if parent.SubReactions == nil {
		parent.SubReactions = map[string]struct{}{}
	}
	parent.SubReactions[childID] = struct{}{}
	return nil
}

// ListReactionsByPipeline backs the "used_by" removal-eligibility check
// (spec §4.3 ban rules reference in-flight reactions indirectly through
// jobs, but pipeline deletion additionally checks for live reactions).
func (m *MemStore) ListReactionsByPipeline(group, pipeline string) ([]*types.Reaction, error) {
	m.reactionsMu.RLock()
	defer m.reactionsMu.RUnlock()
	var out []*types.Reaction
	for _, r := range m.reactions {
		if r.Group == group && r.Pipeline == pipeline && !r.Status.Terminal() {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}
