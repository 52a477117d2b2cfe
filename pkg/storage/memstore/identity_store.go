package memstore

import (
	thoriumerrors "github.com/thorium-sh/thorium/pkg/errors"
	"github.com/thorium-sh/thorium/pkg/types"
)

// GetUser implements pkg/identity.Store and pkg/api's user lookups.
func (m *MemStore) GetUser(username string) (*types.User, error) {
	m.usersMu.RLock()
	defer m.usersMu.RUnlock()
	u, ok := m.users[username]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

// GetUserByToken linear-scans for the account whose bearer token
// matches. memstore has no secondary index on tokens; pkg/storage/sqlstore
// stores no users, so memstore is the only user store.
func (m *MemStore) GetUserByToken(token string) (*types.User, error) {
	m.usersMu.RLock()
	defer m.usersMu.RUnlock()
	for _, u := range m.users {
		if u.Token == token {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

// CreateUser rejects a duplicate username (spec §7 Conflict).
func (m *MemStore) CreateUser(u *types.User) error {
	m.usersMu.Lock()
	defer m.usersMu.Unlock()
	if _, ok := m.users[u.Username]; ok {
		return thoriumerrors.NewConflict("username already registered")
	}
	cp := *u
	m.users[u.Username] = &cp
	return nil
}

func (m *MemStore) UpdateUser(u *types.User) error {
	m.usersMu.Lock()
	defer m.usersMu.Unlock()
	if _, ok := m.users[u.Username]; !ok {
		return thoriumerrors.NewNotFound("user not found")
	}
	cp := *u
	m.users[u.Username] = &cp
	return nil
}

// DeleteUser removes the account; owned reactions/comments/tags are
// cleaned up on a best-effort basis by the caller (spec §3 User
// lifetime), not by the store itself.
func (m *MemStore) DeleteUser(username string) error {
	m.usersMu.Lock()
	defer m.usersMu.Unlock()
	delete(m.users, username)
	return nil
}

func (m *MemStore) GetGroup(name types.GroupName) (*types.Group, error) {
	m.groupsMu.RLock()
	defer m.groupsMu.RUnlock()
	g, ok := m.groups[name]
	if !ok {
		return nil, nil
	}
	return g, nil
}

func (m *MemStore) PutGroup(g *types.Group) error {
	m.groupsMu.Lock()
	defer m.groupsMu.Unlock()
	m.groups[g.Name] = g
	return nil
}

func (m *MemStore) DeleteGroup(name types.GroupName) error {
	m.groupsMu.Lock()
	defer m.groupsMu.Unlock()
	delete(m.groups, name)
	return nil
}

func (m *MemStore) ListGroups() ([]*types.Group, error) {
	m.groupsMu.RLock()
	defer m.groupsMu.RUnlock()
	out := make([]*types.Group, 0, len(m.groups))
	for _, g := range m.groups {
		out = append(out, g)
	}
	return out, nil
}
