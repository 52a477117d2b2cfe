// Package identity implements spec §4.1: the authorisation predicates
// that every mutation path consults first. Grounded on
// apiserver/pkg/handlers/authority's Authorizer pattern (singleton
// client wrapper, Input-struct style authorise calls), adapted here to
// operate over an in-process Store rather than a controller-runtime
// client since Thorium's persistence is abstract (spec §1 non-goals).
package identity

import (
	"sync"

	thoriumerrors "github.com/thorium-sh/thorium/pkg/errors"
	"github.com/thorium-sh/thorium/pkg/types"
)

// SystemAdminRequired mirrors the teacher's authority.SystemAdminRequired
// constant message.
const SystemAdminRequired = "system administrator privileges are required"

// Store is the minimal persistence contract identity needs; concrete
// implementations live in pkg/storage.
type Store interface {
	GetUser(username string) (*types.User, error)
	GetGroup(name types.GroupName) (*types.Group, error)
}

// Registry implements the predicates of spec §4.1 over a Store.
// It keeps no group-membership cache: Authorize reads the group from
// the Store on every call.
type Registry struct {
	mu    sync.RWMutex
	store Store
}

func NewRegistry(store Store) *Registry {
	return &Registry{store: store}
}

// Authorize returns the named Group iff user is a member or a global
// admin, else Unauthorized (spec §4.1 "Group::authorize").
func (r *Registry) Authorize(user *types.User, name types.GroupName) (*types.Group, error) {
	g, err := r.store.GetGroup(name)
	if err != nil {
		return nil, err
	}
	if g == nil {
		return nil, thoriumerrors.NewNotFound("group not found")
	}
	if user.Role == types.RoleAdmin {
		return g, nil
	}
	if !g.Member(user.Username) {
		return nil, thoriumerrors.NewUnauthorized("user is not a member of group " + string(name))
	}
	return g, nil
}

// Editable reports editable(u): owners ∪ managers, or global admin
// (spec §3 Group invariants).
func Editable(g *types.Group, user *types.User) error {
	if user.Role == types.RoleAdmin {
		return nil
	}
	if _, ok := g.Owners[user.Username]; ok {
		return nil
	}
	if _, ok := g.Managers[user.Username]; ok {
		return nil
	}
	return thoriumerrors.NewUnauthorized("user cannot edit group " + string(g.Name))
}

// Modifiable reports modifiable(u): owners, or global admin
// (spec §3 Group invariants).
func Modifiable(g *types.Group, user *types.User) error {
	if user.Role == types.RoleAdmin {
		return nil
	}
	if _, ok := g.Owners[user.Username]; ok {
		return nil
	}
	return thoriumerrors.NewUnauthorized("user cannot modify group " + string(g.Name))
}

// Developer reports developer(u, scaler): membership ∪ scaler-specific
// permission (spec §3 Group invariants).
func Developer(g *types.Group, user *types.User, scaler types.ScalerKind) error {
	if user.Role == types.RoleAdmin || user.Role == types.RoleDeveloper {
		if g.Member(user.Username) || user.Role == types.RoleAdmin {
			return nil
		}
	}
	if scalers, ok := g.DeveloperScalers[user.Username]; ok {
		if _, ok := scalers[scaler]; ok {
			return nil
		}
	}
	return thoriumerrors.NewUnauthorized("developer role required for scaler " + string(scaler))
}

// DeveloperMany requires Developer for every scaler in scalers
// (spec §4.1 "developer_many").
func DeveloperMany(g *types.Group, user *types.User, scalers []types.ScalerKind) error {
	for _, s := range scalers {
		if err := Developer(g, user, s); err != nil {
			return err
		}
	}
	return nil
}

// Allowed reports whether the group's allow-list permits action
// (spec §3 Group.allowed).
func Allowed(g *types.Group, action types.AllowAction) error {
	if _, ok := g.Allowed[action]; ok {
		return nil
	}
	return thoriumerrors.NewForbidden(string(action) + " is not permitted in group " + string(g.Name))
}

// IsSystemAdmin mirrors the teacher's User.IsSystemAdmin() helper.
func IsSystemAdmin(u *types.User) bool { return u.Role == types.RoleAdmin }
