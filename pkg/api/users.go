package api

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	thoriumerrors "github.com/thorium-sh/thorium/pkg/errors"
	"github.com/thorium-sh/thorium/pkg/identity"
	"github.com/thorium-sh/thorium/pkg/types"
)

// UserStore is the persistence surface users.go needs, satisfied by
// pkg/storage/memstore and pkg/storage/sqlstore-adjacent identity
// backings.
type UserStore interface {
	GetUser(username string) (*types.User, error)
	GetUserByToken(token string) (*types.User, error)
	CreateUser(u *types.User) error
	UpdateUser(u *types.User) error
	DeleteUser(username string) error
	GetGroup(name types.GroupName) (*types.Group, error)
	PutGroup(g *types.Group) error
	DeleteGroup(name types.GroupName) error
	ListGroups() ([]*types.Group, error)
}

// UserService backs the /users and /groups routes and also implements
// middleware.UserResolver so Authenticate can resolve a caller.
type UserService struct {
	store     UserStore
	identity  *identity.Registry
	adminSeed string // bootstrap secret key, spec §6 "secret-key admin bootstrap"
}

func NewUserService(store UserStore, adminSeed string) *UserService {
	return &UserService{store: store, identity: identity.NewRegistry(store), adminSeed: adminSeed}
}

// ByToken implements middleware.UserResolver for bearer auth: the
// token is compared in constant time against the stored value so
// response timing doesn't leak a partial match.
func (s *UserService) ByToken(token string) (*types.User, error) {
	if token == "" {
		return nil, nil
	}
	u, err := s.store.GetUserByToken(token)
	if err != nil || u == nil {
		return nil, err
	}
	if subtle.ConstantTimeCompare([]byte(u.Token), []byte(token)) != 1 {
		return nil, nil
	}
	return u, nil
}

// ByBasicAuth implements middleware.UserResolver for HTTP basic auth,
// checking the bcrypt-hashed password stored alongside the username.
func (s *UserService) ByBasicAuth(username, password string) (*types.User, error) {
	u, err := s.store.GetUser(username)
	if err != nil || u == nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.Token), []byte(password)); err != nil {
		return nil, nil
	}
	return u, nil
}

// Bootstrap implements spec §6's secret-key admin bootstrap: the very
// first admin account is created by presenting the deployment's shared
// secret instead of an existing admin's credentials, since no admin
// exists yet to authorise one.
func (s *UserService) Bootstrap(c *gin.Context) (interface{}, error) {
	var req struct {
		SecretKey string `json:"secret_key" binding:"required"`
		Username  string `json:"username" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		return nil, thoriumerrors.NewValidation(err.Error())
	}
	if s.adminSeed == "" || subtle.ConstantTimeCompare([]byte(req.SecretKey), []byte(s.adminSeed)) != 1 {
		return nil, thoriumerrors.NewUnauthorized("invalid bootstrap secret key")
	}
	token, err := newToken()
	if err != nil {
		return nil, thoriumerrors.Wrap(err, "generating admin token")
	}
	u := &types.User{Username: req.Username, Role: types.RoleAdmin, Groups: map[string]struct{}{}, Token: token, Verified: true}
	if err := s.store.CreateUser(u); err != nil {
		return nil, err
	}
	return gin.H{"username": u.Username, "token": token}, nil
}

func (s *UserService) createGroupHandler(c *gin.Context) (interface{}, error) {
	user, err := currentUser(c)
	if err != nil {
		return nil, err
	}
	var req struct {
		Name string `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		return nil, thoriumerrors.NewValidation(err.Error())
	}
	return s.CreateGroup(user, types.GroupName(req.Name))
}

func (s *UserService) addMemberHandler(c *gin.Context) (interface{}, error) {
	actor, err := currentUser(c)
	if err != nil {
		return nil, err
	}
	var req struct {
		Username string `json:"username" binding:"required"`
		Role     string `json:"role"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		return nil, thoriumerrors.NewValidation(err.Error())
	}
	name := types.GroupName(c.Param("group"))
	return nil, s.AddMember(actor, name, req.Username, req.Role)
}

func newToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// CreateGroup implements spec §3 Group creation: the creator becomes
// the sole owner.
func (s *UserService) CreateGroup(creator *types.User, name types.GroupName) (*types.Group, error) {
	if existing, err := s.store.GetGroup(name); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, thoriumerrors.NewConflict("group already exists")
	}
	g := types.NewGroup(name)
	g.Owners[creator.Username] = struct{}{}
	if err := s.store.PutGroup(g); err != nil {
		return nil, err
	}
	return g, nil
}

// AddMember adds username to one of a Group's role sets, requiring the
// caller be editable(u) on the group per spec §3 invariants.
func (s *UserService) AddMember(actor *types.User, name types.GroupName, username string, role string) error {
	g, err := s.store.GetGroup(name)
	if err != nil {
		return err
	}
	if g == nil {
		return thoriumerrors.NewNotFound("group not found")
	}
	if err := identity.Editable(g, actor); err != nil {
		return err
	}
	switch role {
	case "owner":
		g.Owners[username] = struct{}{}
	case "manager":
		g.Managers[username] = struct{}{}
	case "monitor":
		g.Monitors[username] = struct{}{}
	default:
		g.Users[username] = struct{}{}
	}
	return s.store.PutGroup(g)
}
