// Package types holds the Thorium data model (spec §3): Users, Groups,
// Images, Pipelines, Reactions, Jobs, Workers, Nodes, Tags, Outputs,
// Events and Bans. Types here are plain structs; behaviour (authorise,
// validate, transition) lives in the owning package (pkg/identity,
// pkg/registry, pkg/reactions, pkg/jobs, ...) per spec §9's note that
// capability bundles, not deep inheritance, carry behaviour.
package types

import "time"

// Role is a user's global role; group membership carries finer-grained
// capability via Group's role sets.
type Role string

const (
	RoleUser      Role = "User"
	RoleDeveloper Role = "Developer"
	RoleAdmin     Role = "Admin"
)

// User is an authenticated principal (spec §3 User).
type User struct {
	Username string
	Role     Role
	Groups   map[string]struct{}
	Token    string
	Verified bool
}

// GroupName identifies a Group by its unique name.
type GroupName string

// AllowAction gates a tool-specific or resource-creation capability
// within a group (spec §3 Group.allowed).
type AllowAction string

const (
	AllowCreateImages    AllowAction = "create_images"
	AllowCreatePipelines AllowAction = "create_pipelines"
	AllowCreateReactions AllowAction = "create_reactions"
)

// ScalerKind enumerates the execution backends an Image can target
// (spec §3 Image.scaler, §4.10).
type ScalerKind string

const (
	ScalerK8s       ScalerKind = "K8s"
	ScalerBareMetal ScalerKind = "BareMetal"
	ScalerWindows   ScalerKind = "Windows"
	ScalerKvm       ScalerKind = "Kvm"
	ScalerExternal  ScalerKind = "External"
)

// Group is a scoped namespace of users with per-member role sets
// (spec §3 Group). The four role sets are pairwise disjoint; that
// invariant is enforced by pkg/identity, not by this struct.
type Group struct {
	Name     GroupName
	Owners   map[string]struct{}
	Managers map[string]struct{}
	Users    map[string]struct{}
	Monitors map[string]struct{}
	Allowed  map[AllowAction]struct{}

	// DeveloperScalers grants scaler-specific developer rights beyond
	// plain membership (spec §3 "developer(u, scaler)").
	DeveloperScalers map[string]map[ScalerKind]struct{}
}

func NewGroup(name GroupName) *Group {
	return &Group{
		Name:             name,
		Owners:           map[string]struct{}{},
		Managers:         map[string]struct{}{},
		Users:            map[string]struct{}{},
		Monitors:         map[string]struct{}{},
		Allowed:          map[AllowAction]struct{}{},
		DeveloperScalers: map[string]map[ScalerKind]struct{}{},
	}
}

// Member reports whether u belongs to any of the group's four role sets.
func (g *Group) Member(u string) bool {
	_, a := g.Owners[u]
	_, b := g.Managers[u]
	_, c := g.Users[u]
	_, d := g.Monitors[u]
	return a || b || c || d
}

// CreatedAt / CreatedBy are carried by Bans (spec §3 Ban); defined here
// so both pkg/registry's Image and Pipeline bans can share the shape.
type BanKind string

const (
	BanGeneric       BanKind = "Generic"
	BanBannedImage   BanKind = "BannedImage"
	BanInvalidImage  BanKind = "InvalidImage"
)

type Ban struct {
	ID        string
	CreatedBy string
	CreatedAt time.Time
	Reason    string
	Kind      BanKind
	// Image is set for BannedImage/InvalidImage kinds.
	Image string
}
