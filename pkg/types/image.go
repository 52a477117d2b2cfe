package types

import "k8s.io/apimachinery/pkg/api/resource"

// ImageArgs is the entrypoint/command an image spawns with (spec §3).
type ImageArgs struct {
	Entrypoint []string
	Command    []string
}

// ImageResources mirrors Kubernetes' resource.Quantity so Image
// resource requests flow unmodified into the k8s scheduler backend's
// Job spec (spec §4.10) and into the scaler's Allocatable accounting
// (spec §4.9).
type ImageResources struct {
	CPUMillis    resource.Quantity
	MemoryMiB    resource.Quantity
	EphemeralMiB resource.Quantity
	Nvidia       resource.Quantity
	AMD          resource.Quantity
}

// DependencyKind enumerates what an image depends on (spec §3
// Image.dependencies).
type DependencyKind string

const (
	DepSamples   DependencyKind = "samples"
	DepEphemeral DependencyKind = "ephemeral"
	DepRepos     DependencyKind = "repos"
	DepResults   DependencyKind = "results"
	DepTags      DependencyKind = "tags"
	DepChildren  DependencyKind = "children"
)

// Dependency is one entry of Image.dependencies (spec §3).
type Dependency struct {
	Location string
	Kind     DependencyKind
	Enabled  bool
}

// Image is a registered runtime/tool definition (spec §3 Image).
type Image struct {
	Group   string
	Name    string
	Creator string
	Scaler  ScalerKind

	Args      ImageArgs
	Resources ImageResources

	Dependencies map[DependencyKind][]Dependency

	OutputCollection OutputCollection

	// Triggers is keyed by trigger name (spec §3 Image.triggers).
	Triggers map[string]EventTrigger

	// Bans is keyed by Ban.ID; a non-empty map makes the image unusable
	// for spawning (spec §3 Image.bans invariant).
	Bans map[string]Ban

	NetworkPolicies map[string]struct{}
	Volumes         []string

	// Generator marks an image whose jobs may sleep-with-checkpoint and
	// fan out sub-reactions (spec §4.4).
	Generator bool

	// UsedBy is the derived (never traversed) back-reference maintained
	// by the Pipeline update path (spec §9 "Cyclic graphs").
	UsedBy map[string]struct{} // set of "group/pipeline"
}

// Banned reports whether the image currently refuses spawning.
func (i *Image) Banned() bool { return len(i.Bans) > 0 }

// NameValid enforces spec §3: alphanumeric-lower, length bounded.
func NameValid(name string, maxLen int) bool {
	if len(name) == 0 || len(name) > maxLen {
		return false
	}
	for _, r := range name {
		if !(r >= 'a' && r <= 'z') && !(r >= '0' && r <= '9') && r != '-' && r != '_' {
			return false
		}
	}
	return true
}
