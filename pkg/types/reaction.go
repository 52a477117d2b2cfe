package types

import "time"

// ReactionStatus is the lifecycle state of a Reaction (spec §3).
type ReactionStatus string

const (
	ReactionCreated   ReactionStatus = "Created"
	ReactionStarted   ReactionStatus = "Started"
	ReactionCompleted ReactionStatus = "Completed"
	ReactionFailed    ReactionStatus = "Failed"
)

func (s ReactionStatus) Terminal() bool {
	return s == ReactionCompleted || s == ReactionFailed
}

// ImageJobInfo records, per stage image, the scaler it targets and
// whether it is a generator (spec §4.4 "compute per-stage ImageJobInfo").
type ImageJobInfo struct {
	Image     string
	Generator bool
	Scaler    ScalerKind
}

// Reaction is one pipeline execution bound to concrete inputs (spec §3).
type Reaction struct {
	ID                string
	Group             string
	Pipeline          string
	Creator           string
	CurrentStageIndex int
	Status            ReactionStatus

	Samples   []string
	Repos     []RepoDependency
	Ephemeral []string

	// ParentEphemeral is keyed by stage index (spec §3).
	ParentEphemeral map[int][]string

	// Args is keyed by stage index (spec §3).
	Args map[int]GenericJobArgs

	Parent         string
	SubReactions   map[string]struct{}
	TriggerDepth   int
	SLADeadline    time.Time
	CreatedAt      time.Time

	// StageImages caches the per-stage ImageJobInfo computed at create
	// time from the pipeline's order (spec §4.4 step iv).
	StageImages [][]ImageJobInfo
}

// CurrentStage returns the ImageJobInfo set for the reaction's current
// stage, or nil if the reaction has no stages left.
func (r *Reaction) CurrentStage() []ImageJobInfo {
	if r.CurrentStageIndex < 0 || r.CurrentStageIndex >= len(r.StageImages) {
		return nil
	}
	return r.StageImages[r.CurrentStageIndex]
}

// LastStage reports whether CurrentStageIndex is the final stage.
func (r *Reaction) LastStage() bool {
	return r.CurrentStageIndex == len(r.StageImages)-1
}
