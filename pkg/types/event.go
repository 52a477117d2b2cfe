package types

import (
	"fmt"
	"time"

	thoriumerrors "github.com/thorium-sh/thorium/pkg/errors"
)

// EventType distinguishes the two producer streams of spec §4.7.
type EventType string

const (
	EventNewSample EventType = "NewSample"
	EventNewTags   EventType = "NewTags"
)

// TagKV is one key/value pair carried by a NewTags event.
type TagKV struct {
	Key   string
	Value string
}

// EventData is the tagged-union payload of an Event (spec §3).
type EventData struct {
	// Sample is set when Type == EventNewSample.
	Sample string

	// The following are set when Type == EventNewTags.
	TagType TagKind
	Item    string
	Groups  map[string]struct{}
	Tags    []TagKV
}

// Event is one entry on the Event Bus (spec §3, §4.7).
type Event struct {
	ID        string
	Type      EventType
	User      string
	Depth     int
	Timestamp time.Time
	Data      EventData

	// RetryAt is non-zero when an earlier augmentation fetch failed;
	// the evaluator skips the event until now >= RetryAt (spec §4.8).
	RetryAt time.Time
}

// TriggerKind tags the EventTrigger union (spec §3).
type TriggerKind string

const (
	TriggerNewSample TriggerKind = "NewSample"
	TriggerTag       TriggerKind = "Tag"
)

// EventTrigger is a per-pipeline rule matched against events (spec §3).
type EventTrigger struct {
	Kind TriggerKind

	// The following apply only when Kind == TriggerTag.
	TagTypes map[TagKind]struct{}
	Required map[string]map[string]struct{} // key -> allowed values
	Not      map[string]map[string]struct{} // key -> forbidden values
}

// Validate enforces spec §4.3: a Tag trigger names at least one key and
// never the same key in both Required and Not.
func (t *EventTrigger) Validate() error {
	if t.Kind != TriggerTag {
		return nil
	}
	if len(t.Required) == 0 && len(t.Not) == 0 {
		return thoriumerrors.NewValidation("tag trigger must name at least one required or excluded key")
	}
	for k := range t.Required {
		if _, clash := t.Not[k]; clash {
			return thoriumerrors.NewValidation(fmt.Sprintf("tag trigger key %q cannot be in both required and not", k))
		}
	}
	return nil
}

// ReactionRequest is the Trigger Evaluator's (and any direct caller's)
// request to the Reaction Engine (spec §4.4, §4.8).
type ReactionRequest struct {
	Group        string
	Pipeline     string
	Samples      []string
	Repos        []RepoDependency
	Ephemeral    []string
	Args         map[int]GenericJobArgs
	SLASeconds   *int64
	Parent       string
	TriggerDepth int
	RequestedBy  string
}

// GenericJobArgs is the per-stage argument bundle a reaction carries
// forward to each job it materialises (spec §3 Reaction.args).
type GenericJobArgs struct {
	Positional []string
	Kwargs     map[string]string
	Switches   []string
	Opts       map[string]string
}
