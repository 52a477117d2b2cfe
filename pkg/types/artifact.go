package types

import "time"

// Origin records submission provenance for a Sample (spec §4.2); it is
// opaque to the core beyond organising client-side downloads.
type Origin string

const (
	OriginDownloaded  Origin = "Downloaded"
	OriginUnpacked    Origin = "Unpacked"
	OriginTransformed Origin = "Transformed"
	OriginWire        Origin = "Wire"
	OriginIncident    Origin = "Incident"
	OriginMemoryDump  Origin = "MemoryDump"
	OriginSource      Origin = "Source"
	OriginCarved      Origin = "Carved"
	OriginNone        Origin = "None"
)

// Submission is one group's record of having uploaded an artifact.
type Submission struct {
	Group     string
	Origin    Origin
	Submitter string
	Timestamp time.Time
}

// Sample is an artifact keyed by SHA256 (spec §3 Artifact Registry).
type Sample struct {
	SHA256      string
	Groups      map[string]struct{}
	Tags        map[string][]string
	Submissions []Submission
}

// Earliest returns the oldest submission timestamp within group, used
// as the tag-ordering birth date (spec §4.2).
func (s *Sample) Earliest(group string) time.Time {
	var earliest time.Time
	for _, sub := range s.Submissions {
		if sub.Group != group {
			continue
		}
		if earliest.IsZero() || sub.Timestamp.Before(earliest) {
			earliest = sub.Timestamp
		}
	}
	return earliest
}

// Visible reports whether a user whose groups are userGroups can see
// this sample: the intersection with s.Groups must be non-empty.
func (s *Sample) Visible(userGroups map[string]struct{}) bool {
	for g := range s.Groups {
		if _, ok := userGroups[g]; ok {
			return true
		}
	}
	return false
}

// RepoKind distinguishes how a repo dependency is resolved (spec §3
// Reaction.repos).
type RepoKind string

const (
	RepoKindGit RepoKind = "git"
)

// Repo is an artifact keyed by canonical URL (spec §3 Artifact Registry).
type Repo struct {
	URL         string
	Groups      map[string]struct{}
	Tags        map[string][]string
	Submissions []Submission
	// DefaultBranchHead is the commit resolved when no commitish is
	// supplied at reaction-create time (spec §4.4).
	DefaultBranchHead string
}

func (r *Repo) Earliest(group string) time.Time {
	var earliest time.Time
	for _, sub := range r.Submissions {
		if sub.Group != group {
			continue
		}
		if earliest.IsZero() || sub.Timestamp.Before(earliest) {
			earliest = sub.Timestamp
		}
	}
	return earliest
}

func (r *Repo) Visible(userGroups map[string]struct{}) bool {
	for g := range r.Groups {
		if _, ok := userGroups[g]; ok {
			return true
		}
	}
	return false
}

// RepoDependency is a reaction's binding to a repo, optionally pinned
// to a commitish (spec §3 Reaction.repos).
type RepoDependency struct {
	URL       string
	Commitish string
	Kind      RepoKind
}
