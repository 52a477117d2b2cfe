// Package artifacts implements spec §4.2: the Sample & Repo registry.
// Grounded on apiserver/pkg/handlers/cd-handlers's validate/authorise/
// store shape, adapted from CD manifests to content-addressed
// artifacts.
package artifacts

import (
	"time"

	thoriumerrors "github.com/thorium-sh/thorium/pkg/errors"
	"github.com/thorium-sh/thorium/pkg/types"
)

// Store is the persistence contract this package needs.
type Store interface {
	GetSample(sha256 string) (*types.Sample, error)
	PutSample(s *types.Sample) error
	GetRepo(url string) (*types.Repo, error)
	PutRepo(r *types.Repo) error
}

// EventProducer is the narrow slice of pkg/events.Bus this package
// needs, so SubmitSample can push a NewSample event (spec §4.7 "the
// create paths for submissions, tags, and result-derived tags")
// without depending on the whole Bus surface.
type EventProducer interface {
	PushNewSample(sha256, user string) error
}

type Registry struct {
	store Store
	bus   EventProducer
}

func New(store Store, bus EventProducer) *Registry {
	return &Registry{store: store, bus: bus}
}

// SubmitSample implements spec §4.2 "submit_sample": a resubmission
// from a new group extends visibility rather than replacing the
// record (PutSample's merge semantics carry this). Every submission
// pushes a NewSample event (spec §4.7) regardless of whether the
// sample already existed, so the Trigger Evaluator sees every new
// group's exposure to it.
func (r *Registry) SubmitSample(sha256, group, submitter string, origin types.Origin) (*types.Sample, error) {
	if sha256 == "" {
		return nil, thoriumerrors.NewValidation("sha256 is required")
	}
	s := &types.Sample{
		SHA256: sha256,
		Groups: map[string]struct{}{group: {}},
		Submissions: []types.Submission{{
			Group:     group,
			Origin:    origin,
			Submitter: submitter,
			Timestamp: time.Now().UTC(),
		}},
	}
	if err := r.store.PutSample(s); err != nil {
		return nil, err
	}
	if err := r.bus.PushNewSample(sha256, submitter); err != nil {
		return nil, err
	}
	return r.GetSample(sha256, map[string]struct{}{group: {}})
}

// GetSample enforces spec §4.2 visibility: a sample not shared with any
// of userGroups is reported as not found, never as forbidden, so its
// existence isn't leaked across group boundaries.
func (r *Registry) GetSample(sha256 string, userGroups map[string]struct{}) (*types.Sample, error) {
	s, err := r.store.GetSample(sha256)
	if err != nil {
		return nil, err
	}
	if s == nil || !s.Visible(userGroups) {
		return nil, thoriumerrors.NewNotFound("sample not found")
	}
	return s, nil
}

// SubmitRepo mirrors SubmitSample for git-addressed dependencies
// (spec §4.2).
func (r *Registry) SubmitRepo(url, group, submitter string, origin types.Origin) (*types.Repo, error) {
	if url == "" {
		return nil, thoriumerrors.NewValidation("url is required")
	}
	rep := &types.Repo{
		URL:    url,
		Groups: map[string]struct{}{group: {}},
		Submissions: []types.Submission{{
			Group:     group,
			Origin:    origin,
			Submitter: submitter,
			Timestamp: time.Now().UTC(),
		}},
	}
	if err := r.store.PutRepo(rep); err != nil {
		return nil, err
	}
	return r.GetRepo(url, map[string]struct{}{group: {}})
}

func (r *Registry) GetRepo(url string, userGroups map[string]struct{}) (*types.Repo, error) {
	rep, err := r.store.GetRepo(url)
	if err != nil {
		return nil, err
	}
	if rep == nil || !rep.Visible(userGroups) {
		return nil, thoriumerrors.NewNotFound("repo not found")
	}
	return rep, nil
}

// ResolveRepoCommitish returns dep.Commitish if pinned, else the repo's
// cached default-branch head (spec §4.4 "reactions with unpinned repo
// dependencies resolve against the default branch at create time").
func (r *Registry) ResolveRepoCommitish(dep types.RepoDependency, userGroups map[string]struct{}) (string, error) {
	if dep.Commitish != "" {
		return dep.Commitish, nil
	}
	rep, err := r.GetRepo(dep.URL, userGroups)
	if err != nil {
		return "", err
	}
	if rep.DefaultBranchHead == "" {
		return "", thoriumerrors.NewUnavailable("repo default branch head is not yet known")
	}
	return rep.DefaultBranchHead, nil
}
