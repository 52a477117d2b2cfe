// Package registry implements spec §4.3: the Image & Pipeline registry,
// including ban lifecycle and the used_by back-reference pipelines
// maintain on the images they compose. Grounded on
// apiserver/pkg/handlers/cd-handlers's create/update/delete trio
// (validate -> authorise -> store), adapted from CD manifests to
// Thorium's Image/Pipeline pair.
package registry

import (
	"github.com/google/uuid"

	thoriumerrors "github.com/thorium-sh/thorium/pkg/errors"
	"github.com/thorium-sh/thorium/pkg/identity"
	"github.com/thorium-sh/thorium/pkg/types"
)

// Store is the persistence contract this package needs; pkg/storage/memstore
// and pkg/storage/sqlstore both satisfy it.
type Store interface {
	GetImage(group, name string) (*types.Image, error)
	CreateImage(img *types.Image) error
	UpdateImage(img *types.Image) error
	DeleteImage(group, name string) error
	ListImages(group string) ([]*types.Image, error)

	GetPipeline(group, name string) (*types.Pipeline, error)
	CreatePipeline(p *types.Pipeline) error
	UpdatePipeline(p *types.Pipeline) error
	DeletePipeline(group, name string) error
	ListPipelines(group string) ([]*types.Pipeline, error)
	ListAllPipelines() ([]*types.Pipeline, error)
}

// Registry implements the Image & Pipeline registry operations of
// spec §4.3.
type Registry struct {
	store    Store
	identity *identity.Registry
}

func New(store Store, idReg *identity.Registry) *Registry {
	return &Registry{store: store, identity: idReg}
}

// CreateImage validates name/dependency shape and persists a new Image
// owned by group (spec §4.3 "create_image").
func (r *Registry) CreateImage(group *types.Group, user *types.User, img *types.Image) error {
	if err := identity.Allowed(group, types.AllowCreateImages); err != nil {
		return err
	}
	if !types.NameValid(img.Name, 63) {
		return thoriumerrors.NewValidation("image name must be lowercase alphanumeric, max 63 chars")
	}
	for name, trig := range img.Triggers {
		if err := trig.Validate(); err != nil {
			return thoriumerrors.Wrap(err, "trigger "+name)
		}
	}
	img.Group = string(group.Name)
	img.Creator = user.Username
	if img.UsedBy == nil {
		img.UsedBy = map[string]struct{}{}
	}
	return r.store.CreateImage(img)
}

func (r *Registry) GetImage(group, name string) (*types.Image, error) {
	img, err := r.store.GetImage(group, name)
	if err != nil {
		return nil, err
	}
	if img == nil {
		return nil, thoriumerrors.NewNotFound("image not found")
	}
	return img, nil
}

// UpdateImage replaces the mutable fields of an Image, preserving
// UsedBy since that set is derived solely from pipeline composition
// (spec §9 "Cyclic graphs": UsedBy is maintained, never traversed).
func (r *Registry) UpdateImage(group *types.Group, user *types.User, updated *types.Image) error {
	existing, err := r.GetImage(updated.Group, updated.Name)
	if err != nil {
		return err
	}
	if err := identity.Developer(group, user, existing.Scaler); err != nil {
		return err
	}
	updated.UsedBy = existing.UsedBy
	updated.Bans = existing.Bans
	return r.store.UpdateImage(updated)
}

// DeleteImage refuses removal while any pipeline still references the
// image (spec §4.3 "an image with a non-empty used_by cannot be
// deleted").
func (r *Registry) DeleteImage(group *types.Group, user *types.User, name string) error {
	img, err := r.GetImage(string(group.Name), name)
	if err != nil {
		return err
	}
	if err := identity.Developer(group, user, img.Scaler); err != nil {
		return err
	}
	if len(img.UsedBy) > 0 {
		return thoriumerrors.NewConflict("image is referenced by one or more pipelines")
	}
	return r.store.DeleteImage(string(group.Name), name)
}

// BanImage records a ban; a non-empty Bans map makes the image refuse
// spawning everywhere it's referenced (spec §3 Image.bans invariant).
func (r *Registry) BanImage(group *types.Group, user *types.User, name, reason string, kind types.BanKind) error {
	img, err := r.GetImage(string(group.Name), name)
	if err != nil {
		return err
	}
	if err := identity.Modifiable(group, user); err != nil {
		return err
	}
	if img.Bans == nil {
		img.Bans = map[string]types.Ban{}
	}
	ban := types.Ban{ID: uuid.NewString(), CreatedBy: user.Username, Reason: reason, Kind: kind, Image: name}
	img.Bans[ban.ID] = ban
	return r.store.UpdateImage(img)
}

// UnbanImage removes one ban by ID; this method only removes the named
// ban row. A pipeline's BannedImage bans are cleared by UpdatePipeline
// when the update drops the banned image from the pipeline.
func (r *Registry) UnbanImage(group *types.Group, user *types.User, name, banID string) error {
	img, err := r.GetImage(string(group.Name), name)
	if err != nil {
		return err
	}
	if err := identity.Modifiable(group, user); err != nil {
		return err
	}
	delete(img.Bans, banID)
	return r.store.UpdateImage(img)
}

// CreatePipeline checks the group permission, the name, that at least
// one stage is declared and that every trigger validates, then creates
// the pipeline and fans out UsedBy additions to every image it
// references (spec §4.3 "create_pipeline" steps ii-iii).
func (r *Registry) CreatePipeline(group *types.Group, user *types.User, p *types.Pipeline) error {
	if err := identity.Allowed(group, types.AllowCreatePipelines); err != nil {
		return err
	}
	if !types.NameValid(p.Name, 63) {
		return thoriumerrors.NewValidation("pipeline name must be lowercase alphanumeric, max 63 chars")
	}
	if len(p.Order) == 0 {
		return thoriumerrors.NewValidation("pipeline must declare at least one stage")
	}
	for name, trig := range p.Triggers {
		if err := trig.Validate(); err != nil {
			return thoriumerrors.Wrap(err, "trigger "+name)
		}
	}
	p.Group = string(group.Name)
	p.Creator = user.Username
	if err := r.store.CreatePipeline(p); err != nil {
		return err
	}
	return r.addUsedBy(p.Group, p.Images(), p.Group+"/"+p.Name)
}

func (r *Registry) GetPipeline(group, name string) (*types.Pipeline, error) {
	p, err := r.store.GetPipeline(group, name)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, thoriumerrors.NewNotFound("pipeline not found")
	}
	return p, nil
}

// UpdatePipeline replaces a pipeline's definition and reconciles the
// UsedBy back-reference via a symmetric difference of the old and new
// image sets (spec §9 "diff old vs new image set on pipeline update,
// only touch the images that actually changed"). BannedImage bans on
// images the update drops are removed in the same update.
func (r *Registry) UpdatePipeline(group *types.Group, user *types.User, updated *types.Pipeline) error {
	existing, err := r.GetPipeline(updated.Group, updated.Name)
	if err != nil {
		return err
	}
	if err := identity.Editable(group, user); err != nil {
		return err
	}
	for name, trig := range updated.Triggers {
		if err := trig.Validate(); err != nil {
			return thoriumerrors.Wrap(err, "trigger "+name)
		}
	}
	updated.Bans = existing.Bans
	oldImages := existing.Images()
	newImages := updated.Images()
	ref := updated.Group + "/" + updated.Name

	var removed, added []string
	for img := range oldImages {
		if _, ok := newImages[img]; !ok {
			removed = append(removed, img)
		}
	}
	for img := range newImages {
		if _, ok := oldImages[img]; !ok {
			added = append(added, img)
		}
	}
	for id, ban := range updated.Bans {
		if _, kept := newImages[ban.Image]; ban.Kind == types.BanBannedImage && !kept {
			delete(updated.Bans, id)
		}
	}
	if err := r.store.UpdatePipeline(updated); err != nil {
		return err
	}
	if err := r.removeUsedBy(updated.Group, setOf(removed...), ref); err != nil {
		return err
	}
	return r.addUsedBy(updated.Group, setOf(added...), ref)
}

// DeletePipeline removes the pipeline and its UsedBy references; spec
// §4.3 leaves in-flight reactions of a deleted pipeline to run to
// completion (bans, not deletion, are what stop new work).
func (r *Registry) DeletePipeline(group *types.Group, user *types.User, name string) error {
	p, err := r.GetPipeline(string(group.Name), name)
	if err != nil {
		return err
	}
	if err := identity.Modifiable(group, user); err != nil {
		return err
	}
	if err := r.store.DeletePipeline(string(group.Name), name); err != nil {
		return err
	}
	return r.removeUsedBy(p.Group, p.Images(), p.Group+"/"+p.Name)
}

// BanPipeline and UnbanPipeline mirror the image ban lifecycle at
// pipeline scope (spec §3 Pipeline.bans).
func (r *Registry) BanPipeline(group *types.Group, user *types.User, name, reason string) error {
	p, err := r.GetPipeline(string(group.Name), name)
	if err != nil {
		return err
	}
	if err := identity.Modifiable(group, user); err != nil {
		return err
	}
	if p.Bans == nil {
		p.Bans = map[string]types.PipelineBan{}
	}
	ban := types.Ban{ID: uuid.NewString(), CreatedBy: user.Username, Reason: reason, Kind: types.BanGeneric}
	p.Bans[ban.ID] = ban
	return r.store.UpdatePipeline(p)
}

func (r *Registry) UnbanPipeline(group *types.Group, user *types.User, name, banID string) error {
	p, err := r.GetPipeline(string(group.Name), name)
	if err != nil {
		return err
	}
	if err := identity.Modifiable(group, user); err != nil {
		return err
	}
	delete(p.Bans, banID)
	return r.store.UpdatePipeline(p)
}

func setOf(items ...string) map[string]struct{} {
	out := make(map[string]struct{}, len(items))
	for _, it := range items {
		out[it] = struct{}{}
	}
	return out
}

func (r *Registry) addUsedBy(group string, images map[string]struct{}, ref string) error {
	for name := range images {
		img, err := r.store.GetImage(group, name)
		if err != nil || img == nil {
			continue // dangling reference; spec §4.3 leaves pipeline validation of missing images to creation time
		}
		if img.UsedBy == nil {
			img.UsedBy = map[string]struct{}{}
		}
		img.UsedBy[ref] = struct{}{}
		if err := r.store.UpdateImage(img); err != nil {
			return err
		}
	}
	return nil
}

func (r *Registry) removeUsedBy(group string, images map[string]struct{}, ref string) error {
	for name := range images {
		img, err := r.store.GetImage(group, name)
		if err != nil || img == nil {
			continue
		}
		delete(img.UsedBy, ref)
		if err := r.store.UpdateImage(img); err != nil {
			return err
		}
	}
	return nil
}
