// Package sqlstore is the production-shaped Image & Pipeline registry
// backing over gorm/postgres, the hot-path counterpart spec §9 calls
// out alongside pkg/storage/memstore's reference implementation.
// Grounded on common/pkg/database/client's Client-wraps-*gorm.DB
// pattern and its "db has not been initialized" guard, and on
// gorm.io/plugin/dbresolver for read/write splitting on the heavier
// list queries.
package sqlstore

import (
	"encoding/json"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/plugin/dbresolver"

	thoriumerrors "github.com/thorium-sh/thorium/pkg/errors"
	"github.com/thorium-sh/thorium/pkg/types"
)

// ImageRow is the gorm model backing types.Image. The fields that are
// themselves nested structures (Args, Resources, Dependencies,
// OutputCollection, Triggers, NetworkPolicies, Volumes) are stored as
// JSON columns rather than normalised tables: none of them are queried
// on their own, only read and written whole alongside their owning
// image, so a relational breakout would add join cost for no query
// that ever needs it.
type ImageRow struct {
	GroupName        string `gorm:"primaryKey;column:group_name"`
	Name             string `gorm:"primaryKey"`
	Creator          string
	Scaler           string
	Generator        bool
	Args             json.RawMessage `gorm:"type:jsonb"`
	Resources        json.RawMessage `gorm:"type:jsonb"`
	Dependencies     json.RawMessage `gorm:"type:jsonb"`
	OutputCollection json.RawMessage `gorm:"type:jsonb"`
	Triggers         json.RawMessage `gorm:"type:jsonb"`
	NetworkPolicies  json.RawMessage `gorm:"type:jsonb"`
	Volumes          json.RawMessage `gorm:"type:jsonb"`
	CreatedAt        time.Time
}

func (ImageRow) TableName() string { return "images" }

// PipelineRow is the gorm model backing types.Pipeline, with Order and
// Triggers stored as JSON for the same reason as ImageRow's nested
// fields: read/written whole, never queried by sub-field.
type PipelineRow struct {
	GroupName   string `gorm:"primaryKey;column:group_name"`
	Name        string `gorm:"primaryKey"`
	Creator     string
	SLASeconds  int64
	Description string
	Order       json.RawMessage `gorm:"type:jsonb"`
	Triggers    json.RawMessage `gorm:"type:jsonb"`
	CreatedAt   time.Time
}

func (PipelineRow) TableName() string { return "pipelines" }

func marshalField(v interface{}, label string) (json.RawMessage, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, thoriumerrors.Wrap(err, "encoding "+label)
	}
	return b, nil
}

func unmarshalField(raw json.RawMessage, out interface{}, label string) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return thoriumerrors.Wrap(err, "decoding "+label)
	}
	return nil
}

// BanRow is shared by image and pipeline bans, discriminated by
// TargetKind (spec §3 Ban).
type BanRow struct {
	ID         string `gorm:"primaryKey"`
	TargetKind string // "image" or "pipeline"
	GroupName  string
	TargetName string
	CreatedBy  string
	CreatedAt  time.Time
	Reason     string
	Kind       string
	Image      string
}

func (BanRow) TableName() string { return "bans" }

// UsedByRow materialises the Image.UsedBy many-to-many relation that
// spec §9 says to maintain rather than derive by traversal on read.
type UsedByRow struct {
	ImageGroup    string `gorm:"primaryKey"`
	ImageName     string `gorm:"primaryKey"`
	PipelineGroup string `gorm:"primaryKey"`
	PipelineName  string `gorm:"primaryKey"`
}

func (UsedByRow) TableName() string { return "image_used_by" }

// Store wraps a *gorm.DB the way common/pkg/database/client.Client
// wraps its connection: nil until Open succeeds, every method checking
// for that and failing with a clear message rather than panicking.
type Store struct {
	db *gorm.DB
}

// Open connects to dsn and configures primary/replica splitting when
// replicaDSNs is non-empty (spec §9 leaves the read/write topology to
// deployment, not to the core).
func Open(dsn string, replicaDSNs []string) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, thoriumerrors.Wrap(err, "opening postgres connection")
	}
	if len(replicaDSNs) > 0 {
		var replicas []gorm.Dialector
		for _, r := range replicaDSNs {
			replicas = append(replicas, postgres.Open(r))
		}
		if err := db.Use(dbresolver.Register(dbresolver.Config{Replicas: replicas})); err != nil {
			return nil, thoriumerrors.Wrap(err, "registering read replicas")
		}
	}
	if err := db.AutoMigrate(&ImageRow{}, &PipelineRow{}, &BanRow{}, &UsedByRow{}); err != nil {
		return nil, thoriumerrors.Wrap(err, "running schema migration")
	}
	return &Store{db: db}, nil
}

func (s *Store) checkReady() error {
	if s.db == nil {
		return thoriumerrors.NewInternalError("db has not been initialized")
	}
	return nil
}

func (s *Store) GetImage(group, name string) (*types.Image, error) {
	if err := s.checkReady(); err != nil {
		return nil, err
	}
	var row ImageRow
	err := s.db.Where("group_name = ? AND name = ?", group, name).First(&row).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, thoriumerrors.Wrap(err, "selecting image")
	}
	img, err := s.hydrateImage(row)
	if err != nil {
		return nil, err
	}
	return img, nil
}

func (s *Store) hydrateImage(row ImageRow) (*types.Image, error) {
	img := &types.Image{
		Group: row.GroupName, Name: row.Name, Creator: row.Creator,
		Scaler: types.ScalerKind(row.Scaler), Generator: row.Generator,
		Bans: map[string]types.Ban{}, UsedBy: map[string]struct{}{},
	}
	if err := unmarshalField(row.Args, &img.Args, "image args"); err != nil {
		return nil, err
	}
	if err := unmarshalField(row.Resources, &img.Resources, "image resources"); err != nil {
		return nil, err
	}
	if err := unmarshalField(row.Dependencies, &img.Dependencies, "image dependencies"); err != nil {
		return nil, err
	}
	if err := unmarshalField(row.OutputCollection, &img.OutputCollection, "image output collection"); err != nil {
		return nil, err
	}
	if err := unmarshalField(row.Triggers, &img.Triggers, "image triggers"); err != nil {
		return nil, err
	}
	if err := unmarshalField(row.NetworkPolicies, &img.NetworkPolicies, "image network policies"); err != nil {
		return nil, err
	}
	if err := unmarshalField(row.Volumes, &img.Volumes, "image volumes"); err != nil {
		return nil, err
	}
	var bans []BanRow
	if err := s.db.Where("target_kind = ? AND group_name = ? AND target_name = ?", "image", row.GroupName, row.Name).Find(&bans).Error; err != nil {
		return nil, thoriumerrors.Wrap(err, "selecting image bans")
	}
	for _, b := range bans {
		img.Bans[b.ID] = types.Ban{ID: b.ID, CreatedBy: b.CreatedBy, CreatedAt: b.CreatedAt, Reason: b.Reason, Kind: types.BanKind(b.Kind), Image: b.Image}
	}
	var usedBy []UsedByRow
	if err := s.db.Where("image_group = ? AND image_name = ?", row.GroupName, row.Name).Find(&usedBy).Error; err != nil {
		return nil, thoriumerrors.Wrap(err, "selecting image used_by")
	}
	for _, u := range usedBy {
		img.UsedBy[u.PipelineGroup+"/"+u.PipelineName] = struct{}{}
	}
	return img, nil
}

func (s *Store) imageRowFrom(img *types.Image) (ImageRow, error) {
	row := ImageRow{GroupName: img.Group, Name: img.Name, Creator: img.Creator, Scaler: string(img.Scaler), Generator: img.Generator}
	var err error
	if row.Args, err = marshalField(img.Args, "image args"); err != nil {
		return row, err
	}
	if row.Resources, err = marshalField(img.Resources, "image resources"); err != nil {
		return row, err
	}
	if row.Dependencies, err = marshalField(img.Dependencies, "image dependencies"); err != nil {
		return row, err
	}
	if row.OutputCollection, err = marshalField(img.OutputCollection, "image output collection"); err != nil {
		return row, err
	}
	if row.Triggers, err = marshalField(img.Triggers, "image triggers"); err != nil {
		return row, err
	}
	if row.NetworkPolicies, err = marshalField(img.NetworkPolicies, "image network policies"); err != nil {
		return row, err
	}
	if row.Volumes, err = marshalField(img.Volumes, "image volumes"); err != nil {
		return row, err
	}
	return row, nil
}

func (s *Store) CreateImage(img *types.Image) error {
	if err := s.checkReady(); err != nil {
		return err
	}
	row, err := s.imageRowFrom(img)
	if err != nil {
		return err
	}
	row.CreatedAt = time.Now().UTC()
	if err := s.db.Create(&row).Error; err != nil {
		return thoriumerrors.Wrap(err, "inserting image")
	}
	return nil
}

func (s *Store) UpdateImage(img *types.Image) error {
	if err := s.checkReady(); err != nil {
		return err
	}
	row, err := s.imageRowFrom(img)
	if err != nil {
		return err
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&ImageRow{}).Where("group_name = ? AND name = ?", img.Group, img.Name).
			Updates(map[string]interface{}{
				"creator": img.Creator, "scaler": string(img.Scaler), "generator": img.Generator,
				"args": row.Args, "resources": row.Resources, "dependencies": row.Dependencies,
				"output_collection": row.OutputCollection, "triggers": row.Triggers,
				"network_policies": row.NetworkPolicies, "volumes": row.Volumes,
			}).Error; err != nil {
			return err
		}
		if err := tx.Where("image_group = ? AND image_name = ?", img.Group, img.Name).Delete(&UsedByRow{}).Error; err != nil {
			return err
		}
		for ref := range img.UsedBy {
			group, name := splitRef(ref)
			if err := tx.Create(&UsedByRow{ImageGroup: img.Group, ImageName: img.Name, PipelineGroup: group, PipelineName: name}).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) DeleteImage(group, name string) error {
	if err := s.checkReady(); err != nil {
		return err
	}
	return s.db.Where("group_name = ? AND name = ?", group, name).Delete(&ImageRow{}).Error
}

func (s *Store) ListImages(group string) ([]*types.Image, error) {
	if err := s.checkReady(); err != nil {
		return nil, err
	}
	var rows []ImageRow
	if err := s.db.Where("group_name = ?", group).Find(&rows).Error; err != nil {
		return nil, thoriumerrors.Wrap(err, "listing images")
	}
	out := make([]*types.Image, 0, len(rows))
	for _, row := range rows {
		img, err := s.hydrateImage(row)
		if err != nil {
			return nil, err
		}
		out = append(out, img)
	}
	return out, nil
}

func splitRef(ref string) (group, name string) {
	for i := len(ref) - 1; i >= 0; i-- {
		if ref[i] == '/' {
			return ref[:i], ref[i+1:]
		}
	}
	return "", ref
}

func (s *Store) GetPipeline(group, name string) (*types.Pipeline, error) {
	if err := s.checkReady(); err != nil {
		return nil, err
	}
	var row PipelineRow
	err := s.db.Where("group_name = ? AND name = ?", group, name).First(&row).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, thoriumerrors.Wrap(err, "selecting pipeline")
	}
	return hydratePipeline(row)
}

func hydratePipeline(row PipelineRow) (*types.Pipeline, error) {
	pipeline := &types.Pipeline{
		Group: row.GroupName, Name: row.Name, Creator: row.Creator,
		SLASeconds: row.SLASeconds, Description: row.Description,
		Bans: map[string]types.PipelineBan{},
	}
	if err := unmarshalField(row.Order, &pipeline.Order, "pipeline order"); err != nil {
		return nil, err
	}
	if err := unmarshalField(row.Triggers, &pipeline.Triggers, "pipeline triggers"); err != nil {
		return nil, err
	}
	return pipeline, nil
}

func (s *Store) pipelineRowFrom(p *types.Pipeline) (PipelineRow, error) {
	row := PipelineRow{GroupName: p.Group, Name: p.Name, Creator: p.Creator, SLASeconds: p.SLASeconds, Description: p.Description}
	var err error
	if row.Order, err = marshalField(p.Order, "pipeline order"); err != nil {
		return row, err
	}
	if row.Triggers, err = marshalField(p.Triggers, "pipeline triggers"); err != nil {
		return row, err
	}
	return row, nil
}

func (s *Store) CreatePipeline(p *types.Pipeline) error {
	if err := s.checkReady(); err != nil {
		return err
	}
	row, err := s.pipelineRowFrom(p)
	if err != nil {
		return err
	}
	row.CreatedAt = time.Now().UTC()
	if err := s.db.Create(&row).Error; err != nil {
		return thoriumerrors.Wrap(err, "inserting pipeline")
	}
	return nil
}

func (s *Store) UpdatePipeline(p *types.Pipeline) error {
	if err := s.checkReady(); err != nil {
		return err
	}
	row, err := s.pipelineRowFrom(p)
	if err != nil {
		return err
	}
	return s.db.Model(&PipelineRow{}).Where("group_name = ? AND name = ?", p.Group, p.Name).
		Updates(map[string]interface{}{
			"creator": p.Creator, "sla_seconds": p.SLASeconds, "description": p.Description,
			"order": row.Order, "triggers": row.Triggers,
		}).Error
}

func (s *Store) DeletePipeline(group, name string) error {
	if err := s.checkReady(); err != nil {
		return err
	}
	return s.db.Where("group_name = ? AND name = ?", group, name).Delete(&PipelineRow{}).Error
}

func (s *Store) ListPipelines(group string) ([]*types.Pipeline, error) {
	if err := s.checkReady(); err != nil {
		return nil, err
	}
	var rows []PipelineRow
	if err := s.db.Where("group_name = ?", group).Find(&rows).Error; err != nil {
		return nil, thoriumerrors.Wrap(err, "listing pipelines")
	}
	out := make([]*types.Pipeline, 0, len(rows))
	for _, row := range rows {
		p, err := hydratePipeline(row)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func (s *Store) ListAllPipelines() ([]*types.Pipeline, error) {
	if err := s.checkReady(); err != nil {
		return nil, err
	}
	var rows []PipelineRow
	if err := s.db.Find(&rows).Error; err != nil {
		return nil, thoriumerrors.Wrap(err, "listing all pipelines")
	}
	out := make([]*types.Pipeline, 0, len(rows))
	for _, row := range rows {
		p, err := hydratePipeline(row)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}
