package api

import (
	"encoding/json"

	"github.com/gin-gonic/gin"

	thoriumerrors "github.com/thorium-sh/thorium/pkg/errors"
	"github.com/thorium-sh/thorium/pkg/jobs"
	"github.com/thorium-sh/thorium/pkg/output"
	"github.com/thorium-sh/thorium/pkg/registry"
	"github.com/thorium-sh/thorium/pkg/types"
)

// ResultsHandler serves spec §2/§4.6's "/api/results" upload route: a
// worker running a job posts its Result here, and this handler
// resolves the owning job's image before delegating to
// pkg/output.Service.Ingest so the image's auto-tag rules can run.
type ResultsHandler struct {
	output   *output.Service
	jobs     *jobs.Engine
	registry *registry.Registry
}

func NewResultsHandler(out *output.Service, jobEngine *jobs.Engine, reg *registry.Registry) *ResultsHandler {
	return &ResultsHandler{output: out, jobs: jobEngine, registry: reg}
}

// Ingest implements POST /results: closes spec §2's data-flow loop
// ("Agents ... upload output -> Output Ingestion and Tag Store -> new
// events loop back").
func (h *ResultsHandler) Ingest(c *gin.Context) (interface{}, error) {
	var req struct {
		JobID       string            `json:"job_id" binding:"required"`
		Key         string            `json:"key"`
		Tool        string            `json:"tool"`
		ToolVersion string            `json:"tool_version"`
		Cmd         string            `json:"cmd"`
		ResultJSON  json.RawMessage   `json:"result_json"`
		DisplayType string            `json:"display_type"`
		Files       []string          `json:"files"`
		Children    map[string]string `json:"children"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		return nil, thoriumerrors.NewValidation(err.Error())
	}

	job, err := h.jobs.Get(req.JobID)
	if err != nil {
		return nil, err
	}
	img, err := h.registry.GetImage(job.Group, job.Image)
	if err != nil {
		return nil, err
	}
	if img == nil {
		return nil, thoriumerrors.NewNotFound("image not found for job")
	}

	key := req.Key
	if key == "" && len(job.Samples) > 0 {
		key = job.Samples[0]
	}
	kind := types.TagKindFiles
	if isRepoKey(job, key) {
		kind = types.TagKindRepos
	}

	r := &types.Result{
		Kind:        kind,
		Key:         key,
		Groups:      map[string]struct{}{job.Group: {}},
		Tool:        req.Tool,
		ToolVersion: req.ToolVersion,
		Cmd:         req.Cmd,
		ResultJSON:  req.ResultJSON,
		DisplayType: req.DisplayType,
		Files:       req.Files,
		Children:    req.Children,
		UploadedBy:  job.Creator,
	}
	if err := h.output.Ingest(img, r); err != nil {
		return nil, err
	}
	return r, nil
}

func isRepoKey(job *types.Job, key string) bool {
	for _, dep := range job.Repos {
		if dep.URL == key {
			return true
		}
	}
	return false
}
