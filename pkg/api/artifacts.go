package api

import (
	"github.com/gin-gonic/gin"

	"github.com/thorium-sh/thorium/pkg/artifacts"
	thoriumerrors "github.com/thorium-sh/thorium/pkg/errors"
	"github.com/thorium-sh/thorium/pkg/types"
)

// ArtifactsHandler serves spec §6's files and repos routes over the
// Artifact Registry (spec §4.2): submit-by-content-hash/url, fetch
// group-scoped.
type ArtifactsHandler struct {
	registry *artifacts.Registry
}

func NewArtifactsHandler(reg *artifacts.Registry) *ArtifactsHandler { return &ArtifactsHandler{registry: reg} }

func (h *ArtifactsHandler) SubmitSample(c *gin.Context) (interface{}, error) {
	user, err := currentUser(c)
	if err != nil {
		return nil, err
	}
	var req struct {
		SHA256 string `json:"sha256" binding:"required"`
		Group  string `json:"group" binding:"required"`
		Origin string `json:"origin"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		return nil, thoriumerrors.NewValidation(err.Error())
	}
	return h.registry.SubmitSample(req.SHA256, req.Group, user.Username, types.Origin(req.Origin))
}

func (h *ArtifactsHandler) GetSample(c *gin.Context) (interface{}, error) {
	user, err := currentUser(c)
	if err != nil {
		return nil, err
	}
	return h.registry.GetSample(c.Param("sha256"), user.Groups)
}

func (h *ArtifactsHandler) SubmitRepo(c *gin.Context) (interface{}, error) {
	user, err := currentUser(c)
	if err != nil {
		return nil, err
	}
	var req struct {
		URL    string `json:"url" binding:"required"`
		Group  string `json:"group" binding:"required"`
		Origin string `json:"origin"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		return nil, thoriumerrors.NewValidation(err.Error())
	}
	return h.registry.SubmitRepo(req.URL, req.Group, user.Username, types.Origin(req.Origin))
}

func (h *ArtifactsHandler) GetRepo(c *gin.Context) (interface{}, error) {
	user, err := currentUser(c)
	if err != nil {
		return nil, err
	}
	return h.registry.GetRepo(c.Query("url"), user.Groups)
}

