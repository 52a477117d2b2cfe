package api

import (
	"github.com/gin-gonic/gin"

	thoriumerrors "github.com/thorium-sh/thorium/pkg/errors"
	"github.com/thorium-sh/thorium/pkg/reactions"
	"github.com/thorium-sh/thorium/pkg/types"
)

// ReactionsHandler serves spec §6's reaction-submission surface: users
// submit a reaction against a pipeline they can see, and poll/delete it
// by ID.
type ReactionsHandler struct {
	engine     *reactions.Engine
	deleteJobs func(reactionID string) error
}

func NewReactionsHandler(engine *reactions.Engine, deleteJobs func(reactionID string) error) *ReactionsHandler {
	return &ReactionsHandler{engine: engine, deleteJobs: deleteJobs}
}

// Create implements POST /reactions: spec §1's "users ... submit
// reactions" entry point.
func (h *ReactionsHandler) Create(c *gin.Context) (interface{}, error) {
	user, err := currentUser(c)
	if err != nil {
		return nil, err
	}
	var req struct {
		Group      string                       `json:"group" binding:"required"`
		Pipeline   string                       `json:"pipeline" binding:"required"`
		Samples    []string                     `json:"samples"`
		Repos      []types.RepoDependency       `json:"repos"`
		Args       map[int]types.GenericJobArgs `json:"args"`
		SLASeconds *int64                       `json:"sla_seconds"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		return nil, thoriumerrors.NewValidation(err.Error())
	}
	return h.engine.Create(types.ReactionRequest{
		Group:       req.Group,
		Pipeline:    req.Pipeline,
		Samples:     req.Samples,
		Repos:       req.Repos,
		Args:        req.Args,
		SLASeconds:  req.SLASeconds,
		RequestedBy: user.Username,
	})
}

// Get implements GET /reactions/:id, used by thorctl's run command to
// poll per-stage progress.
func (h *ReactionsHandler) Get(c *gin.Context) (interface{}, error) {
	return h.engine.Get(c.Param("id"))
}

// Delete implements DELETE /reactions/:id (spec §4.4 "delete").
func (h *ReactionsHandler) Delete(c *gin.Context) (interface{}, error) {
	id := c.Param("id")
	if err := h.engine.Delete(id, h.deleteJobs); err != nil {
		return nil, err
	}
	return gin.H{"deleted": id}, nil
}
