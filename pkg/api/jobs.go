package api

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/thorium-sh/thorium/pkg/api/middleware"
	thoriumerrors "github.com/thorium-sh/thorium/pkg/errors"
	"github.com/thorium-sh/thorium/pkg/jobs"
	"github.com/thorium-sh/thorium/pkg/reactions"
	"github.com/thorium-sh/thorium/pkg/types"
)

// JobsHandler serves spec §6's job routes: claim, the unified handle
// endpoint (proceed/error/sleep/checkpoint), bulk_reset, deadlines and
// running. proceed/error also drive the owning reaction's stage
// progression (spec §4.4 "Stage completion").
type JobsHandler struct {
	engine    *jobs.Engine
	reactions *reactions.Engine
}

func NewJobsHandler(engine *jobs.Engine, reactionEngine *reactions.Engine) *JobsHandler {
	return &JobsHandler{engine: engine, reactions: reactionEngine}
}

// Claim implements POST /jobs/claim: a worker asks for up to `limit`
// Created jobs for its requisition, receiving them in generic
// command-line-shaped form.
func (h *JobsHandler) Claim(c *gin.Context) (interface{}, error) {
	var req struct {
		Group    string `json:"group" binding:"required"`
		Pipeline string `json:"pipeline" binding:"required"`
		Stage    int    `json:"stage"`
		Worker   string `json:"worker" binding:"required"`
		Limit    int    `json:"limit"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		return nil, thoriumerrors.NewValidation(err.Error())
	}
	if req.Limit == 0 {
		req.Limit = 1
	}
	return h.engine.Claim(req.Group, req.Pipeline, req.Stage, req.Worker, req.Limit)
}

// Handle dispatches a worker's job-handle call by its "action" field to
// Proceed/Error/Sleep/Checkpoint (spec §4.4 "the unified handle
// endpoint").
func (h *JobsHandler) Handle(c *gin.Context) (interface{}, error) {
	jobID := c.Param("id")
	var req struct {
		Action     string `json:"action" binding:"required"`
		Worker     string `json:"worker"`
		Reason     string `json:"reason"`
		Checkpoint string `json:"checkpoint"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		return nil, thoriumerrors.NewValidation(err.Error())
	}
	switch req.Action {
	case "proceed":
		j, err := h.engine.Proceed(jobID, req.Worker)
		if err != nil {
			return nil, err
		}
		if err := h.reactions.OnJobProceed(j.Reaction, j.Stage); err != nil {
			return nil, err
		}
		return j, nil
	case "error":
		j, err := h.engine.Error(jobID, req.Worker, req.Reason)
		if err != nil {
			return nil, err
		}
		if err := h.reactions.OnJobFailed(j.Reaction); err != nil {
			return nil, err
		}
		return j, nil
	case "sleep":
		return h.engine.Sleep(jobID, req.Worker, req.Checkpoint)
	case "checkpoint":
		return h.engine.Checkpoint(jobID, req.Worker, req.Checkpoint)
	default:
		return nil, thoriumerrors.NewValidation("unknown job action " + req.Action)
	}
}

// BulkReset implements the bulk_reset operation of spec §4.4: an
// operator (not a worker) resets a batch of Running jobs back to
// Created, for recovering from a dead worker fleet.
func (h *JobsHandler) BulkReset(c *gin.Context) (interface{}, error) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		return nil, thoriumerrors.NewUnauthorized("authentication required")
	}
	var req struct {
		JobIDs []string `json:"job_ids" binding:"required"`
		Reason string   `json:"reason" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		return nil, thoriumerrors.NewValidation(err.Error())
	}
	if err := h.engine.BulkReset(req.JobIDs, req.Reason, user.Username); err != nil {
		return nil, err
	}
	return gin.H{"reset": len(req.JobIDs)}, nil
}

// Deadlines implements GET /jobs/deadlines: a paginated window of
// in-flight jobs ordered by approaching deadline, scoped to one
// scaler's [start, end) time range (spec §4.9 ZombieJobs consumes the
// same stream).
func (h *JobsHandler) Deadlines(c *gin.Context) (interface{}, error) {
	scaler, start, end, skip, limit, err := windowParams(c)
	if err != nil {
		return nil, err
	}
	return h.engine.Deadlines(scaler, start, end, skip, limit)
}

// Running implements GET /jobs/running, windowed the same way.
func (h *JobsHandler) Running(c *gin.Context) (interface{}, error) {
	scaler, start, end, skip, limit, err := windowParams(c)
	if err != nil {
		return nil, err
	}
	return h.engine.Running(scaler, start, end, skip, limit)
}

func windowParams(c *gin.Context) (scalerKind types.ScalerKind, start, end time.Time, skip, limit int, err error) {
	scalerKind = types.ScalerKind(c.Query("scaler"))
	if scalerKind == "" {
		err = thoriumerrors.NewValidation("scaler query parameter is required")
		return
	}
	now := time.Now().UTC()
	start = now.Add(-24 * time.Hour)
	end = now.Add(24 * time.Hour)
	if v := c.Query("start"); v != "" {
		if start, err = time.Parse(time.RFC3339, v); err != nil {
			err = thoriumerrors.NewValidation("invalid start timestamp")
			return
		}
	}
	if v := c.Query("end"); v != "" {
		if end, err = time.Parse(time.RFC3339, v); err != nil {
			err = thoriumerrors.NewValidation("invalid end timestamp")
			return
		}
	}
	skip, _ = strconv.Atoi(c.DefaultQuery("skip", "0"))
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "100"))
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	return
}
