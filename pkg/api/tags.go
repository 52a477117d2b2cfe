package api

import (
	"github.com/gin-gonic/gin"

	thoriumerrors "github.com/thorium-sh/thorium/pkg/errors"
	"github.com/thorium-sh/thorium/pkg/events"
	"github.com/thorium-sh/thorium/pkg/tags"
	"github.com/thorium-sh/thorium/pkg/types"
)

// TagsHandler serves spec §6's tags routes over the tagging service
// (spec §4.6), and EventsHandler serves the poll/clear/reset_all event
// bus routes workers use to react to new samples and tags (spec §4.7).
type TagsHandler struct {
	tags *tags.Service
}

func NewTagsHandler(t *tags.Service) *TagsHandler { return &TagsHandler{tags: t} }

func (h *TagsHandler) Tag(c *gin.Context) (interface{}, error) {
	var req struct {
		Kind  string `json:"kind" binding:"required"`
		Group string `json:"group" binding:"required"`
		Key   string `json:"key" binding:"required"`
		Value string `json:"value" binding:"required"`
		Item  string `json:"item" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		return nil, thoriumerrors.NewValidation(err.Error())
	}
	return nil, h.tags.Tag(types.TagKind(req.Kind), req.Group, req.Key, req.Value, req.Item)
}

func (h *TagsHandler) Untag(c *gin.Context) (interface{}, error) {
	var req struct {
		Kind  string `json:"kind" binding:"required"`
		Group string `json:"group" binding:"required"`
		Key   string `json:"key" binding:"required"`
		Value string `json:"value" binding:"required"`
		Item  string `json:"item" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		return nil, thoriumerrors.NewValidation(err.Error())
	}
	return nil, h.tags.Untag(types.TagKind(req.Kind), req.Group, req.Key, req.Value, req.Item)
}

func (h *TagsHandler) ListForItem(c *gin.Context) (interface{}, error) {
	user, err := currentUser(c)
	if err != nil {
		return nil, err
	}
	return h.tags.ListForItem(types.TagKind(c.Query("kind")), c.Param("item"), user.Groups)
}

func (h *TagsHandler) Query(c *gin.Context) (interface{}, error) {
	return h.tags.Query(types.TagKind(c.Query("kind")), c.Query("group"), c.Query("key"), c.Query("value"))
}

// EventsHandler wraps pkg/events.Bus for the worker-facing poll/clear
// routes (spec §4.7).
type EventsHandler struct {
	bus *events.Bus
}

func NewEventsHandler(bus *events.Bus) *EventsHandler { return &EventsHandler{bus: bus} }

func (h *EventsHandler) Pop(c *gin.Context) (interface{}, error) {
	limit := 10
	return h.bus.Pop(types.EventType(c.Query("type")), limit)
}

func (h *EventsHandler) Clear(c *gin.Context) (interface{}, error) {
	var req struct {
		Type string   `json:"type" binding:"required"`
		IDs  []string `json:"ids" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		return nil, thoriumerrors.NewValidation(err.Error())
	}
	return nil, h.bus.Clear(types.EventType(req.Type), req.IDs)
}

func (h *EventsHandler) ResetAll(c *gin.Context) (interface{}, error) {
	var req struct {
		Type string `json:"type" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		return nil, thoriumerrors.NewValidation(err.Error())
	}
	return nil, h.bus.ResetAll(types.EventType(req.Type))
}
