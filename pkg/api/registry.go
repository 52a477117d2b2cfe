package api

import (
	"github.com/gin-gonic/gin"

	"github.com/thorium-sh/thorium/pkg/api/middleware"
	thoriumerrors "github.com/thorium-sh/thorium/pkg/errors"
	"github.com/thorium-sh/thorium/pkg/identity"
	"github.com/thorium-sh/thorium/pkg/registry"
	"github.com/thorium-sh/thorium/pkg/types"
)

// RegistryHandler serves spec §6's pipeline and image CRUD routes,
// authorising each mutation against the named group before delegating
// to pkg/registry.
type RegistryHandler struct {
	registry *registry.Registry
	identity *identity.Registry
}

func NewRegistryHandler(reg *registry.Registry, idr *identity.Registry) *RegistryHandler {
	return &RegistryHandler{registry: reg, identity: idr}
}

func (h *RegistryHandler) group(c *gin.Context, user *types.User) (*types.Group, error) {
	name := types.GroupName(c.Param("group"))
	return h.identity.Authorize(user, name)
}

func currentUser(c *gin.Context) (*types.User, error) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		return nil, thoriumerrors.NewUnauthorized("authentication required")
	}
	return user, nil
}

func (h *RegistryHandler) CreateImage(c *gin.Context) (interface{}, error) {
	user, err := currentUser(c)
	if err != nil {
		return nil, err
	}
	group, err := h.group(c, user)
	if err != nil {
		return nil, err
	}
	var img types.Image
	if err := c.ShouldBindJSON(&img); err != nil {
		return nil, thoriumerrors.NewValidation(err.Error())
	}
	if err := h.registry.CreateImage(group, user, &img); err != nil {
		return nil, err
	}
	return &img, nil
}

func (h *RegistryHandler) GetImage(c *gin.Context) (interface{}, error) {
	img, err := h.registry.GetImage(c.Param("group"), c.Param("name"))
	if err != nil {
		return nil, err
	}
	return img, nil
}

func (h *RegistryHandler) UpdateImage(c *gin.Context) (interface{}, error) {
	user, err := currentUser(c)
	if err != nil {
		return nil, err
	}
	group, err := h.group(c, user)
	if err != nil {
		return nil, err
	}
	var img types.Image
	if err := c.ShouldBindJSON(&img); err != nil {
		return nil, thoriumerrors.NewValidation(err.Error())
	}
	img.Name = c.Param("name")
	if err := h.registry.UpdateImage(group, user, &img); err != nil {
		return nil, err
	}
	return &img, nil
}

func (h *RegistryHandler) DeleteImage(c *gin.Context) (interface{}, error) {
	user, err := currentUser(c)
	if err != nil {
		return nil, err
	}
	group, err := h.group(c, user)
	if err != nil {
		return nil, err
	}
	return nil, h.registry.DeleteImage(group, user, c.Param("name"))
}

func (h *RegistryHandler) BanImage(c *gin.Context) (interface{}, error) {
	user, err := currentUser(c)
	if err != nil {
		return nil, err
	}
	group, err := h.group(c, user)
	if err != nil {
		return nil, err
	}
	var req struct {
		Reason string `json:"reason" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		return nil, thoriumerrors.NewValidation(err.Error())
	}
	return nil, h.registry.BanImage(group, user, c.Param("name"), req.Reason, types.BanGeneric)
}

func (h *RegistryHandler) UnbanImage(c *gin.Context) (interface{}, error) {
	user, err := currentUser(c)
	if err != nil {
		return nil, err
	}
	group, err := h.group(c, user)
	if err != nil {
		return nil, err
	}
	return nil, h.registry.UnbanImage(group, user, c.Param("name"), c.Param("banId"))
}

func (h *RegistryHandler) CreatePipeline(c *gin.Context) (interface{}, error) {
	user, err := currentUser(c)
	if err != nil {
		return nil, err
	}
	group, err := h.group(c, user)
	if err != nil {
		return nil, err
	}
	var p types.Pipeline
	if err := c.ShouldBindJSON(&p); err != nil {
		return nil, thoriumerrors.NewValidation(err.Error())
	}
	if err := h.registry.CreatePipeline(group, user, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (h *RegistryHandler) GetPipeline(c *gin.Context) (interface{}, error) {
	p, err := h.registry.GetPipeline(c.Param("group"), c.Param("name"))
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (h *RegistryHandler) UpdatePipeline(c *gin.Context) (interface{}, error) {
	user, err := currentUser(c)
	if err != nil {
		return nil, err
	}
	group, err := h.group(c, user)
	if err != nil {
		return nil, err
	}
	var p types.Pipeline
	if err := c.ShouldBindJSON(&p); err != nil {
		return nil, thoriumerrors.NewValidation(err.Error())
	}
	p.Name = c.Param("name")
	if err := h.registry.UpdatePipeline(group, user, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (h *RegistryHandler) DeletePipeline(c *gin.Context) (interface{}, error) {
	user, err := currentUser(c)
	if err != nil {
		return nil, err
	}
	group, err := h.group(c, user)
	if err != nil {
		return nil, err
	}
	return nil, h.registry.DeletePipeline(group, user, c.Param("name"))
}

func (h *RegistryHandler) BanPipeline(c *gin.Context) (interface{}, error) {
	user, err := currentUser(c)
	if err != nil {
		return nil, err
	}
	group, err := h.group(c, user)
	if err != nil {
		return nil, err
	}
	var req struct {
		Reason string `json:"reason" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		return nil, thoriumerrors.NewValidation(err.Error())
	}
	return nil, h.registry.BanPipeline(group, user, c.Param("name"), req.Reason)
}

func (h *RegistryHandler) UnbanPipeline(c *gin.Context) (interface{}, error) {
	user, err := currentUser(c)
	if err != nil {
		return nil, err
	}
	group, err := h.group(c, user)
	if err != nil {
		return nil, err
	}
	return nil, h.registry.UnbanPipeline(group, user, c.Param("name"), c.Param("banId"))
}
