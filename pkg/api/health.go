package api

import (
	"github.com/gin-gonic/gin"

	"github.com/thorium-sh/thorium/pkg/api/middleware"
)

// Version is stamped at build time via -ldflags, the way the teacher's
// components report their own version (spec §6 "/version").
var Version = "dev"

// HealthHandler serves the operational routes of spec §6: health,
// version, banner and identify (the latter echoing back the
// authenticated caller, useful for CLI login checks).
type HealthHandler struct {
	BannerText string
}

func (h *HealthHandler) Health(c *gin.Context) (interface{}, error) {
	return gin.H{"status": "ok"}, nil
}

func (h *HealthHandler) Version(c *gin.Context) (interface{}, error) {
	return gin.H{"version": Version}, nil
}

func (h *HealthHandler) Banner(c *gin.Context) (interface{}, error) {
	return gin.H{"banner": h.BannerText}, nil
}

func (h *HealthHandler) Identify(c *gin.Context) (interface{}, error) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		return gin.H{"authenticated": false}, nil
	}
	return gin.H{"authenticated": true, "username": user.Username, "role": user.Role}, nil
}
