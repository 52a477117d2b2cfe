// Package api is the gin-gonic HTTP surface of spec §6: users, groups,
// pipelines, jobs, files/repos, results, tags, events and the
// health/version/banner/identify routes. Grounded on
// apiserver/pkg/handlers/cd-handlers's handle()/AbortWithApiError
// pattern: handlers return (interface{}, error) and a single wrapper
// maps the error taxonomy to an HTTP status and JSON envelope.
package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	thoriumerrors "github.com/thorium-sh/thorium/pkg/errors"
	"github.com/thorium-sh/thorium/pkg/log"
)

// Envelope is the error body shape of spec §7: a message always, a
// trace id only for responses mapped to 500 or 503 (Internal,
// ServiceUnavailable, TransientUpstream) so clients never see stack
// details for their own mistakes.
type Envelope struct {
	Error string `json:"error"`
	Trace string `json:"trace,omitempty"`
}

func statusFor(code thoriumerrors.Code) int {
	switch code {
	case thoriumerrors.Validation:
		return http.StatusBadRequest
	case thoriumerrors.Unauthorized:
		return http.StatusUnauthorized
	case thoriumerrors.Forbidden:
		return http.StatusForbidden
	case thoriumerrors.Conflict:
		return http.StatusConflict
	case thoriumerrors.NotFound:
		return http.StatusNotFound
	case thoriumerrors.ServiceUnavailable, thoriumerrors.TransientUpstream:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// abortWithError mirrors the teacher's AbortWithApiError: translate any
// error into a status + envelope, logging the full chain server-side
// while the client sees only a message and (for opaque failures) a
// trace locator.
func abortWithError(c *gin.Context, err error) {
	var te *thoriumerrors.Error
	if !errors.As(err, &te) {
		te = thoriumerrors.Wrap(err, err.Error())
	}
	status := statusFor(te.Code)
	env := Envelope{Error: te.Message}
	if status == http.StatusInternalServerError || status == http.StatusServiceUnavailable {
		env.Trace = te.GetTopStackString()
		log.Component("api").Error(te, "request failed", "path", c.Request.URL.Path, "status", status)
	}
	c.AbortWithStatusJSON(status, env)
}

type handleFunc func(*gin.Context) (interface{}, error)

// handle executes fn and writes its result, or maps its error through
// abortWithError — the single chokepoint every route runs through.
func handle(c *gin.Context, fn handleFunc) {
	resp, err := fn(c)
	if err != nil {
		abortWithError(c, err)
		return
	}
	status := http.StatusOK
	if c.Writer.Status() > 0 {
		status = c.Writer.Status()
	}
	if resp == nil {
		c.Status(status)
		return
	}
	c.JSON(status, resp)
}
