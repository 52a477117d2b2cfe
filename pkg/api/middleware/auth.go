// Package middleware holds the gin middleware chain of spec §6:
// bearer-token and HTTP-basic authentication resolving to a
// types.User, attached to the request context for handlers to read.
// Grounded on apiserver/pkg/handlers/middleware's gin.HandlerFunc
// chain-composition style.
package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	thoriumerrors "github.com/thorium-sh/thorium/pkg/errors"
	"github.com/thorium-sh/thorium/pkg/types"
)

// UserKey is the gin context key holding the authenticated *types.User.
const UserKey = "thorium.user"

// UserResolver looks a principal up by bearer token or basic-auth
// username/password, returning (nil, nil) when credentials don't match
// any known user rather than an error, so Authenticate can tell "no
// such user" apart from a backend failure.
type UserResolver interface {
	ByToken(token string) (*types.User, error)
	ByBasicAuth(username, password string) (*types.User, error)
}

// Authenticate resolves the caller from an Authorization header,
// accepting either "Bearer <token>" or HTTP basic auth, and aborts with
// Unauthorized when neither is present or matches a user.
func Authenticate(resolver UserResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		var user *types.User
		var err error

		switch {
		case strings.HasPrefix(header, "Bearer "):
			token := strings.TrimPrefix(header, "Bearer ")
			user, err = resolver.ByToken(token)
		default:
			username, password, ok := c.Request.BasicAuth()
			if !ok {
				abortUnauthorized(c, "missing authorization credentials")
				return
			}
			user, err = resolver.ByBasicAuth(username, password)
		}

		if err != nil {
			_ = c.Error(err)
			abortUnauthorized(c, "authentication failed")
			return
		}
		if user == nil {
			abortUnauthorized(c, "invalid credentials")
			return
		}
		c.Set(UserKey, user)
		c.Next()
	}
}

func abortUnauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(401, gin.H{"error": msg})
}

// RequireAdmin rejects non-admin callers after Authenticate has run.
// NewRouter mounts no route behind it; POST /users/bootstrap is a public
// route that checks the configured secret key in its request body.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok || user.Role != types.RoleAdmin {
			_ = c.Error(thoriumerrors.NewForbidden("system administrator privileges are required"))
			c.AbortWithStatusJSON(403, gin.H{"error": "system administrator privileges are required"})
			return
		}
		c.Next()
	}
}

// CurrentUser fetches the authenticated user Authenticate attached.
func CurrentUser(c *gin.Context) (*types.User, bool) {
	v, ok := c.Get(UserKey)
	if !ok {
		return nil, false
	}
	u, ok := v.(*types.User)
	return u, ok
}
