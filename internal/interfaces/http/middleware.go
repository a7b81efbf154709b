package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nordstift/foundation-console/internal/domain/authz"
	"github.com/nordstift/foundation-console/internal/domain/workflow"
)

// Header and context keys for the acting identity. The identity
// provider in front of the console sets the headers; the core trusts
// them and only gatekeeps by role.
const (
	HeaderActingRole = "X-Acting-Role"
	HeaderActingUser = "X-Acting-User"

	ctxKeyRole = "acting_role"
	ctxKeyUser = "acting_user"
)

// RouteGuard admits or rejects the request by asking the
// authorization engine whether the acting role may access any of the
// given screens. Unknown roles are denied, never erred. Handlers that
// know the workflow kind narrow the check to the kind's own screen
// afterwards.
func RouteGuard(engine *authz.Engine, screens ...authz.Screen) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := authz.Role(c.GetHeader(HeaderActingRole))

		permitted := false
		for _, screen := range screens {
			if engine.IsPermitted(role, screen) {
				permitted = true
				break
			}
		}
		if !permitted {
			c.AbortWithStatusJSON(http.StatusForbidden, Response{
				Success: false,
				Error:   "role " + role.String() + " is not permitted to access this resource",
			})
			return
		}

		c.Set(ctxKeyRole, role)
		c.Set(ctxKeyUser, c.GetHeader(HeaderActingUser))
		c.Next()
	}
}

// screenForKind maps a workflow kind to the screen gating it, so the
// permission table's per-area grants carry over to workflow access.
func screenForKind(kind workflow.Kind) authz.Screen {
	switch kind {
	case workflow.KindDocumentApproval:
		return authz.ScreenDocuments
	case workflow.KindMeetingSignoff:
		return authz.ScreenMeetings
	default:
		return authz.ScreenRegistration
	}
}

// actingRole returns the acting role recorded by the guard, or the
// raw header when the route is unguarded.
func actingRole(c *gin.Context) authz.Role {
	if v, ok := c.Get(ctxKeyRole); ok {
		if r, ok := v.(authz.Role); ok {
			return r
		}
	}
	return authz.Role(c.GetHeader(HeaderActingRole))
}

// actingUser returns the acting user ID recorded by the guard, or
// the raw header when the route is unguarded.
func actingUser(c *gin.Context) string {
	if v, ok := c.Get(ctxKeyUser); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return c.GetHeader(HeaderActingUser)
}
