package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Sravyalaharimallidi/tenantflow-backend/internal/models"
)

const principalKey = "principal"

// Principal is the authenticated caller as asserted by the gateway. The
// service trusts these headers; it never re-validates identity.
type Principal struct {
	ID   string
	Role models.Role
}

// Identity derives the principal from the X-User-ID and X-User-Role headers
// set by the auth gateway.
func Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-User-ID")
		if _, err := uuid.Parse(id); err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid identity"})
			return
		}
		role := models.Role(c.GetHeader("X-User-Role"))
		switch role {
		case models.RoleTenant, models.RoleOwner, models.RoleAdmin:
		default:
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid role"})
			return
		}
		c.Set(principalKey, Principal{ID: id, Role: role})
		c.Next()
	}
}

// RequireRole gates a route group to the given roles.
func RequireRole(roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		p := CurrentPrincipal(c)
		for _, r := range roles {
			if p.Role == r {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "insufficient role"})
	}
}

// CurrentPrincipal returns the principal set by Identity. Routes using it
// must sit behind that middleware.
func CurrentPrincipal(c *gin.Context) Principal {
	return c.MustGet(principalKey).(Principal)
}
