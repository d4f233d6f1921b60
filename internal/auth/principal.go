package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	userIDHeader = "X-User-ID"
	adminHeader  = "X-Admin"

	principalKey = "principal"
)

// Principal identifies the acting user. The upstream gateway authenticates
// users and forwards identity headers; this service only consumes them.
type Principal struct {
	UserID        uuid.UUID
	Admin         bool
	Authenticated bool
}

// PrincipalMiddleware resolves the acting user from gateway headers. Requests
// without a valid X-User-ID proceed unauthenticated; handlers decide what an
// anonymous caller may see.
func PrincipalMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		p := Principal{}
		if v := c.GetHeader(userIDHeader); v != "" {
			if id, err := uuid.Parse(v); err == nil {
				p.UserID = id
				p.Authenticated = true
				p.Admin = c.GetHeader(adminHeader) == "true"
			}
		}
		c.Set(principalKey, p)
		c.Next()
	}
}

// GetPrincipal returns the principal resolved by PrincipalMiddleware.
func GetPrincipal(c *gin.Context) Principal {
	if v, ok := c.Get(principalKey); ok {
		if p, ok := v.(Principal); ok {
			return p
		}
	}
	return Principal{}
}

// RequireAuth aborts requests that carry no authenticated principal.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !GetPrincipal(c).Authenticated {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "authentication required",
			})
			return
		}
		c.Next()
	}
}
