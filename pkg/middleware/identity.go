package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/keyportal/keyportal/pkg/authz"
	"github.com/keyportal/keyportal/pkg/errs"
	"github.com/keyportal/keyportal/pkg/identity"
	"github.com/keyportal/keyportal/pkg/log"
	"github.com/pkg/errors"
)

const identityKey = "identity"

// GetIdentity returns the identity placed in the context by the
// identity middleware.
func GetIdentity(c *gin.Context) (identity.Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return identity.Identity{}, false
	}
	id, ok := v.(identity.Identity)
	return id, ok
}

// NewIdentityMiddleware extracts the request identity with the
// configured strategy and aborts unauthenticated requests.
func NewIdentityMiddleware(extractor identity.Extractor) gin.HandlerFunc {
	return identityMiddleware{extractor}.build()
}

type identityMiddleware struct {
	extractor identity.Extractor
}

func (m identityMiddleware) build() gin.HandlerFunc {
	logger := log.WithField("module", "IdentityMiddleware")
	return func(c *gin.Context) {
		id, err := m.extractor.Extract(c.Request)
		if err != nil {
			var invalidToken *errs.InvalidToken
			if errors.As(err, &invalidToken) {
				logger.Warnf("malformed bearer token from %s", c.ClientIP())
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		c.Set(identityKey, id)
		c.Next()
	}
}

// RequireRoles gates a route on a declarative requirement evaluated
// by the shared authorizer.
func RequireRoles(requirement authz.Requirement) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := GetIdentity(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		}
		if err := authz.Authorize(id, requirement); err != nil {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": err.Error()})
			return
		}
		c.Next()
	}
}
