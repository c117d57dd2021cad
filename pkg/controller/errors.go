package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/keyportal/keyportal/pkg/errs"
	"github.com/keyportal/keyportal/pkg/log"
	"github.com/pkg/errors"
)

// renderError translates the error taxonomy into the uniform
// {"error": ...} envelope. Transport and unexpected upstream failures
// are operational concerns and logged as errors, rejected credentials
// are expected outcomes.
func renderError(c *gin.Context, err error) {
	logger := log.WithField("module", "controller")

	var unauthenticated *errs.Unauthenticated
	var invalidToken *errs.InvalidToken
	var forbidden *errs.Forbidden
	var authErr *errs.AuthError
	var notFound *errs.NotFound
	var invalidOldPassword *errs.InvalidOldPassword
	var changeFailed *errs.ChangePasswordFailed
	var unavailable *errs.ProviderUnavailable
	var upstream *errs.UnexpectedUpstreamFailure

	switch {
	case errors.As(err, &unauthenticated):
		c.JSON(http.StatusUnauthorized, gin.H{"error": unauthenticated.Error()})
	case errors.As(err, &invalidToken):
		c.JSON(http.StatusUnauthorized, gin.H{"error": invalidToken.Error()})
	case errors.As(err, &forbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": forbidden.Error()})
	case errors.As(err, &authErr):
		logger.Warnf("credentials rejected: %s", authErr.Description)
		c.JSON(http.StatusUnauthorized, gin.H{"error": authErr.Description})
	case errors.As(err, &notFound):
		c.JSON(http.StatusNotFound, gin.H{"error": notFound.Error()})
	case errors.As(err, &invalidOldPassword):
		c.JSON(http.StatusUnauthorized, gin.H{"error": invalidOldPassword.Error()})
	case errors.As(err, &changeFailed):
		c.JSON(http.StatusBadRequest, gin.H{"error": changeFailed.Error()})
	case errors.As(err, &unavailable):
		logger.Errorf("identity provider unavailable: %v", unavailable.Err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Authentication service unavailable"})
	case errors.As(err, &upstream):
		logger.Errorf("unexpected upstream failure: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Unexpected authentication service error"})
	default:
		logger.Errorf("unexpected error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
