package controller

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/keyportal/keyportal/pkg/keycloak"
	"github.com/keyportal/keyportal/pkg/log"
	"github.com/keyportal/keyportal/pkg/middleware"
	"github.com/keyportal/keyportal/pkg/models"
	"github.com/sirupsen/logrus"
)

// UserController serves identity-derived views and the admin user
// listing.
type UserController struct {
	provider *keycloak.Client
	logger   logrus.FieldLogger
}

func NewUserController(provider *keycloak.Client) *UserController {
	return &UserController{
		provider: provider,
		logger:   log.WithField("module", "UserController"),
	}
}

func (u *UserController) Me(c *gin.Context) {
	id, ok := middleware.GetIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}
	c.JSON(http.StatusOK, models.UserInfo{
		Username:  id.PreferredUsername,
		Email:     id.Email,
		Roles:     id.Roles,
		FirstName: id.FirstName,
		LastName:  id.LastName,
	})
}

func (u *UserController) Dashboard(c *gin.Context) {
	id, ok := middleware.GetIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": fmt.Sprintf("Welcome to the dashboard, %s!", id.PreferredUsername),
		"user":    id.PreferredUsername,
		"roles":   id.Roles,
		"issuer":  id.Issuer,
		"email":   id.Email,
	})
}

// ListUsers returns the provider's raw user records. The route is
// admin gated.
func (u *UserController) ListUsers(c *gin.Context) {
	ctx := c.Request.Context()
	adminToken, err := u.provider.RequestAdminToken(ctx)
	if err != nil {
		renderError(c, err)
		return
	}
	users, err := u.provider.ListUsers(ctx, adminToken)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, users)
}
