package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/keyportal/keyportal/pkg/auth"
	"github.com/keyportal/keyportal/pkg/identity"
	"github.com/keyportal/keyportal/pkg/log"
	"github.com/keyportal/keyportal/pkg/models"
	"github.com/sirupsen/logrus"
)

// AuthController handles login and password change.
type AuthController struct {
	login     *auth.LoginService
	passwords *auth.PasswordService
	extractor identity.Extractor
	logger    logrus.FieldLogger
}

func NewAuthController(login *auth.LoginService, passwords *auth.PasswordService, extractor identity.Extractor) *AuthController {
	return &AuthController{
		login:     login,
		passwords: passwords,
		extractor: extractor,
		logger:    log.WithField("module", "AuthController"),
	}
}

func (a *AuthController) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Username and password are required"})
		return
	}

	bundle, advisory, err := a.login.Login(c.Request.Context(), req)
	if err != nil {
		renderError(c, err)
		return
	}
	if advisory.Failed() {
		a.logger.Warnf("login advisory check failed for %s: %v", req.Username, advisory.Err)
	}
	c.JSON(http.StatusOK, bundle)
}

func (a *AuthController) ChangePassword(c *gin.Context) {
	var req models.ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Old and new passwords are required"})
		return
	}
	if req.Username == "" {
		// Header trust mode variants omit the username from the body,
		// the proxy injected identity supplies it.
		if id, err := a.extractor.Extract(c.Request); err == nil {
			req.Username = id.PreferredUsername
		}
	}
	if req.Username == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Username is required"})
		return
	}

	advisory, err := a.passwords.ChangePassword(c.Request.Context(), req)
	if err != nil {
		renderError(c, err)
		return
	}
	if advisory.Failed() {
		a.logger.Warnf("required actions not cleared for %s: %v", req.Username, advisory.Err)
	}
	c.JSON(http.StatusOK, gin.H{"message": "Password changed successfully"})
}
