package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/keyportal/keyportal/pkg/log"
	"github.com/keyportal/keyportal/pkg/middleware"
	"github.com/sirupsen/logrus"
)

// ResourceController serves a role-gated resource group. Each group
// registers a read route for its viewer roles and a write route for
// its editor roles, role sets are declared at registration.
type ResourceController struct {
	name   string
	logger logrus.FieldLogger
}

func NewResourceController(name string) *ResourceController {
	return &ResourceController{
		name:   name,
		logger: log.WithField("module", "ResourceController").WithField("resource", name),
	}
}

func (r *ResourceController) Get(c *gin.Context) {
	id, _ := middleware.GetIdentity(c)
	c.JSON(http.StatusOK, gin.H{
		"resource": r.name,
		"message":  "Access granted to " + r.name,
		"user":     id.PreferredUsername,
		"roles":    id.Roles,
	})
}

func (r *ResourceController) Update(c *gin.Context) {
	var payload map[string]interface{}
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	id, _ := middleware.GetIdentity(c)
	r.logger.Infof("resource %s updated by %s", r.name, id.PreferredUsername)
	c.JSON(http.StatusOK, gin.H{
		"resource": r.name,
		"message":  r.name + " updated",
		"user":     id.PreferredUsername,
	})
}
