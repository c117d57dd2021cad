package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/keyportal/keyportal/pkg/auth"
	"github.com/keyportal/keyportal/pkg/authz"
	"github.com/keyportal/keyportal/pkg/config"
	"github.com/keyportal/keyportal/pkg/controller"
	"github.com/keyportal/keyportal/pkg/identity"
	"github.com/keyportal/keyportal/pkg/keycloak"
	"github.com/keyportal/keyportal/pkg/middleware"
	cors "github.com/rs/cors/wrapper/gin"
)

func SetupRouter(conf config.Config) (*gin.Engine, error) {
	router := gin.Default()
	c := cors.New(cors.Options{
		AllowedOrigins:   conf.Server.Cors.AllowedOrigins,
		AllowCredentials: true,
		Debug:            gin.IsDebugging(),
	})

	extractor, err := identity.NewExtractor(conf.Identity.Mode, conf.Identity.Properties)
	if err != nil {
		return nil, err
	}
	provider := keycloak.NewClient(conf.Provider)

	ac := controller.NewAuthController(
		auth.NewLoginService(provider),
		auth.NewPasswordService(provider),
		extractor,
	)
	uc := controller.NewUserController(provider)
	packages := controller.NewResourceController("packages")
	vpn := controller.NewResourceController("vpn")
	console := controller.NewResourceController("console")

	router.Use(c, middleware.NewRequestIDMiddleware())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	api := router.Group("/api")
	{
		api.POST("/login", ac.Login)
		api.POST("/change-password", ac.ChangePassword)

		authenticated := api.Group("")
		authenticated.Use(middleware.NewIdentityMiddleware(extractor))
		{
			authenticated.GET("/user/me", uc.Me)
			authenticated.GET("/dashboard", uc.Dashboard)

			admin := authenticated.Group("/admin")
			admin.Use(middleware.RequireRoles(authz.Roles(authz.AdminRole)))
			{
				admin.GET("/users", uc.ListUsers)
			}

			registerResource(authenticated, "/packages", packages,
				authz.Roles("packages_viewer", "view_dashboard", authz.AdminRole),
				authz.Roles("packages_editor", authz.AdminRole))
			registerResource(authenticated, "/vpn", vpn,
				authz.Roles("vpn_viewer", "view_dashboard", authz.AdminRole),
				authz.Roles("vpn_editor", authz.AdminRole))
			registerResource(authenticated, "/console", console,
				authz.Roles("console_viewer", "view_dashboard", authz.AdminRole),
				authz.Roles("console_editor", authz.AdminRole))
		}
	}
	return router, nil
}

// registerResource wires a resource group's read and write routes with
// their declarative role requirements.
func registerResource(g *gin.RouterGroup, path string, rc *controller.ResourceController, view, edit authz.Requirement) {
	g.GET(path, middleware.RequireRoles(view), rc.Get)
	g.POST(path, middleware.RequireRoles(edit), rc.Update)
}

func RunServer() error {
	conf := config.GetConfig()
	router, err := SetupRouter(conf)
	if err != nil {
		return err
	}
	return router.Run(":" + conf.Server.Port)
}
