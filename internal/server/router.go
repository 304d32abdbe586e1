package server

import (
	"net/http"

	"isp-crm/internal/accounts"
	"isp-crm/internal/authz"
	"isp-crm/internal/catalog"
	"isp-crm/internal/config"
	"isp-crm/internal/database"
	"isp-crm/internal/handlers"
	"isp-crm/internal/leads"
	"isp-crm/internal/middleware"
	"isp-crm/internal/pipeline"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
)

func NewRouter(cfg *config.Config) *gin.Engine {
	r := gin.Default()

	store := cookie.NewStore([]byte(cfg.SessionSecret))
	r.Use(sessions.Sessions("crm_session", store))

	r.Use(middleware.RequestID())
	r.Use(middleware.InjectUser())

	leadHandler := handlers.NewLeadHandler(leads.NewRegistry(database.DB))
	productHandler := handlers.NewProductHandler(catalog.NewStore(database.DB))
	projectHandler := handlers.NewProjectHandler(pipeline.NewEngine(database.DB))
	customerHandler := handlers.NewCustomerHandler(accounts.NewStore(database.DB))

	// AUTH
	r.POST("/register", handlers.Register)
	r.POST("/login", handlers.Login)
	r.GET("/logout", handlers.Logout)

	auth := r.Group("/")
	auth.Use(middleware.RequireAuth())

	auth.GET("/dashboard", handlers.Dashboard)

	// LEADS
	auth.GET("/leads", leadHandler.List)
	auth.POST("/leads", leadHandler.Create)
	auth.GET("/leads/:id", leadHandler.Get)
	auth.PUT("/leads/:id", leadHandler.Update)
	auth.DELETE("/leads/:id", leadHandler.Delete)

	// PRODUCT CATALOG
	auth.GET("/products/active", productHandler.ListActive)
	auth.GET("/products", productHandler.List)
	auth.GET("/products/:id", productHandler.Get)

	productAdmin := middleware.RequireRole(authz.RolesFor(authz.ProductManage)...)
	auth.POST("/products", productAdmin, productHandler.Create)
	auth.PUT("/products/:id", productAdmin, productHandler.Update)
	auth.DELETE("/products/:id", productAdmin, productHandler.Delete)

	// PROJECT PIPELINE
	auth.GET("/projects", projectHandler.List)
	auth.POST("/projects", projectHandler.Create)
	auth.GET("/projects/:id", projectHandler.Get)
	auth.PUT("/projects/:id", projectHandler.Update)
	auth.DELETE("/projects/:id", projectHandler.Delete)

	auth.POST("/projects/:id/approve",
		middleware.RequireRole(authz.RolesFor(authz.ProjectApprove)...),
		projectHandler.Approve,
	)
	auth.POST("/projects/:id/reject",
		middleware.RequireRole(authz.RolesFor(authz.ProjectReject)...),
		projectHandler.Reject,
	)
	// conversion is open to any authenticated role; the engine checks
	// ownership for sales users
	auth.POST("/projects/:id/convert", projectHandler.Convert)

	// CUSTOMERS
	auth.GET("/customers", customerHandler.List)
	auth.GET("/customers/:id", customerHandler.Get)
	auth.PUT("/customers/:id",
		middleware.RequireRole(authz.RolesFor(authz.CustomerUpdate)...),
		customerHandler.Update,
	)

	serviceManage := middleware.RequireRole(authz.RolesFor(authz.ServiceManage)...)
	auth.POST("/customers/:id/services", serviceManage, customerHandler.AddService)
	auth.PUT("/customers/:id/services", serviceManage, customerHandler.SyncServices)
	auth.PUT("/customers/:id/services/:serviceID", serviceManage, customerHandler.UpdateService)
	auth.DELETE("/customers/:id/services/:serviceID", serviceManage, customerHandler.RemoveService)

	// USER MANAGEMENT
	userAdmin := middleware.RequireRole(authz.RolesFor(authz.UserManage)...)
	auth.GET("/users", userAdmin, handlers.ListUsers)
	auth.POST("/users", userAdmin, handlers.CreateUser)
	auth.GET("/users/:id", userAdmin, handlers.GetUser)
	auth.PUT("/users/:id", userAdmin, handlers.UpdateUser)
	auth.DELETE("/users/:id", userAdmin, handlers.DeleteUser)

	// AUDIT
	auth.GET("/audit",
		middleware.RequireRole(authz.RolesFor(authz.AuditView)...),
		handlers.ListAuditLogs,
	)

	// HEALTHCHECK
	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	return r
}
