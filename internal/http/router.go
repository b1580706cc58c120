// Package http wires the API surface: route registration, auth middleware
// and CORS.
package http

import (
	"github.com/gin-gonic/gin"

	"github.com/scorpion-security/hub/internal/ai"
	"github.com/scorpion-security/hub/internal/config"
	"github.com/scorpion-security/hub/internal/http/handlers"
	"github.com/scorpion-security/hub/internal/store"
)

// NewRouter builds the gin engine with every endpoint registered under /api.
func NewRouter(cfg *config.Config, st store.Store, responder *ai.Responder) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery(), CORS())

	authRequired := RequireAuth(cfg.JWTSecret)
	superAdmin := RequireSuperAdmin(cfg.JWTSecret)
	authOptional := OptionalAuth(cfg.JWTSecret)

	authHandler := handlers.NewAuthHandler(st, cfg.JWTSecret, cfg.BcryptCost)
	adminHandler := handlers.NewAdminHandler(st)
	libraryHandler := handlers.NewLibraryHandler(st)
	researchHandler := handlers.NewResearchHandler(st)
	incidentsHandler := handlers.NewIncidentsHandler(st)
	threatsHandler := handlers.NewThreatsHandler(st)
	aiHandler := handlers.NewAIHandler(responder)
	healthHandler := handlers.NewHealthHandler(st)

	api := engine.Group("/api")
	api.GET("/health", healthHandler.Health)

	auth := api.Group("/auth")
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
		auth.POST("/admin/register", superAdmin, authHandler.AdminRegister)
		auth.GET("/verify", authRequired, authHandler.Verify)
		auth.POST("/change-password", authRequired, authHandler.ChangePassword)
		auth.POST("/logout", authHandler.Logout)
	}

	admin := api.Group("/admin", superAdmin)
	{
		admin.GET("/users", adminHandler.ListUsers)
		admin.GET("/users/:id", adminHandler.GetUser)
		admin.PATCH("/users/:id/role", adminHandler.UpdateRole)
		admin.DELETE("/users/:id", adminHandler.DeleteUser)
		admin.GET("/stats", adminHandler.Stats)
	}

	library := api.Group("/library", authOptional)
	{
		library.GET("", libraryHandler.List)
		library.GET("/stats/overview", libraryHandler.Stats)
		library.GET("/:id", libraryHandler.Get)
		library.POST("", libraryHandler.Create)
		library.PUT("/:id", libraryHandler.Update)
		library.DELETE("/:id", libraryHandler.Delete)
	}

	research := api.Group("/research", authOptional)
	{
		research.GET("", researchHandler.List)
		research.GET("/stats/overview", researchHandler.Stats)
		research.GET("/:id", researchHandler.Get)
		research.POST("", researchHandler.Create)
		research.PUT("/:id", researchHandler.Update)
		research.PATCH("/:id/progress", researchHandler.UpdateProgress)
		research.DELETE("/:id", researchHandler.Delete)
		research.POST("/:id/collaborators", researchHandler.AddCollaborator)
		research.DELETE("/:id/collaborators/:collaboratorId", researchHandler.RemoveCollaborator)
	}

	incidents := api.Group("/incidents", authOptional)
	{
		incidents.GET("", incidentsHandler.List)
		incidents.GET("/:id", incidentsHandler.Get)
		incidents.POST("", incidentsHandler.Create)
		incidents.PATCH("/:id/status", incidentsHandler.UpdateStatus)
	}

	threats := api.Group("/threat-intelligence")
	{
		threats.GET("/feeds", threatsHandler.ListFeeds)
		threats.GET("/feeds/:id", threatsHandler.GetFeed)
	}

	api.POST("/ai/chat", aiHandler.Chat)

	return engine
}
