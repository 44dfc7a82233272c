package router

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Minhal128/CodeX/internal/http/handler"
	"github.com/Minhal128/CodeX/internal/service"
)

type RouterConfig struct {
	// HealthCheck reports whether dependencies are reachable. nil means
	// always healthy.
	HealthCheck func(ctx context.Context) error
}

func SetupRoutes(router *gin.Engine, services *service.Services, cfg RouterConfig) {
	router.GET("/health", func(c *gin.Context) {
		if cfg.HealthCheck != nil {
			if err := cfg.HealthCheck(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		userHandler := handler.NewUserHandler(services.Users())
		UserRouter(v1.Group("/users"), userHandler)

		projectHandler := handler.NewProjectHandler(services.Projects(), services.Messages())
		ProjectRouter(v1.Group("/projects"), projectHandler)
	}
}

func UserRouter(rg *gin.RouterGroup, h *handler.UserHandler) {
	rg.GET("", h.List)
	rg.POST("", h.Create)
}

func ProjectRouter(rg *gin.RouterGroup, h *handler.ProjectHandler) {
	rg.POST("", h.Create)
	rg.GET("/:id", h.Get)
	rg.PUT("/:id/file-tree", h.SaveFileTree)
	rg.PUT("/:id/collaborators", h.AddCollaborators)
	rg.POST("/:id/messages", h.PostMessage)
}
