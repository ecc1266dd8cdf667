// Package httpapi maps the repository layer onto HTTP routes. The
// handlers hold no business logic; they bind requests, call the
// repositories, and translate the error taxonomy into statuses.
package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/promptdeck/promptdeck/pkg/di"
)

// NewRouter builds the gin engine with all routes registered.
func NewRouter(c *di.Container) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	prompts := NewPromptHandler(c.Prompts())
	collections := NewCollectionHandler(c.Collections())
	profiles := NewProfileHandler(c.Profiles())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	{
		api.GET("/prompts", prompts.List)
		api.GET("/prompts/trending", prompts.Trending)
		api.GET("/prompts/:id", prompts.Get)
		api.POST("/prompts", prompts.Create)
		api.PATCH("/prompts/:id", prompts.Update)
		api.DELETE("/prompts/:id", prompts.Delete)
		api.POST("/prompts/:id/like", prompts.ToggleLike)
		api.POST("/prompts/:id/copy", prompts.Copy)

		api.GET("/p/:slug", prompts.GetBySlug)

		api.GET("/collections", collections.List)
		api.GET("/collections/:id", collections.Get)
		api.POST("/collections", collections.Create)
		api.PATCH("/collections/:id", collections.Update)
		api.DELETE("/collections/:id", collections.Delete)
		api.POST("/collections/:id/prompts/:promptID", collections.AddPrompt)
		api.DELETE("/collections/:id/prompts/:promptID", collections.RemovePrompt)

		api.GET("/profiles/:username", profiles.GetByUsername)
	}

	return r
}
