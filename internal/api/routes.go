package api

import (
	"github.com/gin-gonic/gin"

	"rabmap/internal/api/handlers"
	"rabmap/internal/api/middleware"
)

type Router struct {
	mapHandler   *handlers.MapHandler
	ferryHandler *handlers.FerryHandler
	prefsHandler *handlers.PrefsHandler
}

func NewRouter(
	mapHandler *handlers.MapHandler,
	ferryHandler *handlers.FerryHandler,
	prefsHandler *handlers.PrefsHandler,
) *Router {
	return &Router{
		mapHandler:   mapHandler,
		ferryHandler: ferryHandler,
		prefsHandler: prefsHandler,
	}
}

func (r *Router) Setup(engine *gin.Engine) {
	// Health check endpoint
	engine.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	api := engine.Group("/")
	api.Use(middleware.ClientID())
	{
		// Map rendering endpoints
		mapRoutes := api.Group("/map")
		{
			mapRoutes.POST("/refresh", r.mapHandler.Refresh)
			mapRoutes.GET("/viewport", r.mapHandler.Viewport)
			mapRoutes.POST("/markers/:id/activate", r.mapHandler.Activate)
			mapRoutes.POST("/interaction", r.mapHandler.Interaction)
		}

		// Ferry simulator endpoints
		ferryRoutes := api.Group("/ferry")
		{
			ferryRoutes.GET("/status", r.ferryHandler.Status)
			ferryRoutes.PUT("/suspended", r.ferryHandler.SetSuspended)
		}

		// Persisted user selection
		api.GET("/prefs", r.prefsHandler.Get)
		api.PUT("/prefs", r.prefsHandler.Put)
	}

	// Debug endpoints (no client identity required)
	debug := engine.Group("/debug")
	{
		debug.GET("/markers", r.mapHandler.Markers)
	}
}
