package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/clausea/clausea/internal/middleware"
)

type RouterDeps struct {
	Ask       *AskHandler
	Sources   *SourceHandler
	Settings  *SettingsHandler
	Queries   *QueryHandler
	JWTSecret []byte
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	authGroup := api.Group("")
	authGroup.Use(middleware.JWTAuth(deps.JWTSecret))

	authGroup.POST("/ask", deps.Ask.Ask)

	authGroup.POST("/sources", deps.Sources.Create)
	authGroup.GET("/sources", deps.Sources.List)
	authGroup.GET("/sources/:id", deps.Sources.Get)
	authGroup.DELETE("/sources/:id", deps.Sources.Delete)

	authGroup.GET("/queries", deps.Queries.List)
	authGroup.GET("/queries/:id/citations", deps.Queries.Citations)

	authGroup.GET("/settings/ai", deps.Settings.Get)
	authGroup.PUT("/settings/ai", deps.Settings.Update)
}
