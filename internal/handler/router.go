package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/memhubio/memhub/internal/middleware"
)

type RouterDeps struct {
	Memory    *MemoryHandler
	Graph     *GraphHandler
	JWTSecret []byte
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	authGroup := api.Group("")
	authGroup.Use(middleware.JWTAuth(deps.JWTSecret))

	authGroup.POST("/memory/conversations", deps.Memory.SaveConversation)
	authGroup.GET("/memory/conversations/recent", deps.Memory.RecentContext)
	authGroup.PUT("/memory/conversations/:id/metadata", deps.Memory.UpdateMetadata)
	authGroup.DELETE("/memory/conversations/:id", deps.Memory.DeleteConversation)
	authGroup.POST("/memory/search", deps.Memory.Search)
	authGroup.POST("/memory/search/topic", deps.Memory.SearchByTopic)
	authGroup.POST("/memory/search/summaries", deps.Memory.SearchSummaries)
	authGroup.GET("/memory/timeline", deps.Memory.Timeline)

	authGroup.POST("/graph/entities", deps.Graph.AddEntity)
	authGroup.GET("/graph/entities", deps.Graph.ListEntities)
	authGroup.POST("/graph/relationships", deps.Graph.AddRelationship)
	authGroup.GET("/graph/relationships", deps.Graph.ListRelationships)
	authGroup.GET("/graph/related", deps.Graph.Related)
	authGroup.GET("/graph/importance", deps.Graph.Importance)
	authGroup.GET("/graph/clusters", deps.Graph.Clusters)
}
