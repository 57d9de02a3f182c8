package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/memhubio/memhub/internal/pkg/errcode"
	"github.com/memhubio/memhub/internal/pkg/response"
	"github.com/memhubio/memhub/internal/service"
)

type GraphHandler struct {
	memory *service.MemoryService
	graphs *service.GraphService
}

func NewGraphHandler(memory *service.MemoryService, graphs *service.GraphService) *GraphHandler {
	return &GraphHandler{memory: memory, graphs: graphs}
}

type addEntityRequest struct {
	ConversationID int64  `json:"conversation_id"`
	EntityType     string `json:"entity_type"`
	EntityName     string `json:"entity_name"`
	Description    string `json:"description"`
}

func (h *GraphHandler) AddEntity(c *gin.Context) {
	var req addEntityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	ent, err := h.memory.AddEntity(c.Request.Context(), service.AddEntityArgs{
		UserID:         getUserID(c),
		ConversationID: req.ConversationID,
		EntityType:     req.EntityType,
		EntityName:     req.EntityName,
		Description:    req.Description,
	})
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, ent)
}

func (h *GraphHandler) ListEntities(c *gin.Context) {
	ents, err := h.graphs.ListEntities(c.Request.Context(), getUserID(c))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"entities": ents, "count": len(ents)})
}

type addRelationshipRequest struct {
	SourceEntityID   int64   `json:"source_entity_id"`
	TargetEntityID   int64   `json:"target_entity_id"`
	RelationshipType string  `json:"relationship_type"`
	Weight           float64 `json:"weight"`
	Metadata         string  `json:"metadata"`
}

func (h *GraphHandler) AddRelationship(c *gin.Context) {
	var req addRelationshipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	rel, err := h.memory.AddRelationship(c.Request.Context(), service.AddRelationshipArgs{
		UserID:           getUserID(c),
		SourceEntityID:   req.SourceEntityID,
		TargetEntityID:   req.TargetEntityID,
		RelationshipType: req.RelationshipType,
		Weight:           req.Weight,
		Metadata:         req.Metadata,
	})
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, rel)
}

func (h *GraphHandler) ListRelationships(c *gin.Context) {
	rels, err := h.graphs.ListRelationships(c.Request.Context(), getUserID(c))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"relationships": rels, "count": len(rels)})
}

func (h *GraphHandler) Related(c *gin.Context) {
	entityName := c.Query("entity_name")
	if entityName == "" {
		response.Error(c, errcode.ErrInvalid, "entity_name required")
		return
	}
	result, err := h.graphs.RelatedEntities(c.Request.Context(), getUserID(c), entityName,
		queryInt(c, "max_depth", 0), queryInt(c, "limit", 0))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, result)
}

func (h *GraphHandler) Importance(c *gin.Context) {
	scores, err := h.graphs.EntityImportance(c.Request.Context(), getUserID(c), queryInt(c, "limit", 0))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"entities": scores, "count": len(scores)})
}

func (h *GraphHandler) Clusters(c *gin.Context) {
	result, err := h.graphs.TopicClusters(c.Request.Context(), getUserID(c), queryInt(c, "min_cluster_size", 0))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, result)
}
