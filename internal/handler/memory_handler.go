package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/memhubio/memhub/internal/pkg/errcode"
	"github.com/memhubio/memhub/internal/pkg/response"
	"github.com/memhubio/memhub/internal/service"
)

type MemoryHandler struct {
	memory    *service.MemoryService
	retrieval *service.RetrievalService
}

func NewMemoryHandler(memory *service.MemoryService, retrieval *service.RetrievalService) *MemoryHandler {
	return &MemoryHandler{memory: memory, retrieval: retrieval}
}

type saveConversationRequest struct {
	SessionID string `json:"session_id"`
	Role      string `json:"role"`
	Content   string `json:"content"`
	Platform  string `json:"platform"`
	Metadata  string `json:"metadata"`
}

func (h *MemoryHandler) SaveConversation(c *gin.Context) {
	var req saveConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	result, err := h.memory.SaveConversation(c.Request.Context(), service.SaveConversationArgs{
		UserID:    getUserID(c),
		SessionID: req.SessionID,
		Role:      req.Role,
		Content:   req.Content,
		Platform:  req.Platform,
		Metadata:  req.Metadata,
	})
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, result)
}

type searchRequest struct {
	Query     string  `json:"query"`
	SessionID string  `json:"session_id"`
	Platform  string  `json:"platform"`
	Days      int     `json:"days"`
	Threshold float64 `json:"threshold"`
	Limit     int     `json:"limit"`
}

func (h *MemoryHandler) Search(c *gin.Context) {
	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	matches, err := h.retrieval.SearchConversations(c.Request.Context(), service.SearchArgs{
		UserID:    getUserID(c),
		Query:     req.Query,
		SessionID: req.SessionID,
		Platform:  req.Platform,
		Days:      req.Days,
		Threshold: req.Threshold,
		Limit:     req.Limit,
	})
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"results": matches, "count": len(matches)})
}

type topicSearchRequest struct {
	Topic     string  `json:"topic"`
	Threshold float64 `json:"threshold"`
	Limit     int     `json:"limit"`
}

func (h *MemoryHandler) SearchByTopic(c *gin.Context) {
	var req topicSearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	matches, err := h.retrieval.SearchByTopic(c.Request.Context(), getUserID(c), req.Topic, req.Threshold, req.Limit)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"results": matches, "count": len(matches)})
}

type summarySearchRequest struct {
	Query       string  `json:"query"`
	SummaryType string  `json:"summary_type"`
	Threshold   float64 `json:"threshold"`
	Limit       int     `json:"limit"`
}

func (h *MemoryHandler) SearchSummaries(c *gin.Context) {
	var req summarySearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	matches, err := h.retrieval.SearchSummaries(c.Request.Context(), getUserID(c),
		req.Query, req.SummaryType, req.Threshold, req.Limit)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"results": matches, "count": len(matches)})
}

func (h *MemoryHandler) RecentContext(c *gin.Context) {
	convs, err := h.retrieval.GetRecentContext(c.Request.Context(), getUserID(c),
		c.Query("session_id"), queryInt(c, "limit", 0))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"conversations": convs, "count": len(convs)})
}

func (h *MemoryHandler) Timeline(c *gin.Context) {
	items, err := h.retrieval.GetTimeline(c.Request.Context(), getUserID(c),
		c.Query("entity_name"), queryInt(c, "limit", 0))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"timeline": items, "count": len(items)})
}

type metadataRequest struct {
	Metadata string `json:"metadata"`
}

func (h *MemoryHandler) UpdateMetadata(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid conversation id")
		return
	}
	var req metadataRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	if err := h.memory.UpdateConversationMetadata(c.Request.Context(), getUserID(c), id, req.Metadata); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"ok": true})
}

func (h *MemoryHandler) DeleteConversation(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid conversation id")
		return
	}
	if err := h.memory.DeleteConversation(c.Request.Context(), getUserID(c), id); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"ok": true})
}
