package handler

import (
	"github.com/gin-gonic/gin"

	appErr "github.com/clausea/clausea/internal/pkg/errors"
	"github.com/clausea/clausea/internal/pkg/response"
	"github.com/clausea/clausea/internal/service"
)

type SourceHandler struct {
	ingest *service.IngestService
}

func NewSourceHandler(ingest *service.IngestService) *SourceHandler {
	return &SourceHandler{ingest: ingest}
}

type sourceCreateRequest struct {
	Title   string `json:"title" binding:"required"`
	Type    string `json:"type"`
	Content string `json:"content" binding:"required"`
}

func (h *SourceHandler) Create(c *gin.Context) {
	var req sourceCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handleError(c, appErr.ErrInvalid)
		return
	}
	if req.Type == "" {
		req.Type = "text"
	}
	src, err := h.ingest.CreateSource(c.Request.Context(), getTenantID(c), service.SourceCreateInput{
		Title:   req.Title,
		Type:    req.Type,
		Content: req.Content,
	})
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, src)
}

func (h *SourceHandler) List(c *gin.Context) {
	sources, err := h.ingest.ListSources(c.Request.Context(), getTenantID(c))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, sources)
}

func (h *SourceHandler) Get(c *gin.Context) {
	src, err := h.ingest.GetSource(c.Request.Context(), getTenantID(c), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, src)
}

func (h *SourceHandler) Delete(c *gin.Context) {
	if err := h.ingest.DeleteSource(c.Request.Context(), getTenantID(c), c.Param("id")); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"deleted": true})
}
