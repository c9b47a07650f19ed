package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/clausea/clausea/internal/pkg/response"
	"github.com/clausea/clausea/internal/service"
)

const defaultHistoryLimit = 50

type QueryHandler struct {
	answers *service.AnswerService
}

func NewQueryHandler(answers *service.AnswerService) *QueryHandler {
	return &QueryHandler{answers: answers}
}

func (h *QueryHandler) List(c *gin.Context) {
	limit := defaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			limit = v
		}
	}
	queries, err := h.answers.History(c.Request.Context(), getTenantID(c), limit)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, queries)
}

func (h *QueryHandler) Citations(c *gin.Context) {
	citations, err := h.answers.Citations(c.Request.Context(), getTenantID(c), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, citations)
}
