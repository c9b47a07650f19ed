package handler

import (
	"github.com/gin-gonic/gin"

	appErr "github.com/clausea/clausea/internal/pkg/errors"
	"github.com/clausea/clausea/internal/pkg/response"
	"github.com/clausea/clausea/internal/service"
)

type SettingsHandler struct {
	settings *service.SettingsService
}

func NewSettingsHandler(settings *service.SettingsService) *SettingsHandler {
	return &SettingsHandler{settings: settings}
}

func (h *SettingsHandler) Get(c *gin.Context) {
	settings, err := h.settings.Get(c.Request.Context(), getTenantID(c))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, settings)
}

type settingsUpdateRequest struct {
	Provider   string `json:"provider"`
	ChatModel  string `json:"chat_model"`
	EmbedModel string `json:"embed_model"`
	BaseURL    string `json:"base_url"`
}

func (h *SettingsHandler) Update(c *gin.Context) {
	var req settingsUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handleError(c, appErr.ErrInvalid)
		return
	}
	settings, err := h.settings.Update(c.Request.Context(), getTenantID(c), service.SettingsUpdateInput{
		Provider:   req.Provider,
		ChatModel:  req.ChatModel,
		EmbedModel: req.EmbedModel,
		BaseURL:    req.BaseURL,
	})
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, settings)
}
