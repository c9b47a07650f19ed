package handler

import (
	"strings"

	"github.com/gin-gonic/gin"

	appErr "github.com/clausea/clausea/internal/pkg/errors"
	"github.com/clausea/clausea/internal/pkg/response"
	"github.com/clausea/clausea/internal/service"
)

const (
	headerAIProvider   = "X-AI-Provider"
	headerAIModel      = "X-AI-Model"
	headerAIEmbedModel = "X-AI-Embed-Model"
	headerAIBaseURL    = "X-AI-Base-URL"
)

type AskHandler struct {
	resolver  service.AIProviderSource
	retrieval *service.RetrievalService
	answers   *service.AnswerService
}

func NewAskHandler(resolver service.AIProviderSource, retrieval *service.RetrievalService, answers *service.AnswerService) *AskHandler {
	return &AskHandler{resolver: resolver, retrieval: retrieval, answers: answers}
}

type askRequest struct {
	Question   string   `json:"question" binding:"required"`
	SourceIDs  []string `json:"source_ids"`
	Scope      string   `json:"scope"`
	Fonds      []string `json:"fonds"`
	Mode       string   `json:"mode"`
	Provider   string   `json:"provider"`
	ChatModel  string   `json:"chat_model"`
	EmbedModel string   `json:"embed_model"`
	BaseURL    string   `json:"base_url"`
}

func (h *AskHandler) Ask(c *gin.Context) {
	var req askRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handleError(c, appErr.ErrInvalid)
		return
	}
	scope, err := parseScope(req.Scope)
	if err != nil {
		handleError(c, err)
		return
	}
	mode, err := parseMode(req.Mode)
	if err != nil {
		handleError(c, err)
		return
	}

	ctx := c.Request.Context()
	tenantID := getTenantID(c)
	resolved, err := h.resolver.Resolve(ctx, tenantID,
		service.RequestAIOptions{
			Provider:   req.Provider,
			ChatModel:  req.ChatModel,
			EmbedModel: req.EmbedModel,
			BaseURL:    req.BaseURL,
		},
		service.RequestAIOptions{
			Provider:   c.GetHeader(headerAIProvider),
			ChatModel:  c.GetHeader(headerAIModel),
			EmbedModel: c.GetHeader(headerAIEmbedModel),
			BaseURL:    c.GetHeader(headerAIBaseURL),
		})
	if err != nil {
		handleError(c, err)
		return
	}

	retrieved, err := h.retrieval.Retrieve(ctx, tenantID, service.RetrieveInput{
		Question:  req.Question,
		SourceIDs: req.SourceIDs,
		Scope:     scope,
		Fonds:     req.Fonds,
		AI:        resolved,
	})
	if err != nil {
		handleError(c, err)
		return
	}

	answer, err := h.answers.Synthesize(ctx, tenantID, getUserID(c), service.SynthesizeInput{
		Question:  req.Question,
		Mode:      mode,
		SourceIDs: req.SourceIDs,
		Matches:   retrieved.Matches,
		External:  retrieved.External,
		AI:        resolved,
	})
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, answer)
}

func parseScope(raw string) (service.Scope, error) {
	switch service.Scope(strings.ToLower(strings.TrimSpace(raw))) {
	case "":
		return service.ScopeAll, nil
	case service.ScopeInternal:
		return service.ScopeInternal, nil
	case service.ScopeExternal:
		return service.ScopeExternal, nil
	case service.ScopeAll:
		return service.ScopeAll, nil
	}
	return "", appErr.ErrInvalid
}

func parseMode(raw string) (service.AnswerMode, error) {
	switch service.AnswerMode(strings.ToLower(strings.TrimSpace(raw))) {
	case "":
		return service.ModeSynthesis, nil
	case service.ModeSynthesis:
		return service.ModeSynthesis, nil
	case service.ModePerSource:
		return service.ModePerSource, nil
	}
	return "", appErr.ErrInvalid
}
