package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/clausea/clausea/internal/ai"
	"github.com/clausea/clausea/internal/legifrance"
	"github.com/clausea/clausea/internal/middleware"
	"github.com/clausea/clausea/internal/pkg/errcode"
	appErr "github.com/clausea/clausea/internal/pkg/errors"
	"github.com/clausea/clausea/internal/pkg/logutil"
	"github.com/clausea/clausea/internal/pkg/response"
)

func getUserID(c *gin.Context) string {
	value, _ := c.Get(middleware.ContextUserIDKey)
	userID, _ := value.(string)
	return userID
}

func getTenantID(c *gin.Context) string {
	value, _ := c.Get(middleware.ContextTenantIDKey)
	tenantID, _ := value.(string)
	return tenantID
}

var providerErrCodes = map[ai.ErrorCategory]int{
	ai.CategoryConfig:         errcode.ErrConfig,
	ai.CategoryAuthInvalid:    errcode.ErrAuthInvalid,
	ai.CategoryQuotaExceeded:  errcode.ErrQuotaExceeded,
	ai.CategoryRateLimited:    errcode.ErrRateLimited,
	ai.CategoryModelNotFound:  errcode.ErrModelNotFound,
	ai.CategoryContextTooLong: errcode.ErrContextTooLong,
	ai.CategoryInvalidRequest: errcode.ErrInvalidRequest,
	ai.CategoryUpstream:       errcode.ErrAIUnavailable,
}

// handleError maps the error taxonomy onto HTTP responses. Provider and
// connector errors carry their own status and user message; raw vendor
// payloads never leak beyond the detail string they were classified with.
func handleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	logutil.GetLogger(c.Request.Context()).Error("request failed",
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.Error(err))

	var provErr *ai.ProviderError
	var extErr *legifrance.APIError
	switch {
	case errors.As(err, &provErr):
		code := providerErrCodes[provErr.Category]
		if code == 0 {
			code = errcode.ErrAIUnavailable
		}
		message := provErr.Message
		if provErr.Detail != "" {
			message = message + " (" + provErr.Detail + ")"
		}
		response.Error(c, provErr.Status, code, message)
	case errors.As(err, &extErr):
		response.Error(c, extErr.Status, errcode.ErrExternalSource, extErr.UserMessage)
	case errors.Is(err, appErr.ErrDimensionMismatch):
		response.Error(c, http.StatusBadRequest, errcode.ErrDimensionMismatch, "embedding dimension mismatch")
	case errors.Is(err, appErr.ErrStore):
		response.Error(c, http.StatusInternalServerError, errcode.ErrStore, "storage error")
	case errors.Is(err, appErr.ErrUnauthorized):
		response.Error(c, http.StatusUnauthorized, errcode.ErrUnauthorized, "unauthorized")
	case errors.Is(err, appErr.ErrForbidden):
		response.Error(c, http.StatusForbidden, errcode.ErrForbidden, "forbidden")
	case errors.Is(err, appErr.ErrNotFound):
		response.Error(c, http.StatusNotFound, errcode.ErrNotFound, "not found")
	case errors.Is(err, appErr.ErrInvalid):
		response.Error(c, http.StatusBadRequest, errcode.ErrInvalid, "invalid request")
	case errors.Is(err, appErr.ErrConflict):
		response.Error(c, http.StatusConflict, errcode.ErrConflict, "conflict")
	default:
		response.Error(c, http.StatusInternalServerError, errcode.ErrInternal, "internal error")
	}
}
