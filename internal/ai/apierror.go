package ai

import (
	"fmt"
	"net/http"
	"strings"
)

type ErrorCategory string

const (
	CategoryConfig         ErrorCategory = "config_error"
	CategoryAuthInvalid    ErrorCategory = "auth_invalid"
	CategoryQuotaExceeded  ErrorCategory = "quota_exceeded"
	CategoryRateLimited    ErrorCategory = "rate_limited"
	CategoryModelNotFound  ErrorCategory = "model_not_found"
	CategoryContextTooLong ErrorCategory = "context_too_long"
	CategoryInvalidRequest ErrorCategory = "invalid_request"
	CategoryUpstream       ErrorCategory = "upstream_error"
)

// ProviderError is the normalized form of every vendor failure. Raw vendor
// payloads never travel further than the Detail field.
type ProviderError struct {
	Category ErrorCategory
	Status   int
	Message  string
	Detail   string
}

func (e *ProviderError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Category, e.Message, e.Detail)
	}
	return fmt.Sprintf("%s: %s", e.Category, e.Message)
}

func NewConfigError(msg string) *ProviderError {
	return &ProviderError{Category: CategoryConfig, Status: http.StatusBadRequest, Message: msg}
}

type classifyRule struct {
	category ErrorCategory
	status   int
	httpCode int
	keywords []string
	message  string
}

// classifyRules is evaluated in order; several predicates can match the
// same vendor message, so authentication is checked before quota, quota
// before rate limiting, and so on.
var classifyRules = []classifyRule{
	{
		category: CategoryAuthInvalid,
		status:   http.StatusUnauthorized,
		httpCode: http.StatusUnauthorized,
		keywords: []string{"unauthorized", "invalid api key", "invalid_api_key", "incorrect api key", "api key not valid", "invalid x-api-key", "authentication", "permission denied"},
		message:  "Clé API invalide ou expirée.",
	},
	{
		category: CategoryQuotaExceeded,
		status:   http.StatusPaymentRequired,
		httpCode: http.StatusPaymentRequired,
		keywords: []string{"insufficient_quota", "quota", "billing", "payment required", "credit balance", "exceeded your current"},
		message:  "Quota du fournisseur IA épuisé (facturation ou crédits insuffisants).",
	},
	{
		category: CategoryRateLimited,
		status:   http.StatusTooManyRequests,
		httpCode: http.StatusTooManyRequests,
		keywords: []string{"rate limit", "rate_limit", "too many requests", "requests per minute"},
		message:  "Limite de requêtes du fournisseur atteinte, réessayez dans un instant.",
	},
	{
		category: CategoryModelNotFound,
		status:   http.StatusBadRequest,
		keywords: []string{"model_not_found", "model not found", "does not exist", "unknown model", "no model named"},
		message:  "Modèle demandé introuvable chez le fournisseur.",
	},
	{
		category: CategoryContextTooLong,
		status:   http.StatusBadRequest,
		keywords: []string{"context_length_exceeded", "context length", "maximum context", "too many tokens", "input is too long"},
		message:  "Le contexte dépasse la taille maximale du modèle.",
	},
	{
		category: CategoryInvalidRequest,
		status:   http.StatusBadRequest,
		keywords: []string{"invalid_request", "invalid request", "bad request", "unprocessable", "invalid argument"},
		message:  "Requête refusée par le fournisseur.",
	},
}

// ClassifyVendorError maps a vendor failure onto the fixed taxonomy.
// httpStatus is the vendor's HTTP status (0 when unknown); code, typ and
// message are the vendor error fields, matched case-insensitively.
func ClassifyVendorError(providerName string, httpStatus int, code, typ, message string) *ProviderError {
	haystack := strings.ToLower(code + " " + typ + " " + message)
	for _, rule := range classifyRules {
		if rule.httpCode != 0 && rule.httpCode == httpStatus {
			return providerErrFromRule(rule, message)
		}
		for _, kw := range rule.keywords {
			if strings.Contains(haystack, kw) {
				return providerErrFromRule(rule, message)
			}
		}
	}
	status := httpStatus
	if status < http.StatusBadRequest {
		status = http.StatusBadGateway
	}
	return &ProviderError{
		Category: CategoryUpstream,
		Status:   status,
		Message:  fmt.Sprintf("Le fournisseur %s a renvoyé une erreur inattendue.", providerName),
		Detail:   strings.TrimSpace(message),
	}
}

func providerErrFromRule(rule classifyRule, vendorMessage string) *ProviderError {
	e := &ProviderError{Category: rule.category, Status: rule.status, Message: rule.message}
	if rule.category == CategoryInvalidRequest {
		e.Detail = strings.TrimSpace(vendorMessage)
	}
	return e
}
