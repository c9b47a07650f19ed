package ai

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClassifyVendorError(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		code     string
		typ      string
		message  string
		category ErrorCategory
		want     int
	}{
		{"http 401", http.StatusUnauthorized, "", "", "whatever", CategoryAuthInvalid, 401},
		{"invalid key message", 400, "", "", "Incorrect API key provided", CategoryAuthInvalid, 401},
		{"insufficient quota", 429, "insufficient_quota", "", "You exceeded your current quota", CategoryQuotaExceeded, 402},
		{"billing keyword", 403, "", "", "billing hard limit reached", CategoryQuotaExceeded, 402},
		{"rate limited status", http.StatusTooManyRequests, "", "", "slow down", CategoryRateLimited, 429},
		{"rate limited message", 400, "rate_limit_exceeded", "", "Rate limit reached", CategoryRateLimited, 429},
		{"model not found", 404, "model_not_found", "", "The model `gpt-x` does not exist", CategoryModelNotFound, 400},
		{"context too long", 400, "context_length_exceeded", "", "maximum context length exceeded", CategoryContextTooLong, 400},
		{"invalid request", 422, "", "invalid_request_error", "missing field", CategoryInvalidRequest, 400},
		{"unknown keeps vendor status", 503, "", "", "upstream exploded", CategoryUpstream, 503},
		{"unknown without status", 0, "", "", "connection reset", CategoryUpstream, 502},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyVendorError("openai", tt.status, tt.code, tt.typ, tt.message)
			require.Equal(t, tt.category, got.Category)
			require.Equal(t, tt.want, got.Status)
		})
	}
}

func TestClassifyPrecedenceAuthBeforeQuota(t *testing.T) {
	// A 401 whose body also mentions quota must still map to auth.
	got := ClassifyVendorError("openai", http.StatusUnauthorized, "", "", "quota check failed: unauthorized")
	require.Equal(t, CategoryAuthInvalid, got.Category)
}

func TestClassifyQuotaMessageMentionsBilling(t *testing.T) {
	got := ClassifyVendorError("openai", 400, "insufficient_quota", "", "insufficient_quota")
	require.Equal(t, http.StatusPaymentRequired, got.Status)
	require.Contains(t, got.Message, "facturation")
}

func TestClassifyInvalidRequestCarriesDetail(t *testing.T) {
	got := ClassifyVendorError("mistral", 400, "", "invalid_request_error", "field `input` is required")
	require.Equal(t, CategoryInvalidRequest, got.Category)
	require.Equal(t, "field `input` is required", got.Detail)
}

func TestClassifyUpstreamKeepsOnlyDetailString(t *testing.T) {
	got := ClassifyVendorError("openai", 500, "", "", "panic: stack trace ...")
	require.Equal(t, CategoryUpstream, got.Category)
	require.Equal(t, 500, got.Status)
	require.Contains(t, got.Detail, "panic")
	require.NotContains(t, got.Message, "panic")
}
