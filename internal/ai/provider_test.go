package ai

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestL2Normalize(t *testing.T) {
	v := l2Normalize([]float32{3, 4})
	require.InDelta(t, 0.6, v[0], 1e-6)
	require.InDelta(t, 0.8, v[1], 1e-6)

	var sum float64
	for _, x := range l2Normalize([]float32{1, 2, 3, 4}) {
		sum += float64(x) * float64(x)
	}
	require.InDelta(t, 1.0, math.Sqrt(sum), 1e-6)

	// Zero vector stays untouched.
	z := l2Normalize([]float32{0, 0})
	require.Equal(t, []float32{0, 0}, z)
}

func TestNewChatProviderUnknown(t *testing.T) {
	_, err := NewChatProvider("does-not-exist", map[string]interface{}{})
	require.Error(t, err)
	var pErr *ProviderError
	require.ErrorAs(t, err, &pErr)
	require.Equal(t, CategoryConfig, pErr.Category)
}

func TestCompatProviderRequiresBaseURL(t *testing.T) {
	_, err := NewChatProvider("compat", map[string]interface{}{"api_key": "k"})
	require.Error(t, err)
	var pErr *ProviderError
	require.ErrorAs(t, err, &pErr)
	require.Equal(t, CategoryConfig, pErr.Category)
	require.Contains(t, pErr.Message, "base_url")
}

func TestProviderHonorsConfiguredTimeout(t *testing.T) {
	p, err := NewChatProvider("openai", map[string]interface{}{"api_key": "k", "timeout_seconds": 7})
	require.NoError(t, err)
	require.Equal(t, 7*time.Second, p.(*openAICompatProvider).client.Timeout)

	c, err := NewChatProvider("cohere", map[string]interface{}{"api_key": "k", "timeout_seconds": 7})
	require.NoError(t, err)
	require.Equal(t, 7*time.Second, c.(*cohereProvider).client.Timeout)

	g, err := NewChatProvider("gemini", map[string]interface{}{"api_key": "k", "timeout_seconds": 7})
	require.NoError(t, err)
	require.Equal(t, 7*time.Second, g.(*geminiProvider).httpClient.Timeout)

	// Missing or zero falls back to the server default.
	d, err := NewChatProvider("openai", map[string]interface{}{"api_key": "k"})
	require.NoError(t, err)
	require.Equal(t, time.Duration(defaultTimeoutSeconds)*time.Second, d.(*openAICompatProvider).client.Timeout)
}

func TestKnownProvidersRegistered(t *testing.T) {
	for _, name := range []string{"openai", "mistral", "gemini", "cohere"} {
		p, err := NewChatProvider(name, map[string]interface{}{"api_key": "k"})
		require.NoError(t, err, name)
		require.Equal(t, name, p.Name())
		e, err := NewEmbedProvider(name, map[string]interface{}{"api_key": "k"})
		require.NoError(t, err, name)
		require.Equal(t, name, e.Name())
	}
}
