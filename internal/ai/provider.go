package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"
)

const defaultTimeoutSeconds = 60

// ChatMessage is one turn of a chat exchange, provider-agnostic.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatRequest struct {
	Model       string
	Messages    []ChatMessage
	Temperature float64
}

// IChatProvider and IEmbedProvider hide the vendor wire protocol behind a
// uniform shape; the retrieval and synthesis layers never branch on vendor
// identity.
type IChatProvider interface {
	Name() string
	Chat(ctx context.Context, req ChatRequest) (string, error)
}

type IEmbedProvider interface {
	Name() string
	// Embed returns one vector per input text, in input order. inputType
	// distinguishes document vs query embeddings for vendors that care.
	Embed(ctx context.Context, model string, texts []string, inputType string) ([][]float32, error)
}

const (
	InputTypeDocument = "search_document"
	InputTypeQuery    = "search_query"
)

type ChatFactory func(args interface{}) (IChatProvider, error)
type EmbedFactory func(args interface{}) (IEmbedProvider, error)

var (
	chatRegistry  = map[string]ChatFactory{}
	embedRegistry = map[string]EmbedFactory{}
)

func Register(name string, factory ChatFactory) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" || factory == nil {
		return
	}
	chatRegistry[key] = factory
}

func RegisterEmbed(name string, factory EmbedFactory) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" || factory == nil {
		return
	}
	embedRegistry[key] = factory
}

func NewChatProvider(name string, args interface{}) (IChatProvider, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return nil, NewConfigError("ai provider is required")
	}
	factory := chatRegistry[key]
	if factory == nil {
		return nil, NewConfigError(fmt.Sprintf("unsupported ai provider: %s", name))
	}
	return factory(args)
}

func NewEmbedProvider(name string, args interface{}) (IEmbedProvider, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return nil, NewConfigError("ai provider is required")
	}
	factory := embedRegistry[key]
	if factory == nil {
		return nil, NewConfigError(fmt.Sprintf("unsupported embedding provider: %s", name))
	}
	return factory(args)
}

// newHTTPClient builds the vendor HTTP client with the configured request
// timeout. Zero falls back to the server default so a provider never runs
// without a deadline.
func newHTTPClient(timeoutSeconds int) *http.Client {
	if timeoutSeconds <= 0 {
		timeoutSeconds = defaultTimeoutSeconds
	}
	return &http.Client{Timeout: time.Duration(timeoutSeconds) * time.Second}
}

func decodeConfig(args interface{}, dst interface{}) error {
	if args == nil {
		return NewConfigError("ai provider config is required")
	}
	data, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encode ai provider config: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode ai provider config: %w", err)
	}
	return nil
}

// l2Normalize scales a vector to unit length in place. Vendors that already
// return unit vectors are passed through by their provider.
func l2Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	norm := math.Sqrt(sum)
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}
	return v
}
