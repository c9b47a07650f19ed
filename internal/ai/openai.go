package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
)

const (
	defaultOpenAIBaseURL  = "https://api.openai.com/v1"
	defaultMistralBaseURL = "https://api.mistral.ai/v1"
)

// openAICompatProvider speaks the OpenAI wire protocol. It backs the
// "openai" and "mistral" providers and the "compat" provider for any
// self-hosted OpenAI-compatible endpoint.
type openAICompatProvider struct {
	name    string
	apiKey  string
	baseURL string
	client  *http.Client
}

type openAICompatConfig struct {
	APIKey         string `json:"api_key"`
	BaseURL        string `json:"base_url"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

type openAIChatRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	Stream      bool          `json:"stream"`
}

type openAIChatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type openAIEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type openAIEmbedResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

type openAIErrorBody struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

func (p *openAICompatProvider) Name() string {
	return p.name
}

func (p *openAICompatProvider) Chat(ctx context.Context, req ChatRequest) (string, error) {
	if p.apiKey == "" {
		return "", NewConfigError("api key is required for provider " + p.name)
	}
	body := openAIChatRequest{
		Model:       req.Model,
		Messages:    req.Messages,
		Temperature: req.Temperature,
		Stream:      false,
	}
	var out openAIChatResponse
	if err := p.post(ctx, "/chat/completions", body, &out); err != nil {
		return "", err
	}
	if len(out.Choices) == 0 {
		return "", ClassifyVendorError(p.name, 0, "", "", "response has no choices")
	}
	return strings.TrimSpace(out.Choices[0].Message.Content), nil
}

func (p *openAICompatProvider) Embed(ctx context.Context, model string, texts []string, inputType string) ([][]float32, error) {
	if p.apiKey == "" {
		return nil, NewConfigError("api key is required for provider " + p.name)
	}
	if len(texts) == 0 {
		return nil, nil
	}
	body := openAIEmbedRequest{Model: model, Input: texts}
	var out openAIEmbedResponse
	if err := p.post(ctx, "/embeddings", body, &out); err != nil {
		return nil, err
	}
	if len(out.Data) != len(texts) {
		return nil, ClassifyVendorError(p.name, 0, "", "", "embedding count mismatch")
	}
	// OpenAI-compatible embeddings are already unit length; keep them as
	// returned but restore input order.
	vectors := make([][]float32, len(texts))
	for i, item := range out.Data {
		idx := item.Index
		if idx < 0 || idx >= len(vectors) {
			idx = i
		}
		vectors[idx] = item.Embedding
	}
	return vectors, nil
}

func (p *openAICompatProvider) post(ctx context.Context, path string, payload interface{}, out interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	endpoint := strings.TrimRight(p.baseURL, "/") + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Content-Type", "application/json")
	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		raw, _ := io.ReadAll(resp.Body)
		var errBody openAIErrorBody
		_ = json.Unmarshal(raw, &errBody)
		msg := errBody.Error.Message
		if msg == "" {
			msg = strings.TrimSpace(string(raw))
		}
		return ClassifyVendorError(p.name, resp.StatusCode, errBody.Error.Code, errBody.Error.Type, msg)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func newOpenAICompat(name, defaultBase string, requireBase bool) func(args interface{}) (*openAICompatProvider, error) {
	return func(args interface{}) (*openAICompatProvider, error) {
		cfg := &openAICompatConfig{}
		if err := decodeConfig(args, cfg); err != nil {
			return nil, err
		}
		baseURL := strings.TrimSpace(cfg.BaseURL)
		if baseURL == "" {
			if requireBase {
				return nil, NewConfigError("base_url is required for provider " + name)
			}
			baseURL = defaultBase
		}
		return &openAICompatProvider{
			name:    name,
			apiKey:  strings.TrimSpace(cfg.APIKey),
			baseURL: baseURL,
			client:  newHTTPClient(cfg.TimeoutSeconds),
		}, nil
	}
}

func init() {
	for _, entry := range []struct {
		name        string
		defaultBase string
		requireBase bool
	}{
		{"openai", defaultOpenAIBaseURL, false},
		{"mistral", defaultMistralBaseURL, false},
		{"compat", "", true},
	} {
		build := newOpenAICompat(entry.name, entry.defaultBase, entry.requireBase)
		Register(entry.name, func(args interface{}) (IChatProvider, error) {
			return build(args)
		})
		RegisterEmbed(entry.name, func(args interface{}) (IEmbedProvider, error) {
			return build(args)
		})
	}
}
