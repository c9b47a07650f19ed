package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
)

const defaultCohereBaseURL = "https://api.cohere.com"

type cohereConfig struct {
	APIKey         string `json:"api_key"`
	BaseURL        string `json:"base_url"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

type cohereProvider struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

type cohereChatRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type cohereChatResponse struct {
	Message struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	} `json:"message"`
}

type cohereEmbedRequest struct {
	Model          string   `json:"model"`
	Texts          []string `json:"texts"`
	InputType      string   `json:"input_type"`
	EmbeddingTypes []string `json:"embedding_types"`
}

type cohereEmbedResponse struct {
	Embeddings struct {
		Float [][]float32 `json:"float"`
	} `json:"embeddings"`
}

type cohereErrorBody struct {
	Message string `json:"message"`
}

func (p *cohereProvider) Name() string {
	return "cohere"
}

func (p *cohereProvider) Chat(ctx context.Context, req ChatRequest) (string, error) {
	if p.apiKey == "" {
		return "", NewConfigError("api key is required for provider cohere")
	}
	body := cohereChatRequest{Model: req.Model, Messages: req.Messages, Temperature: req.Temperature}
	var out cohereChatResponse
	if err := p.post(ctx, "/v2/chat", body, &out); err != nil {
		return "", err
	}
	var sb strings.Builder
	for _, part := range out.Message.Content {
		if part.Type == "text" {
			sb.WriteString(part.Text)
		}
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", ClassifyVendorError("cohere", 0, "", "", "response has no text content")
	}
	return text, nil
}

func (p *cohereProvider) Embed(ctx context.Context, model string, texts []string, inputType string) ([][]float32, error) {
	if p.apiKey == "" {
		return nil, NewConfigError("api key is required for provider cohere")
	}
	if len(texts) == 0 {
		return nil, nil
	}
	if inputType == "" {
		inputType = InputTypeDocument
	}
	body := cohereEmbedRequest{
		Model:          model,
		Texts:          texts,
		InputType:      inputType,
		EmbeddingTypes: []string{"float"},
	}
	var out cohereEmbedResponse
	if err := p.post(ctx, "/v2/embed", body, &out); err != nil {
		return nil, err
	}
	if len(out.Embeddings.Float) != len(texts) {
		return nil, ClassifyVendorError("cohere", 0, "", "", "embedding count mismatch")
	}
	vectors := make([][]float32, len(texts))
	for i, v := range out.Embeddings.Float {
		vectors[i] = l2Normalize(v)
	}
	return vectors, nil
}

func (p *cohereProvider) post(ctx context.Context, path string, payload interface{}, out interface{}) error {
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
		var errBody cohereErrorBody
		_ = json.Unmarshal(raw, &errBody)
		msg := errBody.Message
		if msg == "" {
			msg = strings.TrimSpace(string(raw))
		}
		return ClassifyVendorError("cohere", resp.StatusCode, "", "", msg)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func init() {
	Register("cohere", func(args interface{}) (IChatProvider, error) {
		return newCohere(args)
	})
	RegisterEmbed("cohere", func(args interface{}) (IEmbedProvider, error) {
		return newCohere(args)
	})
}

func newCohere(args interface{}) (*cohereProvider, error) {
	cfg := &cohereConfig{}
	if err := decodeConfig(args, cfg); err != nil {
		return nil, err
	}
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultCohereBaseURL
	}
	return &cohereProvider{
		apiKey:  strings.TrimSpace(cfg.APIKey),
		baseURL: baseURL,
		client:  newHTTPClient(cfg.TimeoutSeconds),
	}, nil
}
