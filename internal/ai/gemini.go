package ai

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"google.golang.org/genai"
)

type geminiConfig struct {
	APIKey         string `json:"api_key"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

type geminiProvider struct {
	apiKey     string
	httpClient *http.Client
}

func (p *geminiProvider) Name() string {
	return "gemini"
}

func (p *geminiProvider) client(ctx context.Context) (*genai.Client, error) {
	if p.apiKey == "" {
		return nil, NewConfigError("api key is required for provider gemini")
	}
	return genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     p.apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: p.httpClient,
	})
}

func (p *geminiProvider) Chat(ctx context.Context, req ChatRequest) (string, error) {
	client, err := p.client(ctx)
	if err != nil {
		return "", err
	}
	var system *genai.Content
	var contents []*genai.Content
	for _, msg := range req.Messages {
		switch msg.Role {
		case "system":
			system = &genai.Content{Parts: []*genai.Part{{Text: msg.Content}}}
		case "assistant":
			contents = append(contents, &genai.Content{
				Role:  "model",
				Parts: []*genai.Part{{Text: msg.Content}},
			})
		default:
			contents = append(contents, &genai.Content{
				Role:  "user",
				Parts: []*genai.Part{{Text: msg.Content}},
			})
		}
	}
	temp := float32(req.Temperature)
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: system,
		Temperature:       &temp,
	}
	resp, err := client.Models.GenerateContent(ctx, req.Model, contents, cfg)
	if err != nil {
		return "", classifyGeminiError(err)
	}
	return strings.TrimSpace(resp.Text()), nil
}

func (p *geminiProvider) Embed(ctx context.Context, model string, texts []string, inputType string) ([][]float32, error) {
	client, err := p.client(ctx)
	if err != nil {
		return nil, err
	}
	if len(texts) == 0 {
		return nil, nil
	}
	contents := make([]*genai.Content, 0, len(texts))
	for _, t := range texts {
		contents = append(contents, &genai.Content{Parts: []*genai.Part{{Text: t}}})
	}
	var cfg *genai.EmbedContentConfig
	if taskType := geminiTaskType(inputType); taskType != "" {
		cfg = &genai.EmbedContentConfig{TaskType: taskType}
	}
	resp, err := client.Models.EmbedContent(ctx, model, contents, cfg)
	if err != nil {
		return nil, classifyGeminiError(err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, ClassifyVendorError("gemini", 0, "", "", "embedding count mismatch")
	}
	// Gemini vectors are not unit length.
	vectors := make([][]float32, len(texts))
	for i, emb := range resp.Embeddings {
		vectors[i] = l2Normalize(emb.Values)
	}
	return vectors, nil
}

func geminiTaskType(inputType string) string {
	switch inputType {
	case InputTypeDocument:
		return "RETRIEVAL_DOCUMENT"
	case InputTypeQuery:
		return "RETRIEVAL_QUERY"
	default:
		return ""
	}
}

func classifyGeminiError(err error) *ProviderError {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return ClassifyVendorError("gemini", apiErr.Code, "", apiErr.Status, apiErr.Message)
	}
	return ClassifyVendorError("gemini", 0, "", "", err.Error())
}

func init() {
	Register("gemini", func(args interface{}) (IChatProvider, error) {
		return newGemini(args)
	})
	RegisterEmbed("gemini", func(args interface{}) (IEmbedProvider, error) {
		return newGemini(args)
	})
}

func newGemini(args interface{}) (*geminiProvider, error) {
	cfg := &geminiConfig{}
	if err := decodeConfig(args, cfg); err != nil {
		return nil, err
	}
	return &geminiProvider{
		apiKey:     strings.TrimSpace(cfg.APIKey),
		httpClient: newHTTPClient(cfg.TimeoutSeconds),
	}, nil
}
