package gemini

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"taskrunner/pkg/llm"
	"taskrunner/pkg/tools"

	"google.golang.org/genai"
)

// DefaultEmbeddingModel is used when a group sets no embedding_model.
const DefaultEmbeddingModel = "text-embedding-004"

// GeminiClient Google Gemini API client
type GeminiClient struct {
	client         *genai.Client
	model          string
	embeddingModel string
	options        map[string]any
}

// NewGeminiClient creates a Gemini client with a single model and API key
func NewGeminiClient(apiKey, model, embeddingModel string, options map[string]any) (*GeminiClient, error) {
	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	if embeddingModel == "" {
		embeddingModel = DefaultEmbeddingModel
	}

	return &GeminiClient{
		client:         client,
		model:          model,
		embeddingModel: embeddingModel,
		options:        options,
	}, nil
}

func (g *GeminiClient) Provider() string {
	return "gemini"
}

func (g *GeminiClient) IsTransientError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "503") ||
		strings.Contains(msg, "429") ||
		strings.Contains(msg, "resource_exhausted") ||
		strings.Contains(msg, "unavailable") ||
		strings.Contains(msg, "deadline exceeded")
}

// DescribeImage sends the image inline with the instruction as system text.
func (g *GeminiClient) DescribeImage(ctx context.Context, instruction string, img llm.Image) (string, error) {
	data, err := tools.Base64Decode(img.Base64)
	if err != nil {
		return "", fmt.Errorf("invalid image encoding: %w", err)
	}

	contents := []*genai.Content{
		{
			Role: llm.RoleUser,
			Parts: []*genai.Part{
				{InlineData: &genai.Blob{MIMEType: img.MimeType, Data: data}},
			},
		},
	}
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: instruction}},
		},
	}
	if t, ok := g.options[llm.OptionTemperature].(float64); ok {
		temp := float32(t)
		cfg.Temperature = &temp
	}
	if maxTok, ok := g.options[llm.OptionMaxTokens].(float64); ok {
		cfg.MaxOutputTokens = int32(maxTok)
	}

	slog.DebugContext(ctx, "Sending image to model", "provider", "gemini", "model", g.model, "mime", img.MimeType)
	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, cfg)
	if err != nil {
		return "", fmt.Errorf("gemini generate content failed: %w", err)
	}
	return resp.Text(), nil
}

// Embed requests one embedding per text in a single batch call.
func (g *GeminiClient) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	contents := make([]*genai.Content, 0, len(texts))
	for _, t := range texts {
		contents = append(contents, &genai.Content{
			Role:  llm.RoleUser,
			Parts: []*genai.Part{{Text: t}},
		})
	}

	resp, err := g.client.Models.EmbedContent(ctx, g.embeddingModel, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("gemini embed content failed: %w", err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("gemini returned %d embeddings for %d inputs", len(resp.Embeddings), len(texts))
	}

	out := make([][]float64, len(texts))
	for i, e := range resp.Embeddings {
		out[i] = toFloat64(e.Values)
	}
	return out, nil
}

func toFloat64(in []float32) []float64 {
	out := make([]float64, len(in))
	for i, v := range in {
		out[i] = float64(v)
	}
	return out
}
