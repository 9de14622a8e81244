package openailm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"taskrunner/pkg/llm"
	"taskrunner/pkg/tools"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/packages/param"
	"github.com/openai/openai-go/v3/responses"
)

// DefaultEmbeddingModel is used when a group sets no embedding_model.
const DefaultEmbeddingModel = "text-embedding-3-small"

// Client is a wrapper around the official OpenAI Go SDK
type Client struct {
	client         *openai.Client
	provider       string
	model          string
	embeddingModel string
	options        map[string]any
}

// NewClient creates a new OpenAI client
func NewClient(provider, apiKey, model, embeddingModel, baseURL string, options map[string]any) (*Client, error) {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if embeddingModel == "" {
		embeddingModel = DefaultEmbeddingModel
	}

	client := openai.NewClient(opts...)

	return &Client{
		client:         &client,
		provider:       provider,
		model:          model,
		embeddingModel: embeddingModel,
		options:        options,
	}, nil
}

func (c *Client) Provider() string {
	return c.provider
}

func (c *Client) IsTransientError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())

	// Transient: network-level issues
	if strings.Contains(msg, "context deadline exceeded") ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "timeout") {
		return true
	}

	// Transient: server-side temporary failures
	if strings.Contains(msg, "429") ||
		strings.Contains(msg, "500 internal") ||
		strings.Contains(msg, "502 bad gateway") ||
		strings.Contains(msg, "503 service unavailable") ||
		strings.Contains(msg, "overloaded") {
		return true
	}

	return false
}

// DescribeImage sends the instruction as a system message and the image as a
// data URL through the Responses API.
func (c *Client) DescribeImage(ctx context.Context, instruction string, img llm.Image) (string, error) {
	imageURL := tools.DataURL(img.MimeType, img.Base64)

	items := []responses.ResponseInputItemUnionParam{
		responses.ResponseInputItemParamOfMessage(
			instruction,
			responses.EasyInputMessageRoleSystem,
		),
		responses.ResponseInputItemParamOfMessage(
			responses.ResponseInputMessageContentListParam{
				{
					OfInputImage: &responses.ResponseInputImageParam{
						Detail:   responses.ResponseInputImageDetailAuto,
						ImageURL: param.NewOpt(imageURL),
					},
				},
			},
			responses.EasyInputMessageRoleUser,
		),
	}

	params := responses.ResponseNewParams{
		Model: c.model,
		Input: responses.ResponseNewParamsInputUnion{
			OfInputItemList: items,
		},
	}

	opts := []option.RequestOption{}
	if t, ok := c.options[llm.OptionTemperature].(float64); ok {
		opts = append(opts, option.WithJSONSet("temperature", t))
	}
	if maxTok, ok := c.options[llm.OptionMaxTokens].(float64); ok {
		opts = append(opts, option.WithJSONSet("max_output_tokens", int(maxTok)))
	}

	slog.DebugContext(ctx, "Sending image to model", "provider", c.provider, "model", c.model, "mime", img.MimeType)
	resp, err := c.client.Responses.New(ctx, params, opts...)
	if err != nil {
		return "", fmt.Errorf("openai responses request failed: %w", err)
	}
	return resp.OutputText(), nil
}

// Embed calls the embeddings endpoint once for the whole batch.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	resp, err := c.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(c.embeddingModel),
		Input: openai.EmbeddingNewParamsInputUnion{
			OfArrayOfStrings: texts,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("openai embeddings request failed: %w", err)
	}

	out := make([][]float64, len(texts))
	for _, d := range resp.Data {
		idx := int(d.Index)
		if idx < 0 || idx >= len(out) {
			return nil, fmt.Errorf("openai embeddings returned out-of-range index %d", idx)
		}
		out[idx] = d.Embedding
	}
	for i, v := range out {
		if len(v) == 0 {
			return nil, fmt.Errorf("openai embeddings missing vector for input %d", i)
		}
	}
	return out, nil
}
