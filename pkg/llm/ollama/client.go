package ollama

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"taskrunner/pkg/llm"
	"taskrunner/pkg/tools"
	"time"

	"github.com/ollama/ollama/api"
)

// DefaultEmbeddingModel is used when a group sets no embedding_model.
const DefaultEmbeddingModel = "nomic-embed-text"

// OllamaClient Ollama API client
type OllamaClient struct {
	client         *api.Client
	model          string
	embeddingModel string
	options        map[string]any
}

// NewOllamaClient creates an Ollama client
func NewOllamaClient(model, embeddingModel, baseURL string, options map[string]any) (*OllamaClient, error) {
	var client *api.Client
	var err error

	// Per-call deadlines come from the caller's context
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	customClient := &http.Client{
		Transport: &JSONFixingRoundTripper{Proxied: transport},
	}

	if baseURL != "" {
		u, perr := url.Parse(baseURL)
		if perr != nil {
			return nil, fmt.Errorf("invalid base URL: %w", perr)
		}
		client = api.NewClient(u, customClient)
	} else {
		client, err = api.ClientFromEnvironment()
	}
	if err != nil {
		return nil, err
	}
	if embeddingModel == "" {
		embeddingModel = DefaultEmbeddingModel
	}

	slog.Info("Ollama client initialized", "model", model, "base_url", baseURL)

	return &OllamaClient{
		client:         client,
		model:          model,
		embeddingModel: embeddingModel,
		options:        options,
	}, nil
}

func (o *OllamaClient) Provider() string {
	return "ollama"
}

// DescribeImage runs a single non-streaming chat turn with the image attached
// to the user message.
func (o *OllamaClient) DescribeImage(ctx context.Context, instruction string, img llm.Image) (string, error) {
	data, err := tools.Base64Decode(img.Base64)
	if err != nil {
		return "", fmt.Errorf("invalid image encoding: %w", err)
	}

	stream := false
	req := &api.ChatRequest{
		Model: o.model,
		Messages: []api.Message{
			{Role: llm.RoleSystem, Content: instruction},
			{Role: llm.RoleUser, Images: []api.ImageData{data}},
		},
		Options: o.options,
		Stream:  &stream,
	}

	var sb strings.Builder
	slog.DebugContext(ctx, "Sending image to model", "provider", "ollama", "model", o.model, "mime", img.MimeType)
	err = o.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		sb.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("ollama chat failed: %w", err)
	}
	return sb.String(), nil
}

// Embed sends the whole batch to /api/embed.
func (o *OllamaClient) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	resp, err := o.client.Embed(ctx, &api.EmbedRequest{
		Model: o.embeddingModel,
		Input: texts,
	})
	if err != nil {
		return nil, fmt.Errorf("ollama embed failed: %w", err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("ollama returned %d embeddings for %d inputs", len(resp.Embeddings), len(texts))
	}

	out := make([][]float64, len(resp.Embeddings))
	for i, e := range resp.Embeddings {
		v := make([]float64, len(e))
		for j, f := range e {
			v[j] = float64(f)
		}
		out[i] = v
	}
	return out, nil
}

// IsTransientError implements the llm.LLMClient interface
func (o *OllamaClient) IsTransientError(err error) bool {
	if err == nil {
		return false
	}
	errMsg := err.Error()

	if strings.Contains(errMsg, "connection refused") || strings.Contains(errMsg, "connection reset") {
		return true
	}
	if strings.Contains(strings.ToLower(errMsg), "overloaded") {
		return true
	}
	return false
}

// JSONFixingRoundTripper strips illegal escapes (e.g. \$) some models emit
// before the SDK decodes the body.
type JSONFixingRoundTripper struct {
	Proxied http.RoundTripper
}

func (j *JSONFixingRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := j.Proxied.RoundTrip(req)
	if err != nil {
		return resp, err
	}

	ct := resp.Header.Get("Content-Type")
	if strings.Contains(ct, "application/json") || strings.Contains(ct, "application/x-ndjson") {
		resp.Body = newJSONFixingReadCloser(resp.Body)
	}
	return resp, nil
}

// jsonFixingReadCloser rewrites the body one line at a time. Responses are
// single JSON documents or NDJSON, so an escape never spans two lines.
type jsonFixingReadCloser struct {
	body io.ReadCloser
	r    *bufio.Reader
	buf  []byte
	err  error
}

func newJSONFixingReadCloser(body io.ReadCloser) *jsonFixingReadCloser {
	return &jsonFixingReadCloser{body: body, r: bufio.NewReader(body)}
}

func (j *jsonFixingReadCloser) Read(p []byte) (int, error) {
	for len(j.buf) == 0 {
		if j.err != nil {
			return 0, j.err
		}
		line, err := j.r.ReadBytes('\n')
		j.buf = fixEscapes(line)
		j.err = err
	}
	n := copy(p, j.buf)
	j.buf = j.buf[n:]
	return n, nil
}

// fixEscapes drops the backslash of every escape JSON does not define
// (e.g. \$). Valid escapes, including an escaped backslash, pass through.
func fixEscapes(b []byte) []byte {
	if bytes.IndexByte(b, '\\') < 0 {
		return b
	}
	out := make([]byte, 0, len(b))
	for i := 0; i < len(b); i++ {
		c := b[i]
		if c != '\\' || i+1 == len(b) {
			out = append(out, c)
			continue
		}
		next := b[i+1]
		if strings.IndexByte(`"\/bfnrtu`, next) >= 0 {
			out = append(out, c, next)
		} else {
			out = append(out, next)
		}
		i++
	}
	return out
}

func (j *jsonFixingReadCloser) Close() error {
	return j.body.Close()
}
