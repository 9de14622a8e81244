package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	jsoniter "github.com/json-iterator/go"
)

// json is used for all JSON handling inside package llm.
var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrNotConfigured is returned when a task needs an inference provider but
// none was configured.
var ErrNotConfigured = errors.New("no inference provider configured")

// Image is a binary asset already encoded for transmission.
type Image struct {
	MimeType string // e.g. "image/png"
	Base64   string // standard encoding, no data: prefix
}

// LLMClient is the narrow inference interface used by task handlers.
type LLMClient interface {
	// Provider names the backend, e.g. "openai".
	Provider() string

	// DescribeImage sends a fixed instruction together with one image and
	// returns the model's text answer.
	DescribeImage(ctx context.Context, instruction string, img Image) (string, error)

	// Embed returns one vector per input text, in input order.
	Embed(ctx context.Context, texts []string) ([][]float64, error)

	// IsTransientError reports whether err is worth retrying (503, rate limit).
	IsTransientError(err error) bool
}

// FallbackClient tries several clients in order. Each call is bounded by
// Timeout when it is positive.
type FallbackClient struct {
	Clients    []LLMClient
	MaxRetries int
	RetryDelay time.Duration
	Timeout    time.Duration
}

func (f *FallbackClient) Provider() string {
	return "fallback"
}

func (f *FallbackClient) DescribeImage(ctx context.Context, instruction string, img Image) (string, error) {
	var out string
	err := f.try(ctx, "describe_image", func(ctx context.Context, c LLMClient) error {
		text, err := c.DescribeImage(ctx, instruction, img)
		if err != nil {
			return err
		}
		out = text
		return nil
	})
	return out, err
}

func (f *FallbackClient) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	var out [][]float64
	err := f.try(ctx, "embed", func(ctx context.Context, c LLMClient) error {
		vecs, err := c.Embed(ctx, texts)
		if err != nil {
			return err
		}
		out = vecs
		return nil
	})
	return out, err
}

// IsTransientError implements LLMClient. A FallbackClient error means every
// child already failed, so it is never transient.
func (f *FallbackClient) IsTransientError(err error) bool {
	return false
}

func (f *FallbackClient) try(ctx context.Context, op string, call func(context.Context, LLMClient) error) error {
	if len(f.Clients) == 0 {
		return ErrNotConfigured
	}

	maxRetries := f.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 1
	}

	var lastErr error
	for i, client := range f.Clients {
		if i > 0 {
			slog.WarnContext(ctx, "Previous provider failed, trying fallback", "op", op, "provider", client.Provider(), "index", i+1)
		}

		for attempt := 1; attempt <= maxRetries; attempt++ {
			if attempt > 1 {
				slog.InfoContext(ctx, "Retrying provider", "op", op, "provider", client.Provider(), "attempt", attempt, "max", maxRetries)
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(time.Duration(attempt-1) * f.RetryDelay):
				}
			}

			err := f.callWithTimeout(ctx, client, call)
			if err == nil {
				return nil
			}
			lastErr = err

			if client.IsTransientError(err) && attempt < maxRetries {
				slog.WarnContext(ctx, "Provider failed with transient error", "provider", client.Provider(), "error", err)
				continue
			}
			slog.ErrorContext(ctx, "Provider failed", "op", op, "provider", client.Provider(), "error", err)
			break
		}
	}
	if len(f.Clients) == 1 {
		return lastErr
	}
	return fmt.Errorf("all fallback providers failed, last error: %w", lastErr)
}

func (f *FallbackClient) callWithTimeout(ctx context.Context, client LLMClient, call func(context.Context, LLMClient) error) error {
	if f.Timeout <= 0 {
		return call(ctx, client)
	}
	ctx, cancel := context.WithTimeout(ctx, f.Timeout)
	defer cancel()
	return call(ctx, client)
}
