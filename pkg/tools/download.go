package tools

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"
)

// DefaultMaxDownloadBytes caps a single download.
const DefaultMaxDownloadBytes = 32 << 20

// HTTPDownloader implements Downloader over net/http.
type HTTPDownloader struct {
	client   *http.Client
	maxBytes int64
}

// NewHTTPDownloader creates a downloader whose requests time out after timeout.
func NewHTTPDownloader(timeout time.Duration) *HTTPDownloader {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	return &HTTPDownloader{
		client: &http.Client{
			Transport: transport,
			Timeout:   timeout,
		},
		maxBytes: DefaultMaxDownloadBytes,
	}
}

// NewHTTPDownloaderWithClient wraps an existing client, mainly for tests.
func NewHTTPDownloaderWithClient(client *http.Client) *HTTPDownloader {
	return &HTTPDownloader{client: client, maxBytes: DefaultMaxDownloadBytes}
}

// Fetch performs a GET and returns the body. Any non-2xx status is an error.
func (d *HTTPDownloader) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid download url: %w", err)
	}

	slog.InfoContext(ctx, "Downloading", "url", url)
	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("download failed: %s returned %s", url, resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, d.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read download body: %w", err)
	}
	if int64(len(data)) > d.maxBytes {
		return nil, fmt.Errorf("download exceeds %d bytes", d.maxBytes)
	}
	slog.DebugContext(ctx, "Download complete", "url", url, "bytes", len(data))
	return data, nil
}
