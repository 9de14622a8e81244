package task

import (
	"context"
	"log/slog"
	"taskrunner/pkg/sandbox"
)

// Reader serves read-only access to files under the sandbox root.
type Reader struct {
	sandbox *sandbox.Sandbox
}

// NewReader creates a Reader over sb.
func NewReader(sb *sandbox.Sandbox) *Reader {
	return &Reader{sandbox: sb}
}

// Read returns the raw content at path. Errors are PathViolation for paths
// outside the sandbox and NotFound for missing files.
func (r *Reader) Read(ctx context.Context, path string) ([]byte, error) {
	data, err := r.sandbox.ReadFile(path)
	if err != nil {
		slog.DebugContext(ctx, "Read rejected", "path", path, "error", err)
		return nil, err
	}
	slog.DebugContext(ctx, "Read file", "path", path, "bytes", len(data))
	return data, nil
}
