package api

import (
	"context"
	"taskrunner/pkg/task"
)

// TaskEngine runs a task to completion. *task.Dispatcher implements it.
type TaskEngine interface {
	Dispatch(ctx context.Context, text string) task.Envelope
}

// FileReader serves sandboxed reads. *task.Reader implements it.
type FileReader interface {
	Read(ctx context.Context, path string) ([]byte, error)
}

var (
	_ TaskEngine = (*task.Dispatcher)(nil)
	_ FileReader = (*task.Reader)(nil)
)
