package api

import (
	"context"
	"taskrunner/pkg/task"
)

// Channel defines the lifecycle of a transport that accepts tasks.
type Channel interface {
	ID() string
	// Start begins accepting tasks and returns once the channel is serving.
	Start(ctx TaskContext) error
	Stop() error
}

// TaskContext is what a Channel may call back into.
type TaskContext interface {
	// Submit dispatches one task and returns its envelope. It never fails;
	// every outcome is an envelope.
	Submit(ctx context.Context, session SessionContext, text string) task.Envelope
	// Read returns the content of a file under the sandbox root.
	Read(ctx context.Context, session SessionContext, path string) ([]byte, error)
}

// SessionContext identifies who submitted a task, and over which channel.
type SessionContext struct {
	ChannelID string // e.g. "web", "telegram"
	UserID    string // platform user id or remote address
	ChatID    string // chat to reply into, if the platform has one
	Username  string // display name, for logs only
}
