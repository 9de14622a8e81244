package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"taskrunner/pkg/config"
	"taskrunner/pkg/monitor"
	"taskrunner/pkg/task"
	"taskrunner/pkg/taskerr"
	"taskrunner/pkg/utils"
	"time"
)

// ErrNoEngine is returned by Read when the gateway has no reader wired in.
var ErrNoEngine = errors.New("gateway: no task engine configured")

// GatewayManager owns the channels and routes every task and read they
// receive to the engine. It implements api.TaskContext.
type GatewayManager struct {
	channels    map[string]Channel
	engine      TaskEngine
	reader      FileReader
	monitor     monitor.Monitor
	taskTimeout atomic.Int64 // nanoseconds, 0 = none
	mu          sync.RWMutex
}

// NewGatewayManager creates an empty GatewayManager.
func NewGatewayManager() *GatewayManager {
	return &GatewayManager{
		channels: make(map[string]Channel),
	}
}

// WithSystemConfig applies the engine-level parameters. Safe to call again
// after a configuration reload.
func (g *GatewayManager) WithSystemConfig(cfg *config.SystemConfig) {
	if cfg == nil {
		return
	}
	g.SetTaskTimeout(time.Duration(cfg.TaskTimeoutMs) * time.Millisecond)
}

// SetTaskTimeout sets the deadline attached to each submitted task.
func (g *GatewayManager) SetTaskTimeout(d time.Duration) {
	if d < 0 {
		d = 0
	}
	g.taskTimeout.Store(int64(d))
}

// TaskTimeout returns the current per-task deadline.
func (g *GatewayManager) TaskTimeout() time.Duration {
	return time.Duration(g.taskTimeout.Load())
}

// SetEngine sets the dispatcher tasks are handed to.
func (g *GatewayManager) SetEngine(e TaskEngine) {
	g.engine = e
}

// SetReader sets the sandboxed file reader.
func (g *GatewayManager) SetReader(r FileReader) {
	g.reader = r
}

// SetMonitor sets the activity monitor.
func (g *GatewayManager) SetMonitor(m monitor.Monitor) {
	g.monitor = m
}

// Register adds a Channel. A later channel with the same ID replaces it.
func (g *GatewayManager) Register(c Channel) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.channels[c.ID()] = c
}

// GetChannel returns the channel registered under id.
func (g *GatewayManager) GetChannel(id string) (Channel, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	c, ok := g.channels[id]
	return c, ok
}

// StartAll starts every registered channel.
func (g *GatewayManager) StartAll() error {
	g.mu.RLock()
	defer g.mu.RUnlock()

	for id, c := range g.channels {
		slog.Info("Starting channel", "channel", id)
		if err := c.Start(g); err != nil {
			return fmt.Errorf("failed to start channel %s: %w", id, err)
		}
	}
	return nil
}

// StopAll stops every registered channel, logging failures.
func (g *GatewayManager) StopAll() {
	g.mu.RLock()
	defer g.mu.RUnlock()

	for id, c := range g.channels {
		slog.Info("Stopping channel", "channel", id)
		if err := c.Stop(); err != nil {
			slog.Error("Error stopping channel", "channel", id, "error", err)
		}
	}
	if g.monitor != nil {
		if err := g.monitor.Stop(); err != nil {
			slog.Error("Error stopping monitor", "error", err)
		}
	}
}

// Submit implements api.TaskContext. The request id is assigned here so the
// monitor line, the log lines and the envelope all carry the same one.
func (g *GatewayManager) Submit(ctx context.Context, session SessionContext, text string) task.Envelope {
	reqID := utils.RequestID(ctx)
	if reqID == "" {
		reqID = utils.GenerateID()
		ctx = utils.WithRequestID(ctx, reqID)
	}

	slog.InfoContext(ctx, "Task received", "channel", session.ChannelID, "user", session.Username, "task", text)
	g.report(monitor.Event{
		Type:      monitor.EventTask,
		ChannelID: session.ChannelID,
		Username:  session.Username,
		RequestID: reqID,
		Content:   text,
	})

	var env task.Envelope
	if g.engine == nil {
		env = task.Envelope{
			Status:    task.StatusError,
			Detail:    ErrNoEngine.Error(),
			Kind:      taskerr.KindHandlerExecution,
			RequestID: reqID,
		}
	} else {
		if d := g.TaskTimeout(); d > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, d)
			defer cancel()
		}
		env = g.engine.Dispatch(ctx, text)
	}

	content := env.Task
	if !env.OK() {
		content = fmt.Sprintf("%s %s: %s", env.Task, env.Kind, env.Detail)
	}
	g.report(monitor.Event{
		Type:      monitor.EventResult,
		ChannelID: session.ChannelID,
		Username:  session.Username,
		RequestID: env.RequestID,
		Status:    env.Status,
		Content:   content,
	})
	return env
}

// Read implements api.TaskContext.
func (g *GatewayManager) Read(ctx context.Context, session SessionContext, path string) ([]byte, error) {
	g.report(monitor.Event{
		Type:      monitor.EventRead,
		ChannelID: session.ChannelID,
		Username:  session.Username,
		Content:   path,
	})
	if g.reader == nil {
		return nil, ErrNoEngine
	}
	return g.reader.Read(ctx, path)
}

func (g *GatewayManager) report(ev monitor.Event) {
	if g.monitor == nil {
		return
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	g.monitor.OnEvent(ev)
}
