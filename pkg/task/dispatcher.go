package task

import (
	"context"
	"fmt"
	"log/slog"
	"taskrunner/pkg/taskerr"
	"taskrunner/pkg/utils"
	"time"
)

// Dispatcher runs exactly one handler per task. It adds no retries and no
// deadline of its own; callers attach a deadline to ctx when they need one.
type Dispatcher struct {
	registry *Registry
}

// NewDispatcher binds a dispatcher to a fully populated registry.
func NewDispatcher(registry *Registry) *Dispatcher {
	return &Dispatcher{registry: registry}
}

// Registry exposes the routing table, mainly for diagnostics.
func (d *Dispatcher) Registry() *Registry {
	return d.registry
}

// Dispatch matches text against the registry, runs the selected handler and
// converts its outcome into an Envelope. Handler panics are recovered and
// reported as handler execution errors.
func (d *Dispatcher) Dispatch(ctx context.Context, text string) Envelope {
	reqID := utils.RequestID(ctx)
	if reqID == "" {
		reqID = utils.GenerateID()
		ctx = utils.WithRequestID(ctx, reqID)
	}
	req := NewRequest(reqID, text)

	desc, ok := d.registry.Lookup(text)
	if !ok {
		slog.InfoContext(ctx, "No handler matched task", "task", text)
		return errorEnvelope(reqID, "", taskerr.UnrecognizedTask("unknown or unsupported task format"))
	}

	slog.InfoContext(ctx, "Dispatching task", "handler", desc.ID, "label", desc.Label)
	start := time.Now()

	res, err := d.invoke(ctx, desc, req)
	elapsed := time.Since(start)

	if err != nil {
		env := errorEnvelope(reqID, desc.Label, err)
		slog.ErrorContext(ctx, "Task failed",
			"handler", desc.ID, "kind", env.Kind, "duration", elapsed, "error", err)
		return env
	}

	env := successEnvelope(reqID, desc.Label, res)
	slog.InfoContext(ctx, "Task completed",
		"handler", desc.ID, "duration", elapsed, "output", env.Output)
	return env
}

func (d *Dispatcher) invoke(ctx context.Context, desc Descriptor, req Request) (res *Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "Handler panicked", "handler", desc.ID, "panic", r)
			res = nil
			err = taskerr.Execution("handler %s failed unexpectedly: %v", desc.ID, r)
		}
	}()

	res, err = desc.Handler.Execute(ctx, req)
	if err == nil && res == nil {
		err = fmt.Errorf("handler %s returned no result", desc.ID)
	}
	return res, err
}
