package handler

import (
	"context"
	"taskrunner/pkg/config"
	"taskrunner/pkg/sandbox"
	"taskrunner/pkg/task"
	"taskrunner/pkg/taskerr"
	"taskrunner/pkg/tools"
)

const formatTarget = "format.md"

// Format rewrites format.md in place with the configured formatter.
type Format struct {
	sb     *sandbox.Sandbox
	runner tools.Runner
	cmd    []string
}

func NewFormat(sb *sandbox.Sandbox, runner tools.Runner, cfg config.FormatterConfig) *Format {
	return &Format{sb: sb, runner: runner, cmd: cfg.Command}
}

func (h *Format) Execute(ctx context.Context, req task.Request) (*task.Result, error) {
	path, info, err := h.sb.Stat(formatTarget)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, taskerr.NotFound("%s is a directory", formatTarget)
	}

	if _, err := run(ctx, h.runner, h.sb, h.cmd, path); err != nil {
		return nil, err
	}
	return &task.Result{
		Detail: formatTarget + " formatted",
		Output: formatTarget,
	}, nil
}
