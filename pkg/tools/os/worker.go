package os

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"taskrunner/pkg/tools"
	"time"
)

// Worker implements tools.Runner with os/exec. Commands always run with an
// explicit working directory and never through a shell.
type Worker struct {
	defaultDir string
}

// NewOSWorker creates a runner whose commands default to dir.
func NewOSWorker(dir string) *Worker {
	return &Worker{defaultDir: dir}
}

func (w *Worker) Run(ctx context.Context, c tools.Command) (*tools.CommandResult, error) {
	if c.Name == "" {
		return nil, fmt.Errorf("empty command")
	}
	dir := c.Dir
	if dir == "" {
		dir = w.defaultDir
	}

	path, err := exec.LookPath(c.Name)
	if err != nil {
		return nil, fmt.Errorf("command %q not found: %w", c.Name, err)
	}

	cmd := exec.CommandContext(ctx, path, c.Args...)
	cmd.Dir = dir
	configureProcess(cmd)

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	slog.InfoContext(ctx, "Executing command", "dir", dir, "command", c.String())
	start := time.Now()
	err = cmd.Run()
	result := &tools.CommandResult{Output: out.String()}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			slog.WarnContext(ctx, "Command failed", "command", c.Name, "exit_code", result.ExitCode, "duration", time.Since(start))
			return result, &tools.ExitError{Command: c.String(), ExitCode: result.ExitCode, Output: result.Output}
		}
		return result, fmt.Errorf("failed to run %q: %w", c.Name, err)
	}

	slog.DebugContext(ctx, "Command finished", "command", c.Name, "duration", time.Since(start))
	return result, nil
}
