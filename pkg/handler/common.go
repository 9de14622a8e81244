package handler

import (
	"context"
	"errors"
	"log/slog"
	"taskrunner/pkg/llm"
	"taskrunner/pkg/sandbox"
	"taskrunner/pkg/taskerr"
	"taskrunner/pkg/tools"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// run executes argv with extra arguments appended, in the sandbox root.
// A failed start or non-zero exit becomes HandlerExecutionError.
func run(ctx context.Context, runner tools.Runner, sb *sandbox.Sandbox, argv []string, extra ...string) (*tools.CommandResult, error) {
	if len(argv) == 0 {
		return nil, taskerr.Execution("empty command")
	}
	args := make([]string, 0, len(argv)-1+len(extra))
	args = append(args, argv[1:]...)
	args = append(args, extra...)

	cmd := tools.Command{Name: argv[0], Args: args, Dir: sb.Root()}
	slog.InfoContext(ctx, "Running command", "cmd", cmd.String())

	res, err := runner.Run(ctx, cmd)
	if err != nil {
		var exitErr *tools.ExitError
		if errors.As(err, &exitErr) {
			return res, taskerr.Wrap(taskerr.KindHandlerExecution, err, "%s failed with exit status %d", argv[0], exitErr.ExitCode)
		}
		return res, taskerr.Wrap(taskerr.KindHandlerExecution, err, "cannot run %s", argv[0])
	}
	return res, nil
}

// requireModel fails when no inference provider is configured.
func requireModel(m llm.LLMClient) error {
	if m == nil {
		return taskerr.Wrap(taskerr.KindHandlerExecution, llm.ErrNotConfigured, "this task needs an inference provider")
	}
	return nil
}

// modelError classifies an inference failure. Context cancellation is kept
// as the cause so callers can see a deadline was hit.
func modelError(err error, what string) error {
	if err == nil {
		return nil
	}
	return taskerr.Wrap(taskerr.KindHandlerExecution, err, "%s failed", what)
}
