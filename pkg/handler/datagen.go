package handler

import (
	"context"
	"log/slog"
	"regexp"
	"taskrunner/pkg/config"
	"taskrunner/pkg/sandbox"
	"taskrunner/pkg/task"
	"taskrunner/pkg/taskerr"
	"taskrunner/pkg/tools"
)

const datagenScript = "datagen.py"

var emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)

// Datagen installs the runner, downloads the generator script into the
// sandbox and runs it with the email found in the task text.
type Datagen struct {
	sb     *sandbox.Sandbox
	runner tools.Runner
	dl     tools.Downloader
	cfg    config.DatagenConfig
}

func NewDatagen(sb *sandbox.Sandbox, runner tools.Runner, dl tools.Downloader, cfg config.DatagenConfig) *Datagen {
	return &Datagen{sb: sb, runner: runner, dl: dl, cfg: cfg}
}

func (h *Datagen) Execute(ctx context.Context, req task.Request) (*task.Result, error) {
	email := emailPattern.FindString(req.Text)
	if email == "" {
		return nil, taskerr.MissingParameter("no email address found in task description")
	}

	if len(h.cfg.InstallCommand) > 0 {
		if _, err := run(ctx, h.runner, h.sb, h.cfg.InstallCommand); err != nil {
			return nil, err
		}
	}

	script, err := h.dl.Fetch(ctx, h.cfg.ScriptURL)
	if err != nil {
		return nil, taskerr.Wrap(taskerr.KindHandlerExecution, err, "failed to download %s", datagenScript)
	}
	scriptPath, err := h.sb.WriteFile(datagenScript, script)
	if err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "Script downloaded", "path", scriptPath, "bytes", len(script))

	if _, err := run(ctx, h.runner, h.sb, h.cfg.RunCommand, scriptPath, email); err != nil {
		return nil, err
	}

	return &task.Result{
		Detail: "data generated for " + email,
		Output: datagenScript,
	}, nil
}
