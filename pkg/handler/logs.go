package handler

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os"
	"path"
	"slices"
	"strings"
	"taskrunner/pkg/sandbox"
	"taskrunner/pkg/task"
	"taskrunner/pkg/taskerr"
	"time"
)

const (
	logsDir        = "logs"
	logsOutput     = "logs-recent.txt"
	recentLogLimit = 10
)

type logFile struct {
	name    string
	modTime time.Time
}

// RecentLogs writes the first line of the ten most recently modified
// logs/*.log files, newest first, to logs-recent.txt.
type RecentLogs struct {
	sb    *sandbox.Sandbox
	limit int
}

func NewRecentLogs(sb *sandbox.Sandbox) *RecentLogs {
	return &RecentLogs{sb: sb, limit: recentLogLimit}
}

func (h *RecentLogs) Execute(ctx context.Context, req task.Request) (*task.Result, error) {
	dir, info, err := h.sb.Stat(logsDir)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, taskerr.NotFound("%s is not a directory", logsDir)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, taskerr.Wrap(taskerr.KindHandlerExecution, err, "cannot list %s", logsDir)
	}

	var files []logFile
	for _, e := range entries {
		if !strings.HasSuffix(e.Name(), ".log") {
			continue
		}
		// Stat through the sandbox so a symlinked log cannot point outside.
		_, fi, err := h.sb.Stat(path.Join(logsDir, e.Name()))
		if err != nil {
			return nil, err
		}
		if !fi.Mode().IsRegular() {
			continue
		}
		files = append(files, logFile{name: e.Name(), modTime: fi.ModTime()})
	}

	slices.SortFunc(files, func(a, b logFile) int {
		if c := b.modTime.Compare(a.modTime); c != 0 {
			return c
		}
		return strings.Compare(a.name, b.name)
	})
	if len(files) > h.limit {
		files = files[:h.limit]
	}

	lines := make([]string, 0, len(files))
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, taskerr.Wrap(taskerr.KindHandlerExecution, err, "interrupted")
		}
		line, err := h.firstLine(path.Join(logsDir, f.name))
		if err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}

	content := strings.Join(lines, "\n") + "\n"
	if _, err := h.sb.WriteFile(logsOutput, []byte(content)); err != nil {
		return nil, err
	}
	return &task.Result{
		Detail: "first lines of recent logs written",
		Output: logsOutput,
	}, nil
}

func (h *RecentLogs) firstLine(name string) (string, error) {
	f, err := h.sb.Open(name)
	if err != nil {
		return "", err
	}
	defer f.Close()

	line, err := bufio.NewReader(f).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", taskerr.Wrap(taskerr.KindHandlerExecution, err, "cannot read %s", name)
	}
	return strings.TrimSpace(line), nil
}
