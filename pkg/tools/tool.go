package tools

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Command describes one subprocess invocation. Args are passed verbatim as
// argv entries; nothing is ever interpreted by a shell.
type Command struct {
	Name string
	Args []string
	Dir  string
}

func (c Command) String() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

// CommandResult is the outcome of a finished subprocess.
type CommandResult struct {
	Output   string // combined stdout and stderr
	ExitCode int
}

// Runner starts subprocesses. A non-zero exit is returned as an *ExitError
// together with the result so callers can surface the output.
type Runner interface {
	Run(ctx context.Context, cmd Command) (*CommandResult, error)
}

// ExitError reports a subprocess that ran but did not succeed.
type ExitError struct {
	Command  string
	ExitCode int
	Output   string
}

// maxErrorOutput bounds the output tail quoted in ExitError messages, in bytes.
const maxErrorOutput = 500

func (e *ExitError) Error() string {
	out := strings.TrimSpace(e.Output)
	if len(out) > maxErrorOutput {
		// Keep the tail, starting on a rune boundary.
		cut := len(out) - maxErrorOutput
		for cut < len(out) && !utf8.RuneStart(out[cut]) {
			cut++
		}
		out = out[cut:]
	}
	if out == "" {
		return fmt.Sprintf("command %q exited with status %d", e.Command, e.ExitCode)
	}
	return fmt.Sprintf("command %q exited with status %d: %s", e.Command, e.ExitCode, out)
}

// Downloader fetches a remote resource by URL.
type Downloader interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}
