package monitor

import (
	"fmt"
	"io"
	"os"
	"sync"
)

const (
	colorGray  = "\033[90m"
	colorRed   = "\033[31m"
	colorGreen = "\033[32m"
	colorReset = "\033[0m"
)

// CLIMonitor prints one line per submitted task and per envelope to a terminal.
type CLIMonitor struct {
	mu     sync.Mutex
	writer io.Writer
	color  bool
}

// NewCLIMonitor creates a monitor writing colored output to stdout.
func NewCLIMonitor() *CLIMonitor {
	return &CLIMonitor{
		writer: os.Stdout,
		color:  true,
	}
}

// NewCLIMonitorWriter creates a monitor writing plain output to w.
func NewCLIMonitorWriter(w io.Writer) *CLIMonitor {
	return &CLIMonitor{writer: w}
}

// Start starts the CLI monitor
func (m *CLIMonitor) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	fmt.Fprintln(m.writer, "----------------------------------------------------------------")
	fmt.Fprintln(m.writer, "Task monitor active - submitted tasks and results appear here")
	fmt.Fprintln(m.writer, "----------------------------------------------------------------")
	return nil
}

// Stop stops the CLI monitor
func (m *CLIMonitor) Stop() error {
	return nil
}

// OnEvent prints a single event line.
func (m *CLIMonitor) OnEvent(ev Event) {
	timestamp := ev.Timestamp.Format("2006-01-02 15:04:05")

	var line string
	switch ev.Type {
	case EventResult:
		status := ev.Status
		if m.color {
			c := colorGreen
			if status != "success" {
				c = colorRed
			}
			status = c + status + colorReset
		}
		line = fmt.Sprintf("[%s] <- %s %s", ev.RequestID, status, ev.Content)
	case EventRead:
		line = fmt.Sprintf("[%s/%s] read %s", ev.ChannelID, ev.Username, ev.Content)
	default:
		line = fmt.Sprintf("[%s/%s] [%s] -> %s", ev.ChannelID, ev.Username, ev.RequestID, ev.Content)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.color {
		fmt.Fprintf(m.writer, "%s[%s]%s %s\n", colorGray, timestamp, colorReset, line)
		return
	}
	fmt.Fprintf(m.writer, "[%s] %s\n", timestamp, line)
}
