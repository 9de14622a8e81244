package monitor

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"taskrunner/pkg/utils"
	"time"
)

// CustomHandler implements slog.Handler with a [TIME] [LEVEL] [REQUEST_ID] format.
type CustomHandler struct {
	mu     *sync.Mutex
	w      io.Writer
	opts   slog.HandlerOptions
	attrs  []slog.Attr
	prefix string // dotted group path applied to record attributes
}

func NewCustomHandler(w io.Writer, opts slog.HandlerOptions) *CustomHandler {
	if opts.Level == nil {
		opts.Level = slog.LevelInfo
	}
	return &CustomHandler{
		mu:   &sync.Mutex{},
		w:    w,
		opts: opts,
	}
}

func (h *CustomHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= h.opts.Level.Level()
}

func (h *CustomHandler) Handle(ctx context.Context, r slog.Record) error {
	buf := bytes.NewBuffer(nil)

	// [2006-01-02 15:04:05] [LEVEL] [REQUEST_ID] Message
	fmt.Fprintf(buf, "[%s] [%s]",
		r.Time.Format("2006-01-02 15:04:05"),
		r.Level,
	)

	if ctx != nil {
		if id := utils.RequestID(ctx); id != "" {
			fmt.Fprintf(buf, " [%s]", id)
		}
	}

	fmt.Fprintf(buf, " %s", r.Message)

	for _, a := range h.attrs {
		appendAttr(buf, "", a)
	}
	r.Attrs(func(a slog.Attr) bool {
		appendAttr(buf, h.prefix, a)
		return true
	})

	buf.WriteString("\n")

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.w.Write(buf.Bytes())
	return err
}

func appendAttr(buf *bytes.Buffer, prefix string, a slog.Attr) {
	val := a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}

	key := a.Key
	switch {
	case prefix != "" && key == "":
		key = prefix
	case prefix != "":
		key = prefix + "." + key
	}

	if val.Kind() == slog.KindGroup {
		for _, ga := range val.Group() {
			appendAttr(buf, key, ga)
		}
		return
	}

	buf.WriteString(" ")
	buf.WriteString(key)
	buf.WriteString("=")

	switch val.Kind() {
	case slog.KindString:
		fmt.Fprintf(buf, "%q", val.String())
	case slog.KindTime:
		buf.WriteString(val.Time().Format(time.RFC3339))
	case slog.KindDuration:
		buf.WriteString(val.Duration().String())
	default:
		fmt.Fprintf(buf, "%v", val.Any())
	}
}

func (h *CustomHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	prefixed := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	prefixed = append(prefixed, h.attrs...)
	for _, a := range attrs {
		if h.prefix != "" {
			a.Key = h.prefix + "." + a.Key
		}
		prefixed = append(prefixed, a)
	}
	return &CustomHandler{
		mu:     h.mu,
		w:      h.w,
		opts:   h.opts,
		attrs:  prefixed,
		prefix: h.prefix,
	}
}

func (h *CustomHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	prefix := name
	if h.prefix != "" {
		prefix = h.prefix + "." + name
	}
	return &CustomHandler{
		mu:     h.mu,
		w:      h.w,
		opts:   h.opts,
		attrs:  h.attrs,
		prefix: prefix,
	}
}

// logLevel backs the default logger so SetLevel can change it at runtime.
var logLevel = new(slog.LevelVar)

// ParseLevel maps a system.json log_level to a slog level. Unknown values are info.
func ParseLevel(levelStr string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(levelStr)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SetupSlog initializes the global slog logger with the CustomHandler.
func SetupSlog(levelStr string) {
	logLevel.Set(ParseLevel(levelStr))

	handler := NewCustomHandler(os.Stderr, slog.HandlerOptions{
		Level: logLevel,
	})

	slog.SetDefault(slog.New(handler))
}

// SetLevel changes the level of the logger installed by SetupSlog.
func SetLevel(levelStr string) {
	level := ParseLevel(levelStr)
	if logLevel.Level() != level {
		logLevel.Set(level)
		slog.Info("Log level changed", "level", level.String())
	}
}

// PrintBanner prints the startup banner
func PrintBanner(w io.Writer, root string) {
	fmt.Fprintln(w, `
  _            _
 | |_ __ _ ___| | ___ __ _   _ _ __  _ __   ___ _ __
 | __/ _' / __| |/ / '__| | | | '_ \| '_ \ / _ \ '__|
 | || (_| \__ \   <| |  | |_| | | | | | | |  __/ |
  \__\__,_|___/_|\_\_|   \__,_|_| |_|_| |_|\___|_|`)
	fmt.Fprintf(w, "  sandbox: %s\n\n", root)
}
