package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strings"

	"golang.org/x/term"
)

var defaultLogger *slog.Logger

const modulePrefix = "github.com/Squiddl/sma-group2-mini-rag"

// ParseLevel converts a string log level to slog.Level.
// Valid levels: debug, info, warn, error. Anything else falls back to warn.
func ParseLevel(levelStr string) (slog.Level, error) {
	switch strings.ToLower(levelStr) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelWarn, nil
	}
}

// scopeFilterHandler suppresses records emitted by third-party libraries
// unless the level is debug. slog.SetDefault routes library logs through us,
// so without this filter dependency chatter drowns out our own records.
type scopeFilterHandler struct {
	handler  slog.Handler
	minLevel slog.Level
}

func (h *scopeFilterHandler) Enabled(ctx context.Context, level slog.Level) bool {
	if level < h.minLevel {
		return false
	}
	return h.handler.Enabled(ctx, level)
}

func (h *scopeFilterHandler) Handle(ctx context.Context, record slog.Record) error {
	if h.minLevel <= slog.LevelDebug {
		return h.handler.Handle(ctx, record)
	}
	if fromThisModule(record.PC) {
		return h.handler.Handle(ctx, record)
	}
	return nil
}

func (h *scopeFilterHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &scopeFilterHandler{handler: h.handler.WithAttrs(attrs), minLevel: h.minLevel}
}

func (h *scopeFilterHandler) WithGroup(name string) slog.Handler {
	return &scopeFilterHandler{handler: h.handler.WithGroup(name), minLevel: h.minLevel}
}

func fromThisModule(pc uintptr) bool {
	if pc == 0 {
		return false
	}
	fn := runtime.FuncForPC(pc)
	if fn == nil {
		return false
	}
	file, _ := fn.FileLine(pc)
	return strings.Contains(fn.Name(), modulePrefix) ||
		strings.Contains(file, "sma-group2-mini-rag/")
}

func levelColor(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "\033[31m"
	case level >= slog.LevelWarn:
		return "\033[33m"
	case level >= slog.LevelInfo:
		return "\033[36m"
	default:
		return "\033[90m"
	}
}

// consoleHandler renders records as "LEVEL message k=v ..." with an optional
// timestamp (verbose) and optional ANSI colors when the output is a terminal.
type consoleHandler struct {
	handler slog.Handler
	writer  io.Writer
	color   bool
	verbose bool
	attrs   []slog.Attr
}

func (h *consoleHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

func (h *consoleHandler) Handle(ctx context.Context, record slog.Record) error {
	var buf strings.Builder

	if h.verbose && !record.Time.IsZero() {
		buf.WriteString(record.Time.Format("2006/01/02 15:04:05 "))
	}

	levelStr := strings.ToUpper(record.Level.String())
	if levelStr == "WARNING" {
		levelStr = "WARN"
	}
	if h.color {
		buf.WriteString(levelColor(record.Level))
		buf.WriteString(levelStr)
		buf.WriteString("\033[0m")
	} else {
		buf.WriteString(levelStr)
	}
	buf.WriteString(" ")
	buf.WriteString(record.Message)

	writeAttr := func(a slog.Attr) {
		buf.WriteString(" ")
		buf.WriteString(a.Key)
		buf.WriteString("=")
		buf.WriteString(a.Value.String())
	}
	for _, a := range h.attrs {
		writeAttr(a)
	}
	record.Attrs(func(a slog.Attr) bool {
		writeAttr(a)
		return true
	})

	buf.WriteString("\n")
	_, err := h.writer.Write([]byte(buf.String()))
	return err
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &consoleHandler{
		handler: h.handler.WithAttrs(attrs),
		writer:  h.writer,
		color:   h.color,
		verbose: h.verbose,
		attrs:   merged,
	}
}

func (h *consoleHandler) WithGroup(name string) slog.Handler {
	return &consoleHandler{
		handler: h.handler.WithGroup(name),
		writer:  h.writer,
		color:   h.color,
		verbose: h.verbose,
		attrs:   h.attrs,
	}
}

// Init installs the process-wide logger.
// format: "simple" (level + message, the default), "verbose" (adds timestamps),
// "json" (stock slog JSON handler). Colors are enabled automatically when the
// output is a terminal. Third-party slog records are suppressed unless level
// is debug.
func Init(level slog.Level, output *os.File, format string) {
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(output, opts)
	case "verbose":
		handler = &consoleHandler{
			handler: slog.NewTextHandler(output, opts),
			writer:  output,
			color:   term.IsTerminal(int(output.Fd())),
			verbose: true,
		}
	default:
		handler = &consoleHandler{
			handler: slog.NewTextHandler(output, opts),
			writer:  output,
			color:   term.IsTerminal(int(output.Fd())),
		}
	}

	defaultLogger = slog.New(&scopeFilterHandler{handler: handler, minLevel: level})
	slog.SetDefault(defaultLogger)
}

// OpenLogFile opens or creates a log file for appending.
// Returns the file handle and a cleanup function.
func OpenLogFile(path string) (*os.File, func(), error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, err
	}
	return file, func() { file.Close() }, nil
}

// GetLogger returns the process-wide slog logger, initializing it with
// defaults (info level, simple format, stderr) on first use.
func GetLogger() *slog.Logger {
	if defaultLogger == nil {
		Init(slog.LevelInfo, os.Stderr, "simple")
	}
	return defaultLogger
}
