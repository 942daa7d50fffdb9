package output

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"

	"github.com/wesleyorama2/cacheload/internal/loadtest"
)

// LoggerConfig configures a Logger.
type LoggerConfig struct {
	// Writer receives per-response lines (default os.Stdout)
	Writer io.Writer

	// ErrWriter receives warnings and abort lines (default Writer)
	ErrWriter io.Writer

	// Quiet drops per-response lines
	Quiet bool

	Colors bool
}

// Logger prints driver events as they happen. It implements loadtest.Observer.
type Logger struct {
	mu     sync.Mutex
	out    io.Writer
	errOut io.Writer
	quiet  bool
	colors *palette
}

var _ loadtest.Observer = (*Logger)(nil)

// NewLogger creates a Logger.
func NewLogger(cfg LoggerConfig) *Logger {
	if cfg.Writer == nil {
		cfg.Writer = os.Stdout
	}
	if cfg.ErrWriter == nil {
		cfg.ErrWriter = cfg.Writer
	}
	return &Logger{
		out:    cfg.Writer,
		errOut: cfg.ErrWriter,
		quiet:  cfg.Quiet,
		colors: newPalette(cfg.Colors),
	}
}

// OnResponse prints one line per response, whatever its outcome:
//
//	JSON ID: 12 - Status: 200 - X-Cache: HIT
func (l *Logger) OnResponse(ev *loadtest.ResponseEvent) {
	if l.quiet {
		return
	}

	status := "0"
	code := 0
	if ev.Response != nil {
		code = ev.Response.StatusCode
		status = strconv.Itoa(code)
		if ev.Response.Err != nil {
			status = fmt.Sprintf("%d (%s)", code, ev.Response.Err.Kind)
		}
	}

	cache := ev.CacheStatus
	if !ev.HasCacheStatus {
		cache = "undefined"
	}

	line := fmt.Sprintf("%s ID: %d - Status: %s - %s: %s",
		l.colors.label.Sprint(label(ev.Request)),
		ev.Identifier,
		l.colors.forStatus(code).Sprint(status),
		ev.CacheHeader,
		cache)

	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintln(l.out, line)
}

// OnCheckFailed prints a warning for a failed soft check.
func (l *Logger) OnCheckFailed(ev *loadtest.ResponseEvent, result loadtest.CheckResult) {
	line := fmt.Sprintf("%s %s ID: %d - check %q failed",
		l.colors.warn.Sprint("⚠"),
		label(ev.Request),
		ev.Identifier,
		result.Name)
	if result.Message != "" {
		line += ": " + result.Message
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintln(l.errOut, line)
}

// OnAbort prints the hard failure that ended the run.
func (l *Logger) OnAbort(err *loadtest.AbortError) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.errOut, "%s %s\n", l.colors.fail.Sprint("✗"), l.colors.fail.Sprint(err.Error()))
}

func label(req *loadtest.Request) string {
	if req == nil {
		return "?"
	}
	if req.Label != "" {
		return req.Label
	}
	return req.Name
}
