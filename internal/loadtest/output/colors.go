// Package output renders cacheload events and results on the console.
package output

import (
	"io"
	"os"
	"runtime"

	"github.com/fatih/color"
)

// palette holds the colours used for log lines and the summary.
type palette struct {
	ok     *color.Color
	warn   *color.Color
	fail   *color.Color
	label  *color.Color
	accent *color.Color
	bold   *color.Color
	dim    *color.Color
}

// newPalette returns a palette with every colour forced on or off, so the
// result does not depend on the global color.NoColor state.
func newPalette(enabled bool) *palette {
	p := &palette{
		ok:     color.New(color.FgGreen, color.Bold),
		warn:   color.New(color.FgYellow, color.Bold),
		fail:   color.New(color.FgRed, color.Bold),
		label:  color.New(color.FgBlue, color.Bold),
		accent: color.New(color.FgCyan),
		bold:   color.New(color.Bold),
		dim:    color.New(color.Faint),
	}
	for _, c := range []*color.Color{p.ok, p.warn, p.fail, p.label, p.accent, p.bold, p.dim} {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

// forStatus picks the colour for an HTTP status; zero means no response.
func (p *palette) forStatus(code int) *color.Color {
	switch {
	case code >= 200 && code < 300:
		return p.ok
	case code >= 300 && code < 400:
		return p.accent
	case code >= 400 && code < 500:
		return p.warn
	default:
		return p.fail
	}
}

// forRate colours a success ratio: green at 99% and above, yellow down to
// 95%, red below.
func (p *palette) forRate(rate float64) *color.Color {
	switch {
	case rate >= 0.99:
		return p.ok
	case rate >= 0.95:
		return p.warn
	default:
		return p.fail
	}
}

// UseColors decides whether output written to w should be coloured.
// noColor is the --no-color flag.
func UseColors(w io.Writer, noColor bool) bool {
	if noColor {
		return false
	}
	return isTerminal(w) && supportsColors()
}

// isTerminal checks if the writer is a terminal.
func isTerminal(w io.Writer) bool {
	if f, ok := w.(*os.File); ok {
		return isTerminalFile(f)
	}
	return false
}

// isTerminalFile checks if a file is a terminal (cross-platform).
func isTerminalFile(f *os.File) bool {
	if f == os.Stdout || f == os.Stderr {
		return checkIsTerminal(f)
	}
	return false
}

// supportsColors checks if the environment allows colours.
func supportsColors() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if os.Getenv("FORCE_COLOR") != "" {
		return true
	}
	if runtime.GOOS == "windows" {
		return true
	}

	term := os.Getenv("TERM")
	return term != "" && term != "dumb"
}
