package output

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/wesleyorama2/cacheload/internal/loadtest/config"
	"github.com/wesleyorama2/cacheload/internal/loadtest/engine"
)

const boxHorizontal = "━"

// ConsoleConfig contains configuration for Console.
type ConsoleConfig struct {
	Writer io.Writer
	Quiet  bool
	Colors bool
}

// Console prints the run header, the health probe outcome and the final summary.
type Console struct {
	mu     sync.Mutex
	writer io.Writer
	quiet  bool
	colors *palette
}

// NewConsole creates a console printer.
func NewConsole(cfg ConsoleConfig) *Console {
	if cfg.Writer == nil {
		cfg.Writer = os.Stdout
	}
	return &Console{
		writer: cfg.Writer,
		quiet:  cfg.Quiet,
		colors: newPalette(cfg.Colors),
	}
}

// PrintHeader prints the run header.
func (c *Console) PrintHeader(cfg *config.TestConfig) {
	if c.quiet {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	line := strings.Repeat(boxHorizontal, 56)
	c.writeln(c.colors.accent.Sprint(line))
	c.writeln(c.colors.bold.Sprintf("%s - Running [%s]", cfg.Name, cfg.Load.Executor))
	c.writeln(c.colors.accent.Sprint(line))

	target := cfg.Settings.BaseURL
	if cfg.Settings.HostHeader != "" {
		target += fmt.Sprintf(" (Host: %s)", cfg.Settings.HostHeader)
	}
	c.writeln(fmt.Sprintf("Target:        %s", target))
	c.writeln(fmt.Sprintf("Identifiers:   1..%d (%s)", cfg.Load.Identifiers, cfg.Load.Strategy))

	load := fmt.Sprintf("%d stream(s)", cfg.Load.VUs)
	if cfg.Load.Iterations > 0 {
		load += fmt.Sprintf(", %s iterations", formatNumber(cfg.Load.Iterations))
	}
	if cfg.Load.Duration > 0 {
		load += fmt.Sprintf(", up to %s", formatDuration(time.Duration(cfg.Load.Duration)))
	}
	c.writeln(fmt.Sprintf("Load:          %s", load))
	c.writeln(fmt.Sprintf("Abort policy:  %s", cfg.Abort.Policy))
	c.writeln("")
}

// PrintHealth prints the startup probe outcome. Failures are printed even in
// quiet mode.
func (c *Console) PrintHealth(h *engine.HealthResult) {
	if h == nil {
		return
	}
	if h.Healthy && c.quiet {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if h.Healthy {
		c.writeln(fmt.Sprintf("%s health %s: %d in %s",
			c.colors.ok.Sprint("✓"), h.URL, h.StatusCode, formatDurationShort(h.Duration)))
		return
	}
	c.writeln(fmt.Sprintf("%s %s", c.colors.fail.Sprint("✗"), c.colors.fail.Sprint(h.Message)))
}

// PrintSummary prints the final run summary.
func (c *Console) PrintSummary(result *engine.TestResult) {
	if c.quiet {
		if result.Passed {
			c.writeln(c.colors.ok.Sprint("PASSED"))
		} else {
			c.writeln(c.colors.fail.Sprint("FAILED"))
		}
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	line := strings.Repeat(boxHorizontal, 56)
	status := c.colors.ok.Sprint("Completed ✓")
	switch {
	case result.Aborted:
		status = c.colors.fail.Sprint("Aborted ✗")
	case !result.Passed:
		status = c.colors.fail.Sprint("Failed ✗")
	case result.Interrupted:
		status = c.colors.warn.Sprint("Interrupted")
	}

	c.writeln("")
	c.writeln(c.colors.accent.Sprint(line))
	c.writeln(fmt.Sprintf("%s - %s", c.colors.bold.Sprint(result.Name), status))
	c.writeln(c.colors.accent.Sprint(line))
	c.writeln("")

	c.writeln(fmt.Sprintf("Duration:      %s", c.colors.accent.Sprint(formatDuration(result.Duration))))
	c.writeln(fmt.Sprintf("Iterations:    %s", c.colors.accent.Sprint(formatNumber(result.Iterations))))

	m := result.Metrics
	if m != nil {
		c.writeln(fmt.Sprintf("Total Reqs:    %s", c.colors.accent.Sprint(formatNumber(m.TotalRequests))))
		successRate := 1.0 - m.ErrorRate
		c.writeln(fmt.Sprintf("Success Rate:  %s",
			c.colors.forRate(successRate).Sprintf("%.1f%%", successRate*100)))
		c.writeln(fmt.Sprintf("Throughput:    %.2f req/s", m.RPS))
		if m.TransportErrors > 0 {
			c.writeln(fmt.Sprintf("Transport Err: %s", c.colors.fail.Sprint(formatNumber(m.TransportErrors))))
		}
		c.writeln("")

		c.writeln(c.colors.bold.Sprint("Latency Distribution:"))
		c.writeln(fmt.Sprintf("  Min:       %s", formatDurationShort(m.Latency.Min)))
		c.writeln(fmt.Sprintf("  P50:       %s", formatDurationShort(m.Latency.P50)))
		c.writeln(fmt.Sprintf("  P90:       %s", formatDurationShort(m.Latency.P90)))
		c.writeln(fmt.Sprintf("  P95:       %s", formatDurationShort(m.Latency.P95)))
		c.writeln(fmt.Sprintf("  P99:       %s", formatDurationShort(m.Latency.P99)))
		c.writeln(fmt.Sprintf("  Max:       %s", formatDurationShort(m.Latency.Max)))
		c.writeln("")
	}

	if len(result.RequestStats) > 0 {
		names := make([]string, 0, len(result.RequestStats))
		for name := range result.RequestStats {
			names = append(names, name)
		}
		sort.Strings(names)

		c.writeln(c.colors.bold.Sprint("Requests:"))
		for _, name := range names {
			s := result.RequestStats[name]
			c.writeln(fmt.Sprintf("  %-10s %8s reqs  p50 %-7s p95 %-7s max %s",
				name, formatNumber(s.Count),
				formatDurationShort(s.P50), formatDurationShort(s.P95), formatDurationShort(s.Max)))
		}
		c.writeln("")
	}

	if m != nil && (m.Cache.WithHeader > 0 || m.Cache.WithoutHeader > 0) {
		c.writeln(c.colors.bold.Sprint("Cache:"))
		for _, status := range m.Cache.SortedStatuses() {
			c.writeln(fmt.Sprintf("  %-10s %8s", status, formatNumber(m.Cache.Statuses[status])))
		}
		if m.Cache.WithoutHeader > 0 {
			c.writeln(fmt.Sprintf("  %-10s %8s", "no header", c.colors.warn.Sprint(formatNumber(m.Cache.WithoutHeader))))
		}
		c.writeln(fmt.Sprintf("  Hit rate:  %.1f%%", m.Cache.HitRate*100))
		c.writeln("")
	}

	if len(result.CheckStats) > 0 {
		c.writeln(c.colors.bold.Sprint("Checks:"))
		for _, cs := range result.CheckStats {
			mark := c.colors.ok.Sprint("✓")
			if cs.Fails > 0 {
				mark = c.colors.fail.Sprint("✗")
			}
			c.writeln(fmt.Sprintf("  %s %s (%d/%d)", mark, cs.Name, cs.Passes, cs.Passes+cs.Fails))
		}
		c.writeln("")
	}

	if len(result.Thresholds) > 0 {
		c.writeln(c.colors.bold.Sprint("Thresholds:"))
		for _, t := range result.Thresholds {
			mark := c.colors.ok.Sprint("✓")
			if !t.Passed {
				mark = c.colors.fail.Sprint("✗")
			}
			row := fmt.Sprintf("  %s %s %s (actual: %s)", mark, t.Metric, t.Expression, t.Value)
			if !t.Passed && t.Message != "" {
				row += " - " + t.Message
			}
			c.writeln(row)
		}
		c.writeln("")
	}

	if result.Aborted && result.AbortError != nil {
		c.writeln(c.colors.fail.Sprint("Aborted:"))
		c.writeln(fmt.Sprintf("  Reason:    %s", result.AbortError.Reason))
		if result.AbortError.RequestName != "" {
			c.writeln(fmt.Sprintf("  Request:   %s (ID %d)", result.AbortError.RequestName, result.AbortError.Identifier))
		}
		if result.AbortCause != "" {
			c.writeln(fmt.Sprintf("  Cause:     %s", result.AbortCause))
		}
		c.writeln("")
	}
}

// writeln writes to the output with a newline.
func (c *Console) writeln(s string) {
	fmt.Fprintln(c.writer, s)
}

// formatDuration formats a duration in a human-readable format.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm %02ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%dh %02dm %02ds", h, m, s)
}

// formatDurationShort formats a latency value.
func formatDurationShort(d time.Duration) string {
	if d < time.Microsecond {
		return "0ms"
	}
	if d < time.Millisecond {
		return fmt.Sprintf("%dµs", d.Microseconds())
	}
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.2fs", d.Seconds())
	}
	return fmt.Sprintf("%.1fm", d.Minutes())
}

// formatNumber formats a number with thousands separators.
func formatNumber(n int64) string {
	if n < 0 {
		return "-" + formatNumber(-n)
	}
	str := fmt.Sprintf("%d", n)
	if len(str) <= 3 {
		return str
	}

	var result strings.Builder
	offset := len(str) % 3
	if offset > 0 {
		result.WriteString(str[:offset])
	}
	for i := offset; i < len(str); i += 3 {
		if result.Len() > 0 {
			result.WriteString(",")
		}
		result.WriteString(str[i : i+3])
	}
	return result.String()
}
