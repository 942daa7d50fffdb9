package output

import (
	"bytes"
	"errors"
	"strings"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	lhttp "github.com/wesleyorama2/cacheload/internal/http"
	"github.com/wesleyorama2/cacheload/internal/loadtest"
)

func responseEvent(status int, cache string, hasCache bool) *loadtest.ResponseEvent {
	return &loadtest.ResponseEvent{
		StreamID:       1,
		Identifier:     12,
		Request:        &loadtest.Request{Name: "json", Label: "JSON"},
		Response:       &lhttp.Response{StatusCode: status},
		CacheHeader:    "X-Cache",
		CacheStatus:    cache,
		HasCacheStatus: hasCache,
	}
}

func TestLogger_OnResponse(t *testing.T) {
	tests := []struct {
		name     string
		event    *loadtest.ResponseEvent
		expected string
	}{
		{"hit", responseEvent(200, "HIT", true), "JSON ID: 12 - Status: 200 - X-Cache: HIT"},
		{"miss", responseEvent(200, "MISS", true), "JSON ID: 12 - Status: 200 - X-Cache: MISS"},
		{"no header", responseEvent(502, "", false), "JSON ID: 12 - Status: 502 - X-Cache: undefined"},
		{"empty header value", responseEvent(200, "", true), "JSON ID: 12 - Status: 200 - X-Cache: "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			NewLogger(LoggerConfig{Writer: &buf}).OnResponse(tt.event)
			assert.Equal(t, tt.expected+"\n", buf.String())
		})
	}
}

func TestLogger_OnResponseTransportError(t *testing.T) {
	var buf bytes.Buffer
	ev := responseEvent(0, "", false)
	ev.Request = &loadtest.Request{Name: "img"}
	ev.Response.Err = lhttp.NewTransportError(syscall.ECONNREFUSED)

	NewLogger(LoggerConfig{Writer: &buf}).OnResponse(ev)
	assert.Equal(t, "img ID: 12 - Status: 0 (connection-refused) - X-Cache: undefined\n", buf.String())
}

func TestLogger_Quiet(t *testing.T) {
	var out, errOut bytes.Buffer
	logger := NewLogger(LoggerConfig{Writer: &out, ErrWriter: &errOut, Quiet: true})

	ev := responseEvent(200, "HIT", true)
	logger.OnResponse(ev)
	logger.OnCheckFailed(ev, loadtest.CheckResult{Name: "X-Cache is defined (json)", Message: "response has no X-Cache header"})
	logger.OnAbort(&loadtest.AbortError{Reason: loadtest.ReasonCheckFailed})

	assert.Empty(t, out.String())
	lines := strings.Split(strings.TrimSpace(errOut.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, `⚠ JSON ID: 12 - check "X-Cache is defined (json)" failed: response has no X-Cache header`, lines[0])
	assert.Equal(t, "✗ run aborted: check-failed", lines[1])
}

func TestLogger_OnAbort(t *testing.T) {
	var buf bytes.Buffer
	NewLogger(LoggerConfig{Writer: &buf}).OnAbort(&loadtest.AbortError{
		Reason:      loadtest.ReasonCriticalTransport,
		RequestName: "json",
		Identifier:  3,
		Cause:       errors.New("connection-refused"),
	})
	assert.Equal(t, "✗ run aborted: critical-transport-error on json id 3: connection-refused\n", buf.String())
}

func TestLogger_Colors(t *testing.T) {
	var plain, colored bytes.Buffer
	NewLogger(LoggerConfig{Writer: &plain}).OnResponse(responseEvent(200, "HIT", true))
	NewLogger(LoggerConfig{Writer: &colored, Colors: true}).OnResponse(responseEvent(200, "HIT", true))

	assert.NotContains(t, plain.String(), "\x1b[")
	assert.Contains(t, colored.String(), "\x1b[")
	assert.Equal(t, plain.String(), stripANSI(colored.String()))
}

// stripANSI removes ANSI escape codes from a string.
func stripANSI(s string) string {
	var result strings.Builder
	inEscape := false

	for i := 0; i < len(s); i++ {
		if s[i] == '\033' {
			inEscape = true
			continue
		}
		if inEscape {
			if (s[i] >= 'a' && s[i] <= 'z') || (s[i] >= 'A' && s[i] <= 'Z') {
				inEscape = false
			}
			continue
		}
		result.WriteByte(s[i])
	}

	return result.String()
}
