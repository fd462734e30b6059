package alerts

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConsoleNotifier(t *testing.T) {
	var buf bytes.Buffer
	n := NewConsoleNotifier(&buf, false)

	require.NoError(t, n.Notify(Alert{
		Rule:     "cpu_high",
		Severity: SeverityCritical,
		Message:  "cpu_pct exceeded threshold: 99.0 >= 90",
		TS:       100,
	}))

	out := buf.String()
	assert.Contains(t, out, "[CRITICAL]")
	assert.Contains(t, out, "cpu_pct exceeded threshold")
	assert.Contains(t, out, colorRed)
	assert.NotContains(t, out, "\a", "sound disabled")
}

func TestConsoleNotifier_Bell(t *testing.T) {
	var buf bytes.Buffer
	n := NewConsoleNotifier(&buf, true)

	require.NoError(t, n.Notify(Alert{Severity: SeverityWarning, Message: "x"}))
	assert.True(t, strings.Contains(buf.String(), "\a"))

	buf.Reset()
	require.NoError(t, n.Notify(Alert{Severity: SeverityInfo, Message: "x"}))
	assert.False(t, strings.Contains(buf.String(), "\a"), "info never rings the bell")
}

type failingNotifier struct{ err error }

func (f failingNotifier) Notify(Alert) error { return f.err }

func TestMultiNotifier_AttemptsAll(t *testing.T) {
	var buf bytes.Buffer
	boom := errors.New("boom")
	m := MultiNotifier{
		failingNotifier{err: boom},
		NewConsoleNotifier(&buf, false),
	}

	err := m.Notify(Alert{Severity: SeverityWarning, Message: "x"})
	assert.ErrorIs(t, err, boom)
	assert.NotEmpty(t, buf.String(), "later notifiers still run after a failure")
}
