package alerts

import (
	"fmt"
	"io"
	"strings"
)

// Notifier delivers triggered alerts.
type Notifier interface {
	Notify(alert Alert) error
}

// ANSI colors for console output.
const (
	colorRed    = "\033[91m"
	colorYellow = "\033[93m"
	colorGreen  = "\033[92m"
	colorReset  = "\033[0m"
)

// ConsoleNotifier prints colorized alerts, optionally ringing the terminal
// bell for warning and critical severities.
type ConsoleNotifier struct {
	Out         io.Writer
	EnableSound bool
}

// NewConsoleNotifier writes alerts to out.
func NewConsoleNotifier(out io.Writer, enableSound bool) *ConsoleNotifier {
	return &ConsoleNotifier{Out: out, EnableSound: enableSound}
}

func (n *ConsoleNotifier) Notify(alert Alert) error {
	var color string
	switch alert.Severity {
	case SeverityCritical:
		color = colorRed
	case SeverityWarning:
		color = colorYellow
	default:
		color = colorGreen
	}

	bell := ""
	if n.EnableSound && (alert.Severity == SeverityCritical || alert.Severity == SeverityWarning) {
		bell = "\a"
	}

	_, err := fmt.Fprintf(n.Out, "\n%s[%s] %s%s%s",
		color, strings.ToUpper(alert.Severity), alert.Message, colorReset, bell)
	return err
}

// MultiNotifier fans an alert out to several notifiers, returning the first
// delivery error after attempting all of them.
type MultiNotifier []Notifier

func (m MultiNotifier) Notify(alert Alert) error {
	var firstErr error
	for _, n := range m {
		if err := n.Notify(alert); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
