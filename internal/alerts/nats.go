package alerts

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// NATSNotifier publishes alerts as JSON messages for downstream consumers.
type NATSNotifier struct {
	conn    *nats.Conn
	subject string
	logger  *zap.Logger
}

// NewNATSNotifier connects to the NATS server at url and publishes alerts
// on subject.
func NewNATSNotifier(url, subject string, logger *zap.Logger) (*NATSNotifier, error) {
	conn, err := nats.Connect(url, nats.Name("hostwatch-alerts"))
	if err != nil {
		return nil, fmt.Errorf("connect to NATS at %s: %w", url, err)
	}
	return &NATSNotifier{conn: conn, subject: subject, logger: logger}, nil
}

func (n *NATSNotifier) Notify(alert Alert) error {
	if n.conn == nil || !n.conn.IsConnected() {
		return fmt.Errorf("NATS connection not available")
	}

	payload, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("marshal alert: %w", err)
	}

	headers := nats.Header{}
	headers.Set("x-rule", alert.Rule)
	headers.Set("x-severity", alert.Severity)
	headers.Set("x-host", alert.Host)
	headers.Set("x-timestamp", strconv.FormatInt(alert.TS, 10))

	msg := &nats.Msg{
		Subject: n.subject,
		Data:    payload,
		Header:  headers,
	}
	if err := n.conn.PublishMsg(msg); err != nil {
		return fmt.Errorf("publish alert: %w", err)
	}

	n.logger.Debug("published alert",
		zap.String("subject", n.subject),
		zap.String("rule", alert.Rule),
		zap.String("severity", alert.Severity),
	)
	return nil
}

// Close drains and closes the underlying connection.
func (n *NATSNotifier) Close() {
	if n.conn != nil {
		n.conn.Close()
	}
}
