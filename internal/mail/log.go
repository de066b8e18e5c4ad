package mail

import (
	"context"

	"go.uber.org/zap"
)

// LogTransport writes messages to the log instead of sending them.
// Used in development and when no mail relay is configured.
type LogTransport struct {
	logger *zap.Logger
}

// NewLogTransport creates a log transport
func NewLogTransport(logger *zap.Logger) *LogTransport {
	return &LogTransport{logger: logger}
}

// Deliver logs the message envelope and its link
func (t *LogTransport) Deliver(_ context.Context, msg Message) error {
	t.logger.Info("Email not sent, log driver active",
		zap.String("kind", string(msg.Kind)),
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.String("link", msg.Link),
	)
	return nil
}

// Close is a no-op
func (t *LogTransport) Close() error {
	return nil
}
