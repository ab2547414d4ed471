package monitor

import (
	"context"

	"go.uber.org/zap"
)

// Notifier delivers incident alerts. Delivery transports (email, chat
// webhooks) live outside this module; the monitor only guarantees exactly-one
// notification per incident phase transition.
type Notifier interface {
	Notify(ctx context.Context, subject, body string) error
}

// LogNotifier is the default sink: alerts land in the structured log.
type LogNotifier struct {
	Logger *zap.Logger
}

func (n *LogNotifier) Notify(_ context.Context, subject, body string) error {
	n.Logger.Warn("ALERT", zap.String("subject", subject), zap.String("body", body))
	return nil
}
