package notifier

import (
	"context"

	"github.com/rs/zerolog"
)

// LogNotifier writes envelopes to the structured log. It backs dry runs and
// doubles as an audit trail alongside the real channels.
type LogNotifier struct {
	log zerolog.Logger
}

// NewLogNotifier creates a notifier that logs instead of delivering.
func NewLogNotifier(log zerolog.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

// Name returns "log".
func (l *LogNotifier) Name() string {
	return "log"
}

// Send logs the envelope.
func (l *LogNotifier) Send(_ context.Context, env Envelope) DeliveryResult {
	l.log.Info().
		Str("alert_id", env.AlertID).
		Str("kind", string(env.Kind)).
		Str("priority", env.Priority.String()).
		Str("to", env.To).
		Strs("cc", env.CC).
		Str("subject", env.Subject).
		Msg("notification")
	return DeliveryResult{Success: true}
}

// Close is a no-op for the log notifier.
func (l *LogNotifier) Close() error {
	return nil
}
