package alerts

import (
	"context"
	"log/slog"

	"mercator-hq/saturn/pkg/retention"
)

// Dispatcher delivers an alert to its recipients over its channels. The
// sweep marks an alert sent only after Dispatch returns nil.
type Dispatcher interface {
	Dispatch(ctx context.Context, alert *retention.Alert) error
}

// RecipientResolver determines who gets notified about a process. A
// resolution failure for one process must not stop the sweep; it is
// converted into a process-error alert.
type RecipientResolver interface {
	Resolve(ctx context.Context, p *retention.RetentionProcess) (recipients []string, channels []string, err error)
}

// LogDispatcher writes alerts to the structured log instead of an external
// channel. It is the default when no notification transport is configured.
type LogDispatcher struct {
	logger *slog.Logger
}

// NewLogDispatcher creates a dispatcher that logs deliveries.
func NewLogDispatcher(logger *slog.Logger) *LogDispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogDispatcher{logger: logger.With("component", "retention.alerts.dispatcher")}
}

// Dispatch implements Dispatcher.
func (d *LogDispatcher) Dispatch(ctx context.Context, alert *retention.Alert) error {
	d.logger.Info("alert dispatched",
		"alert_id", alert.ID,
		"process_id", alert.ProcessID,
		"type", string(alert.Type),
		"priority", string(alert.Priority),
		"recipients", alert.Recipients,
		"channels", alert.Channels,
	)
	return nil
}

// StaticResolver returns the same configured recipients and channels for
// every process.
type StaticResolver struct {
	Recipients []string
	Channels   []string
}

// Resolve implements RecipientResolver.
func (r *StaticResolver) Resolve(ctx context.Context, p *retention.RetentionProcess) ([]string, []string, error) {
	return r.Recipients, r.Channels, nil
}
