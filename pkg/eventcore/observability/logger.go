// Package observability provides production-grade observability for
// eventcore: structured logging, metrics, and tracing.
//
// Features:
//   - Structured logging via slog (Go stdlib)
//   - Metrics via OpenTelemetry
//   - Tracing via OpenTelemetry
//
// All features are opt-in and have no-op implementations when disabled.
// Contained failures (middleware, subscriber, sync, journal) are each
// reported exactly once through these helpers.
package observability

import (
	"log/slog"
)

// EnrichLogger adds event context to a logger.
// Returns a new logger with channel and event_id fields.
func EnrichLogger(logger *slog.Logger, channel, eventID string) *slog.Logger {
	if logger == nil {
		return nil
	}
	return logger.With(
		slog.String("channel", channel),
		slog.String("event_id", eventID),
	)
}

// LogMiddlewareFailure logs a contained middleware failure. The event
// carrying the failure was dropped before buffering and delivery.
func LogMiddlewareFailure(logger *slog.Logger, channel, eventID string, err error) {
	if logger == nil {
		return
	}
	logger.Error("middleware failed, event dropped",
		slog.String("channel", channel),
		slog.String("event_id", eventID),
		slog.String("error", err.Error()),
	)
}

// LogSubscriberFailure logs a contained subscriber callback failure.
// Sibling callbacks are unaffected.
func LogSubscriberFailure(logger *slog.Logger, channel, eventID string, err error) {
	if logger == nil {
		return
	}
	logger.Error("subscriber callback failed",
		slog.String("channel", channel),
		slog.String("event_id", eventID),
		slog.String("error", err.Error()),
	)
}

// LogSyncFailure logs a failure in the cross-process sync collaborator
// (non-fatal, best-effort fan-out).
func LogSyncFailure(logger *slog.Logger, channel, eventID string, err error) {
	if logger == nil {
		return
	}
	logger.Warn("sync notification failed",
		slog.String("channel", channel),
		slog.String("event_id", eventID),
		slog.String("error", err.Error()),
	)
}

// LogJournalError logs a journal write failure (non-fatal).
func LogJournalError(logger *slog.Logger, op string, err error) {
	if logger == nil {
		return
	}
	logger.Warn("journal operation failed",
		slog.String("operation", op),
		slog.String("error", err.Error()),
	)
}

// LogDelivery logs a completed delivery pass for one event.
func LogDelivery(logger *slog.Logger, channel, eventID string, subscribers int) {
	if logger == nil {
		return
	}
	logger.Debug("event delivered",
		slog.String("channel", channel),
		slog.String("event_id", eventID),
		slog.Int("subscribers", subscribers),
	)
}

// LogDestroy logs dispatcher teardown.
func LogDestroy(logger *slog.Logger, subscriptions, buffered int) {
	if logger == nil {
		return
	}
	logger.Info("dispatcher destroyed",
		slog.Int("subscriptions_dropped", subscriptions),
		slog.Int("events_dropped", buffered),
	)
}
