package ai

import (
	"context"
	"log/slog"
)

// LogUsageRecorder writes usage events to a slog.Logger.
// It is the default recorder when none is configured.
type LogUsageRecorder struct {
	logger *slog.Logger
}

var _ UsageRecorder = (*LogUsageRecorder)(nil)

// NewLogUsageRecorder creates a recorder writing to the given logger.
// A nil logger falls back to slog.Default().
func NewLogUsageRecorder(logger *slog.Logger) *LogUsageRecorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogUsageRecorder{logger: logger.With("component", "ai-usage")}
}

// RecordUsage logs the usage event at debug level.
func (r *LogUsageRecorder) RecordUsage(ctx context.Context, u Usage) error {
	r.logger.Debug("ai usage",
		"operation", u.Operation,
		"model", u.Model,
		"tokens", u.TokensEstimated,
		"cost", u.CostEstimate)
	return nil
}

// RecordBestEffort is the call-site helper: recording failures never fail
// the AI call itself, they are logged and dropped.
func RecordBestEffort(ctx context.Context, recorder UsageRecorder, u Usage) {
	if recorder == nil {
		return
	}
	if err := recorder.RecordUsage(ctx, u); err != nil {
		slog.Debug("usage recording failed", "operation", u.Operation, "err", err)
	}
}
