// Package telemetry is the ambient observability layer: structured
// logging, Prometheus collectors, an in-process event bus, and the
// read-only JSON diagnostics surface mounted by cmd/proxyd.
package telemetry

import "go.uber.org/zap"

// NewLogger builds the process-wide logger. Development mode trades
// sampling and JSON encoding for human-readable, unsampled output.
func NewLogger(development bool) (*zap.Logger, error) {
	if development {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
