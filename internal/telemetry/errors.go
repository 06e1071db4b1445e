package telemetry

import (
	"errors"

	"go.uber.org/zap"

	"github.com/mini0405/shardproxy/internal/poolcore"
)

// LogCoreError logs err at the level its kind warrants: ConfigInvalid is
// an operator mistake (error level); transport errors and timeouts are
// expected backend flakiness (warn); NoServerAvailable is sampled since
// a single bad pool can otherwise flood the log at request rate.
func LogCoreError(log *zap.Logger, pool string, err error) {
	fields := []zap.Field{zap.String("pool", pool), zap.Error(err)}

	switch {
	case errors.Is(err, poolcore.ErrConfigInvalid):
		log.Error("config invalid", fields...)
	case errors.Is(err, poolcore.ErrNoServerAvailable):
		log.Warn("no server available", fields...)
	case errors.Is(err, poolcore.ErrTransportError), errors.Is(err, poolcore.ErrTimeout):
		log.Warn("transport error", fields...)
	case errors.Is(err, poolcore.ErrConnectFailed), errors.Is(err, poolcore.ErrResolveFailed):
		log.Warn("connect failed", fields...)
	case errors.Is(err, poolcore.ErrPoolUnavailable):
		log.Warn("pool unavailable", fields...)
	default:
		log.Error("core error", fields...)
	}
}
