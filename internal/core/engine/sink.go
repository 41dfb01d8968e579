package engine

import (
	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"
)

// LogSink writes emitted weirds as structured warnings.
type LogSink struct {
	Logger *logging.Logger
}

func (s LogSink) Emit(sig Signal) {
	if s.Logger == nil {
		return
	}

	fields := []zap.Field{
		zap.String("weird", sig.Name),
		zap.String("scope", sig.Context.Kind.String()),
		zap.String("context", sig.Context.String()),
		zap.Time("raised_at", sig.Time),
	}
	if sig.Detail != "" {
		fields = append(fields, zap.String("detail", sig.Detail))
	}
	if sig.Object != nil && sig.Object.Source != "" {
		fields = append(fields, zap.String("object_source", sig.Object.Source))
	}

	s.Logger.Warn("weird", fields...)
}
