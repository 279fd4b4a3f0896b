// Package warn defines the ambient warning sink every decoder-adjacent
// collaborator reports recoverable anomalies through: a record that
// failed to decode but didn't desync the stream, an OpenBMP v1.7 frame
// from a collector that fills nonstandard fields, a filter expression
// that matched nothing. None of these warrant aborting a run, but they
// are exactly the kind of thing an operator watching logs needs to see.
package warn

import "go.uber.org/zap"

// Sink receives warnings. Named the way the teacher's packages name
// their zap sub-loggers (internal/kafka, internal/db, internal/http all
// call logger.Named(...) once at construction and pass zap.Field values
// at each call site).
type Sink interface {
	Warn(msg string, fields ...zap.Field)
}

type zapSink struct {
	logger *zap.Logger
}

// NewZapSink wraps logger with a "warn" name, matching the teacher's
// per-package sub-logger convention.
func NewZapSink(logger *zap.Logger) Sink {
	return zapSink{logger: logger.Named("warn")}
}

func (s zapSink) Warn(msg string, fields ...zap.Field) {
	s.logger.Warn(msg, fields...)
}

// nopSink discards every warning; used by library callers (tests, the
// iterator package's own unit tests) that have no logger to hand.
type nopSink struct{}

func NewNopSink() Sink { return nopSink{} }

func (nopSink) Warn(string, ...zap.Field) {}
