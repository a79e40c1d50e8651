// Package logging provides the concrete zap-backed adapter for the root
// package's Logger capability. The core never imports this package or
// reaches for process-wide logging state; callers construct a Zap logger
// and pass it into client configuration as a plain Logger interface
// value.
package logging

import (
	"go.uber.org/zap"

	gqlsparql "github.com/twinfer/gqlsparql"
)

// Fields is re-exported from the root package purely for caller
// convenience; the Logger interface itself is defined there (see
// gqlsparql.Logger) so the core never needs to import this package.
type Fields = gqlsparql.Fields

var _ gqlsparql.Logger = (*Zap)(nil)
var _ gqlsparql.Logger = (*Nop)(nil)

// Zap adapts a *zap.Logger (or *zap.SugaredLogger) to gqlsparql.Logger.
type Zap struct {
	logger *zap.SugaredLogger
}

// NewZap wraps an existing *zap.Logger.
func NewZap(l *zap.Logger) *Zap {
	return &Zap{logger: l.Sugar()}
}

// NewProduction builds a Zap logger using zap.NewProduction, matching the
// teacher's production logging posture (JSON encoding, Info level).
func NewProduction() (*Zap, error) {
	l, err := zap.NewProduction()
	if err != nil {
		return nil, err
	}
	return NewZap(l), nil
}

// NewDevelopment builds a Zap logger using zap.NewDevelopment (console
// encoding, Debug level, caller/stack info) for local development and
// tests.
func NewDevelopment() (*Zap, error) {
	l, err := zap.NewDevelopment()
	if err != nil {
		return nil, err
	}
	return NewZap(l), nil
}

func (z *Zap) Debug(message string, fields Fields) { z.logger.Debugw(message, flatten(fields)...) }
func (z *Zap) Info(message string, fields Fields)  { z.logger.Infow(message, flatten(fields)...) }
func (z *Zap) Warn(message string, fields Fields)  { z.logger.Warnw(message, flatten(fields)...) }
func (z *Zap) Error(message string, fields Fields) { z.logger.Errorw(message, flatten(fields)...) }

// Sync flushes any buffered log entries; callers should defer it at
// startup.
func (z *Zap) Sync() {
	if z == nil {
		return
	}
	_ = z.logger.Sync()
}

func flatten(fields Fields) []any {
	out := make([]any, 0, len(fields)*2)
	for k, v := range fields {
		out = append(out, k, v)
	}
	return out
}

// Nop is a Logger that discards everything, for callers that want to pass
// an explicit Logger value that logs nothing. (gqlsparql.New does not use
// it: given a nil Logger, it substitutes its own unexported no-op logger.)
type Nop struct{}

func (Nop) Debug(string, Fields) {}
func (Nop) Info(string, Fields)  {}
func (Nop) Warn(string, Fields)  {}
func (Nop) Error(string, Fields) {}
