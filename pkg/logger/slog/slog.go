// Package slog adapts the standard library's structured logger to the
// Logger interface, for applications that standardize on log/slog
// instead of zerolog.
package slog

import (
	stdslog "log/slog"

	"github.com/kamalraji/planit-go/pkg/logger"
)

// Adapter forwards Logger calls to a slog.Logger. Key/value arguments
// pass through unchanged; slog applies its own pairing rules.
type Adapter struct {
	logger *stdslog.Logger
}

var _ logger.Logger = (*Adapter)(nil)

// New builds an Adapter on top of an slog handler.
func New(h stdslog.Handler) *Adapter {
	return &Adapter{logger: stdslog.New(h)}
}

// Wrap adapts an already-configured slog.Logger.
func Wrap(l *stdslog.Logger) *Adapter {
	return &Adapter{logger: l}
}

func (a *Adapter) Error(msg string, args ...any) { a.logger.Error(msg, args...) }
func (a *Adapter) Warn(msg string, args ...any)  { a.logger.Warn(msg, args...) }
func (a *Adapter) Info(msg string, args ...any)  { a.logger.Info(msg, args...) }
func (a *Adapter) Debug(msg string, args ...any) { a.logger.Debug(msg, args...) }
