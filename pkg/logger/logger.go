package logger

import (
	"fmt"

	"github.com/rs/zerolog"
)

// Logger is the logging interface consumed by the rest of the module.
// Arguments after the message are alternating key/value pairs.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
	Info(msg string, args ...any)
	Debug(msg string, args ...any)
}

// ZerologAdapter adapts a zerolog.Logger to the Logger interface.
type ZerologAdapter struct {
	logger zerolog.Logger
}

func New(l zerolog.Logger) *ZerologAdapter {
	return &ZerologAdapter{logger: l}
}

func (a *ZerologAdapter) Error(msg string, args ...any) {
	a.logger.Error().Fields(fields(args)).Msg(msg)
}

func (a *ZerologAdapter) Warn(msg string, args ...any) {
	a.logger.Warn().Fields(fields(args)).Msg(msg)
}

func (a *ZerologAdapter) Info(msg string, args ...any) {
	a.logger.Info().Fields(fields(args)).Msg(msg)
}

func (a *ZerologAdapter) Debug(msg string, args ...any) {
	a.logger.Debug().Fields(fields(args)).Msg(msg)
}

// fields pairs up key/value arguments. A trailing key with no value is
// kept with a nil value rather than dropped.
func fields(args []any) map[string]interface{} {
	if len(args) == 0 {
		return nil
	}
	m := make(map[string]interface{}, (len(args)+1)/2)
	for i := 0; i < len(args); i += 2 {
		key := fmt.Sprint(args[i])
		if i+1 < len(args) {
			m[key] = args[i+1]
		} else {
			m[key] = nil
		}
	}
	return m
}

type nopLogger struct{}

func (nopLogger) Error(string, ...any) {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Debug(string, ...any) {}

// Nop returns a Logger that discards everything.
func Nop() Logger {
	return nopLogger{}
}
