package logger

import (
	"sync"
)

// Log levels accepted in the bridge config.
const (
	DebugLevel = "debug"
	InfoLevel  = "info"
	WarnLevel  = "warn"
	ErrorLevel = "error"
)

var (
	globalLogger *Logger
	once         sync.Once
)

// Get returns the process-wide logger, configured with the given level.
// The first call initializes it; later calls ignore the level and
// return the same instance, so every component logs through one core.
func Get(level string) *Logger {
	once.Do(func() {
		globalLogger = newZapLogger(level)
	})
	return globalLogger
}

// WithUnit returns a child logger tagged with the unit's identity.
// Device-facing components use it so log lines from different units can
// be told apart when one bridge process fronts more than one device.
func (l *Logger) WithUnit(id string) *Logger {
	return &Logger{SugaredLogger: l.With("unit", id)}
}
