// Package log implements support for structured logging.
package log

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// log.DefaultCaller + 2 for this package's leveling wrappers (Logger.Debug et al. and Logger.log).
const defaultCallerUnwind = 5

// Logger is a structured logger.
type Logger struct {
	base   log.Logger // without the caller prefix; used to re-derive it
	logger log.Logger
	level  Level
	module string
}

// NewDefaultLogger initializes a new logger instance with default settings.
// For usage outside tests, prefer RootLogger() from package `cmd/common`.
func NewDefaultLogger(module string) *Logger {
	logger, err := NewLogger(module, os.Stdout, FmtJSON, LevelInfo)
	if err != nil {
		// Shouldn't happen as NewLogger can only fail if an invalid format is provided.
		panic(err)
	}
	return logger
}

// NewLogger initializes a new logger instance.
func NewLogger(module string, w io.Writer, format Format, lvl Level) (*Logger, error) {
	var base log.Logger
	switch format {
	case FmtLogfmt:
		base = log.NewLogfmtLogger(log.NewSyncWriter(w))
	case FmtJSON:
		base = log.NewJSONLogger(log.NewSyncWriter(w))
	default:
		return nil, fmt.Errorf("log: unsupported log format: %v", format)
	}
	base = log.With(base, "ts", log.DefaultTimestampUTC)

	return &Logger{
		base:   base,
		logger: log.With(base, "caller", log.Caller(defaultCallerUnwind)),
		level:  lvl,
		module: module,
	}, nil
}

func (l *Logger) log(lvl func(log.Logger) log.Logger, msg string, keyvals []interface{}) {
	keyvals = append([]interface{}{"module", l.module, "msg", msg}, keyvals...)
	_ = lvl(l.logger).Log(keyvals...)
}

// Debug logs the message and key value pairs at the Debug log level.
func (l *Logger) Debug(msg string, keyvals ...interface{}) {
	if l.level > LevelDebug {
		return
	}
	l.log(level.Debug, msg, keyvals)
}

// Info logs the message and key value pairs at the Info log level.
func (l *Logger) Info(msg string, keyvals ...interface{}) {
	if l.level > LevelInfo {
		return
	}
	l.log(level.Info, msg, keyvals)
}

// Warn logs the message and key value pairs at the Warn log level.
func (l *Logger) Warn(msg string, keyvals ...interface{}) {
	if l.level > LevelWarn {
		return
	}
	l.log(level.Warn, msg, keyvals)
}

// Error logs the message and key value pairs at the Error log level.
func (l *Logger) Error(msg string, keyvals ...interface{}) {
	if l.level > LevelError {
		return
	}
	l.log(level.Error, msg, keyvals)
}

// With returns a clone of the logger with the provided key/value pairs
// added as context for all subsequent logs.
func (l *Logger) With(keyvals ...interface{}) *Logger {
	return &Logger{
		base:   log.With(l.base, keyvals...),
		logger: log.With(l.logger, keyvals...),
		level:  l.level,
		module: l.module,
	}
}

// WithModule returns a clone of the logger with the provided module
// added as context for all subsequent logs.
func (l *Logger) WithModule(module string) *Logger {
	return &Logger{
		base:   l.base,
		logger: l.logger,
		level:  l.level,
		module: module,
	}
}

// WithCallerUnwind returns a clone of the logger that reports the caller
// `depth` frames up the stack. Use it when the logger is wrapped by
// third-party code, e.g. a stdlib *log.Logger.
func (l *Logger) WithCallerUnwind(depth int) *Logger {
	return &Logger{
		base:   l.base,
		logger: log.With(l.base, "caller", log.Caller(depth)),
		level:  l.level,
		module: l.module,
	}
}

// Level is the logging level.
func (l *Logger) Level() Level {
	return l.level
}

type loggerWriter struct {
	logger *Logger
}

// Write implements io.Writer. Every write is logged as one error-level line.
func (w loggerWriter) Write(p []byte) (int, error) {
	w.logger.Error(string(bytes.TrimRight(p, "\n")))
	return len(p), nil
}

// WriterIntoLogger returns an io.Writer that forwards everything written to it
// into the logger. Handy as the sink of a stdlib *log.Logger, e.g. http.Server.ErrorLog.
func WriterIntoLogger(l *Logger) io.Writer {
	return loggerWriter{logger: l}
}
