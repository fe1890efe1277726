package log

import (
	"fmt"
	"log/slog"
)

func sprint(args []interface{}) string          { return fmt.Sprint(args...) }
func sprintf(format string, args []interface{}) string { return fmt.Sprintf(format, args...) }

// SlogLogger is an adapter for log/slog implementing the Logger interface.
type SlogLogger struct {
	logger *slog.Logger
}

// NewSlogLogger returns a new Logger wrapping an *slog.Logger.
func NewSlogLogger(logger *slog.Logger) *SlogLogger {
	return &SlogLogger{logger: logger}
}

func (l *SlogLogger) Debug(args ...interface{}) { l.logger.Debug(sprint(args)) }
func (l *SlogLogger) Info(args ...interface{})  { l.logger.Info(sprint(args)) }
func (l *SlogLogger) Warn(args ...interface{})  { l.logger.Warn(sprint(args)) }
func (l *SlogLogger) Error(args ...interface{}) { l.logger.Error(sprint(args)) }

func (l *SlogLogger) Debugf(format string, args ...interface{}) { l.logger.Debug(sprintf(format, args)) }
func (l *SlogLogger) Infof(format string, args ...interface{})  { l.logger.Info(sprintf(format, args)) }
func (l *SlogLogger) Warnf(format string, args ...interface{})  { l.logger.Warn(sprintf(format, args)) }
func (l *SlogLogger) Errorf(format string, args ...interface{}) { l.logger.Error(sprintf(format, args)) }
