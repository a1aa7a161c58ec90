// Copyright 2026 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package logger

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"

	"github.com/dmvfs/dmvfs/cfg"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Syslog-style severities extended with TRACE and OFF.
const (
	LevelTrace = slog.Level(-8)
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
	LevelOff   = slog.Level(12)
)

// InBackgroundModeEnv is set in the environment of the daemon process.
const InBackgroundModeEnv = "DMVFS_IN_BACKGROUND_MODE"

var (
	defaultLoggerFactory *loggerFactory
	defaultLogger        *slog.Logger
)

// init initializes the logger factory to log to stderr at INFO.
func init() {
	defaultLoggerFactory = &loggerFactory{
		level:  cfg.INFO,
		format: cfg.TextLogFormat,
	}
	defaultLogger = defaultLoggerFactory.newLogger("")
}

// InitLogFile points the default logger at the configured sink. With an empty
// file path logs go to stderr. With a file path every record is appended by
// opening and closing the file, unless log rotation is configured, in which
// case a rotating writer keeps the file open.
func InitLogFile(c cfg.LoggingConfig) error {
	f := &loggerFactory{
		level:  string(c.Severity),
		format: c.Format,
	}

	if c.FilePath != "" {
		if c.LogRotate.MaxFileSizeMb > 0 {
			f.rotator = &lumberjack.Logger{
				Filename:   string(c.FilePath),
				MaxSize:    int(c.LogRotate.MaxFileSizeMb),
				MaxBackups: int(c.LogRotate.BackupFileCount),
				Compress:   c.LogRotate.Compress,
			}
		} else {
			f.appender = &appendFileWriter{path: string(c.FilePath)}
		}
	}

	if f.level == "" {
		f.level = cfg.INFO
	}
	if f.format == "" {
		f.format = cfg.TextLogFormat
	}

	Close()
	defaultLoggerFactory = f
	defaultLogger = f.newLogger("")
	return nil
}

// SetLogFormat recreates the default logger with the given format while
// keeping the current sink and severity.
func SetLogFormat(format string) {
	defaultLoggerFactory.format = format
	defaultLogger = defaultLoggerFactory.newLogger("")
}

// Close releases the rotating log file, if any.
func Close() {
	if r := defaultLoggerFactory.rotator; r != nil {
		r.Close()
	}
}

// NewLegacyLogger returns a *log.Logger writing through the default sink at
// the given level. jacobsa/fuse only accepts *log.Logger for its error and
// debug output.
func NewLegacyLogger(level slog.Level, prefix string) *log.Logger {
	return slog.NewLogLogger(defaultLoggerFactory.handler(prefix), level)
}

// Tracef prints the message with TRACE severity in the specified format.
func Tracef(format string, v ...interface{}) {
	defaultLogger.Log(context.Background(), LevelTrace, fmt.Sprintf(format, v...))
}

// Debugf prints the message with DEBUG severity in the specified format.
func Debugf(format string, v ...interface{}) {
	defaultLogger.Debug(fmt.Sprintf(format, v...))
}

// Infof prints the message with INFO severity in the specified format.
func Infof(format string, v ...interface{}) {
	defaultLogger.Info(fmt.Sprintf(format, v...))
}

// Info prints the message with info severity and structured attributes.
func Info(message string, args ...any) {
	defaultLogger.Info(message, args...)
}

// Warnf prints the message with WARNING severity in the specified format.
func Warnf(format string, v ...interface{}) {
	defaultLogger.Warn(fmt.Sprintf(format, v...))
}

// Errorf prints the message with ERROR severity in the specified format.
func Errorf(format string, v ...interface{}) {
	defaultLogger.Error(fmt.Sprintf(format, v...))
}

type loggerFactory struct {
	// Exactly one of appender and rotator is set when logging to a file.
	// Neither is set when logging to stderr.
	appender *appendFileWriter
	rotator  *lumberjack.Logger

	format string
	level  string
}

func (f *loggerFactory) writer() io.Writer {
	switch {
	case f.rotator != nil:
		return f.rotator
	case f.appender != nil:
		return f.appender
	default:
		return os.Stderr
	}
}

func (f *loggerFactory) handler(prefix string) slog.Handler {
	programLevel := new(slog.LevelVar)
	setLoggingLevel(f.level, programLevel)
	return f.createJsonOrTextHandler(f.writer(), programLevel, prefix)
}

func (f *loggerFactory) newLogger(prefix string) *slog.Logger {
	return slog.New(f.handler(prefix))
}

func (f *loggerFactory) createJsonOrTextHandler(writer io.Writer, levelVar *slog.LevelVar, prefix string) slog.Handler {
	if f.format == cfg.JSONLogFormat {
		return slog.NewJSONHandler(writer, getHandlerOptions(levelVar, prefix, f.format))
	}
	return slog.NewTextHandler(writer, getHandlerOptions(levelVar, prefix, f.format))
}
