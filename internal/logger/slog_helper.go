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
	"log/slog"

	"github.com/dmvfs/dmvfs/cfg"
)

const (
	severityKey  = "severity"
	messageKey   = "message"
	timestampKey = "timestamp"
	secondsKey   = "seconds"
	nanosKey     = "nanos"

	textTimeLayout = "02/01/2006 15:04:05.000000"
)

func setLoggingLevel(level string, programLevel *slog.LevelVar) {
	switch level {
	// logs having severity >= the configured value will be logged.
	case cfg.TRACE:
		programLevel.Set(LevelTrace)
	case cfg.DEBUG:
		programLevel.Set(LevelDebug)
	case cfg.INFO:
		programLevel.Set(LevelInfo)
	case cfg.WARNING:
		programLevel.Set(LevelWarn)
	case cfg.ERROR:
		programLevel.Set(LevelError)
	case cfg.OFF:
		programLevel.Set(LevelOff)
	}
}

func severityName(level slog.Level) string {
	switch {
	case level < LevelDebug:
		return cfg.TRACE
	case level < LevelInfo:
		return cfg.DEBUG
	case level < LevelWarn:
		return cfg.INFO
	case level < LevelError:
		return cfg.WARNING
	default:
		return cfg.ERROR
	}
}

func getHandlerOptions(levelVar *slog.LevelVar, prefix string, format string) *slog.HandlerOptions {
	return &slog.HandlerOptions{
		Level: levelVar,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if len(groups) > 0 {
				return a
			}
			switch a.Key {
			case slog.LevelKey:
				a.Key = severityKey
				if level, ok := a.Value.Any().(slog.Level); ok {
					a.Value = slog.StringValue(severityName(level))
				}
			case slog.MessageKey:
				a.Key = messageKey
				a.Value = slog.StringValue(prefix + a.Value.String())
			case slog.TimeKey:
				t := a.Value.Time()
				if format == cfg.JSONLogFormat {
					return slog.Group(timestampKey,
						slog.Int64(secondsKey, t.Unix()),
						slog.Int64(nanosKey, int64(t.Nanosecond())))
				}
				a.Value = slog.StringValue(t.Format(textTimeLayout))
			}
			return a
		},
	}
}
