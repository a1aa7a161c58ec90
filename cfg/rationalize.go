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

package cfg

type isSet interface {
	IsSet(string) bool
}

func resolveLogSeverity(v isSet, c *Config) {
	// An explicit --log-severity always wins over --verbose.
	if v.IsSet(LogSeverityConfigKey) {
		return
	}
	if c.Verbose {
		c.Logging.Severity = DebugLogSeverity
	}
}

func resolveLogFormat(c *LoggingConfig) {
	if c.Format == "" {
		c.Format = TextLogFormat
	}
}

// Rationalize updates the config fields based on the values of other fields.
func Rationalize(v isSet, c *Config) error {
	resolveLogSeverity(v, c)
	resolveLogFormat(&c.Logging)
	return nil
}
