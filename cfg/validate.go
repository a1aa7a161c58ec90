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

import (
	"fmt"
	"os"
)

func isValidLogRotateConfig(config *LogRotateLoggingConfig) error {
	if config.MaxFileSizeMb < 0 {
		return fmt.Errorf("max-file-size-mb should be 0 (rotation disabled) or a positive value")
	}
	if config.BackupFileCount < 0 {
		return fmt.Errorf("backup-file-count should be 0 (to retain all backup files) or a positive value")
	}
	return nil
}

func isValidLogFormat(format string) error {
	switch format {
	case TextLogFormat, JSONLogFormat:
		return nil
	}
	return fmt.Errorf("log format must be one of [%s, %s], got %q", TextLogFormat, JSONLogFormat, format)
}

func isValidFileSystemConfig(c *FileSystemConfig) error {
	if os.FileMode(c.FileMode)&^os.ModePerm != 0 {
		return fmt.Errorf("illegal file-mode: %o", int(c.FileMode))
	}
	if os.FileMode(c.DirMode)&^os.ModePerm != 0 {
		return fmt.Errorf("illegal dir-mode: %o", int(c.DirMode))
	}
	if c.AttrCacheTtl < 0 {
		return fmt.Errorf("attr-cache-ttl can't be negative")
	}
	return nil
}

func isValidQueryConfig(c *QueryConfig) error {
	if c.Timeout <= 0 {
		return fmt.Errorf("query timeout must be positive")
	}
	if c.MaxQueriesPerSec == 0 || c.MaxQueriesPerSec < -1 {
		return fmt.Errorf("max-queries-per-sec must be -1 (unlimited) or positive, got %v", c.MaxQueriesPerSec)
	}
	return nil
}

// ValidateConfig returns a non-nil error if the config is invalid.
func ValidateConfig(config *Config) error {
	var err error

	if config.DumpDir == "" {
		return fmt.Errorf("dump-dir is required")
	}

	if config.ServersConfig == "" {
		return fmt.Errorf("servers-config is required")
	}

	if err = isValidLogRotateConfig(&config.Logging.LogRotate); err != nil {
		return fmt.Errorf("error parsing log-rotate config: %w", err)
	}

	if err = isValidLogFormat(config.Logging.Format); err != nil {
		return fmt.Errorf("error parsing logging config: %w", err)
	}

	if err = isValidFileSystemConfig(&config.FileSystem); err != nil {
		return fmt.Errorf("error parsing file-system config: %w", err)
	}

	if err = isValidQueryConfig(&config.Query); err != nil {
		return fmt.Errorf("error parsing query config: %w", err)
	}

	if config.Metrics.PrometheusPort < 0 || config.Metrics.PrometheusPort > MaxPrometheusPort {
		return fmt.Errorf("prometheus-port must be in [0, %d]", MaxPrometheusPort)
	}

	return nil
}
