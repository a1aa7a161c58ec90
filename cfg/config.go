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
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	AppName string `yaml:"app-name"`

	Debug DebugConfig `yaml:"debug"`

	DumpDir ResolvedPath `yaml:"dump-dir"`

	FileSystem FileSystemConfig `yaml:"file-system"`

	Foreground bool `yaml:"foreground"`

	Logging LoggingConfig `yaml:"logging"`

	Metrics MetricsConfig `yaml:"metrics"`

	Query QueryConfig `yaml:"query"`

	ServersConfig ResolvedPath `yaml:"servers-config"`

	Verbose bool `yaml:"verbose"`
}

type DebugConfig struct {
	ExitOnInvariantViolation bool `yaml:"exit-on-invariant-violation"`

	Fuse bool `yaml:"fuse"`
}

type FileSystemConfig struct {
	AttrCacheTtl time.Duration `yaml:"attr-cache-ttl"`

	DirMode Octal `yaml:"dir-mode"`

	FileMode Octal `yaml:"file-mode"`

	FuseOptions []string `yaml:"fuse-options"`

	Gid int64 `yaml:"gid"`

	Uid int64 `yaml:"uid"`
}

type LogRotateLoggingConfig struct {
	BackupFileCount int64 `yaml:"backup-file-count"`

	Compress bool `yaml:"compress"`

	MaxFileSizeMb int64 `yaml:"max-file-size-mb"`
}

type LoggingConfig struct {
	FilePath ResolvedPath `yaml:"file-path"`

	Format string `yaml:"format"`

	LogRotate LogRotateLoggingConfig `yaml:"log-rotate"`

	Severity LogSeverity `yaml:"severity"`
}

type MetricsConfig struct {
	PrometheusPort int64 `yaml:"prometheus-port"`
}

type QueryConfig struct {
	Database string `yaml:"database"`

	MaxQueriesPerSec float64 `yaml:"max-queries-per-sec"`

	Timeout time.Duration `yaml:"timeout"`
}

func BindFlags(v *viper.Viper, flagSet *pflag.FlagSet) error {
	var err error

	flagSet.StringP("app-name", "", "", "The application name of this mount, reported to each server as the client application name.")

	err = v.BindPFlag("app-name", flagSet.Lookup("app-name"))
	if err != nil {
		return err
	}

	flagSet.BoolP("debug_fuse", "", false, "Enables debug logs of the FUSE kernel protocol.")

	err = v.BindPFlag("debug.fuse", flagSet.Lookup("debug_fuse"))
	if err != nil {
		return err
	}

	flagSet.BoolP("debug_invariants", "", false, "Exit when internal invariants are violated.")

	err = v.BindPFlag("debug.exit-on-invariant-violation", flagSet.Lookup("debug_invariants"))
	if err != nil {
		return err
	}

	flagSet.StringP("dump-dir", "d", "", "Directory backing the mount point. Placeholder files for every server are created here.")

	err = v.BindPFlag("dump-dir", flagSet.Lookup("dump-dir"))
	if err != nil {
		return err
	}

	flagSet.DurationP("attr-cache-ttl", "", 0, "How long the kernel may cache inode attributes. Placeholders change size when populated, so keep this short.")

	err = v.BindPFlag("file-system.attr-cache-ttl", flagSet.Lookup("attr-cache-ttl"))
	if err != nil {
		return err
	}

	flagSet.StringP("dir-mode", "", "0755", "Permissions bits for directories, in octal.")

	err = v.BindPFlag("file-system.dir-mode", flagSet.Lookup("dir-mode"))
	if err != nil {
		return err
	}

	flagSet.StringP("file-mode", "", "0644", "Permissions bits for files, in octal.")

	err = v.BindPFlag("file-system.file-mode", flagSet.Lookup("file-mode"))
	if err != nil {
		return err
	}

	flagSet.StringSliceP("o", "o", []string{}, "Additional system-specific mount options. Multiple options can be passed as comma separated.")

	err = v.BindPFlag("file-system.fuse-options", flagSet.Lookup("o"))
	if err != nil {
		return err
	}

	flagSet.IntP("gid", "", -1, "GID owner of all inodes.")

	err = v.BindPFlag("file-system.gid", flagSet.Lookup("gid"))
	if err != nil {
		return err
	}

	flagSet.IntP("uid", "", -1, "UID owner of all inodes.")

	err = v.BindPFlag("file-system.uid", flagSet.Lookup("uid"))
	if err != nil {
		return err
	}

	flagSet.BoolP("foreground", "f", false, "Stay in the foreground after mounting.")

	err = v.BindPFlag("foreground", flagSet.Lookup("foreground"))
	if err != nil {
		return err
	}

	flagSet.StringP("log-file", "l", "", "The file for storing logs. When not provided, logs are printed to stderr.")

	err = v.BindPFlag("logging.file-path", flagSet.Lookup("log-file"))
	if err != nil {
		return err
	}

	flagSet.StringP("log-format", "", "text", "The format of the log file: 'text' or 'json'.")

	err = v.BindPFlag("logging.format", flagSet.Lookup("log-format"))
	if err != nil {
		return err
	}

	flagSet.IntP("log-rotate-backup-file-count", "", 10, "The maximum number of rotated log files to retain. 0 retains all of them.")

	err = v.BindPFlag("logging.log-rotate.backup-file-count", flagSet.Lookup("log-rotate-backup-file-count"))
	if err != nil {
		return err
	}

	flagSet.BoolP("log-rotate-compress", "", true, "Compress rotated log files with gzip.")

	err = v.BindPFlag("logging.log-rotate.compress", flagSet.Lookup("log-rotate-compress"))
	if err != nil {
		return err
	}

	flagSet.IntP("log-rotate-max-file-size-mb", "", 0, "Rotate the log file once it reaches this size. 0 disables rotation and appends every record by opening and closing the file.")

	err = v.BindPFlag("logging.log-rotate.max-file-size-mb", flagSet.Lookup("log-rotate-max-file-size-mb"))
	if err != nil {
		return err
	}

	flagSet.StringP("log-severity", "", "info", "Specifies the logging severity expressed as one of [trace, debug, info, warning, error, off]")

	err = v.BindPFlag("logging.severity", flagSet.Lookup("log-severity"))
	if err != nil {
		return err
	}

	flagSet.IntP("prometheus-port", "", 0, "Expose Prometheus metrics endpoint on this port. 0 disables the endpoint.")

	err = v.BindPFlag("metrics.prometheus-port", flagSet.Lookup("prometheus-port"))
	if err != nil {
		return err
	}

	flagSet.StringP("database", "", "master", "Database used when connecting to each server.")

	err = v.BindPFlag("query.database", flagSet.Lookup("database"))
	if err != nil {
		return err
	}

	flagSet.Float64P("max-queries-per-sec", "", -1, "Upper bound on queries sent to all servers combined. -1 means no limit.")

	err = v.BindPFlag("query.max-queries-per-sec", flagSet.Lookup("max-queries-per-sec"))
	if err != nil {
		return err
	}

	flagSet.DurationP("query-timeout", "", 30*time.Second, "Timeout for a single query against a server.")

	err = v.BindPFlag("query.timeout", flagSet.Lookup("query-timeout"))
	if err != nil {
		return err
	}

	flagSet.StringP("servers-config", "c", "", "INI file listing the servers to mount, one section per server.")

	err = v.BindPFlag("servers-config", flagSet.Lookup("servers-config"))
	if err != nil {
		return err
	}

	flagSet.BoolP("verbose", "v", false, "Log at debug severity unless --log-severity is given explicitly.")

	err = v.BindPFlag("verbose", flagSet.Lookup("verbose"))
	if err != nil {
		return err
	}

	return nil
}
