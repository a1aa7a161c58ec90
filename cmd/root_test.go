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

package cmd

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dmvfs/dmvfs/cfg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// requiredArgs returns the flags without which validation fails.
func requiredArgs(t *testing.T) []string {
	t.Helper()
	dir := t.TempDir()
	servers := filepath.Join(dir, "servers.ini")
	require.NoError(t, os.WriteFile(servers, []byte("[PROD1]\nhostname=db1\nusername=sa\npassword=pw\n"), 0600))
	return []string{"--dump-dir", filepath.Join(dir, "dump"), "--servers-config", servers}
}

func executeRoot(t *testing.T, args ...string) (*cfg.Config, string, error) {
	t.Helper()
	var (
		actual     *cfg.Config
		mountPoint string
	)
	cmd, err := NewRootCmd(func(c *cfg.Config, mp string) error {
		actual = c
		mountPoint = mp
		return nil
	})
	require.NoError(t, err)
	cmd.SetArgs(args)

	err = cmd.Execute()

	return actual, mountPoint, err
}

func TestDefaults(t *testing.T) {
	c, mountPoint, err := executeRoot(t, append(requiredArgs(t), "/mnt/dmv")...)

	require.NoError(t, err)
	assert.Equal(t, "/mnt/dmv", mountPoint)
	assert.False(t, c.Foreground)
	assert.Equal(t, cfg.Octal(0755), c.FileSystem.DirMode)
	assert.Equal(t, cfg.Octal(0644), c.FileSystem.FileMode)
	assert.Equal(t, int64(-1), c.FileSystem.Uid)
	assert.Equal(t, int64(-1), c.FileSystem.Gid)
	assert.Equal(t, 30*time.Second, c.Query.Timeout)
	assert.Equal(t, float64(-1), c.Query.MaxQueriesPerSec)
	assert.Equal(t, "master", c.Query.Database)
	assert.Equal(t, cfg.InfoLogSeverity, c.Logging.Severity)
	assert.Equal(t, cfg.TextLogFormat, c.Logging.Format)
	assert.Equal(t, int64(0), c.Metrics.PrometheusPort)
}

func TestValidConfigFile(t *testing.T) {
	args := append(requiredArgs(t), "--config-file=testdata/valid_config.yml", "/mnt/dmv")

	c, _, err := executeRoot(t, args...)

	require.NoError(t, err)
	assert.Equal(t, "dmv-browser", c.AppName)
	assert.Equal(t, cfg.Octal(0750), c.FileSystem.DirMode)
	assert.Equal(t, cfg.Octal(0640), c.FileSystem.FileMode)
	assert.Equal(t, 2*time.Second, c.FileSystem.AttrCacheTtl)
	assert.Equal(t, 5*time.Second, c.Query.Timeout)
	assert.Equal(t, float64(20), c.Query.MaxQueriesPerSec)
	assert.Equal(t, cfg.WarningLogSeverity, c.Logging.Severity)
	assert.Equal(t, cfg.JSONLogFormat, c.Logging.Format)
}

func TestFlagsOverrideConfigFile(t *testing.T) {
	args := append(requiredArgs(t), "--config-file=testdata/valid_config.yml", "--app-name=cli", "--query-timeout=1m", "/mnt/dmv")

	c, _, err := executeRoot(t, args...)

	require.NoError(t, err)
	assert.Equal(t, "cli", c.AppName)
	assert.Equal(t, time.Minute, c.Query.Timeout)
}

func TestInvalidConfigFile(t *testing.T) {
	args := append(requiredArgs(t), "--config-file=testdata/invalid_config.yml", "/mnt/dmv")

	_, _, err := executeRoot(t, args...)

	assert.ErrorContains(t, err, "error while unmarshaling the config")
}

func TestMissingConfigFile(t *testing.T) {
	args := append(requiredArgs(t), "--config-file=testdata/missing.yml", "/mnt/dmv")

	_, _, err := executeRoot(t, args...)

	assert.ErrorContains(t, err, "error while reading the config file")
}

func TestVerboseRaisesSeverity(t *testing.T) {
	testCases := []struct {
		name     string
		args     []string
		expected cfg.LogSeverity
	}{
		{name: "verbose", args: []string{"--verbose"}, expected: cfg.DebugLogSeverity},
		{name: "short_verbose", args: []string{"-v"}, expected: cfg.DebugLogSeverity},
		{name: "explicit_severity_wins", args: []string{"-v", "--log-severity=error"}, expected: cfg.ErrorLogSeverity},
		{name: "no_verbose", args: nil, expected: cfg.InfoLogSeverity},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			args := append(requiredArgs(t), tc.args...)

			c, _, err := executeRoot(t, append(args, "/mnt/dmv")...)

			require.NoError(t, err)
			assert.Equal(t, tc.expected, c.Logging.Severity)
		})
	}
}

func TestValidationErrors(t *testing.T) {
	testCases := []struct {
		name string
		args []string
	}{
		{name: "missing_dump_dir", args: []string{"--servers-config=/tmp/servers.ini"}},
		{name: "missing_servers_config", args: []string{"--dump-dir=/tmp/dump"}},
		{name: "zero_rate", args: append(requiredArgs(t), "--max-queries-per-sec=0")},
		{name: "bad_port", args: append(requiredArgs(t), "--prometheus-port=70000")},
		{name: "bad_format", args: append(requiredArgs(t), "--log-format=xml")},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := executeRoot(t, append(tc.args, "/mnt/dmv")...)

			assert.ErrorContains(t, err, "invalid config")
		})
	}
}

func TestArgsCount(t *testing.T) {
	testCases := []struct {
		name        string
		args        []string
		expectError bool
	}{
		{name: "no_mount_point", args: nil, expectError: true},
		{name: "one_mount_point", args: []string{"/mnt/dmv"}, expectError: false},
		{name: "too_many", args: []string{"/mnt/a", "/mnt/b"}, expectError: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := executeRoot(t, append(requiredArgs(t), tc.args...)...)

			if tc.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
