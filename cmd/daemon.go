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
	"fmt"
	"os"

	"github.com/dmvfs/dmvfs/cfg"
	"github.com/dmvfs/dmvfs/internal/logger"
	"github.com/dmvfs/dmvfs/internal/registry"
	"github.com/dmvfs/dmvfs/internal/shutdown"
	"github.com/dmvfs/dmvfs/internal/util"
	"github.com/jacobsa/daemonize"
	"github.com/kardianos/osext"
)

// noPromptInBackground refuses to prompt: the daemon has no terminal.
func noPromptInBackground(server string) (string, error) {
	return "", fmt.Errorf("no password configured for server %q; set it in the servers config or pass --foreground to be prompted", server)
}

// daemonEnv returns the environment handed to the daemon process.
func daemonEnv() []string {
	// Pass along PATH so that the daemon can find fusermount on Linux.
	env := []string{
		fmt.Sprintf("PATH=%s", os.Getenv("PATH")),
	}

	// Relative paths in the daemon are resolved against our working directory.
	if dir, err := os.Getwd(); err == nil {
		env = append(env, fmt.Sprintf("%s=%s", util.ParentProcessDirEnv, dir))
	}

	// The parent doesn't pass $HOME implicitly.
	if homeDir, err := os.UserHomeDir(); err == nil {
		env = append(env, fmt.Sprintf("HOME=%s", homeDir))
	}

	env = append(env, fmt.Sprintf("%s=true", logger.InBackgroundModeEnv))
	return env
}

// daemonArgs forces foreground mode and replaces the mount point with its
// resolved form.
func daemonArgs(osArgs []string, mountPoint string) []string {
	args := append([]string{"--foreground"}, osArgs...)
	args[len(args)-1] = mountPoint
	return args
}

// runInBackground starts a foreground copy of this process as a daemon and
// waits for it to report the outcome of mounting.
func runInBackground(c *cfg.Config, mountPoint string) error {
	// Fail here, where the user can see it, rather than in the daemon.
	if _, err := registry.Load(string(c.ServersConfig), shutdown.NewController(), noPromptInBackground); err != nil {
		return fmt.Errorf("loading servers config: %w", err)
	}

	path, err := osext.Executable()
	if err != nil {
		return fmt.Errorf("osext.Executable: %w", err)
	}

	// logfile.stderr captures the standard error of the daemon.
	var stderrFile *os.File
	if c.Logging.FilePath != "" {
		stderrFileName := string(c.Logging.FilePath) + ".stderr"
		if stderrFile, err = os.OpenFile(stderrFileName, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644); err != nil {
			return err
		}
		defer stderrFile.Close()
	}

	err = daemonize.Run(path, daemonArgs(os.Args[1:], mountPoint), daemonEnv(), os.Stdout, stderrFile)
	if err != nil {
		return fmt.Errorf("daemonize.Run: %w", err)
	}
	logger.Infof(SuccessfulMountMessage)
	return nil
}
