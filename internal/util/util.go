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

package util

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// ParentProcessDirEnv carries the working directory of the process that
// daemonized us, so that relative paths given on its command line keep their
// meaning in the background process.
const ParentProcessDirEnv = "DMVFS_PARENT_PROCESS_DIR"

// GetResolvedPath returns the absolute path for filePath. Paths starting with
// "~/" are resolved against the home directory and other relative paths
// against the parent process directory when set, the working directory
// otherwise.
func GetResolvedPath(filePath string) (resolvedPath string, err error) {
	if filePath == "" || path.IsAbs(filePath) {
		resolvedPath = filePath
		return
	}

	// Relative path starting with tilda (~)
	if strings.HasPrefix(filePath, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("fetch home dir: %w", err)
		}
		return filepath.Join(homeDir, filePath[2:]), err
	}

	// We reach here, when relative path starts with . or .. or other than (/ or ~)
	parentProcessDir, _ := os.LookupEnv(ParentProcessDirEnv)
	parentProcessDir = strings.TrimSpace(parentProcessDir)
	if parentProcessDir == "" {
		return filepath.Abs(filePath)
	}
	return filepath.Join(parentProcessDir, filePath), err
}
