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

// A fuse file system exposing the dynamic management views of SQL Server
// instances.
//
// Usage:
//
//	dmvfs [flags] mount_point
package main

import (
	"os"

	"github.com/dmvfs/dmvfs/cmd"
	"github.com/dmvfs/dmvfs/internal/logger"
)

func main() {
	err := cmd.Execute()
	if err != nil {
		logger.Errorf("%v", err)
	}
	logger.Close()
	if err != nil {
		os.Exit(1)
	}
}
