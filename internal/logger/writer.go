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
	"os"
)

// appendFileWriter opens the log file, appends one record and closes it again
// on every Write. No handle is held between records, so a crash never loses a
// buffered record and external rotation of the file is always safe.
type appendFileWriter struct {
	path string
}

// Write never fails: when the file can't be opened or written the record is
// dropped.
func (w *appendFileWriter) Write(p []byte) (n int, err error) {
	f, err := os.OpenFile(w.path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return len(p), nil
	}
	defer f.Close()

	_, _ = f.Write(p)
	return len(p), nil
}
