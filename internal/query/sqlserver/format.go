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

package sqlserver

import (
	"fmt"
	"strings"
	"time"
)

// rowSource is the subset of *sql.Rows used to render results.
type rowSource interface {
	Columns() ([]string, error)
	Next() bool
	Scan(dest ...any) error
	Err() error
}

const nullText = "NULL"

var tsvEscaper = strings.NewReplacer("\\", "\\\\", "\t", "\\t", "\n", "\\n", "\r", "\\r")

func formatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return nullText
	case []byte:
		return string(t)
	case string:
		return t
	case time.Time:
		return t.Format("2006-01-02 15:04:05.000")
	case bool:
		if t {
			return "1"
		}
		return "0"
	default:
		return fmt.Sprint(t)
	}
}

// writeTSV renders a header line of column names followed by one line per
// row. Tabs and newlines inside values are escaped.
func writeTSV(b *strings.Builder, rows rowSource) error {
	cols, err := rows.Columns()
	if err != nil {
		return err
	}

	for i, c := range cols {
		if i > 0 {
			b.WriteByte('\t')
		}
		b.WriteString(tsvEscaper.Replace(c))
	}
	b.WriteByte('\n')

	values := make([]any, len(cols))
	dest := make([]any, len(cols))
	for i := range values {
		dest[i] = &values[i]
	}

	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return err
		}
		for i, v := range values {
			if i > 0 {
				b.WriteByte('\t')
			}
			b.WriteString(tsvEscaper.Replace(formatValue(v)))
		}
		b.WriteByte('\n')
	}

	return rows.Err()
}

// writeJSON concatenates the single column of a FOR JSON result, which the
// server splits over several rows for large documents. An empty result is
// rendered as an empty array.
func writeJSON(b *strings.Builder, rows rowSource) error {
	cols, err := rows.Columns()
	if err != nil {
		return err
	}
	if len(cols) != 1 {
		return fmt.Errorf("FOR JSON result has %d columns, want 1", len(cols))
	}

	var chunk any
	for rows.Next() {
		if err := rows.Scan(&chunk); err != nil {
			return err
		}
		if chunk != nil {
			b.WriteString(formatValue(chunk))
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	if b.Len() == 0 {
		b.WriteString("[]")
	}
	return nil
}
