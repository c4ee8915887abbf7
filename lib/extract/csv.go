// Copyright 2026 The Loggerd Project Authors
// SPDX-License-Identifier: Apache-2.0

package extract

import "strings"

// escapeCSV quotes a field when it contains a comma or a double quote,
// doubling embedded quotes. The properties and settings outputs separate
// fields with ", " rather than bare commas, so rows are formatted
// directly instead of through encoding/csv.
func escapeCSV(field string) string {
	if strings.ContainsAny(field, `",`) {
		return `"` + strings.ReplaceAll(field, `"`, `""`) + `"`
	}
	return field
}
