// Package loader reads the audit input files dropped into the upload folder.
//
// All loaders share the same failure policy: a file that cannot be opened or
// is missing its required columns fails the load, a row that cannot be parsed
// is logged and skipped. Partial telemetry exports are common enough that a
// single mangled row must not abort an audit run.
package loader

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// timestampLayouts are tried in order when parsing datetime cells. Exports
// come from several systems and none of them agree on a format.
var timestampLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"02.01.2006 15:04:05",
	"2006-01-02 15:04",
}

func parseTimestamp(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable timestamp %q", value)
}

func parseAmount(value string) (decimal.Decimal, error) {
	// Telemetry exports sometimes use spaces as thousands separators and a
	// comma as the decimal mark.
	value = strings.ReplaceAll(strings.TrimSpace(value), " ", "")
	value = strings.ReplaceAll(value, ",", ".")
	return decimal.NewFromString(value)
}

// headerIndex maps normalized column names to their positions in the header
// row. Matching is case-insensitive and whitespace-tolerant.
func headerIndex(header []string) map[string]int {
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.ToLower(strings.TrimSpace(name))] = i
	}
	return index
}

func missingColumns(index map[string]int, required []string) []string {
	var missing []string
	for _, name := range required {
		if _, ok := index[name]; !ok {
			missing = append(missing, name)
		}
	}
	return missing
}

// cell returns the named column's value from a data row, or "" when the row
// is shorter than the header or the column is absent.
func cell(row []string, index map[string]int, name string) string {
	i, ok := index[name]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}
