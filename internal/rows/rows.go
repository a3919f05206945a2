// Package rows converts loosely-keyed spreadsheet rows into typed
// records. Column headers drift between form revisions, so lookups
// resolve a logical field name against whatever headers are present.
package rows

import (
	"fmt"
	"sort"
	"strings"
)

// Row is one record keyed by column header. Header whitespace is
// tolerated; values are passed through untouched.
type Row map[string]string

// ColumnNotFoundError reports a logical field that matched no column.
type ColumnNotFoundError struct {
	Field   string
	Columns []string
}

func (e *ColumnNotFoundError) Error() string {
	return fmt.Sprintf("could not find %q in column names: %s", e.Field, strings.Join(e.Columns, ", "))
}

// ResolveColumn maps a logical field name to an actual column header.
// An exact match wins; otherwise the shortest header containing the
// field as a substring is chosen, with ties broken alphabetically so
// resolution is deterministic. ok is false when nothing matches.
func ResolveColumn(row Row, field string) (string, bool) {
	if _, exact := row[field]; exact {
		return field, true
	}
	best := ""
	found := false
	for key := range row {
		trimmed := strings.TrimSpace(key)
		if !strings.Contains(trimmed, field) {
			continue
		}
		if !found || len(key) < len(best) || (len(key) == len(best) && key < best) {
			best = key
			found = true
		}
	}
	return best, found
}

// Value resolves field against the row's headers and returns the cell
// contents. A *ColumnNotFoundError names the field and the available
// headers when resolution fails.
func Value(row Row, field string) (string, error) {
	key, ok := ResolveColumn(row, field)
	if !ok {
		return "", &ColumnNotFoundError{Field: field, Columns: columnNames(row)}
	}
	return row[key], nil
}

func columnNames(row Row) []string {
	names := make([]string, 0, len(row))
	for key := range row {
		names = append(names, key)
	}
	sort.Strings(names)
	return names
}
