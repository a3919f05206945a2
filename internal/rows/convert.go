package rows

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseBool accepts "true" or "false" in any case. bool conversion of
// arbitrary text is too forgiving for spreadsheet cells, so anything
// else is an error.
func ParseBool(text string) (bool, error) {
	switch strings.ToLower(text) {
	case "true":
		return true, nil
	case "false":
		return false, nil
	}
	return false, fmt.Errorf("expected a TRUE or FALSE value, but got %q", text)
}

// ParseMark interprets a checkbox-style cell: blank is false, the
// letter x in any case is true.
func ParseMark(text string) (bool, error) {
	if text == "" {
		return false, nil
	}
	if strings.ToLower(text) == "x" {
		return true, nil
	}
	return false, fmt.Errorf("expected blank or 'x', but got %q", text)
}

// InitialInt parses the leading integer of a cell, so free-text pledge
// counts like "5x20" or "20 of $20" still yield a number.
func InitialInt(text string) (int, error) {
	trimmed := strings.TrimSpace(text)
	end := 0
	for end < len(trimmed) && trimmed[end] >= '0' && trimmed[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0, fmt.Errorf("expected a leading integer, but got %q", text)
	}
	return strconv.Atoi(trimmed[:end])
}
