package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Date is a calendar date that may be unknown. Spreadsheet exports from
// earlier seasons carry donations with no recorded date, so absence is a
// first-class state rather than a sentinel value.
type Date struct {
	Time  time.Time
	Known bool
}

// DateOf builds a known date from a year, month and day.
func DateOf(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC), Known: true}
}

// Today returns the current date in UTC.
func Today() Date {
	y, m, d := time.Now().UTC().Date()
	return DateOf(y, m, d)
}

// ParseDate accepts an empty string (unknown), an ISO date, or the
// month/day/year form spreadsheets export.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Date{}, nil
	}
	for _, layout := range []string{"2006-01-02", "1/2/2006"} {
		if t, err := time.Parse(layout, s); err == nil {
			return Date{Time: t, Known: true}, nil
		}
	}
	return Date{}, fmt.Errorf("unrecognized date %q", s)
}

// Equal compares two dates. All unknown dates compare equal.
func (d Date) Equal(other Date) bool {
	if d.Known != other.Known {
		return false
	}
	if !d.Known {
		return true
	}
	return d.Time.Equal(other.Time)
}

// String renders a known date as ISO and an unknown date as empty.
func (d Date) String() string {
	if !d.Known {
		return ""
	}
	return d.Time.Format("2006-01-02")
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
