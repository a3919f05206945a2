package domain

import (
	"encoding/json"
	"testing"
	"time"
)

func TestParseDate(t *testing.T) {
	cases := []struct {
		in   string
		want Date
	}{
		{"", Date{}},
		{"  ", Date{}},
		{"2025-10-17", DateOf(2025, time.October, 17)},
		{"10/17/2025", DateOf(2025, time.October, 17)},
		{"1/2/2026", DateOf(2026, time.January, 2)},
	}
	for _, c := range cases {
		got, err := ParseDate(c.in)
		if err != nil {
			t.Fatalf("ParseDate(%q): %v", c.in, err)
		}
		if !got.Equal(c.want) {
			t.Fatalf("ParseDate(%q) = %v, want %v", c.in, got, c.want)
		}
	}
	if _, err := ParseDate("17th of October"); err == nil {
		t.Fatal("expected an error for free-text dates")
	}
}

func TestDateEqual(t *testing.T) {
	if !(Date{}).Equal(Date{}) {
		t.Fatal("unknown dates should compare equal")
	}
	if (Date{}).Equal(DateOf(2025, time.October, 17)) {
		t.Fatal("unknown and known dates should differ")
	}
}

func TestDateJSONRoundTrip(t *testing.T) {
	for _, d := range []Date{{}, DateOf(2025, time.December, 5)} {
		data, err := json.Marshal(d)
		if err != nil {
			t.Fatalf("marshal %v: %v", d, err)
		}
		var back Date
		if err := json.Unmarshal(data, &back); err != nil {
			t.Fatalf("unmarshal %s: %v", data, err)
		}
		if !back.Equal(d) {
			t.Fatalf("round trip %v -> %s -> %v", d, data, back)
		}
	}
}
