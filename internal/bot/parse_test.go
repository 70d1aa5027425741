package bot

import (
	"testing"
	"time"
)

func TestParseDue(t *testing.T) {
	now := time.Date(2025, time.June, 11, 18, 0, 0, 0, time.UTC)
	tests := []struct {
		in        string
		wantDue   time.Time
		wantTitle string
		wantErr   bool
	}{
		{"in 30m stretch", now.Add(30 * time.Minute), "stretch", false},
		{"20:15 take pills", time.Date(2025, time.June, 11, 20, 15, 0, 0, time.UTC), "take pills", false},
		{"09:00 standup", time.Date(2025, time.June, 12, 9, 0, 0, 0, time.UTC), "standup", false},
		{"2025-07-01 08:30 dentist", time.Date(2025, time.July, 1, 8, 30, 0, 0, time.UTC), "dentist", false},
		{"01/07/2025 08:30 dentist", time.Date(2025, time.July, 1, 8, 30, 0, 0, time.UTC), "dentist", false},
		{"in soon nap", time.Time{}, "", true},
		{"tomorrow call", time.Time{}, "", true},
		{"", time.Time{}, "", true},
	}
	for _, tt := range tests {
		due, title, err := parseDue(tt.in, now)
		if (err != nil) != tt.wantErr {
			t.Fatalf("parseDue(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if tt.wantErr {
			continue
		}
		if !due.Equal(tt.wantDue) || title != tt.wantTitle {
			t.Fatalf("parseDue(%q) = %v %q, want %v %q", tt.in, due, title, tt.wantDue, tt.wantTitle)
		}
	}
}

func TestParseIndex(t *testing.T) {
	if i, err := parseIndex("#2", 3); err != nil || i != 1 {
		t.Fatalf("parseIndex(#2) = %d, %v; want 1", i, err)
	}
	for _, in := range []string{"0", "4", "x"} {
		if _, err := parseIndex(in, 3); err == nil {
			t.Fatalf("parseIndex(%q) succeeded", in)
		}
	}
	if _, err := parseIndex("1", 0); err == nil {
		t.Fatalf("parseIndex on empty list succeeded")
	}
}

func TestSplitFieldsAndShortTitle(t *testing.T) {
	parts := splitFields(" Run 5k | 2025-06-30 |  before summer ")
	if len(parts) != 3 || parts[0] != "Run 5k" || parts[2] != "before summer" {
		t.Fatalf("splitFields = %q", parts)
	}
	if got := shortTitle("a   very\nlong title", 8); got != "a very …" {
		t.Fatalf("shortTitle = %q", got)
	}
}

func TestParseMood(t *testing.T) {
	if m, ok := parseMood(" Good "); !ok || m != "good" {
		t.Fatalf("parseMood(Good) = %q, %v", m, ok)
	}
	if _, ok := parseMood("meh"); ok {
		t.Fatalf("parseMood(meh) accepted")
	}
}
