package model

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// DayLayout is the canonical calendar-date format stored in AppState.
const DayLayout = "2006-01-02"

// legacyDayLayout is the DD/MM/YYYY form written by older clients.
const legacyDayLayout = "02/01/2006"

// Day formats t as a calendar date in t's location.
func Day(t time.Time) string {
	return t.Format(DayLayout)
}

// ParseDay accepts both the canonical and the legacy date form.
func ParseDay(value string) (time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if t, err := time.Parse(DayLayout, trimmed); err == nil {
		return t, nil
	}
	if t, err := time.Parse(legacyDayLayout, trimmed); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("invalid date %q", value)
}

// SameDay reports whether a and b name the same calendar date.
func SameDay(a, b string) bool {
	ta, err := ParseDay(a)
	if err != nil {
		return false
	}
	tb, err := ParseDay(b)
	if err != nil {
		return false
	}
	return ta.Equal(tb)
}

// HabitStreak returns the longest run of consecutive completions: calendar
// days for daily habits, ISO weeks for weekly habits. Unparseable dates are
// ignored.
func HabitStreak(freq Frequency, dates []string) int {
	if len(dates) == 0 {
		return 0
	}

	buckets := make(map[int64]struct{}, len(dates))
	for _, raw := range dates {
		t, err := ParseDay(raw)
		if err != nil {
			continue
		}
		buckets[bucketOf(freq, t)] = struct{}{}
	}
	if len(buckets) == 0 {
		return 0
	}

	keys := make([]int64, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	longest, run := 1, 1
	for i := 1; i < len(keys); i++ {
		if keys[i] == keys[i-1]+1 {
			run++
		} else {
			run = 1
		}
		if run > longest {
			longest = run
		}
	}
	return longest
}

// bucketOf maps a date to a sequential day or week number.
func bucketOf(freq Frequency, t time.Time) int64 {
	days := t.Unix() / int64(24*time.Hour/time.Second)
	if freq != Weekly {
		return days
	}
	// 1970-01-01 was a Thursday; shift so weeks start on Monday.
	return (days + 3) / 7
}
