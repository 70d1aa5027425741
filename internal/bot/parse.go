package bot

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"brainbounce/internal/model"
)

// parseIndex turns a 1-based position typed by the user into a slice index.
func parseIndex(arg string, n int) (int, error) {
	i, err := strconv.Atoi(strings.TrimPrefix(strings.TrimSpace(arg), "#"))
	if err != nil {
		return 0, fmt.Errorf("%q is not a number", arg)
	}
	if i < 1 || i > n {
		if n == 0 {
			return 0, fmt.Errorf("the list is empty")
		}
		return 0, fmt.Errorf("pick a number between 1 and %d", n)
	}
	return i - 1, nil
}

// splitFields splits "a | b | c" into trimmed parts.
func splitFields(args string) []string {
	parts := strings.Split(args, "|")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func parseMood(arg string) (model.Mood, bool) {
	m := model.Mood(strings.ToLower(strings.TrimSpace(arg)))
	return m, m.Valid()
}

// parseDue reads the time prefix of a /remind argument and returns the due
// time with the remaining text. Accepted forms:
//
//	in 30m <title>
//	HH:MM <title>            (today, or tomorrow when already past)
//	YYYY-MM-DD HH:MM <title>
func parseDue(args string, now time.Time) (time.Time, string, error) {
	fields := strings.Fields(args)
	if len(fields) == 0 {
		return time.Time{}, "", fmt.Errorf("missing time")
	}

	if strings.EqualFold(fields[0], "in") {
		if len(fields) < 2 {
			return time.Time{}, "", fmt.Errorf("missing duration after \"in\"")
		}
		d, err := time.ParseDuration(fields[1])
		if err != nil || d <= 0 {
			return time.Time{}, "", fmt.Errorf("invalid duration %q", fields[1])
		}
		return now.Add(d), strings.Join(fields[2:], " "), nil
	}

	if len(fields) >= 2 {
		if day, err := model.ParseDay(fields[0]); err == nil {
			clock, err := time.Parse("15:04", fields[1])
			if err != nil {
				return time.Time{}, "", fmt.Errorf("invalid time %q, expected HH:MM", fields[1])
			}
			due := time.Date(day.Year(), day.Month(), day.Day(), clock.Hour(), clock.Minute(), 0, 0, now.Location())
			return due, strings.Join(fields[2:], " "), nil
		}
	}

	clock, err := time.Parse("15:04", fields[0])
	if err != nil {
		return time.Time{}, "", fmt.Errorf("invalid time %q, expected HH:MM", fields[0])
	}
	due := time.Date(now.Year(), now.Month(), now.Day(), clock.Hour(), clock.Minute(), 0, 0, now.Location())
	if !due.After(now) {
		due = due.AddDate(0, 0, 1)
	}
	return due, strings.Join(fields[1:], " "), nil
}

func shortTitle(title string, maxLen int) string {
	clean := strings.Join(strings.Fields(title), " ")
	runes := []rune(clean)
	if len(runes) <= maxLen {
		return clean
	}
	if maxLen <= 1 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-1]) + "…"
}
