package service

import (
	"time"

	"brainbounce/internal/model"
)

// updateStreak advances the check-in streak when today counts as interacted.
// A check-in on the day after LastCheckIn extends the streak, any gap
// restarts it at 1, and a second interaction on the same day changes nothing.
func updateStreak(s *model.AppState, now time.Time) {
	if !interactedOn(s, now) {
		return
	}

	today := model.Day(now)
	if model.SameDay(s.LastCheckIn, today) {
		return
	}

	yesterday := model.Day(now.AddDate(0, 0, -1))
	if model.SameDay(s.LastCheckIn, yesterday) {
		s.Streak++
	} else {
		s.Streak = 1
	}
	s.LastCheckIn = today
}

func interactedOn(s *model.AppState, now time.Time) bool {
	today := model.Day(now)
	// Documents written before completion times were recorded carry none;
	// such completed items count.
	completedToday := func(t *time.Time) bool {
		return t == nil || model.Day(t.In(now.Location())) == today
	}

	for _, g := range s.Goals {
		if g.Completed && completedToday(g.CompletedAt) {
			return true
		}
	}
	for _, r := range s.Reminders {
		if r.Completed && completedToday(r.CompletedAt) {
			return true
		}
	}
	for _, h := range s.Habits {
		for _, d := range h.CompletedDates {
			if model.SameDay(d, today) {
				return true
			}
		}
	}
	for _, m := range s.Moods {
		if model.SameDay(m.Date, today) {
			return true
		}
	}
	return false
}
