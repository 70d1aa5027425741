package service

import (
	"context"
	"errors"
	"fmt"
	"html"
	"sort"
	"strings"
	"time"

	"brainbounce/internal/model"
)

var moodIcons = map[model.Mood]string{
	model.MoodAmazing: "🤩",
	model.MoodGood:    "🙂",
	model.MoodOkay:    "😐",
	model.MoodLow:     "😔",
	model.MoodRough:   "😣",
}

// MoodIcon returns the emoji shown for m.
func MoodIcon(m model.Mood) string {
	if icon, ok := moodIcons[m]; ok {
		return icon
	}
	return "❔"
}

// ReminderService surfaces due reminders and builds dashboard summaries.
type ReminderService struct {
	now func() time.Time
}

func NewReminderService(now func() time.Time) *ReminderService {
	if now == nil {
		now = time.Now
	}
	return &ReminderService{now: now}
}

// Dispatch hands every due reminder of c to notify and marks the delivered
// ones completed. It returns how many were delivered.
func (s *ReminderService) Dispatch(ctx context.Context, c *Coordinator, notify func(context.Context, model.Reminder) error) (int, error) {
	var (
		sent int
		errs []error
	)
	for _, r := range c.DueReminders(s.now()) {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if err := notify(ctx, r); err != nil {
			errs = append(errs, fmt.Errorf("notify reminder %s: %w", r.ID, err))
			continue
		}
		if _, err := c.ToggleReminder(r.ID); err != nil {
			errs = append(errs, fmt.Errorf("complete reminder %s: %w", r.ID, err))
			continue
		}
		sent++
	}
	return sent, errors.Join(errs...)
}

// NeedsNudge is true when no mood was logged today.
func (s *ReminderService) NeedsNudge(state model.AppState) bool {
	today := model.Day(s.now())
	for _, m := range state.Moods {
		if model.SameDay(m.Date, today) {
			return false
		}
	}
	return true
}

// DailySummary renders the visible dashboard widgets in their order.
func (s *ReminderService) DailySummary(state model.AppState) string {
	now := s.now()

	widgets := make([]model.Widget, 0, len(state.Widgets))
	for _, w := range state.Widgets {
		if w.Visible {
			widgets = append(widgets, w)
		}
	}
	sort.SliceStable(widgets, func(i, j int) bool { return widgets[i].Order < widgets[j].Order })

	var builder strings.Builder
	builder.WriteString("📋 <b>Dashboard</b>\n")
	builder.WriteString(fmt.Sprintf("🗓 %s\n", now.Format("Monday, 02 Jan 2006")))

	for _, w := range widgets {
		section := renderWidget(w.Type, state, now)
		if section == "" {
			continue
		}
		builder.WriteByte('\n')
		builder.WriteString(section)
	}

	return strings.TrimSpace(builder.String())
}

func renderWidget(t model.WidgetType, state model.AppState, now time.Time) string {
	var sb strings.Builder
	switch t {
	case model.WidgetFocus:
		sb.WriteString("🎯 <b>Today's focus</b>\n")
		if state.TodayFocus == "" {
			sb.WriteString("— not set, try /focus\n")
		} else {
			sb.WriteString(html.EscapeString(state.TodayFocus) + "\n")
		}

	case model.WidgetMood:
		sb.WriteString("💭 <b>Mood</b>\n")
		entry, ok := moodOn(state.Moods, model.Day(now))
		if !ok {
			sb.WriteString("— no check-in yet, try /mood\n")
		} else {
			sb.WriteString(fmt.Sprintf("%s %s", MoodIcon(entry.Mood), entry.Mood))
			if entry.Reflection != "" {
				sb.WriteString(fmt.Sprintf(" · <i>%s</i>", html.EscapeString(entry.Reflection)))
			}
			sb.WriteByte('\n')
		}

	case model.WidgetStreak:
		sb.WriteString(fmt.Sprintf("🔥 <b>Streak</b>: %s\n", pluralDays(state.Streak)))

	case model.WidgetGoals:
		sb.WriteString("🏁 <b>Goals</b>\n")
		open := 0
		for _, g := range state.Goals {
			if g.Completed {
				continue
			}
			open++
			sb.WriteString(formatGoal(g, now))
		}
		if open == 0 {
			sb.WriteString("— no open goals\n")
		}

	case model.WidgetReminders:
		sb.WriteString("⏰ <b>Reminders</b>\n")
		open := 0
		for _, r := range state.Reminders {
			if r.Completed {
				continue
			}
			open++
			sb.WriteString(formatReminder(r, now))
		}
		if open == 0 {
			sb.WriteString("— nothing scheduled\n")
		}

	case model.WidgetHabits:
		sb.WriteString("🌱 <b>Habits</b>\n")
		if len(state.Habits) == 0 {
			sb.WriteString("— no habits yet\n")
		}
		today := model.Day(now)
		for _, h := range state.Habits {
			mark := "⬜"
			for _, d := range h.CompletedDates {
				if model.SameDay(d, today) {
					mark = "✅"
					break
				}
			}
			sb.WriteString(fmt.Sprintf("%s %s · %s, best run %d\n", mark, html.EscapeString(h.Title), h.Frequency, h.Streak))
		}

	case model.WidgetBrainDump:
		sb.WriteString(fmt.Sprintf("🧠 <b>Brain dump</b>: %d\n", len(state.BrainDump)))
		start := len(state.BrainDump) - 3
		if start < 0 {
			start = 0
		}
		for _, item := range state.BrainDump[start:] {
			sb.WriteString("• " + html.EscapeString(item.Text) + "\n")
		}

	case model.WidgetLists:
		sb.WriteString("📝 <b>Lists</b>\n")
		if len(state.Lists) == 0 {
			sb.WriteString("— no lists yet\n")
		}
		for _, l := range state.Lists {
			done := 0
			for _, it := range l.Items {
				if it.Completed {
					done++
				}
			}
			sb.WriteString(fmt.Sprintf("• %s (%d/%d)\n", html.EscapeString(l.Name), done, len(l.Items)))
		}

	default:
		// The timer widget has no persisted data to show.
		return ""
	}
	return sb.String()
}

func moodOn(moods []model.MoodEntry, day string) (model.MoodEntry, bool) {
	for _, m := range moods {
		if model.SameDay(m.Date, day) {
			return m, true
		}
	}
	return model.MoodEntry{}, false
}

func pluralDays(n int) string {
	if n == 1 {
		return "1 day"
	}
	return fmt.Sprintf("%d days", n)
}

func formatGoal(g model.Goal, now time.Time) string {
	var sb strings.Builder

	icon := "🟢"
	var due time.Time
	if g.DueDate != "" {
		if d, err := model.ParseDay(g.DueDate); err == nil {
			due = time.Date(d.Year(), d.Month(), d.Day(), 23, 59, 59, 0, now.Location())
			switch {
			case now.After(due):
				icon = "⚠️"
			case due.Sub(now) <= 48*time.Hour:
				icon = "⏳"
			}
		}
	}

	sb.WriteString(fmt.Sprintf("%s %s", icon, html.EscapeString(g.Title)))
	if g.Progress != nil {
		sb.WriteString(fmt.Sprintf(" · %d%%", *g.Progress))
	}
	if !due.IsZero() {
		if now.After(due) {
			sb.WriteString(fmt.Sprintf("\n   ⏰ due %s · <b>overdue</b>", model.Day(due)))
		} else {
			daysLeft := int(due.Sub(now).Hours() / 24)
			sb.WriteString(fmt.Sprintf("\n   ⏰ due %s · %s left", model.Day(due), pluralDays(daysLeft)))
		}
	}
	if g.Description != "" {
		sb.WriteString(fmt.Sprintf("\n   📝 %s", html.EscapeString(g.Description)))
	}

	sb.WriteByte('\n')
	return sb.String()
}

func formatReminder(r model.Reminder, now time.Time) string {
	due := r.DueAt.In(now.Location())
	icon := "🔔"
	if r.Sound.Enabled {
		icon = "🔊"
	}
	if now.After(due) {
		icon = "⚠️"
	}
	return fmt.Sprintf("%s %s · %s\n", icon, html.EscapeString(r.Title), due.Format("02 Jan 15:04"))
}
