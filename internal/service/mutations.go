package service

import (
	"fmt"
	"slices"
	"sort"
	"strings"
	"time"

	"brainbounce/internal/model"
)

func required(field, value string) (string, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "", fmt.Errorf("%w: %s is required", ErrInvalidInput, field)
	}
	return trimmed, nil
}

func notFound(kind, id string) error {
	return fmt.Errorf("%w: %s %q", ErrNotFound, kind, id)
}

// Moods

// AddMood records today's check-in, replacing an earlier one from the same day.
func (c *Coordinator) AddMood(mood model.Mood, reflection string) (model.MoodEntry, error) {
	var entry model.MoodEntry
	err := c.mutate("log your mood", true, func(s *model.AppState, now time.Time) error {
		if !mood.Valid() {
			return fmt.Errorf("%w: unknown mood %q", ErrInvalidInput, mood)
		}
		entry = model.MoodEntry{Date: model.Day(now), Mood: mood, Reflection: strings.TrimSpace(reflection)}
		s.Moods = upsertMood(s.Moods, entry)
		return nil
	})
	return entry, err
}

func upsertMood(moods []model.MoodEntry, entry model.MoodEntry) []model.MoodEntry {
	for i := range moods {
		if model.SameDay(moods[i].Date, entry.Date) {
			moods[i] = entry
			return moods
		}
	}
	return append(moods, entry)
}

func (c *Coordinator) UpdateMood(date string, mood model.Mood, reflection string) error {
	return c.mutate("update your mood", true, func(s *model.AppState, _ time.Time) error {
		if !mood.Valid() {
			return fmt.Errorf("%w: unknown mood %q", ErrInvalidInput, mood)
		}
		for i := range s.Moods {
			if model.SameDay(s.Moods[i].Date, date) {
				s.Moods[i].Mood = mood
				s.Moods[i].Reflection = strings.TrimSpace(reflection)
				return nil
			}
		}
		return notFound("mood", date)
	})
}

func (c *Coordinator) DeleteMood(date string) error {
	return c.mutate("delete your mood", true, func(s *model.AppState, _ time.Time) error {
		before := len(s.Moods)
		s.Moods = slices.DeleteFunc(s.Moods, func(m model.MoodEntry) bool { return model.SameDay(m.Date, date) })
		if len(s.Moods) == before {
			return notFound("mood", date)
		}
		return nil
	})
}

// Goals

type GoalInput struct {
	Title       string
	Description string
	DueDate     string
	Progress    *int
}

// GoalPatch changes the non-nil fields of a goal.
type GoalPatch struct {
	Title       *string
	Description *string
	DueDate     *string
	Progress    *int
	Notes       *string
}

func validProgress(p *int) error {
	if p != nil && (*p < 0 || *p > 100) {
		return fmt.Errorf("%w: progress must be between 0 and 100", ErrInvalidInput)
	}
	return nil
}

func validDueDate(value string) (string, error) {
	if strings.TrimSpace(value) == "" {
		return "", nil
	}
	t, err := model.ParseDay(value)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return model.Day(t), nil
}

func (c *Coordinator) AddGoal(in GoalInput) (model.Goal, error) {
	var goal model.Goal
	err := c.mutate("add a goal", true, func(s *model.AppState, now time.Time) error {
		title, err := required("title", in.Title)
		if err != nil {
			return err
		}
		due, err := validDueDate(in.DueDate)
		if err != nil {
			return err
		}
		if err := validProgress(in.Progress); err != nil {
			return err
		}
		goal = model.Goal{
			ID:          model.NewID(),
			Title:       title,
			Description: strings.TrimSpace(in.Description),
			DueDate:     due,
			CreatedAt:   now,
		}
		if in.Progress != nil {
			p := *in.Progress
			goal.Progress = &p
		}
		s.Goals = append(s.Goals, goal)
		return nil
	})
	if goal.Progress != nil {
		p := *goal.Progress
		goal.Progress = &p
	}
	return goal, err
}

func findGoal(s *model.AppState, id string) (*model.Goal, error) {
	for i := range s.Goals {
		if s.Goals[i].ID == id {
			return &s.Goals[i], nil
		}
	}
	return nil, notFound("goal", id)
}

func (c *Coordinator) UpdateGoal(id string, patch GoalPatch) error {
	return c.mutate("update the goal", true, func(s *model.AppState, _ time.Time) error {
		goal, err := findGoal(s, id)
		if err != nil {
			return err
		}
		if patch.Title != nil {
			title, err := required("title", *patch.Title)
			if err != nil {
				return err
			}
			goal.Title = title
		}
		if patch.Description != nil {
			goal.Description = strings.TrimSpace(*patch.Description)
		}
		if patch.DueDate != nil {
			due, err := validDueDate(*patch.DueDate)
			if err != nil {
				return err
			}
			goal.DueDate = due
		}
		if patch.Progress != nil {
			if err := validProgress(patch.Progress); err != nil {
				return err
			}
			p := *patch.Progress
			goal.Progress = &p
		}
		if patch.Notes != nil {
			goal.Notes = strings.TrimSpace(*patch.Notes)
		}
		return nil
	})
}

// ToggleGoal flips completion and stamps or clears CompletedAt.
func (c *Coordinator) ToggleGoal(id string) (model.Goal, error) {
	var goal model.Goal
	err := c.mutate("update the goal", true, func(s *model.AppState, now time.Time) error {
		g, err := findGoal(s, id)
		if err != nil {
			return err
		}
		g.Completed = !g.Completed
		if g.Completed {
			at := now
			g.CompletedAt = &at
		} else {
			g.CompletedAt = nil
		}
		goal = *g
		return nil
	})
	return goal, err
}

func (c *Coordinator) DeleteGoal(id string) error {
	return c.mutate("delete the goal", true, func(s *model.AppState, _ time.Time) error {
		before := len(s.Goals)
		s.Goals = slices.DeleteFunc(s.Goals, func(g model.Goal) bool { return g.ID == id })
		if len(s.Goals) == before {
			return notFound("goal", id)
		}
		return nil
	})
}

// Reminders

type ReminderPatch struct {
	Title *string
	DueAt *time.Time
	Sound *model.Sound
}

func (c *Coordinator) AddReminder(title string, dueAt time.Time, sound model.Sound) (model.Reminder, error) {
	var reminder model.Reminder
	err := c.mutate("add a reminder", true, func(s *model.AppState, _ time.Time) error {
		t, err := required("title", title)
		if err != nil {
			return err
		}
		if dueAt.IsZero() {
			return fmt.Errorf("%w: due time is required", ErrInvalidInput)
		}
		reminder = model.Reminder{ID: model.NewID(), Title: t, DueAt: dueAt, Sound: sound}
		s.Reminders = append(s.Reminders, reminder)
		sortReminders(s.Reminders)
		return nil
	})
	return reminder, err
}

func sortReminders(reminders []model.Reminder) {
	sort.SliceStable(reminders, func(i, j int) bool {
		return reminders[i].DueAt.Before(reminders[j].DueAt)
	})
}

func findReminder(s *model.AppState, id string) (*model.Reminder, error) {
	for i := range s.Reminders {
		if s.Reminders[i].ID == id {
			return &s.Reminders[i], nil
		}
	}
	return nil, notFound("reminder", id)
}

// UpdateReminder applies patch; moving the due time re-opens the reminder.
func (c *Coordinator) UpdateReminder(id string, patch ReminderPatch) error {
	return c.mutate("update the reminder", true, func(s *model.AppState, _ time.Time) error {
		r, err := findReminder(s, id)
		if err != nil {
			return err
		}
		if patch.Title != nil {
			title, err := required("title", *patch.Title)
			if err != nil {
				return err
			}
			r.Title = title
		}
		if patch.Sound != nil {
			r.Sound = *patch.Sound
		}
		if patch.DueAt != nil && !patch.DueAt.Equal(r.DueAt) {
			r.DueAt = *patch.DueAt
			r.Completed = false
			r.CompletedAt = nil
			sortReminders(s.Reminders)
		}
		return nil
	})
}

func (c *Coordinator) ToggleReminder(id string) (model.Reminder, error) {
	var reminder model.Reminder
	err := c.mutate("update the reminder", true, func(s *model.AppState, now time.Time) error {
		r, err := findReminder(s, id)
		if err != nil {
			return err
		}
		r.Completed = !r.Completed
		if r.Completed {
			at := now
			r.CompletedAt = &at
		} else {
			r.CompletedAt = nil
		}
		reminder = *r
		return nil
	})
	return reminder, err
}

func (c *Coordinator) DeleteReminder(id string) error {
	return c.mutate("delete the reminder", true, func(s *model.AppState, _ time.Time) error {
		before := len(s.Reminders)
		s.Reminders = slices.DeleteFunc(s.Reminders, func(r model.Reminder) bool { return r.ID == id })
		if len(s.Reminders) == before {
			return notFound("reminder", id)
		}
		return nil
	})
}

// Habits

type HabitInput struct {
	Title     string
	Frequency model.Frequency
	Color     string
	Game      model.GameType
}

type HabitPatch struct {
	Title     *string
	Frequency *model.Frequency
	Color     *string
	Game      *model.GameType
}

func validFrequency(f model.Frequency) (model.Frequency, error) {
	switch f {
	case "":
		return model.Daily, nil
	case model.Daily, model.Weekly:
		return f, nil
	default:
		return "", fmt.Errorf("%w: unknown frequency %q", ErrInvalidInput, f)
	}
}

func (c *Coordinator) AddHabit(in HabitInput) (model.Habit, error) {
	var habit model.Habit
	err := c.mutate("add a habit", true, func(s *model.AppState, now time.Time) error {
		title, err := required("title", in.Title)
		if err != nil {
			return err
		}
		freq, err := validFrequency(in.Frequency)
		if err != nil {
			return err
		}
		habit = model.Habit{
			ID:             model.NewID(),
			Title:          title,
			Frequency:      freq,
			CompletedDates: []string{},
			CreatedAt:      now,
			Color:          in.Color,
			Game:           in.Game,
		}
		s.Habits = append(s.Habits, habit)
		return nil
	})
	return habit, err
}

func findHabit(s *model.AppState, id string) (*model.Habit, error) {
	for i := range s.Habits {
		if s.Habits[i].ID == id {
			return &s.Habits[i], nil
		}
	}
	return nil, notFound("habit", id)
}

func (c *Coordinator) UpdateHabit(id string, patch HabitPatch) error {
	return c.mutate("update the habit", true, func(s *model.AppState, _ time.Time) error {
		h, err := findHabit(s, id)
		if err != nil {
			return err
		}
		if patch.Title != nil {
			title, err := required("title", *patch.Title)
			if err != nil {
				return err
			}
			h.Title = title
		}
		if patch.Frequency != nil {
			freq, err := validFrequency(*patch.Frequency)
			if err != nil {
				return err
			}
			h.Frequency = freq
		}
		if patch.Color != nil {
			h.Color = *patch.Color
		}
		if patch.Game != nil {
			h.Game = *patch.Game
		}
		h.Streak = model.HabitStreak(h.Frequency, h.CompletedDates)
		return nil
	})
}

// ToggleHabitDate adds or removes a completion on day (today when empty) and
// recomputes the habit streak.
func (c *Coordinator) ToggleHabitDate(id, day string) (model.Habit, error) {
	var habit model.Habit
	err := c.mutate("update the habit", true, func(s *model.AppState, now time.Time) error {
		h, err := findHabit(s, id)
		if err != nil {
			return err
		}
		date := model.Day(now)
		if strings.TrimSpace(day) != "" {
			t, err := model.ParseDay(day)
			if err != nil {
				return fmt.Errorf("%w: %v", ErrInvalidInput, err)
			}
			date = model.Day(t)
		}

		before := len(h.CompletedDates)
		h.CompletedDates = slices.DeleteFunc(h.CompletedDates, func(d string) bool { return model.SameDay(d, date) })
		if len(h.CompletedDates) == before {
			h.CompletedDates = append(h.CompletedDates, date)
			sort.Strings(h.CompletedDates)
		}
		h.Streak = model.HabitStreak(h.Frequency, h.CompletedDates)
		habit = *h
		return nil
	})
	return habit, err
}

func (c *Coordinator) DeleteHabit(id string) error {
	return c.mutate("delete the habit", true, func(s *model.AppState, _ time.Time) error {
		before := len(s.Habits)
		s.Habits = slices.DeleteFunc(s.Habits, func(h model.Habit) bool { return h.ID == id })
		if len(s.Habits) == before {
			return notFound("habit", id)
		}
		return nil
	})
}

// Lists

func (c *Coordinator) AddList(name string) (model.List, error) {
	var list model.List
	err := c.mutate("add a list", false, func(s *model.AppState, now time.Time) error {
		n, err := required("name", name)
		if err != nil {
			return err
		}
		list = model.List{ID: model.NewID(), Name: n, Items: []model.ListItem{}, CreatedAt: now}
		s.Lists = append(s.Lists, list)
		return nil
	})
	return list, err
}

func findList(s *model.AppState, id string) (*model.List, error) {
	for i := range s.Lists {
		if s.Lists[i].ID == id {
			return &s.Lists[i], nil
		}
	}
	return nil, notFound("list", id)
}

func (c *Coordinator) RenameList(id, name string) error {
	return c.mutate("rename the list", false, func(s *model.AppState, _ time.Time) error {
		l, err := findList(s, id)
		if err != nil {
			return err
		}
		n, err := required("name", name)
		if err != nil {
			return err
		}
		l.Name = n
		return nil
	})
}

// DeleteList removes the list together with all of its items.
func (c *Coordinator) DeleteList(id string) error {
	return c.mutate("delete the list", false, func(s *model.AppState, _ time.Time) error {
		before := len(s.Lists)
		s.Lists = slices.DeleteFunc(s.Lists, func(l model.List) bool { return l.ID == id })
		if len(s.Lists) == before {
			return notFound("list", id)
		}
		return nil
	})
}

func (c *Coordinator) AddListItem(listID, text string) (model.ListItem, error) {
	var item model.ListItem
	err := c.mutate("add a list item", false, func(s *model.AppState, _ time.Time) error {
		l, err := findList(s, listID)
		if err != nil {
			return err
		}
		t, err := required("text", text)
		if err != nil {
			return err
		}
		item = model.ListItem{ID: model.NewID(), Text: t}
		l.Items = append(l.Items, item)
		return nil
	})
	return item, err
}

func findItem(l *model.List, id string) (*model.ListItem, error) {
	for i := range l.Items {
		if l.Items[i].ID == id {
			return &l.Items[i], nil
		}
	}
	return nil, notFound("list item", id)
}

// ToggleListItem flips one item; its siblings are untouched.
func (c *Coordinator) ToggleListItem(listID, itemID string) (model.ListItem, error) {
	var item model.ListItem
	err := c.mutate("update the list item", false, func(s *model.AppState, _ time.Time) error {
		l, err := findList(s, listID)
		if err != nil {
			return err
		}
		it, err := findItem(l, itemID)
		if err != nil {
			return err
		}
		it.Completed = !it.Completed
		item = *it
		return nil
	})
	return item, err
}

func (c *Coordinator) DeleteListItem(listID, itemID string) error {
	return c.mutate("delete the list item", false, func(s *model.AppState, _ time.Time) error {
		l, err := findList(s, listID)
		if err != nil {
			return err
		}
		before := len(l.Items)
		l.Items = slices.DeleteFunc(l.Items, func(it model.ListItem) bool { return it.ID == itemID })
		if len(l.Items) == before {
			return notFound("list item", itemID)
		}
		return nil
	})
}

// Focus and brain dump

func (c *Coordinator) SetFocus(text string) error {
	return c.mutate("set today's focus", false, func(s *model.AppState, _ time.Time) error {
		focus, err := required("focus", text)
		if err != nil {
			return err
		}
		s.TodayFocus = focus
		return nil
	})
}

func (c *Coordinator) ClearFocus() error {
	return c.mutate("clear today's focus", false, func(s *model.AppState, _ time.Time) error {
		s.TodayFocus = ""
		return nil
	})
}

func (c *Coordinator) AddBrainDump(text string) (model.BrainDumpItem, error) {
	var item model.BrainDumpItem
	err := c.mutate("save the thought", false, func(s *model.AppState, now time.Time) error {
		t, err := required("text", text)
		if err != nil {
			return err
		}
		item = model.BrainDumpItem{ID: model.NewID(), Text: t, CreatedAt: now}
		s.BrainDump = append(s.BrainDump, item)
		return nil
	})
	return item, err
}

func (c *Coordinator) DeleteBrainDump(id string) error {
	return c.mutate("delete the thought", false, func(s *model.AppState, _ time.Time) error {
		before := len(s.BrainDump)
		s.BrainDump = slices.DeleteFunc(s.BrainDump, func(b model.BrainDumpItem) bool { return b.ID == id })
		if len(s.BrainDump) == before {
			return notFound("thought", id)
		}
		return nil
	})
}

func (c *Coordinator) ClearBrainDump() error {
	return c.mutate("clear the brain dump", false, func(s *model.AppState, _ time.Time) error {
		s.BrainDump = []model.BrainDumpItem{}
		return nil
	})
}

// Widgets

// ReorderWidgets puts the widgets named by ids first, in that order, followed
// by the rest in their current order.
func (c *Coordinator) ReorderWidgets(ids []string) error {
	return c.mutate("reorder the dashboard", false, func(s *model.AppState, _ time.Time) error {
		byID := make(map[string]model.Widget, len(s.Widgets))
		for _, w := range s.Widgets {
			byID[w.ID] = w
		}

		ordered := make([]model.Widget, 0, len(s.Widgets))
		seen := make(map[string]bool, len(ids))
		for _, id := range ids {
			w, ok := byID[id]
			if !ok {
				return notFound("widget", id)
			}
			if seen[id] {
				continue
			}
			seen[id] = true
			ordered = append(ordered, w)
		}
		rest := slices.Clone(s.Widgets)
		sort.SliceStable(rest, func(i, j int) bool { return rest[i].Order < rest[j].Order })
		for _, w := range rest {
			if !seen[w.ID] {
				ordered = append(ordered, w)
			}
		}
		for i := range ordered {
			ordered[i].Order = i
		}
		s.Widgets = ordered
		return nil
	})
}

func (c *Coordinator) ToggleWidget(t model.WidgetType) (model.Widget, error) {
	var widget model.Widget
	err := c.mutate("update the dashboard", false, func(s *model.AppState, _ time.Time) error {
		for i := range s.Widgets {
			if s.Widgets[i].Type == t {
				s.Widgets[i].Visible = !s.Widgets[i].Visible
				widget = s.Widgets[i]
				return nil
			}
		}
		return notFound("widget", string(t))
	})
	return widget, err
}

func (c *Coordinator) ResetWidgets() error {
	return c.mutate("reset the dashboard", false, func(s *model.AppState, _ time.Time) error {
		s.Widgets = model.DefaultWidgets()
		return nil
	})
}
