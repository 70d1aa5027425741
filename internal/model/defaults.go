package model

import (
	"slices"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// NewID returns a fresh entity identifier.
func NewID() string {
	return uuid.NewString()
}

// DefaultWidgets returns one visible widget per known type in default order.
func DefaultWidgets() []Widget {
	widgets := make([]Widget, 0, len(WidgetTypes))
	for i, t := range WidgetTypes {
		widgets = append(widgets, Widget{
			ID:      string(t),
			Type:    t,
			Visible: defaultVisible(t),
			Order:   i,
		})
	}
	return widgets
}

func defaultVisible(t WidgetType) bool {
	return t != WidgetTimer
}

// DefaultState is the state of a user with no stored data.
func DefaultState() AppState {
	return AppState{
		Moods:     []MoodEntry{},
		Goals:     []Goal{},
		Reminders: []Reminder{},
		Habits:    []Habit{},
		Lists:     []List{},
		BrainDump: []BrainDumpItem{},
		Widgets:   DefaultWidgets(),
	}
}

// Normalize repairs partial or legacy states so every collection is present
// and the widget set covers every known type exactly once.
func Normalize(s AppState) AppState {
	if s.Moods == nil {
		s.Moods = []MoodEntry{}
	}
	if s.Goals == nil {
		s.Goals = []Goal{}
	}
	if s.Reminders == nil {
		s.Reminders = []Reminder{}
	}
	if s.Habits == nil {
		s.Habits = []Habit{}
	}
	if s.BrainDump == nil {
		s.BrainDump = []BrainDumpItem{}
	}
	if s.Streak < 0 {
		s.Streak = 0
	}

	s.Moods = dedupeMoods(s.Moods)
	s.Lists = normalizeLists(s.Lists)
	s.Habits = normalizeHabits(s.Habits)
	s.Widgets = normalizeWidgets(s.Widgets)
	return s
}

// dedupeMoods keeps the last entry for each date.
func dedupeMoods(moods []MoodEntry) []MoodEntry {
	index := make(map[string]int, len(moods))
	out := make([]MoodEntry, 0, len(moods))
	for _, m := range moods {
		if strings.TrimSpace(m.Date) == "" {
			continue
		}
		if i, ok := index[m.Date]; ok {
			out[i] = m
			continue
		}
		index[m.Date] = len(out)
		out = append(out, m)
	}
	return out
}

func normalizeLists(lists []List) []List {
	out := make([]List, 0, len(lists))
	for _, l := range lists {
		if l.ID == "" {
			l.ID = NewID()
		}
		items := make([]ListItem, 0, len(l.Items))
		for _, item := range l.Items {
			text := strings.TrimSpace(item.Text)
			if text == "" {
				continue
			}
			item.Text = text
			if item.ID == "" {
				item.ID = NewID()
			}
			items = append(items, item)
		}
		l.Items = items
		out = append(out, l)
	}
	return out
}

func normalizeHabits(habits []Habit) []Habit {
	for i := range habits {
		if habits[i].CompletedDates == nil {
			habits[i].CompletedDates = []string{}
		}
		if habits[i].Frequency != Weekly {
			habits[i].Frequency = Daily
		}
		habits[i].Streak = HabitStreak(habits[i].Frequency, habits[i].CompletedDates)
	}
	return habits
}

func normalizeWidgets(widgets []Widget) []Widget {
	seen := make(map[WidgetType]bool, len(WidgetTypes))
	out := make([]Widget, 0, len(WidgetTypes))
	for _, w := range widgets {
		if !w.Type.Valid() || seen[w.Type] {
			continue
		}
		seen[w.Type] = true
		if w.ID == "" {
			w.ID = string(w.Type)
		}
		out = append(out, w)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Order < out[j].Order })

	for _, t := range WidgetTypes {
		if seen[t] {
			continue
		}
		out = append(out, Widget{ID: string(t), Type: t, Visible: defaultVisible(t)})
	}
	for i := range out {
		out[i].Order = i
	}
	return out
}

// Clone returns a deep copy that shares no slices with s.
func (s AppState) Clone() AppState {
	dup := s
	dup.Moods = slices.Clone(s.Moods)
	dup.Goals = slices.Clone(s.Goals)
	for i, g := range dup.Goals {
		if g.Progress != nil {
			p := *g.Progress
			g.Progress = &p
		}
		if g.CompletedAt != nil {
			t := *g.CompletedAt
			g.CompletedAt = &t
		}
		dup.Goals[i] = g
	}
	dup.Reminders = slices.Clone(s.Reminders)
	for i, r := range dup.Reminders {
		if r.CompletedAt != nil {
			t := *r.CompletedAt
			r.CompletedAt = &t
		}
		dup.Reminders[i] = r
	}
	dup.Habits = slices.Clone(s.Habits)
	for i, h := range dup.Habits {
		h.CompletedDates = slices.Clone(h.CompletedDates)
		dup.Habits[i] = h
	}
	dup.Lists = slices.Clone(s.Lists)
	for i, l := range dup.Lists {
		l.Items = slices.Clone(l.Items)
		dup.Lists[i] = l
	}
	dup.BrainDump = slices.Clone(s.BrainDump)
	dup.Widgets = slices.Clone(s.Widgets)
	return dup
}
