package model

import "time"

// Mood is the value picked during a daily check-in.
type Mood string

const (
	MoodAmazing Mood = "amazing"
	MoodGood    Mood = "good"
	MoodOkay    Mood = "okay"
	MoodLow     Mood = "low"
	MoodRough   Mood = "rough"
)

// Moods lists the accepted moods from best to worst.
var Moods = []Mood{MoodAmazing, MoodGood, MoodOkay, MoodLow, MoodRough}

func (m Mood) Valid() bool {
	for _, known := range Moods {
		if m == known {
			return true
		}
	}
	return false
}

// Frequency controls how habit completions are grouped into a streak.
type Frequency string

const (
	Daily  Frequency = "daily"
	Weekly Frequency = "weekly"
)

// GameType names the mini-game attached to a habit.
type GameType string

const (
	GameMemory    GameType = "memory"
	GameReaction  GameType = "reaction"
	GameSequence  GameType = "sequence"
	GameBreathing GameType = "breathing"
)

// WidgetType is the fixed set of dashboard widgets.
type WidgetType string

const (
	WidgetFocus     WidgetType = "focus"
	WidgetMood      WidgetType = "mood"
	WidgetStreak    WidgetType = "streak"
	WidgetGoals     WidgetType = "goals"
	WidgetReminders WidgetType = "reminders"
	WidgetHabits    WidgetType = "habits"
	WidgetTimer     WidgetType = "timer"
	WidgetBrainDump WidgetType = "braindump"
	WidgetLists     WidgetType = "lists"
)

// WidgetTypes is the dashboard default order.
var WidgetTypes = []WidgetType{
	WidgetFocus,
	WidgetMood,
	WidgetStreak,
	WidgetGoals,
	WidgetReminders,
	WidgetHabits,
	WidgetTimer,
	WidgetBrainDump,
	WidgetLists,
}

func (w WidgetType) Valid() bool {
	for _, known := range WidgetTypes {
		if w == known {
			return true
		}
	}
	return false
}

// MoodEntry is one check-in per calendar day.
type MoodEntry struct {
	Date       string `json:"date"`
	Mood       Mood   `json:"mood"`
	Reflection string `json:"reflection,omitempty"`
}

// Goal is a user-defined objective with optional progress tracking.
type Goal struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	DueDate     string     `json:"dueDate"`
	Completed   bool       `json:"completed"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	Progress    *int       `json:"progress,omitempty"`
	Notes       string     `json:"notes,omitempty"`
}

// Sound holds the alert preferences of a reminder.
type Sound struct {
	Enabled bool   `json:"enabled"`
	Name    string `json:"name,omitempty"`
}

// Reminder fires a notification at DueAt and is then marked completed.
type Reminder struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	DueAt       time.Time  `json:"dueAt"`
	Completed   bool       `json:"completed"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	Sound       Sound      `json:"sound"`
}

// Habit tracks completion days; Streak is derived from CompletedDates.
type Habit struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	Frequency      Frequency `json:"frequency"`
	CompletedDates []string  `json:"completedDates"`
	Streak         int       `json:"streak"`
	CreatedAt      time.Time `json:"createdAt"`
	Color          string    `json:"color"`
	Game           GameType  `json:"gameType"`
}

type ListItem struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	Completed bool   `json:"completed"`
}

// List is a named checklist, independent of goals.
type List struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Items     []ListItem `json:"items"`
	CreatedAt time.Time  `json:"createdAt"`
}

type BrainDumpItem struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}

// Widget places one dashboard widget; Order is only used for column placement.
type Widget struct {
	ID      string     `json:"id"`
	Type    WidgetType `json:"type"`
	Visible bool       `json:"visible"`
	Order   int        `json:"order"`
}

// AppState is the single persisted aggregate of a user's data.
type AppState struct {
	Moods       []MoodEntry     `json:"moods"`
	Goals       []Goal          `json:"goals"`
	Reminders   []Reminder      `json:"reminders"`
	Habits      []Habit         `json:"habits"`
	Lists       []List          `json:"lists"`
	BrainDump   []BrainDumpItem `json:"brainDump"`
	TodayFocus  string          `json:"todayFocus"`
	LastCheckIn string          `json:"lastCheckIn"`
	Streak      int             `json:"streak"`
	Widgets     []Widget        `json:"widgets"`
}

// UserID identifies an authenticated account.
type UserID string
