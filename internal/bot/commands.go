package bot

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"brainbounce/internal/auth"
	"brainbounce/internal/model"
	"brainbounce/internal/remote"
	"brainbounce/internal/service"
)

const helpText = "ℹ️ <b>What I can do</b>\n" +
	"<b>Check-in</b>\n" +
	"• /mood &lt;amazing|good|okay|low|rough&gt; [note] · /moods\n" +
	"• /focus [text|clear]\n" +
	"<b>Goals</b>\n" +
	"• /goal title | YYYY-MM-DD | description · /goals\n" +
	"• /done &lt;n&gt; · /progress &lt;n&gt; &lt;0-100&gt; · /delgoal &lt;n&gt;\n" +
	"<b>Reminders</b>\n" +
	"• /remind HH:MM title · /remind in 30m title · /remind YYYY-MM-DD HH:MM title\n" +
	"• /reminders · /delremind &lt;n&gt;\n" +
	"<b>Habits</b>\n" +
	"• /habit title [| weekly] · /habits · /check &lt;n&gt; [date] · /delhabit &lt;n&gt;\n" +
	"<b>Lists</b>\n" +
	"• /list name · /lists · /item &lt;list&gt; text · /tick &lt;list&gt; &lt;item&gt; · /dellist &lt;n&gt;\n" +
	"<b>Brain dump</b>\n" +
	"• /dump text (or just send me a message) · /dumps · /dumpclear\n" +
	"<b>Dashboard</b>\n" +
	"• /dashboard · /widget &lt;type&gt; · /move &lt;type&gt; &lt;position&gt; · /widgetsreset\n" +
	"<b>Account</b>\n" +
	"• /login &lt;token&gt; · /logout · /profile [name] · /status · /sync · /reload\n" +
	"• /forget deletes your cloud copy and signs you out"

func (b *Bot) handleCommand(ctx context.Context, s *session, msg *tgbotapi.Message) error {
	args := strings.TrimSpace(msg.CommandArguments())

	switch msg.Command() {
	case "start":
		return b.handleStart(s, msg)
	case "help":
		return b.handleHelp(s)
	case "status":
		return b.handleStatus(ctx, s)
	case "mood":
		return b.handleMood(s, args)
	case "moods":
		return b.handleMoods(s)
	case "focus":
		return b.handleFocus(s, args)
	case "goal":
		return b.handleAddGoal(s, args)
	case "goals":
		return b.handleGoals(s)
	case "done":
		return b.handleDone(s, args)
	case "progress":
		return b.handleProgress(s, args)
	case "delgoal":
		return b.handleDeleteGoal(s, args)
	case "remind":
		return b.handleRemind(s, args)
	case "reminders":
		return b.handleReminders(s)
	case "delremind":
		return b.handleDeleteReminder(s, args)
	case "habit":
		return b.handleAddHabit(s, args)
	case "habits":
		return b.handleHabits(s)
	case "check":
		return b.handleCheck(s, args)
	case "delhabit":
		return b.handleDeleteHabit(s, args)
	case "list":
		return b.handleAddList(s, args)
	case "lists":
		return b.handleLists(s)
	case "item":
		return b.handleAddItem(s, args)
	case "tick":
		return b.handleTick(s, args)
	case "dellist":
		return b.handleDeleteList(s, args)
	case "dump":
		return b.handleDump(s, args)
	case "dumps":
		return b.handleDumps(s)
	case "dumpclear":
		return b.handleDumpClear(s)
	case "dashboard":
		return b.handleDashboard(s)
	case "widget":
		return b.handleWidget(s, args)
	case "move":
		return b.handleMove(s, args)
	case "widgetsreset":
		return b.handleWidgetsReset(s)
	case "login":
		return b.handleLogin(ctx, s, msg, args)
	case "logout":
		return b.handleLogout(ctx, s)
	case "profile":
		return b.handleProfile(ctx, s, args)
	case "sync":
		return b.handleSync(ctx, s)
	case "reload":
		return b.handleReload(ctx, s)
	case "forget":
		return b.handleForget(ctx, s)
	default:
		return b.sendText(s.chatID, "I don't know that command. Take a look at /help.")
	}
}

func (b *Bot) handleStart(s *session, msg *tgbotapi.Message) error {
	name := strings.TrimSpace(msg.From.FirstName)
	if name == "" {
		name = "friend"
	}
	text := fmt.Sprintf("👋 Hi, %s!\n<b>I'm BrainBounce: a gentle place for moods, goals, habits and everything on your mind.</b>\n\n"+
		"Start with /mood to check in, /focus to pick one thing for today, or just send me any thought.\n"+
		"Everything is kept in this chat. /login connects it to your account so it follows you everywhere.\n\n%s",
		escape(name), helpText)
	return b.sendText(s.chatID, text)
}

func (b *Bot) handleHelp(s *session) error {
	return b.sendText(s.chatID, helpText)
}

func (b *Bot) handleStatus(ctx context.Context, s *session) error {
	status := s.coord.SyncStatus()

	var sb strings.Builder
	sb.WriteString("🔄 <b>Sync status</b>\n")
	if user := s.gate.Current(); user != nil {
		sb.WriteString(fmt.Sprintf("👤 %s (%s)\n", escape(displayName(user)), escape(string(user.ID))))
	} else {
		sb.WriteString("👤 guest, data stays in this chat\n")
	}
	switch {
	case status.User == "":
		sb.WriteString("☁️ cloud: not signed in\n")
	case status.Remote == remote.StateDisabled:
		sb.WriteString("☁️ cloud: <b>off</b>, access denied, /sync to retry\n")
	case status.Available:
		if s.remote.Probe(ctx) {
			sb.WriteString("☁️ cloud: reachable\n")
		} else {
			sb.WriteString("☁️ cloud: not answering, changes are kept in this chat\n")
		}
	default:
		sb.WriteString("☁️ cloud: not configured\n")
	}
	if status.PendingRemote > 0 {
		sb.WriteString(fmt.Sprintf("⏳ %d change(s) waiting for the cloud, /sync to push\n", status.PendingRemote))
	}
	if status.Dirty {
		sb.WriteString("✏️ unsaved changes, saving in a moment\n")
	}
	sb.WriteString(fmt.Sprintf("💾 saved on this device %d time(s)\n", status.LocalWrites))
	if status.DataLoadError != "" {
		sb.WriteString(fmt.Sprintf("⚠️ %s /reload to try again\n", escape(status.DataLoadError)))
	}
	return b.sendText(s.chatID, strings.TrimSpace(sb.String()))
}

func displayName(u *auth.User) string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	if u.Email != "" {
		return u.Email
	}
	return string(u.ID)
}

// Moods

func (b *Bot) handleMood(s *session, args string) error {
	if args == "" {
		return b.sendWithReplyMarkup(s.chatID, "💭 How are you feeling today?", moodKeyboard())
	}
	word, note, _ := strings.Cut(args, " ")
	mood, ok := parseMood(word)
	if !ok {
		return b.sendText(s.chatID, "Pick one of: amazing, good, okay, low, rough.")
	}
	return b.logMood(s, mood, note)
}

func (b *Bot) logMood(s *session, mood model.Mood, note string) error {
	if _, err := s.coord.AddMood(mood, note); err != nil {
		return b.replyError(s.chatID, err)
	}
	state := s.coord.Snapshot()
	return b.sendText(s.chatID, fmt.Sprintf("%s Logged <b>%s</b> for today. Streak: %d.", service.MoodIcon(mood), mood, state.Streak))
}

func (b *Bot) handleMoods(s *session) error {
	moods := s.coord.Snapshot().Moods
	if len(moods) == 0 {
		return b.sendText(s.chatID, "No check-ins yet. Try /mood.")
	}
	start := len(moods) - 7
	if start < 0 {
		start = 0
	}
	var sb strings.Builder
	sb.WriteString("💭 <b>Recent moods</b>\n")
	for _, m := range moods[start:] {
		sb.WriteString(fmt.Sprintf("%s %s · %s", service.MoodIcon(m.Mood), escape(m.Date), m.Mood))
		if m.Reflection != "" {
			sb.WriteString(" · <i>" + escape(m.Reflection) + "</i>")
		}
		sb.WriteByte('\n')
	}
	return b.sendText(s.chatID, strings.TrimSpace(sb.String()))
}

func (b *Bot) handleFocus(s *session, args string) error {
	switch {
	case args == "":
		focus := s.coord.Snapshot().TodayFocus
		if focus == "" {
			return b.sendText(s.chatID, "🎯 No focus yet. /focus <i>one thing</i> sets it.")
		}
		return b.sendText(s.chatID, "🎯 Today's focus: <b>"+escape(focus)+"</b>")
	case strings.EqualFold(args, "clear"):
		if err := s.coord.ClearFocus(); err != nil {
			return b.replyError(s.chatID, err)
		}
		return b.sendText(s.chatID, "🎯 Focus cleared.")
	default:
		if err := s.coord.SetFocus(args); err != nil {
			return b.replyError(s.chatID, err)
		}
		return b.sendText(s.chatID, "🎯 Got it. Today is about: <b>"+escape(args)+"</b>")
	}
}

// Goals

func (b *Bot) handleAddGoal(s *session, args string) error {
	if args == "" {
		return b.sendText(s.chatID, "Usage: /goal title | YYYY-MM-DD | description")
	}
	fields := splitFields(args)
	in := service.GoalInput{Title: fields[0]}
	if len(fields) > 1 {
		in.DueDate = fields[1]
	}
	if len(fields) > 2 {
		in.Description = fields[2]
	}
	goal, err := s.coord.AddGoal(in)
	if err != nil {
		return b.replyError(s.chatID, err)
	}
	return b.sendText(s.chatID, "🏁 New goal: <b>"+escape(goal.Title)+"</b>. /goals shows them all.")
}

func (b *Bot) handleGoals(s *session) error {
	goals := s.coord.Snapshot().Goals
	if len(goals) == 0 {
		return b.sendText(s.chatID, "No goals yet. Add one with /goal.")
	}

	var sb strings.Builder
	sb.WriteString("🏁 <b>Goals</b>\nTap a button to mark a goal done or open again.\n\n")
	var buttons [][]tgbotapi.InlineKeyboardButton
	for i, g := range goals {
		mark := "⬜"
		if g.Completed {
			mark = "✅"
		}
		sb.WriteString(fmt.Sprintf("%d. %s %s", i+1, mark, escape(g.Title)))
		if g.Progress != nil {
			sb.WriteString(fmt.Sprintf(" · %d%%", *g.Progress))
		}
		if g.DueDate != "" {
			sb.WriteString(" · due " + escape(g.DueDate))
		}
		sb.WriteByte('\n')
		buttons = append(buttons, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("%s #%d · %s", mark, i+1, shortTitle(g.Title, 24)), cbGoalPrefix+g.ID),
		))
	}
	return b.sendWithReplyMarkup(s.chatID, strings.TrimSpace(sb.String()), tgbotapi.NewInlineKeyboardMarkup(buttons...))
}

func (b *Bot) goalAt(s *session, arg string) (model.Goal, error) {
	goals := s.coord.Snapshot().Goals
	i, err := parseIndex(arg, len(goals))
	if err != nil {
		return model.Goal{}, fmt.Errorf("%w: %v", service.ErrInvalidInput, err)
	}
	return goals[i], nil
}

func goalToggledText(g model.Goal) string {
	if g.Completed {
		return "🎉 Done: <b>" + escape(g.Title) + "</b>"
	}
	return "↩️ Reopened: <b>" + escape(g.Title) + "</b>"
}

func (b *Bot) handleDone(s *session, args string) error {
	goal, err := b.goalAt(s, args)
	if err != nil {
		return b.replyError(s.chatID, err)
	}
	toggled, err := s.coord.ToggleGoal(goal.ID)
	if err != nil {
		return b.replyError(s.chatID, err)
	}
	return b.sendText(s.chatID, goalToggledText(toggled))
}

func (b *Bot) handleProgress(s *session, args string) error {
	fields := strings.Fields(args)
	if len(fields) != 2 {
		return b.sendText(s.chatID, "Usage: /progress &lt;n&gt; &lt;0-100&gt;")
	}
	goal, err := b.goalAt(s, fields[0])
	if err != nil {
		return b.replyError(s.chatID, err)
	}
	p, err := strconv.Atoi(strings.TrimSuffix(fields[1], "%"))
	if err != nil {
		return b.sendText(s.chatID, "Progress must be a number between 0 and 100.")
	}
	if err := s.coord.UpdateGoal(goal.ID, service.GoalPatch{Progress: &p}); err != nil {
		return b.replyError(s.chatID, err)
	}
	return b.sendText(s.chatID, fmt.Sprintf("📈 <b>%s</b> is at %d%%.", escape(goal.Title), p))
}

func (b *Bot) handleDeleteGoal(s *session, args string) error {
	goal, err := b.goalAt(s, args)
	if err != nil {
		return b.replyError(s.chatID, err)
	}
	if err := s.coord.DeleteGoal(goal.ID); err != nil {
		return b.replyError(s.chatID, err)
	}
	return b.sendText(s.chatID, "🗑 Deleted goal <b>"+escape(goal.Title)+"</b>.")
}

// Reminders

func reminderText(r model.Reminder) string {
	icon := "⏰"
	if r.Sound.Enabled {
		icon = "🔔"
	}
	return fmt.Sprintf("%s <b>Reminder</b>: %s", icon, escape(r.Title))
}

func (b *Bot) handleRemind(s *session, args string) error {
	due, title, err := parseDue(args, time.Now())
	if err != nil {
		return b.sendText(s.chatID, fmt.Sprintf("✋ %s\nUsage: /remind HH:MM title, /remind in 30m title or /remind YYYY-MM-DD HH:MM title", escape(err.Error())))
	}
	r, err := s.coord.AddReminder(title, due, model.Sound{Enabled: true})
	if err != nil {
		return b.replyError(s.chatID, err)
	}
	return b.sendText(s.chatID, fmt.Sprintf("⏰ I'll remind you about <b>%s</b> on %s.", escape(r.Title), r.DueAt.Format("02 Jan 15:04")))
}

func (b *Bot) handleReminders(s *session) error {
	reminders := s.coord.Snapshot().Reminders
	if len(reminders) == 0 {
		return b.sendText(s.chatID, "No reminders. Add one with /remind.")
	}
	var sb strings.Builder
	sb.WriteString("⏰ <b>Reminders</b>\n")
	for i, r := range reminders {
		mark := "🔔"
		if r.Completed {
			mark = "✅"
		}
		sb.WriteString(fmt.Sprintf("%d. %s %s · %s\n", i+1, mark, escape(r.Title), r.DueAt.Local().Format("02 Jan 15:04")))
	}
	return b.sendText(s.chatID, strings.TrimSpace(sb.String()))
}

func (b *Bot) handleDeleteReminder(s *session, args string) error {
	reminders := s.coord.Snapshot().Reminders
	i, err := parseIndex(args, len(reminders))
	if err != nil {
		return b.sendText(s.chatID, "✋ "+escape(err.Error()))
	}
	if err := s.coord.DeleteReminder(reminders[i].ID); err != nil {
		return b.replyError(s.chatID, err)
	}
	return b.sendText(s.chatID, "🗑 Deleted reminder <b>"+escape(reminders[i].Title)+"</b>.")
}

// Habits

func habitToggledText(h model.Habit) string {
	return fmt.Sprintf("🌱 <b>%s</b>: %d completion(s), best run %d.", escape(h.Title), len(h.CompletedDates), h.Streak)
}

func (b *Bot) handleAddHabit(s *session, args string) error {
	if args == "" {
		return b.sendText(s.chatID, "Usage: /habit title [| weekly]")
	}
	fields := splitFields(args)
	in := service.HabitInput{Title: fields[0]}
	if len(fields) > 1 {
		in.Frequency = model.Frequency(strings.ToLower(fields[1]))
	}
	habit, err := s.coord.AddHabit(in)
	if err != nil {
		return b.replyError(s.chatID, err)
	}
	return b.sendText(s.chatID, fmt.Sprintf("🌱 New %s habit: <b>%s</b>. /check marks it done.", habit.Frequency, escape(habit.Title)))
}

func (b *Bot) handleHabits(s *session) error {
	habits := s.coord.Snapshot().Habits
	if len(habits) == 0 {
		return b.sendText(s.chatID, "No habits yet. Add one with /habit.")
	}
	today := model.Day(time.Now())

	var sb strings.Builder
	sb.WriteString("🌱 <b>Habits</b>\nTap a button to check off today.\n\n")
	var buttons [][]tgbotapi.InlineKeyboardButton
	for i, h := range habits {
		mark := "⬜"
		for _, d := range h.CompletedDates {
			if model.SameDay(d, today) {
				mark = "✅"
				break
			}
		}
		sb.WriteString(fmt.Sprintf("%d. %s %s · %s · best run %d\n", i+1, mark, escape(h.Title), h.Frequency, h.Streak))
		buttons = append(buttons, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("%s #%d · %s", mark, i+1, shortTitle(h.Title, 24)), cbHabitPrefix+h.ID),
		))
	}
	return b.sendWithReplyMarkup(s.chatID, strings.TrimSpace(sb.String()), tgbotapi.NewInlineKeyboardMarkup(buttons...))
}

func (b *Bot) handleCheck(s *session, args string) error {
	fields := strings.Fields(args)
	if len(fields) == 0 {
		return b.sendText(s.chatID, "Usage: /check &lt;n&gt; [YYYY-MM-DD]")
	}
	habits := s.coord.Snapshot().Habits
	i, err := parseIndex(fields[0], len(habits))
	if err != nil {
		return b.sendText(s.chatID, "✋ "+escape(err.Error()))
	}
	var day string
	if len(fields) > 1 {
		day = fields[1]
	}
	habit, err := s.coord.ToggleHabitDate(habits[i].ID, day)
	if err != nil {
		return b.replyError(s.chatID, err)
	}
	return b.sendText(s.chatID, habitToggledText(habit))
}

func (b *Bot) handleDeleteHabit(s *session, args string) error {
	habits := s.coord.Snapshot().Habits
	i, err := parseIndex(args, len(habits))
	if err != nil {
		return b.sendText(s.chatID, "✋ "+escape(err.Error()))
	}
	if err := s.coord.DeleteHabit(habits[i].ID); err != nil {
		return b.replyError(s.chatID, err)
	}
	return b.sendText(s.chatID, "🗑 Deleted habit <b>"+escape(habits[i].Title)+"</b>.")
}

// Lists

func (b *Bot) handleAddList(s *session, args string) error {
	list, err := s.coord.AddList(args)
	if err != nil {
		return b.replyError(s.chatID, err)
	}
	n := len(s.coord.Snapshot().Lists)
	return b.sendText(s.chatID, fmt.Sprintf("📝 Created list #%d <b>%s</b>. Add items with /item %d text.", n, escape(list.Name), n))
}

func (b *Bot) handleLists(s *session) error {
	lists := s.coord.Snapshot().Lists
	if len(lists) == 0 {
		return b.sendText(s.chatID, "No lists yet. Create one with /list name.")
	}
	var sb strings.Builder
	sb.WriteString("📝 <b>Lists</b>\n")
	var buttons [][]tgbotapi.InlineKeyboardButton
	for li, l := range lists {
		sb.WriteString(fmt.Sprintf("\n<b>%d. %s</b>\n", li+1, escape(l.Name)))
		if len(l.Items) == 0 {
			sb.WriteString("  (empty)\n")
		}
		for ii, it := range l.Items {
			mark := "⬜"
			if it.Completed {
				mark = "✅"
			}
			sb.WriteString(fmt.Sprintf("  %d. %s %s\n", ii+1, mark, escape(it.Text)))
			buttons = append(buttons, tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("%s %d.%d %s", mark, li+1, ii+1, shortTitle(it.Text, 20)), fmt.Sprintf("%s%d:%d", cbTickPrefix, li+1, ii+1)),
			))
		}
	}
	if len(buttons) == 0 {
		return b.sendText(s.chatID, strings.TrimSpace(sb.String()))
	}
	return b.sendWithReplyMarkup(s.chatID, strings.TrimSpace(sb.String()), tgbotapi.NewInlineKeyboardMarkup(buttons...))
}

func (b *Bot) listAt(s *session, arg string) (model.List, error) {
	lists := s.coord.Snapshot().Lists
	i, err := parseIndex(arg, len(lists))
	if err != nil {
		return model.List{}, fmt.Errorf("%w: %v", service.ErrInvalidInput, err)
	}
	return lists[i], nil
}

func (b *Bot) handleAddItem(s *session, args string) error {
	listArg, text, ok := strings.Cut(args, " ")
	if !ok {
		return b.sendText(s.chatID, "Usage: /item &lt;list&gt; text")
	}
	list, err := b.listAt(s, listArg)
	if err != nil {
		return b.replyError(s.chatID, err)
	}
	item, err := s.coord.AddListItem(list.ID, text)
	if err != nil {
		return b.replyError(s.chatID, err)
	}
	return b.sendText(s.chatID, fmt.Sprintf("➕ Added <b>%s</b> to %s.", escape(item.Text), escape(list.Name)))
}

func (b *Bot) handleTick(s *session, args string) error {
	fields := strings.Fields(args)
	if len(fields) != 2 {
		return b.sendText(s.chatID, "Usage: /tick &lt;list&gt; &lt;item&gt;")
	}
	return b.tickItem(s, fields[0], fields[1])
}

func (b *Bot) tickItem(s *session, listArg, itemArg string) error {
	list, err := b.listAt(s, listArg)
	if err != nil {
		return b.replyError(s.chatID, err)
	}
	i, err := parseIndex(itemArg, len(list.Items))
	if err != nil {
		return b.sendText(s.chatID, "✋ "+escape(err.Error()))
	}
	item, err := s.coord.ToggleListItem(list.ID, list.Items[i].ID)
	if err != nil {
		return b.replyError(s.chatID, err)
	}
	mark := "⬜"
	if item.Completed {
		mark = "✅"
	}
	return b.sendText(s.chatID, fmt.Sprintf("%s %s · %s", mark, escape(item.Text), escape(list.Name)))
}

func (b *Bot) handleDeleteList(s *session, args string) error {
	list, err := b.listAt(s, args)
	if err != nil {
		return b.replyError(s.chatID, err)
	}
	if err := s.coord.DeleteList(list.ID); err != nil {
		return b.replyError(s.chatID, err)
	}
	return b.sendText(s.chatID, fmt.Sprintf("🗑 Deleted list <b>%s</b> with %d item(s).", escape(list.Name), len(list.Items)))
}

// Brain dump

func (b *Bot) handleDump(s *session, args string) error {
	if _, err := s.coord.AddBrainDump(args); err != nil {
		return b.replyError(s.chatID, err)
	}
	return b.sendText(s.chatID, "🧠 Parked it. /dumps shows everything.")
}

func (b *Bot) handleDumps(s *session) error {
	items := s.coord.Snapshot().BrainDump
	if len(items) == 0 {
		return b.sendText(s.chatID, "🧠 Your brain dump is empty. Send me any thought to park it.")
	}
	var sb strings.Builder
	sb.WriteString("🧠 <b>Brain dump</b>\n")
	for i, item := range items {
		sb.WriteString(fmt.Sprintf("%d. %s\n", i+1, escape(item.Text)))
	}
	return b.sendText(s.chatID, strings.TrimSpace(sb.String()))
}

func (b *Bot) handleDumpClear(s *session) error {
	if err := s.coord.ClearBrainDump(); err != nil {
		return b.replyError(s.chatID, err)
	}
	return b.sendText(s.chatID, "🧹 Brain dump cleared.")
}

// Dashboard

func (b *Bot) handleDashboard(s *session) error {
	return b.sendText(s.chatID, b.deps.Reminders.DailySummary(s.coord.Snapshot()))
}

func (b *Bot) handleWidget(s *session, args string) error {
	t := model.WidgetType(strings.ToLower(args))
	if !t.Valid() {
		return b.sendText(s.chatID, "Widgets: "+widgetNames())
	}
	w, err := s.coord.ToggleWidget(t)
	if err != nil {
		return b.replyError(s.chatID, err)
	}
	state := "hidden"
	if w.Visible {
		state = "shown"
	}
	return b.sendText(s.chatID, fmt.Sprintf("🧩 The %s widget is now %s.", w.Type, state))
}

func widgetNames() string {
	names := make([]string, 0, len(model.WidgetTypes))
	for _, t := range model.WidgetTypes {
		names = append(names, string(t))
	}
	return strings.Join(names, ", ")
}

func (b *Bot) handleMove(s *session, args string) error {
	fields := strings.Fields(args)
	if len(fields) != 2 {
		return b.sendText(s.chatID, "Usage: /move &lt;widget&gt; &lt;position&gt;")
	}
	t := model.WidgetType(strings.ToLower(fields[0]))
	widgets := s.coord.Snapshot().Widgets
	pos, err := parseIndex(fields[1], len(widgets))
	if err != nil {
		return b.sendText(s.chatID, "✋ "+escape(err.Error()))
	}

	ids := make([]string, 0, len(widgets))
	var moved string
	for _, w := range widgets {
		if w.Type == t {
			moved = w.ID
			continue
		}
		ids = append(ids, w.ID)
	}
	if moved == "" {
		return b.sendText(s.chatID, "Widgets: "+widgetNames())
	}
	ids = append(ids[:pos], append([]string{moved}, ids[pos:]...)...)

	if err := s.coord.ReorderWidgets(ids); err != nil {
		return b.replyError(s.chatID, err)
	}
	return b.sendText(s.chatID, fmt.Sprintf("🧩 Moved %s to position %d.", t, pos+1))
}

func (b *Bot) handleWidgetsReset(s *session) error {
	if err := s.coord.ResetWidgets(); err != nil {
		return b.replyError(s.chatID, err)
	}
	return b.sendText(s.chatID, "🧩 Dashboard layout reset.")
}

// Account

func (b *Bot) handleLogin(ctx context.Context, s *session, msg *tgbotapi.Message, token string) error {
	if token == "" {
		return b.sendText(s.chatID, "Usage: /login &lt;token&gt;")
	}
	// The token is a credential; keep it out of the chat history.
	if _, err := b.api.Request(tgbotapi.NewDeleteMessage(s.chatID, msg.MessageID)); err != nil {
		log.Printf("delete login message in %d: %v", s.chatID, err)
	}

	user, err := s.gate.SignIn(ctx, token)
	switch {
	case errors.Is(err, auth.ErrTokenExpired):
		return b.sendText(s.chatID, "⌛ That token has expired. Ask for a new one.")
	case errors.Is(err, auth.ErrInvalidToken):
		return b.sendText(s.chatID, "🚫 That token is not valid.")
	case err != nil:
		return err
	}
	if err := b.deps.Devices.SetSessionToken(ctx, s.chatID, s.gate.Token()); err != nil {
		log.Printf("store session token for %d: %v", s.chatID, err)
	}

	text := fmt.Sprintf("✅ Signed in as <b>%s</b>.", escape(displayName(user)))
	if msg := s.coord.DataLoadError(); msg != "" {
		text += "\n⚠️ " + escape(msg)
	}
	return b.sendText(s.chatID, text)
}

func (b *Bot) handleLogout(ctx context.Context, s *session) error {
	if s.gate.Current() == nil {
		return b.sendText(s.chatID, "You are not signed in.")
	}
	s.gate.SignOut(ctx)
	if err := b.deps.Devices.SetSessionToken(ctx, s.chatID, ""); err != nil {
		log.Printf("clear session token for %d: %v", s.chatID, err)
	}
	return b.sendText(s.chatID, "👋 Signed out. Data saved in this chat was removed.")
}

func (b *Bot) handleProfile(ctx context.Context, s *session, args string) error {
	if args == "" {
		user := s.gate.Current()
		if user == nil {
			return b.sendText(s.chatID, "You are using BrainBounce as a guest. /login connects an account.")
		}
		return b.sendText(s.chatID, fmt.Sprintf("👤 <b>%s</b>\n✉️ %s\n🗓 member since %s",
			escape(displayName(user)), escape(user.Email), user.CreatedAt.Format("02 Jan 2006")))
	}
	user, err := s.gate.UpdateProfile(ctx, args)
	if errors.Is(err, auth.ErrSignedOut) {
		return b.sendText(s.chatID, "Sign in with /login first.")
	}
	if err != nil {
		return err
	}
	return b.sendText(s.chatID, "👤 You are now <b>"+escape(user.DisplayName)+"</b>.")
}

func (b *Bot) handleSync(ctx context.Context, s *session) error {
	err := s.coord.RetrySync(ctx)
	switch {
	case err == nil:
		return b.sendText(s.chatID, "☁️ Everything is synced.")
	case errors.Is(err, remote.ErrSignedOut):
		return b.sendText(s.chatID, "Sign in with /login to sync across devices.")
	case errors.Is(err, remote.ErrNoClient):
		return b.sendText(s.chatID, "Cloud sync is not configured on this server.")
	case errors.Is(err, remote.ErrSyncDisabled), remote.Classify(err) == remote.CodePermissionDenied:
		return b.sendText(s.chatID, "🚫 The cloud still refuses access. Your data stays safe in this chat.")
	default:
		log.Printf("sync chat %d: %v", s.chatID, err)
		return b.sendText(s.chatID, "⏳ Couldn't reach the cloud. Your changes are queued, try /sync again later.")
	}
}

func (b *Bot) handleReload(ctx context.Context, s *session) error {
	s.coord.RetryDataLoad(ctx)
	if msg := s.coord.DataLoadError(); msg != "" {
		return b.sendText(s.chatID, "⚠️ "+escape(msg))
	}
	return b.sendText(s.chatID, "🔄 Data reloaded.")
}

func (b *Bot) handleForget(ctx context.Context, s *session) error {
	if s.gate.Current() == nil {
		return b.sendText(s.chatID, "You are not signed in, nothing is stored in the cloud.")
	}
	if err := s.coord.DeleteCloudData(ctx); err != nil {
		switch {
		case errors.Is(err, remote.ErrNoClient):
			return b.sendText(s.chatID, "Cloud sync is not configured on this server.")
		case errors.Is(err, remote.ErrSyncDisabled), remote.Classify(err) == remote.CodePermissionDenied:
			return b.sendText(s.chatID, "🚫 The cloud refuses access right now, so nothing was deleted. Try /sync first.")
		default:
			log.Printf("delete cloud data for chat %d: %v", s.chatID, err)
			return b.sendText(s.chatID, "⏳ Couldn't reach the cloud, nothing was deleted. Try again later.")
		}
	}
	s.gate.SignOut(ctx)
	if err := b.deps.Devices.SetSessionToken(ctx, s.chatID, ""); err != nil {
		log.Printf("clear session token for %d: %v", s.chatID, err)
	}
	return b.sendText(s.chatID, "🗑 Your cloud copy is gone and you are signed out of this chat.")
}
