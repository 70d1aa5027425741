package bot

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log"
	"strconv"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"brainbounce/internal/auth"
	"brainbounce/internal/config"
	"brainbounce/internal/localstore"
	"brainbounce/internal/model"
	"brainbounce/internal/remote"
	"brainbounce/internal/repository"
	"brainbounce/internal/service"
)

const (
	cbMoodPrefix  = "mood:"
	cbGoalPrefix  = "goal:"
	cbHabitPrefix = "habit:"
	cbTickPrefix  = "tick:"
)

const (
	menuLabelDashboard = "📋 Dashboard"
	menuLabelGoals     = "🏁 Goals"
	menuLabelHabits    = "🌱 Habits"
	menuLabelHelp      = "ℹ️ Help"
)

const permissionAlert = "⚠️ <b>Cloud sync is off.</b>\nThe cloud refused access to your data, so changes are only kept in this chat for now. Use /sync to try again."

// session is one chat acting as one device of the app.
type session struct {
	chatID int64
	gate   *auth.Gate
	coord  *service.Coordinator
	remote *remote.Store
}

// Deps are the collaborators shared by every session.
type Deps struct {
	Devices   *repository.DeviceRepository
	Accounts  *repository.AccountRepository
	Documents remote.Documents
	LocalDB   *localstore.DB
	Issuer    *auth.Issuer
	Reminders *service.ReminderService
	Config    *config.Config
}

// Bot aggregates Telegram API with services.
type Bot struct {
	api  *tgbotapi.BotAPI
	deps Deps

	mu       sync.Mutex
	sessions map[int64]*session
}

func New(token string, deps Deps) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	log.Printf("[info] bot authorized on account %s", api.Self.UserName)

	return &Bot{
		api:      api,
		deps:     deps,
		sessions: make(map[int64]*session),
	}, nil
}

// Start restores known chats and polls updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	if err := b.restoreSessions(ctx); err != nil {
		log.Printf("restore sessions: %v", err)
	}

	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := b.api.GetUpdatesChan(updateConfig)

	log.Println("[info] start polling updates")

	go func() {
		<-ctx.Done()
		b.api.StopReceivingUpdates()
	}()

	for update := range updates {
		switch {
		case update.CallbackQuery != nil:
			if err := b.handleCallback(ctx, update.CallbackQuery); err != nil {
				log.Printf("handle callback: %v", err)
			}
		case update.Message != nil:
			if update.Message.Chat == nil || !update.Message.Chat.IsPrivate() {
				continue
			}
			if err := b.handleMessage(ctx, update.Message); err != nil {
				log.Printf("handle message: %v", err)
			}
		}
	}

	return nil
}

// Shutdown writes pending changes of every chat and closes subscriptions.
func (b *Bot) Shutdown(ctx context.Context) {
	for _, s := range b.allSessions() {
		if err := s.coord.Flush(ctx); err != nil {
			log.Printf("flush chat %d: %v", s.chatID, err)
		}
		s.remote.Cleanup()
	}
}

func deviceKey(chatID int64) string {
	return "chat-" + strconv.FormatInt(chatID, 10)
}

func (b *Bot) restoreSessions(ctx context.Context) error {
	devices, err := b.deps.Devices.ListAll(ctx)
	if err != nil {
		return err
	}
	for _, d := range devices {
		if _, err := b.session(ctx, d.ChatID); err != nil {
			log.Printf("restore chat %d: %v", d.ChatID, err)
		}
	}
	log.Printf("[info] restored %d sessions", len(devices))
	return nil
}

func (b *Bot) allSessions() []*session {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*session, 0, len(b.sessions))
	for _, s := range b.sessions {
		out = append(out, s)
	}
	return out
}

// session returns the chat's session, creating and loading it on first use.
func (b *Bot) session(ctx context.Context, chatID int64) (*session, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if s, ok := b.sessions[chatID]; ok {
		return s, nil
	}

	cfg := b.deps.Config
	device := deviceKey(chatID)
	local := b.deps.LocalDB.Device(device, cfg.LocalQuotaBytes)

	remoteCfg := remote.DefaultConfig()
	remoteCfg.MaxAttempts = cfg.RemoteMaxAttempts
	remoteCfg.MaxDelay = cfg.RemoteMaxDelay
	rs := remote.New(b.deps.Documents, local, device, remoteCfg)
	rs.OnPermissionDenied(func() {
		if err := b.sendText(chatID, permissionAlert); err != nil {
			log.Printf("send permission alert to %d: %v", chatID, err)
		}
	})

	coord := service.NewCoordinator(local, rs, service.WithDebounce(cfg.Debounce))
	gate := auth.NewGate(b.deps.Issuer, b.deps.Accounts)
	gate.OnChange(func(ctx context.Context, prev, next *auth.User) {
		if next == nil {
			coord.SignOut(ctx)
			return
		}
		coord.SetUser(ctx, next)
	})

	s := &session{chatID: chatID, gate: gate, coord: coord, remote: rs}
	coord.SetUser(ctx, nil)

	if token := b.storedToken(ctx, chatID); token != "" {
		if _, err := gate.SignIn(ctx, token); err != nil {
			log.Printf("restore login for chat %d: %v", chatID, err)
			if err := b.deps.Devices.SetSessionToken(ctx, chatID, ""); err != nil {
				log.Printf("clear session token for chat %d: %v", chatID, err)
			}
		}
	}

	b.sessions[chatID] = s
	return s, nil
}

func (b *Bot) storedToken(ctx context.Context, chatID int64) string {
	device, err := b.deps.Devices.FindByChatID(ctx, chatID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			log.Printf("find device %d: %v", chatID, err)
		}
		return ""
	}
	return device.SessionToken
}

func (b *Bot) ensureDevice(ctx context.Context, msg *tgbotapi.Message) (*session, error) {
	if msg.From != nil {
		if _, err := b.deps.Devices.UpsertFromTelegram(ctx, msg.Chat.ID, msg.From.FirstName, msg.From.UserName); err != nil {
			return nil, err
		}
	}
	return b.session(ctx, msg.Chat.ID)
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) error {
	if msg.From == nil {
		return nil
	}

	s, err := b.ensureDevice(ctx, msg)
	if err != nil {
		return err
	}

	if msg.IsCommand() {
		log.Printf("[info] command from %d: /%s", msg.Chat.ID, msg.Command())
		return b.handleCommand(ctx, s, msg)
	}

	if handled, err := b.handleMenuAlias(s, msg); handled {
		return err
	}

	// Plain text goes to the brain dump, the fastest place to park a thought.
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return nil
	}
	if _, err := s.coord.AddBrainDump(text); err != nil {
		return b.replyError(s.chatID, err)
	}
	return b.sendText(s.chatID, "🧠 Saved to your brain dump. /dumps shows everything.")
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	if cb == nil || cb.From == nil || cb.Message == nil {
		return nil
	}
	if _, err := b.api.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		log.Printf("callback ack: %v", err)
	}

	s, err := b.session(ctx, cb.Message.Chat.ID)
	if err != nil {
		return err
	}
	data := cb.Data
	log.Printf("[info] callback from %d: %s", s.chatID, data)

	switch {
	case strings.HasPrefix(data, cbMoodPrefix):
		mood, ok := parseMood(strings.TrimPrefix(data, cbMoodPrefix))
		if !ok {
			return nil
		}
		return b.logMood(s, mood, "")

	case strings.HasPrefix(data, cbGoalPrefix):
		goal, err := s.coord.ToggleGoal(strings.TrimPrefix(data, cbGoalPrefix))
		if err != nil {
			return b.replyError(s.chatID, err)
		}
		return b.sendText(s.chatID, goalToggledText(goal))

	case strings.HasPrefix(data, cbHabitPrefix):
		habit, err := s.coord.ToggleHabitDate(strings.TrimPrefix(data, cbHabitPrefix), "")
		if err != nil {
			return b.replyError(s.chatID, err)
		}
		return b.sendText(s.chatID, habitToggledText(habit))

	case strings.HasPrefix(data, cbTickPrefix):
		parts := strings.SplitN(strings.TrimPrefix(data, cbTickPrefix), ":", 2)
		if len(parts) != 2 {
			return nil
		}
		return b.tickItem(s, parts[0], parts[1])
	}
	return nil
}

// SendDueReminders delivers reminders that became due in every chat.
func (b *Bot) SendDueReminders(ctx context.Context) error {
	for _, s := range b.allSessions() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		chatID := s.chatID
		sent, err := b.deps.Reminders.Dispatch(ctx, s.coord, func(_ context.Context, r model.Reminder) error {
			return b.sendText(chatID, reminderText(r))
		})
		if err != nil {
			log.Printf("reminders for chat %d: %v", chatID, err)
		}
		if sent > 0 {
			log.Printf("[info] delivered %d reminders to chat %d", sent, chatID)
		}
	}
	return nil
}

// SendDailyReports sends the dashboard to every chat and asks for a mood
// check-in where none was logged today.
func (b *Bot) SendDailyReports(ctx context.Context) error {
	for _, s := range b.allSessions() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		state := s.coord.Snapshot()
		if err := b.sendText(s.chatID, b.deps.Reminders.DailySummary(state)); err != nil {
			log.Printf("send summary to %d: %v", s.chatID, err)
			continue
		}
		if b.deps.Reminders.NeedsNudge(state) {
			if err := b.sendWithReplyMarkup(s.chatID, "💭 How are you feeling today?", moodKeyboard()); err != nil {
				log.Printf("send nudge to %d: %v", s.chatID, err)
			}
		}
	}
	return nil
}

// replyError turns a mutation error into a chat message.
func (b *Bot) replyError(chatID int64, err error) error {
	var text string
	switch {
	case errors.Is(err, service.ErrNotFound):
		text = "🤔 I couldn't find that one. Check the number in the list and try again."
	case errors.Is(err, service.ErrInvalidInput):
		text = "✋ " + escape(strings.TrimPrefix(err.Error(), service.ErrInvalidInput.Error()+": "))
	case errors.Is(err, service.ErrNotInitialized):
		text = "⏳ Still loading your data, try again in a moment."
	default:
		log.Printf("chat %d: %v", chatID, err)
		text = "😵 Something went wrong. Your data is safe, try /reload if it keeps happening."
	}
	return b.sendText(chatID, text)
}

func (b *Bot) sendText(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = mainMenuKeyboard()
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) sendWithReplyMarkup(chatID int64, text string, markup interface{}) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = markup
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) handleMenuAlias(s *session, msg *tgbotapi.Message) (bool, error) {
	text := strings.TrimSpace(strings.ToLower(msg.Text))
	switch text {
	case strings.ToLower(menuLabelDashboard):
		return true, b.handleDashboard(s)
	case strings.ToLower(menuLabelGoals):
		return true, b.handleGoals(s)
	case strings.ToLower(menuLabelHabits):
		return true, b.handleHabits(s)
	case strings.ToLower(menuLabelHelp):
		return true, b.handleHelp(s)
	default:
		return false, nil
	}
}

func mainMenuKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuLabelDashboard),
			tgbotapi.NewKeyboardButton(menuLabelGoals),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuLabelHabits),
			tgbotapi.NewKeyboardButton(menuLabelHelp),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = false
	return kb
}

func moodKeyboard() tgbotapi.InlineKeyboardMarkup {
	var row []tgbotapi.InlineKeyboardButton
	for _, m := range model.Moods {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(service.MoodIcon(m), cbMoodPrefix+string(m)))
	}
	return tgbotapi.NewInlineKeyboardMarkup(row)
}

func escape(s string) string {
	return html.EscapeString(s)
}
