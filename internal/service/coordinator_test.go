package service

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"brainbounce/internal/auth"
	"brainbounce/internal/localstore"
	"brainbounce/internal/model"
	"brainbounce/internal/remote"
	"brainbounce/internal/repository"
)

type fakeClock struct {
	mu         sync.Mutex
	now        time.Time
	timers     []*fakeTimer
	ignoreStop bool
}

type fakeTimer struct {
	clock *fakeClock
	at    time.Time
	fn    func()
	done  bool
}

func newFakeClock(now time.Time) *fakeClock {
	return &fakeClock{now: now}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, at: c.now.Add(d), fn: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.clock.ignoreStop || t.done {
		return false
	}
	t.done = true
	return true
}

// Advance moves time forward and runs the timers that became due.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []*fakeTimer
	pending := c.timers[:0]
	for _, t := range c.timers {
		switch {
		case t.done:
		case !t.at.After(c.now):
			t.done = true
			due = append(due, t)
		default:
			pending = append(pending, t)
		}
	}
	c.timers = pending
	c.mu.Unlock()

	for _, t := range due {
		t.fn()
	}
}

type countingDocs struct {
	*repository.DocumentRepository
	sets atomic.Int32
}

func (d *countingDocs) Set(ctx context.Context, userID model.UserID, state model.AppState, meta repository.WriteMeta) (*model.UserDocument, error) {
	d.sets.Add(1)
	return d.DocumentRepository.Set(ctx, userID, state, meta)
}

type backend struct {
	localDB  *localstore.DB
	docs     *countingDocs
	accounts *repository.AccountRepository
}

func newBackend(t *testing.T) *backend {
	t.Helper()
	dir := t.TempDir()

	localDB, err := localstore.Open(filepath.Join(dir, "local.db"))
	if err != nil {
		t.Fatalf("localstore.Open: %v", err)
	}
	t.Cleanup(func() { _ = localDB.Close() })

	db, err := repository.NewDB(filepath.Join(dir, "remote.db"))
	if err != nil {
		t.Fatalf("repository.NewDB: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	return &backend{
		localDB:  localDB,
		docs:     &countingDocs{DocumentRepository: repository.NewDocumentRepository(db, nil)},
		accounts: repository.NewAccountRepository(db),
	}
}

type device struct {
	coord  *Coordinator
	local  *localstore.Store
	remote *remote.Store
}

func (b *backend) device(t *testing.T, name string, clock *fakeClock, opts ...Option) device {
	t.Helper()
	local := b.localDB.Device(name, 0)
	rs := remote.New(b.docs, local, name, remote.Config{MaxAttempts: 1, InitialDelay: time.Millisecond, ProbeTimeout: time.Second})
	t.Cleanup(rs.Cleanup)
	opts = append([]Option{WithClock(clock)}, opts...)
	return device{coord: NewCoordinator(local, rs, opts...), local: local, remote: rs}
}

var june11 = time.Date(2025, time.June, 11, 9, 0, 0, 0, time.UTC)

func signIn(t *testing.T, c *Coordinator, id model.UserID) {
	t.Helper()
	c.SetUser(context.Background(), &auth.User{ID: id})
	if !c.Initialized() {
		t.Fatalf("coordinator not initialized after SetUser(%s)", id)
	}
}

func TestCoordinator_MutationsBeforeLoadFail(t *testing.T) {
	b := newBackend(t)
	d := b.device(t, "chat-1", newFakeClock(june11))

	if err := d.coord.SetFocus("x"); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("SetFocus err = %v, want ErrNotInitialized", err)
	}
}

func TestCoordinator_DebounceCoalescesWrites(t *testing.T) {
	b := newBackend(t)
	clock := newFakeClock(june11)
	d := b.device(t, "chat-1", clock)
	signIn(t, d.coord, "alice")

	if err := d.coord.SetFocus("first"); err != nil {
		t.Fatalf("SetFocus: %v", err)
	}
	clock.Advance(time.Second)
	if _, err := d.coord.AddBrainDump("call mom"); err != nil {
		t.Fatalf("AddBrainDump: %v", err)
	}
	clock.Advance(1500 * time.Millisecond)
	if err := d.coord.SetFocus("final"); err != nil {
		t.Fatalf("SetFocus: %v", err)
	}
	clock.Advance(1900 * time.Millisecond)

	if got := d.local.Writes(); got != 0 {
		t.Fatalf("local writes inside the window = %d, want 0", got)
	}
	if !d.coord.SyncStatus().Dirty {
		t.Fatalf("SyncStatus.Dirty = false, want true")
	}

	clock.Advance(100 * time.Millisecond)
	if got := d.local.Writes(); got != 1 {
		t.Fatalf("local writes = %d, want 1", got)
	}
	if got := b.docs.sets.Load(); got != 1 {
		t.Fatalf("remote writes = %d, want 1", got)
	}

	stored := d.local.Load(localstore.User("alice"))
	if stored.TodayFocus != "final" || len(stored.BrainDump) != 1 {
		t.Fatalf("stored state = %q/%d, want final state", stored.TodayFocus, len(stored.BrainDump))
	}
	doc, err := b.docs.Get(context.Background(), "alice", "alice")
	if err != nil {
		t.Fatalf("remote Get: %v", err)
	}
	if doc.Data.TodayFocus != "final" {
		t.Fatalf("remote focus = %q, want final", doc.Data.TodayFocus)
	}
}

func TestCoordinator_UserSwitchDropsPendingWrite(t *testing.T) {
	for _, ignoreStop := range []bool{false, true} {
		b := newBackend(t)
		clock := newFakeClock(june11)
		clock.ignoreStop = ignoreStop
		d := b.device(t, "chat-1", clock)
		signIn(t, d.coord, "alice")

		if err := d.coord.SetFocus("alice secret"); err != nil {
			t.Fatalf("SetFocus: %v", err)
		}
		signIn(t, d.coord, "bob")
		clock.Advance(5 * time.Second)

		if got := d.local.Writes(); got != 0 {
			t.Fatalf("ignoreStop=%v: local writes = %d, want 0", ignoreStop, got)
		}
		if got := b.docs.sets.Load(); got != 0 {
			t.Fatalf("ignoreStop=%v: remote writes = %d, want 0", ignoreStop, got)
		}
		if _, ok := d.local.Cached(localstore.User("bob")); ok {
			t.Fatalf("ignoreStop=%v: bob namespace written", ignoreStop)
		}
		if d.coord.Snapshot().TodayFocus != "" {
			t.Fatalf("ignoreStop=%v: bob sees alice's focus", ignoreStop)
		}
	}
}

func TestCoordinator_SwitchClearsPreviousUserNamespace(t *testing.T) {
	b := newBackend(t)
	clock := newFakeClock(june11)
	d := b.device(t, "chat-1", clock)
	signIn(t, d.coord, "alice")

	if err := d.coord.SetFocus("alice"); err != nil {
		t.Fatalf("SetFocus: %v", err)
	}
	if err := d.coord.Flush(context.Background()); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if _, ok := d.local.Cached(localstore.User("alice")); !ok {
		t.Fatalf("alice not cached after Flush")
	}

	signIn(t, d.coord, "bob")
	if _, ok := d.local.Cached(localstore.User("alice")); ok {
		t.Fatalf("alice namespace survived the switch to bob")
	}

	// Alice's data comes back from the cloud.
	signIn(t, d.coord, "alice")
	if got := d.coord.Snapshot().TodayFocus; got != "alice" {
		t.Fatalf("focus after re-login = %q, want alice", got)
	}
}

func TestCoordinator_SignOutWipesDevice(t *testing.T) {
	b := newBackend(t)
	d := b.device(t, "chat-1", newFakeClock(june11))
	signIn(t, d.coord, "alice")

	if _, err := d.coord.AddGoal(GoalInput{Title: "Run"}); err != nil {
		t.Fatalf("AddGoal: %v", err)
	}
	if err := d.coord.Flush(context.Background()); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	d.coord.SignOut(context.Background())

	if d.coord.User() != nil {
		t.Fatalf("User after SignOut = %v, want nil", d.coord.User())
	}
	if !d.coord.Initialized() {
		t.Fatalf("guest state not loaded after SignOut")
	}
	if _, ok := d.local.Cached(localstore.User("alice")); ok {
		t.Fatalf("local data survived SignOut")
	}
	if n := len(d.coord.Snapshot().Goals); n != 0 {
		t.Fatalf("goals after SignOut = %d, want 0", n)
	}
}

func seedGuest(t *testing.T, local *localstore.Store, mutate func(*model.AppState)) {
	t.Helper()
	state := model.DefaultState()
	mutate(&state)
	local.Save(localstore.Guest(), state)
}

func TestCoordinator_StreakFollowsCheckIns(t *testing.T) {
	tests := []struct {
		name       string
		today      time.Time
		wantStreak int
	}{
		{"consecutive day increments", time.Date(2025, time.June, 11, 10, 0, 0, 0, time.UTC), 5},
		{"gap resets to one", time.Date(2025, time.June, 13, 10, 0, 0, 0, time.UTC), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newBackend(t)
			d := b.device(t, "chat-1", newFakeClock(tt.today))
			seedGuest(t, d.local, func(s *model.AppState) {
				s.LastCheckIn = "10/06/2025"
				s.Streak = 4
			})
			d.coord.SetUser(context.Background(), nil)

			goal, err := d.coord.AddGoal(GoalInput{Title: "Stretch"})
			if err != nil {
				t.Fatalf("AddGoal: %v", err)
			}
			if got := d.coord.Snapshot().Streak; got != 4 {
				t.Fatalf("streak after adding an open goal = %d, want 4", got)
			}

			if _, err := d.coord.ToggleGoal(goal.ID); err != nil {
				t.Fatalf("ToggleGoal: %v", err)
			}
			state := d.coord.Snapshot()
			if state.Streak != tt.wantStreak {
				t.Fatalf("streak = %d, want %d", state.Streak, tt.wantStreak)
			}
			if state.LastCheckIn != model.Day(tt.today) {
				t.Fatalf("LastCheckIn = %q, want %q", state.LastCheckIn, model.Day(tt.today))
			}

			if _, err := d.coord.AddMood(model.MoodGood, ""); err != nil {
				t.Fatalf("AddMood: %v", err)
			}
			if got := d.coord.Snapshot().Streak; got != tt.wantStreak {
				t.Fatalf("second check-in on the same day changed streak to %d", got)
			}
		})
	}
}

func TestCoordinator_HabitStreak(t *testing.T) {
	b := newBackend(t)
	d := b.device(t, "chat-1", newFakeClock(june11))
	d.coord.SetUser(context.Background(), nil)

	habit, err := d.coord.AddHabit(HabitInput{Title: "Walk"})
	if err != nil {
		t.Fatalf("AddHabit: %v", err)
	}
	if habit.Frequency != model.Daily {
		t.Fatalf("Frequency = %q, want daily", habit.Frequency)
	}

	for _, day := range []string{"2025-06-09", "2025-06-10", "2025-06-11"} {
		if habit, err = d.coord.ToggleHabitDate(habit.ID, day); err != nil {
			t.Fatalf("ToggleHabitDate(%s): %v", day, err)
		}
	}
	if habit.Streak != 3 {
		t.Fatalf("streak = %d, want 3", habit.Streak)
	}

	if habit, err = d.coord.ToggleHabitDate(habit.ID, "2025-06-10"); err != nil {
		t.Fatalf("ToggleHabitDate: %v", err)
	}
	if habit.Streak != 1 || len(habit.CompletedDates) != 2 {
		t.Fatalf("after untoggling: streak = %d dates = %v, want 1 and 2 dates", habit.Streak, habit.CompletedDates)
	}
	if got := d.coord.Snapshot().Streak; got != 1 {
		t.Fatalf("check-in streak = %d, want 1 (habit done today)", got)
	}
}

func TestCoordinator_Lists(t *testing.T) {
	b := newBackend(t)
	d := b.device(t, "chat-1", newFakeClock(june11))
	d.coord.SetUser(context.Background(), nil)

	list, err := d.coord.AddList("Groceries")
	if err != nil {
		t.Fatalf("AddList: %v", err)
	}
	var items []model.ListItem
	for _, text := range []string{"milk", "eggs", "bread"} {
		item, err := d.coord.AddListItem(list.ID, text)
		if err != nil {
			t.Fatalf("AddListItem: %v", err)
		}
		items = append(items, item)
	}

	if _, err := d.coord.ToggleListItem(list.ID, items[1].ID); err != nil {
		t.Fatalf("ToggleListItem: %v", err)
	}
	got := d.coord.Snapshot().Lists[0].Items
	want := []bool{false, true, false}
	for i := range want {
		if got[i].Completed != want[i] {
			t.Fatalf("item %d completed = %v, want %v", i, got[i].Completed, want[i])
		}
	}

	if err := d.coord.RenameList(list.ID, "  Shop  "); err != nil {
		t.Fatalf("RenameList: %v", err)
	}
	if name := d.coord.Snapshot().Lists[0].Name; name != "Shop" {
		t.Fatalf("Name = %q, want Shop", name)
	}

	if err := d.coord.DeleteList(list.ID); err != nil {
		t.Fatalf("DeleteList: %v", err)
	}
	if n := len(d.coord.Snapshot().Lists); n != 0 {
		t.Fatalf("lists after delete = %d, want 0", n)
	}
	if _, err := d.coord.AddListItem(list.ID, "late"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("AddListItem on deleted list err = %v, want ErrNotFound", err)
	}
	if err := d.coord.DeleteList(list.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second DeleteList err = %v, want ErrNotFound", err)
	}
}

func TestCoordinator_MoodUpsertByDate(t *testing.T) {
	b := newBackend(t)
	d := b.device(t, "chat-1", newFakeClock(june11))
	d.coord.SetUser(context.Background(), nil)

	if _, err := d.coord.AddMood(model.MoodLow, "tired"); err != nil {
		t.Fatalf("AddMood: %v", err)
	}
	if _, err := d.coord.AddMood(model.MoodGood, "coffee helped"); err != nil {
		t.Fatalf("AddMood: %v", err)
	}
	moods := d.coord.Snapshot().Moods
	if len(moods) != 1 || moods[0].Mood != model.MoodGood {
		t.Fatalf("moods = %#v, want one good entry", moods)
	}

	if _, err := d.coord.AddMood("ecstatic", ""); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("AddMood invalid err = %v, want ErrInvalidInput", err)
	}
	if err := d.coord.DeleteMood("2025-06-11"); err != nil {
		t.Fatalf("DeleteMood: %v", err)
	}
	if err := d.coord.UpdateMood("2025-06-11", model.MoodOkay, ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("UpdateMood after delete err = %v, want ErrNotFound", err)
	}
}

func TestCoordinator_FailedMutationLeavesStateUnchanged(t *testing.T) {
	b := newBackend(t)
	d := b.device(t, "chat-1", newFakeClock(june11))
	d.coord.SetUser(context.Background(), nil)

	if err := d.coord.SetFocus("keep me"); err != nil {
		t.Fatalf("SetFocus: %v", err)
	}
	if err := d.coord.Flush(context.Background()); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	err := d.coord.mutate("break things", false, func(s *model.AppState, _ time.Time) error {
		s.TodayFocus = "half done"
		var lists []model.List
		_ = lists[3]
		return nil
	})
	if err == nil {
		t.Fatalf("mutate returned nil after a panic")
	}
	if got := d.coord.Snapshot().TodayFocus; got != "keep me" {
		t.Fatalf("focus = %q, want keep me", got)
	}
	status := d.coord.SyncStatus()
	if status.DataLoadError == "" {
		t.Fatalf("DataLoadError empty after a failed mutation")
	}
	if status.Dirty {
		t.Fatalf("failed mutation scheduled a write")
	}

	d.coord.RetryDataLoad(context.Background())
	if d.coord.DataLoadError() != "" {
		t.Fatalf("DataLoadError after RetryDataLoad = %q, want empty", d.coord.DataLoadError())
	}
	if got := d.coord.Snapshot().TodayFocus; got != "keep me" {
		t.Fatalf("focus after reload = %q, want keep me", got)
	}
}

func TestCoordinator_Widgets(t *testing.T) {
	b := newBackend(t)
	d := b.device(t, "chat-1", newFakeClock(june11))
	d.coord.SetUser(context.Background(), nil)

	if err := d.coord.ReorderWidgets([]string{"lists", "focus"}); err != nil {
		t.Fatalf("ReorderWidgets: %v", err)
	}
	widgets := d.coord.Snapshot().Widgets
	if widgets[0].Type != model.WidgetLists || widgets[1].Type != model.WidgetFocus || widgets[2].Type != model.WidgetMood {
		t.Fatalf("order = %s,%s,%s, want lists,focus,mood", widgets[0].Type, widgets[1].Type, widgets[2].Type)
	}
	for i, w := range widgets {
		if w.Order != i {
			t.Fatalf("widget %s Order = %d, want %d", w.Type, w.Order, i)
		}
	}

	if err := d.coord.ReorderWidgets([]string{"clock"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("ReorderWidgets unknown err = %v, want ErrNotFound", err)
	}

	timer, err := d.coord.ToggleWidget(model.WidgetTimer)
	if err != nil {
		t.Fatalf("ToggleWidget: %v", err)
	}
	if !timer.Visible {
		t.Fatalf("timer widget still hidden")
	}

	if err := d.coord.ResetWidgets(); err != nil {
		t.Fatalf("ResetWidgets: %v", err)
	}
	widgets = d.coord.Snapshot().Widgets
	if widgets[0].Type != model.WidgetFocus || len(widgets) != len(model.WidgetTypes) {
		t.Fatalf("ResetWidgets = %#v, want defaults", widgets)
	}
}

func TestCoordinator_PermissionDeniedKeepsLocalCopy(t *testing.T) {
	b := newBackend(t)
	ctx := context.Background()
	if _, err := b.accounts.Upsert(ctx, "alice", "alice@example.com", "Alice"); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := b.accounts.SetSyncEnabled(ctx, "alice", false); err != nil {
		t.Fatalf("SetSyncEnabled: %v", err)
	}

	clock := newFakeClock(june11)
	d := b.device(t, "chat-1", clock)
	alerts := 0
	d.remote.OnPermissionDenied(func() { alerts++ })
	signIn(t, d.coord, "alice")

	if err := d.coord.SetFocus("offline"); err != nil {
		t.Fatalf("SetFocus: %v", err)
	}
	clock.Advance(2 * time.Second)

	status := d.coord.SyncStatus()
	if status.Remote != remote.StateDisabled || status.Available {
		t.Fatalf("remote = %s/%v, want disabled/false", status.Remote, status.Available)
	}
	if status.LocalWrites != 1 {
		t.Fatalf("LocalWrites = %d, want 1", status.LocalWrites)
	}
	if alerts != 1 {
		t.Fatalf("alerts = %d, want 1", alerts)
	}

	if err := b.accounts.SetSyncEnabled(ctx, "alice", true); err != nil {
		t.Fatalf("SetSyncEnabled: %v", err)
	}
	if err := d.coord.RetrySync(ctx); err != nil {
		t.Fatalf("RetrySync: %v", err)
	}
	if got := d.coord.SyncStatus().Remote; got != remote.StateAvailable {
		t.Fatalf("remote after RetrySync = %s, want available", got)
	}
	doc, err := b.docs.Get(ctx, "alice", "alice")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if doc.Data.TodayFocus != "offline" {
		t.Fatalf("remote focus = %q, want offline", doc.Data.TodayFocus)
	}
}

func TestCoordinator_AdoptsChangesFromOtherDevices(t *testing.T) {
	b := newBackend(t)
	phone := b.device(t, "chat-phone", newFakeClock(june11))
	laptop := b.device(t, "chat-laptop", newFakeClock(june11))
	signIn(t, phone.coord, "alice")
	signIn(t, laptop.coord, "alice")

	if err := phone.coord.SetFocus("written on phone"); err != nil {
		t.Fatalf("SetFocus: %v", err)
	}
	if err := phone.coord.Flush(context.Background()); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for laptop.coord.Snapshot().TodayFocus != "written on phone" {
		if time.Now().After(deadline) {
			t.Fatalf("laptop focus = %q, want change from phone", laptop.coord.Snapshot().TodayFocus)
		}
		time.Sleep(10 * time.Millisecond)
	}
	if got := phone.coord.Snapshot().TodayFocus; got != "written on phone" {
		t.Fatalf("phone focus = %q", got)
	}
}

func TestCoordinator_DueReminders(t *testing.T) {
	b := newBackend(t)
	d := b.device(t, "chat-1", newFakeClock(june11))
	d.coord.SetUser(context.Background(), nil)

	past, err := d.coord.AddReminder("pills", june11.Add(-time.Minute), model.Sound{Enabled: true})
	if err != nil {
		t.Fatalf("AddReminder: %v", err)
	}
	if _, err := d.coord.AddReminder("meeting", june11.Add(time.Hour), model.Sound{}); err != nil {
		t.Fatalf("AddReminder: %v", err)
	}

	svc := NewReminderService(func() time.Time { return june11 })
	var delivered []string
	sent, err := svc.Dispatch(context.Background(), d.coord, func(_ context.Context, r model.Reminder) error {
		delivered = append(delivered, r.ID)
		return nil
	})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if sent != 1 || len(delivered) != 1 || delivered[0] != past.ID {
		t.Fatalf("delivered = %v, want only %s", delivered, past.ID)
	}
	if due := d.coord.DueReminders(june11); len(due) != 0 {
		t.Fatalf("due after dispatch = %d, want 0", len(due))
	}
	if got := d.coord.Snapshot().Streak; got != 1 {
		t.Fatalf("streak after completing a reminder = %d, want 1", got)
	}

	if _, err := svc.Dispatch(context.Background(), d.coord, func(context.Context, model.Reminder) error {
		t.Fatalf("notify called with nothing due")
		return nil
	}); err != nil {
		t.Fatalf("second Dispatch: %v", err)
	}
}

// stallingLocal parks the first save into armed's namespace until released.
type stallingLocal struct {
	*localstore.Store
	armed    localstore.Namespace
	entered  chan struct{}
	release  chan struct{}
	stallOne sync.Once
}

func (s *stallingLocal) Save(ns localstore.Namespace, state model.AppState) {
	if ns == s.armed {
		s.stallOne.Do(func() {
			close(s.entered)
			<-s.release
		})
	}
	s.Store.Save(ns, state)
}

func TestCoordinator_SwitchDuringSaveKeepsUsersApart(t *testing.T) {
	b := newBackend(t)
	clock := newFakeClock(june11)
	store := b.localDB.Device("chat-1", 0)
	local := &stallingLocal{
		Store:   store,
		armed:   localstore.User("alice"),
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	rs := remote.New(b.docs, store, "chat-1", remote.Config{MaxAttempts: 1, InitialDelay: time.Millisecond, ProbeTimeout: time.Second})
	t.Cleanup(rs.Cleanup)
	alerts := 0
	rs.OnPermissionDenied(func() { alerts++ })
	coord := NewCoordinator(local, rs, WithClock(clock))

	signIn(t, coord, "alice")
	if err := coord.SetFocus("alice secret"); err != nil {
		t.Fatalf("SetFocus: %v", err)
	}

	saved := make(chan struct{})
	go func() {
		clock.Advance(2 * time.Second)
		close(saved)
	}()
	<-local.entered

	switched := make(chan struct{})
	go func() {
		coord.SetUser(context.Background(), &auth.User{ID: "bob"})
		close(switched)
	}()
	time.Sleep(20 * time.Millisecond)
	close(local.release)
	<-saved
	<-switched

	if _, ok := store.Cached(localstore.User("alice")); ok {
		t.Fatalf("alice namespace present after switching to bob")
	}
	if got := rs.State(); got == remote.StateDisabled {
		t.Fatalf("remote state for bob = %s, want not disabled", got)
	}
	if !rs.IsAvailable() {
		t.Fatalf("remote unavailable for bob after the switch")
	}
	if alerts != 0 {
		t.Fatalf("alerts = %d, want 0", alerts)
	}
	if got := coord.Snapshot().TodayFocus; got != "" {
		t.Fatalf("bob focus = %q, want empty", got)
	}
}

func TestCoordinator_StreakCountsLegacyCompletions(t *testing.T) {
	b := newBackend(t)
	d := b.device(t, "chat-1", newFakeClock(june11))
	seedGuest(t, d.local, func(s *model.AppState) {
		s.LastCheckIn = "10/06/2025"
		s.Streak = 4
		s.Goals = []model.Goal{{ID: "g-old", Title: "Imported", Completed: true}}
	})
	d.coord.SetUser(context.Background(), nil)

	if _, err := d.coord.AddGoal(GoalInput{Title: "Stretch"}); err != nil {
		t.Fatalf("AddGoal: %v", err)
	}
	if got := d.coord.Snapshot().Streak; got != 5 {
		t.Fatalf("streak = %d, want 5", got)
	}
}

func TestCoordinator_AddGoalCopiesProgress(t *testing.T) {
	b := newBackend(t)
	d := b.device(t, "chat-1", newFakeClock(june11))
	d.coord.SetUser(context.Background(), nil)

	progress := 40
	goal, err := d.coord.AddGoal(GoalInput{Title: "Read", Progress: &progress})
	if err != nil {
		t.Fatalf("AddGoal: %v", err)
	}
	progress = 90
	*goal.Progress = 70

	if got := *d.coord.Snapshot().Goals[0].Progress; got != 40 {
		t.Fatalf("stored progress = %d, want 40", got)
	}
}

func TestCoordinator_DeleteCloudData(t *testing.T) {
	b := newBackend(t)
	clock := newFakeClock(june11)
	d := b.device(t, "chat-1", clock)
	ctx := context.Background()

	d.coord.SetUser(ctx, nil)
	if err := d.coord.DeleteCloudData(ctx); !errors.Is(err, remote.ErrSignedOut) {
		t.Fatalf("guest DeleteCloudData err = %v, want ErrSignedOut", err)
	}

	signIn(t, d.coord, "alice")
	if err := d.coord.SetFocus("saved"); err != nil {
		t.Fatalf("SetFocus: %v", err)
	}
	if err := d.coord.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if err := d.coord.SetFocus("pending"); err != nil {
		t.Fatalf("SetFocus: %v", err)
	}

	if err := d.coord.DeleteCloudData(ctx); err != nil {
		t.Fatalf("DeleteCloudData: %v", err)
	}
	clock.Advance(5 * time.Second)

	if _, err := b.docs.Get(ctx, "alice", "alice"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("Get after DeleteCloudData err = %v, want ErrNotFound", err)
	}
}

func TestCoordinator_AdoptRemoteComparesWithLastWrite(t *testing.T) {
	b := newBackend(t)
	clock := newFakeClock(june11)
	d := b.device(t, "chat-1", clock)
	signIn(t, d.coord, "alice")

	if err := d.coord.SetFocus("local"); err != nil {
		t.Fatalf("SetFocus: %v", err)
	}
	clock.Advance(2 * time.Second)
	written := clock.Now().UnixMilli()

	older := model.DefaultState()
	older.TodayFocus = "older"
	d.coord.adoptRemote("alice", older, written-1000)
	if got := d.coord.Snapshot().TodayFocus; got != "local" {
		t.Fatalf("focus after older change = %q, want local", got)
	}

	newer := model.DefaultState()
	newer.TodayFocus = "newer"
	d.coord.adoptRemote("alice", newer, written+1000)
	if got := d.coord.Snapshot().TodayFocus; got != "newer" {
		t.Fatalf("focus after newer change = %q, want newer", got)
	}
}
