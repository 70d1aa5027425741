package localstore

import (
	"context"
	"path/filepath"
	"testing"

	"brainbounce/internal/model"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "local.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func putRaw(t *testing.T, s *Store, ns Namespace, value string) {
	t.Helper()
	if _, err := s.conn.Exec(`INSERT OR REPLACE INTO local_storage (device, namespace, value) VALUES (?, ?, ?)`, s.device, ns.Key(), value); err != nil {
		t.Fatalf("insert raw: %v", err)
	}
}

func TestNamespace_KeysDoNotCollide(t *testing.T) {
	if Guest().Key() == User("guest").Key() {
		t.Fatalf("guest namespace collides with user named guest")
	}
	if !User("").IsGuest() {
		t.Fatalf("empty user id should map to the guest namespace")
	}
}

func TestLoad_MissingReturnsDefault(t *testing.T) {
	s := openTestDB(t).Device("chat-1", 0)

	state := s.Load(User("alice"))
	if len(state.Widgets) != len(model.WidgetTypes) {
		t.Fatalf("widgets = %d, want %d", len(state.Widgets), len(model.WidgetTypes))
	}
	if state.Goals == nil || state.Moods == nil {
		t.Fatalf("default state has nil collections: %#v", state)
	}
}

func TestLoad_CorruptedEntryIsClearedAndDefaulted(t *testing.T) {
	s := openTestDB(t).Device("chat-1", 0)
	ns := User("alice")
	putRaw(t, s, ns, "{not json")

	state := s.Load(ns)
	if len(state.Widgets) != len(model.WidgetTypes) {
		t.Fatalf("corrupted load did not yield default state: %#v", state)
	}
	if _, ok := s.Cached(ns); ok {
		t.Fatalf("corrupted entry should have been removed")
	}
}

func TestSaveAndLoad_RoundTripPerNamespace(t *testing.T) {
	db := openTestDB(t)
	s := db.Device("chat-1", 0)

	alice := model.DefaultState()
	alice.TodayFocus = "write report"
	s.Save(User("alice"), alice)

	guest := model.DefaultState()
	guest.TodayFocus = "explore"
	s.Save(Guest(), guest)

	if got := s.Load(User("alice")).TodayFocus; got != "write report" {
		t.Fatalf("alice focus = %q, want %q", got, "write report")
	}
	if got := s.Load(Guest()).TodayFocus; got != "explore" {
		t.Fatalf("guest focus = %q, want %q", got, "explore")
	}
	if got := db.Device("chat-2", 0).Load(User("alice")).TodayFocus; got != "" {
		t.Fatalf("other device saw alice data: %q", got)
	}
	if s.Writes() != 2 {
		t.Fatalf("Writes = %d, want 2", s.Writes())
	}
}

func TestLoad_RepairsPartialShape(t *testing.T) {
	s := openTestDB(t).Device("chat-1", 0)
	ns := User("bob")
	putRaw(t, s, ns, `{"todayFocus":"legacy","widgets":[{"type":"focus","visible":true,"order":0}]}`)

	state := s.Load(ns)
	if state.TodayFocus != "legacy" {
		t.Fatalf("TodayFocus = %q, want legacy", state.TodayFocus)
	}
	if state.Lists == nil || state.Habits == nil {
		t.Fatalf("missing arrays not defaulted")
	}
	if state.Widgets[len(state.Widgets)-1].Type != model.WidgetLists {
		t.Fatalf("lists widget not appended: %#v", state.Widgets)
	}
}

func TestSave_QuotaClearsNamespaceAndRetries(t *testing.T) {
	s := openTestDB(t).Device("chat-1", 1000)
	ns := User("alice")

	first := model.DefaultState()
	s.Save(ns, first)
	if s.Writes() != 1 {
		t.Fatalf("Writes = %d, want 1", s.Writes())
	}

	// Second write only fits once the previous value is cleared.
	second := model.DefaultState()
	second.TodayFocus = "x"
	s.Save(ns, second)

	if got := s.Load(ns).TodayFocus; got != "x" {
		t.Fatalf("TodayFocus = %q, want x after clear-and-retry", got)
	}
}

func TestSave_DropsWhenRetryFails(t *testing.T) {
	s := openTestDB(t).Device("chat-1", 10)
	ns := User("alice")

	s.Save(ns, model.DefaultState())

	if s.Writes() != 0 {
		t.Fatalf("Writes = %d, want 0", s.Writes())
	}
	if _, ok := s.Cached(ns); ok {
		t.Fatalf("oversized state should not be stored")
	}
}

func TestClearUserDataAndClearAll(t *testing.T) {
	db := openTestDB(t)
	s := db.Device("chat-1", 0)
	other := db.Device("chat-2", 0)

	s.Save(User("alice"), model.DefaultState())
	s.Save(Guest(), model.DefaultState())
	other.Save(User("alice"), model.DefaultState())

	s.ClearUserData(User("alice"))
	if _, ok := s.Cached(User("alice")); ok {
		t.Fatalf("alice entry should be cleared")
	}
	if _, ok := s.Cached(Guest()); !ok {
		t.Fatalf("guest entry should survive ClearUserData(alice)")
	}

	s.ClearAll(context.Background())
	if _, ok := s.Cached(Guest()); ok {
		t.Fatalf("guest entry should be cleared by ClearAll")
	}
	if _, ok := other.Cached(User("alice")); !ok {
		t.Fatalf("ClearAll must not touch other devices")
	}
}
