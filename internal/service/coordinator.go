package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"brainbounce/internal/auth"
	"brainbounce/internal/localstore"
	"brainbounce/internal/model"
	"brainbounce/internal/remote"
)

const defaultDebounce = 2 * time.Second

var (
	// ErrNotFound is returned by mutations that reference a missing item.
	ErrNotFound = errors.New("item not found")
	// ErrInvalidInput is returned by mutations given empty or malformed values.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotInitialized is returned by mutations before the first load finished.
	ErrNotInitialized = errors.New("data is still loading")
)

// LocalStore is the device-local persistence the coordinator writes through.
type LocalStore interface {
	Load(ns localstore.Namespace) model.AppState
	Save(ns localstore.Namespace, state model.AppState)
	ClearUserData(ns localstore.Namespace)
	ClearAll(ctx context.Context)
	Writes() int64
}

// RemoteStore is the best-effort cloud mirror.
type RemoteStore interface {
	SetUser(id model.UserID)
	Load(ctx context.Context, userID model.UserID) (*model.AppState, error)
	Save(ctx context.Context, userID model.UserID, state model.AppState) error
	Delete(ctx context.Context, userID model.UserID) error
	Cleanup()
	IsAvailable() bool
	State() remote.State
	Retry()
	PendingCount() int
	FlushPending(ctx context.Context) error
	OnRemoteChange(fn remote.ChangeFunc)
}

// SyncStatus summarizes persistence health for one device.
type SyncStatus struct {
	User          model.UserID
	Initialized   bool
	Remote        remote.State
	Available     bool
	Dirty         bool
	PendingRemote int
	LocalWrites   int64
	DataLoadError string
}

type Option func(*Coordinator)

func WithClock(clock Clock) Option {
	return func(c *Coordinator) { c.clock = clock }
}

func WithDebounce(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.debounce = d
		}
	}
}

// WithNow overrides the source of "today" used by the streak and reminders.
func WithNow(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// Coordinator owns the in-memory AppState of one device and keeps the local
// and remote stores in step with it.
type Coordinator struct {
	local    LocalStore
	remote   RemoteStore
	clock    Clock
	debounce time.Duration
	now      func() time.Time

	mu          sync.Mutex
	user        *auth.User
	state       model.AppState
	initialized bool
	loadErr     string
	gen         uint64
	timer       Timer
	dirty       bool
	lastWrite   int64
}

func NewCoordinator(local LocalStore, remoteStore RemoteStore, opts ...Option) *Coordinator {
	c := &Coordinator{
		local:    local,
		remote:   remoteStore,
		clock:    realClock{},
		debounce: defaultDebounce,
		state:    model.DefaultState(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.now == nil {
		c.now = c.clock.Now
	}
	if c.remote != nil {
		c.remote.OnRemoteChange(c.adoptRemote)
	}
	return c
}

func (c *Coordinator) userIDLocked() model.UserID {
	if c.user == nil {
		return ""
	}
	return c.user.ID
}

func namespaceFor(id model.UserID) localstore.Namespace {
	if id == "" {
		return localstore.Guest()
	}
	return localstore.User(id)
}

// cancelPendingLocked drops the scheduled persistence pass, if any.
func (c *Coordinator) cancelPendingLocked() {
	c.gen++
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.dirty = false
}

// SetUser switches the device to user (nil for guest) and loads its data.
func (c *Coordinator) SetUser(ctx context.Context, user *auth.User) {
	var next model.UserID
	if user != nil {
		next = user.ID
		u := *user
		user = &u
	}

	c.mu.Lock()
	prev := c.userIDLocked()
	c.cancelPendingLocked()
	c.user = user
	c.initialized = false
	c.loadErr = ""
	c.lastWrite = 0
	c.mu.Unlock()

	if prev != next {
		if prev != "" {
			c.local.ClearUserData(localstore.User(prev))
		}
		if c.remote != nil {
			c.remote.Cleanup()
		}
	}
	if c.remote != nil {
		c.remote.SetUser(next)
	}

	c.load(ctx, next)
}

// SignOut drops the session, wipes this device's local data and resets to guest.
func (c *Coordinator) SignOut(ctx context.Context) {
	c.mu.Lock()
	c.cancelPendingLocked()
	c.user = nil
	c.initialized = false
	c.loadErr = ""
	c.lastWrite = 0
	c.mu.Unlock()

	if c.remote != nil {
		c.remote.Cleanup()
		c.remote.SetUser("")
	}
	c.local.ClearAll(ctx)

	c.load(ctx, "")
}

// RetryDataLoad reloads the current user's data after a failed load.
func (c *Coordinator) RetryDataLoad(ctx context.Context) {
	if err := c.Flush(ctx); err != nil {
		log.Printf("flush before reload: %v", err)
	}

	c.mu.Lock()
	id := c.userIDLocked()
	c.loadErr = ""
	c.mu.Unlock()

	if c.remote != nil {
		c.remote.Retry()
	}
	c.load(ctx, id)
}

func (c *Coordinator) load(ctx context.Context, id model.UserID) {
	state, loadErr := c.fetch(ctx, id)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.userIDLocked() != id {
		// Another identity change won the race.
		return
	}
	c.state = state
	c.initialized = true
	if loadErr != "" {
		c.loadErr = loadErr
	}
	log.Printf("[info] coordinator: loaded data for %s", namespaceFor(id))
}

// fetch prefers the remote store, then the local store, then defaults.
func (c *Coordinator) fetch(ctx context.Context, id model.UserID) (model.AppState, string) {
	var loadErr string
	if id != "" && c.remote != nil && c.remote.IsAvailable() {
		state, err := c.remote.Load(ctx, id)
		switch {
		case err != nil:
			log.Printf("load remote data for %s: %v", id, err)
			loadErr = "Could not reach cloud sync, showing data saved on this device."
		case state != nil:
			return model.Normalize(*state), ""
		}
	}
	return c.local.Load(namespaceFor(id)), loadErr
}

// Initialized is true once the data of the current identity is loaded.
func (c *Coordinator) Initialized() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.initialized
}

// User returns the signed-in user or nil for guest.
func (c *Coordinator) User() *auth.User {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.user == nil {
		return nil
	}
	u := *c.user
	return &u
}

// DataLoadError is the last load or mutation failure, empty when healthy.
func (c *Coordinator) DataLoadError() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loadErr
}

// Snapshot returns a deep copy of the current state.
func (c *Coordinator) Snapshot() model.AppState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Clone()
}

func (c *Coordinator) SyncStatus() SyncStatus {
	c.mu.Lock()
	status := SyncStatus{
		User:          c.userIDLocked(),
		Initialized:   c.initialized,
		Dirty:         c.dirty,
		DataLoadError: c.loadErr,
	}
	c.mu.Unlock()

	status.LocalWrites = c.local.Writes()
	if c.remote != nil {
		status.Remote = c.remote.State()
		status.Available = c.remote.IsAvailable()
		status.PendingRemote = c.remote.PendingCount()
	}
	return status
}

// mutate applies fn to a copy of the state. The copy replaces the state only
// when fn succeeds; panics are recovered and reported as errors.
func (c *Coordinator) mutate(op string, streak bool, fn func(s *model.AppState, now time.Time) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.initialized {
		return ErrNotInitialized
	}

	next := c.state.Clone()
	now := c.now()
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("%s: panic: %v", op, r)
			}
		}()
		return fn(&next, now)
	}()
	if err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrInvalidInput) {
			return err
		}
		log.Printf("%s: %v", op, err)
		c.loadErr = fmt.Sprintf("Something went wrong while trying to %s.", op)
		return err
	}

	if streak {
		updateStreak(&next, now)
	}
	c.state = next
	c.schedulePersistLocked()
	return nil
}

func (c *Coordinator) schedulePersistLocked() {
	c.gen++
	gen := c.gen
	user := c.userIDLocked()
	if c.timer != nil {
		c.timer.Stop()
	}
	c.dirty = true
	c.timer = c.clock.AfterFunc(c.debounce, func() {
		c.persist(context.Background(), gen, user)
	})
}

// persist writes the state scheduled under gen for user. It does nothing when
// a newer mutation or an identity change superseded it.
func (c *Coordinator) persist(ctx context.Context, gen uint64, user model.UserID) {
	c.mu.Lock()
	if gen != c.gen || !c.dirty || c.userIDLocked() != user {
		c.mu.Unlock()
		return
	}
	snapshot := c.state.Clone()
	c.dirty = false
	c.timer = nil
	c.lastWrite = c.clock.Now().UnixMilli()
	c.mu.Unlock()

	if err := c.write(ctx, user, snapshot); err != nil && !errors.Is(err, remote.ErrStaleUser) {
		log.Printf("save %s to cloud: %v", namespaceFor(user), err)
	}
}

// write saves state for user locally and, when possible, remotely. Each store
// is skipped once user is no longer the active identity.
func (c *Coordinator) write(ctx context.Context, user model.UserID, state model.AppState) error {
	c.mu.Lock()
	if c.userIDLocked() != user {
		c.mu.Unlock()
		return nil
	}
	// Held across the save so an identity switch clears the namespace after it.
	c.local.Save(namespaceFor(user), state)
	c.mu.Unlock()

	if user == "" || c.remote == nil {
		return nil
	}
	c.mu.Lock()
	current := c.userIDLocked() == user
	c.mu.Unlock()
	if !current || !c.remote.IsAvailable() {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	return c.remote.Save(ctx, user, state)
}

// Flush persists a pending change immediately.
func (c *Coordinator) Flush(ctx context.Context) error {
	c.mu.Lock()
	if !c.dirty {
		c.mu.Unlock()
		return nil
	}
	user := c.userIDLocked()
	snapshot := c.state.Clone()
	c.cancelPendingLocked()
	c.lastWrite = c.clock.Now().UnixMilli()
	c.mu.Unlock()

	return c.write(ctx, user, snapshot)
}

// RetrySync re-arms cloud sync after a permission denial and pushes the
// current state.
func (c *Coordinator) RetrySync(ctx context.Context) error {
	if c.remote == nil {
		return remote.ErrNoClient
	}
	c.remote.Retry()

	c.mu.Lock()
	user := c.userIDLocked()
	snapshot := c.state.Clone()
	c.mu.Unlock()

	if user == "" {
		return remote.ErrSignedOut
	}
	if err := c.remote.Save(ctx, user, snapshot); err != nil {
		return err
	}
	return c.remote.FlushPending(ctx)
}

// DeleteCloudData drops any pending save and removes the signed-in user's
// cloud document. Local data is untouched; callers sign out afterwards.
func (c *Coordinator) DeleteCloudData(ctx context.Context) error {
	if c.remote == nil {
		return remote.ErrNoClient
	}
	c.mu.Lock()
	c.cancelPendingLocked()
	user := c.userIDLocked()
	c.mu.Unlock()

	if user == "" {
		return remote.ErrSignedOut
	}
	return c.remote.Delete(ctx, user)
}

// adoptRemote replaces the state with a document written by another device
// when nothing local is waiting to be saved.
func (c *Coordinator) adoptRemote(userID model.UserID, state model.AppState, clientTimestamp int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if userID != c.userIDLocked() || c.dirty || !c.initialized {
		return
	}
	if clientTimestamp <= c.lastWrite {
		return
	}
	c.state = model.Normalize(state.Clone())
	log.Printf("[info] coordinator: adopted remote change for %s", userID)
}

// DueReminders returns open reminders due at or before now.
func (c *Coordinator) DueReminders(now time.Time) []model.Reminder {
	c.mu.Lock()
	defer c.mu.Unlock()

	var due []model.Reminder
	for _, r := range c.state.Reminders {
		if !r.Completed && !r.DueAt.IsZero() && !r.DueAt.After(now) {
			due = append(due, r)
		}
	}
	return due
}
