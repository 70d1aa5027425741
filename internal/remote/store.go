// Package remote mirrors AppState into the cloud document store on a
// best-effort basis.
//
// A Store belongs to one device. It retries transient failures with
// exponential backoff, latches into a disabled state on permission denials
// until Retry is called, keeps the latest unsynced snapshot per user for a
// later FlushPending, and maintains a live subscription that copies remote
// changes into the device cache.
package remote

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"brainbounce/internal/localstore"
	"brainbounce/internal/model"
	"brainbounce/internal/repository"
)

// Documents is the cloud document store.
type Documents interface {
	Get(ctx context.Context, caller, userID model.UserID) (*model.UserDocument, error)
	Set(ctx context.Context, userID model.UserID, state model.AppState, meta repository.WriteMeta) (*model.UserDocument, error)
	Delete(ctx context.Context, caller, userID model.UserID) error
	Watch(userID model.UserID, fn func(repository.Change)) func()
	Ping(ctx context.Context) error
}

// Cache is the device-local copy the store reads first and keeps updated.
type Cache interface {
	Cached(ns localstore.Namespace) (model.AppState, bool)
	Save(ns localstore.Namespace, state model.AppState)
}

// State is the availability of cloud sync on this device.
type State int

const (
	StateUnknown State = iota
	StateAvailable
	StateDisabled
)

func (s State) String() string {
	switch s {
	case StateAvailable:
		return "available"
	case StateDisabled:
		return "disabled"
	default:
		return "unknown"
	}
}

// Config tunes retries and probing.
type Config struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	ProbeTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		MaxAttempts:  3,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		ProbeTimeout: 5 * time.Second,
	}
}

// ChangeFunc receives remote documents written by other devices.
type ChangeFunc func(userID model.UserID, state model.AppState, clientTimestamp int64)

type Store struct {
	docs   Documents
	cache  Cache
	device string
	cfg    Config
	now    func() time.Time

	mu          sync.Mutex
	user        model.UserID
	state       State
	alertShown  bool
	onDenied    func()
	onChange    ChangeFunc
	unsubscribe func()
	subUser     model.UserID
	subGen      uint64
	pending     map[model.UserID]model.AppState
}

// New creates a store for device. docs may be nil when cloud sync is not configured.
func New(docs Documents, cache Cache, device string, cfg Config) *Store {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultConfig().MaxAttempts
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = DefaultConfig().ProbeTimeout
	}
	return &Store{
		docs:    docs,
		cache:   cache,
		device:  device,
		cfg:     cfg,
		now:     time.Now,
		pending: make(map[model.UserID]model.AppState),
	}
}

// SetUser records who is authenticated on the device; empty means signed out.
func (s *Store) SetUser(id model.UserID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = id
}

// OnPermissionDenied registers the one-time alert shown when sync gets disabled.
func (s *Store) OnPermissionDenied(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onDenied = fn
}

// OnRemoteChange registers a listener for documents delivered by the live subscription.
func (s *Store) OnRemoteChange(fn ChangeFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = fn
}

// IsAvailable is true when sync is not disabled, a client exists and a user is signed in.
func (s *Store) IsAvailable() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.availableLocked()
}

func (s *Store) availableLocked() bool {
	return s.state != StateDisabled && s.docs != nil && s.user != ""
}

func (s *Store) unavailableErrLocked() error {
	switch {
	case s.state == StateDisabled:
		return ErrSyncDisabled
	case s.docs == nil:
		return ErrNoClient
	default:
		return ErrSignedOut
	}
}

func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Retry re-arms cloud access after a permission denial.
func (s *Store) Retry() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateDisabled {
		s.state = StateUnknown
	}
	s.alertShown = false
}

func (s *Store) markAvailable() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateDisabled {
		s.state = StateAvailable
	}
}

func (s *Store) disable() {
	s.mu.Lock()
	s.state = StateDisabled
	alert := !s.alertShown
	s.alertShown = true
	fn := s.onDenied
	s.mu.Unlock()

	log.Printf("[info] remote %s: permission denied, cloud sync disabled", s.device)
	if alert && fn != nil {
		fn()
	}
}

// Save merges state into the user's document. Only the signed-in user's
// document is written; a save for anyone else fails with ErrStaleUser and
// leaves the availability state alone.
func (s *Store) Save(ctx context.Context, userID model.UserID, state model.AppState) error {
	s.mu.Lock()
	if !s.availableLocked() {
		err := s.unavailableErrLocked()
		s.mu.Unlock()
		return err
	}
	caller := s.user
	s.mu.Unlock()
	if userID != caller {
		return ErrStaleUser
	}

	meta := repository.WriteMeta{
		Caller:          caller,
		Origin:          s.device,
		ClientTimestamp: s.now().UnixMilli(),
	}
	err := s.withRetry(ctx, "save", func(ctx context.Context) error {
		_, err := s.docs.Set(ctx, userID, state, meta)
		return err
	})

	switch {
	case err == nil:
		s.markAvailable()
		s.mu.Lock()
		delete(s.pending, userID)
		s.mu.Unlock()
		return nil
	case !s.isCurrent(userID):
		// The user switched while the write was in flight.
		return fmt.Errorf("%w: %v", ErrStaleUser, err)
	case Classify(err) == CodePermissionDenied:
		s.disable()
		return err
	default:
		s.mu.Lock()
		s.pending[userID] = state.Clone()
		s.mu.Unlock()
		log.Printf("remote %s: save for %s queued for retry: %v", s.device, userID, err)
		return err
	}
}

// Delete removes the user's document from the cloud and forgets any snapshot
// queued for it.
func (s *Store) Delete(ctx context.Context, userID model.UserID) error {
	s.mu.Lock()
	if !s.availableLocked() {
		err := s.unavailableErrLocked()
		s.mu.Unlock()
		return err
	}
	caller := s.user
	delete(s.pending, userID)
	s.mu.Unlock()
	if userID != caller {
		return ErrStaleUser
	}

	err := s.withRetry(ctx, "delete", func(ctx context.Context) error {
		return s.docs.Delete(ctx, caller, userID)
	})
	switch {
	case err == nil, Classify(err) == CodeNotFound:
		return nil
	case Classify(err) == CodePermissionDenied && s.isCurrent(userID):
		s.disable()
	}
	return err
}

func (s *Store) isCurrent(userID model.UserID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user == userID
}

// Load returns the cached state when the device has one and otherwise fetches
// the document. Either way it (re)establishes the live subscription. A nil
// state with nil error means the user has no document yet.
func (s *Store) Load(ctx context.Context, userID model.UserID) (*model.AppState, error) {
	ns := localstore.User(userID)
	cached, hasCache := s.cache.Cached(ns)

	s.mu.Lock()
	if !s.availableLocked() {
		err := s.unavailableErrLocked()
		s.mu.Unlock()
		if hasCache {
			return &cached, nil
		}
		return nil, err
	}
	caller := s.user
	s.mu.Unlock()
	if userID != caller {
		return nil, ErrStaleUser
	}

	// A cached copy may be stale, so refresh it once in the background.
	s.subscribe(userID, caller, hasCache)

	if hasCache {
		return &cached, nil
	}

	var doc *model.UserDocument
	err := s.withRetry(ctx, "load", func(ctx context.Context) error {
		d, err := s.docs.Get(ctx, caller, userID)
		if err != nil {
			return err
		}
		doc = d
		return nil
	})

	switch {
	case err == nil:
		s.markAvailable()
		state := model.Normalize(doc.Data)
		s.cache.Save(ns, state)
		return &state, nil
	case Classify(err) == CodeNotFound:
		s.markAvailable()
		return nil, nil
	case !s.isCurrent(userID):
		return nil, fmt.Errorf("%w: %v", ErrStaleUser, err)
	case Classify(err) == CodePermissionDenied:
		s.disable()
		return nil, nil
	default:
		return nil, err
	}
}

// subscribe replaces the live subscription with one for userID. With refresh
// set it also fetches the document once, so the cache converges even without
// further changes.
func (s *Store) subscribe(userID, caller model.UserID, refresh bool) {
	s.mu.Lock()
	if s.unsubscribe != nil && s.subUser == userID {
		s.mu.Unlock()
		return
	}
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
	s.subGen++
	gen := s.subGen
	s.subUser = userID
	s.mu.Unlock()

	cancel := s.docs.Watch(userID, func(change repository.Change) {
		if change.Origin == s.device {
			return
		}
		s.refresh(userID, caller, gen)
	})

	s.mu.Lock()
	if s.subGen != gen {
		// Cleanup ran while we were subscribing.
		s.mu.Unlock()
		cancel()
		return
	}
	s.unsubscribe = cancel
	s.mu.Unlock()

	if refresh {
		go s.refresh(userID, caller, gen)
	}
}

func (s *Store) refresh(userID, caller model.UserID, gen uint64) {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ProbeTimeout)
	defer cancel()

	doc, err := s.docs.Get(ctx, caller, userID)
	if err != nil {
		if Classify(err) == CodePermissionDenied {
			s.disable()
		} else if Classify(err) != CodeNotFound {
			log.Printf("remote %s: refresh %s: %v", s.device, userID, err)
		}
		return
	}

	s.mu.Lock()
	stale := s.subGen != gen || s.user != userID
	_, hasPending := s.pending[userID]
	fn := s.onChange
	s.mu.Unlock()
	if stale || hasPending {
		return
	}

	state := model.Normalize(doc.Data)
	s.cache.Save(localstore.User(userID), state)
	s.markAvailable()
	if fn != nil {
		fn(userID, state, doc.ClientTimestamp)
	}
}

// Cleanup tears down the live subscription and resets every sync flag.
func (s *Store) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
	s.subGen++
	s.subUser = ""
	s.state = StateUnknown
	s.alertShown = false
	s.pending = make(map[model.UserID]model.AppState)
}

// Probe races a round trip to the document store against the probe timeout.
func (s *Store) Probe(ctx context.Context) bool {
	if !s.IsAvailable() {
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.ProbeTimeout)
	defer cancel()

	result := make(chan bool, 1)
	go func() {
		result <- s.docs.Ping(ctx) == nil
	}()

	select {
	case ok := <-result:
		return ok
	case <-ctx.Done():
		return false
	}
}

// PendingCount is the number of users with a snapshot waiting for FlushPending.
func (s *Store) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// FlushPending replays queued snapshots for the signed-in user.
func (s *Store) FlushPending(ctx context.Context) error {
	s.mu.Lock()
	user := s.user
	state, ok := s.pending[user]
	s.mu.Unlock()

	if !ok {
		return nil
	}
	return s.Save(ctx, user, state)
}

func (s *Store) withRetry(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	b := backoff.NewExponentialBackOff()
	if s.cfg.InitialDelay > 0 {
		b.InitialInterval = s.cfg.InitialDelay
	}
	if s.cfg.MaxDelay > 0 {
		b.MaxInterval = s.cfg.MaxDelay
	}
	b.MaxElapsedTime = 0

	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(s.cfg.MaxAttempts-1)), ctx)

	attempt := 0
	return backoff.Retry(func() error {
		attempt++
		err := fn(ctx)
		if err == nil {
			return nil
		}
		code := Classify(err)
		wrapped := &Error{Code: code, Op: op, Err: err}
		if !code.Transient() {
			return backoff.Permanent(wrapped)
		}
		log.Printf("remote %s: %s attempt %d/%d failed: %v", s.device, op, attempt, s.cfg.MaxAttempts, err)
		if errors.Is(ctx.Err(), context.Canceled) {
			return backoff.Permanent(wrapped)
		}
		return wrapped
	}, policy)
}
