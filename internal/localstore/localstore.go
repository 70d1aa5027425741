// Package localstore keeps the on-device copy of each user's AppState.
//
// Every chat (device) owns a row per namespace in a single SQLite table. The
// store never returns errors to callers: local persistence is the fallback
// beneath the remote store, so failures are logged and absorbed.
package localstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync/atomic"

	_ "github.com/glebarez/go-sqlite"

	"brainbounce/internal/model"
)

// ErrQuotaExceeded is returned by writes that would push a device over its quota.
var ErrQuotaExceeded = errors.New("local storage quota exceeded")

// Namespace separates guest data from each signed-in user's data.
type Namespace struct {
	user model.UserID
}

// Guest is the namespace used while nobody is signed in.
func Guest() Namespace {
	return Namespace{}
}

// User is the namespace of an authenticated account. An empty id is the guest namespace.
func User(id model.UserID) Namespace {
	return Namespace{user: id}
}

func (n Namespace) IsGuest() bool {
	return n.user == ""
}

func (n Namespace) UserID() model.UserID {
	return n.user
}

// Key is the storage key; guest and user keys cannot collide.
func (n Namespace) Key() string {
	if n.IsGuest() {
		return "guest"
	}
	return "user:" + string(n.user)
}

func (n Namespace) String() string {
	return n.Key()
}

// DB is the shared on-device database.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database at path and migrates it.
func Open(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open local db: %w", err)
	}
	// A single connection keeps :memory: databases coherent and serializes writers.
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping local db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate local db: %w", err)
	}
	return db, nil
}

func (d *DB) migrate() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS local_storage (
			device TEXT NOT NULL,
			namespace TEXT NOT NULL,
			value TEXT NOT NULL,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (device, namespace)
		)`,
	}
	for _, q := range queries {
		if _, err := d.conn.Exec(q); err != nil {
			return fmt.Errorf("execute migration: %w", err)
		}
	}
	return nil
}

func (d *DB) Close() error {
	return d.conn.Close()
}

// Device returns the store for one device. quota limits the total bytes the
// device may hold; zero disables the limit.
func (d *DB) Device(device string, quota int) *Store {
	return &Store{conn: d.conn, device: device, quota: quota}
}

// Store reads and writes AppState blobs for a single device.
type Store struct {
	conn   *sql.DB
	device string
	quota  int
	writes atomic.Int64
}

// Load returns the stored state for ns, or a default state when nothing is
// stored or the entry cannot be parsed. Corrupted entries are removed.
func (s *Store) Load(ns Namespace) model.AppState {
	state, ok := s.Cached(ns)
	if !ok {
		return model.DefaultState()
	}
	return state
}

// Cached returns the stored state for ns and whether a usable entry existed.
func (s *Store) Cached(ns Namespace) (model.AppState, bool) {
	var raw string
	err := s.conn.QueryRow(`SELECT value FROM local_storage WHERE device = ? AND namespace = ?`, s.device, ns.Key()).Scan(&raw)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return model.AppState{}, false
	case err != nil:
		log.Printf("local load %s/%s: %v", s.device, ns, err)
		return model.AppState{}, false
	}

	var state model.AppState
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		log.Printf("local load %s/%s: corrupted entry cleared: %v", s.device, ns, err)
		s.ClearUserData(ns)
		return model.AppState{}, false
	}
	return model.Normalize(state), true
}

// Save writes state for ns. A failed write clears the namespace and retries
// once; a second failure is logged and the write is dropped.
func (s *Store) Save(ns Namespace, state model.AppState) {
	payload, err := json.Marshal(state)
	if err != nil {
		log.Printf("local save %s/%s: marshal: %v", s.device, ns, err)
		return
	}

	err = s.write(ns, payload)
	if err == nil {
		return
	}
	log.Printf("local save %s/%s: %v; clearing and retrying", s.device, ns, err)

	s.ClearUserData(ns)
	if err := s.write(ns, payload); err != nil {
		log.Printf("local save %s/%s: retry failed, dropping write: %v", s.device, ns, err)
	}
}

func (s *Store) write(ns Namespace, payload []byte) error {
	if s.quota > 0 {
		var used int64
		err := s.conn.QueryRow(`SELECT COALESCE(SUM(LENGTH(value)), 0) FROM local_storage WHERE device = ?`, s.device).Scan(&used)
		if err != nil {
			return fmt.Errorf("measure usage: %w", err)
		}
		if used+int64(len(payload)) > int64(s.quota) {
			return ErrQuotaExceeded
		}
	}

	_, err := s.conn.Exec(`INSERT INTO local_storage (device, namespace, value, updated_at) VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(device, namespace) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		s.device, ns.Key(), string(payload))
	if err != nil {
		return fmt.Errorf("write entry: %w", err)
	}
	s.writes.Add(1)
	return nil
}

// ClearUserData removes only the entry for ns.
func (s *Store) ClearUserData(ns Namespace) {
	if _, err := s.conn.Exec(`DELETE FROM local_storage WHERE device = ? AND namespace = ?`, s.device, ns.Key()); err != nil {
		log.Printf("local clear %s/%s: %v", s.device, ns, err)
	}
}

// ClearAll is a best-effort wipe of everything this device has stored.
func (s *Store) ClearAll(ctx context.Context) {
	if _, err := s.conn.ExecContext(ctx, `DELETE FROM local_storage WHERE device = ?`, s.device); err != nil {
		log.Printf("local clear all %s: %v", s.device, err)
		return
	}
	if _, err := s.conn.ExecContext(ctx, `VACUUM`); err != nil {
		log.Printf("local vacuum %s: %v", s.device, err)
	}
}

// Writes is the number of successful physical writes since the store was created.
func (s *Store) Writes() int64 {
	return s.writes.Load()
}
