package auth

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"brainbounce/internal/model"
)

var ErrSignedOut = errors.New("not signed in")

// Accounts persists profile data for signed-in users.
type Accounts interface {
	Upsert(ctx context.Context, userID model.UserID, email, displayName string) (*model.Account, error)
	UpdateProfile(ctx context.Context, userID model.UserID, displayName string) (*model.Account, error)
}

// Listener is called after the identity changed. prev or next is nil for
// the signed-out side of a transition.
type Listener func(ctx context.Context, prev, next *User)

// Gate tracks who is signed in on one device.
type Gate struct {
	issuer   *Issuer
	accounts Accounts

	mu        sync.Mutex
	current   *User
	token     string
	listeners []Listener
}

// NewGate creates a signed-out gate. accounts may be nil.
func NewGate(issuer *Issuer, accounts Accounts) *Gate {
	return &Gate{issuer: issuer, accounts: accounts}
}

// OnChange registers fn for identity transitions.
func (g *Gate) OnChange(fn Listener) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.listeners = append(g.listeners, fn)
}

// Current returns a copy of the signed-in user or nil.
func (g *Gate) Current() *User {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.current == nil {
		return nil
	}
	u := *g.current
	return &u
}

// Token is the session token of the signed-in user.
func (g *Gate) Token() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.token
}

// SignIn verifies token and makes its user current.
func (g *Gate) SignIn(ctx context.Context, token string) (*User, error) {
	user, err := g.issuer.Parse(token)
	if err != nil {
		return nil, err
	}

	if g.accounts != nil {
		account, err := g.accounts.Upsert(ctx, user.ID, user.Email, user.DisplayName)
		if err != nil {
			return nil, fmt.Errorf("upsert account: %w", err)
		}
		user.CreatedAt = account.CreatedAt
		if account.DisplayName != "" {
			user.DisplayName = account.DisplayName
		}
	}

	g.mu.Lock()
	prev := g.current
	g.current = user
	g.token = strings.TrimSpace(token)
	listeners := append([]Listener(nil), g.listeners...)
	g.mu.Unlock()

	if prev == nil || prev.ID != user.ID {
		log.Printf("[info] auth: signed in as %s", user.ID)
		next := *user
		for _, fn := range listeners {
			fn(ctx, prev, &next)
		}
	}

	u := *user
	return &u, nil
}

// SignOut forgets the current user. Signing out twice is a no-op.
func (g *Gate) SignOut(ctx context.Context) {
	g.mu.Lock()
	prev := g.current
	g.current = nil
	g.token = ""
	listeners := append([]Listener(nil), g.listeners...)
	g.mu.Unlock()

	if prev == nil {
		return
	}
	log.Printf("[info] auth: %s signed out", prev.ID)
	for _, fn := range listeners {
		fn(ctx, prev, nil)
	}
}

// UpdateProfile changes the display name of the signed-in user.
func (g *Gate) UpdateProfile(ctx context.Context, displayName string) (*User, error) {
	name := strings.TrimSpace(displayName)
	if name == "" {
		return nil, fmt.Errorf("display name is required")
	}

	g.mu.Lock()
	if g.current == nil {
		g.mu.Unlock()
		return nil, ErrSignedOut
	}
	id := g.current.ID
	g.mu.Unlock()

	if g.accounts != nil {
		if _, err := g.accounts.UpdateProfile(ctx, id, name); err != nil {
			return nil, fmt.Errorf("update profile: %w", err)
		}
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.current == nil || g.current.ID != id {
		return nil, ErrSignedOut
	}
	g.current.DisplayName = name
	u := *g.current
	return &u, nil
}
