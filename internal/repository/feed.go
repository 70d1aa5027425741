package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"github.com/redis/go-redis/v9"

	"brainbounce/internal/model"
)

// Change announces that a user's document was rewritten.
type Change struct {
	UserID          model.UserID `json:"userId"`
	Origin          string       `json:"origin"`
	ClientTimestamp int64        `json:"clientTimestamp"`
}

// Feed delivers document changes to live subscribers.
type Feed interface {
	Publish(ctx context.Context, change Change) error
	// Subscribe registers fn for changes of userID and returns a function that
	// cancels the subscription. Callbacks run on their own goroutine.
	Subscribe(userID model.UserID, fn func(Change)) func()
}

// MemoryFeed fans changes out to subscribers in the same process.
type MemoryFeed struct {
	mu     sync.Mutex
	nextID int
	subs   map[model.UserID]map[int]func(Change)
}

func NewMemoryFeed() *MemoryFeed {
	return &MemoryFeed{subs: make(map[model.UserID]map[int]func(Change))}
}

func (f *MemoryFeed) Publish(_ context.Context, change Change) error {
	f.mu.Lock()
	callbacks := make([]func(Change), 0, len(f.subs[change.UserID]))
	for _, fn := range f.subs[change.UserID] {
		callbacks = append(callbacks, fn)
	}
	f.mu.Unlock()

	for _, fn := range callbacks {
		go fn(change)
	}
	return nil
}

func (f *MemoryFeed) Subscribe(userID model.UserID, fn func(Change)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()

	id := f.nextID
	f.nextID++
	if f.subs[userID] == nil {
		f.subs[userID] = make(map[int]func(Change))
	}
	f.subs[userID][id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			defer f.mu.Unlock()
			delete(f.subs[userID], id)
			if len(f.subs[userID]) == 0 {
				delete(f.subs, userID)
			}
		})
	}
}

// RedisFeed shares changes between processes through Redis pub/sub.
type RedisFeed struct {
	client *redis.Client
	prefix string
}

// NewRedisFeed connects to the Redis server at url (redis://host:port/db).
func NewRedisFeed(ctx context.Context, url string) (*RedisFeed, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &RedisFeed{client: client, prefix: "brainbounce:users:"}, nil
}

func (f *RedisFeed) channel(userID model.UserID) string {
	return f.prefix + string(userID)
}

func (f *RedisFeed) Publish(ctx context.Context, change Change) error {
	payload, err := json.Marshal(change)
	if err != nil {
		return fmt.Errorf("marshal change: %w", err)
	}
	if err := f.client.Publish(ctx, f.channel(change.UserID), payload).Err(); err != nil {
		return fmt.Errorf("publish change: %w", err)
	}
	return nil
}

func (f *RedisFeed) Subscribe(userID model.UserID, fn func(Change)) func() {
	ctx, cancel := context.WithCancel(context.Background())
	pubsub := f.client.Subscribe(ctx, f.channel(userID))

	go func() {
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var change Change
				if err := json.Unmarshal([]byte(msg.Payload), &change); err != nil {
					log.Printf("redis feed %s: bad payload: %v", userID, err)
					continue
				}
				fn(change)
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			if err := pubsub.Close(); err != nil {
				log.Printf("redis feed %s: close: %v", userID, err)
			}
		})
	}
}

func (f *RedisFeed) Close() error {
	return f.client.Close()
}
