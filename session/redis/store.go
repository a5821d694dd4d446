// Package redis persists core sessions in Redis.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	backend "github.com/redis/go-redis/v9"

	"github.com/hupe1980/tripmesh/core"
	"github.com/hupe1980/tripmesh/session"
)

const maxDeltaRetries = 8

// Store implements core.SessionStore using Redis. The session header lives
// under <prefix><id> as JSON and the event history as a list under
// <prefix><id>:events.
type Store struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

var _ core.SessionStore = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithTTL sets the expiration for sessions.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.ttl = ttl
	}
}

// WithPrefix sets the key prefix for sessions.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// New creates a new Redis store with options.
func New(address, password string, db int, opts ...Option) *Store {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})

	return NewFromClient(rdb, opts...)
}

// NewFromClient creates a new Redis store from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Store {
	store := &Store{
		client: client,
		prefix: "tripmesh:session:",
	}

	for _, opt := range opts {
		opt(store)
	}

	return store
}

type header struct {
	AppName string         `json:"app_name"`
	UserID  string         `json:"user_id"`
	ID      string         `json:"id"`
	State   map[string]any `json:"state"`
	Created time.Time      `json:"created"`
	Updated time.Time      `json:"updated"`
}

func (s *Store) key(sessionID string) string { return s.prefix + sessionID }

func (s *Store) eventsKey(sessionID string) string { return s.prefix + sessionID + ":events" }

// Create stores a fresh session header. It fails if the id is taken.
func (s *Store) Create(ctx context.Context, appName, userID, sessionID string) (*core.Session, error) {
	sess := core.NewSession(appName, userID, sessionID)

	data, err := json.Marshal(header{
		AppName: appName,
		UserID:  userID,
		ID:      sessionID,
		State:   map[string]any{},
		Created: sess.Created,
		Updated: sess.Updated,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal session: %w", err)
	}

	ok, err := s.client.SetNX(ctx, s.key(sessionID), data, s.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to create session in redis: %w", err)
	}

	if !ok {
		return nil, fmt.Errorf("%w: %s", session.ErrSessionExists, sessionID)
	}

	return sess, nil
}

// Get loads the header and full event history in one round trip.
func (s *Store) Get(ctx context.Context, sessionID string) (*core.Session, error) {
	pipe := s.client.Pipeline()
	hdrCmd := pipe.Get(ctx, s.key(sessionID))
	evCmd := pipe.LRange(ctx, s.eventsKey(sessionID), 0, -1)

	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, backend.Nil) {
		return nil, fmt.Errorf("failed to get from redis: %w", err)
	}

	raw, err := hdrCmd.Bytes()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return nil, fmt.Errorf("%w: %s", session.ErrSessionNotFound, sessionID)
		}

		return nil, fmt.Errorf("failed to get from redis: %w", err)
	}

	var h header
	if err := json.Unmarshal(raw, &h); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}

	sess := core.NewSession(h.AppName, h.UserID, h.ID)
	sess.Created = h.Created
	if h.State != nil {
		sess.State = h.State
	}

	for _, item := range evCmd.Val() {
		var ev core.Event
		if err := json.Unmarshal([]byte(item), &ev); err != nil {
			return nil, fmt.Errorf("failed to unmarshal event: %w", err)
		}

		sess.AddEvent(ev)
	}

	sess.Updated = h.Updated

	return sess, nil
}

// AppendEvent pushes the event onto the session's history list.
func (s *Store) AppendEvent(ctx context.Context, sessionID string, ev core.Event) error {
	if err := s.exists(ctx, sessionID); err != nil {
		return err
	}

	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe backend.Pipeliner) error {
		pipe.RPush(ctx, s.eventsKey(sessionID), data)
		if s.ttl > 0 {
			pipe.Expire(ctx, s.eventsKey(sessionID), s.ttl)
			pipe.Expire(ctx, s.key(sessionID), s.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}

	return nil
}

// ApplyDelta merges delta into the stored state with optimistic locking.
func (s *Store) ApplyDelta(ctx context.Context, sessionID string, delta map[string]any) error {
	key := s.key(sessionID)

	txf := func(tx *backend.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, backend.Nil) {
				return fmt.Errorf("%w: %s", session.ErrSessionNotFound, sessionID)
			}
			return err
		}

		var h header
		if err := json.Unmarshal(raw, &h); err != nil {
			return fmt.Errorf("failed to unmarshal session: %w", err)
		}

		if h.State == nil {
			h.State = map[string]any{}
		}

		for k, v := range delta {
			h.State[k] = v
		}

		h.Updated = time.Now().UTC()

		data, err := json.Marshal(h)
		if err != nil {
			return fmt.Errorf("failed to marshal session: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe backend.Pipeliner) error {
			pipe.Set(ctx, key, data, s.ttl)
			return nil
		})

		return err
	}

	for range maxDeltaRetries {
		err := s.client.Watch(ctx, txf, key)
		if errors.Is(err, backend.TxFailedErr) {
			continue
		}

		return err
	}

	return fmt.Errorf("failed to apply delta to %s: too much contention", sessionID)
}

// Close closes the redis client.
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) exists(ctx context.Context, sessionID string) error {
	n, err := s.client.Exists(ctx, s.key(sessionID)).Result()
	if err != nil {
		return fmt.Errorf("failed to check session: %w", err)
	}

	if n == 0 {
		return fmt.Errorf("%w: %s", session.ErrSessionNotFound, sessionID)
	}

	return nil
}
