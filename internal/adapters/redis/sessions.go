package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	backend "github.com/redis/go-redis/v9"

	"github.com/haleybot/haley/pkg/domain"
)

// sessionIndexMax is the ZSET score used when sessions never expire.
const sessionIndexMax = 4102444800 // 2100-01-01

// SessionStore implements ports.SessionStore on Redis. Sessions are JSON
// values with an optional TTL; a ZSET index scored by expiry supports
// listing with lazy cleanup.
type SessionStore struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

// SessionOption configures the SessionStore.
type SessionOption func(*SessionStore)

// WithSessionTTL sets the expiration for sessions.
func WithSessionTTL(ttl time.Duration) SessionOption {
	return func(s *SessionStore) { s.ttl = ttl }
}

// WithSessionPrefix sets the key prefix for sessions.
func WithSessionPrefix(prefix string) SessionOption {
	return func(s *SessionStore) { s.prefix = prefix }
}

// NewSessionStore creates a session store on an existing client.
func NewSessionStore(client *backend.Client, opts ...SessionOption) *SessionStore {
	store := &SessionStore{
		client: client,
		prefix: "haley:session:",
		ttl:    0, // no expiration by default
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

func (s *SessionStore) key(sessionKey string) string {
	return s.prefix + sessionKey
}

func (s *SessionStore) indexKey() string {
	return s.prefix + "index"
}

// Save persists the session and refreshes its index entry.
func (s *SessionStore) Save(ctx context.Context, sess *domain.Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	score := float64(time.Now().Add(s.ttl).Unix())
	if s.ttl == 0 {
		score = sessionIndexMax
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, s.key(sess.Key()), data, s.ttl)
	pipe.ZAdd(ctx, s.indexKey(), backend.Z{Score: score, Member: sess.Key()})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save session to redis: %w", err)
	}
	return nil
}

// Load retrieves one session.
func (s *SessionStore) Load(ctx context.Context, key string) (*domain.Session, error) {
	val, err := s.client.Get(ctx, s.key(key)).Result()
	if err != nil {
		if err == backend.Nil {
			return nil, domain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("get session from redis: %w", err)
	}
	var sess domain.Session
	if err := json.Unmarshal([]byte(val), &sess); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return &sess, nil
}

// Delete removes the session and its index entry.
func (s *SessionStore) Delete(ctx context.Context, key string) error {
	pipe := s.client.Pipeline()
	pipe.Del(ctx, s.key(key))
	pipe.ZRem(ctx, s.indexKey(), key)
	_, err := pipe.Exec(ctx)
	return err
}

// Keys lists live session keys, pruning expired index entries first.
func (s *SessionStore) Keys(ctx context.Context) ([]string, error) {
	now := float64(time.Now().Unix())
	if err := s.client.ZRemRangeByScore(ctx, s.indexKey(), "-inf", fmt.Sprintf("%f", now)).Err(); err != nil {
		return nil, fmt.Errorf("prune expired sessions: %w", err)
	}
	keys, err := s.client.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return keys, nil
}
