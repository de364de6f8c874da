// Package invites stores single-use tokens: pending team invitations and email verification
// tokens. An invitation is a random token mapped to the company, role and email it was issued
// for; it expires after a fixed TTL and is consumed when accepted.
//
// Production uses Redis (keys "invite_data:<token>" and "verify_token:<token>"); the memory
// stores serve single-instance deployments with Redis disabled, and tests.
package invites

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/mailnow/mailnow-admin/internal/enums"
)

// KeyPrefix namespaces invitation keys in Redis.
const KeyPrefix = "invite_data:"

// DefaultTTL is how long an invitation stays valid.
const DefaultTTL = 24 * time.Hour

// Invite is the payload stored under a token.
type Invite struct {
	CompanyID int64      `json:"company_id"`
	Role      enums.Role `json:"role"`
	Email     string     `json:"email"`
	InvitedBy int64      `json:"invited_by,omitempty"`
}

// Store persists invitations.
type Store interface {
	// Save stores inv and returns its new token.
	Save(ctx context.Context, inv Invite) (string, error)
	// Load returns the invitation for token, or nil when it is unknown or expired.
	Load(ctx context.Context, token string) (*Invite, error)
	// Delete consumes token. Deleting an unknown token is not an error.
	Delete(ctx context.Context, token string) error
}

func newToken() string { return uuid.NewString() }

// ---- Redis -----------------------------------------------------------------

// redisClient is the subset of *redis.Client the store uses.
type redisClient interface {
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// RedisStore keeps invitations in Redis with a TTL.
type RedisStore struct {
	client redisClient
	ttl    time.Duration
}

// NewRedisStore creates a RedisStore. ttl <= 0 means DefaultTTL.
func NewRedisStore(client redisClient, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{client: client, ttl: ttl}
}

// Save implements Store.
func (s *RedisStore) Save(ctx context.Context, inv Invite) (string, error) {
	payload, err := json.Marshal(inv)
	if err != nil {
		return "", fmt.Errorf("failed to encode invite: %w", err)
	}
	token := newToken()
	if err := s.client.Set(ctx, KeyPrefix+token, payload, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("failed to store invite: %w", err)
	}
	return token, nil
}

// Load implements Store.
func (s *RedisStore) Load(ctx context.Context, token string) (*Invite, error) {
	raw, err := s.client.Get(ctx, KeyPrefix+token).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load invite: %w", err)
	}
	var inv Invite
	if err := json.Unmarshal(raw, &inv); err != nil {
		return nil, fmt.Errorf("failed to decode invite: %w", err)
	}
	return &inv, nil
}

// Delete implements Store.
func (s *RedisStore) Delete(ctx context.Context, token string) error {
	if err := s.client.Del(ctx, KeyPrefix+token).Err(); err != nil {
		return fmt.Errorf("failed to delete invite: %w", err)
	}
	return nil
}

// ---- Memory ----------------------------------------------------------------

type memoryEntry struct {
	invite  Invite
	expires time.Time
}

// MemoryStore keeps invitations in process memory.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

// NewMemoryStore creates a MemoryStore. ttl <= 0 means DefaultTTL.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{entries: map[string]memoryEntry{}, ttl: ttl, now: time.Now}
}

// Save implements Store.
func (s *MemoryStore) Save(_ context.Context, inv Invite) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evictLocked()
	token := newToken()
	s.entries[token] = memoryEntry{invite: inv, expires: s.now().Add(s.ttl)}
	return token, nil
}

// Load implements Store.
func (s *MemoryStore) Load(_ context.Context, token string) (*Invite, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[token]
	if !ok || !s.now().Before(e.expires) {
		return nil, nil
	}
	inv := e.invite
	return &inv, nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, token)
	return nil
}

func (s *MemoryStore) evictLocked() {
	now := s.now()
	for token, e := range s.entries {
		if !now.Before(e.expires) {
			delete(s.entries, token)
		}
	}
}
