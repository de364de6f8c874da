package invites

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// VerifyKeyPrefix namespaces email verification tokens in Redis.
const VerifyKeyPrefix = "verify_token:"

// Verification is the payload stored under an email verification token. Email pins the
// address the token was issued for.
type Verification struct {
	UserID int64  `json:"user_id"`
	Email  string `json:"email"`
}

// VerificationStore persists email verification tokens. Tokens are single use.
type VerificationStore interface {
	// Issue stores v and returns its new token.
	Issue(ctx context.Context, v Verification) (string, error)
	// Consume returns the verification for token and deletes it, or nil when the token is
	// unknown, expired or already used.
	Consume(ctx context.Context, token string) (*Verification, error)
}

// RedisVerificationStore keeps verification tokens in Redis with a TTL.
type RedisVerificationStore struct {
	client redisClient
	ttl    time.Duration
}

// NewRedisVerificationStore creates a RedisVerificationStore. ttl <= 0 means DefaultTTL.
func NewRedisVerificationStore(client redisClient, ttl time.Duration) *RedisVerificationStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisVerificationStore{client: client, ttl: ttl}
}

// Issue implements VerificationStore.
func (s *RedisVerificationStore) Issue(ctx context.Context, v Verification) (string, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to encode verification: %w", err)
	}
	token := newToken()
	if err := s.client.Set(ctx, VerifyKeyPrefix+token, payload, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("failed to store verification token: %w", err)
	}
	return token, nil
}

// Consume implements VerificationStore. Of two concurrent calls only the one whose DEL
// removed the key gets the payload.
func (s *RedisVerificationStore) Consume(ctx context.Context, token string) (*Verification, error) {
	key := VerifyKeyPrefix + token
	raw, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load verification token: %w", err)
	}
	removed, err := s.client.Del(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to delete verification token: %w", err)
	}
	if removed == 0 {
		return nil, nil
	}
	var v Verification
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("failed to decode verification: %w", err)
	}
	return &v, nil
}

type verificationEntry struct {
	v       Verification
	expires time.Time
}

// MemoryVerificationStore keeps verification tokens in process memory.
type MemoryVerificationStore struct {
	mu      sync.Mutex
	entries map[string]verificationEntry
	ttl     time.Duration
	now     func() time.Time
}

// NewMemoryVerificationStore creates a MemoryVerificationStore. ttl <= 0 means DefaultTTL.
func NewMemoryVerificationStore(ttl time.Duration) *MemoryVerificationStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryVerificationStore{entries: map[string]verificationEntry{}, ttl: ttl, now: time.Now}
}

// Issue implements VerificationStore.
func (s *MemoryVerificationStore) Issue(_ context.Context, v Verification) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for token, e := range s.entries {
		if !now.Before(e.expires) {
			delete(s.entries, token)
		}
	}
	token := newToken()
	s.entries[token] = verificationEntry{v: v, expires: now.Add(s.ttl)}
	return token, nil
}

// Consume implements VerificationStore.
func (s *MemoryVerificationStore) Consume(_ context.Context, token string) (*Verification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[token]
	if !ok {
		return nil, nil
	}
	delete(s.entries, token)
	if !s.now().Before(e.expires) {
		return nil, nil
	}
	v := e.v
	return &v, nil
}
