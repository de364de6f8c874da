package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mailnow/mailnow-admin/internal/apperr"
	"github.com/mailnow/mailnow-admin/internal/auth"
	"github.com/mailnow/mailnow-admin/internal/db/models"
	"github.com/mailnow/mailnow-admin/internal/enums"
)

// ---------------------------------------------------------------------------
// Fake store
// ---------------------------------------------------------------------------

type fakeAPIKeyStore struct {
	mu        sync.Mutex
	byID      map[int64]*models.APIKey
	nextID    int64
	collide   int // number of Create calls to fail with ErrDuplicate
	createErr error
	touched   chan int64
}

func newFakeAPIKeyStore() *fakeAPIKeyStore {
	return &fakeAPIKeyStore{byID: map[int64]*models.APIKey{}, touched: make(chan int64, 4)}
}

func (f *fakeAPIKeyStore) Create(_ context.Context, key *models.APIKey) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	if f.collide > 0 {
		f.collide--
		return fmt.Errorf("api key token collision: %w", apperr.ErrDuplicate)
	}
	for _, k := range f.byID {
		if k.KeyHash == key.KeyHash {
			return apperr.ErrDuplicate
		}
	}
	f.nextID++
	key.ID = f.nextID
	key.IsActive = true
	key.CreatedAt = time.Now()
	cp := *key
	f.byID[key.ID] = &cp
	return nil
}

func (f *fakeAPIKeyStore) GetByHash(_ context.Context, h string) (*models.APIKey, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range f.byID {
		if k.KeyHash == h {
			cp := *k
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeAPIKeyStore) GetByID(_ context.Context, id int64) (*models.APIKey, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if k, ok := f.byID[id]; ok {
		cp := *k
		return &cp, nil
	}
	return nil, nil
}

func (f *fakeAPIKeyStore) ListByCompany(_ context.Context, companyID int64) ([]models.APIKey, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.APIKey{}
	for _, k := range f.byID {
		if k.CompanyID == companyID {
			out = append(out, *k)
		}
	}
	return out, nil
}

func (f *fakeAPIKeyStore) Stats(_ context.Context, companyID int64) (*models.APIKeyStats, error) {
	keys, _ := f.ListByCompany(context.Background(), companyID)
	s := &models.APIKeyStats{Total: int64(len(keys))}
	for _, k := range keys {
		if k.IsActive {
			s.Active++
		}
	}
	return s, nil
}

func (f *fakeAPIKeyStore) Deactivate(_ context.Context, companyID, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	k, ok := f.byID[id]
	if !ok || k.CompanyID != companyID {
		return apperr.ErrNotFound
	}
	k.IsActive = false
	return nil
}

func (f *fakeAPIKeyStore) Delete(_ context.Context, companyID, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	k, ok := f.byID[id]
	if !ok || k.CompanyID != companyID {
		return apperr.ErrNotFound
	}
	delete(f.byID, id)
	return nil
}

func (f *fakeAPIKeyStore) UpdateLastUsed(_ context.Context, id int64, at time.Time) error {
	f.mu.Lock()
	if k, ok := f.byID[id]; ok {
		k.LastUsed = &at
	}
	f.mu.Unlock()
	f.touched <- id
	return nil
}

var fixedNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func newTestAPIKeyService(store APIKeyStore) *APIKeyService {
	s := NewAPIKeyService(store, APIKeyOptions{MaxGenerationAttempts: 3, LastUsedTimeout: time.Second})
	s.now = func() time.Time { return fixedNow }
	return s
}

// ---------------------------------------------------------------------------
// Issue
// ---------------------------------------------------------------------------

func TestIssue_ReturnsPlaintextOnceAndStoresDigest(t *testing.T) {
	store := newFakeAPIKeyStore()
	svc := newTestAPIKeyService(store)

	issued, err := svc.Issue(context.Background(), 3, "  prod  ", "", nil)
	require.NoError(t, err)

	assert.True(t, auth.LooksLikeAPIKey(issued.Key), "token %q", issued.Key)
	assert.Equal(t, "prod", issued.Name)
	assert.Equal(t, enums.PermissionFullAccess, issued.Permission)
	assert.True(t, issued.IsActive)
	assert.Nil(t, issued.LastUsed)
	assert.Equal(t, issued.Key[:auth.DisplayPrefixLength], issued.KeyPrefix)

	stored, _ := store.GetByID(context.Background(), issued.ID)
	assert.Equal(t, auth.HashAPIKey(issued.Key), stored.KeyHash)
	assert.NotContains(t, stored.KeyHash, issued.Key)
}

func TestIssue_TwoKeysDiffer(t *testing.T) {
	svc := newTestAPIKeyService(newFakeAPIKeyStore())
	a, err := svc.Issue(context.Background(), 3, "a", enums.PermissionSendOnly, nil)
	require.NoError(t, err)
	b, err := svc.Issue(context.Background(), 3, "b", enums.PermissionSendOnly, nil)
	require.NoError(t, err)
	assert.NotEqual(t, a.Key, b.Key)
}

func TestIssue_RetriesCollision(t *testing.T) {
	store := newFakeAPIKeyStore()
	store.collide = 2
	svc := newTestAPIKeyService(store)

	issued, err := svc.Issue(context.Background(), 3, "k", enums.PermissionReadOnly, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, issued.Key)
}

func TestIssue_GenerationExhausted(t *testing.T) {
	store := newFakeAPIKeyStore()
	store.collide = 10
	svc := newTestAPIKeyService(store)

	_, err := svc.Issue(context.Background(), 3, "k", enums.PermissionReadOnly, nil)
	assert.ErrorIs(t, err, apperr.ErrGenerationFailed)
}

func TestIssue_ForcedDuplicateTokenIsRetried(t *testing.T) {
	store := newFakeAPIKeyStore()
	svc := newTestAPIKeyService(store)
	first, err := svc.Issue(context.Background(), 3, "k", "", nil)
	require.NoError(t, err)

	calls := 0
	svc.generate = func() (string, string, string, error) {
		calls++
		if calls == 1 {
			return first.Key, auth.HashAPIKey(first.Key), first.KeyPrefix, nil
		}
		return auth.GenerateAPIKey()
	}
	second, err := svc.Issue(context.Background(), 3, "k2", "", nil)
	require.NoError(t, err)
	assert.NotEqual(t, first.Key, second.Key)
	assert.Equal(t, 2, calls)
}

func TestIssue_Validation(t *testing.T) {
	svc := newTestAPIKeyService(newFakeAPIKeyStore())
	past := fixedNow.Add(-time.Hour)

	tests := []struct {
		name       string
		keyName    string
		permission enums.Permission
		expiresAt  *time.Time
	}{
		{"blank name", "   ", "", nil},
		{"bad permission", "k", enums.Permission("superuser"), nil},
		{"expiry in the past", "k", "", &past},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Issue(context.Background(), 3, tt.keyName, tt.permission, tt.expiresAt)
			assert.ErrorIs(t, err, apperr.ErrValidation)
		})
	}
}

func TestIssue_StoreErrorPropagates(t *testing.T) {
	store := newFakeAPIKeyStore()
	store.createErr = errors.New("connection reset")
	_, err := newTestAPIKeyService(store).Issue(context.Background(), 3, "k", "", nil)
	assert.ErrorContains(t, err, "connection reset")
}

// ---------------------------------------------------------------------------
// Authenticate
// ---------------------------------------------------------------------------

func TestAuthenticate_SuccessTouchesLastUsed(t *testing.T) {
	store := newFakeAPIKeyStore()
	svc := newTestAPIKeyService(store)
	issued, err := svc.Issue(context.Background(), 3, "k", enums.PermissionSendOnly, nil)
	require.NoError(t, err)

	key, err := svc.Authenticate(context.Background(), issued.Key)
	require.NoError(t, err)
	assert.Equal(t, issued.ID, key.ID)

	select {
	case id := <-store.touched:
		assert.Equal(t, issued.ID, id)
	case <-time.After(2 * time.Second):
		t.Fatal("last_used was not updated")
	}
	stored, _ := store.GetByID(context.Background(), issued.ID)
	require.NotNil(t, stored.LastUsed)
	assert.True(t, stored.LastUsed.Equal(fixedNow))
}

func TestAuthenticate_Failures(t *testing.T) {
	store := newFakeAPIKeyStore()
	svc := newTestAPIKeyService(store)
	past := fixedNow.Add(-time.Minute)

	inactive, _ := svc.Issue(context.Background(), 3, "inactive", "", nil)
	require.NoError(t, svc.Revoke(context.Background(), 3, inactive.ID))

	expiredAndInactive, _ := svc.Issue(context.Background(), 3, "both", "", nil)
	store.byID[expiredAndInactive.ID].ExpiresAt = &past
	store.byID[expiredAndInactive.ID].IsActive = false

	expired, _ := svc.Issue(context.Background(), 3, "expired", "", nil)
	store.byID[expired.ID].ExpiresAt = &past

	tests := []struct {
		name  string
		token string
		want  error
	}{
		{"unknown", "mk_live_00000000000000000000000000000000", apperr.ErrNotFound},
		{"inactive", inactive.Key, apperr.ErrInactiveKey},
		{"inactive wins over expired", expiredAndInactive.Key, apperr.ErrInactiveKey},
		{"expired", expired.Key, apperr.ErrExpiredKey},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Authenticate(context.Background(), tt.token)
			assert.ErrorIs(t, err, tt.want)
		})
	}
	assert.Empty(t, store.touched, "failed authentication must not touch last_used")
}

func TestAuthenticate_ExpiryExactlyNowIsExpired(t *testing.T) {
	store := newFakeAPIKeyStore()
	svc := newTestAPIKeyService(store)
	k, _ := svc.Issue(context.Background(), 3, "k", "", nil)
	now := fixedNow
	store.byID[k.ID].ExpiresAt = &now

	_, err := svc.Authenticate(context.Background(), k.Key)
	assert.ErrorIs(t, err, apperr.ErrExpiredKey)
}

// ---------------------------------------------------------------------------
// Authorize / Revoke / Delete
// ---------------------------------------------------------------------------

func TestAuthorize(t *testing.T) {
	svc := newTestAPIKeyService(newFakeAPIKeyStore())
	sendOnly := &models.APIKey{Permission: enums.PermissionSendOnly}

	assert.True(t, svc.Authorize(sendOnly, auth.CapSendEmail))
	assert.False(t, svc.Authorize(sendOnly, auth.CapReadLogs))
	assert.False(t, svc.Authorize(nil, auth.CapSendEmail))
}

func TestRevoke_IdempotentAndTenantScoped(t *testing.T) {
	store := newFakeAPIKeyStore()
	svc := newTestAPIKeyService(store)
	k, _ := svc.Issue(context.Background(), 3, "k", "", nil)

	require.NoError(t, svc.Revoke(context.Background(), 3, k.ID))
	require.NoError(t, svc.Revoke(context.Background(), 3, k.ID))
	assert.False(t, store.byID[k.ID].IsActive)

	assert.ErrorIs(t, svc.Revoke(context.Background(), 4, k.ID), apperr.ErrForbidden)
	assert.ErrorIs(t, svc.Revoke(context.Background(), 3, 999), apperr.ErrNotFound)
}

func TestDelete_TenantScoped(t *testing.T) {
	store := newFakeAPIKeyStore()
	svc := newTestAPIKeyService(store)
	k, _ := svc.Issue(context.Background(), 3, "k", "", nil)

	assert.ErrorIs(t, svc.Delete(context.Background(), 4, k.ID), apperr.ErrForbidden)
	require.NoError(t, svc.Delete(context.Background(), 3, k.ID))
	assert.ErrorIs(t, svc.Delete(context.Background(), 3, k.ID), apperr.ErrNotFound)
}

func TestListAndStats(t *testing.T) {
	store := newFakeAPIKeyStore()
	svc := newTestAPIKeyService(store)
	a, _ := svc.Issue(context.Background(), 3, "a", "", nil)
	_, _ = svc.Issue(context.Background(), 3, "b", "", nil)
	_, _ = svc.Issue(context.Background(), 4, "other", "", nil)
	require.NoError(t, svc.Revoke(context.Background(), 3, a.ID))

	keys, err := svc.List(context.Background(), 3)
	require.NoError(t, err)
	assert.Len(t, keys, 2)

	stats, err := svc.Stats(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Total)
	assert.Equal(t, int64(1), stats.Active)
}
