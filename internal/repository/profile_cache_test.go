package repository

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"ats-be/internal/domain"
	"ats-be/pkg/logger"
	"ats-be/pkg/redis"
	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// countingStore is an in-memory ProfileStore that counts reads so cache hits
// are observable.
type countingStore struct {
	mu    sync.Mutex
	rows  map[string]*domain.Profile
	reads int
}

func newCountingStore() *countingStore {
	return &countingStore{rows: map[string]*domain.Profile{}}
}

func (s *countingStore) GetByID(ctx context.Context, id string) (*domain.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++
	if row := s.rows[id]; row != nil {
		copied := *row
		return &copied, nil
	}
	return nil, nil
}

func (s *countingStore) Upsert(ctx context.Context, profile *domain.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *profile
	s.rows[profile.ID] = &copied
	return nil
}

func (s *countingStore) Update(ctx context.Context, id string, patch domain.ProfileUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row := s.rows[id]
	if row == nil {
		return fmt.Errorf("no row for %s", id)
	}
	if patch.Bio != nil {
		row.Bio = patch.Bio
	}
	if patch.FirstName != nil {
		row.FirstName = patch.FirstName
	}
	if patch.LastName != nil {
		row.LastName = patch.LastName
	}
	if patch.AvatarURL != nil {
		row.AvatarURL = patch.AvatarURL
	}
	return nil
}

func (s *countingStore) List(ctx context.Context) ([]domain.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Profile, 0, len(s.rows))
	for _, row := range s.rows {
		out = append(out, *row)
	}
	return out, nil
}

func (s *countingStore) SetRole(ctx context.Context, id string, role domain.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row := s.rows[id]
	if row == nil {
		return fmt.Errorf("no row for %s", id)
	}
	row.Role = role
	return nil
}

func (s *countingStore) readCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads
}

func setupCachedStore(t *testing.T) (*miniredis.Miniredis, *countingStore, *CachedProfileStore) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	redisClient, err := redis.NewClient("redis://"+mr.Addr(), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = redisClient.Close() })

	inner := newCountingStore()
	cached := NewCachedProfileStore(inner, redisClient, logger.NewNop())
	return mr, inner, cached
}

func TestCachedProfileStore_GetByIDCachesRow(t *testing.T) {
	_, inner, cached := setupCachedStore(t)
	ctx := context.Background()

	require.NoError(t, inner.Upsert(ctx, &domain.Profile{ID: "user-1", Role: domain.RoleHR}))

	first, err := cached.GetByID(ctx, "user-1")
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, domain.RoleHR, first.Role)

	second, err := cached.GetByID(ctx, "user-1")
	require.NoError(t, err)
	require.NotNil(t, second)
	assert.Equal(t, domain.RoleHR, second.Role)

	assert.Equal(t, 1, inner.readCount(), "second read should be served from cache")
}

func TestCachedProfileStore_MissingRowNotCached(t *testing.T) {
	_, inner, cached := setupCachedStore(t)
	ctx := context.Background()

	row, err := cached.GetByID(ctx, "ghost")
	require.NoError(t, err)
	assert.Nil(t, row)

	row, err = cached.GetByID(ctx, "ghost")
	require.NoError(t, err)
	assert.Nil(t, row)

	assert.Equal(t, 2, inner.readCount(), "absence is not cached")
}

func TestCachedProfileStore_SetRoleInvalidates(t *testing.T) {
	mr, inner, cached := setupCachedStore(t)
	ctx := context.Background()

	require.NoError(t, inner.Upsert(ctx, &domain.Profile{ID: "user-1", Role: domain.RoleJobSeeker}))

	row, err := cached.GetByID(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleJobSeeker, row.Role)
	assert.True(t, mr.Exists(fmt.Sprintf(redis.KeyProfileByID, "user-1")))

	require.NoError(t, cached.SetRole(ctx, "user-1", domain.RoleHR))
	assert.False(t, mr.Exists(fmt.Sprintf(redis.KeyProfileByID, "user-1")), "cached row must be dropped on role change")

	row, err = cached.GetByID(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleHR, row.Role, "role change must be visible immediately after invalidation")
}

func TestCachedProfileStore_UpdateInvalidates(t *testing.T) {
	_, _, cached := setupCachedStore(t)
	ctx := context.Background()

	require.NoError(t, cached.Upsert(ctx, &domain.Profile{ID: "user-1", Role: domain.RoleJobSeeker}))

	_, err := cached.GetByID(ctx, "user-1")
	require.NoError(t, err)

	bio := "Distributed systems person"
	require.NoError(t, cached.Update(ctx, "user-1", domain.ProfileUpdate{Bio: &bio}))

	row, err := cached.GetByID(ctx, "user-1")
	require.NoError(t, err)
	require.NotNil(t, row.Bio)
	assert.Equal(t, bio, *row.Bio)
}

func TestCachedProfileStore_CorruptedEntryFallsBack(t *testing.T) {
	mr, inner, cached := setupCachedStore(t)
	ctx := context.Background()

	require.NoError(t, inner.Upsert(ctx, &domain.Profile{ID: "user-1", Role: domain.RoleAdmin}))
	require.NoError(t, mr.Set(fmt.Sprintf(redis.KeyProfileByID, "user-1"), "{not json"))

	row, err := cached.GetByID(ctx, "user-1")
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, domain.RoleAdmin, row.Role)
}

func TestCachedProfileStore_RedisDownDegradesToInner(t *testing.T) {
	mr, inner, cached := setupCachedStore(t)
	ctx := context.Background()

	require.NoError(t, inner.Upsert(ctx, &domain.Profile{ID: "user-1", Role: domain.RoleHR}))
	mr.Close()

	row, err := cached.GetByID(ctx, "user-1")
	require.NoError(t, err, "cache outage must not fail reads")
	require.NotNil(t, row)
	assert.Equal(t, domain.RoleHR, row.Role)
}
