package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"ats-be/internal/domain"
	"ats-be/pkg/logger"
	"ats-be/pkg/redis"
)

// CachedProfileStore decorates a ProfileStore with a cache-aside read path.
// Writes go straight through and invalidate, so the role the guard sees
// never lags a role change by more than one round trip.
type CachedProfileStore struct {
	inner  ProfileStore
	redis  *redis.Client
	logger *logger.Logger
}

func NewCachedProfileStore(inner ProfileStore, redisClient *redis.Client, logger *logger.Logger) *CachedProfileStore {
	return &CachedProfileStore{
		inner:  inner,
		redis:  redisClient,
		logger: logger,
	}
}

// GetByID tries the cache first and falls back to the inner store. Cache
// errors and corrupt entries degrade to the inner store, never to a failure.
func (c *CachedProfileStore) GetByID(ctx context.Context, id string) (*domain.Profile, error) {
	cacheKey := fmt.Sprintf(redis.KeyProfileByID, id)

	cached, err := c.redis.Get(ctx, cacheKey)
	if err == nil && cached != "" {
		var profile domain.Profile
		if unmarshalErr := json.Unmarshal([]byte(cached), &profile); unmarshalErr == nil {
			c.logger.WithField("user_id", id).Debug("Profile cache hit")
			return &profile, nil
		}
		c.logger.WithField("user_id", id).Warn("Profile cache corrupted, falling back to store")
	} else if err != nil && err != redis.Nil {
		c.logger.WithField("user_id", id).WithError(err).Warn("Profile cache error, falling back to store")
	}

	profile, err := c.inner.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if profile != nil {
		if data, marshalErr := json.Marshal(profile); marshalErr == nil {
			if setErr := c.redis.Set(ctx, cacheKey, string(data), redis.TTLProfile); setErr != nil {
				c.logger.WithField("user_id", id).WithError(setErr).Warn("Failed to cache profile")
			}
		}
	}

	return profile, nil
}

// Upsert writes through and invalidates
func (c *CachedProfileStore) Upsert(ctx context.Context, profile *domain.Profile) error {
	if err := c.inner.Upsert(ctx, profile); err != nil {
		return err
	}
	c.invalidate(ctx, profile.ID)
	return nil
}

// Update writes through and invalidates
func (c *CachedProfileStore) Update(ctx context.Context, id string, patch domain.ProfileUpdate) error {
	if err := c.inner.Update(ctx, id, patch); err != nil {
		return err
	}
	c.invalidate(ctx, id)
	return nil
}

// List always goes to the inner store; the admin listing must not serve
// stale rows
func (c *CachedProfileStore) List(ctx context.Context) ([]domain.Profile, error) {
	return c.inner.List(ctx)
}

// SetRole writes through and invalidates
func (c *CachedProfileStore) SetRole(ctx context.Context, id string, role domain.Role) error {
	if err := c.inner.SetRole(ctx, id, role); err != nil {
		return err
	}
	c.invalidate(ctx, id)
	return nil
}

func (c *CachedProfileStore) invalidate(ctx context.Context, id string) {
	if err := c.redis.Delete(ctx, fmt.Sprintf(redis.KeyProfileByID, id)); err != nil {
		c.logger.WithField("user_id", id).WithError(err).Error("Failed to invalidate profile cache")
	}
}
