package container

import (
	"context"

	"ats-be/internal/config"
	"ats-be/internal/repository"
	"ats-be/internal/service"
	"ats-be/internal/service/identity"
	"ats-be/pkg/database"
	"ats-be/pkg/logger"
	"ats-be/pkg/redis"
)

// Container holds all application dependencies
type Container struct {
	Config      *config.Config
	Logger      *logger.Logger
	DB          *database.PostgresDB
	RedisClient *redis.Client
	Identity    service.IdentityProvider
	Verifier    *identity.TokenVerifier
	Profiles    repository.ProfileStore
}

// New creates a new dependency injection container
func New(ctx context.Context, cfg *config.Config, logger *logger.Logger) (*Container, error) {
	c := &Container{
		Config: cfg,
		Logger: logger,
	}

	c.Identity = identity.NewClient(cfg.SupabaseURL, cfg.SupabaseAnonKey, logger.Named("identity"))
	c.Verifier = identity.NewTokenVerifier(cfg.SupabaseJWTSecret, logger.Named("verifier"))

	// Profile table service: direct Postgres when a database URL is
	// configured, the hosted REST surface otherwise
	var profiles repository.ProfileStore
	if cfg.DatabaseURL != "" {
		db, err := database.NewPostgresDB(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		c.DB = db
		profiles = repository.NewPostgresProfileStore(db)
		logger.Info("Profile store backed by Postgres")
	} else {
		profiles = repository.NewRESTProfileStore(cfg.SupabaseURL, cfg.SupabaseServiceKey, logger.Named("profiles"))
		logger.Info("Profile store backed by hosted REST service")
	}

	if cfg.RedisURL != "" {
		client, err := redis.NewClient(cfg.RedisURL, logger.Named("redis").Logger)
		if err != nil {
			logger.WithError(err).Warn("Failed to initialize Redis client, proceeding without role cache")
		} else {
			c.RedisClient = client
			profiles = repository.NewCachedProfileStore(profiles, client, logger.Named("profile_cache"))
			logger.Info("Profile role cache enabled")
		}
	}

	c.Profiles = profiles
	return c, nil
}

// GetConfig returns the configuration
func (c *Container) GetConfig() *config.Config {
	return c.Config
}

// GetLogger returns the logger
func (c *Container) GetLogger() *logger.Logger {
	return c.Logger
}

// GetIdentity returns the identity provider client
func (c *Container) GetIdentity() service.IdentityProvider {
	return c.Identity
}

// GetVerifier returns the access token verifier
func (c *Container) GetVerifier() *identity.TokenVerifier {
	return c.Verifier
}

// GetProfiles returns the profile store
func (c *Container) GetProfiles() repository.ProfileStore {
	return c.Profiles
}

// HasRedis returns true if the role cache is available
func (c *Container) HasRedis() bool {
	return c.RedisClient != nil
}

// Close releases held connections
func (c *Container) Close() {
	if c.RedisClient != nil {
		if err := c.RedisClient.Close(); err != nil {
			c.Logger.WithError(err).Error("Failed to close Redis connection")
		}
	}
	if c.DB != nil {
		c.DB.Close()
	}
}
