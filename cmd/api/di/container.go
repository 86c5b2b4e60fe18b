package di

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"user-image-service/cmd/api/infrastructure"
	"user-image-service/internal/adapter/cache"
	"user-image-service/internal/adapter/db/gormdb"
	ginhandler "user-image-service/internal/adapter/gin/handler"
	ginrouter "user-image-service/internal/adapter/gin/router"
	grpcadapter "user-image-service/internal/adapter/grpc"
	"user-image-service/internal/adapter/ratelimit"
	"user-image-service/internal/adapter/storage"
	"user-image-service/internal/config"
	"user-image-service/internal/usecase/user"
	redisclient "user-image-service/pkg/redis"
)

// Container holds all application dependencies
type Container struct {
	Config      *config.Config
	Logger      *zap.Logger
	DB          *gorm.DB
	RedisClient *redisclient.Client // nil when Redis is disabled
	Images      *storage.ImageStore
	UserUC      *user.Usecase
	RateLimiter *ratelimit.Limiter
	GinHandler  *ginhandler.UserHandler
	Health      *grpcadapter.HealthService
}

// NewContainer creates and initializes all application dependencies
func NewContainer(cfg *config.Config, l *zap.Logger) (*Container, error) {
	// Validate configuration before initializing any dependencies
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	// Initialize database
	db, err := infrastructure.NewDatabase(cfg, l)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	store := gormdb.NewStore(db, l)
	if cfg.DB.AutoMigrate {
		if err := store.Migrate(context.Background()); err != nil {
			_ = infrastructure.CloseDatabase(db)
			return nil, fmt.Errorf("failed to migrate database: %w", err)
		}
		l.Info("database schema migrated")
	}

	// Initialize Redis client
	rdb, err := infrastructure.NewRedisClient(cfg, l)
	if err != nil {
		_ = infrastructure.CloseDatabase(db)
		return nil, fmt.Errorf("failed to initialize Redis: %w", err)
	}

	// Cache and rate limiter need Redis
	var (
		userCache   cache.UserCache
		rateLimiter *ratelimit.Limiter
	)
	if rdb != nil {
		if cfg.Redis.CacheTTL > 0 {
			userCache = cache.NewRedisUserCache(rdb.Client, cfg.Redis.CacheTTL, l)
		}
		rateLimiter = ratelimit.NewLimiter(
			rdb.Client,
			ratelimit.Config{
				RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
				BurstCapacity:     cfg.RateLimit.BurstCapacity,
				Enabled:           cfg.RateLimit.Enabled,
			},
			l,
		)
	} else if cfg.RateLimit.Enabled {
		l.Warn("rate limiting requested without Redis, requests will not be limited")
	}

	images := storage.NewOSImageStore(cfg.Storage.StaticRoot, l)

	// Initialize use case
	userUC := user.New(store, images, userCache, l)

	// Initialize Gin handler
	ginHandler := ginhandler.NewUserHandler(userUC, ginrouter.ImagesURL, cfg.App.MaxUploadBytes, l)

	checks := map[string]grpcadapter.Checker{
		"database": func(ctx context.Context) error { return infrastructure.PingDatabase(ctx, db) },
	}
	if rdb != nil {
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}

	return &Container{
		Config:      cfg,
		Logger:      l,
		DB:          db,
		RedisClient: rdb,
		Images:      images,
		UserUC:      userUC,
		RateLimiter: rateLimiter,
		GinHandler:  ginHandler,
		Health:      grpcadapter.NewHealthService(checks, l),
	}, nil
}

// Close closes all resources held by the container
func (c *Container) Close() error {
	var errs []error

	// Close Redis connection
	if c.RedisClient != nil {
		if err := c.RedisClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close Redis: %w", err))
		}
	}

	// Close database connection
	if c.DB != nil {
		if err := infrastructure.CloseDatabase(c.DB); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("container close errors: %v", errs)
	}

	return nil
}
