package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"story-engine/internal/config"
	"story-engine/internal/database"
	"story-engine/internal/interfaces"
	"story-engine/internal/locking"
	"story-engine/internal/messaging"
	"story-engine/pkg/migration"

	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// dependencies holds every backend the service was wired with, so they can be
// health-checked and closed together.
type dependencies struct {
	stories   interfaces.StoryRepository
	sessions  interfaces.SessionRepository
	saves     interfaces.SavedGameRepository
	locker    interfaces.SessionLocker
	publisher messaging.SessionEventPublisher

	pool    *pgxpool.Pool
	sqlite  *database.SQLiteStore
	redis   redis.UniversalClient
	amqp    *amqp.Connection
	closers []func() error

	logger *zap.Logger
}

func buildDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (_ *dependencies, err error) {
	d := &dependencies{logger: logger}
	defer func() {
		if err != nil {
			d.Close()
		}
	}()

	if cfg.UsesPostgres() {
		if d.pool, err = setupDatabase(ctx, cfg, logger); err != nil {
			return nil, err
		}
		d.closers = append(d.closers, func() error { d.pool.Close(); return nil })
		logger.Info("Connected to PostgreSQL")

		if cfg.MigrateOnStart {
			migrator := migration.NewMigrator(migration.Config{
				MigrationsPath: database.MigrationsPath,
				MigrationsFS:   database.MigrationsFS,
			}, d.pool, logger)
			if err = migrator.Up(); err != nil {
				return nil, err
			}
		}
	}

	switch cfg.SessionStore {
	case config.StorePostgres:
		d.sessions = database.NewPgSessionRepository(d.pool, logger)
		d.saves = database.NewPgSavedGameRepository(d.pool, logger)
	case config.StoreSQLite:
		if d.sqlite, err = database.NewSQLiteStore(ctx, cfg.SQLitePath, logger); err != nil {
			return nil, err
		}
		d.closers = append(d.closers, d.sqlite.Close)
		d.sessions = d.sqlite.Sessions()
		d.saves = d.sqlite.SavedGames()
	}

	switch cfg.StorySource {
	case config.StorePostgres:
		d.stories = database.NewPgStoryRepository(d.pool, logger)
	case config.SourceYAML:
		repo, loadErr := database.LoadStoryDir(cfg.StoryDir, logger)
		if loadErr != nil {
			return nil, loadErr
		}
		d.stories = repo
	}

	if cfg.RedisURL != "" {
		if d.redis, err = connectRedis(ctx, cfg.RedisURL); err != nil {
			return nil, err
		}
		d.closers = append(d.closers, d.redis.Close)
		logger.Info("Connected to Redis")

		if cfg.StorySource == config.StorePostgres {
			d.stories = database.NewCachedStoryRepository(d.stories, d.redis, cfg.StoryCacheTTL, logger)
		}
		d.locker = locking.NewRedisLocker(d.redis, cfg.SessionLockTTL, logger)
	} else {
		d.locker = locking.NewMemoryLocker()
	}

	if cfg.RabbitMQURL != "" {
		if d.amqp, err = connectRabbitMQ(cfg.RabbitMQURL, logger); err != nil {
			return nil, err
		}
		d.closers = append(d.closers, d.amqp.Close)
		publisher, pubErr := messaging.NewRabbitMQSessionEventPublisher(d.amqp, cfg.SessionEventsQueue, logger)
		if pubErr != nil {
			return nil, pubErr
		}
		d.closers = append(d.closers, publisher.Close)
		d.publisher = publisher
		logger.Info("Connected to RabbitMQ", zap.String("queue", cfg.SessionEventsQueue))
	}

	return d, nil
}

// Ping checks every stateful backend.
func (d *dependencies) Ping(ctx context.Context) error {
	var errs []error
	if d.pool != nil {
		if err := d.pool.Ping(ctx); err != nil {
			errs = append(errs, fmt.Errorf("postgres: %w", err))
		}
	}
	if d.sqlite != nil {
		if err := d.sqlite.Ping(ctx); err != nil {
			errs = append(errs, fmt.Errorf("sqlite: %w", err))
		}
	}
	if d.redis != nil {
		if err := d.redis.Ping(ctx).Err(); err != nil {
			errs = append(errs, fmt.Errorf("redis: %w", err))
		}
	}
	if d.amqp != nil && d.amqp.IsClosed() {
		errs = append(errs, errors.New("rabbitmq: connection closed"))
	}
	return errors.Join(errs...)
}

// Close releases backends in reverse order of creation.
func (d *dependencies) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			d.logger.Warn("Error while closing dependency", zap.Error(err))
		}
	}
	d.closers = nil
}

func setupDatabase(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to parse DSN: %w", err)
	}
	poolConfig.MaxConns = cfg.DBMaxConns
	poolConfig.MaxConnIdleTime = cfg.DBIdleTimeout

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect to database (ping failed): %w", err)
	}
	logger.Debug("PostgreSQL pool ready", zap.Int32("maxConns", poolConfig.MaxConns))
	return pool, nil
}

func connectRedis(ctx context.Context, url string) (redis.UniversalClient, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

// connectRabbitMQ dials the broker, retrying a few times while it starts up.
func connectRabbitMQ(url string, logger *zap.Logger) (*amqp.Connection, error) {
	const maxRetries = 5
	retryDelay := 2 * time.Second

	var err error
	for i := 0; i < maxRetries; i++ {
		var conn *amqp.Connection
		conn, err = amqp.Dial(url)
		if err == nil {
			return conn, nil
		}
		logger.Warn("Failed to connect to RabbitMQ",
			zap.Int("attempt", i+1),
			zap.Int("max_attempts", maxRetries),
			zap.Duration("retry_delay", retryDelay),
			zap.Error(err),
		)
		time.Sleep(retryDelay)
	}
	return nil, fmt.Errorf("failed to connect to rabbitmq: %w", err)
}
