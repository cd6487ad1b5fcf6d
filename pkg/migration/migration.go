package migration

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
)

// MigrationsTable is the unquoted name of the version table in the connection's schema.
const MigrationsTable = "schema_migrations"

// Config points the migrator at an embedded set of SQL migrations.
type Config struct {
	MigrationsPath string
	MigrationsFS   fs.FS
	LockTimeout    time.Duration
}

// Migrator applies schema migrations through a pgx pool.
type Migrator struct {
	config Config
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewMigrator creates a Migrator.
func NewMigrator(config Config, pool *pgxpool.Pool, logger *zap.Logger) *Migrator {
	if config.LockTimeout <= 0 {
		config.LockTimeout = 30 * time.Second
	}
	return &Migrator{
		config: config,
		pool:   pool,
		logger: logger.Named("Migrator"),
	}
}

// Up applies every pending migration.
func (m *Migrator) Up() error {
	migrator, err := m.createMigrator()
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}
	defer m.close(migrator)

	if err := migrator.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	version, dirty, _ := migrator.Version()
	m.logger.Info("Database migrations applied", zap.Uint("version", version), zap.Bool("dirty", dirty))
	return nil
}

// Down rolls every migration back.
func (m *Migrator) Down() error {
	migrator, err := m.createMigrator()
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}
	defer m.close(migrator)

	if err := migrator.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to roll back migrations: %w", err)
	}

	m.logger.Info("Database migrations rolled back")
	return nil
}

// Version returns the applied migration version; zero when nothing is applied.
func (m *Migrator) Version() (uint, bool, error) {
	migrator, err := m.createMigrator()
	if err != nil {
		return 0, false, fmt.Errorf("failed to create migrator: %w", err)
	}
	defer m.close(migrator)

	version, dirty, err := migrator.Version()
	if err != nil {
		if errors.Is(err, migrate.ErrNilVersion) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("failed to get migration version: %w", err)
	}
	return version, dirty, nil
}

func (m *Migrator) createMigrator() (*migrate.Migrate, error) {
	// The sql.DB wraps the pool; closing it does not close the pool.
	driver, err := newPostgresDriver(stdlib.OpenDBFromPool(m.pool))
	if err != nil {
		return nil, err
	}

	source, err := iofs.New(m.config.MigrationsFS, m.config.MigrationsPath)
	if err != nil {
		_ = driver.Close()
		return nil, fmt.Errorf("failed to create source driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		_ = driver.Close()
		return nil, fmt.Errorf("failed to create migrator: %w", err)
	}
	migrator.LockTimeout = m.config.LockTimeout
	return migrator, nil
}

// newPostgresDriver owns db: it is closed together with the driver, or right away on failure.
func newPostgresDriver(db *sql.DB) (database.Driver, error) {
	driver, err := postgres.WithInstance(db, &postgres.Config{MigrationsTable: MigrationsTable})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create postgres driver: %w", err)
	}
	return driver, nil
}

func (m *Migrator) close(migrator *migrate.Migrate) {
	srcErr, dbErr := migrator.Close()
	if srcErr != nil || dbErr != nil {
		m.logger.Warn("Failed to close migrator", zap.NamedError("sourceError", srcErr), zap.NamedError("databaseError", dbErr))
	}
}
