// Package sqlite provides durable SQLite implementations of the cqrs
// persistence ports: the event log, view storage and snapshots. It uses
// the pure Go driver, so there is no CGo dependency.
package sqlite

import (
	"database/sql"
	"embed"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/nigeleke/cqrs/pkg/store/sqlite/migrate"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// DB is a shared database handle for the sqlite-backed stores. All stores
// of one process should share a single DB.
type DB struct {
	db *sql.DB
}

type config struct {
	dsn          string
	maxOpenConns int
	maxIdleConns int
	walMode      bool
	autoMigrate  bool
}

func defaultConfig() config {
	return config{
		dsn:          "cqrs.db",
		maxOpenConns: 25,
		maxIdleConns: 5,
		walMode:      true,
		autoMigrate:  true,
	}
}

// Option configures Open.
type Option func(*config)

// WithDSN sets the data source name (file path or ":memory:").
func WithDSN(dsn string) Option {
	return func(c *config) { c.dsn = dsn }
}

// WithMemoryDatabase uses an in-memory database, handy for tests.
func WithMemoryDatabase() Option {
	return func(c *config) { c.dsn = ":memory:" }
}

// WithMaxOpenConns sets the maximum number of open connections.
func WithMaxOpenConns(n int) Option {
	return func(c *config) { c.maxOpenConns = n }
}

// WithMaxIdleConns sets the maximum number of idle connections.
func WithMaxIdleConns(n int) Option {
	return func(c *config) { c.maxIdleConns = n }
}

// WithWALMode enables write-ahead logging. Recommended for file-backed
// databases; not available for :memory:.
func WithWALMode(enabled bool) Option {
	return func(c *config) { c.walMode = enabled }
}

// WithAutoMigrate runs pending migrations on open.
func WithAutoMigrate(enabled bool) Option {
	return func(c *config) { c.autoMigrate = enabled }
}

// Open opens (and by default migrates) a sqlite database for the stores.
func Open(opts ...Option) (*DB, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	db, err := sql.Open("sqlite", cfg.dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// A :memory: database exists per connection, so the pool must be
	// limited to a single one.
	if cfg.dsn == ":memory:" {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	} else {
		db.SetMaxOpenConns(cfg.maxOpenConns)
		db.SetMaxIdleConns(cfg.maxIdleConns)
	}
	db.SetConnMaxLifetime(time.Hour)

	if cfg.walMode && cfg.dsn != ":memory:" {
		if _, err := db.Exec(`
			PRAGMA journal_mode = WAL;
			PRAGMA synchronous = NORMAL;
			PRAGMA foreign_keys = ON;
		`); err != nil {
			db.Close()
			return nil, fmt.Errorf("set WAL mode: %w", err)
		}
	}

	if cfg.autoMigrate {
		if err := Migrate(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}

	return &DB{db: db}, nil
}

// Migrate applies all pending schema migrations to db.
func Migrate(db *sql.DB) error {
	m := migrate.New(db, "schema_migrations")
	if err := m.LoadFromFS(migrationsFS, "migrations"); err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}
	return m.Up()
}

// Handle returns the underlying *sql.DB.
func (d *DB) Handle() *sql.DB { return d.db }

// Close closes the database.
func (d *DB) Close() error { return d.db.Close() }
