// Package database opens the gorm connection behind the sqlite and postgres
// storage backends.
package database

import (
	"database/sql"
	"fmt"

	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/OCAP2/lobbyhost/internal/config"
)

// Manager holds the one database connection of the process.
type Manager struct {
	DB    *gorm.DB
	SqlDB *sql.DB
	// IsValid is true while a pinged connection is open.
	IsValid bool
	// ShouldSaveLocal is set when the settings ended up in a SQLite file,
	// either by choice or because postgres was unreachable.
	ShouldSaveLocal bool
	SqliteFilePath  string
	Logger          zerolog.Logger
}

func NewManager(log zerolog.Logger) *Manager {
	return &Manager{Logger: log}
}

// Connect opens the database cfg asks for. A postgres connection that
// cannot be opened or pinged falls back to the SQLite file.
func (m *Manager) Connect(cfg config.StorageConfig) error {
	m.SqliteFilePath = cfg.SQLite.Path

	if cfg.Type == "postgres" {
		err := m.open(func() (*gorm.DB, error) { return m.GetPostgresDB(cfg.Postgres) })
		if err == nil {
			if cfg.Postgres.MaxOpenConns > 0 {
				m.SqlDB.SetMaxOpenConns(cfg.Postgres.MaxOpenConns)
			}
			m.Logger.Info().Str("host", cfg.Postgres.Host).Msg("Connected to Postgres")
			return nil
		}
		m.Logger.Error().Err(err).Msg("Failed to connect to Postgres DB, trying SQLite")
	}

	m.ShouldSaveLocal = true
	if err := m.open(func() (*gorm.DB, error) { return m.GetSqliteDB(m.SqliteFilePath) }); err != nil {
		return fmt.Errorf("opening local SQLite DB: %w", err)
	}
	// SQLite allows one writer at a time.
	m.SqlDB.SetMaxOpenConns(1)
	return nil
}

func (m *Manager) open(dial func() (*gorm.DB, error)) error {
	m.IsValid = false
	db, err := dial()
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("accessing sql interface: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return fmt.Errorf("ping: %w", err)
	}
	m.DB, m.SqlDB, m.IsValid = db, sqlDB, true
	return nil
}

// PostgresDSN renders the key/value connection string for pc.
func PostgresDSN(pc config.PostgresConfig) string {
	sslmode := pc.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		pc.Host, pc.Port, pc.Username, pc.Password, pc.Database, sslmode)
}

// GetPostgresDB opens, but does not ping, a postgres connection.
func (m *Manager) GetPostgresDB(pc config.PostgresConfig) (*gorm.DB, error) {
	m.Logger.Debug().
		Str("host", pc.Host).
		Str("database", pc.Database).
		Msg("Connecting to Postgres DB")

	return gorm.Open(postgres.New(postgres.Config{
		DSN:                  PostgresDSN(pc),
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
}

var sqlitePragmas = []string{
	"PRAGMA user_version = 1;",
	"PRAGMA journal_mode = WAL;",
	"PRAGMA synchronous = NORMAL;",
	"PRAGMA busy_timeout = 5000;",
}

// GetSqliteDB opens the SQLite file at path, or a shared in-memory
// database when path is empty.
func (m *Manager) GetSqliteDB(path string) (*gorm.DB, error) {
	dsn := path
	if dsn == "" {
		dsn = "file::memory:?cache=shared"
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		PrepareStmt:            true,
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	for _, pragma := range sqlitePragmas {
		if err := db.Exec(pragma).Error; err != nil {
			return nil, fmt.Errorf("setting %q: %w", pragma, err)
		}
	}

	if path != "" {
		m.Logger.Info().Str("path", path).Msg("Using local SQLite DB")
	} else {
		m.Logger.Info().Msg("Using local SQLite DB in memory")
	}
	return db, nil
}

// Close closes the connection pool if one is open.
func (m *Manager) Close() error {
	if m.SqlDB == nil {
		return nil
	}
	m.IsValid = false
	return m.SqlDB.Close()
}
