package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/hiveboardgame/realtime/internal/logging"
)

var log = logging.New("store")

// Errors returned by Store methods. Domain handlers surface these
// (and their own sentinel errors) to internal/router, which maps any
// error to an ExternalServerError{status_code} envelope (spec §7).
var (
	ErrNotFound      = errors.New("record not found")
	ErrAlreadyExists = errors.New("record already exists")
)

// Config mirrors the teacher's db.Config, with a DriverName switch so
// tests can run against sqlite in-memory instead of mysql.
type Config struct {
	Driver   string // "mysql" or "sqlite"
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
}

// DSN builds the gorm dialector DSN for cfg.Driver.
func (cfg Config) DSN() string {
	if cfg.Driver == "sqlite" {
		if cfg.DBName == "" {
			return "file::memory:?cache=shared"
		}
		return cfg.DBName
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true&charset=utf8mb4",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.DBName)
}

// Store wraps *gorm.DB behind the operations domain handlers need,
// the same role the teacher's currency.Service/tournament.Service
// play for *gorm.DB. It is a concrete type, not an interface; handlers
// that need bespoke queries or transactions use DB() or the *gorm.DB
// passed to the WithGameForUpdate/WithTournamentForUpdate callbacks.
type Store struct {
	db *gorm.DB
}

// Open connects to the configured database and runs AutoMigrate for
// every entity — the teacher migrates with hand-written .sql files
// under migrations/ (internal/migrations/migrations.go); this module
// instead leans on gorm.AutoMigrate, since the entity struct tags are
// already the schema's source of truth.
func Open(cfg Config) (*Store, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN())
	default:
		dialector = mysql.Open(cfg.DSN())
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)

	if err := db.AutoMigrate(
		&Account{}, &Rating{}, &Challenge{}, &Game{}, &Tournament{},
		&Schedule{}, &ChatMessage{}, &RatingChange{},
	); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	log.Println("connected and migrated")
	return &Store{db: db}, nil
}

// DB exposes the underlying *gorm.DB for packages (internal/game,
// internal/tournament, ...) that need bespoke transactions beyond
// what Store's own methods cover, mirroring how the teacher's
// services are all constructed directly over a shared *gorm.DB.
func (s *Store) DB() *gorm.DB { return s.db }

// Transaction runs fn inside a single gorm transaction.
func (s *Store) Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return s.db.WithContext(ctx).Transaction(fn)
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
