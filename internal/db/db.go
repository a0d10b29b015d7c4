package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/vibecampus/vibehub/internal/models"
	"github.com/vibecampus/vibehub/pkg/config"
	"github.com/vibecampus/vibehub/pkg/logging"
)

// Dialects
const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"
)

// zapWriter adapts zap.Logger to logger.Writer interface
type zapWriter struct {
	logger *zap.Logger
}

func (w *zapWriter) Printf(format string, args ...interface{}) {
	w.logger.Sugar().Infof(format, args...)
}

// DB wraps GORM database connection
type DB struct {
	*gorm.DB
	Dialect string
}

// New creates a new database connection. URLs starting with "sqlite:"
// or "file:" open SQLite; anything else is handed to Postgres.
func New(cfg *config.DatabaseConfig, logLevel string) (*DB, error) {
	var gormLogLevel logger.LogLevel
	switch strings.ToLower(logLevel) {
	case "debug":
		gormLogLevel = logger.Info
	case "info":
		gormLogLevel = logger.Warn
	case "warn", "warning":
		gormLogLevel = logger.Error
	case "error":
		gormLogLevel = logger.Silent
	default:
		gormLogLevel = logger.Warn
	}

	writer := &zapWriter{logger: logging.GetLogger().With(zap.String("component", "gorm"))}
	gormLogger := logger.New(
		writer,
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormLogLevel,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	dialector, dialect := openDialector(cfg.URL)
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormLogger,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	if dialect == DialectSQLite {
		// SQLite allows one writer; a single connection also keeps
		// shared in-memory databases alive
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetMaxOpenConns(100)
		sqlDB.SetConnMaxLifetime(time.Hour)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logging.GetLogger().Info("Database connection established", zap.String("dialect", dialect))

	return &DB{DB: db, Dialect: dialect}, nil
}

// NewMemory opens a private in-memory SQLite database and migrates it
func NewMemory(name string) (*DB, error) {
	name = strings.NewReplacer("/", "_", " ", "_").Replace(name)
	d, err := New(&config.DatabaseConfig{URL: "sqlite:file:" + name + "?mode=memory&cache=shared"}, "error")
	if err != nil {
		return nil, err
	}
	if err := d.Migrate(context.Background()); err != nil {
		d.Close()
		return nil, err
	}
	return d, nil
}

func openDialector(url string) (gorm.Dialector, string) {
	switch {
	case strings.HasPrefix(url, "sqlite:"):
		return sqlite.Open(strings.TrimPrefix(url, "sqlite:")), DialectSQLite
	case strings.HasPrefix(url, "file:"):
		return sqlite.Open(url), DialectSQLite
	default:
		return postgres.Open(url), DialectPostgres
	}
}

// Migrate creates or updates every table
func (d *DB) Migrate(ctx context.Context) error {
	if err := d.DB.WithContext(ctx).AutoMigrate(models.All()...); err != nil {
		return fmt.Errorf("failed to migrate: %w", err)
	}
	return nil
}

// Close closes the database connection
func (d *DB) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Health checks database health
func (d *DB) Health(ctx context.Context) error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
