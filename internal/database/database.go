package database

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Tomlord1122/todo-workshop/internal/config"
	"github.com/Tomlord1122/todo-workshop/internal/domain"
)

// Service exposes the pooled GORM handle plus health and lifecycle hooks.
type Service interface {
	Health() map[string]string
	Close() error
	GetDB() *gorm.DB
	Migrate() error
}

type service struct {
	db     *gorm.DB
	name   string
	logger *zap.Logger
}

// New connects to PostgreSQL using cfg and applies the pool settings.
func New(cfg *config.DatabaseConfig, log *zap.Logger) (Service, error) {
	db, err := Open(cfg.DSN(), log)
	if err != nil {
		return nil, err
	}

	// Set connection pool settings (important for production)
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	log.Info("database connected",
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
		zap.String("dbname", cfg.Name),
	)
	return &service{db: db, name: cfg.Name, logger: log}, nil
}

// Open opens a GORM handle for dsn with SQL logging routed through zap.
func Open(dsn string, log *zap.Logger) (*gorm.DB, error) {
	gormLogger := logger.New(
		zap.NewStdLog(log.Named("gorm")),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLogger})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	return db, nil
}

// Wrap adapts an existing handle, used by integration tests.
func Wrap(db *gorm.DB, log *zap.Logger) Service {
	return &service{db: db, logger: log}
}

func (s *service) GetDB() *gorm.DB {
	return s.db
}

// Migrate creates or updates the schema for every model. Order matters for
// the foreign keys.
func (s *service) Migrate() error {
	return AutoMigrate(s.db)
}

// AutoMigrate migrates all models on db.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&domain.User{}, &domain.Todo{}, &domain.Notification{}); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}
	return nil
}

// Health pings the database and reports pool statistics.
func (s *service) Health() map[string]string {
	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	stats := make(map[string]string)
	sqlDB, err := s.db.DB()
	if err != nil {
		stats["status"] = "down"
		stats["error"] = fmt.Sprintf("failed to get underlying DB for health check: %v", err)
		s.logger.Error("health check: get sql.DB", zap.Error(err))
		return stats
	}

	err = sqlDB.PingContext(ctx)
	if err != nil {
		stats["status"] = "down"
		stats["error"] = fmt.Sprintf("db down: %v", err)
		s.logger.Warn("health check: db down", zap.Error(err))
		return stats
	}

	dbStats := sqlDB.Stats()
	stats["status"] = "up"
	stats["message"] = poolMessage(dbStats)
	stats["open_connections"] = strconv.Itoa(dbStats.OpenConnections)
	stats["max_open_connections"] = strconv.Itoa(dbStats.MaxOpenConnections)
	stats["in_use"] = strconv.Itoa(dbStats.InUse)
	stats["idle"] = strconv.Itoa(dbStats.Idle)
	stats["wait_count"] = strconv.FormatInt(dbStats.WaitCount, 10)
	stats["wait_duration"] = dbStats.WaitDuration.String()
	stats["max_idle_closed"] = strconv.FormatInt(dbStats.MaxIdleClosed, 10)
	stats["max_lifetime_closed"] = strconv.FormatInt(dbStats.MaxLifetimeClosed, 10)

	return stats
}

// poolMessage summarises pool pressure. Later checks take precedence.
func poolMessage(st sql.DBStats) string {
	msg := "It's healthy"
	if st.MaxOpenConnections > 0 && st.OpenConnections*5 >= st.MaxOpenConnections*4 {
		msg = "The database is experiencing heavy load."
	}
	if st.WaitCount > 1000 {
		msg = "The database has a high number of wait events, indicating potential bottlenecks."
	}
	if st.MaxIdleClosed > int64(st.OpenConnections)/2 && st.OpenConnections > st.Idle {
		msg = "Many idle connections are being closed, consider revising db.max_idle_conns."
	}
	if st.MaxLifetimeClosed > int64(st.OpenConnections)/2 {
		msg = "Many connections are being closed due to max lifetime, consider increasing db.conn_max_lifetime."
	}
	return msg
}

func (s *service) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		s.logger.Error("get underlying sql.DB for closing", zap.Error(err))
		return err
	}
	s.logger.Info("closing connection pool", zap.String("dbname", s.name))
	return sqlDB.Close()
}
