package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/printhub/fulfillment/internal/infrastructure/config"
)

const (
	defaultConnectWait = 30 * time.Second
	healthPingTimeout  = 2 * time.Second
)

// Database owns the GORM handle shared by the stores
type Database struct {
	DB *gorm.DB
}

type openOptions struct {
	gormLogger  logger.Interface
	log         *zap.Logger
	connectWait time.Duration
}

// Option configures Open
type Option func(*openOptions)

// WithGormLogger routes GORM's own logging through l
func WithGormLogger(l logger.Interface) Option {
	return func(o *openOptions) { o.gormLogger = l }
}

// WithLogger reports connection retries on log
func WithLogger(log *zap.Logger) Option {
	return func(o *openOptions) { o.log = log }
}

// WithConnectWait bounds how long Open keeps retrying the first ping
func WithConnectWait(d time.Duration) Option {
	return func(o *openOptions) { o.connectWait = d }
}

// Open connects to PostgreSQL and sizes the pool from cfg. The first ping
// is retried with exponential backoff so the service can start alongside
// its database.
func Open(ctx context.Context, cfg *config.DatabaseConfig, opts ...Option) (*Database, error) {
	o := openOptions{
		gormLogger:  logger.Default.LogMode(logger.Silent),
		log:         zap.NewNop(),
		connectWait: defaultConnectWait,
	}
	for _, opt := range opts {
		opt(&o)
	}

	gcfg := gormConfig(o.gormLogger)
	gcfg.DisableAutomaticPing = true
	db, err := gorm.Open(postgres.Open(cfg.DSN()), gcfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Minute)
	sqlDB.SetConnMaxIdleTime(time.Duration(cfg.ConnMaxIdleTime) * time.Minute)

	_, err = backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, sqlDB.PingContext(ctx)
	},
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxElapsedTime(o.connectWait),
		backoff.WithNotify(func(err error, next time.Duration) {
			o.log.Warn("Database not reachable yet",
				zap.String("host", cfg.Host),
				zap.Duration("retry_in", next),
				zap.Error(err),
			)
		}),
	)
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping database %s:%d: %w", cfg.Host, cfg.Port, err)
	}

	return &Database{DB: db}, nil
}

// gormConfig is shared by production connections and sqlmock-backed tests.
// TranslateError maps unique violations to gorm.ErrDuplicatedKey.
func gormConfig(gormLogger logger.Interface) *gorm.Config {
	return &gorm.Config{
		Logger:                 gormLogger,
		SkipDefaultTransaction: true,
		PrepareStmt:            true,
		TranslateError:         true,
	}
}

// Close releases the pool
func (d *Database) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping backs the /health endpoint
func (d *Database) Ping() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), healthPingTimeout)
	defer cancel()
	return sqlDB.PingContext(ctx)
}
