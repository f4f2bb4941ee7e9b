// Package integration runs the fulfillment stores against real PostgreSQL and
// Redis instances started with testcontainers.
package integration

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/printhub/fulfillment/internal/domain/supplier"
	"github.com/printhub/fulfillment/internal/infrastructure/config"
	"github.com/printhub/fulfillment/internal/infrastructure/logger"
	"github.com/printhub/fulfillment/internal/infrastructure/migration"
	"github.com/printhub/fulfillment/internal/infrastructure/persistence"
)

// TestDB is a migrated PostgreSQL database in its own container
type TestDB struct {
	DB        *gorm.DB
	SqlDB     *sql.DB
	Container testcontainers.Container
	DSN       string
	t         *testing.T
}

// NewTestDB starts a fresh PostgreSQL container, connects through
// persistence.Open and applies every migration
func NewTestDB(t *testing.T) *TestDB {
	t.Helper()

	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("fulfillment_test"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("admin123"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err, "Failed to start PostgreSQL container")

	tdb := &TestDB{Container: container, t: t}
	t.Cleanup(tdb.Close)

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	cfg := &config.DatabaseConfig{
		Host:     host,
		Port:     port.Int(),
		User:     "postgres",
		Password: "admin123",
		DBName:   "fulfillment_test",
		SSLMode:  "disable",
		// Enough connections for the concurrency tests to contend for real row locks
		MaxOpenConns:    20,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5,
	}
	tdb.DSN = cfg.DSN()

	db, err := persistence.Open(ctx, cfg,
		persistence.WithGormLogger(testGormLogger(t)),
		persistence.WithConnectWait(15*time.Second),
	)
	require.NoError(t, err, "Failed to connect to database")
	tdb.DB = db.DB

	tdb.SqlDB, err = db.DB.DB()
	require.NoError(t, err)
	runMigrations(t, tdb.SqlDB)

	return tdb
}

// testGormLogger is silent unless TEST_DB_DEBUG is set
func testGormLogger(t *testing.T) gormlogger.Interface {
	level := gormlogger.Silent
	if os.Getenv("TEST_DB_DEBUG") != "" {
		level = gormlogger.Info
	}
	return logger.NewGormLogger(zaptest.NewLogger(t), level,
		logger.WithExpectedErrors(persistence.IsContention))
}

// Close closes the connection and terminates the container
func (tdb *TestDB) Close() {
	if tdb.SqlDB != nil {
		_ = tdb.SqlDB.Close()
	}
	if tdb.Container != nil {
		if err := tdb.Container.Terminate(context.Background()); err != nil {
			tdb.t.Logf("Warning: Failed to terminate container: %v", err)
		}
	}
}

// CleanTables truncates every fulfillment table
func (tdb *TestDB) CleanTables() {
	tdb.t.Helper()

	var tables []string
	err := tdb.DB.Raw(`
		SELECT tablename FROM pg_tables
		WHERE schemaname = 'public'
		AND tablename != ?
	`, migration.DefaultMigrationsTable).Scan(&tables).Error
	require.NoError(tdb.t, err, "Failed to get table names")

	for _, table := range tables {
		err := tdb.DB.Exec(fmt.Sprintf("TRUNCATE TABLE %s CASCADE", table)).Error
		require.NoError(tdb.t, err, "Failed to truncate %s", table)
	}
}

// CreateSupplier persists an active manual supplier with a generated code
func (tdb *TestDB) CreateSupplier(ctx context.Context) *supplier.Supplier {
	tdb.t.Helper()

	s, err := supplier.NewSupplier(
		fmt.Sprintf("SUP-%s", gofakeit.LetterN(8)),
		gofakeit.Company(),
		supplier.AdapterTypeManual,
	)
	require.NoError(tdb.t, err)
	require.NoError(tdb.t, persistence.NewGormSupplierRepository(tdb.DB).Save(ctx, s))
	return s
}

// CreateOffer persists an available offer for sku with the given stock and cost
func (tdb *TestDB) CreateOffer(ctx context.Context, supplierID uuid.UUID, sku string, stock int, cost string) *supplier.Offer {
	tdb.t.Helper()

	o, err := supplier.NewOffer(sku, supplierID, "SSKU-"+gofakeit.LetterN(10), supplier.OfferTerms{
		Cost:          decimal.RequireFromString(cost),
		StockQuantity: stock,
		IsAvailable:   true,
		LeadTime:      supplier.LeadTime{Min: 2, Max: 5, Unit: supplier.LeadTimeUnitDays},
	})
	require.NoError(tdb.t, err)
	require.NoError(tdb.t, persistence.NewGormOfferRepository(tdb.DB).Create(ctx, o))
	return o
}

func runMigrations(t *testing.T, sqlDB *sql.DB) {
	t.Helper()

	migrationsPath := findMigrationsPath()
	require.NotEmpty(t, migrationsPath, "Could not find migrations directory")

	m, err := migration.New(sqlDB, migrationsPath, zaptest.NewLogger(t))
	require.NoError(t, err, "Failed to create migrator")

	require.NoError(t, m.Up(), "Failed to run migrations")
	require.NoError(t, m.RequireClean())
}

// findMigrationsPath walks up from this file to the repository's migrations directory
func findMigrationsPath() string {
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		return ""
	}

	dir := filepath.Dir(filename)
	for range 5 {
		candidate := filepath.Join(dir, "migrations")
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
		dir = filepath.Dir(dir)
	}
	return ""
}
