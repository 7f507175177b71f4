// Package dbtest opens throwaway SQLite databases carrying the full schema.
package dbtest

import (
	"log"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
)

// Open returns a migrated in-memory database unique to the test. The pool is
// pinned to one connection so concurrent callers queue instead of hitting
// SQLite table locks.
func Open(t testing.TB) *gorm.DB {
	t.Helper()
	dsn := "file:sf_" + uuid.NewString() + "?mode=memory&cache=shared&_busy_timeout=5000"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 newLogger(log.New(os.Stdout, "\r\n", log.LstdFlags)),
		NowFunc:                func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := conn.AutoMigrate(models.All()...); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return conn
}

// newLogger reports failed and slow statements only. Tests look up missing
// rows on purpose, so record-not-found stays quiet.
func newLogger(w gormlogger.Writer) gormlogger.Interface {
	return gormlogger.New(w, gormlogger.Config{
		SlowThreshold:             time.Second,
		LogLevel:                  gormlogger.Warn,
		IgnoreRecordNotFoundError: true,
	})
}

// Client wraps Open in the transaction-capable db client.
func Client(t testing.TB) *db.Client {
	t.Helper()
	return db.FromGorm(Open(t))
}
