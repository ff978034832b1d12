package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"credit-hub-system/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// testClock is the frozen instant every test service runs at unless a
// test overrides it. Midday, so the night-owl window stays shut.
var testClock = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

type testEnv struct {
	db     *gorm.DB
	rdb    *redis.Client
	mr     *miniredis.Miniredis
	sync   *SyncCoordinator
	notify *NotificationService
	ledger *LedgerService
}

// newTestEnv wires the full service stack against an in-memory sqlite
// database and a miniredis instance. One connection only: sqlite's
// in-memory database vanishes when its last connection closes.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := db.AutoMigrate(
		&models.Account{},
		&models.Transaction{},
		&models.InventoryEntry{},
		&models.ActiveEffect{},
		&models.UnlockedAchievement{},
		&models.Auction{},
		&models.Bid{},
		&models.Notification{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	sync := NewSyncCoordinator(db, rdb)
	notify := NewNotificationService(db)
	ledger := NewLedgerService(db, sync, notify, 9)
	ledger.now = func() time.Time { return testClock }

	return &testEnv{
		db:     db,
		rdb:    rdb,
		mr:     mr,
		sync:   sync,
		notify: notify,
		ledger: ledger,
	}
}

// createAccount provisions a ledger account at the frozen test clock.
func (e *testEnv) createAccount(t *testing.T, id string) *models.Account {
	t.Helper()
	acct, err := e.ledger.CreateAccount(context.Background(), id, "tester-"+id)
	if err != nil {
		t.Fatalf("create account %s: %v", id, err)
	}
	return acct
}

// reload fetches the account straight from the database, bypassing the
// mirror, so assertions see exactly what committed.
func (e *testEnv) reload(t *testing.T, id string) *models.Account {
	t.Helper()
	var acct models.Account
	if err := e.db.Where("id = ?", id).First(&acct).Error; err != nil {
		t.Fatalf("reload account %s: %v", id, err)
	}
	return &acct
}

func (e *testEnv) txCount(t *testing.T, id string) int64 {
	t.Helper()
	var n int64
	if err := e.db.Model(&models.Transaction{}).Where("account_id = ?", id).Count(&n).Error; err != nil {
		t.Fatalf("count transactions: %v", err)
	}
	return n
}

// stubRolls pins the package-level random sources for the duration of
// the test.
func stubRolls(t *testing.T, roll float64, intn func(int) int) {
	t.Helper()
	prevFloat, prevInt := randFloat, randInt
	randFloat = func() float64 { return roll }
	if intn != nil {
		randInt = intn
	}
	t.Cleanup(func() {
		randFloat = prevFloat
		randInt = prevInt
	})
}
