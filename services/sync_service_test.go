package services

import (
	"context"
	"errors"
	"testing"

	"credit-hub-system/models"
)

func TestGetAccountPopulatesMirror(t *testing.T) {
	env := newTestEnv(t)
	env.createAccount(t, "u1")
	ctx := context.Background()

	// start cold so the read path itself does the populating
	env.sync.DropLocal("u1")
	env.mr.FlushAll()

	acct, err := env.sync.GetAccount(ctx, "u1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if acct.ID != "u1" {
		t.Fatalf("got %s", acct.ID)
	}
	if !env.mr.Exists(mirrorKey("u1")) {
		t.Fatal("mirror not populated after read")
	}
}

func TestGetAccountServesFromLocalCache(t *testing.T) {
	env := newTestEnv(t)
	env.createAccount(t, "u1")
	ctx := context.Background()

	first, err := env.sync.GetAccount(ctx, "u1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}

	// mutate the record behind the cache's back; a plain read still sees
	// the cached copy until an invalidation lands
	if err := env.db.Exec("UPDATE accounts SET balance = 9999 WHERE id = ?", "u1").Error; err != nil {
		t.Fatalf("mutate: %v", err)
	}
	cached, err := env.sync.GetAccount(ctx, "u1")
	if err != nil {
		t.Fatalf("cached get: %v", err)
	}
	if cached.Balance != first.Balance {
		t.Fatalf("cache bypassed: %d vs %d", cached.Balance, first.Balance)
	}

	// dropping the session copy + mirror forces a refetch
	env.sync.Evict(ctx, "u1")
	fresh, err := env.sync.GetAccount(ctx, "u1")
	if err != nil {
		t.Fatalf("fresh get: %v", err)
	}
	if fresh.Balance != 9999 {
		t.Fatalf("refetched balance = %d, want 9999", fresh.Balance)
	}
}

func TestDropLocalFallsBackToMirror(t *testing.T) {
	env := newTestEnv(t)
	env.createAccount(t, "u1")
	ctx := context.Background()

	if _, err := env.sync.GetAccount(ctx, "u1"); err != nil {
		t.Fatalf("warm: %v", err)
	}
	env.sync.DropLocal("u1")
	// mirror still holds the entry
	if !env.mr.Exists(mirrorKey("u1")) {
		t.Fatal("mirror dropped with local cache")
	}
	if _, err := env.sync.GetAccount(ctx, "u1"); err != nil {
		t.Fatalf("mirror read: %v", err)
	}
}

func TestWriteBroadcastsInvalidation(t *testing.T) {
	env := newTestEnv(t)
	env.createAccount(t, "u1")
	ctx := context.Background()

	sub := env.rdb.Subscribe(ctx, InvalidateChannel)
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	if _, err := env.ledger.Credit(ctx, "u1", 50, models.TxEarn, "ping"); err != nil {
		t.Fatalf("credit: %v", err)
	}

	msg, err := sub.ReceiveMessage(ctx)
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if msg.Payload != "u1" {
		t.Fatalf("invalidation payload = %q, want u1", msg.Payload)
	}
}

func TestWriteThroughRefreshesMirror(t *testing.T) {
	env := newTestEnv(t)
	env.createAccount(t, "u1")
	ctx := context.Background()

	if _, err := env.ledger.Credit(ctx, "u1", 111, models.TxEarn, "bump"); err != nil {
		t.Fatalf("credit: %v", err)
	}
	// read comes straight from the refreshed cache
	acct, err := env.sync.GetAccount(ctx, "u1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if acct.Balance != models.StartingBalance+111 {
		t.Fatalf("mirror balance = %d, want %d", acct.Balance, models.StartingBalance+111)
	}
}

func TestGetAccountUnknown(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.sync.GetAccount(context.Background(), "nobody"); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("err = %v, want ErrAccountNotFound", err)
	}
}

func TestCorruptMirrorEntryFallsThrough(t *testing.T) {
	env := newTestEnv(t)
	env.createAccount(t, "u1")
	ctx := context.Background()

	env.sync.DropLocal("u1")
	env.mr.Set(mirrorKey("u1"), "{not json")
	acct, err := env.sync.GetAccount(ctx, "u1")
	if err != nil {
		t.Fatalf("get with corrupt mirror: %v", err)
	}
	if acct.ID != "u1" {
		t.Fatalf("got %s", acct.ID)
	}
}
