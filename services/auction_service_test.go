package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"credit-hub-system/models"
)

func newTestAuctionService(env *testEnv) *AuctionService {
	svc := NewAuctionService(env.db, env.sync, env.notify)
	svc.now = func() time.Time { return testClock }
	return svc
}

func TestPlaceBidDebitsBidder(t *testing.T) {
	env := newTestEnv(t)
	auctions := newTestAuctionService(env)
	env.createAccount(t, "alice")
	ctx := context.Background()

	if _, err := env.ledger.ChargeCredits(ctx, "alice", 10000, "top-up"); err != nil {
		t.Fatalf("top-up: %v", err)
	}
	auc, err := auctions.Create(ctx, "Founder Badge", "one of one", 1000, testClock.Add(time.Hour))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	placed, err := auctions.PlaceBid(ctx, auc.ID, "alice")
	if err != nil {
		t.Fatalf("bid: %v", err)
	}
	wantPrice := int64(1000 + models.MinBidIncrement)
	if placed.CurrentPrice != wantPrice {
		t.Fatalf("current price = %d, want %d", placed.CurrentPrice, wantPrice)
	}
	if placed.HighestBidderID == nil || *placed.HighestBidderID != "alice" {
		t.Fatalf("highest bidder = %v", placed.HighestBidderID)
	}
	if bal := env.reload(t, "alice").Balance; bal != models.StartingBalance+10000-wantPrice {
		t.Fatalf("bidder balance = %d", bal)
	}
}

func TestPlaceBidRefreshesMirrors(t *testing.T) {
	env := newTestEnv(t)
	auctions := newTestAuctionService(env)
	env.createAccount(t, "alice")
	env.createAccount(t, "bob")
	ctx := context.Background()

	for _, id := range []string{"alice", "bob"} {
		if _, err := env.ledger.ChargeCredits(ctx, id, 10000, "top-up-"+id); err != nil {
			t.Fatalf("top-up %s: %v", id, err)
		}
	}
	auc, err := auctions.Create(ctx, "Founder Badge", "", 1000, testClock.Add(time.Hour))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := auctions.PlaceBid(ctx, auc.ID, "alice"); err != nil { // 1500 held
		t.Fatalf("alice bid: %v", err)
	}
	if _, err := auctions.PlaceBid(ctx, auc.ID, "bob"); err != nil { // 2000 held, alice refunded
		t.Fatalf("bob bid: %v", err)
	}

	// a peer session drops only its local copy and re-reads the mirror
	env.sync.DropLocal("alice")
	env.sync.DropLocal("bob")
	got, err := env.sync.GetAccount(ctx, "alice")
	if err != nil {
		t.Fatalf("get alice: %v", err)
	}
	if got.Balance != models.StartingBalance+10000 {
		t.Fatalf("mirror-served alice balance = %d, want %d", got.Balance, int64(models.StartingBalance+10000))
	}
	got, err = env.sync.GetAccount(ctx, "bob")
	if err != nil {
		t.Fatalf("get bob: %v", err)
	}
	if got.Balance != models.StartingBalance+10000-2000 {
		t.Fatalf("mirror-served bob balance = %d, want %d", got.Balance, int64(models.StartingBalance+10000-2000))
	}
}

func TestOutbidRefundsPreviousBidder(t *testing.T) {
	env := newTestEnv(t)
	auctions := newTestAuctionService(env)
	env.createAccount(t, "alice")
	env.createAccount(t, "bob")
	ctx := context.Background()

	for _, id := range []string{"alice", "bob"} {
		if _, err := env.ledger.ChargeCredits(ctx, id, 10000, "top-up-"+id); err != nil {
			t.Fatalf("top-up %s: %v", id, err)
		}
	}
	auc, err := auctions.Create(ctx, "Founder Badge", "", 1000, testClock.Add(time.Hour))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := auctions.PlaceBid(ctx, auc.ID, "alice"); err != nil { // 1500
		t.Fatalf("alice bid: %v", err)
	}
	if _, err := auctions.PlaceBid(ctx, auc.ID, "bob"); err != nil { // 2000
		t.Fatalf("bob bid: %v", err)
	}

	// alice got her 1500 back in full
	if bal := env.reload(t, "alice").Balance; bal != models.StartingBalance+10000 {
		t.Fatalf("alice balance = %d, refund missing", bal)
	}
	if bal := env.reload(t, "bob").Balance; bal != models.StartingBalance+10000-2000 {
		t.Fatalf("bob balance = %d", bal)
	}

	// refund shows up in alice's ledger
	txns, err := env.ledger.Transactions(ctx, "alice", 10)
	if err != nil {
		t.Fatalf("transactions: %v", err)
	}
	foundRefund := false
	for _, txn := range txns {
		if txn.Kind == models.TxRefund && txn.Amount == 1500 {
			foundRefund = true
		}
	}
	if !foundRefund {
		t.Fatalf("no refund entry: %+v", txns)
	}
}

func TestBidInsufficientBalance(t *testing.T) {
	env := newTestEnv(t)
	auctions := newTestAuctionService(env)
	env.createAccount(t, "alice") // 500 CR
	ctx := context.Background()

	auc, err := auctions.Create(ctx, "Founder Badge", "", 1000, testClock.Add(time.Hour))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := auctions.PlaceBid(ctx, auc.ID, "alice"); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("err = %v, want ErrInsufficientBalance", err)
	}
	if bal := env.reload(t, "alice").Balance; bal != models.StartingBalance {
		t.Fatalf("balance mutated on failed bid: %d", bal)
	}
}

func TestBidOnEndedAuction(t *testing.T) {
	env := newTestEnv(t)
	auctions := newTestAuctionService(env)
	env.createAccount(t, "alice")
	ctx := context.Background()

	if _, err := env.ledger.ChargeCredits(ctx, "alice", 10000, "top-up"); err != nil {
		t.Fatalf("top-up: %v", err)
	}
	auc, err := auctions.Create(ctx, "Founder Badge", "", 1000, testClock.Add(-time.Minute))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := auctions.PlaceBid(ctx, auc.ID, "alice"); !errors.Is(err, ErrAuctionClosed) {
		t.Fatalf("err = %v, want ErrAuctionClosed", err)
	}
}

func TestSettleMarksFinishedAndNotifiesWinner(t *testing.T) {
	env := newTestEnv(t)
	auctions := newTestAuctionService(env)
	env.createAccount(t, "alice")
	ctx := context.Background()

	if _, err := env.ledger.ChargeCredits(ctx, "alice", 10000, "top-up"); err != nil {
		t.Fatalf("top-up: %v", err)
	}
	auc, err := auctions.Create(ctx, "Founder Badge", "", 1000, testClock.Add(time.Minute))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := auctions.PlaceBid(ctx, auc.ID, "alice"); err != nil {
		t.Fatalf("bid: %v", err)
	}

	// deadline passes
	auctions.now = func() time.Time { return testClock.Add(2 * time.Minute) }
	if err := auctions.Settle(ctx); err != nil {
		t.Fatalf("settle: %v", err)
	}

	got, _, err := auctions.Get(ctx, auc.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.Finished {
		t.Fatal("auction not finished after settle")
	}

	rows, err := env.notify.Recent("alice", 20)
	if err != nil {
		t.Fatalf("notifications: %v", err)
	}
	won := false
	for _, n := range rows {
		if n.Kind == models.NotifAuction {
			won = true
		}
	}
	if !won {
		t.Fatal("winner notification missing")
	}

	// re-settling is a no-op
	if err := auctions.Settle(ctx); err != nil {
		t.Fatalf("re-settle: %v", err)
	}
}

func TestLiveExcludesFinishedAndEnded(t *testing.T) {
	env := newTestEnv(t)
	auctions := newTestAuctionService(env)
	ctx := context.Background()

	if _, err := auctions.Create(ctx, "Open", "", 100, testClock.Add(time.Hour)); err != nil {
		t.Fatalf("create open: %v", err)
	}
	if _, err := auctions.Create(ctx, "Past", "", 100, testClock.Add(-time.Hour)); err != nil {
		t.Fatalf("create past: %v", err)
	}

	live, err := auctions.Live(ctx)
	if err != nil {
		t.Fatalf("live: %v", err)
	}
	if len(live) != 1 || live[0].ItemName != "Open" {
		t.Fatalf("live = %+v", live)
	}
}
