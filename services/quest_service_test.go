package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"credit-hub-system/models"
)

func TestDayKeyOffset(t *testing.T) {
	// 2025-06-15 20:30 UTC is already the 16th at UTC+9
	at := time.Date(2025, 6, 15, 20, 30, 0, 0, time.UTC)
	if got := dayKey(at, 9); got != "2025-06-16" {
		t.Fatalf("dayKey(+9) = %q, want 2025-06-16", got)
	}
	if got := dayKey(at, 0); got != "2025-06-15" {
		t.Fatalf("dayKey(0) = %q, want 2025-06-15", got)
	}
	if got := dayKey(at, -5); got != "2025-06-15" {
		t.Fatalf("dayKey(-5) = %q, want 2025-06-15", got)
	}
}

func TestLoginBonusCapsAtTenDays(t *testing.T) {
	cases := map[int]int64{
		1:  15,
		3:  25,
		10: 60,
		25: 60, // capped
	}
	for streak, want := range cases {
		if got := loginBonus(streak); got != want {
			t.Fatalf("loginBonus(%d) = %d, want %d", streak, got, want)
		}
	}
}

func TestEnsureDayIdempotentWithinDay(t *testing.T) {
	acct := &models.Account{QuestDate: "", LastActiveDate: "", Streak: 0}
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	reset, bonus := ensureDay(acct, now, 0)
	if !reset || bonus != 15 {
		t.Fatalf("first reset = (%v, %d), want (true, 15)", reset, bonus)
	}
	if acct.Streak != 1 || !acct.LoginDone || acct.QuestDate != "2025-06-15" {
		t.Fatalf("post-reset state: %+v", acct)
	}

	for i := 0; i < 5; i++ {
		if reset, bonus := ensureDay(acct, now.Add(time.Duration(i)*time.Hour), 0); reset || bonus != 0 {
			t.Fatalf("repeat reset fired: (%v, %d)", reset, bonus)
		}
	}
}

func TestEnsureDayStreakContinuation(t *testing.T) {
	acct := &models.Account{
		QuestDate:      "2025-06-14",
		LastActiveDate: "2025-06-14",
		Streak:         4,
	}
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	reset, bonus := ensureDay(acct, now, 0)
	if !reset || acct.Streak != 5 {
		t.Fatalf("streak = %d (reset %v), want 5", acct.Streak, reset)
	}
	if bonus != 10+5*5 {
		t.Fatalf("bonus = %d, want 35", bonus)
	}
}

func TestEnsureDayGapGraceAndBreak(t *testing.T) {
	// 2 days away still continues
	acct := &models.Account{QuestDate: "2025-06-13", LastActiveDate: "2025-06-13", Streak: 7}
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	if _, _ = ensureDay(acct, now, 0); acct.Streak != 8 {
		t.Fatalf("streak after 2-day gap = %d, want 8", acct.Streak)
	}

	// 3 days away breaks
	acct = &models.Account{QuestDate: "2025-06-12", LastActiveDate: "2025-06-12", Streak: 7}
	if _, _ = ensureDay(acct, now, 0); acct.Streak != 1 {
		t.Fatalf("streak after 3-day gap = %d, want 1", acct.Streak)
	}
}

func TestEnsureDayZeroesDailyState(t *testing.T) {
	acct := &models.Account{
		QuestDate:      "2025-06-14",
		LastActiveDate: "2025-06-14",
		Streak:         2,
		PostCount:      5,
		CommentCount:   9,
		PromptVoteDone: true,
		LuckyDrawDone:  true,
		MysteryBoxDone: true,
	}
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	ensureDay(acct, now, 0)

	if acct.PostCount != 0 || acct.CommentCount != 0 ||
		acct.PromptVoteDone || acct.LuckyDrawDone || acct.MysteryBoxDone {
		t.Fatalf("daily state not cleared: %+v", acct)
	}
}

func TestCheckInPaysBonusOncePerDay(t *testing.T) {
	env := newTestEnv(t)
	quests := NewQuestService(env.ledger)
	env.createAccount(t, "u1")
	ctx := context.Background()

	// roll the account back a day so the next touch triggers the reset
	if err := env.db.Exec("UPDATE accounts SET quest_date = ?, last_active_date = ? WHERE id = ?",
		"2025-06-14", "2025-06-14", "u1").Error; err != nil {
		t.Fatalf("backdate: %v", err)
	}

	acct, err := quests.CheckIn(ctx, "u1")
	if err != nil {
		t.Fatalf("checkin: %v", err)
	}
	if acct.Streak != 2 {
		t.Fatalf("streak = %d, want 2", acct.Streak)
	}
	wantBalance := int64(models.StartingBalance) + loginBonus(2)
	if acct.Balance != wantBalance {
		t.Fatalf("balance = %d, want %d", acct.Balance, wantBalance)
	}

	// second check-in on the same day pays nothing
	again, err := quests.CheckIn(ctx, "u1")
	if err != nil {
		t.Fatalf("second checkin: %v", err)
	}
	if again.Balance != wantBalance {
		t.Fatalf("double bonus: %d -> %d", wantBalance, again.Balance)
	}
}

func TestRecordPostBurnsGasFee(t *testing.T) {
	env := newTestEnv(t)
	quests := NewQuestService(env.ledger)
	env.createAccount(t, "u1")
	ctx := context.Background()

	acct, err := quests.RecordPost(ctx, "u1")
	if err != nil {
		t.Fatalf("record post: %v", err)
	}
	// gas fee out, first-post achievement reward in
	want := int64(models.StartingBalance) - models.NodeGasFee + 100
	if acct.Balance != want {
		t.Fatalf("balance = %d, want %d", acct.Balance, want)
	}
	if acct.PostCount != 1 || acct.XP != 20 {
		t.Fatalf("post state: count=%d xp=%d", acct.PostCount, acct.XP)
	}
}

func TestRecordPostInsufficientGas(t *testing.T) {
	env := newTestEnv(t)
	quests := NewQuestService(env.ledger)
	env.createAccount(t, "u1")
	ctx := context.Background()

	if _, err := env.ledger.Debit(ctx, "u1", models.StartingBalance-5, "drain"); err != nil {
		t.Fatalf("drain: %v", err)
	}
	if _, err := quests.RecordPost(ctx, "u1"); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("err = %v, want ErrInsufficientBalance", err)
	}
	if acct := env.reload(t, "u1"); acct.PostCount != 0 {
		t.Fatalf("post counted despite failed fee: %d", acct.PostCount)
	}
}

func TestVotePromptOncePerDay(t *testing.T) {
	env := newTestEnv(t)
	quests := NewQuestService(env.ledger)
	env.createAccount(t, "u1")
	ctx := context.Background()

	acct, err := quests.VotePrompt(ctx, "u1", "a")
	if err != nil {
		t.Fatalf("vote: %v", err)
	}
	if acct.Balance != models.StartingBalance+models.PromptVoteReward {
		t.Fatalf("balance = %d", acct.Balance)
	}
	if !acct.PromptVoteDone {
		t.Fatal("vote flag not set")
	}

	if _, err := quests.VotePrompt(ctx, "u1", "b"); !errors.Is(err, ErrAlreadyClaimedToday) {
		t.Fatalf("second vote err = %v, want ErrAlreadyClaimedToday", err)
	}
}

func TestVotePromptRejectsBadOption(t *testing.T) {
	env := newTestEnv(t)
	quests := NewQuestService(env.ledger)
	env.createAccount(t, "u1")

	if _, err := quests.VotePrompt(context.Background(), "u1", "c"); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("err = %v, want ErrInvalidAmount", err)
	}
}

func TestXPBoostDoublesCommentXP(t *testing.T) {
	env := newTestEnv(t)
	quests := NewQuestService(env.ledger)
	env.createAccount(t, "u1")
	ctx := context.Background()

	if _, err := env.ledger.ChargeCredits(ctx, "u1", 1000, "top-up"); err != nil {
		t.Fatalf("top-up: %v", err)
	}
	if _, err := env.ledger.Purchase(ctx, "u1", "item-boost"); err != nil {
		t.Fatalf("buy boost: %v", err)
	}

	acct, err := quests.RecordComment(ctx, "u1")
	if err != nil {
		t.Fatalf("comment: %v", err)
	}
	if acct.XP != 10 { // 5 base, doubled
		t.Fatalf("xp = %d, want 10", acct.XP)
	}
}

func TestXPThresholdMonotonic(t *testing.T) {
	prev := int64(0)
	for level := 1; level <= 50; level++ {
		cur := xpThreshold(level)
		if cur <= prev {
			t.Fatalf("threshold not increasing at level %d: %d <= %d", level, cur, prev)
		}
		prev = cur
	}
	if got := xpThreshold(1); got != 100 {
		t.Fatalf("xpThreshold(1) = %d, want 100", got)
	}
}

func TestLevelUpThroughComments(t *testing.T) {
	env := newTestEnv(t)
	quests := NewQuestService(env.ledger)
	env.createAccount(t, "u1")
	ctx := context.Background()

	// 20 comments at 5 XP each crosses L1's 100 XP line
	for i := 0; i < 20; i++ {
		if _, err := quests.RecordComment(ctx, "u1"); err != nil {
			t.Fatalf("comment %d: %v", i, err)
		}
	}
	if acct := env.reload(t, "u1"); acct.Level != 2 {
		t.Fatalf("level = %d, want 2 (xp=%d)", acct.Level, acct.XP)
	}
}

func TestTodayPromptDeterministic(t *testing.T) {
	env := newTestEnv(t)
	quests := NewQuestService(env.ledger)

	a := quests.TodayPrompt()
	b := quests.TodayPrompt()
	if a.ID != b.ID {
		t.Fatalf("prompt changed within a day: %s vs %s", a.ID, b.ID)
	}
}
