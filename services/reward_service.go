package services

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"credit-hub-system/models"

	"gorm.io/gorm"
)

// Outcome is the resolved result of a probabilistic reward.
type Outcome struct {
	Tier    string `json:"tier"` // fail | jackpot | rare | legend | draw
	Payout  int64  `json:"payout,omitempty"`
	Badge   string `json:"badge,omitempty"`
	Title   string `json:"title,omitempty"`
	Message string `json:"message"`
}

// Mystery box cumulative table over a uniform draw in [0,100).
// First matching range wins.
const (
	boxFailBound    = 60.0 // [0,60)  dud, partial refund
	boxJackpotBound = 90.0 // [60,90) jackpot credits
	boxRareBound    = 99.0 // [90,99) rare badge
	// [99,100) legendary title
)

const (
	jackpotMin = 200
	jackpotMax = 1000
)

const rareBadgeIcon = "💎"
const legendTitle = "Legendary Adventurer"

// Lucky draw: weighted discrete amounts, cumulative matching, first
// bucket whose cumulative weight exceeds the draw wins.
var luckyAmounts = []int64{10, 20, 30, 50, 100, 200, 500}
var luckyWeights = []float64{0.40, 0.25, 0.15, 0.10, 0.05, 0.03, 0.02}

// Package-level random sources so deterministic tests can substitute
// them without threading a generator through every call site.
var (
	randFloat = rand.Float64
	randInt   = rand.Intn
)

// rollMysteryBox maps a uniform [0,1) roll through the payout table.
func rollMysteryBox(roll float64, intn func(int) int) Outcome {
	r := roll * 100
	switch {
	case r < boxFailBound:
		return Outcome{Tier: "fail", Payout: 10, Message: "Dud! (10 CR salvaged)"}
	case r < boxJackpotBound:
		amount := int64(jackpotMin + intn(jackpotMax-jackpotMin+1))
		return Outcome{Tier: "jackpot", Payout: amount, Message: fmt.Sprintf("Jackpot! %d CR!", amount)}
	case r < boxRareBound:
		return Outcome{Tier: "rare", Badge: rareBadgeIcon, Message: "Rare badge acquired! [" + rareBadgeIcon + "]"}
	default:
		return Outcome{Tier: "legend", Title: legendTitle, Message: "[Legend] title acquired!"}
	}
}

// rollLuckyDraw picks a credit amount from the weighted table.
func rollLuckyDraw(roll float64) Outcome {
	cumulative := 0.0
	amount := luckyAmounts[0]
	for i, w := range luckyWeights {
		cumulative += w
		if roll < cumulative {
			amount = luckyAmounts[i]
			break
		}
	}
	msg := "CR received"
	if amount >= 100 {
		msg = "JACKPOT!"
	}
	return Outcome{Tier: "draw", Payout: amount, Message: fmt.Sprintf("%s +%d CR", msg, amount)}
}

// applyOutcome lands the outcome on the account inside the caller's
// transaction: payout credited, cosmetic grants equipped.
func applyOutcome(tx *gorm.DB, acct *models.Account, out *Outcome) error {
	if out.Payout > 0 {
		acct.Balance += out.Payout
		if _, err := appendTransaction(tx, acct.ID, models.TxEarn, out.Payout, "Mystery reward: "+out.Tier); err != nil {
			return err
		}
	}
	if out.Badge != "" {
		acct.BadgeIcon = out.Badge
	}
	if out.Title != "" {
		acct.CustomTitle = out.Title
	}
	return nil
}

// RewardService resolves the probability-weighted rewards. Both entry
// points are gated once per calendar day; the flag is set in the same
// CAS-guarded write as the payout so a replayed call cannot double-pay.
type RewardService struct {
	Ledger *LedgerService
}

func NewRewardService(ledger *LedgerService) (*RewardService, error) {
	if err := validateLuckyTable(); err != nil {
		return nil, err
	}
	return &RewardService{Ledger: ledger}, nil
}

// validateLuckyTable guards the distribution contract: weights must sum
// to exactly 1.0 (within float tolerance) and match the amount table.
func validateLuckyTable() error {
	if len(luckyAmounts) != len(luckyWeights) {
		return fmt.Errorf("lucky draw table mismatch: %d amounts, %d weights", len(luckyAmounts), len(luckyWeights))
	}
	sum := 0.0
	for _, w := range luckyWeights {
		sum += w
	}
	if math.Abs(sum-1.0) > 1e-9 {
		return fmt.Errorf("lucky draw weights sum to %v, want 1.0", sum)
	}
	return nil
}

// ResolveMysteryBox charges the box price, rolls the table and applies
// the result, at most once per day.
func (r *RewardService) ResolveMysteryBox(ctx context.Context, accountID string) (*Outcome, error) {
	var out Outcome
	_, err := r.Ledger.withAccount(ctx, accountID, func(tx *gorm.DB, acct *models.Account) error {
		if acct.MysteryBoxDone {
			return ErrAlreadyClaimedToday
		}
		if acct.Balance < models.MysteryBoxPrice {
			return ErrInsufficientBalance
		}
		acct.MysteryBoxDone = true
		acct.Balance -= models.MysteryBoxPrice
		if _, err := appendTransaction(tx, acct.ID, models.TxSpend, models.MysteryBoxPrice, "Mystery box opening"); err != nil {
			return err
		}
		out = rollMysteryBox(randFloat(), randInt)
		return applyOutcome(tx, acct, &out)
	})
	if err != nil {
		return nil, err
	}
	r.Ledger.Notify.Notify(accountID, models.NotifShop, out.Message, "/shop")
	return &out, nil
}

// ResolveLuckyDraw grants the free daily draw, at most once per day.
func (r *RewardService) ResolveLuckyDraw(ctx context.Context, accountID string) (*Outcome, error) {
	var out Outcome
	_, err := r.Ledger.withAccount(ctx, accountID, func(tx *gorm.DB, acct *models.Account) error {
		if acct.LuckyDrawDone {
			return ErrAlreadyClaimedToday
		}
		acct.LuckyDrawDone = true
		out = rollLuckyDraw(randFloat())
		out.Message = fmt.Sprintf("Daily lucky draw: +%d CR", out.Payout)
		acct.Balance += out.Payout
		_, err := appendTransaction(tx, acct.ID, models.TxEarn, out.Payout, out.Message)
		return err
	})
	if err != nil {
		return nil, err
	}
	r.Ledger.Notify.NotifyCredits(accountID, models.NotifShop, "Lucky draw paid out +%d CR", out.Payout)
	return &out, nil
}
