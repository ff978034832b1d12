package services

import (
	"context"
	"fmt"
	"math"
	"time"

	"credit-hub-system/models"

	"gorm.io/gorm"
)

// QuestService is the API surface over daily quest state. The reset
// itself lives in ensureDay and runs inside every ledger write, so it is
// guarded by the same per-account version CAS: two sessions racing to
// detect the date change cannot both credit the login bonus.
type QuestService struct {
	Ledger *LedgerService
}

func NewQuestService(ledger *LedgerService) *QuestService {
	return &QuestService{Ledger: ledger}
}

// dayKey renders the instant as a calendar date in a fixed offset from
// UTC. The offset is configuration, defaulting to +9 so day boundaries
// match the original audience's midnight.
func dayKey(now time.Time, offsetHours int) string {
	return now.UTC().Add(time.Duration(offsetHours) * time.Hour).Format("2006-01-02")
}

// loginBonus scales the daily grant with the streak, capped at 10 days.
func loginBonus(streak int) int64 {
	s := streak
	if s > 10 {
		s = 10
	}
	return int64(10 + s*5)
}

// ensureDay performs the one-way daily reset when the stored quest date
// differs from today: zero the daily counters and flags, recompute the
// streak (a gap of more than 2 days breaks it), and return the login
// bonus to credit. Once QuestDate equals today the reset cannot recur.
func ensureDay(a *models.Account, now time.Time, offsetHours int) (bool, int64) {
	today := dayKey(now, offsetHours)
	if a.QuestDate == today {
		return false, 0
	}

	streak := 1
	if a.LastActiveDate != "" {
		last, errL := time.Parse("2006-01-02", a.LastActiveDate)
		cur, errC := time.Parse("2006-01-02", today)
		if errL == nil && errC == nil {
			gap := int(cur.Sub(last).Hours() / 24)
			if gap <= 2 {
				streak = a.Streak + 1
			}
		}
	}

	a.QuestDate = today
	a.LastActiveDate = today
	a.Streak = streak
	a.LoginDone = true
	a.PostCount = 0
	a.CommentCount = 0
	a.PromptVoteDone = false
	a.LuckyDrawDone = false
	a.MysteryBoxDone = false

	return true, loginBonus(streak)
}

// CheckIn touches the account so the daily reset (and its bonus) run if
// they have not today. Calling it again the same day is a no-op.
func (q *QuestService) CheckIn(ctx context.Context, accountID string) (*models.Account, error) {
	return q.Ledger.withAccount(ctx, accountID, nil)
}

// RecordPost is called by the content service when a post is published.
// Publishing burns the gas fee and counts toward daily quests and XP.
func (q *QuestService) RecordPost(ctx context.Context, accountID string) (*models.Account, error) {
	return q.Ledger.withAccount(ctx, accountID, func(tx *gorm.DB, acct *models.Account) error {
		if acct.Balance < models.NodeGasFee {
			return fmt.Errorf("%w: %d CR gas fee required", ErrInsufficientBalance, models.NodeGasFee)
		}
		acct.Balance -= models.NodeGasFee
		if _, err := appendTransaction(tx, acct.ID, models.TxSpend, models.NodeGasFee, "Post gas fee"); err != nil {
			return err
		}
		acct.PostCount++
		return applyXP(tx, acct, 20, q.Ledger.now())
	})
}

// RecordComment counts a comment toward daily quests and XP. No fee.
func (q *QuestService) RecordComment(ctx context.Context, accountID string) (*models.Account, error) {
	return q.Ledger.withAccount(ctx, accountID, func(tx *gorm.DB, acct *models.Account) error {
		acct.CommentCount++
		return applyXP(tx, acct, 5, q.Ledger.now())
	})
}

// TodayPrompt returns the deterministic daily balance prompt.
func (q *QuestService) TodayPrompt() models.BalancePrompt {
	return models.DailyPrompt(dayKey(q.Ledger.now(), q.Ledger.DayOffsetHours))
}

// VotePrompt records the once-a-day balance prompt vote and pays the
// small participation reward.
func (q *QuestService) VotePrompt(ctx context.Context, accountID, option string) (*models.Account, error) {
	if option != "a" && option != "b" {
		return nil, fmt.Errorf("%w: option must be a or b", ErrInvalidAmount)
	}
	return q.Ledger.withAccount(ctx, accountID, func(tx *gorm.DB, acct *models.Account) error {
		if acct.PromptVoteDone {
			return ErrAlreadyClaimedToday
		}
		acct.PromptVoteDone = true
		acct.Balance += models.PromptVoteReward
		if _, err := appendTransaction(tx, acct.ID, models.TxEarn, models.PromptVoteReward, "Balance prompt vote"); err != nil {
			return err
		}
		return applyXP(tx, acct, 10, q.Ledger.now())
	})
}

// applyXP adds experience (doubled under an active XP Booster) and walks
// the level curve.
func applyXP(tx *gorm.DB, acct *models.Account, base int64, now time.Time) error {
	boosted, err := effectActive(tx, acct.ID, models.EffectXPBoost, now)
	if err != nil {
		return err
	}
	gain := base
	if boosted {
		gain *= 2
	}
	acct.XP += gain
	for acct.XP >= xpThreshold(acct.Level) {
		acct.Level++
	}
	return nil
}

const baseXPPerLevel = 100

// xpThreshold returns total XP required to leave the given level.
// L_n = floor(100 * n^1.2) accumulated.
func xpThreshold(level int) int64 {
	if level < 1 {
		level = 1
	}
	var total int64
	for n := 1; n <= level; n++ {
		total += int64(float64(baseXPPerLevel) * math.Pow(float64(n), 1.2))
	}
	return total
}
