package services

import (
	"context"
	"log"
	"time"

	"credit-hub-system/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AchievementService re-checks unlock conditions after mutations. The
// heavy lifting is evaluateUnlocks, which every ledger write already runs
// in-transaction; the service wraps it for standalone re-evaluation.
type AchievementService struct {
	Ledger *LedgerService
}

func NewAchievementService(ledger *LedgerService) *AchievementService {
	return &AchievementService{Ledger: ledger}
}

// Evaluate re-runs all unlock predicates for the account. Safe to call
// any number of times: an unlocked achievement is never re-granted.
func (a *AchievementService) Evaluate(ctx context.Context, accountID string) (*models.Account, error) {
	return a.Ledger.withAccount(ctx, accountID, nil)
}

// Unlocked lists the account's unlocked achievements with definitions.
func (a *AchievementService) Unlocked(ctx context.Context, accountID string) ([]models.AchievementDef, error) {
	var rows []models.UnlockedAchievement
	err := a.Ledger.DB.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("unlocked_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	defs := make([]models.AchievementDef, 0, len(rows))
	for _, row := range rows {
		if def := models.LookupAchievement(row.AchievementID); def != nil {
			defs = append(defs, *def)
		}
	}
	return defs, nil
}

// evaluateUnlocks checks every not-yet-unlocked achievement against the
// current account state and grants on first satisfaction: insert the
// unlock row (unique index makes the grant at-most-once), credit the
// reward, and report the definition so the caller can notify after
// commit. Predicates are pure, so re-running on every mutation is free of
// side effects beyond the grant itself.
func evaluateUnlocks(tx *gorm.DB, acct *models.Account, now time.Time) ([]models.AchievementDef, error) {
	var unlocked []models.AchievementDef
	for i := range models.Achievements {
		def := &models.Achievements[i]

		var count int64
		if err := tx.Model(&models.UnlockedAchievement{}).
			Where("account_id = ? AND achievement_id = ?", acct.ID, def.ID).
			Count(&count).Error; err != nil {
			return nil, err
		}
		if count > 0 {
			continue
		}
		if !def.Unlocked(acct, now) {
			continue
		}

		row := models.UnlockedAchievement{
			ID:            uuid.NewString(),
			AccountID:     acct.ID,
			AchievementID: def.ID,
		}
		if err := tx.Create(&row).Error; err != nil {
			return nil, err
		}
		acct.Balance += def.Reward
		if _, err := appendTransaction(tx, acct.ID, models.TxEarn, def.Reward, "Achievement: "+def.Name); err != nil {
			return nil, err
		}
		unlocked = append(unlocked, *def)
		log.Printf("[ACHIEVEMENT] %s unlocked %s (+%d)", acct.ID, def.ID, def.Reward)
	}
	return unlocked, nil
}
