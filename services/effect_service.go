package services

import (
	"context"
	"errors"
	"log"
	"time"

	"credit-hub-system/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// EffectManager answers "is this effect active right now" and arms new
// ones. Expired rows are simply inactive — nothing depends on eager
// purging; the scheduler sweeps them as housekeeping.
type EffectManager struct {
	DB *gorm.DB

	now func() time.Time
}

func NewEffectManager(db *gorm.DB) *EffectManager {
	return &EffectManager{DB: db, now: time.Now}
}

// IsActive compares the stored expiry against the current instant.
// Absent or expired means inactive.
func (m *EffectManager) IsActive(ctx context.Context, accountID string, kind models.EffectKind) (bool, error) {
	return effectActive(m.DB.WithContext(ctx), accountID, kind, m.now())
}

// Activate arms the effect for durationDays from now. Re-activating a
// non-stacking effect replaces the expiry (now + duration), it never adds
// to the remaining time. durationDays 0 means permanent.
func (m *EffectManager) Activate(ctx context.Context, accountID string, kind models.EffectKind, durationDays int) error {
	return activateEffect(m.DB.WithContext(ctx), accountID, kind, durationDays, m.now())
}

// Active lists the account's currently active effects.
func (m *EffectManager) Active(ctx context.Context, accountID string) ([]models.ActiveEffect, error) {
	var effects []models.ActiveEffect
	err := m.DB.WithContext(ctx).
		Where("account_id = ?", accountID).
		Find(&effects).Error
	if err != nil {
		return nil, err
	}
	now := m.now()
	out := effects[:0]
	for _, e := range effects {
		if e.Active(now) {
			out = append(out, e)
		}
	}
	return out, nil
}

// PurgeExpired deletes effect rows whose expiry is in the past. Purely an
// optimization; correctness never depends on it running.
func (m *EffectManager) PurgeExpired(ctx context.Context) (int64, error) {
	res := m.DB.WithContext(ctx).
		Where("expires_at IS NOT NULL AND expires_at < ?", m.now()).
		Delete(&models.ActiveEffect{})
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected > 0 {
		log.Printf("[EFFECTS] Purged %d expired effect(s)", res.RowsAffected)
	}
	return res.RowsAffected, nil
}

func effectActive(tx *gorm.DB, accountID string, kind models.EffectKind, now time.Time) (bool, error) {
	var e models.ActiveEffect
	err := tx.Where("account_id = ? AND kind = ?", accountID, kind).First(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return e.Active(now), nil
}

func activateEffect(tx *gorm.DB, accountID string, kind models.EffectKind, durationDays int, now time.Time) error {
	var expires *time.Time
	if durationDays > 0 {
		t := now.Add(time.Duration(durationDays) * 24 * time.Hour)
		expires = &t
	}
	e := models.ActiveEffect{
		ID:        uuid.NewString(),
		AccountID: accountID,
		Kind:      kind,
		ExpiresAt: expires,
	}
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "account_id"}, {Name: "kind"}},
		DoUpdates: clause.AssignmentColumns([]string{"expires_at", "updated_at"}),
	}).Create(&e).Error
}

func clearEffect(tx *gorm.DB, accountID string, kind models.EffectKind) error {
	return tx.Where("account_id = ? AND kind = ?", accountID, kind).
		Delete(&models.ActiveEffect{}).Error
}
