package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"

	"credit-hub-system/models"

	"gorm.io/gorm"
)

// Referral bonus schedule. Thresholds fire exactly once each, enforced by
// comparing the invite count before and after the increment inside one
// transaction.
const (
	inviteeBonus      = 100
	inviterBonus      = 300
	thirdInviteBonus  = 500
	tenthInviteBonus  = 2000
	referralCodeLen   = 6
	referralCodeChars = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// ReferralService generates invite codes and attributes signups.
type ReferralService struct {
	DB     *gorm.DB
	Notify *NotificationService
	Sync   *SyncCoordinator
}

func NewReferralService(db *gorm.DB, notify *NotificationService, sync *SyncCoordinator) *ReferralService {
	return &ReferralService{DB: db, Notify: notify, Sync: sync}
}

// generateReferralCode produces a short random code and regenerates on
// the (unlikely) collision with an existing account.
func generateReferralCode(ctx context.Context, db *gorm.DB) (string, error) {
	for attempt := 0; attempt < 10; attempt++ {
		code, err := randomCode(referralCodeLen)
		if err != nil {
			return "", err
		}
		var count int64
		if err := db.WithContext(ctx).Model(&models.Account{}).
			Where("referral_code = ?", code).
			Count(&count).Error; err != nil {
			return "", fmt.Errorf("%w: %v", ErrRemoteUnavailable, err)
		}
		if count == 0 {
			return code, nil
		}
	}
	return "", errors.New("referral code space exhausted")
}

func randomCode(n int) (string, error) {
	buf := make([]byte, n)
	for i := range buf {
		idx, err := rand.Int(rand.Reader, big.NewInt(int64(len(referralCodeChars))))
		if err != nil {
			return "", err
		}
		buf[i] = referralCodeChars[idx.Int64()]
	}
	return string(buf), nil
}

// GenerateCode exposes code generation for account provisioning flows.
func (r *ReferralService) GenerateCode(ctx context.Context) (string, error) {
	return generateReferralCode(ctx, r.DB)
}

// Attribute links a freshly registered account to the inviter owning the
// code: the invitee gets the signup bonus, the inviter gets the referral
// bonus plus the tier bonus when the invite count crosses 3 or 10. The
// whole cascade is one transaction with version checks on both rows.
func (r *ReferralService) Attribute(ctx context.Context, newAccountID, code string) error {
	var invitee, inviter models.Account
	var tierBonus int64

	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", newAccountID).First(&invitee).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrAccountNotFound
			}
			return fmt.Errorf("%w: %v", ErrRemoteUnavailable, err)
		}
		if invitee.InvitedBy != nil {
			return ErrAlreadyInvited
		}

		if err := tx.Where("referral_code = ?", code).First(&inviter).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrAccountNotFound
			}
			return fmt.Errorf("%w: %v", ErrRemoteUnavailable, err)
		}
		if inviter.ID == invitee.ID {
			return ErrSelfReferral
		}

		// Invitee side: signup bonus + attribution.
		prevInvitee := invitee.Version
		invitee.InvitedBy = &inviter.ID
		invitee.Balance += inviteeBonus
		if _, err := appendTransaction(tx, invitee.ID, models.TxEarn, inviteeBonus, "Referral signup bonus"); err != nil {
			return err
		}
		if err := casSaveAccount(tx, &invitee, prevInvitee); err != nil {
			return err
		}

		// Inviter side: flat bonus, counter, and one-shot tier bonuses.
		prevInviter := inviter.Version
		inviter.InviteCount++
		inviter.Balance += inviterBonus
		if _, err := appendTransaction(tx, inviter.ID, models.TxEarn, inviterBonus, "Referral bonus"); err != nil {
			return err
		}
		switch inviter.InviteCount {
		case 3:
			tierBonus = thirdInviteBonus
		case 10:
			tierBonus = tenthInviteBonus
		}
		if tierBonus > 0 {
			inviter.Balance += tierBonus
			desc := fmt.Sprintf("Referral milestone (%d invites)", inviter.InviteCount)
			if _, err := appendTransaction(tx, inviter.ID, models.TxEarn, tierBonus, desc); err != nil {
				return err
			}
		}
		return casSaveAccount(tx, &inviter, prevInviter)
	})
	if err != nil {
		return err
	}

	// Post-commit: refresh both mirrors before broadcasting, so peers
	// that re-fetch never see the pre-referral balances.
	r.Sync.WriteThrough(ctx, &invitee)
	r.Sync.WriteThrough(ctx, &inviter)
	r.Sync.Invalidate(ctx, invitee.ID)
	r.Sync.Invalidate(ctx, inviter.ID)
	r.Notify.NotifyCredits(inviter.ID, models.NotifSystem,
		"Someone signed up with your code! +%d CR", int64(inviterBonus))
	if tierBonus > 0 {
		r.Notify.NotifyCredits(inviter.ID, models.NotifSystem,
			"Referral milestone reached! +%d CR", tierBonus)
	}
	return nil
}

// casSaveAccount writes the account back with a version check; shared by
// flows that touch accounts outside LedgerService.withAccount.
func casSaveAccount(tx *gorm.DB, acct *models.Account, prevVersion int) error {
	acct.Version = prevVersion + 1
	res := tx.Model(&models.Account{}).
		Where("id = ? AND version = ?", acct.ID, prevVersion).
		Select("*").Omit("id", "created_at").
		Updates(acct)
	if res.Error != nil {
		return fmt.Errorf("%w: %v", ErrRemoteUnavailable, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrConcurrentConflict
	}
	return nil
}
