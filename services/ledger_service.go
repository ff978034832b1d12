package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"credit-hub-system/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// LedgerService owns every mutation of an account's economic state.
// All writes go through withAccount: one GORM transaction per operation,
// finished by a compare-and-swap on the account's version column. Two
// sessions racing on the same account means one commits and the other
// gets ErrConcurrentConflict — balances cannot go negative from stale
// reads and daily flags cannot double-fire.
type LedgerService struct {
	DB     *gorm.DB
	Sync   *SyncCoordinator
	Notify *NotificationService

	// Day boundary offset from UTC, in hours. Default 9 (KST) to match
	// the original audience; overridable for tests and other locales.
	DayOffsetHours int

	now func() time.Time
}

func NewLedgerService(db *gorm.DB, sync *SyncCoordinator, notify *NotificationService, dayOffsetHours int) *LedgerService {
	return &LedgerService{
		DB:             db,
		Sync:           sync,
		Notify:         notify,
		DayOffsetHours: dayOffsetHours,
		now:            time.Now,
	}
}

// withAccount loads the account, performs the daily quest reset if the
// calendar day has changed, runs fn, re-evaluates achievements, and saves
// with a version check. fn sees the account inside the transaction and may
// mutate it and create rows via tx. Any error from fn rolls everything
// back — no partial state ever lands.
func (s *LedgerService) withAccount(ctx context.Context, accountID string, fn func(tx *gorm.DB, acct *models.Account) error) (*models.Account, error) {
	var acct models.Account
	var resetBonus int64
	var unlocked []models.AchievementDef

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", accountID).First(&acct).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrAccountNotFound
			}
			return fmt.Errorf("%w: %v", ErrRemoteUnavailable, err)
		}
		prev := acct.Version
		now := s.now()

		if reset, bonus := ensureDay(&acct, now, s.DayOffsetHours); reset {
			acct.Balance += bonus
			desc := fmt.Sprintf("Daily check-in (streak %d)", acct.Streak)
			if _, err := appendTransaction(tx, acct.ID, models.TxEarn, bonus, desc); err != nil {
				return err
			}
			resetBonus = bonus
		}

		if fn != nil {
			if err := fn(tx, &acct); err != nil {
				return err
			}
		}

		ul, err := evaluateUnlocks(tx, &acct, now)
		if err != nil {
			return err
		}
		unlocked = ul

		if acct.Balance < 0 {
			// fn must balance-check before debiting; this is the backstop
			return ErrInsufficientBalance
		}

		acct.Version = prev + 1
		res := tx.Model(&models.Account{}).
			Where("id = ? AND version = ?", acct.ID, prev).
			Select("*").Omit("id", "created_at").
			Updates(&acct)
		if res.Error != nil {
			return fmt.Errorf("%w: %v", ErrRemoteUnavailable, res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrConcurrentConflict
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Post-commit: refresh the mirror and tell other open sessions to
	// refetch. Notifications are best-effort.
	s.Sync.WriteThrough(ctx, &acct)
	s.Sync.Invalidate(ctx, acct.ID)
	if resetBonus > 0 {
		s.Notify.NotifyCredits(acct.ID, models.NotifSystem,
			"Daily check-in complete! (streak %d) +%d CR", acct.Streak, resetBonus)
	}
	for _, a := range unlocked {
		s.Notify.NotifyCredits(acct.ID, models.NotifAchievement,
			"Hidden achievement unlocked: ["+a.Name+"] +%d CR", a.Reward)
	}
	return &acct, nil
}

// GetAccount reads through the sync coordinator (mirror first).
func (s *LedgerService) GetAccount(ctx context.Context, accountID string) (*models.Account, error) {
	return s.Sync.GetAccount(ctx, accountID)
}

// CreateAccount registers a new ledger account with the starting grant.
// The referral code is generated here; attribution to an inviter is a
// separate step (ReferralService.Attribute).
func (s *LedgerService) CreateAccount(ctx context.Context, accountID, nickname string) (*models.Account, error) {
	code, err := generateReferralCode(ctx, s.DB)
	if err != nil {
		return nil, err
	}
	now := s.now()
	acct := models.Account{
		ID:             accountID,
		Nickname:       nickname,
		Balance:        models.StartingBalance,
		Level:          1,
		QuestDate:      dayKey(now, s.DayOffsetHours),
		LoginDone:      true,
		Streak:         1,
		LastActiveDate: dayKey(now, s.DayOffsetHours),
		ReferralCode:   code,
		Theme:          "standard",
	}
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&acct).Error; err != nil {
			return fmt.Errorf("%w: %v", ErrRemoteUnavailable, err)
		}
		_, err := appendTransaction(tx, acct.ID, models.TxEarn, models.StartingBalance, "Welcome grant")
		return err
	})
	if err != nil {
		return nil, err
	}
	s.Sync.WriteThrough(ctx, &acct)
	s.Notify.Notify(acct.ID, models.NotifSystem, "Welcome aboard! Your starting credits have arrived.", "/mypage")
	return &acct, nil
}

// DeleteAccount logically deletes the account and evicts it from the
// mirror so no session keeps acting on the removed record.
func (s *LedgerService) DeleteAccount(ctx context.Context, accountID string) error {
	res := s.DB.WithContext(ctx).Where("id = ?", accountID).Delete(&models.Account{})
	if res.Error != nil {
		return fmt.Errorf("%w: %v", ErrRemoteUnavailable, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrAccountNotFound
	}
	s.Sync.Evict(ctx, accountID)
	s.Sync.Invalidate(ctx, accountID)
	return nil
}

// Credit always succeeds for an existing account.
func (s *LedgerService) Credit(ctx context.Context, accountID string, amount int64, kind models.TransactionKind, description string) (*models.Transaction, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	var txn *models.Transaction
	_, err := s.withAccount(ctx, accountID, func(tx *gorm.DB, acct *models.Account) error {
		acct.Balance += amount
		t, err := appendTransaction(tx, acct.ID, kind, amount, description)
		txn = t
		return err
	})
	return txn, err
}

// Debit fails without mutation when the balance is insufficient. The
// check and the decrement commit in the same transaction guarded by the
// version CAS, so two stale sessions cannot both spend the same credits.
func (s *LedgerService) Debit(ctx context.Context, accountID string, amount int64, description string) (*models.Transaction, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	var txn *models.Transaction
	_, err := s.withAccount(ctx, accountID, func(tx *gorm.DB, acct *models.Account) error {
		if acct.Balance < amount {
			return ErrInsufficientBalance
		}
		acct.Balance -= amount
		t, err := appendTransaction(tx, acct.ID, models.TxSpend, amount, description)
		txn = t
		return err
	})
	return txn, err
}

// ChargeCredits is the payment stub: it only credits the ledger. idemKey
// makes a retried charge safe — the second attempt returns the original
// transaction instead of double-applying.
func (s *LedgerService) ChargeCredits(ctx context.Context, accountID string, amount int64, idemKey string) (*models.Transaction, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	key := "charge:idem:" + idemKey
	ok, err := s.Sync.RDB.SetNX(ctx, key, "pending", 24*time.Hour).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRemoteUnavailable, err)
	}
	if !ok {
		prevID, err := s.Sync.RDB.Get(ctx, key).Result()
		if err != nil || prevID == "pending" {
			return nil, ErrConcurrentConflict
		}
		var prev models.Transaction
		if err := s.DB.WithContext(ctx).Where("id = ?", prevID).First(&prev).Error; err != nil {
			return nil, ErrConcurrentConflict
		}
		return &prev, nil
	}

	txn, err := s.Credit(ctx, accountID, amount, models.TxCharge, "Credit top-up")
	if err != nil {
		s.Sync.RDB.Del(ctx, key)
		return nil, err
	}
	s.Sync.RDB.Set(ctx, key, txn.ID, 24*time.Hour)
	s.Notify.NotifyCredits(accountID, models.NotifSystem, "Top-up complete: +%d CR", amount)
	return txn, nil
}

// Transactions returns the capped log, most recent first.
func (s *LedgerService) Transactions(ctx context.Context, accountID string, limit int) ([]models.Transaction, error) {
	if limit < 1 || limit > models.TxLogCap {
		limit = models.TxLogCap
	}
	var txns []models.Transaction
	err := s.DB.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&txns).Error
	return txns, err
}

// Inventory lists the account's item multiset.
func (s *LedgerService) Inventory(ctx context.Context, accountID string) ([]models.InventoryEntry, error) {
	var entries []models.InventoryEntry
	err := s.DB.WithContext(ctx).
		Where("account_id = ? AND qty > 0", accountID).
		Order("created_at ASC").
		Find(&entries).Error
	return entries, err
}

// appendTransaction creates an immutable ledger entry and prunes the log
// beyond TxLogCap. Entries are never updated or individually deleted.
func appendTransaction(tx *gorm.DB, accountID string, kind models.TransactionKind, amount int64, description string) (*models.Transaction, error) {
	t := &models.Transaction{
		ID:          uuid.NewString(),
		AccountID:   accountID,
		Kind:        kind,
		Amount:      amount,
		Description: description,
	}
	if err := tx.Create(t).Error; err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRemoteUnavailable, err)
	}
	keep := tx.Session(&gorm.Session{NewDB: true}).
		Model(&models.Transaction{}).
		Select("id").
		Where("account_id = ?", accountID).
		Order("created_at DESC, id DESC").
		Limit(models.TxLogCap)
	if err := tx.Where("account_id = ? AND id NOT IN (?)", accountID, keep).
		Delete(&models.Transaction{}).Error; err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRemoteUnavailable, err)
	}
	return t, nil
}

// grantInventory adds one unit of an item (multiset upsert).
func grantInventory(tx *gorm.DB, accountID, itemID string) error {
	var entry models.InventoryEntry
	err := tx.Where("account_id = ? AND item_id = ?", accountID, itemID).First(&entry).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		entry = models.InventoryEntry{
			ID:        uuid.NewString(),
			AccountID: accountID,
			ItemID:    itemID,
			Qty:       1,
		}
		return tx.Create(&entry).Error
	case err != nil:
		return err
	default:
		return tx.Model(&entry).Update("qty", gorm.Expr("qty + 1")).Error
	}
}

func ownedQty(tx *gorm.DB, accountID, itemID string) (int, error) {
	var entry models.InventoryEntry
	err := tx.Where("account_id = ? AND item_id = ?", accountID, itemID).First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return entry.Qty, nil
}

func consumeInventory(tx *gorm.DB, accountID, itemID string) error {
	res := tx.Model(&models.InventoryEntry{}).
		Where("account_id = ? AND item_id = ? AND qty > 0", accountID, itemID).
		Update("qty", gorm.Expr("qty - 1"))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrItemNotFound
	}
	return nil
}

// PurchaseResult reports what the buy actually cost and granted.
type PurchaseResult struct {
	Item          *models.CatalogItem `json:"item"`
	PricePaid     int64               `json:"price_paid"`
	CouponApplied bool                `json:"coupon_applied"`
}

// Purchase buys a catalog item: effective price (active discount coupon is
// consumed on use), ownership rules, debit, inventory/effect grant and the
// item's immediate cosmetic application — all in one atomic step.
func (s *LedgerService) Purchase(ctx context.Context, accountID, itemID string) (*PurchaseResult, error) {
	item := models.LookupItem(itemID)
	if item == nil {
		return nil, ErrItemNotFound
	}
	result := &PurchaseResult{Item: item}

	_, err := s.withAccount(ctx, accountID, func(tx *gorm.DB, acct *models.Account) error {
		now := s.now()
		price := item.Price

		couponActive, err := effectActive(tx, acct.ID, models.EffectDiscountCoupon, now)
		if err != nil {
			return err
		}
		if couponActive && price > 0 {
			price -= price * models.DiscountCouponPct / 100
			if err := clearEffect(tx, acct.ID, models.EffectDiscountCoupon); err != nil {
				return err
			}
			result.CouponApplied = true
		}

		if !item.Consumable && !item.Rebuyable {
			qty, err := ownedQty(tx, acct.ID, item.ID)
			if err != nil {
				return err
			}
			if qty > 0 {
				return ErrAlreadyOwned
			}
		}
		if item.Timed() {
			active, err := effectActive(tx, acct.ID, item.Effect, now)
			if err != nil {
				return err
			}
			if active {
				return ErrAlreadyOwned
			}
		}

		if acct.Balance < price {
			return ErrInsufficientBalance
		}
		if price > 0 {
			acct.Balance -= price
			if _, err := appendTransaction(tx, acct.ID, models.TxSpend, price, "Shop purchase: "+item.Name); err != nil {
				return err
			}
		}
		result.PricePaid = price

		if item.Timed() {
			// re-arms the expiry on rebuy instead of stacking entries
			if err := activateEffect(tx, acct.ID, item.Effect, item.DurationDays, now); err != nil {
				return err
			}
		}
		if err := grantInventory(tx, acct.ID, item.ID); err != nil {
			return err
		}

		applyImmediateCosmetic(acct, item)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Notify.Notify(accountID, models.NotifShop, "Purchase complete: "+item.Name, "/shop")
	return result, nil
}

// applyImmediateCosmetic equips visual items the moment they are bought,
// matching the shop's instant-feedback behavior. Equip slots replace, they
// do not stack.
func applyImmediateCosmetic(acct *models.Account, item *models.CatalogItem) {
	switch item.Effect {
	case models.EffectFrameShell, models.EffectFrameLaurel, models.EffectFrameCyber:
		acct.Frame = string(item.Effect)
	case models.EffectRainbowName:
		acct.NameColor = "rainbow"
	case models.EffectGlitchName:
		acct.NameColor = "glitch"
	case models.EffectMegaphone, models.EffectShield, models.EffectCustomTitle,
		models.EffectHighlightPost, models.EffectMysteryBox, models.EffectLotteryTicket,
		models.EffectXPBoost, models.EffectDiscountCoupon:
		// utility items do nothing until consumed
	}
}

// ConsumePayload carries the per-kind arguments of a consume call.
type ConsumePayload struct {
	Title   string `json:"title,omitempty"`
	Message string `json:"message,omitempty"`
	PostID  string `json:"post_id,omitempty"`
}

// ConsumeResult tells the caller what using the item produced.
type ConsumeResult struct {
	Message string   `json:"message"`
	Outcome *Outcome `json:"outcome,omitempty"`
}

// ConsumeItem uses one unit of an owned item. Dispatch over the effect
// kind is exhaustive; consumables lose a unit, equip-type items swap the
// active slot of their category instead.
func (s *LedgerService) ConsumeItem(ctx context.Context, accountID, itemID string, payload ConsumePayload) (*ConsumeResult, error) {
	item := models.LookupItem(itemID)
	if item == nil {
		return nil, ErrItemNotFound
	}

	result := &ConsumeResult{}
	var announce string

	_, err := s.withAccount(ctx, accountID, func(tx *gorm.DB, acct *models.Account) error {
		now := s.now()
		qty, err := ownedQty(tx, acct.ID, item.ID)
		if err != nil {
			return err
		}
		if qty < 1 {
			return ErrItemNotFound
		}

		switch item.Effect {
		case models.EffectCustomTitle:
			if payload.Title == "" {
				return fmt.Errorf("%w: title required", ErrInvalidAmount)
			}
			acct.CustomTitle = payload.Title
			result.Message = "Title set: " + payload.Title

		case models.EffectMegaphone:
			if payload.Message == "" {
				return fmt.Errorf("%w: message required", ErrInvalidAmount)
			}
			announce = acct.Nickname + ": " + payload.Message
			result.Message = "Megaphone message queued for broadcast"

		case models.EffectHighlightPost:
			if payload.PostID == "" {
				return fmt.Errorf("%w: post_id required", ErrInvalidAmount)
			}
			announce = "Spotlight on post " + payload.PostID
			result.Message = "Post highlighted"

		case models.EffectShield:
			acct.ShieldCount++
			result.Message = fmt.Sprintf("Ward armed (%d active)", acct.ShieldCount)

		case models.EffectXPBoost:
			if err := activateEffect(tx, acct.ID, models.EffectXPBoost, item.DurationDays, now); err != nil {
				return err
			}
			result.Message = "XP Booster active"

		case models.EffectDiscountCoupon:
			if err := activateEffect(tx, acct.ID, models.EffectDiscountCoupon, 0, now); err != nil {
				return err
			}
			result.Message = "Coupon armed for your next purchase"

		case models.EffectMysteryBox:
			if acct.MysteryBoxDone {
				return ErrAlreadyClaimedToday
			}
			acct.MysteryBoxDone = true
			out := rollMysteryBox(randFloat(), randInt)
			if err := applyOutcome(tx, acct, &out); err != nil {
				return err
			}
			result.Outcome = &out
			result.Message = out.Message

		case models.EffectRainbowName:
			acct.NameColor = "rainbow"
			result.Message = "Rainbow nickname equipped"

		case models.EffectGlitchName:
			acct.NameColor = "glitch"
			result.Message = "Glitch effect equipped"

		case models.EffectFrameShell, models.EffectFrameLaurel, models.EffectFrameCyber:
			acct.Frame = string(item.Effect)
			result.Message = "Frame equipped"

		case models.EffectLotteryTicket:
			return ErrNotConsumable // held until the weekly draw
		}

		if item.Consumable {
			if err := consumeInventory(tx, acct.ID, item.ID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if announce != "" {
		s.Sync.Announce(ctx, announce)
	}
	return result, nil
}

// GrantCredits is the admin backdoor used by support tooling.
func (s *LedgerService) GrantCredits(ctx context.Context, accountID string, amount int64, reason string) (*models.Transaction, error) {
	txn, err := s.Credit(ctx, accountID, amount, models.TxEarn, "Grant: "+reason)
	if err != nil {
		return nil, err
	}
	log.Printf("[LEDGER] Admin grant: %s +%d (%s)", accountID, amount, reason)
	return txn, nil
}
