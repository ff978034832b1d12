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

// AuctionService runs credit-denominated auctions. Each bid is the
// current price plus the fixed increment; the outbid account is refunded
// in the same transaction that collects the new bid, so credits are
// never held by more than one live bid at a time.
type AuctionService struct {
	DB     *gorm.DB
	Sync   *SyncCoordinator
	Notify *NotificationService

	now func() time.Time
}

func NewAuctionService(db *gorm.DB, sync *SyncCoordinator, notify *NotificationService) *AuctionService {
	return &AuctionService{DB: db, Sync: sync, Notify: notify, now: time.Now}
}

// Create opens a new auction (admin surface).
func (a *AuctionService) Create(ctx context.Context, itemName, description string, startPrice int64, endsAt time.Time) (*models.Auction, error) {
	if startPrice < 0 {
		return nil, ErrInvalidAmount
	}
	auc := models.Auction{
		ID:           uuid.New().String(),
		ItemName:     itemName,
		Description:  description,
		StartPrice:   startPrice,
		CurrentPrice: startPrice,
		EndsAt:       endsAt,
	}
	if err := a.DB.WithContext(ctx).Create(&auc).Error; err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRemoteUnavailable, err)
	}
	return &auc, nil
}

// Live returns open auctions, soonest-ending first.
func (a *AuctionService) Live(ctx context.Context) ([]models.Auction, error) {
	var rows []models.Auction
	err := a.DB.WithContext(ctx).
		Where("finished = ? AND ends_at > ?", false, a.now()).
		Order("ends_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRemoteUnavailable, err)
	}
	return rows, nil
}

// Get returns one auction with its bid history.
func (a *AuctionService) Get(ctx context.Context, auctionID string) (*models.Auction, []models.Bid, error) {
	var auc models.Auction
	if err := a.DB.WithContext(ctx).Where("id = ?", auctionID).First(&auc).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrItemNotFound
		}
		return nil, nil, fmt.Errorf("%w: %v", ErrRemoteUnavailable, err)
	}
	var bids []models.Bid
	if err := a.DB.WithContext(ctx).
		Where("auction_id = ?", auctionID).
		Order("created_at DESC").
		Find(&bids).Error; err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrRemoteUnavailable, err)
	}
	return &auc, bids, nil
}

// PlaceBid collects currentPrice+increment from the bidder, refunds the
// previously highest bidder, and advances the auction row under a
// version check. A concurrent bid loses the version race and gets
// ErrConcurrentConflict, leaving both accounts untouched.
func (a *AuctionService) PlaceBid(ctx context.Context, auctionID, bidderID string) (*models.Auction, error) {
	now := a.now()
	var bidder, outbid models.Account
	var outbidAmount int64
	var result models.Auction

	err := a.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var auc models.Auction
		if err := tx.Where("id = ?", auctionID).First(&auc).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrItemNotFound
			}
			return fmt.Errorf("%w: %v", ErrRemoteUnavailable, err)
		}
		if auc.Finished || !auc.EndsAt.After(now) {
			return ErrAuctionClosed
		}
		bidAmount := auc.CurrentPrice + models.MinBidIncrement

		if err := tx.Where("id = ?", bidderID).First(&bidder).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrAccountNotFound
			}
			return fmt.Errorf("%w: %v", ErrRemoteUnavailable, err)
		}
		if bidder.Balance < bidAmount {
			return ErrInsufficientBalance
		}

		prevBidder := bidder.Version
		bidder.Balance -= bidAmount
		desc := fmt.Sprintf("Auction bid: %s", auc.ItemName)
		if _, err := appendTransaction(tx, bidder.ID, models.TxSpend, bidAmount, desc); err != nil {
			return err
		}
		if err := casSaveAccount(tx, &bidder, prevBidder); err != nil {
			return err
		}

		// Return the previous highest bid before replacing it.
		if auc.HighestBidderID != nil && *auc.HighestBidderID != bidder.ID {
			if err := tx.Where("id = ?", *auc.HighestBidderID).First(&outbid).Error; err == nil {
				prevVer := outbid.Version
				outbid.Balance += auc.CurrentPrice
				refundDesc := fmt.Sprintf("Auction refund: %s", auc.ItemName)
				if _, err := appendTransaction(tx, outbid.ID, models.TxRefund, auc.CurrentPrice, refundDesc); err != nil {
					return err
				}
				if err := casSaveAccount(tx, &outbid, prevVer); err != nil {
					return err
				}
				outbidAmount = auc.CurrentPrice
			}
		} else if auc.HighestBidderID != nil {
			// Self-outbid: give the earlier hold back to the same account.
			prevVer := bidder.Version
			bidder.Balance += auc.CurrentPrice
			refundDesc := fmt.Sprintf("Auction refund: %s", auc.ItemName)
			if _, err := appendTransaction(tx, bidder.ID, models.TxRefund, auc.CurrentPrice, refundDesc); err != nil {
				return err
			}
			if err := casSaveAccount(tx, &bidder, prevVer); err != nil {
				return err
			}
		}

		prevVersion := auc.Version
		auc.CurrentPrice = bidAmount
		auc.HighestBidderID = &bidder.ID
		auc.HighestBidderName = bidder.Nickname
		auc.Version = prevVersion + 1
		res := tx.Model(&models.Auction{}).
			Where("id = ? AND version = ?", auc.ID, prevVersion).
			Select("*").Omit("id", "created_at").
			Updates(&auc)
		if res.Error != nil {
			return fmt.Errorf("%w: %v", ErrRemoteUnavailable, res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrConcurrentConflict
		}

		bid := models.Bid{
			ID:        uuid.New().String(),
			AuctionID: auc.ID,
			AccountID: bidder.ID,
			Amount:    bidAmount,
		}
		if err := tx.Create(&bid).Error; err != nil {
			return fmt.Errorf("%w: %v", ErrRemoteUnavailable, err)
		}
		result = auc
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Post-commit: refresh the mirrors before broadcasting, so peers
	// that re-fetch never see the pre-bid balances.
	a.Sync.WriteThrough(ctx, &bidder)
	a.Sync.Invalidate(ctx, bidder.ID)
	if outbid.ID != "" {
		a.Sync.WriteThrough(ctx, &outbid)
		a.Sync.Invalidate(ctx, outbid.ID)
		a.Notify.NotifyCredits(outbid.ID, models.NotifAuction,
			"You were outbid on %s. Your %d CR were returned.", result.ItemName, outbidAmount)
	}
	return &result, nil
}

// Settle closes every auction past its deadline and notifies the winner.
// The scheduler calls this every minute; marking finished is idempotent.
func (a *AuctionService) Settle(ctx context.Context) error {
	now := a.now()
	var ended []models.Auction
	if err := a.DB.WithContext(ctx).
		Where("finished = ? AND ends_at <= ?", false, now).
		Find(&ended).Error; err != nil {
		return fmt.Errorf("%w: %v", ErrRemoteUnavailable, err)
	}
	for _, auc := range ended {
		res := a.DB.WithContext(ctx).Model(&models.Auction{}).
			Where("id = ? AND finished = ?", auc.ID, false).
			Update("finished", true)
		if res.Error != nil {
			log.Printf("[AUCTION] settle failed for %s: %v", auc.ID, res.Error)
			continue
		}
		if res.RowsAffected == 0 {
			continue
		}
		if auc.HighestBidderID != nil {
			a.Notify.Notify(*auc.HighestBidderID, models.NotifAuction,
				"You won the auction for "+auc.ItemName+"!", "/auction/"+auc.ID)
			log.Printf("[AUCTION] %s won by %s at %d CR", auc.ItemName, *auc.HighestBidderID, auc.CurrentPrice)
		} else {
			log.Printf("[AUCTION] %s ended with no bids", auc.ItemName)
		}
	}
	return nil
}
