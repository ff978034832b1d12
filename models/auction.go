package models

import "time"

// MinBidIncrement is added to the current price to form the next bid.
const MinBidIncrement = 500

// Auction is a credit-denominated auction for a one-off cosmetic. The
// version column serializes competing bids the same way account writes
// are serialized.
type Auction struct {
	ID                string    `gorm:"primaryKey;type:uuid" json:"id"`
	ItemName          string    `gorm:"not null" json:"item_name"`
	Description       string    `gorm:"type:text" json:"description"`
	StartPrice        int64     `gorm:"not null" json:"start_price"`
	CurrentPrice      int64     `gorm:"not null" json:"current_price"`
	HighestBidderID   *string   `gorm:"type:uuid;index" json:"highest_bidder_id,omitempty"`
	HighestBidderName string    `json:"highest_bidder_name,omitempty"`
	EndsAt            time.Time `gorm:"not null;index" json:"ends_at"`
	Finished          bool      `gorm:"default:false;index" json:"finished"`
	Version           int       `gorm:"not null;default:0" json:"-"`

	Timestamps
}

// Bid is the append-only bid history for an auction.
type Bid struct {
	ID        string    `gorm:"primaryKey;type:uuid" json:"id"`
	AuctionID string    `gorm:"type:uuid;not null;index" json:"auction_id"`
	AccountID string    `gorm:"type:uuid;not null;index" json:"account_id"`
	Amount    int64     `gorm:"not null" json:"amount"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}
