package models

import "time"

type NotificationKind string

const (
	NotifSystem      NotificationKind = "system"
	NotifAchievement NotificationKind = "achievement"
	NotifShop        NotificationKind = "shop"
	NotifAuction     NotificationKind = "auction"
)

// Notification is a user-visible message recorded by the ledger. Delivery
// is best-effort; the ledger never fails an operation because a
// notification could not be written.
type Notification struct {
	ID        string           `gorm:"primaryKey;type:uuid" json:"id"`
	AccountID string           `gorm:"type:uuid;not null;index" json:"account_id"`
	Kind      NotificationKind `gorm:"type:varchar(16);not null" json:"kind"`
	Message   string           `gorm:"type:text;not null" json:"message"`
	Link      string           `json:"link,omitempty"`
	IsRead    bool             `gorm:"default:false" json:"is_read"`
	CreatedAt time.Time        `gorm:"autoCreateTime;index" json:"created_at"`
}
