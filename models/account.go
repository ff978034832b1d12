package models

import (
	"time"

	"gorm.io/gorm"
)

// Account is the authoritative economic record for one user. The service
// owns every field here; other services only ever see it through the
// ledger routes. Balance is never allowed to go negative and Version is
// bumped on every successful write (compare-and-swap on the row).
type Account struct {
	ID       string `gorm:"primaryKey;type:uuid" json:"id"` // external user ID from the profile service
	Nickname string `gorm:"index;not null" json:"nickname"`

	Balance int64 `gorm:"not null;default:0" json:"balance"`
	Version int   `gorm:"not null;default:0" json:"-"`

	XP    int64 `gorm:"default:0" json:"xp"`
	Level int   `gorm:"default:1" json:"level"`

	// Daily quest state, reset once per calendar day (service-local day
	// boundary, default UTC+9). QuestDate is "YYYY-MM-DD".
	QuestDate      string `gorm:"type:varchar(10);index" json:"quest_date"`
	LoginDone      bool   `gorm:"default:false" json:"login_done"`
	PostCount      int    `gorm:"default:0" json:"post_count"`
	CommentCount   int    `gorm:"default:0" json:"comment_count"`
	PromptVoteDone bool   `gorm:"default:false" json:"prompt_vote_done"`
	LuckyDrawDone  bool   `gorm:"default:false" json:"lucky_draw_done"`
	MysteryBoxDone bool   `gorm:"default:false" json:"mystery_box_done"`

	Streak         int    `gorm:"default:0" json:"streak"`
	LastActiveDate string `gorm:"type:varchar(10)" json:"last_active_date"`

	ReferralCode string  `gorm:"uniqueIndex;not null" json:"referral_code"`
	InvitedBy    *string `gorm:"type:uuid" json:"invited_by,omitempty"`
	InviteCount  int     `gorm:"default:0" json:"invite_count"`

	// Remaining report-warning defenses (shield item).
	ShieldCount int `gorm:"default:0" json:"shield_count"`

	// Single-slot cosmetics. Equipping replaces the slot, it never stacks.
	NameColor   string `json:"name_color,omitempty"`
	Frame       string `json:"frame,omitempty"`
	BadgeIcon   string `json:"badge_icon,omitempty"`
	CustomTitle string `json:"custom_title,omitempty"`
	Theme       string `gorm:"default:'standard'" json:"theme"`

	Timestamps
}

// TransactionKind is the closed set of ledger entry types. The
// presentation layer depends on these four values.
type TransactionKind string

const (
	TxEarn   TransactionKind = "earn"
	TxSpend  TransactionKind = "spend"
	TxCharge TransactionKind = "charge"
	TxRefund TransactionKind = "refund"
)

// TxLogCap bounds the per-account transaction log. Oldest entries beyond
// the cap are pruned after each append; reads are most-recent-first.
const TxLogCap = 100

// Transaction is an immutable ledger entry. Rows are never updated;
// balance equals the signed running sum since account creation.
type Transaction struct {
	ID          string          `gorm:"primaryKey;type:uuid" json:"id"`
	AccountID   string          `gorm:"type:uuid;not null;index" json:"account_id"`
	Kind        TransactionKind `gorm:"type:varchar(16);not null" json:"kind"`
	Amount      int64           `gorm:"not null" json:"amount"` // always > 0, sign comes from Kind
	Description string          `gorm:"type:text" json:"description"`
	CreatedAt   time.Time       `gorm:"autoCreateTime;index" json:"created_at"`
}

// InventoryEntry is one line of an account's item multiset.
type InventoryEntry struct {
	ID        string    `gorm:"primaryKey;type:uuid" json:"id"`
	AccountID string    `gorm:"type:uuid;not null;uniqueIndex:idx_account_item" json:"account_id"`
	ItemID    string    `gorm:"not null;uniqueIndex:idx_account_item" json:"item_id"`
	Qty       int       `gorm:"not null;default:1" json:"qty"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// ActiveEffect is a time-bounded (or permanent, ExpiresAt == nil) modifier
// on an account. An effect is active iff now < ExpiresAt; expired rows are
// treated as inactive lazily and purged opportunistically by the scheduler.
type ActiveEffect struct {
	ID        string     `gorm:"primaryKey;type:uuid" json:"id"`
	AccountID string     `gorm:"type:uuid;not null;uniqueIndex:idx_account_effect" json:"account_id"`
	Kind      EffectKind `gorm:"type:varchar(32);not null;uniqueIndex:idx_account_effect" json:"kind"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	CreatedAt time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// Active reports whether the effect still applies at the given instant.
func (e *ActiveEffect) Active(now time.Time) bool {
	return e.ExpiresAt == nil || now.Before(*e.ExpiresAt)
}

// Timestamps adds GORM auto-times
type Timestamps struct {
	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}
