package models

import (
	"time"
)

// AchievementDef: static config. Unlocked is evaluated against current
// account state after every mutation; it must be pure (no side effects)
// so re-running it is always safe.
type AchievementDef struct {
	ID          string                               `json:"id"`
	Name        string                               `json:"name"`
	Description string                               `json:"description"`
	Icon        string                               `json:"icon"`
	Reward      int64                                `json:"reward"`
	Unlocked    func(a *Account, now time.Time) bool `json:"-"`
}

// Achievements is the full hidden-achievement table.
var Achievements = []AchievementDef{
	{
		ID: "early_bird", Name: "Early Adopter", Icon: "🐣", Reward: 100,
		Description: "Wrote your first post.",
		Unlocked: func(a *Account, _ time.Time) bool {
			return a.PostCount >= 1
		},
	},
	{
		ID: "intel_agent", Name: "Intelligence Agent", Icon: "🕵️", Reward: 1000,
		Description: "Wrote 50 comments and gained Deep Web clearance.",
		Unlocked: func(a *Account, _ time.Time) bool {
			return a.CommentCount >= 50
		},
	},
	{
		ID: "night_owl", Name: "Herald of Dawn", Icon: "🦉", Reward: 200,
		Description: "Posted between 2 AM and 5 AM.",
		Unlocked: func(_ *Account, now time.Time) bool {
			h := now.Hour()
			return h >= 2 && h <= 5
		},
	},
	{
		ID: "streak_5", Name: "Link of Trust", Icon: "🔥", Reward: 500,
		Description: "Checked in 5 days in a row.",
		Unlocked: func(a *Account, _ time.Time) bool {
			return a.Streak >= 5
		},
	},
}

// LookupAchievement returns the definition for id, or nil when unknown.
func LookupAchievement(id string) *AchievementDef {
	for i := range Achievements {
		if Achievements[i].ID == id {
			return &Achievements[i]
		}
	}
	return nil
}

// UnlockedAchievement: awarded instance. The unique pair index is what
// makes the grant at-most-once even under concurrent evaluation.
type UnlockedAchievement struct {
	ID            string    `gorm:"primaryKey;type:uuid" json:"id"`
	AccountID     string    `gorm:"type:uuid;not null;uniqueIndex:idx_account_achievement" json:"account_id"`
	AchievementID string    `gorm:"not null;uniqueIndex:idx_account_achievement" json:"achievement_id"`
	UnlockedAt    time.Time `gorm:"autoCreateTime" json:"unlocked_at"`
}
