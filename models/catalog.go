package models

import "hash/fnv"

// EffectKind is the closed set of item/effect behaviors. Dispatch on it is
// an exhaustive switch, not a string comparison, so a new kind fails to
// compile until every consumer handles it.
type EffectKind string

const (
	EffectRainbowName    EffectKind = "rainbow_name"
	EffectGlitchName     EffectKind = "glitch_name"
	EffectFrameShell     EffectKind = "frame_shell"
	EffectFrameLaurel    EffectKind = "frame_laurel"
	EffectFrameCyber     EffectKind = "frame_cyber"
	EffectMegaphone      EffectKind = "megaphone"
	EffectShield         EffectKind = "shield"
	EffectCustomTitle    EffectKind = "custom_title"
	EffectHighlightPost  EffectKind = "highlight_post"
	EffectMysteryBox     EffectKind = "mystery_box"
	EffectLotteryTicket  EffectKind = "lottery_ticket"
	EffectXPBoost        EffectKind = "xp_boost"
	EffectDiscountCoupon EffectKind = "discount_coupon"
)

// ItemCategory identifies which cosmetic slot an equip-type item occupies.
type ItemCategory string

const (
	CategoryName   ItemCategory = "name"
	CategoryAvatar ItemCategory = "avatar"
	CategorySystem ItemCategory = "system"
)

// CatalogItem: static config, read-only at runtime.
type CatalogItem struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Description  string       `json:"description"`
	Price        int64        `json:"price"`
	Consumable   bool         `json:"consumable"`
	Rebuyable    bool         `json:"rebuyable"`
	Effect       EffectKind   `json:"effect"`
	Category     ItemCategory `json:"category"`
	DurationDays int          `json:"duration_days,omitempty"` // 0 = permanent
	Icon         string       `json:"icon"`
	IconURL      string       `json:"icon_url,omitempty"`
}

// Timed reports whether the item grants a duration-bounded effect.
func (i *CatalogItem) Timed() bool { return i.DurationDays > 0 }

// Catalog is the full shop definition. Versioned with the binary; there is
// no runtime mutation path.
var Catalog = []CatalogItem{
	// --- Visual effects ---
	{ID: "effect-rainbow", Name: "Rainbow Nickname", Description: "Nickname cycles smoothly through RGB colors (7 days)",
		Price: 1000, Rebuyable: true, Effect: EffectRainbowName, Category: CategoryName, DurationDays: 7, Icon: "🌈"},
	{ID: "effect-glitch", Name: "Glitch Effect", Description: "Hacker-style flicker on nickname and avatar",
		Price: 2000, Effect: EffectGlitchName, Category: CategoryName, Icon: "⚡"},

	// --- Avatar frames (seasonal) ---
	{ID: "frame-shell", Name: "[Season] Newbie Eggshell", Description: "A cute eggshell border for newcomers",
		Price: 500, Effect: EffectFrameShell, Category: CategoryAvatar, Icon: "🥚"},
	{ID: "frame-laurel", Name: "[Season] Golden Laurel", Description: "The victor's golden laurel border",
		Price: 5000, Effect: EffectFrameLaurel, Category: CategoryAvatar, Icon: "🌿"},
	{ID: "frame-cyber", Name: "[Season] Cyberpunk Neon", Description: "Intense pink-cyan neon border",
		Price: 3000, Effect: EffectFrameCyber, Category: CategoryAvatar, Icon: "🏙️"},

	// --- Utility items ---
	{ID: "item-megaphone", Name: "Megaphone", Description: "Pin your message at the top of chat for one hour",
		Price: 500, Consumable: true, Rebuyable: true, Effect: EffectMegaphone, Category: CategorySystem, Icon: "📢"},
	{ID: "item-shield", Name: "1-Day Ward", Description: "Blocks one warning count from a report",
		Price: 300, Consumable: true, Rebuyable: true, Effect: EffectShield, Category: CategorySystem, Icon: "🛡️"},
	{ID: "item-title", Name: "Custom Title", Description: "Set any title you want next to your nickname",
		Price: 5000, Consumable: true, Rebuyable: true, Effect: EffectCustomTitle, Category: CategorySystem, Icon: "🏷️"},
	{ID: "item-highlight", Name: "Post Spotlight", Description: "Highlight one of your posts on the front page",
		Price: 400, Consumable: true, Rebuyable: true, Effect: EffectHighlightPost, Category: CategorySystem, Icon: "✨"},
	{ID: "item-boost", Name: "XP Booster", Description: "Doubles all XP gains for 3 days",
		Price: 800, Rebuyable: true, Effect: EffectXPBoost, Category: CategorySystem, DurationDays: 3, Icon: "🚀"},
	{ID: "item-coupon", Name: "Discount Coupon", Description: "20% off your next shop purchase",
		Price: 200, Consumable: true, Rebuyable: true, Effect: EffectDiscountCoupon, Category: CategorySystem, Icon: "🎫"},

	// --- Mystery box / lottery ---
	{ID: "item-box", Name: "Mystery Box", Description: "A box with a random reward inside (duds included!)",
		Price: 100, Consumable: true, Rebuyable: true, Effect: EffectMysteryBox, Category: CategorySystem, Icon: "🎁"},
	{ID: "item-lottery", Name: "Weekly Lottery", Description: "Drawn every Friday night — winner takes the whole pot",
		Price: 50, Consumable: true, Rebuyable: true, Effect: EffectLotteryTicket, Category: CategorySystem, Icon: "🎰"},
}

// LookupItem returns the catalog entry for id, or nil when unknown.
func LookupItem(id string) *CatalogItem {
	for i := range Catalog {
		if Catalog[i].ID == id {
			return &Catalog[i]
		}
	}
	return nil
}

// DiscountCouponPct is the flat discount applied by an active coupon.
const DiscountCouponPct = 20

// BalancePrompt is the daily either/or question shown on the home page.
type BalancePrompt struct {
	ID      string `json:"id"`
	Date    string `json:"date"`
	Quest   string `json:"question"`
	OptionA string `json:"option_a"`
	OptionB string `json:"option_b"`
}

var balancePrompts = []BalancePrompt{
	{ID: "bal-food", Quest: "Only one for the rest of your life?", OptionA: "Fried chicken (free forever)", OptionB: "Pizza (free forever)"},
	{ID: "bal-time", Quest: "Pick your superpower", OptionA: "Pause time for 10s a day", OptionB: "Rewind time 10s once a day"},
	{ID: "bal-work", Quest: "Choose your workplace", OptionA: "4-day week, open office", OptionB: "5-day week, fully remote"},
	{ID: "bal-money", Quest: "Which windfall?", OptionA: "10M now, taxed 50%", OptionB: "1M a year for 20 years"},
	{ID: "bal-travel", Quest: "One-way ticket to", OptionA: "A city you've never seen", OptionB: "The town you grew up in"},
	{ID: "bal-pet", Quest: "Lifetime companion", OptionA: "A dog that talks", OptionB: "A cat that cleans"},
	{ID: "bal-season", Quest: "One season forever", OptionA: "Endless spring", OptionB: "Endless autumn"},
}

// DailyPrompt picks today's prompt deterministically from the date string
// ("YYYY-MM-DD"), so every client agrees on the prompt without a round
// trip.
func DailyPrompt(date string) BalancePrompt {
	h := fnv.New32a()
	h.Write([]byte(date))
	p := balancePrompts[int(h.Sum32())%len(balancePrompts)]
	p.Date = date
	return p
}

// PromptVoteReward is the credit grant for the once-a-day prompt vote.
const PromptVoteReward = 5

// MysteryBoxPrice is charged per box opening (also the item-box price).
const MysteryBoxPrice = 100

// NodeGasFee is debited for every post published (spam brake).
const NodeGasFee = 10

// StartingBalance is granted at registration.
const StartingBalance = 500
