// handlers/ledger_routes.go
package handlers

import (
	"errors"
	"strconv"

	"credit-hub-system/middleware"
	"credit-hub-system/services"

	"github.com/gofiber/fiber/v2"
)

// respondErr maps service errors onto HTTP statuses. Conflict-class
// errors (already claimed, already owned, lost version race) all come
// back as 409 so clients retry with fresh state instead of looping.
func respondErr(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrAccountNotFound),
		errors.Is(err, services.ErrItemNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrInsufficientBalance):
		return c.Status(fiber.StatusPaymentRequired).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrAlreadyOwned),
		errors.Is(err, services.ErrAlreadyClaimedToday),
		errors.Is(err, services.ErrAlreadyInvited),
		errors.Is(err, services.ErrAuctionClosed),
		errors.Is(err, services.ErrConcurrentConflict):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrInvalidAmount),
		errors.Is(err, services.ErrNotConsumable),
		errors.Is(err, services.ErrSelfReferral):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrRemoteUnavailable):
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "ledger store unavailable"})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
}

func SetupLedgerRoutes(
	app *fiber.App,
	ledger *services.LedgerService,
	quests *services.QuestService,
	achievements *services.AchievementService,
	effects *services.EffectManager,
	referrals *services.ReferralService,
) {
	secured := app.Group("/s", middleware.UserContextMiddleware())

	// Account state; provisions the ledger row on first touch.
	secured.Get("/user/account", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		acct, err := ledger.GetAccount(c.Context(), userID)
		if errors.Is(err, services.ErrAccountNotFound) {
			nickname, _ := c.Locals("user_nickname").(string)
			acct, err = ledger.CreateAccount(c.Context(), userID, nickname)
		}
		if err != nil {
			return respondErr(c, err)
		}
		return c.JSON(acct)
	})

	secured.Delete("/user/account", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		if err := ledger.DeleteAccount(c.Context(), userID); err != nil {
			return respondErr(c, err)
		}
		return c.JSON(fiber.Map{"deleted": true})
	})

	secured.Get("/user/transactions", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		limit, _ := strconv.Atoi(c.Query("limit", "100"))
		txns, err := ledger.Transactions(c.Context(), userID, limit)
		if err != nil {
			return respondErr(c, err)
		}
		return c.JSON(fiber.Map{"transactions": txns})
	})

	secured.Get("/user/inventory", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		inv, err := ledger.Inventory(c.Context(), userID)
		if err != nil {
			return respondErr(c, err)
		}
		return c.JSON(fiber.Map{"inventory": inv})
	})

	secured.Get("/user/effects", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		active, err := effects.Active(c.Context(), userID)
		if err != nil {
			return respondErr(c, err)
		}
		return c.JSON(fiber.Map{"effects": active})
	})

	secured.Get("/user/achievements", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		defs, err := achievements.Unlocked(c.Context(), userID)
		if err != nil {
			return respondErr(c, err)
		}
		return c.JSON(fiber.Map{"achievements": defs})
	})

	secured.Get("/user/notifications", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		limit, _ := strconv.Atoi(c.Query("limit", "20"))
		rows, err := ledger.Notify.Recent(userID, limit)
		if err != nil {
			return respondErr(c, err)
		}
		return c.JSON(fiber.Map{"notifications": rows})
	})

	secured.Post("/user/notifications/read", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		if err := ledger.Notify.MarkAllRead(userID); err != nil {
			return respondErr(c, err)
		}
		return c.JSON(fiber.Map{"read": true})
	})

	// Daily check-in: the reset itself pays the login bonus, the handler
	// just touches the account inside a day-keyed write.
	secured.Post("/user/checkin", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		acct, err := quests.CheckIn(c.Context(), userID)
		if err != nil {
			return respondErr(c, err)
		}
		return c.JSON(acct)
	})

	// Activity hooks called by the content service through the gateway.
	secured.Post("/user/activity/post", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		acct, err := quests.RecordPost(c.Context(), userID)
		if err != nil {
			return respondErr(c, err)
		}
		return c.JSON(acct)
	})

	secured.Post("/user/activity/comment", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		acct, err := quests.RecordComment(c.Context(), userID)
		if err != nil {
			return respondErr(c, err)
		}
		return c.JSON(acct)
	})

	secured.Get("/prompt/today", func(c *fiber.Ctx) error {
		return c.JSON(quests.TodayPrompt())
	})

	secured.Post("/prompt/vote", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		var req struct {
			Option string `json:"option"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
		}
		acct, err := quests.VotePrompt(c.Context(), userID, req.Option)
		if err != nil {
			return respondErr(c, err)
		}
		return c.JSON(acct)
	})

	// Payment stub. The idempotency key keeps a retried top-up from
	// crediting twice.
	secured.Post("/wallet/charge", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		var req struct {
			Amount         int64  `json:"amount"`
			IdempotencyKey string `json:"idempotency_key"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
		}
		txn, err := ledger.ChargeCredits(c.Context(), userID, req.Amount, req.IdempotencyKey)
		if err != nil {
			return respondErr(c, err)
		}
		return c.JSON(txn)
	})

	secured.Get("/referral/code", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		acct, err := ledger.GetAccount(c.Context(), userID)
		if err != nil {
			return respondErr(c, err)
		}
		return c.JSON(fiber.Map{"referral_code": acct.ReferralCode})
	})

	// Registration hook: attribute this fresh account to an invite code.
	secured.Post("/referral/attribute", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		var req struct {
			Code string `json:"code"`
		}
		if err := c.BodyParser(&req); err != nil || req.Code == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "referral code required"})
		}
		if err := referrals.Attribute(c.Context(), userID, req.Code); err != nil {
			return respondErr(c, err)
		}
		return c.JSON(fiber.Map{"attributed": true})
	})
}
