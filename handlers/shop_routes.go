// handlers/shop_routes.go
package handlers

import (
	"credit-hub-system/middleware"
	"credit-hub-system/models"
	"credit-hub-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupShopRoutes(
	app *fiber.App,
	ledger *services.LedgerService,
	rewards *services.RewardService,
	auctions *services.AuctionService,
) {
	secured := app.Group("/s", middleware.UserContextMiddleware())

	// Catalog is static; no auth-specific state in the response.
	secured.Get("/shop/items", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"items": models.Catalog})
	})

	secured.Post("/shop/purchase", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		var req struct {
			ItemID string `json:"item_id"`
		}
		if err := c.BodyParser(&req); err != nil || req.ItemID == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "item_id required"})
		}
		result, err := ledger.Purchase(c.Context(), userID, req.ItemID)
		if err != nil {
			return respondErr(c, err)
		}
		return c.JSON(result)
	})

	secured.Post("/shop/consume", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		var req struct {
			ItemID string `json:"item_id"`
			services.ConsumePayload
		}
		if err := c.BodyParser(&req); err != nil || req.ItemID == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "item_id required"})
		}
		result, err := ledger.ConsumeItem(c.Context(), userID, req.ItemID, req.ConsumePayload)
		if err != nil {
			return respondErr(c, err)
		}
		return c.JSON(result)
	})

	secured.Post("/rewards/mystery-box", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		out, err := rewards.ResolveMysteryBox(c.Context(), userID)
		if err != nil {
			return respondErr(c, err)
		}
		return c.JSON(out)
	})

	secured.Post("/rewards/lucky-draw", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		out, err := rewards.ResolveLuckyDraw(c.Context(), userID)
		if err != nil {
			return respondErr(c, err)
		}
		return c.JSON(out)
	})

	secured.Get("/auction", func(c *fiber.Ctx) error {
		rows, err := auctions.Live(c.Context())
		if err != nil {
			return respondErr(c, err)
		}
		return c.JSON(fiber.Map{"auctions": rows})
	})

	secured.Get("/auction/:id", func(c *fiber.Ctx) error {
		auc, bids, err := auctions.Get(c.Context(), c.Params("id"))
		if err != nil {
			return respondErr(c, err)
		}
		return c.JSON(fiber.Map{"auction": auc, "bids": bids})
	})

	secured.Post("/auction/:id/bid", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		auc, err := auctions.PlaceBid(c.Context(), c.Params("id"), userID)
		if err != nil {
			return respondErr(c, err)
		}
		return c.JSON(auc)
	})
}
