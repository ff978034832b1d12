// handlers/admin_routes.go
package handlers

import (
	"fmt"
	"path/filepath"
	"time"

	"credit-hub-system/middleware"
	"credit-hub-system/services"
	"credit-hub-system/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/gosimple/slug"
)

func SetupAdminRoutes(
	app *fiber.App,
	ledger *services.LedgerService,
	auctions *services.AuctionService,
) {
	admin := app.Group("/s/admin", middleware.UserContextMiddleware(), middleware.AdminOnly())

	// Manual credit adjustment (support / event payouts).
	admin.Post("/credits/grant", func(c *fiber.Ctx) error {
		var req struct {
			AccountID string `json:"account_id"`
			Amount    int64  `json:"amount"`
			Reason    string `json:"reason"`
		}
		if err := c.BodyParser(&req); err != nil || req.AccountID == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "account_id and amount required"})
		}
		txn, err := ledger.GrantCredits(c.Context(), req.AccountID, req.Amount, req.Reason)
		if err != nil {
			return respondErr(c, err)
		}
		return c.JSON(txn)
	})

	// Catalog icon upload; the object key is derived from the item name
	// so CDN URLs stay readable.
	admin.Post("/catalog/icon", func(c *fiber.Ctx) error {
		name := c.FormValue("name")
		if name == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "name is required"})
		}
		fileHeader, err := c.FormFile("icon")
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "icon file is required"})
		}

		key := fmt.Sprintf("icons/%s%s", slug.Make(name), filepath.Ext(fileHeader.Filename))
		url, err := utils.UploadFileToR2(fileHeader, key)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to upload icon",
				"cause": err.Error(),
			})
		}
		return c.JSON(fiber.Map{"item_id": slug.Make(name), "icon_url": url})
	})

	admin.Post("/auction", func(c *fiber.Ctx) error {
		var req struct {
			ItemName    string    `json:"item_name"`
			Description string    `json:"description"`
			StartPrice  int64     `json:"start_price"`
			EndsAt      time.Time `json:"ends_at"`
		}
		if err := c.BodyParser(&req); err != nil || req.ItemName == "" || req.EndsAt.IsZero() {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "item_name and ends_at required"})
		}
		auc, err := auctions.Create(c.Context(), req.ItemName, req.Description, req.StartPrice, req.EndsAt)
		if err != nil {
			return respondErr(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(auc)
	})
}
