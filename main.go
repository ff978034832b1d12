package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"credit-hub-system/handlers"
	"credit-hub-system/middleware"
	"credit-hub-system/models"
	"credit-hub-system/services"
	"credit-hub-system/utils"
	"credit-hub-system/workers"

	"github.com/go-redis/redis/v8"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	app := fiber.New(fiber.Config{
		BodyLimit: 10 * 1024 * 1024, // 10MB, icon uploads only
	})

	// 🔐❗ GLOBAL: Only Gateway requests allowed — no exceptions
	app.Use(middleware.GatewayAuthMiddleware())

	allowedOriginsEnv := os.Getenv("ALLOWED_ORIGINS")
	if allowedOriginsEnv == "" {
		log.Println("⚠️  ALLOWED_ORIGINS environment variable not set, using default: http://localhost:3000")
		allowedOriginsEnv = "http://localhost:3000"
	}
	allowedOriginsList := strings.Split(allowedOriginsEnv, ",")
	for i, origin := range allowedOriginsList {
		allowedOriginsList[i] = strings.TrimSpace(origin)
	}
	allowedOriginsString := strings.Join(allowedOriginsList, ",")

	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOriginsString,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH,HEAD",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, User-Agent, Cache-Control, X-Session-Token, X-Service-Token",
		ExposeHeaders:    "Content-Length, Content-Type, Authorization, X-Request-ID",
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
	}))

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}

	if err := utils.InitR2(); err != nil {
		log.Fatal("failed to initialize R2 client:", err)
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}

	if err := db.AutoMigrate(
		&models.Account{},
		&models.Transaction{},
		&models.InventoryEntry{},
		&models.ActiveEffect{},
		&models.UnlockedAchievement{},
		&models.Auction{},
		&models.Bid{},
		&models.Notification{},
	); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		log.Fatal("REDIS_URL environment variable not set")
	}
	redisOpts, err := redis.ParseURL(redisURL)
	if err != nil {
		log.Fatal("invalid REDIS_URL:", err)
	}
	rdb := redis.NewClient(redisOpts)

	// Day boundary offset for quest resets; the platform's home market
	// runs on UTC+9.
	dayOffset := 9
	if v := os.Getenv("DAY_BOUNDARY_UTC_OFFSET_HOURS"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			log.Fatal("invalid DAY_BOUNDARY_UTC_OFFSET_HOURS:", err)
		}
		dayOffset = parsed
	}

	syncCoordinator := services.NewSyncCoordinator(db, rdb)
	notifyService := services.NewNotificationService(db)
	ledgerService := services.NewLedgerService(db, syncCoordinator, notifyService, dayOffset)
	questService := services.NewQuestService(ledgerService)
	rewardService, err := services.NewRewardService(ledgerService)
	if err != nil {
		log.Fatal("invalid reward table:", err)
	}
	achievementService := services.NewAchievementService(ledgerService)
	effectManager := services.NewEffectManager(db)
	referralService := services.NewReferralService(db, notifyService, syncCoordinator)
	auctionService := services.NewAuctionService(db, syncCoordinator, notifyService)

	profileServiceURL := os.Getenv("PROFILE_SERVICE_URL")
	if profileServiceURL == "" {
		log.Fatal("PROFILE_SERVICE_URL environment variable not set")
	}
	serviceToken := os.Getenv("CREDIT_SERVICE_TOKEN")
	if serviceToken == "" {
		log.Fatal("CREDIT_SERVICE_TOKEN environment variable not set")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go workers.RunInvalidationListener(ctx, syncCoordinator)

	profileWorker := workers.NewProfileSyncWorker(db, syncCoordinator, profileServiceURL, "/api/v1/public/profiles", serviceToken)
	profileWorker.Start(ctx)

	auctionService.StartSettlementScheduler(effectManager)

	// ✅ Setup routes — enforced Gateway auth + consistent /s/ prefix
	handlers.SetupLedgerRoutes(app, ledgerService, questService, achievementService, effectManager, referralService)
	handlers.SetupShopRoutes(app, ledgerService, rewardService, auctionService)
	handlers.SetupAdminRoutes(app, ledgerService, auctionService)

	go func() {
		if err := app.Listen(":5300"); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Println("✅ Server running on http://localhost:5300")
	log.Println("✅ Invalidation listener running")
	log.Println("✅ Profile Sync Worker running")
	log.Println("✅ GatewayAuthMiddleware enforced globally — all requests must come from Gateway")
	log.Printf("✅ CORS configured for origins: %s", allowedOriginsString)

	<-ctx.Done()
	log.Println("Shutting down server...")
	if err := app.Shutdown(); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
}
