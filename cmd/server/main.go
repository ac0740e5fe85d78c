package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/dvoengpt-sudo/ubm-bot/internal/config"
	"github.com/dvoengpt-sudo/ubm-bot/internal/handler"
	"github.com/dvoengpt-sudo/ubm-bot/internal/middleware"
	"github.com/dvoengpt-sudo/ubm-bot/internal/repository"
	"github.com/dvoengpt-sudo/ubm-bot/internal/service"
	"github.com/dvoengpt-sudo/ubm-bot/internal/telegram"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Telegram.BotToken == "" {
		log.Fatal("BOT_TOKEN is empty")
	}

	// Connect to database
	repo, err := repository.New(cfg.Database.DSN())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer repo.Close()

	// Create services
	userService := service.NewUserService(repo)
	statsSvc := service.NewStatsService(repo)

	// Create Telegram bot (also serves as the membership authority client
	// and the notification sink)
	bot, err := telegram.NewBot(cfg, userService, statsSvc)
	if err != nil {
		log.Fatalf("Failed to create Telegram bot: %v", err)
	}
	log.Printf("Telegram bot @%s initialized", bot.GetBotUsername())

	gate := service.NewSubscriptionGate(bot, cfg.Referral.Channels, config.MembershipQueryTimeout)
	referralSvc := service.NewReferralService(repo, gate, cfg.Referral.BonusPerReferral)
	referralSvc.SetNotifier(bot)

	recheckWorker := service.NewRecheckWorker(referralSvc, config.AutoRecheckDelay)
	recheckWorker.SetNotifier(bot)

	// Wire the engine back into the bot (avoids the bot<->gate cycle)
	bot.SetReferralService(referralSvc)
	bot.SetRecheckWorker(recheckWorker)

	// Create handlers
	h := handler.New(repo, statsSvc)

	// Create Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	// Middleware
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.Server.AllowOrigins,
	}))

	// Health check
	app.Get("/", h.Health)
	app.Get("/health", h.Health)

	// Read-only API
	app.Get("/api/leaderboard", h.GetLeaderboard)
	app.Get("/api/stats", middleware.AdminAuth(cfg), h.GetStats)

	// Start background jobs
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go bot.StartPolling(ctx)
	log.Println("Telegram bot started with long polling")

	go recheckWorker.Start(ctx)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Println("Shutting down server...")
		cancel()
		_ = app.Shutdown()
	}()

	// Start server
	log.Printf("Server starting on port %s", cfg.Server.Port)
	if err := app.Listen(":" + cfg.Server.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
