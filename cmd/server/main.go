package main // Entry point package

import (
	"log" // Logging library

	"github.com/joho/godotenv"    // Load .env files in development
	"github.com/labstack/echo/v4" // Echo web framework

	"github.com/venuekit/seat-inventory/internal/config"
	"github.com/venuekit/seat-inventory/internal/database"
	"github.com/venuekit/seat-inventory/internal/handler"
	"github.com/venuekit/seat-inventory/internal/inventory"
	"github.com/venuekit/seat-inventory/internal/pricing"
	"github.com/venuekit/seat-inventory/internal/queue"
	"github.com/venuekit/seat-inventory/internal/repository"
	"github.com/venuekit/seat-inventory/internal/router"
	queue_publisher "github.com/venuekit/seat-inventory/internal/service"
)

func main() {
	_ = godotenv.Load() // .env is optional; real deployments set the environment directly
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}

	// Redis is optional: a nil client disables the price cache and the rate
	// limiter, and pricing recomputes on every request.
	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Println("redis unavailable; price cache and rate limiting disabled")
	}

	seatStore := repository.NewSeatStore(db)
	overrideRepo := repository.NewOverrideRepo(db)
	ruleRepo := repository.NewRuleRepo(db)

	manager := inventory.NewManager(seatStore)
	cache := pricing.NewRedisDecisionCache(rdb, config.LoadPriceCacheConfig())
	engine := pricing.NewEngine(seatStore, overrideRepo, ruleRepo, cache, pricing.NewDefaultRegistry())

	// Background sweep returns stale holds to sale through the same
	// conditional transition the checkout path uses.
	sweeper := inventory.NewHoldSweeper(seatStore, cfg.HoldTTL, cfg.SweepInterval)
	sweeper.Publish = queue_publisher.PublishSeatStatusChanged
	if err := sweeper.Start(); err != nil {
		log.Fatalf("hold-sweeper: %v", err)
	}
	defer sweeper.Stop()

	// Audit consumer keeps its own reconnect loop.
	go func() {
		if err := queue.StartInventoryConsumer(); err != nil {
			log.Printf("inventory-consumer stopped: %v", err)
		}
	}()

	e := echo.New()
	router.RegisterRoutes(e)
	router.RegisterAuth(e, handler.NewAuthHandler(cfg))
	router.RegisterInventory(e,
		handler.NewInventoryHandler(manager),
		handler.NewPricingHandler(engine, manager, overrideRepo, ruleRepo),
		cfg, rdb)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)

	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
