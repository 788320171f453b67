package main // Entry point package

import (
	"context"
	"log"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/VitorMRodovalho/SnipeScheduler-FleetManager-sub002/internal/config"
	"github.com/VitorMRodovalho/SnipeScheduler-FleetManager-sub002/internal/database"
	"github.com/VitorMRodovalho/SnipeScheduler-FleetManager-sub002/internal/handler"
	"github.com/VitorMRodovalho/SnipeScheduler-FleetManager-sub002/internal/inventory"
	"github.com/VitorMRodovalho/SnipeScheduler-FleetManager-sub002/internal/queue"
	"github.com/VitorMRodovalho/SnipeScheduler-FleetManager-sub002/internal/repository"
	"github.com/VitorMRodovalho/SnipeScheduler-FleetManager-sub002/internal/router"
	"github.com/VitorMRodovalho/SnipeScheduler-FleetManager-sub002/internal/service"
)

func main() {
	// .env is optional; real deployments inject the environment directly.
	_ = godotenv.Load()
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	// Redis is optional: a nil client degrades the capacity cache to a
	// pass-through.
	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Println("redis unavailable, capacity caching disabled")
	}

	invClient := inventory.NewClient(cfg.InventoryURL, cfg.InventoryToken, cfg.InventoryTimeout)
	capacity := inventory.NewCapacityCache(invClient, rdb, cfg.CapacityCacheTTL)

	store := repository.NewMySQLStore(db)

	// Event publishing is optional; without a broker URL lifecycle events
	// are simply not emitted.
	var events service.EventPublisher
	if cfg.RabbitURL != "" {
		events = queue.NewPublisher(cfg.RabbitURL)
		go func() {
			if err := queue.StartLifecycleConsumer(cfg.RabbitURL); err != nil {
				log.Printf("queue: consumer stopped: %v", err)
			}
		}()
	}

	availability := service.NewAvailabilityService(store, capacity)
	checkout := service.NewCheckoutService(store, capacity, events, cfg.RequireApproval)
	lifecycle := service.NewLifecycleService(store, events)
	quota := service.NewStaffCheckoutService(store, capacity, invClient, events)
	sweeper := service.NewSweeper(store, events, cfg.MissedCutoff, cfg.ApprovalGrace)

	if cfg.SweepInterval > 0 {
		go sweeper.Start(context.Background(), cfg.SweepInterval)
	}

	e := echo.New()
	router.RegisterRoutes(e)
	router.RegisterAPI(e, cfg.JWTSecret,
		handler.NewAvailabilityHandler(availability),
		handler.NewReservationHandler(checkout, lifecycle, store),
		handler.NewStaffCheckoutHandler(quota, lifecycle),
		handler.NewSweepHandler(sweeper),
	)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
