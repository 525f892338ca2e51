package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"church-pos/internal/cache"
	"church-pos/internal/config"
	"church-pos/internal/handler"
	"church-pos/internal/repository"
	"church-pos/internal/service"
	"church-pos/internal/ws"
	"church-pos/pkg/database"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

func main() {
	// 1. Load config
	cfg := config.Load()

	// 2. Setup Database
	db, err := database.ConnectDB(cfg.DatabaseURL, database.Options{
		LogLevel:     cfg.DBLogLevel,
		MaxOpenConns: cfg.MaxOpenConns,
		MaxIdleConns: cfg.MaxIdleConns,
	})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	// 3. Cache
	var store cache.Store = cache.NopStore{}
	if cfg.RedisURL != "" {
		rdb, err := cache.ConnectRedis(cfg.RedisURL)
		if err != nil {
			log.Printf("Warning: redis unavailable, running without cache: %v", err)
		} else {
			defer rdb.Close()
			store = cache.NewRedisStore(rdb, "pos:")
			log.Println("Redis cache enabled")
		}
	}

	// 4. Setup WebSocket Hub
	wsHub := ws.NewHub()
	go wsHub.Run()

	// 5. Dependency Injection (Wiring Layers)
	shiftRepo := repository.NewShiftRepo(db)
	staffRepo := repository.NewStaffRepo(db)
	memberRepo := repository.NewMemberRepo(db)
	saleRepo := repository.NewSaleRepo(db)
	productRepo := repository.NewProductRepo(db)
	inventoryRepo := repository.NewInventoryRepo(db)
	accountRepo := repository.NewAccountRepo(db)

	shiftService := service.NewShiftService(service.ShiftServiceDeps{
		ShiftRepo:  shiftRepo,
		StaffRepo:  staffRepo,
		MemberRepo: memberRepo,
		SaleRepo:   saleRepo,
		DB:         db,
		Cache:      store,
		CacheTTL:   cfg.CacheTTL,
		Policy:     service.StaffPolicy{CutoffHour: cfg.StaffCutoffHour, Location: cfg.Location()},
		Notifier:   wsHub,
	})
	staffService := service.NewStaffService(staffRepo, nil, wsHub)
	accountService := service.NewAccountService(accountRepo, memberRepo, db, wsHub)
	inventoryService := service.NewInventoryService(inventoryRepo, productRepo, db, store, wsHub)
	productService := service.NewProductService(productRepo, store, cfg.CacheTTL, wsHub)
	saleService := service.NewSaleService(service.SaleServiceDeps{
		SaleRepo:    saleRepo,
		ProductRepo: productRepo,
		Shifts:      shiftService,
		Ledger:      accountService,
		Stock:       inventoryService,
		DB:          db,
		Cache:       store,
		Notifier:    wsHub,
	})
	syncService := service.NewSyncService(saleService, saleRepo, cfg.SyncMaxBatch)

	handlers := handler.Handlers{
		Auth:      handler.NewAuthHandler(staffService),
		Shift:     handler.NewShiftHandler(shiftService, staffService),
		Sale:      handler.NewSaleHandler(saleService, syncService),
		Account:   handler.NewAccountHandler(accountService),
		Inventory: handler.NewInventoryHandler(inventoryService, productService),
		Role:      handler.NewRoleHandler(),
	}

	// 6. Setup Fiber
	app := fiber.New(fiber.Config{
		AppName: "Church POS v1.0",
	})

	// Middleware
	app.Use(logger.New())  // Logging request
	app.Use(recover.New()) // Panic recovery
	app.Use(cors.New(cors.Config{AllowOrigins: cfg.CORSAllowOrigins}))

	// 7. Routes
	handler.RegisterRoutes(app, handlers, staffService)

	// WebSocket Route
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return c.SendStatus(fiber.StatusUpgradeRequired)
	})
	app.Get("/ws", websocket.New(func(c *websocket.Conn) {
		wsHub.Register <- c
		defer func() { wsHub.Unregister <- c }()

		for {
			// Keep alive loop
			if _, _, err := c.ReadMessage(); err != nil {
				break
			}
		}
	}))

	// 8. Background expiry of shift logins past their cutoff
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go expireStaffLoop(ctx, staffService, cfg.StaffExpiryInterval)

	// 9. Graceful Shutdown
	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Panic(err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	cancel()
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exited")
}

func expireStaffLoop(ctx context.Context, staff service.StaffService, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			count, err := staff.ExpireStale(ctx)
			if err != nil {
				log.Printf("Warning: staff expiry failed: %v", err)
				continue
			}
			if count > 0 {
				log.Printf("Expired %d staff logins", count)
			}
		}
	}
}
