package main

import (
	"context"
	"log"
	"time"

	"church-pos/internal/config"
	"church-pos/internal/repository"
	"church-pos/internal/service"
	"church-pos/pkg/database"
)

// Deactivates shift logins whose window has elapsed. Meant for cron when the
// API server's own expiry loop is disabled.
func main() {
	// 1. Load config
	cfg := config.Load()

	// 2. Setup Database
	db, err := database.ConnectDB(cfg.DatabaseURL, database.Options{LogLevel: cfg.DBLogLevel})
	if err != nil {
		log.Fatalf("❌ Failed to connect to database: %v", err)
	}

	// 3. Expire
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	staffService := service.NewStaffService(repository.NewStaffRepo(db), nil, nil)
	count, err := staffService.ExpireStale(ctx)
	if err != nil {
		log.Fatalf("❌ Failed to expire staff logins: %v", err)
	}

	log.Printf("✅ Expired %d staff logins", count)
}
