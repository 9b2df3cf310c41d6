package main

import (
	"context"
	"log"
	"os"

	"github.com/rpsarena/backend/internal/admin"
	"github.com/rpsarena/backend/internal/config"
	"github.com/rpsarena/backend/internal/database"
)

func main() {
	cfg := config.Load()

	ctx := context.Background()
	db, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	username := cfg.AdminUsername
	adminToken := cfg.AdminToken
	if adminToken == "" {
		adminToken = "change-me-in-production"
		log.Printf("WARNING: Using default admin token. Set ADMIN_TOKEN env var in production!")
	}

	displayName := os.Getenv("ADMIN_DISPLAY_NAME")
	if displayName == "" {
		displayName = "Admin"
	}

	if err := admin.CreateAdminAccount(ctx, admin.NewPostgresStore(db), username, displayName, adminToken); err != nil {
		log.Fatalf("Failed to create admin account: %v", err)
	}

	log.Printf("Admin account created/updated successfully")
	log.Printf("  Username: %s", username)
	log.Printf("  Display Name: %s", displayName)
	log.Println("Send X-Admin-Username and X-Admin-Token headers on /api/v1/admin requests")
}
