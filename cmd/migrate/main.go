package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"relaychat/config"
	"relaychat/internal/repository"
	"relaychat/pkg/database"
)

const usage = `
relaychat - Database CLI Tool

Usage:
  migrate [command] [flags]

Commands:
  up          Create or update all tables
  status      Show database connection status and table row counts
  seed-dev    Seed with development/test data
  reset       Drop all tables and re-run migrations (DANGEROUS)

Flags:
  -users int        Number of test users for seed-dev (default 4)
  -password string  Password for seeded users (default "Password@123")

Examples:
  go run ./cmd/migrate up
  go run ./cmd/migrate seed-dev -users 6
`

func main() {
	users := flag.Int("users", 4, "Number of test users for seed-dev")
	password := flag.String("password", "Password@123", "Password for seeded users")

	flag.Usage = func() {
		fmt.Print(usage)
	}
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(1)
	}

	command := flag.Arg(0)

	// Load config and connect to database
	cfg := config.LoadConfig()
	if _, err := database.Connect(cfg); err != nil {
		log.Fatalf("Database connection failed: %v", err)
	}
	defer database.Close()

	switch command {
	case "up":
		runMigrationsUp()
	case "status":
		showStatus()
	case "seed-dev":
		runMigrationsUp()
		runSeedDevelopment(&database.SeedConfig{Password: *password, TestUserCount: *users})
	case "reset":
		runReset()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		flag.Usage()
		os.Exit(1)
	}
}

func runMigrationsUp() {
	log.Println("Running migrations UP...")

	if err := repository.InitSchema(database.DB); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}

	log.Println("Migrations completed successfully")
}

func showStatus() {
	log.Println("Checking database status...")

	if err := database.HealthCheck(context.Background()); err != nil {
		log.Fatalf("Database connection failed: %v", err)
	}
	log.Println("Database connection: OK")

	migrator := database.DB.Migrator()
	for _, model := range repository.Models() {
		stmtName := fmt.Sprintf("%T", model)
		if !migrator.HasTable(model) {
			log.Printf("Table for %-30s does not exist", stmtName)
			continue
		}
		var count int64
		database.DB.Model(model).Count(&count)
		log.Printf("Table for %-30s exists (%d rows)", stmtName, count)
	}
}

func runSeedDevelopment(cfg *database.SeedConfig) {
	log.Println("Seeding database (development mode)...")

	result, err := database.SeedDevelopment(cfg)
	if err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}

	log.Println("Seed Summary:")
	log.Printf("   - Users: %d", len(result.Users))
	log.Printf("   - Contacts: %d", result.Contacts)
	log.Printf("   - Conversations: %d", len(result.Conversations))
	log.Printf("   - Messages: %d", len(result.Messages))
}

func runReset() {
	log.Println("WARNING: This will DROP all tables and re-run migrations!")

	models := repository.Models()
	// drop in reverse dependency order
	for i := len(models) - 1; i >= 0; i-- {
		if err := database.DB.Migrator().DropTable(models[i]); err != nil {
			log.Fatalf("Failed to drop table: %v", err)
		}
	}

	runMigrationsUp()
	log.Println("Database reset completed")
}
