// Command aggregator-migrate applies the SQL schema and exits, for
// deployments that run migrations as a separate one-shot step instead of
// at aggregatord start-up (pair with SKIP_MIGRATION=true on the daemon).
package main

import (
	"log"
	"os"

	"github.com/pulsetrail/aggregator/internal/repository"
)

func main() {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is required")
	}

	schemaPath := os.Getenv("SCHEMA_PATH")
	if schemaPath == "" {
		schemaPath = "internal/repository/schema.sql"
	}

	repo, err := repository.NewRepository(dbURL)
	if err != nil {
		log.Fatalf("failed to connect to db: %v", err)
	}
	defer repo.Close()

	log.Printf("Applying schema from %s...", schemaPath)
	if err := repo.Migrate(schemaPath); err != nil {
		log.Fatalf("migration failed: %v", err)
	}
	log.Println("Migration complete.")
}
