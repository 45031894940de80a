// migrate-to-postgres copies stored mazes from SQLite to PostgreSQL.
//
// Usage:
//
//	go run ./cmd/migrate-to-postgres \
//	    -sqlite data/mazes.db \
//	    -pg-host localhost \
//	    -pg-port 5432 \
//	    -pg-user towermaze \
//	    -pg-password towermaze \
//	    -pg-database towermaze
package main

import (
	"flag"
	"log"

	"github.com/lawnchairsociety/towermaze/internal/database"
)

const pageSize = 200

func main() {
	sqlitePath := flag.String("sqlite", "data/mazes.db", "Path to SQLite database")
	pgHost := flag.String("pg-host", "localhost", "PostgreSQL host")
	pgPort := flag.Int("pg-port", 5432, "PostgreSQL port")
	pgUser := flag.String("pg-user", "towermaze", "PostgreSQL user")
	pgPassword := flag.String("pg-password", "towermaze", "PostgreSQL password")
	pgDatabase := flag.String("pg-database", "towermaze", "PostgreSQL database name")
	pgSSLMode := flag.String("pg-sslmode", "disable", "PostgreSQL SSL mode")
	dryRun := flag.Bool("dry-run", false, "Show what would be migrated without making changes")
	flag.Parse()

	log.Println("SQLite to PostgreSQL Maze Migration")
	log.Println("====================================")

	log.Printf("Opening SQLite database: %s", *sqlitePath)
	src, err := database.Open(*sqlitePath)
	if err != nil {
		log.Fatalf("Failed to open SQLite database: %v", err)
	}
	defer src.Close()

	total, err := src.CountMazes()
	if err != nil {
		log.Fatalf("Failed to count mazes: %v", err)
	}
	log.Printf("Found %d mazes", total)

	if *dryRun {
		log.Println("DRY RUN MODE - No changes will be made")
		return
	}

	pg := database.DefaultPostgresConfig()
	pg.Host = *pgHost
	pg.Port = *pgPort
	pg.User = *pgUser
	pg.Password = *pgPassword
	pg.Database = *pgDatabase
	pg.SSLMode = *pgSSLMode

	log.Printf("Opening PostgreSQL database: %s@%s:%d/%s", *pgUser, *pgHost, *pgPort, *pgDatabase)
	dst, err := database.OpenWithConfig(database.Config{Driver: string(database.DialectPostgres), Postgres: pg})
	if err != nil {
		log.Fatalf("Failed to open PostgreSQL database: %v", err)
	}
	defer dst.Close()

	var copied, skipped int
	var after int64
	for {
		page, err := src.ListMazesAfter(after, pageSize)
		if err != nil {
			log.Fatalf("Failed to read mazes after %d: %v", after, err)
		}
		if len(page) == 0 {
			break
		}

		for _, rec := range page {
			_, created, err := dst.SaveMaze(rec.Snapshot)
			if err != nil {
				log.Fatalf("Failed to copy maze %d: %v", rec.ID, err)
			}
			if created {
				copied++
			} else {
				skipped++
			}
		}
		after = page[len(page)-1].ID
		log.Printf("  Processed %d/%d", copied+skipped, total)
	}

	log.Println("====================================")
	log.Printf("Migration complete! Copied %d mazes, %d already present", copied, skipped)
}
