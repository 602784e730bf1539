// Command migrate applies or rolls back the Store's goose migrations
// against the configured Postgres database.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/jordigilh/regtrack/internal/store"
)

func main() {
	down := flag.Bool("down", false, "roll back the most recently applied migration instead of applying pending ones")
	flag.Parse()

	if err := run(*down); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(down bool) error {
	cfg := store.DefaultConfig()
	cfg.LoadFromEnv()

	db, err := store.Open(cfg)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if down {
		return store.MigrateDown(db)
	}
	return store.Migrate(db)
}
