package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/Lakshmikallagunta/Shams/internal/config"
	"github.com/Lakshmikallagunta/Shams/internal/infrastructure/database"
	"github.com/Lakshmikallagunta/Shams/internal/infrastructure/migrations"
	"github.com/Lakshmikallagunta/Shams/internal/infrastructure/observability"
	"github.com/pressly/goose/v3"
)

var (
	flags = flag.NewFlagSet("migrate", flag.ExitOnError)
	dir   = flags.String("dir", "./internal/infrastructure/migrations/sql", "directory new migrations are created in")
)

func main() {
	flags.Usage = func() {
		fmt.Fprintf(flags.Output(), "Usage: %s [command] [arguments]\n\n", os.Args[0])
		fmt.Fprintf(flags.Output(), "Commands:\n")
		fmt.Fprintf(flags.Output(), "  create <name> [sql|go]   Create a new migration file\n")
		fmt.Fprintf(flags.Output(), "  up                      Apply all migrations\n")
		fmt.Fprintf(flags.Output(), "  up-by-one               Apply one migration\n")
		fmt.Fprintf(flags.Output(), "  down                    Roll back the last migration\n")
		fmt.Fprintf(flags.Output(), "  down-to <version>       Roll back migrations to specific version\n")
		fmt.Fprintf(flags.Output(), "  redo                    Reapply the last migration\n")
		fmt.Fprintf(flags.Output(), "  reset                   Roll back all migrations\n")
		fmt.Fprintf(flags.Output(), "  status                  Show migration status\n")
		fmt.Fprintf(flags.Output(), "  version                 Show applied version\n")
		fmt.Fprintf(flags.Output(), "\n")
		flags.PrintDefaults()
	}

	_ = flags.Parse(os.Args[1:])
	args := flags.Args()
	if len(args) < 1 {
		flags.Usage()
		os.Exit(1)
	}

	command := args[0]
	if command == "create" {
		handleCreateCommand(args)
		return
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.Database.Driver != config.DriverMySQL {
		log.Fatalf("Migrations only apply to the %s store (STORE_DRIVER=%s)", config.DriverMySQL, cfg.Database.Driver)
	}

	logger, err := observability.NewLogger(cfg.Logging.Level, cfg.Logging.Encoding)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	db, err := database.NewMariaDB(&cfg.Database, nil, logger)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	gate := database.NewGate()
	if err := db.Connector(cfg.Database.ConnectTimeout).Connect(ctx, gate); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	migrator, err := migrations.NewMigrator(db.DB)
	if err != nil {
		log.Fatalf("Failed to prepare migrations: %v", err)
	}

	switch command {
	case "up", "up-by-one", "down", "redo", "reset", "status", "version":
		err = migrator.Run(ctx, command)
	case "down-to":
		if len(args) < 2 {
			log.Fatal("down-to command requires a version number")
		}
		if _, perr := parseVersion(args[1]); perr != nil {
			log.Fatalf("Invalid version: %v", perr)
		}
		err = migrator.Run(ctx, command, args[1])
	default:
		log.Fatalf("Unknown command: %s", command)
	}
	if err != nil {
		log.Fatalf("Migration %s failed: %v", command, err)
	}
}

func handleCreateCommand(args []string) {
	if len(args) < 2 {
		log.Fatal("create command requires a migration name")
	}

	name := args[1]
	mtype := "sql"
	if len(args) > 2 {
		mtype = args[2]
		if mtype != "sql" && mtype != "go" {
			log.Fatalf("Invalid migration type: %s. Must be 'sql' or 'go'", mtype)
		}
	}

	// New files go to disk, not the embedded set.
	goose.SetBaseFS(nil)
	goose.SetSequential(true)
	if err := goose.Create(nil, *dir, name, mtype); err != nil {
		log.Fatalf("Failed to create migration: %v", err)
	}
	log.Printf("Created new %s migration: %s", mtype, name)
}

func parseVersion(str string) (int64, error) {
	var version int64
	_, err := fmt.Sscanf(str, "%d", &version)
	return version, err
}
