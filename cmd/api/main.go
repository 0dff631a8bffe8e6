package main

import (
	"context"
	"log"

	"github.com/Lakshmikallagunta/Shams/internal/app"
	"github.com/Lakshmikallagunta/Shams/internal/config"
	"github.com/Lakshmikallagunta/Shams/internal/infrastructure/observability"
)

func main() {
	// Load configuration first and validate before any resource initialization
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Configuration loading failed: %v", err)
	}

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logging.Level, cfg.Logging.Encoding)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() {
		if err := logger.Sync(); err != nil {
			log.Printf("Failed to sync logger: %v", err)
		}
	}()

	container, err := app.NewContainer(cfg, logger)
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	// The server comes up even if the store never connects; the gate stays
	// closed and scheduled runs are skipped.
	go func() {
		_ = container.ConnectStore(context.Background())
	}()

	server := app.NewServer(container)
	if err := server.Start(); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
