// cmd/ebookstore/main.go
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"ebookstore/internal/catalog"
	"ebookstore/internal/chaos"
	"ebookstore/internal/config"
	"ebookstore/internal/journal"
	"ebookstore/internal/storage"
	"ebookstore/internal/telemetry"

	"github.com/google/uuid"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	if err := run(); err != nil {
		log.Printf("ebookstore: %v", err)
		os.Exit(1)
	}
}

// startupFailed reports err to the operator as a failed connection. Only
// errors raised before the menu starts go through here.
func startupFailed(err error) error {
	fmt.Println("Connection to the database failed!")
	return err
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return startupFailed(err)
	}

	ctx := context.Background()

	shutdown, err := telemetry.Setup(ctx, cfg)
	if err != nil {
		return startupFailed(err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(flushCtx); err != nil {
			log.Printf("telemetry shutdown: %v", err)
		}
	}()

	db, err := storage.Open(ctx, cfg.Driver, cfg.DatabaseURL)
	if err != nil {
		return startupFailed(err)
	}
	fmt.Println("Connection to the bookstore database successful!")
	defer func() {
		if err := db.Close(); err != nil {
			log.Printf("close database: %v", err)
			return
		}
		fmt.Println("Connection closed.")
	}()

	if err := catalog.EnsureSchema(ctx, db); err != nil {
		return startupFailed(err)
	}
	j := journal.New(db)
	if err := j.EnsureSchema(ctx); err != nil {
		return startupFailed(err)
	}

	sessionID := uuid.New().String()
	log.Printf("session %s on %s", sessionID, cfg.Driver)

	svc := catalog.NewService(db, j, sessionID)
	if cfg.ChaosEnabled() {
		log.Printf("chaos: failing %.0f%% of catalog calls, adding %s latency", cfg.ChaosFailureRate*100, cfg.ChaosLatency)
		svc = catalog.WithFaults(svc, chaos.NewInjector(time.Now().UnixNano(), chaos.Fault{
			Latency: cfg.ChaosLatency,
			Rate:    cfg.ChaosFailureRate,
		}))
	}
	if err := catalog.NewHandler(svc, os.Stdin, os.Stdout).Run(ctx); err != nil {
		return fmt.Errorf("read operator input: %w", err)
	}
	return nil
}
