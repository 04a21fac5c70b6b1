// Package main provides the entry point for LiveTrack Companion.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rayhanf/livetrack-companion/internal/api"
	"github.com/rayhanf/livetrack-companion/internal/app"
	"github.com/rayhanf/livetrack-companion/internal/appinfo"
	"github.com/rayhanf/livetrack-companion/internal/config"
	"github.com/rayhanf/livetrack-companion/internal/giftvalue"
	"github.com/rayhanf/livetrack-companion/internal/hardware"
	"github.com/rayhanf/livetrack-companion/internal/ingest"
	"github.com/rayhanf/livetrack-companion/internal/normalize"
	"github.com/rayhanf/livetrack-companion/internal/session"
	"github.com/rayhanf/livetrack-companion/internal/singleinstance"
	"github.com/rayhanf/livetrack-companion/internal/store"
	"github.com/rayhanf/livetrack-companion/internal/stream"
	"github.com/rayhanf/livetrack-companion/internal/trigger"
	"github.com/rayhanf/livetrack-companion/internal/version"
	"github.com/rayhanf/livetrack-companion/webembed"
)

// maintenanceInterval is how often log retention and vacuum checks run.
const maintenanceInterval = 6 * time.Hour

func main() {
	// 1. Single instance check (Windows: mutex, other: no-op)
	release, ok, err := singleinstance.AcquireLock()
	if err != nil {
		log.Fatalf("Failed to acquire lock: %v", err)
	}
	if !ok {
		log.Println("Another instance is already running")
		os.Exit(1)
	}
	defer release()

	// 2. Load configuration (corrupt config falls back to defaults with warning)
	cfg, _ := config.LoadConfig()
	cfg = config.ApplyEnvOverrides(cfg)
	secrets, secretsStatus, err := config.LoadSecrets()
	if err != nil {
		log.Printf("Warning: %v", err)
	}

	// 3. Ensure LAN auth credentials if LAN mode is enabled
	updated, generatedPw, err := config.EnsureLanAuth(&secrets, cfg.LanEnabled)
	if err != nil {
		log.Fatalf("Failed to ensure LAN auth: %v", err)
	}

	// Only save if loaded successfully or file was missing (prevent overwrite on fallback)
	if updated && secretsStatus != config.SecretsFallback {
		if err := config.SaveSecrets(secrets); err != nil {
			log.Fatalf("Failed to save secrets: %v", err)
		}
		if generatedPw != "" {
			// Write password to file instead of logging
			pwPath, err := config.WritePasswordFile(secrets.BasicAuthUsername, generatedPw)
			if err != nil {
				log.Printf("Warning: failed to write password file: %v", err)
				// Fallback to log output if file write fails
				log.Println("=== GENERATED BASIC AUTH CREDENTIALS ===")
				log.Printf("Username: %s", secrets.BasicAuthUsername)
				log.Printf("Password: %s", generatedPw)
				log.Println("=========================================")
			} else {
				log.Println("=== BASIC AUTH CREDENTIALS GENERATED ===")
				log.Printf("Credentials saved to: %s", pwPath)
				log.Println("Delete this file after saving the credentials!")
				log.Println("=========================================")
			}
		}
	} else if updated && secretsStatus == config.SecretsFallback {
		log.Println("WARNING: Secrets file has errors; new credentials not saved to avoid data loss")
		log.Println("Please fix or delete secrets.json and restart")
	}

	// 4. Parse flags (account and port can override config)
	port := flag.Int("port", cfg.Port, "HTTP server port")
	account := flag.String("account", cfg.Account, "live account username to track")
	flag.Parse()

	if *account == "" {
		log.Fatalf("No account configured: set %s or pass -account", config.EnvAccount)
	}

	// 5. Open SQLite store
	dataDir, err := config.EnsureDataDir()
	if err != nil {
		log.Fatalf("Failed to ensure data directory: %v", err)
	}
	dbPath := filepath.Join(dataDir, appinfo.DatabaseFileName)
	db, err := store.Open(dbPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	// 6. Create cancellable context for the pipeline
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	accountID, err := db.EnsureAccount(ctx, *account)
	if err != nil {
		log.Fatalf("Failed to register account: %v", err)
	}

	// 7. Gift value estimator: embedded defaults plus optional user table,
	// hot-reloaded while running
	valuer := giftvalue.New()
	giftTablePath := filepath.Join(dataDir, appinfo.GiftTableFileName)
	go func() {
		if err := valuer.Watch(ctx, giftTablePath); err != nil && ctx.Err() == nil {
			log.Printf("Warning: gift table watch disabled: %v", err)
		}
	}()

	// 8. Serial hardware controller (absent port means tracking-only mode)
	var controller *hardware.Controller
	if cfg.SerialPort != "" {
		portDev, err := hardware.OpenSerial(cfg.SerialPort, cfg.BaudRate)
		if err != nil {
			log.Printf("Warning: serial port %s unavailable, tracking only: %v", cfg.SerialPort, err)
			controller = hardware.NewController(nil)
		} else {
			controller = hardware.NewController(portDev)
			if err := controller.Ping(); err != nil {
				log.Printf("Warning: device ping failed: %v", err)
			} else {
				log.Printf("Hardware connected on %s", cfg.SerialPort)
			}
		}
	} else {
		log.Println("No serial port configured, tracking only")
		controller = hardware.NewController(nil)
	}
	go controller.Run(ctx)

	// 9. SSE hub and its run loop
	hub := api.NewHub()
	go hub.Run()

	// 10. Aggregator, trigger engine, stream source, pipeline
	agg := session.New(valuer)
	engine := trigger.New()

	sourceOpts := []stream.WSOption{
		stream.WithDialTimeout(time.Duration(cfg.DialTimeoutSec) * time.Second),
	}
	source := stream.NewWSSource(cfg.RelayURL, *account, sourceOpts...)

	pipeline := ingest.New(*account, accountID, source, normalize.New(), agg, engine, db, valuer,
		ingest.WithHub(hub),
		ingest.WithHardware(controller),
	)
	if err := pipeline.ReloadRules(ctx); err != nil {
		log.Printf("Warning: failed to load trigger rules: %v", err)
	}

	pipelineDone := make(chan struct{})
	go func() {
		defer close(pipelineDone)
		if err := pipeline.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("Pipeline error: %v", err)
		}
	}()

	// 11. Periodic store maintenance: retention pruning and vacuum
	go func() {
		ticker := time.NewTicker(maintenanceInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if cfg.RetentionDays > 0 {
					cutoff := time.Now().AddDate(0, 0, -cfg.RetentionDays)
					if n, err := db.PruneLogs(ctx, cutoff); err != nil {
						log.Printf("Prune error: %v", err)
					} else if n > 0 {
						log.Printf("Pruned %d old log rows", n)
					}
				}
				if _, err := db.VacuumIfNeeded(ctx, nil); err != nil {
					log.Printf("Vacuum error: %v", err)
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	// 12. Determine bind address
	host := "127.0.0.1"
	if cfg.LanEnabled {
		host = "0.0.0.0"
	}
	addr := fmt.Sprintf("%s:%d", host, *port)

	// Build dependencies
	health := app.HealthService{Version: version.String()}
	statsService := app.NewStatsService(agg, controller, valuer)
	sessionsService := &app.SessionsService{Store: db}
	eventsService := &app.EventsService{Store: db}
	rulesService := &app.RulesService{Store: db, AccountID: accountID, Reloader: pipeline}

	// Build server options
	serverOpts := []api.ServerOption{
		api.WithStatsUsecase(statsService),
		api.WithSessionsUsecase(sessionsService),
		api.WithEventsUsecase(eventsService),
		api.WithRulesUsecase(rulesService),
		api.WithHub(hub),
	}

	// Embedded dashboard (absent in dev builds)
	if webFS, err := webembed.GetFS(); err == nil && webFS != nil {
		serverOpts = append(serverOpts, api.WithStaticFS(webFS))
	}

	// Enable Basic Auth and hardening for LAN mode (credentials are
	// guaranteed by EnsureLanAuth)
	if cfg.LanEnabled {
		serverOpts = append(serverOpts,
			api.WithBasicAuth(secrets.BasicAuthUsername, secrets.BasicAuthPassword.Value()),
			api.WithSSESecret([]byte(secrets.SSESecret.Value())),
			api.WithRateLimiter(api.NewRateLimiter(api.DefaultRateLimiterConfig())),
		)
		log.Println("Basic Auth enabled for LAN mode")
	}

	server := api.NewServer(addr, health, serverOpts...)

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	// Error channel for server errors
	errCh := make(chan error, 1)

	go func() {
		log.Printf("Starting LiveTrack Companion v%s on %s (tracking @%s)", version.String(), addr, *account)
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Wait for shutdown signal or server error
	select {
	case <-done:
		log.Println("Shutting down...")
	case err := <-errCh:
		log.Printf("Server error: %v", err)
		os.Exit(1)
	}

	// Cancel the pipeline context and wait for its run loop to return,
	// so the final session summary is flushed before the store closes
	cancel()
	select {
	case <-pipelineDone:
	case <-time.After(10 * time.Second):
		log.Println("Timed out waiting for pipeline to stop")
	}

	// Stop the hardware controller (sends the emergency stop command)
	stopCtx, stopCancel := context.WithTimeout(context.Background(), 3*time.Second)
	if err := controller.Close(stopCtx); err != nil {
		log.Printf("Hardware stop error: %v", err)
	}
	stopCancel()

	// Stop SSE hub (closes all subscriber channels)
	hub.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("Server stopped")
}
