// Package main is the entry point for the LacyLights orchestration server.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/rs/cors"
	"gorm.io/gorm"

	"github.com/bbernstein/lacylights-orchestrator/internal/api"
	"github.com/bbernstein/lacylights-orchestrator/internal/config"
	"github.com/bbernstein/lacylights-orchestrator/internal/database"
	"github.com/bbernstein/lacylights-orchestrator/internal/database/repositories"
	"github.com/bbernstein/lacylights-orchestrator/internal/services/catalog"
	"github.com/bbernstein/lacylights-orchestrator/internal/services/engine"
	"github.com/bbernstein/lacylights-orchestrator/internal/services/export"
	"github.com/bbernstein/lacylights-orchestrator/internal/services/fleettick"
	importservice "github.com/bbernstein/lacylights-orchestrator/internal/services/import"
	"github.com/bbernstein/lacylights-orchestrator/internal/services/orchestration"
	"github.com/bbernstein/lacylights-orchestrator/internal/services/presets"
	"github.com/bbernstein/lacylights-orchestrator/internal/services/pubsub"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	// Load .env file if present
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := config.Load()
	printBanner(cfg)

	db, err := database.Open(database.Config{
		URL:         cfg.DatabaseURL,
		MaxIdleConn: 5,
		MaxOpenConn: 10,
		Debug:       cfg.IsDevelopment(),
	})
	if err != nil {
		log.Fatalf("Failed to open preset database: %v", err)
	}
	defer func() { _ = database.Close(db) }()

	if err := reconcilePresetRows(db); err != nil {
		log.Printf("Warning: preset migration failed: %v", err)
	}

	ps := pubsub.New()
	engineClient := engine.NewClient(cfg.EngineURL, cfg.EngineTimeout)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	catalogService := catalog.NewService(engineClient, ps)
	catalogService.Start(ctx, cfg.CatalogRefreshInterval)

	var tickListener *fleettick.Listener
	if cfg.MQTTEnabled {
		tickListener = fleettick.NewListener(fleettick.Config{
			Broker:   cfg.MQTTBroker,
			ClientID: cfg.MQTTClientID,
			Topic:    cfg.MQTTTickTopic,
			QoS:      1,
		}, catalogService)
		if err := tickListener.Start(); err != nil {
			// Periodic refresh still keeps the catalog current.
			log.Printf("Warning: fleet tick listener failed to start: %v", err)
			tickListener = nil
		}
	}

	presetRepo := repositories.NewPresetRepository(db)
	server := api.NewServer(api.Deps{
		Catalog:       catalogService,
		Orchestration: orchestration.NewService(catalogService, engineClient, ps),
		Presets:       presets.NewService(presetRepo, catalogService, ps),
		Export:        export.NewService(presetRepo, "lacylights-orchestrator "+Version),
		Import:        importservice.NewService(presetRepo, ps),
		PubSub:        ps,
	})

	router := chi.NewRouter()

	// Middleware
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	// CORS
	corsMiddleware := cors.New(cors.Options{
		AllowedOrigins:   []string{cfg.CORSOrigin, "http://localhost:3000", "http://localhost:4000"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		AllowCredentials: true,
		Debug:            cfg.IsDevelopment(),
	})
	router.Use(corsMiddleware.Handler)

	// Routes
	router.Get("/health", healthCheckHandler)
	router.Get("/ws/events", server.Events())
	router.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(60 * time.Second))
		server.Mount(r)
	})

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // the event stream is long-lived
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server listening on http://localhost:%s\n", cfg.Port)
		log.Printf("Event stream: ws://localhost:%s/ws/events\n", cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Cleanup services in reverse order
	if tickListener != nil {
		tickListener.Stop()
	}
	catalogService.Stop()
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server shutdown error: %v", err)
	}

	log.Println("Server stopped")
}

// reconcilePresetRows repairs preset rows written before scopes and tags were
// recorded. Adding the scope column defaults old rows to local, so a local row
// whose payload still carries fleet targeting is really a fleet preset.
func reconcilePresetRows(db *gorm.DB) error {
	if !db.Migrator().HasTable("orchestration_presets") {
		return nil
	}

	type row struct {
		ID      string
		Scope   *string
		Tags    *string
		Payload string
	}
	var rows []row
	err := db.Raw(`SELECT id, scope, tags, payload FROM orchestration_presets
		WHERE scope IS NULL OR scope IN ('', 'local') OR tags IS NULL OR tags = ''`).Scan(&rows).Error
	if err != nil {
		return fmt.Errorf("failed to read presets: %w", err)
	}

	fixed := 0
	for _, r := range rows {
		scope := ""
		if r.Scope != nil {
			scope = *r.Scope
		}
		tags := ""
		if r.Tags != nil {
			tags = *r.Tags
		}

		newScope := scope
		if scope == "" || scope == "local" {
			newScope = "local"
			var body map[string]json.RawMessage
			if err := json.Unmarshal([]byte(r.Payload), &body); err != nil {
				log.Printf("Warning: preset %s has an unreadable payload: %v", r.ID, err)
			} else {
				_, hasTargets := body["targets"]
				_, hasSelf := body["include_self"]
				if hasTargets || hasSelf {
					newScope = "fleet"
				}
			}
		}
		newTags := tags
		if newTags == "" {
			newTags = "[]"
		}
		if newScope == scope && newTags == tags {
			continue
		}

		err := db.Exec(`UPDATE orchestration_presets SET scope = ?, tags = ? WHERE id = ?`, newScope, newTags, r.ID).Error
		if err != nil {
			return fmt.Errorf("failed to update preset %s: %w", r.ID, err)
		}
		fixed++
	}

	if fixed > 0 {
		log.Printf("Reconciled %d legacy preset rows", fixed)
	}
	return nil
}

// healthCheckHandler returns the server health status.
func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	response := fmt.Sprintf(`{
  "status": "ok",
  "timestamp": "%s",
  "version": "%s",
  "uptime": "N/A"
}`, time.Now().UTC().Format(time.RFC3339), Version)

	_, _ = w.Write([]byte(response))
}

// printBanner prints the startup banner.
func printBanner(cfg *config.Config) {
	fmt.Println("============================================")
	fmt.Println("  LacyLights Orchestrator")
	fmt.Printf("  Version: %s\n", Version)
	fmt.Printf("  Build:   %s\n", BuildTime)
	fmt.Printf("  Commit:  %s\n", GitCommit)
	fmt.Println("============================================")
	fmt.Printf("  Environment: %s\n", cfg.Env)
	fmt.Printf("  Port:        %s\n", cfg.Port)
	fmt.Printf("  Database:    %s\n", cfg.DatabaseURL)
	fmt.Printf("  Engine:      %s\n", cfg.EngineURL)
	fmt.Printf("  MQTT ticks:  %v\n", cfg.MQTTEnabled)
	fmt.Println("============================================")
}
