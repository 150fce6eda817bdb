// SkyLink Relay - Aircraft Telemetry Bridge
//
// This is the main entry point for the SkyLink Relay application.
// The relay bridges an aircraft's two radio links to ground systems:
//   - LTE: high-rate UDP telemetry while the aircraft has cellular coverage
//   - Iridium: low-rate satellite messages via the Rock7 HTTP gateway
//
// Ground systems see both links as uniform telem/* topics on an MQTT
// broker; the relay owns the per-link quirks (peer learning, retained
// queue hygiene, delivery retries).
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nerrad567/skylink-relay/internal/infrastructure/config"
	"github.com/nerrad567/skylink-relay/internal/infrastructure/database"
	"github.com/nerrad567/skylink-relay/internal/infrastructure/logging"
	"github.com/nerrad567/skylink-relay/internal/infrastructure/mqtt"
	"github.com/nerrad567/skylink-relay/internal/link/broker"
	"github.com/nerrad567/skylink-relay/internal/link/iridium"
	"github.com/nerrad567/skylink-relay/internal/link/lte"
	"github.com/nerrad567/skylink-relay/internal/relay"
	"github.com/nerrad567/skylink-relay/internal/store"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting SkyLink Relay",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open database for the dead-letter store
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	deadLetters, err := store.NewDeadLetterStore(ctx, db)
	if err != nil {
		return fmt.Errorf("initialising dead letter store: %w", err)
	}

	// Surface any backlog from previous runs; these need operator attention.
	if count, countErr := deadLetters.Count(ctx); countErr != nil {
		log.Warn("could not count dead letters", "error", countErr)
	} else if count > 0 {
		log.Warn("undelivered satellite payloads from previous runs", "count", count)
	}

	// Connect to MQTT broker. A terminal refusal (bad credentials,
	// rejected client) is fatal; a broker that is merely down is retried
	// inside Connect until it answers or shutdown is requested.
	mqttClient, err := mqtt.Connect(ctx, cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	mqttClient.SetLogger(log)
	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})

	// Build the three links
	lteLink := lte.New(lte.Config{
		RxPort:         cfg.LTE.RxPort,
		SilenceTimeout: cfg.LTE.GetSilenceTimeout(),
	})
	lteLink.SetLogger(log)

	iridiumLink := iridium.New(cfg.Iridium)
	iridiumLink.SetLogger(log)
	iridiumLink.SetDeadLetterSink(deadLetters)

	brokerLink := broker.New(mqttClient, broker.Config{
		QoS:            byte(cfg.MQTT.QoS),
		SilenceTimeout: cfg.Iridium.GetSilenceTimeout(),
	})
	brokerLink.SetLogger(log)

	// Wire and start the relay
	r := relay.New(lteLink, iridiumLink, brokerLink)
	r.SetLogger(log)

	if err := r.Start(); err != nil {
		return fmt.Errorf("starting relay: %w", err)
	}
	defer func() {
		log.Info("stopping relay")
		r.Stop()
	}()

	// Verify infrastructure connections are healthy
	if err := healthCheck(ctx, db, mqttClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal",
		"lte_port", cfg.LTE.RxPort,
		"mo_port", cfg.Iridium.LocalPort,
	)

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred calls run in reverse order:
	// 1. Relay (broker link, Iridium link, LTE link)
	// 2. MQTT
	// 3. Database

	log.Info("SkyLink Relay stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses SKYRELAY_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("SKYRELAY_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies infrastructure connections are healthy.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - db: Database connection to check
//   - mqttClient: MQTT client to check
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}

	// Link health is verified during Start(): the LTE socket and the MO
	// endpoint bind synchronously, and broker subscriptions either succeed
	// or fail the relay start.

	return nil
}
