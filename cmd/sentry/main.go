// Sentry Core - Device Alarm & Event-Correlation Engine
//
// This is the main entry point for the Sentry Core application. Sentry
// ingests raw sensor reports from paired door/motion security devices
// (over MQTT and HTTP), correlates them into intrusion alerts, and
// exposes alarm control, event logs, and a live event feed through a
// REST/WebSocket API.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/nerrad567/sentry-core/migrations"

	"github.com/nerrad567/sentry-core/internal/alarm"
	"github.com/nerrad567/sentry-core/internal/api"
	"github.com/nerrad567/sentry-core/internal/auth"
	"github.com/nerrad567/sentry-core/internal/device"
	"github.com/nerrad567/sentry-core/internal/event"
	"github.com/nerrad567/sentry-core/internal/infrastructure/config"
	"github.com/nerrad567/sentry-core/internal/infrastructure/database"
	"github.com/nerrad567/sentry-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/sentry-core/internal/infrastructure/logging"
	"github.com/nerrad567/sentry-core/internal/infrastructure/mqtt"
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
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Sentry Core",
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

	// Open database
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

	// Run migrations
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Repositories
	userRepo := auth.NewUserRepository(db.DB)
	deviceRepo := device.NewSQLiteRepository(db.DB)
	eventRepo := event.NewSQLiteRepository(db.DB)

	// First-boot seeding: admin account and pre-provisioned devices.
	if _, seedErr := auth.SeedAdmin(ctx, userRepo, cfg.Seed.Admin, log.Logger); seedErr != nil {
		return fmt.Errorf("seeding admin account: %w", seedErr)
	}
	seeded, seedErr := device.Seed(ctx, deviceRepo, cfg.Seed.Devices, log.Logger)
	if seedErr != nil {
		return fmt.Errorf("seeding devices: %w", seedErr)
	}
	if seeded > 0 {
		log.Info("seed devices created", "count", seeded)
	}

	// Connect to InfluxDB (optional event mirror)
	var influxClient *influxdb.Client
	var sink alarm.EventSink
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		sink = influxClient
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	// WebSocket hub, created ahead of the API server so the alarm
	// engine can broadcast appended events.
	hub := api.NewHub(cfg.WebSocket, log)

	// Alarm engine
	rules, err := alarm.NewRuleSet(cfg.Alarm.RuleSet, cfg.CorrelationWindow(), eventRepo)
	if err != nil {
		return fmt.Errorf("selecting rule set: %w", err)
	}
	alarmSvc := alarm.NewService(deviceRepo, eventRepo, rules, alarm.NewGate(nil), alarm.Options{
		RearmDelay:  cfg.RearmDelay(),
		Logger:      log.Logger,
		Broadcaster: hub,
		Sink:        sink,
	})
	defer alarmSvc.Shutdown()
	log.Info("alarm engine initialised",
		"rule_set", rules.Name(),
		"rearm_delay", cfg.RearmDelay(),
		"correlation_window", cfg.CorrelationWindow(),
	)

	// Connect to MQTT broker and start the sensor ingestion bridge (optional)
	var mqttClient *mqtt.Client
	var bridge *mqtt.Bridge
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetLogger(log)
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)

		bridge = mqtt.NewBridge(mqttClient, cfg.MQTT, func(ctx context.Context, deviceKey, category string, ts time.Time) error {
			_, ingestErr := alarmSvc.Ingest(ctx, deviceKey, category, ts)
			return ingestErr
		})
		if startErr := bridge.Start(); startErr != nil {
			return fmt.Errorf("starting MQTT bridge: %w", startErr)
		}
		defer func() {
			log.Info("stopping MQTT bridge")
			if stopErr := bridge.Stop(); stopErr != nil {
				log.Error("error stopping MQTT bridge", "error", stopErr)
			}
		}()
		log.Info("sensor ingestion bridge started")
	} else {
		log.Info("MQTT disabled, ingestion is HTTP only")
	}

	// Start API server
	server, err := api.New(api.Deps{
		Config:      cfg.API,
		WS:          cfg.WebSocket,
		Security:    cfg.Security,
		Logger:      log,
		Alarm:       alarmSvc,
		Devices:     deviceRepo,
		Events:      eventRepo,
		Users:       userRepo,
		ExternalHub: hub,
		Version:     version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()
	log.Info("API server started", "host", cfg.API.Host, "port", cfg.API.Port)

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// 1. API server (stops accepting requests, closes WebSocket clients)
	// 2. MQTT bridge, then MQTT client
	// 3. Alarm engine (cancels pending re-arm timers)
	// 4. InfluxDB (flushes the event mirror)
	// 5. Database

	log.Info("Sentry Core stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses SENTRY_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("SENTRY_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy.
// The MQTT and InfluxDB clients may be nil when disabled.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}
