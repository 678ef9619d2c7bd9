// BoxBuddy Core - Smart Lockbox Fleet Controller
//
// This is the main entry point for the BoxBuddy Core daemon. It wires the
// device registry, access code ledger and audit trail to the infrastructure
// layer (SQLite, MQTT, InfluxDB, HTTP/WebSocket API) and runs until it
// receives an interrupt signal.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	_ "github.com/boxbuddy/boxbuddy-core/migrations"

	"github.com/boxbuddy/boxbuddy-core/internal/access"
	"github.com/boxbuddy/boxbuddy-core/internal/api"
	"github.com/boxbuddy/boxbuddy-core/internal/audit"
	"github.com/boxbuddy/boxbuddy-core/internal/clock"
	"github.com/boxbuddy/boxbuddy-core/internal/device"
	"github.com/boxbuddy/boxbuddy-core/internal/infrastructure/config"
	"github.com/boxbuddy/boxbuddy-core/internal/infrastructure/database"
	"github.com/boxbuddy/boxbuddy-core/internal/infrastructure/influxdb"
	"github.com/boxbuddy/boxbuddy-core/internal/infrastructure/logging"
	"github.com/boxbuddy/boxbuddy-core/internal/infrastructure/mqtt"
	"github.com/boxbuddy/boxbuddy-core/internal/notify"
	"github.com/boxbuddy/boxbuddy-core/internal/telemetry"
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
	// Cancel on interrupt signals (Ctrl+C, SIGTERM) for graceful shutdown.
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
	log.Info("starting BoxBuddy Core",
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

	// Wall clock shared by every time-dependent component.
	clk := clock.NewSystem()

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

	// Audit trail
	auditRecorder := audit.NewRecorder(audit.NewSQLiteRepository(db.DB), clk)
	auditRecorder.SetLogger(log)
	if loadErr := auditRecorder.Load(ctx); loadErr != nil {
		return fmt.Errorf("loading audit trail: %w", loadErr)
	}

	// WebSocket hub is created before the registry and ledger so their
	// broadcasters can be wired; the API server receives it as an
	// external hub and leaves its lifecycle to us.
	hub := api.NewHub(cfg.WebSocket, log)
	go hub.Run(ctx)

	// Device registry
	deviceRegistry := device.NewRegistry(device.NewSQLiteRepository(db.DB), clk)
	deviceRegistry.SetLogger(log)
	deviceRegistry.SetAuditor(auditRecorder)
	if loadErr := deviceRegistry.Load(ctx); loadErr != nil {
		return fmt.Errorf("loading device registry: %w", loadErr)
	}
	log.Info("device registry initialised", "devices", deviceRegistry.Count())

	// Connect to MQTT broker (optional; the fleet can run API-only)
	var mqttClient *mqtt.Client
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
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)

		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})

		// Firmware publishes door and connectivity events on the
		// per-device event topic; feed them into the registry.
		if subErr := subscribeDeviceEvents(ctx, mqttClient, deviceRegistry, byte(cfg.MQTT.QoS), log); subErr != nil {
			return fmt.Errorf("subscribing to device events: %w", subErr)
		}
	} else {
		log.Info("MQTT disabled")
	}

	// Notifications fan out to every connected UI surface: the WebSocket
	// hub always, the MQTT notification topic when a broker is configured.
	notifiers := notify.Multi{api.NotifySink{Hub: hub}}
	if mqttClient != nil {
		mqttNotifier := notify.NewMQTTNotifier(mqttClient, mqtt.Topics{}.Notification(), byte(cfg.MQTT.QoS), clk)
		mqttNotifier.SetLogger(log)
		notifiers = append(notifiers, mqttNotifier)
	}
	deviceRegistry.SetNotifier(notifiers)

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
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
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)

		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})

		deviceRegistry.SetMetricSink(influxClient)
	} else {
		log.Info("InfluxDB disabled")
	}

	// State changes reach the WebSocket hub always, and the MQTT state
	// topic when a broker is configured (retained, so firmware and
	// dashboards can pick up the last known state on subscribe).
	deviceRegistry.SetBroadcaster(&stateFanout{hub: hub, mqtt: mqttClient, log: log})

	// Access code ledger
	ledger := access.NewLedger(
		access.NewSQLiteRepository(db.DB),
		clk,
		access.RegistryDirectory{Registry: deviceRegistry},
		cfg.RelockDelay(),
	)
	ledger.SetLogger(log)
	ledger.SetAuditor(auditRecorder)
	ledger.SetNotifier(notifiers)
	ledger.SetBroadcaster(&codeFanout{hub: hub, influx: influxClient})
	if loadErr := ledger.Load(ctx); loadErr != nil {
		return fmt.Errorf("loading access ledger: %w", loadErr)
	}
	defer func() {
		log.Info("stopping access ledger")
		ledger.Close()
	}()

	// Background loops: battery drain ticks and code expiry sweeps.
	runner := telemetry.NewRunner(clk, deviceRegistry, ledger, cfg.TickInterval(), cfg.SweepInterval())
	runner.SetLogger(log)
	runner.Start(ctx)
	defer func() {
		log.Info("stopping telemetry runner")
		runner.Close()
	}()
	log.Info("telemetry runner started",
		"tick_interval", cfg.TickInterval(),
		"sweep_interval", cfg.SweepInterval(),
	)

	// HTTP API and WebSocket server
	apiServer, err := api.New(api.Deps{
		Config:      cfg.API,
		WS:          cfg.WebSocket,
		Security:    cfg.Security,
		Logger:      log,
		Registry:    deviceRegistry,
		Ledger:      ledger,
		Audit:       auditRecorder,
		ExternalHub: hub,
		Version:     version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if startErr := apiServer.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		log.Info("stopping API server")
		if closeErr := apiServer.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()
	log.Info("API server started", "address", fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port))

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, apiServer, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// 1. API server
	// 2. Telemetry runner
	// 3. Access ledger (pending re-lock timers)
	// 4. InfluxDB (if enabled)
	// 5. MQTT (if enabled)
	// 6. Database

	log.Info("BoxBuddy Core stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses BOXBUDDY_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("BOXBUDDY_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy.
// The MQTT and InfluxDB clients may be nil when disabled.
func healthCheck(ctx context.Context, db *database.DB, apiServer *api.Server, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if err := apiServer.HealthCheck(ctx); err != nil {
		return fmt.Errorf("api: %w", err)
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

// deviceEvent is the payload firmware publishes on boxbuddy/device/{id}/event.
type deviceEvent struct {
	Type string `json:"type"`
}

// subscribeDeviceEvents wires the firmware event topic into the registry.
// Unknown event types are logged and dropped; a misbehaving box must not
// take the subscription down.
func subscribeDeviceEvents(ctx context.Context, client *mqtt.Client, registry *device.Registry, qos byte, log *logging.Logger) error {
	return client.Subscribe(mqtt.Topics{}.AllDeviceEvents(), qos, func(topic string, payload []byte) error {
		// boxbuddy/device/{id}/event
		parts := strings.Split(topic, "/")
		if len(parts) != 4 {
			return nil
		}
		deviceID := parts[2]

		var ev deviceEvent
		if err := json.Unmarshal(payload, &ev); err != nil {
			log.Warn("malformed device event", "topic", topic, "error", err)
			return nil
		}

		var err error
		switch ev.Type {
		case "door_opened":
			_, err = registry.SetDoorOpen(ctx, deviceID, true)
		case "door_closed":
			_, err = registry.SetDoorOpen(ctx, deviceID, false)
		case "online":
			_, err = registry.SetOnline(ctx, deviceID, true)
		case "offline":
			_, err = registry.SetOnline(ctx, deviceID, false)
		default:
			log.Warn("unknown device event type", "topic", topic, "type", ev.Type)
			return nil
		}
		if err != nil {
			log.Warn("applying device event", "device_id", deviceID, "type", ev.Type, "error", err)
		}
		return nil
	})
}

// stateFanout relays device state changes to the WebSocket hub and, when a
// broker is connected, publishes the full device document retained on the
// per-device state topic so firmware and dashboards see the latest state
// immediately on subscribe.
type stateFanout struct {
	hub  *api.Hub
	mqtt *mqtt.Client
	log  *logging.Logger
}

// DeviceStateChanged implements device.Broadcaster.
func (f *stateFanout) DeviceStateChanged(d device.Device) {
	f.hub.DeviceStateChanged(d)

	if f.mqtt == nil {
		return
	}
	payload, err := json.Marshal(d)
	if err != nil {
		f.log.Error("marshalling device state", "device_id", d.ID, "error", err)
		return
	}
	if err := f.mqtt.Publish(mqtt.Topics{}.DeviceState(d.ID), payload, 1, true); err != nil {
		f.log.Warn("publishing device state", "device_id", d.ID, "error", err)
	}
}

// codeFanout relays code lifecycle events to the WebSocket hub and records
// completed deliveries as time-series events when InfluxDB is enabled.
type codeFanout struct {
	hub    *api.Hub
	influx *influxdb.Client
}

// CodeIssued implements access.Broadcaster.
func (f *codeFanout) CodeIssued(c access.Code) {
	f.hub.CodeIssued(c)
}

// CodeRedeemed implements access.Broadcaster.
func (f *codeFanout) CodeRedeemed(c access.Code) {
	f.hub.CodeRedeemed(c)
}

// DeliveryCompleted implements access.Broadcaster.
func (f *codeFanout) DeliveryCompleted(c access.Code) {
	f.hub.DeliveryCompleted(c)
	if f.influx != nil {
		f.influx.WriteDeliveryEvent(c.DeviceID, c.ID)
	}
}
