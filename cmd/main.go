package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	bridge "daikin_bridge"
	"daikin_bridge/internal/cache"
	"daikin_bridge/internal/handlers"
	"daikin_bridge/internal/logger"
	"daikin_bridge/internal/repository"
	"daikin_bridge/internal/repository/db"
	"daikin_bridge/internal/server"
	"daikin_bridge/internal/service"
	"daikin_bridge/internal/transport"

	"github.com/spf13/viper"
)

const (
	defaultPollInterval = 30 * time.Second
	startupTimeout      = 15 * time.Second
)

func main() {
	// load config.yml first so the log level is configurable
	if err := loadConfig(); err != nil {
		fallback := logger.Get(logger.InfoLevel)
		fallback.Fatalw("error reading config", "err", err)
	}

	log := logger.Get(viper.GetString("log_level"))

	host := viper.GetString("device.host")
	if host == "" {
		log.Fatalw("device.host missing from config")
	}

	// open DB
	database, err := openDB(log)
	if err != nil {
		log.Fatalw("failed to init sqlite", "err", err)
	}
	defer func() {
		if cerr := database.Close(); cerr != nil {
			log.Errorw("failed to close sqlite", "err", cerr)
		}
	}()

	// wire dependencies
	repos := repository.NewRepository(database)
	device := transport.NewClient(host, viper.GetDuration("device.timeout"), log)

	// context for background goroutines
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	coordinator := cache.New(device, log, func(err error) {
		appendErr := repos.Events.Append(ctx, bridge.DeviceEvent{
			Type:        "REFRESH_ERROR",
			Description: "Scheduled state refresh failed",
			Metadata:    map[string]any{"err": err.Error()},
		})
		if appendErr != nil {
			log.Errorw("refresh_error_journal_failed", "err", appendErr)
		}
	})

	startup(ctx, device, coordinator, repos, log)

	services := service.NewService(service.Deps{
		Repos:       repos,
		Device:      device,
		Coordinator: coordinator,
		Log:         log,
		Climate:     climateConfig(),
		Auth: service.AuthConfig{
			SigningKey: viper.GetString("auth.signing_key"),
			TokenTTL:   viper.GetDuration("auth.token_ttl"),
		},
	})
	apiHandler := handlers.NewHandler(services, coordinator, log)

	// background poller and snapshot persistence
	go coordinator.Run(ctx, pollInterval())
	go persistSnapshots(ctx, coordinator, repos.Snapshots, log)

	// start HTTP server
	srv := &server.Server{}
	runHTTPServer(srv, viper.GetString("port"), apiHandler, log)

	// graceful shutdown
	waitForShutdown(cancel, srv, log)
}

func loadConfig() error {
	viper.AddConfigPath("configs") // configs/config.yml
	viper.SetConfigName("config")
	return viper.ReadInConfig()
}

// openDB initializes the SQLite database using configuration.
func openDB(log *logger.Logger) (*sql.DB, error) {
	dbPath := viper.GetString("db.path")
	if dbPath == "" {
		log.Infow("db.path not set in config; using default file", "default", "bridge.db")
		dbPath = "bridge.db"
	}
	return db.InitDB(dbPath)
}

// startup checks the unit is reachable, logs its identity and seeds the
// cache: live fetch when possible, persisted snapshot otherwise. The
// bridge still comes up when the unit is off-network; the cache just
// stays empty until the poller reaches it.
func startup(ctx context.Context, device *transport.Client, coordinator *cache.Coordinator, repos *repository.Repository, log *logger.Logger) {
	startCtx, done := context.WithTimeout(ctx, startupTimeout)
	defer done()

	if err := device.Ping(startCtx); err != nil {
		log.Errorw("device unreachable at startup, continuing with persisted state", "err", err)
	} else {
		log.Infow("device connected", "device_id", device.DeviceID(startCtx))
	}

	if _, err := coordinator.Refresh(startCtx); err == nil {
		return
	}
	if snap, ok, err := repos.Snapshots.Load(startCtx); err != nil {
		log.Errorw("failed to load persisted snapshot", "err", err)
	} else if ok {
		log.Infow("serving persisted snapshot until first live fetch", "fetched_at", snap.FetchedAt)
		coordinator.Seed(snap)
	}
}

// persistSnapshots mirrors every cache change into sqlite so the next
// start has a last-known-good state.
func persistSnapshots(ctx context.Context, coordinator *cache.Coordinator, snapshots repository.SnapshotRepo, log *logger.Logger) {
	updates, cancel := coordinator.Subscribe()
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case snap := <-updates:
			if err := snapshots.Save(ctx, snap); err != nil {
				log.Errorw("snapshot_persist_failed", "err", err)
			}
		}
	}
}

func pollInterval() time.Duration {
	if d := viper.GetDuration("device.poll_interval"); d > 0 {
		return d
	}
	return defaultPollInterval
}

func climateConfig() service.ClimateConfig {
	cfg := service.DefaultClimateConfig()
	if v := viper.GetFloat64("device.min_temp"); v > 0 {
		cfg.MinTemp = v
	}
	if v := viper.GetFloat64("device.max_temp"); v > 0 {
		cfg.MaxTemp = v
	}
	if v := viper.GetFloat64("device.step"); v > 0 {
		cfg.Step = v
	}
	if offsets := readFloatSlice("device.quick_offsets"); len(offsets) > 0 {
		cfg.QuickOffsets = offsets
	}
	if v := viper.GetInt("device.max_attempts"); v > 0 {
		cfg.MaxAttempts = v
	}
	return cfg
}

func readFloatSlice(key string) []float64 {
	raw := viper.Get(key)
	items, ok := raw.([]any)
	if !ok {
		return nil
	}
	out := make([]float64, 0, len(items))
	for _, item := range items {
		switch v := item.(type) {
		case float64:
			out = append(out, v)
		case int:
			out = append(out, float64(v))
		}
	}
	return out
}

// runHTTPServer runs the HTTP server in a separate goroutine.
func runHTTPServer(srv *server.Server, port string, handler *handlers.Handler, log *logger.Logger) {
	go func() {
		if port == "" {
			port = "8080"
		}
		if err := srv.Run(port, handler.InitRoutes()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("error starting server", "err", err)
		}
	}()
}

// waitForShutdown listens for termination signals and performs graceful shutdown.
func waitForShutdown(cancel context.CancelFunc, srv *server.Server, log *logger.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Infow("shutting down bridge...")

	// stop background goroutines
	cancel()

	// allow in-flight requests to complete
	ctx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalw("server forced to shutdown", "err", err)
	}
}
