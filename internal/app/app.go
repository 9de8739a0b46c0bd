// Package app wires configuration, logging, storage, and the hub into a
// runnable server.
package app

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mattn/go-isatty"

	server "emberhold/server"
	servernet "emberhold/server/internal/net"
	"emberhold/server/internal/persist"
	"emberhold/server/internal/state"
	"emberhold/server/internal/telemetry"
	"emberhold/server/internal/world"
	"emberhold/server/logging"
	loggingSinks "emberhold/server/logging/sinks"
)

type Config struct {
	Logger telemetry.Logger
}

func Run(ctx context.Context, cfg Config) error {
	// Missing .env is fine; the environment may be set directly.
	godotenv.Load()

	telemetryLogger := cfg.Logger
	if telemetryLogger == nil {
		telemetryLogger = telemetry.WrapLogger(log.Default())
	}

	fallbackLogger := log.Default()
	if provider, ok := telemetryLogger.(interface{ StandardLogger() *log.Logger }); ok {
		if candidate := provider.StandardLogger(); candidate != nil {
			fallbackLogger = candidate
		}
	}

	logConfig := logging.DefaultConfig()
	if raw := os.Getenv("LOG_SINKS"); raw != "" {
		logConfig.EnabledSinks = logConfig.EnabledSinks[:0]
		for _, name := range strings.Split(raw, ",") {
			if name = strings.TrimSpace(name); name != "" {
				logConfig.EnabledSinks = append(logConfig.EnabledSinks, name)
			}
		}
	}

	if path := os.Getenv("LOG_JSON_PATH"); path != "" {
		logConfig.JSON.FilePath = path
	}
	logConfig.Console.UseColor = isatty.IsTerminal(os.Stdout.Fd())

	sinks := make(map[string]logging.Sink, len(logConfig.EnabledSinks))
	for _, name := range logConfig.EnabledSinks {
		switch name {
		case "console":
			sinks[name] = loggingSinks.NewConsoleSink(os.Stdout, logConfig.Console)
		case "json":
			jsonSink, err := loggingSinks.NewJSONFileSink(logConfig.JSON)
			if err != nil {
				return fmt.Errorf("failed to open json log sink: %w", err)
			}
			sinks[name] = jsonSink
		default:
			telemetryLogger.Printf("unknown log sink %q", name)
		}
	}

	router, err := logging.NewRouter(logConfig, logging.SystemClock{}, fallbackLogger, sinks)
	if err != nil {
		return fmt.Errorf("failed to construct logging router: %w", err)
	}
	defer func() {
		if cerr := router.Close(ctx); cerr != nil {
			telemetryLogger.Printf("failed to close logging router: %v", cerr)
		}
	}()

	hubCfg := server.DefaultHubConfig()
	hubCfg.Logger = telemetryLogger

	if raw := os.Getenv("MS_PER_AP"); raw != "" {
		if value, err := strconv.ParseInt(raw, 10, 64); err == nil && value > 0 {
			hubCfg.Loop.MsPerAP = value
		} else {
			telemetryLogger.Printf("invalid MS_PER_AP=%q", raw)
		}
	}
	if raw := os.Getenv("IDLE_TIMEOUT_SECONDS"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value >= 0 {
			hubCfg.Loop.IdleTimeout = time.Duration(value) * time.Second
		} else {
			telemetryLogger.Printf("invalid IDLE_TIMEOUT_SECONDS=%q", raw)
		}
	}
	if raw := os.Getenv("SCHED_MAX_WAIT_MS"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			hubCfg.Loop.MaxSchedulerWait = time.Duration(value) * time.Millisecond
		} else {
			telemetryLogger.Printf("invalid SCHED_MAX_WAIT_MS=%q", raw)
		}
	}

	dbPath := os.Getenv("DB_PATH")
	if dbPath == "" {
		dbPath = "data/emberhold.db"
	}
	store, err := persist.Open(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open player store: %w", err)
	}
	defer store.Close()
	hubCfg.Collaborators.Persister = store

	metrics := logging.NewMetrics()
	hub := server.NewHub(hubCfg, router, metrics, logging.SystemClock{})

	seedWorld(hub.Loop().World())
	registerBackgroundTasks(hub, store, router)

	stop := make(chan struct{})
	go hub.RunSimulation(stop)
	defer close(stop)

	handler := servernet.NewHTTPHandler(hub, servernet.HTTPHandlerConfig{
		Logger: fallbackLogger,
	})

	addr := os.Getenv("ADDR")
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{Addr: addr, Handler: handler}
	telemetryLogger.Printf("server listening on %s", srv.Addr)

	if err := srv.ListenAndServe(); err != nil {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// seedWorld installs the initial spawn points. Monster stats are
// placeholder content until a content pipeline exists.
func seedWorld(w *world.World) {
	spawns := []struct {
		id     string
		pos    state.Position
		target int
	}{
		{"spawn-north", state.Position{X: 200, Y: -300}, 3},
		{"spawn-east", state.Position{X: 500, Y: 120}, 2},
	}
	for _, seed := range spawns {
		w.AddSpawnPoint(&world.SpawnPoint{
			ID:     seed.id,
			Pos:    seed.pos,
			Target: seed.target,
			Factory: func(sp *world.SpawnPoint, ordinal int) *state.MonsterState {
				return &state.MonsterState{
					Actor: state.Actor{
						ID:        fmt.Sprintf("%s-mob-%d", sp.ID, ordinal),
						Name:      "wisp",
						Pos:       sp.Pos,
						Health:    40,
						MaxHealth: 40,
					},
					SpawnID: sp.ID,
				}
			},
		})
	}
}

func registerBackgroundTasks(hub *server.Hub, store *persist.Store, publisher logging.Publisher) {
	sched := hub.Scheduler()

	sched.AddRecurring(func() {
		if err := store.Checkpoint(); err != nil {
			publisher.Publish(context.Background(), logging.Event{
				Type:     "persistence.checkpoint_failed",
				Severity: logging.SeverityWarn,
				Category: logging.CategoryPersistence,
				Payload:  map[string]string{"error": err.Error()},
			})
		}
	}, 5*time.Minute, "db_checkpoint", false)

	sched.AddRecurring(func() {
		publisher.Publish(context.Background(), logging.Event{
			Type:     "gameplay.world_clock",
			Tick:     hub.Loop().Tick(),
			Severity: logging.SeverityDebug,
			Category: logging.CategoryGameplay,
			Payload:  map[string]uint64{"usedAp": hub.Loop().UsedAP()},
		})
	}, time.Minute, "world_clock_broadcast", false)

	// Weather drifts as a bounded random walk. Nothing consumes it yet
	// beyond the event stream; game rules hook in here later.
	cloudDensity := 50
	sched.AddRecurring(func() {
		cloudDensity += rand.Intn(11) - 5
		if cloudDensity < 0 {
			cloudDensity = 0
		}
		if cloudDensity > 100 {
			cloudDensity = 100
		}
		publisher.Publish(context.Background(), logging.Event{
			Type:     "gameplay.weather_changed",
			Tick:     hub.Loop().Tick(),
			Severity: logging.SeverityDebug,
			Category: logging.CategoryGameplay,
			Payload:  map[string]int{"cloudDensity": cloudDensity},
		})
	}, 10*time.Minute, "weather_drift", true)
}
