package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/gmforge/battlemap/internal/animation"
	"github.com/gmforge/battlemap/internal/config"
	"github.com/gmforge/battlemap/internal/data"
	"github.com/gmforge/battlemap/internal/db"
	"github.com/gmforge/battlemap/internal/game/timeline"
	"github.com/gmforge/battlemap/internal/server"
	"github.com/gmforge/battlemap/internal/world"
)

const ConfigPath = "config/mapserver.yaml"

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("shutting down", "signal", sig)
		cancel()
	}()

	if err := run(ctx); err != nil {
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfgPath := ConfigPath
	if p := os.Getenv("BATTLEMAP_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.LoadMapServer(cfgPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	})))

	slog.Info("battlemap server starting",
		"bind", cfg.BindAddress,
		"port", cfg.Port,
		"log_level", cfg.LogLevel)

	spells, err := data.LoadSpellCatalog(cfg.SpellCatalogPath)
	if err != nil {
		return fmt.Errorf("loading spell catalog: %w", err)
	}
	slog.Info("spell catalog loaded", "spells", spells.Len())

	if err := db.RunMigrations(ctx, cfg.Database.DSN()); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	slog.Info("database migrations applied")

	database, err := db.New(ctx, cfg.Database.DSN())
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer database.Close()
	slog.Info("database connected")

	persist := db.NewPersistenceService(database.Pool())

	store := world.NewMapStore()
	hub := server.NewHub()
	anim := animation.NewTimedAnimator(hub.BroadcastPlayback)
	engine := timeline.NewEngine(store, anim, spells, cfg.Animation.Durations())
	if cfg.Animation.Speed > 0 {
		engine.SetAnimationSpeed(cfg.Animation.Speed)
	}

	if err := restoreState(ctx, persist, store, engine); err != nil {
		return fmt.Errorf("restoring state: %w", err)
	}

	srv := server.New(engine, store, hub, cfg.GMPasswordHash)
	addr := fmt.Sprintf("%s:%d", cfg.BindAddress, cfg.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Serve(ctx, ln)
	})
	if cfg.AutosaveSeconds > 0 {
		interval := time.Duration(cfg.AutosaveSeconds) * time.Second
		g.Go(func() error {
			return persist.Autosave(ctx, interval, func() db.Snapshot {
				return db.Snapshot{
					Objects:    store.AllByMap(),
					Tombstones: store.Tombstones(),
					Timelines:  engine.Timelines(),
				}
			})
		})
	}
	if cfg.SpellCatalogPath != "" {
		g.Go(func() error {
			return spells.Watch(ctx, cfg.SpellCatalogPath)
		})
	}

	return g.Wait()
}

// restoreState loads the persisted snapshot into the store and engine.
func restoreState(ctx context.Context, persist *db.PersistenceService, store *world.MapStore, engine *timeline.Engine) error {
	snap, err := persist.LoadSnapshot(ctx)
	if err != nil {
		return err
	}

	for _, id := range snap.Tombstones {
		store.RestoreTombstone(id)
	}
	restored := 0
	for _, objects := range snap.Objects {
		for _, obj := range objects {
			if err := store.AddObject(obj); err != nil {
				slog.Warn("skipping persisted object", "object", obj.ID, "error", err)
				continue
			}
			restored++
		}
	}
	for _, t := range snap.Timelines {
		engine.Restore(t)
	}

	slog.Info("state restored",
		"objects", restored,
		"tombstones", len(snap.Tombstones),
		"timelines", len(snap.Timelines))
	return nil
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
