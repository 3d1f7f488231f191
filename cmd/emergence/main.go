// Command emergence runs the stigmergy colony simulation.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/talgya/emergence/internal/api"
	"github.com/talgya/emergence/internal/config"
	"github.com/talgya/emergence/internal/engine"
	"github.com/talgya/emergence/internal/entropy"
	"github.com/talgya/emergence/internal/manifest"
	"github.com/talgya/emergence/internal/persistence"
	"github.com/talgya/emergence/internal/world"
)

func main() {
	configPath := flag.String("config", "", "path to a config YAML file (defaults apply when empty)")
	verbose := flag.Bool("v", false, "log debug messages")
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	if err := run(*configPath); err != nil {
		slog.Error("emergence stopped", "error", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	man, err := manifest.Load(cfg.Manifest)
	if err != nil {
		return fmt.Errorf("manifest: %w", err)
	}

	// ── World ─────────────────────────────────────────────────────────
	if cfg.Seed == 0 {
		cfg.Seed = entropy.CryptoSeed()
		slog.Info("no seed configured, picked one", "seed", cfg.Seed)
	}
	sim, err := engine.NewSimulation(cfg, man)
	if err != nil {
		return err
	}
	for _, tc := range world.TerrainCounts(sim.WorldMap) {
		slog.Info("terrain", "type", tc.Terrain, "count", tc.Count)
	}
	st := sim.Status()
	slog.Info("colony ready",
		"seed", cfg.Seed,
		"hexes", humanize.Comma(int64(sim.WorldMap.HexCount())),
		"units", st.Stats.Population,
		"structures", st.Stats.Structures,
		"ghosts", st.Stats.Ghosts,
	)

	// ── Journal ───────────────────────────────────────────────────────
	runID := uuid.NewString()
	var db *persistence.DB
	if cfg.Journal.DBPath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Journal.DBPath), 0o755); err != nil {
			return err
		}
		db, err = persistence.Open(cfg.Journal.DBPath)
		if err != nil {
			return err
		}
		defer db.Close()
		r, err := db.StartRun(cfg.Seed, cfg.World.Radius)
		if err != nil {
			return err
		}
		runID = r.ID
		slog.Info("journal opened", "path", cfg.Journal.DBPath, "run", runID)
	} else {
		slog.Warn("journal disabled (no db_path)")
	}

	if cfg.Journal.TickLogDir != "" {
		ticks := persistence.NewTickLogger(cfg.Journal.TickLogDir, runID, cfg.Journal.RotateBytes)
		defer ticks.Close()
		sim.OnSummary = func(s engine.TickSummary) {
			if err := ticks.WriteTick(s); err != nil {
				slog.Error("tick log write failed", "tick", s.Tick, "error", err)
			}
		}
	}

	// ── Engine ────────────────────────────────────────────────────────
	eng := engine.NewEngine()
	eng.Interval = cfg.Sim.Interval
	eng.ReportEvery = cfg.Sim.StatsEvery
	eng.MaxTicks = cfg.Sim.MaxTicks
	if err := eng.SetSpeed(cfg.Sim.Speed); err != nil {
		return err
	}

	var journaled uint64
	checkpoint := func() {
		if db == nil {
			return
		}
		tick, err := db.Checkpoint(runID, sim, journaled)
		if err != nil {
			slog.Error("checkpoint failed", "error", err)
			return
		}
		journaled = tick
	}
	eng.OnTick = sim.TickStep
	eng.OnReport = func(tick uint64) {
		sim.Report(tick)
		checkpoint()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── HTTP API ──────────────────────────────────────────────────────
	if cfg.API.AdminKey == "" {
		slog.Warn("EMERGENCE_ADMIN_KEY not set; admin POST endpoints are disabled")
	}
	if cfg.API.Port > 0 {
		apiServer := &api.Server{
			Sim:      sim,
			Eng:      eng,
			DB:       db,
			RunID:    runID,
			Port:     cfg.API.Port,
			AdminKey: cfg.API.AdminKey,
			Limiter:  api.NewRateLimiter(cfg.API.RequestsPerMin, time.Minute),
		}
		go func() {
			if err := apiServer.Start(ctx); err != nil {
				slog.Error("HTTP server error", "error", err)
			}
		}()
		fmt.Printf("API: http://localhost:%d/api/v1/status\n", cfg.API.Port)
	}

	// ── Start ─────────────────────────────────────────────────────────
	fmt.Println("Starting simulation... (Ctrl+C to stop)")
	eng.Run(ctx)

	checkpoint()
	sim.Report(sim.CurrentTick())
	fmt.Printf("Simulation stopped after %s ticks (%s simulated).\n",
		humanize.Comma(int64(sim.CurrentTick())), engine.SimTime(sim.CurrentTick(), cfg.Sim.Step))
	return nil
}
