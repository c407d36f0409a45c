// Package main provides the headless arena binary: it spawns configured
// creatures against a damage-dealing dummy and runs the frame loop.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/bossai/internal/config"
	"github.com/cory-johannsen/bossai/internal/observability"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/arena.yaml", "path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("starting arena", zap.String("config", *configPath))

	rep, err := run(context.Background(), cfg, logger)
	if err != nil {
		logger.Fatal("arena error", zap.Error(err))
	}
	logger.Info("arena summary",
		zap.Uint64("frames", rep.Frames),
		zap.Int("main_transitions", rep.Summary.MainTransitions),
		zap.Int("sub_transitions", rep.Summary.SubTransitions),
		zap.Int("phase_changes", rep.Summary.PhaseChanges),
		zap.Int("deaths", rep.Summary.Deaths),
		zap.Int("despawns", rep.Summary.Despawns),
		zap.Int("respawns", rep.Summary.Respawns),
		zap.Float64("dummy_damage_taken", rep.DummyDamage),
		zap.Duration("elapsed", time.Since(start)),
	)
	for _, st := range rep.Final {
		logger.Info("final status",
			zap.String("actor", st.ID),
			zap.Stringer("main", st.Main),
			zap.Float64("health", st.Health),
			zap.Int("phase", st.Phase),
			zap.Bool("inert", st.Inert),
		)
	}
}
