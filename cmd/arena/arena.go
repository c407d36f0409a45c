package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/bossai/internal/config"
	"github.com/cory-johannsen/bossai/internal/engine"
	"github.com/cory-johannsen/bossai/internal/game/body"
	"github.com/cory-johannsen/bossai/internal/game/brain"
	"github.com/cory-johannsen/bossai/internal/game/creature"
	"github.com/cory-johannsen/bossai/internal/game/dice"
	"github.com/cory-johannsen/bossai/internal/game/pattern"
	"github.com/cory-johannsen/bossai/internal/game/spawn"
	"github.com/cory-johannsen/bossai/internal/scripting"
	"github.com/cory-johannsen/bossai/internal/server"
	"github.com/cory-johannsen/bossai/internal/sim"
	"github.com/cory-johannsen/bossai/internal/storage/postgres"
)

// flushTimeout bounds the final status write on shutdown.
const flushTimeout = 5 * time.Second

// report is what one arena run produced.
type report struct {
	Frames      uint64
	Summary     sim.Summary
	DummyDamage float64
	Final       []brain.Status
	// Errors holds spawn points that failed to spawn, keyed by point ID.
	Errors map[string]error
}

// run wires every component from cfg and blocks until the arena duration
// elapses, a signal arrives, or ctx is cancelled.
func run(ctx context.Context, cfg config.Config, logger *zap.Logger) (report, error) {
	rep := report{Errors: make(map[string]error)}

	src := dice.NewSeededSource(cfg.Arena.Seed)
	roller := dice.NewLoggedRoller(src, logger)

	registry, err := creature.LoadRegistry(cfg.Engine.CreaturesDir)
	if err != nil {
		return rep, fmt.Errorf("loading creature templates: %w", err)
	}
	logger.Info("creature templates loaded",
		zap.String("dir", cfg.Engine.CreaturesDir),
		zap.Strings("creatures", registry.IDs()),
	)

	var actors sync.Map // spawn point ID -> *brain.Actor

	var scripts pattern.ScriptCaller
	if cfg.Engine.ScriptsDir != "" {
		mgr := scripting.NewManager(roller, logger, cfg.Engine.ScriptInstructionLimit)
		if _, err := mgr.LoadTree(cfg.Engine.ScriptsDir); err != nil {
			return rep, fmt.Errorf("loading scripts: %w", err)
		}
		mgr.QueryActor = func(id string) (scripting.ActorInfo, bool) {
			v, ok := actors.Load(id)
			if !ok {
				return scripting.ActorInfo{}, false
			}
			return actorInfo(v.(*brain.Actor)), true
		}
		defer mgr.Close()
		scripts = mgr
	}

	world := sim.NewWorld(sim.Bounds{}, src, nil, nil, logger)
	dummy := sim.NewDummy(sim.DummyConfig{
		ID:            "dummy",
		Position:      body.Vec{X: cfg.Arena.Dummy.X, Y: cfg.Arena.Dummy.Y},
		Damage:        cfg.Arena.Dummy.Damage,
		PartDamage:    cfg.Arena.Dummy.PartDamage,
		Interval:      cfg.Arena.Dummy.Interval,
		CriticalEvery: cfg.Arena.Dummy.CriticalEvery,
		Reach:         cfg.Arena.Dummy.Reach,
	})
	world.AddDummy(dummy)

	lifecycle := server.NewLifecycle(logger)

	var store spawn.StatusStore = spawn.NewMemoryStore()
	if cfg.Database.Enabled {
		repo, svc, err := connectStore(ctx, cfg.Database, logger)
		if err != nil {
			return rep, err
		}
		store = repo
		lifecycle.Add("postgres", svc)
	}

	if cfg.Engine.WatchCreatures {
		watcher, err := creature.NewWatcher(cfg.Engine.CreaturesDir)
		if err != nil {
			return rep, fmt.Errorf("watching creature templates: %w", err)
		}
		lifecycle.Add("creature-watcher", &server.FuncService{
			StartFn: func(ctx context.Context) error {
				creature.Follow(ctx, watcher, registry, logger)
				return nil
			},
			StopFn: func() { _ = watcher.Close() },
		})
	}

	factory := func(p spawn.Point, bp brain.Blueprint) (*brain.Actor, error) {
		b := world.NewBody(p.ID, bp.Home)
		actor, err := brain.NewActor(p.ID, bp, world.Deps(b, src, scripts, logger))
		if actor != nil {
			b.Attach(actor)
			actors.Store(p.ID, actor)
		}
		return actor, err
	}
	spawner := spawn.NewSpawner(spawn.Config{
		Linger:           cfg.Engine.LingerDuration,
		PlayerNearRadius: cfg.Engine.PlayerNearRadius,
		DefaultRetreat:   cfg.Engine.RetreatFraction,
	}, registry, factory, store, world, logger)

	clock := time.Now().UTC()
	for i, sc := range cfg.Arena.Spawns {
		p := spawn.Point{
			ID:         fmt.Sprintf("%s-%d", sc.Creature, i+1),
			CreatureID: sc.Creature,
			Home:       body.Vec{X: sc.X, Y: sc.Y},
		}
		h, err := spawner.Add(ctx, clock, p)
		if err != nil {
			rep.Errors[p.ID] = err
			logger.Error("spawning creature", zap.String("spawn", p.ID), zap.Error(err))
			continue
		}
		logger.Info("creature spawned", zap.String("spawn", p.ID), zap.Stringer("handle", h))
	}

	journal := sim.NewJournal(logger)
	loop := engine.NewFrameLoop(cfg.Engine.TickInterval, logger)
	loop.Register("arena", func(now time.Time) {
		world.Step(now)
		spawner.Tick(ctx, now)
		journal.Observe(now, spawner.Statuses())
	})

	lifecycle.Add("frame-loop", &server.FuncService{
		StartFn: func(ctx context.Context) error {
			if cfg.Arena.Realtime {
				runCtx, cancel := context.WithTimeout(ctx, cfg.Arena.Duration)
				defer cancel()
				loop.Run(runCtx)
				return nil
			}
			end := loop.Simulate(ctx, clock, cfg.Arena.Duration)
			logger.Info("simulation finished", zap.Duration("simulated", end.Sub(clock)))
			return nil
		},
		// Stopped before the store, so the last health and phase reach it.
		StopFn: func() {
			flushCtx, cancel := context.WithTimeout(context.Background(), flushTimeout)
			defer cancel()
			at := loop.LastFrame()
			if at.IsZero() {
				at = clock
			}
			if err := spawner.Flush(flushCtx, at); err != nil {
				logger.Warn("flushing boss statuses", zap.Error(err))
			}
		},
	})

	logger.Info("arena initialized",
		zap.Int("spawns", len(cfg.Arena.Spawns)),
		zap.Bool("realtime", cfg.Arena.Realtime),
		zap.Duration("duration", cfg.Arena.Duration),
	)

	err = lifecycle.Run(ctx)
	rep.Frames = loop.Frames()
	rep.Summary = journal.Summary()
	rep.DummyDamage = dummy.DamageTaken()
	rep.Final = spawner.Statuses()
	return rep, err
}

// connectStore opens the status repository and a service that health-checks
// the pool and closes it on shutdown.
func connectStore(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (*postgres.BossStatusRepository, server.Service, error) {
	dbStart := time.Now()
	pool, err := postgres.NewPool(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to database: %w", err)
	}
	logger.Info("database connected",
		zap.String("host", cfg.Host),
		zap.Duration("elapsed", time.Since(dbStart)),
	)
	repo := postgres.NewBossStatusRepository(pool.DB())
	if due, err := repo.PendingRespawns(ctx, time.Now()); err != nil {
		logger.Warn("listing pending respawns", zap.Error(err))
	} else if len(due) > 0 {
		logger.Info("bosses due to respawn", zap.Int("count", len(due)))
	}
	svc := &server.FuncService{
		StartFn: func(ctx context.Context) error {
			ticker := time.NewTicker(30 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
					if err := pool.Health(ctx, 5*time.Second); err != nil {
						logger.Warn("database health check failed", zap.Error(err))
						continue
					}
					st := pool.Stats()
					logger.Debug("database pool",
						zap.Int32("total", st.Total),
						zap.Int32("idle", st.Idle),
						zap.Int32("acquired", st.Acquired))
				}
			}
		},
		StopFn: pool.Close,
	}
	return repo, svc, nil
}

// actorInfo snapshots a for Lua. It runs on the frame loop goroutine.
func actorInfo(a *brain.Actor) scripting.ActorInfo {
	st := a.Status()
	info := scripting.ActorInfo{
		ID:           st.ID,
		CreatureID:   st.CreatureID,
		Health:       st.Health,
		MaxHealth:    st.MaxHealth,
		Phase:        st.Phase,
		MainState:    st.Main.String(),
		Capabilities: a.Capabilities().Sorted(),
	}
	if st.HasSub {
		info.SubState = st.Sub.String()
	}
	info.TargetDistance, info.HasTarget = a.TargetDistance()
	return info
}
