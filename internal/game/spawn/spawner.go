package spawn

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/bossai/internal/game/body"
	"github.com/cory-johannsen/bossai/internal/game/brain"
	"github.com/cory-johannsen/bossai/internal/game/creature"
)

// Point is a fixed place where one creature lives.
type Point struct {
	ID         string
	CreatureID string
	Home       body.Vec
}

// Templates resolves creature templates; *creature.Registry satisfies it.
type Templates interface {
	Get(id string) (*creature.Template, bool)
}

// PlayerLocator reports whether any player stands near a position.
type PlayerLocator interface {
	AnyWithin(p body.Vec, radius float64) bool
}

// ActorFactory builds an actor and its collaborators for one spawn point.
//
// A factory may return a non-nil inert actor together with an error; the
// spawner keeps such an actor in place so the failure stays visible.
type ActorFactory func(p Point, bp brain.Blueprint) (*brain.Actor, error)

// Config tunes the corpse lifecycle.
type Config struct {
	// Linger is how long a corpse stays before it may despawn.
	Linger time.Duration
	// PlayerNearRadius blocks despawn while a player is this close to the corpse.
	PlayerNearRadius float64
	// DefaultRetreat is passed to templates that leave retreat_fraction unset.
	DefaultRetreat float64
}

type lifeState int

const (
	lifeAlive lifeState = iota
	lifeCorpse
	lifeDespawned
	lifeRetired
)

func (l lifeState) String() string {
	switch l {
	case lifeAlive:
		return "alive"
	case lifeCorpse:
		return "corpse"
	case lifeDespawned:
		return "despawned"
	default:
		return "retired"
	}
}

type entry struct {
	point     Point
	tmpl      *creature.Template
	actor     *brain.Actor
	handle    Handle
	state     lifeState
	respawnAt time.Time
	// savedPhase is the phase index last written to the store.
	savedPhase int
}

// Spawner owns every actor in a world and drives its death and respawn cycle.
//
// Spawner is safe for concurrent use, but its methods must not be called from
// inside an actor's Tick: Tick holds the spawner lock while actors run.
type Spawner struct {
	mu        sync.Mutex
	cfg       Config
	templates Templates
	factory   ActorFactory
	store     StatusStore
	players   PlayerLocator
	logger    *zap.Logger

	arena   *Arena[*entry]
	entries map[string]*entry
	order   []string
}

// NewSpawner creates a Spawner.
//
// Precondition: templates and factory must be non-nil.
// Postcondition: a nil store uses a MemoryStore; a nil players locator never
// blocks despawn; a nil logger discards output.
func NewSpawner(cfg Config, templates Templates, factory ActorFactory, store StatusStore, players PlayerLocator, logger *zap.Logger) *Spawner {
	if templates == nil {
		panic("spawn.NewSpawner: templates must not be nil")
	}
	if factory == nil {
		panic("spawn.NewSpawner: factory must not be nil")
	}
	if store == nil {
		store = NewMemoryStore()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Spawner{
		cfg:       cfg,
		templates: templates,
		factory:   factory,
		store:     store,
		players:   players,
		logger:    logger,
		arena:     NewArena[*entry](),
		entries:   make(map[string]*entry),
	}
}

// Add creates the actor for p and restores its persisted status.
//
// Postcondition: a point whose stored status is dead resumes its respawn
// timer instead of spawning; the returned Handle is then zero and stale.
// A misconfigured actor is kept inert and its error is returned alongside
// the Handle.
func (s *Spawner) Add(ctx context.Context, now time.Time, p Point) (Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.ID == "" {
		return Handle{}, errors.New("spawn.Spawner.Add: point ID must not be empty")
	}
	if _, dup := s.entries[p.ID]; dup {
		return Handle{}, fmt.Errorf("spawn.Spawner.Add: point %q already added", p.ID)
	}
	tmpl, ok := s.templates.Get(p.CreatureID)
	if !ok {
		return Handle{}, fmt.Errorf("spawn.Spawner.Add: point %q: unknown creature %q", p.ID, p.CreatureID)
	}

	actor, buildErr := s.build(p, tmpl)
	if actor == nil {
		return Handle{}, fmt.Errorf("spawn.Spawner.Add: point %q: %w", p.ID, buildErr)
	}
	e := &entry{point: p, tmpl: tmpl, actor: actor}
	s.entries[p.ID] = e
	s.order = append(s.order, p.ID)

	if buildErr != nil {
		s.logger.Error("spawned misconfigured actor; it stays inert",
			zap.String("spawn", p.ID), zap.String("creature", p.CreatureID), zap.Error(buildErr))
		e.handle = s.arena.Insert(e)
		return e.handle, buildErr
	}
	if err := actor.Start(now); err != nil {
		return Handle{}, fmt.Errorf("spawn.Spawner.Add: point %q: %w", p.ID, err)
	}

	st, found, err := s.store.Load(ctx, p.ID)
	if err != nil {
		s.logger.Warn("loading boss status failed; spawning fresh", zap.String("spawn", p.ID), zap.Error(err))
	}
	if found && !st.Alive {
		actor.Despawn()
		e.respawnAt = st.RespawnAt
		e.state = lifeDespawned
		if st.RespawnAt.IsZero() {
			e.state = lifeRetired
		}
		s.logger.Info("boss restored dead",
			zap.String("spawn", p.ID), zap.Time("respawn_at", st.RespawnAt))
		return Handle{}, nil
	}
	if found && st.Health > 0 && st.CreatureID == p.CreatureID {
		actor.Restore(st.Health, st.Phase)
	}
	e.handle = s.arena.Insert(e)
	s.save(ctx, e, now)
	return e.handle, nil
}

// Tick advances every live actor and then the corpse lifecycle.
func (s *Spawner) Tick(ctx context.Context, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range s.order {
		e := s.entries[id]
		switch e.state {
		case lifeAlive:
			e.actor.Tick(now)
			if e.actor.Dead() {
				e.state = lifeCorpse
				s.logger.Info("boss died", zap.String("spawn", id), zap.String("creature", e.point.CreatureID))
				s.save(ctx, e, now)
				continue
			}
			if e.actor.PhaseIndex() != e.savedPhase {
				s.save(ctx, e, now)
			}
		case lifeCorpse:
			e.actor.Tick(now)
			if now.Sub(e.actor.DiedAt()) < s.cfg.Linger {
				continue
			}
			if s.players != nil && s.players.AnyWithin(e.actor.Position(), s.cfg.PlayerNearRadius) {
				continue
			}
			s.despawn(ctx, e, now)
		case lifeDespawned:
			if !now.Before(e.respawnAt) {
				s.respawn(ctx, e, now)
			}
		}
	}
}

func (s *Spawner) despawn(ctx context.Context, e *entry, now time.Time) {
	e.actor.Despawn()
	if err := s.arena.Remove(e.handle); err != nil {
		s.logger.Warn("despawn of untracked actor", zap.String("spawn", e.point.ID), zap.Error(err))
	}
	e.state = lifeRetired
	e.respawnAt = time.Time{}
	if delay := e.tmpl.RespawnDelay; delay > 0 {
		e.state = lifeDespawned
		e.respawnAt = now.Add(delay)
	}
	s.logger.Info("boss despawned",
		zap.String("spawn", e.point.ID),
		zap.Stringer("next", e.state),
		zap.Time("respawn_at", e.respawnAt))
	s.save(ctx, e, now)
}

// respawn reinitializes the actor, rebuilding it first when its template was reloaded.
func (s *Spawner) respawn(ctx context.Context, e *entry, now time.Time) {
	if tmpl, ok := s.templates.Get(e.point.CreatureID); !ok {
		s.logger.Warn("creature template gone; respawning previous version", zap.String("spawn", e.point.ID))
	} else if tmpl != e.tmpl {
		actor, err := s.build(e.point, tmpl)
		if err == nil {
			e.actor = actor
			e.tmpl = tmpl
			s.logger.Info("respawning with reloaded template", zap.String("spawn", e.point.ID))
		} else {
			s.logger.Warn("reloaded template unusable; respawning previous version",
				zap.String("spawn", e.point.ID), zap.Error(err))
		}
	}

	var err error
	if e.actor.Despawned() {
		err = e.actor.Reinitialize(now)
	} else {
		err = e.actor.Start(now)
	}
	if err != nil {
		s.logger.Error("respawn failed", zap.String("spawn", e.point.ID), zap.Error(err))
		e.state = lifeRetired
		return
	}
	e.state = lifeAlive
	e.respawnAt = time.Time{}
	e.handle = s.arena.Insert(e)
	s.logger.Info("boss respawned", zap.String("spawn", e.point.ID), zap.Stringer("handle", e.handle))
	s.save(ctx, e, now)
}

func (s *Spawner) build(p Point, tmpl *creature.Template) (*brain.Actor, error) {
	bp, err := tmpl.Blueprint(p.Home, s.cfg.DefaultRetreat)
	if err != nil {
		return nil, err
	}
	return s.factory(p, bp)
}

// Flush writes the status of every living actor, so health lost since the
// last phase change survives a shutdown.
//
// Postcondition: returns the joined errors of every failed write.
func (s *Spawner) Flush(ctx context.Context, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	n := 0
	for _, id := range s.order {
		e := s.entries[id]
		if e.state != lifeAlive {
			continue
		}
		if err := s.write(ctx, e, now); err != nil {
			errs = append(errs, fmt.Errorf("spawn %q: %w", id, err))
			continue
		}
		n++
	}
	s.logger.Info("boss statuses flushed", zap.Int("saved", n), zap.Int("failed", len(errs)))
	return errors.Join(errs...)
}

func (s *Spawner) save(ctx context.Context, e *entry, now time.Time) {
	if err := s.write(ctx, e, now); err != nil {
		s.logger.Warn("saving boss status failed", zap.String("spawn", e.point.ID), zap.Error(err))
	}
}

func (s *Spawner) write(ctx context.Context, e *entry, now time.Time) error {
	st := e.actor.Status()
	row := Status{
		SpawnID:    e.point.ID,
		CreatureID: e.point.CreatureID,
		Encounter:  st.Encounter,
		Alive:      e.state == lifeAlive,
		Health:     st.Health,
		Phase:      st.Phase,
		DiedAt:     st.DiedAt,
		RespawnAt:  e.respawnAt,
		UpdatedAt:  now,
	}
	if err := s.store.Save(ctx, row); err != nil {
		return err
	}
	e.savedPhase = st.Phase
	return nil
}

// Get returns the live actor addressed by h.
func (s *Spawner) Get(h Handle) (*brain.Actor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.arena.Get(h)
	if err != nil {
		return nil, err
	}
	return e.actor, nil
}

// Handle returns the current handle of the actor at spawnID, or false when
// it is despawned or unknown.
func (s *Spawner) Handle(spawnID string) (Handle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[spawnID]
	if !ok || e.state == lifeDespawned || e.state == lifeRetired {
		return Handle{}, false
	}
	return e.handle, true
}

// Live returns the number of actors currently in the world, corpses included.
func (s *Spawner) Live() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.arena.Len()
}

// Each calls fn for every actor in the world, corpses included.
func (s *Spawner) Each(fn func(Handle, *brain.Actor)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.arena.Each(func(h Handle, e *entry) { fn(h, e.actor) })
}

// Statuses returns a snapshot of every actor in the world in spawn order.
func (s *Spawner) Statuses() []brain.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]brain.Status, 0, len(s.order))
	for _, id := range s.order {
		if e := s.entries[id]; e.state == lifeAlive || e.state == lifeCorpse {
			out = append(out, e.actor.Status())
		}
	}
	return out
}
