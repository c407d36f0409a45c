package sim

import (
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/bossai/internal/game/brain"
)

// Summary counts what a Journal has observed.
type Summary struct {
	MainTransitions int
	SubTransitions  int
	PhaseChanges    int
	Deaths          int
	Despawns        int
	Respawns        int
}

// Journal diffs successive actor snapshots and logs every change.
//
// Journal is not safe for concurrent use.
type Journal struct {
	logger  *zap.Logger
	last    map[string]brain.Status
	present map[string]bool
	sum     Summary
}

// NewJournal creates an empty Journal; a nil logger discards output.
func NewJournal(logger *zap.Logger) *Journal {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Journal{
		logger:  logger,
		last:    make(map[string]brain.Status),
		present: make(map[string]bool),
	}
}

// Observe records the snapshot taken at now.
func (j *Journal) Observe(now time.Time, statuses []brain.Status) {
	seen := make(map[string]bool, len(statuses))
	for _, st := range statuses {
		seen[st.ID] = true
		j.present[st.ID] = true
		prev, known := j.last[st.ID]
		j.last[st.ID] = st
		log := j.logger.With(zap.String("actor", st.ID), zap.Time("at", now))

		switch {
		case !known:
			log.Info("actor appeared", zap.String("creature", st.CreatureID), zap.Stringer("main", st.Main))
			continue
		case prev.Encounter != st.Encounter:
			j.sum.Respawns++
			log.Info("actor respawned", zap.String("encounter", st.Encounter.String()))
			continue
		}

		if prev.Main != st.Main {
			j.sum.MainTransitions++
			log.Info("main state changed", zap.Stringer("from", prev.Main), zap.Stringer("to", st.Main),
				zap.Float64("health", st.Health), zap.String("target", st.Target))
		}
		if prev.HasSub != st.HasSub || prev.Sub != st.Sub {
			j.sum.SubTransitions++
			if st.HasSub {
				log.Debug("sub state changed", zap.Stringer("main", st.Main), zap.Stringer("to", st.Sub))
			}
		}
		if prev.Phase != st.Phase {
			j.sum.PhaseChanges++
			log.Info("phase changed", zap.Int("from", prev.Phase), zap.Int("to", st.Phase),
				zap.Float64("health", st.Health))
		}
		if st.Dead && !prev.Dead {
			j.sum.Deaths++
			log.Info("actor died", zap.Time("died_at", st.DiedAt))
		}
	}

	for id, here := range j.present {
		if here && !seen[id] {
			j.present[id] = false
			j.sum.Despawns++
			j.logger.Info("actor despawned", zap.String("actor", id), zap.Time("at", now))
		}
	}
}

// Summary returns the counts so far.
func (j *Journal) Summary() Summary { return j.sum }
