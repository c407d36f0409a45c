package brain

import (
	"go.uber.org/zap"

	"github.com/cory-johannsen/bossai/internal/game/fsm"
	"github.com/cory-johannsen/bossai/internal/game/health"
)

// drainDamage applies buffered damage in arrival order.
//
// Postcondition: Dead pre-empts everything and is applied at most once; Destruct is
// forced at most once per life; retreat, phase and stagger become flags for Combat.
func (a *Actor) drainDamage() {
	a.mu.Lock()
	batch := a.pending
	a.pending = nil
	a.mu.Unlock()

	for _, info := range batch {
		if a.health.Dead() {
			return
		}
		res := a.health.Apply(info)
		if res.Events == 0 {
			continue
		}
		a.onDamage(info, res)
	}
}

func (a *Actor) onDamage(info health.DamageInfo, res health.Result) {
	if res.Events.Has(health.EventDead) {
		a.logger.Info("actor died", zap.String("attacker", info.Attacker))
		a.forceMain(fsm.MainDead)
		return
	}

	if res.Events.Has(health.EventFirstHit) {
		a.provoked = true
	}
	if !a.targetValid() && info.Attacker != "" {
		if t, ok := a.perception.Lookup(info.Attacker); ok && t.Alive() {
			a.target = t
		}
	}

	if res.Events.Has(health.EventRetreat) && a.Has(CapRetreats) {
		a.retreatRequested = true
		a.logger.Info("retreat threshold crossed", zap.Float64("fraction", res.Fraction))
	}

	if adv, ok := a.phases.Observe(res.Fraction); ok {
		a.applyEntry(adv.Phase.Entry, adv.To)
		if adv.Announce {
			a.phaseChanged = true
		}
		a.logger.Info("phase advanced",
			zap.Int("from", adv.From),
			zap.Int("to", adv.To),
			zap.Float64("fraction", res.Fraction),
		)
	}

	if info.Critical && a.Has(CapStaggerable) {
		a.staggered = true
	}

	if a.Has(CapDestructible) && !a.partBroken && info.PartDamage > 0 {
		a.partDamage += info.PartDamage
		if a.partDamage >= a.bp.PartDurability {
			a.partBroken = true
			a.logger.Info("part broken", zap.Float64("part_damage", a.partDamage))
			a.forceMain(fsm.MainDestruct)
		}
	}
}
