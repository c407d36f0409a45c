package pattern

import "time"

// Cooldowns tracks when each pattern definition may be used again.
// Entries are keyed by definition ID so fresh instances share bookkeeping.
type Cooldowns struct {
	readyAt map[string]time.Time
	scale   float64
	special time.Duration
}

// NewCooldowns returns an empty tracker with scale 1.
func NewCooldowns() *Cooldowns {
	return &Cooldowns{readyAt: make(map[string]time.Time), scale: 1}
}

// Ready reports whether id is off cooldown at now.
func (c *Cooldowns) Ready(id string, now time.Time) bool {
	t, ok := c.readyAt[id]
	return !ok || !now.Before(t)
}

// Start puts def on cooldown from now.
//
// Postcondition: Special definitions use the special cooldown when one is set;
// all other durations are multiplied by the current scale.
func (c *Cooldowns) Start(def *Definition, now time.Time) {
	d := def.Cooldown
	if def.Special && c.special > 0 {
		d = c.special
	}
	d = time.Duration(float64(d) * c.scale)
	if d <= 0 {
		delete(c.readyAt, def.ID)
		return
	}
	c.readyAt[def.ID] = now.Add(d)
}

// SetScale sets the multiplier applied by later Start calls. Non-positive values reset it to 1.
func (c *Cooldowns) SetScale(f float64) {
	if f <= 0 {
		f = 1
	}
	c.scale = f
}

// Scale returns the current multiplier.
func (c *Cooldowns) Scale() float64 { return c.scale }

// SetSpecial sets the cooldown used by Special definitions.
func (c *Cooldowns) SetSpecial(d time.Duration) { c.special = d }

// Reset clears every entry and restores defaults.
func (c *Cooldowns) Reset() {
	clear(c.readyAt)
	c.scale = 1
	c.special = 0
}
