package sim

import "time"

// DefaultClipLength is used for triggers without a registered Clip.
const DefaultClipLength = 600 * time.Millisecond

// Clip is the animation a trigger plays.
type Clip struct {
	// Tag is reported by IsTagFinished; it defaults to the trigger name.
	Tag    string
	Length time.Duration
}

// DefaultClips covers the triggers built-in pattern kinds and states fire.
func DefaultClips() map[string]Clip {
	return map[string]Clip{
		"attack":        {Tag: "attack", Length: 700 * time.Millisecond},
		"roar":          {Tag: "roar", Length: 1500 * time.Millisecond},
		"look":          {Tag: "look", Length: 1200 * time.Millisecond},
		"breath_end":    {Tag: "breath_end", Length: 500 * time.Millisecond},
		"stun":          {Tag: "stun", Length: 800 * time.Millisecond},
		"part_break":    {Tag: "part_break", Length: time.Second},
		"die":           {Tag: "die", Length: 1500 * time.Millisecond},
		"charge":        {Tag: "charge", Length: 400 * time.Millisecond},
		"leap":          {Tag: "leap", Length: 400 * time.Millisecond},
		"tail_sweep":    {Tag: "tail_sweep", Length: 800 * time.Millisecond},
		"quake_slam":    {Tag: "quake_slam", Length: 400 * time.Millisecond},
		"charge_end":    {Tag: "charge_end", Length: 300 * time.Millisecond},
		"leap_windup":   {Tag: "leap_windup", Length: 500 * time.Millisecond},
		"tail_windup":   {Tag: "tail_windup", Length: 400 * time.Millisecond},
		"quake_raise":   {Tag: "quake_raise", Length: 900 * time.Millisecond},
		"charge_windup": {Tag: "charge_windup", Length: 600 * time.Millisecond},
	}
}

// Animator plays clips on an internal clock advanced by Advance.
//
// Animator is not safe for concurrent use.
type Animator struct {
	clips   map[string]Clip
	clock   time.Duration
	started map[string]time.Duration
	lengths map[string]time.Duration
	bools   map[string]bool
	ints    map[string]int
	last    string
}

// NewAnimator creates an Animator over clips; nil uses DefaultClips.
func NewAnimator(clips map[string]Clip) *Animator {
	if clips == nil {
		clips = DefaultClips()
	}
	return &Animator{
		clips:   clips,
		started: make(map[string]time.Duration),
		lengths: make(map[string]time.Duration),
		bools:   make(map[string]bool),
		ints:    make(map[string]int),
	}
}

// SetTrigger restarts the clip bound to name.
func (a *Animator) SetTrigger(name string) {
	clip, ok := a.clips[name]
	if !ok {
		clip = Clip{Length: DefaultClipLength}
	}
	if clip.Tag == "" {
		clip.Tag = name
	}
	a.started[clip.Tag] = a.clock
	a.lengths[clip.Tag] = clip.Length
	a.last = name
}

func (a *Animator) SetBool(name string, value bool) { a.bools[name] = value }

func (a *Animator) SetInt(name string, value int) { a.ints[name] = value }

// IsTagFinished reports whether the latest clip tagged tag has played to its end.
// A tag that never played is not finished.
func (a *Animator) IsTagFinished(tag string) bool {
	start, ok := a.started[tag]
	if !ok {
		return false
	}
	return a.clock-start >= a.lengths[tag]
}

// Advance moves the clip clock forward.
func (a *Animator) Advance(dt time.Duration) {
	if dt > 0 {
		a.clock += dt
	}
}

// Bool returns a parameter set by SetBool.
func (a *Animator) Bool(name string) bool { return a.bools[name] }

// Int returns a parameter set by SetInt.
func (a *Animator) Int(name string) int { return a.ints[name] }

// LastTrigger returns the most recent trigger name.
func (a *Animator) LastTrigger() string { return a.last }
