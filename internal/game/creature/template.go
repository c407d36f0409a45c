// Package creature loads per-creature behavior templates from YAML and turns
// them into actor blueprints.
package creature

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cory-johannsen/bossai/internal/game/body"
	"github.com/cory-johannsen/bossai/internal/game/brain"
	"github.com/cory-johannsen/bossai/internal/game/pattern"
	"github.com/cory-johannsen/bossai/internal/game/phase"
)

// ErrInvalidTemplate is wrapped by every template validation failure.
var ErrInvalidTemplate = errors.New("invalid creature template")

// Template defines one creature's tuning along with its patterns and phases.
type Template struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	// Archetype names the state graph driving the creature, e.g. "brute".
	Archetype string  `yaml:"archetype"`
	MaxHP     float64 `yaml:"max_hp"`
	// RetreatFraction overrides the engine default when non-zero.
	RetreatFraction float64       `yaml:"retreat_fraction"`
	DetectRange     float64       `yaml:"detect_range"`
	LoseRange       float64       `yaml:"lose_range"`
	LeashRange      float64       `yaml:"leash_range"`
	WalkSpeed       float64       `yaml:"walk_speed"`
	RunSpeed        float64       `yaml:"run_speed"`
	Capabilities    []string      `yaml:"capabilities"`
	PartDurability  float64       `yaml:"part_durability"`
	RestRegenPerSec float64       `yaml:"rest_regen_per_sec"`
	StunDuration    time.Duration `yaml:"stun_duration"`
	// RespawnDelay is how long after despawn the creature returns; 0 means it does not respawn.
	RespawnDelay time.Duration        `yaml:"respawn_delay"`
	IdlePatterns []string             `yaml:"idle_patterns"`
	Patterns     []pattern.Definition `yaml:"patterns"`
	Phases       []phase.Phase        `yaml:"phases"`

	library *pattern.Library
	caps    []brain.Capability
	source  string
}

// Source returns the file the template was loaded from, or "" for in-memory templates.
func (t *Template) Source() string { return t.source }

// Validate checks that the template satisfies basic invariants and builds its
// pattern library.
//
// Precondition: t must not be nil.
// Postcondition: Returns nil iff the template can produce a Blueprint; every
// error wraps ErrInvalidTemplate.
func (t *Template) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("creature template: id must not be empty: %w", ErrInvalidTemplate)
	}
	fail := func(format string, args ...any) error {
		return fmt.Errorf("creature template %q: %s: %w", t.ID, fmt.Sprintf(format, args...), ErrInvalidTemplate)
	}
	if _, err := brain.LookupArchetype(t.Archetype); err != nil {
		return fail("%v", err)
	}
	if t.MaxHP <= 0 {
		return fail("max_hp must be > 0")
	}
	if t.RetreatFraction < 0 || t.RetreatFraction >= 1 {
		return fail("retreat_fraction must be in [0, 1), got %g", t.RetreatFraction)
	}
	if t.DetectRange <= 0 {
		return fail("detect_range must be > 0")
	}
	if t.LoseRange != 0 && t.LoseRange < t.DetectRange {
		return fail("lose_range must be >= detect_range")
	}
	if t.WalkSpeed <= 0 || t.RunSpeed <= 0 {
		return fail("walk_speed and run_speed must be > 0")
	}
	if t.StunDuration < 0 || t.RespawnDelay < 0 {
		return fail("durations must not be negative")
	}
	caps := make([]brain.Capability, 0, len(t.Capabilities))
	for _, name := range t.Capabilities {
		c, err := brain.ParseCapability(name)
		if err != nil {
			return fail("%v", err)
		}
		caps = append(caps, c)
	}
	lib, err := pattern.NewLibrary(t.Patterns)
	if err != nil {
		return fail("%v", err)
	}
	if _, err := lib.Resolve(t.IdlePatterns); err != nil {
		return fail("idle_patterns: %v", err)
	}
	table, err := phase.NewTable(t.Phases)
	if err != nil {
		return fail("%v", err)
	}
	for i := 0; i < table.Len(); i++ {
		if _, err := lib.Resolve(table.At(i).Patterns); err != nil {
			return fail("phase %d: %v", i, err)
		}
	}
	t.library = lib
	t.caps = caps
	return nil
}

// Blueprint builds the actor configuration for one spawn of this template.
//
// Precondition: Validate has returned nil.
// Postcondition: Returns a Blueprint sharing the template's pattern library;
// defaultRetreat is used when the template leaves retreat_fraction unset.
func (t *Template) Blueprint(home body.Vec, defaultRetreat float64) (brain.Blueprint, error) {
	if t.library == nil {
		if err := t.Validate(); err != nil {
			return brain.Blueprint{}, err
		}
	}
	retreat := t.RetreatFraction
	if retreat == 0 {
		retreat = defaultRetreat
	}
	return brain.Blueprint{
		CreatureID:      t.ID,
		Archetype:       t.Archetype,
		MaxHP:           t.MaxHP,
		RetreatFraction: retreat,
		DetectRange:     t.DetectRange,
		LoseRange:       t.LoseRange,
		LeashRange:      t.LeashRange,
		WalkSpeed:       t.WalkSpeed,
		RunSpeed:        t.RunSpeed,
		Capabilities:    append([]brain.Capability(nil), t.caps...),
		PartDurability:  t.PartDurability,
		RestRegenPerSec: t.RestRegenPerSec,
		StunDuration:    t.StunDuration,
		Home:            home,
		Phases:          append([]phase.Phase(nil), t.Phases...),
		IdlePatterns:    append([]string(nil), t.IdlePatterns...),
		Library:         t.library,
	}, nil
}

// LoadTemplateFromBytes parses a single creature template from raw YAML bytes.
//
// Precondition: data must be valid YAML for a single Template.
// Postcondition: Returns a validated *Template, or an error.
func LoadTemplateFromBytes(data []byte) (*Template, error) {
	var tmpl Template
	if err := yaml.Unmarshal(data, &tmpl); err != nil {
		return nil, fmt.Errorf("parsing template YAML: %w", err)
	}
	if err := tmpl.Validate(); err != nil {
		return nil, err
	}
	return &tmpl, nil
}

// LoadTemplateFile reads and validates one template file.
func LoadTemplateFile(path string) (*Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %q: %w", path, err)
	}
	tmpl, err := LoadTemplateFromBytes(data)
	if err != nil {
		return nil, fmt.Errorf("loading %q: %w", path, err)
	}
	tmpl.source = path
	return tmpl, nil
}

// LoadTemplates reads all *.yaml and *.yml files in dir and returns the parsed
// templates sorted by ID.
//
// Precondition: dir must be a readable directory.
// Postcondition: Returns all templates or an error on the first parse or validate
// failure; on error, the partial result is discarded. Duplicate IDs are an error.
func LoadTemplates(dir string) ([]*Template, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading creature dir %q: %w", dir, err)
	}

	seen := make(map[string]string)
	var templates []*Template
	for _, entry := range entries {
		if entry.IsDir() || !isTemplateFile(entry.Name()) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		tmpl, err := LoadTemplateFile(path)
		if err != nil {
			return nil, err
		}
		if prev, dup := seen[tmpl.ID]; dup {
			return nil, fmt.Errorf("creature %q defined in both %q and %q: %w", tmpl.ID, prev, path, ErrInvalidTemplate)
		}
		seen[tmpl.ID] = path
		templates = append(templates, tmpl)
	}
	sort.Slice(templates, func(i, j int) bool { return templates[i].ID < templates[j].ID })
	return templates, nil
}

func isTemplateFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}
