// Package config provides Viper-based configuration loading for the behavior engine.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DatabaseConfig holds PostgreSQL connection settings for boss status persistence.
type DatabaseConfig struct {
	// Enabled selects the PostgreSQL status store; false uses the in-memory store.
	Enabled         bool          `mapstructure:"enabled"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

// DSN returns the PostgreSQL connection string.
//
// Precondition: Host, Port, User, and Name must be non-empty.
// Postcondition: Returns a valid PostgreSQL DSN string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is the log output format: "json" or "console".
	Format string `mapstructure:"format"`
}

// EngineConfig holds settings shared by every actor the engine drives.
type EngineConfig struct {
	// TickInterval is the wall-clock duration of one frame.
	TickInterval time.Duration `mapstructure:"tick_interval"`
	// RetreatFraction is the default health fraction below which an actor may disengage.
	// Creature templates may override it.
	RetreatFraction float64 `mapstructure:"retreat_fraction"`
	// LingerDuration is how long a corpse stays before the spawner may despawn it.
	LingerDuration time.Duration `mapstructure:"linger_duration"`
	// PlayerNearRadius blocks despawn while a player is within this distance of the corpse.
	PlayerNearRadius float64 `mapstructure:"player_near_radius"`
	// CreaturesDir is the directory of creature YAML templates.
	CreaturesDir string `mapstructure:"creatures_dir"`
	// ScriptsDir is the directory of Lua precondition scripts; empty disables scripting.
	ScriptsDir string `mapstructure:"scripts_dir"`
	// WatchCreatures enables hot reload of creature templates.
	WatchCreatures bool `mapstructure:"watch_creatures"`
	// ScriptInstructionLimit caps Lua opcodes per hook call; 0 uses the scripting default.
	ScriptInstructionLimit int `mapstructure:"script_instruction_limit"`
}

// SpawnConfig places one creature in the arena.
type SpawnConfig struct {
	Creature string  `mapstructure:"creature"`
	X        float64 `mapstructure:"x"`
	Y        float64 `mapstructure:"y"`
}

// DummyConfig describes the scripted opponent used by the arena simulator.
type DummyConfig struct {
	X float64 `mapstructure:"x"`
	Y float64 `mapstructure:"y"`
	// Damage is the raw damage dealt per swing.
	Damage float64 `mapstructure:"damage"`
	// PartDamage is dealt alongside Damage against destructible parts.
	PartDamage float64 `mapstructure:"part_damage"`
	// Interval is the time between swings.
	Interval time.Duration `mapstructure:"interval"`
	// CriticalEvery marks every Nth swing as critical; 0 disables criticals.
	CriticalEvery int `mapstructure:"critical_every"`
	// Reach is the maximum distance at which the dummy can land a swing.
	Reach float64 `mapstructure:"reach"`
}

// ArenaConfig holds settings for the headless encounter simulator.
type ArenaConfig struct {
	Duration time.Duration `mapstructure:"duration"`
	// Realtime paces frames on the wall clock; false simulates them back to back.
	Realtime bool          `mapstructure:"realtime"`
	Seed     int64         `mapstructure:"seed"`
	Spawns   []SpawnConfig `mapstructure:"spawns"`
	Dummy    DummyConfig   `mapstructure:"dummy"`
}

// Config is the top-level application configuration.
type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Engine   EngineConfig   `mapstructure:"engine"`
	Arena    ArenaConfig    `mapstructure:"arena"`
}

// Validate checks all configuration invariants.
//
// Postcondition: Returns nil if configuration is valid, or an error describing all violations.
func (c Config) Validate() error {
	var errs []string

	if c.Database.Enabled {
		if err := validateDatabase(c.Database); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if err := validateLogging(c.Logging); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateEngine(c.Engine); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateArena(c.Arena); err != nil {
		errs = append(errs, err.Error())
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validateDatabase(d DatabaseConfig) error {
	var errs []string
	if d.Host == "" {
		errs = append(errs, "database.host must not be empty")
	}
	if d.Port < 1 || d.Port > 65535 {
		errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", d.Port))
	}
	if d.User == "" {
		errs = append(errs, "database.user must not be empty")
	}
	if d.Name == "" {
		errs = append(errs, "database.name must not be empty")
	}
	validSSL := map[string]bool{"disable": true, "require": true, "verify-ca": true, "verify-full": true}
	if !validSSL[d.SSLMode] {
		errs = append(errs, fmt.Sprintf("database.sslmode must be one of [disable, require, verify-ca, verify-full], got %q", d.SSLMode))
	}
	if d.MaxConns < 1 {
		errs = append(errs, fmt.Sprintf("database.max_conns must be >= 1, got %d", d.MaxConns))
	}
	if d.MinConns < 0 {
		errs = append(errs, fmt.Sprintf("database.min_conns must be >= 0, got %d", d.MinConns))
	}
	if d.MinConns > d.MaxConns {
		errs = append(errs, "database.min_conns must not exceed database.max_conns")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateLogging(l LoggingConfig) error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[l.Level] {
		return fmt.Errorf("logging.level must be one of [debug, info, warn, error], got %q", l.Level)
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("logging.format must be one of [json, console], got %q", l.Format)
	}
	return nil
}

func validateEngine(e EngineConfig) error {
	var errs []string
	if e.TickInterval <= 0 {
		errs = append(errs, fmt.Sprintf("engine.tick_interval must be > 0, got %s", e.TickInterval))
	}
	if e.RetreatFraction <= 0 || e.RetreatFraction >= 1 {
		errs = append(errs, fmt.Sprintf("engine.retreat_fraction must be in (0, 1), got %g", e.RetreatFraction))
	}
	if e.LingerDuration < 0 {
		errs = append(errs, "engine.linger_duration must not be negative")
	}
	if e.PlayerNearRadius < 0 {
		errs = append(errs, "engine.player_near_radius must not be negative")
	}
	if e.CreaturesDir == "" {
		errs = append(errs, "engine.creatures_dir must not be empty")
	}
	if e.ScriptInstructionLimit < 0 {
		errs = append(errs, fmt.Sprintf("engine.script_instruction_limit must be >= 0, got %d", e.ScriptInstructionLimit))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateArena(a ArenaConfig) error {
	var errs []string
	if a.Duration < 0 {
		errs = append(errs, "arena.duration must not be negative")
	}
	for i, s := range a.Spawns {
		if s.Creature == "" {
			errs = append(errs, fmt.Sprintf("arena.spawns[%d].creature must not be empty", i))
		}
	}
	if a.Dummy.Damage < 0 || a.Dummy.PartDamage < 0 {
		errs = append(errs, "arena.dummy damage values must not be negative")
	}
	if a.Dummy.Interval < 0 {
		errs = append(errs, "arena.dummy.interval must not be negative")
	}
	if a.Dummy.CriticalEvery < 0 {
		errs = append(errs, "arena.dummy.critical_every must be >= 0")
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

// Load reads configuration from the given file path, applies environment variable
// overrides, and validates the result.
//
// Precondition: path must be a valid file path to a YAML configuration file.
// Postcondition: Returns a valid Config or a non-nil error.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	// Environment variable overrides with BOSSAI_ prefix
	v.SetEnvPrefix("BOSSAI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}

	return LoadFromViper(v)
}

// LoadFromViper builds a Config from an already-configured Viper instance.
//
// Precondition: v must be non-nil and have configuration values set.
// Postcondition: Returns a valid Config or a non-nil error.
func LoadFromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Defaults returns a Viper instance populated only with default values.
//
// Postcondition: LoadFromViper(Defaults()) succeeds.
func Defaults() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.enabled", false)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "bossai")
	v.SetDefault("database.password", "bossai")
	v.SetDefault("database.name", "bossai")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.max_conn_lifetime", "1h")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("engine.tick_interval", "16ms")
	v.SetDefault("engine.retreat_fraction", 0.3)
	v.SetDefault("engine.linger_duration", "30s")
	v.SetDefault("engine.player_near_radius", 20.0)
	v.SetDefault("engine.creatures_dir", "content/creatures")
	v.SetDefault("engine.scripts_dir", "content/scripts")
	v.SetDefault("engine.watch_creatures", false)
	v.SetDefault("engine.script_instruction_limit", 0)

	v.SetDefault("arena.duration", "2m")
	v.SetDefault("arena.realtime", false)
	v.SetDefault("arena.seed", 1)
	v.SetDefault("arena.dummy.x", 0.0)
	v.SetDefault("arena.dummy.y", 0.0)
	v.SetDefault("arena.dummy.damage", 40.0)
	v.SetDefault("arena.dummy.part_damage", 10.0)
	v.SetDefault("arena.dummy.interval", "1500ms")
	v.SetDefault("arena.dummy.critical_every", 5)
	v.SetDefault("arena.dummy.reach", 4.0)
}
