// Package config provides Viper-based configuration loading for the combat daemon.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ServerConfig holds top-level server settings.
type ServerConfig struct {
	// Name identifies this node in logs.
	Name string `mapstructure:"name"`
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
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

// StoreConfig selects where combat profiles are persisted.
type StoreConfig struct {
	// Backend is "yaml" or "postgres".
	Backend string `mapstructure:"backend"`
	// Dir is the profile directory for the yaml backend.
	Dir string `mapstructure:"dir"`
}

// CoefficientsConfig holds the damage formula coefficients.
type CoefficientsConfig struct {
	StrengthDamage float64 `mapstructure:"strength_damage"`
	DexDamage      float64 `mapstructure:"dex_damage"`
	Armor          float64 `mapstructure:"armor"`
	StrengthArmor  float64 `mapstructure:"strength_armor"`
}

// CombatConfig holds regen and damage settings.
type CombatConfig struct {
	// TickInterval is the regeneration period.
	TickInterval time.Duration `mapstructure:"tick_interval"`
	// DebounceWindow flags damage signals arriving closer together than this.
	DebounceWindow time.Duration `mapstructure:"debounce_window"`
	// RespawnHealthFraction is the share of maxHealth restored on respawn.
	RespawnHealthFraction float64 `mapstructure:"respawn_health_fraction"`
	// DebugMode sends per-tick and per-hit debug lines to players.
	DebugMode    bool               `mapstructure:"debug_mode"`
	Coefficients CoefficientsConfig `mapstructure:"coefficients"`
}

// HealthConfig holds the gRPC health endpoint settings.
type HealthConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	// ProbeInterval is how often the store backend is probed.
	ProbeInterval time.Duration `mapstructure:"probe_interval"`
}

// Addr returns the "host:port" listen address.
//
// Postcondition: Returns a non-empty string in "host:port" format.
func (h HealthConfig) Addr() string {
	return fmt.Sprintf("%s:%d", h.Host, h.Port)
}

// ScriptingConfig holds Lua hook settings.
type ScriptingConfig struct {
	// Dir holds *.lua hook scripts; empty disables scripting.
	Dir string `mapstructure:"dir"`
	// InstructionLimit caps opcodes per hook call; 0 uses the default.
	InstructionLimit int `mapstructure:"instruction_limit"`
}

// Config is the top-level application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Store     StoreConfig     `mapstructure:"store"`
	Combat    CombatConfig    `mapstructure:"combat"`
	Health    HealthConfig    `mapstructure:"health"`
	Scripting ScriptingConfig `mapstructure:"scripting"`
}

// Validate checks all configuration invariants.
//
// Postcondition: Returns nil if configuration is valid, or an error describing all violations.
func (c Config) Validate() error {
	var errs []string

	if c.Server.Name == "" {
		errs = append(errs, "server.name must not be empty")
	}
	if err := validateStore(c.Store); err != nil {
		errs = append(errs, err.Error())
	}
	if c.Store.Backend == "postgres" {
		if err := validateDatabase(c.Database); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if err := validateLogging(c.Logging); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateCombat(c.Combat); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateHealth(c.Health); err != nil {
		errs = append(errs, err.Error())
	}
	if c.Scripting.InstructionLimit < 0 {
		errs = append(errs, fmt.Sprintf("scripting.instruction_limit must be >= 0, got %d", c.Scripting.InstructionLimit))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validateStore(s StoreConfig) error {
	switch s.Backend {
	case "yaml":
		if s.Dir == "" {
			return errors.New("store.dir must not be empty for the yaml backend")
		}
		return nil
	case "postgres":
		return nil
	default:
		return fmt.Errorf("store.backend must be one of [yaml, postgres], got %q", s.Backend)
	}
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

func validateCombat(c CombatConfig) error {
	var errs []string
	if c.TickInterval <= 0 {
		errs = append(errs, fmt.Sprintf("combat.tick_interval must be > 0, got %s", c.TickInterval))
	}
	if c.DebounceWindow < 0 {
		errs = append(errs, "combat.debounce_window must not be negative")
	}
	if c.RespawnHealthFraction <= 0 || c.RespawnHealthFraction > 1 {
		errs = append(errs, fmt.Sprintf("combat.respawn_health_fraction must be in (0, 1], got %g", c.RespawnHealthFraction))
	}
	co := c.Coefficients
	for name, v := range map[string]float64{
		"strength_damage": co.StrengthDamage,
		"dex_damage":      co.DexDamage,
		"armor":           co.Armor,
		"strength_armor":  co.StrengthArmor,
	} {
		if v < 0 {
			errs = append(errs, fmt.Sprintf("combat.coefficients.%s must be >= 0, got %g", name, v))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateHealth(h HealthConfig) error {
	var errs []string
	if h.Host == "" {
		errs = append(errs, "health.host must not be empty")
	}
	if h.Port < 1 || h.Port > 65535 {
		errs = append(errs, fmt.Sprintf("health.port must be 1-65535, got %d", h.Port))
	}
	if h.ProbeInterval <= 0 {
		errs = append(errs, "health.probe_interval must be > 0")
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

// Load reads configuration from the given file path, applies environment variable
// overrides, and validates the result. An empty path uses defaults and the
// environment only.
//
// Postcondition: Returns a valid Config or a non-nil error.
func Load(path string) (Config, error) {
	v := viper.New()

	// Environment variable overrides with COMBAT_ prefix
	v.SetEnvPrefix("COMBAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}
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

// NewViper returns a Viper instance carrying every default. Used by tests and
// by callers that assemble configuration programmatically.
func NewViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.name", "combatd")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "combat")
	v.SetDefault("database.password", "combat")
	v.SetDefault("database.name", "combat")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.max_conn_lifetime", "1h")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("store.backend", "yaml")
	v.SetDefault("store.dir", "data/profiles")

	v.SetDefault("combat.tick_interval", "1s")
	v.SetDefault("combat.debounce_window", "250ms")
	v.SetDefault("combat.respawn_health_fraction", 0.7)
	v.SetDefault("combat.debug_mode", false)
	v.SetDefault("combat.coefficients.strength_damage", 0.25)
	v.SetDefault("combat.coefficients.dex_damage", 0.25)
	v.SetDefault("combat.coefficients.armor", 0.00375)
	v.SetDefault("combat.coefficients.strength_armor", 0.0025)

	v.SetDefault("health.host", "127.0.0.1")
	v.SetDefault("health.port", 50061)
	v.SetDefault("health.probe_interval", "30s")

	v.SetDefault("scripting.dir", "")
	v.SetDefault("scripting.instruction_limit", 0)
}
