package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/gmforge/battlemap/internal/game/timeline"
)

// MapServer holds all configuration for the battlemap server.
type MapServer struct {
	// Network
	BindAddress string `yaml:"bind_address"`
	Port        int    `yaml:"port"`

	// Logging
	LogLevel string `yaml:"log_level"`

	// GM session authentication: bcrypt hash of the table password.
	// Empty disables authentication (local single-GM setups).
	GMPasswordHash string `yaml:"gm_password_hash"`

	// Spell catalog override file, hot-reloaded when it changes.
	SpellCatalogPath string `yaml:"spell_catalog_path"`

	// Autosave interval in seconds; 0 disables autosave.
	AutosaveSeconds int `yaml:"autosave_seconds"`

	// Database
	Database DatabaseConfig `yaml:"database"`

	// Animation playback
	Animation AnimationConfig `yaml:"animation"`
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

// AnimationConfig holds playback speed and base durations per action type.
type AnimationConfig struct {
	Speed         float64 `yaml:"speed"`
	MoveMs        int     `yaml:"move_ms"`
	SpellMs       int     `yaml:"spell_ms"`
	InteractionMs int     `yaml:"interaction_ms"`
	AppearMs      int     `yaml:"appear_ms"`
	DisappearMs   int     `yaml:"disappear_ms"`
}

// Durations converts the configured millisecond values into engine
// durations, falling back to the stock defaults for unset fields.
func (a AnimationConfig) Durations() timeline.Durations {
	d := timeline.DefaultDurations()
	if a.MoveMs > 0 {
		d.Move = time.Duration(a.MoveMs) * time.Millisecond
	}
	if a.SpellMs > 0 {
		d.Spell = time.Duration(a.SpellMs) * time.Millisecond
	}
	if a.InteractionMs > 0 {
		d.Interaction = time.Duration(a.InteractionMs) * time.Millisecond
	}
	if a.AppearMs > 0 {
		d.Appear = time.Duration(a.AppearMs) * time.Millisecond
	}
	if a.DisappearMs > 0 {
		d.Disappear = time.Duration(a.DisappearMs) * time.Millisecond
	}
	return d
}

// DefaultMapServer returns MapServer config with sensible defaults.
func DefaultMapServer() MapServer {
	return MapServer{
		BindAddress:     "0.0.0.0",
		Port:            7230,
		LogLevel:        "info",
		AutosaveSeconds: 60,
		Database: DatabaseConfig{
			Host:     "127.0.0.1",
			Port:     5432,
			User:     "battlemap",
			Password: "battlemap",
			DBName:   "battlemap",
			SSLMode:  "disable",
		},
		Animation: AnimationConfig{
			Speed: 1.0,
		},
	}
}

// LoadMapServer loads server config from a YAML file.
// If the file doesn't exist, returns defaults.
func LoadMapServer(path string) (MapServer, error) {
	cfg := DefaultMapServer()

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}

	return cfg, nil
}
