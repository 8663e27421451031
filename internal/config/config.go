// Package config loads server settings from YAML, checked against a
// JSON schema so typos in field names or types fail loudly at startup
// instead of silently falling back to defaults.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"gemrush.dev/internal/sim/world"
)

type Config struct {
	Addr       string `yaml:"addr"`
	DBPath     string `yaml:"db_path"`
	JournalDir string `yaml:"journal_dir"`

	Seed         int64  `yaml:"seed"`
	Generator    string `yaml:"generator"`
	StreamRadius int    `yaml:"stream_radius"`
	Spawn        []int  `yaml:"spawn"`

	WalkDurationMs int `yaml:"walk_duration_ms"`
	PingIntervalMs int `yaml:"ping_interval_ms"`
}

const schemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "additionalProperties": false,
  "properties": {
    "addr": {"type": "string"},
    "db_path": {"type": "string"},
    "journal_dir": {"type": "string"},
    "seed": {"type": "integer"},
    "generator": {"type": "string"},
    "stream_radius": {"type": "integer", "minimum": 1, "maximum": 8},
    "spawn": {"type": "array", "items": {"type": "integer"}, "minItems": 2, "maxItems": 2},
    "walk_duration_ms": {"type": "integer", "minimum": 16},
    "ping_interval_ms": {"type": "integer", "minimum": 1000}
  }
}`

var schema = jsonschema.MustCompileString("config.schema.json", schemaJSON)

// Default returns the configuration used when no file is given.
func Default() Config {
	var c Config
	c.applyDefaults()
	return c
}

// Load reads and validates the YAML file at path. An empty path yields
// the default configuration.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	var c Config
	raw, err := os.ReadFile(path)
	if err != nil {
		return c, err
	}

	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return c, fmt.Errorf("config: %w", err)
	}
	if doc != nil {
		if err := schema.Validate(doc); err != nil {
			return c, fmt.Errorf("config: %w", err)
		}
	}

	if err := yaml.Unmarshal(raw, &c); err != nil {
		return c, fmt.Errorf("config: %w", err)
	}
	c.applyDefaults()
	return c, nil
}

func (c *Config) applyDefaults() {
	if c.Addr == "" {
		c.Addr = ":5678"
	}
	if c.DBPath == "" {
		c.DBPath = "gemrush.db"
	}
	if c.Seed == 0 {
		c.Seed = 1337
	}
	if c.Generator == "" {
		c.Generator = "surface"
	}
	if c.StreamRadius == 0 {
		c.StreamRadius = 2
	}
	if len(c.Spawn) != 2 {
		c.Spawn = []int{0, 0}
	}
	if c.WalkDurationMs == 0 {
		c.WalkDurationMs = 100
	}
	if c.PingIntervalMs == 0 {
		c.PingIntervalMs = 30000
	}
}

// SpawnTile is where new entities appear.
func (c Config) SpawnTile() world.TileCoords {
	return world.TileCoords{X: int32(c.Spawn[0]), Y: int32(c.Spawn[1])}
}

// WalkDuration is how long one tile step takes.
func (c Config) WalkDuration() time.Duration {
	return time.Duration(c.WalkDurationMs) * time.Millisecond
}

// PingInterval is how often the server pings idle connections.
func (c Config) PingInterval() time.Duration {
	return time.Duration(c.PingIntervalMs) * time.Millisecond
}
