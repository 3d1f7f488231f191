// Package config holds runtime settings for the simulation binary.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete set of runtime settings.
type Config struct {
	// Seed drives every random draw; zero picks a fresh one at startup.
	Seed int64 `yaml:"seed"`
	// Manifest is a path to a manifest YAML file; empty uses the built-in one.
	Manifest string `yaml:"manifest"`

	World      WorldConfig   `yaml:"world"`
	Sim        SimConfig     `yaml:"sim"`
	Signals    SignalConfig  `yaml:"signals"`
	Structures []Placement   `yaml:"structures"`
	Journal    JournalConfig `yaml:"journal"`
	API        APIConfig     `yaml:"api"`
}

// WorldConfig controls terrain generation.
type WorldConfig struct {
	Radius int `yaml:"radius"`
}

// SimConfig controls the tick loop and the unit population.
type SimConfig struct {
	Step     time.Duration `yaml:"step"`
	Interval time.Duration `yaml:"interval"`
	Speed    float64       `yaml:"speed"`
	// Workers bounds parallel goal resolution; zero uses every CPU.
	Workers  int    `yaml:"workers"`
	Units    int    `yaml:"units"`
	UnitKind string `yaml:"unit_kind"`

	// StatsEvery is how many ticks pass between summary log lines and snapshots.
	StatsEvery uint64 `yaml:"stats_every"`
	// MaxTicks stops the run after that many ticks; zero runs until interrupted.
	MaxTicks uint64 `yaml:"max_ticks"`
}

// SignalConfig tunes emission and spreading of the signal field.
type SignalConfig struct {
	Emission  float64 `yaml:"emission"`
	Diffusion float64 `yaml:"diffusion"`
	Decay     float64 `yaml:"decay"`
	Floor     float64 `yaml:"floor"`
}

// Placement puts a structure, ghost or structure marked for demolition on the map at startup.
type Placement struct {
	Kind     string `yaml:"kind"`
	Q        int    `yaml:"q"`
	R        int    `yaml:"r"`
	Ghost    bool   `yaml:"ghost"`
	Demolish bool   `yaml:"demolish"`
}

// JournalConfig locates the event journal and the tick log.
type JournalConfig struct {
	DBPath string `yaml:"db_path"`
	// TickLogDir holds zstd-compressed tick logs; empty disables them.
	TickLogDir  string `yaml:"tick_log_dir"`
	RotateBytes int64  `yaml:"rotate_bytes"`
}

// APIConfig controls the observation server.
type APIConfig struct {
	Port int `yaml:"port"`
	// AdminKey is only read from the environment.
	AdminKey       string `yaml:"-"`
	RequestsPerMin int    `yaml:"requests_per_min"`
}

// Default returns settings that run a small colony out of the box.
func Default() Config {
	return Config{
		Seed:  42,
		World: WorldConfig{Radius: 12},
		Sim: SimConfig{
			Step:       100 * time.Millisecond,
			Interval:   100 * time.Millisecond,
			Speed:      1,
			Units:      40,
			UnitKind:   "ant",
			StatsEvery: 600,
		},
		Signals: SignalConfig{
			Emission:  1,
			Diffusion: 0.3,
			Decay:     0.05,
			Floor:     0.01,
		},
		Structures: []Placement{
			{Kind: "acacia", Q: -3, R: 0},
			{Kind: "acacia", Q: -3, R: 2},
			{Kind: "leuco", Q: 3, R: -2},
			{Kind: "storage", Q: 0, R: 3},
			{Kind: "ant_hive", Q: 2, R: 2},
			{Kind: "leuco", Q: -1, R: -3, Ghost: true},
		},
		Journal: JournalConfig{
			DBPath:      "data/emergence.db",
			TickLogDir:  "data/ticks",
			RotateBytes: 64 << 20,
		},
		API: APIConfig{
			Port:           8080,
			RequestsPerMin: 60,
		},
	}
}

// Load reads path over the defaults, applies environment overrides and
// validates the result. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		dec := yaml.NewDecoder(bytes.NewReader(raw))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil {
			return cfg, fmt.Errorf("%s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// applyEnv overlays EMERGENCE_* variables.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("EMERGENCE_ADMIN_KEY"); ok {
		c.API.AdminKey = v
	}
	if v, ok := lookup("EMERGENCE_DB"); ok {
		c.Journal.DBPath = v
	}
	if v, ok := lookup("EMERGENCE_PORT"); ok {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("EMERGENCE_PORT: %w", err)
		}
		c.API.Port = port
	}
	if v, ok := lookup("EMERGENCE_SEED"); ok {
		seed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("EMERGENCE_SEED: %w", err)
		}
		c.Seed = seed
	}
	return nil
}

// Validate rejects settings the simulation cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.World.Radius < 1 {
		errs = append(errs, errors.New("world.radius must be at least 1"))
	}
	if c.Sim.Step <= 0 {
		errs = append(errs, errors.New("sim.step must be positive"))
	}
	if c.Sim.Interval <= 0 {
		errs = append(errs, errors.New("sim.interval must be positive"))
	}
	if c.Sim.Speed < 0 {
		errs = append(errs, errors.New("sim.speed must not be negative"))
	}
	if c.Sim.Units < 0 {
		errs = append(errs, errors.New("sim.units must not be negative"))
	}
	if c.Sim.UnitKind == "" {
		errs = append(errs, errors.New("sim.unit_kind is required"))
	}
	if c.Signals.Diffusion < 0 || c.Signals.Diffusion > 1 {
		errs = append(errs, errors.New("signals.diffusion must be within [0, 1]"))
	}
	if c.Signals.Decay < 0 || c.Signals.Decay > 1 {
		errs = append(errs, errors.New("signals.decay must be within [0, 1]"))
	}
	if c.API.Port < 0 || c.API.Port > 65535 {
		errs = append(errs, fmt.Errorf("api.port %d out of range", c.API.Port))
	}
	for i, p := range c.Structures {
		if p.Kind == "" {
			errs = append(errs, fmt.Errorf("structures[%d]: kind is required", i))
		}
		if p.Ghost && p.Demolish {
			errs = append(errs, fmt.Errorf("structures[%d]: a ghost cannot be marked for demolition", i))
		}
	}
	return errors.Join(errs...)
}
