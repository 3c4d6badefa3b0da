// Package config provides configuration loading from YAML files.
package config

import (
	"os"
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Log     LogConfig     `yaml:"log"`
	Render  RenderConfig  `yaml:"render"`
	Session SessionConfig `yaml:"session"`
	Sim     SimConfig     `yaml:"sim"`
}

// LogConfig represents logging configuration.
type LogConfig struct {
	Level  string `yaml:"level" default:"info"`
	Output string `yaml:"output" default:"stdout"`
	File   string `yaml:"file"`
}

// RenderConfig represents render loop configuration.
type RenderConfig struct {
	RefreshHz        int     `yaml:"refresh_hz" default:"60" validate:"gte=1,lte=240"`
	NearPlane        float32 `yaml:"near_plane" default:"0.1" validate:"gt=0"`
	FarPlane         float32 `yaml:"far_plane" default:"100" validate:"gt=0"`
	StatsIntervalSec int     `yaml:"stats_interval_sec" default:"5" validate:"gte=0"`
}

// SessionConfig represents session controller configuration.
type SessionConfig struct {
	MinServiceVersion int  `yaml:"min_service_version" default:"11925" validate:"gte=0"`
	LowLatencyIMU     bool `yaml:"low_latency_imu" default:"true"`
	SmoothPose        bool `yaml:"smooth_pose" default:"true"`
	Depth             bool `yaml:"depth" default:"true"`
	ColorCamera       bool `yaml:"color_camera" default:"true"`
}

// SimConfig represents simulated collaborator configuration. Settings are
// kept as free-form maps and decoded by the sim package.
type SimConfig struct {
	Service       map[string]any `yaml:"service"`
	Reconstructor map[string]any `yaml:"reconstructor"`
}

// Load loads configuration from a YAML file. Environment variables take
// precedence over file values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}

	// Override with environment variables
	cfg.overrideFromEnv()

	// Set defaults using creasty/defaults
	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return &cfg, nil
}

// Default returns a configuration with all defaults applied, for running
// without a config file.
func Default() (*Config, error) {
	var cfg Config
	cfg.overrideFromEnv()
	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}
	return &cfg, nil
}

// overrideFromEnv overrides config values with environment variables.
func (c *Config) overrideFromEnv() {
	if v := os.Getenv("MESHBUILDER_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("MESHBUILDER_REFRESH_HZ"); v != "" {
		if hz, err := strconv.Atoi(v); err == nil {
			c.Render.RefreshHz = hz
		}
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "struct validation failed")
	}

	// Clip plane consistency is a cross-field check validator tags can't
	// express with defaults in play.
	if c.Render.FarPlane <= c.Render.NearPlane {
		return errors.Newf("far_plane (%v) must be greater than near_plane (%v)",
			c.Render.FarPlane, c.Render.NearPlane)
	}

	return nil
}
