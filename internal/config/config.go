// Package config loads mutool.yaml and applies environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

type Config struct {
	LogLevel string        `yaml:"log_level"`
	DataDir  string        `yaml:"data_dir"`
	Bridge   BridgeConfig  `yaml:"bridge"`
	Catalog  CatalogConfig `yaml:"catalog"`
	Capture  CaptureConfig `yaml:"capture"`
	Stats    StatsConfig   `yaml:"stats"`
	Notify   NotifyConfig  `yaml:"notify"`

	// Order overrides the default module order. Unlisted modules follow in
	// their default order.
	Order []string `yaml:"order,omitempty"`
	// Modules holds one raw section per module, decoded by the module.
	Modules map[string]yaml.Node `yaml:"modules"`
}

type BridgeConfig struct {
	Listen string `yaml:"listen"`
	Path   string `yaml:"path"`
	// SendQueue bounds the outbound message queue.
	SendQueue int `yaml:"send_queue"`
	// FrameHz is the render tick rate when the hook does not drive frames.
	FrameHz       int `yaml:"frame_hz"`
	NameTimeoutMs int `yaml:"name_timeout_ms"`
}

func (b BridgeConfig) NameTimeout() time.Duration {
	return time.Duration(b.NameTimeoutMs) * time.Millisecond
}

type CatalogConfig struct {
	// Cache is the resolved catalog file. Empty disables caching.
	Cache   string `yaml:"cache"`
	Rebuild bool   `yaml:"rebuild"`
}

type CaptureConfig struct {
	Enabled bool   `yaml:"enabled"`
	Dir     string `yaml:"dir"`
}

type StatsConfig struct {
	Enabled bool   `yaml:"enabled"`
	DB      string `yaml:"db"`
}

type NotifyConfig struct {
	Pushbullet PushbulletConfig `yaml:"pushbullet"`
	Chime      ChimeConfig      `yaml:"chime"`
}

type PushbulletConfig struct {
	Token string `yaml:"token"`
}

type ChimeConfig struct {
	Enabled    bool    `yaml:"enabled"`
	Frequency  float64 `yaml:"frequency"`
	DurationMs int     `yaml:"duration_ms"`
}

func (c ChimeConfig) Duration() time.Duration {
	return time.Duration(c.DurationMs) * time.Millisecond
}

// Env is the set of environment overrides.
type Env struct {
	Config          string `env:"MUTOOL_CONFIG"`
	LogLevel        string `env:"MUTOOL_LOG_LEVEL"`
	PushbulletToken string `env:"MUTOOL_PUSHBULLET_TOKEN"`
	BridgeListen    string `env:"MUTOOL_BRIDGE_LISTEN"`
	DataDir         string `env:"MUTOOL_DATA_DIR"`
}

// ParseEnv reads the overrides from the process environment.
func ParseEnv() (Env, error) {
	var e Env
	if err := env.Parse(&e); err != nil {
		return e, fmt.Errorf("parse env: %w", err)
	}
	return e, nil
}

// Load reads path (optional), applies overrides, then normalizes and
// validates the result.
func Load(path string, overrides Env) (Config, error) {
	cfg := defaults()
	if strings.TrimSpace(path) != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("mutool.yaml: %w", err)
		}
	}
	cfg.Apply(overrides)
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("mutool.yaml: %w", err)
	}
	return cfg, nil
}

func defaults() Config {
	return Config{
		LogLevel: "info",
		DataDir:  "data",
		Bridge: BridgeConfig{
			Listen:        "127.0.0.1:7480",
			Path:          "/v1/bridge",
			SendQueue:     256,
			FrameHz:       10,
			NameTimeoutMs: 2000,
		},
		Stats: StatsConfig{Enabled: true},
		Notify: NotifyConfig{
			Chime: ChimeConfig{Frequency: 880, DurationMs: 250},
		},
	}
}

// Apply copies every non-empty override onto c.
func (c *Config) Apply(e Env) {
	if e.LogLevel != "" {
		c.LogLevel = e.LogLevel
	}
	if e.PushbulletToken != "" {
		c.Notify.Pushbullet.Token = e.PushbulletToken
	}
	if e.BridgeListen != "" {
		c.Bridge.Listen = e.BridgeListen
	}
	if e.DataDir != "" {
		c.DataDir = e.DataDir
	}
}

// Normalize fills derived paths and clamps sizes.
func (c *Config) Normalize() {
	if c == nil {
		return
	}
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if strings.TrimSpace(c.DataDir) == "" {
		c.DataDir = "data"
	}
	if c.Catalog.Cache == "" {
		c.Catalog.Cache = filepath.Join(c.DataDir, "catalog.yaml")
	}
	if c.Capture.Dir == "" {
		c.Capture.Dir = filepath.Join(c.DataDir, "captures")
	}
	if c.Stats.DB == "" {
		c.Stats.DB = filepath.Join(c.DataDir, "stats.sqlite")
	}
	if c.Bridge.Path == "" {
		c.Bridge.Path = "/v1/bridge"
	}
	if c.Bridge.SendQueue <= 0 {
		c.Bridge.SendQueue = 256
	}
	if c.Bridge.NameTimeoutMs <= 0 {
		c.Bridge.NameTimeoutMs = 2000
	}
	if c.Modules == nil {
		c.Modules = map[string]yaml.Node{}
	}
}

func (c Config) Validate() error {
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}
	if strings.TrimSpace(c.Bridge.Listen) == "" {
		return fmt.Errorf("bridge.listen must not be empty")
	}
	if !strings.HasPrefix(c.Bridge.Path, "/") {
		return fmt.Errorf("bridge.path must start with /")
	}
	if c.Bridge.FrameHz < 0 || c.Bridge.FrameHz > 120 {
		return fmt.Errorf("bridge.frame_hz must be in [0, 120]")
	}
	if c.Notify.Chime.Enabled && (c.Notify.Chime.Frequency <= 0 || c.Notify.Chime.DurationMs <= 0) {
		return fmt.Errorf("notify.chime frequency and duration_ms must be > 0")
	}
	seen := map[string]bool{}
	for _, name := range c.Order {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("order has an empty module name")
		}
		if seen[name] {
			return fmt.Errorf("order lists %s twice", name)
		}
		seen[name] = true
	}
	return nil
}

// Level is the parsed log level.
func (c Config) Level() zerolog.Level {
	lvl, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		return zerolog.InfoLevel
	}
	return lvl
}
