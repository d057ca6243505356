package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

func TestLoad_ExampleConfig(t *testing.T) {
	cfg, err := Load("../../configs/mutool.yaml", Env{})
	if err != nil {
		t.Fatalf("load mutool.yaml: %v", err)
	}
	if cfg.Bridge.Listen != "127.0.0.1:7480" || cfg.Bridge.FrameHz != 10 {
		t.Fatalf("bridge=%+v", cfg.Bridge)
	}
	if cfg.Stats.DB != filepath.Join("data", "stats.sqlite") {
		t.Fatalf("stats db=%q", cfg.Stats.DB)
	}
	for _, name := range []string{"BuffTimer", "LootFilter", "LootNotifier", "UserStats"} {
		if n, ok := cfg.Modules[name]; !ok || n.Kind != yaml.MappingNode {
			t.Fatalf("missing module section %s", name)
		}
	}

	var lf struct {
		Enabled bool     `yaml:"enabled"`
		Items   []string `yaml:"items"`
	}
	node := cfg.Modules["LootFilter"]
	if err := node.Decode(&lf); err != nil {
		t.Fatalf("decode LootFilter: %v", err)
	}
	if !lf.Enabled || len(lf.Items) != 5 || lf.Items[0] != `name:"Jewel of Bless"` {
		t.Fatalf("LootFilter=%+v", lf)
	}
}

func TestLoad_EmptyPathUsesDefaults(t *testing.T) {
	cfg, err := Load("", Env{})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Level() != zerolog.InfoLevel || cfg.Bridge.Path != "/v1/bridge" {
		t.Fatalf("defaults: %+v", cfg)
	}
	if cfg.Modules == nil {
		t.Fatalf("modules map should be initialised")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	cfg, err := Load("", Env{
		LogLevel:        "debug",
		PushbulletToken: "tok",
		BridgeListen:    "0.0.0.0:9000",
		DataDir:         "/var/lib/mutool",
	})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Level() != zerolog.DebugLevel || cfg.Notify.Pushbullet.Token != "tok" || cfg.Bridge.Listen != "0.0.0.0:9000" {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if cfg.Capture.Dir != filepath.Join("/var/lib/mutool", "captures") {
		t.Fatalf("derived capture dir=%q", cfg.Capture.Dir)
	}
}

func TestParseEnv(t *testing.T) {
	t.Setenv("MUTOOL_CONFIG", "x.yaml")
	t.Setenv("MUTOOL_LOG_LEVEL", "warn")
	e, err := ParseEnv()
	if err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if e.Config != "x.yaml" || e.LogLevel != "warn" {
		t.Fatalf("env=%+v", e)
	}
}

func TestLoad_Invalid(t *testing.T) {
	cases := map[string]string{
		"bad level":  "log_level: loud\n",
		"dup order":  "order: [BuffTimer, BuffTimer]\n",
		"bad path":   "bridge: {path: bridge}\n",
		"bad chime":  "notify: {chime: {enabled: true, frequency: 0}}\n",
		"not a yaml": "bridge: [\n",
		"frame rate": "bridge: {frame_hz: 500}\n",
	}
	dir := t.TempDir()
	for name, body := range cases {
		p := filepath.Join(dir, "c.yaml")
		if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
		if _, err := Load(p, Env{}); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}
