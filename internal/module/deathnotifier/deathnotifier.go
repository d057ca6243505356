// Package deathnotifier pushes a notification when the local actor dies.
package deathnotifier

import (
	"fmt"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"mutool.ai/internal/module"
	"mutool.ai/internal/protocol"
)

const Name = "DeathNotifier"

type Config struct {
	Enabled    bool `yaml:"enabled"`
	Screenshot bool `yaml:"screenshot"`
}

type DeathNotifier struct {
	module.Base

	cfg Config
	env *module.Env
	log zerolog.Logger
}

func Spec() module.Spec {
	return module.Spec{Name: Name, Build: build}
}

func build(node *yaml.Node, env *module.Env) (module.Module, error) {
	var cfg Config
	if err := module.DecodeConfig(node, &cfg); err != nil {
		return nil, err
	}
	if !cfg.Enabled {
		return nil, nil
	}
	return New(cfg, env), nil
}

func New(cfg Config, env *module.Env) *DeathNotifier {
	return &DeathNotifier{cfg: cfg, env: env, log: env.Log.With().Str("module", Name).Logger()}
}

func (d *DeathNotifier) Name() string { return Name }

func (d *DeathNotifier) Process(ev protocol.Event) {
	death, ok := ev.(protocol.Death)
	if !ok {
		return
	}
	self, err := d.env.World.LocalActorID()
	if err != nil || death.VictimID != self {
		return
	}

	attacker := "<unknown>"
	if e, err := d.env.World.EntityByID(death.AttackerID); err == nil {
		attacker = e.Name
	}

	if d.cfg.Screenshot {
		if err := d.env.Sender.Screenshot(); err != nil {
			d.log.Error().Err(err).Msg("Failed to request screenshot")
		}
	}
	d.env.Notify.Notify("Mu Online [Killed]", fmt.Sprintf("Attacker: %s", attacker))
}
