// Package autopotion drinks a health potion when the local actor drops
// below a health threshold.
package autopotion

import (
	"fmt"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"mutool.ai/internal/item"
	"mutool.ai/internal/module"
	"mutool.ai/internal/protocol"
	"mutool.ai/internal/world"
)

const Name = "AutoHealthPotion"

// Health potion ids in the potion group, weakest first.
const potionTiers = 4

type Config struct {
	Enabled bool `yaml:"enabled"`
	// Threshold is the health ratio at or below which a potion is used.
	Threshold float32 `yaml:"threshold"`
}

type AutoPotion struct {
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

func New(cfg Config, env *module.Env) *AutoPotion {
	return &AutoPotion{cfg: cfg, env: env, log: env.Log.With().Str("module", Name).Logger()}
}

func (a *AutoPotion) Name() string { return Name }

func (a *AutoPotion) Process(ev protocol.Event) {
	dmg, ok := ev.(protocol.Damage)
	if !ok {
		return
	}
	w := a.env.World
	if w.PotionInUse() {
		return
	}
	self, err := w.LocalActorID()
	if err != nil || dmg.TargetID != self {
		return
	}
	stats, err := w.CharacterStats()
	if err != nil {
		a.log.Debug().Err(err).Msg("Skipping damage")
		return
	}
	if stats.HealthRatio() > a.cfg.Threshold {
		return
	}
	a.drink()
}

func (a *AutoPotion) drink() {
	for id := potionTiers - 1; id >= 0; id-- {
		code := item.New(item.GroupPotion, uint16(id))
		slot, ok := a.env.World.InventorySlotFor(code)
		if !ok {
			continue
		}
		a.env.Noticer.ShowNotice(fmt.Sprintf("Using %s", a.env.ItemName(item.Item{Code: code})))
		if err := a.env.Sender.UseItem(slot + world.InventoryOffset); err != nil {
			a.log.Error().Err(err).Int("slot", slot).Msg("Failed to use potion")
		}
		return
	}
}
