// Package autorepair requests a repair whenever equipped gear wears.
package autorepair

import (
	"fmt"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"mutool.ai/internal/item"
	"mutool.ai/internal/module"
	"mutool.ai/internal/protocol"
	"mutool.ai/internal/world"
)

const Name = "AutoRepair"

// MinLevel is the character level from which self repair is available.
const MinLevel = 50

type Config struct {
	Enabled bool `yaml:"enabled"`
}

type AutoRepair struct {
	module.Base

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
	return New(env), nil
}

func New(env *module.Env) *AutoRepair {
	return &AutoRepair{env: env, log: env.Log.With().Str("module", Name).Logger()}
}

func (a *AutoRepair) Name() string { return Name }

// ammunition reports arrows and bolts, which are consumed rather than
// repaired.
func ammunition(c item.Code) bool {
	return c.Group() == item.GroupBow && (c.ID() == 7 || c.ID() == 15)
}

func (a *AutoRepair) Process(ev protocol.Event) {
	dur, ok := ev.(protocol.ItemDurability)
	if !ok {
		return
	}
	slot := world.EquipmentSlot(dur.Index)
	if !slot.Valid() || slot == world.SlotHelper {
		return
	}
	stats, err := a.env.World.CharacterStats()
	if err != nil || stats.Level < MinLevel {
		return
	}
	it, ok := a.env.World.Equipment(slot)
	if !ok || ammunition(it.Code) || it.Status == item.Perfect {
		return
	}

	a.env.Noticer.ShowNotice(fmt.Sprintf("Repairing %s", slot))
	if err := a.env.Sender.RepairItem(int(dur.Index)); err != nil {
		a.log.Error().Err(err).Str("slot", slot.String()).Msg("Failed to request repair")
	}
}
