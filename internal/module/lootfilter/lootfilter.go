// Package lootfilter restricts the pickup key to items that pass the
// configured filters.
package lootfilter

import (
	"errors"
	"fmt"
	"sort"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"mutool.ai/internal/filter"
	"mutool.ai/internal/module"
	"mutool.ai/internal/protocol"
	"mutool.ai/internal/world"
)

const Name = "LootFilter"

type Config struct {
	Enabled bool     `yaml:"enabled"`
	Items   []string `yaml:"items"`
	// SkipZen stops zen from bypassing the filters.
	SkipZen bool `yaml:"skip_zen"`
}

type LootFilter struct {
	module.Base

	filters      filter.Set
	passCurrency bool
	env          *module.Env
	log          zerolog.Logger

	// slots of tracked loot, currency last
	tracked []tracked
}

type tracked struct {
	slot int
	zen  bool
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

func New(cfg Config, env *module.Env) *LootFilter {
	log := env.Log.With().Str("module", Name).Logger()
	set, errs := filter.CompileAll(cfg.Items, env.Catalog)
	for _, err := range errs {
		log.Error().Err(err).Msg("Failed to compile item filter")
	}
	return &LootFilter{
		filters:      set,
		passCurrency: !cfg.SkipZen,
		env:          env,
		log:          log,
	}
}

func (l *LootFilter) Name() string { return Name }

// Tracked returns the loot slots considered for pickup, in pickup order.
func (l *LootFilter) Tracked() []int {
	out := make([]int, len(l.tracked))
	for i, t := range l.tracked {
		out[i] = t.slot
	}
	return out
}

func (l *LootFilter) Process(ev protocol.Event) {
	switch ev := ev.(type) {
	case protocol.ItemList:
		l.track(ev)
	case protocol.PickupTrigger:
		l.pickup()
	}
}

func (l *LootFilter) track(list protocol.ItemList) {
	for _, entry := range list.Items {
		ent, err := l.env.World.ItemEntityBySlot(entry.Slot())
		if err != nil {
			continue
		}
		if l.isTracked(entry.Slot()) || !l.filters.Admit(ent.Item, l.passCurrency) {
			continue
		}
		l.tracked = append(l.tracked, tracked{slot: entry.Slot(), zen: ent.Item.IsZen()})
	}
	sort.SliceStable(l.tracked, func(i, j int) bool {
		return !l.tracked[i].zen && l.tracked[j].zen
	})
}

func (l *LootFilter) isTracked(slot int) bool {
	for _, t := range l.tracked {
		if t.slot == slot {
			return true
		}
	}
	return false
}

// pickup requests the first tracked item that is still on the ground, in
// range and admitted by the filters. Slots are reused by the client, so the
// filters are checked again against the current occupant.
func (l *LootFilter) pickup() {
	w := l.env.World

	kept := l.tracked[:0]
	var items []world.ItemEntity
	for _, t := range l.tracked {
		ent, err := w.ItemEntityBySlot(t.slot)
		if err != nil || !ent.Active || !l.filters.Admit(ent.Item, l.passCurrency) {
			continue
		}
		kept = append(kept, t)
		items = append(items, ent)
	}
	l.tracked = kept

	for _, ent := range items {
		if !ent.OnGround || !world.InLootRange(w, ent) {
			continue
		}
		if !w.InventoryHasSpaceFor(ent.Item) {
			l.env.Noticer.ShowNotice(fmt.Sprintf("Your bag cannot store %s", l.env.ItemName(ent.Item)))
			continue
		}
		l.request(ent.Slot)
		return
	}
}

func (l *LootFilter) request(slot int) {
	if l.env.Sender.PickupPending() {
		return
	}
	if err := l.env.Sender.SendPickupRequest(slot); err != nil {
		if !errors.Is(err, module.ErrSend) {
			err = fmt.Errorf("%w: %v", module.ErrSend, err)
		}
		l.log.Error().Err(err).Int("slot", slot).Msg("Failed to request pickup")
	}
}
