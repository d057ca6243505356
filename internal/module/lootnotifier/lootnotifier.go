// Package lootnotifier pushes a notification when a filtered item drops,
// and names the looter when the drop is picked up within the delay.
package lootnotifier

import (
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"mutool.ai/internal/filter"
	"mutool.ai/internal/item"
	"mutool.ai/internal/module"
	"mutool.ai/internal/notify"
	"mutool.ai/internal/protocol"
	"mutool.ai/internal/world"
)

const Name = "LootNotifier"

const unknownLooter = "<unknown>"

type Config struct {
	Enabled bool     `yaml:"enabled"`
	Items   []string `yaml:"items"`
	// Delay in milliseconds to wait for a pickup before notifying. Zero
	// notifies as soon as the item drops.
	Delay uint32 `yaml:"delay"`
}

type watch struct {
	at   time.Time
	name string
}

type LootNotifier struct {
	module.Base

	filters filter.Set
	delay   time.Duration
	env     *module.Env
	clock   func() time.Time
	notify  notify.Service
	log     zerolog.Logger

	// Drops share a fingerprint when they look identical, so at most one
	// is tracked per fingerprint.
	watchlist map[item.Fingerprint]watch
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

// New compiles the configured filters. Filters that fail to compile are
// logged and left out.
func New(cfg Config, env *module.Env) *LootNotifier {
	log := env.Log.With().Str("module", Name).Logger()
	set, errs := filter.CompileAll(cfg.Items, env.Catalog)
	for _, err := range errs {
		log.Error().Err(err).Msg("Failed to compile item filter")
	}
	return &LootNotifier{
		filters:   set,
		delay:     time.Duration(cfg.Delay) * time.Millisecond,
		env:       env,
		clock:     env.Clock(),
		notify:    env.Notify,
		log:       log,
		watchlist: map[item.Fingerprint]watch{},
	}
}

func (l *LootNotifier) Name() string { return Name }

// Pending is the number of drops waiting for a pickup.
func (l *LootNotifier) Pending() int { return len(l.watchlist) }

func (l *LootNotifier) Process(ev protocol.Event) {
	switch ev := ev.(type) {
	case protocol.ItemList:
		l.processItemList(ev)
	case protocol.PartyItemInfo:
		if len(l.watchlist) == 0 {
			return
		}
		looter := unknownLooter
		if e, err := l.env.World.EntityByID(ev.MemberID); err == nil {
			looter = e.Name
		}
		l.processPickup(ev.Item, looter)
	case protocol.ItemGetResult:
		if len(l.watchlist) == 0 {
			return
		}
		if ev.Outcome != protocol.ItemGetItem && ev.Outcome != protocol.ItemGetStack {
			return
		}
		looter := unknownLooter
		if e, err := world.LocalEntity(l.env.World); err == nil {
			looter = e.Name
		}
		l.processPickup(ev.Item.Fingerprint(), looter)
	}
}

func (l *LootNotifier) processItemList(list protocol.ItemList) {
	for _, entry := range list.Items {
		ent, err := l.env.World.ItemEntityBySlot(entry.Slot())
		if err != nil {
			l.log.Debug().Err(err).Int("slot", entry.Slot()).Msg("Skipping spawned item")
			continue
		}
		if !l.filters.Match(ent.Item) {
			continue
		}
		name := ent.Item.NameWithInfo(l.env.ItemName(ent.Item))

		if l.delay == 0 {
			l.notifyLoot(name, "")
			continue
		}

		fp := ent.Item.Fingerprint()
		if prev, ok := l.watchlist[fp]; ok {
			// Identical drops cannot be told apart on pickup.
			delete(l.watchlist, fp)
			l.notifyLoot(prev.name, "")
			l.notifyLoot(name, "")
			continue
		}
		l.watchlist[fp] = watch{at: l.clock(), name: name}
	}
}

func (l *LootNotifier) processPickup(fp item.Fingerprint, looter string) {
	w, ok := l.watchlist[fp]
	if !ok {
		return
	}
	delete(l.watchlist, fp)
	l.notifyLoot(w.name, looter)
}

// Update notifies about drops nobody picked up within the delay.
func (l *LootNotifier) Update(now time.Time) {
	var expired []watch
	for fp, w := range l.watchlist {
		if now.Sub(w.at) >= l.delay {
			expired = append(expired, w)
			delete(l.watchlist, fp)
		}
	}
	sort.Slice(expired, func(i, j int) bool {
		if !expired[i].at.Equal(expired[j].at) {
			return expired[i].at.Before(expired[j].at)
		}
		return expired[i].name < expired[j].name
	})
	for _, w := range expired {
		l.notifyLoot(w.name, "")
	}
}

func (l *LootNotifier) notifyLoot(name, looter string) {
	title := "Mu Online [Loot]"
	body := fmt.Sprintf("Item: %s", name)
	if looter != "" {
		title = "Mu Online [Looted]"
		body += fmt.Sprintf("\nUser: %s", looter)
	}
	l.notify.Notify(title, body)
}
