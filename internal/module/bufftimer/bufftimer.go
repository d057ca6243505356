// Package bufftimer tracks timed party buffs and draws their remaining
// time.
package bufftimer

import (
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"mutool.ai/internal/module"
	"mutool.ai/internal/protocol"
	"mutool.ai/internal/render"
	"mutool.ai/internal/world"
)

const Name = "BuffTimer"

type Config struct {
	Enabled bool `yaml:"enabled"`
	// Warn makes a bar flicker once fewer than Warn seconds remain.
	Warn uint64 `yaml:"warn"`
}

// Skill ids of the tracked buffs.
const (
	SkillSoulBarrier      uint16 = 16
	SkillGreaterDefense   uint16 = 27
	SkillGreaterDamage    uint16 = 28
	SkillGreaterFortitude uint16 = 48
)

type buffMeta struct {
	name string
	// static is used when set; otherwise dynamic derives the duration from
	// the caster's stats.
	static  time.Duration
	dynamic func(world.Stats) time.Duration
}

var buffs = map[uint16]buffMeta{
	SkillGreaterDefense: {name: "Defense", static: 60 * time.Second},
	SkillGreaterDamage:  {name: "Damage", static: 60 * time.Second},
	SkillGreaterFortitude: {name: "Greater Fortitude", dynamic: func(s world.Stats) time.Duration {
		return time.Duration(60+uint64(s.Energy)/10) * time.Second
	}},
	SkillSoulBarrier: {name: "Soul Barrier", dynamic: func(s world.Stats) time.Duration {
		return time.Duration(60+uint64(s.Energy)/40) * time.Second
	}},
}

// Buff is an active buff on one entity.
type Buff struct {
	Name     string
	Start    time.Time
	Duration time.Duration
}

// TimeLeft is the remaining time in seconds, never negative.
func (b Buff) TimeLeft(now time.Time) float64 {
	left := b.Duration - now.Sub(b.Start)
	if left < 0 {
		return 0
	}
	return left.Seconds()
}

type BuffTimer struct {
	module.Base

	cfg   Config
	world world.View
	clock func() time.Time
	log   zerolog.Logger

	buffs map[uint16]map[uint16]Buff
	now   time.Time
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

func New(cfg Config, env *module.Env) *BuffTimer {
	clock := env.Clock()
	return &BuffTimer{
		cfg:   cfg,
		world: env.World,
		clock: clock,
		log:   env.Log.With().Str("module", Name).Logger(),
		buffs: map[uint16]map[uint16]Buff{},
		now:   clock(),
	}
}

func (b *BuffTimer) Name() string { return Name }

// Active returns a copy of the buffs tracked for an entity.
func (b *BuffTimer) Active(id uint16) map[uint16]Buff {
	out := make(map[uint16]Buff, len(b.buffs[id]))
	for k, v := range b.buffs[id] {
		out[k] = v
	}
	return out
}

func (b *BuffTimer) Process(ev protocol.Event) {
	res, ok := ev.(protocol.MagicAttackResult)
	if !ok {
		return
	}
	meta, ok := buffs[res.Skill]
	if !ok {
		return
	}

	source, err := b.world.EntityByID(res.SourceID)
	if err != nil {
		b.log.Debug().Err(err).Uint16("source", res.SourceID).Msg("Skipping buff")
		return
	}
	target, err := b.world.EntityByID(res.TargetID)
	if err != nil {
		b.log.Debug().Err(err).Uint16("target", res.TargetID).Msg("Skipping buff")
		return
	}
	self, err := b.world.LocalActorID()
	if err != nil {
		return
	}

	selfIsSource := source.ID == self
	if !selfIsSource && target.ID != self {
		return
	}

	duration := meta.static
	if duration == 0 {
		// Caster stats are only known for the local actor.
		if !selfIsSource {
			return
		}
		stats, err := b.world.CharacterStats()
		if err != nil {
			return
		}
		duration = meta.dynamic(stats)
	}

	active := b.buffs[target.ID]
	if active == nil {
		active = map[uint16]Buff{}
		b.buffs[target.ID] = active
	}
	active[res.Skill] = Buff{Name: meta.name, Start: b.clock(), Duration: duration}
}

// Update drops expired buffs and entities that left the world.
func (b *BuffTimer) Update(now time.Time) {
	b.now = now
	for id, active := range b.buffs {
		if _, err := b.world.EntityByID(id); err != nil {
			delete(b.buffs, id)
			continue
		}
		for skill, buff := range active {
			if buff.TimeLeft(now) <= 0 {
				delete(active, skill)
			}
		}
		if len(active) == 0 {
			delete(b.buffs, id)
		}
	}
}

// Panel layout in canvas units.
const (
	posX        = 549.6
	posY        = 428.8
	padding     = 4.0
	buffPadding = 0.8
	buffWidth   = 82.4
	buffHeight  = 6.4
	nameHeight  = 8.0
)

// Render stacks one panel per entity upwards from the bottom right corner.
func (b *BuffTimer) Render(r render.Renderer) {
	ids := make([]uint16, 0, len(b.buffs))
	for id := range b.buffs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	y := float32(posY)
	for _, id := range ids {
		user, err := b.world.EntityByID(id)
		if err != nil {
			continue
		}
		active := b.buffs[id]
		n := float32(len(active))

		bgHeight := nameHeight + buffHeight*n + padding*(2+n)
		y -= bgHeight

		offsetY := y
		offsetX := float32(posX + padding)

		r.DrawRectangle(posX, offsetY, buffWidth+padding*2, bgHeight, render.Black.Alpha(0x99))
		offsetY += padding

		r.DrawText(user.Name, int(offsetX), int(offsetY), render.FromString(user.Name), render.Transparent)
		offsetY += nameHeight + padding

		skills := make([]uint16, 0, len(active))
		for s := range active {
			skills = append(skills, s)
		}
		sort.Slice(skills, func(i, j int) bool { return skills[i] < skills[j] })

		for _, s := range skills {
			buff := active[s]
			left := buff.TimeLeft(b.now)
			ratio := float32(left / buff.Duration.Seconds())
			alpha := b.alpha(left)

			r.DrawRectangle(offsetX, offsetY, buffWidth, buffHeight, render.Hex(0x006000).Alpha(alpha*0x7F))

			w := float32(buffWidth - buffPadding*2)
			h := float32(buffHeight - buffPadding*2)
			r.DrawRectangle(offsetX+buffPadding, offsetY+buffPadding, w, h, render.Hex(0x008000).Alpha(alpha*0xB2))
			r.DrawRectangle(offsetX+buffPadding, offsetY+buffPadding, w*ratio, h, render.Hex(0x00C000).Alpha(alpha*0xFF))

			offsetY += buffHeight + padding
		}
	}
}

// alpha is 0 on even seconds once the warn threshold is crossed, 1
// otherwise.
func (b *BuffTimer) alpha(left float64) uint8 {
	secs := uint64(math.Round(left))
	if secs < b.cfg.Warn && secs%2 == 0 {
		return 0
	}
	return 1
}
