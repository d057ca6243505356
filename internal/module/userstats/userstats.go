// Package userstats accumulates experience, kills, damage and money over a
// play session and reports per-hour rates when the session ends.
package userstats

import (
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gopkg.in/yaml.v3"

	"mutool.ai/internal/module"
	"mutool.ai/internal/persistence/statsdb"
	"mutool.ai/internal/protocol"
)

const Name = "UserStats"

// CommandStats ends the session and prints the report.
const CommandStats = "/stats"

// Session end reasons.
const (
	ReasonReload  = "reload"
	ReasonCommand = "command"
)

// minElapsed floors the session length used for per-hour rates.
const minElapsed = 3 * time.Second

// Config selects the reported metrics. The module runs when any is set.
type Config struct {
	Experience bool `yaml:"experience"`
	Kills      bool `yaml:"kills"`
	Money      bool `yaml:"money"`
	Damage     bool `yaml:"damage"`
}

func (c Config) Enabled() bool { return c.Experience || c.Kills || c.Money || c.Damage }

// Session is the running aggregate.
type Session struct {
	Start           time.Time
	Last            time.Time
	StartExperience uint64
	Experience      uint64
	Kills           uint64
	Damage          uint64
	Money           uint64
}

// Elapsed is the session length, floored at minElapsed.
func (s *Session) Elapsed() time.Duration {
	return max(s.Last.Sub(s.Start), minElapsed)
}

func (s *Session) perHour(v float64) float64 {
	return v / s.Elapsed().Hours()
}

// LevelPct is the gained experience as a fraction of levels.
func (s *Session) LevelPct() float64 {
	return LevelPercentage(s.StartExperience, s.Experience)
}

type UserStats struct {
	module.Base

	cfg     Config
	env     *module.Env
	clock   func() time.Time
	log     zerolog.Logger
	printer *message.Printer

	session *Session
	// damage dealt to victims not yet confirmed as kills
	pending map[uint16]uint64
}

func Spec() module.Spec {
	return module.Spec{Name: Name, Build: build}
}

func build(node *yaml.Node, env *module.Env) (module.Module, error) {
	var cfg Config
	if err := module.DecodeConfig(node, &cfg); err != nil {
		return nil, err
	}
	if !cfg.Enabled() {
		return nil, nil
	}
	return New(cfg, env), nil
}

func New(cfg Config, env *module.Env) *UserStats {
	return &UserStats{
		cfg:     cfg,
		env:     env,
		clock:   env.Clock(),
		log:     env.Log.With().Str("module", Name).Logger(),
		printer: message.NewPrinter(language.English),
		pending: map[uint16]uint64{},
	}
}

func (u *UserStats) Name() string { return Name }

// Current returns the running session, or nil.
func (u *UserStats) Current() *Session { return u.session }

func (u *UserStats) current() *Session {
	now := u.clock()
	if u.session == nil {
		s := &Session{Start: now}
		if stats, err := u.env.World.CharacterStats(); err == nil {
			s.StartExperience = uint64(stats.Experience)
		}
		u.session = s
	}
	u.session.Last = now
	return u.session
}

func (u *UserStats) Process(ev protocol.Event) {
	switch ev := ev.(type) {
	case protocol.Damage:
		self, err := u.env.World.LocalActorID()
		if err != nil || ev.TargetID == self {
			return
		}
		u.current()
		u.pending[ev.TargetID] += uint64(ev.Damage)
	case protocol.Experience:
		s := u.current()
		s.Experience += uint64(ev.Experience)
		s.Kills++
		s.Damage += uint64(ev.Damage) + u.takePending(ev.VictimID)
	case protocol.Death:
		self, err := u.env.World.LocalActorID()
		if err != nil || ev.AttackerID != self || ev.VictimID == self {
			return
		}
		if dmg := u.takePending(ev.VictimID); dmg > 0 {
			u.current().Damage += dmg
		}
	case protocol.ItemGetResult:
		if ev.Outcome == protocol.ItemGetMoney {
			u.current().Money += uint64(ev.Money)
		}
	case protocol.WorldReload:
		u.end(ReasonReload)
	}
}

func (u *UserStats) takePending(id uint16) uint64 {
	dmg := u.pending[id]
	delete(u.pending, id)
	return dmg
}

func (u *UserStats) Chat(text string) bool {
	if strings.TrimSpace(text) != CommandStats {
		return false
	}
	u.end(ReasonCommand)
	return true
}

// Update forgets pending damage on victims that left the world.
func (u *UserStats) Update(time.Time) {
	for id := range u.pending {
		if _, err := u.env.World.EntityByID(id); err != nil {
			delete(u.pending, id)
		}
	}
}

func (u *UserStats) end(reason string) {
	s := u.session
	u.session = nil
	clear(u.pending)
	if s == nil {
		return
	}
	s.Last = u.clock()

	for _, line := range u.Report(s) {
		u.env.Noticer.ShowNotice(line)
	}

	pct := s.LevelPct() * 100
	u.log.Info().
		Str("reason", reason).
		Dur("elapsed", s.Last.Sub(s.Start)).
		Uint64("experience", s.Experience).
		Float64("level_pct", pct).
		Uint64("kills", s.Kills).
		Uint64("damage", s.Damage).
		Uint64("money", s.Money).
		Msg("Session ended")

	if u.env.History != nil {
		u.env.History.RecordSession(statsdb.Session{
			StartedAt:  s.Start,
			EndedAt:    s.Last,
			Reason:     reason,
			Experience: s.Experience,
			LevelPct:   pct,
			Kills:      s.Kills,
			Damage:     s.Damage,
			Money:      s.Money,
		})
	}
}

// Report formats the enabled, non-zero metrics of s.
func (u *UserStats) Report(s *Session) []string {
	var out []string
	if u.cfg.Experience && s.Experience > 0 {
		pct := s.LevelPct()
		out = append(out, u.printer.Sprintf("Experience (total / %% / %%H): %d / %.1f%% / %.1f%%H",
			s.Experience, pct*100, s.perHour(pct)*100))
	}
	if u.cfg.Kills && s.Kills > 0 {
		out = append(out, u.printer.Sprintf("Kills (total / per hour): %d / %d",
			s.Kills, u.rate(s, s.Kills)))
	}
	if u.cfg.Damage && s.Damage > 0 {
		out = append(out, u.printer.Sprintf("Damage (total / per hour): %d / %d",
			s.Damage, u.rate(s, s.Damage)))
	}
	if u.cfg.Money && s.Money > 0 {
		out = append(out, u.printer.Sprintf("Money (total / per hour): %d / %d",
			s.Money, u.rate(s, s.Money)))
	}
	return out
}

func (u *UserStats) rate(s *Session, v uint64) uint64 {
	return uint64(math.Round(s.perHour(float64(v))))
}
