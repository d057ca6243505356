package module

import (
	"fmt"
	"runtime/debug"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"mutool.ai/internal/protocol"
	"mutool.ai/internal/render"
)

// Pipeline dispatches events and frames to modules in a fixed order. A
// panicking module is logged and the remaining modules still run.
type Pipeline struct {
	log     zerolog.Logger
	modules []Module
}

func NewPipeline(log zerolog.Logger, modules ...Module) *Pipeline {
	return &Pipeline{log: log, modules: modules}
}

// Load builds every enabled module from its config section. specs gives
// the default order; order, when non-empty, moves the named modules to the
// front in the given sequence. Modules whose config fails to decode are
// skipped and reported.
func Load(specs []Spec, sections map[string]yaml.Node, order []string, env *Env) (*Pipeline, []error) {
	var errs []error
	var modules []Module
	for _, s := range Order(specs, order) {
		var node *yaml.Node
		if n, ok := sections[s.Name]; ok {
			node = &n
		}
		m, err := s.Build(node, env)
		if err != nil {
			err = &ConfigError{Module: s.Name, Err: err}
			env.Log.Error().Err(err).Str("module", s.Name).Msg("Failed to load module")
			errs = append(errs, err)
			continue
		}
		if m == nil {
			continue
		}
		env.Log.Info().Str("module", s.Name).Msg("Module enabled")
		modules = append(modules, m)
	}
	return NewPipeline(env.Log, modules...), errs
}

// Order returns specs rearranged so that names listed in order come first.
// Unlisted specs keep their relative order.
func Order(specs []Spec, order []string) []Spec {
	if len(order) == 0 {
		return specs
	}
	out := make([]Spec, 0, len(specs))
	used := make([]bool, len(specs))
	for _, name := range order {
		for i, s := range specs {
			if !used[i] && s.Name == name {
				out = append(out, s)
				used[i] = true
				break
			}
		}
	}
	for i, s := range specs {
		if !used[i] {
			out = append(out, s)
		}
	}
	return out
}

func (p *Pipeline) Names() []string {
	out := make([]string, 0, len(p.modules))
	for _, m := range p.modules {
		out = append(out, m.Name())
	}
	return out
}

func (p *Pipeline) Len() int { return len(p.modules) }

func (p *Pipeline) Process(ev protocol.Event) {
	for _, m := range p.modules {
		p.guard(m, "process", func() { m.Process(ev) })
	}
}

// Frame runs Update then Render for each module.
func (p *Pipeline) Frame(now time.Time, r render.Renderer) {
	for _, m := range p.modules {
		p.guard(m, "update", func() { m.Update(now) })
		p.guard(m, "render", func() { m.Render(r) })
	}
}

// Chat offers a chat line to every module and reports whether any of them
// consumed it.
func (p *Pipeline) Chat(text string) bool {
	consumed := false
	for _, m := range p.modules {
		p.guard(m, "chat", func() {
			if m.Chat(text) {
				consumed = true
			}
		})
	}
	return consumed
}

func (p *Pipeline) guard(m Module, op string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error().
				Str("module", m.Name()).
				Str("op", op).
				Str("panic", fmt.Sprint(r)).
				Bytes("stack", debug.Stack()).
				Msg("Module panicked")
		}
	}()
	fn()
}
