// Package app owns the runtime loop: it feeds bridge frames through the
// world mirror and the module pipeline, and answers the hook.
package app

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sync/atomic"
	"time"

	"github.com/bytedance/sonic"
	"github.com/rs/zerolog"

	"mutool.ai/internal/catalog"
	"mutool.ai/internal/config"
	"mutool.ai/internal/module"
	"mutool.ai/internal/notify"
	"mutool.ai/internal/protocol"
	"mutool.ai/internal/render"
	"mutool.ai/internal/transport/bridge"
	"mutool.ai/internal/world"
)

// Outbound is the hook-facing side of the bridge.
type Outbound interface {
	Send(v any) error
	Command(command string, slot int) error
	ShowNotice(text string)
	SendFrame(ops []render.Op) error
}

// FrameSink receives every raw inbound frame, e.g. a capture writer.
type FrameSink interface {
	WriteFrame(frame []byte) error
}

type Options struct {
	Log    zerolog.Logger
	Config config.Config
	// Specs defaults to DefaultSpecs.
	Specs []module.Spec
	Out   Outbound
	// Resolver builds the catalog on connect when no cache was installed.
	// Nil disables catalog building.
	Resolver catalog.NameResolver
	Notify   notify.Service
	History  module.History
	Capture  FrameSink
	Now      func() time.Time
}

// Metrics are counters sampled by the metrics endpoint.
type Metrics struct {
	Frames     uint64
	Events     uint64
	BadPackets uint64
	Modules    int
}

type catalogResult struct {
	entries []catalog.Entry
	err     error
}

// Runtime is the single-goroutine context every module runs in. Only Run
// (or Handle, when driven directly) may touch the mirror and pipeline.
type Runtime struct {
	log      zerolog.Logger
	cfg      config.Config
	specs    []module.Spec
	out      Outbound
	resolver catalog.NameResolver
	notify   notify.Service
	history  module.History
	capture  FrameSink
	now      func() time.Time

	classifier *protocol.Classifier
	mirror     *world.Mirror
	pipeline   *module.Pipeline
	recorder   render.Recorder

	catalog   *catalog.Once
	building  bool
	catalogCh chan catalogResult

	// hookFrames is set once the hook drives frames itself.
	hookFrames bool

	modules    atomic.Value // []string
	frames     atomic.Uint64
	events     atomic.Uint64
	badPackets atomic.Uint64
}

func New(opts Options) *Runtime {
	if opts.Specs == nil {
		opts.Specs = DefaultSpecs()
	}
	if opts.Notify == nil {
		opts.Notify = notify.NewLog(opts.Log)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	r := &Runtime{
		log:        opts.Log.With().Str("component", "runtime").Logger(),
		cfg:        opts.Config,
		specs:      opts.Specs,
		out:        opts.Out,
		resolver:   opts.Resolver,
		notify:     opts.Notify,
		history:    opts.History,
		capture:    opts.Capture,
		now:        opts.Now,
		classifier: protocol.NewClassifier(),
		mirror:     world.NewMirror(),
		catalog:    &catalog.Once{},
		catalogCh:  make(chan catalogResult, 1),
	}
	r.modules.Store([]string(nil))
	return r
}

// Modules lists the loaded modules in pipeline order. Safe for concurrent
// use.
func (r *Runtime) Modules() []string {
	names, _ := r.modules.Load().([]string)
	return names
}

func (r *Runtime) Metrics() Metrics {
	return Metrics{
		Frames:     r.frames.Load(),
		Events:     r.events.Load(),
		BadPackets: r.badPackets.Load(),
		Modules:    len(r.Modules()),
	}
}

// Ready reports whether the pipeline has been built.
func (r *Runtime) Ready() bool { return r.pipeline != nil }

// LoadCache installs the cached catalog unless a rebuild was requested.
// It reports whether a pipeline was built.
func (r *Runtime) LoadCache() bool {
	path := r.cfg.Catalog.Cache
	if path == "" || r.cfg.Catalog.Rebuild {
		return false
	}
	entries, err := catalog.LoadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			r.log.Info().Str("path", path).Msg("No catalog cache, building on connect")
		} else {
			r.log.Warn().Err(err).Str("path", path).Msg("Failed to load catalog cache")
		}
		return false
	}
	r.Install(entries)
	return true
}

// Install builds the pipeline over entries. It has no effect once a
// pipeline exists.
func (r *Runtime) Install(entries []catalog.Entry) []error {
	if r.pipeline != nil {
		return nil
	}
	r.catalog.Set(entries)
	env := &module.Env{
		World:   r.mirror,
		Sender:  &sender{out: r.out, mirror: r.mirror},
		Noticer: r.out,
		Notify:  r.notify,
		History: r.history,
		Catalog: entries,
		Log:     r.log.With().Str("component", "pipeline").Logger(),
		Now:     r.now,
	}
	for name := range r.cfg.Modules {
		if !r.known(name) {
			r.log.Warn().Str("module", name).Msg("Unknown module section")
		}
	}
	p, errs := module.Load(r.specs, r.cfg.Modules, r.cfg.Order, env)
	r.pipeline = p
	r.modules.Store(p.Names())
	r.log.Info().Int("modules", p.Len()).Int("catalog", len(entries)).Msg("Pipeline ready")
	return errs
}

func (r *Runtime) known(name string) bool {
	for _, s := range r.specs {
		if s.Name == name {
			return true
		}
	}
	return false
}

// Run handles inbox frames until ctx is done or the inbox closes. When the
// hook does not drive frames, modules are updated at the configured rate.
func (r *Runtime) Run(ctx context.Context, inbox <-chan bridge.Inbound) error {
	var tick <-chan time.Time
	if hz := r.cfg.Bridge.FrameHz; hz > 0 {
		t := time.NewTicker(time.Second / time.Duration(hz))
		defer t.Stop()
		tick = t.C
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case in, ok := <-inbox:
			if !ok {
				return nil
			}
			r.Handle(ctx, in)
		case res := <-r.catalogCh:
			r.finishCatalog(res)
		case <-tick:
			if !r.hookFrames && r.pipeline != nil {
				r.pipeline.Frame(r.now(), &r.recorder)
				r.recorder.Take()
			}
		}
	}
}

// Handle dispatches one inbound frame.
func (r *Runtime) Handle(ctx context.Context, in bridge.Inbound) {
	if r.capture != nil && len(in.Raw) > 0 {
		if err := r.capture.WriteFrame(in.Raw); err != nil {
			r.log.Warn().Err(err).Msg("Failed to capture frame")
		}
	}

	switch in.Type {
	case bridge.TypeConnected, protocol.TypeHello:
		r.connected(ctx, in.Session)
	case bridge.TypeDisconnected:
		r.log.Info().Str("session", in.Session).Msg("Hook disconnected")
		r.mirror.Reset()
		r.hookFrames = false
	case protocol.TypePacket:
		r.packet(in.Raw)
	case protocol.TypeState:
		var msg protocol.StateMsg
		if err := sonic.Unmarshal(in.Raw, &msg); err != nil {
			r.reject(protocol.ErrProtoBadRequest, fmt.Errorf("state: %w", err))
			return
		}
		r.mirror.Apply(msg.World)
	case protocol.TypeSignal:
		var msg protocol.SignalMsg
		if err := sonic.Unmarshal(in.Raw, &msg); err != nil {
			r.reject(protocol.ErrProtoBadRequest, fmt.Errorf("signal: %w", err))
			return
		}
		r.signal(msg.Signal)
	case protocol.TypeChat:
		var msg protocol.ChatMsg
		if err := sonic.Unmarshal(in.Raw, &msg); err != nil {
			r.reject(protocol.ErrProtoBadRequest, fmt.Errorf("chat: %w", err))
			return
		}
		if r.pipeline != nil && r.pipeline.Chat(msg.Text) {
			r.log.Debug().Str("text", msg.Text).Msg("Chat command consumed")
		}
	default:
		r.log.Debug().Str("type", in.Type).Msg("Ignoring frame")
	}
}

func (r *Runtime) connected(ctx context.Context, session string) {
	r.log.Info().Str("session", session).Msg("Hook connected")
	r.mirror.Reset()
	r.hookFrames = false
	if r.pipeline != nil || r.building || r.resolver == nil {
		return
	}
	r.building = true
	once := r.catalog
	resolver := r.resolver
	r.log.Info().Msg("Building item catalog")
	go func() {
		entries, err := once.Get(ctx, resolver)
		r.catalogCh <- catalogResult{entries: entries, err: err}
	}()
}

func (r *Runtime) finishCatalog(res catalogResult) {
	r.building = false
	if res.err != nil {
		r.log.Error().Err(res.err).Msg("Failed to build item catalog")
		// The next connection retries with a fresh build.
		r.catalog = &catalog.Once{}
		return
	}
	if path := r.cfg.Catalog.Cache; path != "" {
		if err := catalog.SaveFile(path, res.entries); err != nil {
			r.log.Warn().Err(err).Str("path", path).Msg("Failed to save catalog cache")
		}
	}
	r.Install(res.entries)
}

func (r *Runtime) packet(raw []byte) {
	var msg protocol.PacketMsg
	if err := sonic.Unmarshal(raw, &msg); err != nil {
		r.reject(protocol.ErrProtoBadRequest, fmt.Errorf("packet: %w", err))
		return
	}
	ev, err := r.classifier.Classify(msg.Data)
	if err != nil {
		r.badPackets.Add(1)
		r.reject(protocol.ErrBadPacket, err)
		return
	}
	if ev == nil || r.pipeline == nil {
		return
	}
	r.events.Add(1)
	r.pipeline.Process(ev)
}

func (r *Runtime) signal(sig string) {
	switch sig {
	case protocol.SignalReload:
		r.process(protocol.WorldReload{})
	case protocol.SignalPickup:
		r.process(protocol.PickupTrigger{})
	case protocol.SignalFrame:
		r.hookFrames = true
		if r.pipeline != nil {
			r.pipeline.Frame(r.now(), &r.recorder)
		}
		r.frames.Add(1)
		if err := r.out.SendFrame(r.recorder.Take()); err != nil {
			r.log.Debug().Err(err).Msg("Failed to send frame")
		}
	default:
		r.reject(protocol.ErrUnknownSignal, fmt.Errorf("unknown signal %q", sig))
	}
}

func (r *Runtime) process(ev protocol.Event) {
	if r.pipeline == nil {
		return
	}
	r.events.Add(1)
	r.pipeline.Process(ev)
}

func (r *Runtime) reject(code string, err error) {
	r.log.Debug().Err(err).Str("code", code).Msg("Rejecting frame")
	msg := protocol.ErrorMsg{Type: protocol.TypeError, Code: code, Message: err.Error()}
	if sendErr := r.out.Send(msg); sendErr != nil {
		r.log.Debug().Err(sendErr).Msg("Failed to send error")
	}
}

// sender turns module requests into hook commands. A pickup stays pending
// until the next STATE replaces the mirror.
type sender struct {
	out    Outbound
	mirror *world.Mirror
}

func (s *sender) PickupPending() bool { return s.mirror.PickupPending() }

func (s *sender) SendPickupRequest(slot int) error {
	if err := s.out.Command(protocol.CommandPickup, slot); err != nil {
		return fmt.Errorf("%w: pickup %d: %w", module.ErrSend, slot, err)
	}
	s.mirror.SetPickupPending(true)
	return nil
}

func (s *sender) UseItem(slot int) error {
	if err := s.out.Command(protocol.CommandUseItem, slot); err != nil {
		return fmt.Errorf("%w: use item %d: %w", module.ErrSend, slot, err)
	}
	s.mirror.SetPotionInUse(true)
	return nil
}

func (s *sender) RepairItem(slot int) error {
	if err := s.out.Command(protocol.CommandRepair, slot); err != nil {
		return fmt.Errorf("%w: repair %d: %w", module.ErrSend, slot, err)
	}
	return nil
}

func (s *sender) Screenshot() error {
	if err := s.out.Command(protocol.CommandScreenshot, 0); err != nil {
		return fmt.Errorf("%w: screenshot: %w", module.ErrSend, err)
	}
	return nil
}
