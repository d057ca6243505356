package main

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"mutool.ai/internal/protocol"
	"mutool.ai/internal/render"
	"mutool.ai/internal/render/term"
)

// output stands in for the hook: it logs what the runtime would send and
// optionally draws frames.
type output struct {
	log      zerolog.Logger
	screen   *term.Screen
	commands int
}

func (o *output) Send(v any) error {
	if e, ok := v.(protocol.ErrorMsg); ok {
		o.log.Warn().Str("code", e.Code).Str("message", e.Message).Msg("Runtime rejected frame")
	}
	return nil
}

func (o *output) Command(command string, slot int) error {
	o.commands++
	o.log.Info().Str("command", command).Int("slot", slot).Msg("Command")
	return nil
}

func (o *output) ShowNotice(text string) {
	o.log.Info().Str("text", text).Msg("Notice")
}

func (o *output) SendFrame(ops []render.Op) error {
	if o.screen == nil {
		return nil
	}
	o.screen.Begin()
	render.Play(o.screen, ops)
	o.screen.Show()
	return nil
}

// player paces records by their capture timestamps.
type player struct {
	speed float64
	sleep func(ctx context.Context, d time.Duration) error
	last  time.Time
}

func (p *player) wait(ctx context.Context, at time.Time) error {
	defer func() { p.last = at }()
	if p.speed <= 0 || p.last.IsZero() || !at.After(p.last) {
		return nil
	}
	return p.sleep(ctx, time.Duration(float64(at.Sub(p.last))/p.speed))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
