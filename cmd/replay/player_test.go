package main

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rs/zerolog"

	"mutool.ai/internal/render"
	"mutool.ai/internal/render/term"
)

func TestPlayer_ScalesGaps(t *testing.T) {
	var slept []time.Duration
	p := player{speed: 2, sleep: func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}}
	t0 := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	for _, at := range []time.Time{t0, t0.Add(time.Second), t0.Add(time.Second), t0.Add(3 * time.Second)} {
		if err := p.wait(context.Background(), at); err != nil {
			t.Fatalf("wait: %v", err)
		}
	}
	if want := []time.Duration{500 * time.Millisecond, time.Second}; !reflect.DeepEqual(slept, want) {
		t.Fatalf("slept=%v want %v", slept, want)
	}
}

func TestPlayer_UnpacedByDefault(t *testing.T) {
	p := player{sleep: func(context.Context, time.Duration) error {
		t.Fatalf("unexpected sleep")
		return nil
	}}
	t0 := time.Now()
	_ = p.wait(context.Background(), t0)
	_ = p.wait(context.Background(), t0.Add(time.Minute))
}

func TestOutput_DrawsFrames(t *testing.T) {
	sim := tcell.NewSimulationScreen("UTF-8")
	if err := sim.Init(); err != nil {
		t.Fatalf("init: %v", err)
	}
	defer sim.Fini()
	sim.SetSize(80, 24)

	o := &output{log: zerolog.Nop(), screen: term.New(sim)}
	ops := []render.Op{{Kind: render.OpText, X: 0, Y: 0, Text: "Hero", FG: render.White, BG: render.Transparent}}
	if err := o.SendFrame(ops); err != nil {
		t.Fatalf("frame: %v", err)
	}
	if r, _, _, _ := sim.GetContent(0, 0); r != 'H' {
		t.Fatalf("first cell=%q", r)
	}
	if err := o.Command("PICKUP", 3); err != nil || o.commands != 1 {
		t.Fatalf("command: %v %d", err, o.commands)
	}
}
