package render

import (
	"fmt"
	"hash/fnv"
)

// Game canvas size in virtual units.
const (
	CanvasWidth  = 640
	CanvasHeight = 480
)

// Renderer draws on the game overlay.
type Renderer interface {
	DrawRectangle(x, y, w, h float32, c Color)
	DrawText(text string, x, y int, fg, bg Color)
}

type Color struct {
	R, G, B, A uint8
}

var (
	Black       = Color{A: 0xFF}
	White       = Color{R: 0xFF, G: 0xFF, B: 0xFF, A: 0xFF}
	Transparent = Color{}
)

// Hex builds an opaque color from 0xRRGGBB.
func Hex(v uint32) Color {
	return Color{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xFF}
}

func (c Color) Alpha(a uint8) Color {
	c.A = a
	return c
}

// FromString derives a stable, readable color from s.
func FromString(s string) Color {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	v := h.Sum32()
	// keep every channel in the upper half so text stays legible on black
	return Color{R: 0x80 | uint8(v>>16)&0x7F, G: 0x80 | uint8(v>>8)&0x7F, B: 0x80 | uint8(v)&0x7F, A: 0xFF}
}

func (c Color) String() string { return fmt.Sprintf("#%02X%02X%02X%02X", c.R, c.G, c.B, c.A) }

func (c Color) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

func (c *Color) UnmarshalText(b []byte) error {
	var r, g, bl, a uint8
	if _, err := fmt.Sscanf(string(b), "#%02X%02X%02X%02X", &r, &g, &bl, &a); err != nil {
		return fmt.Errorf("color %q: %w", b, err)
	}
	*c = Color{R: r, G: g, B: bl, A: a}
	return nil
}

const (
	OpRect = "RECT"
	OpText = "TEXT"
)

// Op is one recorded draw call.
type Op struct {
	Kind string  `json:"kind"`
	X    float32 `json:"x"`
	Y    float32 `json:"y"`
	W    float32 `json:"w,omitempty"`
	H    float32 `json:"h,omitempty"`
	Text string  `json:"text,omitempty"`
	FG   Color   `json:"fg"`
	BG   Color   `json:"bg"`
}

// Recorder is a Renderer that keeps the draw calls of one frame.
type Recorder struct {
	ops []Op
}

func (r *Recorder) DrawRectangle(x, y, w, h float32, c Color) {
	r.ops = append(r.ops, Op{Kind: OpRect, X: x, Y: y, W: w, H: h, FG: c})
}

func (r *Recorder) DrawText(text string, x, y int, fg, bg Color) {
	r.ops = append(r.ops, Op{Kind: OpText, X: float32(x), Y: float32(y), Text: text, FG: fg, BG: bg})
}

func (r *Recorder) Ops() []Op { return r.ops }

// Take returns the recorded ops and starts a new frame.
func (r *Recorder) Take() []Op {
	ops := r.ops
	r.ops = nil
	return ops
}

// Play draws ops onto dst.
func Play(dst Renderer, ops []Op) {
	for _, op := range ops {
		switch op.Kind {
		case OpRect:
			dst.DrawRectangle(op.X, op.Y, op.W, op.H, op.FG)
		case OpText:
			dst.DrawText(op.Text, int(op.X), int(op.Y), op.FG, op.BG)
		}
	}
}
