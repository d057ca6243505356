// Package term draws the overlay on a terminal, scaling the game canvas to
// the terminal grid.
package term

import (
	"github.com/gdamore/tcell/v2"

	"mutool.ai/internal/render"
)

type Screen struct {
	screen tcell.Screen
}

// New wraps an initialized tcell screen.
func New(s tcell.Screen) *Screen {
	return &Screen{screen: s}
}

// Open creates and initializes the terminal screen.
func Open() (*Screen, error) {
	s, err := tcell.NewScreen()
	if err != nil {
		return nil, err
	}
	if err := s.Init(); err != nil {
		return nil, err
	}
	return New(s), nil
}

func (s *Screen) Close() { s.screen.Fini() }

// Begin clears the previous frame.
func (s *Screen) Begin() { s.screen.Clear() }

// Show flushes the frame to the terminal.
func (s *Screen) Show() { s.screen.Show() }

func (s *Screen) cell(x, y float32) (int, int) {
	w, h := s.screen.Size()
	return int(x * float32(w) / render.CanvasWidth), int(y * float32(h) / render.CanvasHeight)
}

func toColor(c render.Color) tcell.Color {
	return tcell.NewRGBColor(int32(c.R), int32(c.G), int32(c.B))
}

func (s *Screen) DrawRectangle(x, y, w, h float32, c render.Color) {
	if c.A == 0 {
		return
	}
	x0, y0 := s.cell(x, y)
	x1, y1 := s.cell(x+w, y+h)
	if x1 == x0 && w > 0 {
		x1 = x0 + 1
	}
	if y1 == y0 && h > 0 {
		y1 = y0 + 1
	}
	style := tcell.StyleDefault.Background(toColor(c))
	for cy := y0; cy < y1; cy++ {
		for cx := x0; cx < x1; cx++ {
			s.screen.SetContent(cx, cy, ' ', nil, style)
		}
	}
}

func (s *Screen) DrawText(text string, x, y int, fg, bg render.Color) {
	cx, cy := s.cell(float32(x), float32(y))
	style := tcell.StyleDefault.Foreground(toColor(fg))
	if bg.A != 0 {
		style = style.Background(toColor(bg))
	}
	for _, r := range text {
		s.screen.SetContent(cx, cy, r, nil, style)
		cx++
	}
}
