// SPDX-License-Identifier: MIT
package tui

import (
	"strings"

	"github.com/charmbracelet/harmonica"
)

var barChars = []rune(" ▁▂▃▄▅▆▇█")

// springField animates each bar toward its latest magnitude.
type springField struct {
	spring harmonica.Spring
	pos    []float64
	vel    []float64
}

func newSpringField(fps int, frequency, damping float64) springField {
	return springField{spring: harmonica.NewSpring(harmonica.FPS(fps), frequency, damping)}
}

func (s *springField) resize(n int) {
	if len(s.pos) == n {
		return
	}
	s.pos = make([]float64, n)
	s.vel = make([]float64, n)
}

// step advances every bar one frame toward targets. Missing targets pull
// toward zero.
func (s *springField) step(targets []float32) {
	for i := range s.pos {
		var target float64
		if i < len(targets) {
			target = float64(targets[i])
		}
		p, v := s.spring.Update(s.pos[i], s.vel[i], target)
		s.pos[i] = min(max(p, 0), 1)
		s.vel[i] = v
	}
}

// settled reports whether every bar is at rest near zero.
func (s *springField) settled() bool {
	for i := range s.pos {
		if s.pos[i] > 0.005 || s.vel[i] > 0.005 || s.vel[i] < -0.005 {
			return false
		}
	}
	return true
}

// renderBars draws levels in [0,1] as height rows of block characters, one
// column per level plus a gap when width allows.
func renderBars(levels []float64, width, height int) string {
	if len(levels) == 0 || height < 1 {
		return ""
	}
	gap := 0
	if width >= 2*len(levels)-1 {
		gap = 1
	}

	steps := len(barChars) - 1
	rows := make([]string, height)
	for row := range height {
		var line strings.Builder
		// Row 0 is the top.
		floor := float64(height-1-row) * float64(steps)
		for i, lvl := range levels {
			if i > 0 && gap > 0 {
				line.WriteByte(' ')
			}
			cells := lvl*float64(height*steps) - floor
			idx := int(cells + 0.5)
			idx = min(max(idx, 0), steps)
			line.WriteRune(barChars[idx])
		}
		rows[row] = line.String()
	}
	return strings.Join(rows, "\n")
}
