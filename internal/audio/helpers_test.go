// SPDX-License-Identifier: MIT
package audio

import (
	"sync"

	"nowplaying/internal/spectrum"
	"nowplaying/pkg/utils"
)

const (
	testSampleRate = 48000
	testFrameSize  = 512
)

func sine(freq float64, frames, channels int, amp float64, start int) []float32 {
	return utils.Sine(freq, testSampleRate, frames, channels, amp, start)
}

// collector gathers pipeline output.
type collector struct {
	mu   sync.Mutex
	outs []spectrum.Output
}

func (c *collector) handle(o spectrum.Output) {
	c.mu.Lock()
	c.outs = append(c.outs, o)
	c.mu.Unlock()
}

func (c *collector) all() []spectrum.Output {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]spectrum.Output(nil), c.outs...)
}

func argmax(f spectrum.Frame) int { return utils.Argmax(f) }
