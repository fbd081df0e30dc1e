// SPDX-License-Identifier: MIT
package audio

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// ErrAlreadyRecording is returned when a recording is started twice.
var ErrAlreadyRecording = errors.New("already recording")

// Recorder writes float capture buffers to a PCM WAV file.
type Recorder struct {
	mu        sync.Mutex
	path      string
	file      *os.File
	enc       *wav.Encoder
	buf       *audio.IntBuffer // reused across writes
	scale     float64
	channels  int
	frames    int
	maxFrames int // 0 for unlimited
	closed    bool
}

// NewRecorder creates path and writes a WAV header for the given layout.
// bitDepth is 16, 24 or 32; maxDuration 0 records until Close.
func NewRecorder(path string, sampleRate, channels, bitDepth int, maxDuration time.Duration) (*Recorder, error) {
	switch bitDepth {
	case 16, 24, 32:
	default:
		return nil, fmt.Errorf("unsupported bit depth %d", bitDepth)
	}
	if channels < 1 || sampleRate <= 0 {
		return nil, fmt.Errorf("invalid recording layout: %d channels at %d Hz", channels, sampleRate)
	}

	file, err := os.Create(path)
	if err != nil {
		return nil, err
	}

	r := &Recorder{
		path:     path,
		file:     file,
		enc:      wav.NewEncoder(file, sampleRate, bitDepth, channels, 1),
		scale:    float64(int64(1)<<(bitDepth-1) - 1),
		channels: channels,
		buf: &audio.IntBuffer{
			Format:         &audio.Format{NumChannels: channels, SampleRate: sampleRate},
			SourceBitDepth: bitDepth,
		},
	}
	if maxDuration > 0 {
		r.maxFrames = int(maxDuration.Seconds() * float64(sampleRate))
	}
	return r, nil
}

// RecordingPath returns a timestamped file name inside dir.
func RecordingPath(dir string, now time.Time) string {
	return filepath.Join(dir, "nowplaying-"+now.Format("20060102-150405")+".wav")
}

// Path returns the file being written.
func (r *Recorder) Path() string { return r.path }

// Frames returns the number of sample frames written so far.
func (r *Recorder) Frames() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frames
}

// Write appends interleaved samples in [-1, 1]. Samples past the maximum
// duration are discarded. Writing after Close is a no-op.
func (r *Recorder) Write(samples []float32) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}

	n := len(samples) / r.channels
	if r.maxFrames > 0 {
		n = min(n, r.maxFrames-r.frames)
	}
	if n <= 0 {
		return nil
	}
	samples = samples[:n*r.channels]

	if cap(r.buf.Data) < len(samples) {
		r.buf.Data = make([]int, len(samples))
	}
	r.buf.Data = r.buf.Data[:len(samples)]
	for i, s := range samples {
		v := min(max(float64(s), -1), 1)
		r.buf.Data[i] = int(v * r.scale)
	}

	if err := r.enc.Write(r.buf); err != nil {
		return fmt.Errorf("writing %s: %w", r.path, err)
	}
	r.frames += n
	return nil
}

// Close finalizes the WAV header and closes the file.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true

	encErr := r.enc.Close()
	fileErr := r.file.Close()
	return errors.Join(encErr, fileErr)
}
