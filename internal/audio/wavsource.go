// SPDX-License-Identifier: MIT
package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"nowplaying/internal/spectrum"
)

// ErrInvalidWAV is returned for files the WAV decoder rejects.
var ErrInvalidWAV = errors.New("invalid WAV file")

// FileStats summarizes an offline analysis run.
type FileStats struct {
	SampleRate int
	Channels   int
	BitDepth   int
	Samples    int // sample frames read
	Frames     uint64
	Duration   time.Duration
}

// AnalyzeFile replays a PCM WAV file through a fresh pipeline as if it had
// been captured live. cfg.SampleRate is taken from the file. The file is
// read in chunks of one FFT window so every emitted frame reaches handler.
func AnalyzeFile(ctx context.Context, path string, cfg spectrum.Config, stereo bool, handler OutputHandler) (FileStats, error) {
	var stats FileStats

	f, err := os.Open(path)
	if err != nil {
		return stats, err
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return stats, fmt.Errorf("%s: %w", path, ErrInvalidWAV)
	}
	if err := dec.FwdToPCM(); err != nil {
		return stats, fmt.Errorf("reading WAV PCM data: %w", err)
	}

	stats.SampleRate = int(dec.SampleRate)
	stats.Channels = int(dec.NumChans)
	stats.BitDepth = int(dec.BitDepth)
	switch stats.BitDepth {
	case 16, 24, 32:
	default:
		return stats, fmt.Errorf("%w: %d-bit WAV", spectrum.ErrUnsupportedFormat, stats.BitDepth)
	}
	if stats.Channels < 1 {
		return stats, fmt.Errorf("%w: %d channels", spectrum.ErrUnsupportedFormat, stats.Channels)
	}

	cfg.SampleRate = stats.SampleRate
	pipeline, err := NewPipeline(cfg, stereo, handler)
	if err != nil {
		return stats, err
	}
	format := spectrum.Format{Encoding: spectrum.EncodingFloat32, Channels: stats.Channels, SampleRate: stats.SampleRate}

	chunk := pipeline.Config().FFTSize * stats.Channels
	ibuf := &audio.IntBuffer{
		Format:         dec.Format(),
		Data:           make([]int, chunk),
		SourceBitDepth: stats.BitDepth,
	}
	fbuf := make([]float32, chunk)
	bbuf := make([]byte, 4*chunk)
	scale := 1 / float64(int64(1)<<(stats.BitDepth-1))

	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		n, err := dec.PCMBuffer(ibuf)
		if err != nil && !errors.Is(err, io.EOF) {
			return stats, fmt.Errorf("decoding %s: %w", path, err)
		}
		if n == 0 {
			break
		}
		for i := range n {
			fbuf[i] = float32(float64(ibuf.Data[i]) * scale)
		}
		nb := spectrum.PutFloat32(bbuf, fbuf[:n])
		if err := pipeline.Write(bbuf, 0, nb, format); err != nil {
			return stats, err
		}
		stats.Samples += n / stats.Channels
	}

	stats.Frames = pipeline.Stats().Frames
	stats.Duration = time.Duration(float64(stats.Samples) / float64(stats.SampleRate) * float64(time.Second))
	return stats, nil
}
