// SPDX-License-Identifier: MIT
package spectrum

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Encoding identifies the sample encoding of a capture buffer.
type Encoding int

const (
	// EncodingFloat32 is interleaved little-endian 32-bit IEEE float.
	EncodingFloat32 Encoding = iota + 1
	// EncodingPCM16 is interleaved little-endian signed 16-bit PCM.
	EncodingPCM16
)

func (e Encoding) String() string {
	switch e {
	case EncodingFloat32:
		return "float32"
	case EncodingPCM16:
		return "pcm16"
	default:
		return fmt.Sprintf("encoding(%d)", int(e))
	}
}

// Format describes the layout of a capture buffer.
type Format struct {
	Encoding   Encoding
	Channels   int
	SampleRate int
}

// BytesPerSample returns the size of one sample of one channel, or 0 for an
// unknown encoding.
func (f Format) BytesPerSample() int {
	switch f.Encoding {
	case EncodingFloat32:
		return 4
	case EncodingPCM16:
		return 2
	default:
		return 0
	}
}

// FrameSize returns the byte size of one interleaved frame (all channels).
func (f Format) FrameSize() int {
	return f.BytesPerSample() * f.Channels
}

// validate checks the format and the byte range it is applied to.
func (f Format) validate(buf []byte, offset, count int) error {
	if f.BytesPerSample() == 0 {
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, f.Encoding)
	}
	if f.Channels < 1 {
		return fmt.Errorf("%w: %d channels", ErrUnsupportedFormat, f.Channels)
	}
	if offset < 0 || count < 0 || offset+count > len(buf) {
		return fmt.Errorf("%w: offset %d count %d len %d", ErrShortBuffer, offset, count, len(buf))
	}
	return nil
}

// sampleAt decodes the sample at byte position p as a float in [-1, 1].
func (f Format) sampleAt(buf []byte, p int) float64 {
	if f.Encoding == EncodingFloat32 {
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(buf[p:])))
	}
	return float64(int16(binary.LittleEndian.Uint16(buf[p:]))) / 32768.0
}

// PutFloat32 encodes samples as little-endian float32 into dst and returns
// the number of bytes written. dst must hold 4*len(samples) bytes.
func PutFloat32(dst []byte, samples []float32) int {
	for i, s := range samples {
		binary.LittleEndian.PutUint32(dst[4*i:], math.Float32bits(s))
	}
	return 4 * len(samples)
}

// PutPCM16 encodes samples as little-endian int16 into dst and returns the
// number of bytes written. dst must hold 2*len(samples) bytes.
func PutPCM16(dst []byte, samples []int16) int {
	for i, s := range samples {
		binary.LittleEndian.PutUint16(dst[2*i:], uint16(s))
	}
	return 2 * len(samples)
}
