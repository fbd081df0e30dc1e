// SPDX-License-Identifier: MIT
package udp

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"
)

/*
Packet layout, big endian:

	+----------+-----------+----------+--------+--------------------------+
	| Sequence | Timestamp | Channels | Bars   | Magnitudes               |
	| uint32   | int64 ns  | uint8    | uint16 | Channels*Bars * float32  |
	+----------+-----------+----------+--------+--------------------------+

Stereo packets carry all left bars followed by all right bars.
*/

const headerSize = 4 + 8 + 1 + 2

// ErrShortPacket is returned by DecodePacket for truncated input.
var ErrShortPacket = errors.New("udp: short packet")

// Packet is one decoded datagram.
type Packet struct {
	Sequence uint32
	At       time.Time
	Left     []float32
	Right    []float32 // nil for mono
}

// AppendPacket encodes a packet onto dst. right may be nil.
func AppendPacket(dst []byte, seq uint32, at time.Time, left, right []float32) []byte {
	channels := uint8(1)
	if right != nil {
		channels = 2
	}
	dst = binary.BigEndian.AppendUint32(dst, seq)
	dst = binary.BigEndian.AppendUint64(dst, uint64(at.UnixNano()))
	dst = append(dst, channels)
	dst = binary.BigEndian.AppendUint16(dst, uint16(len(left)))
	for _, v := range left {
		dst = binary.BigEndian.AppendUint32(dst, math.Float32bits(v))
	}
	if right != nil {
		for i := range left {
			var v float32
			if i < len(right) {
				v = right[i]
			}
			dst = binary.BigEndian.AppendUint32(dst, math.Float32bits(v))
		}
	}
	return dst
}

// DecodePacket parses a datagram produced by AppendPacket.
func DecodePacket(b []byte) (Packet, error) {
	if len(b) < headerSize {
		return Packet{}, ErrShortPacket
	}
	p := Packet{
		Sequence: binary.BigEndian.Uint32(b),
		At:       time.Unix(0, int64(binary.BigEndian.Uint64(b[4:]))),
	}
	channels := int(b[12])
	bars := int(binary.BigEndian.Uint16(b[13:]))
	if channels != 1 && channels != 2 {
		return Packet{}, fmt.Errorf("udp: bad channel count %d", channels)
	}
	body := b[headerSize:]
	if len(body) < channels*bars*4 {
		return Packet{}, fmt.Errorf("%w: want %d magnitudes, have %d bytes", ErrShortPacket, channels*bars, len(body))
	}
	read := func() []float32 {
		out := make([]float32, bars)
		for i := range out {
			out[i] = math.Float32frombits(binary.BigEndian.Uint32(body))
			body = body[4:]
		}
		return out
	}
	p.Left = read()
	if channels == 2 {
		p.Right = read()
	}
	return p, nil
}
