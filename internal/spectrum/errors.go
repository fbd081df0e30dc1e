// SPDX-License-Identifier: MIT
package spectrum

import "errors"

var (
	// ErrConfiguration rejects an aggregator configuration that cannot be
	// processed, such as a non-power-of-two FFT size.
	ErrConfiguration = errors.New("spectrum: invalid configuration")

	// ErrUnsupportedFormat rejects a capture buffer whose encoding, bit depth
	// or channel layout the aggregator does not decode.
	ErrUnsupportedFormat = errors.New("spectrum: unsupported sample format")

	// ErrFormatMismatch reports a buffer whose sample rate differs from the
	// rate the filter bank was built for. Call SetSampleRate first.
	ErrFormatMismatch = errors.New("spectrum: sample rate does not match configuration")

	// ErrShortBuffer reports an offset/count pair outside the buffer.
	ErrShortBuffer = errors.New("spectrum: byte range outside buffer")
)
