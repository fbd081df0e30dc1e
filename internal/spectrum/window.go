// SPDX-License-Identifier: MIT
package spectrum

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/dsp/window"
)

// WindowFunc selects the analysis window applied at the write cursor.
type WindowFunc int

// Hann is the zero value so an unset window is the default.
const (
	Hann WindowFunc = iota
	BartlettHann
	Blackman
	BlackmanNuttall
	Hamming
	Lanczos
	Nuttall
)

var windowNames = map[WindowFunc]string{
	Hann:            "hann",
	BartlettHann:    "bartletthann",
	Blackman:        "blackman",
	BlackmanNuttall: "blackmannuttall",
	Hamming:         "hamming",
	Lanczos:         "lanczos",
	Nuttall:         "nuttall",
}

func (w WindowFunc) String() string {
	if name, ok := windowNames[w]; ok {
		return name
	}
	return fmt.Sprintf("window(%d)", int(w))
}

// ParseWindowFunc converts a string name (case-insensitive) to a WindowFunc.
// It returns Hann and an error if the name is unknown.
func ParseWindowFunc(name string) (WindowFunc, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "hann", "hanning":
		return Hann, nil
	case "bartletthann":
		return BartlettHann, nil
	case "blackman":
		return Blackman, nil
	case "blackmannuttall":
		return BlackmanNuttall, nil
	case "hamming":
		return Hamming, nil
	case "lanczos":
		return Lanczos, nil
	case "nuttall":
		return Nuttall, nil
	default:
		return Hann, fmt.Errorf("%w: unknown window function %q", ErrConfiguration, name)
	}
}

// windowTable returns n coefficients of the selected window. gonum's
// windows use the symmetric (n-1) denominator, so Hann here is
// 0.5*(1-cos(2*pi*i/(n-1))).
func windowTable(n int, w WindowFunc) []float64 {
	coeffs := make([]float64, n)
	for i := range coeffs {
		coeffs[i] = 1
	}
	switch w {
	case BartlettHann:
		window.BartlettHann(coeffs)
	case Blackman:
		window.Blackman(coeffs)
	case BlackmanNuttall:
		window.BlackmanNuttall(coeffs)
	case Hamming:
		window.Hamming(coeffs)
	case Lanczos:
		window.Lanczos(coeffs)
	case Nuttall:
		window.Nuttall(coeffs)
	default:
		window.Hann(coeffs)
	}
	return coeffs
}
