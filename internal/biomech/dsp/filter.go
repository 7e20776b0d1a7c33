// Package dsp holds the signal-processing primitives the analysis pipeline
// is built from: zero-phase Butterworth low-pass filtering, threshold event
// detection, trapezoidal integration, and anti-aliased downsampling.
package dsp

import (
	"fmt"
	"math"
)

// sosSection is one biquad of a cascaded second-order-sections filter, with
// the a0 coefficient normalized to 1.
type sosSection struct {
	b0, b1, b2 float64
	a1, a2     float64
}

// designLowPass builds a Butterworth low-pass of the given even order as a
// cascade of second-order sections, using the bilinear transform with the
// cutoff prewarped so the -3 dB point lands exactly on cutoffHz.
func designLowPass(cutoffHz, rateHz float64, order int) ([]sosSection, error) {
	if order < 2 || order%2 != 0 {
		return nil, fmt.Errorf("filter order must be a positive even number, got %d", order)
	}
	if cutoffHz <= 0 {
		return nil, fmt.Errorf("cutoff must be positive, got %g Hz", cutoffHz)
	}
	nyquist := rateHz / 2
	if cutoffHz >= nyquist {
		return nil, fmt.Errorf("cutoff %g Hz must be below the Nyquist frequency %g Hz", cutoffHz, nyquist)
	}

	wa := math.Tan(math.Pi * cutoffHz / rateHz)
	wa2 := wa * wa

	sections := make([]sosSection, order/2)
	for k := range sections {
		// Butterworth pole pair k has quality term 2*sin(theta) with
		// theta = (2k+1)*pi/(2*order).
		q := 2 * math.Sin(math.Pi*float64(2*k+1)/(2*float64(order)))
		d0 := 1 + q*wa + wa2
		sections[k] = sosSection{
			b0: wa2 / d0,
			b1: 2 * wa2 / d0,
			b2: wa2 / d0,
			a1: 2 * (wa2 - 1) / d0,
			a2: (1 - q*wa + wa2) / d0,
		}
	}
	return sections, nil
}

// apply runs the section over values in place, direct form II transposed.
func (s sosSection) apply(values []float64) {
	var z1, z2 float64
	for i, x := range values {
		y := s.b0*x + z1
		z1 = s.b1*x - s.a1*y + z2
		z2 = s.b2*x - s.a2*y
		values[i] = y
	}
}

// LowPass applies a zero-phase Butterworth low-pass: the cascade is run
// forward and then backward over the signal, which cancels the phase lag
// and doubles the effective order. The input is padded at both ends with
// an odd reflection so filter transients settle outside the signal.
func LowPass(values []float64, cutoffHz, rateHz float64, order int) ([]float64, error) {
	sections, err := designLowPass(cutoffHz, rateHz, order)
	if err != nil {
		return nil, err
	}

	n := len(values)
	padLen := 3 * (order + 1)
	if padLen >= n {
		padLen = n - 1
	}
	if padLen < 0 {
		padLen = 0
	}

	padded := make([]float64, n+2*padLen)
	for i := 0; i < padLen; i++ {
		padded[i] = 2*values[0] - values[padLen-i]
	}
	copy(padded[padLen:], values)
	for i := 0; i < padLen; i++ {
		padded[padLen+n+i] = 2*values[n-1] - values[n-2-i]
	}

	for _, s := range sections {
		s.apply(padded)
	}
	reverse(padded)
	for _, s := range sections {
		s.apply(padded)
	}
	reverse(padded)

	out := make([]float64, n)
	copy(out, padded[padLen:padLen+n])
	return out, nil
}

func reverse(values []float64) {
	for i, j := 0, len(values)-1; i < j; i, j = i+1, j-1 {
		values[i], values[j] = values[j], values[i]
	}
}
