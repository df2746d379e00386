package kernel

import (
	"math"

	"filterproof/internal/fault"
)

// Gaussian builds taps exp(-0.5·x²/σ²) for x in [-radius, radius], normalized
// to one, scaled by 2^Bits and truncated toward zero. Truncation biases every
// tap low; the deficit is added to the centre tap.
func Gaussian(sigma float64, radius int, p Precision) (Kernel, error) {
	const op = "kernel.Gaussian"
	if err := p.Validate(); err != nil {
		return Kernel{}, err
	}
	if math.IsNaN(sigma) || math.IsInf(sigma, 0) || sigma <= 0 {
		return Kernel{}, fault.Config(op, "sigma %v must be positive and finite", sigma)
	}
	if radius < 0 {
		return Kernel{}, fault.Config(op, "radius %d is negative", radius)
	}
	n := 2*radius + 1
	w := make([]float64, n)
	var sum float64
	for i := range w {
		x := float64(i - radius)
		w[i] = math.Exp(-0.5 * x * x / (sigma * sigma))
		sum += w[i]
	}
	scale := p.Scale()
	taps := make([]uint64, n)
	for i := range w {
		taps[i] = uint64(w[i] / sum * float64(scale))
	}
	foldResidual(taps, radius, scale)
	return Kernel{Taps: taps, Bits: p.Bits}, nil
}

// Box builds a uniform averaging kernel of 2·radius+1 taps.
func Box(radius int, p Precision) (Kernel, error) {
	if err := p.Validate(); err != nil {
		return Kernel{}, err
	}
	if radius < 0 {
		return Kernel{}, fault.Config("kernel.Box", "radius %d is negative", radius)
	}
	n := 2*radius + 1
	scale := p.Scale()
	taps := make([]uint64, n)
	for i := range taps {
		taps[i] = scale / uint64(n)
	}
	foldResidual(taps, radius, scale)
	return Kernel{Taps: taps, Bits: p.Bits}, nil
}
