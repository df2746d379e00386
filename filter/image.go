// Package filter evaluates blur and resize directly with two separable passes
// over the pixels, without building the sparse operator. Its output is the
// claim that the freivalds package checks against the operator form.
package filter

import (
	"filterproof/internal/fault"
)

// Image is one 8-bit channel in row-major order.
type Image struct {
	Width, Height int
	Pix           []byte
}

// NewImage checks that pix holds exactly width·height samples.
func NewImage(width, height int, pix []byte) (Image, error) {
	if width <= 0 || height <= 0 {
		return Image{}, fault.Config("filter.NewImage", "dimensions %dx%d must be positive", width, height)
	}
	if len(pix) != width*height {
		return Image{}, fault.Length("filter.NewImage", "pixel buffer", len(pix), width*height)
	}
	return Image{Width: width, Height: height, Pix: pix}, nil
}

// Wide lifts the pixels to uint64.
func (im Image) Wide() []uint64 { return lift(im.Pix) }

// Quantize maps fixed-point values back to pixels by adding half a unit and
// shifting right, then clamping at 255.
func Quantize(y []uint64, shift uint) []byte {
	out := make([]byte, len(y))
	for i, v := range y {
		// adds the rounding bit after the shift so v near 2^64 cannot wrap
		q := v >> shift
		if shift > 0 {
			q += (v >> (shift - 1)) & 1
		}
		if q > 255 {
			q = 255
		}
		out[i] = byte(q)
	}
	return out
}

// Rounding selects where fixed-point results are brought back to 8 bits.
type Rounding int

const (
	// RoundOnce keeps the intermediate pass wide and quantizes once, so the
	// output equals Quantize(M·x) exactly.
	RoundOnce Rounding = iota
	// RoundEachPass quantizes after every 1-D pass, as the video scaler does.
	RoundEachPass
)

func (r Rounding) String() string {
	if r == RoundEachPass {
		return "each-pass"
	}
	return "once"
}

// ParseRounding accepts "once" or "each-pass".
func ParseRounding(s string) (Rounding, error) {
	switch s {
	case "", "once":
		return RoundOnce, nil
	case "each-pass", "each_pass", "eachpass":
		return RoundEachPass, nil
	}
	return 0, fault.Config("filter.ParseRounding", "unknown rounding %q", s)
}
