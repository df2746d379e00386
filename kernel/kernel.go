// Package kernel turns continuous filter parameters into fixed-point integer
// taps. Every kernel carries its own precision so that several scales can be
// used side by side in one process.
package kernel

import (
	"encoding/binary"
	"fmt"

	"filterproof/internal/fault"

	"golang.org/x/crypto/sha3"
)

// ErrConfig is returned (wrapped) for every rejected filter parameter.
var ErrConfig = fault.ErrConfig

// MaxBits bounds Precision.Bits. Two passes at 30 bits plus an 8-bit pixel
// still fit a 64-bit accumulator only for narrow kernels, so callers check
// headroom separately through operator.Separable.Fits.
const MaxBits = 30

// Precision is a power-of-two fixed-point denominator 2^Bits.
type Precision struct {
	Bits uint `json:"bits" toml:"bits" yaml:"bits"`
}

// Scale returns 2^Bits.
func (p Precision) Scale() uint64 { return uint64(1) << p.Bits }

func (p Precision) Validate() error {
	if p.Bits == 0 || p.Bits > MaxBits {
		return fault.Config("kernel.Precision", "bits %d outside [1,%d]", p.Bits, MaxBits)
	}
	return nil
}

// Kernel is a symmetric 1-D filter with an odd number of taps summing to
// 2^Bits.
type Kernel struct {
	Taps []uint64
	Bits uint
}

// Radius is (len(Taps)-1)/2.
func (k Kernel) Radius() int { return (len(k.Taps) - 1) / 2 }

// Mass is the nominal fixed-point mass 2^Bits.
func (k Kernel) Mass() uint64 { return uint64(1) << k.Bits }

// Sum adds the taps. For kernels built by this package Sum() == Mass().
func (k Kernel) Sum() uint64 {
	var s uint64
	for _, t := range k.Taps {
		s += t
	}
	return s
}

// Digest is a SHAKE-256 fingerprint of the precision and taps. Identical
// parameters yield identical digests across runs and platforms.
func (k Kernel) Digest() [32]byte {
	h := sha3.NewShake256()
	h.Write([]byte("filterproof/kernel"))
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(k.Bits))
	h.Write(buf[:])
	binary.LittleEndian.PutUint64(buf[:], uint64(len(k.Taps)))
	h.Write(buf[:])
	for _, t := range k.Taps {
		binary.LittleEndian.PutUint64(buf[:], t)
		h.Write(buf[:])
	}
	var out [32]byte
	h.Read(out[:])
	return out
}

func (k Kernel) String() string {
	return fmt.Sprintf("kernel(r=%d, bits=%d)", k.Radius(), k.Bits)
}

// foldResidual moves scale-Σtaps onto taps[at] so the taps sum to scale.
// Truncation loses mass; float error can in rare cases add a unit.
func foldResidual(taps []uint64, at int, scale uint64) {
	var s uint64
	for _, t := range taps {
		s += t
	}
	if s <= scale {
		taps[at] += scale - s
	} else {
		taps[at] -= s - scale
	}
}
