// Package modarith provides the two arithmetic domains the Freivalds check
// can run in: the machine ring Z/2^64 (wrapping uint64 arithmetic) and a
// prime field Z/q for a 64-bit prime q.
package modarith

import (
	"encoding/binary"
	"fmt"
	"io"
	"math/bits"

	"github.com/tuneinsight/lattigo/v4/ring"
)

// DefaultPrime is 2^61 - 2^21 + 1, an NTT-friendly 61-bit prime.
const DefaultPrime uint64 = 0x1fffffffffe00001

// primeCheckDegree is the ring degree used when asking lattigo to validate a
// modulus. A modulus is accepted when it is prime and q ≡ 1 mod 2·degree.
const primeCheckDegree = 16

// Field is the arithmetic used by operator application, projections and
// inner products. Implementations are stateless and safe for concurrent use.
type Field interface {
	// Name is a short stable identifier ("wrap64", "prime").
	Name() string
	// Modulus returns q, or 0 for the 2^64 ring.
	Modulus() uint64
	// Bits is the number of low bits in which every value is canonical.
	Bits() uint
	Reduce(a uint64) uint64
	Add(a, b uint64) uint64
	Mul(a, b uint64) uint64
	// MulAdd returns acc + a*b.
	MulAdd(acc, a, b uint64) uint64
	// Sample reads one uniformly distributed element from src.
	Sample(src io.Reader) (uint64, error)
}

// Wrap64 is Z/2^64. Overflow wraps silently, which is exactly what the
// constrained execution environment does with native u64 arithmetic.
// Soundness of Freivalds over this ring is heuristic: zero divisors let an
// error vector with enough factors of two escape with probability above 2^-64.
type Wrap64 struct{}

func (Wrap64) Name() string              { return "wrap64" }
func (Wrap64) Modulus() uint64           { return 0 }
func (Wrap64) Bits() uint                { return 64 }
func (Wrap64) Reduce(a uint64) uint64    { return a }
func (Wrap64) Add(a, b uint64) uint64    { return a + b }
func (Wrap64) Mul(a, b uint64) uint64    { return a * b }
func (Wrap64) MulAdd(acc, a, b uint64) uint64 {
	return acc + a*b
}

func (Wrap64) Sample(src io.Reader) (uint64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(src, buf[:]); err != nil {
		return 0, fmt.Errorf("wrap64: sample: %w", err)
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}

// Prime is Z/q for a prime q < 2^64.
type Prime struct {
	q    uint64
	bits uint
	mask uint64
}

// NewPrime validates q through lattigo's ring construction and returns the
// field. Moduli that are composite or not ≡ 1 mod 32 are rejected.
func NewPrime(q uint64) (*Prime, error) {
	if q < 3 {
		return nil, fmt.Errorf("modarith: modulus %d too small", q)
	}
	if _, err := ring.NewRing(primeCheckDegree, []uint64{q}); err != nil {
		return nil, fmt.Errorf("modarith: modulus %#x rejected: %w", q, err)
	}
	n := uint(bits.Len64(q))
	mask := uint64(1)<<n - 1
	if n == 64 {
		mask = ^uint64(0)
	}
	return &Prime{q: q, bits: n - 1, mask: mask}, nil
}

func (p *Prime) Name() string    { return "prime" }
func (p *Prime) Modulus() uint64 { return p.q }
func (p *Prime) Bits() uint      { return p.bits }

func (p *Prime) Reduce(a uint64) uint64 { return a % p.q }

// Add returns (a+b) mod q.
func (p *Prime) Add(a, b uint64) uint64 {
	a %= p.q
	b %= p.q
	s, c := bits.Add64(a, b, 0)
	if c == 1 || s >= p.q {
		s -= p.q
	}
	return s
}

// Mul returns (a*b) mod q using a 128-bit intermediate product.
func (p *Prime) Mul(a, b uint64) uint64 {
	hi, lo := bits.Mul64(a%p.q, b%p.q)
	_, rem := bits.Div64(hi, lo, p.q)
	return rem
}

// MulAdd returns (acc + a*b) mod q.
func (p *Prime) MulAdd(acc, a, b uint64) uint64 {
	return p.Add(acc, p.Mul(a, b))
}

// Sample draws by rejection so the result is uniform in [0, q).
func (p *Prime) Sample(src io.Reader) (uint64, error) {
	var buf [8]byte
	for {
		if _, err := io.ReadFull(src, buf[:]); err != nil {
			return 0, fmt.Errorf("prime: sample: %w", err)
		}
		v := binary.LittleEndian.Uint64(buf[:]) & p.mask
		if v < p.q {
			return v, nil
		}
	}
}

// ByName returns the field for a configuration name. The modulus is only
// consulted for "prime"; zero selects DefaultPrime.
func ByName(name string, modulus uint64) (Field, error) {
	switch name {
	case "", "wrap64":
		return Wrap64{}, nil
	case "prime":
		if modulus == 0 {
			modulus = DefaultPrime
		}
		return NewPrime(modulus)
	default:
		return nil, fmt.Errorf("modarith: unknown field %q", name)
	}
}

// FromBytes lifts pixel values into field elements.
func FromBytes(pix []byte) []uint64 {
	out := make([]uint64, len(pix))
	for i, v := range pix {
		out[i] = uint64(v)
	}
	return out
}
