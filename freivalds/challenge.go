package freivalds

import (
	"fmt"
	"io"

	"filterproof/internal/modarith"

	"github.com/tuneinsight/lattigo/v4/utils"
)

// Binding is what a challenge may depend on: the operator and both sides of
// the claimed equation.
type Binding struct {
	Operator [32]byte
	X, Y     []uint64
}

// ChallengeSource draws the random vector r.
type ChallengeSource interface {
	Draw(f modarith.Field, n int, b Binding) ([]uint64, error)
	// Deterministic sources can be re-derived by the verifier.
	Deterministic() bool
	Name() string
}

// ProverDrawn samples r from a fresh system-seeded PRNG. The verifier cannot
// tell whether r was chosen after y, so a cheating prover may search for a
// compatible pair; pair it with a ProjectionKey held by the verifier, or
// use FiatShamir.
type ProverDrawn struct{}

func (ProverDrawn) Deterministic() bool { return false }
func (ProverDrawn) Name() string        { return "prover-drawn" }

func (ProverDrawn) Draw(f modarith.Field, n int, _ Binding) ([]uint64, error) {
	prng, err := utils.NewPRNG()
	if err != nil {
		return nil, fmt.Errorf("freivalds: prng: %w", err)
	}
	return sampleVec(f, n, prng)
}

// FiatShamir derives r from a hash of the operator digest, x and the claimed
// y, so r is fixed only after y is.
type FiatShamir struct {
	XOF   XOF
	Label string
}

// NewFiatShamir uses SHAKE-256 with a 32-byte seed.
func NewFiatShamir(label string) FiatShamir {
	if label == "" {
		label = "filterproof/freivalds/r"
	}
	return FiatShamir{XOF: NewShake256XOF(32), Label: label}
}

func (FiatShamir) Deterministic() bool { return true }
func (FiatShamir) Name() string        { return "fiat-shamir" }

func (fs FiatShamir) Draw(f modarith.Field, n int, b Binding) ([]uint64, error) {
	seed := fs.XOF.Expand(fs.Label, []byte(f.Name()), b.Operator[:], encodeVec(b.X), encodeVec(b.Y))
	prng, err := utils.NewKeyedPRNG(seed)
	if err != nil {
		return nil, fmt.Errorf("freivalds: keyed prng: %w", err)
	}
	return sampleVec(f, n, prng)
}

func sampleVec(f modarith.Field, n int, src io.Reader) ([]uint64, error) {
	r := make([]uint64, n)
	for i := range r {
		v, err := f.Sample(src)
		if err != nil {
			return nil, err
		}
		r[i] = v
	}
	return r, nil
}

// ChallengeByName maps configuration names to sources.
func ChallengeByName(name string) (ChallengeSource, error) {
	switch name {
	case "", "fiat-shamir", "fiatshamir":
		return NewFiatShamir(""), nil
	case "prover-drawn", "prover":
		return ProverDrawn{}, nil
	}
	return nil, fmt.Errorf("freivalds: unknown challenge source %q", name)
}
