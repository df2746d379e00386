// Package freivalds checks y = M·x for a sparse filter operator M with one
// pair of dot products instead of a full recomputation.
//
// The prover sends (r, t = Mᵗ·r, y); the verifier accepts iff r·y == t·x.
// Soundness needs r fixed independently of y (Fiat–Shamir over y, or a
// verifier-held key) and t computed by the verifier, never taken from the
// prover. Then a wrong y passes with probability at most 1/q over a prime
// field Z/q. Over Z/2^64 the bound is
// heuristic: an error vector divisible by 2^k passes with probability 2^(k-64).
package freivalds

import (
	"filterproof/internal/fault"
	"filterproof/internal/modarith"
	"filterproof/measure"
)

var (
	ErrLengthMismatch     = fault.ErrLength
	ErrVerificationFailed = fault.ErrVerification
)

// Operator is a linear map with a transpose and a stable fingerprint.
// *operator.Separable implements it.
type Operator interface {
	InputLen() int
	OutputLen() int
	Apply(f modarith.Field, x []uint64) ([]uint64, error)
	ApplyTranspose(f modarith.Field, r []uint64) ([]uint64, error)
	Digest() [32]byte
}

type nnzer interface{ NNZ() int }

// Transcript is what the prover hands over. X is known to the verifier and
// is not part of it.
type Transcript struct {
	Field     string   `json:"field"`
	Modulus   uint64   `json:"modulus,omitempty"`
	Operator  [32]byte `json:"operator"`
	Challenge string   `json:"challenge"`
	R         []uint64 `json:"r,omitempty"`
	T         []uint64 `json:"t,omitempty"`
	Y         []uint64 `json:"y"`
}

// Size is the transcript payload in bytes at 8 bytes per element.
func (tr *Transcript) Size() int64 {
	return measure.BytesVector(len(tr.R)+len(tr.T)+len(tr.Y), 64)
}

// Prover computes the claimed output and the projection for one operator.
type Prover struct {
	Op        Operator
	Field     modarith.Field
	Challenge ChallengeSource
}

func NewProver(op Operator, f modarith.Field, c ChallengeSource) *Prover {
	if c == nil {
		c = NewFiatShamir("")
	}
	return &Prover{Op: op, Field: f, Challenge: c}
}

// Prove returns y = M·x together with r and t = Mᵗ·r.
func (p *Prover) Prove(x []uint64) (*Transcript, error) {
	if len(x) != p.Op.InputLen() {
		return nil, fault.Length("freivalds.Prove", "source", len(x), p.Op.InputLen())
	}
	y, err := p.Op.Apply(p.Field, x)
	if err != nil {
		return nil, err
	}
	digest := p.Op.Digest()
	r, err := p.Challenge.Draw(p.Field, len(y), Binding{Operator: digest, X: x, Y: y})
	if err != nil {
		return nil, err
	}
	t, err := p.Op.ApplyTranspose(p.Field, r)
	if err != nil {
		return nil, err
	}
	if n, ok := p.Op.(nnzer); ok {
		measure.Global.Add("prover_mac", 2*int64(n.NNZ()))
	}
	tr := &Transcript{
		Field:     p.Field.Name(),
		Modulus:   p.Field.Modulus(),
		Operator:  digest,
		Challenge: p.Challenge.Name(),
		R:         r,
		T:         t,
		Y:         y,
	}
	measure.Global.Add("transcript_bytes", tr.Size())
	return tr, nil
}
