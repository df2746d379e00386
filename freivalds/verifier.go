package freivalds

import (
	"filterproof/internal/fault"
	"filterproof/internal/modarith"
	"filterproof/measure"
)

// Verifier checks transcripts. Holding the operator it recomputes t = Mᵗ·r
// itself; without one it can only test the dot-product identity on the
// vectors it is given, which proves nothing about y.
type Verifier struct {
	op        Operator
	field     modarith.Field
	challenge ChallengeSource
	ip        InnerProduct
	trustT    bool
	key       *ProjectionKey
}

type Option func(*Verifier)

// WithChallenge makes the verifier re-derive r when the source is
// deterministic.
func WithChallenge(c ChallengeSource) Option { return func(v *Verifier) { v.challenge = c } }

func WithInnerProduct(ip InnerProduct) Option { return func(v *Verifier) { v.ip = ip } }

// WithTrustedProjection takes the transcript's t as given, as the original
// video pipeline did. It is unsound: a prover that knows r can solve
// t·x = r·y for any y it likes. Use it only to replay legacy transcripts.
func WithTrustedProjection() Option { return func(v *Verifier) { v.trustT = true } }

// WithKey replaces the transcript's r and t by a verifier-held pair.
func WithKey(k *ProjectionKey) Option { return func(v *Verifier) { v.key = k } }

// NewVerifier builds a verifier for op over f. op may be nil.
func NewVerifier(op Operator, f modarith.Field, opts ...Option) *Verifier {
	v := &Verifier{op: op, field: f, ip: Portable{}}
	for _, o := range opts {
		o(v)
	}
	return v
}

// Verify returns nil iff the transcript is consistent with x. Length errors
// wrap ErrLengthMismatch; everything else wraps ErrVerificationFailed.
func (v *Verifier) Verify(tr *Transcript, x []uint64) error {
	const op = "freivalds.Verify"
	if tr == nil {
		return fault.Verification(op, "nil transcript")
	}
	if tr.Field != v.field.Name() || tr.Modulus != v.field.Modulus() {
		return fault.Verification(op, "transcript over %s/%#x, verifier over %s/%#x",
			tr.Field, tr.Modulus, v.field.Name(), v.field.Modulus())
	}
	digest := tr.Operator
	if v.op != nil {
		if err := checkLen(op, "source", len(x), v.op.InputLen()); err != nil {
			return err
		}
		if err := checkLen(op, "claimed output", len(tr.Y), v.op.OutputLen()); err != nil {
			return err
		}
		digest = v.op.Digest()
		if tr.Operator != digest {
			return fault.Verification(op, "transcript is for a different operator")
		}
	}

	r, t := tr.R, tr.T
	if v.key != nil {
		if v.key.Operator != digest || v.key.Field != v.field.Name() {
			return fault.Verification(op, "projection key is for a different operator or field")
		}
		r, t = v.key.R, v.key.T
	}
	if err := checkLen(op, "random vector", len(r), len(tr.Y)); err != nil {
		return err
	}
	if err := checkLen(op, "projection", len(t), len(x)); err != nil {
		return err
	}
	for i, y := range tr.Y {
		if v.field.Reduce(y) != y {
			return fault.Verification(op, "claimed output %d is not a canonical field element", i)
		}
	}

	if v.key == nil && v.challenge != nil && v.challenge.Deterministic() {
		want, err := v.challenge.Draw(v.field, len(tr.Y), Binding{Operator: digest, X: x, Y: tr.Y})
		if err != nil {
			return err
		}
		if !equal(want, r) {
			return fault.Verification(op, "random vector was not derived from the claim")
		}
	}
	if v.key == nil && !v.trustT && v.op != nil {
		want, err := v.op.ApplyTranspose(v.field, r)
		if err != nil {
			return err
		}
		if !equal(want, t) {
			return fault.Verification(op, "projection differs from Mᵗ·r")
		}
		if n, ok := v.op.(nnzer); ok {
			measure.Global.Add("verifier_mac", int64(n.NNZ()))
		}
	}

	lhs := v.ip.Dot(v.field, r, tr.Y)
	rhs := v.ip.Dot(v.field, t, x)
	measure.Global.Add("verifier_mac", int64(len(r)+len(t)))
	if lhs != rhs {
		return fault.Verification(op, "r·y = %#x, t·x = %#x", lhs, rhs)
	}
	return nil
}

func checkLen(op, what string, got, want int) error {
	if got != want {
		return fault.Length(op, what, got, want)
	}
	return nil
}

func equal(a, b []uint64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// ProjectionKey is a verifier-held (r, t = Mᵗ·r) pair drawn before any claim
// is seen. It turns the check into textbook Freivalds where r is independent
// of y, and lets one precomputation serve many claims for the same operator.
type ProjectionKey struct {
	Operator [32]byte
	Field    string
	R, T     []uint64
}

// NewProjectionKey samples r privately and computes t.
func NewProjectionKey(op Operator, f modarith.Field) (*ProjectionKey, error) {
	r, err := ProverDrawn{}.Draw(f, op.OutputLen(), Binding{})
	if err != nil {
		return nil, err
	}
	t, err := op.ApplyTranspose(f, r)
	if err != nil {
		return nil, err
	}
	return &ProjectionKey{Operator: op.Digest(), Field: f.Name(), R: r, T: t}, nil
}
