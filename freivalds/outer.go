package freivalds

import (
	"filterproof/internal/fault"
	"filterproof/internal/modarith"
	"filterproof/measure"
)

// Factored is a separable operator Y = V·X·Hᵗ that exposes its axis
// projections.
type Factored interface {
	Operator
	SrcW() int
	DstW() int
	DstH() int
	// ProjectRows returns Vᵗ·rL.
	ProjectRows(f modarith.Field, rL []uint64) ([]uint64, error)
	// ProjectCols returns Hᵗ·rR.
	ProjectCols(f modarith.Field, rR []uint64) ([]uint64, error)
}

// OuterTranscript carries a rank-one challenge rL⊗rR. The check is
// rLᵗ·Y·rR == (Vᵗ·rL)ᵗ·X·(Hᵗ·rR); by Schwartz–Zippel a wrong Y passes with
// probability at most 2/q over a prime field.
type OuterTranscript struct {
	Field     string   `json:"field"`
	Modulus   uint64   `json:"modulus,omitempty"`
	Operator  [32]byte `json:"operator"`
	Challenge string   `json:"challenge"`
	RLeft     []uint64 `json:"r_left"`
	RRight    []uint64 `json:"r_right"`
	TLeft     []uint64 `json:"t_left"`
	TRight    []uint64 `json:"t_right"`
	Y         []uint64 `json:"y"`
}

// ProveOuter is Prove with a rank-one challenge. The projections have
// length SrcH and SrcW only.
func (p *Prover) ProveOuter(x []uint64) (*OuterTranscript, error) {
	op, ok := p.Op.(Factored)
	if !ok {
		return nil, fault.Config("freivalds.ProveOuter", "operator is not separable")
	}
	if len(x) != op.InputLen() {
		return nil, fault.Length("freivalds.ProveOuter", "source", len(x), op.InputLen())
	}
	y, err := op.Apply(p.Field, x)
	if err != nil {
		return nil, err
	}
	digest := op.Digest()
	r, err := p.Challenge.Draw(p.Field, op.DstH()+op.DstW(), Binding{Operator: digest, X: x, Y: y})
	if err != nil {
		return nil, err
	}
	rL, rR := r[:op.DstH()], r[op.DstH():]
	tL, err := op.ProjectRows(p.Field, rL)
	if err != nil {
		return nil, err
	}
	tR, err := op.ProjectCols(p.Field, rR)
	if err != nil {
		return nil, err
	}
	return &OuterTranscript{
		Field: p.Field.Name(), Modulus: p.Field.Modulus(), Operator: digest,
		Challenge: p.Challenge.Name(),
		RLeft: rL, RRight: rR, TLeft: tL, TRight: tR, Y: y,
	}, nil
}

// VerifyOuter checks an OuterTranscript. When the verifier holds a Factored
// operator it recomputes both projections, which costs O(nnz(V)+nnz(H)).
func (v *Verifier) VerifyOuter(tr *OuterTranscript, x []uint64) error {
	const opName = "freivalds.VerifyOuter"
	if tr == nil {
		return fault.Verification(opName, "nil transcript")
	}
	if tr.Field != v.field.Name() || tr.Modulus != v.field.Modulus() {
		return fault.Verification(opName, "transcript field %s does not match %s", tr.Field, v.field.Name())
	}
	rows, cols := len(tr.RLeft), len(tr.RRight)
	srcH, srcW := len(tr.TLeft), len(tr.TRight)
	digest := tr.Operator
	if v.op != nil {
		op, ok := v.op.(Factored)
		if !ok {
			return fault.Config(opName, "operator is not separable")
		}
		digest = op.Digest()
		if tr.Operator != digest {
			return fault.Verification(opName, "transcript is for a different operator")
		}
		if err := checkLen(opName, "left random vector", rows, op.DstH()); err != nil {
			return err
		}
		if err := checkLen(opName, "right random vector", cols, op.DstW()); err != nil {
			return err
		}
		tL, err := op.ProjectRows(v.field, tr.RLeft)
		if err != nil {
			return err
		}
		tR, err := op.ProjectCols(v.field, tr.RRight)
		if err != nil {
			return err
		}
		if !equal(tL, tr.TLeft) || !equal(tR, tr.TRight) {
			return fault.Verification(opName, "projections differ from the operator's")
		}
		srcW = op.SrcW()
		srcH = op.InputLen() / srcW
	}
	if err := checkLen(opName, "claimed output", len(tr.Y), rows*cols); err != nil {
		return err
	}
	if err := checkLen(opName, "source", len(x), srcH*srcW); err != nil {
		return err
	}
	for i, y := range tr.Y {
		if v.field.Reduce(y) != y {
			return fault.Verification(opName, "claimed output %d is not a canonical field element", i)
		}
	}
	if v.challenge != nil && v.challenge.Deterministic() {
		want, err := v.challenge.Draw(v.field, rows+cols, Binding{Operator: digest, X: x, Y: tr.Y})
		if err != nil {
			return err
		}
		if !equal(want[:rows], tr.RLeft) || !equal(want[rows:], tr.RRight) {
			return fault.Verification(opName, "random vectors were not derived from the claim")
		}
	}
	lhs := v.bilinear(tr.RLeft, tr.Y, tr.RRight)
	rhs := v.bilinear(tr.TLeft, x, tr.TRight)
	measure.Global.Add("verifier_mac", int64(len(tr.Y)+rows+len(x)+srcH))
	if lhs != rhs {
		return fault.Verification(opName, "rLᵗ·Y·rR = %#x, tLᵗ·X·tR = %#x", lhs, rhs)
	}
	return nil
}

// bilinear returns aᵗ·M·b for a row-major len(a)×len(b) matrix M.
func (v *Verifier) bilinear(a, m, b []uint64) uint64 {
	w := len(b)
	rowDots := make([]uint64, len(a))
	for i := range a {
		rowDots[i] = v.ip.Dot(v.field, m[i*w:(i+1)*w], b)
	}
	return v.ip.Dot(v.field, a, rowDots)
}
