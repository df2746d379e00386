// Package session runs the whole pipeline for one configuration: build the
// operator once, prove claims, then verify, quantize, compare and commit.
package session

import (
	"fmt"
	"time"

	"filterproof/commit"
	"filterproof/config"
	"filterproof/filter"
	"filterproof/freivalds"
	"filterproof/internal/fault"
	"filterproof/internal/logging"
	"filterproof/internal/modarith"
	"filterproof/kernel"
	"filterproof/operator"
	"filterproof/prof"
	"filterproof/tolerance"
)

// ChallengeVerifierKey makes the verifier draw (r, Mᵗr) itself when the
// session is created; claims then only carry y.
const ChallengeVerifierKey = "verifier-key"

// Session holds everything derived from a Config. It is safe to call Prove
// and Verify concurrently.
type Session struct {
	cfg       *config.Config
	op        *operator.Separable
	field     modarith.Field
	challenge freivalds.ChallengeSource
	ip        freivalds.InnerProduct
	policy    tolerance.Policy
	key       *freivalds.ProjectionKey
	log       *logging.Logger
}

// New validates cfg and builds the operator.
func New(cfg *config.Config, log *logging.Logger) (*Session, error) {
	if log == nil {
		log = logging.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	field, err := modarith.ByName(cfg.Freivalds.Field, cfg.Freivalds.Modulus)
	if err != nil {
		return nil, fault.Wrap(fault.KindConfig, "session.New", err)
	}
	var op *operator.Separable
	err = prof.Stage("session/build-operator", func() error {
		op, err = buildOperator(cfg)
		return err
	})
	if err != nil {
		return nil, err
	}
	op.Workers = cfg.Freivalds.Workers
	if !op.Fits(field) {
		return nil, fault.Config("session.New", "shift %d leaves no headroom for 8-bit pixels in %s", op.Shift, field.Name())
	}
	policy, err := tolerance.ByName(cfg.Tolerance.Policy, cfg.Tolerance.Limit, cfg.Tolerance.Limit1, cfg.Tolerance.Limit2)
	if err != nil {
		return nil, err
	}
	s := &Session{
		cfg:    cfg,
		op:     op,
		field:  field,
		ip:     freivalds.Portable{},
		policy: policy,
		log:    log.WithComponent("session"),
	}
	if cfg.Freivalds.ChunkSize > 0 {
		s.ip = freivalds.Chunked{Size: cfg.Freivalds.ChunkSize, Workers: cfg.Freivalds.Workers}
	}
	if isProverDrawn(cfg.Freivalds.Challenge) && !cfg.Freivalds.TrustProver {
		return nil, fault.Config("session.New", "prover-drawn challenges let the prover pick r after y; set trust_prover to run them")
	}
	if cfg.Freivalds.Challenge == ChallengeVerifierKey {
		if cfg.Freivalds.Mode == "outer" {
			return nil, fault.Config("session.New", "verifier-key challenges need vector mode")
		}
		s.challenge = freivalds.ProverDrawn{}
		if s.key, err = freivalds.NewProjectionKey(op, field); err != nil {
			return nil, err
		}
	} else if s.challenge, err = freivalds.ChallengeByName(cfg.Freivalds.Challenge); err != nil {
		return nil, fault.Wrap(fault.KindConfig, "session.New", err)
	}
	s.log.Debug("operator ready",
		"transform", cfg.Transform,
		"src", fmt.Sprintf("%dx%d", op.SrcW(), op.SrcH()),
		"dst", fmt.Sprintf("%dx%d", op.DstW(), op.DstH()),
		"nnz", op.NNZ(),
		"shift", op.Shift,
		"field", field.Name(),
		"challenge", cfg.Freivalds.Challenge)
	return s, nil
}

func isProverDrawn(name string) bool {
	return name == (freivalds.ProverDrawn{}).Name() || name == "prover"
}

func buildOperator(cfg *config.Config) (*operator.Separable, error) {
	switch cfg.Transform {
	case config.TransformBlur:
		b, err := operator.ParseBoundary(cfg.Blur.Boundary)
		if err != nil {
			return nil, err
		}
		k, err := BlurKernel(cfg.Blur)
		if err != nil {
			return nil, err
		}
		return operator.NewBlur(cfg.Width, cfg.Height, k, b)
	case config.TransformResize:
		b, err := operator.ParseBoundary(cfg.Resize.Boundary)
		if err != nil {
			return nil, err
		}
		rc, err := kernel.ResizeConfigByName(cfg.Resize.Filter)
		if err != nil {
			return nil, err
		}
		return operator.NewResize(cfg.Width, cfg.Height, cfg.Resize.DstWidth, cfg.Resize.DstHeight, rc, b)
	}
	return nil, fault.Config("session.buildOperator", "unknown transform %q", cfg.Transform)
}

// BlurKernel builds the kernel named by a blur configuration.
func BlurKernel(c config.BlurConfig) (kernel.Kernel, error) {
	p := kernel.Precision{Bits: c.Bits}
	if c.Kernel == "box" {
		return kernel.Box(c.Radius, p)
	}
	return kernel.Gaussian(c.Sigma, c.Radius, p)
}

func (s *Session) Operator() *operator.Separable { return s.op }
func (s *Session) Field() modarith.Field         { return s.field }
func (s *Session) Config() *config.Config        { return s.cfg }

// Claim is the prover's message for one channel. Exactly one of Vector and
// Outer is set.
type Claim struct {
	Vector *freivalds.Transcript      `json:"vector,omitempty"`
	Outer  *freivalds.OuterTranscript `json:"outer,omitempty"`
}

// Output returns the claimed wide output y.
func (c *Claim) Output() []uint64 {
	switch {
	case c == nil:
		return nil
	case c.Vector != nil:
		return c.Vector.Y
	case c.Outer != nil:
		return c.Outer.Y
	}
	return nil
}

// Prove produces the claim for one channel of source pixels.
func (s *Session) Prove(src []byte) (*Claim, error) {
	if len(src) != s.op.InputLen() {
		return nil, fault.Length("session.Prove", "source", len(src), s.op.InputLen())
	}
	defer prof.Track(time.Now(), "session/prove")
	x := modarith.FromBytes(src)
	p := freivalds.NewProver(s.op, s.field, s.challenge)
	if s.cfg.Freivalds.Mode == "outer" {
		tr, err := p.ProveOuter(x)
		if err != nil {
			return nil, err
		}
		return &Claim{Outer: tr}, nil
	}
	tr, err := p.Prove(x)
	if err != nil {
		return nil, err
	}
	if s.key != nil {
		// the verifier holds its own projection
		tr.R, tr.T = nil, nil
	}
	s.log.Debug("claim produced", "outputs", len(tr.Y), "bytes", tr.Size())
	return &Claim{Vector: tr}, nil
}

// Result is the outcome of a verified claim.
type Result struct {
	Width      int               `json:"width"`
	Height     int               `json:"height"`
	Output     []byte            `json:"-"`
	Tolerance  tolerance.Result  `json:"tolerance"`
	Stats      tolerance.Summary `json:"stats"`
	Histogram  [256]int          `json:"-"`
	Commitment commit.Commitment `json:"commitment"`
}

// Verify checks the claim against src. A failed check returns the error
// alone; no output is ever derived from a rejected claim. Otherwise the
// verified output is quantized, compared with ref and ref is committed.
func (s *Session) Verify(c *Claim, src, ref []byte) (*Result, error) {
	const op = "session.Verify"
	if len(src) != s.op.InputLen() {
		return nil, fault.Length(op, "source", len(src), s.op.InputLen())
	}
	if len(ref) != s.op.OutputLen() {
		return nil, fault.Length(op, "reference", len(ref), s.op.OutputLen())
	}
	if c == nil || (c.Vector == nil) == (c.Outer == nil) {
		return nil, fault.Verification(op, "claim must carry exactly one transcript")
	}
	if outer := s.cfg.Freivalds.Mode == "outer"; outer != (c.Outer != nil) {
		return nil, fault.Verification(op, "claim shape does not match %q mode", s.cfg.Freivalds.Mode)
	}
	x := modarith.FromBytes(src)
	opts := []freivalds.Option{freivalds.WithChallenge(s.challenge), freivalds.WithInnerProduct(s.ip)}
	if s.cfg.Freivalds.TrustProver {
		opts = append(opts, freivalds.WithTrustedProjection())
	}
	if s.key != nil {
		opts = append(opts, freivalds.WithKey(s.key))
	}
	v := freivalds.NewVerifier(s.op, s.field, opts...)

	err := prof.Stage("session/verify", func() error {
		if c.Outer != nil {
			return v.VerifyOuter(c.Outer, x)
		}
		return v.Verify(c.Vector, x)
	})
	if err != nil {
		s.log.Error("verification failed", "err", err)
		return nil, err
	}

	out := filter.Quantize(c.Output(), s.op.Shift)
	res := &Result{Width: s.op.DstW(), Height: s.op.DstH(), Output: out}
	err = prof.Stage("session/compare", func() error {
		var err error
		if res.Tolerance, err = s.policy.Compare(out, ref); err != nil {
			return err
		}
		if res.Stats, err = tolerance.Stats(out, ref); err != nil {
			return err
		}
		res.Histogram, err = tolerance.Histogram(out, ref)
		return err
	})
	if err != nil {
		return nil, err
	}
	rowWidth := 0
	if s.cfg.Commit.RowTree {
		rowWidth = s.op.DstW()
	}
	if err := prof.Stage("session/commit", func() error {
		var err error
		res.Commitment, err = commit.Commit(ref, rowWidth)
		return err
	}); err != nil {
		return nil, err
	}
	s.log.Info("claim verified",
		"policy", res.Tolerance.Policy,
		"within_limit", res.Tolerance.WithinLimit,
		"count1", res.Tolerance.Count1,
		"count2", res.Tolerance.Count2,
		"max_diff", res.Stats.Max,
		"cid", res.Commitment.CID)
	return res, nil
}
