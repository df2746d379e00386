package session

import (
	"sync"

	"filterproof/commit"
	"filterproof/internal/fault"
)

// Planes splits a planar buffer of n channels into equal slices.
func Planes(buf []byte, n, plane int) ([][]byte, error) {
	if len(buf) != n*plane {
		return nil, fault.Length("session.Planes", "buffer", len(buf), n*plane)
	}
	out := make([][]byte, n)
	for c := range out {
		out[c] = buf[c*plane : (c+1)*plane]
	}
	return out, nil
}

// ProveChannels proves every plane of a planar source concurrently.
func (s *Session) ProveChannels(src []byte) ([]*Claim, error) {
	planes, err := Planes(src, s.cfg.Channels, s.op.InputLen())
	if err != nil {
		return nil, err
	}
	claims := make([]*Claim, len(planes))
	errs := make([]error, len(planes))
	var wg sync.WaitGroup
	for c := range planes {
		wg.Add(1)
		go func(c int) {
			defer wg.Done()
			claims[c], errs[c] = s.Prove(planes[c])
		}(c)
	}
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return claims, nil
}

// MultiResult aggregates per-channel results. The commitment covers the
// whole planar reference.
type MultiResult struct {
	Channels    []*Result         `json:"channels"`
	WithinLimit bool              `json:"within_limit"`
	Commitment  commit.Commitment `json:"commitment"`
}

// VerifyChannels verifies every channel. The first failing channel aborts
// the whole call and no result is returned.
func (s *Session) VerifyChannels(claims []*Claim, src, ref []byte) (*MultiResult, error) {
	n := s.cfg.Channels
	if len(claims) != n {
		return nil, fault.Length("session.VerifyChannels", "claims", len(claims), n)
	}
	srcPlanes, err := Planes(src, n, s.op.InputLen())
	if err != nil {
		return nil, err
	}
	refPlanes, err := Planes(ref, n, s.op.OutputLen())
	if err != nil {
		return nil, err
	}
	results := make([]*Result, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for c := 0; c < n; c++ {
		wg.Add(1)
		go func(c int) {
			defer wg.Done()
			results[c], errs[c] = s.Verify(claims[c], srcPlanes[c], refPlanes[c])
		}(c)
	}
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	out := &MultiResult{Channels: results, WithinLimit: true}
	for _, r := range results {
		out.WithinLimit = out.WithinLimit && r.Tolerance.WithinLimit
	}
	rowWidth := 0
	if s.cfg.Commit.RowTree {
		rowWidth = s.op.DstW()
	}
	if out.Commitment, err = commit.Commit(ref, rowWidth); err != nil {
		return nil, err
	}
	return out, nil
}
