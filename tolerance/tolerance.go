// Package tolerance compares a verified filter output with an external
// reference whose arithmetic is not bit-reproducible. Exceeding the budget is
// a verdict, not an error.
package tolerance

import (
	"fmt"

	"filterproof/internal/fault"
)

var ErrLengthMismatch = fault.ErrLength

// Result is the comparator's verdict. Counts are only filled by
// DualThreshold; EarlyExit reports WithinLimit alone.
type Result struct {
	Policy      string `json:"policy"`
	WithinLimit bool   `json:"within_limit"`
	Count1      int    `json:"count1"`
	Count2      int    `json:"count2"`
	// FirstViolation is the index that stopped an EarlyExit scan, or -1.
	FirstViolation int `json:"first_violation"`
}

// Policy is one of the two comparison rules. They are not interchangeable:
// EarlyExit uses ≥ and stops, DualThreshold uses > and scans everything.
type Policy interface {
	Compare(out, ref []byte) (Result, error)
	Name() string
}

func absDiff(a, b byte) byte {
	if a > b {
		return a - b
	}
	return b - a
}

func checkLen(op string, out, ref []byte) error {
	if len(out) != len(ref) {
		return fault.Length(op, "reference", len(ref), len(out))
	}
	return nil
}

// EarlyExit stops at the first pixel with diff ≥ Limit.
type EarlyExit struct {
	Limit uint8
}

func (EarlyExit) Name() string { return "early-exit" }

func (p EarlyExit) Compare(out, ref []byte) (Result, error) {
	if err := checkLen("tolerance.EarlyExit", out, ref); err != nil {
		return Result{}, err
	}
	for i := range out {
		if absDiff(out[i], ref[i]) >= p.Limit {
			return Result{Policy: p.Name(), FirstViolation: i}, nil
		}
	}
	return Result{Policy: p.Name(), WithinLimit: true, FirstViolation: -1}, nil
}

// DualThreshold counts pixels with diff > Limit1 and diff > Limit2 over the
// whole buffer. WithinLimit is true when both counts are zero.
type DualThreshold struct {
	Limit1, Limit2 uint8
}

func (DualThreshold) Name() string { return "dual-threshold" }

func (p DualThreshold) Compare(out, ref []byte) (Result, error) {
	if err := checkLen("tolerance.DualThreshold", out, ref); err != nil {
		return Result{}, err
	}
	res := Result{Policy: p.Name(), FirstViolation: -1}
	for i := range out {
		d := absDiff(out[i], ref[i])
		if d > p.Limit1 {
			res.Count1++
		}
		if d > p.Limit2 {
			res.Count2++
		}
	}
	res.WithinLimit = res.Count1 == 0 && res.Count2 == 0
	return res, nil
}

// ByName builds a policy from configuration values.
func ByName(name string, limit, limit1, limit2 uint8) (Policy, error) {
	switch name {
	case "early-exit", "early_exit":
		return EarlyExit{Limit: limit}, nil
	case "dual-threshold", "dual_threshold", "":
		return DualThreshold{Limit1: limit1, Limit2: limit2}, nil
	}
	return nil, fault.Config("tolerance.ByName", "unknown policy %q", name)
}

// Summary holds whole-buffer deviation statistics.
type Summary struct {
	Max  uint8   `json:"max"`
	L1   uint64  `json:"l1"`
	Mean float64 `json:"mean"`
}

func (s Summary) String() string {
	return fmt.Sprintf("max=%d l1=%d mean=%.4f", s.Max, s.L1, s.Mean)
}

// Stats returns the maximum, sum and mean of |out-ref|.
func Stats(out, ref []byte) (Summary, error) {
	if err := checkLen("tolerance.Stats", out, ref); err != nil {
		return Summary{}, err
	}
	var s Summary
	for i := range out {
		d := absDiff(out[i], ref[i])
		s.L1 += uint64(d)
		if d > s.Max {
			s.Max = d
		}
	}
	if len(out) > 0 {
		s.Mean = float64(s.L1) / float64(len(out))
	}
	return s, nil
}

// Histogram counts pixels per absolute deviation.
func Histogram(out, ref []byte) ([256]int, error) {
	var h [256]int
	if err := checkLen("tolerance.Histogram", out, ref); err != nil {
		return h, err
	}
	for i := range out {
		h[absDiff(out[i], ref[i])]++
	}
	return h, nil
}
