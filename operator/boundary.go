package operator

import (
	"strings"

	"filterproof/internal/fault"
	"filterproof/kernel"
)

// Boundary says what happens to filter taps that fall outside [0, n).
type Boundary int

const (
	// Replicate folds out-of-range weight onto the nearest valid column,
	// which is convolution over an edge-clamped image. Row mass is kept.
	Replicate Boundary = iota
	// Drop discards out-of-range weight. Rows near the edge lose mass.
	Drop
)

func (b Boundary) String() string {
	switch b {
	case Replicate:
		return "replicate"
	case Drop:
		return "drop"
	}
	return "unknown"
}

// ParseBoundary accepts "replicate" or "drop".
func ParseBoundary(s string) (Boundary, error) {
	switch strings.ToLower(s) {
	case "replicate", "clamp":
		return Replicate, nil
	case "drop":
		return Drop, nil
	}
	return 0, fault.Config("operator.ParseBoundary", "unknown boundary policy %q", s)
}

func (b Boundary) place(n, col int) (int, bool) {
	if col >= 0 && col < n {
		return col, true
	}
	if b == Drop {
		return 0, false
	}
	if col < 0 {
		return 0, true
	}
	return n - 1, true
}

// BlurAxis builds the n×n matrix of a 1-D convolution with k. Under Drop a
// radius reaching past the whole axis is rejected; under Replicate any radius
// is legal because all excess mass folds onto the edge columns.
func BlurAxis(k kernel.Kernel, n int, b Boundary) (*Matrix, error) {
	const op = "operator.BlurAxis"
	if n <= 0 {
		return nil, fault.Config(op, "axis length %d must be positive", n)
	}
	if len(k.Taps) == 0 || len(k.Taps)%2 == 0 {
		return nil, fault.Config(op, "kernel has %d taps, want an odd count", len(k.Taps))
	}
	r := k.Radius()
	if b == Drop && r >= n {
		return nil, fault.Config(op, "radius %d exceeds axis length %d", r, n)
	}
	m := &Matrix{Rows: n, Cols: n, Entries: make([][]Entry, n)}
	var rb rowBuilder
	for i := 0; i < n; i++ {
		rb.reset(max(0, i-r), min(n-1, i+r))
		for j, w := range k.Taps {
			if col, ok := b.place(n, i+j-r); ok {
				rb.add(col, w)
			}
		}
		m.Entries[i] = rb.row()
	}
	return m, nil
}

// ResizeAxis builds the Dst×Src matrix of a resize filter.
func ResizeAxis(f kernel.ResizeFilter, b Boundary) (*Matrix, error) {
	if f.Src <= 0 || f.Dst <= 0 || len(f.Pos) != f.Dst || len(f.Coeffs) != f.Dst*f.Taps {
		return nil, fault.Config("operator.ResizeAxis", "malformed filter src=%d dst=%d taps=%d", f.Src, f.Dst, f.Taps)
	}
	m := &Matrix{Rows: f.Dst, Cols: f.Src, Entries: make([][]Entry, f.Dst)}
	var rb rowBuilder
	for i := 0; i < f.Dst; i++ {
		pos, c := f.Row(i)
		lo := min(max(pos, 0), f.Src-1)
		hi := max(min(pos+f.Taps-1, f.Src-1), 0)
		if hi < lo {
			hi = lo
		}
		rb.reset(lo, hi)
		for j, w := range c {
			if col, ok := b.place(f.Src, pos+j); ok {
				rb.add(col, w)
			}
		}
		m.Entries[i] = rb.row()
	}
	return m, nil
}
