// Package operator expands 1-D fixed-point taps into sparse linear operators
// over flattened images.
//
// A 2-D filter is never materialized as one matrix. Separable keeps one
// matrix per axis and applies them as two passes, so the stored operator has
// O((W+H)·taps) entries instead of O(W·H·taps²).
package operator

import (
	"encoding/binary"
	"fmt"

	"filterproof/internal/fault"
	"filterproof/internal/modarith"

	"golang.org/x/crypto/sha3"
)

// Entry is one nonzero weight at input index Col.
type Entry struct {
	Col    int
	Weight uint64
}

// Matrix is a row-sparse Rows×Cols matrix. Entries within a row are sorted by
// Col and hold no duplicate columns.
type Matrix struct {
	Rows, Cols int
	Entries    [][]Entry
}

// RowSum adds the weights of row i as plain integers.
func (m *Matrix) RowSum(i int) uint64 {
	var s uint64
	for _, e := range m.Entries[i] {
		s += e.Weight
	}
	return s
}

// NNZ counts stored entries.
func (m *Matrix) NNZ() int {
	n := 0
	for _, row := range m.Entries {
		n += len(row)
	}
	return n
}

// Apply returns m·x in f.
func (m *Matrix) Apply(f modarith.Field, x []uint64) ([]uint64, error) {
	if len(x) != m.Cols {
		return nil, fault.Length("operator.Matrix.Apply", "input", len(x), m.Cols)
	}
	y := make([]uint64, m.Rows)
	for i, row := range m.Entries {
		var acc uint64
		for _, e := range row {
			acc = f.MulAdd(acc, e.Weight, x[e.Col])
		}
		y[i] = acc
	}
	return y, nil
}

// ApplyTranspose returns mᵗ·r in f.
func (m *Matrix) ApplyTranspose(f modarith.Field, r []uint64) ([]uint64, error) {
	if len(r) != m.Rows {
		return nil, fault.Length("operator.Matrix.ApplyTranspose", "random vector", len(r), m.Rows)
	}
	t := make([]uint64, m.Cols)
	for i, row := range m.Entries {
		for _, e := range row {
			t[e.Col] = f.MulAdd(t[e.Col], e.Weight, r[i])
		}
	}
	return t, nil
}

// Transpose returns mᵗ with rows sorted by column.
func (m *Matrix) Transpose() *Matrix {
	out := &Matrix{Rows: m.Cols, Cols: m.Rows, Entries: make([][]Entry, m.Cols)}
	for i, row := range m.Entries {
		for _, e := range row {
			out.Entries[e.Col] = append(out.Entries[e.Col], Entry{Col: i, Weight: e.Weight})
		}
	}
	return out
}

// writeDigest feeds a canonical encoding of m into h.
func (m *Matrix) writeDigest(h sha3.ShakeHash) {
	var buf [8]byte
	put := func(v uint64) {
		binary.LittleEndian.PutUint64(buf[:], v)
		h.Write(buf[:])
	}
	put(uint64(m.Rows))
	put(uint64(m.Cols))
	for _, row := range m.Entries {
		put(uint64(len(row)))
		for _, e := range row {
			put(uint64(e.Col))
			put(e.Weight)
		}
	}
}

func (m *Matrix) String() string {
	return fmt.Sprintf("matrix(%dx%d, nnz=%d)", m.Rows, m.Cols, m.NNZ())
}

// rowBuilder accumulates weights on a dense column window and emits a sorted
// sparse row.
type rowBuilder struct {
	lo   int
	acc  []uint64
	used []bool
}

func (b *rowBuilder) reset(lo, hi int) {
	b.lo = lo
	n := hi - lo + 1
	if cap(b.acc) < n {
		b.acc = make([]uint64, n)
		b.used = make([]bool, n)
	}
	b.acc = b.acc[:n]
	b.used = b.used[:n]
	for i := range b.acc {
		b.acc[i] = 0
		b.used[i] = false
	}
}

func (b *rowBuilder) add(col int, w uint64) {
	if w == 0 {
		return
	}
	b.acc[col-b.lo] += w
	b.used[col-b.lo] = true
}

func (b *rowBuilder) row() []Entry {
	var out []Entry
	for i, ok := range b.used {
		if ok {
			out = append(out, Entry{Col: b.lo + i, Weight: b.acc[i]})
		}
	}
	return out
}
