package operator

import (
	"math/bits"
	"runtime"
	"sync"

	"filterproof/internal/fault"
	"filterproof/internal/modarith"
	"filterproof/kernel"

	"golang.org/x/crypto/sha3"
)

// Separable is Y = V·X·Hᵗ for a row-major SrcH×SrcW image X. V maps source
// rows to destination rows and H maps source columns to destination columns.
// The flattened operator is V⊗H; its transpose is applied as Vᵗ·R·H.
type Separable struct {
	Vertical   *Matrix
	Horizontal *Matrix
	// Shift is the total fixed-point bit count of one application.
	Shift uint
	// Workers bounds row-level parallelism. Zero means GOMAXPROCS.
	Workers int

	vt, ht *Matrix
}

// NewSeparable validates the pair and caches both transposes.
func NewSeparable(v, h *Matrix, shift uint) (*Separable, error) {
	if v == nil || h == nil || v.Rows == 0 || v.Cols == 0 || h.Rows == 0 || h.Cols == 0 {
		return nil, fault.Config("operator.NewSeparable", "empty axis matrix")
	}
	return &Separable{Vertical: v, Horizontal: h, Shift: shift, vt: v.Transpose(), ht: h.Transpose()}, nil
}

// NewBlur builds the two-pass blur operator for a w×h image.
func NewBlur(w, h int, k kernel.Kernel, b Boundary) (*Separable, error) {
	hm, err := BlurAxis(k, w, b)
	if err != nil {
		return nil, err
	}
	vm, err := BlurAxis(k, h, b)
	if err != nil {
		return nil, err
	}
	return NewSeparable(vm, hm, 2*k.Bits)
}

// NewResize builds the resize operator from srcW×srcH to dstW×dstH.
func NewResize(srcW, srcH, dstW, dstH int, cfg kernel.ResizeConfig, b Boundary) (*Separable, error) {
	hf, err := kernel.Horizontal(srcW, dstW, cfg)
	if err != nil {
		return nil, err
	}
	vf, err := kernel.Vertical(srcH, dstH, cfg)
	if err != nil {
		return nil, err
	}
	hm, err := ResizeAxis(hf, b)
	if err != nil {
		return nil, err
	}
	vm, err := ResizeAxis(vf, b)
	if err != nil {
		return nil, err
	}
	return NewSeparable(vm, hm, hf.Bits+vf.Bits)
}

func (s *Separable) SrcW() int      { return s.Horizontal.Cols }
func (s *Separable) SrcH() int      { return s.Vertical.Cols }
func (s *Separable) DstW() int      { return s.Horizontal.Rows }
func (s *Separable) DstH() int      { return s.Vertical.Rows }
func (s *Separable) InputLen() int  { return s.SrcW() * s.SrcH() }
func (s *Separable) OutputLen() int { return s.DstW() * s.DstH() }

// NNZ is the number of nonzeros of the flattened operator V⊗H.
func (s *Separable) NNZ() int { return s.Vertical.NNZ() * s.Horizontal.NNZ() }

// Fits reports whether a full-intensity pixel times the operator's mass is
// still exact in f, i.e. 255·2^Shift stays below the modulus.
func (s *Separable) Fits(f modarith.Field) bool {
	if s.Shift >= 64 {
		return false
	}
	return uint(bits.Len64(255))+s.Shift <= f.Bits()
}

// Apply returns V·X·Hᵗ in f as a flattened DstH×DstW vector.
func (s *Separable) Apply(f modarith.Field, x []uint64) ([]uint64, error) {
	if len(x) != s.InputLen() {
		return nil, fault.Length("operator.Separable.Apply", "input", len(x), s.InputLen())
	}
	sw, sh, dw := s.SrcW(), s.SrcH(), s.DstW()
	tmp := make([]uint64, sh*dw)
	s.parallel(sh, func(r int) {
		gatherRow(f, s.Horizontal, x[r*sw:(r+1)*sw], tmp[r*dw:(r+1)*dw])
	})
	y := make([]uint64, s.OutputLen())
	s.parallel(s.DstH(), func(i int) {
		combineRows(f, s.Vertical.Entries[i], tmp, dw, y[i*dw:(i+1)*dw])
	})
	return y, nil
}

// ApplyTranspose returns Vᵗ·R·H in f as a flattened SrcH×SrcW vector.
func (s *Separable) ApplyTranspose(f modarith.Field, r []uint64) ([]uint64, error) {
	if len(r) != s.OutputLen() {
		return nil, fault.Length("operator.Separable.ApplyTranspose", "random vector", len(r), s.OutputLen())
	}
	sw, sh, dw := s.SrcW(), s.SrcH(), s.DstW()
	u := make([]uint64, sh*dw)
	s.parallel(sh, func(row int) {
		combineRows(f, s.vt.Entries[row], r, dw, u[row*dw:(row+1)*dw])
	})
	t := make([]uint64, s.InputLen())
	s.parallel(sh, func(row int) {
		gatherRow(f, s.ht, u[row*dw:(row+1)*dw], t[row*sw:(row+1)*sw])
	})
	return t, nil
}

// Digest fingerprints both axis matrices and the shift.
func (s *Separable) Digest() [32]byte {
	h := sha3.NewShake256()
	h.Write([]byte("filterproof/separable"))
	h.Write([]byte{byte(s.Shift)})
	s.Vertical.writeDigest(h)
	s.Horizontal.writeDigest(h)
	var out [32]byte
	h.Read(out[:])
	return out
}

// gatherRow writes out[j] = Σ m[j][c]·in[c].
func gatherRow(f modarith.Field, m *Matrix, in, out []uint64) {
	for j, row := range m.Entries {
		var acc uint64
		for _, e := range row {
			acc = f.MulAdd(acc, e.Weight, in[e.Col])
		}
		out[j] = acc
	}
}

// combineRows writes out = Σ w·src[row e.Col] over entries, rows of width w.
func combineRows(f modarith.Field, entries []Entry, src []uint64, width int, out []uint64) {
	for _, e := range entries {
		in := src[e.Col*width : (e.Col+1)*width]
		for j := range out {
			out[j] = f.MulAdd(out[j], e.Weight, in[j])
		}
	}
}

// parallel runs fn(i) for i in [0,n) over at most Workers goroutines, each
// handling a contiguous block of rows.
func (s *Separable) parallel(n int, fn func(int)) {
	workers := s.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > n {
		workers = n
	}
	if workers <= 1 {
		for i := 0; i < n; i++ {
			fn(i)
		}
		return
	}
	var wg sync.WaitGroup
	chunk := (n + workers - 1) / workers
	for lo := 0; lo < n; lo += chunk {
		hi := min(lo+chunk, n)
		wg.Add(1)
		go func(lo, hi int) {
			defer wg.Done()
			for i := lo; i < hi; i++ {
				fn(i)
			}
		}(lo, hi)
	}
	wg.Wait()
}

// ProjectRows returns Vᵗ·rL for rL of length DstH.
func (s *Separable) ProjectRows(f modarith.Field, rL []uint64) ([]uint64, error) {
	return s.Vertical.ApplyTranspose(f, rL)
}

// ProjectCols returns Hᵗ·rR for rR of length DstW.
func (s *Separable) ProjectCols(f modarith.Field, rR []uint64) ([]uint64, error) {
	if len(rR) != s.DstW() {
		return nil, fault.Length("operator.Separable.ProjectCols", "random vector", len(rR), s.DstW())
	}
	return s.ht.Apply(f, rR)
}
