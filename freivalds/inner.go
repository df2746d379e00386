package freivalds

import (
	"runtime"
	"sync"

	"filterproof/internal/modarith"
)

// InnerProduct is the dot-product step shared by prover and verifier. Any
// implementation must return exactly Σ a[i]·b[i] in f.
type InnerProduct interface {
	Dot(f modarith.Field, a, b []uint64) uint64
}

// Portable is the sequential reference.
type Portable struct{}

func (Portable) Dot(f modarith.Field, a, b []uint64) uint64 {
	var acc uint64
	for i := range a {
		acc = f.MulAdd(acc, a[i], b[i])
	}
	return acc
}

// Chunked splits the vectors into fixed-size blocks reduced in parallel and
// sums the partials in block order. Field addition is associative and
// commutative, so the result equals Portable's.
type Chunked struct {
	Size    int
	Workers int
}

func (c Chunked) Dot(f modarith.Field, a, b []uint64) uint64 {
	size := c.Size
	if size <= 0 {
		size = 1 << 14
	}
	blocks := (len(a) + size - 1) / size
	if blocks <= 1 {
		return Portable{}.Dot(f, a, b)
	}
	workers := c.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	partial := make([]uint64, blocks)
	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup
	for k := 0; k < blocks; k++ {
		wg.Add(1)
		go func(k int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			lo, hi := k*size, min((k+1)*size, len(a))
			partial[k] = Portable{}.Dot(f, a[lo:hi], b[lo:hi])
		}(k)
	}
	wg.Wait()
	var acc uint64
	for _, p := range partial {
		acc = f.Add(acc, p)
	}
	return acc
}
