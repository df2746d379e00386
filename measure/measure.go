// Package measure counts prover and verifier work (multiply-accumulates) and
// transcript sizes. Counting is off unless FILTERPROOF_MEASURE=1 or a caller
// sets Enabled.
package measure

import (
	"fmt"
	"io"
	"os"
	"sort"
	"sync"
)

var Enabled bool
var Global Counter

func init() {
	Enabled = os.Getenv("FILTERPROOF_MEASURE") == "1"
	Global = Counter{M: make(map[string]int64)}
}

// BytesVector is the wire size of n field elements of the given bit width.
func BytesVector(n int, bits uint) int64 {
	return int64(n) * int64((bits+7)/8)
}

func Human(n int64) string {
	const (
		KiB = 1024
		MiB = 1024 * KiB
	)
	switch {
	case n >= MiB:
		return fmt.Sprintf("%.1f MiB", float64(n)/float64(MiB))
	case n >= KiB:
		return fmt.Sprintf("%.1f KiB", float64(n)/float64(KiB))
	default:
		return fmt.Sprintf("%d B", n)
	}
}

type Counter struct {
	mu sync.Mutex
	M  map[string]int64
}

func (c *Counter) Add(key string, n int64) {
	if !Enabled {
		return
	}
	c.mu.Lock()
	if c.M == nil {
		c.M = make(map[string]int64)
	}
	c.M[key] += n
	c.mu.Unlock()
}

// SnapshotAndReset returns the counters and clears them.
func (c *Counter) SnapshotAndReset() map[string]int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.M
	c.M = make(map[string]int64)
	return out
}

// Dump writes counters in key order. Keys ending in "_bytes" print in
// human units. When both sides were counted the verifier's share of the
// prover's work follows.
func (c *Counter) Dump(w io.Writer) {
	if !Enabled {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := make([]string, 0, len(c.M))
	for k := range c.M {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fmt.Fprintln(w, "[measure] report:")
	for _, k := range keys {
		v := c.M[k]
		if len(k) > 6 && k[len(k)-6:] == "_bytes" {
			fmt.Fprintf(w, "[measure] %s = %s\n", k, Human(v))
		} else {
			fmt.Fprintf(w, "[measure] %s = %d\n", k, v)
		}
	}
	if p, v := c.M["prover_mac"], c.M["verifier_mac"]; p > 0 && v > 0 {
		fmt.Fprintf(w, "[measure] verifier/prover work = %.4f\n", float64(v)/float64(p))
	}
}

func Section(w io.Writer, name string, f func()) {
	if !Enabled {
		f()
		return
	}
	fmt.Fprintf(w, "[measure] begin %s\n", name)
	f()
	fmt.Fprintf(w, "[measure] end %s\n", name)
}
