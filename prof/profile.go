// Package prof records wall-clock durations of pipeline stages. Concurrent
// channel sessions record under the same labels; Summarize folds them.
package prof

import (
	"fmt"
	"io"
	"sort"
	"sync"
	"time"
)

// Entry is one timed stage, or a folded group of them when Calls > 1.
type Entry struct {
	Label string
	Dur   time.Duration
	Calls int
}

var (
	mu      sync.Mutex
	entries []Entry
)

// Track records the time elapsed since start under name.
//
//	defer prof.Track(time.Now(), "session/prove")
func Track(start time.Time, name string) {
	d := time.Since(start)
	mu.Lock()
	entries = append(entries, Entry{Label: name, Dur: d, Calls: 1})
	mu.Unlock()
}

// Stage runs fn and records its duration.
func Stage(name string, fn func() error) error {
	defer Track(time.Now(), name)
	return fn()
}

// SnapshotAndReset returns the recorded entries in arrival order and clears
// the log.
func SnapshotAndReset() []Entry {
	mu.Lock()
	defer mu.Unlock()
	out := entries
	entries = nil
	return out
}

// Summarize sums entries sharing a label, ordered by first appearance.
func Summarize(in []Entry) []Entry {
	idx := make(map[string]int)
	var out []Entry
	for _, e := range in {
		i, ok := idx[e.Label]
		if !ok {
			idx[e.Label] = len(out)
			out = append(out, Entry{Label: e.Label})
			i = len(out) - 1
		}
		out[i].Dur += e.Dur
		out[i].Calls += max(e.Calls, 1)
	}
	return out
}

// Print writes the summarized entries, slowest first.
func Print(w io.Writer, in []Entry) {
	sum := Summarize(in)
	sort.SliceStable(sum, func(i, j int) bool { return sum[i].Dur > sum[j].Dur })
	for _, e := range sum {
		if e.Calls > 1 {
			fmt.Fprintf(w, "[prof] %-24s %v (%d calls)\n", e.Label, e.Dur, e.Calls)
			continue
		}
		fmt.Fprintf(w, "[prof] %-24s %v\n", e.Label, e.Dur)
	}
}
