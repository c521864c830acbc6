package profiling

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// Per-frame CPU timing for the render loop. Names are dotted paths such as
// "renderer.pass.shadow_map" so related phases can be summed by prefix.

// historyFrames is the window used by Average
const historyFrames = 60

var (
	mu          sync.Mutex
	frameTotals = make(map[string]time.Duration)
	history     = make(map[string]*ring)
	frames      int
)

type ring struct {
	samples [historyFrames]time.Duration
	next    int
	filled  int
}

func (r *ring) push(d time.Duration) {
	r.samples[r.next] = d
	r.next = (r.next + 1) % historyFrames
	if r.filled < historyFrames {
		r.filled++
	}
}

// Track returns a stop function that records the elapsed time under name.
// Usage: defer profiling.Track("renderer.Tick")()
func Track(name string) func() {
	start := time.Now()
	return func() {
		d := time.Since(start)
		mu.Lock()
		frameTotals[name] += d
		mu.Unlock()
	}
}

// ResetFrame folds the current totals into the history and starts a new frame.
// Call once per frame before the first Track.
func ResetFrame() {
	mu.Lock()
	defer mu.Unlock()
	if len(frameTotals) > 0 || frames > 0 {
		for name, h := range history {
			h.push(frameTotals[name])
		}
		for name, d := range frameTotals {
			if _, ok := history[name]; !ok {
				h := &ring{}
				h.push(d)
				history[name] = h
			}
		}
	}
	frames++
	clear(frameTotals)
}

// Snapshot returns a copy of the current frame's totals
func Snapshot() map[string]time.Duration {
	mu.Lock()
	defer mu.Unlock()
	out := make(map[string]time.Duration, len(frameTotals))
	for k, v := range frameTotals {
		out[k] = v
	}
	return out
}

// SumWithPrefix adds up the current frame's totals whose name starts with prefix
func SumWithPrefix(prefix string) time.Duration {
	mu.Lock()
	defer mu.Unlock()
	var sum time.Duration
	for k, v := range frameTotals {
		if strings.HasPrefix(k, prefix) {
			sum += v
		}
	}
	return sum
}

// Average returns the mean duration of name over the recent completed frames
func Average(name string) time.Duration {
	mu.Lock()
	defer mu.Unlock()
	h, ok := history[name]
	if !ok || h.filled == 0 {
		return 0
	}
	var sum time.Duration
	for i := 0; i < h.filled; i++ {
		sum += h.samples[i]
	}
	return sum / time.Duration(h.filled)
}

// TopN formats the n most expensive entries of the current frame.
// Example: "renderer.Tick:4.2ms, renderer.pass.shadow_map:2.1ms"
func TopN(n int) string {
	ss := Snapshot()
	type pair struct {
		name string
		dur  time.Duration
	}
	list := make([]pair, 0, len(ss))
	for k, v := range ss {
		list = append(list, pair{name: k, dur: v})
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].dur == list[j].dur {
			return list[i].name < list[j].name
		}
		return list[i].dur > list[j].dur
	})
	if n > len(list) {
		n = len(list)
	}
	parts := make([]string, 0, n)
	for i := 0; i < n; i++ {
		parts = append(parts, list[i].name+":"+formatMs(list[i].dur))
	}
	return strings.Join(parts, ", ")
}

// formatMs keeps one decimal and drops a trailing .0
func formatMs(d time.Duration) string {
	ms := float64(d.Microseconds()) / 1000.0
	s := fmt.Sprintf("%.1f", ms)
	return strings.TrimSuffix(s, ".0") + "ms"
}
