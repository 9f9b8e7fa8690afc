// Package join correlates two time-ordered streams inside a sliding time
// window.
//
// A Matcher owns the right-hand stream and a cursor into it. Left-hand
// queries must arrive in non-decreasing time order; the cursor then only
// moves forward, so a full pass over both streams costs O(|L| + |R|) plus the
// width of each window.
package join

import (
	"math"
)

// Window bounds the admissible offset between a left sample at time tl and a
// right sample at time tr: -Lead <= tl-tr <= Lag. Lag reaches into the past of
// the left sample, Lead into its future. Both are in seconds.
type Window struct {
	Lag  float64
	Lead float64
}

// Symmetric returns a window of delta seconds on both sides.
func Symmetric(delta float64) Window { return Window{Lag: delta, Lead: delta} }

// Before returns a window that only admits right samples at or before the
// left sample, at most delta seconds earlier.
func Before(delta float64) Window { return Window{Lag: delta} }

// After returns a window that only admits right samples at or after the left
// sample, at most delta seconds later.
func After(delta float64) Window { return Window{Lead: delta} }

// Stats counts the work a Matcher did.
type Stats struct {
	Queries int
	// Skipped counts right samples passed over as too old. Each right sample
	// is skipped at most once.
	Skipped int
	// Scanned counts right samples examined inside windows.
	Scanned int
	// Regressions counts queries earlier than the query before them. The
	// cursor never moves back for them, so they may miss candidates.
	Regressions int
}

// Matcher scans a right-hand stream for candidates of successive left-hand
// samples.
type Matcher[R any] struct {
	right  []R
	timeOf func(R) float64
	window Window
	cursor int
	last   float64
	stats  Stats
}

// New returns a Matcher over right, which must be sorted by timeOf.
func New[R any](right []R, timeOf func(R) float64, w Window) *Matcher[R] {
	return &Matcher[R]{right: right, timeOf: timeOf, window: w}
}

// Cursor is the first index not yet known to be too old for every later query.
func (m *Matcher[R]) Cursor() int { return m.cursor }

// Stats returns the work counters so far.
func (m *Matcher[R]) Stats() Stats { return m.stats }

// Right returns the right-hand sample at index i.
func (m *Matcher[R]) Right(i int) R { return m.right[i] }

// Span advances the cursor for a query at time t and returns the half open
// index range [lo, hi) of right samples inside the window.
func (m *Matcher[R]) Span(t float64) (lo, hi int) {
	if m.stats.Queries > 0 && t < m.last {
		m.stats.Regressions++
	}
	m.stats.Queries++
	m.last = t

	i := m.cursor
	for i < len(m.right) && t-m.timeOf(m.right[i]) > m.window.Lag {
		i++
		m.stats.Skipped++
	}
	m.cursor = i

	hi = i
	for hi < len(m.right) && t-m.timeOf(m.right[hi]) >= -m.window.Lead {
		hi++
	}
	m.stats.Scanned += hi - i
	return i, hi
}

// First returns the index of the first right sample in the window of t for
// which accept holds.
func (m *Matcher[R]) First(t float64, accept func(R) bool) (int, bool) {
	lo, hi := m.Span(t)
	for i := lo; i < hi; i++ {
		if accept == nil || accept(m.right[i]) {
			return i, true
		}
	}
	return -1, false
}

// Closest returns the admissible right sample in the window of t with the
// smallest distance. Ties go to the earliest sample. A nil accept admits all.
func (m *Matcher[R]) Closest(t float64, accept func(R) bool, distance func(R) float64) (int, float64, bool) {
	lo, hi := m.Span(t)
	best, bestDist := -1, math.Inf(1)
	for i := lo; i < hi; i++ {
		r := m.right[i]
		if accept != nil && !accept(r) {
			continue
		}
		if d := distance(r); d < bestDist {
			best, bestDist = i, d
		}
	}
	return best, bestDist, best >= 0
}

// Each calls fn for every admissible right sample in the window of t.
func (m *Matcher[R]) Each(t float64, accept func(R) bool, fn func(i int, r R)) {
	lo, hi := m.Span(t)
	for i := lo; i < hi; i++ {
		if accept == nil || accept(m.right[i]) {
			fn(i, m.right[i])
		}
	}
}
