package join

// Tally counts co-occurrences per key.
type Tally[K comparable] map[K]int

// Count runs left through m and increments tally[key(l, r)] for every
// admissible pair. left must be sorted by leftTime.
func Count[L, R any, K comparable](
	left []L,
	leftTime func(L) float64,
	m *Matcher[R],
	accept func(L, R) bool,
	key func(L, R) K,
	tally Tally[K],
) Tally[K] {
	if tally == nil {
		tally = make(Tally[K])
	}
	for _, l := range left {
		m.Each(leftTime(l), func(r R) bool {
			return accept == nil || accept(l, r)
		}, func(_ int, r R) {
			tally[key(l, r)]++
		})
	}
	return tally
}
