package model

import (
	"sort"
)

// SortByTime orders samples by timestamp, keeping the log order of equal
// timestamps.
func SortByTime[T Timed](samples []T) {
	sort.SliceStable(samples, func(i, j int) bool {
		return samples[i].Timestamp() < samples[j].Timestamp()
	})
}

// IsSorted reports whether samples are in non-decreasing time order.
func IsSorted[T Timed](samples []T) bool {
	for i := 1; i < len(samples); i++ {
		if samples[i].Timestamp() < samples[i-1].Timestamp() {
			return false
		}
	}
	return true
}

// Collapse removes samples whose timestamp equals the one before, keeping the
// later one. samples must be sorted and belong to a single entity.
func Collapse[T Timed](samples []T) []T {
	if len(samples) < 2 {
		return samples
	}
	out := samples[:1]
	for _, s := range samples[1:] {
		if s.Timestamp() == out[len(out)-1].Timestamp() {
			out[len(out)-1] = s
			continue
		}
		out = append(out, s)
	}
	return out
}

// SplitBy groups a sorted stream into per-entity streams. Each group keeps the
// time order and has equal timestamps collapsed. Keys are returned in order of
// first appearance.
func SplitBy[T Timed, K comparable](samples []T, key func(T) K) ([]K, map[K][]T) {
	var order []K
	groups := make(map[K][]T)
	for _, s := range samples {
		k := key(s)
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], s)
	}
	for k, g := range groups {
		groups[k] = Collapse(g)
	}
	return order, groups
}

// CollapseByEntity removes samples that share both timestamp and entity with
// a sample before them, keeping the later one in place of the earlier. The
// stream may mix entities but must be sorted.
func CollapseByEntity[T Timed, K comparable](samples []T, key func(T) K) []T {
	out := samples[:0]
	seen := make(map[K]int)
	runTime := 0.0
	for i, s := range samples {
		if i == 0 || s.Timestamp() != runTime {
			runTime = s.Timestamp()
			clear(seen)
		}
		k := key(s)
		if j, ok := seen[k]; ok {
			out[j] = s
			continue
		}
		seen[k] = len(out)
		out = append(out, s)
	}
	return out
}
