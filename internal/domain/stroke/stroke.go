// Package stroke merges the rows of a touch log into strokes: a finger
// sliding over the wall produces many rows that belong to one contact.
package stroke

import (
	"github.com/okian/wallsync/internal/domain/model"
)

// Defaults used in the study.
const (
	DefaultGap  = 0.1
	DefaultBase = 0.03
)

// Merge groups each user's touches into strokes. A row continues the user's
// current stroke when it follows the previous row by at most gap seconds.
// A stroke keeps the time, position and type of its first row and lasts
// from its first to its last row plus base. It counts as injected when any
// of its rows was. Strokes are returned in order of their start.
func Merge(touches []model.Touch, gap, base float64) []model.Touch {
	var out []model.Touch
	open := make(map[model.UserID]int)
	last := make(map[model.UserID]float64)
	for _, t := range touches {
		i, ok := open[t.User]
		if ok && t.Time-last[t.User] <= gap {
			s := &out[i]
			s.Duration = t.Time - s.Time + base
			s.Injected = s.Injected || t.Injected
			last[t.User] = t.Time
			continue
		}
		t.Duration = base
		open[t.User] = len(out)
		last[t.User] = t.Time
		out = append(out, t)
	}
	return out
}
