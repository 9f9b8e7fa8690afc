// Package stats computes per-user session statistics from the fused
// dataset: input counts, walked distances and distances to the wall and to
// other users.
package stats

import (
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/okian/wallsync/internal/domain/model"
)

// WallBins are the upper bounds, in metres, of the distance-to-wall bins.
// The lowest bin starts at zero.
var WallBins = []float64{0.8, 1.6, 2.4, 3.7}

// User holds the statistics of one user.
type User struct {
	User model.UserID

	Touched      int
	Injected     int
	TouchedDown  int
	InjectedDown int

	// WalkedUser is the floor distance (x, z) covered by the user's head.
	WalkedUser float64
	// WalkedDevice is the distance covered by the user's device.
	WalkedDevice float64
	// WallDistance is the mean distance of the head to the wall.
	WallDistance float64
	// WallShare is the percentage of tracked ticks spent in each of
	// WallBins.
	WallShare []float64
}

// Inputs is the total number of touches, direct and injected.
func (u User) Inputs() int { return u.Touched + u.Injected }

// Summary holds the statistics of one session.
type Summary struct {
	Users []User
	// UserDistance is the mean floor distance between users over the ticks
	// at which at least two users were tracked.
	UserDistance float64
}

// Compute derives the statistics. Synthetic trajectory points are ignored.
func Compute(heads, devices []model.Track, touches []model.Touch) Summary {
	byUser := make(map[model.UserID]*User)
	get := func(id model.UserID) *User {
		u, ok := byUser[id]
		if !ok {
			u = &User{User: id, WallShare: make([]float64, len(WallBins))}
			byUser[id] = u
		}
		return u
	}

	for _, t := range touches {
		if !t.User.Resolved() {
			continue
		}
		u := get(t.User)
		down := t.Type == model.TouchDown
		switch {
		case t.Injected:
			u.Injected++
			if down {
				u.InjectedDown++
			}
		default:
			u.Touched++
			if down {
				u.TouchedDown++
			}
		}
	}

	for _, tr := range heads {
		u := get(tr.User)
		var zs []float64
		var prev []float64
		for _, p := range tr.Points {
			if p.Synthetic {
				prev = nil
				continue
			}
			cur := []float64{p.Position.X, p.Position.Z}
			if prev != nil {
				u.WalkedUser += floats.Distance(prev, cur, 2)
			}
			prev = cur
			zs = append(zs, p.Position.Z)
		}
		if len(zs) == 0 {
			continue
		}
		u.WallDistance = stat.Mean(zs, nil)
		for _, z := range zs {
			if i := bin(z); i >= 0 {
				u.WallShare[i]++
			}
		}
		floats.Scale(100/float64(len(zs)), u.WallShare)
	}

	for _, tr := range devices {
		u := get(tr.User)
		var prev []float64
		for _, p := range tr.Points {
			if p.Synthetic {
				prev = nil
				continue
			}
			cur := []float64{p.Position.X, p.Position.Y, p.Position.Z}
			if prev != nil {
				u.WalkedDevice += floats.Distance(prev, cur, 2)
			}
			prev = cur
		}
	}

	s := Summary{UserDistance: userDistance(heads)}
	for _, u := range byUser {
		s.Users = append(s.Users, *u)
	}
	sort.Slice(s.Users, func(i, j int) bool { return s.Users[i].User < s.Users[j].User })
	return s
}

func bin(z float64) int {
	if z <= 0 {
		return -1
	}
	for i, hi := range WallBins {
		if z <= hi {
			return i
		}
	}
	return -1
}

// userDistance averages, tick by tick, the mean pairwise floor distance of
// the tracked users. Tracks are assumed to share one tick grid.
func userDistance(heads []model.Track) float64 {
	n := 0
	for _, tr := range heads {
		if len(tr.Points) > n {
			n = len(tr.Points)
		}
	}
	var means []float64
	for k := 0; k < n; k++ {
		var pts [][]float64
		for _, tr := range heads {
			if k < len(tr.Points) && !tr.Points[k].Synthetic {
				p := tr.Points[k].Position
				pts = append(pts, []float64{p.X, p.Z})
			}
		}
		if len(pts) < 2 {
			continue
		}
		var ds []float64
		for i := range pts {
			for j := i + 1; j < len(pts); j++ {
				ds = append(ds, floats.Distance(pts[i], pts[j], 2))
			}
		}
		means = append(means, stat.Mean(ds, nil))
	}
	if len(means) == 0 {
		return 0
	}
	return stat.Mean(means, nil)
}
