// Package identity maps anonymous tracking ids to stable user ids and
// attributes wall touches to users.
//
// Resolution runs in a fixed order: device proximity voting binds tracking
// ids to device users, the touch cascade labels touches stage by stage, and
// a final filter decides which touches are emitted. All state lives in a
// Table and a Resolver owned by one session run.
package identity

import (
	"sort"

	"github.com/okian/wallsync/internal/domain/model"
)

// Entry is one binding of the mapping table.
type Entry struct {
	Tracking model.TrackingID `yaml:"tracking_id"`
	User     model.UserID     `yaml:"user_id"`
	Fallback bool             `yaml:"fallback,omitempty"`
}

// Table is the append-only tracking id to user id mapping of one session.
// A tracking id, once bound, keeps its user id.
type Table struct {
	users    map[model.TrackingID]model.UserID
	fallback map[model.TrackingID]bool
	order    []model.TrackingID
}

// NewTable returns a table pre-seeded with known bindings, typically loaded
// from a previous run's mapping artifact.
func NewTable(seed []Entry) *Table {
	t := &Table{
		users:    make(map[model.TrackingID]model.UserID, len(seed)),
		fallback: make(map[model.TrackingID]bool),
	}
	for _, e := range seed {
		if e.Fallback {
			t.fallback[e.Tracking] = true
		}
		t.Bind(e.Tracking, e.User)
	}
	return t
}

// Lookup returns the user bound to id.
func (t *Table) Lookup(id model.TrackingID) (model.UserID, bool) {
	u, ok := t.users[id]
	return u, ok
}

// Bind maps id to user unless id is already bound, and returns the user id
// in effect.
func (t *Table) Bind(id model.TrackingID, user model.UserID) model.UserID {
	if u, ok := t.users[id]; ok {
		return u
	}
	t.users[id] = user
	t.order = append(t.order, id)
	return user
}

// InUse reports whether any tracking id is bound to user.
func (t *Table) InUse(user model.UserID) bool {
	for _, u := range t.users {
		if u == user {
			return true
		}
	}
	return false
}

// Trackings lists the tracking ids bound to user in binding order.
func (t *Table) Trackings(user model.UserID) []model.TrackingID {
	var out []model.TrackingID
	for _, id := range t.order {
		if t.users[id] == user {
			out = append(out, id)
		}
	}
	return out
}

// Users returns the distinct bound user ids, ascending.
func (t *Table) Users() []model.UserID {
	seen := make(map[model.UserID]bool)
	var out []model.UserID
	for _, id := range t.order {
		if u := t.users[id]; !seen[u] {
			seen[u] = true
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Entries returns all bindings in binding order.
func (t *Table) Entries() []Entry {
	out := make([]Entry, len(t.order))
	for i, id := range t.order {
		out[i] = Entry{Tracking: id, User: t.users[id], Fallback: t.fallback[id]}
	}
	return out
}

// Len is the number of bound tracking ids.
func (t *Table) Len() int { return len(t.order) }
