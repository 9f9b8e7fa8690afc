package identity

import (
	"math"
	"sort"
	"strconv"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/okian/wallsync/internal/domain/join"
	"github.com/okian/wallsync/internal/domain/model"
)

// Sources are the streams the touch cascade correlates against. All must be
// sorted by time.
type Sources struct {
	Devices    []model.DevicePosition
	Injections []model.Injection
	Events     []model.DeviceEvent
	// Bodies holds the samples of the joint used for touch attribution.
	Bodies []model.Body
}

// Report counts what each stage of a resolution pass did.
type Report struct {
	Touches    int
	Ignored    int
	Motion     int
	Injected   int
	Proximity  int
	Distance   int
	Forced     int
	Unresolved int
	// Regressions sums the cursor regressions of every matcher used. It is
	// zero for sorted input.
	Regressions int
}

// BindReport counts how tracking ids got their user ids.
type BindReport struct {
	Seeded   int
	Voted    int
	Fallback int
}

// Resolver owns the identity state of one session run.
type Resolver struct {
	cfg         Config
	table       *Table
	votes       Votes
	devices     []model.DeviceID
	deviceUsers map[model.DeviceID]model.UserID
	base        model.UserID
	fallbacks   int
	ignore      map[model.TrackingID]bool
}

// Fallback ids are always above minFallbackBase.
const minFallbackBase model.UserID = 2

// NewResolver returns a resolver for the given devices, in log order, and
// the votes collected for them.
func NewResolver(cfg Config, table *Table, devices []model.DeviceID, votes Votes) (*Resolver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if table == nil {
		table = NewTable(nil)
	}
	if votes == nil {
		votes = make(Votes)
	}
	r := &Resolver{
		cfg:         cfg,
		table:       table,
		votes:       votes,
		devices:     devices,
		deviceUsers: DeviceUsers(devices),
		ignore:      make(map[model.TrackingID]bool, len(cfg.IgnoreTrackings)),
	}
	// Users 1 and 2 belong to the two study devices even when a session
	// logged only one of them.
	r.base = minFallbackBase
	for _, u := range r.deviceUsers {
		if u > r.base {
			r.base = u
		}
	}
	for _, id := range cfg.IgnoreTrackings {
		r.ignore[id] = true
	}
	return r, nil
}

// DeviceUsers assigns user ids to devices. Numeric device ids keep their
// number; other ids are numbered after the largest numeric one.
func DeviceUsers(devices []model.DeviceID) map[model.DeviceID]model.UserID {
	out := make(map[model.DeviceID]model.UserID, len(devices))
	next := model.UserID(0)
	for _, d := range devices {
		if v, err := strconv.Atoi(string(d)); err == nil && v > 0 {
			out[d] = model.UserID(v)
			if model.UserID(v) > next {
				next = model.UserID(v)
			}
		}
	}
	for _, d := range devices {
		if _, ok := out[d]; !ok {
			next++
			out[d] = next
		}
	}
	return out
}

// Table returns the mapping table.
func (r *Resolver) Table() *Table { return r.table }

// DeviceUser returns the user carrying device d.
func (r *Resolver) DeviceUser(d model.DeviceID) (model.UserID, bool) {
	u, ok := r.deviceUsers[d]
	return u, ok
}

// Ignored reports whether a tracking id is on the ignore list.
func (r *Resolver) Ignored(id model.TrackingID) bool { return r.ignore[id] }

// UserFor returns the user id of a tracking id, binding it on first use.
// A tracking id counted at least VoteThreshold times with a device binds to
// that device's user; with several qualifying devices the higher count wins
// and ties go to the device listed last. Otherwise the id gets a fresh
// fallback user id above 2 and above every device user.
func (r *Resolver) UserFor(id model.TrackingID) model.UserID {
	u, _ := r.bind(id)
	return u
}

func (r *Resolver) bind(id model.TrackingID) (model.UserID, bool) {
	if u, ok := r.table.Lookup(id); ok {
		return u, false
	}
	best, bestCount := model.UserID(0), 0
	for _, d := range r.devices {
		c := r.votes[Pair{Tracking: id, Device: d}]
		if c >= r.cfg.VoteThreshold && c >= bestCount {
			best, bestCount = r.deviceUsers[d], c
		}
	}
	if bestCount > 0 {
		return r.table.Bind(id, best), true
	}

	r.fallbacks++
	u := r.base + model.UserID(r.fallbacks)
	for r.table.InUse(u) {
		r.fallbacks++
		u = r.base + model.UserID(r.fallbacks)
	}
	r.table.fallback[id] = true
	return r.table.Bind(id, u), false
}

// BindAll binds every tracking id of bodies in order of first appearance.
func (r *Resolver) BindAll(bodies []model.Body) BindReport {
	var rep BindReport
	seen := make(map[model.TrackingID]bool)
	for _, b := range bodies {
		if seen[b.Tracking] {
			continue
		}
		seen[b.Tracking] = true
		if _, ok := r.table.Lookup(b.Tracking); ok {
			rep.Seeded++
			continue
		}
		if _, voted := r.bind(b.Tracking); voted {
			rep.Voted++
		} else {
			rep.Fallback++
		}
	}
	return rep
}

// Resolve labels touches in place. Touches on a display border are marked
// Ignored first; the remaining stages only ever set a user on a touch that
// is still Unresolved.
func (r *Resolver) Resolve(touches []model.Touch, src Sources) (Report, error) {
	if !model.IsSorted(touches) || !model.IsSorted(src.Devices) || !model.IsSorted(src.Injections) ||
		!model.IsSorted(src.Events) || !model.IsSorted(src.Bodies) {
		return Report{}, ErrUnsorted
	}
	rep := Report{Touches: len(touches)}
	for i := range touches {
		if r.cfg.Borders.Excluded(touches[i].Position) {
			touches[i].User = model.Ignored
			rep.Ignored++
		}
	}
	r.resolveMotion(touches, src, &rep)
	r.resolveInjected(touches, src, &rep)
	r.resolveReach(touches, src, &rep)
	r.resolveDistance(touches, src, &rep)
	for _, t := range touches {
		if t.User == model.Unresolved {
			rep.Unresolved++
		}
	}
	return rep, nil
}

// resolveMotion attributes moving touches to the device whose screen cursor
// sits on the same pixel shortly after.
func (r *Resolver) resolveMotion(touches []model.Touch, src Sources, rep *Report) {
	m := join.New(src.Devices, model.DevicePosition.Timestamp, join.After(r.cfg.TouchInjectionWindow.Seconds()))
	for i := range touches {
		t := &touches[i]
		if t.User != model.Unresolved || t.Type != model.TouchMotion {
			continue
		}
		j, ok := m.First(t.Time, func(d model.DevicePosition) bool { return d.Screen == t.Position })
		if !ok {
			continue
		}
		if u, ok := r.DeviceUser(src.Devices[j].Device); ok {
			t.User, t.Injected = u, true
			rep.Motion++
		}
	}
	rep.Regressions += m.Stats().Regressions
}

type sourcedInjection struct {
	model.Injection
	device model.DeviceID
	found  bool
}

// resolveInjected attributes the other touches to the device that injected
// them: an injection on the same pixel shortly before, which in turn follows
// a device event.
func (r *Resolver) resolveInjected(touches []model.Touch, src Sources, rep *Report) {
	events := join.New(src.Events, model.DeviceEvent.Timestamp, join.Before(r.cfg.InjectionEventWindow.Seconds()))
	injections := make([]sourcedInjection, len(src.Injections))
	for j, in := range src.Injections {
		injections[j].Injection = in
		if k, ok := events.First(in.Time, nil); ok {
			injections[j].device, injections[j].found = src.Events[k].Device, true
		}
	}

	m := join.New(injections, func(s sourcedInjection) float64 { return s.Time },
		join.Before(r.cfg.TouchInjectionWindow.Seconds()))
	for i := range touches {
		t := &touches[i]
		if t.User != model.Unresolved || t.Type == model.TouchMotion {
			continue
		}
		j, ok := m.First(t.Time, func(s sourcedInjection) bool { return s.found && s.Position == t.Position })
		if !ok {
			continue
		}
		if u, ok := r.DeviceUser(injections[j].device); ok {
			t.User, t.Injected = u, true
			rep.Injected++
		}
	}
	rep.Regressions += events.Stats().Regressions + m.Stats().Regressions
}

// reaches reports whether a body close enough to the wall could touch the
// pixel (tx, ty) with its arm: the pixel must lie inside the bounding square
// of the circle where the arm span sphere cuts the wall.
func (r *Resolver) reaches(b model.Body, tx, ty float64) bool {
	z := b.Position.Z
	if z > r.cfg.MinWallDistance || math.Abs(z) > r.cfg.ArmSpan {
		return false
	}
	rx, ry := r.cfg.Calibration.LengthToPixels(math.Sqrt(r.cfg.ArmSpan*r.cfg.ArmSpan - z*z))
	bx, by := r.cfg.Calibration.WallToPixel(b.Position.X, b.Position.Y)
	return bx-rx < tx && tx < bx+rx && by-ry < ty && ty < by+ry
}

// resolveReach attributes a touch to the closest body within arm's reach.
func (r *Resolver) resolveReach(touches []model.Touch, src Sources, rep *Report) {
	m := join.New(src.Bodies, model.Body.Timestamp, join.Symmetric(r.cfg.BodyTouchWindow.Seconds()))
	for i := range touches {
		t := &touches[i]
		if t.User != model.Unresolved {
			continue
		}
		tx, ty := float64(t.Position.X), float64(t.Position.Y)
		j, _, ok := m.Closest(t.Time,
			func(b model.Body) bool { return r.reaches(b, tx, ty) },
			func(b model.Body) float64 {
				bx, by := r.cfg.Calibration.WallToPixel(b.Position.X, b.Position.Y)
				bz := b.Position.Z * 100
				return (bx-tx)*(bx-tx) + (by-ty)*(by-ty) + bz*bz
			})
		if !ok {
			continue
		}
		t.User = r.UserFor(src.Bodies[j].Tracking)
		rep.Proximity++
	}
	rep.Regressions += m.Stats().Regressions
}

type candidate struct {
	id   model.TrackingID
	dist float64 // squared, metres
}

// resolveDistance attributes the touches left over by the closest body,
// provided it is the only one within the border distance.
func (r *Resolver) resolveDistance(touches []model.Touch, src Sources, rep *Report) {
	m := join.New(src.Bodies, model.Body.Timestamp, join.Symmetric(r.cfg.BodyTouchWindow.Seconds()))
	for i := range touches {
		t := &touches[i]
		if t.User != model.Unresolved {
			continue
		}
		tp := r.cfg.Calibration.PixelToWall(float64(t.Position.X), float64(t.Position.Y))
		var cands []candidate
		at := make(map[model.TrackingID]int)
		m.Each(t.Time, nil, func(_ int, b model.Body) {
			d := r3.Norm2(r3.Sub(b.Position, tp))
			if k, ok := at[b.Tracking]; ok {
				cands[k].dist = math.Min(cands[k].dist, d)
				return
			}
			at[b.Tracking] = len(cands)
			cands = append(cands, candidate{id: b.Tracking, dist: d})
		})
		u, forced, ok := r.disambiguate(cands)
		if !ok {
			continue
		}
		t.User = u
		rep.Distance++
		if forced {
			rep.Forced++
		}
	}
	rep.Regressions += m.Stats().Regressions
}

// disambiguate picks the user of the closest candidate when no other
// candidate is within the border distance.
//
// A single candidate farther away than the border distance hands the touch
// to the other of the two device users. This only makes sense for two-user
// sessions; with any other number of device users the touch stays
// unresolved.
func (r *Resolver) disambiguate(cands []candidate) (model.UserID, bool, bool) {
	border := r.cfg.BorderDistance
	switch len(cands) {
	case 0:
		return 0, false, false
	case 1:
		u := r.UserFor(cands[0].id)
		if math.Sqrt(cands[0].dist) <= border {
			return u, false, true
		}
		other, ok := r.otherUser(u)
		return other, true, ok
	}
	sort.SliceStable(cands, func(i, j int) bool { return cands[i].dist < cands[j].dist })
	if math.Sqrt(cands[0].dist) >= border {
		return 0, false, false
	}
	for _, c := range cands[1:] {
		if math.Sqrt(c.dist) < border {
			return 0, false, false
		}
	}
	return r.UserFor(cands[0].id), false, true
}

func (r *Resolver) otherUser(u model.UserID) (model.UserID, bool) {
	if len(r.deviceUsers) != 2 {
		return 0, false
	}
	pair := make([]model.UserID, 0, 2)
	for _, v := range r.deviceUsers {
		pair = append(pair, v)
	}
	sort.Slice(pair, func(i, j int) bool { return pair[i] < pair[j] })
	if u == pair[1] {
		return pair[0], true
	}
	return pair[1], true
}

// Filter returns the touches to emit. Ignored touches are dropped, as are
// touches whose user is only known through ignored tracking ids. Unresolved
// touches are dropped when the config asks for it and otherwise emitted as
// Neutral.
func (r *Resolver) Filter(touches []model.Touch) []model.Touch {
	out := make([]model.Touch, 0, len(touches))
	for _, t := range touches {
		switch {
		case t.User == model.Ignored:
			continue
		case t.User == model.Unresolved:
			if r.cfg.DropUnresolved {
				continue
			}
			t.User = model.Neutral
		case r.IgnoredUser(t.User):
			continue
		}
		out = append(out, t)
	}
	return out
}

// IgnoredUser reports whether every tracking id bound to u is ignored.
func (r *Resolver) IgnoredUser(u model.UserID) bool {
	ids := r.table.Trackings(u)
	if len(ids) == 0 {
		return false
	}
	for _, id := range ids {
		if !r.ignore[id] {
			return false
		}
	}
	return true
}

// DeviceTouches attributes the cursor events of each device to its user.
func (r *Resolver) DeviceTouches(events []model.DeviceEvent) []model.DeviceTouch {
	var out []model.DeviceTouch
	for _, e := range events {
		typ, ok := cursorType(e.Kind)
		if !ok {
			continue
		}
		u, ok := r.DeviceUser(e.Device)
		if !ok {
			continue
		}
		out = append(out, model.DeviceTouch{Time: e.Time, User: u, Position: e.Canvas, Type: typ})
	}
	return out
}

func cursorType(kind string) (model.TouchType, bool) {
	switch kind {
	case "CURSOR DOWN":
		return model.TouchDown, true
	case "CURSOR MOTION":
		return model.TouchMotion, true
	case "CURSOR UP":
		return model.TouchUp, true
	}
	return "", false
}
