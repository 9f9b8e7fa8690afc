// Package fusion runs one recorded session through normalization, identity
// resolution, smoothing and resampling, and returns the fused dataset.
package fusion

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"time"

	"github.com/okian/wallsync/internal/domain/filter"
	"github.com/okian/wallsync/internal/domain/identity"
	"github.com/okian/wallsync/internal/domain/model"
	"github.com/okian/wallsync/internal/domain/normalize"
	"github.com/okian/wallsync/internal/domain/resample"
	"github.com/okian/wallsync/internal/domain/stats"
	"github.com/okian/wallsync/internal/domain/stroke"
	"github.com/okian/wallsync/internal/domain/wall"
	"github.com/okian/wallsync/pkg/logger"
	"github.com/okian/wallsync/pkg/metrics"
	"gonum.org/v1/gonum/spatial/r3"
)

// Source names, as used in errors and metrics.
const (
	SourceBody           = "body_tracking"
	SourceDevicePosition = "device_position"
	SourceTouch          = "touch"
	SourceInjection      = "touch_injection"
	SourceDeviceEvent    = "device_event"
)

// Sources are the raw logs of one session. Injection and DeviceEvent may be
// nil for sessions recorded without devices injecting touches.
type Sources struct {
	Body           io.Reader
	DevicePosition io.Reader
	Touch          io.Reader
	Injection      io.Reader
	DeviceEvent    io.Reader
}

// Pipeline fuses sessions. A Pipeline holds no per-session state and may
// run several sessions concurrently.
type Pipeline struct {
	cfg Config
	log logger.Logger
}

// New validates cfg and returns a pipeline.
func New(cfg Config, opts ...Option) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	p := &Pipeline{cfg: cfg}
	for _, opt := range opts {
		opt(p)
	}
	if p.log == nil {
		p.log = logger.Get().Named("fusion")
	}
	return p, nil
}

// Config returns the configuration the pipeline runs with.
func (p *Pipeline) Config() Config { return p.cfg }

type streams struct {
	deviceBodies []model.Body
	touchBodies  []model.Body
	devices      []model.DevicePosition
	touches      []model.Touch
	injections   []model.Injection
	events       []model.DeviceEvent
}

// Run fuses one session. Malformed input aborts the run; unresolved touches
// do not.
func (p *Pipeline) Run(ctx context.Context, src Sources) (*Result, error) {
	started := time.Now()
	log := p.log
	cfg := p.cfg

	s, err := p.decode(src)
	if err != nil {
		return nil, err
	}
	p.observe("normalize", started)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res := &Result{Session: cfg.Session}

	step := time.Now()
	deviceIDs := deviceOrder(s.devices, s.events)
	votes := identity.Vote(s.deviceBodies, s.devices, cfg.Identity.BodyDeviceWindow, cfg.Identity.BodyDeviceDistance)
	resolver, err := identity.NewResolver(cfg.Identity, identity.NewTable(cfg.Seed), deviceIDs, votes)
	if err != nil {
		return nil, err
	}
	res.Binding = resolver.BindAll(s.deviceBodies)
	p.observe("vote", step)

	step = time.Now()
	res.Resolution, err = resolver.Resolve(s.touches, identity.Sources{
		Devices:    s.devices,
		Injections: s.injections,
		Events:     s.events,
		Bodies:     s.touchBodies,
	})
	if err != nil {
		return nil, err
	}
	res.Touches = resolver.Filter(s.touches)
	res.DeviceTouches = resolver.DeviceTouches(s.events)
	res.Mapping = resolver.Table().Entries()
	p.observe("resolve", step)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for _, b := range s.deviceBodies {
		if resolver.Ignored(b.Tracking) {
			continue
		}
		res.Users = append(res.Users, UserSample{
			Time:     b.Time,
			User:     resolver.UserFor(b.Tracking),
			Tracking: b.Tracking,
			Position: b.Position,
		})
	}
	for _, d := range s.devices {
		u, _ := resolver.DeviceUser(d.Device)
		res.Devices = append(res.Devices, DeviceSample{
			Time:        d.Time,
			User:        u,
			Screen:      d.Screen,
			Space:       d.Space,
			Orientation: d.Orientation,
		})
	}

	step = time.Now()
	res.Range, err = p.sessionRange(s)
	if err != nil {
		return nil, err
	}
	if res.Heads, err = p.headTracks(res.Users, res.Range); err != nil {
		return nil, err
	}
	if res.DeviceTracks, err = p.deviceTracks(s.devices, resolver, res.Range); err != nil {
		return nil, err
	}
	p.observe("resample", step)

	res.Strokes = stroke.Merge(res.Touches, cfg.StrokeGap, cfg.StrokeBase)
	res.Summary = stats.Compute(res.Heads, res.DeviceTracks, res.Touches)

	p.record(res)
	log.Info(ctx, "session fused",
		logger.String("session", cfg.Session),
		logger.Int("users", len(res.Heads)),
		logger.Int("touches", res.Resolution.Touches),
		logger.Int("unresolved", res.Resolution.Unresolved),
		logger.Int("fallback_ids", res.Binding.Fallback),
		logger.Int("ticks", res.Range.Count()),
		logger.Duration("took", time.Since(started)),
	)
	if res.Resolution.Regressions > 0 {
		log.Warn(ctx, "matcher cursor regressed", logger.Int("regressions", res.Resolution.Regressions))
	}
	return res, nil
}

func (p *Pipeline) decode(src Sources) (*streams, error) {
	cfg := p.cfg
	n := normalize.New(
		normalize.WithLocation(cfg.Location),
		normalize.WithCalibration(cfg.Identity.Calibration),
		normalize.WithDeviceAliases(cfg.DeviceAliases),
	)

	body, err := readTable(SourceBody, src.Body, true)
	if err != nil {
		return nil, err
	}
	devices, err := readTable(SourceDevicePosition, src.DevicePosition, true)
	if err != nil {
		return nil, err
	}
	touches, err := readTable(SourceTouch, src.Touch, true)
	if err != nil {
		return nil, err
	}
	injections, err := readTable(SourceInjection, src.Injection, false)
	if err != nil {
		return nil, err
	}
	events, err := readTable(SourceDeviceEvent, src.DeviceEvent, false)
	if err != nil {
		return nil, err
	}

	var s streams
	if s.deviceBodies, err = n.Bodies(body, cfg.BodyDeviceJoint); err != nil {
		return nil, fmt.Errorf("%s: %w", SourceBody, err)
	}
	if cfg.BodyTouchJoint == cfg.BodyDeviceJoint {
		s.touchBodies = s.deviceBodies
	} else if s.touchBodies, err = n.Bodies(body, cfg.BodyTouchJoint); err != nil {
		return nil, fmt.Errorf("%s: %w", SourceBody, err)
	}
	if s.devices, err = n.DevicePositions(devices); err != nil {
		return nil, fmt.Errorf("%s: %w", SourceDevicePosition, err)
	}
	if s.touches, err = n.Touches(touches); err != nil {
		return nil, fmt.Errorf("%s: %w", SourceTouch, err)
	}
	if injections != nil {
		if s.injections, err = n.Injections(injections); err != nil {
			return nil, fmt.Errorf("%s: %w", SourceInjection, err)
		}
	}
	if events != nil {
		if s.events, err = n.DeviceEvents(events); err != nil {
			return nil, fmt.Errorf("%s: %w", SourceDeviceEvent, err)
		}
	}

	metrics.RecordSamplesParsed(SourceBody, len(s.deviceBodies))
	metrics.RecordSamplesParsed(SourceDevicePosition, len(s.devices))
	metrics.RecordSamplesParsed(SourceTouch, len(s.touches))
	metrics.RecordSamplesParsed(SourceInjection, len(s.injections))
	metrics.RecordSamplesParsed(SourceDeviceEvent, len(s.events))
	return &s, nil
}

// readTable reads one log. An optional log may be absent or empty.
func readTable(name string, r io.Reader, required bool) (*normalize.Table, error) {
	if r == nil {
		if required {
			return nil, fmt.Errorf("%w: %s", ErrMissingSource, name)
		}
		return nil, nil
	}
	t, err := normalize.ReadTable(r)
	if err != nil {
		if !required && errors.Is(err, normalize.ErrEmptyTable) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return t, nil
}

// deviceOrder lists device ids in order of first appearance, positions
// before events.
func deviceOrder(devices []model.DevicePosition, events []model.DeviceEvent) []model.DeviceID {
	var out []model.DeviceID
	seen := make(map[model.DeviceID]bool)
	add := func(d model.DeviceID) {
		if !seen[d] {
			seen[d] = true
			out = append(out, d)
		}
	}
	for _, d := range devices {
		add(d.Device)
	}
	for _, e := range events {
		add(e.Device)
	}
	return out
}

// sessionRange spans the body samples, starting SessionTimeOffset after the
// first one. Sessions without bodies span the device samples.
func (p *Pipeline) sessionRange(s *streams) (resample.Range, error) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, b := range s.deviceBodies {
		lo, hi = math.Min(lo, b.Time), math.Max(hi, b.Time)
	}
	if len(s.deviceBodies) == 0 {
		for _, d := range s.devices {
			lo, hi = math.Min(lo, d.Time), math.Max(hi, d.Time)
		}
	}
	if math.IsInf(lo, 0) {
		return resample.Range{}, ErrEmptySession
	}
	start := lo + p.cfg.SessionTimeOffset
	rng := resample.Range{Start: start, Duration: hi - start, Step: p.cfg.TimeStep}
	if err := rng.Validate(); err != nil {
		return resample.Range{}, err
	}
	return rng, nil
}

// headTracks resamples the device joint of every user. The samples of all
// tracking ids bound to a user are merged into one trajectory, and every
// tracked tick gets the point the head faces on the wall.
func (p *Pipeline) headTracks(users []UserSample, rng resample.Range) ([]model.Track, error) {
	byUser := make(map[model.UserID][]model.Frame)
	for _, u := range users {
		byUser[u.User] = append(byUser[u.User], model.Frame{Time: u.Time, Position: u.Position, Orientation: u.Orientation})
	}
	tracks := make([]model.Track, 0, len(byUser))
	for _, id := range sortedUsers(byUser) {
		frames := byUser[id]
		model.SortByTime(frames)
		frames = model.Collapse(frames)
		if p.cfg.FilterUsers {
			if err := p.smooth(frames); err != nil {
				return nil, err
			}
		}
		points, err := resample.Resample(frames, rng, p.cfg.HeadPadding)
		if err != nil {
			return nil, fmt.Errorf("user %d: %w", id, err)
		}
		aim(points, func(o r3.Vec) (yaw, pitch, roll float64) { return o.X, o.Y, o.Z })
		tracks = append(tracks, model.Track{User: id, Points: points})
	}
	return tracks, nil
}

// deviceTracks resamples the pose of every device user. The screen cursor
// travels as two extra channels, and every tracked tick gets the point the
// device is aimed at on the wall.
func (p *Pipeline) deviceTracks(devices []model.DevicePosition, r *identity.Resolver, rng resample.Range) ([]model.Track, error) {
	byUser := make(map[model.UserID][]model.Frame)
	for _, d := range devices {
		u, ok := r.DeviceUser(d.Device)
		if !ok {
			continue
		}
		byUser[u] = append(byUser[u], model.Frame{
			Time:        d.Time,
			Position:    d.Space,
			Orientation: d.Orientation,
			Extra:       []float64{d.ScreenX, d.ScreenY},
		})
	}
	tracks := make([]model.Track, 0, len(byUser))
	for _, id := range sortedUsers(byUser) {
		frames := model.Collapse(byUser[id])
		if p.cfg.FilterDevices {
			if err := p.smooth(frames); err != nil {
				return nil, err
			}
		}
		points, err := resample.Resample(frames, rng, p.cfg.DevicePadding)
		if err != nil {
			return nil, fmt.Errorf("device user %d: %w", id, err)
		}
		aim(points, func(o r3.Vec) (yaw, pitch, roll float64) { return o.Y, o.X, o.Z })
		tracks = append(tracks, model.Track{User: id, Points: points})
	}
	return tracks, nil
}

// aim sets the wall viewpoint of every tracked point. angles reads yaw,
// pitch and roll from the point's orientation.
func aim(points []model.TrajectoryPoint, angles func(r3.Vec) (yaw, pitch, roll float64)) {
	for k := range points {
		if points[k].Synthetic {
			continue
		}
		yaw, pitch, roll := angles(points[k].Orientation)
		points[k].Viewpoint, points[k].HasViewpoint = wall.Viewpoint(points[k].Position, yaw, pitch, roll)
	}
}

// smooth filters frame positions in place with a fresh filter.
func (p *Pipeline) smooth(frames []model.Frame) error {
	f, err := filter.NewVec3(p.cfg.Filter)
	if err != nil {
		return err
	}
	for i := range frames {
		frames[i].Position = f.Filter(frames[i].Position, frames[i].Time)
	}
	return nil
}

func sortedUsers[V any](m map[model.UserID]V) []model.UserID {
	ids := make([]model.UserID, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (p *Pipeline) observe(stage string, since time.Time) {
	metrics.RecordStageLatency(stage, float64(time.Since(since).Microseconds())/1000)
}

func (p *Pipeline) record(res *Result) {
	rep := res.Resolution
	metrics.RecordTouchesResolved("ignored", rep.Ignored)
	metrics.RecordTouchesResolved("motion", rep.Motion)
	metrics.RecordTouchesResolved("injected", rep.Injected)
	metrics.RecordTouchesResolved("proximity", rep.Proximity)
	metrics.RecordTouchesResolved("distance", rep.Distance)
	metrics.RecordTouchesResolved("unresolved", rep.Unresolved)
	metrics.RecordFallbackUsers(res.Binding.Fallback)
	metrics.RecordMatcherRegressions(rep.Regressions)
	metrics.RecordSessionDuration(res.Range.Duration)
	for kind, tracks := range map[string][]model.Track{"head": res.Heads, "device": res.DeviceTracks} {
		var tracked, synthetic int
		for _, tr := range tracks {
			for _, pt := range tr.Points {
				if pt.Synthetic {
					synthetic++
				} else {
					tracked++
				}
			}
		}
		metrics.RecordTrajectoryPoints(kind, tracked, synthetic)
	}
}
