package synth

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"sort"
	"strconv"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/okian/wallsync/internal/domain/model"
	"github.com/okian/wallsync/internal/domain/wall"
)

// ErrInvalidConfig is returned for a config that cannot produce a session.
var ErrInvalidConfig = errors.New("invalid synth config")

// Timing of the scripted gestures.
const (
	deviceLag      = 7 * time.Millisecond
	strokeStep     = 20 * time.Millisecond
	injectionDelay = time.Millisecond
	touchDelay     = 30 * time.Millisecond
	injectedOffset = 300 * time.Millisecond
	seamStep       = 25
)

// Session holds the generated logs and the script they were made from.
type Session struct {
	ID string
	// Logs maps a log kind to its CSV content.
	Logs map[string][]byte
	// Users maps tracking ids to the user the script gave them.
	Users map[model.TrackingID]model.UserID
	// Devices maps raw device ids to their user.
	Devices map[string]model.UserID

	FingerTouches   int
	InjectedTouches int
	BorderTouches   int
}

type actor struct {
	tracking model.TrackingID
	device   string
	user     model.UserID
	from, to r3.Vec // device joint path, wall metres
	until    time.Duration
}

func (a actor) at(f float64) r3.Vec {
	return r3.Add(a.from, r3.Scale(f, r3.Sub(a.to, a.from)))
}

type row struct {
	at    time.Duration
	cells []string
}

type screenSample struct {
	at time.Duration
	p  model.Pixel
}

type log struct {
	header []string
	rows   []row
}

func (l *log) add(at time.Duration, cells ...string) {
	l.rows = append(l.rows, row{at: at, cells: cells})
}

type generator struct {
	cfg     Config
	rng     *rand.Rand
	borders wall.Borders
	logs    map[string]*log
	// screens holds, per device, the sampled cursor pixels in time order.
	screens map[string][]screenSample
}

// Generate builds a session from cfg. The same config always yields the
// same logs.
func Generate(cfg Config) (*Session, error) {
	if !(cfg.Rate > 0) || cfg.Duration <= 0 || cfg.Gestures < 0 {
		return nil, fmt.Errorf("%w: rate %v, duration %v, gestures %d",
			ErrInvalidConfig, cfg.Rate, cfg.Duration, cfg.Gestures)
	}
	if cfg.BodyDeviceJoint == "" || cfg.BodyTouchJoint == "" {
		return nil, fmt.Errorf("%w: joint names must be set", ErrInvalidConfig)
	}

	g := &generator{
		cfg:     cfg,
		rng:     rand.New(rand.NewPCG(uint64(cfg.Seed), uint64(cfg.Seed)^0x5eed)),
		borders: wall.DefaultBorders(),
		screens: make(map[string][]screenSample),
		logs:    make(map[string]*log),
	}
	g.logs[KindBody] = &log{header: bodyHeader(cfg.BodyDeviceJoint, cfg.BodyTouchJoint)}
	g.logs[KindDevicePosition] = &log{header: []string{"day", "time", "device_id",
		"screen_pos_x_in_px", "screen_pos_y_in_px",
		"space_pos_x_in_m", "space_pos_y_in_m", "space_pos_z_in_m",
		"pitch_in_rad", "yaw_in_rad", "roll_in_rad"}}
	g.logs[KindTouch] = &log{header: []string{"day", "time", "pos_x_in_px", "pos_y_in_px", "event_type_str"}}
	g.logs[KindInjection] = &log{header: []string{"day", "time", "pos_x_in_px", "pos_y_in_px"}}
	g.logs[KindDeviceEvent] = &log{header: []string{"day", "time", "device_id",
		"canvas_pos_x_in_px", "canvas_pos_y_in_px", "event_type"}}

	finger := actor{
		tracking: "72057594037927937", device: "1", user: 1,
		from: r3.Vec{X: 1.0, Y: 1.3, Z: 0.5}, to: r3.Vec{X: 2.0, Y: 1.3, Z: 0.5},
		until: cfg.Duration,
	}
	injector := actor{
		tracking: "72057594037927938", device: "03", user: 2,
		from: r3.Vec{X: 3.5, Y: 1.3, Z: 0.6}, to: r3.Vec{X: 3.0, Y: 1.3, Z: 0.6},
		until: cfg.Duration,
	}
	// A bystander far from both devices, seen only briefly.
	ghost := actor{
		tracking: "72057594037927939", user: 3,
		from: r3.Vec{X: 4.5, Y: 1.3, Z: 2.8}, to: r3.Vec{X: 4.5, Y: 1.3, Z: 2.8},
		until: time.Second,
	}

	g.track([]actor{finger, injector, ghost})

	s := &Session{
		ID: cfg.Session,
		Users: map[model.TrackingID]model.UserID{
			finger.tracking: finger.user, injector.tracking: injector.user, ghost.tracking: ghost.user,
		},
		Devices: map[string]model.UserID{finger.device: finger.user, injector.device: injector.user},
	}
	g.logs[KindDeviceEvent].add(0, g.stamp(0, injector.device, "", "", "APP STARTED")...)
	for i := 0; i < cfg.Gestures; i++ {
		at := time.Duration(float64(cfg.Duration) * float64(i+1) / float64(cfg.Gestures+1))
		s.FingerTouches += g.fingerGesture(finger, at)
		s.InjectedTouches += g.injectedGesture(injector, at+injectedOffset)
	}
	s.BorderTouches = g.borderTouch(cfg.Duration / 2)

	s.Logs = make(map[string][]byte, len(g.logs))
	for kind, l := range g.logs {
		b, err := l.encode()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", kind, err)
		}
		s.Logs[kind] = b
	}
	return s, nil
}

func bodyHeader(deviceJoint, touchJoint string) []string {
	h := []string{"day", "time", "skeleton_id"}
	joints := []string{deviceJoint}
	if touchJoint != deviceJoint {
		joints = append(joints, touchJoint)
	}
	for _, j := range joints {
		h = append(h, j+"_x", j+"_y", j+"_z", j+"_tracking-state")
	}
	return h
}

// track writes one body row per tick for every visible actor, and one
// device row shortly after for every actor holding a device.
func (g *generator) track(actors []actor) {
	cal := g.cfg.Calibration
	tick := time.Duration(float64(time.Second) / g.cfg.Rate)
	twoJoints := g.cfg.BodyDeviceJoint != g.cfg.BodyTouchJoint
	for at := time.Duration(0); at <= g.cfg.Duration; at += tick {
		f := float64(at) / float64(g.cfg.Duration)
		for _, a := range actors {
			if at > a.until {
				continue
			}
			mid := g.jitter(a.at(f))
			cells := []string{string(a.tracking)}
			cells = append(cells, joint(cal.WallToCamera(mid))...)
			if twoJoints {
				shoulder := mid
				shoulder.Y += 0.2
				cells = append(cells, joint(cal.WallToCamera(shoulder))...)
			}
			g.logs[KindBody].add(at, g.stamp(at, cells...)...)

			if a.device == "" {
				continue
			}
			dev := a.at(f)
			dev.X += 0.15
			dev.Y = 1.2
			dev.Z -= 0.1
			sx, sy := cal.WallToPixel(dev.X, dev.Y)
			screen := model.Pixel{X: int(math.Round(sx)), Y: int(math.Round(sy))}
			dat := at + deviceLag
			g.screens[a.device] = append(g.screens[a.device], screenSample{at: dat, p: screen})
			g.logs[KindDevicePosition].add(dat, g.stamp(dat, a.device,
				itoa(screen.X), itoa(screen.Y),
				ftoa(dev.X), ftoa(dev.Y), ftoa(dev.Z),
				"0.0", "0.0", "0.0")...)
		}
	}
}

// fingerGesture is a direct touch in front of the actor's shoulder.
func (g *generator) fingerGesture(a actor, at time.Duration) int {
	p := a.at(float64(at) / float64(g.cfg.Duration))
	px, py := g.cfg.Calibration.WallToPixel(p.X+0.05, p.Y+0.2)
	pos := g.offSeam(model.Pixel{X: int(math.Round(px)), Y: int(math.Round(py))})
	l := g.logs[KindTouch]
	l.add(at, g.stamp(at, append(pixel(pos), "TOUCH_DOWN")...)...)
	pos = g.offSeam(model.Pixel{X: pos.X + 5, Y: pos.Y})
	l.add(at+strokeStep, g.stamp(at+strokeStep, append(pixel(pos), "TOUCH_MOTION")...)...)
	l.add(at+2*strokeStep, g.stamp(at+2*strokeStep, append(pixel(pos), "TOUCH_UP")...)...)
	return 3
}

// injectedGesture presses, moves and releases the device cursor. Presses
// and releases reach the wall through touch injection; the move shows up as
// a wall touch on the device's current cursor pixel.
func (g *generator) injectedGesture(a actor, at time.Duration) int {
	p := a.at(float64(at) / float64(g.cfg.Duration))
	px, py := g.cfg.Calibration.WallToPixel(p.X-0.2, 1.6)
	pos := g.offSeam(model.Pixel{X: int(math.Round(px)), Y: int(math.Round(py))})

	n := 0
	for i, kind := range []model.TouchType{model.TouchDown, model.TouchUp} {
		te := at + time.Duration(i)*3*strokeStep
		g.logs[KindDeviceEvent].add(te, g.stamp(te, append([]string{a.device}, append(pixel(pos), "CURSOR "+string(kind))...)...)...)
		ti := te + injectionDelay
		g.logs[KindInjection].add(ti, g.stamp(ti, pixel(pos)...)...)
		tt := te + touchDelay
		g.logs[KindTouch].add(tt, g.stamp(tt, append(pixel(pos), "TOUCH_"+string(kind))...)...)
		n++
	}

	tm := at + 2*strokeStep
	for _, s := range g.screens[a.device] {
		if s.at < tm {
			continue
		}
		if s.at-tm > 100*time.Millisecond || g.borders.Excluded(s.p) {
			break
		}
		g.logs[KindDeviceEvent].add(tm, g.stamp(tm, append([]string{a.device}, append(pixel(s.p), "CURSOR MOTION")...)...)...)
		g.logs[KindTouch].add(tm, g.stamp(tm, append(pixel(s.p), "TOUCH_MOTION")...)...)
		n++
		break
	}
	return n
}

// borderTouch lands on the seam between the first two tiles.
func (g *generator) borderTouch(at time.Duration) int {
	seam := g.borders.Vertical[1]
	g.logs[KindTouch].add(at, g.stamp(at, itoa(seam), "1500", "TOUCH_DOWN")...)
	return 1
}

func (g *generator) offSeam(p model.Pixel) model.Pixel {
	for g.borders.Excluded(p) {
		p.X += seamStep
	}
	return p
}

func (g *generator) jitter(p r3.Vec) r3.Vec {
	n := g.cfg.Noise
	return r3.Vec{
		X: p.X + g.rng.NormFloat64()*n,
		Y: p.Y + g.rng.NormFloat64()*n,
		Z: p.Z + g.rng.NormFloat64()*n,
	}
}

// stamp prefixes cells with the day and time columns of at.
func (g *generator) stamp(at time.Duration, cells ...string) []string {
	t := g.cfg.Start.Add(at)
	return append([]string{t.Format("2006-01-02"), t.Format("15:04:05.000000")}, cells...)
}

func (l *log) encode() ([]byte, error) {
	sort.SliceStable(l.rows, func(i, j int) bool { return l.rows[i].at < l.rows[j].at })
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(l.header); err != nil {
		return nil, err
	}
	for _, r := range l.rows {
		if err := w.Write(r.cells); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

func joint(p r3.Vec) []string {
	return []string{ftoa(p.X), ftoa(p.Y), ftoa(p.Z), "2"}
}

func pixel(p model.Pixel) []string { return []string{itoa(p.X), itoa(p.Y)} }

func itoa(v int) string { return strconv.Itoa(v) }

func ftoa(v float64) string { return strconv.FormatFloat(v, 'f', 6, 64) }
