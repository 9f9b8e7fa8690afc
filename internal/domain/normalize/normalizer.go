package normalize

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/okian/wallsync/internal/domain/model"
	"github.com/okian/wallsync/internal/domain/wall"
)

// Column names shared by every log.
const (
	ColumnDay  = "day"
	ColumnTime = "time"
)

// Normalizer decodes session logs. It caches parsed dates and is meant to
// be used by a single session run.
type Normalizer struct {
	location    *time.Location
	calibration wall.Calibration
	aliases     map[model.DeviceID]model.DeviceID
	days        map[string]time.Time
}

// New returns a Normalizer. Without options timestamps are read as UTC,
// body positions use the default calibration and device "3" is an alias of
// device "2".
func New(opts ...Option) *Normalizer {
	n := &Normalizer{
		location:    time.UTC,
		calibration: wall.DefaultCalibration(),
		aliases:     map[model.DeviceID]model.DeviceID{"3": "2"},
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Device returns the canonical id of a raw device id.
func (n *Normalizer) Device(raw string) model.DeviceID {
	id := model.DeviceID(strings.TrimSpace(raw))
	if v, err := strconv.Atoi(string(id)); err == nil {
		id = model.DeviceID(strconv.Itoa(v))
	}
	if alias, ok := n.aliases[id]; ok {
		return alias
	}
	return id
}

// Timestamp combines a date and a time of day ("15:04:05.123456") into epoch
// seconds with microsecond precision.
func (n *Normalizer) Timestamp(day, clock string) (float64, error) {
	midnight, err := n.day(day)
	if err != nil {
		return 0, err
	}
	micros, err := parseClock(clock)
	if err != nil {
		return 0, err
	}
	return float64(midnight.Unix()) + float64(micros)/1e6, nil
}

func (n *Normalizer) day(s string) (time.Time, error) {
	if t, ok := n.days[s]; ok {
		return t, nil
	}
	t, err := dateparse.ParseIn(s, n.location)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: day %q: %v", ErrMalformedValue, s, err)
	}
	y, m, d := t.Date()
	t = time.Date(y, m, d, 0, 0, 0, 0, n.location)
	if n.days == nil {
		n.days = make(map[string]time.Time)
	}
	n.days[s] = t
	return t, nil
}

// parseClock reads HH:MM:SS with an optional fraction of up to nine digits
// and returns microseconds since midnight. Shorter fractions are right
// padded, so ".5" is 500000 µs.
func parseClock(s string) (int64, error) {
	bad := func() (int64, error) {
		return 0, fmt.Errorf("%w: time of day %q", ErrMalformedValue, s)
	}
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return bad()
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return bad()
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return bad()
	}
	secPart, frac, _ := strings.Cut(parts[2], ".")
	sec, err := strconv.Atoi(secPart)
	if err != nil || sec < 0 || sec > 60 {
		return bad()
	}
	var micros int64
	if frac != "" {
		if len(frac) > 9 {
			return bad()
		}
		if len(frac) > 6 {
			frac = frac[:6]
		}
		frac += strings.Repeat("0", 6-len(frac))
		v, err := strconv.ParseInt(frac, 10, 64)
		if err != nil || v < 0 {
			return bad()
		}
		micros = v
	}
	return (int64(h)*3600+int64(m)*60+int64(sec))*1_000_000 + micros, nil
}

// rowTime reads the day and time columns of one row.
func (n *Normalizer) rowTime(c cell, day, clock int) (float64, error) {
	ts, err := n.Timestamp(c.str(day), c.str(clock))
	if err != nil {
		return 0, fmt.Errorf("row %d: %w", c.row+2, err)
	}
	return ts, nil
}

// Bodies decodes the body tracking log for one joint. Rows whose joint is
// not tracked (tracking state 0) are dropped. Positions are converted to
// wall coordinates.
func (n *Normalizer) Bodies(t *Table, joint string) ([]model.Body, error) {
	cols, err := t.columns(ColumnDay, ColumnTime, "skeleton_id",
		joint+"_x", joint+"_y", joint+"_z", joint+"_tracking-state")
	if err != nil {
		return nil, err
	}
	out := make([]model.Body, 0, t.Len())
	for r := range t.rows {
		c := cell{t: t, row: r}
		state, err := c.int(cols[6])
		if err != nil {
			return nil, err
		}
		if state == 0 {
			continue
		}
		ts, err := n.rowTime(c, cols[0], cols[1])
		if err != nil {
			return nil, err
		}
		var raw [3]float64
		for i := range raw {
			if raw[i], err = c.float(cols[3+i]); err != nil {
				return nil, err
			}
		}
		out = append(out, model.Body{
			Time:     ts,
			Tracking: model.TrackingID(c.str(cols[2])),
			Position: n.calibration.CameraToWall(r3.Vec{X: raw[0], Y: raw[1], Z: raw[2]}),
		})
	}
	model.SortByTime(out)
	return model.CollapseByEntity(out, func(b model.Body) model.TrackingID { return b.Tracking }), nil
}

// DevicePositions decodes the device pose log.
func (n *Normalizer) DevicePositions(t *Table) ([]model.DevicePosition, error) {
	cols, err := t.columns(ColumnDay, ColumnTime, "device_id",
		"screen_pos_x_in_px", "screen_pos_y_in_px",
		"space_pos_x_in_m", "space_pos_y_in_m", "space_pos_z_in_m",
		"pitch_in_rad", "yaw_in_rad", "roll_in_rad")
	if err != nil {
		return nil, err
	}
	out := make([]model.DevicePosition, 0, t.Len())
	for r := range t.rows {
		c := cell{t: t, row: r}
		ts, err := n.rowTime(c, cols[0], cols[1])
		if err != nil {
			return nil, err
		}
		var v [8]float64
		for i := range v {
			if v[i], err = c.float(cols[3+i]); err != nil {
				return nil, err
			}
		}
		out = append(out, model.DevicePosition{
			Time:        ts,
			Device:      n.Device(c.str(cols[2])),
			Screen:      model.Pixel{X: int(v[0]), Y: int(v[1])},
			ScreenX:     v[0],
			ScreenY:     v[1],
			Space:       r3.Vec{X: v[2], Y: v[3], Z: v[4]},
			Orientation: r3.Vec{X: v[5], Y: v[6], Z: v[7]},
		})
	}
	model.SortByTime(out)
	return model.CollapseByEntity(out, func(d model.DevicePosition) model.DeviceID { return d.Device }), nil
}

// Touches decodes the wall touch log. Every touch starts unresolved.
func (n *Normalizer) Touches(t *Table) ([]model.Touch, error) {
	cols, err := t.columns(ColumnDay, ColumnTime, "pos_x_in_px", "pos_y_in_px", "event_type_str")
	if err != nil {
		return nil, err
	}
	out := make([]model.Touch, 0, t.Len())
	for r := range t.rows {
		c := cell{t: t, row: r}
		ts, err := n.rowTime(c, cols[0], cols[1])
		if err != nil {
			return nil, err
		}
		p, err := c.pixel(cols[2], cols[3])
		if err != nil {
			return nil, err
		}
		typ, err := model.ParseTouchType(c.str(cols[4]))
		if err != nil {
			return nil, c.fail(cols[4], err)
		}
		out = append(out, model.Touch{Time: ts, Position: p, Type: typ, User: model.Unresolved})
	}
	model.SortByTime(out)
	return out, nil
}

// Injections decodes the touch injection log.
func (n *Normalizer) Injections(t *Table) ([]model.Injection, error) {
	cols, err := t.columns(ColumnDay, ColumnTime, "pos_x_in_px", "pos_y_in_px")
	if err != nil {
		return nil, err
	}
	out := make([]model.Injection, 0, t.Len())
	for r := range t.rows {
		c := cell{t: t, row: r}
		ts, err := n.rowTime(c, cols[0], cols[1])
		if err != nil {
			return nil, err
		}
		p, err := c.pixel(cols[2], cols[3])
		if err != nil {
			return nil, err
		}
		out = append(out, model.Injection{Time: ts, Position: p})
	}
	model.SortByTime(out)
	return out, nil
}

// DeviceEvents decodes the device event log. Events that carry no canvas
// position (empty cells) get the zero pixel.
func (n *Normalizer) DeviceEvents(t *Table) ([]model.DeviceEvent, error) {
	cols, err := t.columns(ColumnDay, ColumnTime, "device_id",
		"canvas_pos_x_in_px", "canvas_pos_y_in_px", "event_type")
	if err != nil {
		return nil, err
	}
	out := make([]model.DeviceEvent, 0, t.Len())
	for r := range t.rows {
		c := cell{t: t, row: r}
		ts, err := n.rowTime(c, cols[0], cols[1])
		if err != nil {
			return nil, err
		}
		var p model.Pixel
		if c.str(cols[3]) != "" || c.str(cols[4]) != "" {
			if p, err = c.pixel(cols[3], cols[4]); err != nil {
				return nil, err
			}
		}
		out = append(out, model.DeviceEvent{
			Time:   ts,
			Device: n.Device(c.str(cols[2])),
			Canvas: p,
			Kind:   strings.Join(strings.Fields(c.str(cols[5])), " "),
		})
	}
	model.SortByTime(out)
	return out, nil
}

func (c cell) pixel(x, y int) (model.Pixel, error) {
	px, err := c.int(x)
	if err != nil {
		return model.Pixel{}, err
	}
	py, err := c.int(y)
	if err != nil {
		return model.Pixel{}, err
	}
	return model.Pixel{X: px, Y: py}, nil
}
