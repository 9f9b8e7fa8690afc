package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/okian/wallsync/internal/domain/filter"
	"github.com/okian/wallsync/internal/domain/fusion"
	"github.com/okian/wallsync/internal/domain/model"
	"github.com/okian/wallsync/internal/domain/wall"
)

// Session holds the thresholds of one recorded session. Zero-valued keys
// absent from the file keep the study defaults.
type Session struct {
	// Level is the study condition the session was recorded under. It keys
	// the persisted rows together with the session id.
	Level int `koanf:"level"`

	BodyDeviceJoint   string  `koanf:"body_device_joint"`
	BodyTouchJoint    string  `koanf:"body_touch_joint"`
	TimeStep          float64 `koanf:"time_step"`
	SessionTimeOffset float64 `koanf:"session_time_offset"`

	Filter        filter.Params `koanf:"filter"`
	FilterUsers   bool          `koanf:"filter_users"`
	FilterDevices bool          `koanf:"filter_devices"`

	StrokeGap  float64 `koanf:"stroke_gap"`
	StrokeBase float64 `koanf:"stroke_base"`

	DeviceAliases map[string]string `koanf:"device_aliases"`

	Identity Identity `koanf:"identity"`
}

// Identity holds the resolver thresholds of a session.
type Identity struct {
	VoteThreshold        int           `koanf:"vote_threshold"`
	BodyDeviceWindow     time.Duration `koanf:"body_device_window"`
	BodyDeviceDistance   float64       `koanf:"body_device_distance"`
	TouchInjectionWindow time.Duration `koanf:"touch_injection_window"`
	InjectionEventWindow time.Duration `koanf:"injection_event_window"`
	BodyTouchWindow      time.Duration `koanf:"body_touch_window"`
	MinWallDistance      float64       `koanf:"min_wall_distance"`
	ArmSpan              float64       `koanf:"arm_span"`
	BorderDistance       float64       `koanf:"border_distance"`
	IgnoreTrackings      []string      `koanf:"ignore_trackings"`
	DropUnresolved       bool          `koanf:"drop_unresolved"`
	// Borders replaces the default tile seams key by key. A listed seam or
	// kept area list replaces the default list as a whole.
	Borders              wall.Borders  `koanf:"borders"`
}

// DefaultSession mirrors fusion.DefaultConfig.
func DefaultSession() Session {
	d := fusion.DefaultConfig()
	aliases := make(map[string]string, len(d.DeviceAliases))
	for k, v := range d.DeviceAliases {
		aliases[k] = v
	}
	return Session{
		BodyDeviceJoint:   d.BodyDeviceJoint,
		BodyTouchJoint:    d.BodyTouchJoint,
		TimeStep:          d.TimeStep,
		SessionTimeOffset: d.SessionTimeOffset,
		Filter:            d.Filter,
		FilterUsers:       d.FilterUsers,
		FilterDevices:     d.FilterDevices,
		StrokeGap:         d.StrokeGap,
		StrokeBase:        d.StrokeBase,
		DeviceAliases:     aliases,
		Identity: Identity{
			VoteThreshold:        d.Identity.VoteThreshold,
			BodyDeviceWindow:     d.Identity.BodyDeviceWindow,
			BodyDeviceDistance:   d.Identity.BodyDeviceDistance,
			TouchInjectionWindow: d.Identity.TouchInjectionWindow,
			InjectionEventWindow: d.Identity.InjectionEventWindow,
			BodyTouchWindow:      d.Identity.BodyTouchWindow,
			MinWallDistance:      d.Identity.MinWallDistance,
			ArmSpan:              d.Identity.ArmSpan,
			BorderDistance:       d.Identity.BorderDistance,
			DropUnresolved:       d.Identity.DropUnresolved,
			Borders:              d.Identity.Borders,
		},
	}
}

// SessionPath returns the threshold file of session id inside dir.
func SessionPath(dir, id string) string {
	return filepath.Join(dir, fmt.Sprintf("session_%s_config.yaml", id))
}

// LoadSession reads the threshold file of session id from dir. A missing
// file yields the defaults. Durations are written like "150ms".
func LoadSession(_ context.Context, dir, id string) (Session, error) {
	s := DefaultSession()
	path := SessionPath(dir, id)
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return s, nil
	}

	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return Session{}, fmt.Errorf("%w: %s: %v", ErrLoadConfig, path, err)
	}
	if err := k.UnmarshalWithConf("", &s, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return Session{}, fmt.Errorf("%w: %s: %v", ErrLoadConfig, path, err)
	}
	return s, nil
}

// Fusion builds the pipeline config of session id.
func (s Session) Fusion(id string, loc *time.Location) fusion.Config {
	c := fusion.DefaultConfig()
	c.Session = id
	c.BodyDeviceJoint = s.BodyDeviceJoint
	c.BodyTouchJoint = s.BodyTouchJoint
	c.TimeStep = s.TimeStep
	c.SessionTimeOffset = s.SessionTimeOffset
	c.Filter = s.Filter
	c.FilterUsers = s.FilterUsers
	c.FilterDevices = s.FilterDevices
	c.StrokeGap = s.StrokeGap
	c.StrokeBase = s.StrokeBase
	c.DeviceAliases = s.DeviceAliases
	if loc != nil {
		c.Location = loc
	}

	c.Identity.VoteThreshold = s.Identity.VoteThreshold
	c.Identity.BodyDeviceWindow = s.Identity.BodyDeviceWindow
	c.Identity.BodyDeviceDistance = s.Identity.BodyDeviceDistance
	c.Identity.TouchInjectionWindow = s.Identity.TouchInjectionWindow
	c.Identity.InjectionEventWindow = s.Identity.InjectionEventWindow
	c.Identity.BodyTouchWindow = s.Identity.BodyTouchWindow
	c.Identity.MinWallDistance = s.Identity.MinWallDistance
	c.Identity.ArmSpan = s.Identity.ArmSpan
	c.Identity.BorderDistance = s.Identity.BorderDistance
	c.Identity.DropUnresolved = s.Identity.DropUnresolved
	c.Identity.Borders = s.Identity.Borders
	c.Identity.IgnoreTrackings = make([]model.TrackingID, len(s.Identity.IgnoreTrackings))
	for i, id := range s.Identity.IgnoreTrackings {
		c.Identity.IgnoreTrackings[i] = model.TrackingID(id)
	}
	return c
}
