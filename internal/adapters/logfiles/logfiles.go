// Package logfiles locates and opens the raw CSV logs of recorded sessions.
//
// A data directory holds one directory per session:
//
//	<root>/session_<id>/session_<id>_<kind>.csv
package logfiles

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/multierr"

	"github.com/okian/wallsync/internal/domain/fusion"
)

const sessionPrefix = "session_"

// optional kinds may be absent for sessions recorded without injecting devices.
var optional = map[string]bool{
	fusion.SourceInjection:   true,
	fusion.SourceDeviceEvent: true,
}

// Dir returns the directory of session id under root.
func Dir(root, id string) string {
	return filepath.Join(root, sessionPrefix+id)
}

// Path returns the log file of one kind of session id under root.
func Path(root, id, kind string) string {
	return filepath.Join(Dir(root, id), fmt.Sprintf("%s%s_%s.csv", sessionPrefix, id, kind))
}

// Session is an opened set of session logs. Close releases the files.
type Session struct {
	ID      string
	Sources fusion.Sources
	files   []*os.File
}

// Close closes every opened log file.
func (s *Session) Close() error {
	var err error
	for _, f := range s.files {
		err = multierr.Append(err, f.Close())
	}
	s.files = nil
	return err
}

// Open opens all logs of session id under root. Missing optional logs leave
// their source nil.
func Open(root, id string) (*Session, error) {
	if st, err := os.Stat(Dir(root, id)); err != nil || !st.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, Dir(root, id))
	}

	s := &Session{ID: id}
	open := func(kind string) (io.Reader, error) {
		f, err := os.Open(Path(root, id, kind))
		if errors.Is(err, fs.ErrNotExist) {
			if optional[kind] {
				return nil, nil
			}
			return nil, fmt.Errorf("%w: %s", ErrMissingLog, Path(root, id, kind))
		}
		if err != nil {
			return nil, err
		}
		s.files = append(s.files, f)
		return f, nil
	}

	targets := []struct {
		kind string
		dst  *io.Reader
	}{
		{fusion.SourceBody, &s.Sources.Body},
		{fusion.SourceDevicePosition, &s.Sources.DevicePosition},
		{fusion.SourceTouch, &s.Sources.Touch},
		{fusion.SourceInjection, &s.Sources.Injection},
		{fusion.SourceDeviceEvent, &s.Sources.DeviceEvent},
	}
	for _, t := range targets {
		r, err := open(t.kind)
		if err != nil {
			return nil, multierr.Append(err, s.Close())
		}
		*t.dst = r
	}
	return s, nil
}

// Discover lists the session ids found under root, numeric ids first in
// numeric order, then the rest lexically.
func Discover(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("read data dir: %w", err)
	}
	var ids []string
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), sessionPrefix) {
			continue
		}
		if id := strings.TrimPrefix(e.Name(), sessionPrefix); id != "" {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool {
		a, errA := strconv.Atoi(ids[i])
		b, errB := strconv.Atoi(ids[j])
		switch {
		case errA == nil && errB == nil:
			return a < b
		case errA == nil:
			return true
		case errB == nil:
			return false
		}
		return ids[i] < ids[j]
	})
	return ids, nil
}

// Write stores logs of session id under root, one file per kind, creating
// the session directory as needed.
func Write(root, id string, logs map[string][]byte) error {
	if err := os.MkdirAll(Dir(root, id), 0o755); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	kinds := make([]string, 0, len(logs))
	for kind := range logs {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	for _, kind := range kinds {
		if err := os.WriteFile(Path(root, id, kind), logs[kind], 0o644); err != nil {
			return fmt.Errorf("write %s log: %w", kind, err)
		}
	}
	return nil
}
