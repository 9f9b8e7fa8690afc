// Package mapping stores the tracking id to user id table of a session as a
// human-editable YAML file. A stored mapping seeds the next run of the same
// session, so manual corrections survive re-processing.
package mapping

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/okian/wallsync/internal/domain/identity"
	"github.com/okian/wallsync/internal/domain/model"
)

// ErrInvalidMapping is returned for a mapping file that cannot seed a table.
var ErrInvalidMapping = errors.New("invalid identity mapping")

// File is the on-disk layout.
type File struct {
	Session string           `yaml:"session"`
	Entries []identity.Entry `yaml:"entries"`
}

// Path returns the mapping file of session inside dir.
func Path(dir, session string) string {
	return filepath.Join(dir, fmt.Sprintf("session_%s_skeleton_id_mapping.yaml", session))
}

// Write stores entries for session inside dir.
func Write(dir, session string, entries []identity.Entry) error {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(File{Session: session, Entries: entries}); err != nil {
		return fmt.Errorf("encode mapping: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("encode mapping: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create mapping dir: %w", err)
	}
	if err := os.WriteFile(Path(dir, session), buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write mapping: %w", err)
	}
	return nil
}

// Read loads the mapping of session from dir. A missing file yields an error
// matching fs.ErrNotExist.
func Read(dir, session string) ([]identity.Entry, error) {
	raw, err := os.ReadFile(Path(dir, session))
	if err != nil {
		return nil, err
	}
	var f File
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMapping, err)
	}
	if f.Session != "" && f.Session != session {
		return nil, fmt.Errorf("%w: file is for session %q", ErrInvalidMapping, f.Session)
	}
	seen := make(map[model.TrackingID]bool, len(f.Entries))
	for _, e := range f.Entries {
		switch {
		case e.Tracking == "":
			return nil, fmt.Errorf("%w: empty tracking id", ErrInvalidMapping)
		case !e.User.Resolved():
			return nil, fmt.Errorf("%w: tracking id %s has user %d", ErrInvalidMapping, e.Tracking, e.User)
		case seen[e.Tracking]:
			return nil, fmt.Errorf("%w: tracking id %s listed twice", ErrInvalidMapping, e.Tracking)
		}
		seen[e.Tracking] = true
	}
	return f.Entries, nil
}
