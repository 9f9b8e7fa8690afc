// Package dataset writes the fused per-session CSV files consumed by the
// wall replay and analysis tools. Every field is quoted and tuples are
// written as "(x, y, z)".
package dataset

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/multierr"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/okian/wallsync/internal/domain/fusion"
	"github.com/okian/wallsync/internal/domain/model"
)

const defaultPrefix = "giant_session_"

// Writer writes fused datasets into one output directory.
type Writer struct {
	dir    string
	prefix string
}

// NewWriter returns a writer for dir.
func NewWriter(dir string, opts ...Option) *Writer {
	w := &Writer{dir: dir, prefix: defaultPrefix}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Path returns the file an artifact of session is written to.
func (w *Writer) Path(session string, a Artifact) string {
	return filepath.Join(w.dir, fmt.Sprintf("%s%s_%s.csv", w.prefix, session, a))
}

// Write writes one artifact of res. The file is replaced atomically.
func (w *Writer) Write(res *fusion.Result, a Artifact) (err error) {
	if _, ok := Columns[a]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownArtifact, a)
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	tmp, err := os.CreateTemp(w.dir, ".wallsync-*")
	if err != nil {
		return fmt.Errorf("create %s: %w", a, err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if err := Encode(tmp, res, a); err != nil {
		return multierr.Append(fmt.Errorf("encode %s: %w", a, err), tmp.Close())
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", a, err)
	}
	if err := os.Rename(tmp.Name(), w.Path(res.Session, a)); err != nil {
		return fmt.Errorf("rename %s: %w", a, err)
	}
	return nil
}

// WriteAll writes every artifact of res. A failing artifact does not stop
// the others; all failures are returned together.
func (w *Writer) WriteAll(res *fusion.Result) error {
	var err error
	for _, a := range Artifacts {
		if werr := w.Write(res, a); werr != nil {
			err = multierr.Append(err, fmt.Errorf("artifact %s: %w", a, werr))
		}
	}
	return err
}

// Encode writes one artifact of res to out.
func Encode(out io.Writer, res *fusion.Result, a Artifact) error {
	cols, ok := Columns[a]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownArtifact, a)
	}
	bw := bufio.NewWriter(out)
	writeRow(bw, cols...)

	switch a {
	case Users:
		for _, u := range res.Users {
			writeRow(bw, stamp(u.Time), strconv.Itoa(int(u.User)), vec(u.Position), vec(u.Orientation))
		}
	case Touch:
		for _, t := range res.Touches {
			user := t.User
			if !user.Resolved() {
				user = model.Neutral
			}
			writeRow(bw, stamp(t.Time), pixel(t.Position), strconv.Itoa(int(user)),
				strconv.FormatBool(t.Injected), string(t.Type))
		}
	case Device:
		for _, d := range res.Devices {
			writeRow(bw, stamp(d.Time), strconv.Itoa(int(d.User)), pixel(d.Screen), vec(d.Space), vec(d.Orientation))
		}
	case DeviceTouch:
		for _, t := range res.DeviceTouches {
			writeRow(bw, stamp(t.Time), strconv.Itoa(int(t.User)), pixel(t.Position), string(t.Type))
		}
	case Stats:
		// userDistance is a session value, repeated on every row.
		for _, u := range res.Summary.Users {
			writeRow(bw, strconv.Itoa(int(u.User)),
				strconv.Itoa(u.Touched), strconv.Itoa(u.Injected),
				strconv.Itoa(u.TouchedDown), strconv.Itoa(u.InjectedDown),
				metres(u.WalkedUser), metres(u.WalkedDevice), metres(u.WallDistance),
				tuple(u.WallShare), metres(res.Summary.UserDistance))
		}
	}
	return bw.Flush()
}

func writeRow(w *bufio.Writer, fields ...string) {
	for i, f := range fields {
		if i > 0 {
			_ = w.WriteByte(',')
		}
		_ = w.WriteByte('"')
		_, _ = w.WriteString(strings.ReplaceAll(f, `"`, `""`))
		_ = w.WriteByte('"')
	}
	_ = w.WriteByte('\n')
}

func stamp(t float64) string {
	return strconv.FormatFloat(t, 'f', 6, 64)
}

func vec(v r3.Vec) string {
	return fmt.Sprintf("(%f, %f, %f)", v.X, v.Y, v.Z)
}

func metres(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}

func tuple(vs []float64) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = strconv.FormatFloat(v, 'f', 2, 64)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

func pixel(p model.Pixel) string {
	return fmt.Sprintf("(%d, %d)", p.X, p.Y)
}
