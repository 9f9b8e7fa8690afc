package mapping_test

import (
	"errors"
	"io/fs"
	"os"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/wallsync/internal/adapters/mapping"
	"github.com/okian/wallsync/internal/domain/identity"
)

func TestMapping(t *testing.T) {
	Convey("Given a session directory", t, func() {
		dir := t.TempDir()
		entries := []identity.Entry{
			{Tracking: "72057594037927937", User: 1},
			{Tracking: "72057594037927939", User: 3, Fallback: true},
		}

		Convey("When a mapping is written and read back", func() {
			So(mapping.Write(dir, "4", entries), ShouldBeNil)
			got, err := mapping.Read(dir, "4")

			Convey("Then the entries survive in order", func() {
				So(err, ShouldBeNil)
				So(got, ShouldResemble, entries)
			})

			Convey("Then the file is readable yaml", func() {
				raw, err := os.ReadFile(mapping.Path(dir, "4"))
				So(err, ShouldBeNil)
				So(string(raw), ShouldContainSubstring, "tracking_id: \"72057594037927937\"")
				So(string(raw), ShouldContainSubstring, "fallback: true")
			})
		})

		Convey("When no mapping exists", func() {
			_, err := mapping.Read(dir, "4")

			So(errors.Is(err, fs.ErrNotExist), ShouldBeTrue)
		})

		Convey("When a tracking id is listed twice", func() {
			So(mapping.Write(dir, "4", append(entries, identity.Entry{Tracking: "72057594037927937", User: 2})), ShouldBeNil)

			_, err := mapping.Read(dir, "4")

			So(errors.Is(err, mapping.ErrInvalidMapping), ShouldBeTrue)
		})

		Convey("When the file belongs to another session", func() {
			So(mapping.Write(dir, "5", entries), ShouldBeNil)
			So(os.Rename(mapping.Path(dir, "5"), mapping.Path(dir, "4")), ShouldBeNil)

			_, err := mapping.Read(dir, "4")

			So(errors.Is(err, mapping.ErrInvalidMapping), ShouldBeTrue)
		})

		Convey("When a user id is not a real user", func() {
			So(os.WriteFile(mapping.Path(dir, "4"), []byte("entries:\n  - tracking_id: \"1\"\n    user_id: -1\n"), 0o644), ShouldBeNil)

			_, err := mapping.Read(dir, "4")

			So(errors.Is(err, mapping.ErrInvalidMapping), ShouldBeTrue)
		})
	})
}
