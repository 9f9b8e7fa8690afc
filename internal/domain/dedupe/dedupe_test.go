package dedupe_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/wallsync/internal/domain/dedupe"
)

func TestInMemoryDeduper(t *testing.T) {
	ctx := context.Background()

	Convey("Given a new unbounded deduper", t, func() {
		d := dedupe.NewInMemoryDeduper()

		Convey("When a key is recorded", func() {
			first := d.SeenAndRecord(ctx, dedupe.Key("run", "1"))

			Convey("Then it is new the first time and seen the second time", func() {
				So(first, ShouldBeFalse)
				So(d.SeenAndRecord(ctx, dedupe.Key("run", "1")), ShouldBeTrue)
				So(d.Size(), ShouldEqual, 1)
			})

			Convey("Then the same session of another run is new", func() {
				So(d.SeenAndRecord(ctx, dedupe.Key("other", "1")), ShouldBeFalse)
			})

			Convey("Then an unrecorded key can be recorded again", func() {
				d.Unrecord(ctx, dedupe.Key("run", "1"))
				So(d.Size(), ShouldEqual, 0)
				So(d.SeenAndRecord(ctx, dedupe.Key("run", "1")), ShouldBeFalse)
			})

			Convey("Then unrecording an unknown key changes nothing", func() {
				d.Unrecord(ctx, "absent")
				So(d.Size(), ShouldEqual, 1)
			})
		})
	})

	Convey("Given a deduper bounded to two keys", t, func() {
		d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(2))
		d.SeenAndRecord(ctx, "a")
		d.SeenAndRecord(ctx, "b")

		Convey("When a third key is recorded", func() {
			d.SeenAndRecord(ctx, "c")

			Convey("Then the oldest key is evicted", func() {
				So(d.Size(), ShouldEqual, 2)
				So(d.SeenAndRecord(ctx, "c"), ShouldBeTrue)
				So(d.SeenAndRecord(ctx, "a"), ShouldBeFalse)
			})
		})

		Convey("When a key is unrecorded first", func() {
			d.Unrecord(ctx, "a")
			d.SeenAndRecord(ctx, "c")

			Convey("Then nothing else is evicted", func() {
				So(d.SeenAndRecord(ctx, "b"), ShouldBeTrue)
				So(d.SeenAndRecord(ctx, "c"), ShouldBeTrue)
			})
		})
	})
}

func TestDedupeConcurrency(t *testing.T) {
	Convey("Given a deduper shared by many goroutines", t, func() {
		d := dedupe.NewInMemoryDeduper()
		var fresh atomic.Int64
		var wg sync.WaitGroup

		for g := 0; g < 8; g++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := 0; i < 100; i++ {
					if !d.SeenAndRecord(context.Background(), fmt.Sprint(i)) {
						fresh.Add(1)
					}
				}
			}()
		}
		wg.Wait()

		Convey("Then every key is new exactly once", func() {
			So(fresh.Load(), ShouldEqual, 100)
			So(d.Size(), ShouldEqual, 100)
		})
	})
}
