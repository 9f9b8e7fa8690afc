package stats_test

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/okian/wallsync/internal/domain/model"
	"github.com/okian/wallsync/internal/domain/stats"
)

func TestCompute(t *testing.T) {
	Convey("Given two users walking along the wall", t, func() {
		heads := []model.Track{
			{User: 1, Points: []model.TrajectoryPoint{
				{Synthetic: true, Position: r3.Vec{X: 2, Y: 1, Z: 2}},
				{Position: r3.Vec{X: 0, Z: 0.5}},
				{Position: r3.Vec{X: 3, Z: 0.5}},
				{Position: r3.Vec{X: 3, Z: 1.0}},
			}},
			{User: 2, Points: []model.TrajectoryPoint{
				{Position: r3.Vec{X: 0, Z: 2}},
				{Position: r3.Vec{X: 0, Z: 2}},
				{Synthetic: true},
				{Synthetic: true},
			}},
		}
		devices := []model.Track{
			{User: 1, Points: []model.TrajectoryPoint{
				{Position: r3.Vec{X: 0, Y: 1, Z: 0}},
				{Position: r3.Vec{X: 0, Y: 1, Z: 2}},
			}},
		}
		touches := []model.Touch{
			{User: 1, Type: model.TouchDown},
			{User: 1, Type: model.TouchMotion},
			{User: 1, Type: model.TouchDown, Injected: true},
			{User: model.Neutral, Type: model.TouchDown},
		}

		s := stats.Compute(heads, devices, touches)

		Convey("Then users are listed in id order", func() {
			So(len(s.Users), ShouldEqual, 2)
			So(s.Users[0].User, ShouldEqual, model.UserID(1))
		})

		Convey("Then neutral touches are not attributed", func() {
			u := s.Users[0]
			So(u.Touched, ShouldEqual, 2)
			So(u.TouchedDown, ShouldEqual, 1)
			So(u.Injected, ShouldEqual, 1)
			So(u.InjectedDown, ShouldEqual, 1)
			So(u.Inputs(), ShouldEqual, 3)
		})

		Convey("Then walked distances skip padding", func() {
			So(s.Users[0].WalkedUser, ShouldAlmostEqual, 3.5, 1e-12)
			So(s.Users[0].WalkedDevice, ShouldAlmostEqual, 2, 1e-12)
			So(s.Users[1].WalkedUser, ShouldEqual, 0)
		})

		Convey("Then wall distances are averaged and binned", func() {
			So(s.Users[0].WallDistance, ShouldAlmostEqual, 2.0/3, 1e-12)
			So(s.Users[0].WallShare[0], ShouldAlmostEqual, 100*2.0/3, 1e-9)
			So(s.Users[0].WallShare[1], ShouldAlmostEqual, 100*1.0/3, 1e-9)
			So(s.Users[1].WallShare[2], ShouldAlmostEqual, 100, 1e-9)
		})

		Convey("Then the user distance covers only ticks with both users", func() {
			// tick 1: (0,0.5)-(0,2) = 1.5
			So(s.UserDistance, ShouldAlmostEqual, 1.5, 1e-12)
		})
	})
}
