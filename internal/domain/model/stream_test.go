package model_test

import (
	"testing"

	model "github.com/okian/wallsync/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

func TestStreamHelpers(t *testing.T) {
	convey.Convey("Given body samples from two skeletons", t, func() {
		samples := []model.Body{
			{Time: 2, Tracking: "a"},
			{Time: 1, Tracking: "b"},
			{Time: 1, Tracking: "a"},
			{Time: 2, Tracking: "a"},
			{Time: 3, Tracking: "b"},
		}

		convey.Convey("When sorting by time", func() {
			model.SortByTime(samples)

			convey.Convey("Then equal timestamps keep their log order", func() {
				convey.So(model.IsSorted(samples), convey.ShouldBeTrue)
				convey.So(samples[0].Tracking, convey.ShouldEqual, model.TrackingID("b"))
				convey.So(samples[1].Tracking, convey.ShouldEqual, model.TrackingID("a"))
			})
		})

		convey.Convey("When splitting by tracking id", func() {
			model.SortByTime(samples)
			order, groups := model.SplitBy(samples, func(b model.Body) model.TrackingID { return b.Tracking })

			convey.Convey("Then keys come in order of first appearance", func() {
				convey.So(order, convey.ShouldResemble, []model.TrackingID{"b", "a"})
			})

			convey.Convey("And duplicate timestamps collapse per entity", func() {
				convey.So(len(groups["a"]), convey.ShouldEqual, 2)
				convey.So(len(groups["b"]), convey.ShouldEqual, 2)
			})
		})
	})

	convey.Convey("Given touch type spellings", t, func() {
		for raw, want := range map[string]model.TouchType{
			"TOUCH_DOWN":    model.TouchDown,
			"CURSOR MOTION": model.TouchMotion,
			" up ":          model.TouchUp,
		} {
			got, err := model.ParseTouchType(raw)
			convey.So(err, convey.ShouldBeNil)
			convey.So(got, convey.ShouldEqual, want)
		}

		_, err := model.ParseTouchType("CURSOR HOVER")
		convey.So(err, convey.ShouldNotBeNil)
	})
}

func TestCollapseKeepsLater(t *testing.T) {
	convey.Convey("Given two rows with the same timestamp", t, func() {
		rows := []model.Touch{
			{Time: 1, Position: model.Pixel{X: 1}},
			{Time: 1, Position: model.Pixel{X: 2}},
		}
		out := model.Collapse(rows)

		convey.So(len(out), convey.ShouldEqual, 1)
		convey.So(out[0].Position.X, convey.ShouldEqual, 2)
	})
}
