package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsOptions(t *testing.T) {
	Convey("Given a manager built with custom options", t, func() {
		registry := prometheus.NewRegistry()
		m := NewManager(
			WithNamespace("test"),
			WithSubsystem("unit"),
			WithHistogramBuckets([]float64{1, 10}),
			WithConstLabels(map[string]string{"study": "pilot"}),
			WithPrometheusRegistry(registry),
		)

		Convey("Then the options are applied", func() {
			So(m.namespace, ShouldEqual, "test")
			So(m.subsystem, ShouldEqual, "unit")
			So(m.histogramBuckets, ShouldResemble, []float64{1, 10})
		})

		Convey("Then metrics are registered on the given registry", func() {
			m.fallbackUsers.Add(2)
			families, err := registry.Gather()
			So(err, ShouldBeNil)
			var found bool
			for _, f := range families {
				if f.GetName() == "test_unit_fallback_users_total" {
					found = true
					So(f.GetMetric()[0].GetLabel()[0].GetValue(), ShouldEqual, "pilot")
				}
			}
			So(found, ShouldBeTrue)
		})

		Convey("Then empty options keep the defaults", func() {
			d := NewManager(WithNamespace(""), WithHistogramBuckets(nil), WithPrometheusRegistry(prometheus.NewRegistry()))
			So(d.namespace, ShouldEqual, "wallsync")
			So(len(d.histogramBuckets), ShouldBeGreaterThan, 0)
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given the global manager", t, func() {
		Convey("When recording pipeline metrics", func() {
			before := testutil.ToFloat64(globalManager.touchesResolved.WithLabelValues("motion"))
			RecordTouchesResolved("motion", 3)
			RecordSamplesParsed("body", 10)
			RecordStageLatency("resolve", 12.5)
			RecordSessionProcessed("ok")
			RecordSessionDuration(120)
			RecordSessionProcessing(0.8)
			RecordFallbackUsers(1)
			RecordMatcherRegressions(0)
			RecordTrajectoryPoints("head", 5, 2)

			Convey("Then counters advance", func() {
				after := testutil.ToFloat64(globalManager.touchesResolved.WithLabelValues("motion"))
				So(after-before, ShouldEqual, 3)
			})

			Convey("Then session length and processing time are separate series", func() {
				counts := make(map[string]uint64)
				families, err := GetRegistry().Gather()
				So(err, ShouldBeNil)
				for _, f := range families {
					for _, m := range f.GetMetric() {
						if h := m.GetHistogram(); h != nil {
							counts[f.GetName()] = h.GetSampleCount()
						}
					}
				}
				So(counts["wallsync_fusion_session_duration_seconds"], ShouldBeGreaterThan, 0)
				So(counts["wallsync_fusion_session_processing_seconds"], ShouldBeGreaterThan, 0)
			})
		})

		Convey("When recording queue and worker metrics", func() {
			So(func() {
				UpdateQueueSize(1)
				UpdateQueueCapacity(4)
				UpdateQueueUtilization(0.25)
				RecordQueueEnqueue()
				RecordQueueDequeue()
				RecordQueueEnqueueError()
				UpdateWorkerActiveCount(1)
				UpdateWorkerIdleCount(3)
				RecordWorkerProcessingLatency(40)
				RecordWorkerError()
				RecordOutputError("touch")
				RecordRepositoryRows("head", 100)
				RecordRepositoryLatency(3)
				RecordErrorByComponent("fusion", "io")
			}, ShouldNotPanic)

			Convey("Then gauges hold the last value", func() {
				So(testutil.ToFloat64(globalManager.queueCapacity), ShouldEqual, 4)
			})
		})
	})
}

func TestWriteTextfile(t *testing.T) {
	Convey("Given a textfile path", t, func() {
		dir := t.TempDir()
		path := filepath.Join(dir, "wallsync.prom")
		RecordSessionProcessed("ok")

		Convey("When writing the registry", func() {
			err := WriteTextfile(path)

			Convey("Then the file holds the exposition text", func() {
				So(err, ShouldBeNil)
				b, err := os.ReadFile(path)
				So(err, ShouldBeNil)
				So(strings.Contains(string(b), "wallsync_fusion_sessions_processed_total"), ShouldBeTrue)
			})
		})

		Convey("When the directory does not exist", func() {
			err := WriteTextfile(filepath.Join(dir, "missing", "x.prom"))

			Convey("Then the write fails", func() {
				So(err, ShouldNotBeNil)
			})
		})

		Convey("Then GetRegistry returns the same registry", func() {
			So(GetRegistry(), ShouldEqual, customRegistry)
		})
	})
}
