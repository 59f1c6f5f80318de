package odometry

import (
	"context"
	"image"
	"image/color"
	"math"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.viam.com/test"

	"go.viam.com/rover/components/camera"
	"go.viam.com/rover/components/camera/fake"
	"go.viam.com/rover/logging"
	"go.viam.com/rover/queue"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	engine, err := NewEngine(&Config{}, clock.New(), logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	return engine
}

func TestFirstFrameSeeds(t *testing.T) {
	engine := newTestEngine(t)
	frame := fake.Checkerboard(160, 120, 0, 0)

	_, emit, err := engine.Process(frame, 1)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, emit, test.ShouldBeFalse)

	delta, emit, err := engine.Process(frame, 51)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, emit, test.ShouldBeTrue)
	test.That(t, delta.IsZero(), test.ShouldBeTrue)
	test.That(t, delta.TimestampMs, test.ShouldEqual, uint32(51))
	test.That(t, engine.Stats().Degenerate, test.ShouldEqual, uint64(0))

	engine.Reset()
	_, emit, err = engine.Process(frame, 101)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, emit, test.ShouldBeFalse)
}

func TestFeaturelessFramesReportNoMotion(t *testing.T) {
	logger, logs := logging.NewObservedTestLogger(t)
	engine, err := NewEngine(&Config{}, clock.New(), logger)
	test.That(t, err, test.ShouldBeNil)
	blank := image.NewGray(image.Rect(0, 0, 160, 120))

	_, emit, err := engine.Process(blank, 0)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, emit, test.ShouldBeFalse)

	delta, emit, err := engine.Process(blank, 50)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, emit, test.ShouldBeTrue)
	test.That(t, delta, test.ShouldResemble, MotionDelta{TimestampMs: 50})
	test.That(t, engine.Stats().Degenerate, test.ShouldEqual, uint64(1))
	test.That(t, logs.FilterMessage("too few matches, reporting no motion").Len(), test.ShouldEqual, 1)
}

func TestProcessRejectsEmptyFrame(t *testing.T) {
	engine := newTestEngine(t)

	_, emit, err := engine.Process(nil, 0)
	test.That(t, camera.IsDecodeError(err), test.ShouldBeTrue)
	test.That(t, emit, test.ShouldBeFalse)

	// The failed frame did not seed the engine.
	_, emit, err = engine.Process(fake.Checkerboard(160, 120, 0, 0), 0)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, emit, test.ShouldBeFalse)
}

func TestCycleSkipsFailedFrames(t *testing.T) {
	logger := logging.NewTestLogger(t)
	engine, err := NewEngine(&Config{}, clock.New(), logger)
	test.That(t, err, test.ShouldBeNil)
	frame := fake.Checkerboard(160, 120, 0, 0)
	cam := fake.NewCamera(clock.New(),
		fake.Shot{Gray: frame},
		fake.Shot{Err: errors.Wrap(camera.ErrAcquisition, "no frame")},
		fake.Shot{Gray: frame},
		fake.Shot{Err: errors.Wrap(camera.ErrDecode, "corrupt jpeg")},
		fake.Shot{Gray: frame},
	)
	out, err := queue.NewBounded[MotionDelta]("odometry", 5, nil, logger)
	test.That(t, err, test.ShouldBeNil)

	ctx := context.Background()
	var processed []bool
	for i := 0; i < 5; i++ {
		processed = append(processed, engine.Cycle(ctx, cam, out))
	}
	test.That(t, processed, test.ShouldResemble, []bool{true, false, true, false, true})
	test.That(t, cam.Acquired(), test.ShouldEqual, 5)
	test.That(t, cam.Released(), test.ShouldEqual, 5)

	stats := engine.Stats()
	test.That(t, stats.Frames, test.ShouldEqual, uint64(3))
	test.That(t, stats.Failures, test.ShouldEqual, uint64(2))
	test.That(t, stats.Emitted, test.ShouldEqual, uint64(2))

	test.That(t, out.Len(), test.ShouldEqual, 2)
	for i := 0; i < 2; i++ {
		delta, ok := out.Receive(ctx, time.Millisecond)
		test.That(t, ok, test.ShouldBeTrue)
		test.That(t, delta.IsZero(), test.ShouldBeTrue)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	logger := logging.NewTestLogger(t)
	engine, err := NewEngine(&Config{CycleIntervalMs: 5}, clock.New(), logger)
	test.That(t, err, test.ShouldBeNil)
	cam := fake.NewDriftingCamera(&camera.Config{Model: camera.ModelFake, DriftXPx: 2, FailEveryNth: 3}, clock.New())
	out, err := queue.NewBounded[MotionDelta]("odometry", 5, nil, logger)
	test.That(t, err, test.ShouldBeNil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		engine.Run(ctx, cam, out)
	}()

	delta, ok := out.Receive(ctx, 5*time.Second)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, delta.DZ, test.ShouldEqual, 0.0)
	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("odometry did not stop")
	}
	test.That(t, cam.Released(), test.ShouldEqual, cam.Acquired())
}

func TestConfigValidation(t *testing.T) {
	test.That(t, (&Config{}).Validate("odometry"), test.ShouldBeNil)

	err := (&Config{MinMatches: -1}).Validate("odometry")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "min_matches cannot be negative")

	err = (&Config{Width: 2, Height: 2}).Validate("odometry")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "no interior pixels")

	resolved := (&Config{Width: 40}).resolved()
	test.That(t, resolved.Width, test.ShouldEqual, 40)
	test.That(t, resolved.Height, test.ShouldEqual, 60)
	test.That(t, resolved.MatchDistanceSq, test.ShouldEqual, 100.0)
	test.That(t, resolved.MinMatches, test.ShouldEqual, 5)
}

// dotsOnBorder lights single pixels on the top row (at xs) and the left column (at ys). Border
// pixels are never scanned, so each dot yields exactly one feature, just inside the border.
func dotsOnBorder(width, height int, xs, ys []int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, width, height))
	for _, x := range xs {
		img.SetGray(x, 0, color.Gray{Y: 255})
	}
	for _, y := range ys {
		img.SetGray(0, y, color.Gray{Y: 255})
	}
	return img
}

func shifted(values []int, by int) []int {
	out := make([]int, len(values))
	for i, v := range values {
		out[i] = v + by
	}
	return out
}

func TestTranslationIsMeasured(t *testing.T) {
	const width, height = 60, 30
	xs := []int{4, 14, 24, 34, 44}
	ys := []int{3, 8, 13, 18, 23}
	center := func(p image.Point) float64 {
		return math.Atan2(float64(p.Y)-height/2, float64(p.X)-width/2)
	}

	t.Run("horizontal through cycle", func(t *testing.T) {
		logger := logging.NewTestLogger(t)
		engine, err := NewEngine(&Config{Width: width, Height: height}, clock.New(), logger)
		test.That(t, err, test.ShouldBeNil)
		cam := fake.NewCamera(clock.New(),
			fake.Shot{Gray: dotsOnBorder(width, height, xs, nil)},
			fake.Shot{Gray: dotsOnBorder(width, height, shifted(xs, 2), nil)},
		)
		out, err := queue.NewBounded[MotionDelta]("odometry", 5, nil, logger)
		test.That(t, err, test.ShouldBeNil)

		ctx := context.Background()
		test.That(t, engine.Cycle(ctx, cam, out), test.ShouldBeTrue)
		test.That(t, engine.Cycle(ctx, cam, out), test.ShouldBeTrue)
		delta, ok := out.Receive(ctx, 0)
		test.That(t, ok, test.ShouldBeTrue)

		var yaw float64
		for _, x := range xs {
			yaw += center(image.Pt(x+2, 1)) - center(image.Pt(x, 1))
		}
		yaw /= float64(len(xs))
		test.That(t, delta.DX, test.ShouldAlmostEqual, 2.0)
		test.That(t, delta.DY, test.ShouldAlmostEqual, 0.0)
		test.That(t, delta.Yaw, test.ShouldAlmostEqual, yaw)
		test.That(t, delta.Yaw, test.ShouldNotEqual, 0.0)
		test.That(t, engine.Stats().Degenerate, test.ShouldEqual, uint64(0))
	})

	t.Run("vertical through process", func(t *testing.T) {
		engine, err := NewEngine(&Config{Width: width, Height: height}, clock.New(), logging.NewTestLogger(t))
		test.That(t, err, test.ShouldBeNil)

		_, emit, err := engine.Process(dotsOnBorder(width, height, nil, ys), 0)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, emit, test.ShouldBeFalse)
		delta, emit, err := engine.Process(dotsOnBorder(width, height, nil, shifted(ys, 2)), 50)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, emit, test.ShouldBeTrue)
		test.That(t, delta.DX, test.ShouldAlmostEqual, 0.0)
		test.That(t, delta.DY, test.ShouldAlmostEqual, 2.0)
		test.That(t, delta.TimestampMs, test.ShouldEqual, uint32(50))
	})

	t.Run("still frames", func(t *testing.T) {
		engine, err := NewEngine(&Config{Width: width, Height: height}, clock.New(), logging.NewTestLogger(t))
		test.That(t, err, test.ShouldBeNil)
		frame := dotsOnBorder(width, height, xs, ys)

		_, _, err = engine.Process(frame, 0)
		test.That(t, err, test.ShouldBeNil)
		delta, emit, err := engine.Process(frame, 50)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, emit, test.ShouldBeTrue)
		test.That(t, delta, test.ShouldResemble, MotionDelta{TimestampMs: 50})
		test.That(t, engine.Stats().Degenerate, test.ShouldEqual, uint64(0))
	})
}

func TestRepeatedFailuresLogOncePerInterval(t *testing.T) {
	logger, logs := logging.NewObservedTestLogger(t)
	engine, err := NewEngine(&Config{RetryDelayMs: 1}, clock.New(), logger)
	test.That(t, err, test.ShouldBeNil)
	// A replay that ran out of frames fails every acquisition.
	cam := fake.NewCamera(clock.New())

	for i := 0; i < 10; i++ {
		test.That(t, engine.Cycle(context.Background(), cam, nil), test.ShouldBeFalse)
	}
	test.That(t, engine.Stats().Failures, test.ShouldEqual, uint64(10))
	entries := logs.FilterMessage("frame skipped").All()
	test.That(t, len(entries), test.ShouldEqual, 1)
	test.That(t, entries[0].ContextMap()["acquisition"], test.ShouldBeTrue)
	test.That(t, cam.Released(), test.ShouldEqual, 10)
}
