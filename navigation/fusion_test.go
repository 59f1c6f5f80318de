package navigation

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"go.viam.com/test"

	"go.viam.com/rover/components/sensor/ultrasonic"
	"go.viam.com/rover/logging"
	"go.viam.com/rover/queue"
	"go.viam.com/rover/vision/odometry"
)

type recordingLink struct {
	mu     sync.Mutex
	events []ObstacleEvent
	err    error
}

func (l *recordingLink) Emit(ctx context.Context, event ObstacleEvent) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return l.err
	}
	l.events = append(l.events, event)
	return nil
}

func (l *recordingLink) Events() []ObstacleEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]ObstacleEvent(nil), l.events...)
}

type fusionHarness struct {
	fusion   *Fusion
	readings *queue.Bounded[ultrasonic.RangeReading]
	deltas   *queue.Bounded[odometry.MotionDelta]
	link     *recordingLink
}

func newHarness(t *testing.T, logger logging.Logger, withOdometry bool) *fusionHarness {
	t.Helper()
	readings, err := queue.NewBounded[ultrasonic.RangeReading]("ranging", 10, nil, logger)
	test.That(t, err, test.ShouldBeNil)
	h := &fusionHarness{readings: readings, link: &recordingLink{}}
	deps := Dependencies{Readings: readings, Link: h.link, Threshold: StaticThreshold(30)}
	if withOdometry {
		h.deltas, err = queue.NewBounded[odometry.MotionDelta]("odometry", 5, nil, logger)
		test.That(t, err, test.ShouldBeNil)
		deps.Deltas = h.deltas
	}
	h.fusion, err = NewFusion(&Config{ReceiveTimeoutMs: 1, PeriodMs: 1}, deps, logger)
	test.That(t, err, test.ShouldBeNil)
	return h
}

func TestCloseReadingEmitsObstacle(t *testing.T) {
	h := newHarness(t, logging.NewTestLogger(t), true)
	h.readings.TrySend(ultrasonic.RangeReading{Sensor: ultrasonic.Right, DistanceCm: 12.5, TimestampMs: 40, Valid: true})

	outcome := h.fusion.Cycle(context.Background())
	test.That(t, outcome.Reading, test.ShouldNotBeNil)
	test.That(t, outcome.Delta, test.ShouldBeNil)
	test.That(t, outcome.Obstacle, test.ShouldNotBeNil)
	test.That(t, outcome.EmitErr, test.ShouldBeNil)

	test.That(t, h.link.Events(), test.ShouldResemble, []ObstacleEvent{
		{DistanceCm: 12.5, AngleX: 90, AngleY: 0, SensorType: ultrasonic.Right, TimestampMs: 40},
	})
	state := h.fusion.State()
	test.That(t, state.LastReadings[ultrasonic.Right].DistanceCm, test.ShouldEqual, 12.5)
}

func TestFarAndInvalidReadingsDoNotEmit(t *testing.T) {
	h := newHarness(t, logging.NewTestLogger(t), false)
	h.readings.TrySend(ultrasonic.RangeReading{Sensor: ultrasonic.Forward, DistanceCm: 30, Valid: true})
	h.readings.TrySend(ultrasonic.RangeReading{Sensor: ultrasonic.Downward, DistanceCm: ultrasonic.InvalidDistance})

	ctx := context.Background()
	test.That(t, h.fusion.Cycle(ctx).Obstacle, test.ShouldBeNil)
	test.That(t, h.fusion.Cycle(ctx).Obstacle, test.ShouldBeNil)
	test.That(t, h.link.Events(), test.ShouldBeEmpty)

	stats := h.fusion.Diagnostics().Stats()
	test.That(t, stats.Sensors["forward"], test.ShouldResemble, SensorStats{Valid: 1})
	test.That(t, stats.Sensors["downward"], test.ShouldResemble, SensorStats{Invalid: 1})

	// Invalid readings are still remembered.
	test.That(t, h.fusion.State().LastReadings[ultrasonic.Downward].Valid, test.ShouldBeFalse)
}

func TestEmitFailureIsNotFatal(t *testing.T) {
	logger, logs := logging.NewObservedTestLogger(t)
	h := newHarness(t, logger, false)
	h.link.err = errors.New("serial port unplugged")
	h.readings.TrySend(ultrasonic.RangeReading{Sensor: ultrasonic.Left, DistanceCm: 5, Valid: true})
	h.readings.TrySend(ultrasonic.RangeReading{Sensor: ultrasonic.Left, DistanceCm: 4, Valid: true})

	ctx := context.Background()
	test.That(t, h.fusion.Cycle(ctx).EmitErr, test.ShouldNotBeNil)
	test.That(t, h.fusion.Cycle(ctx).EmitErr, test.ShouldNotBeNil)

	stats := h.fusion.Diagnostics().Stats()
	test.That(t, stats.EmitFailures, test.ShouldEqual, uint64(2))
	test.That(t, stats.Sensors["left"].Obstacles, test.ShouldEqual, uint64(2))
	test.That(t, logs.FilterMessage("cannot deliver obstacle event").Len(), test.ShouldEqual, 2)
}

func TestMotionIsIntegrated(t *testing.T) {
	h := newHarness(t, logging.NewTestLogger(t), true)
	h.deltas.TrySend(odometry.MotionDelta{DX: 1.5, DY: -0.5, Yaw: 0.25, TimestampMs: 50})
	h.deltas.TrySend(odometry.MotionDelta{DX: 0.5, DY: -0.5, Yaw: -0.75, TimestampMs: 100})
	h.deltas.TrySend(odometry.MotionDelta{TimestampMs: 150})

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		outcome := h.fusion.Cycle(ctx)
		test.That(t, outcome.Reading, test.ShouldBeNil)
		test.That(t, outcome.Delta, test.ShouldNotBeNil)
	}

	pose := h.fusion.State().Pose
	test.That(t, pose, test.ShouldResemble, odometry.MotionDelta{DX: 2, DY: -1, Yaw: -0.5, TimestampMs: 150})
	test.That(t, h.fusion.Diagnostics().Stats().Deltas, test.ShouldEqual, uint64(3))
}

func TestEmptyCycle(t *testing.T) {
	h := newHarness(t, logging.NewTestLogger(t), true)
	outcome := h.fusion.Cycle(context.Background())
	test.That(t, outcome, test.ShouldResemble, Outcome{})
	test.That(t, h.fusion.State().Pose, test.ShouldResemble, odometry.MotionDelta{})
}

func TestRunConsumesUntilCancel(t *testing.T) {
	h := newHarness(t, logging.NewTestLogger(t), true)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		h.fusion.Run(ctx)
	}()

	h.readings.TrySend(ultrasonic.RangeReading{Sensor: ultrasonic.Upward, DistanceCm: 2, Valid: true})
	deadline := time.Now().Add(5 * time.Second)
	for len(h.link.Events()) == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	test.That(t, h.link.Events(), test.ShouldHaveLength, 1)
	test.That(t, h.link.Events()[0].AngleY, test.ShouldEqual, 90.0)

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("navigation did not stop")
	}
}

func TestNewFusionRequiresCollaborators(t *testing.T) {
	logger := logging.NewTestLogger(t)
	readings, err := queue.NewBounded[ultrasonic.RangeReading]("ranging", 10, nil, logger)
	test.That(t, err, test.ShouldBeNil)

	_, err = NewFusion(nil, Dependencies{Link: &recordingLink{}, Threshold: StaticThreshold(1)}, logger)
	test.That(t, err, test.ShouldNotBeNil)
	_, err = NewFusion(nil, Dependencies{Readings: readings, Threshold: StaticThreshold(1)}, logger)
	test.That(t, err, test.ShouldNotBeNil)
	_, err = NewFusion(nil, Dependencies{Readings: readings, Link: &recordingLink{}}, logger)
	test.That(t, err, test.ShouldNotBeNil)
	_, err = NewFusion(nil, Dependencies{Readings: readings, Link: &recordingLink{}, Threshold: StaticThreshold(1)}, logger)
	test.That(t, err, test.ShouldBeNil)
}
