// Package navigation fuses range readings and motion deltas into an accumulated pose and obstacle
// events for the autopilot.
package navigation

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"

	"go.viam.com/rover/components/sensor/ultrasonic"
	"go.viam.com/rover/logging"
	"go.viam.com/rover/queue"
	"go.viam.com/rover/utils"
	"go.viam.com/rover/vision/odometry"
)

// Dependencies are the collaborators of a Fusion. Deltas may be nil when the rover runs without a
// camera.
type Dependencies struct {
	Readings  *queue.Bounded[ultrasonic.RangeReading]
	Deltas    *queue.Bounded[odometry.MotionDelta]
	Link      Link
	Threshold ThresholdProvider
	Clock     clock.Clock
}

// Outcome reports what one fusion cycle consumed and produced.
type Outcome struct {
	Reading  *ultrasonic.RangeReading
	Delta    *odometry.MotionDelta
	Obstacle *ObstacleEvent
	EmitErr  error
}

// Fusion is the sole consumer of the ranging and odometry streams.
type Fusion struct {
	readings       *queue.Bounded[ultrasonic.RangeReading]
	deltas         *queue.Bounded[odometry.MotionDelta]
	link           Link
	threshold      ThresholdProvider
	mounts         MountingTable
	clk            clock.Clock
	period         time.Duration
	receiveTimeout time.Duration
	diagnostics    *Diagnostics
	logger         logging.Logger

	stateMu sync.Mutex
	state   State
}

// NewFusion returns a fusion loop at the origin with no readings.
func NewFusion(conf *Config, deps Dependencies, logger logging.Logger) (*Fusion, error) {
	if conf == nil {
		conf = &Config{}
	}
	if err := conf.Validate("navigation"); err != nil {
		return nil, err
	}
	if deps.Readings == nil {
		return nil, errors.New("navigation needs a ranging queue")
	}
	if deps.Link == nil {
		return nil, errors.New("navigation needs an autopilot link")
	}
	if deps.Threshold == nil {
		return nil, errors.New("navigation needs an avoidance threshold")
	}
	clk := deps.Clock
	if clk == nil {
		clk = clock.New()
	}
	return &Fusion{
		readings:       deps.Readings,
		deltas:         deps.Deltas,
		link:           deps.Link,
		threshold:      deps.Threshold,
		mounts:         conf.Mountings(),
		clk:            clk,
		period:         conf.Period(),
		receiveTimeout: conf.ReceiveTimeout(),
		diagnostics:    NewDiagnostics(),
		logger:         logger,
		state:          NewState(),
	}, nil
}

// State returns a snapshot of the fused state.
func (f *Fusion) State() State {
	f.stateMu.Lock()
	defer f.stateMu.Unlock()
	return f.state.Clone()
}

// Diagnostics returns the fusion counters.
func (f *Fusion) Diagnostics() *Diagnostics {
	return f.diagnostics
}

// Cycle waits briefly for one reading and then briefly for one delta. Either may be missing. A
// reading close enough to an obstacle is sent to the link; a failed send is logged and counted.
func (f *Fusion) Cycle(ctx context.Context) Outcome {
	var outcome Outcome

	if reading, ok := f.readings.Receive(ctx, f.receiveTimeout); ok {
		outcome.Reading = &reading
		f.logger.CDebugw(ctx, "received reading",
			"sensor", reading.Sensor.String(), "distance_cm", reading.DistanceCm, "valid", reading.Valid)

		f.stateMu.Lock()
		f.state.Record(reading)
		f.stateMu.Unlock()

		event, isObstacle := ObstacleFromReading(reading, f.threshold.AvoidanceThresholdCm(), f.mounts)
		f.diagnostics.reading(reading, isObstacle)
		if !reading.Valid {
			f.logger.CDebugw(ctx, "sensor reported no echo", "sensor", reading.Sensor.String())
		}
		if isObstacle {
			outcome.Obstacle = &event
			outcome.EmitErr = f.link.Emit(ctx, event)
			f.diagnostics.emit(outcome.EmitErr)
			if outcome.EmitErr != nil {
				f.logger.CWarnw(ctx, "cannot deliver obstacle event",
					"sensor", reading.Sensor.String(), "distance_cm", reading.DistanceCm, "error", outcome.EmitErr)
			}
		}
	}

	if f.deltas != nil {
		if delta, ok := f.deltas.Receive(ctx, f.receiveTimeout); ok {
			outcome.Delta = &delta
			f.logger.CDebugw(ctx, "received motion", "dx", delta.DX, "dy", delta.DY, "yaw", delta.Yaw)

			f.stateMu.Lock()
			f.state.Integrate(delta)
			f.stateMu.Unlock()
			f.diagnostics.delta()
		}
	}
	return outcome
}

// Run cycles until ctx is done.
func (f *Fusion) Run(ctx context.Context) {
	f.logger.CInfow(ctx, "navigation started", "period", f.period.String(), "odometry", f.deltas != nil)
	defer f.logger.CInfo(ctx, "navigation stopped")
	for {
		f.Cycle(ctx)
		if !utils.SelectContextOrWaitClock(ctx, f.clk, f.period) {
			return
		}
	}
}
