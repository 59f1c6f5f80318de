// Package ultrasonic implements the rover's ranging array: a fixed set of trigger/echo ultrasonic
// sensors measured one after another, producing one reading per sensor per sweep.
package ultrasonic

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"

	"go.viam.com/rover/components/board"
	"go.viam.com/rover/logging"
	"go.viam.com/rover/queue"
	"go.viam.com/rover/utils"
)

const (
	// InvalidDistance is the distance carried by every reading whose measurement failed.
	InvalidDistance = -1.0

	// SpeedOfSoundCmPerMicro is the speed of sound in air.
	SpeedOfSoundCmPerMicro = 0.0343

	// The trigger line rests low before the pulse.
	quiescence = 2 * time.Millisecond
	// Wider than most sensors need. Needs checking against the hardware before changing.
	triggerPulse = 10 * time.Millisecond

	riseTimeoutMicros = 10000
	fallTimeoutMicros = 20000
)

// ErrEchoTimeout is returned when the echo line does not rise or fall in time.
var ErrEchoTimeout = errors.New("echo timed out")

// A RangeReading is one sensor's result for one sweep. When Valid is false DistanceCm is
// InvalidDistance and must not be treated as a measurement.
type RangeReading struct {
	Sensor      SensorID `json:"sensor"`
	DistanceCm  float64  `json:"distance_cm"`
	TimestampMs uint32   `json:"timestamp_ms"`
	Valid       bool     `json:"valid"`
}

// DistanceFromEcho converts a round trip echo duration to a one-way distance.
func DistanceFromEcho(durationMicros uint64) float64 {
	return float64(durationMicros) * SpeedOfSoundCmPerMicro / 2
}

// An Array measures its sensors in configuration order.
type Array struct {
	sensors       []SensorConfig
	io            board.DigitalIO
	clk           clock.Clock
	origin        time.Time
	cycleInterval time.Duration
	sendTimeout   time.Duration
	logger        logging.Logger
}

// NewArray returns an array over the configured sensors, or the reference table if none are
// configured. The clock paces the trigger pulse and the sweeps; echo timing uses the board's own
// microsecond clock.
func NewArray(conf *Config, io board.DigitalIO, clk clock.Clock, logger logging.Logger) (*Array, error) {
	if io == nil {
		return nil, errors.New("ultrasonic array needs a board")
	}
	if err := conf.Validate("ranging"); err != nil {
		return nil, err
	}
	if clk == nil {
		clk = clock.New()
	}
	sensors := append([]SensorConfig(nil), conf.SensorsOrDefault()...)
	return &Array{
		sensors:       sensors,
		io:            io,
		clk:           clk,
		origin:        clk.Now(),
		cycleInterval: conf.CycleInterval(),
		sendTimeout:   conf.SendTimeout(),
		logger:        logger,
	}, nil
}

// Sensors returns the sensors in sweep order.
func (a *Array) Sensors() []SensorConfig {
	return append([]SensorConfig(nil), a.sensors...)
}

// Measure runs one trigger/echo cycle and returns the distance in centimeters. Errors wrap
// ErrEchoTimeout when the echo did not arrive in time.
func (a *Array) Measure(ctx context.Context, sensor SensorConfig) (float64, error) {
	if err := a.io.SetOutputLevel(ctx, sensor.TriggerPin, false); err != nil {
		return InvalidDistance, errors.Wrap(err, "cannot set trigger pin low")
	}
	if !utils.SelectContextOrWaitClock(ctx, a.clk, quiescence) {
		return InvalidDistance, ctx.Err()
	}
	if err := a.io.SetOutputLevel(ctx, sensor.TriggerPin, true); err != nil {
		return InvalidDistance, errors.Wrap(err, "cannot set trigger pin high")
	}
	if !utils.SelectContextOrWaitClock(ctx, a.clk, triggerPulse) {
		// Never leave the trigger high.
		//nolint:errcheck
		a.io.SetOutputLevel(context.Background(), sensor.TriggerPin, false)
		return InvalidDistance, ctx.Err()
	}
	if err := a.io.SetOutputLevel(ctx, sensor.TriggerPin, false); err != nil {
		return InvalidDistance, errors.Wrap(err, "cannot set trigger pin low")
	}

	start := a.io.MonotonicNowMicros()
	for {
		high, err := a.io.ReadInputLevel(ctx, sensor.EchoPin)
		if err != nil {
			return InvalidDistance, errors.Wrap(err, "cannot read echo pin")
		}
		if high {
			break
		}
		if a.io.MonotonicNowMicros()-start > riseTimeoutMicros {
			return InvalidDistance, errors.Wrapf(ErrEchoTimeout, "echo did not rise within %dus", riseTimeoutMicros)
		}
	}

	rise := a.io.MonotonicNowMicros()
	for {
		high, err := a.io.ReadInputLevel(ctx, sensor.EchoPin)
		if err != nil {
			return InvalidDistance, errors.Wrap(err, "cannot read echo pin")
		}
		if !high {
			break
		}
		if a.io.MonotonicNowMicros()-start > fallTimeoutMicros {
			return InvalidDistance, errors.Wrapf(ErrEchoTimeout, "echo did not fall within %dus", fallTimeoutMicros)
		}
	}
	fall := a.io.MonotonicNowMicros()

	return DistanceFromEcho(fall - rise), nil
}

// Read measures one sensor and packages the outcome as a reading. Failures are logged and become
// invalid readings.
func (a *Array) Read(ctx context.Context, sensor SensorConfig) RangeReading {
	distance, err := a.Measure(ctx, sensor)
	reading := RangeReading{
		Sensor:      sensor.Sensor,
		DistanceCm:  distance,
		TimestampMs: utils.MillisSince(a.clk, a.origin),
		Valid:       err == nil,
	}
	if err != nil {
		reading.DistanceCm = InvalidDistance
		if ctx.Err() == nil {
			a.logger.CWarnw(ctx, "ranging failed", "sensor", sensor.Sensor.String(), "error", err)
		}
	}
	return reading
}

// Sweep reads every sensor once, in order, and offers each reading to out. Valid readings may wait
// for the send timeout; invalid ones are offered without waiting. Sweep stops early if ctx is
// done, and returns the readings it took.
func (a *Array) Sweep(ctx context.Context, out *queue.Bounded[RangeReading]) []RangeReading {
	readings := make([]RangeReading, 0, len(a.sensors))
	for _, sensor := range a.sensors {
		if ctx.Err() != nil {
			break
		}
		reading := a.Read(ctx, sensor)
		if ctx.Err() != nil {
			break
		}
		readings = append(readings, reading)
		if out == nil {
			continue
		}
		if reading.Valid {
			out.Send(ctx, reading, a.sendTimeout)
		} else {
			out.TrySend(reading)
		}
	}
	return readings
}

// Run sweeps until ctx is done, pausing the cycle interval between sweeps.
func (a *Array) Run(ctx context.Context, out *queue.Bounded[RangeReading]) {
	a.logger.CInfow(ctx, "ranging started", "sensors", len(a.sensors), "cycle_interval", a.cycleInterval.String())
	defer a.logger.CInfo(ctx, "ranging stopped")
	for {
		readings := a.Sweep(ctx, out)
		for _, r := range readings {
			a.logger.CDebugw(ctx, "range reading", "sensor", r.Sensor.String(), "distance_cm", r.DistanceCm, "valid", r.Valid)
		}
		if !utils.SelectContextOrWaitClock(ctx, a.clk, a.cycleInterval) {
			return
		}
	}
}
