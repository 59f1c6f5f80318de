package navigation

import (
	"context"

	"go.viam.com/rover/components/sensor/ultrasonic"
)

// An ObstacleEvent is a reading close enough to act on, located by its sensor's mounting.
type ObstacleEvent struct {
	DistanceCm  float64             `json:"distance"`
	AngleX      float64             `json:"angle_x"`
	AngleY      float64             `json:"angle_y"`
	SensorType  ultrasonic.SensorID `json:"sensor_type"`
	TimestampMs uint32              `json:"timestamp_ms"`
}

// A Link delivers obstacle events to the autopilot. A failed Emit is not fatal to the caller.
type Link interface {
	Emit(ctx context.Context, event ObstacleEvent) error
}

// A ThresholdProvider supplies the current avoidance threshold in centimeters. It may change while
// the fusion loop runs.
type ThresholdProvider interface {
	AvoidanceThresholdCm() float64
}

// StaticThreshold is a ThresholdProvider that never changes.
type StaticThreshold float64

// AvoidanceThresholdCm returns the threshold.
func (t StaticThreshold) AvoidanceThresholdCm() float64 {
	return float64(t)
}

// ObstacleFromReading returns the event for a valid reading strictly closer than thresholdCm.
// Invalid readings never produce an event. A sensor missing from mounts is assumed to face
// forward.
func ObstacleFromReading(reading ultrasonic.RangeReading, thresholdCm float64, mounts MountingTable) (ObstacleEvent, bool) {
	if !reading.Valid || reading.DistanceCm < 0 || reading.DistanceCm >= thresholdCm {
		return ObstacleEvent{}, false
	}
	mount := mounts[reading.Sensor]
	return ObstacleEvent{
		DistanceCm:  reading.DistanceCm,
		AngleX:      mount.AngleX,
		AngleY:      mount.AngleY,
		SensorType:  reading.Sensor,
		TimestampMs: reading.TimestampMs,
	}, true
}
