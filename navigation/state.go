package navigation

import (
	"go.viam.com/rover/components/sensor/ultrasonic"
	"go.viam.com/rover/vision/odometry"
)

// State is the fused estimate: the latest reading of every sensor heard from, and the pose
// accumulated from every motion delta so far. The pose is plain dead reckoning and drifts.
type State struct {
	LastReadings map[ultrasonic.SensorID]ultrasonic.RangeReading `json:"last_readings"`
	Pose         odometry.MotionDelta                            `json:"pose"`
}

// NewState returns an empty state at the origin.
func NewState() State {
	return State{LastReadings: map[ultrasonic.SensorID]ultrasonic.RangeReading{}}
}

// Integrate adds delta to the pose. The pose takes the timestamp of the latest delta.
func (s *State) Integrate(delta odometry.MotionDelta) {
	s.Pose.DX += delta.DX
	s.Pose.DY += delta.DY
	s.Pose.DZ += delta.DZ
	s.Pose.Roll += delta.Roll
	s.Pose.Pitch += delta.Pitch
	s.Pose.Yaw += delta.Yaw
	s.Pose.TimestampMs = delta.TimestampMs
}

// Record stores reading as its sensor's latest, valid or not.
func (s *State) Record(reading ultrasonic.RangeReading) {
	if s.LastReadings == nil {
		s.LastReadings = map[ultrasonic.SensorID]ultrasonic.RangeReading{}
	}
	s.LastReadings[reading.Sensor] = reading
}

// Clone returns a copy that shares no memory with s.
func (s State) Clone() State {
	c := State{LastReadings: make(map[ultrasonic.SensorID]ultrasonic.RangeReading, len(s.LastReadings)), Pose: s.Pose}
	for k, v := range s.LastReadings {
		c.LastReadings[k] = v
	}
	return c
}
