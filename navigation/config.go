package navigation

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
	goutils "go.viam.com/utils"

	"go.viam.com/rover/components/sensor/ultrasonic"
)

const (
	defaultPeriodMs         = 10
	defaultReceiveTimeoutMs = 10
)

// A Mounting describes where a sensor points, in degrees. AngleX is the heading in the horizontal
// plane, clockwise from forward. AngleY is the elevation above the horizontal plane.
type Mounting struct {
	Sensor ultrasonic.SensorID `json:"sensor"`
	AngleX float64             `json:"angle_x"`
	AngleY float64             `json:"angle_y"`
}

// MountingTable maps each sensor to its mounting.
type MountingTable map[ultrasonic.SensorID]Mounting

// DefaultMountings returns the mounting of every sensor on the reference chassis.
func DefaultMountings() []Mounting {
	return []Mounting{
		{Sensor: ultrasonic.Forward, AngleX: 0, AngleY: 0},
		{Sensor: ultrasonic.Backward, AngleX: 180, AngleY: 0},
		{Sensor: ultrasonic.Left, AngleX: -90, AngleY: 0},
		{Sensor: ultrasonic.Right, AngleX: 90, AngleY: 0},
		{Sensor: ultrasonic.Upward, AngleX: 0, AngleY: 90},
		{Sensor: ultrasonic.Downward, AngleX: 0, AngleY: -90},
		{Sensor: ultrasonic.DownwardForward, AngleX: 0, AngleY: -45},
	}
}

// Config describes the fusion loop.
type Config struct {
	PeriodMs         int        `json:"period_ms,omitempty"`
	ReceiveTimeoutMs int        `json:"receive_timeout_ms,omitempty"`
	Mounting         []Mounting `json:"mounting,omitempty"`
}

// Validate ensures all parts of the config are valid.
func (conf *Config) Validate(path string) error {
	if conf.PeriodMs < 0 {
		return goutils.NewConfigValidationError(path, errors.New("period_ms cannot be negative"))
	}
	if conf.ReceiveTimeoutMs < 0 {
		return goutils.NewConfigValidationError(path, errors.New("receive_timeout_ms cannot be negative"))
	}
	seen := map[ultrasonic.SensorID]bool{}
	for i, m := range conf.Mounting {
		mountPath := fmt.Sprintf("%s.mounting.%d", path, i)
		if !m.Sensor.Valid() {
			return goutils.NewConfigValidationError(mountPath, errors.Errorf("unknown sensor %d", int(m.Sensor)))
		}
		if seen[m.Sensor] {
			return goutils.NewConfigValidationError(mountPath, errors.Errorf("sensor %q mounted twice", m.Sensor))
		}
		seen[m.Sensor] = true
	}
	return nil
}

// Mountings returns the default table overridden by any configured mountings.
func (conf *Config) Mountings() MountingTable {
	table := MountingTable{}
	for _, m := range DefaultMountings() {
		table[m.Sensor] = m
	}
	for _, m := range conf.Mounting {
		table[m.Sensor] = m
	}
	return table
}

// Period returns the time between fusion cycles.
func (conf *Config) Period() time.Duration {
	if conf.PeriodMs == 0 {
		return defaultPeriodMs * time.Millisecond
	}
	return time.Duration(conf.PeriodMs) * time.Millisecond
}

// ReceiveTimeout returns how long a cycle waits on each stream.
func (conf *Config) ReceiveTimeout() time.Duration {
	if conf.ReceiveTimeoutMs == 0 {
		return defaultReceiveTimeoutMs * time.Millisecond
	}
	return time.Duration(conf.ReceiveTimeoutMs) * time.Millisecond
}
