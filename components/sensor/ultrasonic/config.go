package ultrasonic

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
	"go.viam.com/utils"
)

// SensorConfig binds one sensor direction to its trigger and echo pins.
type SensorConfig struct {
	Sensor     SensorID `json:"sensor"`
	TriggerPin int      `json:"trigger_pin"`
	EchoPin    int      `json:"echo_pin"`
}

// Config is the ranging section of the rover configuration.
type Config struct {
	Sensors         []SensorConfig `json:"sensors,omitempty"`
	CycleIntervalMs int            `json:"cycle_interval_ms,omitempty"`
	SendTimeoutMs   int            `json:"send_timeout_ms,omitempty"`
}

const (
	defaultCycleInterval = 50 * time.Millisecond
	defaultSendTimeout   = 10 * time.Millisecond
)

// DefaultSensors returns the pin table of the reference vehicle.
func DefaultSensors() []SensorConfig {
	return []SensorConfig{
		{Sensor: Forward, TriggerPin: 16, EchoPin: 17},
		{Sensor: Backward, TriggerPin: 18, EchoPin: 19},
		{Sensor: Left, TriggerPin: 26, EchoPin: 27},
		{Sensor: Right, TriggerPin: 14, EchoPin: 12},
		{Sensor: Upward, TriggerPin: 25, EchoPin: 33},
		{Sensor: Downward, TriggerPin: 32, EchoPin: 35},
		{Sensor: DownwardForward, TriggerPin: 4, EchoPin: 5},
	}
}

// Validate ensures all parts of the config are valid. No two sensors may share a direction or a
// pin.
func (conf *Config) Validate(path string) error {
	if conf.CycleIntervalMs < 0 {
		return utils.NewConfigValidationError(path, errors.New("cycle_interval_ms cannot be negative"))
	}
	if conf.SendTimeoutMs < 0 {
		return utils.NewConfigValidationError(path, errors.New("send_timeout_ms cannot be negative"))
	}

	seenSensors := map[SensorID]bool{}
	seenPins := map[int]bool{}
	for idx, sensor := range conf.Sensors {
		sensorPath := fmt.Sprintf("%s.sensors.%d", path, idx)
		if !sensor.Sensor.Valid() {
			return utils.NewConfigValidationError(sensorPath, errors.Errorf("unknown sensor %d", int(sensor.Sensor)))
		}
		if seenSensors[sensor.Sensor] {
			return utils.NewConfigValidationError(sensorPath, errors.Errorf("sensor %q configured twice", sensor.Sensor))
		}
		seenSensors[sensor.Sensor] = true
		if sensor.TriggerPin < 0 || sensor.EchoPin < 0 {
			return utils.NewConfigValidationError(sensorPath, errors.New("pins cannot be negative"))
		}
		for _, pin := range []int{sensor.TriggerPin, sensor.EchoPin} {
			if seenPins[pin] {
				return utils.NewConfigValidationError(sensorPath, errors.Errorf("pin %d used more than once", pin))
			}
			seenPins[pin] = true
		}
	}
	return nil
}

// SensorsOrDefault returns the configured sensors, or the reference table if none are set.
func (conf *Config) SensorsOrDefault() []SensorConfig {
	if len(conf.Sensors) == 0 {
		return DefaultSensors()
	}
	return conf.Sensors
}

// TriggerToEcho maps every trigger pin to its echo pin.
func (conf *Config) TriggerToEcho() map[int]int {
	pairs := map[int]int{}
	for _, sensor := range conf.SensorsOrDefault() {
		pairs[sensor.TriggerPin] = sensor.EchoPin
	}
	return pairs
}

// CycleInterval is the pause between sweeps.
func (conf *Config) CycleInterval() time.Duration {
	if conf.CycleIntervalMs == 0 {
		return defaultCycleInterval
	}
	return time.Duration(conf.CycleIntervalMs) * time.Millisecond
}

// SendTimeout bounds how long a valid reading may wait for room in the output queue.
func (conf *Config) SendTimeout() time.Duration {
	if conf.SendTimeoutMs == 0 {
		return defaultSendTimeout
	}
	return time.Duration(conf.SendTimeoutMs) * time.Millisecond
}
