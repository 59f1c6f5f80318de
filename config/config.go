// Package config defines the rover's configuration file.
package config

import (
	"github.com/pkg/errors"
	"go.viam.com/utils"

	"go.viam.com/rover/autopilot"
	"go.viam.com/rover/components/board"
	"go.viam.com/rover/components/camera"
	"go.viam.com/rover/components/sensor/ultrasonic"
	"go.viam.com/rover/navigation"
	"go.viam.com/rover/vision/odometry"
)

const (
	defaultRangingCapacity  = 10
	defaultOdometryCapacity = 5
)

// Config describes the whole rover.
type Config struct {
	ConfigFilePath string `json:"-"`

	AvoidanceThresholdCm float64           `json:"avoidance_threshold_cm"`
	Ranging              ultrasonic.Config `json:"ranging"`
	Odometry             odometry.Config   `json:"odometry"`
	Navigation           navigation.Config `json:"navigation"`
	Queues               QueueConfig       `json:"queues"`
	Board                board.Config      `json:"board"`
	Camera               camera.Config     `json:"camera"`
	Autopilot            autopilot.Config  `json:"autopilot"`
	LogFile              string            `json:"log_file,omitempty"`
	Debug                bool              `json:"debug,omitempty"`
}

// QueueConfig sizes the channels from the producers to navigation.
type QueueConfig struct {
	RangingCapacity  int `json:"ranging_capacity,omitempty"`
	OdometryCapacity int `json:"odometry_capacity,omitempty"`
}

// Validate ensures all parts of the config are valid.
func (conf *QueueConfig) Validate(path string) error {
	if conf.RangingCapacity < 0 {
		return utils.NewConfigValidationError(path, errors.New("ranging_capacity cannot be negative"))
	}
	if conf.OdometryCapacity < 0 {
		return utils.NewConfigValidationError(path, errors.New("odometry_capacity cannot be negative"))
	}
	return nil
}

// Ranging returns the capacity of the ranging queue.
func (conf *QueueConfig) Ranging() int {
	if conf.RangingCapacity == 0 {
		return defaultRangingCapacity
	}
	return conf.RangingCapacity
}

// Odometry returns the capacity of the odometry queue.
func (conf *QueueConfig) Odometry() int {
	if conf.OdometryCapacity == 0 {
		return defaultOdometryCapacity
	}
	return conf.OdometryCapacity
}

// Validate ensures all parts of the config are valid.
func (conf *Config) Validate() error {
	if conf.AvoidanceThresholdCm == 0 {
		return utils.NewConfigValidationFieldRequiredError("", "avoidance_threshold_cm")
	}
	if conf.AvoidanceThresholdCm < 0 {
		return utils.NewConfigValidationError("", errors.New("avoidance_threshold_cm must be positive"))
	}
	for _, section := range []struct {
		path      string
		validator interface{ Validate(string) error }
	}{
		{"ranging", &conf.Ranging},
		{"odometry", &conf.Odometry},
		{"navigation", &conf.Navigation},
		{"queues", &conf.Queues},
		{"board", &conf.Board},
		{"camera", &conf.Camera},
		{"autopilot", &conf.Autopilot},
	} {
		if err := section.validator.Validate(section.path); err != nil {
			return err
		}
	}
	return nil
}
