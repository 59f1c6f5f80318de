package board

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"go.viam.com/utils"
)

const (
	// ModelPeriph drives real GPIO lines through periph.io.
	ModelPeriph = "periph"
	// ModelFake simulates echoes for every configured sensor.
	ModelFake = "fake"

	// DefaultPinNameFormat maps a pin number to its periph.io registry name.
	DefaultPinNameFormat = "GPIO%d"
)

// Config describes which board implementation to build.
type Config struct {
	Model         string `json:"model"`
	PinNameFormat string `json:"pin_name_format,omitempty"`

	// EchoDelayMicros and EchoDurationsMicros only apply to the fake model. Durations are keyed
	// by echo pin; pins absent from the map never echo.
	EchoDelayMicros     uint64         `json:"echo_delay_us,omitempty"`
	EchoDurationsMicros map[int]uint64 `json:"echo_durations_us,omitempty"`
}

// Validate ensures all parts of the config are valid.
func (conf *Config) Validate(path string) error {
	switch conf.Model {
	case "":
		return utils.NewConfigValidationFieldRequiredError(path, "model")
	case ModelPeriph, ModelFake:
	default:
		return utils.NewConfigValidationError(path, errors.Errorf("unsupported board model %q", conf.Model))
	}
	if conf.PinNameFormat != "" && !strings.Contains(conf.PinNameFormat, "%d") {
		return utils.NewConfigValidationError(path, errors.Errorf("pin_name_format %q has no verb for the pin number", conf.PinNameFormat))
	}
	return nil
}

// PinName returns the registry name of the given pin number.
func (conf *Config) PinName(pin int) string {
	format := conf.PinNameFormat
	if format == "" {
		format = DefaultPinNameFormat
	}
	return fmt.Sprintf(format, pin)
}
