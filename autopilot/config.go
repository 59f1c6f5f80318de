package autopilot

import (
	"strings"

	"github.com/pkg/errors"
	"go.bug.st/serial"
	goutils "go.viam.com/utils"
)

// Link models.
const (
	ModelSerial = "serial"
	ModelLog    = "log"
)

const defaultBaudRate = 115200

// Config selects and configures the autopilot link. An empty model logs events instead of
// sending them.
type Config struct {
	Model    string `json:"model,omitempty"`
	Path     string `json:"path,omitempty"`
	BaudRate int    `json:"baud_rate,omitempty"`
	DataBits int    `json:"data_bits,omitempty"`
	StopBits int    `json:"stop_bits,omitempty"`
	Parity   string `json:"parity,omitempty"`
}

// Validate ensures all parts of the config are valid.
func (conf *Config) Validate(path string) error {
	switch conf.Model {
	case "", ModelLog:
		return nil
	case ModelSerial:
	default:
		return goutils.NewConfigValidationError(path, errors.Errorf("unknown autopilot model %q", conf.Model))
	}
	if conf.Path == "" {
		return goutils.NewConfigValidationFieldRequiredError(path, "path")
	}
	if conf.BaudRate < 0 {
		return goutils.NewConfigValidationError(path, errors.New("baud_rate cannot be negative"))
	}
	if _, err := conf.SerialMode(); err != nil {
		return goutils.NewConfigValidationError(path, err)
	}
	return nil
}

// SerialMode converts the config into the mode the serial port is opened with. Unset fields
// default to 115200 8N1.
func (conf *Config) SerialMode() (*serial.Mode, error) {
	mode := &serial.Mode{BaudRate: conf.BaudRate, DataBits: conf.DataBits}
	if mode.BaudRate == 0 {
		mode.BaudRate = defaultBaudRate
	}
	if mode.DataBits == 0 {
		mode.DataBits = 8
	}
	if mode.DataBits < 5 || mode.DataBits > 8 {
		return nil, errors.Errorf("invalid data bits %d: must be between 5 and 8", mode.DataBits)
	}

	switch conf.StopBits {
	case 0, 1:
		mode.StopBits = serial.OneStopBit
	case 2:
		mode.StopBits = serial.TwoStopBits
	default:
		return nil, errors.Errorf("invalid stop bits %d: supported values are 1 or 2", conf.StopBits)
	}

	switch strings.ToUpper(strings.TrimSpace(conf.Parity)) {
	case "", "N", "NONE":
		mode.Parity = serial.NoParity
	case "E", "EVEN":
		mode.Parity = serial.EvenParity
	case "O", "ODD":
		mode.Parity = serial.OddParity
	default:
		return nil, errors.Errorf("unsupported parity %q: expected N, E, or O", conf.Parity)
	}
	return mode, nil
}
