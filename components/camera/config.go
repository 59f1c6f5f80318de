package camera

import (
	"github.com/pkg/errors"
	"go.viam.com/utils"
)

const (
	// ModelImageFile replays a directory of encoded images.
	ModelImageFile = "imagefile"
	// ModelFake renders a synthetic pattern that drifts a fixed amount each frame.
	ModelFake = "fake"
)

// Config describes which frame source to build. An empty model means the rover has no camera.
type Config struct {
	Model string `json:"model,omitempty"`
	Path  string `json:"path,omitempty"`
	Loop  bool   `json:"loop,omitempty"`

	Width        int `json:"width,omitempty"`
	Height       int `json:"height,omitempty"`
	DriftXPx     int `json:"drift_x_px,omitempty"`
	DriftYPx     int `json:"drift_y_px,omitempty"`
	FailEveryNth int `json:"fail_every_nth,omitempty"`
}

// Validate ensures all parts of the config are valid.
func (conf *Config) Validate(path string) error {
	switch conf.Model {
	case "":
	case ModelImageFile:
		if conf.Path == "" {
			return utils.NewConfigValidationFieldRequiredError(path, "path")
		}
	case ModelFake:
		if conf.Width < 0 || conf.Height < 0 {
			return utils.NewConfigValidationError(path,
				errors.Errorf("got illegal negative dimensions (%d, %d)", conf.Width, conf.Height))
		}
		if conf.FailEveryNth < 0 {
			return utils.NewConfigValidationError(path, errors.New("fail_every_nth cannot be negative"))
		}
	default:
		return utils.NewConfigValidationError(path, errors.Errorf("unsupported camera model %q", conf.Model))
	}
	return nil
}
