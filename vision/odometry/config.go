package odometry

import (
	"encoding/json"
	"os"
	"time"

	"github.com/pkg/errors"
	"go.viam.com/utils"
)

// Config contains the parameters of the odometry engine. Zero values take the defaults below.
type Config struct {
	Width            int     `json:"width,omitempty"`
	Height           int     `json:"height,omitempty"`
	FeatureThreshold int     `json:"feature_threshold,omitempty"`
	MaxFeatures      int     `json:"max_features,omitempty"`
	MatchDistanceSq  float64 `json:"match_distance_sq,omitempty"`
	MinMatches       int     `json:"min_matches,omitempty"`
	CycleIntervalMs  int     `json:"cycle_interval_ms,omitempty"`
	RetryDelayMs     int     `json:"retry_delay_ms,omitempty"`
	SendTimeoutMs    int     `json:"send_timeout_ms,omitempty"`
}

const (
	defaultWidth            = 80
	defaultHeight           = 60
	defaultFeatureThreshold = 50
	defaultMaxFeatures      = 50
	defaultMatchDistanceSq  = 100
	defaultMinMatches       = 5
	defaultCycleIntervalMs  = 50
	defaultRetryDelayMs     = 10
	defaultSendTimeoutMs    = 10
)

// LoadConfig loads an odometry configuration from a json file.
func LoadConfig(path string) (*Config, error) {
	//nolint:gosec
	configFile, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer utils.UncheckedErrorFunc(configFile.Close)

	var conf Config
	if err := json.NewDecoder(configFile).Decode(&conf); err != nil {
		return nil, errors.Wrapf(err, "cannot parse odometry config %q", path)
	}
	if err := conf.Validate("odometry"); err != nil {
		return nil, err
	}
	return &conf, nil
}

// Validate ensures all parts of the config are valid.
func (conf *Config) Validate(path string) error {
	for _, field := range []struct {
		name  string
		value float64
	}{
		{"width", float64(conf.Width)},
		{"height", float64(conf.Height)},
		{"feature_threshold", float64(conf.FeatureThreshold)},
		{"max_features", float64(conf.MaxFeatures)},
		{"match_distance_sq", conf.MatchDistanceSq},
		{"min_matches", float64(conf.MinMatches)},
		{"cycle_interval_ms", float64(conf.CycleIntervalMs)},
		{"retry_delay_ms", float64(conf.RetryDelayMs)},
		{"send_timeout_ms", float64(conf.SendTimeoutMs)},
	} {
		if field.value < 0 {
			return utils.NewConfigValidationError(path, errors.Errorf("%s cannot be negative", field.name))
		}
	}
	width, height := conf.resolved().Width, conf.resolved().Height
	if width < 3 || height < 3 {
		return utils.NewConfigValidationError(path, errors.Errorf("working resolution %dx%d has no interior pixels", width, height))
	}
	return nil
}

// resolved returns a copy with every zero field replaced by its default.
func (conf Config) resolved() Config {
	withDefault := func(v *int, def int) {
		if *v == 0 {
			*v = def
		}
	}
	withDefault(&conf.Width, defaultWidth)
	withDefault(&conf.Height, defaultHeight)
	withDefault(&conf.FeatureThreshold, defaultFeatureThreshold)
	withDefault(&conf.MaxFeatures, defaultMaxFeatures)
	withDefault(&conf.MinMatches, defaultMinMatches)
	withDefault(&conf.CycleIntervalMs, defaultCycleIntervalMs)
	withDefault(&conf.RetryDelayMs, defaultRetryDelayMs)
	withDefault(&conf.SendTimeoutMs, defaultSendTimeoutMs)
	if conf.MatchDistanceSq == 0 {
		conf.MatchDistanceSq = defaultMatchDistanceSq
	}
	return conf
}

func millis(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
