package ultrasonic

import (
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
)

// SensorID names the direction a ranging sensor faces.
type SensorID int

// The rover carries exactly these seven sensors.
const (
	Forward SensorID = iota
	Backward
	Left
	Right
	Upward
	Downward
	DownwardForward
)

var sensorNames = [...]string{
	Forward:         "forward",
	Backward:        "backward",
	Left:            "left",
	Right:           "right",
	Upward:          "upward",
	Downward:        "downward",
	DownwardForward: "downward_forward",
}

// AllSensorIDs returns every direction in declaration order.
func AllSensorIDs() []SensorID {
	ids := make([]SensorID, len(sensorNames))
	for i := range sensorNames {
		ids[i] = SensorID(i)
	}
	return ids
}

// Valid reports whether id is one of the declared directions.
func (id SensorID) Valid() bool {
	return id >= Forward && int(id) < len(sensorNames)
}

func (id SensorID) String() string {
	if !id.Valid() {
		return "unknown"
	}
	return sensorNames[id]
}

// ParseSensorID converts a name like "downward_forward" to a SensorID. Dashes are accepted in
// place of underscores and case is ignored.
func ParseSensorID(name string) (SensorID, error) {
	normalized := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "-", "_")
	for i, candidate := range sensorNames {
		if candidate == normalized {
			return SensorID(i), nil
		}
	}
	return 0, errors.Errorf("unknown sensor %q", name)
}

// MarshalJSON encodes the sensor by name.
func (id SensorID) MarshalJSON() ([]byte, error) {
	if !id.Valid() {
		return nil, errors.Errorf("cannot encode unknown sensor %d", int(id))
	}
	return json.Marshal(id.String())
}

// UnmarshalJSON accepts either a sensor name or its numeric value.
func (id *SensorID) UnmarshalJSON(b []byte) error {
	var name string
	if err := json.Unmarshal(b, &name); err == nil {
		parsed, err := ParseSensorID(name)
		if err != nil {
			return err
		}
		*id = parsed
		return nil
	}

	var num int
	if err := json.Unmarshal(b, &num); err != nil {
		return errors.Errorf("sensor must be a name or number, got %s", string(b))
	}
	if !SensorID(num).Valid() {
		return errors.Errorf("unknown sensor %d", num)
	}
	*id = SensorID(num)
	return nil
}
