package navigation

import (
	"sync"

	"go.viam.com/rover/components/sensor/ultrasonic"
)

// SensorStats counts what one sensor has reported.
type SensorStats struct {
	Valid     uint64 `json:"valid"`
	Invalid   uint64 `json:"invalid"`
	Obstacles uint64 `json:"obstacles"`
}

// Stats is a snapshot of Diagnostics.
type Stats struct {
	Sensors      map[string]SensorStats `json:"sensors"`
	Deltas       uint64                 `json:"deltas"`
	Emitted      uint64                 `json:"emitted"`
	EmitFailures uint64                 `json:"emit_failures"`
}

// Diagnostics counts what the fusion loop consumed and produced so a monitor can tell a silent
// sensor from a failing one.
type Diagnostics struct {
	mu      sync.Mutex
	sensors map[ultrasonic.SensorID]*SensorStats
	deltas  uint64
	emitted uint64
	failed  uint64
}

// NewDiagnostics returns zeroed counters.
func NewDiagnostics() *Diagnostics {
	return &Diagnostics{sensors: map[ultrasonic.SensorID]*SensorStats{}}
}

func (d *Diagnostics) sensor(id ultrasonic.SensorID) *SensorStats {
	s, ok := d.sensors[id]
	if !ok {
		s = &SensorStats{}
		d.sensors[id] = s
	}
	return s
}

func (d *Diagnostics) reading(reading ultrasonic.RangeReading, obstacle bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s := d.sensor(reading.Sensor)
	if reading.Valid {
		s.Valid++
	} else {
		s.Invalid++
	}
	if obstacle {
		s.Obstacles++
	}
}

func (d *Diagnostics) delta() {
	d.mu.Lock()
	d.deltas++
	d.mu.Unlock()
}

func (d *Diagnostics) emit(err error) {
	d.mu.Lock()
	if err != nil {
		d.failed++
	} else {
		d.emitted++
	}
	d.mu.Unlock()
}

// Stats returns a snapshot of the counters, keyed by sensor name.
func (d *Diagnostics) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	stats := Stats{
		Sensors:      make(map[string]SensorStats, len(d.sensors)),
		Deltas:       d.deltas,
		Emitted:      d.emitted,
		EmitFailures: d.failed,
	}
	for id, s := range d.sensors {
		stats.Sensors[id.String()] = *s
	}
	return stats
}
