// Package board defines the digital I/O contract the rover's ranging hardware is driven through.
// No register layout is assumed; implementations only need to drive output lines, sample input
// lines and tell time.
package board

import (
	"context"
)

// DigitalIO is a board able to drive and sample GPIO lines by number.
type DigitalIO interface {
	// SetOutputLevel drives the given pin high or low.
	SetOutputLevel(ctx context.Context, pin int, high bool) error

	// ReadInputLevel samples the given pin. It must not block.
	ReadInputLevel(ctx context.Context, pin int) (bool, error)

	// MonotonicNowMicros returns microseconds from an arbitrary fixed origin. It never goes
	// backwards.
	MonotonicNowMicros() uint64

	Close(ctx context.Context) error
}
