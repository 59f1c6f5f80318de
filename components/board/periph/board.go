// Package periph implements the digital I/O contract on Linux GPIO lines through periph.io.
package periph

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"

	"go.viam.com/rover/components/board"
	"go.viam.com/rover/logging"
)

var _ = board.DigitalIO(&Board{})

// A Board resolves pins lazily from the periph.io registry and caches them.
type Board struct {
	mu      sync.Mutex
	conf    board.Config
	outputs map[int]gpio.PinIO
	inputs  map[int]gpio.PinIO
	origin  time.Time
	logger  logging.Logger
}

// NewBoard initializes the periph.io host drivers and returns a board using them.
func NewBoard(ctx context.Context, conf *board.Config, logger logging.Logger) (*Board, error) {
	state, err := host.Init()
	if err != nil {
		return nil, errors.Wrap(err, "failed to initialize periph.io host drivers")
	}
	for _, failure := range state.Failed {
		logger.CDebugw(ctx, "periph.io driver failed to load", "driver", failure.D.String(), "error", failure.Err)
	}
	return newBoard(conf, logger), nil
}

func newBoard(conf *board.Config, logger logging.Logger) *Board {
	return &Board{
		conf:    *conf,
		outputs: map[int]gpio.PinIO{},
		inputs:  map[int]gpio.PinIO{},
		origin:  time.Now(),
		logger:  logger,
	}
}

func (b *Board) lookup(pin int) (gpio.PinIO, error) {
	name := b.conf.PinName(pin)
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, errors.Errorf("no global pin found for %q", name)
	}
	return p, nil
}

// SetOutputLevel drives pin, configuring it as an output on first use.
func (b *Board) SetOutputLevel(ctx context.Context, pin int, high bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	p, ok := b.outputs[pin]
	if !ok {
		var err error
		if p, err = b.lookup(pin); err != nil {
			return err
		}
		b.outputs[pin] = p
		delete(b.inputs, pin)
	}
	l := gpio.Low
	if high {
		l = gpio.High
	}
	return errors.Wrapf(p.Out(l), "failed to set pin %d", pin)
}

// ReadInputLevel samples pin, configuring it as a pulled-down input on first use.
func (b *Board) ReadInputLevel(ctx context.Context, pin int) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	p, ok := b.inputs[pin]
	if !ok {
		var err error
		if p, err = b.lookup(pin); err != nil {
			return false, err
		}
		if err := p.In(gpio.PullDown, gpio.NoEdge); err != nil {
			return false, errors.Wrapf(err, "failed to configure pin %d as input", pin)
		}
		b.inputs[pin] = p
		delete(b.outputs, pin)
	}
	return p.Read() == gpio.High, nil
}

// MonotonicNowMicros returns microseconds of host monotonic time since the board was created.
// Echo timing busy-waits on it, so it always follows real time and never an injected clock.
func (b *Board) MonotonicNowMicros() uint64 {
	return uint64(time.Since(b.origin).Microseconds())
}

// Close drives every output this board touched low.
func (b *Board) Close(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	var errs error
	for pin, p := range b.outputs {
		if err := p.Out(gpio.Low); err != nil {
			errs = multierr.Combine(errs, errors.Wrapf(err, "failed to drive pin %d low", pin))
			b.logger.CWarnw(ctx, "failed to release pin", "pin", pin, "error", err)
		}
	}
	b.outputs = map[int]gpio.PinIO{}
	b.inputs = map[int]gpio.PinIO{}
	return errs
}
