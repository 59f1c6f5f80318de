// Package fake implements a simulated board whose echo lines answer trigger pulses on a virtual
// microsecond clock.
package fake

import (
	"context"
	"sync"

	"go.viam.com/rover/components/board"
)

var _ = board.DigitalIO(&Board{})

// defaultEchoDelayMicros is used when a configuration scripts durations without a delay.
const defaultEchoDelayMicros = 100

// Echo scripts how one echo pin answers a trigger pulse. The echo line goes high DelayMicros after
// the trigger's falling edge and stays high for DurationMicros.
type Echo struct {
	DelayMicros    uint64
	DurationMicros uint64
	NeverRises     bool
	NeverFalls     bool
}

// A Board is a deterministic stand-in for ranging hardware. Its clock only moves when
// MonotonicNowMicros or Advance is called, so a polling loop sees time pass at a fixed rate per
// poll regardless of the host's speed.
type Board struct {
	mu         sync.Mutex
	nowMicros  uint64
	tickMicros uint64
	triggers   map[int]int
	echoes     map[int]Echo
	levels     map[int]bool
	armedAt    map[int]uint64
	writes     map[int][]bool
	readErrs   map[int]error

	CloseCount int
}

// NewBoard returns a board where each key of triggerToEcho is a trigger pin paired with the echo
// pin it makes answer. Echo pins without a scripted Echo never rise.
func NewBoard(triggerToEcho map[int]int) *Board {
	triggers := make(map[int]int, len(triggerToEcho))
	for trig, echo := range triggerToEcho {
		triggers[trig] = echo
	}
	return &Board{
		tickMicros: 1,
		triggers:   triggers,
		echoes:     map[int]Echo{},
		levels:     map[int]bool{},
		armedAt:    map[int]uint64{},
		writes:     map[int][]bool{},
		readErrs:   map[int]error{},
	}
}

// NewBoardFromConfig is NewBoard with echoes scripted from the board configuration.
func NewBoardFromConfig(conf *board.Config, triggerToEcho map[int]int) *Board {
	b := NewBoard(triggerToEcho)
	delay := conf.EchoDelayMicros
	if delay == 0 {
		delay = defaultEchoDelayMicros
	}
	for echoPin, duration := range conf.EchoDurationsMicros {
		b.SetEcho(echoPin, Echo{DelayMicros: delay, DurationMicros: duration})
	}
	return b
}

// SetEcho scripts the response of an echo pin.
func (b *Board) SetEcho(echoPin int, echo Echo) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.echoes[echoPin] = echo
}

// SetReadError makes every read of pin fail with err. A nil err clears it.
func (b *Board) SetReadError(pin int, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err == nil {
		delete(b.readErrs, pin)
		return
	}
	b.readErrs[pin] = err
}

// SetTickMicros sets how far the clock moves on each MonotonicNowMicros call.
func (b *Board) SetTickMicros(tick uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tickMicros = tick
}

// Advance moves the clock forward without reading it.
func (b *Board) Advance(micros uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nowMicros += micros
}

// Writes returns every level written to pin, oldest first.
func (b *Board) Writes(pin int) []bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]bool(nil), b.writes[pin]...)
}

// SetOutputLevel records the level. A high to low transition on a trigger pin arms its echo pin.
func (b *Board) SetOutputLevel(ctx context.Context, pin int, high bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	wasHigh := b.levels[pin]
	b.levels[pin] = high
	b.writes[pin] = append(b.writes[pin], high)
	if echoPin, ok := b.triggers[pin]; ok && wasHigh && !high {
		b.armedAt[echoPin] = b.nowMicros
	}
	return nil
}

// ReadInputLevel reports whether the echo window of pin covers the current virtual time. Reading
// does not move the clock.
func (b *Board) ReadInputLevel(ctx context.Context, pin int) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err, ok := b.readErrs[pin]; ok {
		return false, err
	}
	armedAt, armed := b.armedAt[pin]
	echo, scripted := b.echoes[pin]
	if !armed || !scripted || echo.NeverRises {
		return false, nil
	}
	rise := armedAt + echo.DelayMicros
	if b.nowMicros < rise {
		return false, nil
	}
	if echo.NeverFalls {
		return true, nil
	}
	return b.nowMicros < rise+echo.DurationMicros, nil
}

// MonotonicNowMicros advances the virtual clock by one tick and returns it.
func (b *Board) MonotonicNowMicros() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nowMicros += b.tickMicros
	return b.nowMicros
}

// Close counts calls.
func (b *Board) Close(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.CloseCount++
	return nil
}
