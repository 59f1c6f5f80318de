// Package autopilot delivers obstacle events to the flight controller.
package autopilot

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.bug.st/serial"
	"go.uber.org/atomic"
	"go.uber.org/multierr"
	"golang.org/x/time/rate"

	"go.viam.com/rover/logging"
	"go.viam.com/rover/navigation"
	"go.viam.com/rover/queue"
	"go.viam.com/rover/utils"
)

// A Link is a navigation.Link that holds a resource until closed.
type Link interface {
	navigation.Link
	Close() error
}

// NewLink opens the link the config selects.
func NewLink(conf *Config, logger logging.Logger) (Link, error) {
	if err := conf.Validate("autopilot"); err != nil {
		return nil, err
	}
	if conf.Model == ModelSerial {
		return NewSerialLink(conf, logger)
	}
	return NewLogLink(logger), nil
}

// Port is the part of a serial port the link needs.
type Port interface {
	io.Writer
	io.Closer
}

// ErrLinkBusy is returned by Emit when the port has fallen behind and the event was dropped.
var ErrLinkBusy = errors.New("autopilot link busy, obstacle event dropped")

// pendingCapacity is how many encoded events may wait for the port.
const pendingCapacity = 8

// writerPollInterval bounds how long the writer waits for an event before checking for shutdown.
const writerPollInterval = 100 * time.Millisecond

// SerialLink writes each event as one line of JSON. Emit only queues the line; a worker owned by
// the link does the write, so a stalled port never holds up the caller.
type SerialLink struct {
	mu     sync.Mutex
	port   Port
	closed bool
	logger logging.Logger

	pending *queue.Bounded[[]byte]
	workers utils.StoppableWorkers

	written       atomic.Uint64
	writeFailures atomic.Uint64
	failureLog    *rate.Limiter
}

// NewSerialLink opens the configured serial port.
func NewSerialLink(conf *Config, logger logging.Logger) (*SerialLink, error) {
	mode, err := conf.SerialMode()
	if err != nil {
		return nil, err
	}
	port, err := serial.Open(conf.Path, mode)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot open autopilot serial port %q", conf.Path)
	}
	link, err := NewSerialLinkFromPort(port, logger)
	if err != nil {
		return nil, multierr.Combine(err, port.Close())
	}
	logger.Infow("autopilot link open", "path", conf.Path, "baud_rate", mode.BaudRate)
	return link, nil
}

// NewSerialLinkFromPort returns a link writing to an already open port and starts its writer.
func NewSerialLinkFromPort(port Port, logger logging.Logger) (*SerialLink, error) {
	pending, err := queue.NewBounded[[]byte]("autopilot", pendingCapacity, nil, logger)
	if err != nil {
		return nil, err
	}
	l := &SerialLink{
		port:       port,
		logger:     logger,
		pending:    pending,
		failureLog: rate.NewLimiter(rate.Every(time.Second), 1),
	}
	l.workers = utils.NewStoppableWorkers(l.writeLoop)
	return l, nil
}

// Emit queues event for the port. It fails with ErrLinkBusy when too many events are already
// waiting.
func (l *SerialLink) Emit(ctx context.Context, event navigation.ObstacleEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	line, err := json.Marshal(event)
	if err != nil {
		return errors.Wrap(err, "cannot encode obstacle event")
	}
	line = append(line, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return errors.New("autopilot link is closed")
	}
	if !l.pending.TrySend(line) {
		return ErrLinkBusy
	}
	return nil
}

func (l *SerialLink) writeLoop(ctx context.Context) {
	for {
		line, ok := l.pending.Receive(ctx, writerPollInterval)
		if ctx.Err() != nil {
			return
		}
		if !ok {
			continue
		}
		if _, err := l.port.Write(line); err != nil {
			failures := l.writeFailures.Inc()
			if l.failureLog.Allow() {
				l.logger.Warnw("cannot write obstacle event", "failures_total", failures, "error", err)
			}
			continue
		}
		l.written.Inc()
	}
}

// Written returns how many events reached the port.
func (l *SerialLink) Written() uint64 {
	return l.written.Load()
}

// WriteFailures returns how many queued events the port rejected.
func (l *SerialLink) WriteFailures() uint64 {
	return l.writeFailures.Load()
}

// Close closes the port and stops the writer. Events still queued are discarded and later emits
// fail.
func (l *SerialLink) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	l.mu.Unlock()

	// Closing first releases a write stuck on the port.
	err := l.port.Close()
	l.workers.Stop()
	return err
}

// LogLink only logs events. It stands in for the autopilot when none is attached.
type LogLink struct {
	logger logging.Logger
}

// NewLogLink returns a link that logs every event at info level.
func NewLogLink(logger logging.Logger) *LogLink {
	return &LogLink{logger: logger}
}

// Emit logs event.
func (l *LogLink) Emit(ctx context.Context, event navigation.ObstacleEvent) error {
	l.logger.CInfow(ctx, "obstacle",
		"sensor", event.SensorType.String(),
		"distance_cm", event.DistanceCm,
		"angle_x", event.AngleX,
		"angle_y", event.AngleY,
		"timestamp_ms", event.TimestampMs)
	return nil
}

// Close does nothing.
func (l *LogLink) Close() error {
	return nil
}
