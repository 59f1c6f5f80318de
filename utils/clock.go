package utils

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"

	"go.viam.com/rover/logging"
)

// SelectContextOrWaitClock waits for dur on clk. It returns false if ctx is done first.
func SelectContextOrWaitClock(ctx context.Context, clk clock.Clock, dur time.Duration) bool {
	if dur <= 0 {
		return ctx.Err() == nil
	}
	timer := clk.Timer(dur)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// MillisSince returns the milliseconds elapsed on clk since start. The value wraps like a 32-bit
// tick counter after about 49 days.
func MillisSince(clk clock.Clock, start time.Time) uint32 {
	return uint32(clk.Since(start).Milliseconds())
}

// SlowLogger starts a goroutine that warns every few seconds until the returned function is called
// or ctx is done.
func SlowLogger(
	ctx context.Context,
	clk clock.Clock,
	msg, fieldName, fieldVal string,
	logger logging.Logger,
) func() {
	slowTicker := clk.Ticker(2 * time.Second)
	firstTick := true

	ctxWithCancel, cancel := context.WithCancel(ctx)
	startTime := clk.Now()
	go func() {
		for {
			select {
			case <-slowTicker.C:
				elapsed := clk.Since(startTime).Round(time.Second).String()
				logger.CWarnw(ctx, msg, fieldName, fieldVal, "time_elapsed", elapsed)
				if firstTick {
					slowTicker.Reset(3 * time.Second)
					firstTick = false
				}
			case <-ctxWithCancel.Done():
				return
			}
		}
	}()
	return func() { slowTicker.Stop(); cancel() }
}
