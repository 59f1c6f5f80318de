// Package odometry estimates frame-to-frame camera motion from sparse keypoint correspondences.
package odometry

import (
	"context"
	"image"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"

	"go.viam.com/rover/components/camera"
	"go.viam.com/rover/logging"
	"go.viam.com/rover/queue"
	"go.viam.com/rover/rimage"
	"go.viam.com/rover/utils"
	"go.viam.com/rover/vision/keypoints"
)

// Engine turns a stream of frames into motion deltas. Process is not safe for concurrent use; an
// engine is driven by a single goroutine.
type Engine struct {
	conf   Config
	clk    clock.Clock
	logger logging.Logger

	prevGray *image.Gray
	prevKps  keypoints.KeyPoints
	hasPrev  bool

	statsMu sync.Mutex
	stats   Stats

	// A camera that keeps failing would otherwise log on every retry.
	failureLog *rate.Limiter
}

// failureLogInterval bounds how often consecutive frame failures are logged.
const failureLogInterval = time.Second

// Stats counts what the engine has done so far.
type Stats struct {
	Frames     uint64 `json:"frames"`
	Failures   uint64 `json:"failures"`
	Emitted    uint64 `json:"emitted"`
	Degenerate uint64 `json:"degenerate"`
}

// NewEngine returns an engine with no previous frame.
func NewEngine(conf *Config, clk clock.Clock, logger logging.Logger) (*Engine, error) {
	if conf == nil {
		conf = &Config{}
	}
	if err := conf.Validate("odometry"); err != nil {
		return nil, err
	}
	if clk == nil {
		clk = clock.New()
	}
	return &Engine{
		conf:       conf.resolved(),
		clk:        clk,
		logger:     logger,
		failureLog: rate.NewLimiter(rate.Every(failureLogInterval), 1),
	}, nil
}

// Process downsamples a frame, detects its features and matches them against the previous frame.
// The first frame only seeds the engine and reports false. Every later frame reports true along
// with its delta, which is zero when too few features matched. A frame that cannot be downsampled
// leaves the engine untouched and returns an error wrapping camera.ErrDecode.
func (e *Engine) Process(gray *image.Gray, timestampMs uint32) (MotionDelta, bool, error) {
	small, err := rimage.Downsample(gray, e.conf.Width, e.conf.Height)
	if err != nil {
		return MotionDelta{}, false, errors.Wrapf(camera.ErrDecode, "cannot downsample frame: %v", err)
	}
	kps := keypoints.DetectFeatures(small, e.conf.FeatureThreshold, e.conf.MaxFeatures)

	if !e.hasPrev {
		e.remember(small, kps)
		return MotionDelta{}, false, nil
	}

	matches := keypoints.MatchNearest(e.prevKps, kps, e.conf.MatchDistanceSq)
	delta := EstimateMotion(e.prevKps, kps, matches, e.conf.Width, e.conf.Height, e.conf.MinMatches)
	delta.TimestampMs = timestampMs
	e.logger.Debugw("frame matched", "features", len(kps), "previous_features", len(e.prevKps), "matches", len(matches))
	if len(matches) < e.conf.MinMatches {
		e.logger.Warnw("too few matches, reporting no motion", "matches", len(matches), "min_matches", e.conf.MinMatches)
		e.statsMu.Lock()
		e.stats.Degenerate++
		e.statsMu.Unlock()
	}

	e.remember(small, kps)
	return delta, true, nil
}

func (e *Engine) remember(small *image.Gray, kps keypoints.KeyPoints) {
	e.prevGray = rimage.CopyGray(e.prevGray, small)
	e.prevKps = kps.Clone()
	e.hasPrev = true
}

// Reset forgets the previous frame so the next one seeds the engine again.
func (e *Engine) Reset() {
	e.prevKps = nil
	e.hasPrev = false
}

// Stats returns a snapshot of the engine counters.
func (e *Engine) Stats() Stats {
	e.statsMu.Lock()
	defer e.statsMu.Unlock()
	return e.stats
}

// Cycle pulls one frame from src and, once the engine is seeded, offers the resulting delta to
// out. The frame is always released. A failed frame is logged, at most once per second, followed
// by the retry delay, and leaves the engine state unchanged. Cycle reports whether a frame was
// processed.
func (e *Engine) Cycle(ctx context.Context, src camera.FrameSource, out *queue.Bounded[MotionDelta]) bool {
	frame, release, err := src.NextFrame(ctx)
	if release == nil {
		release = camera.NoRelease
	}
	defer release()
	if err == nil {
		var delta MotionDelta
		var emit bool
		delta, emit, err = e.Process(frame.Gray, frame.TimestampMs)
		if err == nil {
			e.statsMu.Lock()
			e.stats.Frames++
			e.statsMu.Unlock()
			if emit && out != nil && out.Send(ctx, delta, millis(e.conf.SendTimeoutMs)) {
				e.statsMu.Lock()
				e.stats.Emitted++
				e.statsMu.Unlock()
			}
			return true
		}
	}

	if ctx.Err() != nil {
		return false
	}
	e.statsMu.Lock()
	e.stats.Failures++
	failures := e.stats.Failures
	e.statsMu.Unlock()
	if e.failureLog.AllowN(e.clk.Now(), 1) {
		e.logger.CErrorw(ctx, "frame skipped", "acquisition", camera.IsAcquisitionError(err),
			"decode", camera.IsDecodeError(err), "failures_total", failures, "error", err)
	}
	utils.SelectContextOrWaitClock(ctx, e.clk, millis(e.conf.RetryDelayMs))
	return false
}

// Run cycles until ctx is done, pausing the cycle interval after every processed frame. A failed
// frame is retried after the shorter retry delay instead.
func (e *Engine) Run(ctx context.Context, src camera.FrameSource, out *queue.Bounded[MotionDelta]) {
	e.logger.CInfow(ctx, "odometry started", "width", e.conf.Width, "height", e.conf.Height,
		"cycle_interval", millis(e.conf.CycleIntervalMs).String())
	defer e.logger.CInfo(ctx, "odometry stopped")
	for ctx.Err() == nil {
		if !e.Cycle(ctx, src, out) {
			continue
		}
		if !utils.SelectContextOrWaitClock(ctx, e.clk, millis(e.conf.CycleIntervalMs)) {
			return
		}
	}
}
