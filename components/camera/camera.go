// Package camera defines the frame source the odometry engine pulls decoded grayscale frames
// from. Acquisition and decoding live behind this contract; the engine only sees frames or one of
// the two failure kinds below.
package camera

import (
	"context"
	"image"

	"github.com/pkg/errors"
)

var (
	// ErrAcquisition means no frame was available.
	ErrAcquisition = errors.New("frame acquisition failed")
	// ErrDecode means a frame arrived but could not be decoded.
	ErrDecode = errors.New("frame decode failed")
)

// A Frame is a decoded grayscale image and the time it was captured, in milliseconds on the
// source's clock.
type Frame struct {
	Gray        *image.Gray
	TimestampMs uint32
}

// A FrameSource produces frames on demand.
type FrameSource interface {
	// NextFrame acquires the next frame. The returned release function is never nil and must be
	// called once the caller is done with the frame, whether or not err is nil. Errors wrap
	// ErrAcquisition or ErrDecode.
	NextFrame(ctx context.Context) (Frame, func(), error)

	Close(ctx context.Context) error
}

// NoRelease is the release function for frames that do not come from a pool.
func NoRelease() {}

// IsAcquisitionError reports whether err is an acquisition failure.
func IsAcquisitionError(err error) bool {
	return errors.Is(err, ErrAcquisition)
}

// IsDecodeError reports whether err is a decode failure.
func IsDecodeError(err error) bool {
	return errors.Is(err, ErrDecode)
}
