// Package fake implements frame sources for tests and simulation.
package fake

import (
	"context"
	"image"
	"image/color"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"

	"go.viam.com/rover/components/camera"
	"go.viam.com/rover/utils"
)

var _ = camera.FrameSource(&Camera{})

const (
	defaultWidth  = 160
	defaultHeight = 120
	squarePx      = 8
)

// A Shot is one scripted result of NextFrame.
type Shot struct {
	Gray *image.Gray
	Err  error
}

// A Camera hands out scripted or generated frames and counts how many were acquired and released.
type Camera struct {
	mu       sync.Mutex
	shots    []Shot
	generate func(n int) Shot
	n        int
	clk      clock.Clock
	origin   time.Time

	acquired int
	released int
	closed   bool
}

// NewCamera returns a camera that plays shots in order and then fails acquisition forever.
func NewCamera(clk clock.Clock, shots ...Shot) *Camera {
	return newCamera(clk, nil, shots)
}

// NewDriftingCamera renders a checkerboard that moves by the configured drift every frame. Every
// FailEveryNth acquisition fails, if set.
func NewDriftingCamera(conf *camera.Config, clk clock.Clock) *Camera {
	width, height := conf.Width, conf.Height
	if width == 0 {
		width = defaultWidth
	}
	if height == 0 {
		height = defaultHeight
	}
	failEvery := conf.FailEveryNth
	driftX, driftY := conf.DriftXPx, conf.DriftYPx
	return newCamera(clk, func(n int) Shot {
		if failEvery > 0 && (n+1)%failEvery == 0 {
			return Shot{Err: errors.Wrapf(camera.ErrAcquisition, "simulated dropout on frame %d", n)}
		}
		return Shot{Gray: Checkerboard(width, height, n*driftX, n*driftY)}
	}, nil)
}

func newCamera(clk clock.Clock, generate func(int) Shot, shots []Shot) *Camera {
	if clk == nil {
		clk = clock.New()
	}
	return &Camera{shots: shots, generate: generate, clk: clk, origin: clk.Now()}
}

// NextFrame returns the next scripted or generated frame.
func (c *Camera) NextFrame(ctx context.Context) (camera.Frame, func(), error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return camera.Frame{}, camera.NoRelease, errors.Wrap(camera.ErrAcquisition, err.Error())
	}
	if c.closed {
		return camera.Frame{}, camera.NoRelease, errors.Wrap(camera.ErrAcquisition, "camera is closed")
	}

	var shot Shot
	switch {
	case c.generate != nil:
		shot = c.generate(c.n)
	case c.n < len(c.shots):
		shot = c.shots[c.n]
	default:
		shot = Shot{Err: errors.Wrap(camera.ErrAcquisition, "no more scripted frames")}
	}
	c.n++
	c.acquired++

	var once sync.Once
	release := func() {
		once.Do(func() {
			c.mu.Lock()
			c.released++
			c.mu.Unlock()
		})
	}
	if shot.Err != nil {
		return camera.Frame{}, release, shot.Err
	}
	return camera.Frame{Gray: shot.Gray, TimestampMs: utils.MillisSince(c.clk, c.origin)}, release, nil
}

// Acquired returns how many times NextFrame handed out a frame or an error.
func (c *Camera) Acquired() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.acquired
}

// Released returns how many handed out frames have been released.
func (c *Camera) Released() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.released
}

// Close makes every later NextFrame fail.
func (c *Camera) Close(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

// Checkerboard renders squares of alternating dark and light intensity, shifted by (offsetX,
// offsetY) pixels.
func Checkerboard(width, height, offsetX, offsetY int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			sx := floorDiv(x-offsetX, squarePx)
			sy := floorDiv(y-offsetY, squarePx)
			v := uint8(30)
			if (sx+sy)%2 != 0 {
				v = 220
			}
			img.SetGray(x, y, color.Gray{Y: v})
		}
	}
	return img
}

func floorDiv(a, b int) int {
	q := a / b
	if a%b != 0 && a < 0 {
		q--
	}
	return q
}
