package fake

import (
	"context"
	"image"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.viam.com/test"

	"go.viam.com/rover/components/camera"
)

func TestScriptedCamera(t *testing.T) {
	mock := clock.NewMock()
	first := image.NewGray(image.Rect(0, 0, 4, 4))
	cam := NewCamera(mock,
		Shot{Gray: first},
		Shot{Err: errors.Wrap(camera.ErrDecode, "truncated jpeg")},
	)
	ctx := context.Background()

	mock.Add(250 * time.Millisecond)
	frame, release, err := cam.NextFrame(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, frame.Gray, test.ShouldEqual, first)
	test.That(t, frame.TimestampMs, test.ShouldEqual, uint32(250))
	release()
	release()
	test.That(t, cam.Released(), test.ShouldEqual, 1)

	_, release, err = cam.NextFrame(ctx)
	test.That(t, camera.IsDecodeError(err), test.ShouldBeTrue)
	release()

	_, release, err = cam.NextFrame(ctx)
	test.That(t, camera.IsAcquisitionError(err), test.ShouldBeTrue)
	release()

	test.That(t, cam.Acquired(), test.ShouldEqual, 3)
	test.That(t, cam.Released(), test.ShouldEqual, 3)
}

func TestDriftingCamera(t *testing.T) {
	cam := NewDriftingCamera(&camera.Config{Model: camera.ModelFake, DriftXPx: 2, FailEveryNth: 3}, nil)
	ctx := context.Background()

	frame0, release, err := cam.NextFrame(ctx)
	test.That(t, err, test.ShouldBeNil)
	release()
	test.That(t, frame0.Gray.Bounds(), test.ShouldResemble, image.Rect(0, 0, defaultWidth, defaultHeight))

	frame1, release, err := cam.NextFrame(ctx)
	test.That(t, err, test.ShouldBeNil)
	release()
	// The pattern moved two pixels to the right.
	test.That(t, frame1.Gray.GrayAt(10, 5), test.ShouldResemble, frame0.Gray.GrayAt(8, 5))

	_, release, err = cam.NextFrame(ctx)
	test.That(t, camera.IsAcquisitionError(err), test.ShouldBeTrue)
	release()

	test.That(t, cam.Close(ctx), test.ShouldBeNil)
	_, release, err = cam.NextFrame(ctx)
	test.That(t, camera.IsAcquisitionError(err), test.ShouldBeTrue)
	release()
}

func TestCheckerboard(t *testing.T) {
	img := Checkerboard(16, 16, 0, 0)
	test.That(t, img.GrayAt(0, 0).Y, test.ShouldEqual, uint8(30))
	test.That(t, img.GrayAt(8, 0).Y, test.ShouldEqual, uint8(220))
	test.That(t, img.GrayAt(8, 8).Y, test.ShouldEqual, uint8(30))

	shifted := Checkerboard(16, 16, -3, 0)
	test.That(t, shifted.GrayAt(5, 0).Y, test.ShouldEqual, uint8(220))
	test.That(t, shifted.GrayAt(4, 0).Y, test.ShouldEqual, uint8(30))
}
