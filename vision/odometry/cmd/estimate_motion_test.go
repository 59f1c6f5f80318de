package main

import (
	"context"
	"image"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"go.viam.com/test"

	"go.viam.com/rover/components/camera/fake"
	"go.viam.com/rover/logging"
)

func writeFrame(t *testing.T, dir, name string, img image.Image) string {
	t.Helper()
	path := filepath.Join(dir, name)
	test.That(t, imaging.Save(img, path), test.ShouldBeNil)
	return path
}

func TestEstimateIdenticalFrames(t *testing.T) {
	dir := t.TempDir()
	frame := fake.Checkerboard(160, 120, 0, 0)
	prev := writeFrame(t, dir, "prev.png", frame)
	curr := writeFrame(t, dir, "curr.png", frame)

	logger, logs := logging.NewObservedTestLogger(t)
	err := mainWithArgs(context.Background(), []string{"estimate_motion", prev, curr}, logger)
	test.That(t, err, test.ShouldBeNil)

	entries := logs.FilterMessage("estimated motion").All()
	test.That(t, len(entries), test.ShouldEqual, 1)
	test.That(t, entries[0].ContextMap()["zero"], test.ShouldEqual, true)
}

func TestEstimateMissingFile(t *testing.T) {
	dir := t.TempDir()
	prev := writeFrame(t, dir, "prev.png", fake.Checkerboard(160, 120, 0, 0))

	logger := logging.NewTestLogger(t)
	err := mainWithArgs(context.Background(), []string{"estimate_motion", prev, filepath.Join(dir, "gone.png")}, logger)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "gone.png")
}

func TestEstimateRequiresTwoFrames(t *testing.T) {
	logger := logging.NewTestLogger(t)
	err := mainWithArgs(context.Background(), []string{"estimate_motion"}, logger)
	test.That(t, err, test.ShouldNotBeNil)
}
