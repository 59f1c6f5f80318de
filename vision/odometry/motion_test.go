package odometry

import (
	"image"
	"math"
	"testing"

	"go.viam.com/test"

	"go.viam.com/rover/vision/keypoints"
)

func identityMatches(n int) []keypoints.Match {
	matches := make([]keypoints.Match, n)
	for i := range matches {
		matches[i] = keypoints.Match{Prev: i, Curr: i}
	}
	return matches
}

func TestEstimateTranslation(t *testing.T) {
	prev := keypoints.KeyPoints{{10, 10}, {20, 10}, {30, 20}, {40, 30}, {50, 40}}
	curr := make(keypoints.KeyPoints, len(prev))
	for i, p := range prev {
		curr[i] = p.Add(image.Point{3, -2})
	}

	delta := EstimateMotion(prev, curr, identityMatches(len(prev)), 80, 60, 5)
	test.That(t, delta.DX, test.ShouldAlmostEqual, 3.0)
	test.That(t, delta.DY, test.ShouldAlmostEqual, -2.0)
	test.That(t, delta.DZ, test.ShouldEqual, 0.0)
	test.That(t, delta.Roll, test.ShouldEqual, 0.0)
	test.That(t, delta.Pitch, test.ShouldEqual, 0.0)
}

func TestEstimateQuarterTurn(t *testing.T) {
	// Every point turns a quarter about the frame center (40, 30).
	prev := keypoints.KeyPoints{{50, 30}, {45, 35}, {40, 40}, {50, 35}, {45, 30}}
	curr := keypoints.KeyPoints{{40, 40}, {35, 35}, {30, 30}, {35, 40}, {40, 35}}

	delta := EstimateMotion(prev, curr, identityMatches(len(prev)), 80, 60, 5)
	test.That(t, delta.Yaw, test.ShouldAlmostEqual, math.Pi/2)
}

func TestEstimateYawIsNotWrapped(t *testing.T) {
	prev := keypoints.KeyPoints{{30, 31}}
	curr := keypoints.KeyPoints{{39, 20}}

	delta := EstimateMotion(prev, curr, identityMatches(1), 80, 60, 1)
	test.That(t, delta.Yaw, test.ShouldBeLessThan, -math.Pi)
	test.That(t, delta.Yaw, test.ShouldAlmostEqual, -3*math.Pi/2, 0.01)
}

func TestEstimateTooFewMatches(t *testing.T) {
	prev := keypoints.KeyPoints{{10, 10}, {20, 10}, {30, 20}, {40, 30}}
	curr := keypoints.KeyPoints{{13, 10}, {23, 10}, {33, 20}, {43, 30}}

	delta := EstimateMotion(prev, curr, identityMatches(len(prev)), 80, 60, 5)
	test.That(t, delta, test.ShouldResemble, MotionDelta{})
	test.That(t, delta.IsZero(), test.ShouldBeTrue)

	test.That(t, EstimateMotion(nil, nil, nil, 80, 60, 0), test.ShouldResemble, MotionDelta{})
}
