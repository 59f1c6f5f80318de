package odometry

import (
	"math"

	"github.com/golang/geo/r2"

	"go.viam.com/rover/utils"
	"go.viam.com/rover/vision/keypoints"
)

// MotionDelta is the estimated displacement between two consecutive frames, in working-resolution
// pixels, and a coarse rotation about the optical axis in radians. Only DX, DY and Yaw are ever
// estimated.
type MotionDelta struct {
	DX          float64 `json:"dx"`
	DY          float64 `json:"dy"`
	DZ          float64 `json:"dz"`
	Roll        float64 `json:"roll"`
	Pitch       float64 `json:"pitch"`
	Yaw         float64 `json:"yaw"`
	TimestampMs uint32  `json:"timestamp_ms"`
}

// IsZero reports whether the delta carries no motion at all.
func (d MotionDelta) IsZero() bool {
	return d.DX == 0 && d.DY == 0 && d.DZ == 0 && d.Roll == 0 && d.Pitch == 0 && d.Yaw == 0
}

// EstimateMotion averages the displacement of the matched keypoints, and the change of their
// bearing from the frame center, into a MotionDelta. The rotation is a centroid heuristic and not
// a rigid-body fit. With fewer than minMatches matches the delta is exactly zero.
func EstimateMotion(prev, curr keypoints.KeyPoints, matches []keypoints.Match, width, height, minMatches int) MotionDelta {
	if len(matches) < minMatches || len(matches) == 0 {
		return MotionDelta{}
	}

	prevPts, currPts := prev.ToR2(), curr.ToR2()
	center := r2.Point{X: float64(width) / 2, Y: float64(height) / 2}
	dxs := make([]float64, len(matches))
	dys := make([]float64, len(matches))
	turns := make([]float64, len(matches))
	for i, m := range matches {
		p, c := prevPts[m.Prev], currPts[m.Curr]
		shift := c.Sub(p)
		dxs[i], dys[i] = shift.X, shift.Y
		turns[i] = bearing(c.Sub(center)) - bearing(p.Sub(center))
	}
	return MotionDelta{
		DX:  utils.Mean(dxs),
		DY:  utils.Mean(dys),
		Yaw: utils.Mean(turns),
	}
}

func bearing(v r2.Point) float64 {
	return math.Atan2(v.Y, v.X)
}
