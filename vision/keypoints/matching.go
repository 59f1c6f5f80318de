package keypoints

import (
	"go.viam.com/rover/utils"
)

// Match holds the index of a keypoint in the previous set and the index of the current keypoint
// paired with it.
type Match struct {
	Prev int
	Curr int
}

// MatchNearest pairs each current keypoint with its nearest previous keypoint, keeping the pair
// only if their squared distance is strictly below maxDistSq. Every current keypoint picks
// independently, so several may share one previous keypoint. Matches come out in current-index
// order and there are never more than len(curr).
func MatchNearest(prev, curr KeyPoints, maxDistSq float64) []Match {
	distances := utils.PairwiseSquaredDistance(curr.ToR2(), prev.ToR2())
	nearest, minimums := utils.ArgMinPerRow(distances)
	matches := make([]Match, 0, len(nearest))
	for i, j := range nearest {
		if minimums[i] < maxDistSq {
			matches = append(matches, Match{Prev: j, Curr: i})
		}
	}
	return matches
}
