package utils

import (
	"github.com/golang/geo/r2"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// PairwiseSquaredDistance returns a len(rows) x len(cols) matrix whose (i, j) entry is the squared
// euclidean distance between rows[i] and cols[j]. It returns nil if either set is empty.
func PairwiseSquaredDistance(rows, cols []r2.Point) *mat.Dense {
	if len(rows) == 0 || len(cols) == 0 {
		return nil
	}
	distances := mat.NewDense(len(rows), len(cols), nil)
	for i, p := range rows {
		for j, q := range cols {
			d := p.Sub(q)
			distances.Set(i, j, d.Dot(d))
		}
	}
	return distances
}

// ArgMinPerRow returns, for each row of distances, the column index of the smallest entry and the
// entry itself. Ties resolve to the lowest column index.
func ArgMinPerRow(distances *mat.Dense) ([]int, []float64) {
	if distances == nil {
		return nil, nil
	}
	nRows, _ := distances.Dims()
	indices := make([]int, nRows)
	minimums := make([]float64, nRows)
	for i := 0; i < nRows; i++ {
		row := distances.RawRowView(i)
		indices[i] = floats.MinIdx(row)
		minimums[i] = row[indices[i]]
	}
	return indices, minimums
}
