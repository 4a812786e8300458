package grading

import (
	"math"
	"math/big"
)

// Award converts a fractional grade into integer points: floor(grade × points).
// The grade is clamped to [0, 1]; negative or non-finite points award nothing.
// Flooring never rounds a tie upward.
func Award(grade, points float64) int {
	if points <= 0 || math.IsInf(points, 0) || math.IsNaN(points) || math.IsNaN(grade) {
		return 0
	}
	grade = math.Max(0, math.Min(1, grade))
	return int(math.Floor(grade * points))
}

// AwardFraction computes floor(num/den × points) exactly, so a grade of
// 29/100 on a 100-point test awards 29 rather than a float artefact of 28.
func AwardFraction(num, den int, points float64) int {
	if points <= 0 || den <= 0 || num <= 0 || math.IsInf(points, 0) || math.IsNaN(points) {
		return 0
	}
	if num > den {
		num = den
	}
	p := new(big.Rat)
	p.SetFloat64(points)
	r := new(big.Rat).SetFrac64(int64(num), int64(den))
	r.Mul(r, p)

	q := new(big.Int).Quo(r.Num(), r.Denom())
	return int(q.Int64())
}
