package compare

import "github.com/UCL-RITS/Submitty/pkg/types"

// Result is the outcome of one comparison. It is implemented only by
// DifferenceResult and TokensResult, both plain values owned by the caller.
type Result interface {
	Mode() types.ComparisonMode
	// Grade is the fraction of expected content reproduced, in [0, 1].
	Grade() float64
	// Fraction is the exact ratio behind Grade; den is never zero.
	Fraction() (num, den int)
	Report() types.DiffReport

	isResult()
}

// fraction applies the empty-input rule shared by both modes: an empty
// expected side is full credit only when the student side is empty too.
func fraction(matched, expected, student int) (num, den int) {
	if expected == 0 {
		if student == 0 {
			return 1, 1
		}
		return 0, 1
	}
	return matched, expected
}

func gradeOf(r Result) float64 {
	num, den := r.Fraction()
	g := float64(num) / float64(den)
	switch {
	case g < 0:
		return 0
	case g > 1:
		return 1
	}
	return g
}
