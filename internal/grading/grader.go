package grading

import (
	"fmt"

	"github.com/UCL-RITS/Submitty/internal/compare"
	"github.com/UCL-RITS/Submitty/pkg/types"
)

// Outcome is the graded result of one test case.
type Outcome struct {
	TestCase   types.TestCase
	Result     compare.Result
	Grade      float64
	Award      int
	Advisories []types.Advisory
}

// Summary converts the outcome into its wire form.
func (o Outcome) Summary() types.TestCaseOutcome {
	return types.TestCaseOutcome{
		Title:      o.TestCase.Title,
		Points:     o.TestCase.Points,
		Grade:      o.Grade,
		Award:      o.Award,
		Report:     o.Result.Report(),
		Advisories: o.Advisories,
	}
}

// Grader compares one test case and converts its grade into points.
type Grader struct {
	registry *compare.Registry
}

// NewGrader returns a Grader backed by registry, or by the built-in
// comparators when registry is nil.
func NewGrader(registry *compare.Registry) *Grader {
	if registry == nil {
		registry = compare.NewRegistry()
	}
	return &Grader{registry: registry}
}

// Modes lists the comparison modes this grader accepts.
func (g *Grader) Modes() []string { return g.registry.Modes() }

// Compare runs a single comparison without a test case around it.
func (g *Grader) Compare(student, expected string, mode types.ComparisonMode) (compare.Result, error) {
	return g.registry.Compare(student, expected, mode)
}

// Grade compares the texts of c and awards floor(grade × points).
// Stream advisories are computed alongside and never change the award.
func (g *Grader) Grade(c types.GradeCase) (Outcome, error) {
	res, err := g.registry.Compare(c.Student, c.Expected, c.TestCase.Comparison)
	if err != nil {
		return Outcome{}, fmt.Errorf("grade %q: %w", c.TestCase.Title, err)
	}
	num, den := res.Fraction()
	return Outcome{
		TestCase:   c.TestCase,
		Result:     res,
		Grade:      res.Grade(),
		Award:      AwardFraction(num, den, c.TestCase.Points),
		Advisories: Advisories(c.TestCase, c.Cout, c.Cerr),
	}, nil
}

// Summarize builds the wire result for a batch of outcomes, preserving order.
func Summarize(outcomes []Outcome) types.GradeBatchResult {
	res := types.GradeBatchResult{Results: make([]types.TestCaseOutcome, 0, len(outcomes))}
	for _, o := range outcomes {
		res.Results = append(res.Results, o.Summary())
		res.TotalAwarded += o.Award
		res.MaxPoints += o.TestCase.Points
	}
	return res
}
