package compare

import "github.com/UCL-RITS/Submitty/pkg/types"

// DifferenceResult is the line_diff outcome: the collapsed line alignment
// together with the lines it refers to.
type DifferenceResult struct {
	Student  []Line
	Expected []Line
	Edits    []Edit
	Counts   types.LineCounts
}

func (DifferenceResult) isResult() {}

func (DifferenceResult) Mode() types.ComparisonMode { return types.ModeLineDiff }

func (r DifferenceResult) Fraction() (num, den int) {
	return fraction(r.Counts.MatchedLines, r.Counts.TotalExpectedLines, r.Counts.TotalStudentLines)
}

func (r DifferenceResult) Grade() float64 { return gradeOf(r) }

// Report renders one operation per edit, in alignment order.
func (r DifferenceResult) Report() types.DiffReport {
	ops := make([]types.Operation, 0, len(r.Edits))
	for _, e := range r.Edits {
		var op types.Operation
		switch e.Kind {
		case Match:
			op.Kind = types.OpMatch
		case Insert:
			op.Kind = types.OpInsert
		case Delete:
			op.Kind = types.OpDelete
		case Substitute:
			op.Kind = types.OpChange
		}
		if e.A >= 0 {
			line := r.Student[e.A]
			op.StudentLine = &line.Number
			op.StudentText = &line.Text
		}
		if e.B >= 0 {
			line := r.Expected[e.B]
			op.ExpectedLine = &line.Number
			op.ExpectedText = &line.Text
		}
		ops = append(ops, op)
	}
	return types.DiffReport{
		Mode:       types.ModeLineDiff,
		Counts:     r.Counts,
		Operations: ops,
	}
}

// Changed returns the student/expected text pairs of every changed line.
func (r DifferenceResult) Changed() [][2]string {
	var pairs [][2]string
	for _, e := range r.Edits {
		if e.Kind == Substitute {
			pairs = append(pairs, [2]string{r.Student[e.A].Text, r.Expected[e.B].Text})
		}
	}
	return pairs
}

// CompareLines aligns student and expected output line by line.
func CompareLines(student, expected string) DifferenceResult {
	sLines := SplitLines(student)
	eLines := SplitLines(expected)

	edits := Collapse(Align(lineTexts(sLines), lineTexts(eLines)))

	counts := types.LineCounts{
		TotalExpectedLines: len(eLines),
		TotalStudentLines:  len(sLines),
	}
	for _, e := range edits {
		switch e.Kind {
		case Match:
			counts.MatchedLines++
		case Substitute:
			counts.ChangedLines++
		case Insert:
			counts.InsertedLines++
		case Delete:
			counts.DeletedLines++
		}
	}

	return DifferenceResult{
		Student:  sLines,
		Expected: eLines,
		Edits:    edits,
		Counts:   counts,
	}
}

func lineTexts(lines []Line) []string {
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = l.Text
	}
	return out
}
