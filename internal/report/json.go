package report

import (
	"fmt"
	"time"

	"github.com/segmentio/encoding/json"

	"github.com/UCL-RITS/Submitty/internal/grading"
	"github.com/UCL-RITS/Submitty/pkg/types"
)

// Entry is one graded test case together with the files it was graded from.
type Entry struct {
	Outcome        grading.Outcome
	InstructorFile string
	StudentFile    string
	DiffFile       string
}

// Submission is a graded submission ready to be reported.
type Submission struct {
	Name    string
	Number  int
	Time    time.Time
	Entries []Entry
}

// Totals returns the points awarded and the points available.
func (s *Submission) Totals() (awarded int, available float64) {
	for _, e := range s.Entries {
		awarded += e.Outcome.Award
		available += e.Outcome.TestCase.Points
	}
	return awarded, available
}

type JSONReport struct {
	SubmissionNumber int            `json:"submission_number"`
	SubmissionTime   string         `json:"submission_time"`
	PointsAwarded    int            `json:"points_awarded"`
	MaxPoints        float64        `json:"max_points"`
	TestCases        []JSONTestCase `json:"testcases"`
	Summary          JSONSummary    `json:"summary"`
}

type JSONTestCase struct {
	TestName      string           `json:"test_name"`
	PointsAwarded int              `json:"points_awarded"`
	MaxPoints     float64          `json:"max_points"`
	Grade         float64          `json:"grade"`
	Mode          string           `json:"mode"`
	Diff          JSONDiffRef      `json:"diff"`
	Advisories    []types.Advisory `json:"advisories,omitempty"`
}

type JSONDiffRef struct {
	InstructorFile string `json:"instructor_file"`
	StudentFile    string `json:"student_file"`
	Difference     string `json:"difference"`
}

type JSONSummary struct {
	Total   int `json:"total"`
	Perfect int `json:"perfect"`
	Partial int `json:"partial"`
	Zero    int `json:"zero"`
}

// GenerateJSONReport renders the submission summary written as submission.json.
func GenerateJSONReport(s *Submission) ([]byte, error) {
	awarded, available := s.Totals()
	report := JSONReport{
		SubmissionNumber: s.Number,
		SubmissionTime:   s.Time.UTC().Format(time.RFC3339),
		PointsAwarded:    awarded,
		MaxPoints:        available,
		TestCases:        make([]JSONTestCase, 0, len(s.Entries)),
		Summary:          JSONSummary{Total: len(s.Entries)},
	}

	for _, e := range s.Entries {
		o := e.Outcome
		switch {
		case o.Grade >= 1:
			report.Summary.Perfect++
		case o.Grade > 0:
			report.Summary.Partial++
		default:
			report.Summary.Zero++
		}
		report.TestCases = append(report.TestCases, JSONTestCase{
			TestName:      o.TestCase.Title,
			PointsAwarded: o.Award,
			MaxPoints:     o.TestCase.Points,
			Grade:         o.Grade,
			Mode:          string(o.TestCase.Comparison),
			Diff: JSONDiffRef{
				InstructorFile: e.InstructorFile,
				StudentFile:    e.StudentFile,
				Difference:     e.DiffFile,
			},
			Advisories: o.Advisories,
		})
	}

	output, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return output, nil
}

// GenerateDiffJSON renders the comparison report of one outcome, the
// content of a testN_diff.json file.
func GenerateDiffJSON(o grading.Outcome) ([]byte, error) {
	output, err := json.MarshalIndent(o.Result.Report(), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal diff %q: %w", o.TestCase.Title, err)
	}
	return output, nil
}
