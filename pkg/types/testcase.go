package types

import (
	"errors"
	"fmt"
)

// ComparisonMode selects the strategy used to compare student and expected output.
type ComparisonMode string

const (
	ModeLineDiff   ComparisonMode = "line_diff"
	ModeTokenMatch ComparisonMode = "token_match"
)

// StreamPolicy controls what is reported about a captured stdout/stderr stream.
type StreamPolicy string

const (
	PolicyDontCheck      StreamPolicy = "dont_check"
	PolicyWarnIfNotEmpty StreamPolicy = "warn_if_not_empty"
	PolicyCheck          StreamPolicy = "check"
)

var (
	ErrInvalidComparisonMode = errors.New("invalid comparison mode")
	ErrInvalidStreamPolicy   = errors.New("invalid stream policy")
)

// ParseComparisonMode returns the mode named by s.
func ParseComparisonMode(s string) (ComparisonMode, error) {
	switch m := ComparisonMode(s); m {
	case ModeLineDiff, ModeTokenMatch:
		return m, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidComparisonMode, s)
}

// UnmarshalText rejects anything outside the closed set of modes.
func (m *ComparisonMode) UnmarshalText(text []byte) error {
	parsed, err := ParseComparisonMode(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// ParseStreamPolicy returns the policy named by s.
func ParseStreamPolicy(s string) (StreamPolicy, error) {
	switch p := StreamPolicy(s); p {
	case PolicyDontCheck, PolicyWarnIfNotEmpty, PolicyCheck:
		return p, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStreamPolicy, s)
}

// UnmarshalText rejects anything outside the closed set of policies.
func (p *StreamPolicy) UnmarshalText(text []byte) error {
	parsed, err := ParseStreamPolicy(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// TestCase describes one comparison: which captured output is checked against
// which expected output, how, and for how many points.
// StudentFile and ExpectedFile are opaque references resolved by the caller.
type TestCase struct {
	Title        string         `json:"title" yaml:"title"`
	StudentFile  string         `json:"student_file,omitempty" yaml:"student_file"`
	ExpectedFile string         `json:"expected_file,omitempty" yaml:"expected_file"`
	Points       float64        `json:"points" yaml:"points"`
	CoutCheck    StreamPolicy   `json:"cout_check,omitempty" yaml:"cout_check"`
	CerrCheck    StreamPolicy   `json:"cerr_check,omitempty" yaml:"cerr_check"`
	Comparison   ComparisonMode `json:"comparison" yaml:"comparison"`
}

// Assignment is the configured list of test cases for one homework.
type Assignment struct {
	Name        string     `json:"name" yaml:"name"`
	ExpectedDir string     `json:"expected_dir" yaml:"expected_dir"`
	TestCases   []TestCase `json:"testcases" yaml:"testcases"`
}

// MaxPoints sums the point values of all test cases.
func (a *Assignment) MaxPoints() float64 {
	var total float64
	for _, tc := range a.TestCases {
		total += tc.Points
	}
	return total
}
