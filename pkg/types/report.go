package types

import (
	"fmt"

	"github.com/segmentio/encoding/json"
)

const (
	OpMatch  = "match"
	OpInsert = "insert"
	OpDelete = "delete"
	OpChange = "change"
)

// LineCounts are the line-level counts of a line_diff comparison.
type LineCounts struct {
	MatchedLines       int `json:"matched_lines"`
	ChangedLines       int `json:"changed_lines"`
	InsertedLines      int `json:"inserted_lines"`
	DeletedLines       int `json:"deleted_lines"`
	TotalExpectedLines int `json:"total_expected_lines"`
	TotalStudentLines  int `json:"total_student_lines"`
}

// TokenCounts are the multiset counts of a token_match comparison.
type TokenCounts struct {
	MatchedTokens       int `json:"matched_tokens"`
	ExtraTokens         int `json:"extra_tokens"`
	MissingTokens       int `json:"missing_tokens"`
	TotalExpectedTokens int `json:"total_expected_tokens"`
	TotalStudentTokens  int `json:"total_student_tokens"`
}

// Operation is one row of a line diff. Line numbers are 1-based; fields that
// do not apply to the operation kind are null.
type Operation struct {
	Kind         string  `json:"kind"`
	StudentLine  *int    `json:"student_line"`
	ExpectedLine *int    `json:"expected_line"`
	StudentText  *string `json:"student_text"`
	ExpectedText *string `json:"expected_text"`
}

// DiffReport is the serializable outcome of one comparison.
// Counts holds LineCounts for line_diff and TokenCounts for token_match.
// Operations is only emitted for line_diff.
type DiffReport struct {
	Mode       ComparisonMode
	Counts     any
	Operations []Operation
}

type lineDiffWire struct {
	Mode       ComparisonMode `json:"mode"`
	Counts     LineCounts     `json:"counts"`
	Operations []Operation    `json:"operations"`
}

type tokenMatchWire struct {
	Mode   ComparisonMode `json:"mode"`
	Counts TokenCounts    `json:"counts"`
}

// MarshalJSON encodes the report using the per-mode wire shape.
func (r DiffReport) MarshalJSON() ([]byte, error) {
	switch r.Mode {
	case ModeLineDiff:
		counts, ok := r.Counts.(LineCounts)
		if !ok {
			return nil, fmt.Errorf("line_diff report has %T counts", r.Counts)
		}
		ops := r.Operations
		if ops == nil {
			ops = []Operation{}
		}
		return json.Marshal(lineDiffWire{Mode: r.Mode, Counts: counts, Operations: ops})
	case ModeTokenMatch:
		counts, ok := r.Counts.(TokenCounts)
		if !ok {
			return nil, fmt.Errorf("token_match report has %T counts", r.Counts)
		}
		return json.Marshal(tokenMatchWire{Mode: r.Mode, Counts: counts})
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidComparisonMode, r.Mode)
	}
}

// UnmarshalJSON decodes a report, choosing the counts type from the mode.
func (r *DiffReport) UnmarshalJSON(data []byte) error {
	var head struct {
		Mode ComparisonMode `json:"mode"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return err
	}
	switch head.Mode {
	case ModeLineDiff:
		var w lineDiffWire
		if err := json.Unmarshal(data, &w); err != nil {
			return err
		}
		*r = DiffReport{Mode: w.Mode, Counts: w.Counts, Operations: w.Operations}
	case ModeTokenMatch:
		var w tokenMatchWire
		if err := json.Unmarshal(data, &w); err != nil {
			return err
		}
		*r = DiffReport{Mode: w.Mode, Counts: w.Counts}
	default:
		return fmt.Errorf("%w: %q", ErrInvalidComparisonMode, head.Mode)
	}
	return nil
}
