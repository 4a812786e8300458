package commands

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/segmentio/encoding/json"
	"github.com/spf13/cobra"

	"github.com/UCL-RITS/Submitty/internal/grading"
	"github.com/UCL-RITS/Submitty/pkg/types"
)

var errNegativePoints = errors.New("--points must be non-negative")

type compareOptions struct {
	mode   string
	points float64
}

// NewCompareCommand compares one student file against one expected file and
// prints the grade and the diff report as JSON.
func NewCompareCommand(path SettingsPath) *cobra.Command {
	var opts compareOptions

	cmd := &cobra.Command{
		Use:   "compare <student-file> <expected-file>",
		Short: "Compare a student output file against an expected output file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(cmd.Context(), path, cmd.ErrOrStderr(), false)
			if err != nil {
				return err
			}
			defer rt.Close()
			return runCompare(cmd.OutOrStdout(), rt.grader, args[0], args[1], opts, cmd.Flags().Changed("points"))
		},
	}

	cmd.Flags().StringVarP(&opts.mode, "mode", "m", string(types.ModeLineDiff), "comparison mode: line_diff or token_match")
	cmd.Flags().Float64VarP(&opts.points, "points", "p", 0, "points available; prints the award when set")
	return cmd
}

func runCompare(w io.Writer, grader *grading.Grader, studentPath, expectedPath string, opts compareOptions, withPoints bool) error {
	mode, err := types.ParseComparisonMode(opts.mode)
	if err != nil {
		return err
	}
	if withPoints && opts.points < 0 {
		return errNegativePoints
	}
	student, err := os.ReadFile(studentPath)
	if err != nil {
		return fmt.Errorf("read student output: %w", err)
	}
	expected, err := os.ReadFile(expectedPath)
	if err != nil {
		return fmt.Errorf("read expected output: %w", err)
	}

	res, err := grader.Compare(string(student), string(expected), mode)
	if err != nil {
		return err
	}

	out := types.CompareResult{Grade: res.Grade(), Report: res.Report()}
	if withPoints {
		num, den := res.Fraction()
		award := grading.AwardFraction(num, den, opts.points)
		out.Award = &award
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
