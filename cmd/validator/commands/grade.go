package commands

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/UCL-RITS/Submitty/internal/config"
	"github.com/UCL-RITS/Submitty/internal/report"
	"github.com/UCL-RITS/Submitty/internal/validator"
)

const (
	formatTable    = "table"
	formatMarkdown = "markdown"
	formatJSON     = "json"
)

type gradeOptions struct {
	number  int
	time    string
	student string
	format  string
}

// NewGradeCommand grades a submission directory against an assignment file.
func NewGradeCommand(path SettingsPath) *cobra.Command {
	var opts gradeOptions

	cmd := &cobra.Command{
		Use:   "grade <assignment-file> <submission-dir>",
		Short: "Grade a submission directory and write its grade files",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			submitted, err := parseSubmissionTime(opts.time)
			if err != nil {
				return err
			}
			switch opts.format {
			case formatTable, formatMarkdown, formatJSON:
			default:
				return fmt.Errorf("unknown format %q", opts.format)
			}

			assignment, err := config.LoadAssignment(args[0])
			if err != nil {
				return err
			}

			rt, err := newRuntime(cmd.Context(), path, cmd.ErrOrStderr(), true)
			if err != nil {
				return err
			}
			defer rt.Close()

			v := validator.New(assignment,
				validator.WithBatch(rt.batch),
				validator.WithHistory(rt.history),
				validator.WithLogger(rt.logger),
			)
			rep, err := v.Run(cmd.Context(), validator.Submission{
				Dir:     args[1],
				Student: opts.student,
				Number:  opts.number,
				Time:    submitted,
			})
			if err != nil {
				return err
			}
			return writeSubmission(cmd.OutOrStdout(), rep, opts.format)
		},
	}

	cmd.Flags().IntVarP(&opts.number, "number", "n", 1, "submission number")
	cmd.Flags().StringVar(&opts.time, "time", "", "submission time (RFC 3339, default now)")
	cmd.Flags().StringVar(&opts.student, "student", "", "student identifier for the award history (default: directory name)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", formatTable, "output format: table, markdown or json")
	return cmd
}

func parseSubmissionTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse --time: %w", err)
	}
	return t, nil
}

func writeSubmission(w io.Writer, rep *report.Submission, format string) error {
	switch format {
	case formatMarkdown:
		return report.GenerateMarkdown(w, rep, time.Now())
	case formatJSON:
		data, err := report.GenerateJSONReport(rep)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	default:
		return report.WriteTerminal(w, rep)
	}
}
