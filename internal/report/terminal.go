package report

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/UCL-RITS/Submitty/internal/grading"
)

// WriteTerminal prints a summary table of s followed by its stream advisories.
func WriteTerminal(w io.Writer, s *Submission) error {
	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Options.SeparateRows = false

	tbl.AppendHeader(table.Row{"#", "Test", "Mode", "Grade", "Points"})
	for i, e := range s.Entries {
		o := e.Outcome
		tbl.AppendRow(table.Row{
			i + 1,
			o.TestCase.Title,
			string(o.TestCase.Comparison),
			fmt.Sprintf("%.3f", o.Grade),
			fmt.Sprintf("%d / %s", o.Award, humanize.Ftoa(o.TestCase.Points)),
		})
	}
	awarded, available := s.Totals()
	tbl.AppendFooter(table.Row{"", "Total", "", "", fmt.Sprintf("%d / %s", awarded, humanize.Ftoa(available))})

	if _, err := fmt.Fprintln(w, tbl.Render()); err != nil {
		return err
	}

	for i, e := range s.Entries {
		for _, a := range e.Outcome.Advisories {
			c := advisoryColor(a.Level)
			if _, err := c.Fprintf(w, "test%d %s: %s\n", i+1, a.Level, a.Message); err != nil {
				return err
			}
		}
	}
	return nil
}

func advisoryColor(level string) *color.Color {
	switch level {
	case grading.LevelWarning:
		return color.New(color.FgYellow)
	case grading.LevelCheck:
		return color.New(color.FgCyan)
	case grading.LevelError:
		return color.New(color.FgRed)
	default:
		return color.New(color.Reset)
	}
}
