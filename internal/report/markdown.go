package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/UCL-RITS/Submitty/internal/compare"
	"github.com/UCL-RITS/Submitty/internal/grading"
)

// maxDetailLines bounds the changed lines or tokens listed per test case.
const maxDetailLines = 20

// GenerateMarkdown writes a Markdown report of s to w. now is used for the
// relative submission time.
func GenerateMarkdown(w io.Writer, s *Submission, now time.Time) error {
	title := s.Name
	if title == "" {
		title = "Submission"
	}
	if _, err := fmt.Fprintf(w, "## %s #%d\n\n", title, s.Number); err != nil {
		return err
	}

	if !s.Time.IsZero() {
		if _, err := fmt.Fprintf(w, "**Submitted:** %s (%s)\n\n",
			s.Time.UTC().Format(time.RFC3339), humanize.RelTime(s.Time, now, "ago", "from now")); err != nil {
			return err
		}
	}

	awarded, available := s.Totals()
	if _, err := fmt.Fprintf(w, "**Score:** %s / %s points across %d test cases\n\n",
		humanize.Comma(int64(awarded)), humanize.Ftoa(available), len(s.Entries)); err != nil {
		return err
	}

	if len(s.Entries) == 0 {
		_, err := fmt.Fprintln(w, "_No test cases graded._")
		return err
	}

	if _, err := fmt.Fprintln(w, "| Test | Mode | Grade | Points | Notes |"); err != nil {
		return err
	}
	if _, err := fmt.Fprintln(w, "|------|------|-------|--------|-------|"); err != nil {
		return err
	}
	for _, e := range s.Entries {
		o := e.Outcome
		notes := make([]string, 0, len(o.Advisories))
		for _, a := range o.Advisories {
			notes = append(notes, advisoryIcon(a.Level)+" "+escapeCell(a.Message))
		}
		if _, err := fmt.Fprintf(w, "| %s %s | `%s` | %.3f | %d / %s | %s |\n",
			gradeIcon(o.Grade), escapeCell(o.TestCase.Title), o.TestCase.Comparison,
			o.Grade, o.Award, humanize.Ftoa(o.TestCase.Points), strings.Join(notes, "<br>")); err != nil {
			return err
		}
	}

	for _, e := range s.Entries {
		if err := writeDetails(w, e.Outcome); err != nil {
			return err
		}
	}
	return nil
}

func writeDetails(w io.Writer, o grading.Outcome) error {
	switch r := o.Result.(type) {
	case compare.DifferenceResult:
		return writeLineDetails(w, o.TestCase.Title, r)
	case compare.TokensResult:
		return writeTokenDetails(w, o.TestCase.Title, r)
	}
	return nil
}

func writeLineDetails(w io.Writer, title string, r compare.DifferenceResult) error {
	if r.Counts.MatchedLines == r.Counts.TotalExpectedLines && r.Counts.MatchedLines == r.Counts.TotalStudentLines {
		return nil
	}
	c := r.Counts
	if _, err := fmt.Fprintf(w, "\n### %s\n\n%d matched, %d changed, %d inserted, %d deleted of %d expected lines.\n\n",
		title, c.MatchedLines, c.ChangedLines, c.InsertedLines, c.DeletedLines, c.TotalExpectedLines); err != nil {
		return err
	}

	dmp := diffmatchpatch.New()
	shown := 0
	for _, e := range r.Edits {
		if e.Kind == compare.Match {
			continue
		}
		if shown == maxDetailLines {
			_, err := fmt.Fprintln(w, "- ...")
			return err
		}
		shown++

		var line string
		switch e.Kind {
		case compare.Substitute:
			diffs := dmp.DiffMain(r.Expected[e.B].Text, r.Student[e.A].Text, false)
			diffs = dmp.DiffCleanupSemantic(diffs)
			line = fmt.Sprintf("- line %d: %s", r.Expected[e.B].Number, highlight(diffs))
		case compare.Delete:
			line = fmt.Sprintf("- extra line %d: `%s`", r.Student[e.A].Number, r.Student[e.A].Text)
		case compare.Insert:
			line = fmt.Sprintf("- missing line %d: `%s`", r.Expected[e.B].Number, r.Expected[e.B].Text)
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

// highlight renders expected→student character edits: removed expected text
// is struck through, added student text is bold.
func highlight(diffs []diffmatchpatch.Diff) string {
	var sb strings.Builder
	for _, d := range diffs {
		if d.Text == "" {
			continue
		}
		switch d.Type {
		case diffmatchpatch.DiffEqual:
			sb.WriteString(d.Text)
		case diffmatchpatch.DiffDelete:
			sb.WriteString("~~" + d.Text + "~~")
		case diffmatchpatch.DiffInsert:
			sb.WriteString("**" + d.Text + "**")
		}
	}
	return sb.String()
}

func writeTokenDetails(w io.Writer, title string, r compare.TokensResult) error {
	if len(r.Missing) == 0 && len(r.Extra) == 0 {
		return nil
	}
	c := r.Counts
	if _, err := fmt.Fprintf(w, "\n### %s\n\n%d of %d expected tokens matched.\n\n",
		title, c.MatchedTokens, c.TotalExpectedTokens); err != nil {
		return err
	}
	if len(r.Missing) > 0 {
		if _, err := fmt.Fprintf(w, "- missing: %s\n", tokenList(r.Missing)); err != nil {
			return err
		}
	}
	if len(r.Extra) > 0 {
		if _, err := fmt.Fprintf(w, "- extra: %s\n", tokenList(r.Extra)); err != nil {
			return err
		}
	}
	return nil
}

func tokenList(tokens []string) string {
	n := min(len(tokens), maxDetailLines)
	quoted := make([]string, 0, n+1)
	for _, t := range tokens[:n] {
		quoted = append(quoted, "`"+t+"`")
	}
	if len(tokens) > n {
		quoted = append(quoted, fmt.Sprintf("and %d more", len(tokens)-n))
	}
	return strings.Join(quoted, ", ")
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", "\\|")
}

func gradeIcon(grade float64) string {
	switch {
	case grade >= 1:
		return ":white_check_mark:"
	case grade > 0:
		return ":warning:"
	default:
		return ":x:"
	}
}

func advisoryIcon(level string) string {
	switch level {
	case grading.LevelWarning:
		return ":warning:"
	case grading.LevelCheck:
		return ":mag:"
	case grading.LevelError:
		return ":x:"
	default:
		return ":grey_question:"
	}
}
