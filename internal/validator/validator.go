package validator

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/UCL-RITS/Submitty/internal/grading"
	"github.com/UCL-RITS/Submitty/internal/report"
	"github.com/UCL-RITS/Submitty/internal/store"
	"github.com/UCL-RITS/Submitty/pkg/types"
)

var (
	// ErrExpectedOutputMissing aborts a run: without the instructor's output
	// nothing can be graded fairly.
	ErrExpectedOutputMissing = errors.New("expected output missing")
	ErrMissingDirectory      = errors.New("directory not found")
)

// Submission identifies one student submission on disk.
type Submission struct {
	// Dir is the submission directory containing .submit.out/.
	Dir string
	// Student is recorded in the award history; empty uses the directory name.
	Student string
	Number  int
	Time    time.Time
}

// Option configures a Validator.
type Option func(*Validator)

// WithBatch grades through b instead of a sequential batch.
func WithBatch(b *grading.Batch) Option {
	return func(v *Validator) { v.batch = b }
}

// WithHistory records every award in h.
func WithHistory(h *store.HistoryStore) Option {
	return func(v *Validator) { v.history = h }
}

func WithLogger(l *slog.Logger) Option {
	return func(v *Validator) { v.logger = l }
}

// WithClock overrides the time source used when a submission has no time.
func WithClock(now func() time.Time) Option {
	return func(v *Validator) { v.now = now }
}

// Validator grades submissions of one assignment and writes the grade files.
type Validator struct {
	assignment *types.Assignment
	batch      *grading.Batch
	history    *store.HistoryStore
	logger     *slog.Logger
	now        func() time.Time
}

// New returns a Validator for assignment.
func New(assignment *types.Assignment, opts ...Option) *Validator {
	v := &Validator{
		assignment: assignment,
		logger:     slog.Default(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	if v.batch == nil {
		v.batch = grading.NewBatch(grading.NewGrader(nil), 1)
	}
	return v
}

// Run grades sub against every test case, writes testN_diff.json,
// GRADES/testN_grade.txt, GRADES/grade.txt and submission.json, and records
// the awards in the history store when one is configured.
func (v *Validator) Run(ctx context.Context, sub Submission) (*report.Submission, error) {
	layout := Layout{Dir: sub.Dir}
	for _, dir := range []string{layout.Dir, layout.OutputDir()} {
		if err := checkDir(dir); err != nil {
			return nil, err
		}
	}
	if err := os.MkdirAll(layout.GradesDir(), 0o755); err != nil {
		return nil, fmt.Errorf("create grades dir: %w", err)
	}

	cases, entries, err := v.load(layout)
	if err != nil {
		return nil, err
	}

	outcomes, err := v.batch.GradeAll(ctx, cases)
	if err != nil {
		return nil, fmt.Errorf("grade submission %s: %w", sub.Dir, err)
	}

	submitted := sub.Time
	if submitted.IsZero() {
		submitted = v.now()
	}
	rep := &report.Submission{
		Name:    v.assignment.Name,
		Number:  sub.Number,
		Time:    submitted,
		Entries: entries,
	}

	for i, o := range outcomes {
		n := i + 1
		rep.Entries[i].Outcome = o
		v.logger.Info("graded test case",
			"test", o.TestCase.Title, "grade", o.Grade, "award", o.Award, "points", o.TestCase.Points)
		for _, a := range o.Advisories {
			v.logger.Warn("stream advisory", "test", o.TestCase.Title, "stream", a.Stream, "level", a.Level, "message", a.Message)
		}

		diff, err := report.GenerateDiffJSON(o)
		if err != nil {
			return nil, err
		}
		if err := os.WriteFile(layout.DiffFile(n), diff, 0o644); err != nil {
			return nil, fmt.Errorf("write diff: %w", err)
		}
		if err := writeGrade(layout.GradeFile(n), o.Award); err != nil {
			return nil, err
		}
	}

	total, _ := rep.Totals()
	if err := writeGrade(layout.TotalGradeFile(), total); err != nil {
		return nil, err
	}

	summary, err := report.GenerateJSONReport(rep)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(layout.SummaryFile(), summary, 0o644); err != nil {
		return nil, fmt.Errorf("write submission summary: %w", err)
	}

	v.logger.Info("graded submission", "dir", sub.Dir, "number", sub.Number, "total", total)

	if v.history != nil {
		v.record(ctx, sub, outcomes)
	}
	return rep, nil
}

// load reads every text the test cases need. A missing student output is
// graded as empty; a missing expected output is fatal.
func (v *Validator) load(layout Layout) ([]types.GradeCase, []report.Entry, error) {
	cases := make([]types.GradeCase, 0, len(v.assignment.TestCases))
	entries := make([]report.Entry, 0, len(v.assignment.TestCases))

	for i, tc := range v.assignment.TestCases {
		n := i + 1

		expectedPath := filepath.Join(v.assignment.ExpectedDir, tc.ExpectedFile)
		expected, err := os.ReadFile(expectedPath)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, nil, fmt.Errorf("%w: %s for %q", ErrExpectedOutputMissing, expectedPath, tc.Title)
			}
			return nil, nil, fmt.Errorf("read expected output: %w", err)
		}

		studentPath := layout.StudentFile(tc.StudentFile)
		student, err := os.ReadFile(studentPath)
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, nil, fmt.Errorf("read student output: %w", err)
			}
			v.logger.Warn("student output missing, grading as empty", "test", tc.Title, "file", studentPath)
		}

		cout, err := readCapture(layout.CoutFile(n))
		if err != nil {
			return nil, nil, err
		}
		cerr, err := readCapture(layout.CerrFile(n))
		if err != nil {
			return nil, nil, err
		}

		cases = append(cases, types.GradeCase{
			TestCase: tc,
			Student:  string(student),
			Expected: string(expected),
			Cout:     cout,
			Cerr:     cerr,
		})
		entries = append(entries, report.Entry{
			InstructorFile: expectedPath,
			StudentFile:    tc.StudentFile,
			DiffFile:       DiffName(n),
		})
	}
	return cases, entries, nil
}

func (v *Validator) record(ctx context.Context, sub Submission, outcomes []grading.Outcome) {
	student := sub.Student
	if student == "" {
		student = filepath.Base(filepath.Clean(sub.Dir))
	}
	runID := uuid.NewString()
	for _, o := range outcomes {
		rec := store.AwardRecord{
			RunID:      runID,
			Submission: student,
			TestName:   o.TestCase.Title,
			Mode:       o.TestCase.Comparison,
			Grade:      o.Grade,
			Award:      o.Award,
			Points:     o.TestCase.Points,
		}
		if err := v.history.Record(ctx, rec); err != nil {
			v.logger.Warn("failed to record award history", "run_id", runID, "test", o.TestCase.Title, "err", err)
		}
	}
}

// readCapture returns nil when the capture file does not exist.
func readCapture(path string) (*string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read capture: %w", err)
	}
	s := string(data)
	return &s, nil
}

func checkDir(dir string) error {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrMissingDirectory, dir)
	}
	return nil
}

func writeGrade(path string, points int) error {
	if err := os.WriteFile(path, []byte(strconv.Itoa(points)+"\n"), 0o644); err != nil {
		return fmt.Errorf("write grade: %w", err)
	}
	return nil
}
