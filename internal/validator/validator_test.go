package validator_test

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/segmentio/encoding/json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/UCL-RITS/Submitty/internal/grading"
	"github.com/UCL-RITS/Submitty/internal/report"
	"github.com/UCL-RITS/Submitty/internal/store"
	"github.com/UCL-RITS/Submitty/internal/validator"
	"github.com/UCL-RITS/Submitty/pkg/types"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func write(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func read(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

// fixture builds an assignment with an expected directory and a submission
// directory holding student output for every test case.
func fixture(t *testing.T) (*types.Assignment, string) {
	t.Helper()
	root := t.TempDir()
	expectedDir := filepath.Join(root, "expected")
	subDir := filepath.Join(root, "alice")

	write(t, filepath.Join(expectedDir, "exp1.txt"), "1\n2\n3\n")
	write(t, filepath.Join(expectedDir, "exp2.txt"), "x y z")
	write(t, filepath.Join(expectedDir, "exp3.txt"), "done\n")

	write(t, filepath.Join(subDir, ".submit.out", "out1.txt"), "1\n5\n3\n")
	write(t, filepath.Join(subDir, ".submit.out", "out2.txt"), "y x")
	write(t, filepath.Join(subDir, ".submit.out", "out3.txt"), "done\n")
	write(t, filepath.Join(subDir, ".submit.out", "test1_cout.txt"), "debugging\n")

	a := &types.Assignment{
		Name:        "hw1",
		ExpectedDir: expectedDir,
		TestCases: []types.TestCase{
			{Title: "Lines", StudentFile: "out1.txt", ExpectedFile: "exp1.txt", Points: 10,
				CoutCheck: types.PolicyWarnIfNotEmpty, CerrCheck: types.PolicyDontCheck, Comparison: types.ModeLineDiff},
			{Title: "Tokens", StudentFile: "out2.txt", ExpectedFile: "exp2.txt", Points: 10,
				CoutCheck: types.PolicyDontCheck, CerrCheck: types.PolicyCheck, Comparison: types.ModeTokenMatch},
			{Title: "Exact", StudentFile: "out3.txt", ExpectedFile: "exp3.txt", Points: 5,
				CoutCheck: types.PolicyDontCheck, CerrCheck: types.PolicyDontCheck, Comparison: types.ModeLineDiff},
		},
	}
	return a, subDir
}

func TestRun_WritesGradeFiles(t *testing.T) {
	a, subDir := fixture(t)
	v := validator.New(a,
		validator.WithLogger(quietLogger()),
		validator.WithBatch(grading.NewBatch(grading.NewGrader(nil), 3)),
	)

	submitted := time.Date(2024, 2, 1, 9, 30, 0, 0, time.UTC)
	rep, err := v.Run(context.Background(), validator.Submission{Dir: subDir, Number: 2, Time: submitted})
	require.NoError(t, err)

	// Lines: floor(2/3*10)=6, Tokens: floor(2/3*10)=6, Exact: 5.
	awarded, available := rep.Totals()
	assert.Equal(t, 17, awarded)
	assert.InDelta(t, 25.0, available, 0.001)

	layout := validator.Layout{Dir: subDir}
	assert.Equal(t, "6\n", read(t, layout.GradeFile(1)))
	assert.Equal(t, "6\n", read(t, layout.GradeFile(2)))
	assert.Equal(t, "5\n", read(t, layout.GradeFile(3)))
	assert.Equal(t, "17\n", read(t, layout.TotalGradeFile()))

	var diff types.DiffReport
	require.NoError(t, json.Unmarshal([]byte(read(t, layout.DiffFile(1))), &diff))
	assert.Equal(t, types.ModeLineDiff, diff.Mode)
	counts, ok := diff.Counts.(types.LineCounts)
	require.True(t, ok)
	assert.Equal(t, 1, counts.ChangedLines)

	var summary report.JSONReport
	require.NoError(t, json.Unmarshal([]byte(read(t, layout.SummaryFile())), &summary))
	assert.Equal(t, 2, summary.SubmissionNumber)
	assert.Equal(t, "2024-02-01T09:30:00Z", summary.SubmissionTime)
	assert.Equal(t, 17, summary.PointsAwarded)
	require.Len(t, summary.TestCases, 3)
	assert.Equal(t, "Lines", summary.TestCases[0].TestName)
	assert.Equal(t, "test1_diff.json", summary.TestCases[0].Diff.Difference)
	assert.Equal(t, "out1.txt", summary.TestCases[0].Diff.StudentFile)
}

func TestRun_Advisories(t *testing.T) {
	a, subDir := fixture(t)
	rep, err := validator.New(a, validator.WithLogger(quietLogger())).
		Run(context.Background(), validator.Submission{Dir: subDir, Number: 1})
	require.NoError(t, err)

	lines := rep.Entries[0].Outcome.Advisories
	require.Len(t, lines, 1)
	assert.Equal(t, grading.LevelWarning, lines[0].Level)

	// test2_cerr.txt was never captured.
	tokens := rep.Entries[1].Outcome.Advisories
	require.Len(t, tokens, 1)
	assert.Equal(t, grading.LevelError, tokens[0].Level)
	assert.Equal(t, "cerr", tokens[0].Stream)

	assert.Empty(t, rep.Entries[2].Outcome.Advisories)
}

func TestRun_MissingStudentOutputGradesEmpty(t *testing.T) {
	a, subDir := fixture(t)
	require.NoError(t, os.Remove(filepath.Join(subDir, ".submit.out", "out3.txt")))

	rep, err := validator.New(a, validator.WithLogger(quietLogger())).
		Run(context.Background(), validator.Submission{Dir: subDir})
	require.NoError(t, err)

	exact := rep.Entries[2].Outcome
	assert.Equal(t, 0, exact.Award)
	assert.InDelta(t, 0.0, exact.Grade, 0.0001)
}

func TestRun_MissingExpectedOutputAborts(t *testing.T) {
	a, subDir := fixture(t)
	require.NoError(t, os.Remove(filepath.Join(a.ExpectedDir, "exp2.txt")))

	_, err := validator.New(a, validator.WithLogger(quietLogger())).
		Run(context.Background(), validator.Submission{Dir: subDir})
	require.ErrorIs(t, err, validator.ErrExpectedOutputMissing)

	_, statErr := os.Stat(validator.Layout{Dir: subDir}.TotalGradeFile())
	assert.True(t, os.IsNotExist(statErr), "no total grade should be written")
}

func TestRun_MissingOutputDir(t *testing.T) {
	a, _ := fixture(t)

	_, err := validator.New(a, validator.WithLogger(quietLogger())).
		Run(context.Background(), validator.Submission{Dir: t.TempDir()})
	require.ErrorIs(t, err, validator.ErrMissingDirectory)
}

func TestRun_UsesClockWhenTimeUnset(t *testing.T) {
	a, subDir := fixture(t)
	fixed := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

	rep, err := validator.New(a,
		validator.WithLogger(quietLogger()),
		validator.WithClock(func() time.Time { return fixed }),
	).Run(context.Background(), validator.Submission{Dir: subDir})
	require.NoError(t, err)
	assert.Equal(t, fixed, rep.Time)
}

func TestRun_RecordsHistory(t *testing.T) {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	history, err := store.NewHistoryStore(context.Background(), db, store.DriverSQLite)
	require.NoError(t, err)

	a, subDir := fixture(t)
	v := validator.New(a, validator.WithLogger(quietLogger()), validator.WithHistory(history))

	for i := 0; i < 2; i++ {
		_, err := v.Run(context.Background(), validator.Submission{Dir: subDir, Number: i + 1})
		require.NoError(t, err)
	}

	grades, err := history.QueryWindow(context.Background(), "Exact", 10)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 1}, grades)

	mean, _, count, err := history.Stats(context.Background(), "Lines")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.InDelta(t, 2.0/3.0, mean, 1e-9)
}

func TestLayout(t *testing.T) {
	l := validator.Layout{Dir: "/subs/alice"}
	assert.Equal(t, "/subs/alice/.submit.out", l.OutputDir())
	assert.Equal(t, "/subs/alice/.submit.out/test3_cout.txt", l.CoutFile(3))
	assert.Equal(t, "/subs/alice/.submit.out/test3_cerr.txt", l.CerrFile(3))
	assert.Equal(t, "/subs/alice/test2_diff.json", l.DiffFile(2))
	assert.Equal(t, "/subs/alice/GRADES/test2_grade.txt", l.GradeFile(2))
	assert.Equal(t, "/subs/alice/GRADES/grade.txt", l.TotalGradeFile())
	assert.Equal(t, "/subs/alice/submission.json", l.SummaryFile())
}
