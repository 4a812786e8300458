package config_test

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/UCL-RITS/Submitty/internal/config"
	"github.com/UCL-RITS/Submitty/pkg/types"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadSettings_EmptyFileUsesDefaults(t *testing.T) {
	path := writeFile(t, t.TempDir(), "validator.yaml", "")

	s, err := config.LoadSettings(path)
	require.NoError(t, err)

	assert.Equal(t, config.DefaultLogLevel, s.Log.Level)
	assert.Equal(t, config.DefaultLogFormat, s.Log.Format)
	assert.Equal(t, config.DefaultGradingParallelism, s.Grading.Parallelism)
	assert.False(t, s.History.Enabled())
	assert.Equal(t, config.DefaultServerMaxConcurrent, s.Server.MaxConcurrent)
	assert.InDelta(t, config.DefaultServerRequestsPerSecond, s.Server.RequestsPerSecond, 0.001)
	assert.Equal(t, config.DefaultServerBurst, s.Server.Burst)
}

func TestLoadSettings_FileValues(t *testing.T) {
	content := `log:
  level: DEBUG
  format: json
grading:
  parallelism: 12
history:
  driver: sqlite
  dsn: "file:test.db"
server:
  max_concurrent: 8
  requests_per_second: 50
  burst: 100
`
	path := writeFile(t, t.TempDir(), "validator.yaml", content)

	s, err := config.LoadSettings(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", s.Log.Level)
	assert.Equal(t, "json", s.Log.Format)
	assert.Equal(t, 12, s.Grading.Parallelism)
	assert.True(t, s.History.Enabled())
	assert.Equal(t, "sqlite", s.History.Driver)
	assert.Equal(t, "file:test.db", s.History.DSN)
	assert.Equal(t, 8, s.Server.MaxConcurrent)
	assert.InDelta(t, 50.0, s.Server.RequestsPerSecond, 0.001)
	assert.Equal(t, 100, s.Server.Burst)
}

func TestLoadSettings_EnvOverridesFile(t *testing.T) {
	path := writeFile(t, t.TempDir(), "validator.yaml", "grading:\n  parallelism: 2\n")
	t.Setenv("VALIDATOR_GRADING_PARALLELISM", "9")

	s, err := config.LoadSettings(path)
	require.NoError(t, err)
	assert.Equal(t, 9, s.Grading.Parallelism)
}

func TestLoadSettings_Invalid(t *testing.T) {
	cases := []struct {
		name    string
		content string
		wantErr error
	}{
		{"level", "log:\n  level: loud\n", config.ErrInvalidLogLevel},
		{"format", "log:\n  format: xml\n", config.ErrInvalidLogFormat},
		{"parallelism", "grading:\n  parallelism: 0\n", config.ErrInvalidParallelism},
		{"driver", "history:\n  driver: mysql\n", config.ErrInvalidDriver},
		{"concurrency", "server:\n  max_concurrent: -1\n", config.ErrInvalidConcurrency},
		{"rate", "server:\n  requests_per_second: -5\n", config.ErrInvalidRate},
		{"burst", "server:\n  burst: 0\n", config.ErrInvalidBurst},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeFile(t, t.TempDir(), "validator.yaml", tc.content)
			_, err := config.LoadSettings(path)
			require.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestLoadSettings_MissingExplicitFile(t *testing.T) {
	_, err := config.LoadSettings(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := config.NewLogger(config.LogSettings{Level: "warn", Format: "json"}, &buf)

	logger.Info("hidden")
	logger.Warn("shown", "test", "A")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"msg":"shown"`)
	assert.Contains(t, out, `"test":"A"`)
}

const validAssignment = `name: hw1
expected_dir: expected
testcases:
  - title: Case 1
    student_file: out1.txt
    expected_file: exp1.txt
    points: 10
    cout_check: warn_if_not_empty
    comparison: line_diff
  - title: Case 2
    student_file: out2.txt
    expected_file: exp2.txt
    points: 5.5
    cerr_check: check
    comparison: token_match
`

func TestParseAssignment(t *testing.T) {
	a, err := config.ParseAssignment([]byte(validAssignment))
	require.NoError(t, err)

	assert.Equal(t, "hw1", a.Name)
	require.Len(t, a.TestCases, 2)

	first := a.TestCases[0]
	assert.Equal(t, "Case 1", first.Title)
	assert.Equal(t, "out1.txt", first.StudentFile)
	assert.Equal(t, "exp1.txt", first.ExpectedFile)
	assert.InDelta(t, 10.0, first.Points, 0.001)
	assert.Equal(t, types.PolicyWarnIfNotEmpty, first.CoutCheck)
	assert.Equal(t, types.PolicyDontCheck, first.CerrCheck)
	assert.Equal(t, types.ModeLineDiff, first.Comparison)

	second := a.TestCases[1]
	assert.Equal(t, types.PolicyDontCheck, second.CoutCheck)
	assert.Equal(t, types.PolicyCheck, second.CerrCheck)
	assert.Equal(t, types.ModeTokenMatch, second.Comparison)

	assert.InDelta(t, 15.5, a.MaxPoints(), 0.001)
}

func TestParseAssignment_AcceptsJSON(t *testing.T) {
	data := `{"testcases":[{"title":"t","student_file":"s","expected_file":"e","points":1,"comparison":"line_diff"}]}`
	a, err := config.ParseAssignment([]byte(data))
	require.NoError(t, err)
	require.Len(t, a.TestCases, 1)
}

func TestParseAssignment_Invalid(t *testing.T) {
	cases := map[string]string{
		"empty document":  "",
		"not yaml":        "testcases: [",
		"no testcases":    "name: hw\ntestcases: []\n",
		"unknown mode":    strings.Replace(validAssignment, "token_match", "exact", 1),
		"unknown policy":  strings.Replace(validAssignment, "warn_if_not_empty", "sometimes", 1),
		"negative points": strings.Replace(validAssignment, "points: 10", "points: -1", 1),
		"missing title":   strings.Replace(validAssignment, "  - title: Case 1\n    student_file", "  - student_file", 1),
		"unknown field":   validAssignment + "bonus: 3\n",
		"duplicate title": strings.Replace(validAssignment, "Case 2", "Case 1", 1),
	}

	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := config.ParseAssignment([]byte(data))
			require.ErrorIs(t, err, config.ErrInvalidAssignment)
		})
	}
}

func TestLoadAssignment_ResolvesExpectedDir(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "hw1.yaml", strings.Replace(validAssignment, "name: hw1\n", "", 1))

	a, err := config.LoadAssignment(path)
	require.NoError(t, err)

	assert.Equal(t, "hw1", a.Name)
	assert.Equal(t, filepath.Join(dir, "expected"), a.ExpectedDir)
}
