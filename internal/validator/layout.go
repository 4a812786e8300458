package validator

import (
	"fmt"
	"path/filepath"
)

const (
	outputDirName  = ".submit.out"
	gradesDirName  = "GRADES"
	totalGradeFile = "grade.txt"
	summaryFile    = "submission.json"
)

// Layout names the files of one submission directory. Test numbers are
// 1-based and follow the order of the assignment's test cases.
type Layout struct {
	Dir string
}

// OutputDir holds the captured program output of the submission.
func (l Layout) OutputDir() string { return filepath.Join(l.Dir, outputDirName) }

// GradesDir receives the per-test and total grade files.
func (l Layout) GradesDir() string { return filepath.Join(l.Dir, gradesDirName) }

func (l Layout) StudentFile(name string) string { return filepath.Join(l.OutputDir(), name) }

func (l Layout) CoutFile(n int) string {
	return filepath.Join(l.OutputDir(), fmt.Sprintf("test%d_cout.txt", n))
}

func (l Layout) CerrFile(n int) string {
	return filepath.Join(l.OutputDir(), fmt.Sprintf("test%d_cerr.txt", n))
}

// DiffName is the diff file name relative to the submission directory.
func DiffName(n int) string { return fmt.Sprintf("test%d_diff.json", n) }

func (l Layout) DiffFile(n int) string { return filepath.Join(l.Dir, DiffName(n)) }

func (l Layout) GradeFile(n int) string {
	return filepath.Join(l.GradesDir(), fmt.Sprintf("test%d_grade.txt", n))
}

func (l Layout) TotalGradeFile() string { return filepath.Join(l.GradesDir(), totalGradeFile) }

func (l Layout) SummaryFile() string { return filepath.Join(l.Dir, summaryFile) }
