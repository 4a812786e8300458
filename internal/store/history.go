package store

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"time"

	"github.com/UCL-RITS/Submitty/pkg/types"
)

// AwardRecord is one graded test case as stored in the history.
type AwardRecord struct {
	RunID      string
	Submission string
	TestName   string
	Mode       types.ComparisonMode
	Grade      float64
	Award      int
	Points     float64
}

// HistoryStore keeps the grade of every test case ever graded, so instructors
// can see how a test case behaves across submissions.
type HistoryStore struct {
	db     *sql.DB
	driver Driver
}

const schemaSQLite = `
CREATE TABLE IF NOT EXISTS award_history (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id      TEXT    NOT NULL,
	submission  TEXT    NOT NULL,
	test_name   TEXT    NOT NULL,
	mode        TEXT    NOT NULL,
	grade       REAL    NOT NULL,
	award       INTEGER NOT NULL,
	points      REAL    NOT NULL,
	created_at  INTEGER NOT NULL
)`

const schemaPostgres = `
CREATE TABLE IF NOT EXISTS award_history (
	id          BIGSERIAL PRIMARY KEY,
	run_id      TEXT             NOT NULL,
	submission  TEXT             NOT NULL,
	test_name   TEXT             NOT NULL,
	mode        TEXT             NOT NULL,
	grade       DOUBLE PRECISION NOT NULL,
	award       INTEGER          NOT NULL,
	points      DOUBLE PRECISION NOT NULL,
	created_at  BIGINT           NOT NULL
)`

const indexDDL = `
CREATE INDEX IF NOT EXISTS idx_award_history_test_ts
ON award_history (test_name, created_at)`

// NewHistoryStore creates the award_history table and index if they don't
// exist, then returns a HistoryStore backed by db.
func NewHistoryStore(ctx context.Context, db *sql.DB, driver Driver) (*HistoryStore, error) {
	schema := schemaSQLite
	if driver == DriverSQLite {
		if _, err := db.ExecContext(ctx, `PRAGMA journal_mode=WAL`); err != nil {
			return nil, fmt.Errorf("set WAL mode: %w", err)
		}
	} else {
		schema = schemaPostgres
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("create award_history table: %w", err)
	}
	if _, err := db.ExecContext(ctx, indexDDL); err != nil {
		return nil, fmt.Errorf("create award_history index: %w", err)
	}

	return &HistoryStore{db: db, driver: driver}, nil
}

// Record inserts one graded test case.
func (h *HistoryStore) Record(ctx context.Context, rec AwardRecord) error {
	_, err := h.db.ExecContext(ctx, rebind(h.driver,
		`INSERT INTO award_history (run_id, submission, test_name, mode, grade, award, points, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
		rec.RunID, rec.Submission, rec.TestName, string(rec.Mode),
		rec.Grade, rec.Award, rec.Points, time.Now().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("record award history: %w", err)
	}
	return nil
}

// QueryWindow returns the last windowSize grades for testName, most recent first.
func (h *HistoryStore) QueryWindow(ctx context.Context, testName string, windowSize int) ([]float64, error) {
	rows, err := h.db.QueryContext(ctx, rebind(h.driver,
		`SELECT grade FROM award_history
		 WHERE test_name = ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT ?`),
		testName, windowSize,
	)
	if err != nil {
		return nil, fmt.Errorf("query window: %w", err)
	}
	defer rows.Close()

	var grades []float64
	for rows.Next() {
		var g float64
		if err := rows.Scan(&g); err != nil {
			return nil, fmt.Errorf("scan grade: %w", err)
		}
		grades = append(grades, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query window rows: %w", err)
	}
	return grades, nil
}

// Stats computes the mean, population standard deviation and count of all
// grades for testName. Returns zero values when no rows exist.
func (h *HistoryStore) Stats(ctx context.Context, testName string) (mean float64, stddev float64, count int, err error) {
	row := h.db.QueryRowContext(ctx, rebind(h.driver,
		`SELECT COUNT(*), COALESCE(AVG(grade), 0.0) FROM award_history WHERE test_name = ?`),
		testName,
	)
	if err = row.Scan(&count, &mean); err != nil {
		return 0, 0, 0, fmt.Errorf("stats query: %w", err)
	}
	if count == 0 {
		return 0, 0, 0, nil
	}

	// SQLite lacks STDDEV_POP.
	rows, err := h.db.QueryContext(ctx, rebind(h.driver,
		`SELECT grade FROM award_history WHERE test_name = ?`),
		testName,
	)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("stats stddev query: %w", err)
	}
	defer rows.Close()

	var sumSqDiff float64
	for rows.Next() {
		var g float64
		if scanErr := rows.Scan(&g); scanErr != nil {
			return 0, 0, 0, fmt.Errorf("stats scan: %w", scanErr)
		}
		diff := g - mean
		sumSqDiff += diff * diff
	}
	if rowErr := rows.Err(); rowErr != nil {
		return 0, 0, 0, fmt.Errorf("stats rows: %w", rowErr)
	}

	stddev = math.Sqrt(sumSqDiff / float64(count))
	return mean, stddev, count, nil
}

// Close closes the underlying database.
func (h *HistoryStore) Close() error {
	return h.db.Close()
}
