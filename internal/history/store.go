package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// StartRun records a new run in the running state.
func (s *Store) StartRun(ctx context.Context, id string, startedAt time.Time) error {
	if strings.TrimSpace(id) == "" {
		return errors.New("run id required")
	}
	_, err := s.execWithRetry(ctx,
		`INSERT INTO runs (id, status, started_at) VALUES (?, ?, ?)`,
		id, string(RunRunning), formatTime(startedAt),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// FinishRun stores the final counters and status of a run.
func (s *Store) FinishRun(ctx context.Context, run Run) error {
	finished := time.Now()
	if run.FinishedAt != nil {
		finished = *run.FinishedAt
	}
	res, err := s.execWithRetry(ctx,
		`UPDATE runs SET status = ?, pending = ?, rendered = ?, failed = ?, skipped = ?,
		 error_message = ?, finished_at = ? WHERE id = ?`,
		string(run.Status), run.Pending, run.Rendered, run.Failed, run.Skipped,
		nullableString(run.ErrorMessage), formatTime(finished), run.ID,
	)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("run %s not found", run.ID)
	}
	return nil
}

// RecordAttempt stores one job outcome and returns its row id.
func (s *Store) RecordAttempt(ctx context.Context, attempt Attempt) (int64, error) {
	if strings.TrimSpace(attempt.RunID) == "" || strings.TrimSpace(attempt.JobID) == "" {
		return 0, errors.New("attempt requires run id and job id")
	}
	var exitCode any
	if attempt.ExitCode != nil {
		exitCode = *attempt.ExitCode
	}
	res, err := s.execWithRetry(ctx,
		`INSERT INTO attempts (run_id, job_id, status, exit_code, output_file, log_path,
		 narration_warnings, error_message, started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		attempt.RunID, attempt.JobID, string(attempt.Status), exitCode,
		nullableString(attempt.OutputFile), nullableString(attempt.LogPath),
		attempt.NarrationWarnings, nullableString(attempt.ErrorMessage),
		formatTime(attempt.StartedAt), formatTime(attempt.FinishedAt),
	)
	if err != nil {
		return 0, fmt.Errorf("insert attempt: %w", err)
	}
	return res.LastInsertId()
}

// Runs returns the most recent runs, newest first. limit <= 0 returns all.
func (s *Store) Runs(ctx context.Context, limit int) ([]Run, error) {
	ctx = ensureContext(ctx)
	query := `SELECT id, status, pending, rendered, failed, skipped, error_message, started_at, finished_at
		FROM runs ORDER BY started_at DESC, id DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			run         Run
			status      string
			errMsg      sql.NullString
			startedRaw  string
			finishedRaw sql.NullString
		)
		if err := rows.Scan(&run.ID, &status, &run.Pending, &run.Rendered, &run.Failed, &run.Skipped,
			&errMsg, &startedRaw, &finishedRaw); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		run.Status = RunStatus(status)
		run.ErrorMessage = errMsg.String
		if started, err := parseTimeString(startedRaw); err == nil {
			run.StartedAt = started
		}
		if finishedRaw.Valid {
			if finished, err := parseTimeString(finishedRaw.String); err == nil {
				run.FinishedAt = &finished
			}
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Attempts returns recorded attempts, newest first. A non-empty jobID filters
// to that job. limit <= 0 returns all.
func (s *Store) Attempts(ctx context.Context, jobID string, limit int) ([]Attempt, error) {
	ctx = ensureContext(ctx)
	query := `SELECT id, run_id, job_id, status, exit_code, output_file, log_path,
		narration_warnings, error_message, started_at, finished_at FROM attempts`
	args := []any{}
	if jobID = strings.TrimSpace(jobID); jobID != "" {
		query += " WHERE job_id = ?"
		args = append(args, jobID)
	}
	query += " ORDER BY id DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query attempts: %w", err)
	}
	defer rows.Close()

	var attempts []Attempt
	for rows.Next() {
		attempt, err := scanAttempt(rows)
		if err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		attempts = append(attempts, attempt)
	}
	return attempts, rows.Err()
}

// LastAttempts returns the newest attempt for each job that has one.
func (s *Store) LastAttempts(ctx context.Context) (map[string]Attempt, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, run_id, job_id, status, exit_code, output_file, log_path,
		 narration_warnings, error_message, started_at, finished_at
		 FROM attempts WHERE id IN (SELECT MAX(id) FROM attempts GROUP BY job_id)`)
	if err != nil {
		return nil, fmt.Errorf("query last attempts: %w", err)
	}
	defer rows.Close()

	out := make(map[string]Attempt)
	for rows.Next() {
		attempt, err := scanAttempt(rows)
		if err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		out[attempt.JobID] = attempt
	}
	return out, rows.Err()
}

// Clear removes all runs and attempts, returning the number of runs deleted.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	if _, err := s.execWithRetry(ctx, `DELETE FROM attempts`); err != nil {
		return 0, fmt.Errorf("clear attempts: %w", err)
	}
	res, err := s.execWithRetry(ctx, `DELETE FROM runs`)
	if err != nil {
		return 0, fmt.Errorf("clear runs: %w", err)
	}
	return res.RowsAffected()
}

func scanAttempt(scanner interface{ Scan(dest ...any) error }) (Attempt, error) {
	var (
		attempt     Attempt
		status      string
		exitCode    sql.NullInt64
		outputFile  sql.NullString
		logPath     sql.NullString
		errMsg      sql.NullString
		startedRaw  string
		finishedRaw string
	)
	if err := scanner.Scan(&attempt.ID, &attempt.RunID, &attempt.JobID, &status, &exitCode,
		&outputFile, &logPath, &attempt.NarrationWarnings, &errMsg, &startedRaw, &finishedRaw); err != nil {
		return Attempt{}, err
	}
	attempt.Status = AttemptStatus(status)
	if exitCode.Valid {
		code := int(exitCode.Int64)
		attempt.ExitCode = &code
	}
	attempt.OutputFile = outputFile.String
	attempt.LogPath = logPath.String
	attempt.ErrorMessage = errMsg.String
	if started, err := parseTimeString(startedRaw); err == nil {
		attempt.StartedAt = started
	}
	if finished, err := parseTimeString(finishedRaw); err == nil {
		attempt.FinishedAt = finished
	}
	return attempt, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

// timeLayout keeps a fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(value time.Time) string {
	if value.IsZero() {
		value = time.Now()
	}
	return value.UTC().Format(timeLayout)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}
