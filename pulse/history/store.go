package history

import (
	"database/sql"
	"time"

	"github.com/teranos/nanoprobe/errors"
)

// Store handles persistence of execution history
type Store struct {
	db *sql.DB
}

// NewStore creates a new execution store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

const selectColumns = `
	SELECT id, resource, command, status,
	       started_at, completed_at, duration_ms,
	       how_died, exit_code, core_dumped, timed_out, output,
	       created_at, updated_at
	FROM resource_executions
`

// CreateExecution inserts a new execution record
func (s *Store) CreateExecution(exec *Execution) error {
	query := `
		INSERT INTO resource_executions (
			id, resource, command, status,
			started_at, completed_at, duration_ms,
			how_died, exit_code, core_dumped, timed_out, output,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.Exec(query,
		exec.ID,
		exec.Resource,
		exec.Command,
		exec.Status,
		exec.StartedAt,
		nullable(exec.CompletedAt),
		nullable(exec.DurationMs),
		nullable(exec.HowDied),
		nullable(exec.ExitCode),
		exec.CoreDumped,
		exec.TimedOut,
		nullable(exec.Output),
		exec.CreatedAt,
		exec.UpdatedAt,
	)
	if err != nil {
		return errors.Wrapf(err, "failed to create execution %s", exec.ID)
	}

	return nil
}

// CompleteExecution records the outcome of a running execution
func (s *Store) CompleteExecution(exec *Execution) error {
	query := `
		UPDATE resource_executions
		SET status = ?,
		    completed_at = ?,
		    duration_ms = ?,
		    how_died = ?,
		    exit_code = ?,
		    core_dumped = ?,
		    timed_out = ?,
		    output = ?,
		    updated_at = ?
		WHERE id = ?
	`

	result, err := s.db.Exec(query,
		exec.Status,
		nullable(exec.CompletedAt),
		nullable(exec.DurationMs),
		nullable(exec.HowDied),
		nullable(exec.ExitCode),
		exec.CoreDumped,
		exec.TimedOut,
		nullable(exec.Output),
		exec.UpdatedAt,
		exec.ID,
	)
	if err != nil {
		return errors.Wrapf(err, "failed to complete execution %s", exec.ID)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to check rows affected")
	}
	if rowsAffected == 0 {
		return errors.NewNotFoundError("execution %s", exec.ID)
	}

	return nil
}

// GetExecution retrieves an execution by ID
func (s *Store) GetExecution(id string) (*Execution, error) {
	exec, err := scanExecution(s.db.QueryRow(selectColumns+" WHERE id = ?", id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.NewNotFoundError("execution %s", id)
		}
		return nil, errors.Wrap(err, "failed to get execution")
	}
	return exec, nil
}

// ListExecutions returns one page of executions, newest first, with the total matching count.
// Empty resource or status means no filter on that column.
func (s *Store) ListExecutions(resource string, limit, offset int, status string) ([]*Execution, int, error) {
	where := " WHERE 1 = 1"
	var args []interface{}

	if resource != "" {
		where += " AND resource = ?"
		args = append(args, resource)
	}
	if status != "" {
		where += " AND status = ?"
		args = append(args, status)
	}

	var total int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM resource_executions"+where, args...).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, "failed to count executions")
	}

	query := selectColumns + where + " ORDER BY started_at DESC, id LIMIT ? OFFSET ?"
	executions, err := s.query(query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, errors.Wrap(err, "failed to list executions")
	}

	return executions, total, nil
}

// ListRecent returns finished executions across all resources that completed after since
func (s *Store) ListRecent(since time.Time, limit int) ([]*Execution, error) {
	query := selectColumns + `
		WHERE status != ? AND completed_at > ?
		ORDER BY completed_at DESC
		LIMIT ?
	`
	executions, err := s.query(query, StatusRunning, FormatTime(since), limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list recent executions")
	}
	return executions, nil
}

// FailAbandoned closes out executions left running by a previous process.
// Returns the number of executions updated.
func (s *Store) FailAbandoned(now time.Time) (int, error) {
	ts := FormatTime(now)
	result, err := s.db.Exec(`
		UPDATE resource_executions
		SET status = ?, how_died = 'other', completed_at = ?, updated_at = ?,
		    output = COALESCE(output, 'agent stopped before the command completed')
		WHERE status = ?
	`, StatusFailed, ts, ts, StatusRunning)
	if err != nil {
		return 0, errors.Wrap(err, "failed to close abandoned executions")
	}

	updated, err := result.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "failed to get rows affected")
	}
	return int(updated), nil
}

// CleanupOldExecutions deletes executions started more than retentionDays ago.
// Returns the number of executions deleted.
func (s *Store) CleanupOldExecutions(retentionDays int) (int, error) {
	cutoff := FormatTime(time.Now().AddDate(0, 0, -retentionDays))

	result, err := s.db.Exec(`DELETE FROM resource_executions WHERE started_at < ?`, cutoff)
	if err != nil {
		return 0, errors.Wrap(err, "failed to cleanup old executions")
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "failed to get rows affected")
	}

	return int(deleted), nil
}

func (s *Store) query(query string, args ...interface{}) ([]*Execution, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var executions []*Execution
	for rows.Next() {
		exec, err := scanExecution(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan execution")
		}
		executions = append(executions, exec)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "error iterating executions")
	}
	return executions, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanExecution(row rowScanner) (*Execution, error) {
	var exec Execution
	var completedAt, howDied, output sql.NullString
	var durationMs, exitCode sql.NullInt64

	err := row.Scan(
		&exec.ID,
		&exec.Resource,
		&exec.Command,
		&exec.Status,
		&exec.StartedAt,
		&completedAt,
		&durationMs,
		&howDied,
		&exitCode,
		&exec.CoreDumped,
		&exec.TimedOut,
		&output,
		&exec.CreatedAt,
		&exec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if completedAt.Valid {
		exec.CompletedAt = &completedAt.String
	}
	if durationMs.Valid {
		d := int(durationMs.Int64)
		exec.DurationMs = &d
	}
	if howDied.Valid {
		exec.HowDied = &howDied.String
	}
	if exitCode.Valid {
		rc := int(exitCode.Int64)
		exec.ExitCode = &rc
	}
	if output.Valid {
		exec.Output = &output.String
	}

	return &exec, nil
}

// nullable turns a nil pointer into SQL NULL
func nullable[T any](p *T) interface{} {
	if p == nil {
		return nil
	}
	return *p
}
