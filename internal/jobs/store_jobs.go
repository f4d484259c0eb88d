package jobs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrDuplicateSource is returned by Create when a job already exists for the
// source id.
var ErrDuplicateSource = errors.New("job already exists for source")

// Create inserts a pending job for a newly discovered source item.
func (s *Store) Create(ctx context.Context, sourceID, fileName string) (*Job, error) {
	sourceID = strings.TrimSpace(sourceID)
	if sourceID == "" {
		return nil, errors.New("source id is required")
	}
	if strings.TrimSpace(fileName) == "" {
		return nil, errors.New("file name is required")
	}
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)

	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO jobs (source_id, file_name, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		sourceID,
		fileName,
		StatusPending,
		timestamp,
		timestamp,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateSource, sourceID)
		}
		return nil, fmt.Errorf("insert job: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

// GetByID fetches a job by identifier. A missing job yields (nil, nil).
func (s *Store) GetByID(ctx context.Context, id int64) (*Job, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// FindBySourceID returns the job for an external source id, or (nil, nil).
func (s *Store) FindBySourceID(ctx context.Context, sourceID string) (*Job, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+jobColumns+` FROM jobs WHERE source_id = ?`, sourceID)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find by source id: %w", err)
	}
	return job, nil
}

// Update persists the whole job record, bumping UpdatedAt.
func (s *Store) Update(ctx context.Context, job *Job) error {
	if job == nil {
		return errors.New("job is nil")
	}
	hashtags, err := nullableJSON(job.Hashtags, job.Hashtags == nil)
	if err != nil {
		return fmt.Errorf("encode hashtags: %w", err)
	}
	transcript, err := nullableJSON(job.Transcript, job.Transcript == nil)
	if err != nil {
		return fmt.Errorf("encode transcript: %w", err)
	}
	job.UpdatedAt = time.Now().UTC()

	res, err := s.execWithRetry(
		ctx,
		`UPDATE jobs
         SET file_name = ?, status = ?, error_message = ?, local_path = ?, captions_path = ?,
             output_path = ?, trim_start = ?, trim_end = ?, source_duration = ?, hook_text = ?,
             suggested_caption = ?, caption_style = ?, hashtags_json = ?, transcript_json = ?,
             analyzed_at = ?, post_id = ?, updated_at = ?, completed_at = ?
         WHERE id = ?`,
		job.FileName,
		job.Status,
		nullableString(job.ErrorMessage),
		nullableString(job.LocalPath),
		nullableString(job.CaptionsPath),
		nullableString(job.OutputPath),
		analysisFloat(job, job.TrimStart),
		analysisFloat(job, job.TrimEnd),
		analysisFloat(job, job.SourceDuration),
		nullableString(job.HookText),
		nullableString(job.SuggestedCaption),
		nullableString(job.CaptionStyle),
		hashtags,
		transcript,
		nullableTime(job.AnalyzedAt),
		nullableString(job.PostID),
		job.UpdatedAt.Format(time.RFC3339Nano),
		nullableTime(job.CompletedAt),
		job.ID,
	)
	if err != nil {
		return fmt.Errorf("update job %d: %w", job.ID, err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return fmt.Errorf("update job %d: no such job", job.ID)
	}
	return nil
}

// List returns jobs newest first, optionally filtered by status.
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs`
	args := make([]any, 0, len(statuses))
	if len(statuses) > 0 {
		query += ` WHERE status IN (` + makePlaceholders(len(statuses)) + `)`
		for _, status := range statuses {
			args = append(args, status)
		}
	}
	query += ` ORDER BY id DESC`

	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var out []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		out = append(out, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate jobs: %w", err)
	}
	return out, nil
}

// CountByStatus returns the number of jobs in each status.
func (s *Store) CountByStatus(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), `SELECT status, COUNT(1) FROM jobs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count jobs: %w", err)
	}
	defer rows.Close()

	counts := make(map[Status]int)
	for rows.Next() {
		var (
			status string
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[Status(status)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate counts: %w", err)
	}
	return counts, nil
}
