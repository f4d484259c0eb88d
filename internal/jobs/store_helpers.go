package jobs

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"reelpipe/internal/captions"
)

const jobColumns = "id, source_id, file_name, status, error_message, local_path, captions_path, output_path, trim_start, trim_end, source_duration, hook_text, suggested_caption, caption_style, hashtags_json, transcript_json, analyzed_at, post_id, created_at, updated_at, completed_at"

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		id               int64
		sourceID         string
		fileName         string
		statusStr        string
		errorMessage     sql.NullString
		localPath        sql.NullString
		captionsPath     sql.NullString
		outputPath       sql.NullString
		trimStart        sql.NullFloat64
		trimEnd          sql.NullFloat64
		sourceDuration   sql.NullFloat64
		hookText         sql.NullString
		suggestedCaption sql.NullString
		captionStyle     sql.NullString
		hashtagsJSON     sql.NullString
		transcriptJSON   sql.NullString
		analyzedRaw      sql.NullString
		postID           sql.NullString
		createdRaw       sql.NullString
		updatedRaw       sql.NullString
		completedRaw     sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&sourceID,
		&fileName,
		&statusStr,
		&errorMessage,
		&localPath,
		&captionsPath,
		&outputPath,
		&trimStart,
		&trimEnd,
		&sourceDuration,
		&hookText,
		&suggestedCaption,
		&captionStyle,
		&hashtagsJSON,
		&transcriptJSON,
		&analyzedRaw,
		&postID,
		&createdRaw,
		&updatedRaw,
		&completedRaw,
	); err != nil {
		return nil, err
	}

	job := &Job{
		ID:               id,
		SourceID:         sourceID,
		FileName:         fileName,
		Status:           Status(statusStr),
		ErrorMessage:     errorMessage.String,
		LocalPath:        localPath.String,
		CaptionsPath:     captionsPath.String,
		OutputPath:       outputPath.String,
		TrimStart:        trimStart.Float64,
		TrimEnd:          trimEnd.Float64,
		SourceDuration:   sourceDuration.Float64,
		HookText:         hookText.String,
		SuggestedCaption: suggestedCaption.String,
		CaptionStyle:     captionStyle.String,
		PostID:           postID.String,
	}
	if hashtagsJSON.Valid && hashtagsJSON.String != "" {
		if err := json.Unmarshal([]byte(hashtagsJSON.String), &job.Hashtags); err != nil {
			return nil, fmt.Errorf("decode hashtags for job %d: %w", id, err)
		}
	}
	if transcriptJSON.Valid && transcriptJSON.String != "" {
		var segments []captions.Segment
		if err := json.Unmarshal([]byte(transcriptJSON.String), &segments); err != nil {
			return nil, fmt.Errorf("decode transcript for job %d: %w", id, err)
		}
		job.Transcript = segments
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		job.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		job.UpdatedAt = updated
	}
	job.AnalyzedAt = parseOptionalTime(analyzedRaw)
	job.CompletedAt = parseOptionalTime(completedRaw)
	return job, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return value.UTC().Format(time.RFC3339Nano)
}

// analysisFloat stores analysis numbers only once the analyze step has run.
func analysisFloat(job *Job, value float64) any {
	if !job.HasAnalysis() {
		return nil
	}
	return value
}

func nullableJSON(value any, empty bool) (any, error) {
	if empty {
		return nil, nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func parseOptionalTime(raw sql.NullString) *time.Time {
	if !raw.Valid {
		return nil
	}
	parsed, err := parseTimeString(raw.String)
	if err != nil {
		return nil
	}
	return &parsed
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

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
