package api

import (
	"time"

	"reelpipe/internal/jobs"
)

// FromJob converts a stored job into its API representation.
func FromJob(job *jobs.Job) Job {
	if job == nil {
		return Job{}
	}
	out := Job{
		ID:               job.ID,
		SourceID:         job.SourceID,
		FileName:         job.FileName,
		Status:           string(job.Status),
		Error:            job.ErrorMessage,
		HookText:         job.HookText,
		SuggestedCaption: job.SuggestedCaption,
		Hashtags:         job.Hashtags,
		CaptionStyle:     job.CaptionStyle,
		PostID:           job.PostID,
		OutputPath:       job.OutputPath,
		CreatedAt:        formatTime(job.CreatedAt),
		UpdatedAt:        formatTime(job.UpdatedAt),
	}
	if job.HasAnalysis() {
		start, end := job.TrimStart, job.TrimEnd
		out.TrimStart = &start
		out.TrimEnd = &end
	}
	if job.CompletedAt != nil {
		out.CompletedAt = formatTime(*job.CompletedAt)
	}
	return out
}

// FromJobs converts a slice of jobs, preserving order.
func FromJobs(list []*jobs.Job) []Job {
	out := make([]Job, 0, len(list))
	for _, job := range list {
		out = append(out, FromJob(job))
	}
	return out
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}
