package jobs

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"reelpipe/internal/captions"
	"reelpipe/internal/textutil"
)

// Status represents the lifecycle of a job.
type Status string

const (
	StatusPending     Status = "pending"
	StatusDownloading Status = "downloading"
	StatusDownloaded  Status = "downloaded"
	StatusAnalyzing   Status = "analyzing"
	StatusEditing     Status = "editing"
	StatusPosting     Status = "posting"
	StatusDone        Status = "done"
	StatusFailed      Status = "failed"
)

var allStatuses = []Status{
	StatusPending,
	StatusDownloading,
	StatusDownloaded,
	StatusAnalyzing,
	StatusEditing,
	StatusPosting,
	StatusDone,
	StatusFailed,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// AllStatuses returns every status in lifecycle order.
func AllStatuses() []Status {
	out := make([]Status, len(allStatuses))
	copy(out, allStatuses)
	return out
}

// ParseStatus converts a string into a known status.
func ParseStatus(value string) (Status, bool) {
	status := Status(strings.ToLower(strings.TrimSpace(value)))
	_, ok := statusSet[status]
	return status, ok
}

// IsTerminal reports whether no further automatic transition follows.
func (s Status) IsTerminal() bool {
	return s == StatusDone || s == StatusFailed
}

// IsProcessing reports whether a step is actively running for the status.
func (s Status) IsProcessing() bool {
	switch s {
	case StatusDownloading, StatusAnalyzing, StatusEditing, StatusPosting:
		return true
	default:
		return false
	}
}

// Job is the persisted unit of work for one source item.
type Job struct {
	ID           int64
	SourceID     string
	FileName     string
	Status       Status
	ErrorMessage string

	LocalPath    string
	CaptionsPath string
	OutputPath   string

	// Analysis artifacts; valid once AnalyzedAt is set.
	TrimStart        float64
	TrimEnd          float64
	SourceDuration   float64
	HookText         string
	SuggestedCaption string
	CaptionStyle     string
	Hashtags         []string
	Transcript       []captions.Segment
	AnalyzedAt       *time.Time

	PostID string

	CreatedAt   time.Time
	UpdatedAt   time.Time
	CompletedAt *time.Time
}

// SetStatus moves the job to status, stamping CompletedAt on done.
func (j *Job) SetStatus(status Status) {
	j.Status = status
	if status == StatusDone {
		now := time.Now().UTC()
		j.CompletedAt = &now
	}
}

// SetFailed transitions the job to failed with a message.
func (j *Job) SetFailed(message string) {
	j.Status = StatusFailed
	j.ErrorMessage = strings.TrimSpace(message)
	if j.ErrorMessage == "" {
		j.ErrorMessage = "unknown failure"
	}
}

// Stem is the sanitized file name without extension, suffixed with the job
// id. Step artifacts are named from it so retries land on the same paths and
// two sources sharing a file name never share artifacts.
func (j *Job) Stem() string {
	name := textutil.SanitizeFileName(j.FileName)
	stem := strings.TrimSpace(strings.TrimSuffix(name, filepath.Ext(name)))
	if stem == "" {
		return fmt.Sprintf("job-%d", j.ID)
	}
	return fmt.Sprintf("%s-%d", stem, j.ID)
}

// LocalFileName is the name the downloaded source is stored under.
func (j *Job) LocalFileName() string {
	return j.Stem() + filepath.Ext(textutil.SanitizeFileName(j.FileName))
}

// HasAnalysis reports whether the analyze step has populated artifacts.
func (j *Job) HasAnalysis() bool {
	return j.AnalyzedAt != nil
}
