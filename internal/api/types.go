package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// serviceName is reported by the health endpoint.
const serviceName = "reelpipe"

// Job describes a pipeline job in a transport-friendly format.
type Job struct {
	ID               int64    `json:"id"`
	SourceID         string   `json:"source_id"`
	FileName         string   `json:"file_name"`
	Status           string   `json:"status"`
	Error            string   `json:"error,omitempty"`
	HookText         string   `json:"hook_text,omitempty"`
	SuggestedCaption string   `json:"suggested_caption,omitempty"`
	Hashtags         []string `json:"hashtags,omitempty"`
	CaptionStyle     string   `json:"caption_style,omitempty"`
	TrimStart        *float64 `json:"trim_start,omitempty"`
	TrimEnd          *float64 `json:"trim_end,omitempty"`
	PostID           string   `json:"post_id,omitempty"`
	OutputPath       string   `json:"output_path,omitempty"`
	CreatedAt        string   `json:"created_at,omitempty"`
	UpdatedAt        string   `json:"updated_at,omitempty"`
	CompletedAt      string   `json:"completed_at,omitempty"`
}

// JobListResponse wraps job listings.
type JobListResponse struct {
	Jobs []Job `json:"jobs"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

// StatusResponse summarizes scheduler state.
type StatusResponse struct {
	Running   bool           `json:"running"`
	LastError string         `json:"last_error,omitempty"`
	Active    int            `json:"active"`
	Counts    map[string]int `json:"counts"`
}

// AcceptedResponse acknowledges background work.
type AcceptedResponse struct {
	Message string `json:"message"`
	JobID   int64  `json:"job_id,omitempty"`
}

// ErrorResponse carries a human-readable failure.
type ErrorResponse struct {
	Error string `json:"error"`
}
