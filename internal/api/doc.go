// Package api exposes the job query/control surface over HTTP.
//
// # Routes
//
//	GET  /health            liveness, no auth
//	GET  /status            scheduler state and job counts per status
//	GET  /jobs              newest first, optional ?status= filter (repeatable)
//	GET  /jobs/:id          single job
//	POST /jobs/:id/retry    retry a failed job in the background (202)
//	POST /trigger           start a scan in the background (202)
//
// Retry answers 404 for an unknown id, 400 when the job is not failed (the
// message names its status), and 409 while the job is being processed.
//
// # Design Notes
//
// Handlers never run pipeline work on the request goroutine; they delegate to
// the Controller, which schedules background work. JSON fields use snake_case
// and timestamps are RFC3339 with milliseconds. When a token is configured
// every route except /health requires "Authorization: Bearer <token>".
package api
