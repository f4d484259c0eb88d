// Package httpretry wraps net/http with bounded retries for the external REST
// adapters (Drive, Gemini, Postiz).
//
// Requests are rebuilt for every attempt so bodies can be replayed. Retries
// cover request timeouts, 408, 429, and 5xx responses (honouring
// Retry-After); context cancellation and deadlines are never retried.
package httpretry
