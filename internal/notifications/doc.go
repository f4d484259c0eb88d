// Package notifications delivers pipeline events via ntfy.
//
// NewService publishes to the topic URL configured in config.toml and
// degrades to a no-op when no topic is set. Each event kind can be switched
// off individually; suppressed events return nil without a request.
package notifications
