// Package drive watches a Google Drive folder for new source videos and
// downloads them into the local downloads directory.
//
// Authentication uses a service account: a signed RS256 assertion is
// exchanged for a short-lived access token which is cached until shortly
// before expiry.
package drive
