// Package publish posts rendered videos to social platforms through the
// Postiz public API: the media file is uploaded first, then a single post is
// created that fans out to every configured integration.
package publish
