// Package analysis defines the typed result of analyzing a source video and
// the Gemini-backed analyzer that produces it.
//
// Raw model payloads never leave this package: DecodePayload maps the JSON
// response onto Result and Normalize applies the documented defaults and
// clamps (trim window bounds, minimum window, hook text, caption style,
// hashtag cleanup) so downstream steps only see usable values.
package analysis
