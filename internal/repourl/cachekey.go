package repourl

import (
	"regexp"
	"strings"
)

var (
	nonKeyChars = regexp.MustCompile(`[^a-zA-Z0-9_-]`)
	dashRuns    = regexp.MustCompile(`-+`)
)

// DeriveCacheKey converts a normalized reference into a filesystem-safe
// identifier for the on-disk clone cache. The derivation is deterministic
// and total for any reference produced by Normalize: host and path segments
// are joined with "/", characters outside [a-zA-Z0-9_-] become "-", runs of
// "-" collapse to one, and leading/trailing "-" are trimmed.
//
// The sanitization is best-effort with respect to collisions: distinct
// inputs such as "a/b" and "a-b" map to the same key. No caller relies on
// collision-freedom, so the scheme is kept instead of switching to hashing.
func DeriveCacheKey(ref NormalizedRepoRef) string {
	return sanitizeKey(ref.Host + "/" + ref.ProjectPathString())
}

func sanitizeKey(s string) string {
	s = nonKeyChars.ReplaceAllString(s, "-")
	s = dashRuns.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}
