package pool

import "regexp"

// Failure categories surfaced in the end-of-run summary so operators can
// see aggregate causes without reading per-file logs.
var reasonPatterns = []struct {
	name string
	re   *regexp.Regexp
}{
	{"skip-list", regexp.MustCompile(`^Extension \S+ in skip list`)},
	{"no-extractor", regexp.MustCompile(`^No extractor available`)},
	{"timeout", regexp.MustCompile(`^\S+ timed out`)},
	{"all-failed", regexp.MustCompile(`^All extractors failed`)},
	{"worker-hung", regexp.MustCompile(`^Worker hung`)},
	{"worker-error", regexp.MustCompile(`^Worker error`)},
}

// CategorizeError buckets an extraction error string; unknown text falls
// into "other".
func CategorizeError(errText string) string {
	for _, p := range reasonPatterns {
		if p.re.MatchString(errText) {
			return p.name
		}
	}
	return "other"
}
