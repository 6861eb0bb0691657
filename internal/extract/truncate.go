package extract

import "fmt"

// Truncate bounds text to max characters by keeping the first and last
// max/2, joined by a marker. Counts are in runes so multi-byte text is not
// split mid-character.
func Truncate(text string, max int) string {
	if max <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	half := max / 2
	head := string(runes[:half])
	tail := string(runes[len(runes)-half:])
	return fmt.Sprintf("%s\n\n[... text truncated to %d characters ...]\n\n%s", head, max, tail)
}
