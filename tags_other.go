//go:build !darwin

package lucien

// ApplyFinderTags is a no-op off macOS; there is no Finder to tag for.
func ApplyFinderTags(string, []string) error {
	return nil
}
