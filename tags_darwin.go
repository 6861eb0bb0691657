//go:build darwin

package lucien

import (
	"fmt"
	"os/exec"
	"strings"
)

// ApplyFinderTags sets Finder tags through the `tag` CLI. Returns an error
// when the tool is not installed; callers treat tagging as best-effort.
func ApplyFinderTags(path string, tags []string) error {
	bin, err := exec.LookPath("tag")
	if err != nil {
		return fmt.Errorf("tag tool not installed: %w", err)
	}
	cmd := exec.Command(bin, "--add", strings.Join(tags, ","), path)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("apply tags: %v: %s", err, out)
	}
	return nil
}
