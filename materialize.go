package lucien

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/jward/lucien/internal/catalog"
)

// TagFunc applies filesystem tags to a placed file. Platform-specific; a
// nil TagFunc disables tagging.
type TagFunc func(path string, tags []string) error

// Materializer builds the staging mirror from plan rows. The mirror is
// disposable: sources are never modified, so a bad mirror can be deleted
// and rebuilt.
type Materializer struct {
	cat       *catalog.Catalog
	root      string
	applyTags TagFunc
	Progress  func(target string, err error) // optional, per row
}

func NewMaterializer(cat *catalog.Catalog, stagingRoot string, applyTags TagFunc) *Materializer {
	return &Materializer{cat: cat, root: stagingRoot, applyTags: applyTags}
}

// MaterializeStats summarizes a materialization pass.
type MaterializeStats struct {
	Placed int
	Tagged int
	Errors int
}

// Run places every plan row from planRunID under the staging root.
// Per-row failures are counted and reported, never fatal.
func (m *Materializer) Run(planRunID int64) (*MaterializeStats, error) {
	plans, err := m.cat.PlansByRun(planRunID)
	if err != nil {
		return nil, fmt.Errorf("plans for run %d: %w", planRunID, err)
	}

	stats := &MaterializeStats{}
	for _, p := range plans {
		target := filepath.Join(m.root, p.TargetPath, p.TargetFilename)
		err := m.place(p, target)
		if err != nil {
			stats.Errors++
		} else {
			stats.Placed++
			if m.applyTags != nil && len(p.Tags) > 0 {
				if tagErr := m.applyTags(target, p.Tags); tagErr == nil {
					stats.Tagged++
				}
			}
		}
		if m.Progress != nil {
			m.Progress(target, err)
		}
	}
	return stats, nil
}

func (m *Materializer) place(p *catalog.Plan, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("create target dir: %w", err)
	}
	// Re-materializing over an existing mirror replaces entries.
	if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove stale target: %w", err)
	}

	switch p.Operation {
	case "hardlink":
		if err := os.Link(p.SourcePath, target); err != nil {
			return fmt.Errorf("hardlink: %w", err)
		}
		return nil
	case "copy":
		return copyFile(p.SourcePath, target)
	default:
		return fmt.Errorf("unknown operation %q", p.Operation)
	}
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create target: %w", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copy: %w", err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("close target: %w", err)
	}
	return nil
}
