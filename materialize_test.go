package lucien

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/lucien/internal/catalog"
)

func seedPlan(t *testing.T, c *catalog.Catalog, planRun int64, p *catalog.Plan) {
	t.Helper()
	scanRun, err := c.CreateRun(catalog.RunTypeScan, nil)
	require.NoError(t, err)
	f := &catalog.File{Path: p.SourcePath, SHA256: "h" + p.SourcePath, Size: 1, Mtime: 1, Ctime: 1, ScanRunID: scanRun}
	_, err = c.UpsertFile(f)
	require.NoError(t, err)
	p.FileID = f.ID
	p.PlanRunID = planRun
	_, err = c.InsertPlan(p)
	require.NoError(t, err)
}

func TestMaterializer_Copy(t *testing.T) {
	t.Parallel()
	c := newTestCatalog(t)
	planRun, err := c.CreateRun(catalog.RunTypePlan, nil)
	require.NoError(t, err)

	src := filepath.Join(t.TempDir(), "a.pdf")
	require.NoError(t, os.WriteFile(src, []byte("content"), 0o644))
	seedPlan(t, c, planRun, &catalog.Plan{
		Operation: "copy", SourcePath: src,
		TargetPath: "03 Financial", TargetFilename: "2024-Chase-Statement.pdf",
	})

	staging := t.TempDir()
	stats, err := NewMaterializer(c, staging, nil).Run(planRun)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Placed)
	assert.Zero(t, stats.Errors)

	placed, err := os.ReadFile(filepath.Join(staging, "03 Financial", "2024-Chase-Statement.pdf"))
	require.NoError(t, err)
	assert.Equal(t, "content", string(placed))
}

func TestMaterializer_Hardlink(t *testing.T) {
	t.Parallel()
	c := newTestCatalog(t)
	planRun, err := c.CreateRun(catalog.RunTypePlan, nil)
	require.NoError(t, err)

	dir := t.TempDir()
	src := filepath.Join(dir, "a.pdf")
	require.NoError(t, os.WriteFile(src, []byte("content"), 0o644))
	seedPlan(t, c, planRun, &catalog.Plan{
		Operation: "hardlink", SourcePath: src,
		TargetPath: "03 Financial", TargetFilename: "linked.pdf",
	})

	staging := filepath.Join(dir, "staging") // same filesystem as the source
	stats, err := NewMaterializer(c, staging, nil).Run(planRun)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Placed)

	target := filepath.Join(staging, "03 Financial", "linked.pdf")
	srcInfo, err := os.Stat(src)
	require.NoError(t, err)
	dstInfo, err := os.Stat(target)
	require.NoError(t, err)
	assert.True(t, os.SameFile(srcInfo, dstInfo), "hardlink shares the inode")
}

func TestMaterializer_PerRowErrorsAreCounted(t *testing.T) {
	t.Parallel()
	c := newTestCatalog(t)
	planRun, err := c.CreateRun(catalog.RunTypePlan, nil)
	require.NoError(t, err)

	good := filepath.Join(t.TempDir(), "good.pdf")
	require.NoError(t, os.WriteFile(good, []byte("ok"), 0o644))
	seedPlan(t, c, planRun, &catalog.Plan{
		Operation: "copy", SourcePath: "/does/not/exist.pdf",
		TargetPath: "x", TargetFilename: "missing.pdf",
	})
	seedPlan(t, c, planRun, &catalog.Plan{
		Operation: "copy", SourcePath: good,
		TargetPath: "x", TargetFilename: "good.pdf",
	})

	staging := t.TempDir()
	stats, err := NewMaterializer(c, staging, nil).Run(planRun)
	require.NoError(t, err, "row failures never abort the run")
	assert.Equal(t, 1, stats.Placed)
	assert.Equal(t, 1, stats.Errors)
}

func TestMaterializer_TagsApplied(t *testing.T) {
	t.Parallel()
	c := newTestCatalog(t)
	planRun, err := c.CreateRun(catalog.RunTypePlan, nil)
	require.NoError(t, err)

	src := filepath.Join(t.TempDir(), "a.pdf")
	require.NoError(t, os.WriteFile(src, []byte("x"), 0o644))
	seedPlan(t, c, planRun, &catalog.Plan{
		Operation: "copy", SourcePath: src,
		TargetPath: "x", TargetFilename: "a.pdf",
		Tags: []string{"important", "warranty"},
	})

	var gotPath string
	var gotTags []string
	tagFn := func(path string, tags []string) error {
		gotPath = path
		gotTags = tags
		return nil
	}

	staging := t.TempDir()
	stats, err := NewMaterializer(c, staging, tagFn).Run(planRun)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Tagged)
	assert.Equal(t, filepath.Join(staging, "x", "a.pdf"), gotPath)
	assert.Equal(t, []string{"important", "warranty"}, gotTags)
}

func TestMaterializer_Rematerialize(t *testing.T) {
	t.Parallel()
	c := newTestCatalog(t)
	planRun, err := c.CreateRun(catalog.RunTypePlan, nil)
	require.NoError(t, err)

	src := filepath.Join(t.TempDir(), "a.pdf")
	require.NoError(t, os.WriteFile(src, []byte("v2"), 0o644))
	seedPlan(t, c, planRun, &catalog.Plan{
		Operation: "copy", SourcePath: src,
		TargetPath: "x", TargetFilename: "a.pdf",
	})

	staging := t.TempDir()
	m := NewMaterializer(c, staging, nil)
	_, err = m.Run(planRun)
	require.NoError(t, err)
	stats, err := m.Run(planRun)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Placed)
	assert.Zero(t, stats.Errors, "re-running replaces existing targets")
}
