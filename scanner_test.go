package lucien

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/lucien/internal/catalog"
)

func newTestCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c, err := catalog.Open(filepath.Join(t.TempDir(), "index.db"))
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func newScanRun(t *testing.T, c *catalog.Catalog) int64 {
	t.Helper()
	id, err := c.CreateRun(catalog.RunTypeScan, nil)
	require.NoError(t, err)
	return id
}

// writeTree creates files under root from a path→content map.
func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

func defaultScanConfig() ScanConfig {
	return ScanConfig{
		SkipDirs:      []string{".git", "node_modules"},
		HashAlgorithm: "sha256",
	}
}

func TestScanner_RecordsFiles(t *testing.T) {
	t.Parallel()
	c := newTestCatalog(t)
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"a.txt":      "aaa",
		"sub/b.pdf":  "bbbb",
		"sub/c.docx": "ccccc",
	})

	s := NewScanner(c, defaultScanConfig())
	stats, err := s.Run(context.Background(), root, newScanRun(t, c))
	require.NoError(t, err)
	assert.EqualValues(t, 3, stats.FilesScanned)
	assert.EqualValues(t, 12, stats.BytesHashed)
	assert.Zero(t, stats.Errors)

	f, err := c.FileByPath(filepath.Join(root, "a.txt"))
	require.NoError(t, err)
	require.NotNil(t, f)
	// sha256("aaa")
	assert.Equal(t, "9834876dcfb05cb167a5c24953eba58c4ac89b1adf57f28f2f9d09af107ee8f0", f.SHA256)
	require.NotNil(t, f.MimeType)
	assert.Contains(t, *f.MimeType, "text/plain")
}

func TestScanner_RescanIsIdempotent(t *testing.T) {
	t.Parallel()
	c := newTestCatalog(t)
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"one.txt":   "first",
		"two.txt":   "second",
		"three.txt": "third",
	})

	s := NewScanner(c, defaultScanConfig())
	_, err := s.Run(context.Background(), root, newScanRun(t, c))
	require.NoError(t, err)

	before, err := c.FileByPath(filepath.Join(root, "two.txt"))
	require.NoError(t, err)

	// Modify one file, re-scan: row count unchanged, only that digest moves.
	require.NoError(t, os.WriteFile(filepath.Join(root, "two.txt"), []byte("changed"), 0o644))
	_, err = s.Run(context.Background(), root, newScanRun(t, c))
	require.NoError(t, err)

	count, err := c.CountFiles()
	require.NoError(t, err)
	assert.EqualValues(t, 3, count)

	after, err := c.FileByPath(filepath.Join(root, "two.txt"))
	require.NoError(t, err)
	assert.NotEqual(t, before.SHA256, after.SHA256)

	unchanged, err := c.FileByPath(filepath.Join(root, "one.txt"))
	require.NoError(t, err)
	// sha256("first")
	assert.Equal(t, "a7937b64b8caa58f03721bb6bacf5c78cb235febe0e70b1b84cd99541461a08e", unchanged.SHA256)
}

func TestScanner_SkipsConfiguredDirs(t *testing.T) {
	t.Parallel()
	c := newTestCatalog(t)
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"keep.txt":           "x",
		".git/config":        "y",
		"node_modules/a.js":  "z",
		"sub/.git/objects/o": "w",
	})

	s := NewScanner(c, defaultScanConfig())
	stats, err := s.Run(context.Background(), root, newScanRun(t, c))
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats.FilesScanned)
	assert.EqualValues(t, 3, stats.DirsSkipped)
}

func TestScanner_SymlinkCycleTerminates(t *testing.T) {
	t.Parallel()
	c := newTestCatalog(t)
	root := t.TempDir()
	writeTree(t, root, map[string]string{"dir/a.txt": "x"})
	// dir/loop -> root makes a cycle when links are followed.
	require.NoError(t, os.Symlink(root, filepath.Join(root, "dir", "loop")))

	// Default policy ignores symlinks entirely.
	s := NewScanner(c, defaultScanConfig())
	stats, err := s.Run(context.Background(), root, newScanRun(t, c))
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats.FilesScanned)

	// Following links must still terminate via visited-dir tracking.
	cfg := defaultScanConfig()
	cfg.FollowSymlinks = true
	c2 := newTestCatalog(t)
	s2 := NewScanner(c2, cfg)
	stats, err = s2.Run(context.Background(), root, newScanRun(t, c2))
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats.FilesScanned)
}

func TestScanner_DryRunWritesNothing(t *testing.T) {
	t.Parallel()
	c := newTestCatalog(t)
	root := t.TempDir()
	writeTree(t, root, map[string]string{"a.txt": "x"})

	s := NewScanner(c, defaultScanConfig())
	s.DryRun = true
	stats, err := s.Run(context.Background(), root, newScanRun(t, c))
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats.FilesScanned)

	count, err := c.CountFiles()
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestScanner_UnreadableFileCounted(t *testing.T) {
	t.Parallel()
	if os.Getuid() == 0 {
		t.Skip("permission bits do not bind as root")
	}
	c := newTestCatalog(t)
	root := t.TempDir()
	writeTree(t, root, map[string]string{"ok.txt": "x", "secret.txt": "y"})
	require.NoError(t, os.Chmod(filepath.Join(root, "secret.txt"), 0o000))

	s := NewScanner(c, defaultScanConfig())
	stats, err := s.Run(context.Background(), root, newScanRun(t, c))
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats.FilesScanned)
	assert.EqualValues(t, 1, stats.Errors)
}

func TestScanner_Cancellation(t *testing.T) {
	t.Parallel()
	c := newTestCatalog(t)
	root := t.TempDir()
	writeTree(t, root, map[string]string{"a.txt": "x"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := NewScanner(c, defaultScanConfig())
	_, err := s.Run(ctx, root, newScanRun(t, c))
	assert.ErrorIs(t, err, context.Canceled)
}
