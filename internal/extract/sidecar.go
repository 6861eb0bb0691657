package extract

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// SidecarStore is the content-addressed directory of extracted-text
// sidecars. Identical source bytes at many paths share one sidecar, so a
// digest that was extracted once never needs extracting again.
type SidecarStore struct {
	root string
}

// NewSidecarStore returns a store rooted at dir. The directory is created
// lazily on first write.
func NewSidecarStore(dir string) *SidecarStore {
	return &SidecarStore{root: dir}
}

// Path returns the sidecar location for a content digest.
func (s *SidecarStore) Path(digest string) string {
	return filepath.Join(s.root, digest+".txt.gz")
}

// Write gzips text to the digest's sidecar and returns its path. Concurrent
// writers of the same digest carry identical content, so last-writer-wins
// is benign.
func (s *SidecarStore) Write(digest, text string) (string, error) {
	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return "", fmt.Errorf("create sidecar dir: %w", err)
	}
	path := s.Path(digest)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create sidecar: %w", err)
	}
	zw := gzip.NewWriter(f)
	if _, err := io.WriteString(zw, text); err != nil {
		zw.Close()
		f.Close()
		return "", fmt.Errorf("write sidecar: %w", err)
	}
	if err := zw.Close(); err != nil {
		f.Close()
		return "", fmt.Errorf("close gzip writer: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close sidecar: %w", err)
	}
	return path, nil
}

// Read decompresses the sidecar at path. A missing sidecar returns
// ("", false, nil): an earlier cleanup may have removed it and readers
// treat that as "no text".
func (s *SidecarStore) Read(path string) (string, bool, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("open sidecar: %w", err)
	}
	defer f.Close()

	zr, err := gzip.NewReader(f)
	if err != nil {
		return "", false, fmt.Errorf("open gzip reader: %w", err)
	}
	defer zr.Close()

	b, err := io.ReadAll(zr)
	if err != nil {
		return "", false, fmt.Errorf("read sidecar: %w", err)
	}
	return string(b), true, nil
}

// ReadDigest reads the sidecar for a digest directly.
func (s *SidecarStore) ReadDigest(digest string) (string, bool, error) {
	return s.Read(s.Path(digest))
}
