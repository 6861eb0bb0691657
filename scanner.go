package lucien

import (
	"context"
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"io/fs"
	"mime"
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/jward/lucien/internal/catalog"
)

// hashChunkSize is the fixed read size for streaming hashes. Files are
// never buffered whole.
const hashChunkSize = 1 << 20

// ScanStats summarizes one scan run.
type ScanStats struct {
	FilesScanned int64
	BytesHashed  int64
	Errors       int64
	DirsSkipped  int64
}

// Scanner walks a source tree and records a hash inventory in the catalog.
// The source is treated as immutable; the scanner only reads.
type Scanner struct {
	cat      *catalog.Catalog
	cfg      ScanConfig
	DryRun   bool
	Progress func(path string) // optional, called per recorded file
}

func NewScanner(cat *catalog.Catalog, cfg ScanConfig) *Scanner {
	return &Scanner{cat: cat, cfg: cfg}
}

// Run walks root and upserts a file row per regular file under runID.
// Permission failures are counted, never fatal. Honors ctx between files.
func (s *Scanner) Run(ctx context.Context, root string, runID int64) (*ScanStats, error) {
	stats := &ScanStats{}
	visited := map[string]bool{} // real paths of entered dirs, for symlink cycles
	if real, err := filepath.EvalSymlinks(root); err == nil {
		visited[real] = true
	}
	if err := s.walk(ctx, root, runID, stats, visited); err != nil {
		return stats, err
	}
	return stats, nil
}

func (s *Scanner) walk(ctx context.Context, dir string, runID int64, stats *ScanStats, visited map[string]bool) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		stats.Errors++
		return nil
	}

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		name := entry.Name()
		path := filepath.Join(dir, name)

		if entry.IsDir() {
			if s.skipDir(name) {
				stats.DirsSkipped++
				continue
			}
			if err := s.walk(ctx, path, runID, stats, visited); err != nil {
				return err
			}
			continue
		}

		if entry.Type()&fs.ModeSymlink != 0 {
			if !s.cfg.FollowSymlinks {
				continue
			}
			real, err := filepath.EvalSymlinks(path)
			if err != nil {
				stats.Errors++
				continue
			}
			info, err := os.Stat(real)
			if err != nil {
				stats.Errors++
				continue
			}
			if info.IsDir() {
				if s.skipDir(name) || visited[real] {
					stats.DirsSkipped++
					continue
				}
				visited[real] = true
				if err := s.walk(ctx, path, runID, stats, visited); err != nil {
					return err
				}
				continue
			}
			if err := s.scanFile(path, info, runID, stats); err != nil {
				return err
			}
			continue
		}

		if !entry.Type().IsRegular() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			stats.Errors++
			continue
		}
		if err := s.scanFile(path, info, runID, stats); err != nil {
			return err
		}
	}
	return nil
}

// skipDir matches a directory name against the configured skip globs.
func (s *Scanner) skipDir(name string) bool {
	for _, pattern := range s.cfg.SkipDirs {
		if ok, err := doublestar.Match(pattern, name); err == nil && ok {
			return true
		}
	}
	return false
}

// scanFile hashes one regular file and upserts its catalog row. Returns an
// error only for catalog failures; filesystem problems just bump Errors.
func (s *Scanner) scanFile(path string, info os.FileInfo, runID int64, stats *ScanStats) error {
	digest, err := s.hashFile(path)
	if err != nil {
		stats.Errors++
		return nil
	}
	stats.BytesHashed += info.Size()

	if !s.DryRun {
		f := &catalog.File{
			Path:      path,
			SHA256:    digest,
			Size:      info.Size(),
			Mtime:     info.ModTime().Unix(),
			Ctime:     changeTime(info),
			ScanRunID: runID,
		}
		if mt := mime.TypeByExtension(filepath.Ext(path)); mt != "" {
			f.MimeType = &mt
		}
		if _, err := s.cat.UpsertFile(f); err != nil {
			return fmt.Errorf("upsert %s: %w", path, err)
		}
	}

	stats.FilesScanned++
	if s.Progress != nil {
		s.Progress(path)
	}
	return nil
}

func (s *Scanner) newHash() hash.Hash {
	switch s.cfg.HashAlgorithm {
	case "sha1":
		return sha1.New()
	case "md5":
		return md5.New()
	default:
		return sha256.New()
	}
}

func (s *Scanner) hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := s.newHash()
	buf := make([]byte, hashChunkSize)
	if _, err := io.CopyBuffer(h, f, buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
