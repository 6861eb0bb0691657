package extract

import (
	"context"
	"fmt"
	"slices"
	"strings"
)

// Chain drives the extractor fallback protocol for one file at a time:
// skip-list check, registry lookup, try-next-on-failure, truncation, and the
// sidecar write. Text never leaves the chain; callers get back a sidecar
// path.
type Chain struct {
	registry       *Registry
	store          *SidecarStore
	skipExtensions []string
	maxTextLength  int
}

// ChainConfig carries the chain's policy knobs.
type ChainConfig struct {
	SkipExtensions []string // lowercased suffixes excluded before the registry is consulted
	MaxTextLength  int      // truncation bound for sidecar text, in characters
}

// NewChain builds a chain over a registry and sidecar store.
func NewChain(registry *Registry, store *SidecarStore, cfg ChainConfig) *Chain {
	skip := make([]string, len(cfg.SkipExtensions))
	for i, ext := range cfg.SkipExtensions {
		skip[i] = strings.ToLower(ext)
	}
	return &Chain{
		registry:       registry,
		store:          store,
		skipExtensions: skip,
		maxTextLength:  cfg.MaxTextLength,
	}
}

// ExtractFile runs the chain for one file and writes the winning text to the
// digest's sidecar. The returned Result carries only status, method, sidecar
// path, and error.
func (c *Chain) ExtractFile(ctx context.Context, path, digest string) Result {
	ext := suffix(path)
	if slices.Contains(c.skipExtensions, ext) {
		return Result{
			Status: StatusSkipped,
			Method: "none",
			Error:  fmt.Sprintf("Extension %s in skip list", ext),
		}
	}

	extractors := c.registry.ExtractorsFor(path)
	if len(extractors) == 0 {
		return Result{
			Status: StatusSkipped,
			Method: "none",
			Error:  "No extractor available for this file type",
		}
	}

	var lastErr string
	for _, e := range extractors {
		res := e.Extract(ctx, path)
		if !res.Success() {
			lastErr = res.Error
			continue
		}

		text := Truncate(res.Text, c.maxTextLength)
		res.Text = "" // large intermediate; drop before the sidecar write
		outPath, err := c.store.Write(digest, text)
		if err != nil {
			return Result{
				Status: StatusFailed,
				Method: res.Method,
				Error:  fmt.Sprintf("sidecar write failed: %v", err),
			}
		}
		res.OutputPath = outPath
		return res
	}

	return Result{
		Status: StatusFailed,
		Method: "all",
		Error:  fmt.Sprintf("All extractors failed. Last error: %s", lastErr),
	}
}
