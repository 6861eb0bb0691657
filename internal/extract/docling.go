package extract

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"
	"time"
)

// doclingExtensions are the formats the docling converter handles.
var doclingExtensions = []string{".pdf", ".docx", ".pptx", ".xlsx"}

// DoclingExtractor shells out to the docling CLI for structured markdown
// conversion of PDFs and office documents. It is the highest-quality method
// and also the slowest, so every invocation runs under a hard deadline:
// some PDFs make the converter hang indefinitely.
type DoclingExtractor struct {
	binary  string
	timeout time.Duration
}

// NewDoclingExtractor locates the docling binary on PATH. Returns nil when
// it is not installed; callers simply skip registration.
func NewDoclingExtractor(timeout time.Duration) *DoclingExtractor {
	bin, err := exec.LookPath("docling")
	if err != nil {
		return nil
	}
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	return &DoclingExtractor{binary: bin, timeout: timeout}
}

func (d *DoclingExtractor) Name() string { return "docling" }

func (d *DoclingExtractor) CanExtract(path string) bool {
	return slices.Contains(doclingExtensions, suffix(path))
}

func (d *DoclingExtractor) Extract(ctx context.Context, path string) Result {
	outDir, err := os.MkdirTemp("", "docling-*")
	if err != nil {
		return Result{Status: StatusFailed, Method: d.Name(),
			Error: fmt.Sprintf("docling temp dir: %v", err)}
	}
	defer os.RemoveAll(outDir)

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, d.binary, "--to", "md", "--output", outDir, path)
	cmd.Stdout = nil
	cmd.Stderr = nil
	if err := cmd.Run(); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return Result{Status: StatusFailed, Method: d.Name(),
				Error: fmt.Sprintf("%s timed out after %ds", d.Name(), int(d.timeout.Seconds()))}
		}
		return Result{Status: StatusFailed, Method: d.Name(),
			Error: fmt.Sprintf("docling conversion failed: %v", err)}
	}

	base := filepath.Base(path)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	out, err := os.ReadFile(filepath.Join(outDir, stem+".md"))
	if err != nil {
		return Result{Status: StatusFailed, Method: d.Name(),
			Error: fmt.Sprintf("docling output missing: %v", err)}
	}

	text := string(out)
	if strings.TrimSpace(text) == "" {
		return Result{Status: StatusFailed, Method: d.Name(),
			Error: "No text extracted from document"}
	}
	return Result{Status: StatusSuccess, Method: d.Name(), Text: text}
}
