package extract

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// ocrMaxPages caps how many pages get rasterized; OCR cost is per page and
// the classifier only ever sees truncated text anyway.
const ocrMaxPages = 50

// OCRExtractor rasterizes PDF pages with pdftoppm and recognizes them with
// tesseract. It is the fallback for scanned PDFs that carry no embedded
// text.
type OCRExtractor struct {
	pdftoppm  string
	tesseract string
}

// NewOCRExtractor locates pdftoppm and tesseract on PATH. Returns nil when
// either is missing.
func NewOCRExtractor() *OCRExtractor {
	ppm, err := exec.LookPath("pdftoppm")
	if err != nil {
		return nil
	}
	tess, err := exec.LookPath("tesseract")
	if err != nil {
		return nil
	}
	return &OCRExtractor{pdftoppm: ppm, tesseract: tess}
}

func (o *OCRExtractor) Name() string { return "ocr" }

func (o *OCRExtractor) CanExtract(path string) bool {
	return suffix(path) == ".pdf"
}

func (o *OCRExtractor) Extract(ctx context.Context, path string) Result {
	tmpDir, err := os.MkdirTemp("", "ocr-*")
	if err != nil {
		return Result{Status: StatusFailed, Method: o.Name(),
			Error: fmt.Sprintf("OCR temp dir: %v", err)}
	}
	defer os.RemoveAll(tmpDir)

	prefix := filepath.Join(tmpDir, "page")
	rasterize := exec.CommandContext(ctx, o.pdftoppm,
		"-png", "-r", "150",
		"-f", "1", "-l", fmt.Sprint(ocrMaxPages),
		path, prefix)
	if err := rasterize.Run(); err != nil {
		return Result{Status: StatusFailed, Method: o.Name(),
			Error: fmt.Sprintf("Could not open PDF: %v", err)}
	}

	images, err := filepath.Glob(prefix + "-*.png")
	if err != nil || len(images) == 0 {
		return Result{Status: StatusFailed, Method: o.Name(),
			Error: "PDF has no pages"}
	}
	sortPages(images)

	var parts []string
	for i, img := range images {
		if ctx.Err() != nil {
			return Result{Status: StatusFailed, Method: o.Name(),
				Error: fmt.Sprintf("OCR failed: %v", ctx.Err())}
		}
		recognize := exec.CommandContext(ctx, o.tesseract, img, "stdout")
		out, err := recognize.Output()
		if err != nil {
			continue // skip unreadable pages
		}
		pageText := string(out)
		if strings.TrimSpace(pageText) != "" {
			parts = append(parts, fmt.Sprintf("--- Page %d ---\n%s", i+1, pageText))
		}
	}

	if len(parts) == 0 {
		return Result{Status: StatusFailed, Method: o.Name(),
			Error: "No text recognized in PDF (blank or non-text image)"}
	}

	return Result{
		Status: StatusSuccess,
		Method: o.Name(),
		Text:   strings.Join(parts, "\n\n"),
		Metadata: map[string]string{
			"pages_processed": fmt.Sprint(len(images)),
		},
	}
}

// sortPages orders rasterized page files by their trailing page number.
// pdftoppm only zero-pads to the width it predicts, so a lexical sort puts
// page-10 before page-2.
func sortPages(images []string) {
	sort.Slice(images, func(i, j int) bool {
		return pageNumber(images[i]) < pageNumber(images[j])
	})
}

func pageNumber(path string) int {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	idx := strings.LastIndex(base, "-")
	n, _ := strconv.Atoi(base[idx+1:])
	return n
}
