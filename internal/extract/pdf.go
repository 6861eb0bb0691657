package extract

import (
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// PDFExtractor reads embedded text from PDFs directly. Fast and dependency
// free, but useless on scanned documents; the chain falls through to OCR
// for those.
type PDFExtractor struct{}

func NewPDFExtractor() *PDFExtractor { return &PDFExtractor{} }

func (p *PDFExtractor) Name() string { return "pdf" }

func (p *PDFExtractor) CanExtract(path string) bool {
	return suffix(path) == ".pdf"
}

func (p *PDFExtractor) Extract(_ context.Context, path string) (res Result) {
	// The pdf package panics on some malformed files; contain it to a
	// failed result so the chain can continue.
	defer func() {
		if r := recover(); r != nil {
			res = Result{Status: StatusFailed, Method: p.Name(),
				Error: fmt.Sprintf("PDF extraction failed: %v", r)}
		}
	}()

	f, reader, err := pdf.Open(path)
	if err != nil {
		if strings.Contains(err.Error(), "encrypted") {
			return Result{Status: StatusFailed, Method: p.Name(),
				Error: "PDF is encrypted/password-protected"}
		}
		return Result{Status: StatusFailed, Method: p.Name(),
			Error: fmt.Sprintf("PDF extraction failed: %v", err)}
	}
	defer f.Close()

	var parts []string
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			continue // a bad page does not fail the document
		}
		if strings.TrimSpace(pageText) != "" {
			parts = append(parts, pageText)
		}
	}

	text := strings.Join(parts, "\n\n")
	if strings.TrimSpace(text) == "" {
		return Result{Status: StatusFailed, Method: p.Name(),
			Error: "No text extracted (possibly scanned PDF without OCR)"}
	}
	return Result{Status: StatusSuccess, Method: p.Name(), Text: text}
}
