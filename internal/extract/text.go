package extract

import (
	"context"
	"fmt"
	"os"
	"slices"
	"unicode/utf8"

	"github.com/saintfish/chardet"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/htmlindex"
)

var textExtensions = []string{
	".txt", ".md", ".markdown", ".rst", ".log",
	".json", ".yaml", ".yml", ".toml", ".ini", ".cfg",
	".py", ".js", ".ts", ".html", ".css", ".xml",
	".sh", ".bash", ".zsh", ".fish",
}

// TextExtractor reads plain-text files. UTF-8 is assumed first; anything
// else goes through charset detection, and as a last resort latin-1, which
// decodes every byte sequence.
type TextExtractor struct{}

func NewTextExtractor() *TextExtractor { return &TextExtractor{} }

func (t *TextExtractor) Name() string { return "plaintext" }

func (t *TextExtractor) CanExtract(path string) bool {
	return slices.Contains(textExtensions, suffix(path))
}

func (t *TextExtractor) Extract(_ context.Context, path string) Result {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Result{Status: StatusFailed, Method: t.Name(),
			Error: fmt.Sprintf("Failed to read file: %v", err)}
	}

	if utf8.Valid(raw) {
		return Result{Status: StatusSuccess, Method: t.Name(), Text: string(raw)}
	}

	if text, ok := decodeDetected(raw); ok {
		return Result{Status: StatusSuccess, Method: t.Name(), Text: text}
	}

	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(raw)
	if err != nil {
		return Result{Status: StatusFailed, Method: t.Name(),
			Error: fmt.Sprintf("Failed to read text file: %v", err)}
	}
	return Result{Status: StatusSuccess, Method: t.Name(), Text: string(decoded)}
}

// decodeDetected runs charset detection over raw and decodes with the best
// candidate when one is found and resolvable.
func decodeDetected(raw []byte) (string, bool) {
	best, err := chardet.NewTextDetector().DetectBest(raw)
	if err != nil || best == nil {
		return "", false
	}
	enc, err := htmlindex.Get(best.Charset)
	if err != nil {
		return "", false
	}
	decoded, err := enc.NewDecoder().Bytes(raw)
	if err != nil {
		return "", false
	}
	return string(decoded), true
}
