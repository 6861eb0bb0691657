package extract

import "time"

// DefaultRegistry assembles the standard fallback order: docling (when
// enabled and installed), embedded-text PDF, OCR (when the host tools are
// installed), plain text.
func DefaultRegistry(useDocling bool, doclingTimeout time.Duration) *Registry {
	r := NewRegistry()
	if useDocling {
		if d := NewDoclingExtractor(doclingTimeout); d != nil {
			r.Register(d)
		}
	}
	r.Register(NewPDFExtractor())
	if o := NewOCRExtractor(); o != nil {
		r.Register(o)
	}
	r.Register(NewTextExtractor())
	return r
}
