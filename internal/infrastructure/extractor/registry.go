package extractor

import (
	"path/filepath"
	"strings"

	"github.com/kirillkom/knowledge-retrieval/internal/core/ports"
)

// Registry dispatches files to the extractor registered for their
// extension. It is a closed set built at bootstrap; an unknown
// extension is an extraction failure the ingest pipeline skips over.
type Registry struct {
	byExt map[string]ports.Extractor
}

func NewRegistry(extractors ...ports.Extractor) *Registry {
	byExt := make(map[string]ports.Extractor)
	for _, e := range extractors {
		for _, ext := range e.Extensions() {
			byExt[strings.ToLower(ext)] = e
		}
	}
	return &Registry{byExt: byExt}
}

// Resolve returns the extractor for the file's extension.
func (r *Registry) Resolve(filename string) (ports.Extractor, bool) {
	ext := strings.ToLower(filepath.Ext(filename))
	e, ok := r.byExt[ext]
	return e, ok
}

// Supported lists every registered extension.
func (r *Registry) Supported() []string {
	out := make([]string, 0, len(r.byExt))
	for ext := range r.byExt {
		out = append(out, ext)
	}
	return out
}
