// Package extract implements the content extraction port: given a file path,
// produce plain text for full-text indexing, or report that no usable text is
// available. Failures of any kind (unsupported type, corrupt content, decode
// errors) yield "absent", never an error.
package extract

import (
	"os"
	"path/filepath"
	"strings"
)

// Extractor extracts plain text from raw file bytes.
type Extractor interface {
	ExtractText(data []byte) (string, error)
}

// textExts are read directly as UTF-8 text.
var textExts = map[string]bool{
	".txt": true, ".md": true, ".py": true, ".json": true, ".log": true,
	".csv": true, ".yaml": true, ".yml": true, ".xml": true, ".ini": true,
	".cfg": true, ".toml": true, ".css": true, ".js": true, ".ts": true,
	".go": true, ".rs": true, ".sh": true,
}

// Router routes files to extractors by extension and enforces the size limit.
// It implements the extraction capability the worker pool is constructed with.
type Router struct {
	extractors map[string]Extractor
}

// NewRouter creates a router with the built-in extractors registered.
func NewRouter() *Router {
	r := &Router{extractors: make(map[string]Extractor)}
	r.extractors[".pdf"] = &PDFExtractor{}
	r.extractors[".html"] = &HTMLExtractor{}
	r.extractors[".htm"] = &HTMLExtractor{}
	r.extractors[".eml"] = &EMLExtractor{}
	return r
}

// Register adds or replaces the extractor for an extension (with dot).
// Optional strategies like image OCR hook in here.
func (r *Router) Register(ext string, e Extractor) {
	r.extractors[strings.ToLower(ext)] = e
}

// Extract returns the indexable text for a file, or ok=false when the file is
// too large, unreadable, of an unhandled type, or yields no usable text.
func (r *Router) Extract(path string, sizeLimit int64) (string, bool) {
	ext := strings.ToLower(filepath.Ext(path))

	e, registered := r.extractors[ext]
	if !registered && !textExts[ext] {
		return "", false
	}

	fi, err := os.Stat(path)
	if err != nil || fi.Size() > sizeLimit {
		return "", false
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", false
	}

	var text string
	if registered {
		text, err = e.ExtractText(data)
		if err != nil {
			return "", false
		}
	} else {
		text = strings.ToValidUTF8(string(data), "�")
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", false
	}
	return text, true
}
