package source

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/ppiankov/steelminer/internal/model"
)

// ErrNoText is returned when a document yields neither text nor tables
var ErrNoText = eris.New("source: no extractable text")

// Adapter turns raw document bytes into a model.Document
type Adapter interface {
	// Name returns the adapter name recorded in SourceMeta
	Name() string

	// CanHandle checks if this adapter can read the given path/content type
	CanHandle(path string, contentType string) bool

	// Parse converts raw bytes. Implementations honor ctx cancellation.
	Parse(ctx context.Context, data []byte) (model.Document, error)
}

// Registry manages input adapters
type Registry struct {
	adapters []Adapter
	generic  Adapter
}

// NewRegistry creates a registry with the built-in adapters; plain text is the fallback
func NewRegistry() *Registry {
	registry := &Registry{
		adapters: make([]Adapter, 0),
	}

	registry.Register(NewPDFAdapter())
	registry.Register(NewHTMLAdapter())

	registry.generic = NewTextAdapter()

	return registry
}

// Register registers a new adapter ahead of the fallback
func (r *Registry) Register(adapter Adapter) {
	r.adapters = append(r.adapters, adapter)
}

// FindAdapter finds the adapter for the given path and content type
func (r *Registry) FindAdapter(path string, contentType string) Adapter {
	for _, adapter := range r.adapters {
		if adapter.CanHandle(path, contentType) {
			return adapter
		}
	}
	return r.generic
}

func hasExt(path string, exts ...string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range exts {
		if ext == e {
			return true
		}
	}
	return false
}

func hasEmptyText(doc model.Document) bool {
	if len(doc.Tables) > 0 || strings.TrimSpace(doc.Text) != "" {
		return false
	}
	for _, p := range doc.Pages {
		if strings.TrimSpace(p) != "" {
			return false
		}
	}
	return true
}
