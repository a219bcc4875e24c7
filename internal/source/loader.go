package source

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/ppiankov/steelminer/internal/model"
)

// Raw is a document read from disk but not yet parsed
type Raw struct {
	Path        string
	Data        []byte
	Hash        string // sha256 of Data, hex
	ContentType string
}

// Loader reads files and hands them to the matching adapter
type Loader struct {
	registry *Registry
	maxBytes int64
	timeout  time.Duration
	logger   *zap.Logger
}

// NewLoader creates a loader from the source config
func NewLoader(cfg model.SourceConfig, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.L()
	}
	return &Loader{
		registry: NewRegistry(),
		maxBytes: cfg.MaxBytes,
		timeout:  cfg.PDFTimeout,
		logger:   logger,
	}
}

// Read loads raw bytes and their content hash
func (l *Loader) Read(path string) (*Raw, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, eris.Wrapf(err, "source: stat %s", path)
	}
	if info.IsDir() {
		return nil, eris.Errorf("source: %s is a directory", path)
	}
	if l.maxBytes > 0 && info.Size() > l.maxBytes {
		return nil, eris.Errorf("source: %s is %d bytes, limit %d", path, info.Size(), l.maxBytes)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "source: read %s", path)
	}
	sum := sha256.Sum256(data)

	return &Raw{
		Path:        path,
		Data:        data,
		Hash:        hex.EncodeToString(sum[:]),
		ContentType: contentType(path),
	}, nil
}

// Parse converts raw bytes with the adapter registered for their type.
// The parse is bounded by the configured timeout.
func (l *Loader) Parse(ctx context.Context, raw *Raw) (model.Document, error) {
	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	adapter := l.registry.FindAdapter(raw.Path, raw.ContentType)
	doc, err := adapter.Parse(ctx, raw.Data)
	if err != nil {
		return model.Document{}, eris.Wrapf(err, "source: parse %s", raw.Path)
	}
	if hasEmptyText(doc) {
		return model.Document{}, eris.Wrapf(ErrNoText, "source: %s", raw.Path)
	}

	doc.ID = raw.Path
	doc.Source = raw.Path
	doc.Meta.Adapter = adapter.Name()
	doc.Meta.ContentType = raw.ContentType
	doc.Meta.Bytes = int64(len(raw.Data))
	doc.Meta.PageCount = len(doc.Pages)
	doc.Meta.ContentHash = raw.Hash

	l.logger.Debug("document loaded",
		zap.String("path", raw.Path),
		zap.String("adapter", adapter.Name()),
		zap.Int("pages", len(doc.Pages)),
		zap.Int("tables", len(doc.Tables)))
	return doc, nil
}

// Load reads and parses a file in one step
func (l *Loader) Load(ctx context.Context, path string) (model.Document, error) {
	raw, err := l.Read(path)
	if err != nil {
		return model.Document{}, err
	}
	return l.Parse(ctx, raw)
}

func contentType(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".md":
		return "text/markdown"
	case ".xml":
		return "application/xml"
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return "text/plain"
}
