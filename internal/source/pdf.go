package source

import (
	"bytes"
	"context"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/rotisserie/eris"

	"github.com/ppiankov/steelminer/internal/model"
)

// PDFAdapter extracts plain text page by page. Layout table detection is
// left to external tools; their grids can be supplied as model.Table.
type PDFAdapter struct{}

// NewPDFAdapter creates a PDF adapter
func NewPDFAdapter() *PDFAdapter {
	return &PDFAdapter{}
}

// Name returns the adapter name
func (a *PDFAdapter) Name() string {
	return "pdf"
}

// CanHandle matches .pdf files and application/pdf
func (a *PDFAdapter) CanHandle(path string, contentType string) bool {
	return hasExt(path, ".pdf") || strings.HasPrefix(contentType, "application/pdf")
}

type pdfResult struct {
	pages []string
	err   error
}

// Parse implements Adapter. Text extraction runs in its own goroutine so a
// pathological file is abandoned when ctx expires.
func (a *PDFAdapter) Parse(ctx context.Context, data []byte) (model.Document, error) {
	if err := ctx.Err(); err != nil {
		return model.Document{}, err
	}

	done := make(chan pdfResult, 1)
	go func() {
		pages, err := readPDFPages(ctx, data)
		done <- pdfResult{pages: pages, err: err}
	}()

	select {
	case <-ctx.Done():
		return model.Document{}, eris.Wrap(ctx.Err(), "pdf text extraction")
	case res := <-done:
		if res.err != nil {
			return model.Document{}, res.err
		}
		return model.Document{Pages: res.pages}, nil
	}
}

func readPDFPages(ctx context.Context, data []byte) (pages []string, err error) {
	// the parser panics on some malformed inputs
	defer func() {
		if r := recover(); r != nil {
			err = eris.Errorf("malformed pdf: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, eris.Wrap(err, "open pdf")
	}

	fonts := make(map[string]*pdf.Font)
	for i := 1; i <= r.NumPage(); i++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		p := r.Page(i)
		if p.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		for _, name := range p.Fonts() {
			if _, ok := fonts[name]; !ok {
				f := p.Font(name)
				fonts[name] = &f
			}
		}
		text, err := p.GetPlainText(fonts)
		if err != nil {
			return nil, eris.Wrapf(err, "read pdf page %d", i)
		}
		pages = append(pages, text)
	}
	return pages, nil
}
