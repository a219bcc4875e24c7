package model

// Document is a loaded source ready for extraction
type Document struct {
	ID     string     `json:"id"`               // Stable identity (file path, DOI)
	Source string     `json:"source"`           // Where the text came from
	Text   string     `json:"text,omitempty"`   // Whole-document text when pages are unknown
	Pages  []string   `json:"pages,omitempty"`  // Per-page text (1-based page = index+1)
	Tables []Table    `json:"tables,omitempty"` // Raw table grids from a layout extractor
	Meta   SourceMeta `json:"meta"`
}

// SourceMeta describes how the document was loaded
type SourceMeta struct {
	Adapter     string `json:"adapter"`                // text, html, pdf
	ContentType string `json:"content_type,omitempty"` // MIME type guessed from the extension
	Bytes       int64  `json:"bytes"`
	PageCount   int    `json:"page_count,omitempty"`
	ContentHash string `json:"content_hash,omitempty"` // sha256 of the raw bytes
}

// Table is a raw cell grid; the first row is usually the header
type Table struct {
	Caption string     `json:"caption,omitempty"`
	Rows    [][]string `json:"rows"`
	Page    int        `json:"page,omitempty"`
}

// HasPages reports whether the document carries per-page text
func (d *Document) HasPages() bool {
	return len(d.Pages) > 0
}
