package source

import (
	"context"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/rotisserie/eris"

	"github.com/ppiankov/steelminer/internal/model"
)

var (
	tableCaption = regexp.MustCompile(`^\s*(?i:table|tab\.)\s*\d+|^\s*表\s*\d+`)
	columnGap    = regexp.MustCompile(`\t+|\s{2,}`)
)

// TextAdapter reads plain text and Markdown. Form feeds split pages.
// A "Table N" caption followed by lines whose columns are separated by tabs
// or runs of spaces becomes a table grid and is removed from the running text.
type TextAdapter struct{}

// NewTextAdapter creates a plain text adapter
func NewTextAdapter() *TextAdapter {
	return &TextAdapter{}
}

// Name returns the adapter name
func (a *TextAdapter) Name() string {
	return "text"
}

// CanHandle accepts text/* content; the registry also uses it as the fallback
func (a *TextAdapter) CanHandle(path string, contentType string) bool {
	return strings.HasPrefix(contentType, "text/") || hasExt(path, ".txt", ".md")
}

// Parse implements Adapter
func (a *TextAdapter) Parse(ctx context.Context, data []byte) (model.Document, error) {
	if err := ctx.Err(); err != nil {
		return model.Document{}, err
	}
	if !utf8.Valid(data) {
		return model.Document{}, eris.New("text is not valid UTF-8")
	}

	var doc model.Document
	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	pages := strings.Split(text, "\f")

	for i, page := range pages {
		body, tables := splitTextTables(page)
		for _, t := range tables {
			if len(pages) > 1 {
				t.Page = i + 1
			}
			doc.Tables = append(doc.Tables, t)
		}
		pages[i] = body
	}

	if len(pages) > 1 {
		doc.Pages = pages
	} else {
		doc.Text = pages[0]
	}
	return doc, nil
}

// splitTextTables pulls captioned column blocks out of a page
func splitTextTables(page string) (string, []model.Table) {
	lines := strings.Split(page, "\n")
	var (
		body   []string
		tables []model.Table
	)

	for i := 0; i < len(lines); i++ {
		line := lines[i]
		if !tableCaption.MatchString(line) {
			body = append(body, line)
			continue
		}

		var rows [][]string
		j := i + 1
		for ; j < len(lines); j++ {
			cells := splitColumns(lines[j])
			if len(cells) < 2 {
				break
			}
			rows = append(rows, cells)
		}
		if len(rows) < 2 {
			body = append(body, line)
			continue
		}

		tables = append(tables, model.Table{Caption: strings.TrimSpace(line), Rows: padRows(rows)})
		i = j - 1
	}
	return strings.Join(body, "\n"), tables
}

func splitColumns(line string) []string {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}
	return columnGap.Split(line, -1)
}

// padRows makes every row as wide as the widest one
func padRows(rows [][]string) [][]string {
	width := 0
	for _, r := range rows {
		width = max(width, len(r))
	}
	for i, r := range rows {
		for len(r) < width {
			r = append(r, "")
		}
		rows[i] = r
	}
	return rows
}
