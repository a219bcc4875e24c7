package source

import (
	"bytes"
	"context"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/net/html"

	"github.com/ppiankov/steelminer/internal/model"
)

// maxColspan caps colspan repetition on malformed markup
const maxColspan = 50

// HTMLAdapter reads HTML and publisher XML (JATS, Elsevier). Running text
// skips scripts and tables; tables become grids with their captions.
type HTMLAdapter struct{}

// NewHTMLAdapter creates an HTML/XML adapter
func NewHTMLAdapter() *HTMLAdapter {
	return &HTMLAdapter{}
}

// Name returns the adapter name
func (a *HTMLAdapter) Name() string {
	return "html"
}

// CanHandle matches HTML and XML by extension or content type
func (a *HTMLAdapter) CanHandle(path string, contentType string) bool {
	if hasExt(path, ".html", ".htm", ".xhtml", ".xml") {
		return true
	}
	return strings.Contains(contentType, "html") || strings.Contains(contentType, "xml")
}

// Parse implements Adapter
func (a *HTMLAdapter) Parse(ctx context.Context, data []byte) (model.Document, error) {
	if err := ctx.Err(); err != nil {
		return model.Document{}, err
	}
	root, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return model.Document{}, eris.Wrap(err, "parse html")
	}

	doc := model.Document{Text: visibleText(root)}
	for _, t := range findAll(root, isElement("table")) {
		if hasAncestor(t, "table") {
			continue // nested tables are read as cell text
		}
		rows := tableRows(t)
		if len(rows) == 0 {
			continue
		}
		doc.Tables = append(doc.Tables, model.Table{Caption: tableCaptionOf(t), Rows: rows})
	}
	return doc, nil
}

// visibleText collects text outside script, style and table elements.
// Block elements end with a newline so headings stay apart from paragraphs.
func visibleText(n *html.Node) string {
	var buf strings.Builder

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript", "iframe", "head", "table", "table-wrap":
				return
			}
		}

		if n.Type == html.TextNode {
			text := strings.TrimSpace(n.Data)
			if text != "" {
				buf.WriteString(text)
				buf.WriteString(" ")
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}

		if n.Type == html.ElementNode && isBlock(n.Data) {
			buf.WriteString("\n")
		}
	}

	walk(n)
	return strings.TrimSpace(buf.String())
}

func isBlock(tag string) bool {
	switch tag {
	case "p", "div", "section", "article", "li", "h1", "h2", "h3", "h4", "h5", "h6", "title", "sec", "para", "abstract", "br":
		return true
	}
	return false
}

// tableRows flattens tr/td/th into a rectangular grid, repeating colspan cells
func tableRows(table *html.Node) [][]string {
	var rows [][]string
	for _, tr := range findAll(table, isElement("tr")) {
		if nearestTable(tr) != table {
			continue
		}
		var row []string
		for c := tr.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.ElementNode || (c.Data != "td" && c.Data != "th") {
				continue
			}
			text := nodeText(c)
			span, err := strconv.Atoi(getAttribute(c, "colspan"))
			if err != nil || span < 1 {
				span = 1
			}
			for range min(span, maxColspan) {
				row = append(row, text)
			}
		}
		if len(row) > 0 {
			rows = append(rows, row)
		}
	}
	return padRows(rows)
}

// tableCaptionOf looks for a <caption> child, then for a caption, label,
// heading or "Table N" text just before the table or its wrapper
func tableCaptionOf(table *html.Node) string {
	if c := findFirst(table, isElement("caption")); c != nil {
		return nodeText(c)
	}
	for n := table; n != nil && n.Type != html.DocumentNode; n = n.Parent {
		for s := n.PrevSibling; s != nil; s = s.PrevSibling {
			switch s.Type {
			case html.ElementNode:
				switch s.Data {
				case "label":
					// JATS: <label>Table 1</label> then the caption text
					return siblingText(s, n)
				case "caption", "figcaption", "title", "h2", "h3", "h4", "h5":
					return nodeText(s)
				case "p", "div", "span":
					if text := nodeText(s); tableCaption.MatchString(text) {
						return text
					}
				}
			case html.TextNode:
				// publisher XML loses unknown caption tags but keeps their text
				if text := strings.TrimSpace(s.Data); tableCaption.MatchString(text) {
					return text
				}
			}
		}
		if n.Parent != nil && n.Parent.Data == "body" {
			break
		}
	}
	return ""
}

// siblingText joins the text of from and its siblings up to stop
func siblingText(from, stop *html.Node) string {
	var parts []string
	for s := from; s != nil && s != stop; s = s.NextSibling {
		if t := nodeText(s); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}

func isElement(tag string) func(*html.Node) bool {
	return func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.Data == tag
	}
}

func hasAncestor(n *html.Node, tag string) bool {
	for p := n.Parent; p != nil; p = p.Parent {
		if p.Type == html.ElementNode && p.Data == tag {
			return true
		}
	}
	return false
}

func nearestTable(n *html.Node) *html.Node {
	for p := n.Parent; p != nil; p = p.Parent {
		if p.Type == html.ElementNode && p.Data == "table" {
			return p
		}
	}
	return nil
}

// nodeText extracts the whitespace-joined text content of a node
func nodeText(n *html.Node) string {
	if n.Type == html.TextNode {
		return strings.TrimSpace(n.Data)
	}

	var parts []string
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if t := nodeText(c); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}

// getAttribute gets an attribute value from a node
func getAttribute(n *html.Node, attrKey string) string {
	for _, attr := range n.Attr {
		if attr.Key == attrKey {
			return attr.Val
		}
	}
	return ""
}

// findAll finds all nodes matching a predicate
func findAll(n *html.Node, predicate func(*html.Node) bool) []*html.Node {
	var results []*html.Node

	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if predicate(node) {
			results = append(results, node)
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	walk(n)
	return results
}

// findFirst finds the first node matching a predicate
func findFirst(n *html.Node, predicate func(*html.Node) bool) *html.Node {
	var result *html.Node

	var walk func(*html.Node) bool
	walk = func(node *html.Node) bool {
		if predicate(node) {
			result = node
			return true
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			if walk(c) {
				return true
			}
		}
		return false
	}

	walk(n)
	return result
}
