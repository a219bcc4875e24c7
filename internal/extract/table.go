package extract

import (
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/ppiankov/steelminer/internal/model"
	"github.com/ppiankov/steelminer/internal/numeric"
	"github.com/ppiankov/steelminer/internal/schema"
	"github.com/ppiankov/steelminer/internal/units"
)

var tableKeywords = []string{
	"composition", "chemical", "mechanical", "properties", "property", "heat treatment",
	"tensile", "hardness", "impact", "microstructure", "phase fraction",
	"成分", "化学", "力学性能", "性能", "热处理", "组织",
}

var (
	bracketUnit = regexp.MustCompile(`^(.*?)\s*[(\[（]\s*([^()\[\]（）]+?)\s*[)\]）]\s*$`)
	slashUnit   = regexp.MustCompile(`^(.*\S)\s*/\s*([^/\s][^/]*)$`)
)

// TableExtractor maps raw table grids onto schema fields. Header cells are
// matched against the same aliases as running text, either across the first
// row (one column per field) or down the first column (one row per field).
type TableExtractor struct {
	registry *schema.Registry
	logger   *zap.Logger
}

// NewTableExtractor creates a table extractor
func NewTableExtractor(reg *schema.Registry, logger *zap.Logger) *TableExtractor {
	if logger == nil {
		logger = zap.L()
	}
	return &TableExtractor{registry: reg, logger: logger}
}

// column is one header cell resolved to a field
type column struct {
	index  int
	header string
	field  *schema.FieldMeta
	unit   string // canonical unit named in the header, if any
}

// IsMaterialsTable reports whether a table is worth mapping: its caption
// names a materials topic or one of its header cells names a field
func (e *TableExtractor) IsMaterialsTable(t model.Table) bool {
	caption := strings.ToLower(t.Caption)
	for _, kw := range tableKeywords {
		if strings.Contains(caption, kw) {
			return true
		}
	}
	if len(t.Rows) == 0 {
		return false
	}
	return len(e.headerColumns(t.Rows[0])) > 0 || len(e.rowLabels(t.Rows)) > 0
}

// Extract maps every data cell under a recognized header
func (e *TableExtractor) Extract(t model.Table) model.DocumentResult {
	out := model.NewDocumentResult()
	if len(t.Rows) < 2 || !e.IsMaterialsTable(t) {
		return out
	}

	if cols := e.headerColumns(t.Rows[0]); len(cols) > 0 {
		for _, row := range t.Rows[1:] {
			context := strings.Join(row, " | ")
			for _, c := range cols {
				if c.index >= len(row) {
					continue
				}
				e.emit(out, t, c, row[c.index], context)
			}
		}
		return out
	}

	for _, c := range e.rowLabels(t.Rows) {
		row := t.Rows[c.index]
		context := strings.Join(row, " | ")
		for _, cell := range row[1:] {
			e.emit(out, t, c, cell, context)
		}
	}
	return out
}

func (e *TableExtractor) headerColumns(header []string) []column {
	var cols []column
	for j, cell := range header {
		if f, unit, ok := e.resolveHeader(cell); ok {
			cols = append(cols, column{index: j, header: cell, field: f, unit: unit})
		}
	}
	return cols
}

func (e *TableExtractor) rowLabels(rows [][]string) []column {
	var cols []column
	for i, row := range rows {
		if len(row) < 2 {
			continue
		}
		if f, unit, ok := e.resolveHeader(row[0]); ok {
			cols = append(cols, column{index: i, header: row[0], field: f, unit: unit})
		}
	}
	return cols
}

// resolveHeader maps "Tempering temperature (°C)", "YS/MPa" or "C" to a field
func (e *TableExtractor) resolveHeader(cell string) (*schema.FieldMeta, string, bool) {
	label, unitText := splitHeader(CleanText(cell))
	if label == "" {
		return nil, "", false
	}

	var unit *units.Unit
	if unitText != "" {
		if u, ok := units.Canonicalize(unitText); ok {
			unit = &u
		} else if unitLikeToken(unitText) == unitText {
			e.logger.Warn("unrecognized table unit, column discarded",
				zap.String("unit", unitText),
				zap.String("header", cell))
			return nil, "", false
		}
	}

	var (
		best    *schema.FieldMeta
		bestEnd = -1
	)
	for _, domain := range model.Domains {
		s := e.registry.Schema(domain)
		for _, m := range s.FindMentions(label) {
			f, ok := s.Field(m.Field)
			if !ok {
				continue
			}
			if unit != nil && !f.IsCategorical() && f.UnitType != unit.Type {
				continue
			}
			if m.End > bestEnd {
				best, bestEnd = f, m.End
			}
		}
	}

	// a bare scale name heads a hardness column
	if best == nil {
		if u, ok := units.Canonicalize(label); ok && u.Type == units.Hardness && len(label) <= 6 {
			if f, ok := e.registry.Lookup("hardness"); ok {
				return f, u.Name, true
			}
		}
		return nil, "", false
	}

	unitName := ""
	if unit != nil {
		unitName = unit.Name
	}
	return best, unitName, true
}

func splitHeader(cell string) (label, unit string) {
	if m := bracketUnit.FindStringSubmatch(cell); m != nil {
		return strings.TrimSpace(m[1]), strings.TrimSpace(m[2])
	}
	if m := slashUnit.FindStringSubmatch(cell); m != nil {
		if _, ok := units.Canonicalize(m[2]); ok {
			return strings.TrimSpace(m[1]), strings.TrimSpace(m[2])
		}
	}
	return strings.TrimSpace(cell), ""
}

func (e *TableExtractor) emit(out model.DocumentResult, t model.Table, c column, raw, context string) {
	cell := CleanText(raw)
	if cell == "" {
		return
	}
	f := c.field
	meta := model.Metadata{Method: model.MethodTableHeader, Sentence: context, Trigger: c.header}
	if t.Page > 0 {
		page := t.Page
		meta.Page = &page
	}

	if f.IsCategorical() {
		category, _, _, ok := f.Choice(cell)
		if !ok {
			return
		}
		out.Section(f.Domain()).Add(model.Measurement{Field: f.Name, Category: category, Raw: cell, Metadata: meta})
		return
	}

	spans := numeric.FindSpans(cell)
	if len(spans) == 0 {
		return
	}
	sp := spans[0]

	unitName := c.unit
	if u, _, ok := units.MatchPrefix(cell[sp.End:]); ok {
		unitName = u.Name
	} else if tok := unitLikeToken(cell[sp.End:]); tok != "" {
		e.logger.Warn("unrecognized unit, value discarded",
			zap.String("unit", tok),
			zap.String("field", f.Name),
			zap.String("value", cell))
		return
	}
	if unitName == "" || (unitName == "%" && f.UnitType == units.Percent) {
		unitName = f.DefaultUnit
	}
	if !f.Allows(unitName) {
		e.logger.Debug("table unit not allowed for field",
			zap.String("unit", unitName),
			zap.String("field", f.Name),
			zap.String("header", c.header))
		return
	}

	meas, err := buildMeasurement(f, sp.Expr, unitName)
	if err != nil {
		e.logger.Warn("table unit conversion failed, value discarded",
			zap.String("unit", unitName),
			zap.String("field", f.Name),
			zap.Error(err))
		return
	}
	if f.Plausible != nil && !f.Plausible.Contains(meas.Value) {
		return
	}
	meas.Raw = cell
	meta.Qualifiers = qualifiers(sp.Expr, false)
	meas.Metadata = meta
	out.Section(f.Domain()).Add(meas)
}
