package extract

import (
	"encoding/json"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ppiankov/steelminer/internal/model"
	"github.com/ppiankov/steelminer/internal/schema"
)

func newTestEngine(t *testing.T, logger *zap.Logger) *Engine {
	t.Helper()
	opts := DefaultOptions()
	opts.Segmenter = SegmenterHeuristic
	opts.Logger = logger
	return NewEngine(opts)
}

func first(t *testing.T, fm model.FieldMeasurements, field string) model.Measurement {
	t.Helper()
	m, ok := fm.First(field)
	require.True(t, ok, "no %s measurement in %v", field, fm.Fields())
	return m
}

func values(fm model.FieldMeasurements, field string) []float64 {
	var out []float64
	for _, m := range fm[field] {
		out = append(out, m.Value)
	}
	return out
}

func TestEngine_MultilingualSchemaAndRanges(t *testing.T) {
	text := "碳含量约为 0.12 wt.% ，硅含量为 0.25~0.30%。" +
		"The specimens were austenitized at 980 ℃ for 30 min, quenched in oil, tempered at 200 °C for 2 h." +
		"屈服强度 Rp0.2 达到 1.2×10^3 MPa，抗拉强度Rm为1.35×10³MPa，延伸率为12 %。"

	r := newTestEngine(t, zap.NewNop()).ExtractText(text)

	carbon := first(t, r.Composition, "C")
	assert.InDelta(t, 0.12, carbon.Value, 1e-9)
	assert.Equal(t, "wt.%", carbon.Unit)
	require.NotNil(t, carbon.Metadata.Qualifiers)
	assert.True(t, carbon.Metadata.Qualifiers.Approximate)

	silicon := first(t, r.Composition, "Si")
	require.NotNil(t, silicon.Range)
	assert.InDelta(t, 0.25, silicon.Range.Min, 1e-9)
	assert.InDelta(t, 0.30, silicon.Range.Max, 1e-9)
	assert.InDelta(t, 0.275, silicon.Value, 1e-9)

	assert.InDelta(t, 980, first(t, r.HeatTreatment, "austenitizing_temperature").Value, 1e-9)
	assert.Contains(t, values(r.HeatTreatment, "austenitizing_time"), 30.0)
	assert.Contains(t, values(r.HeatTreatment, "tempering_time"), 120.0)
	assert.NotContains(t, values(r.HeatTreatment, "austenitizing_time"), 120.0)
	assert.InDelta(t, 200, first(t, r.HeatTreatment, "tempering_temperature").Value, 1e-9)

	quench := first(t, r.HeatTreatment, "quenching_medium")
	assert.Equal(t, "oil", quench.Category)
	assert.Empty(t, quench.Unit)

	ys := first(t, r.MechanicalProperties, "yield_strength")
	assert.Equal(t, "MPa", ys.Unit)
	assert.InDelta(t, 1200, ys.Value, 1e-6)
	assert.Contains(t, ys.Metadata.Sentence, "屈服强度")
	assert.Equal(t, model.MethodRuleRegex, ys.Metadata.Method)

	assert.InDelta(t, 1350, first(t, r.MechanicalProperties, "tensile_strength").Value, 1e-6)

	el := first(t, r.MechanicalProperties, "elongation")
	assert.InDelta(t, 12, el.Value, 1e-9)
	assert.Equal(t, "%", el.Unit)
}

func TestEngine_AusteniteContextSentence(t *testing.T) {
	r := newTestEngine(t, zap.NewNop()).ExtractText("Samples were austenitized at 980 °C for 30 min.")

	temp := first(t, r.HeatTreatment, "austenitizing_temperature")
	assert.Equal(t, 980.0, temp.Value)
	assert.Equal(t, "°C", temp.Unit)

	tm := first(t, r.HeatTreatment, "austenitizing_time")
	assert.Equal(t, 30.0, tm.Value)
	assert.Equal(t, "min", tm.Unit)
}

func TestEngine_TemperingHoursBecomeMinutes(t *testing.T) {
	r := newTestEngine(t, zap.NewNop()).ExtractText("The steel was tempered at 200 °C for 2 h.")

	tm := first(t, r.HeatTreatment, "tempering_time")
	assert.Equal(t, 120.0, tm.Value)
	assert.Equal(t, "min", tm.Unit)
	assert.Equal(t, "tempered", strings.ToLower(first(t, r.HeatTreatment, "tempering_temperature").Metadata.Trigger))
}

func TestEngine_UnknownUnitIsDiscardedWithWarning(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	r := newTestEngine(t, zap.New(core)).ExtractText("Yield strength was measured as 500 psi.")

	assert.Empty(t, r.MechanicalProperties["yield_strength"])
	warned := logs.FilterField(zap.String("unit", "psi"))
	require.Positive(t, warned.Len())
	assert.Equal(t, "yield_strength", warned.All()[0].ContextMap()["field"])
}

func TestEngine_ExponentOverflowIsSkipped(t *testing.T) {
	r := newTestEngine(t, zap.NewNop()).ExtractText("Yield strength was 1×10^400 MPa and hardness was 0×10^400 HV.")

	for _, d := range model.Domains {
		for _, ms := range r.Section(d) {
			for _, m := range ms {
				assert.False(t, math.IsInf(m.Value, 0) || math.IsNaN(m.Value), "%s = %v", m.Field, m.Value)
			}
		}
	}
	_, err := json.Marshal(r)
	assert.NoError(t, err)
}

func TestEngine_MetadataOfRulePass(t *testing.T) {
	text := "Impact toughness KV reached 45 J and fatigue strength σ-1 was 800 MPa."
	r := newTestEngine(t, zap.NewNop()).ExtractText(text)

	impact := first(t, r.MechanicalProperties, "impact_toughness")
	assert.Equal(t, 45.0, impact.Value)
	assert.Equal(t, "J", impact.Unit)
	assert.Equal(t, model.MethodRuleRegex, impact.Metadata.Method)
	assert.Equal(t, text, impact.Metadata.Sentence)
	assert.Empty(t, r.MechanicalProperties["impact_toughness_density"])

	fatigue := first(t, r.MechanicalProperties, "fatigue_strength")
	assert.Equal(t, 800.0, fatigue.Value)
}

func TestEngine_ScientificNotationRange(t *testing.T) {
	r := newTestEngine(t, zap.NewNop()).ExtractText("Silicon content ranged 2.5×10^-1 to 3.0×10^-1 wt.%")

	si := first(t, r.Composition, "Si")
	require.NotNil(t, si.Range)
	assert.InDelta(t, 0.25, si.Range.Min, 1e-9)
	assert.InDelta(t, 0.30, si.Range.Max, 1e-9)
	assert.Equal(t, "wt.%", si.Unit)
}

func TestEngine_BlankText(t *testing.T) {
	r := newTestEngine(t, zap.NewNop()).ExtractText("  \n\t ")
	assert.True(t, r.IsEmpty())
	assert.NotNil(t, r.Composition)
}

func TestEngine_PagesAreStamped(t *testing.T) {
	doc := model.Document{
		ID:    "doc-1",
		Pages: []string{"Introduction only.", "The yield strength was 950 MPa."},
	}
	r := newTestEngine(t, zap.NewNop()).ExtractDocument(doc)

	ys := first(t, r.MechanicalProperties, "yield_strength")
	require.NotNil(t, ys.Metadata.Page)
	assert.Equal(t, 2, *ys.Metadata.Page)
}

func TestEngine_DocumentTables(t *testing.T) {
	doc := model.Document{
		ID:   "doc-2",
		Text: "The chemical composition is listed in Table 1.",
		Tables: []model.Table{{
			Caption: "Table 1 Chemical composition of the tested steel (wt.%)",
			Rows: [][]string{
				{"Steel", "C", "Si", "Mn"},
				{"A", "0.21", "1.52", "2.0"},
			},
		}},
	}
	r := newTestEngine(t, zap.NewNop()).ExtractDocument(doc)

	c := first(t, r.Composition, "C")
	assert.Equal(t, 0.21, c.Value)
	assert.Equal(t, model.MethodTableHeader, c.Metadata.Method)
	assert.Equal(t, 2.0, first(t, r.Composition, "Mn").Value)
}

func TestEngine_TableUnknownUnitIsDiscardedWithWarning(t *testing.T) {
	table := func(header, cell string) model.Table {
		return model.Table{
			Caption: "Table 2 Mechanical properties",
			Rows:    [][]string{{"Steel", header}, {"A", cell}},
		}
	}

	tests := []struct {
		name   string
		header string
		cell   string
	}{
		{"unit in header", "Yield strength (psi)", "500"},
		{"unit in cell", "Yield strength", "500 psi"},
		{"cell overrides header", "Yield strength (MPa)", "500 psi"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zapcore.WarnLevel)
			r := newTestEngine(t, zap.New(core)).ExtractTable(table(tt.header, tt.cell))

			assert.Empty(t, r.MechanicalProperties["yield_strength"])
			assert.Positive(t, logs.FilterField(zap.String("unit", "psi")).Len())
		})
	}

	e := newTestEngine(t, zap.NewNop())
	ys := first(t, e.ExtractTable(table("Yield strength (MPa)", "500")).MechanicalProperties, "yield_strength")
	assert.Equal(t, 500.0, ys.Value)
	assert.Equal(t, "MPa", ys.Unit)

	ys = first(t, e.ExtractTable(table("Yield strength (Rp0.2)", "950")).MechanicalProperties, "yield_strength")
	assert.Equal(t, 950.0, ys.Value)
}

func TestComposition_Bidirectional(t *testing.T) {
	ce := NewCompositionExtractor(schema.Default().Schema(model.DomainComposition), 0, zap.NewNop())

	for _, text := range []string{"C: 0.12%", "0.12% C"} {
		fm := ce.Extract(text)
		c := first(t, fm, "C")
		assert.InDelta(t, 0.12, c.Value, 1e-9, text)
		assert.Equal(t, model.MethodCompositionWindow, c.Metadata.Method)
	}
}

func TestComposition_ValueAtEndOfText(t *testing.T) {
	ce := NewCompositionExtractor(schema.Default().Schema(model.DomainComposition), 0, zap.NewNop())

	assert.Equal(t, []float64{1.5}, values(ce.Extract("Mn: 1.5%"), "Mn"))
	assert.Equal(t, []float64{1.0}, values(ce.Extract("Cr: 1.0"), "Cr"))
	assert.Equal(t, []float64{0.12}, values(ce.Extract("The steel contained C: 0.12%"), "C"))

	r := newTestEngine(t, zap.NewNop()).ExtractText("C: 0.12%")
	c := first(t, r.Composition, "C")
	assert.InDelta(t, 0.12, c.Value, 1e-9)
	assert.Equal(t, "wt.%", c.Unit)
}

func TestComposition_Sequences(t *testing.T) {
	ce := NewCompositionExtractor(schema.Default().Schema(model.DomainComposition), 0, zap.NewNop())

	tests := []struct {
		text string
		want map[string]float64
	}{
		{"C 0.12% Si 0.25% Mn 1.5%", map[string]float64{"C": 0.12, "Si": 0.25, "Mn": 1.5}},
		{"0.12% C, 0.25% Si and 1.5% Mn", map[string]float64{"C": 0.12, "Si": 0.25, "Mn": 1.5}},
		{"Fe-0.2C-1.5Mn-0.5Mo", map[string]float64{"C": 0.2, "Mn": 1.5, "Mo": 0.5}},
		{"C: 0.35, Cr: 1.0, Mo: 0.25", map[string]float64{"C": 0.35, "Cr": 1.0, "Mo": 0.25}},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			fm := ce.Extract(tt.text)
			for el, want := range tt.want {
				assert.Equal(t, []float64{want}, values(fm, el), el)
			}
			assert.Equal(t, len(tt.want), len(fm.Fields()))
		})
	}
}

func TestComposition_IgnoresTemperatureUnitsAndImplausible(t *testing.T) {
	ce := NewCompositionExtractor(schema.Default().Schema(model.DomainComposition), 0, zap.NewNop())
	assert.Empty(t, ce.Extract("heated to 950 °C and held").Fields())
	assert.Empty(t, ce.Extract("C: 150%").Fields())
	assert.Empty(t, ce.Extract("strength of 800 N/mm² at 20 %").Fields())
}

func TestFallback_FindsAbbreviations(t *testing.T) {
	fb := NewFallbackExtractor(HeuristicSegmenter{}, schema.Default(), zap.NewNop())
	_, mech := fb.Extract("YS of the alloy reached 950 MPa while tensile strength remained higher.")

	ys := first(t, mech, "yield_strength")
	assert.Equal(t, 950.0, ys.Value)
	assert.Contains(t, []string{model.MethodNLPPunkt, model.MethodHeuristicSentences, model.MethodRegexSentences}, ys.Metadata.Method)
	assert.Empty(t, mech["tensile_strength"])
}

func TestFallback_SkipsIrrelevantSentences(t *testing.T) {
	fb := NewFallbackExtractor(RegexSegmenter{}, schema.Default(), zap.NewNop())
	heat, mech := fb.Extract("We thank 3 reviewers. Samples were tempered at 550 °C.")
	assert.Empty(t, mech.Fields())
	tt := first(t, heat, "tempering_temperature")
	assert.Equal(t, model.MethodRegexSentences, tt.Metadata.Method)
	assert.Equal(t, "Samples were tempered at 550 °C.", tt.Metadata.Sentence)
}

func TestSentenceExtractor_ApproximateAndOperator(t *testing.T) {
	se := NewSentenceExtractor(zap.NewNop())
	heat := schema.Default().Schema(model.DomainHeatTreatment)

	fm := se.Extract([]string{"The cooling rate was approximately 30 °C/s."}, heat, model.MethodRuleRegex)
	cr := first(t, fm, "cooling_rate")
	assert.Equal(t, 30.0, cr.Value)
	require.NotNil(t, cr.Metadata.Qualifiers)
	assert.True(t, cr.Metadata.Qualifiers.Approximate)

	fm = se.Extract([]string{"cooling rate < 5 °C/min"}, heat, model.MethodRuleRegex)
	cr = first(t, fm, "cooling_rate")
	assert.InDelta(t, 5.0/60, cr.Value, 1e-9)
	assert.Equal(t, "<", cr.Metadata.Qualifiers.Operator)
}

func TestSentenceExtractor_ContextGating(t *testing.T) {
	se := NewSentenceExtractor(zap.NewNop())
	heat := schema.Default().Schema(model.DomainHeatTreatment)

	fm := se.Extract([]string{"The test lasted for 30 min."}, heat, model.MethodRuleRegex)
	assert.Empty(t, fm.Fields())
}

func TestSentenceExtractor_RawSpansTriggerAndUnit(t *testing.T) {
	se := NewSentenceExtractor(zap.NewNop())
	mech := schema.Default().Schema(model.DomainMechanical)

	fm := se.Extract([]string{"The hardness of HV 450 was reached."}, mech, model.MethodRuleRegex)
	h := first(t, fm, "hardness")
	assert.Equal(t, 450.0, h.Value)
	assert.Equal(t, "HV", h.Unit)
	assert.Equal(t, "hardness of HV 450", h.Raw)

	fm = se.Extract([]string{"tensile strength of 1.2 GPa"}, mech, model.MethodRuleRegex)
	ts := first(t, fm, "tensile_strength")
	assert.InDelta(t, 1200, ts.Value, 1e-9)
	assert.Equal(t, "tensile strength of 1.2 GPa", ts.Raw)
}

func TestSentenceExtractor_RepeatedAliasesClaimDistinctSpans(t *testing.T) {
	se := NewSentenceExtractor(zap.NewNop())
	mech := schema.Default().Schema(model.DomainMechanical)

	fm := se.Extract([]string{"yield strength 900 MPa before and yield strength 1100 MPa after tempering"}, mech, model.MethodRuleRegex)
	assert.Equal(t, []float64{900, 1100}, values(fm, "yield_strength"))
}

func TestMerge_DropsDuplicates(t *testing.T) {
	m := model.Measurement{
		Field: "yield_strength", Value: 950, Unit: "MPa", Raw: "YS of 950 MPa",
		Metadata: model.Metadata{Method: model.MethodRuleRegex},
	}
	dup := m
	dup.Metadata.Method = model.MethodNLPPunkt
	other := m
	other.Value = 960
	other.Raw = "YS of 960 MPa"

	a := model.FieldMeasurements{}
	a.Add(m)
	b := model.FieldMeasurements{}
	b.Add(dup)
	b.Add(other)

	merged := Merge(a, b)
	require.Len(t, merged["yield_strength"], 2)
	assert.Equal(t, model.MethodRuleRegex, merged["yield_strength"][0].Metadata.Method)
	assert.Equal(t, 960.0, merged["yield_strength"][1].Value)
}

func TestSegmenters(t *testing.T) {
	text := "Heated approx. 950 °C for 1 h. Then cooled。随后回火"

	assert.Equal(t, []string{"Heated approx.", "950 °C for 1 h.", "Then cooled。", "随后回火"}, RegexSegmenter{}.Split(text))
	assert.Equal(t, []string{"Heated approx. 950 °C for 1 h.", "Then cooled。", "随后回火"}, HeuristicSegmenter{}.Split(text))

	assert.Equal(t, model.MethodHeuristicSentences, NewSegmenter(SegmenterHeuristic, nil).Method())
	assert.Equal(t, model.MethodRegexSentences, NewSegmenter(SegmenterRegex, nil).Method())
}

func TestPunktSegmenter(t *testing.T) {
	p, err := NewPunktSegmenter()
	require.NoError(t, err)
	assert.Equal(t, model.MethodNLPPunkt, p.Method())

	out := p.Split("The steel was tempered. The hardness increased。随后冷却")
	assert.Equal(t, []string{"The steel was tempered.", "The hardness increased。", "随后冷却"}, out)
}

func TestCleanText(t *testing.T) {
	assert.Equal(t, "austenitized at 980 °C", CleanText("austen-\nitized  at\n980 ℃"))
	assert.Equal(t, "1.2×10^3 MPa", CleanText("1.2×10³ MPa"))
}
