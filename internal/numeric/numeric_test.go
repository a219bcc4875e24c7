package numeric

import (
	"math"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		raw     string
		value   float64
		min     float64
		max     float64
		isRange bool
	}{
		{"980", 980, 980, 980, false},
		{"0.12", 0.12, 0.12, 0.12, false},
		{"1,200", 1200, 1200, 1200, false},
		{"12,5", 12.5, 12.5, 12.5, false},
		{"0,125", 0.125, 0.125, 0.125, false},
		{"1,234.5", 1234.5, 1234.5, 1234.5, false},
		{"1.2×10^3", 1200, 1200, 1200, false},
		{"1.2×10³", 1200, 1200, 1200, false},
		{"2.5x10-1", 0.25, 0.25, 0.25, false},
		{"10^3", 1000, 1000, 1000, false},
		{"3.5e-2", 0.035, 0.035, 0.035, false},
		{"-196", -196, -196, -196, false},
		{"0.25~0.30", 0.275, 0.25, 0.30, true},
		{"0.25%~0.30%", 0.275, 0.25, 0.30, true},
		{"850–900", 875, 850, 900, true},
		{"850 - 900", 875, 850, 900, true},
		{"900-850", 875, 850, 900, true},
		{"2至4", 3, 2, 4, true},
		{"2.5×10^-1 to 3.0×10^-1", 0.275, 0.25, 0.30, true},
		{"1e-3-3e-3", 0.002, 0.001, 0.003, true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := Parse(tt.raw)
			require.NoError(t, err)
			assert.InDelta(t, tt.value, got.Value, 1e-9)
			assert.InDelta(t, tt.min, got.Min, 1e-9)
			assert.InDelta(t, tt.max, got.Max, 1e-9)
			assert.Equal(t, tt.isRange, got.IsRange)
		})
	}
}

func TestParse_Qualifiers(t *testing.T) {
	got, err := Parse("<0.005")
	require.NoError(t, err)
	assert.Equal(t, "<", got.Operator)
	assert.InDelta(t, 0.005, got.Value, 1e-12)

	got, err = Parse("<= 0.03")
	require.NoError(t, err)
	assert.Equal(t, "≤", got.Operator)

	got, err = Parse("≈980")
	require.NoError(t, err)
	assert.True(t, got.Approximate)
	assert.Empty(t, got.Operator)
	assert.Equal(t, 980.0, got.Value)

	got, err = Parse("~ 0.25-0.30")
	require.NoError(t, err)
	assert.True(t, got.Approximate)
	assert.True(t, got.IsRange)
}

func TestParse_Unparseable(t *testing.T) {
	for _, raw := range []string{"", "%", "abc", "1,2,3", "≤"} {
		_, err := Parse(raw)
		require.Error(t, err, "raw %q", raw)
		assert.True(t, eris.Is(err, ErrUnparseable), "raw %q", raw)
	}
}

func TestParse_ExponentOverflow(t *testing.T) {
	for _, raw := range []string{"1×10^400", "0×10^400", "10^400", "1e400", "2×10^308~3×10^400"} {
		_, err := Parse(raw)
		require.Error(t, err, "raw %q", raw)
		assert.True(t, eris.Is(err, ErrUnparseable), "raw %q", raw)
	}

	expr, err := Parse("1×10^-400")
	require.NoError(t, err)
	assert.Zero(t, expr.Value)

	expr, err = Parse("1.5×10^308~1.7×10^308")
	require.NoError(t, err)
	assert.False(t, math.IsInf(expr.Value, 0))
	assert.InDelta(t, 1.6e308, expr.Value, 1e294)
}

func TestNormalizeText(t *testing.T) {
	assert.Equal(t, "1.2×10^-3", NormalizeText("1.2×10⁻³"))
	assert.Equal(t, "J/cm^2", NormalizeText("J/cm²"))
	assert.Equal(t, "950°C", NormalizeText("950℃"))
	assert.Equal(t, "0.25~0.30%", NormalizeText("０.２５～０.３０％"))
	assert.Equal(t, "-40", NormalizeText("−40"))
	assert.Equal(t, "CO2", NormalizeText("CO₂"))
}

func TestFindSpans(t *testing.T) {
	text := "austenitized at 950 °C for 30 min, then tempered at 200-250 °C"
	spans := FindSpans(text)
	require.Len(t, spans, 3)

	assert.Equal(t, "950", spans[0].Text)
	assert.Equal(t, 950.0, spans[0].Expr.Value)
	assert.Equal(t, "30", spans[1].Text)
	assert.Equal(t, "200-250", spans[2].Text)
	assert.True(t, spans[2].Expr.IsRange)
	assert.Equal(t, text[spans[2].Start:spans[2].End], spans[2].Text)
}

func TestFindSpans_SkipsLetterGluedDigits(t *testing.T) {
	spans := FindSpans("T1 and HV10 measured 450 on Rp0.2")
	require.Len(t, spans, 1)
	assert.Equal(t, "450", spans[0].Text)
}

func TestFindSpans_Forms(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"content 2.5×10^-1 to 3.0×10^-1 wt.%", "2.5×10^-1 to 3.0×10^-1"},
		{"硅 0.25~0.30%", "0.25~0.30"},
		{"硅 0.25%~0.30%", "0.25%~0.30"},
		{"Charpy at -40 °C", "-40"},
		{"P <0.005 wt.%", "<0.005"},
		{"about ≈ 980 °C", "≈ 980"},
		{"held 2至4 h", "2至4"},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			spans := FindSpans(tt.text)
			require.NotEmpty(t, spans)
			assert.Equal(t, tt.want, spans[0].Text)
		})
	}
}

func TestFindSpans_HyphenIsNotSign(t *testing.T) {
	spans := FindSpans("Fe-0.2C-1.5Mn")
	require.Len(t, spans, 2)
	assert.Equal(t, 0.2, spans[0].Expr.Value)
	assert.Equal(t, 1.5, spans[1].Expr.Value)
}
