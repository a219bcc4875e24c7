package quality

import (
	"fmt"
	"sort"
	"time"

	"github.com/ppiankov/steelminer/internal/model"
	"github.com/ppiankov/steelminer/internal/units"
)

// holdingTimeFields must not be zero
var holdingTimeFields = []string{"austenitizing_time", "isothermal_time", "tempering_time"}

// Checker annotates extraction results with completeness and plausibility
// signals. It never alters a measurement.
type Checker struct {
	rules model.QualityConfig
	now   func() time.Time
}

// NewChecker creates a checker for the given rules
func NewChecker(rules model.QualityConfig) *Checker {
	return &Checker{rules: rules, now: time.Now}
}

// CheckDocument scores one report. Derived metrics are read from
// report.Derived, so callers compute them first.
func (c *Checker) CheckDocument(report model.Report) model.QualityScore {
	r := report.Result
	score := model.QualityScore{
		FilledSections:  []string{},
		MissingSections: []string{},
		Signals:         []model.Signal{},
	}

	// 1. Completeness
	for _, domain := range model.Domains {
		if r.Section(domain).Count() > 0 {
			score.FilledSections = append(score.FilledSections, domain)
			continue
		}
		score.MissingSections = append(score.MissingSections, domain)
		score.Signals = append(score.Signals, model.Signal{
			Type:        model.SignalMissingSection,
			Severity:    model.SeverityInfo,
			Field:       domain,
			Description: fmt.Sprintf("No %s measurements extracted", domain),
		})
	}
	score.Confidence = round(float64(len(score.FilledSections))/float64(len(model.Domains)), 3)

	if r.IsEmpty() {
		score.Signals = append(score.Signals, model.Signal{
			Type:        model.SignalEmptyDocument,
			Severity:    model.SeverityCritical,
			Description: "Nothing extracted from document",
			Data:        map[string]interface{}{"document": report.DocumentID},
		})
		return score
	}

	// 2. Configured ranges
	score.Signals = append(score.Signals, c.rangeSignals(r)...)

	// 3. Physical bounds
	score.Signals = append(score.Signals, boundSignals(r)...)

	// 4. Derived metrics
	if ce := report.Derived.CarbonEquivalent; ce != nil && c.rules.MaxCarbonEquivalent > 0 && *ce > c.rules.MaxCarbonEquivalent {
		score.Signals = append(score.Signals, model.Signal{
			Type:        model.SignalDerivedMetric,
			Severity:    model.SeverityWarning,
			Field:       "carbon_equivalent",
			Description: fmt.Sprintf("Carbon equivalent %.3f exceeds %.2f", *ce, c.rules.MaxCarbonEquivalent),
			Data: map[string]interface{}{
				"value":   *ce,
				"limit":   c.rules.MaxCarbonEquivalent,
				"formula": "C + Mn/6 + (Cr+Mo+V)/5 + (Ni+Cu)/15",
			},
		})
	}

	// 5. Logical consistency
	score.Signals = append(score.Signals, logicalSignals(r)...)

	return score
}

func (c *Checker) rangeSignals(r model.DocumentResult) []model.Signal {
	fields := make([]string, 0, len(c.rules.Ranges))
	for f := range c.rules.Ranges {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	var signals []model.Signal
	for _, field := range fields {
		bound := c.rules.Ranges[field]
		for _, m := range measurementsOf(r, field) {
			if m.IsCategorical() || (m.Value >= bound.Min && m.Value <= bound.Max) {
				continue
			}
			limit := bound.Max
			if m.Value < bound.Min {
				limit = bound.Min
			}
			signals = append(signals, model.Signal{
				Type:        model.SignalRangeAnomaly,
				Severity:    model.SeverityWarning,
				Field:       field,
				Description: fmt.Sprintf("%s %.4g %s outside [%g, %g]", field, m.Value, m.Unit, bound.Min, bound.Max),
				Data: map[string]interface{}{
					"value": m.Value,
					"unit":  m.Unit,
					"limit": limit,
					"raw":   m.Raw,
				},
			})
		}
	}
	return signals
}

// boundSignals flags values no unit allows: negatives and fractions over 100 %
func boundSignals(r model.DocumentResult) []model.Signal {
	var signals []model.Signal
	for _, domain := range model.Domains {
		fm := r.Section(domain)
		for _, field := range fm.Fields() {
			for _, m := range fm[field] {
				if m.IsCategorical() {
					continue
				}
				switch {
				case m.Value < 0:
					signals = append(signals, criticalBound(m, "negative value"))
				case isPercent(m.Unit) && m.Value > 100:
					signals = append(signals, criticalBound(m, "fraction above 100%"))
				}
			}
		}
	}
	return signals
}

func criticalBound(m model.Measurement, what string) model.Signal {
	return model.Signal{
		Type:        model.SignalRangeAnomaly,
		Severity:    model.SeverityCritical,
		Field:       m.Field,
		Description: fmt.Sprintf("%s: %s %.4g %s", what, m.Field, m.Value, m.Unit),
		Data:        map[string]interface{}{"value": m.Value, "unit": m.Unit, "raw": m.Raw},
	}
}

func logicalSignals(r model.DocumentResult) []model.Signal {
	var signals []model.Signal
	heat := r.HeatTreatment

	for _, field := range holdingTimeFields {
		for _, m := range heat[field] {
			if m.Value == 0 {
				signals = append(signals, model.Signal{
					Type:        model.SignalLogicalIssue,
					Severity:    model.SeverityWarning,
					Field:       field,
					Description: fmt.Sprintf("%s is zero", field),
					Data:        map[string]interface{}{"value": m.Value, "raw": m.Raw},
				})
			}
		}
	}

	if len(heat["tempering_temperature"]) > 0 && len(heat["tempering_time"]) == 0 {
		signals = append(signals, model.Signal{
			Type:        model.SignalLogicalIssue,
			Severity:    model.SeverityWarning,
			Field:       "tempering_time",
			Description: "Tempering temperature present but tempering time missing",
			Data:        map[string]interface{}{"tempering_temperature": heat["tempering_temperature"][0].Value},
		})
	}
	return signals
}

func measurementsOf(r model.DocumentResult, field string) []model.Measurement {
	for _, domain := range model.Domains {
		if ms := r.Section(domain)[field]; len(ms) > 0 {
			return ms
		}
	}
	return nil
}

func isPercent(unit string) bool {
	u, ok := units.ByName(unit)
	return ok && u.Type == units.Percent
}
