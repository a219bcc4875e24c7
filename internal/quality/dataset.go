package quality

import (
	"github.com/ppiankov/steelminer/internal/model"
)

// Annotate fills in a report's derived metrics and quality score
func (c *Checker) Annotate(report *model.Report) {
	report.Derived = DerivedMetrics(report.Result.Composition)
	report.Quality = c.CheckDocument(*report)
}

// CheckDataset rescores every report with the current rules and summarizes
// missing rates, field coverage and the documents that need review.
// The input reports are left untouched.
func (c *Checker) CheckDataset(reports []model.Report) model.DatasetReport {
	ds := model.DatasetReport{
		GeneratedAt:    c.now().UTC(),
		TotalDocuments: len(reports),
		MissingRates:   make(map[string]float64, len(model.Domains)),
		FieldCoverage:  make(map[string]int),
	}

	missing := make(map[string]int, len(model.Domains))
	var confidence float64

	for _, r := range reports {
		r.Derived = DerivedMetrics(r.Result.Composition)
		score := c.CheckDocument(r)
		confidence += score.Confidence

		for _, domain := range model.Domains {
			fm := r.Result.Section(domain)
			if fm.Count() == 0 {
				missing[domain]++
			}
			for _, field := range fm.Fields() {
				ds.FieldCoverage[field]++
			}
		}

		var flagged []model.Signal
		for _, s := range score.Signals {
			switch s.Type {
			case model.SignalRangeAnomaly, model.SignalDerivedMetric:
				ds.Anomalies++
			case model.SignalLogicalIssue:
				ds.LogicalIssues++
			}
			if s.Type != model.SignalMissingSection && s.Severity != model.SeverityInfo {
				flagged = append(flagged, s)
			}
		}
		if len(flagged) > 0 {
			ds.Flagged = append(ds.Flagged, model.FlaggedDocument{DocumentID: r.DocumentID, Signals: flagged})
		}
	}

	total := max(len(reports), 1)
	for _, domain := range model.Domains {
		ds.MissingRates[domain] = round(float64(missing[domain])/float64(total), 3)
	}
	if len(reports) > 0 {
		ds.MeanConfidence = round(confidence/float64(len(reports)), 3)
	}
	return ds
}
