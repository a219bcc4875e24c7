package extract

import "github.com/ppiankov/steelminer/internal/model"

// Merge combines measurement groups field by field. Groups are taken in
// argument order and the first occurrence of each duplicate is kept, so
// earlier passes win ties.
func Merge(groups ...model.FieldMeasurements) model.FieldMeasurements {
	out := model.FieldMeasurements{}
	seen := make(map[string]bool)
	for _, g := range groups {
		for _, field := range g.Fields() {
			for _, m := range g[field] {
				key := m.DedupKey()
				if seen[key] {
					continue
				}
				seen[key] = true
				out.Add(m)
			}
		}
	}
	return out
}

// MergeResults merges document results section by section
func MergeResults(results ...model.DocumentResult) model.DocumentResult {
	out := model.NewDocumentResult()
	for _, domain := range model.Domains {
		groups := make([]model.FieldMeasurements, 0, len(results))
		for _, r := range results {
			groups = append(groups, r.Section(domain))
		}
		out.SetSection(domain, Merge(groups...))
	}
	return out
}
