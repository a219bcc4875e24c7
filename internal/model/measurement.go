package model

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
)

// Extraction method labels recorded in Metadata.Method
const (
	MethodRuleRegex          = "rule_regex"
	MethodCompositionWindow  = "composition_window"
	MethodTableHeader        = "table_header"
	MethodNLPPunkt           = "nlp_punkt"
	MethodHeuristicSentences = "heuristic_sentencizer"
	MethodRegexSentences     = "regex_sentences"
)

// Domain names for the four result sections
const (
	DomainComposition    = "composition"
	DomainHeatTreatment  = "heat_treatment"
	DomainMechanical     = "mechanical_properties"
	DomainMicrostructure = "microstructure"
)

// Domains lists the result sections in output order
var Domains = []string{DomainComposition, DomainHeatTreatment, DomainMechanical, DomainMicrostructure}

// Range is an inclusive numeric interval in the field's base unit
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Qualifiers records approximate wording and comparison operators
type Qualifiers struct {
	Approximate bool   `json:"approximate,omitempty"`
	Operator    string `json:"operator,omitempty"` // <, >, ≤, ≥
}

// IsZero reports whether no qualifier was seen
func (q Qualifiers) IsZero() bool {
	return !q.Approximate && q.Operator == ""
}

// Metadata is the provenance attached to every measurement
type Metadata struct {
	Method     string      `json:"method"`
	Sentence   string      `json:"sentence,omitempty"`
	Trigger    string      `json:"trigger,omitempty"`
	Page       *int        `json:"page,omitempty"`
	Qualifiers *Qualifiers `json:"qualifiers,omitempty"`
}

// Measurement is one extracted value for one field.
// Numeric values and ranges are always expressed in the field's base unit.
// Categorical fields carry Category and an empty Unit.
type Measurement struct {
	Field    string
	Value    float64
	Category string
	Unit     string
	Range    *Range
	Raw      string
	Metadata Metadata
}

// IsCategorical reports whether the measurement holds a category label
func (m Measurement) IsCategorical() bool {
	return m.Category != ""
}

// DedupKey identifies measurements that are the same extraction of the same text
func (m Measurement) DedupKey() string {
	value := m.Category
	if !m.IsCategorical() {
		value = fmt.Sprintf("%.6f", round6(m.Value))
	}
	rng := ""
	if m.Range != nil {
		rng = fmt.Sprintf("%.6f:%.6f", round6(m.Range.Min), round6(m.Range.Max))
	}
	return m.Field + "\x1f" + value + "\x1f" + m.Unit + "\x1f" + rng + "\x1f" + m.Raw
}

func round6(v float64) float64 {
	r := math.Round(v*1e6) / 1e6
	if r == 0 {
		return 0 // fold -0
	}
	return r
}

type measurementJSON struct {
	Field    string          `json:"field"`
	Value    json.RawMessage `json:"value"`
	Unit     *string         `json:"unit"`
	Range    *Range          `json:"range,omitempty"`
	Raw      string          `json:"raw"`
	Metadata Metadata        `json:"metadata"`
}

// MarshalJSON renders value as a number, or as a string for categorical fields,
// and unit as null when absent.
func (m Measurement) MarshalJSON() ([]byte, error) {
	var (
		value []byte
		err   error
	)
	if m.IsCategorical() {
		value, err = json.Marshal(m.Category)
	} else {
		value, err = json.Marshal(m.Value)
	}
	if err != nil {
		return nil, err
	}

	out := measurementJSON{
		Field:    m.Field,
		Value:    value,
		Range:    m.Range,
		Raw:      m.Raw,
		Metadata: m.Metadata,
	}
	if m.Unit != "" {
		unit := m.Unit
		out.Unit = &unit
	}
	return json.Marshal(out)
}

// UnmarshalJSON is the inverse of MarshalJSON
func (m *Measurement) UnmarshalJSON(data []byte) error {
	var in measurementJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}

	*m = Measurement{
		Field:    in.Field,
		Range:    in.Range,
		Raw:      in.Raw,
		Metadata: in.Metadata,
	}
	if in.Unit != nil {
		m.Unit = *in.Unit
	}
	if len(in.Value) == 0 || string(in.Value) == "null" {
		return nil
	}
	if in.Value[0] == '"' {
		return json.Unmarshal(in.Value, &m.Category)
	}
	return json.Unmarshal(in.Value, &m.Value)
}

// FieldMeasurements maps a canonical field name to all of its measurements
type FieldMeasurements map[string][]Measurement

// Add appends a measurement under its field
func (f FieldMeasurements) Add(m Measurement) {
	f[m.Field] = append(f[m.Field], m)
}

// Fields returns field names in sorted order
func (f FieldMeasurements) Fields() []string {
	names := make([]string, 0, len(f))
	for name := range f {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Count returns the total number of measurements
func (f FieldMeasurements) Count() int {
	n := 0
	for _, ms := range f {
		n += len(ms)
	}
	return n
}

// First returns the first measurement recorded for a field
func (f FieldMeasurements) First(field string) (Measurement, bool) {
	ms := f[field]
	if len(ms) == 0 {
		return Measurement{}, false
	}
	return ms[0], true
}

// DocumentResult holds extracted measurements grouped by domain
type DocumentResult struct {
	Composition          FieldMeasurements `json:"composition"`
	HeatTreatment        FieldMeasurements `json:"heat_treatment"`
	MechanicalProperties FieldMeasurements `json:"mechanical_properties"`
	Microstructure       FieldMeasurements `json:"microstructure"`
}

// NewDocumentResult returns a result with all sections initialized
func NewDocumentResult() DocumentResult {
	return DocumentResult{
		Composition:          FieldMeasurements{},
		HeatTreatment:        FieldMeasurements{},
		MechanicalProperties: FieldMeasurements{},
		Microstructure:       FieldMeasurements{},
	}
}

// Section returns the measurements for a domain name
func (r DocumentResult) Section(domain string) FieldMeasurements {
	switch domain {
	case DomainComposition:
		return r.Composition
	case DomainHeatTreatment:
		return r.HeatTreatment
	case DomainMechanical:
		return r.MechanicalProperties
	case DomainMicrostructure:
		return r.Microstructure
	}
	return nil
}

// IsEmpty reports whether no section holds any measurement
func (r DocumentResult) IsEmpty() bool {
	for _, d := range Domains {
		if r.Section(d).Count() > 0 {
			return false
		}
	}
	return true
}

// SetSection replaces the measurements of a domain
func (r *DocumentResult) SetSection(domain string, fm FieldMeasurements) {
	switch domain {
	case DomainComposition:
		r.Composition = fm
	case DomainHeatTreatment:
		r.HeatTreatment = fm
	case DomainMechanical:
		r.MechanicalProperties = fm
	case DomainMicrostructure:
		r.Microstructure = fm
	}
}
