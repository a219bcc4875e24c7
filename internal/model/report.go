package model

import "time"

// Report is the complete extraction output for one document
type Report struct {
	DocumentID  string     `json:"document_id"`  // Identity of the processed document
	Source      string     `json:"source"`       // Path or locator that was loaded
	ExtractedAt time.Time  `json:"extracted_at"` // When extraction ran
	SourceMeta  SourceMeta `json:"source_meta"`  // Loader metadata

	Result  DocumentResult `json:"result"`           // Measurements by domain
	Derived Derived        `json:"derived"`          // Metrics computed from the result
	Quality QualityScore   `json:"quality"`          // Completeness and anomaly signals
	RunID   string         `json:"run_id,omitempty"` // Batch run that produced the report
}

// Derived holds metrics computed from composition
type Derived struct {
	CarbonEquivalent *float64 `json:"carbon_equivalent,omitempty"` // C + Mn/6 + (Cr+Mo+V)/5 + (Ni+Cu)/15
	TotalKeyAlloy    *float64 `json:"total_key_alloy,omitempty"`   // Sum of key alloying elements (wt.%)
}

// QualityScore is the transparent quality breakdown of one report
type QualityScore struct {
	Confidence      float64  `json:"confidence"`       // Filled sections / total sections
	FilledSections  []string `json:"filled_sections"`  // Domains with at least one measurement
	MissingSections []string `json:"missing_sections"` // Domains with none
	Signals         []Signal `json:"signals"`          // Diagnostic signals
}

// Signal represents a diagnostic signal with transparent data
type Signal struct {
	Type        SignalType             `json:"type"`            // Signal classification
	Severity    SignalSeverity         `json:"severity"`        // info, warning, critical
	Field       string                 `json:"field,omitempty"` // Field the signal is about
	Description string                 `json:"description"`     // Human-readable description
	Data        map[string]interface{} `json:"data,omitempty"`  // Inputs and thresholds
}

// SignalType classifies the type of diagnostic signal
type SignalType string

const (
	SignalMissingSection SignalType = "missing_section" // Domain with no measurements
	SignalRangeAnomaly   SignalType = "range_anomaly"   // Value beyond a plausibility rule
	SignalLogicalIssue   SignalType = "logical_issue"   // Inconsistent combination of fields
	SignalDerivedMetric  SignalType = "derived_metric"  // Derived metric out of range
	SignalEmptyDocument  SignalType = "empty_document"  // Nothing extracted at all
)

// SignalSeverity indicates the importance of the signal
type SignalSeverity string

const (
	SeverityInfo     SignalSeverity = "info"
	SeverityWarning  SignalSeverity = "warning"
	SeverityCritical SignalSeverity = "critical"
)

// DatasetReport summarizes quality across many documents
type DatasetReport struct {
	GeneratedAt    time.Time          `json:"generated_at"`
	TotalDocuments int                `json:"total_documents"`
	MissingRates   map[string]float64 `json:"missing_rates"`   // Share of documents missing each section
	FieldCoverage  map[string]int     `json:"field_coverage"`  // Documents carrying each field
	Anomalies      int                `json:"anomalies"`       // Range and derived-metric signals
	LogicalIssues  int                `json:"logical_issues"`  // Logical inconsistency signals
	MeanConfidence float64            `json:"mean_confidence"` // Average per-document confidence
	Flagged        []FlaggedDocument  `json:"flagged,omitempty"`
}

// FlaggedDocument lists the warning-or-worse signals of one document
type FlaggedDocument struct {
	DocumentID string   `json:"document_id"`
	Signals    []Signal `json:"signals"`
}
