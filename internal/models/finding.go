package models

import "time"

// Category identifies the anomaly class a detector reports.
type Category string

const (
	CategoryTemporalOverlap    Category = "temporal_overlap"
	CategoryInsufficientTravel Category = "insufficient_travel_time"
	CategoryMissingSession     Category = "missing_remote_session"
	CategoryMissingReport      Category = "missing_report"
)

// Severity ranks findings; a lower number is more severe.
type Severity int

const (
	SeverityCritico Severity = 1
	SeverityAlto    Severity = 2
	SeverityMedio   Severity = 3
	SeverityBasso   Severity = 4
)

// String returns the business name for the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityCritico:
		return "CRITICO"
	case SeverityAlto:
		return "ALTO"
	case SeverityMedio:
		return "MEDIO"
	case SeverityBasso:
		return "BASSO"
	default:
		return "UNKNOWN"
	}
}

// ParseSeverity converts a business name to Severity.
func ParseSeverity(s string) Severity {
	switch s {
	case "CRITICO":
		return SeverityCritico
	case "ALTO":
		return SeverityAlto
	case "MEDIO":
		return SeverityMedio
	case "BASSO":
		return SeverityBasso
	default:
		return SeverityMedio
	}
}

// Evidence is the key-value record of the facts that justified a finding.
// Keys are stable identifiers; values are already formatted for display.
type Evidence map[string]string

// Finding is one scored anomaly candidate produced by a detector.
// It is never mutated after creation.
type Finding struct {
	Category   Category  `json:"category"`
	Severity   Severity  `json:"severity"`
	Confidence float64   `json:"confidence"`
	Technician string    `json:"technician"`
	Summary    string    `json:"summary"`
	Evidence   Evidence  `json:"evidence"`
	DetectedAt time.Time `json:"detected_at"`
}
