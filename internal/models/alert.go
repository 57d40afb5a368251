package models

import "time"

// Priority drives dispatch and escalation timing. Lower is more urgent.
type Priority int

const (
	PriorityImmediate Priority = 1
	PriorityUrgent    Priority = 2
	PriorityNormal    Priority = 3
	PriorityInfo      Priority = 4
)

// String returns the wire name for the priority.
func (p Priority) String() string {
	switch p {
	case PriorityImmediate:
		return "IMMEDIATE"
	case PriorityUrgent:
		return "URGENT"
	case PriorityNormal:
		return "NORMAL"
	case PriorityInfo:
		return "INFO"
	default:
		return "UNKNOWN"
	}
}

// ParsePriority converts a wire name to Priority.
func ParsePriority(s string) Priority {
	switch s {
	case "IMMEDIATE":
		return PriorityImmediate
	case "URGENT":
		return PriorityUrgent
	case "NORMAL":
		return PriorityNormal
	case "INFO":
		return PriorityInfo
	default:
		return PriorityNormal
	}
}

// Alert is an immutable, addressable notification derived from a Finding
// that passed its confidence threshold. The ID is a deterministic function
// of (category, technician, evidence fingerprint), so re-running detection
// on the same data yields the same IDs.
type Alert struct {
	ID              string    `json:"id"`
	Finding         Finding   `json:"finding"`
	Priority        Priority  `json:"priority"`
	PrimaryRecipient string   `json:"primary_recipient"`
	CCRecipients    []string  `json:"cc_recipients,omitempty"`
	Subject         string    `json:"subject"`
	Message         string    `json:"message"`
	CorrectionSteps []string  `json:"correction_steps,omitempty"`
	EstimatedLoss   float64   `json:"estimated_loss,omitempty"`
	FollowupRequired bool     `json:"followup_required"`
	CreatedAt       time.Time `json:"created_at"`
}

// SendImmediately reports whether the alert bypasses grouping.
func (a Alert) SendImmediately() bool {
	return a.Priority == PriorityImmediate
}
