// Package workflow drives the alert lifecycle: dispatch, grouping,
// SLA escalation, follow-up reminders and resolution tracking.
package workflow

import (
	"time"

	"github.com/blue-harvest-ops/fieldaudit/internal/models"
)

// Status is the lifecycle state of a tracked alert.
type Status string

const (
	StatusPending      Status = "pending"      // created, not yet delivered
	StatusSent         Status = "sent"         // delivered to the recipient
	StatusAcknowledged Status = "acknowledged" // recipient confirmed receipt
	StatusInProgress   Status = "in_progress"  // correction underway
	StatusResolved     Status = "resolved"     // problem fixed
	StatusEscalated    Status = "escalated"    // raised to supervisor or management
	StatusClosed       Status = "closed"       // closed without resolution
)

// Terminal reports whether the status accepts no further transitions.
func (s Status) Terminal() bool {
	return s == StatusResolved || s == StatusClosed
}

// Active reports whether the alert still demands attention.
func (s Status) Active() bool {
	return !s.Terminal()
}

// EscalationLevel is the tier an unanswered alert was raised to.
type EscalationLevel int

const (
	EscalationNone       EscalationLevel = 0
	EscalationSupervisor EscalationLevel = 1
	EscalationManagement EscalationLevel = 2
)

// String returns the wire name for the escalation level.
func (l EscalationLevel) String() string {
	switch l {
	case EscalationSupervisor:
		return "SUPERVISOR"
	case EscalationManagement:
		return "MANAGEMENT"
	default:
		return "NONE"
	}
}

// AlertTracking is the mutable lifecycle record for one alert. All access
// goes through the manager's mutex.
type AlertTracking struct {
	Alert  models.Alert `json:"alert"`
	Status Status       `json:"status"`

	CreatedAt      time.Time  `json:"created_at"`
	SentAt         *time.Time `json:"sent_at,omitempty"`
	AcknowledgedAt *time.Time `json:"acknowledged_at,omitempty"`
	ResolvedAt     *time.Time `json:"resolved_at,omitempty"`

	EscalationLevel  EscalationLevel `json:"escalation_level"`
	EscalatedAt      *time.Time      `json:"escalated_at,omitempty"`
	EscalationReason string          `json:"escalation_reason,omitempty"`

	FollowupCount int        `json:"followup_count"`
	LastFollowup  *time.Time `json:"last_followup,omitempty"`

	ResolutionNotes  string        `json:"resolution_notes,omitempty"`
	ResolutionMethod string        `json:"resolution_method,omitempty"`
	TimeToResolution time.Duration `json:"time_to_resolution,omitempty"`

	GroupID string `json:"group_id,omitempty"`
}

// anchor is the reference instant for escalation and follow-up timing.
func (t *AlertTracking) anchor() time.Time {
	if t.SentAt != nil {
		return *t.SentAt
	}
	return t.CreatedAt
}

// AlertGroup batches similar alerts for one recipient into a single digest
// delivery, so a bad data day does not become thirty emails.
type AlertGroup struct {
	ID            string          `json:"id"`
	Recipient     string          `json:"recipient"`
	Category      models.Category `json:"category"`
	AlertIDs      []string        `json:"alert_ids"`
	CreatedAt     time.Time       `json:"created_at"`
	ScheduledSend time.Time       `json:"scheduled_send"`
	SentAt        *time.Time      `json:"sent_at,omitempty"`
}

// Statistics is a point-in-time summary of the workflow state.
type Statistics struct {
	TotalAlerts        int           `json:"total_alerts"`
	ActiveAlerts       int           `json:"active_alerts"`
	ResolvedAlerts     int           `json:"resolved_alerts"`
	ClosedAlerts       int           `json:"closed_alerts"`
	GroupedAlerts      int           `json:"grouped_alerts"`
	PendingEscalations int           `json:"pending_escalations"`
	FollowupsSent      int           `json:"followups_sent"`
	AvgResolutionTime  time.Duration `json:"avg_resolution_time"`
}

// Snapshot is the exportable state of the workflow, for persistence and the
// operations API.
type Snapshot struct {
	ExportedAt time.Time       `json:"exported_at"`
	Statistics Statistics      `json:"statistics"`
	Tracking   []AlertTracking `json:"tracking"`
	Groups     []AlertGroup    `json:"groups"`
}
