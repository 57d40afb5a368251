package detect

import (
	"fmt"
	"time"

	"github.com/blue-harvest-ops/fieldaudit/internal/models"
)

// SessionDetector checks that every remote activity is corroborated by
// remote-session records for the same technician.
type SessionDetector struct {
	cfg Config
}

// NewSessionDetector creates a SessionDetector with the given tunables.
func NewSessionDetector(cfg Config) *SessionDetector {
	return &SessionDetector{cfg: cfg}
}

// Name returns the detector name.
func (d *SessionDetector) Name() string { return "missing_remote_session" }

// Detect matches each REMOTE activity against sessions overlapping the
// activity window extended by the search margin on both sides, and flags
// activities whose matched session total stays below the minimum.
func (d *SessionDetector) Detect(in Input, now time.Time) []models.Finding {
	var findings []models.Finding

	for _, act := range in.Activities {
		if !act.Valid() || act.Kind != models.KindRemote {
			continue
		}

		windowStart := act.Start.Add(-d.cfg.SessionSearchWindow)
		windowEnd := act.End.Add(d.cfg.SessionSearchWindow)

		var matched int
		var total time.Duration
		for _, s := range in.Sessions {
			if !s.Valid() {
				continue
			}
			if s.Start.Before(windowEnd) && s.End.After(windowStart) {
				matched++
				total += s.Duration()
			}
		}

		if total >= d.cfg.MinSessionDuration {
			continue
		}

		confidence := Score(60,
			Factor{matched == 0, 25},
			Factor{act.Duration() >= time.Hour, 10},
		)
		if !MeetsThreshold(confidence, d.cfg.SessionMinConfidence) {
			continue
		}

		findings = append(findings, models.Finding{
			Category:   models.CategoryMissingSession,
			Severity:   models.SeverityAlto,
			Confidence: confidence,
			Technician: act.Technician,
			Summary: fmt.Sprintf("%s: remote activity for %s lacks session corroboration (%.0f of %.0f min)",
				act.Technician, act.Client, total.Minutes(), d.cfg.MinSessionDuration.Minutes()),
			Evidence: models.Evidence{
				"activity_id":       act.ID,
				"client":            act.Client,
				"activity_window":   formatWindow(act.Start, act.End),
				"sessions_matched":  fmt.Sprintf("%d", matched),
				"matched_minutes":   fmt.Sprintf("%.0f", total.Minutes()),
				"required_minutes":  fmt.Sprintf("%.0f", d.cfg.MinSessionDuration.Minutes()),
			},
			DetectedAt: now,
		})
	}

	return findings
}
