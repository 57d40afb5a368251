package alert

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/blue-harvest-ops/fieldaudit/internal/models"
)

// hourlyRateEUR is the average billable rate used to estimate the loss
// behind a double-billed overlap.
const hourlyRateEUR = 30.0

// Factory builds alerts from findings. Alerts are immutable; the factory
// fills recipients, priority and message content, and leaves delivery to the
// notifier.
type Factory struct {
	directory Directory
	now       func() time.Time
}

// NewFactory creates a Factory over the given team directory.
func NewFactory(directory Directory, now func() time.Time) *Factory {
	directory.SetDefaults()
	if now == nil {
		now = time.Now
	}
	return &Factory{directory: directory, now: now}
}

// FromFindings builds one alert per finding.
func (f *Factory) FromFindings(findings []models.Finding) []models.Alert {
	alerts := make([]models.Alert, 0, len(findings))
	for _, finding := range findings {
		alerts = append(alerts, f.FromFinding(finding))
	}
	return alerts
}

// FromFinding builds the alert for one finding. The ID depends only on the
// finding's category, technician and evidence, so re-running detection over
// the same records produces the same alert IDs.
func (f *Factory) FromFinding(finding models.Finding) models.Alert {
	priority := PriorityFor(finding)

	alert := models.Alert{
		ID:               alertID(finding),
		Finding:          finding,
		Priority:         priority,
		PrimaryRecipient: f.directory.MemberEmail(finding.Technician),
		Subject:          subjectFor(finding),
		Message:          messageFor(finding),
		CorrectionSteps:  correctionStepsFor(finding.Category),
		EstimatedLoss:    estimatedLoss(finding),
		FollowupRequired: followupRequired(finding.Category),
		CreatedAt:        f.now(),
	}

	if cc := f.directory.SupervisorEmail(finding.Technician); cc != "" {
		alert.CCRecipients = append(alert.CCRecipients, cc)
	}
	if priority == models.PriorityImmediate && f.directory.ManagementEmail != "" {
		alert.CCRecipients = append(alert.CCRecipients, f.directory.ManagementEmail)
	}

	return alert
}

// PriorityFor maps severity and confidence to a notification priority.
func PriorityFor(finding models.Finding) models.Priority {
	switch {
	case finding.Severity == models.SeverityCritico && finding.Confidence >= 90:
		return models.PriorityImmediate
	case finding.Severity == models.SeverityCritico && finding.Confidence >= 70:
		return models.PriorityUrgent
	case finding.Severity == models.SeverityAlto && finding.Confidence >= 60:
		return models.PriorityUrgent
	case finding.Confidence >= 80:
		return models.PriorityNormal
	default:
		return models.PriorityInfo
	}
}

// alertID fingerprints the finding. Evidence keys are sorted so map
// iteration order cannot change the ID.
func alertID(finding models.Finding) string {
	keys := make([]string, 0, len(finding.Evidence))
	for k := range finding.Evidence {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	h := sha256.New()
	fmt.Fprintf(h, "%s|%s", finding.Category, finding.Technician)
	for _, k := range keys {
		fmt.Fprintf(h, "|%s=%s", k, finding.Evidence[k])
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}

func subjectFor(finding models.Finding) string {
	ev := finding.Evidence
	switch finding.Category {
	case models.CategoryTemporalOverlap:
		return fmt.Sprintf("URGENT: overlapping activities at %s / %s",
			ev["activity_1_client"], ev["activity_2_client"])
	case models.CategoryInsufficientTravel:
		return fmt.Sprintf("WARNING: insufficient travel time %s -> %s",
			ev["from_client"], ev["to_client"])
	case models.CategoryMissingSession:
		return fmt.Sprintf("CHECK: remote activity at %s without session records", ev["client"])
	case models.CategoryMissingReport:
		return fmt.Sprintf("MISSING: activity report for %s", ev["date"])
	default:
		return fmt.Sprintf("Alert: %s", finding.Summary)
	}
}

func messageFor(finding models.Finding) string {
	var b strings.Builder
	b.WriteString(finding.Summary)
	b.WriteString("\n\nImpact: ")
	b.WriteString(businessImpact(finding.Category))

	if loss := estimatedLoss(finding); loss > 0 {
		fmt.Fprintf(&b, "\nEstimated loss if uncorrected: EUR %.2f", loss)
	}

	b.WriteString("\n\nDetails:")
	keys := make([]string, 0, len(finding.Evidence))
	for k := range finding.Evidence {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "\n  %s: %s", k, finding.Evidence[k])
	}
	fmt.Fprintf(&b, "\n  confidence: %.0f%%", finding.Confidence)

	return b.String()
}

func businessImpact(category models.Category) string {
	switch category {
	case models.CategoryTemporalOverlap:
		return "double billing risk"
	case models.CategoryInsufficientTravel:
		return "delay and client dissatisfaction risk"
	case models.CategoryMissingSession:
		return "unverifiable remote work"
	case models.CategoryMissingReport:
		return "billing traceability loss"
	default:
		return "to be assessed"
	}
}

func correctionStepsFor(category models.Category) []string {
	switch category {
	case models.CategoryTemporalOverlap:
		return []string{
			"Verify the declared time windows immediately",
			"Contact the clients to confirm the actual schedule",
			"Correct the billing records if needed",
			"Adjust planning to avoid future overlaps",
		}
	case models.CategoryInsufficientTravel:
		return []string{
			"Check the feasibility of the planned schedule",
			"Consider route optimization",
			"Reschedule the activity if needed",
			"Inform the clients of possible delays",
		}
	case models.CategoryMissingSession:
		return []string{
			"Verify the declared activity type",
			"Check the remote session records",
			"Update the declaration if needed",
		}
	case models.CategoryMissingReport:
		return []string{
			"File the missing activity report immediately",
			"Verify the completeness of the activity data",
			"Cross-check the matching timesheet entries",
			"Inform the supervisor in case of technical problems",
		}
	default:
		return []string{
			"Review the alert details",
			"Contact the supervisor if needed",
		}
	}
}

// estimatedLoss prices an overlap at the average billable rate. Other
// categories have no direct monetary estimate.
func estimatedLoss(finding models.Finding) float64 {
	if finding.Category != models.CategoryTemporalOverlap {
		return 0
	}
	minutes, err := strconv.ParseFloat(finding.Evidence["overlap_minutes"], 64)
	if err != nil || minutes <= 0 {
		return 0
	}
	return minutes / 60 * hourlyRateEUR
}

// followupRequired reports whether the category needs follow-up checks
// until the alert is resolved. Travel findings are advisory; there is
// nothing to re-verify after the day has passed.
func followupRequired(category models.Category) bool {
	return category != models.CategoryInsufficientTravel
}
