package detect

import (
	"fmt"
	"sort"
	"time"

	"github.com/blue-harvest-ops/fieldaudit/internal/models"
)

// ReportDetector flags technicians who clocked in on a day without
// reporting any activity, unless an approved leave covers the day.
type ReportDetector struct {
	cfg Config
}

// NewReportDetector creates a ReportDetector with the given tunables.
func NewReportDetector(cfg Config) *ReportDetector {
	return &ReportDetector{cfg: cfg}
}

// Name returns the detector name.
func (d *ReportDetector) Name() string { return "missing_report" }

// Detect computes, per calendar day, the set difference between days with a
// timesheet entry and days with a reported activity, minus approved leave.
// One finding per technician per day.
func (d *ReportDetector) Detect(in Input, now time.Time) []models.Finding {
	type dayStat struct {
		entries int
	}
	workedDays := make(map[string]dayStat)
	for _, ts := range in.Timesheets {
		if !ts.Valid() {
			continue
		}
		key := ts.Start.Format("2006-01-02")
		s := workedDays[key]
		s.entries++
		workedDays[key] = s
	}

	reportedDays := make(map[string]bool)
	for _, act := range in.Activities {
		if act.Valid() {
			reportedDays[act.Start.Format("2006-01-02")] = true
		}
	}

	days := make([]string, 0, len(workedDays))
	for day := range workedDays {
		days = append(days, day)
	}
	sort.Strings(days)

	var findings []models.Finding
	for _, day := range days {
		if reportedDays[day] {
			continue
		}
		date, err := time.Parse("2006-01-02", day)
		if err != nil {
			continue
		}
		if onLeave(in.Leaves, date) {
			continue
		}

		stat := workedDays[day]
		confidence := Score(80,
			Factor{stat.entries > 1, 10},
		)
		if !MeetsThreshold(confidence, d.cfg.ReportMinConfidence) {
			continue
		}

		findings = append(findings, models.Finding{
			Category:   models.CategoryMissingReport,
			Severity:   models.SeverityAlto,
			Confidence: confidence,
			Technician: in.Technician,
			Summary:    fmt.Sprintf("%s: no activity report on %s despite timesheet entries", in.Technician, day),
			Evidence: models.Evidence{
				"date":              day,
				"timesheet_entries": fmt.Sprintf("%d", stat.entries),
			},
			DetectedAt: now,
		})
	}

	return findings
}

func onLeave(leaves []models.LeaveRecord, day time.Time) bool {
	for _, l := range leaves {
		if l.Covers(day) {
			return true
		}
	}
	return false
}
