package detect

import (
	"strings"
	"time"

	"github.com/blue-harvest-ops/fieldaudit/internal/models"
)

// Detector scans one technician's records and emits scored findings.
// Implementations are pure: they share no mutable state and may run in
// parallel across technicians.
type Detector interface {
	Name() string
	Detect(in Input, now time.Time) []models.Finding
}

// Input is the per-technician slice of one record batch.
type Input struct {
	Technician string
	Activities []models.ActivityInterval
	Timesheets []models.TimesheetInterval
	Sessions   []models.RemoteSessionInterval
	Leaves     []models.LeaveRecord
}

func containsFold(s, fragment string) bool {
	if fragment == "" {
		return false
	}
	return strings.Contains(strings.ToUpper(s), strings.ToUpper(fragment))
}

// inWorkingHours reports whether t falls in the standard working blocks
// 9-13 and 14-18.
func inWorkingHours(t time.Time) bool {
	h := t.Hour()
	return (h >= 9 && h <= 13) || (h >= 14 && h <= 18)
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
