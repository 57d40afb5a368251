package detect

import (
	"testing"
	"time"

	"github.com/blue-harvest-ops/fieldaudit/internal/models"
)

func timesheet(t *testing.T, tech, start, end string) models.TimesheetInterval {
	t.Helper()
	return models.TimesheetInterval{
		Technician: tech,
		Start:      mustTime(t, start),
		End:        mustTime(t, end),
	}
}

func TestReportDetector(t *testing.T) {
	now := time.Now()
	cfg := DefaultConfig()

	tests := []struct {
		name       string
		timesheets []models.TimesheetInterval
		activities []models.ActivityInterval
		leaves     []models.LeaveRecord
		wantDays   []string
		wantConf   float64
	}{
		{
			name: "worked day without any report",
			timesheets: []models.TimesheetInterval{
				timesheet(t, "rossi", "2025-03-10 08:30", "2025-03-10 17:30"),
			},
			wantDays: []string{"2025-03-10"},
			wantConf: 80,
		},
		{
			name: "split shift raises confidence",
			timesheets: []models.TimesheetInterval{
				timesheet(t, "rossi", "2025-03-10 08:30", "2025-03-10 13:00"),
				timesheet(t, "rossi", "2025-03-10 14:00", "2025-03-10 17:30"),
			},
			wantDays: []string{"2025-03-10"},
			wantConf: 90,
		},
		{
			name: "reported day is fine",
			timesheets: []models.TimesheetInterval{
				timesheet(t, "rossi", "2025-03-10 08:30", "2025-03-10 17:30"),
			},
			activities: []models.ActivityInterval{
				activity(t, "a1", "rossi", "Alpha SRL", "2025-03-10 10:00", "2025-03-10 11:00"),
			},
		},
		{
			name: "report on another day does not cover",
			timesheets: []models.TimesheetInterval{
				timesheet(t, "rossi", "2025-03-10 08:30", "2025-03-10 17:30"),
				timesheet(t, "rossi", "2025-03-11 08:30", "2025-03-11 17:30"),
			},
			activities: []models.ActivityInterval{
				activity(t, "a1", "rossi", "Alpha SRL", "2025-03-11 10:00", "2025-03-11 11:00"),
			},
			wantDays: []string{"2025-03-10"},
		},
		{
			name: "approved leave covers the day",
			timesheets: []models.TimesheetInterval{
				timesheet(t, "rossi", "2025-03-10 08:30", "2025-03-10 17:30"),
			},
			leaves: []models.LeaveRecord{
				{
					Technician: "rossi",
					From:       mustTime(t, "2025-03-10 00:00"),
					To:         mustTime(t, "2025-03-10 23:59"),
					Approved:   true,
				},
			},
		},
		{
			name: "pending leave does not cover the day",
			timesheets: []models.TimesheetInterval{
				timesheet(t, "rossi", "2025-03-10 08:30", "2025-03-10 17:30"),
			},
			leaves: []models.LeaveRecord{
				{
					Technician: "rossi",
					From:       mustTime(t, "2025-03-10 00:00"),
					To:         mustTime(t, "2025-03-10 23:59"),
					Approved:   false,
				},
			},
			wantDays: []string{"2025-03-10"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewReportDetector(cfg)
			got := d.Detect(Input{
				Technician: "rossi",
				Timesheets: tt.timesheets,
				Activities: tt.activities,
				Leaves:     tt.leaves,
			}, now)
			if len(got) != len(tt.wantDays) {
				t.Fatalf("Detect() returned %d findings, want %d", len(got), len(tt.wantDays))
			}
			for i, f := range got {
				if f.Category != models.CategoryMissingReport {
					t.Errorf("category = %s, want %s", f.Category, models.CategoryMissingReport)
				}
				if f.Severity != models.SeverityAlto {
					t.Errorf("severity = %s, want ALTO", f.Severity)
				}
				if f.Evidence["date"] != tt.wantDays[i] {
					t.Errorf("date = %s, want %s", f.Evidence["date"], tt.wantDays[i])
				}
			}
			if tt.wantConf != 0 && got[0].Confidence != tt.wantConf {
				t.Errorf("confidence = %v, want %v", got[0].Confidence, tt.wantConf)
			}
		})
	}
}
