package ingest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
)

const jsonRecords = `{
  "activities": [
    {"technician": "Mario Rossi", "client": "Alpha SRL",
     "start": "2025-03-10T09:00:00Z", "end": "2025-03-10T11:00:00Z", "kind": "ONSITE"},
    {"technician": "Mario Rossi", "client": "Beta SPA",
     "start": "2025-03-10T12:00:00Z", "end": "2025-03-10T10:00:00Z", "kind": "ONSITE"}
  ],
  "timesheets": [
    {"technician": "Mario Rossi", "start": "2025-03-10T08:30:00Z", "end": "2025-03-10T17:30:00Z"}
  ],
  "sessions": [
    {"technician": "", "start": "2025-03-10T09:00:00Z", "end": "2025-03-10T09:30:00Z"}
  ],
  "leaves": [
    {"technician": "Luca Bianchi", "from": "2025-03-10T00:00:00Z", "to": "2025-03-11T00:00:00Z", "approved": true}
  ]
}`

const yamlRecords = `
activities:
  - technician: Mario Rossi
    client: Alpha SRL
    start: 2025-03-10T09:00:00Z
    end: 2025-03-10T11:00:00Z
    kind: ONSITE
timesheets:
  - technician: Mario Rossi
    start: 2025-03-10T08:30:00Z
    end: 2025-03-10T17:30:00Z
`

func TestLoadBytesJSON(t *testing.T) {
	l := NewLoader(zerolog.Nop())

	rs, err := l.LoadBytes([]byte(jsonRecords), "json")
	if err != nil {
		t.Fatalf("LoadBytes: %v", err)
	}

	// The inverted activity and the anonymous session must be dropped.
	if len(rs.Activities) != 1 {
		t.Errorf("activities = %d, want 1", len(rs.Activities))
	}
	if len(rs.Sessions) != 0 {
		t.Errorf("sessions = %d, want 0", len(rs.Sessions))
	}
	if len(rs.Timesheets) != 1 || len(rs.Leaves) != 1 {
		t.Errorf("timesheets = %d leaves = %d, want 1 and 1", len(rs.Timesheets), len(rs.Leaves))
	}
	if rs.Activities[0].Client != "Alpha SRL" {
		t.Errorf("client = %q", rs.Activities[0].Client)
	}
}

func TestLoadFileYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.yaml")
	if err := os.WriteFile(path, []byte(yamlRecords), 0o644); err != nil {
		t.Fatal(err)
	}

	rs, err := NewLoader(zerolog.Nop()).LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if len(rs.Activities) != 1 || len(rs.Timesheets) != 1 {
		t.Errorf("activities = %d timesheets = %d", len(rs.Activities), len(rs.Timesheets))
	}
}

func TestLoadBytesErrors(t *testing.T) {
	l := NewLoader(zerolog.Nop())

	if _, err := l.LoadBytes([]byte("{"), "json"); err == nil {
		t.Error("malformed JSON should fail")
	}
	if _, err := l.LoadBytes([]byte("activities: ["), "yaml"); err == nil {
		t.Error("malformed YAML should fail")
	}
	if _, err := l.LoadBytes([]byte("{}"), "csv"); err == nil {
		t.Error("unknown format should fail")
	}
}

func TestLoadFileMissing(t *testing.T) {
	if _, err := NewLoader(zerolog.Nop()).LoadFile(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Error("missing file should fail")
	}
}
