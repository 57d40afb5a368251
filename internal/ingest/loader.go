// Package ingest loads activity record batches from exported files.
package ingest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/blue-harvest-ops/fieldaudit/internal/models"
)

// Loader parses record batches and drops records that violate basic
// invariants, so detectors only ever see well-formed input.
type Loader struct {
	log zerolog.Logger
}

// NewLoader creates a record loader.
func NewLoader(log zerolog.Logger) *Loader {
	return &Loader{log: log.With().Str("component", "ingest").Logger()}
}

// LoadFile loads a record set from a JSON or YAML file, dispatching on the
// file extension.
func (l *Loader) LoadFile(path string) (models.RecordSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return models.RecordSet{}, fmt.Errorf("read records file: %w", err)
	}

	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	rs, err := l.LoadBytes(data, format)
	if err != nil {
		return models.RecordSet{}, fmt.Errorf("load %s: %w", path, err)
	}
	return rs, nil
}

// LoadBytes parses a record set from raw bytes. format is "json", "yaml",
// or "yml".
func (l *Loader) LoadBytes(data []byte, format string) (models.RecordSet, error) {
	var rs models.RecordSet

	switch format {
	case "json":
		if err := json.Unmarshal(data, &rs); err != nil {
			return models.RecordSet{}, fmt.Errorf("parse JSON records: %w", err)
		}
	case "yaml", "yml":
		if err := yaml.Unmarshal(data, &rs); err != nil {
			return models.RecordSet{}, fmt.Errorf("parse YAML records: %w", err)
		}
	default:
		return models.RecordSet{}, fmt.Errorf("unsupported records format %q", format)
	}

	return l.sanitize(rs), nil
}

// sanitize drops records that violate the start < end invariant or miss a
// technician identity. Dropped records are logged, never processed.
func (l *Loader) sanitize(rs models.RecordSet) models.RecordSet {
	out := models.RecordSet{}

	for _, a := range rs.Activities {
		if !a.Valid() {
			l.log.Warn().
				Str("technician", a.Technician).
				Str("client", a.Client).
				Time("start", a.Start).
				Time("end", a.End).
				Msg("dropping invalid activity")
			continue
		}
		out.Activities = append(out.Activities, a)
	}

	for _, ts := range rs.Timesheets {
		if !ts.Valid() {
			l.log.Warn().
				Str("technician", ts.Technician).
				Time("start", ts.Start).
				Msg("dropping invalid timesheet entry")
			continue
		}
		out.Timesheets = append(out.Timesheets, ts)
	}

	for _, s := range rs.Sessions {
		if !s.Valid() {
			l.log.Warn().
				Str("technician", s.Technician).
				Time("start", s.Start).
				Msg("dropping invalid remote session")
			continue
		}
		out.Sessions = append(out.Sessions, s)
	}

	for _, lv := range rs.Leaves {
		if lv.Technician == "" || lv.To.Before(lv.From) {
			l.log.Warn().
				Str("technician", lv.Technician).
				Time("from", lv.From).
				Time("to", lv.To).
				Msg("dropping invalid leave record")
			continue
		}
		out.Leaves = append(out.Leaves, lv)
	}

	return out
}
