// Package models defines domain models for FieldAudit.
package models

import "time"

// ActivityKind distinguishes remote from on-site work.
type ActivityKind string

const (
	KindRemote ActivityKind = "REMOTE"
	KindOnsite ActivityKind = "ONSITE"
)

// ParseActivityKind converts a string to ActivityKind.
func ParseActivityKind(s string) ActivityKind {
	switch s {
	case "REMOTE", "remote", "remoto":
		return KindRemote
	default:
		return KindOnsite
	}
}

// ActivityInterval is one reported technician activity. Immutable after ingestion.
// Intervals with Start >= End are dropped by the loader, never processed.
type ActivityInterval struct {
	ID         string       `json:"id,omitempty" yaml:"id,omitempty"`
	Technician string       `json:"technician" yaml:"technician"`
	Client     string       `json:"client" yaml:"client"`
	Start      time.Time    `json:"start" yaml:"start"`
	End        time.Time    `json:"end" yaml:"end"`
	Kind       ActivityKind `json:"kind" yaml:"kind"`
}

// Duration returns the activity length.
func (a ActivityInterval) Duration() time.Duration {
	return a.End.Sub(a.Start)
}

// Valid reports whether the interval satisfies the start < end invariant
// and carries a technician identity.
func (a ActivityInterval) Valid() bool {
	return a.Technician != "" && a.Start.Before(a.End)
}

// TimesheetInterval is one clock-in/clock-out span from the time tracking system.
type TimesheetInterval struct {
	Technician string    `json:"technician" yaml:"technician"`
	Start      time.Time `json:"start" yaml:"start"`
	End        time.Time `json:"end" yaml:"end"`
}

// Valid reports whether the interval satisfies the start < end invariant.
func (t TimesheetInterval) Valid() bool {
	return t.Technician != "" && t.Start.Before(t.End)
}

// RemoteSessionInterval is one remote-support session (e.g. a TeamViewer
// connection) attributed to a technician.
type RemoteSessionInterval struct {
	Technician string    `json:"technician" yaml:"technician"`
	Client     string    `json:"client,omitempty" yaml:"client,omitempty"`
	Start      time.Time `json:"start" yaml:"start"`
	End        time.Time `json:"end" yaml:"end"`
}

// Duration returns the session length.
func (s RemoteSessionInterval) Duration() time.Duration {
	return s.End.Sub(s.Start)
}

// Valid reports whether the session satisfies the start < end invariant.
func (s RemoteSessionInterval) Valid() bool {
	return s.Technician != "" && s.Start.Before(s.End)
}

// LeaveRecord is an approved absence covering [From, To] whole days.
type LeaveRecord struct {
	Technician string    `json:"technician" yaml:"technician"`
	From       time.Time `json:"from" yaml:"from"`
	To         time.Time `json:"to" yaml:"to"`
	Approved   bool      `json:"approved" yaml:"approved"`
}

// Covers reports whether the leave covers the calendar day of t.
func (l LeaveRecord) Covers(t time.Time) bool {
	day := t.Truncate(24 * time.Hour)
	return l.Approved && !day.Before(l.From.Truncate(24*time.Hour)) && !day.After(l.To.Truncate(24*time.Hour))
}

// RecordSet bundles one batch of ingested records for a detection run.
type RecordSet struct {
	Activities []ActivityInterval      `json:"activities" yaml:"activities"`
	Timesheets []TimesheetInterval     `json:"timesheets" yaml:"timesheets"`
	Sessions   []RemoteSessionInterval `json:"sessions" yaml:"sessions"`
	Leaves     []LeaveRecord           `json:"leaves" yaml:"leaves"`
}
