package workflow

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/blue-harvest-ops/fieldaudit/internal/metrics"
	"github.com/blue-harvest-ops/fieldaudit/internal/models"
	"github.com/blue-harvest-ops/fieldaudit/internal/notifier"
)

// Sender delivers rendered envelopes. Satisfied by *notifier.Dispatcher.
type Sender interface {
	Send(ctx context.Context, env notifier.Envelope) notifier.DeliveryResult
}

// Event is one audit record of a lifecycle change.
type Event struct {
	AlertID string
	Kind    string
	Detail  string
	At      time.Time
}

// EventRecorder persists lifecycle events. Satisfied by *storage.Store.
type EventRecorder interface {
	RecordEvent(ctx context.Context, ev Event) error
}

var (
	// ErrNotFound is returned for operations on an untracked alert ID.
	ErrNotFound = errors.New("alert not tracked")
	// ErrInvalidTransition is returned when the current status does not
	// allow the requested transition.
	ErrInvalidTransition = errors.New("invalid status transition")
)

// Config holds the workflow tunables. Zero values are filled by SetDefaults.
type Config struct {
	// GroupWindow is how far back to look for a groupable sibling alert.
	GroupWindow time.Duration `yaml:"group_window"`
	// GroupDelay is how long a new group waits before its digest is sent.
	GroupDelay time.Duration `yaml:"group_delay"`
	// MaxGroupSize caps the alerts folded into one digest.
	MaxGroupSize int `yaml:"max_group_size"`

	// DispatchInterval is the poll cadence for due groups and failed sends.
	DispatchInterval time.Duration `yaml:"dispatch_interval"`
	// EscalationInterval is the poll cadence for SLA breaches.
	EscalationInterval time.Duration `yaml:"escalation_interval"`
	// FollowupInterval is the poll cadence for reminder sends.
	FollowupInterval time.Duration `yaml:"followup_interval"`
	// StatsInterval is the cadence of the statistics refresh.
	StatsInterval time.Duration `yaml:"stats_interval"`

	// EscalationAfter is the per-priority response SLA.
	EscalationAfter map[models.Priority]time.Duration `yaml:"-"`
	// FollowupSchedule is the per-priority reminder offsets from first
	// delivery. The reminder counter advances only on delivery success.
	FollowupSchedule map[models.Priority][]time.Duration `yaml:"-"`
}

// DefaultConfig returns the workflow configuration with default values.
func DefaultConfig() Config {
	cfg := Config{}
	cfg.SetDefaults()
	return cfg
}

// SetDefaults sets default values for missing config fields.
func (c *Config) SetDefaults() {
	if c.GroupWindow == 0 {
		c.GroupWindow = 30 * time.Minute
	}
	if c.GroupDelay == 0 {
		c.GroupDelay = 30 * time.Minute
	}
	if c.MaxGroupSize == 0 {
		c.MaxGroupSize = 5
	}
	if c.DispatchInterval == 0 {
		c.DispatchInterval = 30 * time.Second
	}
	if c.EscalationInterval == 0 {
		c.EscalationInterval = 5 * time.Minute
	}
	if c.FollowupInterval == 0 {
		c.FollowupInterval = 10 * time.Minute
	}
	if c.StatsInterval == 0 {
		c.StatsInterval = time.Hour
	}
	if c.EscalationAfter == nil {
		c.EscalationAfter = map[models.Priority]time.Duration{
			models.PriorityImmediate: 2 * time.Hour,
			models.PriorityUrgent:    8 * time.Hour,
			models.PriorityNormal:    24 * time.Hour,
			models.PriorityInfo:      72 * time.Hour,
		}
	}
	if c.FollowupSchedule == nil {
		c.FollowupSchedule = map[models.Priority][]time.Duration{
			models.PriorityImmediate: {1 * time.Hour, 2 * time.Hour, 4 * time.Hour},
			models.PriorityUrgent:    {4 * time.Hour, 12 * time.Hour, 24 * time.Hour},
			models.PriorityNormal:    {24 * time.Hour, 72 * time.Hour},
			models.PriorityInfo:      {168 * time.Hour},
		}
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.MaxGroupSize < 1 {
		return fmt.Errorf("max_group_size must be at least 1")
	}
	if c.GroupDelay < 0 || c.GroupWindow < 0 {
		return fmt.Errorf("group timings must not be negative")
	}
	return nil
}

// Manager owns the alert lifecycle. One mutex serializes the tracking map
// and the group table; deliveries happen outside the lock.
type Manager struct {
	cfg      Config
	sender   Sender
	clock    Clock
	log      zerolog.Logger
	recorder EventRecorder
	sched    Scheduler

	mu       sync.Mutex
	tracking map[string]*AlertTracking
	groups   map[string]*AlertGroup

	followupsSent int
}

// Option customizes a Manager.
type Option func(*Manager)

// WithClock substitutes the wall clock, for tests.
func WithClock(c Clock) Option {
	return func(m *Manager) { m.clock = c }
}

// WithRecorder attaches a lifecycle event recorder.
func WithRecorder(r EventRecorder) Option {
	return func(m *Manager) { m.recorder = r }
}

// WithScheduler substitutes the periodic job scheduler.
func WithScheduler(s Scheduler) Option {
	return func(m *Manager) { m.sched = s }
}

// NewManager creates a workflow manager.
func NewManager(cfg Config, sender Sender, log zerolog.Logger, opts ...Option) *Manager {
	cfg.SetDefaults()
	m := &Manager{
		cfg:      cfg,
		sender:   sender,
		clock:    SystemClock(),
		log:      log,
		sched:    NewTickerScheduler(),
		tracking: make(map[string]*AlertTracking),
		groups:   make(map[string]*AlertGroup),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start registers the periodic jobs and launches the scheduler.
func (m *Manager) Start(ctx context.Context) error {
	jobs := []struct {
		name  string
		every time.Duration
		fn    func()
	}{
		{"dispatch", m.cfg.DispatchInterval, func() { m.DispatchDue(ctx) }},
		{"escalations", m.cfg.EscalationInterval, func() { m.CheckEscalations(ctx) }},
		{"followups", m.cfg.FollowupInterval, func() { m.ProcessFollowups(ctx) }},
		{"stats", m.cfg.StatsInterval, func() { m.logStatistics() }},
	}
	for _, j := range jobs {
		if err := m.sched.Schedule(j.name, j.every, j.fn); err != nil {
			return fmt.Errorf("schedule %s: %w", j.name, err)
		}
	}
	m.sched.Start()
	m.log.Info().
		Dur("dispatch_interval", m.cfg.DispatchInterval).
		Dur("escalation_interval", m.cfg.EscalationInterval).
		Dur("followup_interval", m.cfg.FollowupInterval).
		Msg("workflow manager started")
	return nil
}

// Stop halts the periodic jobs and waits for in-flight ones to finish.
func (m *Manager) Stop() {
	m.sched.Stop()
	m.log.Info().Msg("workflow manager stopped")
}

// ProcessAlerts registers new alerts, applies grouping, and dispatches
// immediate ones. Alerts whose ID is already tracked are skipped, so feeding
// the same detection batch twice is harmless.
func (m *Manager) ProcessAlerts(ctx context.Context, alerts []models.Alert) []AlertTracking {
	now := m.clock.Now()

	var sendNow []string
	out := make([]AlertTracking, 0, len(alerts))

	m.mu.Lock()
	for _, a := range alerts {
		if _, exists := m.tracking[a.ID]; exists {
			m.log.Debug().Str("alert_id", a.ID).Msg("alert already tracked, skipping")
			continue
		}

		t := &AlertTracking{Alert: a, Status: StatusPending, CreatedAt: now}
		m.tracking[a.ID] = t
		metrics.AlertsTotal.WithLabelValues(a.Priority.String()).Inc()
		metrics.OpenAlerts.Inc()
		m.recordEvent(ctx, a.ID, "created", string(a.Finding.Category))

		if !m.joinGroupLocked(ctx, t, now) {
			if a.SendImmediately() {
				sendNow = append(sendNow, a.ID)
			} else {
				// A lone non-immediate alert gets its own scheduled
				// group, otherwise nothing would ever deliver it.
				m.createGroupLocked(ctx, t, now)
			}
		}
		out = append(out, *t)
	}
	m.mu.Unlock()

	for _, id := range sendNow {
		m.dispatchAlert(ctx, id)
	}
	return out
}

// joinGroupLocked attaches the new tracking to an existing group of recent
// pending alerts for the same technician and category. Caller holds the lock.
func (m *Manager) joinGroupLocked(ctx context.Context, t *AlertTracking, now time.Time) bool {
	cutoff := now.Add(-m.cfg.GroupWindow)

	for _, other := range m.tracking {
		if other == t || other.CreatedAt.Before(cutoff) {
			continue
		}
		if other.Status != StatusPending || other.GroupID == "" {
			continue
		}
		if other.Alert.Finding.Technician != t.Alert.Finding.Technician ||
			other.Alert.Finding.Category != t.Alert.Finding.Category {
			continue
		}

		group := m.groups[other.GroupID]
		if group == nil || group.SentAt != nil || len(group.AlertIDs) >= m.cfg.MaxGroupSize {
			continue
		}

		group.AlertIDs = append(group.AlertIDs, t.Alert.ID)
		t.GroupID = group.ID
		m.recordEvent(ctx, t.Alert.ID, "grouped", group.ID)
		m.log.Debug().Str("alert_id", t.Alert.ID).Str("group_id", group.ID).Msg("alert joined group")
		return true
	}
	return false
}

// createGroupLocked opens a new scheduled group seeded with one tracking.
// Caller holds the lock.
func (m *Manager) createGroupLocked(ctx context.Context, t *AlertTracking, now time.Time) {
	group := &AlertGroup{
		ID:            uuid.NewString(),
		Recipient:     t.Alert.PrimaryRecipient,
		Category:      t.Alert.Finding.Category,
		AlertIDs:      []string{t.Alert.ID},
		CreatedAt:     now,
		ScheduledSend: now.Add(m.cfg.GroupDelay),
	}
	m.groups[group.ID] = group
	t.GroupID = group.ID
	m.recordEvent(ctx, t.Alert.ID, "grouped", group.ID)
}

// dispatchAlert delivers one ungrouped alert and marks it sent on success.
func (m *Manager) dispatchAlert(ctx context.Context, id string) {
	m.mu.Lock()
	t, ok := m.tracking[id]
	if !ok || t.Status != StatusPending {
		m.mu.Unlock()
		return
	}
	env := alertEnvelope(t.Alert)
	m.mu.Unlock()

	res := m.sender.Send(ctx, env)
	now := m.clock.Now()

	m.mu.Lock()
	defer m.mu.Unlock()
	if res.Success {
		t.Status = StatusSent
		t.SentAt = &now
		metrics.DispatchesTotal.WithLabelValues(string(notifier.KindAlert), "success").Inc()
		m.recordEvent(ctx, id, "dispatched", string(notifier.KindAlert))
		return
	}
	metrics.DispatchesTotal.WithLabelValues(string(notifier.KindAlert), "failure").Inc()
	m.recordEvent(ctx, id, "dispatch_failed", res.Err.Error())
	m.log.Error().Err(res.Err).Str("alert_id", id).Msg("immediate dispatch failed")
}

// DispatchDue sends group digests whose delay elapsed and retries immediate
// alerts whose earlier delivery failed.
func (m *Manager) DispatchDue(ctx context.Context) {
	now := m.clock.Now()

	type dueGroup struct {
		id  string
		env notifier.Envelope
	}
	var due []dueGroup
	var retries []string

	m.mu.Lock()
	for _, group := range m.groups {
		if group.SentAt != nil || now.Before(group.ScheduledSend) {
			continue
		}
		members := m.pendingMembersLocked(group)
		if len(members) == 0 {
			// Everything resolved or closed before the digest went out.
			sent := now
			group.SentAt = &sent
			continue
		}
		due = append(due, dueGroup{id: group.ID, env: digestEnvelope(group, members)})
	}
	for id, t := range m.tracking {
		if t.Status == StatusPending && t.GroupID == "" && t.Alert.SendImmediately() {
			retries = append(retries, id)
		}
	}
	m.mu.Unlock()

	for _, g := range due {
		m.dispatchGroup(ctx, g.id, g.env)
	}
	for _, id := range retries {
		m.dispatchAlert(ctx, id)
	}
}

// pendingMembersLocked returns the group members still awaiting delivery.
// Caller holds the lock.
func (m *Manager) pendingMembersLocked(group *AlertGroup) []*AlertTracking {
	var members []*AlertTracking
	for _, id := range group.AlertIDs {
		if t, ok := m.tracking[id]; ok && t.Status == StatusPending {
			members = append(members, t)
		}
	}
	return members
}

// dispatchGroup delivers one digest and marks the group and its pending
// members sent on success.
func (m *Manager) dispatchGroup(ctx context.Context, groupID string, env notifier.Envelope) {
	res := m.sender.Send(ctx, env)
	now := m.clock.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	group, ok := m.groups[groupID]
	if !ok || group.SentAt != nil {
		return
	}

	if !res.Success {
		metrics.DispatchesTotal.WithLabelValues(string(notifier.KindDigest), "failure").Inc()
		m.log.Error().Err(res.Err).Str("group_id", groupID).Msg("digest dispatch failed")
		return
	}

	group.SentAt = &now
	for _, t := range m.pendingMembersLocked(group) {
		t.Status = StatusSent
		t.SentAt = &now
		m.recordEvent(ctx, t.Alert.ID, "dispatched", string(notifier.KindDigest))
	}
	metrics.DispatchesTotal.WithLabelValues(string(notifier.KindDigest), "success").Inc()
	m.log.Info().Str("group_id", groupID).Int("alerts", len(group.AlertIDs)).Msg("digest sent")
}

// CheckEscalations raises alerts whose response SLA elapsed. The escalation
// level is committed before the notification attempt, so a delivery failure
// cannot make the same alert escalate twice.
func (m *Manager) CheckEscalations(ctx context.Context) {
	now := m.clock.Now()

	type escalation struct {
		env notifier.Envelope
	}
	var pending []escalation

	m.mu.Lock()
	for id, t := range m.tracking {
		if t.Status != StatusSent && t.Status != StatusAcknowledged {
			continue
		}
		if t.EscalationLevel != EscalationNone {
			continue
		}
		sla, ok := m.cfg.EscalationAfter[t.Alert.Priority]
		if !ok {
			sla = 24 * time.Hour
		}
		elapsed := now.Sub(t.anchor())
		if elapsed < sla {
			continue
		}

		level := EscalationSupervisor
		if t.Alert.Priority == models.PriorityImmediate {
			level = EscalationManagement
		}
		t.EscalationLevel = level
		t.EscalatedAt = &now
		t.EscalationReason = "no response within SLA"
		t.Status = StatusEscalated
		metrics.EscalationsTotal.Inc()
		m.recordEvent(ctx, id, "escalated", level.String())
		m.log.Warn().Str("alert_id", id).Stringer("level", level).
			Dur("elapsed", elapsed).Msg("alert escalated")

		pending = append(pending, escalation{env: escalationEnvelope(t, level, elapsed)})
	}
	m.mu.Unlock()

	for _, e := range pending {
		res := m.sender.Send(ctx, e.env)
		result := "success"
		if !res.Success {
			result = "failure"
			m.log.Error().Err(res.Err).Str("alert_id", e.env.AlertID).Msg("escalation dispatch failed")
		}
		metrics.DispatchesTotal.WithLabelValues(string(notifier.KindEscalation), result).Inc()
	}
}

// ProcessFollowups sends the next scheduled reminder for unanswered alerts.
// The reminder counter advances only when delivery succeeds, so a failed
// send is retried on the next poll.
func (m *Manager) ProcessFollowups(ctx context.Context) {
	now := m.clock.Now()

	type followup struct {
		id  string
		n   int
		env notifier.Envelope
	}
	var pending []followup

	m.mu.Lock()
	for id, t := range m.tracking {
		if !t.Alert.FollowupRequired {
			continue
		}
		if t.Status != StatusSent && t.Status != StatusAcknowledged {
			continue
		}
		schedule, ok := m.cfg.FollowupSchedule[t.Alert.Priority]
		if !ok {
			schedule = []time.Duration{24 * time.Hour}
		}
		if t.FollowupCount >= len(schedule) {
			continue
		}
		dueAt := t.anchor().Add(schedule[t.FollowupCount])
		if now.Before(dueAt) {
			continue
		}
		n := t.FollowupCount + 1
		pending = append(pending, followup{id: id, n: n, env: followupEnvelope(t, n)})
	}
	m.mu.Unlock()

	for _, f := range pending {
		res := m.sender.Send(ctx, f.env)
		if !res.Success {
			metrics.DispatchesTotal.WithLabelValues(string(notifier.KindFollowup), "failure").Inc()
			m.log.Error().Err(res.Err).Str("alert_id", f.id).Msg("follow-up dispatch failed")
			continue
		}

		sentAt := m.clock.Now()
		m.mu.Lock()
		if t, ok := m.tracking[f.id]; ok {
			t.FollowupCount = f.n
			t.LastFollowup = &sentAt
			m.followupsSent++
			m.recordEvent(ctx, f.id, "followup", fmt.Sprintf("#%d", f.n))
		}
		m.mu.Unlock()
		metrics.DispatchesTotal.WithLabelValues(string(notifier.KindFollowup), "success").Inc()
		metrics.FollowupsTotal.Inc()
	}
}

// Acknowledge records that the recipient has seen the alert.
func (m *Manager) Acknowledge(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tracking[id]
	if !ok {
		return fmt.Errorf("acknowledge %s: %w", id, ErrNotFound)
	}
	if t.Status != StatusSent && t.Status != StatusEscalated {
		return fmt.Errorf("acknowledge %s from %s: %w", id, t.Status, ErrInvalidTransition)
	}

	now := m.clock.Now()
	t.Status = StatusAcknowledged
	t.AcknowledgedAt = &now
	m.recordEvent(ctx, id, "acknowledged", "")
	return nil
}

// MarkInProgress records that correction work has started.
func (m *Manager) MarkInProgress(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tracking[id]
	if !ok {
		return fmt.Errorf("mark in progress %s: %w", id, ErrNotFound)
	}
	switch t.Status {
	case StatusSent, StatusAcknowledged, StatusEscalated:
	default:
		return fmt.Errorf("mark in progress %s from %s: %w", id, t.Status, ErrInvalidTransition)
	}

	t.Status = StatusInProgress
	m.recordEvent(ctx, id, "in_progress", "")
	return nil
}

// Resolve marks the alert resolved. Resolving an already terminal alert is
// a no-op; resolving an unknown ID is an error.
func (m *Manager) Resolve(ctx context.Context, id, notes, method string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tracking[id]
	if !ok {
		return fmt.Errorf("resolve %s: %w", id, ErrNotFound)
	}
	if t.Status.Terminal() {
		return nil
	}
	if method == "" {
		method = "manual"
	}

	now := m.clock.Now()
	t.Status = StatusResolved
	t.ResolvedAt = &now
	t.ResolutionNotes = notes
	t.ResolutionMethod = method
	if t.SentAt != nil {
		t.TimeToResolution = now.Sub(*t.SentAt)
		metrics.ResolutionDuration.Observe(t.TimeToResolution.Seconds())
	}
	metrics.OpenAlerts.Dec()
	m.recordEvent(ctx, id, "resolved", method)
	m.log.Info().Str("alert_id", id).Str("method", method).Msg("alert resolved")
	return nil
}

// CloseAlert closes the alert without resolution, from any non-resolved
// state. Closing an already closed alert is a no-op.
func (m *Manager) CloseAlert(ctx context.Context, id, notes string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tracking[id]
	if !ok {
		return fmt.Errorf("close %s: %w", id, ErrNotFound)
	}
	if t.Status == StatusClosed {
		return nil
	}
	if t.Status == StatusResolved {
		return fmt.Errorf("close %s: already resolved: %w", id, ErrInvalidTransition)
	}

	t.Status = StatusClosed
	t.ResolutionNotes = notes
	metrics.OpenAlerts.Dec()
	m.recordEvent(ctx, id, "closed", "")
	return nil
}

// Get returns a copy of one tracking record.
func (m *Manager) Get(id string) (AlertTracking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tracking[id]
	if !ok {
		return AlertTracking{}, fmt.Errorf("get %s: %w", id, ErrNotFound)
	}
	return *t, nil
}

// ListTracking returns copies of all tracking records, newest first.
func (m *Manager) ListTracking() []AlertTracking {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]AlertTracking, 0, len(m.tracking))
	for _, t := range m.tracking {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].Alert.ID < out[j].Alert.ID
	})
	return out
}

// Statistics computes a point-in-time workflow summary.
func (m *Manager) Statistics() Statistics {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.statisticsLocked()
}

func (m *Manager) statisticsLocked() Statistics {
	stats := Statistics{
		TotalAlerts:   len(m.tracking),
		FollowupsSent: m.followupsSent,
	}

	var resolutionTotal time.Duration
	var resolutionCount int
	for _, t := range m.tracking {
		switch {
		case t.Status == StatusResolved:
			stats.ResolvedAlerts++
			if t.TimeToResolution > 0 {
				resolutionTotal += t.TimeToResolution
				resolutionCount++
			}
		case t.Status == StatusClosed:
			stats.ClosedAlerts++
		default:
			stats.ActiveAlerts++
		}
		if t.GroupID != "" {
			stats.GroupedAlerts++
		}
		if t.EscalationLevel != EscalationNone && t.Status.Active() {
			stats.PendingEscalations++
		}
	}
	if resolutionCount > 0 {
		stats.AvgResolutionTime = resolutionTotal / time.Duration(resolutionCount)
	}
	return stats
}

// ExportSnapshot returns the full workflow state for persistence or the API.
func (m *Manager) ExportSnapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := Snapshot{
		ExportedAt: m.clock.Now(),
		Statistics: m.statisticsLocked(),
		Tracking:   make([]AlertTracking, 0, len(m.tracking)),
		Groups:     make([]AlertGroup, 0, len(m.groups)),
	}
	for _, t := range m.tracking {
		snap.Tracking = append(snap.Tracking, *t)
	}
	for _, g := range m.groups {
		snap.Groups = append(snap.Groups, *g)
	}
	sort.Slice(snap.Tracking, func(i, j int) bool {
		return snap.Tracking[i].Alert.ID < snap.Tracking[j].Alert.ID
	})
	sort.Slice(snap.Groups, func(i, j int) bool {
		return snap.Groups[i].ID < snap.Groups[j].ID
	})
	return snap
}

func (m *Manager) logStatistics() {
	stats := m.Statistics()
	metrics.OpenAlerts.Set(float64(stats.ActiveAlerts))
	m.log.Info().
		Int("total", stats.TotalAlerts).
		Int("active", stats.ActiveAlerts).
		Int("resolved", stats.ResolvedAlerts).
		Dur("avg_resolution", stats.AvgResolutionTime).
		Msg("workflow statistics")
}

// recordEvent persists a lifecycle event when a recorder is attached.
// Caller holds the lock; recording failures are logged, never fatal.
func (m *Manager) recordEvent(ctx context.Context, alertID, kind, detail string) {
	if m.recorder == nil {
		return
	}
	ev := Event{AlertID: alertID, Kind: kind, Detail: detail, At: m.clock.Now()}
	if err := m.recorder.RecordEvent(ctx, ev); err != nil {
		m.log.Error().Err(err).Str("alert_id", alertID).Str("event", kind).
			Msg("failed to record workflow event")
	}
}
