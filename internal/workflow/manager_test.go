package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/blue-harvest-ops/fieldaudit/internal/models"
	"github.com/blue-harvest-ops/fieldaudit/internal/notifier"
)

type fakeSender struct {
	mu   sync.Mutex
	fail bool
	sent []notifier.Envelope
}

func (f *fakeSender) Send(_ context.Context, env notifier.Envelope) notifier.DeliveryResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return notifier.DeliveryResult{Err: errors.New("smtp down")}
	}
	f.sent = append(f.sent, env)
	return notifier.DeliveryResult{Success: true}
}

func (f *fakeSender) envelopes() []notifier.Envelope {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]notifier.Envelope, len(f.sent))
	copy(out, f.sent)
	return out
}

func (f *fakeSender) setFail(fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail = fail
}

func testAlert(id string, priority models.Priority, category models.Category) models.Alert {
	return models.Alert{
		ID: id,
		Finding: models.Finding{
			Category:   category,
			Severity:   models.SeverityCritico,
			Confidence: 95,
			Technician: "rossi",
		},
		Priority:         priority,
		PrimaryRecipient: "mario.rossi@fieldops.example.com",
		CCRecipients:     []string{"anna.bianchi@fieldops.example.com", "management@fieldops.example.com"},
		Subject:          "subject " + id,
		Message:          "message " + id,
		FollowupRequired: true,
	}
}

func newTestManager(t *testing.T, sender Sender) (*Manager, *ManualClock) {
	t.Helper()
	clock := NewManualClock(time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC))
	m := NewManager(DefaultConfig(), sender, zerolog.Nop(), WithClock(clock))
	return m, clock
}

func TestProcessAlertsImmediateDispatch(t *testing.T) {
	sender := &fakeSender{}
	m, _ := newTestManager(t, sender)

	m.ProcessAlerts(context.Background(), []models.Alert{
		testAlert("a1", models.PriorityImmediate, models.CategoryTemporalOverlap),
	})

	sent := sender.envelopes()
	if len(sent) != 1 {
		t.Fatalf("sent %d envelopes, want 1", len(sent))
	}
	if sent[0].Kind != notifier.KindAlert {
		t.Errorf("kind = %s, want alert", sent[0].Kind)
	}

	tr, err := m.Get("a1")
	if err != nil {
		t.Fatal(err)
	}
	if tr.Status != StatusSent || tr.SentAt == nil {
		t.Errorf("status = %s, SentAt = %v", tr.Status, tr.SentAt)
	}
}

func TestProcessAlertsIdempotentByID(t *testing.T) {
	sender := &fakeSender{}
	m, _ := newTestManager(t, sender)

	batch := []models.Alert{testAlert("a1", models.PriorityImmediate, models.CategoryTemporalOverlap)}
	m.ProcessAlerts(context.Background(), batch)
	m.ProcessAlerts(context.Background(), batch)

	if got := len(sender.envelopes()); got != 1 {
		t.Errorf("re-processing the same batch sent %d envelopes, want 1", got)
	}
	if stats := m.Statistics(); stats.TotalAlerts != 1 {
		t.Errorf("total alerts = %d, want 1", stats.TotalAlerts)
	}
}

func TestGroupingAndDigestDispatch(t *testing.T) {
	sender := &fakeSender{}
	m, clock := newTestManager(t, sender)
	ctx := context.Background()

	m.ProcessAlerts(ctx, []models.Alert{
		testAlert("a1", models.PriorityNormal, models.CategoryMissingReport),
		testAlert("a2", models.PriorityNormal, models.CategoryMissingReport),
		testAlert("a3", models.PriorityNormal, models.CategoryMissingReport),
	})

	if got := len(sender.envelopes()); got != 0 {
		t.Fatalf("grouped alerts sent %d envelopes before the delay, want 0", got)
	}

	m.DispatchDue(ctx)
	if got := len(sender.envelopes()); got != 0 {
		t.Fatalf("digest sent before its delay elapsed")
	}

	clock.Advance(31 * time.Minute)
	m.DispatchDue(ctx)

	sent := sender.envelopes()
	if len(sent) != 1 {
		t.Fatalf("sent %d envelopes, want 1 digest", len(sent))
	}
	if sent[0].Kind != notifier.KindDigest {
		t.Errorf("kind = %s, want digest", sent[0].Kind)
	}

	for _, id := range []string{"a1", "a2", "a3"} {
		tr, err := m.Get(id)
		if err != nil {
			t.Fatal(err)
		}
		if tr.Status != StatusSent {
			t.Errorf("alert %s status = %s, want sent", id, tr.Status)
		}
		if tr.GroupID == "" {
			t.Errorf("alert %s has no group", id)
		}
	}
}

func TestGroupingKeysOnTechnician(t *testing.T) {
	sender := &fakeSender{}
	m, _ := newTestManager(t, sender)
	ctx := context.Background()

	a1 := testAlert("a1", models.PriorityNormal, models.CategoryMissingReport)
	a2 := testAlert("a2", models.PriorityNormal, models.CategoryMissingReport)
	a2.Finding.Technician = "bianchi"
	// Two technicians can report to the same supervisor inbox; their
	// alerts still belong to separate groups.
	a2.PrimaryRecipient = a1.PrimaryRecipient
	a3 := testAlert("a3", models.PriorityNormal, models.CategoryMissingReport)

	m.ProcessAlerts(ctx, []models.Alert{a1, a2, a3})

	g1, _ := m.Get("a1")
	g2, _ := m.Get("a2")
	g3, _ := m.Get("a3")
	if g1.GroupID == g2.GroupID {
		t.Error("alerts for different technicians share a group")
	}
	if g1.GroupID != g3.GroupID {
		t.Error("same technician and category split into separate groups")
	}
}

func TestGroupSizeCap(t *testing.T) {
	sender := &fakeSender{}
	m, clock := newTestManager(t, sender)
	ctx := context.Background()

	var batch []models.Alert
	for i := 0; i < 6; i++ {
		batch = append(batch, testAlert(fmt.Sprintf("a%d", i), models.PriorityNormal, models.CategoryMissingReport))
	}
	m.ProcessAlerts(ctx, batch)

	snap := m.ExportSnapshot()
	if len(snap.Groups) != 2 {
		t.Fatalf("got %d groups, want 2 (cap of 5 plus overflow)", len(snap.Groups))
	}
	sizes := []int{len(snap.Groups[0].AlertIDs), len(snap.Groups[1].AlertIDs)}
	if sizes[0]+sizes[1] != 6 || (sizes[0] != 5 && sizes[1] != 5) {
		t.Errorf("group sizes = %v, want one group of 5", sizes)
	}

	clock.Advance(31 * time.Minute)
	m.DispatchDue(ctx)
	if got := len(sender.envelopes()); got != 2 {
		t.Errorf("sent %d digests, want 2", got)
	}
}

func TestEscalationFiresOnce(t *testing.T) {
	sender := &fakeSender{}
	m, clock := newTestManager(t, sender)
	ctx := context.Background()

	m.ProcessAlerts(ctx, []models.Alert{
		testAlert("a1", models.PriorityImmediate, models.CategoryTemporalOverlap),
	})

	clock.Advance(2*time.Hour + time.Minute)
	m.CheckEscalations(ctx)

	tr, _ := m.Get("a1")
	if tr.Status != StatusEscalated {
		t.Fatalf("status = %s, want escalated", tr.Status)
	}
	if tr.EscalationLevel != EscalationManagement {
		t.Errorf("level = %s, want MANAGEMENT for immediate priority", tr.EscalationLevel)
	}

	escalations := 0
	for _, env := range sender.envelopes() {
		if env.Kind == notifier.KindEscalation {
			escalations++
			if env.To != "management@fieldops.example.com" {
				t.Errorf("escalation sent to %s, want management", env.To)
			}
		}
	}
	if escalations != 1 {
		t.Fatalf("sent %d escalations, want 1", escalations)
	}

	clock.Advance(time.Hour)
	m.CheckEscalations(ctx)
	clock.Advance(time.Hour)
	m.CheckEscalations(ctx)

	after := 0
	for _, env := range sender.envelopes() {
		if env.Kind == notifier.KindEscalation && env.AlertID == "a1" {
			after++
		}
	}
	if after != escalations {
		t.Errorf("escalations after extra polls = %d, want %d", after, escalations)
	}
}

func TestEscalationCommittedDespiteDeliveryFailure(t *testing.T) {
	sender := &fakeSender{}
	m, clock := newTestManager(t, sender)
	ctx := context.Background()

	m.ProcessAlerts(ctx, []models.Alert{
		testAlert("a1", models.PriorityImmediate, models.CategoryTemporalOverlap),
	})

	sender.setFail(true)
	clock.Advance(3 * time.Hour)
	m.CheckEscalations(ctx)

	tr, _ := m.Get("a1")
	if tr.EscalationLevel != EscalationManagement {
		t.Fatal("escalation level not committed")
	}

	sender.setFail(false)
	m.CheckEscalations(ctx)
	for _, env := range sender.envelopes() {
		if env.Kind == notifier.KindEscalation {
			t.Error("escalation re-fired after delivery failure")
		}
	}
}

func TestFollowupCadence(t *testing.T) {
	sender := &fakeSender{}
	m, clock := newTestManager(t, sender)
	ctx := context.Background()

	m.ProcessAlerts(ctx, []models.Alert{
		testAlert("a1", models.PriorityImmediate, models.CategoryTemporalOverlap),
	})

	m.ProcessFollowups(ctx)
	if tr, _ := m.Get("a1"); tr.FollowupCount != 0 {
		t.Fatal("follow-up fired before its offset")
	}

	clock.Advance(61 * time.Minute)
	m.ProcessFollowups(ctx)
	if tr, _ := m.Get("a1"); tr.FollowupCount != 1 {
		t.Fatalf("followup count = %d, want 1 after the first offset", tr.FollowupCount)
	}

	// Second reminder is due 2h after send.
	clock.Advance(60 * time.Minute)
	m.ProcessFollowups(ctx)
	if tr, _ := m.Get("a1"); tr.FollowupCount != 2 {
		t.Fatalf("followup count = %d, want 2", tr.FollowupCount)
	}

	clock.Advance(3 * time.Hour)
	m.ProcessFollowups(ctx)
	m.ProcessFollowups(ctx)
	if tr, _ := m.Get("a1"); tr.FollowupCount != 3 {
		t.Fatalf("followup count = %d, want 3 (schedule exhausted)", tr.FollowupCount)
	}
}

func TestFollowupCounterOnlyAdvancesOnSuccess(t *testing.T) {
	sender := &fakeSender{}
	m, clock := newTestManager(t, sender)
	ctx := context.Background()

	m.ProcessAlerts(ctx, []models.Alert{
		testAlert("a1", models.PriorityImmediate, models.CategoryTemporalOverlap),
	})

	sender.setFail(true)
	clock.Advance(90 * time.Minute)
	m.ProcessFollowups(ctx)
	if tr, _ := m.Get("a1"); tr.FollowupCount != 0 {
		t.Fatal("failed delivery advanced the follow-up counter")
	}

	sender.setFail(false)
	m.ProcessFollowups(ctx)
	if tr, _ := m.Get("a1"); tr.FollowupCount != 1 {
		t.Fatal("follow-up not retried after delivery recovered")
	}
}

func TestResolveLifecycle(t *testing.T) {
	sender := &fakeSender{}
	m, clock := newTestManager(t, sender)
	ctx := context.Background()

	m.ProcessAlerts(ctx, []models.Alert{
		testAlert("a1", models.PriorityImmediate, models.CategoryTemporalOverlap),
	})

	if err := m.Acknowledge(ctx, "a1"); err != nil {
		t.Fatalf("Acknowledge: %v", err)
	}
	if err := m.MarkInProgress(ctx, "a1"); err != nil {
		t.Fatalf("MarkInProgress: %v", err)
	}

	clock.Advance(45 * time.Minute)
	if err := m.Resolve(ctx, "a1", "fixed the billing records", ""); err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	tr, _ := m.Get("a1")
	if tr.Status != StatusResolved {
		t.Errorf("status = %s", tr.Status)
	}
	if tr.ResolutionMethod != "manual" {
		t.Errorf("method = %s, want manual default", tr.ResolutionMethod)
	}
	if tr.TimeToResolution != 45*time.Minute {
		t.Errorf("time to resolution = %v, want 45m", tr.TimeToResolution)
	}

	// Idempotent on terminal states.
	if err := m.Resolve(ctx, "a1", "again", ""); err != nil {
		t.Errorf("second Resolve = %v, want nil", err)
	}

	if err := m.Resolve(ctx, "missing", "", ""); !errors.Is(err, ErrNotFound) {
		t.Errorf("Resolve(unknown) = %v, want ErrNotFound", err)
	}
}

func TestCloseTransitions(t *testing.T) {
	sender := &fakeSender{}
	m, _ := newTestManager(t, sender)
	ctx := context.Background()

	m.ProcessAlerts(ctx, []models.Alert{
		testAlert("a1", models.PriorityImmediate, models.CategoryTemporalOverlap),
		testAlert("a2", models.PriorityImmediate, models.CategoryInsufficientTravel),
	})

	if err := m.CloseAlert(ctx, "a1", "false positive"); err != nil {
		t.Fatalf("CloseAlert: %v", err)
	}
	if err := m.CloseAlert(ctx, "a1", ""); err != nil {
		t.Errorf("closing a closed alert = %v, want nil", err)
	}

	if err := m.Resolve(ctx, "a2", "", ""); err != nil {
		t.Fatal(err)
	}
	if err := m.CloseAlert(ctx, "a2", ""); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("closing a resolved alert = %v, want ErrInvalidTransition", err)
	}

	if err := m.Acknowledge(ctx, "a1"); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("acknowledging a closed alert = %v, want ErrInvalidTransition", err)
	}
}

func TestStatistics(t *testing.T) {
	sender := &fakeSender{}
	m, clock := newTestManager(t, sender)
	ctx := context.Background()

	m.ProcessAlerts(ctx, []models.Alert{
		testAlert("a1", models.PriorityImmediate, models.CategoryTemporalOverlap),
		testAlert("a2", models.PriorityNormal, models.CategoryMissingReport),
		testAlert("a3", models.PriorityNormal, models.CategoryMissingReport),
	})

	clock.Advance(30 * time.Minute)
	if err := m.Resolve(ctx, "a1", "", ""); err != nil {
		t.Fatal(err)
	}

	stats := m.Statistics()
	if stats.TotalAlerts != 3 {
		t.Errorf("total = %d, want 3", stats.TotalAlerts)
	}
	if stats.ResolvedAlerts != 1 {
		t.Errorf("resolved = %d, want 1", stats.ResolvedAlerts)
	}
	if stats.ActiveAlerts != 2 {
		t.Errorf("active = %d, want 2", stats.ActiveAlerts)
	}
	if stats.GroupedAlerts != 2 {
		t.Errorf("grouped = %d, want 2", stats.GroupedAlerts)
	}
	if stats.AvgResolutionTime != 30*time.Minute {
		t.Errorf("avg resolution = %v, want 30m", stats.AvgResolutionTime)
	}

	snap := m.ExportSnapshot()
	if len(snap.Tracking) != 3 {
		t.Errorf("snapshot tracking = %d, want 3", len(snap.Tracking))
	}
}

func TestImmediateDispatchRetriedAfterFailure(t *testing.T) {
	sender := &fakeSender{}
	m, _ := newTestManager(t, sender)
	ctx := context.Background()

	sender.setFail(true)
	m.ProcessAlerts(ctx, []models.Alert{
		testAlert("a1", models.PriorityImmediate, models.CategoryTemporalOverlap),
	})
	if tr, _ := m.Get("a1"); tr.Status != StatusPending {
		t.Fatalf("status after failed dispatch = %s, want pending", tr.Status)
	}

	sender.setFail(false)
	m.DispatchDue(ctx)
	if tr, _ := m.Get("a1"); tr.Status != StatusSent {
		t.Errorf("status after retry = %s, want sent", tr.Status)
	}
}
