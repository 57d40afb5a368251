package notifier

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/blue-harvest-ops/fieldaudit/internal/models"
)

type fakeNotifier struct {
	name  string
	fail  bool
	sent  []Envelope
	calls int
}

func (f *fakeNotifier) Name() string { return f.name }
func (f *fakeNotifier) Send(_ context.Context, env Envelope) DeliveryResult {
	f.calls++
	if f.fail {
		return DeliveryResult{Err: errors.New("delivery failed")}
	}
	f.sent = append(f.sent, env)
	return DeliveryResult{Success: true}
}
func (f *fakeNotifier) Close() error { return nil }

func testEnvelope() Envelope {
	return Envelope{
		AlertID:  "abc123",
		Kind:     KindAlert,
		Priority: models.PriorityUrgent,
		To:       "mario.rossi@fieldops.example.com",
		Subject:  "URGENT: overlapping activities",
		Body:     "details",
	}
}

func TestDispatcherSend(t *testing.T) {
	d := NewDispatcher()
	ok := &fakeNotifier{name: "ok"}
	d.Register(ok)

	res := d.Send(context.Background(), testEnvelope())
	if !res.Success {
		t.Fatalf("Send() failed: %v", res.Err)
	}
	if len(ok.sent) != 1 || ok.sent[0].AlertID != "abc123" {
		t.Errorf("notifier received %v", ok.sent)
	}
}

func TestDispatcherSendNoNotifiers(t *testing.T) {
	d := NewDispatcher()
	res := d.Send(context.Background(), testEnvelope())
	if res.Success {
		t.Error("Send() with no notifiers should not succeed")
	}
	if res.Err == nil {
		t.Error("Send() with no notifiers should return an error")
	}
}

func TestDispatcherPartialFailure(t *testing.T) {
	d := NewDispatcher()
	d.Register(&fakeNotifier{name: "ok"})
	d.Register(&fakeNotifier{name: "bad", fail: true})

	res := d.Send(context.Background(), testEnvelope())
	if res.Success {
		t.Error("partial failure should not report success")
	}
	if res.Err == nil {
		t.Error("partial failure should carry the error")
	}
}

func TestDispatcherRefundsTokenOnTotalFailure(t *testing.T) {
	d := NewDispatcherWithRateLimit(RateLimitConfig{MaxPerWindow: 1, Enabled: true})
	d.Register(&fakeNotifier{name: "bad", fail: true})

	d.Send(context.Background(), testEnvelope())
	if got := d.RateLimitStats().CurrentCount; got != 0 {
		t.Errorf("failed delivery kept %d tokens, want 0", got)
	}
}

func TestDispatcherRateLimits(t *testing.T) {
	d := NewDispatcherWithRateLimit(RateLimitConfig{MaxPerWindow: 2, Enabled: true})
	ok := &fakeNotifier{name: "ok"}
	d.Register(ok)

	ctx := context.Background()
	env := testEnvelope()
	for i := 0; i < 2; i++ {
		if res := d.Send(ctx, env); !res.Success {
			t.Fatalf("send %d failed: %v", i, res.Err)
		}
	}

	res := d.Send(ctx, env)
	if res.Success || !errors.Is(res.Err, ErrRateLimited) {
		t.Errorf("third send = %+v, want ErrRateLimited", res)
	}
	if ok.calls != 2 {
		t.Errorf("notifier called %d times, want 2", ok.calls)
	}
}

func TestDispatcherUnregister(t *testing.T) {
	d := NewDispatcher()
	d.Register(&fakeNotifier{name: "log"})
	d.Unregister("log")
	if _, found := d.Get("log"); found {
		t.Error("notifier still registered after Unregister")
	}
}

func TestLogNotifier(t *testing.T) {
	n := NewLogNotifier(zerolog.Nop())
	if res := n.Send(context.Background(), testEnvelope()); !res.Success {
		t.Errorf("log notifier failed: %v", res.Err)
	}
	if n.Name() != "log" {
		t.Errorf("Name() = %s", n.Name())
	}
}
