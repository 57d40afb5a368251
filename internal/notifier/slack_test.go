package notifier

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/blue-harvest-ops/fieldaudit/internal/models"
)

func TestSlackConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{"valid", "https://hooks.slack.com/services/T/B/x", false},
		{"empty", "", true},
		{"http", "http://hooks.slack.com/services/T/B/x", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := SlackConfig{WebhookURL: tt.url}
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSlackBuildPayload(t *testing.T) {
	s := &SlackNotifier{}
	env := Envelope{
		AlertID:  "abc123",
		Kind:     KindEscalation,
		Priority: models.PriorityImmediate,
		To:       "supervisor@fieldops.example.com",
		Subject:  "CRITICAL ESCALATION: overlapping bookings",
		Body:     "No response in 2.0 hours.",
	}

	payload := s.buildPayload(env)
	if len(payload.Blocks) != 4 {
		t.Fatalf("blocks = %d, want 4", len(payload.Blocks))
	}

	header := payload.Blocks[0]
	if header.Type != "header" || header.Text == nil {
		t.Fatalf("first block = %+v, want header", header)
	}
	if !strings.Contains(header.Text.Text, ":rotating_light:") {
		t.Errorf("immediate alert header %q lacks the alarm emoji", header.Text.Text)
	}
	if !strings.Contains(header.Text.Text, env.Subject) {
		t.Errorf("header %q lacks the subject", header.Text.Text)
	}

	ctxBlock := payload.Blocks[3]
	if len(ctxBlock.Elements) != 1 || !strings.Contains(ctxBlock.Elements[0].Text, "abc123") {
		t.Errorf("context block %+v lacks the alert id", ctxBlock)
	}
	if !strings.Contains(ctxBlock.Elements[0].Text, string(KindEscalation)) {
		t.Errorf("context block %+v lacks the envelope kind", ctxBlock)
	}
}

func TestSlackSend(t *testing.T) {
	var got slackMessage
	var status = http.StatusOK

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &got); err != nil {
			t.Errorf("bad payload: %v", err)
		}
		w.WriteHeader(status)
	}))
	defer server.Close()

	s := &SlackNotifier{
		config:     SlackConfig{WebhookURL: server.URL},
		httpClient: server.Client(),
	}

	res := s.Send(context.Background(), Envelope{
		AlertID:  "abc123",
		Kind:     KindAlert,
		Priority: models.PriorityUrgent,
		To:       "mario.rossi@fieldops.example.com",
		Subject:  "subject",
		Body:     "body",
	})
	if !res.Success {
		t.Fatalf("Send failed: %v", res.Err)
	}
	if len(got.Blocks) == 0 {
		t.Error("webhook never received the payload")
	}

	status = http.StatusInternalServerError
	res = s.Send(context.Background(), Envelope{AlertID: "abc123"})
	if res.Success || res.Err == nil {
		t.Errorf("non-200 webhook response should fail, got %+v", res)
	}
}
