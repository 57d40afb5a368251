package workflow

import (
	"fmt"
	"strings"
	"time"

	"github.com/blue-harvest-ops/fieldaudit/internal/models"
	"github.com/blue-harvest-ops/fieldaudit/internal/notifier"
)

// alertEnvelope renders a single alert for delivery.
func alertEnvelope(a models.Alert) notifier.Envelope {
	var b strings.Builder
	b.WriteString(a.Message)
	if len(a.CorrectionSteps) > 0 {
		b.WriteString("\n\nCorrective actions:")
		for i, step := range a.CorrectionSteps {
			fmt.Fprintf(&b, "\n  %d. %s", i+1, step)
		}
	}

	return notifier.Envelope{
		AlertID:  a.ID,
		Kind:     notifier.KindAlert,
		Priority: a.Priority,
		To:       a.PrimaryRecipient,
		CC:       a.CCRecipients,
		Subject:  a.Subject,
		Body:     b.String(),
	}
}

// digestEnvelope renders a grouped batch as one summary notification.
// Priority is the highest among the members; estimated losses are summed.
func digestEnvelope(group *AlertGroup, members []*AlertTracking) notifier.Envelope {
	priority := models.PriorityInfo
	totalLoss := 0.0
	var cc []string
	for _, t := range members {
		if t.Alert.Priority < priority {
			priority = t.Alert.Priority
		}
		totalLoss += t.Alert.EstimatedLoss
		if len(cc) == 0 {
			cc = t.Alert.CCRecipients
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Summary of %d alerts on your activities:\n", len(members))
	for i, t := range members {
		fmt.Fprintf(&b, "\n%d. %s", i+1, t.Alert.Subject)
		if t.Alert.EstimatedLoss > 0 {
			fmt.Fprintf(&b, "\n   estimated loss: EUR %.2f", t.Alert.EstimatedLoss)
		}
	}
	if totalLoss > 0 {
		fmt.Fprintf(&b, "\n\nTotal estimated loss: EUR %.2f", totalLoss)
	}
	b.WriteString("\n\nSome alerts require immediate action. Review each one in the dashboard.")

	return notifier.Envelope{
		AlertID:  group.ID,
		Kind:     notifier.KindDigest,
		Priority: priority,
		To:       group.Recipient,
		CC:       cc,
		Subject:  fmt.Sprintf("Alert digest: %d notifications", len(members)),
		Body:     b.String(),
	}
}

// followupEnvelope renders reminder number n for an unanswered alert.
func followupEnvelope(t *AlertTracking, n int) notifier.Envelope {
	body := fmt.Sprintf(
		"FOLLOW-UP #%d\n\nThe following alert still needs your attention:\n\n%s\n\n"+
			"STATUS: not resolved after %d reminder(s)\nACTION REQUIRED: confirm the correction status.",
		n, t.Alert.Message, n)

	return notifier.Envelope{
		AlertID:  t.Alert.ID,
		Kind:     notifier.KindFollowup,
		Priority: t.Alert.Priority,
		To:       t.Alert.PrimaryRecipient,
		CC:       t.Alert.CCRecipients,
		Subject:  fmt.Sprintf("FOLLOW-UP #%d: %s", n, t.Alert.Subject),
		Body:     body,
	}
}

// escalationEnvelope renders the hand-off to the next tier. The supervisor
// (and, for management escalations, the management address) moves to the To
// line; the technician stays in copy.
func escalationEnvelope(t *AlertTracking, level EscalationLevel, elapsed time.Duration) notifier.Envelope {
	to := t.Alert.PrimaryRecipient
	cc := append([]string{}, t.Alert.CCRecipients...)
	if len(cc) > 0 {
		// The factory appends tiers in order, supervisor first and
		// management last; pick the one matching the escalation level.
		pick := 0
		if level == EscalationManagement {
			pick = len(cc) - 1
		}
		to = cc[pick]
		cc = append(append(cc[:pick:pick], cc[pick+1:]...), t.Alert.PrimaryRecipient)
	}

	prefix := "ESCALATION"
	if level == EscalationManagement {
		prefix = "CRITICAL ESCALATION"
	}

	body := fmt.Sprintf(
		"ESCALATION ALERT: no response in %.1f hours.\n\nEscalated to: %s\n\nOriginal alert:\n\n%s",
		elapsed.Hours(), level, t.Alert.Message)

	return notifier.Envelope{
		AlertID:  t.Alert.ID,
		Kind:     notifier.KindEscalation,
		Priority: t.Alert.Priority,
		To:       to,
		CC:       cc,
		Subject:  fmt.Sprintf("%s: %s", prefix, t.Alert.Subject),
		Body:     body,
	}
}
