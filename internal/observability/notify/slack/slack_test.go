package slack

import (
	"strings"
	"testing"
	"time"

	"github.com/target/taskflow/internal/observability/notify"
)

func TestNewClientValidation(t *testing.T) {
	if _, err := NewClient(Config{}); err == nil {
		t.Fatal("expected error when webhook url missing")
	}
}

func TestFormatMessageIncludesFields(t *testing.T) {
	client, err := NewClient(Config{
		WebhookURL: "https://hooks.slack.com/services/test",
		Channel:    "#alerts",
		Username:   "bot",
		Timeout:    time.Second,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	msg := client.formatMessage(notify.DeadJobPayload{
		JobID:         "123",
		Queue:         "billing",
		JobName:       "send-invoice",
		TenantID:      "acme",
		AttemptNumber: 3,
		MaxAttempts:   3,
		ErrorType:     "handler_error",
		Error:         "boom",
	})

	if msg["username"] != "bot" {
		t.Fatalf("expected username to be preserved, got %v", msg["username"])
	}
	if msg["channel"] != "#alerts" {
		t.Fatalf("expected channel to be set, got %v", msg["channel"])
	}

	text, ok := msg["text"].(string)
	if !ok {
		t.Fatalf("expected text field")
	}
	if !containsAll(
		text,
		[]string{"Dead job alert", "123", "send-invoice", "billing", "acme", "3/3", "handler_error", "boom"},
	) {
		t.Fatalf("message text missing fields: %s", text)
	}
}

func TestFormatMessageDefaultUsername(t *testing.T) {
	client, err := NewClient(Config{
		WebhookURL: "https://hooks.slack.com/services/test",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	msg := client.formatMessage(notify.DeadJobPayload{JobID: "123"})
	if msg["username"] != "taskflow" {
		t.Fatalf("expected default username, got %v", msg["username"])
	}
	if _, ok := msg["channel"]; ok {
		t.Fatalf("expected no channel when unset, got %v", msg["channel"])
	}
}

func TestFormatMessageEscapesErrorText(t *testing.T) {
	client, err := NewClient(Config{
		WebhookURL: "https://hooks.slack.com/services/test",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	msg := client.formatMessage(notify.DeadJobPayload{
		JobID: "123",
		Error: "tls & <handshake> failed",
	})

	text, ok := msg["text"].(string)
	if !ok {
		t.Fatalf("expected text field")
	}

	if !strings.Contains(text, "tls &amp; &lt;handshake&gt; failed") {
		t.Fatalf("expected escaped error text, got: %s", text)
	}
}

func TestFormatMessageMetadataSorted(t *testing.T) {
	client, err := NewClient(Config{
		WebhookURL: "https://hooks.slack.com/services/test",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	msg := client.formatMessage(notify.DeadJobPayload{
		JobID: "123",
		Metadata: map[string]string{
			"priority": "10",
			"attempts": "3",
		},
	})

	text, ok := msg["text"].(string)
	if !ok {
		t.Fatalf("expected text field")
	}

	attemptsIdx := strings.Index(text, "attempts: 3")
	priorityIdx := strings.Index(text, "priority: 10")
	if attemptsIdx < 0 || priorityIdx < 0 {
		t.Fatalf("metadata missing from text: %s", text)
	}
	if attemptsIdx > priorityIdx {
		t.Fatalf("metadata keys should be sorted, got: %s", text)
	}
}

func containsAll(text string, substrs []string) bool {
	for _, s := range substrs {
		if !strings.Contains(text, s) {
			return false
		}
	}
	return true
}
