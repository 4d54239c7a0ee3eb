package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"renomarket.org/internal/obs"
	"renomarket.org/internal/session"
)

func TestLogEvent(t *testing.T) {
	logger := obs.Logger()
	original := logger.Writer()
	logger.SetFlags(0)
	var buf bytes.Buffer
	logger.SetOutput(&buf)
	defer logger.SetOutput(original)

	ctx := context.Background()
	ctx = WithPanel(ctx, "tasks")
	ctx = session.ContextWithSession(ctx, session.Session{
		UserID:    "user-42",
		Role:      "user",
		ExpiresAt: time.Now().Add(time.Hour),
	})

	if err := LogEvent(ctx, "task.status", map[string]any{"taskId": "t1"}); err != nil {
		t.Fatalf("LogEvent failed: %v", err)
	}

	line := buf.String()
	if line == "" {
		t.Fatal("expected log output")
	}

	var entry map[string]any
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		t.Fatalf("log not valid JSON: %v", err)
	}
	if entry["type"] != "audit" {
		t.Fatalf("unexpected type: %v", entry["type"])
	}
	if entry["event"] != "task.status" {
		t.Fatalf("unexpected event: %v", entry["event"])
	}
	if entry["panel"] != "tasks" {
		t.Fatalf("unexpected panel: %v", entry["panel"])
	}
	if entry["user_id"] != "user-42" {
		t.Fatalf("unexpected user id: %v", entry["user_id"])
	}
	fields, ok := entry["fields"].(map[string]any)
	if !ok || fields["taskId"] != "t1" {
		t.Fatalf("fields missing or incorrect: %v", entry["fields"])
	}
}

func TestLogEventRequiresName(t *testing.T) {
	if err := LogEvent(context.Background(), "  ", nil); err == nil {
		t.Fatal("expected error for empty event name")
	}
}
