// Package audit journals user-initiated mutations (status changes, quote
// edits, sent messages) as structured log lines, enriched with the session
// identity from context.
package audit

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"renomarket.org/internal/obs"
	"renomarket.org/internal/session"
)

type ctxKey string

const panelKey ctxKey = "audit_panel"

// WithPanel tags the context with the originating dashboard panel.
func WithPanel(ctx context.Context, panel string) context.Context {
	panel = strings.TrimSpace(panel)
	if panel == "" {
		return ctx
	}
	return context.WithValue(ctx, panelKey, panel)
}

func panelFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(panelKey).(string); ok {
		return v
	}
	return ""
}

// LogEvent writes a journal entry enriched with panel and user context.
func LogEvent(ctx context.Context, event string, fields map[string]any) error {
	event = strings.TrimSpace(event)
	if event == "" {
		return errors.New("event name is required")
	}
	entry := map[string]any{
		"ts":    time.Now().UTC().Format(time.RFC3339Nano),
		"type":  "audit",
		"event": event,
	}
	if panel := panelFromContext(ctx); panel != "" {
		entry["panel"] = panel
	}
	if s, ok := session.FromContext(ctx); ok {
		entry["user_id"] = s.UserID
		entry["role"] = s.Role
	}
	if len(fields) > 0 {
		copyFields := make(map[string]any, len(fields))
		for k, v := range fields {
			copyFields[k] = v
		}
		entry["fields"] = copyFields
	} else {
		entry["fields"] = map[string]any{}
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	obs.Logger().Println(string(data))
	return nil
}
