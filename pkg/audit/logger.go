package audit

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"github.com/chordme/chordme/pkg/contextkeys"
	"github.com/chordme/chordme/pkg/permissions"
)

// Sink receives constructed audit events. Implementations may fail; the
// Logger wrapper is what guarantees the guarded operation never does.
type Sink interface {
	// Append persists a single event. The sink may assign Event.ID.
	Append(ctx context.Context, event *Event) error

	// Close flushes and releases the sink.
	Close() error
}

// NoopSink discards all events. Used when no audit storage is configured
// and as the fallback target in tests.
type NoopSink struct{}

// Append implements Sink.
func (NoopSink) Append(ctx context.Context, event *Event) error { return nil }

// Close implements Sink.
func (NoopSink) Close() error { return nil }

// Logger builds audit events and forwards them to a sink. Every Log*
// method returns the record it constructed, and none of them can fail:
// sink errors are counted in Dropped and swallowed, since losing an
// audit record must never abort the operation being audited.
type Logger struct {
	sink    Sink
	dropped atomic.Int64
	now     func() time.Time
}

// NewLogger creates a logger writing to sink. A nil sink is replaced
// with NoopSink.
func NewLogger(sink Sink) *Logger {
	if sink == nil {
		sink = NoopSink{}
	}
	return &Logger{sink: sink, now: time.Now}
}

// Dropped returns how many events failed to reach the sink.
func (l *Logger) Dropped() int64 {
	return l.dropped.Load()
}

// Close closes the underlying sink.
func (l *Logger) Close() error {
	return l.sink.Close()
}

// LogAccessAttempt records one authorization decision. Severity is INFO
// when granted and WARNING when denied.
func (l *Logger) LogAccessAttempt(ctx context.Context, songID int64, userID *int64, required permissions.Level, granted bool, details map[string]any) *Event {
	eventType := EventTypeAccessGranted
	severity := SeverityInfo
	if !granted {
		eventType = EventTypeAccessDenied
		severity = SeverityWarning
	}

	details = sanitizeDetails(details)
	details["required_level"] = required.String()
	details["granted"] = granted

	event := l.build(ctx, eventType, severity)
	event.ActorUserID = userID
	event.SongID = &songID
	event.Details = details
	l.emit(ctx, event)
	return event
}

// LogPermissionBypassAttempt records an attempt to manipulate permission
// state outside the sanctioned mutation path. Always CRITICAL.
func (l *Logger) LogPermissionBypassAttempt(ctx context.Context, songID int64, userID *int64, attemptedAction string, details map[string]any) *Event {
	event := l.build(ctx, EventTypeBypassAttempt, SeverityCritical)
	event.ActorUserID = userID
	event.SongID = &songID
	event.Action = attemptedAction
	event.Details = sanitizeDetails(details)
	l.emit(ctx, event)
	return event
}

// LogSharingActivity records a sharing mutation (grant added, changed,
// removed, or visibility changed) at INFO severity. targetUserID and
// level are omitted for mutations they do not apply to.
func (l *Logger) LogSharingActivity(ctx context.Context, action SharingAction, songID int64, actorUserID int64, targetUserID *int64, level permissions.Level, details map[string]any) *Event {
	details = sanitizeDetails(details)
	if targetUserID != nil {
		details["target_user_id"] = *targetUserID
	}
	if level != "" {
		details["level"] = level.String()
	}

	event := l.build(ctx, EventTypeSharingActivity, SeverityInfo)
	event.ActorUserID = &actorUserID
	event.SongID = &songID
	event.Action = string(action)
	event.Details = details
	l.emit(ctx, event)
	return event
}

// LogSuspiciousActivity records a security anomaly. An empty severity
// defaults to WARNING.
func (l *Logger) LogSuspiciousActivity(ctx context.Context, activityType string, details map[string]any, userID *int64, severity Severity) *Event {
	if severity == "" {
		severity = SeverityWarning
	}

	event := l.build(ctx, EventTypeSuspicious, severity)
	event.ActorUserID = userID
	event.Action = activityType
	event.Details = sanitizeDetails(details)
	l.emit(ctx, event)
	return event
}

func (l *Logger) build(ctx context.Context, eventType EventType, severity Severity) *Event {
	return &Event{
		Timestamp: l.now().UTC(),
		Type:      eventType,
		Severity:  severity,
		RequestID: contextkeys.RequestIDFromContext(ctx),
		IPAddress: contextkeys.ClientIPFromContext(ctx),
	}
}

func (l *Logger) emit(ctx context.Context, event *Event) {
	if err := l.sink.Append(ctx, event); err != nil {
		l.dropped.Add(1)
	}
}

// sensitiveKeys are stripped from details payloads. Callers are expected
// to pre-sanitize free text; this denylist is the backstop.
var sensitiveKeys = []string{
	"password", "password_hash", "token", "secret", "authorization",
	"credential", "api_key",
}

// sanitizeDetails copies details, dropping keys that look like credential
// material. Always returns a non-nil map the caller may extend.
func sanitizeDetails(details map[string]any) map[string]any {
	out := make(map[string]any, len(details)+2)
	for k, v := range details {
		if isSensitiveKey(k) {
			continue
		}
		out[k] = v
	}
	return out
}

func isSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, s := range sensitiveKeys {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}
