package audit

import (
	"encoding/json"
	"time"
)

// EventType represents the category of audit event
type EventType string

const (
	// Authorization decision events
	EventTypeAccessGranted EventType = "authz.access_granted"
	EventTypeAccessDenied  EventType = "authz.access_denied"

	// EventTypeBypassAttempt records a caller trying to manipulate
	// permission state outside the sanctioned mutation path, e.g. by
	// smuggling unknown permission fields into a payload.
	EventTypeBypassAttempt EventType = "authz.bypass_attempt"

	// Sharing mutation events
	EventTypeSharingActivity EventType = "sharing.activity"

	// EventTypeSuspicious covers anomalies that are not authorization
	// decisions, such as malformed tokens or repeated enumeration probes.
	EventTypeSuspicious EventType = "security.suspicious_activity"
)

// Severity represents how serious an audit event is
type Severity string

const (
	SeverityInfo     Severity = "INFO"
	SeverityWarning  Severity = "WARNING"
	SeverityError    Severity = "ERROR"
	SeverityCritical Severity = "CRITICAL"
)

// SharingAction identifies the kind of sharing mutation being recorded
type SharingAction string

const (
	SharingActionGrantAdded        SharingAction = "grant_added"
	SharingActionGrantChanged      SharingAction = "grant_changed"
	SharingActionGrantRemoved      SharingAction = "grant_removed"
	SharingActionVisibilityChanged SharingAction = "visibility_changed"
)

// Event represents a single immutable audit log entry. Events are
// append-only: they are never mutated or deleted except by retention.
type Event struct {
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"event_type"`
	Severity  Severity  `json:"severity"`

	// ActorUserID is nil for unauthenticated callers.
	ActorUserID *int64 `json:"actor_user_id,omitempty"`
	// SongID is nil for events not scoped to a song.
	SongID *int64 `json:"song_id,omitempty"`

	// Action qualifies sharing and suspicious events (e.g. grant_added).
	Action string `json:"action,omitempty"`

	// Request context
	RequestID string `json:"request_id,omitempty"`
	IPAddress string `json:"ip_address,omitempty"`

	// Details carries structured context. Credential material and raw
	// secrets must never appear here; the Logger strips well-known
	// sensitive keys as a second line of defense.
	Details map[string]any `json:"details,omitempty"`
}

// ToJSON serializes the event.
func (e *Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// FromJSON parses an event from JSON.
func FromJSON(data []byte) (*Event, error) {
	var event Event
	err := json.Unmarshal(data, &event)
	return &event, err
}

// SearchFilter represents filters for querying the audit trail
type SearchFilter struct {
	StartTime *time.Time
	EndTime   *time.Time

	ActorUserID *int64
	SongID      *int64
	EventTypes  []EventType
	Severity    *Severity
	Action      string
	IPAddress   string

	Limit  int
	Offset int

	// SortOrder is "asc" or "desc" by timestamp; desc is the default.
	SortOrder string
}

// ExportFormat represents the format for exporting audit logs
type ExportFormat string

const (
	ExportFormatJSON   ExportFormat = "json"
	ExportFormatCSV    ExportFormat = "csv"
	ExportFormatNDJSON ExportFormat = "ndjson"
)

// Stats summarizes the audit trail over a time range
type Stats struct {
	TotalEvents      int64               `json:"total_events"`
	EventsByType     map[EventType]int64 `json:"events_by_type"`
	EventsBySeverity map[Severity]int64  `json:"events_by_severity"`
	AccessDenials    int64               `json:"access_denials"`
	BypassAttempts   int64               `json:"bypass_attempts"`
	UniqueActors     int64               `json:"unique_actors"`
	TimeRange        *TimeRange          `json:"time_range,omitempty"`
}

// TimeRange represents a time range for statistics
type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// RetentionPolicy defines how long audit events are kept
type RetentionPolicy struct {
	// RetentionDays is the number of days to keep audit events.
	RetentionDays int

	// ArchiveEnabled exports expiring events before deletion.
	ArchiveEnabled bool

	// ArchiveBucket is the S3 bucket archived events are written to.
	ArchiveBucket string

	// ArchivePrefix prefixes archive object keys.
	ArchivePrefix string
}

// DefaultRetentionPolicy returns the default retention policy (90 days,
// no archival).
func DefaultRetentionPolicy() RetentionPolicy {
	return RetentionPolicy{RetentionDays: 90}
}
