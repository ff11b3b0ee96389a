package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// DBSink implements audit persistence in PostgreSQL. Besides Append it
// exposes the query surface (Search, GetStats, Cleanup) used by Store.
type DBSink struct {
	db *sql.DB
}

// NewDBSink creates a database-backed audit sink and ensures the
// audit_events table exists.
func NewDBSink(db *sql.DB) (*DBSink, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	sink := &DBSink{db: db}
	if err := sink.ensureTable(); err != nil {
		return nil, fmt.Errorf("failed to ensure audit_events table: %w", err)
	}
	return sink, nil
}

// ensureTable creates the audit_events table if it doesn't exist
func (s *DBSink) ensureTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS audit_events (
		id BIGSERIAL PRIMARY KEY,
		timestamp TIMESTAMP WITH TIME ZONE NOT NULL,
		event_type VARCHAR(100) NOT NULL,
		severity VARCHAR(20) NOT NULL,
		actor_user_id BIGINT,
		song_id BIGINT,
		action VARCHAR(100),
		request_id VARCHAR(100),
		ip_address VARCHAR(45),
		details JSONB,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_audit_events_timestamp ON audit_events(timestamp DESC);
	CREATE INDEX IF NOT EXISTS idx_audit_events_event_type ON audit_events(event_type);
	CREATE INDEX IF NOT EXISTS idx_audit_events_actor ON audit_events(actor_user_id);
	CREATE INDEX IF NOT EXISTS idx_audit_events_song ON audit_events(song_id);
	CREATE INDEX IF NOT EXISTS idx_audit_events_severity ON audit_events(severity);
	`

	_, err := s.db.Exec(query)
	return err
}

// Append inserts one event and fills in its assigned id.
func (s *DBSink) Append(ctx context.Context, event *Event) error {
	var detailsJSON []byte
	var err error
	if event.Details != nil {
		detailsJSON, err = json.Marshal(event.Details)
		if err != nil {
			return fmt.Errorf("failed to marshal details: %w", err)
		}
	}

	query := `
		INSERT INTO audit_events (
			timestamp, event_type, severity,
			actor_user_id, song_id, action,
			request_id, ip_address, details
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`

	err = s.db.QueryRowContext(ctx, query,
		event.Timestamp, event.Type, event.Severity,
		event.ActorUserID, event.SongID, event.Action,
		event.RequestID, event.IPAddress, detailsJSON,
	).Scan(&event.ID)

	if err != nil {
		return fmt.Errorf("failed to insert audit event: %w", err)
	}
	return nil
}

// Close implements Sink. The *sql.DB is owned by the caller.
func (s *DBSink) Close() error { return nil }

// Search returns events matching the filter, newest first by default.
func (s *DBSink) Search(ctx context.Context, filter SearchFilter) ([]*Event, error) {
	var conditions []string
	var args []interface{}
	argNum := 1

	addCondition := func(cond string, value interface{}) {
		conditions = append(conditions, fmt.Sprintf(cond, argNum))
		args = append(args, value)
		argNum++
	}

	if filter.StartTime != nil {
		addCondition("timestamp >= $%d", *filter.StartTime)
	}
	if filter.EndTime != nil {
		addCondition("timestamp <= $%d", *filter.EndTime)
	}
	if filter.ActorUserID != nil {
		addCondition("actor_user_id = $%d", *filter.ActorUserID)
	}
	if filter.SongID != nil {
		addCondition("song_id = $%d", *filter.SongID)
	}
	if filter.Severity != nil {
		addCondition("severity = $%d", *filter.Severity)
	}
	if filter.Action != "" {
		addCondition("action = $%d", filter.Action)
	}
	if filter.IPAddress != "" {
		addCondition("ip_address = $%d", filter.IPAddress)
	}
	if len(filter.EventTypes) > 0 {
		placeholders := make([]string, len(filter.EventTypes))
		for i, et := range filter.EventTypes {
			placeholders[i] = fmt.Sprintf("$%d", argNum)
			args = append(args, et)
			argNum++
		}
		conditions = append(conditions, fmt.Sprintf("event_type IN (%s)", strings.Join(placeholders, ", ")))
	}

	query := `
		SELECT id, timestamp, event_type, severity,
		       actor_user_id, song_id, action,
		       request_id, ip_address, details
		FROM audit_events
	`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	order := "DESC"
	if strings.EqualFold(filter.SortOrder, "asc") {
		order = "ASC"
	}
	query += " ORDER BY timestamp " + order

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(" LIMIT $%d", argNum)
	args = append(args, limit)
	argNum++

	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argNum)
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search audit events: %w", err)
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

// GetStats aggregates counts over the optional time range.
func (s *DBSink) GetStats(ctx context.Context, startTime, endTime *time.Time) (*Stats, error) {
	var conditions []string
	var args []interface{}
	argNum := 1

	if startTime != nil {
		conditions = append(conditions, fmt.Sprintf("timestamp >= $%d", argNum))
		args = append(args, *startTime)
		argNum++
	}
	if endTime != nil {
		conditions = append(conditions, fmt.Sprintf("timestamp <= $%d", argNum))
		args = append(args, *endTime)
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	stats := &Stats{
		EventsByType:     make(map[EventType]int64),
		EventsBySeverity: make(map[Severity]int64),
	}

	query := `
		SELECT event_type, severity, COUNT(*)
		FROM audit_events` + where + `
		GROUP BY event_type, severity
	`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate audit events: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var eventType EventType
		var severity Severity
		var count int64
		if err := rows.Scan(&eventType, &severity, &count); err != nil {
			return nil, err
		}
		stats.TotalEvents += count
		stats.EventsByType[eventType] += count
		stats.EventsBySeverity[severity] += count
		switch eventType {
		case EventTypeAccessDenied:
			stats.AccessDenials += count
		case EventTypeBypassAttempt:
			stats.BypassAttempts += count
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	actorQuery := `SELECT COUNT(DISTINCT actor_user_id) FROM audit_events` + where
	if err := s.db.QueryRowContext(ctx, actorQuery, args...).Scan(&stats.UniqueActors); err != nil {
		return nil, fmt.Errorf("failed to count unique actors: %w", err)
	}

	if startTime != nil && endTime != nil {
		stats.TimeRange = &TimeRange{Start: *startTime, End: *endTime}
	}
	return stats, nil
}

// Cleanup deletes events older than the cutoff and returns how many rows
// were removed.
func (s *DBSink) Cleanup(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, "DELETE FROM audit_events WHERE timestamp < $1", cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired audit events: %w", err)
	}
	return result.RowsAffected()
}

// scanEvent scans an event from a database row
func scanEvent(scanner interface {
	Scan(dest ...interface{}) error
}) (*Event, error) {
	var event Event
	var actorUserID, songID sql.NullInt64
	var action, requestID, ipAddress sql.NullString
	var detailsJSON []byte

	err := scanner.Scan(
		&event.ID,
		&event.Timestamp,
		&event.Type,
		&event.Severity,
		&actorUserID,
		&songID,
		&action,
		&requestID,
		&ipAddress,
		&detailsJSON,
	)
	if err != nil {
		return nil, err
	}

	if actorUserID.Valid {
		id := actorUserID.Int64
		event.ActorUserID = &id
	}
	if songID.Valid {
		id := songID.Int64
		event.SongID = &id
	}
	event.Action = action.String
	event.RequestID = requestID.String
	event.IPAddress = ipAddress.String

	if len(detailsJSON) > 0 {
		if err := json.Unmarshal(detailsJSON, &event.Details); err != nil {
			event.Details = map[string]any{"unparsed": string(detailsJSON)}
		}
	}
	return &event, nil
}
