package audit

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
)

// exportJSON renders events as a single JSON array.
func exportJSON(events []*Event) ([]byte, error) {
	return json.MarshalIndent(events, "", "  ")
}

// exportNDJSON renders events as newline-delimited JSON, one per line.
func exportNDJSON(events []*Event) ([]byte, error) {
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	for _, event := range events {
		if err := encoder.Encode(event); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// exportCSV renders events as CSV with a header row. The details payload
// is serialized as JSON into a single column.
func exportCSV(events []*Event) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	header := []string{
		"id", "timestamp", "event_type", "severity",
		"actor_user_id", "song_id", "action",
		"request_id", "ip_address", "details",
	}
	if err := writer.Write(header); err != nil {
		return nil, err
	}

	for _, event := range events {
		actor := ""
		if event.ActorUserID != nil {
			actor = strconv.FormatInt(*event.ActorUserID, 10)
		}
		song := ""
		if event.SongID != nil {
			song = strconv.FormatInt(*event.SongID, 10)
		}
		details := ""
		if event.Details != nil {
			data, err := json.Marshal(event.Details)
			if err != nil {
				return nil, fmt.Errorf("failed to marshal details for event %d: %w", event.ID, err)
			}
			details = string(data)
		}

		record := []string{
			strconv.FormatInt(event.ID, 10),
			event.Timestamp.UTC().Format("2006-01-02T15:04:05.000Z"),
			string(event.Type),
			string(event.Severity),
			actor,
			song,
			event.Action,
			event.RequestID,
			event.IPAddress,
			details,
		}
		if err := writer.Write(record); err != nil {
			return nil, err
		}
	}

	writer.Flush()
	return buf.Bytes(), writer.Error()
}
