package audit

import (
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exportFixture() []*Event {
	userID := int64(10)
	songID := int64(5)
	return []*Event{
		{
			ID:          1,
			Timestamp:   time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
			Type:        EventTypeAccessGranted,
			Severity:    SeverityInfo,
			ActorUserID: &userID,
			SongID:      &songID,
			Details:     map[string]any{"required_level": "read"},
		},
		{
			ID:        2,
			Timestamp: time.Date(2026, 3, 1, 12, 5, 0, 0, time.UTC),
			Type:      EventTypeBypassAttempt,
			Severity:  SeverityCritical,
			Action:    "unknown_permission_field",
		},
	}
}

func TestExportJSON(t *testing.T) {
	data, err := exportJSON(exportFixture())
	require.NoError(t, err)

	var decoded []*Event
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Len(t, decoded, 2)
	assert.Equal(t, EventTypeAccessGranted, decoded[0].Type)
	assert.Equal(t, SeverityCritical, decoded[1].Severity)
}

func TestExportNDJSON(t *testing.T) {
	data, err := exportNDJSON(exportFixture())
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	for _, line := range lines {
		var decoded Event
		require.NoError(t, json.Unmarshal([]byte(line), &decoded))
	}
}

func TestExportCSV(t *testing.T) {
	data, err := exportCSV(exportFixture())
	require.NoError(t, err)

	records, err := csv.NewReader(strings.NewReader(string(data))).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3, "header plus two events")

	assert.Equal(t, "id", records[0][0])
	assert.Equal(t, "1", records[1][0])
	assert.Equal(t, "10", records[1][4], "actor column")
	assert.Equal(t, "", records[2][4], "nil actor renders empty")
	assert.Contains(t, records[1][9], "required_level")
}

func TestExportEmpty(t *testing.T) {
	data, err := exportNDJSON(nil)
	require.NoError(t, err)
	assert.Empty(t, data)

	data, err = exportCSV(nil)
	require.NoError(t, err)
	assert.Contains(t, string(data), "id,timestamp")
}
