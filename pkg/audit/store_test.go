package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeArchiver struct {
	keys []string
	data [][]byte
	err  error
}

func (a *fakeArchiver) Archive(ctx context.Context, key string, data []byte) error {
	if a.err != nil {
		return a.err
	}
	a.keys = append(a.keys, key)
	a.data = append(a.data, data)
	return nil
}

func TestDBStoreExportFormats(t *testing.T) {
	sink, mock := newTestDBSink(t)
	store := NewDBStore(sink, nil)

	for _, format := range []ExportFormat{ExportFormatJSON, ExportFormatCSV, ExportFormatNDJSON} {
		mock.ExpectQuery("SELECT id, timestamp, event_type, severity").
			WillReturnRows(sqlmock.NewRows([]string{
				"id", "timestamp", "event_type", "severity",
				"actor_user_id", "song_id", "action",
				"request_id", "ip_address", "details",
			}).AddRow(int64(1), time.Now(), string(EventTypeAccessGranted), string(SeverityInfo),
				nil, nil, "", "", "", nil))

		data, err := store.Export(context.Background(), SearchFilter{}, format)
		require.NoError(t, err, "format %s", format)
		assert.NotEmpty(t, data)
	}
}

func TestDBStoreCleanupWithoutArchival(t *testing.T) {
	sink, mock := newTestDBSink(t)
	store := NewDBStore(sink, nil)

	mock.ExpectExec("DELETE FROM audit_events WHERE timestamp").
		WillReturnResult(sqlmock.NewResult(0, 7))

	deleted, err := store.Cleanup(context.Background(), RetentionPolicy{RetentionDays: 30})
	require.NoError(t, err)
	assert.Equal(t, int64(7), deleted)
}

func TestDBStoreCleanupArchivesFirst(t *testing.T) {
	sink, mock := newTestDBSink(t)
	archiver := &fakeArchiver{}
	store := NewDBStore(sink, archiver)

	mock.ExpectQuery("SELECT id, timestamp, event_type, severity").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "timestamp", "event_type", "severity",
			"actor_user_id", "song_id", "action",
			"request_id", "ip_address", "details",
		}).AddRow(int64(1), time.Now().AddDate(0, 0, -100), string(EventTypeAccessDenied), string(SeverityWarning),
			nil, nil, "", "", "", nil))
	mock.ExpectExec("DELETE FROM audit_events WHERE timestamp").
		WillReturnResult(sqlmock.NewResult(0, 1))

	deleted, err := store.Cleanup(context.Background(), RetentionPolicy{
		RetentionDays:  90,
		ArchiveEnabled: true,
		ArchiveBucket:  "chordme-audit",
		ArchivePrefix:  "prod/",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
	require.Len(t, archiver.keys, 1)
	assert.Contains(t, archiver.keys[0], "prod/audit-")
	assert.NotEmpty(t, archiver.data[0])
}

// TestDBStoreCleanupAbortsOnArchiveFailure verifies no events are deleted
// when their archive upload fails.
func TestDBStoreCleanupAbortsOnArchiveFailure(t *testing.T) {
	sink, mock := newTestDBSink(t)
	archiver := &fakeArchiver{err: errors.New("bucket unreachable")}
	store := NewDBStore(sink, archiver)

	mock.ExpectQuery("SELECT id, timestamp, event_type, severity").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "timestamp", "event_type", "severity",
			"actor_user_id", "song_id", "action",
			"request_id", "ip_address", "details",
		}).AddRow(int64(1), time.Now().AddDate(0, 0, -100), string(EventTypeAccessDenied), string(SeverityWarning),
			nil, nil, "", "", "", nil))

	_, err := store.Cleanup(context.Background(), RetentionPolicy{
		RetentionDays:  90,
		ArchiveEnabled: true,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "archive")
}

func TestDBStoreCleanupRejectsZeroRetention(t *testing.T) {
	sink, _ := newTestDBSink(t)
	store := NewDBStore(sink, nil)

	_, err := store.Cleanup(context.Background(), RetentionPolicy{})
	assert.Error(t, err)
}
