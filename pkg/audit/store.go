package audit

import (
	"context"
	"fmt"
	"time"
)

// Store provides the query surface over the persisted audit trail.
type Store interface {
	// Search returns events matching the filter.
	Search(ctx context.Context, filter SearchFilter) ([]*Event, error)

	// GetStats aggregates counts over an optional time range.
	GetStats(ctx context.Context, startTime, endTime *time.Time) (*Stats, error)

	// Export renders matching events in the given format.
	Export(ctx context.Context, filter SearchFilter, format ExportFormat) ([]byte, error)

	// Cleanup applies the retention policy, archiving first when the
	// policy asks for it, and returns the number of deleted events.
	Cleanup(ctx context.Context, policy RetentionPolicy) (int64, error)
}

// Archiver persists expiring events outside the primary store before
// retention deletes them. Implemented by S3Archiver.
type Archiver interface {
	Archive(ctx context.Context, key string, data []byte) error
}

// DBStore implements Store on top of a DBSink.
type DBStore struct {
	sink     *DBSink
	archiver Archiver
}

// NewDBStore creates a database-backed audit store. archiver may be nil
// when archival is not configured.
func NewDBStore(sink *DBSink, archiver Archiver) *DBStore {
	return &DBStore{sink: sink, archiver: archiver}
}

// Search returns events matching the filter.
func (s *DBStore) Search(ctx context.Context, filter SearchFilter) ([]*Event, error) {
	return s.sink.Search(ctx, filter)
}

// GetStats aggregates counts over an optional time range.
func (s *DBStore) GetStats(ctx context.Context, startTime, endTime *time.Time) (*Stats, error) {
	return s.sink.GetStats(ctx, startTime, endTime)
}

// Export renders matching events in the given format.
func (s *DBStore) Export(ctx context.Context, filter SearchFilter, format ExportFormat) ([]byte, error) {
	events, err := s.sink.Search(ctx, filter)
	if err != nil {
		return nil, err
	}

	switch format {
	case ExportFormatCSV:
		return exportCSV(events)
	case ExportFormatNDJSON:
		return exportNDJSON(events)
	case ExportFormatJSON:
		return exportJSON(events)
	default:
		return exportJSON(events)
	}
}

// Cleanup deletes events older than the retention window. When archival
// is enabled and an archiver is configured, expiring events are exported
// as NDJSON and uploaded before deletion; an archive failure aborts the
// cleanup so no unarchived events are lost.
func (s *DBStore) Cleanup(ctx context.Context, policy RetentionPolicy) (int64, error) {
	if policy.RetentionDays <= 0 {
		return 0, fmt.Errorf("retention days must be positive, got %d", policy.RetentionDays)
	}
	cutoff := time.Now().AddDate(0, 0, -policy.RetentionDays)

	if policy.ArchiveEnabled && s.archiver != nil {
		expiring, err := s.sink.Search(ctx, SearchFilter{
			EndTime:   &cutoff,
			Limit:     1 << 20,
			SortOrder: "asc",
		})
		if err != nil {
			return 0, fmt.Errorf("failed to load expiring events: %w", err)
		}
		if len(expiring) > 0 {
			data, err := exportNDJSON(expiring)
			if err != nil {
				return 0, fmt.Errorf("failed to export expiring events: %w", err)
			}
			key := fmt.Sprintf("%saudit-%s.ndjson", policy.ArchivePrefix, cutoff.UTC().Format("20060102"))
			if err := s.archiver.Archive(ctx, key, data); err != nil {
				return 0, fmt.Errorf("failed to archive expiring events: %w", err)
			}
		}
	}

	return s.sink.Cleanup(ctx, cutoff)
}
