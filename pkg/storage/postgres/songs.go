package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/chordme/chordme/pkg/permissions"
	"github.com/chordme/chordme/pkg/songs"
)

// SongStore implements songs.Store on PostgreSQL.
type SongStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSongStore creates a song store.
func NewSongStore(db *sql.DB) *SongStore {
	return &SongStore{db: db, now: time.Now}
}

const songColumns = `id, title, artist, content, owner_id, visibility, grants, share_token, created_at, updated_at`

// Create inserts the song and fills in its id and timestamps.
func (s *SongStore) Create(ctx context.Context, song *songs.Song) error {
	if err := song.Validate(); err != nil {
		return err
	}

	grants, err := marshalGrants(song.Grants)
	if err != nil {
		return err
	}

	now := s.now().UTC()
	song.CreatedAt = now
	song.UpdatedAt = now

	query := `
		INSERT INTO songs (title, artist, content, owner_id, visibility, grants, share_token, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`
	err = s.db.QueryRowContext(ctx, query,
		song.Title,
		song.Artist,
		song.Content,
		song.OwnerID,
		string(song.Visibility),
		grants,
		song.ShareToken,
		song.CreatedAt,
		song.UpdatedAt,
	).Scan(&song.ID)
	if err != nil {
		return wrapStoreErr("failed to create song", err)
	}
	return nil
}

// Get loads a live song by id. Soft-deleted songs are not found.
func (s *SongStore) Get(ctx context.Context, id int64) (*songs.Song, error) {
	query := `SELECT ` + songColumns + ` FROM songs WHERE id = $1 AND deleted_at IS NULL`
	return s.scanSong(s.db.QueryRowContext(ctx, query, id))
}

// GetByShareToken loads a live song by its share token. Only songs that
// are currently link-shared carry a token.
func (s *SongStore) GetByShareToken(ctx context.Context, token string) (*songs.Song, error) {
	if token == "" {
		return nil, songs.ErrNotFound
	}
	query := `SELECT ` + songColumns + ` FROM songs WHERE share_token = $1 AND deleted_at IS NULL`
	return s.scanSong(s.db.QueryRowContext(ctx, query, token))
}

// Update persists the whole record as a single row write.
func (s *SongStore) Update(ctx context.Context, song *songs.Song) error {
	if err := song.Validate(); err != nil {
		return err
	}

	grants, err := marshalGrants(song.Grants)
	if err != nil {
		return err
	}
	song.UpdatedAt = s.now().UTC()

	query := `
		UPDATE songs
		SET title = $1, artist = $2, content = $3, visibility = $4, grants = $5, share_token = $6, updated_at = $7
		WHERE id = $8 AND deleted_at IS NULL
	`
	result, err := s.db.ExecContext(ctx, query,
		song.Title,
		song.Artist,
		song.Content,
		string(song.Visibility),
		grants,
		song.ShareToken,
		song.UpdatedAt,
		song.ID,
	)
	if err != nil {
		return wrapStoreErr("failed to update song", err)
	}
	return requireRow(result)
}

// SoftDelete marks the song deleted. It keeps the row for the audit
// trail but hides it from every read path.
func (s *SongStore) SoftDelete(ctx context.Context, id int64) error {
	query := `UPDATE songs SET deleted_at = $1 WHERE id = $2 AND deleted_at IS NULL`
	result, err := s.db.ExecContext(ctx, query, s.now().UTC(), id)
	if err != nil {
		return wrapStoreErr("failed to delete song", err)
	}
	return requireRow(result)
}

// ListAccessible returns songs the user owns, songs shared with them,
// and public songs, owned first.
func (s *SongStore) ListAccessible(ctx context.Context, userID int64) ([]*songs.Song, error) {
	query := `
		SELECT ` + songColumns + `
		FROM songs
		WHERE deleted_at IS NULL
		  AND (owner_id = $1 OR jsonb_exists(grants, $2) OR visibility = $3)
		ORDER BY (owner_id = $1) DESC, updated_at DESC
	`
	rows, err := s.db.QueryContext(ctx, query, userID, fmt.Sprintf("%d", userID), string(permissions.VisibilityPublic))
	if err != nil {
		return nil, wrapStoreErr("failed to list songs", err)
	}
	defer rows.Close()
	return s.collect(rows)
}

// ListPublic returns public songs for anonymous browsing.
func (s *SongStore) ListPublic(ctx context.Context, limit, offset int) ([]*songs.Song, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT ` + songColumns + `
		FROM songs
		WHERE deleted_at IS NULL AND visibility = $1
		ORDER BY updated_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := s.db.QueryContext(ctx, query, string(permissions.VisibilityPublic), limit, offset)
	if err != nil {
		return nil, wrapStoreErr("failed to list public songs", err)
	}
	defer rows.Close()
	return s.collect(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *SongStore) scanSong(row rowScanner) (*songs.Song, error) {
	var song songs.Song
	var visibility string
	var grants []byte

	err := row.Scan(
		&song.ID,
		&song.Title,
		&song.Artist,
		&song.Content,
		&song.OwnerID,
		&visibility,
		&grants,
		&song.ShareToken,
		&song.CreatedAt,
		&song.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, songs.ErrNotFound
	}
	if err != nil {
		return nil, wrapStoreErr("failed to scan song", err)
	}

	song.Visibility = permissions.Visibility(visibility)
	if song.Grants, err = unmarshalGrants(grants); err != nil {
		return nil, err
	}
	return &song, nil
}

func (s *SongStore) collect(rows *sql.Rows) ([]*songs.Song, error) {
	var out []*songs.Song
	for rows.Next() {
		song, err := s.scanSong(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, song)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapStoreErr("failed to read songs", err)
	}
	return out, nil
}

func marshalGrants(grants permissions.SharingMap) ([]byte, error) {
	if grants == nil {
		return []byte("{}"), nil
	}
	data, err := json.Marshal(grants)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal grants: %w", err)
	}
	return data, nil
}

func unmarshalGrants(data []byte) (permissions.SharingMap, error) {
	if len(data) == 0 {
		return permissions.SharingMap{}, nil
	}
	var grants permissions.SharingMap
	if err := json.Unmarshal(data, &grants); err != nil {
		return nil, fmt.Errorf("%w: corrupt grants column: %v", songs.ErrUnavailable, err)
	}
	return grants, nil
}

// requireRow maps a zero-row update to absence.
func requireRow(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return wrapStoreErr("failed to read result", err)
	}
	if affected == 0 {
		return songs.ErrNotFound
	}
	return nil
}

// wrapStoreErr maps driver errors onto the store taxonomy. sql.ErrNoRows
// stays absence; everything else is an availability failure.
func wrapStoreErr(msg string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return songs.ErrNotFound
	}
	return fmt.Errorf("%w: %s: %v", songs.ErrUnavailable, msg, err)
}
