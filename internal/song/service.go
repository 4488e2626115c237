package song

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/penlane/greenroom/internal/normalize"
)

// songColumns is the ordered list of columns for SELECT queries.
const songColumns = `id, title, artist, is_live, duration_seconds,
	bpm, bpm_source, tuning, tuning_source, created_at, updated_at`

// Service provides song persistence. Songs are a shared global resource: the
// row-level access rules of the calling application do not apply here, which
// is why writes go through this service rather than a caller-scoped handle.
type Service struct {
	db *sql.DB
}

// NewService creates a song service.
func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// Upsert inserts the song or, when a row with the same normalized
// (title, artist) key exists, updates that row in place. The song's ID is
// populated either way.
func (s *Service) Upsert(ctx context.Context, sg *Song) error {
	if sg.Tuning == "" {
		sg.Tuning = TuningStandard
	}
	if sg.ID == "" {
		sg.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	sg.CreatedAt = now
	sg.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO songs (
			id, title, artist, title_key, artist_key, is_live, duration_seconds,
			bpm, bpm_source, tuning, tuning_source, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (title_key, artist_key) DO UPDATE SET
			title = excluded.title,
			artist = excluded.artist,
			is_live = excluded.is_live,
			duration_seconds = excluded.duration_seconds,
			bpm = COALESCE(excluded.bpm, songs.bpm),
			bpm_source = CASE WHEN excluded.bpm IS NULL THEN songs.bpm_source ELSE excluded.bpm_source END,
			tuning = excluded.tuning,
			tuning_source = excluded.tuning_source,
			updated_at = excluded.updated_at
	`,
		sg.ID, sg.Title, sg.Artist,
		normalize.Text(sg.Title), normalize.Text(sg.Artist),
		boolToInt(sg.IsLive), sg.DurationSeconds,
		sg.BPM, sg.BPMSource, sg.Tuning, sg.TuningSource,
		now.Format(time.RFC3339), now.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("upserting song: %w", err)
	}

	// On conflict the insert ID was discarded; read back the winning row.
	stored, err := s.GetByKey(ctx, sg.Title, sg.Artist)
	if err != nil {
		return err
	}
	if stored != nil {
		artwork := sg.ArtworkURL
		*sg = *stored
		sg.ArtworkURL = artwork
	}

	return nil
}

// Update rewrites the mutable fields of an existing row.
func (s *Service) Update(ctx context.Context, sg *Song) error {
	sg.UpdatedAt = time.Now().UTC()
	if sg.Tuning == "" {
		sg.Tuning = TuningStandard
	}

	_, err := s.db.ExecContext(ctx, `
		UPDATE songs SET
			title = ?, artist = ?, title_key = ?, artist_key = ?,
			is_live = ?, duration_seconds = ?,
			bpm = ?, bpm_source = ?, tuning = ?, tuning_source = ?, updated_at = ?
		WHERE id = ?
	`,
		sg.Title, sg.Artist, normalize.Text(sg.Title), normalize.Text(sg.Artist),
		boolToInt(sg.IsLive), sg.DurationSeconds,
		sg.BPM, sg.BPMSource, sg.Tuning, sg.TuningSource,
		sg.UpdatedAt.Format(time.RFC3339), sg.ID,
	)
	if err != nil {
		return fmt.Errorf("updating song: %w", err)
	}
	return nil
}

// GetByKey retrieves a song by its normalized (title, artist) key, or nil.
func (s *Service) GetByKey(ctx context.Context, title, artist string) (*Song, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+songColumns+` FROM songs WHERE title_key = ? AND artist_key = ?`,
		normalize.Text(title), normalize.Text(artist))
	sg, err := scanSong(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting song by key: %w", err)
	}
	return sg, nil
}

// SearchByTitle returns songs whose title contains the query,
// case-insensitively, ordered by title.
func (s *Service) SearchByTitle(ctx context.Context, query string, limit int) ([]Song, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+songColumns+` FROM songs
		WHERE title LIKE '%' || ? || '%' COLLATE NOCASE
		ORDER BY title COLLATE NOCASE
		LIMIT ?
	`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("searching songs: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	return collectSongs(rows)
}

// List returns stored songs ordered by title, with optional title filter.
func (s *Service) List(ctx context.Context, query string, limit, offset int) ([]Song, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+songColumns+` FROM songs
		WHERE (? = '' OR title LIKE '%' || ? || '%' COLLATE NOCASE)
		ORDER BY title COLLATE NOCASE
		LIMIT ? OFFSET ?
	`, query, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing songs: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	return collectSongs(rows)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSong(row scanner) (*Song, error) {
	var sg Song
	var bpm sql.NullInt64
	var createdAt, updatedAt string
	var isLive int

	err := row.Scan(
		&sg.ID, &sg.Title, &sg.Artist, &isLive, &sg.DurationSeconds,
		&bpm, &sg.BPMSource, &sg.Tuning, &sg.TuningSource,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	sg.IsLive = isLive != 0
	if bpm.Valid {
		v := int(bpm.Int64)
		sg.BPM = &v
	}
	sg.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	sg.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)

	return &sg, nil
}

func collectSongs(rows *sql.Rows) ([]Song, error) {
	var songs []Song
	for rows.Next() {
		sg, err := scanSong(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning song: %w", err)
		}
		songs = append(songs, *sg)
	}
	return songs, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
