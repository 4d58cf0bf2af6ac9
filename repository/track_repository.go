package repository

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"cratefm/db"
	"cratefm/model"
)

// TrackRepository defines the interface for catalog data operations.
// Reads return (nil, nil) when a record does not exist.
type TrackRepository interface {
	UpsertTrack(track *model.Track) error
	BulkUpsertTracks(tracks []*model.Track) error
	GetTrackByID(id string) (*model.Track, error)
	GetTracksByIDs(ids []string) ([]*model.Track, error)
	ExistsByID(id string) (bool, error)
	FilterTracks(filter model.TrackFilter) ([]*model.Track, error)
	AllTracks() ([]*model.Track, error)
	DeleteTrack(id string) error
	DeleteAllTracks() error
	CountTracks() (int64, error)
}

// mysqlTrackRepository implements TrackRepository for MySQL.
type mysqlTrackRepository struct {
	DB *sql.DB
}

// NewMySQLTrackRepository creates a new instance of mysqlTrackRepository.
func NewMySQLTrackRepository() TrackRepository {
	return &mysqlTrackRepository{DB: db.DB}
}

const trackColumns = "id, artist, title, genre, duration, bpm, `key`, energy, sections, file_path, album, year, label, inferred, created_at, updated_at"

// UpsertTrack inserts a track or updates the existing row with the same
// identifier. The statement is atomic per id, so concurrent imports of
// the same external record converge to one stored record.
func (r *mysqlTrackRepository) UpsertTrack(track *model.Track) error {
	sections, err := marshalSections(track.Sections)
	if err != nil {
		return err
	}

	query := `INSERT INTO tracks (` + trackColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			artist = VALUES(artist), title = VALUES(title), genre = VALUES(genre),
			duration = VALUES(duration), bpm = VALUES(bpm), ` + "`key`" + ` = VALUES(` + "`key`" + `),
			energy = VALUES(energy), sections = VALUES(sections), file_path = VALUES(file_path),
			album = VALUES(album), year = VALUES(year), label = VALUES(label),
			inferred = VALUES(inferred), updated_at = VALUES(updated_at)`

	now := time.Now()
	if track.CreatedAt.IsZero() {
		track.CreatedAt = now
	}
	track.UpdatedAt = now

	_, err = r.DB.Exec(query,
		track.ID, track.Artist, track.Title, nullString(track.Genre), track.Duration,
		track.BPM, track.Key, nullInt(track.Energy), sections, nullString(track.FilePath),
		nullString(track.Album), nullInt(track.Year), nullString(track.Label),
		track.Inferred, track.CreatedAt, track.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert track %s: %w", track.ID, err)
	}
	return nil
}

// BulkUpsertTracks upserts tracks one statement at a time. Atomicity is
// only guaranteed per track, which is all the importer requires.
func (r *mysqlTrackRepository) BulkUpsertTracks(tracks []*model.Track) error {
	for _, track := range tracks {
		if err := r.UpsertTrack(track); err != nil {
			return err
		}
	}
	return nil
}

// GetTrackByID retrieves a track by its identifier.
func (r *mysqlTrackRepository) GetTrackByID(id string) (*model.Track, error) {
	query := `SELECT ` + trackColumns + ` FROM tracks WHERE id = ?`
	track, err := scanTrack(r.DB.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, nil // Track not found
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan track by ID %s: %w", id, err)
	}
	return track, nil
}

// GetTracksByIDs retrieves the subset of ids present in the catalog.
func (r *mysqlTrackRepository) GetTracksByIDs(ids []string) ([]*model.Track, error) {
	if len(ids) == 0 {
		return []*model.Track{}, nil
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]
	query := `SELECT ` + trackColumns + ` FROM tracks WHERE id IN (` + placeholders + `)`

	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	return r.queryTracks(query, args...)
}

// ExistsByID reports whether a track with the given id is registered.
func (r *mysqlTrackRepository) ExistsByID(id string) (bool, error) {
	var n int
	err := r.DB.QueryRow(`SELECT COUNT(1) FROM tracks WHERE id = ?`, id).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check existence of track %s: %w", id, err)
	}
	return n > 0, nil
}

// FilterTracks runs a deterministic catalog query.
func (r *mysqlTrackRepository) FilterTracks(filter model.TrackFilter) ([]*model.Track, error) {
	var conditions []string
	var args []interface{}

	if filter.BPMMin > 0 {
		conditions = append(conditions, "bpm >= ?")
		args = append(args, filter.BPMMin)
	}
	if filter.BPMMax > 0 {
		conditions = append(conditions, "bpm <= ?")
		args = append(args, filter.BPMMax)
	}
	if len(filter.Keys) > 0 {
		placeholders := strings.Repeat("?,", len(filter.Keys))
		conditions = append(conditions, "`key` IN ("+placeholders[:len(placeholders)-1]+")")
		for _, k := range filter.Keys {
			args = append(args, k)
		}
	}
	if filter.Genre != "" {
		conditions = append(conditions, "LOWER(genre) = LOWER(?)")
		args = append(args, filter.Genre)
	}
	if filter.Artist != "" {
		conditions = append(conditions, "LOWER(artist) LIKE LOWER(?)")
		args = append(args, "%"+filter.Artist+"%")
	}
	if len(filter.IDs) > 0 {
		placeholders := strings.Repeat("?,", len(filter.IDs))
		conditions = append(conditions, "id IN ("+placeholders[:len(placeholders)-1]+")")
		for _, id := range filter.IDs {
			args = append(args, id)
		}
	}

	query := `SELECT ` + trackColumns + ` FROM tracks`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY bpm ASC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	return r.queryTracks(query, args...)
}

// AllTracks retrieves every track in the catalog.
func (r *mysqlTrackRepository) AllTracks() ([]*model.Track, error) {
	return r.queryTracks(`SELECT ` + trackColumns + ` FROM tracks ORDER BY id`)
}

// DeleteTrack removes a track by id.
func (r *mysqlTrackRepository) DeleteTrack(id string) error {
	if _, err := r.DB.Exec(`DELETE FROM tracks WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete track %s: %w", id, err)
	}
	return nil
}

// DeleteAllTracks empties the catalog. Used by interchange import into
// a clean catalog and by test setup.
func (r *mysqlTrackRepository) DeleteAllTracks() error {
	if _, err := r.DB.Exec(`DELETE FROM tracks`); err != nil {
		return fmt.Errorf("failed to delete all tracks: %w", err)
	}
	return nil
}

// CountTracks returns the number of registered tracks.
func (r *mysqlTrackRepository) CountTracks() (int64, error) {
	var n int64
	if err := r.DB.QueryRow(`SELECT COUNT(1) FROM tracks`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count tracks: %w", err)
	}
	return n, nil
}

func (r *mysqlTrackRepository) queryTracks(query string, args ...interface{}) ([]*model.Track, error) {
	rows, err := r.DB.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tracks: %w", err)
	}
	defer rows.Close()

	tracks := make([]*model.Track, 0)
	for rows.Next() {
		track, err := scanTrack(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan track row: %w", err)
		}
		tracks = append(tracks, track)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration: %w", err)
	}

	return tracks, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTrack(row rowScanner) (*model.Track, error) {
	track := &model.Track{}
	var genre, filePath, album, label, sections sql.NullString
	var energy, year sql.NullInt64

	err := row.Scan(&track.ID, &track.Artist, &track.Title, &genre, &track.Duration,
		&track.BPM, &track.Key, &energy, &sections, &filePath, &album, &year, &label,
		&track.Inferred, &track.CreatedAt, &track.UpdatedAt)
	if err != nil {
		return nil, err
	}

	track.Genre = genre.String
	track.FilePath = filePath.String
	track.Album = album.String
	track.Label = label.String
	track.Energy = int(energy.Int64)
	track.Year = int(year.Int64)

	if sections.Valid && sections.String != "" {
		if err := json.Unmarshal([]byte(sections.String), &track.Sections); err != nil {
			return nil, fmt.Errorf("failed to unmarshal sections for track %s: %w", track.ID, err)
		}
	}

	return track, nil
}

func marshalSections(sections []model.TrackSection) (interface{}, error) {
	if len(sections) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(sections)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal sections: %w", err)
	}
	return string(data), nil
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nullInt(n int) interface{} {
	if n == 0 {
		return nil
	}
	return n
}
