package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrTrackNotFound = errors.New("track not found")

type Track struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	ArtistID     *string  `json:"artistId,omitempty"`
	ArtistName   *string  `json:"artistName,omitempty"`
	AlbumID      *string  `json:"albumId,omitempty"`
	AlbumName    *string  `json:"albumName,omitempty"`
	DurationMS   int64    `json:"durationMs"`
	FilePath     string   `json:"filePath"`
	FileSize     int64    `json:"fileSize"`
	MTimeNS      int64    `json:"-"`
	Format       string   `json:"format"`
	Bitrate      *int     `json:"bitrate,omitempty"`
	SampleRate   *int     `json:"sampleRate,omitempty"`
	BitDepth     *int     `json:"bitDepth,omitempty"`
	Channels     *int     `json:"channels,omitempty"`
	TrackNumber  *int     `json:"trackNumber,omitempty"`
	DiscNumber   *int     `json:"discNumber,omitempty"`
	Year         *int     `json:"year,omitempty"`
	Genre        *string  `json:"genre,omitempty"`
	ArtworkPath  *string  `json:"artworkPath,omitempty"`
	PlayCount    int      `json:"playCount"`
	LastPlayed   *string  `json:"lastPlayed,omitempty"`
	DateAdded    string   `json:"dateAdded"`
	DateModified string   `json:"dateModified"`
	IsFavorite   bool     `json:"isFavorite"`
	IsHighRes    bool     `json:"isHighRes"`
	EQPreset     *string  `json:"eqPreset,omitempty"`
	ReplayGain   *float64 `json:"replayGain,omitempty"`
}

// PlayableTrack is the slice of a track a playback engine needs to
// open and render the file.
type PlayableTrack struct {
	ID         string   `json:"id"`
	FilePath   string   `json:"filePath"`
	Format     string   `json:"format"`
	SampleRate *int     `json:"sampleRate,omitempty"`
	BitDepth   *int     `json:"bitDepth,omitempty"`
	Channels   *int     `json:"channels,omitempty"`
	IsHighRes  bool     `json:"isHighRes"`
	ReplayGain *float64 `json:"replayGain,omitempty"`
}

// Fingerprint is the change-detection pair for one indexed path.
type Fingerprint struct {
	Size    int64
	MTimeNS int64
}

// KnownTrack carries what the indexer needs to diff previously-known
// paths against a finished traversal.
type KnownTrack struct {
	ID       string
	FilePath string
	ArtistID *string
	AlbumID  *string
}

type PageInfo struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
	Total  int `json:"total"`
}

type TracksPage struct {
	Items []Track  `json:"items"`
	Page  PageInfo `json:"page"`
}

type TrackFilter struct {
	Search      string
	Artist      string
	Album       string
	HighResOnly bool
	Limit       int
	Offset      int
}

const trackColumns = `
	id, title, artist_id, artist_name, album_id, album_name, duration_ms,
	file_path, file_size, mtime_ns, format, bitrate, sample_rate, bit_depth,
	channels, track_number, disc_number, year, genre, artwork_path,
	play_count, last_played, date_added, date_modified, is_favorite,
	is_high_res, eq_preset, replay_gain`

type TrackRepository struct {
	db *sql.DB
}

func NewTrackRepository(database *sql.DB) *TrackRepository {
	return &TrackRepository{db: database}
}

func (r *TrackRepository) GetByID(ctx context.Context, id string) (Track, error) {
	row := r.db.QueryRowContext(ctx, "SELECT"+trackColumns+" FROM tracks WHERE id = ?", id)
	track, err := scanTrackRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Track{}, ErrTrackNotFound
		}
		return Track{}, fmt.Errorf("get track %s: %w", id, err)
	}

	return track, nil
}

func (r *TrackRepository) GetByPath(ctx context.Context, path string) (Track, error) {
	row := r.db.QueryRowContext(ctx, "SELECT"+trackColumns+" FROM tracks WHERE file_path = ?", path)
	track, err := scanTrackRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Track{}, ErrTrackNotFound
		}
		return Track{}, fmt.Errorf("get track by path %s: %w", path, err)
	}

	return track, nil
}

func (r *TrackRepository) List(ctx context.Context, filter TrackFilter) (TracksPage, error) {
	limit, offset := normalizePagination(filter.Limit, filter.Offset)

	whereClauses := []string{"1 = 1"}
	args := make([]any, 0, 6)

	if pattern := makeSearchPattern(filter.Search); pattern != "" {
		whereClauses = append(whereClauses, "(LOWER(title) LIKE ? OR LOWER(COALESCE(artist_name, '')) LIKE ? OR LOWER(COALESCE(album_name, '')) LIKE ?)")
		args = append(args, pattern, pattern, pattern)
	}
	if artist := strings.TrimSpace(filter.Artist); artist != "" {
		whereClauses = append(whereClauses, "LOWER(COALESCE(artist_name, '')) = LOWER(?)")
		args = append(args, artist)
	}
	if album := strings.TrimSpace(filter.Album); album != "" {
		whereClauses = append(whereClauses, "LOWER(COALESCE(album_name, '')) = LOWER(?)")
		args = append(args, album)
	}
	if filter.HighResOnly {
		whereClauses = append(whereClauses, "is_high_res = 1")
	}

	whereSQL := strings.Join(whereClauses, " AND ")

	var total int
	countQuery := fmt.Sprintf("SELECT COUNT(1) FROM tracks WHERE %s", whereSQL)
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return TracksPage{}, fmt.Errorf("count tracks: %w", err)
	}

	listQuery := fmt.Sprintf(`
		SELECT%s
		FROM tracks
		WHERE %s
		ORDER BY
			LOWER(COALESCE(artist_name, '')),
			LOWER(COALESCE(album_name, '')),
			COALESCE(disc_number, 0),
			COALESCE(track_number, 0),
			LOWER(title)
		LIMIT ?
		OFFSET ?
	`, trackColumns, whereSQL)

	listArgs := append(cloneArgs(args), limit, offset)

	rows, err := r.db.QueryContext(ctx, listQuery, listArgs...)
	if err != nil {
		return TracksPage{}, fmt.Errorf("list tracks: %w", err)
	}
	defer rows.Close()

	tracks := make([]Track, 0)
	for rows.Next() {
		track, scanErr := scanTrackRow(rows)
		if scanErr != nil {
			return TracksPage{}, fmt.Errorf("scan track row: %w", scanErr)
		}
		tracks = append(tracks, track)
	}

	if err := rows.Err(); err != nil {
		return TracksPage{}, fmt.Errorf("iterate track rows: %w", err)
	}

	return TracksPage{
		Items: tracks,
		Page: PageInfo{
			Limit:  limit,
			Offset: offset,
			Total:  total,
		},
	}, nil
}

func (r *TrackRepository) PlayableByID(ctx context.Context, id string) (PlayableTrack, error) {
	return r.playable(ctx, "id = ?", id)
}

func (r *TrackRepository) PlayableByPath(ctx context.Context, path string) (PlayableTrack, error) {
	return r.playable(ctx, "file_path = ?", path)
}

func (r *TrackRepository) playable(ctx context.Context, where string, arg any) (PlayableTrack, error) {
	var playable PlayableTrack
	var sampleRate, bitDepth, channels sql.NullInt64
	var replayGain sql.NullFloat64
	var highResInt int

	err := r.db.QueryRowContext(ctx, `
		SELECT id, file_path, format, sample_rate, bit_depth, channels, is_high_res, replay_gain
		FROM tracks
		WHERE `+where,
		arg,
	).Scan(&playable.ID, &playable.FilePath, &playable.Format, &sampleRate, &bitDepth, &channels, &highResInt, &replayGain)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return PlayableTrack{}, ErrTrackNotFound
		}
		return PlayableTrack{}, fmt.Errorf("get playable track: %w", err)
	}

	playable.SampleRate = intPointer(sampleRate)
	playable.BitDepth = intPointer(bitDepth)
	playable.Channels = intPointer(channels)
	playable.IsHighRes = highResInt == 1
	playable.ReplayGain = floatPointer(replayGain)

	return playable, nil
}

func (r *TrackRepository) SetFavorite(ctx context.Context, id string, favorite bool) error {
	favoriteInt := 0
	if favorite {
		favoriteInt = 1
	}

	return r.updateOne(ctx, id, "UPDATE tracks SET is_favorite = ? WHERE id = ?", favoriteInt)
}

func (r *TrackRepository) SetEQPreset(ctx context.Context, id string, preset string) error {
	var presetArg any
	if trimmed := strings.TrimSpace(preset); trimmed != "" {
		presetArg = trimmed
	}

	return r.updateOne(ctx, id, "UPDATE tracks SET eq_preset = ? WHERE id = ?", presetArg)
}

func (r *TrackRepository) RecordPlay(ctx context.Context, id string, playedAt time.Time) error {
	return r.updateOne(
		ctx,
		id,
		"UPDATE tracks SET play_count = play_count + 1, last_played = ? WHERE id = ?",
		playedAt.UTC().Format(time.RFC3339),
	)
}

func (r *TrackRepository) updateOne(ctx context.Context, id string, query string, arg any) error {
	result, err := r.db.ExecContext(ctx, query, arg, id)
	if err != nil {
		return fmt.Errorf("update track %s: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("read updated track count: %w", err)
	}
	if rowsAffected == 0 {
		return ErrTrackNotFound
	}

	return nil
}

// Fingerprints loads the (size, mtime) pair of every indexed path, used
// by quick scans to skip unchanged files.
func (r *TrackRepository) Fingerprints(ctx context.Context) (map[string]Fingerprint, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT file_path, file_size, mtime_ns FROM tracks")
	if err != nil {
		return nil, fmt.Errorf("load track fingerprints: %w", err)
	}
	defer rows.Close()

	fingerprints := make(map[string]Fingerprint)
	for rows.Next() {
		var path string
		var fingerprint Fingerprint
		if err := rows.Scan(&path, &fingerprint.Size, &fingerprint.MTimeNS); err != nil {
			return nil, fmt.Errorf("scan fingerprint row: %w", err)
		}
		fingerprints[path] = fingerprint
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate fingerprint rows: %w", err)
	}

	return fingerprints, nil
}

// KnownPaths lists every indexed track's path and aggregate owners.
func (r *TrackRepository) KnownPaths(ctx context.Context) ([]KnownTrack, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT id, file_path, artist_id, album_id FROM tracks")
	if err != nil {
		return nil, fmt.Errorf("load known track paths: %w", err)
	}
	defer rows.Close()

	known := make([]KnownTrack, 0)
	for rows.Next() {
		var track KnownTrack
		var artistID, albumID sql.NullString
		if err := rows.Scan(&track.ID, &track.FilePath, &artistID, &albumID); err != nil {
			return nil, fmt.Errorf("scan known path row: %w", err)
		}
		track.ArtistID = stringPointer(artistID)
		track.AlbumID = stringPointer(albumID)
		known = append(known, track)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate known path rows: %w", err)
	}

	return known, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTrackRow(row rowScanner) (Track, error) {
	var track Track
	var artistID, artistName, albumID, albumName sql.NullString
	var bitrate, sampleRate, bitDepth, channels, trackNumber, discNumber, year sql.NullInt64
	var genre, artworkPath, lastPlayed, eqPreset sql.NullString
	var replayGain sql.NullFloat64
	var favoriteInt, highResInt int

	err := row.Scan(
		&track.ID,
		&track.Title,
		&artistID,
		&artistName,
		&albumID,
		&albumName,
		&track.DurationMS,
		&track.FilePath,
		&track.FileSize,
		&track.MTimeNS,
		&track.Format,
		&bitrate,
		&sampleRate,
		&bitDepth,
		&channels,
		&trackNumber,
		&discNumber,
		&year,
		&genre,
		&artworkPath,
		&track.PlayCount,
		&lastPlayed,
		&track.DateAdded,
		&track.DateModified,
		&favoriteInt,
		&highResInt,
		&eqPreset,
		&replayGain,
	)
	if err != nil {
		return Track{}, err
	}

	track.ArtistID = stringPointer(artistID)
	track.ArtistName = stringPointer(artistName)
	track.AlbumID = stringPointer(albumID)
	track.AlbumName = stringPointer(albumName)
	track.Bitrate = intPointer(bitrate)
	track.SampleRate = intPointer(sampleRate)
	track.BitDepth = intPointer(bitDepth)
	track.Channels = intPointer(channels)
	track.TrackNumber = intPointer(trackNumber)
	track.DiscNumber = intPointer(discNumber)
	track.Year = intPointer(year)
	track.Genre = stringPointer(genre)
	track.ArtworkPath = stringPointer(artworkPath)
	track.LastPlayed = stringPointer(lastPlayed)
	track.IsFavorite = favoriteInt == 1
	track.IsHighRes = highResInt == 1
	track.EQPreset = stringPointer(eqPreset)
	track.ReplayGain = floatPointer(replayGain)

	return track, nil
}
