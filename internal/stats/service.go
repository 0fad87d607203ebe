package stats

import (
	"context"
	"database/sql"
	"fmt"
)

const defaultTopLimit = 5

const maxTopLimit = 25

// Overview summarizes the indexed library: collection totals, a
// per-format breakdown, the artists with the most tracks and the most
// recently added tracks.
type Overview struct {
	TotalTracks     int           `json:"totalTracks"`
	TotalAlbums     int           `json:"totalAlbums"`
	TotalArtists    int           `json:"totalArtists"`
	TotalDurationMS int64         `json:"totalDurationMs"`
	TotalFileBytes  int64         `json:"totalFileBytes"`
	HighResTracks   int           `json:"highResTracks"`
	DSDTracks       int           `json:"dsdTracks"`
	FavoriteTracks  int           `json:"favoriteTracks"`
	Formats         []FormatStat  `json:"formats"`
	TopArtists      []ArtistStat  `json:"topArtists"`
	RecentlyAdded   []RecentTrack `json:"recentlyAdded"`
}

type FormatStat struct {
	Format          string `json:"format"`
	TrackCount      int    `json:"trackCount"`
	TotalDurationMS int64  `json:"totalDurationMs"`
}

type ArtistStat struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	TrackCount      int    `json:"trackCount"`
	AlbumCount      int    `json:"albumCount"`
	TotalDurationMS int64  `json:"totalDurationMs"`
}

type RecentTrack struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	ArtistName *string `json:"artistName,omitempty"`
	AlbumName  *string `json:"albumName,omitempty"`
	Format     string  `json:"format"`
	IsHighRes  bool    `json:"isHighRes"`
	DateAdded  string  `json:"dateAdded"`
}

// Service reads library statistics straight from the index tables.
type Service struct {
	db *sql.DB
}

func NewService(database *sql.DB) *Service {
	return &Service{db: database}
}

// GetOverview builds the library overview. limit bounds the top-artist
// and recently-added lists and falls back to a sane default when it is
// zero or negative.
func (s *Service) GetOverview(ctx context.Context, limit int) (Overview, error) {
	normalizedLimit := normalizeTopLimit(limit)

	overview := Overview{}
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(1) FROM tracks),
			(SELECT COUNT(1) FROM albums),
			(SELECT COUNT(1) FROM artists),
			(SELECT COALESCE(SUM(duration_ms), 0) FROM tracks),
			(SELECT COALESCE(SUM(file_size), 0) FROM tracks),
			(SELECT COUNT(1) FROM tracks WHERE is_high_res = 1),
			(SELECT COUNT(1) FROM tracks WHERE format = 'DSD'),
			(SELECT COUNT(1) FROM tracks WHERE is_favorite = 1)
	`).Scan(
		&overview.TotalTracks,
		&overview.TotalAlbums,
		&overview.TotalArtists,
		&overview.TotalDurationMS,
		&overview.TotalFileBytes,
		&overview.HighResTracks,
		&overview.DSDTracks,
		&overview.FavoriteTracks,
	)
	if err != nil {
		return Overview{}, fmt.Errorf("read library totals: %w", err)
	}

	overview.Formats, err = s.readFormats(ctx)
	if err != nil {
		return Overview{}, err
	}
	overview.TopArtists, err = s.readTopArtists(ctx, normalizedLimit)
	if err != nil {
		return Overview{}, err
	}
	overview.RecentlyAdded, err = s.readRecentlyAdded(ctx, normalizedLimit)
	if err != nil {
		return Overview{}, err
	}
	return overview, nil
}

func (s *Service) readFormats(ctx context.Context) ([]FormatStat, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT
			COALESCE(NULLIF(TRIM(format), ''), 'Unknown') AS format,
			COUNT(1) AS track_count,
			COALESCE(SUM(duration_ms), 0) AS total_duration_ms
		FROM tracks
		GROUP BY COALESCE(NULLIF(TRIM(format), ''), 'Unknown')
		ORDER BY track_count DESC, format ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("read format breakdown: %w", err)
	}
	defer rows.Close()

	formats := []FormatStat{}
	for rows.Next() {
		var stat FormatStat
		if err := rows.Scan(&stat.Format, &stat.TrackCount, &stat.TotalDurationMS); err != nil {
			return nil, fmt.Errorf("scan format breakdown row: %w", err)
		}
		formats = append(formats, stat)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate format breakdown rows: %w", err)
	}
	return formats, nil
}

func (s *Service) readTopArtists(ctx context.Context, limit int) ([]ArtistStat, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, track_count, album_count, total_duration_ms
		FROM artists
		ORDER BY track_count DESC, LOWER(name) ASC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("read top artists: %w", err)
	}
	defer rows.Close()

	artists := []ArtistStat{}
	for rows.Next() {
		var stat ArtistStat
		if err := rows.Scan(&stat.ID, &stat.Name, &stat.TrackCount, &stat.AlbumCount, &stat.TotalDurationMS); err != nil {
			return nil, fmt.Errorf("scan top artist row: %w", err)
		}
		artists = append(artists, stat)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate top artist rows: %w", err)
	}
	return artists, nil
}

func (s *Service) readRecentlyAdded(ctx context.Context, limit int) ([]RecentTrack, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, artist_name, album_name, format, is_high_res, date_added
		FROM tracks
		ORDER BY date_added DESC, id ASC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("read recently added tracks: %w", err)
	}
	defer rows.Close()

	recent := []RecentTrack{}
	for rows.Next() {
		var (
			track   RecentTrack
			artist  sql.NullString
			album   sql.NullString
			highRes int
		)
		if err := rows.Scan(&track.ID, &track.Title, &artist, &album, &track.Format, &highRes, &track.DateAdded); err != nil {
			return nil, fmt.Errorf("scan recently added row: %w", err)
		}
		track.ArtistName = nullableStringPointer(artist)
		track.AlbumName = nullableStringPointer(album)
		track.IsHighRes = highRes != 0
		recent = append(recent, track)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recently added rows: %w", err)
	}
	return recent, nil
}

func normalizeTopLimit(limit int) int {
	if limit <= 0 {
		return defaultTopLimit
	}
	if limit > maxTopLimit {
		return maxTopLimit
	}
	return limit
}

func nullableStringPointer(value sql.NullString) *string {
	if !value.Valid {
		return nil
	}
	text := value.String
	return &text
}
