package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

var ErrAlbumNotFound = errors.New("album not found")

type Album struct {
	ID                string  `json:"id"`
	Title             string  `json:"title"`
	ArtistName        *string `json:"artistName,omitempty"`
	Year              *int    `json:"year,omitempty"`
	Genre             *string `json:"genre,omitempty"`
	TotalTracks       int     `json:"totalTracks"`
	TotalDurationMS   int64   `json:"totalDurationMs"`
	AverageBitrate    *int    `json:"averageBitrate,omitempty"`
	AverageSampleRate *int    `json:"averageSampleRate,omitempty"`
	IsHighRes         bool    `json:"isHighRes"`
	PlayCount         int     `json:"playCount"`
	LastPlayed        *string `json:"lastPlayed,omitempty"`
	IsFavorite        bool    `json:"isFavorite"`
}

type AlbumsPage struct {
	Items []Album  `json:"items"`
	Page  PageInfo `json:"page"`
}

type AlbumFilter struct {
	Search        string
	Artist        string
	HighResOnly   bool
	FavoritesOnly bool
	Limit         int
	Offset        int
}

const albumColumns = `
	id, title, artist_name, year, genre, total_tracks, total_duration_ms,
	average_bitrate, average_sample_rate, is_high_res, play_count,
	last_played, is_favorite`

type AlbumRepository struct {
	db *sql.DB
}

func NewAlbumRepository(database *sql.DB) *AlbumRepository {
	return &AlbumRepository{db: database}
}

func (r *AlbumRepository) GetByID(ctx context.Context, id string) (Album, error) {
	row := r.db.QueryRowContext(ctx, "SELECT"+albumColumns+" FROM albums WHERE id = ?", id)
	album, err := scanAlbumRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Album{}, ErrAlbumNotFound
		}
		return Album{}, fmt.Errorf("get album %s: %w", id, err)
	}

	return album, nil
}

func (r *AlbumRepository) List(ctx context.Context, filter AlbumFilter) (AlbumsPage, error) {
	limit, offset := normalizePagination(filter.Limit, filter.Offset)

	whereClauses := []string{"1 = 1"}
	args := make([]any, 0, 3)

	if pattern := makeSearchPattern(filter.Search); pattern != "" {
		whereClauses = append(whereClauses, "(LOWER(title) LIKE ? OR LOWER(COALESCE(artist_name, '')) LIKE ?)")
		args = append(args, pattern, pattern)
	}
	if artist := strings.TrimSpace(filter.Artist); artist != "" {
		whereClauses = append(whereClauses, "LOWER(COALESCE(artist_name, '')) = LOWER(?)")
		args = append(args, artist)
	}
	if filter.HighResOnly {
		whereClauses = append(whereClauses, "is_high_res = 1")
	}
	if filter.FavoritesOnly {
		whereClauses = append(whereClauses, "is_favorite = 1")
	}

	whereSQL := strings.Join(whereClauses, " AND ")

	var total int
	countQuery := fmt.Sprintf("SELECT COUNT(1) FROM albums WHERE %s", whereSQL)
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return AlbumsPage{}, fmt.Errorf("count albums: %w", err)
	}

	listQuery := fmt.Sprintf(`
		SELECT%s
		FROM albums
		WHERE %s
		ORDER BY LOWER(COALESCE(artist_name, '')), COALESCE(year, 0), LOWER(title)
		LIMIT ?
		OFFSET ?
	`, albumColumns, whereSQL)

	listArgs := append(cloneArgs(args), limit, offset)

	rows, err := r.db.QueryContext(ctx, listQuery, listArgs...)
	if err != nil {
		return AlbumsPage{}, fmt.Errorf("list albums: %w", err)
	}
	defer rows.Close()

	albums := make([]Album, 0)
	for rows.Next() {
		album, scanErr := scanAlbumRow(rows)
		if scanErr != nil {
			return AlbumsPage{}, fmt.Errorf("scan album row: %w", scanErr)
		}
		albums = append(albums, album)
	}

	if err := rows.Err(); err != nil {
		return AlbumsPage{}, fmt.Errorf("iterate album rows: %w", err)
	}

	return AlbumsPage{
		Items: albums,
		Page: PageInfo{
			Limit:  limit,
			Offset: offset,
			Total:  total,
		},
	}, nil
}

func (r *AlbumRepository) SetFavorite(ctx context.Context, id string, favorite bool) error {
	favoriteInt := 0
	if favorite {
		favoriteInt = 1
	}

	result, err := r.db.ExecContext(ctx, "UPDATE albums SET is_favorite = ? WHERE id = ?", favoriteInt, id)
	if err != nil {
		return fmt.Errorf("update album %s: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("read updated album count: %w", err)
	}
	if rowsAffected == 0 {
		return ErrAlbumNotFound
	}

	return nil
}

func scanAlbumRow(row rowScanner) (Album, error) {
	var album Album
	var artistName, genre, lastPlayed sql.NullString
	var year, averageBitrate, averageSampleRate sql.NullInt64
	var favoriteInt, highResInt int

	err := row.Scan(
		&album.ID,
		&album.Title,
		&artistName,
		&year,
		&genre,
		&album.TotalTracks,
		&album.TotalDurationMS,
		&averageBitrate,
		&averageSampleRate,
		&highResInt,
		&album.PlayCount,
		&lastPlayed,
		&favoriteInt,
	)
	if err != nil {
		return Album{}, err
	}

	album.ArtistName = stringPointer(artistName)
	album.Year = intPointer(year)
	album.Genre = stringPointer(genre)
	album.AverageBitrate = intPointer(averageBitrate)
	album.AverageSampleRate = intPointer(averageSampleRate)
	album.IsHighRes = highResInt == 1
	album.LastPlayed = stringPointer(lastPlayed)
	album.IsFavorite = favoriteInt == 1

	return album, nil
}
