package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

var ErrArtistNotFound = errors.New("artist not found")

type Artist struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	TrackCount      int     `json:"trackCount"`
	AlbumCount      int     `json:"albumCount"`
	TotalDurationMS int64   `json:"totalDurationMs"`
	PlayCount       int     `json:"playCount"`
	LastPlayed      *string `json:"lastPlayed,omitempty"`
	IsFavorite      bool    `json:"isFavorite"`
}

type ArtistsPage struct {
	Items []Artist `json:"items"`
	Page  PageInfo `json:"page"`
}

type ArtistFilter struct {
	Search        string
	FavoritesOnly bool
	Limit         int
	Offset        int
}

const artistColumns = `
	id, name, track_count, album_count, total_duration_ms,
	play_count, last_played, is_favorite`

type ArtistRepository struct {
	db *sql.DB
}

func NewArtistRepository(database *sql.DB) *ArtistRepository {
	return &ArtistRepository{db: database}
}

func (r *ArtistRepository) GetByID(ctx context.Context, id string) (Artist, error) {
	row := r.db.QueryRowContext(ctx, "SELECT"+artistColumns+" FROM artists WHERE id = ?", id)
	artist, err := scanArtistRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Artist{}, ErrArtistNotFound
		}
		return Artist{}, fmt.Errorf("get artist %s: %w", id, err)
	}

	return artist, nil
}

func (r *ArtistRepository) List(ctx context.Context, filter ArtistFilter) (ArtistsPage, error) {
	limit, offset := normalizePagination(filter.Limit, filter.Offset)

	whereClauses := []string{"1 = 1"}
	args := make([]any, 0, 2)

	if pattern := makeSearchPattern(filter.Search); pattern != "" {
		whereClauses = append(whereClauses, "LOWER(name) LIKE ?")
		args = append(args, pattern)
	}
	if filter.FavoritesOnly {
		whereClauses = append(whereClauses, "is_favorite = 1")
	}

	whereSQL := strings.Join(whereClauses, " AND ")

	var total int
	countQuery := fmt.Sprintf("SELECT COUNT(1) FROM artists WHERE %s", whereSQL)
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return ArtistsPage{}, fmt.Errorf("count artists: %w", err)
	}

	listQuery := fmt.Sprintf(`
		SELECT%s
		FROM artists
		WHERE %s
		ORDER BY LOWER(name)
		LIMIT ?
		OFFSET ?
	`, artistColumns, whereSQL)

	listArgs := append(cloneArgs(args), limit, offset)

	rows, err := r.db.QueryContext(ctx, listQuery, listArgs...)
	if err != nil {
		return ArtistsPage{}, fmt.Errorf("list artists: %w", err)
	}
	defer rows.Close()

	artists := make([]Artist, 0)
	for rows.Next() {
		artist, scanErr := scanArtistRow(rows)
		if scanErr != nil {
			return ArtistsPage{}, fmt.Errorf("scan artist row: %w", scanErr)
		}
		artists = append(artists, artist)
	}

	if err := rows.Err(); err != nil {
		return ArtistsPage{}, fmt.Errorf("iterate artist rows: %w", err)
	}

	return ArtistsPage{
		Items: artists,
		Page: PageInfo{
			Limit:  limit,
			Offset: offset,
			Total:  total,
		},
	}, nil
}

func (r *ArtistRepository) SetFavorite(ctx context.Context, id string, favorite bool) error {
	favoriteInt := 0
	if favorite {
		favoriteInt = 1
	}

	result, err := r.db.ExecContext(ctx, "UPDATE artists SET is_favorite = ? WHERE id = ?", favoriteInt, id)
	if err != nil {
		return fmt.Errorf("update artist %s: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("read updated artist count: %w", err)
	}
	if rowsAffected == 0 {
		return ErrArtistNotFound
	}

	return nil
}

func scanArtistRow(row rowScanner) (Artist, error) {
	var artist Artist
	var lastPlayed sql.NullString
	var favoriteInt int

	err := row.Scan(
		&artist.ID,
		&artist.Name,
		&artist.TrackCount,
		&artist.AlbumCount,
		&artist.TotalDurationMS,
		&artist.PlayCount,
		&lastPlayed,
		&favoriteInt,
	)
	if err != nil {
		return Artist{}, err
	}

	artist.LastPlayed = stringPointer(lastPlayed)
	artist.IsFavorite = favoriteInt == 1

	return artist, nil
}
