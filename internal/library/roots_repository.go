package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var ErrRootNotFound = errors.New("library root not found")

type Root struct {
	ID        int64  `json:"id"`
	Path      string `json:"path"`
	Enabled   bool   `json:"enabled"`
	CreatedAt string `json:"createdAt"`
}

type RootRepository struct {
	db *sql.DB
}

func NewRootRepository(database *sql.DB) *RootRepository {
	return &RootRepository{db: database}
}

func (r *RootRepository) List(ctx context.Context) ([]Root, error) {
	return r.list(ctx, "SELECT id, path, enabled, created_at FROM library_roots ORDER BY path COLLATE NOCASE")
}

// ListEnabled returns only the roots a scan should traverse.
func (r *RootRepository) ListEnabled(ctx context.Context) ([]Root, error) {
	return r.list(ctx, "SELECT id, path, enabled, created_at FROM library_roots WHERE enabled = 1 ORDER BY path COLLATE NOCASE")
}

func (r *RootRepository) list(ctx context.Context, query string) ([]Root, error) {
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list library roots: %w", err)
	}
	defer rows.Close()

	roots := make([]Root, 0)
	for rows.Next() {
		var root Root
		var enabledInt int
		if err := rows.Scan(&root.ID, &root.Path, &enabledInt, &root.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan library root row: %w", err)
		}
		root.Enabled = enabledInt == 1
		roots = append(roots, root)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate library root rows: %w", err)
	}

	return roots, nil
}

func (r *RootRepository) Add(ctx context.Context, path string) (Root, error) {
	if strings.TrimSpace(path) == "" {
		return Root{}, errors.New("path is required")
	}

	absolute, err := filepath.Abs(path)
	if err != nil {
		return Root{}, fmt.Errorf("resolve root path %s: %w", path, err)
	}
	absolute = filepath.Clean(absolute)

	info, err := os.Stat(absolute)
	if err != nil {
		return Root{}, fmt.Errorf("stat root path %s: %w", absolute, err)
	}
	if !info.IsDir() {
		return Root{}, fmt.Errorf("root path %s is not a directory", absolute)
	}

	result, err := r.db.ExecContext(
		ctx,
		"INSERT INTO library_roots(path, enabled) VALUES (?, 1)",
		absolute,
	)
	if err != nil {
		return Root{}, fmt.Errorf("insert library root: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return Root{}, fmt.Errorf("read library root id: %w", err)
	}

	return r.GetByID(ctx, id)
}

func (r *RootRepository) GetByID(ctx context.Context, id int64) (Root, error) {
	var root Root
	var enabledInt int
	err := r.db.QueryRowContext(
		ctx,
		"SELECT id, path, enabled, created_at FROM library_roots WHERE id = ?",
		id,
	).Scan(&root.ID, &root.Path, &enabledInt, &root.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Root{}, ErrRootNotFound
		}
		return Root{}, fmt.Errorf("get library root %d: %w", id, err)
	}

	root.Enabled = enabledInt == 1
	return root, nil
}

func (r *RootRepository) SetEnabled(ctx context.Context, id int64, enabled bool) error {
	enabledInt := 0
	if enabled {
		enabledInt = 1
	}

	result, err := r.db.ExecContext(
		ctx,
		"UPDATE library_roots SET enabled = ? WHERE id = ?",
		enabledInt,
		id,
	)
	if err != nil {
		return fmt.Errorf("update library root %d: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("read updated library root count: %w", err)
	}
	if rowsAffected == 0 {
		return ErrRootNotFound
	}

	return nil
}

func (r *RootRepository) Remove(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM library_roots WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete library root %d: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("read deleted library root count: %w", err)
	}
	if rowsAffected == 0 {
		return ErrRootNotFound
	}

	return nil
}
