package config

import (
	"fmt"
	"os"
	"path/filepath"
)

type Paths struct {
	BaseDir         string
	DBPath          string
	ArtworkCacheDir string
}

// ResolvePaths resolves the data directory layout, creating the base
// and artwork cache directories. An empty dataDir falls back to the
// user config dir.
func ResolvePaths(dataDir string) (Paths, error) {
	baseDir := dataDir
	if baseDir == "" {
		configDir, err := os.UserConfigDir()
		if err != nil {
			return Paths{}, fmt.Errorf("resolve user config dir: %w", err)
		}
		baseDir = filepath.Join(configDir, appSlug)
	}

	artworkCacheDir := filepath.Join(baseDir, "covers")
	dbPath := filepath.Join(baseDir, "library.db")

	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return Paths{}, fmt.Errorf("create data dir: %w", err)
	}

	if err := os.MkdirAll(artworkCacheDir, 0o755); err != nil {
		return Paths{}, fmt.Errorf("create artwork cache dir: %w", err)
	}

	return Paths{
		BaseDir:         baseDir,
		DBPath:          dbPath,
		ArtworkCacheDir: artworkCacheDir,
	}, nil
}
