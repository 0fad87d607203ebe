package server

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gorilla/mux"

	"github.com/subc0der/resonate/internal/artwork"
)

// handleGetCover serves a file from the artwork cache by name. The
// variant query parameter maps a cached original to one of its
// thumbnails, falling back to the original when the thumbnail is
// missing.
func (s *Server) handleGetCover(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	resolved, err := s.resolveCoverPath(name)
	if err != nil {
		writeError(w, http.StatusNotFound, "cover not found")
		return
	}

	variant := artwork.NormalizeVariant(r.URL.Query().Get("variant"))
	if variant != artwork.VariantOriginal {
		if variantPath, ok := artwork.VariantPathFromCachePath(resolved, variant); ok {
			if info, statErr := os.Stat(variantPath); statErr == nil && !info.IsDir() {
				resolved = variantPath
			}
		}
	}

	info, err := os.Stat(resolved)
	if err != nil || info.IsDir() {
		writeError(w, http.StatusNotFound, "cover not found")
		return
	}

	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	http.ServeFile(w, r, resolved)
}

// resolveCoverPath confines a requested cache entry to the artwork
// cache directory.
func (s *Server) resolveCoverPath(name string) (string, error) {
	cacheDir := strings.TrimSpace(s.coverDir)
	if cacheDir == "" {
		return "", errors.New("artwork cache dir is not configured")
	}

	cacheDirAbs, err := filepath.Abs(filepath.Clean(cacheDir))
	if err != nil {
		return "", err
	}

	resolved, err := filepath.Abs(filepath.Join(cacheDirAbs, filepath.Clean(name)))
	if err != nil {
		return "", err
	}

	relative, err := filepath.Rel(cacheDirAbs, resolved)
	if err != nil {
		return "", err
	}
	if relative == ".." || strings.HasPrefix(relative, ".."+string(os.PathSeparator)) || filepath.IsAbs(relative) {
		return "", errors.New("requested path is outside the artwork cache dir")
	}

	return resolved, nil
}
