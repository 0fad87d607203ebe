package artwork

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/gen2brain/avif"
	"go.senan.xyz/taglib"
	_ "golang.org/x/image/webp"
)

var sidecarBaseNames = []string{"cover", "folder", "front", "album", "albumart"}

var sidecarExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
	".gif":  true,
	".avif": true,
}

// Extractor locates cover art for audio files and maintains the
// content-addressed artwork cache.
type Extractor struct {
	cacheDir string
	log      *slog.Logger

	// mu serializes cache writes so concurrent workers sharing one
	// album cover do not interleave partial files.
	mu sync.Mutex
}

func NewExtractor(cacheDir string, logger *slog.Logger) *Extractor {
	return &Extractor{cacheDir: cacheDir, log: logger}
}

// ExtractForFile finds cover art for one audio file, preferring art
// embedded in the tags over sidecar images next to the file. The art is
// stored in the cache under its content hash, alongside thumbnail
// variants. Returns the cached original's path, or "" when the file has
// no artwork.
func (e *Extractor) ExtractForFile(audioPath string) (string, error) {
	data, err := taglib.ReadImage(audioPath)
	if err != nil || len(data) == 0 {
		data = e.findSidecar(filepath.Dir(audioPath))
	}
	if len(data) == 0 {
		return "", nil
	}

	return e.store(data)
}

func (e *Extractor) findSidecar(dir string) []byte {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}

	candidates := make(map[string]string, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if sidecarExtensions[strings.ToLower(filepath.Ext(name))] {
			base := strings.ToLower(strings.TrimSuffix(name, filepath.Ext(name)))
			if _, exists := candidates[base]; !exists {
				candidates[base] = name
			}
		}
	}

	for _, base := range sidecarBaseNames {
		name, ok := candidates[base]
		if !ok {
			continue
		}

		data, readErr := os.ReadFile(filepath.Join(dir, name))
		if readErr != nil {
			e.log.Debug("sidecar artwork read failed", "path", filepath.Join(dir, name), "error", readErr)
			continue
		}
		if len(data) > 0 {
			return data
		}
	}

	return nil
}

func (e *Extractor) store(data []byte) (string, error) {
	sum := sha256.Sum256(data)
	hash := hex.EncodeToString(sum[:])
	originalPath := filepath.Join(e.cacheDir, hash+extensionForImage(data))

	if _, err := os.Stat(originalPath); err == nil {
		return originalPath, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, err := os.Stat(originalPath); err == nil {
		return originalPath, nil
	}

	if err := os.WriteFile(originalPath, data, 0o644); err != nil {
		return "", fmt.Errorf("write artwork original %s: %w", originalPath, err)
	}

	decoded, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		e.log.Warn("artwork image decode failed, keeping original only", "path", originalPath, "error", err)
		return originalPath, nil
	}

	for _, spec := range DefaultThumbnailSpecs() {
		if thumbErr := e.writeThumbnail(decoded, hash, spec); thumbErr != nil {
			e.log.Warn("artwork thumbnail generation failed", "variant", spec.Variant, "error", thumbErr)
		}
	}

	return originalPath, nil
}

func (e *Extractor) writeThumbnail(decoded image.Image, hash string, spec ThumbnailSpec) error {
	thumbnail := imaging.Fit(decoded, spec.Size, spec.Size, imaging.Lanczos)

	out, err := os.Create(filepath.Join(e.cacheDir, VariantFilename(hash, spec.Variant)))
	if err != nil {
		return fmt.Errorf("create thumbnail file: %w", err)
	}
	defer out.Close()

	if err := avif.Encode(out, thumbnail, avif.Options{Quality: 60, Speed: 10}); err != nil {
		return fmt.Errorf("encode thumbnail: %w", err)
	}

	return nil
}

func extensionForImage(data []byte) string {
	if len(data) >= 12 && string(data[4:8]) == "ftyp" {
		brand := string(data[8:12])
		if brand == "avif" || brand == "avis" {
			return ".avif"
		}
	}

	switch http.DetectContentType(data) {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	default:
		return ".jpg"
	}
}
