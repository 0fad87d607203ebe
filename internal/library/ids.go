package library

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"strings"
)

// TrackID derives the stable track identity from the cleaned file path.
func TrackID(path string) string {
	return hashKey(filepath.Clean(path))
}

// ArtistID derives the artist identity from the normalized name, so
// case and whitespace variants of one name resolve to one row.
func ArtistID(name string) string {
	return hashKey(normalizeKey(name))
}

// AlbumID derives the album identity from the normalized (title,
// artist) pair.
func AlbumID(title, artistName string) string {
	return hashKey(normalizeKey(title) + "\x00" + normalizeKey(artistName))
}

func normalizeKey(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

func hashKey(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}
