package library

import "testing"

func TestTrackIDStableAcrossEquivalentPaths(t *testing.T) {
	t.Parallel()

	first := TrackID("/music/artist/album/song.flac")
	second := TrackID("/music/artist/album/../album/song.flac")

	if first != second {
		t.Fatalf("expected equivalent paths to share an id: %q vs %q", first, second)
	}
	if len(first) != 64 {
		t.Fatalf("expected 64-char hex id, got %d chars", len(first))
	}
}

func TestTrackIDDistinguishesPaths(t *testing.T) {
	t.Parallel()

	if TrackID("/music/a.flac") == TrackID("/music/b.flac") {
		t.Fatal("expected different paths to produce different ids")
	}
}

func TestArtistIDIgnoresCaseAndSurroundingSpace(t *testing.T) {
	t.Parallel()

	first := ArtistID("Aurora Drive")
	second := ArtistID("  aurora drive ")

	if first != second {
		t.Fatalf("expected case-folded ids to match: %q vs %q", first, second)
	}
}

func TestAlbumIDSeparatesArtists(t *testing.T) {
	t.Parallel()

	first := AlbumID("Greatest Hits", "Artist One")
	second := AlbumID("Greatest Hits", "Artist Two")

	if first == second {
		t.Fatal("expected same title under different artists to produce different ids")
	}
}

func TestAlbumIDTitleAndArtistDoNotCollide(t *testing.T) {
	t.Parallel()

	// "ab" + "c" must not hash the same as "a" + "bc".
	if AlbumID("ab", "c") == AlbumID("a", "bc") {
		t.Fatal("expected separator to keep title and artist segments distinct")
	}
}

func TestNormalizePagination(t *testing.T) {
	t.Parallel()

	limit, offset := normalizePagination(0, -5)
	if limit != defaultListLimit || offset != 0 {
		t.Fatalf("expected defaults, got limit=%d offset=%d", limit, offset)
	}

	limit, _ = normalizePagination(maxListLimit+1, 0)
	if limit != maxListLimit {
		t.Fatalf("expected limit clamped to %d, got %d", maxListLimit, limit)
	}

	limit, offset = normalizePagination(25, 100)
	if limit != 25 || offset != 100 {
		t.Fatalf("expected passthrough, got limit=%d offset=%d", limit, offset)
	}
}

func TestMakeSearchPattern(t *testing.T) {
	t.Parallel()

	if pattern := makeSearchPattern("  Aurora  "); pattern != "%aurora%" {
		t.Fatalf("expected trimmed lowercase pattern, got %q", pattern)
	}
	if pattern := makeSearchPattern("   "); pattern != "" {
		t.Fatalf("expected empty pattern for blank search, got %q", pattern)
	}
}
