package metadata

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func TestExtract_CorruptFileFails(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "broken.flac")
	if err := os.WriteFile(path, []byte("this is not a flac stream"), 0o644); err != nil {
		t.Fatalf("write corrupt file: %v", err)
	}

	extractor := newExtractorForTest()
	if _, err := extractor.Extract(path); err == nil {
		t.Fatal("expected extraction of a corrupt file to fail")
	}
}

func TestExtract_MissingFileFails(t *testing.T) {
	t.Parallel()

	extractor := newExtractorForTest()
	if _, err := extractor.Extract(filepath.Join(t.TempDir(), "missing.mp3")); err == nil {
		t.Fatal("expected extraction of a missing file to fail")
	}
}

func TestMergeProbe_ComputedDefaults(t *testing.T) {
	t.Parallel()

	merged := mergeProbe(probeResult{}, "/music/01 - Song_Title (Remix) [Bonus].flac")

	if merged.Title != "Song Title" {
		t.Fatalf("expected filename-derived title %q, got %q", "Song Title", merged.Title)
	}
	if merged.Artist != "Unknown Artist" {
		t.Fatalf("expected default artist, got %q", merged.Artist)
	}
	if merged.AlbumArtist != "Unknown Artist" {
		t.Fatalf("expected album artist to follow artist, got %q", merged.AlbumArtist)
	}
	if merged.Album != "Unknown Album" {
		t.Fatalf("expected default album, got %q", merged.Album)
	}
	if merged.Channels != 2 {
		t.Fatalf("expected default channel count 2, got %d", merged.Channels)
	}
	if merged.Format != "FLAC" {
		t.Fatalf("expected format FLAC, got %q", merged.Format)
	}
	if merged.BitDepth == nil || *merged.BitDepth != 24 {
		t.Fatalf("expected estimated FLAC bit depth 24, got %v", merged.BitDepth)
	}
	if !merged.IsHighRes {
		t.Fatal("expected assumed 24-bit FLAC to classify as high-res")
	}
}

func TestMergeProbe_ProbeValuesWin(t *testing.T) {
	t.Parallel()

	probe := probeResult{
		title:      "Actual Title",
		artist:     "Actual Artist",
		album:      "Actual Album",
		bitDepth:   intPtr(16),
		sampleRate: intPtr(44100),
		channels:   intPtr(1),
	}

	merged := mergeProbe(probe, "/music/01 - ignored.flac")

	if merged.Title != "Actual Title" {
		t.Fatalf("expected probe title to win, got %q", merged.Title)
	}
	if merged.AlbumArtist != "Actual Artist" {
		t.Fatalf("expected album artist fallback to artist, got %q", merged.AlbumArtist)
	}
	if merged.Channels != 1 {
		t.Fatalf("expected probe channel count, got %d", merged.Channels)
	}
	if merged.BitDepth == nil || *merged.BitDepth != 16 {
		t.Fatalf("expected probe bit depth 16, got %v", merged.BitDepth)
	}
	if merged.IsHighRes {
		t.Fatal("expected 16-bit 44.1kHz FLAC to classify as standard")
	}
}

func TestMergeProbe_LossyFormatsKeepBitDepthAbsent(t *testing.T) {
	t.Parallel()

	merged := mergeProbe(probeResult{}, "/music/track.mp3")

	if merged.BitDepth != nil {
		t.Fatalf("expected no bit depth for MP3, got %d", *merged.BitDepth)
	}
	if merged.IsHighRes {
		t.Fatal("expected bare MP3 to classify as standard")
	}
}

func TestMergeProbe_DSDExtension(t *testing.T) {
	t.Parallel()

	merged := mergeProbe(probeResult{sampleRate: intPtr(2822400)}, "/music/song.dsf")

	if merged.Format != "DSD" {
		t.Fatalf("expected format DSD, got %q", merged.Format)
	}
	if merged.BitDepth == nil || *merged.BitDepth != 1 {
		t.Fatalf("expected 1-bit DSD depth, got %v", merged.BitDepth)
	}
	if !merged.IsHighRes {
		t.Fatal("expected DSD to classify as high-res")
	}
}

func newExtractorForTest() *Extractor {
	return NewExtractor(slog.New(slog.NewTextHandler(io.Discard, nil)))
}
