package server

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/subc0der/resonate/internal/artwork"
	"github.com/subc0der/resonate/internal/db"
	"github.com/subc0der/resonate/internal/library"
	"github.com/subc0der/resonate/internal/metadata"
	"github.com/subc0der/resonate/internal/scanner"
	"github.com/subc0der/resonate/internal/stats"
)

func TestHealthz(t *testing.T) {
	harness := newServerForTest(t)

	recorder := harness.doRequest(t, http.MethodGet, "/healthz", nil)

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", recorder.Code)
	}
	var body map[string]string
	decodeResponse(t, recorder, &body)
	if body["status"] != "ok" {
		t.Fatalf("expected status ok, got %q", body["status"])
	}
}

func TestListTracksAppliesHighResFilter(t *testing.T) {
	harness := newServerForTest(t)
	seedCatalog(t, harness.database)

	recorder := harness.doRequest(t, http.MethodGet, "/api/tracks?highres=true", nil)

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", recorder.Code)
	}
	var page library.TracksPage
	decodeResponse(t, recorder, &page)
	if page.Page.Total != 1 {
		t.Fatalf("expected 1 high-res track, got %d", page.Page.Total)
	}
	if len(page.Items) != 1 || page.Items[0].Title != "Harbor Lights" {
		t.Fatalf("expected Harbor Lights, got %+v", page.Items)
	}
}

func TestListTracksSearchMatchesAlbum(t *testing.T) {
	harness := newServerForTest(t)
	seedCatalog(t, harness.database)

	recorder := harness.doRequest(t, http.MethodGet, "/api/tracks?search=soulville", nil)

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", recorder.Code)
	}
	var page library.TracksPage
	decodeResponse(t, recorder, &page)
	if page.Page.Total != 1 || page.Items[0].Title != "Blue Mode" {
		t.Fatalf("expected Blue Mode via album search, got %+v", page.Items)
	}
}

func TestGetTrackReturnsErrorJSON(t *testing.T) {
	harness := newServerForTest(t)

	recorder := harness.doRequest(t, http.MethodGet, "/api/tracks/no-such-track", nil)

	if recorder.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", recorder.Code)
	}
	var body errorResponse
	decodeResponse(t, recorder, &body)
	if body.Error != "track not found" {
		t.Fatalf("expected error message, got %q", body.Error)
	}
}

func TestGetPlayableTrack(t *testing.T) {
	harness := newServerForTest(t)
	seedCatalog(t, harness.database)

	recorder := harness.doRequest(t, http.MethodGet, "/api/tracks/track-1/playable", nil)

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", recorder.Code)
	}
	var playable library.PlayableTrack
	decodeResponse(t, recorder, &playable)
	if playable.FilePath != "/music/track-1.flac" {
		t.Fatalf("expected file path, got %q", playable.FilePath)
	}
	if playable.Format != "FLAC" || !playable.IsHighRes {
		t.Fatalf("expected high-res FLAC, got %+v", playable)
	}
}

func TestSetTrackFavoriteRoundTrip(t *testing.T) {
	harness := newServerForTest(t)
	seedCatalog(t, harness.database)

	recorder := harness.doRequest(t, http.MethodPut, "/api/tracks/track-1/favorite", favoriteRequest{Favorite: true})

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", recorder.Code)
	}
	var updated library.Track
	decodeResponse(t, recorder, &updated)
	if !updated.IsFavorite {
		t.Fatalf("expected favorite track, got %+v", updated)
	}

	fetched, err := harness.tracks.GetByID(context.Background(), "track-1")
	if err != nil {
		t.Fatalf("get track: %v", err)
	}
	if !fetched.IsFavorite {
		t.Fatal("expected favorite flag persisted")
	}
}

func TestRecordTrackPlayIncrementsCounter(t *testing.T) {
	harness := newServerForTest(t)
	seedCatalog(t, harness.database)

	recorder := harness.doRequest(t, http.MethodPost, "/api/tracks/track-1/played", nil)

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", recorder.Code)
	}
	var updated library.Track
	decodeResponse(t, recorder, &updated)
	if updated.PlayCount != 1 {
		t.Fatalf("expected play count 1, got %d", updated.PlayCount)
	}
	if updated.LastPlayed == nil {
		t.Fatal("expected last played timestamp")
	}
}

func TestGetAlbumAndArtist(t *testing.T) {
	harness := newServerForTest(t)
	seedCatalog(t, harness.database)

	albumRecorder := harness.doRequest(t, http.MethodGet, "/api/albums/album-soul", nil)
	if albumRecorder.Code != http.StatusOK {
		t.Fatalf("expected album status 200, got %d", albumRecorder.Code)
	}
	var album library.Album
	decodeResponse(t, albumRecorder, &album)
	if album.Title != "Soulville" {
		t.Fatalf("expected Soulville, got %q", album.Title)
	}

	artistRecorder := harness.doRequest(t, http.MethodGet, "/api/artists/artist-webster", nil)
	if artistRecorder.Code != http.StatusOK {
		t.Fatalf("expected artist status 200, got %d", artistRecorder.Code)
	}
	var artist library.Artist
	decodeResponse(t, artistRecorder, &artist)
	if artist.Name != "Ben Webster" {
		t.Fatalf("expected Ben Webster, got %q", artist.Name)
	}
}

func TestListArtistsSearch(t *testing.T) {
	harness := newServerForTest(t)
	seedCatalog(t, harness.database)

	recorder := harness.doRequest(t, http.MethodGet, "/api/artists?search=webster", nil)

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", recorder.Code)
	}
	var page library.ArtistsPage
	decodeResponse(t, recorder, &page)
	if page.Page.Total != 1 || page.Items[0].Name != "Ben Webster" {
		t.Fatalf("expected one Ben Webster match, got %+v", page.Items)
	}
}

func TestSetAlbumFavorite(t *testing.T) {
	harness := newServerForTest(t)
	seedCatalog(t, harness.database)

	recorder := harness.doRequest(t, http.MethodPut, "/api/albums/album-soul/favorite", favoriteRequest{Favorite: true})

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", recorder.Code)
	}
	var album library.Album
	decodeResponse(t, recorder, &album)
	if !album.IsFavorite {
		t.Fatalf("expected favorite album, got %+v", album)
	}
}

func TestStatsEndpointReturnsOverview(t *testing.T) {
	harness := newServerForTest(t)
	seedCatalog(t, harness.database)

	recorder := harness.doRequest(t, http.MethodGet, "/api/stats", nil)

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", recorder.Code)
	}
	var overview stats.Overview
	decodeResponse(t, recorder, &overview)
	if overview.TotalTracks != 2 {
		t.Fatalf("expected 2 tracks, got %d", overview.TotalTracks)
	}
	if overview.HighResTracks != 1 {
		t.Fatalf("expected 1 high-res track, got %d", overview.HighResTracks)
	}
}

func TestMetricsEndpointExposesCollectors(t *testing.T) {
	harness := newServerForTest(t)

	// A request through the middleware first, so the counter vector has
	// at least one child.
	_ = harness.doRequest(t, http.MethodGet, "/api/tracks", nil)

	recorder := harness.doRequest(t, http.MethodGet, "/metrics", nil)

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", recorder.Code)
	}
	if !strings.Contains(recorder.Body.String(), "resonate_http_requests_total") {
		t.Fatal("expected resonate collectors in metrics output")
	}
}

type serverHarness struct {
	server   *Server
	database *sql.DB
	roots    *library.RootRepository
	tracks   *library.TrackRepository
	scans    *library.ScanRepository
	tracker  *scanner.Tracker
	coverDir string
}

func newServerForTest(t *testing.T) *serverHarness {
	t.Helper()

	dataDir := t.TempDir()
	database, err := db.Bootstrap(context.Background(), filepath.Join(dataDir, "library.db"))
	if err != nil {
		t.Fatalf("bootstrap database: %v", err)
	}
	t.Cleanup(func() {
		_ = database.Close()
	})

	coverDir := filepath.Join(dataDir, "covers")
	if err := os.MkdirAll(coverDir, 0o755); err != nil {
		t.Fatalf("create cover dir: %v", err)
	}

	logger := testLogger()
	tracker := scanner.NewTracker()
	scanService := scanner.NewService(
		database,
		library.NewRootRepository(database),
		tracker,
		metadata.NewExtractor(logger),
		artwork.NewExtractor(coverDir, logger),
		logger,
		scanner.Options{Workers: 2},
	)

	return &serverHarness{
		server:   New(database, scanService, tracker, coverDir, "127.0.0.1:0", logger),
		database: database,
		roots:    library.NewRootRepository(database),
		tracks:   library.NewTrackRepository(database),
		scans:    library.NewScanRepository(database),
		tracker:  tracker,
		coverDir: coverDir,
	}
}

func (h *serverHarness) doRequest(t *testing.T, method string, target string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		reader = bytes.NewReader(encoded)
	}

	request := httptest.NewRequest(method, target, reader)
	recorder := httptest.NewRecorder()
	h.server.Router().ServeHTTP(recorder, request)
	return recorder
}

func decodeResponse(t *testing.T, recorder *httptest.ResponseRecorder, into any) {
	t.Helper()

	if err := json.NewDecoder(recorder.Body).Decode(into); err != nil {
		t.Fatalf("decode response body: %v", err)
	}
}

// seedCatalog inserts one artist/album pair and two tracks, one of
// them high-res.
func seedCatalog(t *testing.T, database *sql.DB) {
	t.Helper()

	execForTest(t, database, `
		INSERT INTO artists (id, name, track_count, album_count, total_duration_ms)
		VALUES ('artist-aurora', 'Aurora Drive', 1, 1, 300000),
		       ('artist-webster', 'Ben Webster', 1, 1, 480000)
	`)
	execForTest(t, database, `
		INSERT INTO albums (id, title, artist_name, total_tracks, total_duration_ms, is_high_res)
		VALUES ('album-city', 'City Lights', 'Aurora Drive', 1, 300000, 1),
		       ('album-soul', 'Soulville', 'Ben Webster', 1, 480000, 0)
	`)
	execForTest(t, database, `
		INSERT INTO tracks (
			id, title, artist_id, artist_name, album_id, album_name,
			duration_ms, file_path, file_size, format, sample_rate, bit_depth,
			is_high_res, date_added, date_modified
		) VALUES
		('track-1', 'Harbor Lights', 'artist-aurora', 'Aurora Drive', 'album-city', 'City Lights',
		 300000, '/music/track-1.flac', 200000000, 'FLAC', 96000, 24,
		 1, '2025-08-02T10:00:00Z', '2025-08-02T10:00:00Z'),
		('track-2', 'Blue Mode', 'artist-webster', 'Ben Webster', 'album-soul', 'Soulville',
		 480000, '/music/track-2.mp3', 12000000, 'MP3', 44100, NULL,
		 0, '2025-08-01T10:00:00Z', '2025-08-01T10:00:00Z')
	`)
}

func execForTest(t *testing.T, database *sql.DB, query string) {
	t.Helper()

	if _, err := database.Exec(query); err != nil {
		t.Fatalf("seed database: %v", err)
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
