package library

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/subc0der/resonate/internal/db"
)

func TestTrackRepositoryGetByIDMissing(t *testing.T) {
	t.Parallel()

	database := newLibraryDBForTest(t)
	repo := NewTrackRepository(database)

	_, err := repo.GetByID(context.Background(), "missing")
	if !errors.Is(err, ErrTrackNotFound) {
		t.Fatalf("expected ErrTrackNotFound, got %v", err)
	}
}

func TestTrackRepositoryListFilters(t *testing.T) {
	t.Parallel()

	database := newLibraryDBForTest(t)
	repo := NewTrackRepository(database)
	ctx := context.Background()

	insertTrackForTest(t, database, trackSeed{
		id:         "t1",
		title:      "Night Drive",
		artistName: "Aurora Drive",
		albumName:  "City Lights",
		filePath:   "/music/aurora/night-drive.flac",
		highRes:    true,
	})
	insertTrackForTest(t, database, trackSeed{
		id:         "t2",
		title:      "Morning Haze",
		artistName: "Aurora Drive",
		albumName:  "City Lights",
		filePath:   "/music/aurora/morning-haze.flac",
	})
	insertTrackForTest(t, database, trackSeed{
		id:         "t3",
		title:      "Blue Hour",
		artistName: "Ben Webster",
		albumName:  "Standards",
		filePath:   "/music/webster/blue-hour.flac",
	})

	byArtist, err := repo.List(ctx, TrackFilter{Artist: "aurora drive"})
	if err != nil {
		t.Fatalf("list by artist: %v", err)
	}
	if byArtist.Page.Total != 2 || len(byArtist.Items) != 2 {
		t.Fatalf("expected 2 artist tracks, got total=%d items=%d", byArtist.Page.Total, len(byArtist.Items))
	}

	highRes, err := repo.List(ctx, TrackFilter{HighResOnly: true})
	if err != nil {
		t.Fatalf("list high-res: %v", err)
	}
	if highRes.Page.Total != 1 || highRes.Items[0].ID != "t1" {
		t.Fatalf("expected only t1 to be high-res, got %+v", highRes.Items)
	}

	search, err := repo.List(ctx, TrackFilter{Search: "webst"})
	if err != nil {
		t.Fatalf("list by search: %v", err)
	}
	if search.Page.Total != 1 || search.Items[0].ID != "t3" {
		t.Fatalf("expected search to match artist name, got %+v", search.Items)
	}

	paged, err := repo.List(ctx, TrackFilter{Limit: 1, Offset: 1})
	if err != nil {
		t.Fatalf("list paged: %v", err)
	}
	if paged.Page.Total != 3 || len(paged.Items) != 1 {
		t.Fatalf("expected total 3 with one page item, got total=%d items=%d", paged.Page.Total, len(paged.Items))
	}
}

func TestTrackRepositoryListOrdersByArtistAlbumDiscTrack(t *testing.T) {
	t.Parallel()

	database := newLibraryDBForTest(t)
	repo := NewTrackRepository(database)
	ctx := context.Background()

	insertTrackForTest(t, database, trackSeed{
		id: "late", title: "Closer", artistName: "Axis", albumName: "One",
		filePath: "/music/axis/one/02.flac", trackNumber: 2,
	})
	insertTrackForTest(t, database, trackSeed{
		id: "early", title: "Opener", artistName: "Axis", albumName: "One",
		filePath: "/music/axis/one/01.flac", trackNumber: 1,
	})

	page, err := repo.List(ctx, TrackFilter{})
	if err != nil {
		t.Fatalf("list tracks: %v", err)
	}
	if len(page.Items) != 2 || page.Items[0].ID != "early" || page.Items[1].ID != "late" {
		t.Fatalf("expected track-number order, got %+v", page.Items)
	}
}

func TestTrackRepositoryUserStateUpdates(t *testing.T) {
	t.Parallel()

	database := newLibraryDBForTest(t)
	repo := NewTrackRepository(database)
	ctx := context.Background()

	insertTrackForTest(t, database, trackSeed{
		id: "t1", title: "Song", artistName: "A", albumName: "B",
		filePath: "/music/song.flac",
	})

	if err := repo.SetFavorite(ctx, "t1", true); err != nil {
		t.Fatalf("set favorite: %v", err)
	}
	if err := repo.SetEQPreset(ctx, "t1", "warm"); err != nil {
		t.Fatalf("set eq preset: %v", err)
	}

	playedAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	if err := repo.RecordPlay(ctx, "t1", playedAt); err != nil {
		t.Fatalf("record play: %v", err)
	}
	if err := repo.RecordPlay(ctx, "t1", playedAt.Add(time.Hour)); err != nil {
		t.Fatalf("record second play: %v", err)
	}

	track, err := repo.GetByID(ctx, "t1")
	if err != nil {
		t.Fatalf("get track: %v", err)
	}
	if !track.IsFavorite {
		t.Fatalf("expected track to be favorite")
	}
	if track.EQPreset == nil || *track.EQPreset != "warm" {
		t.Fatalf("expected eq preset %q, got %v", "warm", track.EQPreset)
	}
	if track.PlayCount != 2 {
		t.Fatalf("expected play count 2, got %d", track.PlayCount)
	}
	if track.LastPlayed == nil || *track.LastPlayed != "2025-06-01T13:00:00Z" {
		t.Fatalf("expected last played to advance, got %v", track.LastPlayed)
	}

	if err := repo.SetFavorite(ctx, "missing", true); !errors.Is(err, ErrTrackNotFound) {
		t.Fatalf("expected ErrTrackNotFound for missing track, got %v", err)
	}
}

func TestTrackRepositoryFingerprintsAndKnownPaths(t *testing.T) {
	t.Parallel()

	database := newLibraryDBForTest(t)
	repo := NewTrackRepository(database)
	ctx := context.Background()

	insertTrackForTest(t, database, trackSeed{
		id: "t1", title: "One", artistName: "A", albumName: "B",
		filePath: "/music/one.flac", fileSize: 100, mtimeNS: 11,
	})
	insertTrackForTest(t, database, trackSeed{
		id: "t2", title: "Two", artistName: "A", albumName: "B",
		filePath: "/music/two.flac", fileSize: 200, mtimeNS: 22,
	})

	fingerprints, err := repo.Fingerprints(ctx)
	if err != nil {
		t.Fatalf("load fingerprints: %v", err)
	}
	if len(fingerprints) != 2 {
		t.Fatalf("expected 2 fingerprints, got %d", len(fingerprints))
	}
	if fp := fingerprints["/music/one.flac"]; fp.Size != 100 || fp.MTimeNS != 11 {
		t.Fatalf("unexpected fingerprint for one.flac: %+v", fp)
	}

	known, err := repo.KnownPaths(ctx)
	if err != nil {
		t.Fatalf("load known paths: %v", err)
	}
	if len(known) != 2 {
		t.Fatalf("expected 2 known paths, got %d", len(known))
	}
}

func TestRootRepositoryAddNormalizesPath(t *testing.T) {
	t.Parallel()

	database := newLibraryDBForTest(t)
	repo := NewRootRepository(database)
	ctx := context.Background()

	dir := t.TempDir()
	root, err := repo.Add(ctx, dir+string(filepath.Separator)+".")
	if err != nil {
		t.Fatalf("add root: %v", err)
	}
	if root.Path != filepath.Clean(dir) {
		t.Fatalf("expected cleaned path %q, got %q", filepath.Clean(dir), root.Path)
	}
	if !root.Enabled {
		t.Fatalf("expected new root to be enabled")
	}

	if _, err := repo.Add(ctx, dir); err == nil {
		t.Fatalf("expected duplicate root to be rejected")
	}

	if _, err := repo.Add(ctx, filepath.Join(dir, "does-not-exist")); err == nil {
		t.Fatalf("expected missing directory to be rejected")
	}

	filePath := filepath.Join(dir, "song.flac")
	if err := os.WriteFile(filePath, []byte("x"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if _, err := repo.Add(ctx, filePath); err == nil {
		t.Fatalf("expected non-directory root to be rejected")
	}
}

func TestRootRepositoryEnableDisableAndRemove(t *testing.T) {
	t.Parallel()

	database := newLibraryDBForTest(t)
	repo := NewRootRepository(database)
	ctx := context.Background()

	first, err := repo.Add(ctx, t.TempDir())
	if err != nil {
		t.Fatalf("add first root: %v", err)
	}
	second, err := repo.Add(ctx, t.TempDir())
	if err != nil {
		t.Fatalf("add second root: %v", err)
	}

	if err := repo.SetEnabled(ctx, first.ID, false); err != nil {
		t.Fatalf("disable root: %v", err)
	}

	enabled, err := repo.ListEnabled(ctx)
	if err != nil {
		t.Fatalf("list enabled roots: %v", err)
	}
	if len(enabled) != 1 || enabled[0].ID != second.ID {
		t.Fatalf("expected only second root enabled, got %+v", enabled)
	}

	all, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("list roots: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 roots, got %d", len(all))
	}

	if err := repo.Remove(ctx, first.ID); err != nil {
		t.Fatalf("remove root: %v", err)
	}
	if err := repo.Remove(ctx, first.ID); !errors.Is(err, ErrRootNotFound) {
		t.Fatalf("expected ErrRootNotFound, got %v", err)
	}
}

func TestScanRepositoryLifecycle(t *testing.T) {
	t.Parallel()

	database := newLibraryDBForTest(t)
	repo := NewScanRepository(database)
	ctx := context.Background()

	if _, err := repo.Latest(ctx); !errors.Is(err, ErrScanNotFound) {
		t.Fatalf("expected ErrScanNotFound on empty table, got %v", err)
	}

	startedAt := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	if err := repo.Create(ctx, "scan-1", "full", startedAt); err != nil {
		t.Fatalf("create scan: %v", err)
	}

	latest, err := repo.Latest(ctx)
	if err != nil {
		t.Fatalf("get latest scan: %v", err)
	}
	if latest.Status != "scanning" || latest.Mode != "full" {
		t.Fatalf("unexpected in-flight scan record: %+v", latest)
	}

	counts := ScanCounts{FilesSeen: 12, TracksIndexed: 10, FilesSkipped: 2}
	if err := repo.Finish(ctx, "scan-1", "completed", startedAt.Add(time.Minute), counts, ""); err != nil {
		t.Fatalf("finish scan: %v", err)
	}

	latest, err = repo.Latest(ctx)
	if err != nil {
		t.Fatalf("get finished scan: %v", err)
	}
	if latest.Status != "completed" {
		t.Fatalf("expected completed status, got %q", latest.Status)
	}
	if latest.FilesSeen != 12 || latest.TracksIndexed != 10 || latest.FilesSkipped != 2 {
		t.Fatalf("unexpected scan counts: %+v", latest)
	}
	if latest.FinishedAt == nil || latest.Error != nil {
		t.Fatalf("expected finished scan without error, got %+v", latest)
	}

	if err := repo.Finish(ctx, "missing", "failed", startedAt, counts, "boom"); !errors.Is(err, ErrScanNotFound) {
		t.Fatalf("expected ErrScanNotFound, got %v", err)
	}

	if err := repo.Create(ctx, "scan-2", "quick", startedAt.Add(time.Hour)); err != nil {
		t.Fatalf("create second scan: %v", err)
	}

	recent, err := repo.Recent(ctx, 5)
	if err != nil {
		t.Fatalf("list recent scans: %v", err)
	}
	if len(recent) != 2 || recent[0].ID != "scan-2" {
		t.Fatalf("expected newest-first scan history, got %+v", recent)
	}
}

func TestArtistRepositoryListAndFavorite(t *testing.T) {
	t.Parallel()

	database := newLibraryDBForTest(t)
	repo := NewArtistRepository(database)
	ctx := context.Background()

	insertArtistForTest(t, database, "a1", "Ben Webster")
	insertArtistForTest(t, database, "a2", "Aurora Drive")

	page, err := repo.List(ctx, ArtistFilter{})
	if err != nil {
		t.Fatalf("list artists: %v", err)
	}
	if page.Page.Total != 2 || page.Items[0].Name != "Aurora Drive" {
		t.Fatalf("expected name-ordered artists, got %+v", page.Items)
	}

	if err := repo.SetFavorite(ctx, "a1", true); err != nil {
		t.Fatalf("set favorite: %v", err)
	}

	favorites, err := repo.List(ctx, ArtistFilter{FavoritesOnly: true})
	if err != nil {
		t.Fatalf("list favorites: %v", err)
	}
	if favorites.Page.Total != 1 || favorites.Items[0].ID != "a1" {
		t.Fatalf("expected only favorited artist, got %+v", favorites.Items)
	}

	if _, err := repo.GetByID(ctx, "missing"); !errors.Is(err, ErrArtistNotFound) {
		t.Fatalf("expected ErrArtistNotFound, got %v", err)
	}
}

func TestAlbumRepositoryListFilters(t *testing.T) {
	t.Parallel()

	database := newLibraryDBForTest(t)
	repo := NewAlbumRepository(database)
	ctx := context.Background()

	insertAlbumForTest(t, database, albumSeed{id: "al1", title: "City Lights", artistName: "Aurora Drive", highRes: true})
	insertAlbumForTest(t, database, albumSeed{id: "al2", title: "Standards", artistName: "Ben Webster"})

	highRes, err := repo.List(ctx, AlbumFilter{HighResOnly: true})
	if err != nil {
		t.Fatalf("list high-res albums: %v", err)
	}
	if highRes.Page.Total != 1 || highRes.Items[0].ID != "al1" {
		t.Fatalf("expected only high-res album, got %+v", highRes.Items)
	}

	byArtist, err := repo.List(ctx, AlbumFilter{Artist: "ben webster"})
	if err != nil {
		t.Fatalf("list by artist: %v", err)
	}
	if byArtist.Page.Total != 1 || byArtist.Items[0].ID != "al2" {
		t.Fatalf("expected artist filter to match, got %+v", byArtist.Items)
	}

	if _, err := repo.GetByID(ctx, "missing"); !errors.Is(err, ErrAlbumNotFound) {
		t.Fatalf("expected ErrAlbumNotFound, got %v", err)
	}
}

func newLibraryDBForTest(t *testing.T) *sql.DB {
	t.Helper()

	database, err := db.Bootstrap(context.Background(), filepath.Join(t.TempDir(), "library.db"))
	if err != nil {
		t.Fatalf("bootstrap test database: %v", err)
	}
	t.Cleanup(func() {
		database.Close()
	})

	return database
}

type trackSeed struct {
	id          string
	title       string
	artistName  string
	albumName   string
	filePath    string
	fileSize    int64
	mtimeNS     int64
	durationMS  int64
	trackNumber int
	highRes     bool
}

func insertTrackForTest(t *testing.T, database *sql.DB, seed trackSeed) {
	t.Helper()

	now := time.Now().UTC().Format(time.RFC3339)
	var trackNumber any
	if seed.trackNumber > 0 {
		trackNumber = seed.trackNumber
	}
	highResInt := 0
	if seed.highRes {
		highResInt = 1
	}

	_, err := database.Exec(
		`INSERT INTO tracks(
			id, title, artist_name, album_name, duration_ms, file_path, file_size,
			mtime_ns, format, track_number, is_high_res, date_added, date_modified
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, 'FLAC', ?, ?, ?, ?)`,
		seed.id,
		seed.title,
		seed.artistName,
		seed.albumName,
		seed.durationMS,
		seed.filePath,
		seed.fileSize,
		seed.mtimeNS,
		trackNumber,
		highResInt,
		now,
		now,
	)
	if err != nil {
		t.Fatalf("insert track row: %v", err)
	}
}

func insertArtistForTest(t *testing.T, database *sql.DB, id string, name string) {
	t.Helper()

	_, err := database.Exec("INSERT INTO artists(id, name) VALUES (?, ?)", id, name)
	if err != nil {
		t.Fatalf("insert artist row: %v", err)
	}
}

type albumSeed struct {
	id         string
	title      string
	artistName string
	highRes    bool
}

func insertAlbumForTest(t *testing.T, database *sql.DB, seed albumSeed) {
	t.Helper()

	highResInt := 0
	if seed.highRes {
		highResInt = 1
	}

	_, err := database.Exec(
		"INSERT INTO albums(id, title, artist_name, is_high_res) VALUES (?, ?, ?, ?)",
		seed.id,
		seed.title,
		seed.artistName,
		highResInt,
	)
	if err != nil {
		t.Fatalf("insert album row: %v", err)
	}
}
