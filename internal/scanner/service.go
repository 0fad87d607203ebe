package scanner

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/subc0der/resonate/internal/artwork"
	"github.com/subc0der/resonate/internal/library"
	"github.com/subc0der/resonate/internal/metadata"
	"github.com/subc0der/resonate/internal/metrics"
)

var ErrScanInProgress = errors.New("scan already in progress")

const (
	minWorkers = 2
	maxWorkers = 8
)

const discoveryProgressEvery = 512

// Options tunes a scan service.
type Options struct {
	// Workers bounds the metadata extraction pool. Zero selects a
	// CPU-based default.
	Workers int
}

// Service owns the library write path. Extraction runs on a worker
// pool; every database write happens on the scan goroutine so aggregate
// recomputation never races an upsert.
type Service struct {
	db       *sql.DB
	roots    *library.RootRepository
	tracks   *library.TrackRepository
	scans    *library.ScanRepository
	metadata *metadata.Extractor
	artwork  *artwork.Extractor
	tracker  *Tracker
	log      *slog.Logger
	workers  int

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
}

type scanTotals struct {
	totalFiles int
	filesSeen  int
	indexed    int
	skipped    int
}

type fileOutcome struct {
	path        string
	info        os.FileInfo
	meta        metadata.Metadata
	artworkPath string
	unchanged   bool
	err         error
}

func NewService(
	database *sql.DB,
	roots *library.RootRepository,
	tracker *Tracker,
	metadataExtractor *metadata.Extractor,
	artworkExtractor *artwork.Extractor,
	logger *slog.Logger,
	opts Options,
) *Service {
	workers := opts.Workers
	if workers <= 0 {
		workers = defaultWorkerCount()
	}

	return &Service{
		db:       database,
		roots:    roots,
		tracks:   library.NewTrackRepository(database),
		scans:    library.NewScanRepository(database),
		metadata: metadataExtractor,
		artwork:  artworkExtractor,
		tracker:  tracker,
		log:      logger,
		workers:  workers,
	}
}

// StartFullScan re-extracts and upserts every supported file under the
// enabled roots.
func (s *Service) StartFullScan() (string, error) {
	return s.start(ModeFull)
}

// StartQuickScan skips files whose (size, mtime) fingerprint is
// unchanged since they were last indexed.
func (s *Service) StartQuickScan() (string, error) {
	return s.start(ModeQuick)
}

func (s *Service) start(mode string) (string, error) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return "", ErrScanInProgress
	}

	scanCtx, cancel := context.WithCancel(context.Background())
	s.running = true
	s.cancel = cancel
	s.mu.Unlock()

	scanID := uuid.NewString()
	startedAt := time.Now().UTC()

	if err := s.scans.Create(context.Background(), scanID, mode, startedAt); err != nil {
		cancel()
		s.mu.Lock()
		s.running = false
		s.cancel = nil
		s.mu.Unlock()
		return "", fmt.Errorf("record scan start: %w", err)
	}

	metrics.ScanRunning.Set(1)
	s.tracker.Publish(Progress{ScanID: scanID, Mode: mode, State: StateScanning})
	s.log.Info("scan started", "scan_id", scanID, "mode", mode, "workers", s.workers)

	go s.run(scanCtx, cancel, scanID, mode, startedAt)

	return scanID, nil
}

// StopScan requests cooperative cancellation of the active scan and
// returns without waiting for teardown. Files already dispatched to the
// pool may still commit. Returns false when no scan is running.
func (s *Service) StopScan() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running || s.cancel == nil {
		return false
	}

	s.cancel()
	return true
}

// Status reports the latest progress snapshot.
func (s *Service) Status() Progress {
	return s.tracker.Latest()
}

func (s *Service) run(ctx context.Context, cancel context.CancelFunc, scanID string, mode string, startedAt time.Time) {
	defer cancel()

	// Database writes use a fresh context: cancelling a scan keeps the
	// committed work, and the scan record must always reach a terminal
	// state.
	persistCtx := context.Background()

	totals, runErr := s.performScan(ctx, persistCtx, scanID, mode)

	state := StateCompleted
	errorMessage := ""
	switch {
	case errors.Is(runErr, context.Canceled):
		state = StateCancelled
	case runErr != nil:
		state = StateFailed
		errorMessage = runErr.Error()
	}

	finishedAt := time.Now().UTC()
	counts := library.ScanCounts{
		FilesSeen:     totals.filesSeen,
		TracksIndexed: totals.indexed,
		FilesSkipped:  totals.skipped,
	}
	if err := s.scans.Finish(persistCtx, scanID, state, finishedAt, counts, errorMessage); err != nil {
		s.log.Error("record scan result", "scan_id", scanID, "error", err)
	}

	s.mu.Lock()
	s.running = false
	s.cancel = nil
	s.mu.Unlock()

	metrics.ScanRunning.Set(0)
	metrics.ScansTotal.WithLabelValues(mode, state).Inc()
	metrics.ScanLastDuration.Set(finishedAt.Sub(startedAt).Seconds())
	s.refreshLibraryGauges(persistCtx)

	s.log.Info("scan finished",
		"scan_id", scanID,
		"mode", mode,
		"state", state,
		"files_seen", totals.filesSeen,
		"tracks_indexed", totals.indexed,
		"files_skipped", totals.skipped,
		"duration", finishedAt.Sub(startedAt),
	)

	s.tracker.Publish(Progress{
		ScanID:        scanID,
		Mode:          mode,
		State:         state,
		FilesScanned:  totals.filesSeen,
		TotalFiles:    totals.totalFiles,
		TracksIndexed: totals.indexed,
		FilesSkipped:  totals.skipped,
		IsComplete:    true,
		Error:         errorMessage,
	})
}

func (s *Service) performScan(ctx context.Context, persistCtx context.Context, scanID string, mode string) (scanTotals, error) {
	totals := scanTotals{}

	roots, err := s.roots.ListEnabled(ctx)
	if err != nil {
		return totals, fmt.Errorf("list enabled roots: %w", err)
	}
	if len(roots) == 0 {
		s.log.Info("no enabled library roots configured", "scan_id", scanID)
		return totals, nil
	}

	// Discovery pass. Collecting the file set up front gives progress a
	// real total and bounds the traversal to one pass per scan.
	files := make([]walkedFile, 0, 1024)
	treeWalker := newWalker(s.log)
	for _, root := range roots {
		walkErr := treeWalker.walk(ctx, root.Path, func(file walkedFile) {
			files = append(files, file)
			if len(files)%discoveryProgressEvery == 0 {
				s.tracker.Publish(Progress{
					ScanID:      scanID,
					Mode:        mode,
					State:       StateScanning,
					CurrentFile: file.path,
					TotalFiles:  len(files),
				})
			}
		})
		if walkErr != nil {
			return totals, walkErr
		}
	}
	totals.totalFiles = len(files)

	s.tracker.Publish(Progress{
		ScanID:     scanID,
		Mode:       mode,
		State:      StateScanning,
		TotalFiles: totals.totalFiles,
	})

	var fingerprints map[string]library.Fingerprint
	if mode == ModeQuick {
		fingerprints, err = s.tracks.Fingerprints(ctx)
		if err != nil {
			return totals, fmt.Errorf("load fingerprints: %w", err)
		}
	}

	workerCtx, cancelWorkers := context.WithCancel(ctx)
	defer cancelWorkers()

	jobs := make(chan walkedFile)
	results := make(chan fileOutcome, s.workers)

	var wg sync.WaitGroup
	for i := 0; i < s.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.worker(workerCtx, mode, fingerprints, jobs, results)
		}()
	}

	go func() {
		defer close(jobs)
		for _, file := range files {
			select {
			case jobs <- file:
			case <-workerCtx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	touched := newTouchedSet()
	seenPaths := make(map[string]struct{}, len(files))
	var storageErr error

	for outcome := range results {
		if storageErr != nil {
			continue
		}

		totals.filesSeen++
		seenPaths[outcome.path] = struct{}{}
		metrics.ScanFilesProcessed.Inc()

		switch {
		case outcome.unchanged:
		case outcome.err != nil:
			totals.skipped++
			metrics.ScanFilesSkipped.Inc()
			s.log.Warn("file skipped", "path", outcome.path, "error", outcome.err)
		default:
			if persistErr := s.persistTrack(persistCtx, outcome, touched); persistErr != nil {
				storageErr = fmt.Errorf("store track %s: %w", outcome.path, persistErr)
				cancelWorkers()
				continue
			}
			totals.indexed++
		}

		s.tracker.Publish(Progress{
			ScanID:        scanID,
			Mode:          mode,
			State:         StateScanning,
			CurrentFile:   outcome.path,
			FilesScanned:  totals.filesSeen,
			TotalFiles:    totals.totalFiles,
			TracksIndexed: totals.indexed,
			FilesSkipped:  totals.skipped,
		})
	}

	if storageErr != nil {
		return totals, storageErr
	}

	if ctx.Err() != nil {
		// Cancelled. Aggregates for already-committed tracks are
		// brought up to date, but the deletion diff and orphan
		// reconciliation wait for a completed scan so a partial
		// traversal never deletes rows.
		if aggErr := s.recomputeAggregates(persistCtx, touched); aggErr != nil {
			s.log.Error("recompute aggregates after cancel", "scan_id", scanID, "error", aggErr)
		}
		return totals, ctx.Err()
	}

	if err := s.removeMissingTracks(persistCtx, roots, seenPaths, touched); err != nil {
		return totals, err
	}
	if err := s.recomputeAggregates(persistCtx, touched); err != nil {
		return totals, err
	}
	if err := s.removeOrphanedAggregates(persistCtx); err != nil {
		return totals, err
	}

	return totals, nil
}

func (s *Service) worker(ctx context.Context, mode string, fingerprints map[string]library.Fingerprint, jobs <-chan walkedFile, results chan<- fileOutcome) {
	for job := range jobs {
		select {
		case <-ctx.Done():
			return
		default:
		}

		outcome := s.processFile(mode, fingerprints, job)

		select {
		case results <- outcome:
		case <-ctx.Done():
			return
		}
	}
}

func (s *Service) processFile(mode string, fingerprints map[string]library.Fingerprint, job walkedFile) fileOutcome {
	outcome := fileOutcome{path: job.path, info: job.info}

	if mode == ModeQuick {
		fingerprint, known := fingerprints[job.path]
		if known && fingerprint.Size == job.info.Size() && fingerprint.MTimeNS == job.info.ModTime().UnixNano() {
			outcome.unchanged = true
			return outcome
		}
	}

	meta, err := s.metadata.Extract(job.path)
	if err != nil {
		outcome.err = err
		return outcome
	}
	outcome.meta = meta

	artworkPath, artworkErr := s.artwork.ExtractForFile(job.path)
	if artworkErr != nil {
		// Artwork failures never fail the file.
		s.log.Debug("artwork extraction failed", "path", job.path, "error", artworkErr)
	}
	outcome.artworkPath = artworkPath

	return outcome
}

// persistTrack commits one file's metadata. The artist and album rows
// are resolved in the same transaction as the track upsert so a track
// never references a missing aggregate row.
func (s *Service) persistTrack(ctx context.Context, outcome fileOutcome, touched *touchedSet) error {
	meta := outcome.meta
	trackID := library.TrackID(outcome.path)
	artistID := library.ArtistID(meta.Artist)
	albumID := library.AlbumID(meta.Album, meta.AlbumArtist)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin track tx: %w", err)
	}

	defer func() {
		if tx != nil {
			_ = tx.Rollback()
		}
	}()

	var previousArtistID, previousAlbumID sql.NullString
	err = tx.QueryRowContext(
		ctx,
		"SELECT artist_id, album_id FROM tracks WHERE id = ?",
		trackID,
	).Scan(&previousArtistID, &previousAlbumID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("read previous track owners: %w", err)
	}

	if _, err := tx.ExecContext(
		ctx,
		`INSERT INTO artists(id, name) VALUES (?, ?)
		 ON CONFLICT(id) DO UPDATE SET name = excluded.name`,
		artistID,
		meta.Artist,
	); err != nil {
		return fmt.Errorf("upsert artist: %w", err)
	}

	if _, err := tx.ExecContext(
		ctx,
		`INSERT INTO albums(id, title, artist_name) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET title = excluded.title, artist_name = excluded.artist_name`,
		albumID,
		meta.Album,
		meta.AlbumArtist,
	); err != nil {
		return fmt.Errorf("upsert album: %w", err)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	highResInt := 0
	if meta.IsHighRes {
		highResInt = 1
	}

	if _, err := tx.ExecContext(
		ctx,
		`INSERT INTO tracks(
			id, title, artist_id, artist_name, album_id, album_name,
			duration_ms, file_path, file_size, mtime_ns, format, bitrate,
			sample_rate, bit_depth, channels, track_number, disc_number,
			year, genre, artwork_path, replay_gain, is_high_res,
			date_added, date_modified
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			artist_id = excluded.artist_id,
			artist_name = excluded.artist_name,
			album_id = excluded.album_id,
			album_name = excluded.album_name,
			duration_ms = excluded.duration_ms,
			file_size = excluded.file_size,
			mtime_ns = excluded.mtime_ns,
			format = excluded.format,
			bitrate = excluded.bitrate,
			sample_rate = excluded.sample_rate,
			bit_depth = excluded.bit_depth,
			channels = excluded.channels,
			track_number = excluded.track_number,
			disc_number = excluded.disc_number,
			year = excluded.year,
			genre = excluded.genre,
			artwork_path = COALESCE(excluded.artwork_path, tracks.artwork_path),
			replay_gain = excluded.replay_gain,
			is_high_res = excluded.is_high_res,
			date_modified = excluded.date_modified`,
		trackID,
		meta.Title,
		artistID,
		meta.Artist,
		albumID,
		meta.Album,
		meta.DurationMS,
		outcome.path,
		outcome.info.Size(),
		outcome.info.ModTime().UnixNano(),
		meta.Format,
		nullableInt(meta.Bitrate),
		nullableInt(meta.SampleRate),
		nullableInt(meta.BitDepth),
		meta.Channels,
		nullableInt(meta.TrackNumber),
		nullableInt(meta.DiscNumber),
		nullableInt(meta.Year),
		nullableString(meta.Genre),
		nullableString(outcome.artworkPath),
		nullableFloat(meta.ReplayGain),
		highResInt,
		now,
		now,
	); err != nil {
		return fmt.Errorf("upsert track: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit track tx: %w", err)
	}
	tx = nil

	touched.addArtist(artistID)
	touched.addAlbum(albumID)
	if previousArtistID.Valid {
		touched.addArtist(previousArtistID.String)
	}
	if previousAlbumID.Valid {
		touched.addAlbum(previousAlbumID.String)
	}

	return nil
}

// removeMissingTracks deletes tracks under the scanned roots whose
// paths were not observed this traversal. Tracks under disabled roots
// are left alone.
func (s *Service) removeMissingTracks(ctx context.Context, roots []library.Root, seenPaths map[string]struct{}, touched *touchedSet) error {
	known, err := s.tracks.KnownPaths(ctx)
	if err != nil {
		return err
	}

	for _, track := range known {
		if _, seen := seenPaths[track.FilePath]; seen {
			continue
		}
		if !underAnyRoot(track.FilePath, roots) {
			continue
		}

		if _, err := s.db.ExecContext(ctx, "DELETE FROM tracks WHERE id = ?", track.ID); err != nil {
			return fmt.Errorf("delete missing track %s: %w", track.FilePath, err)
		}
		s.log.Debug("removed track for missing file", "path", track.FilePath)

		if track.ArtistID != nil {
			touched.addArtist(*track.ArtistID)
		}
		if track.AlbumID != nil {
			touched.addAlbum(*track.AlbumID)
		}
	}

	return nil
}

func (s *Service) recomputeAggregates(ctx context.Context, touched *touchedSet) error {
	for albumID := range touched.albums {
		if _, err := s.db.ExecContext(ctx, `
			UPDATE albums SET
				total_tracks = (SELECT COUNT(1) FROM tracks WHERE album_id = albums.id),
				total_duration_ms = (SELECT COALESCE(SUM(duration_ms), 0) FROM tracks WHERE album_id = albums.id),
				average_bitrate = (SELECT CAST(AVG(bitrate) AS INTEGER) FROM tracks WHERE album_id = albums.id AND bitrate IS NOT NULL),
				average_sample_rate = (SELECT CAST(AVG(sample_rate) AS INTEGER) FROM tracks WHERE album_id = albums.id AND sample_rate IS NOT NULL),
				is_high_res = EXISTS (SELECT 1 FROM tracks WHERE album_id = albums.id AND is_high_res = 1),
				year = (SELECT MIN(year) FROM tracks WHERE album_id = albums.id AND year IS NOT NULL),
				genre = (
					SELECT genre FROM tracks
					WHERE album_id = albums.id AND genre IS NOT NULL
					GROUP BY genre
					ORDER BY COUNT(1) DESC, genre
					LIMIT 1
				),
				play_count = (SELECT COALESCE(SUM(play_count), 0) FROM tracks WHERE album_id = albums.id),
				last_played = (SELECT MAX(last_played) FROM tracks WHERE album_id = albums.id)
			WHERE id = ?
		`, albumID); err != nil {
			return fmt.Errorf("recompute album aggregates: %w", err)
		}
	}

	for artistID := range touched.artists {
		if _, err := s.db.ExecContext(ctx, `
			UPDATE artists SET
				track_count = (SELECT COUNT(1) FROM tracks WHERE artist_id = artists.id),
				album_count = (SELECT COUNT(DISTINCT album_id) FROM tracks WHERE artist_id = artists.id AND album_id IS NOT NULL),
				total_duration_ms = (SELECT COALESCE(SUM(duration_ms), 0) FROM tracks WHERE artist_id = artists.id),
				play_count = (SELECT COALESCE(SUM(play_count), 0) FROM tracks WHERE artist_id = artists.id),
				last_played = (SELECT MAX(last_played) FROM tracks WHERE artist_id = artists.id)
			WHERE id = ?
		`, artistID); err != nil {
			return fmt.Errorf("recompute artist aggregates: %w", err)
		}
	}

	return nil
}

func (s *Service) removeOrphanedAggregates(ctx context.Context) error {
	if _, err := s.db.ExecContext(
		ctx,
		"DELETE FROM albums WHERE NOT EXISTS (SELECT 1 FROM tracks WHERE tracks.album_id = albums.id)",
	); err != nil {
		return fmt.Errorf("delete orphaned albums: %w", err)
	}

	if _, err := s.db.ExecContext(
		ctx,
		"DELETE FROM artists WHERE NOT EXISTS (SELECT 1 FROM tracks WHERE tracks.artist_id = artists.id)",
	); err != nil {
		return fmt.Errorf("delete orphaned artists: %w", err)
	}

	return nil
}

func (s *Service) refreshLibraryGauges(ctx context.Context) {
	var trackCount, albumCount, artistCount, highResCount float64
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(1) FROM tracks),
			(SELECT COUNT(1) FROM albums),
			(SELECT COUNT(1) FROM artists),
			(SELECT COUNT(1) FROM tracks WHERE is_high_res = 1)
	`).Scan(&trackCount, &albumCount, &artistCount, &highResCount)
	if err != nil {
		s.log.Warn("refresh library metrics", "error", err)
		return
	}

	metrics.LibraryTracks.Set(trackCount)
	metrics.LibraryAlbums.Set(albumCount)
	metrics.LibraryArtists.Set(artistCount)
	metrics.LibraryHighResTracks.Set(highResCount)
}

type touchedSet struct {
	artists map[string]struct{}
	albums  map[string]struct{}
}

func newTouchedSet() *touchedSet {
	return &touchedSet{
		artists: make(map[string]struct{}),
		albums:  make(map[string]struct{}),
	}
}

func (t *touchedSet) addArtist(id string) {
	if id != "" {
		t.artists[id] = struct{}{}
	}
}

func (t *touchedSet) addAlbum(id string) {
	if id != "" {
		t.albums[id] = struct{}{}
	}
}

func underAnyRoot(path string, roots []library.Root) bool {
	for _, root := range roots {
		if path == root.Path || strings.HasPrefix(path, root.Path+string(os.PathSeparator)) {
			return true
		}
	}

	return false
}

func defaultWorkerCount() int {
	workers := runtime.NumCPU()
	if workers < minWorkers {
		return minWorkers
	}
	if workers > maxWorkers {
		return maxWorkers
	}

	return workers
}

func nullableInt(value *int) any {
	if value == nil {
		return nil
	}

	return *value
}

func nullableFloat(value *float64) any {
	if value == nil {
		return nil
	}

	return *value
}

func nullableString(value string) any {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}

	return trimmed
}
