package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/subc0der/resonate/internal/library"
	"github.com/subc0der/resonate/internal/scanner"
	"github.com/subc0der/resonate/internal/stats"
)

const shutdownTimeout = 10 * time.Second

// Server exposes the library index over a JSON HTTP API: browse and
// lookup endpoints, scan control with a WebSocket progress stream, the
// artwork cache and Prometheus metrics.
type Server struct {
	addr     string
	log      *slog.Logger
	tracks   *library.TrackRepository
	artists  *library.ArtistRepository
	albums   *library.AlbumRepository
	scans    *library.ScanRepository
	stats    *stats.Service
	scanner  *scanner.Service
	tracker  *scanner.Tracker
	coverDir string
}

func New(
	database *sql.DB,
	scanService *scanner.Service,
	tracker *scanner.Tracker,
	artworkCacheDir string,
	addr string,
	logger *slog.Logger,
) *Server {
	return &Server{
		addr:     addr,
		log:      logger,
		tracks:   library.NewTrackRepository(database),
		artists:  library.NewArtistRepository(database),
		albums:   library.NewAlbumRepository(database),
		scans:    library.NewScanRepository(database),
		stats:    stats.NewService(database),
		scanner:  scanService,
		tracker:  tracker,
		coverDir: artworkCacheDir,
	}
}

func (s *Server) Router() *mux.Router {
	router := mux.NewRouter()
	router.Use(metricsMiddleware)

	router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	router.HandleFunc("/covers/{name}", s.handleGetCover).Methods(http.MethodGet, http.MethodHead)

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/tracks", s.handleListTracks).Methods(http.MethodGet)
	api.HandleFunc("/tracks/{id}", s.handleGetTrack).Methods(http.MethodGet)
	api.HandleFunc("/tracks/{id}/playable", s.handleGetPlayableTrack).Methods(http.MethodGet)
	api.HandleFunc("/tracks/{id}/favorite", s.handleSetTrackFavorite).Methods(http.MethodPut)
	api.HandleFunc("/tracks/{id}/eq", s.handleSetTrackEQPreset).Methods(http.MethodPut)
	api.HandleFunc("/tracks/{id}/played", s.handleRecordTrackPlay).Methods(http.MethodPost)
	api.HandleFunc("/albums", s.handleListAlbums).Methods(http.MethodGet)
	api.HandleFunc("/albums/{id}", s.handleGetAlbum).Methods(http.MethodGet)
	api.HandleFunc("/albums/{id}/favorite", s.handleSetAlbumFavorite).Methods(http.MethodPut)
	api.HandleFunc("/artists", s.handleListArtists).Methods(http.MethodGet)
	api.HandleFunc("/artists/{id}", s.handleGetArtist).Methods(http.MethodGet)
	api.HandleFunc("/artists/{id}/favorite", s.handleSetArtistFavorite).Methods(http.MethodPut)
	api.HandleFunc("/stats", s.handleGetStats).Methods(http.MethodGet)
	api.HandleFunc("/scan", s.handleGetScan).Methods(http.MethodGet)
	api.HandleFunc("/scan", s.handleStartScan).Methods(http.MethodPost)
	api.HandleFunc("/scan", s.handleStopScan).Methods(http.MethodDelete)
	api.HandleFunc("/scan/ws", s.handleScanSocket).Methods(http.MethodGet)

	return router
}

// Run serves the API until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              s.addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- httpServer.ListenAndServe()
	}()
	s.log.Info("http server listening", "addr", s.addr)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shut down http server: %w", err)
		}
		return nil
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve http: %w", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// notFoundOrInternal maps repository sentinel errors to 404 and
// everything else to a logged 500.
func (s *Server) notFoundOrInternal(w http.ResponseWriter, err error, sentinel error, message string) {
	if errors.Is(err, sentinel) {
		writeError(w, http.StatusNotFound, message)
		return
	}

	s.log.Error("request failed", "error", err)
	writeError(w, http.StatusInternalServerError, "internal error")
}

func parseIntParam(raw string) int {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0
	}

	return value
}

func parseBoolParam(raw string) bool {
	value, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return false
	}

	return value
}
