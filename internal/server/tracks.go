package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/subc0der/resonate/internal/library"
)

func (s *Server) handleListTracks(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := library.TrackFilter{
		Search:      query.Get("search"),
		Artist:      query.Get("artist"),
		Album:       query.Get("album"),
		HighResOnly: parseBoolParam(query.Get("highres")),
		Limit:       parseIntParam(query.Get("limit")),
		Offset:      parseIntParam(query.Get("offset")),
	}

	page, err := s.tracks.List(r.Context(), filter)
	if err != nil {
		s.log.Error("list tracks failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleGetTrack(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	track, err := s.tracks.GetByID(r.Context(), id)
	if err != nil {
		s.notFoundOrInternal(w, err, library.ErrTrackNotFound, "track not found")
		return
	}

	writeJSON(w, http.StatusOK, track)
}

func (s *Server) handleGetPlayableTrack(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	playable, err := s.tracks.PlayableByID(r.Context(), id)
	if err != nil {
		s.notFoundOrInternal(w, err, library.ErrTrackNotFound, "track not found")
		return
	}

	writeJSON(w, http.StatusOK, playable)
}

type favoriteRequest struct {
	Favorite bool `json:"favorite"`
}

func (s *Server) handleSetTrackFavorite(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var request favoriteRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.tracks.SetFavorite(r.Context(), id, request.Favorite); err != nil {
		s.notFoundOrInternal(w, err, library.ErrTrackNotFound, "track not found")
		return
	}

	track, err := s.tracks.GetByID(r.Context(), id)
	if err != nil {
		s.notFoundOrInternal(w, err, library.ErrTrackNotFound, "track not found")
		return
	}

	writeJSON(w, http.StatusOK, track)
}

type eqPresetRequest struct {
	Preset string `json:"preset"`
}

func (s *Server) handleSetTrackEQPreset(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var request eqPresetRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.tracks.SetEQPreset(r.Context(), id, request.Preset); err != nil {
		s.notFoundOrInternal(w, err, library.ErrTrackNotFound, "track not found")
		return
	}

	track, err := s.tracks.GetByID(r.Context(), id)
	if err != nil {
		s.notFoundOrInternal(w, err, library.ErrTrackNotFound, "track not found")
		return
	}

	writeJSON(w, http.StatusOK, track)
}

// handleRecordTrackPlay bumps the play counter; the playback engine
// posts here when a track finishes.
func (s *Server) handleRecordTrackPlay(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if err := s.tracks.RecordPlay(r.Context(), id, time.Now()); err != nil {
		s.notFoundOrInternal(w, err, library.ErrTrackNotFound, "track not found")
		return
	}

	track, err := s.tracks.GetByID(r.Context(), id)
	if err != nil {
		s.notFoundOrInternal(w, err, library.ErrTrackNotFound, "track not found")
		return
	}

	writeJSON(w, http.StatusOK, track)
}
