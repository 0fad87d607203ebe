package server

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/subc0der/resonate/internal/library"
)

func (s *Server) handleListAlbums(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := library.AlbumFilter{
		Search:        query.Get("search"),
		Artist:        query.Get("artist"),
		HighResOnly:   parseBoolParam(query.Get("highres")),
		FavoritesOnly: parseBoolParam(query.Get("favorites")),
		Limit:         parseIntParam(query.Get("limit")),
		Offset:        parseIntParam(query.Get("offset")),
	}

	page, err := s.albums.List(r.Context(), filter)
	if err != nil {
		s.log.Error("list albums failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleGetAlbum(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	album, err := s.albums.GetByID(r.Context(), id)
	if err != nil {
		s.notFoundOrInternal(w, err, library.ErrAlbumNotFound, "album not found")
		return
	}

	writeJSON(w, http.StatusOK, album)
}

func (s *Server) handleSetAlbumFavorite(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var request favoriteRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.albums.SetFavorite(r.Context(), id, request.Favorite); err != nil {
		s.notFoundOrInternal(w, err, library.ErrAlbumNotFound, "album not found")
		return
	}

	album, err := s.albums.GetByID(r.Context(), id)
	if err != nil {
		s.notFoundOrInternal(w, err, library.ErrAlbumNotFound, "album not found")
		return
	}

	writeJSON(w, http.StatusOK, album)
}

func (s *Server) handleListArtists(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := library.ArtistFilter{
		Search:        query.Get("search"),
		FavoritesOnly: parseBoolParam(query.Get("favorites")),
		Limit:         parseIntParam(query.Get("limit")),
		Offset:        parseIntParam(query.Get("offset")),
	}

	page, err := s.artists.List(r.Context(), filter)
	if err != nil {
		s.log.Error("list artists failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleGetArtist(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	artist, err := s.artists.GetByID(r.Context(), id)
	if err != nil {
		s.notFoundOrInternal(w, err, library.ErrArtistNotFound, "artist not found")
		return
	}

	writeJSON(w, http.StatusOK, artist)
}

func (s *Server) handleSetArtistFavorite(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var request favoriteRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.artists.SetFavorite(r.Context(), id, request.Favorite); err != nil {
		s.notFoundOrInternal(w, err, library.ErrArtistNotFound, "artist not found")
		return
	}

	artist, err := s.artists.GetByID(r.Context(), id)
	if err != nil {
		s.notFoundOrInternal(w, err, library.ErrArtistNotFound, "artist not found")
		return
	}

	writeJSON(w, http.StatusOK, artist)
}
