package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/penlane/greenroom/internal/search"
	"github.com/penlane/greenroom/internal/song"
)

func (r *Router) handleSearchSongs(w http.ResponseWriter, req *http.Request) {
	query := req.URL.Query().Get("q")

	songs, err := r.searchService.Search(req.Context(), query)
	if err != nil {
		if errors.Is(err, search.ErrEmptyQuery) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "q is required"})
			return
		}
		r.logger.Error("search failed", "query", query, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	if songs == nil {
		songs = []song.Song{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"songs": songs})
}

func (r *Router) handleListSongs(w http.ResponseWriter, req *http.Request) {
	q := req.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	songs, err := r.songService.List(req.Context(), q.Get("q"), limit, offset)
	if err != nil {
		r.logger.Error("listing songs", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	if songs == nil {
		songs = []song.Song{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"songs": songs})
}

func (r *Router) handleCreateSong(w http.ResponseWriter, req *http.Request) {
	var body struct {
		Title           string `json:"title"`
		Artist          string `json:"artist"`
		IsLive          bool   `json:"is_live"`
		DurationSeconds int    `json:"duration_seconds"`
		BPM             *int   `json:"bpm"`
		Tuning          string `json:"tuning"`
		ArtworkURL      string `json:"artwork_url"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	sg := &song.Song{
		Title:           body.Title,
		Artist:          body.Artist,
		IsLive:          body.IsLive,
		DurationSeconds: body.DurationSeconds,
		BPM:             body.BPM,
		Tuning:          body.Tuning,
		ArtworkURL:      body.ArtworkURL,
	}
	if body.BPM != nil {
		sg.BPMSource = song.SourceUser
	}

	if err := r.searchService.CreateSong(req.Context(), sg); err != nil {
		if errors.Is(err, search.ErrInvalidInput) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "title and artist are required"})
			return
		}
		r.logger.Error("creating song", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	writeJSON(w, http.StatusCreated, sg)
}
