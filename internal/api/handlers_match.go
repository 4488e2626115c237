package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/penlane/greenroom/internal/bulkmatch"
)

func (r *Router) handleCreateMatchJob(w http.ResponseWriter, req *http.Request) {
	var body struct {
		Pairs []bulkmatch.Pair `json:"pairs"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	job, err := r.matchService.CreateJob(req.Context(), body.Pairs)
	if err != nil {
		if errors.Is(err, bulkmatch.ErrEmptyBatch) || errors.Is(err, bulkmatch.ErrInvalidPair) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		r.logger.Error("creating match job", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	// The job outlives this request; the executor owns its lifetime.
	if err := r.matchExecutor.Start(req.Context(), job); err != nil {
		if errors.Is(err, bulkmatch.ErrJobRunning) {
			writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
			return
		}
		r.logger.Error("starting match job", "job_id", job.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	writeJSON(w, http.StatusAccepted, job)
}

func (r *Router) handleGetMatchJob(w http.ResponseWriter, req *http.Request) {
	id := req.PathValue("id")

	job, err := r.matchService.GetJob(req.Context(), id)
	if err != nil {
		if errors.Is(err, bulkmatch.ErrJobNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "job not found"})
			return
		}
		r.logger.Error("getting match job", "job_id", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	items, err := r.matchService.ListItems(req.Context(), id)
	if err != nil {
		r.logger.Error("listing match job items", "job_id", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	if items == nil {
		items = []bulkmatch.Item{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"job": job, "items": items})
}

func (r *Router) handleCancelMatchJob(w http.ResponseWriter, req *http.Request) {
	id := req.PathValue("id")

	if running, ok := r.matchExecutor.Running(); !ok || running != id {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "job is not running"})
		return
	}
	if err := r.matchExecutor.Cancel(); err != nil {
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "canceling"})
}

func (r *Router) handleResolveMatchItem(w http.ResponseWriter, req *http.Request) {
	id := req.PathValue("id")
	index, err := strconv.Atoi(req.PathValue("index"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid item index"})
		return
	}

	var body struct {
		DurationSeconds int `json:"duration_seconds"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	item, err := r.matchExecutor.ResolveItem(req.Context(), id, index, body.DurationSeconds)
	if err != nil {
		switch {
		case errors.Is(err, bulkmatch.ErrItemNotFound), errors.Is(err, bulkmatch.ErrJobNotFound):
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "item not found"})
		case errors.Is(err, bulkmatch.ErrNotMultiple):
			writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		default:
			r.logger.Error("resolving match item", "job_id", id, "index", index, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		}
		return
	}

	writeJSON(w, http.StatusOK, item)
}
