package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/penlane/greenroom/internal/refdata"
	"github.com/penlane/greenroom/internal/version"
)

func (r *Router) handleHealth(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":          "ok",
		"version":         version.Version,
		"commit":          version.Commit,
		"dataset_version": refdata.DatasetVersion,
		"time":            time.Now().UTC().Format(time.RFC3339),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "encode error", http.StatusInternalServerError)
	}
}
