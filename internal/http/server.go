package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/edigiacomo/archive-maildir/internal/log"
	"github.com/edigiacomo/archive-maildir/pkg/storage"
)

// StartServer exposes the archive journal over HTTP so past runs can be
// inspected without access to the journal database itself.
func StartServer(port string, store storage.Store) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", HealthHandler)
	mux.HandleFunc("/runs", RunsHandler(store))
	mux.HandleFunc("/runs/", RunByIDHandler(store))

	log.GetLogger().Infof("Starting archive-maildir server on :%s", port)
	return http.ListenAndServe(":"+port, mux)
}

func HealthHandler(w http.ResponseWriter, r *http.Request) {
	fmt.Fprintf(w, "archive-maildir server is running")
}

// RunsHandler serves GET /runs with all journaled runs, newest first.
func RunsHandler(store storage.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		runs, err := store.ListRuns()
		if err != nil {
			log.GetLogger().Errorf("Failed to list runs: %v", err)
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to list runs: %v", err))
			return
		}
		writeJSON(w, http.StatusOK, runs)
	}
}

// RunByIDHandler serves GET /runs/{id} and GET /runs/{id}/records.
func RunByIDHandler(store storage.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		id := strings.TrimPrefix(r.URL.Path, "/runs/")
		recordsOnly := false
		if i := strings.IndexByte(id, '/'); i >= 0 {
			if strings.Trim(id[i+1:], "/") != "records" {
				writeError(w, http.StatusNotFound, "Not found")
				return
			}
			recordsOnly = true
			id = id[:i]
		}
		if id == "" {
			writeError(w, http.StatusBadRequest, "Missing run ID")
			return
		}
		run, err := store.GetRun(id)
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Run not found")
			return
		}
		if err != nil {
			log.GetLogger().Errorf("Failed to get run %s: %v", id, err)
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to get run: %v", err))
			return
		}
		if recordsOnly {
			writeJSON(w, http.StatusOK, run.Records)
			return
		}
		writeJSON(w, http.StatusOK, run)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.GetLogger().Errorf("Failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
