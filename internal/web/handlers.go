package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/quantmill/fexingest/internal/logging"
	"github.com/quantmill/fexingest/internal/store"
)

// manifestView is the JSON shape of a manifest record.
type manifestView struct {
	ContentHash        string     `json:"contentHash"`
	OriginalPath       string     `json:"originalPath"`
	SizeBytes          int64      `json:"sizeBytes"`
	DiscoveredAt       time.Time  `json:"discoveredAt"`
	IngestedAt         time.Time  `json:"ingestedAt"`
	Status             string     `json:"status"`
	SourceSystem       string     `json:"sourceSystem,omitempty"`
	TransformStartedAt *time.Time `json:"transformStartedAt,omitempty"`
	TransformEndedAt   *time.Time `json:"transformEndedAt,omitempty"`
	TargetTable        string     `json:"targetTable,omitempty"`
	RecipeID           string     `json:"recipeId,omitempty"`
	ProcessedRows      int64      `json:"processedRows,omitempty"`
	ErrorMessage       string     `json:"errorMessage,omitempty"`
}

func toView(rec store.ManifestRecord) manifestView {
	return manifestView{
		ContentHash:        rec.ContentHash,
		OriginalPath:       rec.OriginalPath,
		SizeBytes:          rec.SizeBytes,
		DiscoveredAt:       rec.DiscoveredAt,
		IngestedAt:         rec.IngestedAt,
		Status:             string(rec.Status),
		SourceSystem:       rec.SourceSystem,
		TransformStartedAt: rec.TransformStartedAt,
		TransformEndedAt:   rec.TransformEndedAt,
		TargetTable:        rec.TargetTable,
		RecipeID:           rec.RecipeID,
		ProcessedRows:      rec.ProcessedRows,
		ErrorMessage:       rec.ErrorMessage,
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleManifestByStatus(w http.ResponseWriter, r *http.Request) {
	status := store.Status(r.URL.Query().Get("status"))
	if !status.Valid() {
		writeError(w, http.StatusBadRequest, "unknown status; expected one of RAW_INGESTED, TRANSFORMATION_FAILED, TRANSFORMED_SUCCESS, QUARANTINED")
		return
	}

	records, err := s.store.QueryByStatus(r.Context(), status)
	if err != nil {
		logging.FromContext(r.Context()).Error("query by status", "error", err)
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}

	views := make([]manifestView, len(records))
	for i, rec := range records {
		views[i] = toView(rec)
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleManifestByHash(w http.ResponseWriter, r *http.Request) {
	hash := chi.URLParam(r, "hash")

	rec, err := s.store.GetManifest(r.Context(), hash)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "no manifest for hash")
		return
	}
	if err != nil {
		logging.FromContext(r.Context()).Error("get manifest", "error", err)
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	writeJSON(w, http.StatusOK, toView(*rec))
}

func (s *Server) handleIndexByEntity(w http.ResponseWriter, r *http.Request) {
	entity := chi.URLParam(r, "entity")

	entries, err := s.store.QueryIndexByEntity(r.Context(), entity)
	if err != nil {
		logging.FromContext(r.Context()).Error("query index", "error", err)
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleIndexLookup(w http.ResponseWriter, r *http.Request) {
	entity := chi.URLParam(r, "entity")
	date := chi.URLParam(r, "date")

	hash, err := s.store.LookupIndex(r.Context(), entity, date)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "no index entry")
		return
	}
	if err != nil {
		logging.FromContext(r.Context()).Error("lookup index", "error", err)
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"entityKey":   entity,
		"logicalDate": date,
		"contentHash": hash,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
