package main

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
)

type downloadBatchRequest struct {
	TrackIDs []uint64 `json:"track_ids"`
}

// postDownloadBatch downloads the selected tracks in the given order.
// Partial completion is still reported in full.
func (s *server) postDownloadBatch(w http.ResponseWriter, r *http.Request) {
	var req downloadBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	if len(req.TrackIDs) == 0 {
		s.writeError(w, http.StatusBadRequest, errors.New("track_ids is required"))
		return
	}

	orch := s.newOrchestrator()
	batch := orch.DownloadSelectedTracks(r.Context(), req.TrackIDs)

	slog.Info("download batch finished",
		"requested", len(req.TrackIDs),
		"successful", batch.Successful,
		"failed", batch.Failed)
	s.writeJSON(w, http.StatusOK, batch)
}

func (s *server) getDownloadStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.db.downloadStats(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}

	s.writeJSON(w, http.StatusOK, stats)
}
