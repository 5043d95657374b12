package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

func (s *server) getRemovedTracks(w http.ResponseWriter, r *http.Request) {
	page, pageSize := parsePagination(r)

	tracks, total, err := s.db.listRemovedTracks(r.Context(), (page-1)*pageSize, pageSize)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"count":     total,
		"page":      page,
		"page_size": pageSize,
		"tracks":    tracks,
	})
}

// postRemoveTrack soft-removes a library track. Play statistics stay
// with the record.
func (s *server) postRemoveTrack(w http.ResponseWriter, r *http.Request) {
	id, err := extractID(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	track, err := s.db.removeFromLibrary(r.Context(), id)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	if track == nil {
		s.writeError(w, http.StatusNotFound, errors.New("track not found"))
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":  "track removed from library",
		"track_id": id,
	})
}

// postRestoreTrack reverses a removal. A no-op when the track is not
// currently removed.
func (s *server) postRestoreTrack(w http.ResponseWriter, r *http.Request) {
	id, err := extractID(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	track, err := s.db.restoreToLibrary(r.Context(), id)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	if track == nil {
		s.writeError(w, http.StatusNotFound, errors.New("track not found"))
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":  "track restored to library",
		"track_id": id,
	})
}

func (s *server) postRestoreAllTracks(w http.ResponseWriter, r *http.Request) {
	count, err := s.db.restoreAllTracks(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": fmt.Sprintf("restored %d tracks to library", count),
		"count":   count,
	})
}

type updateTrackRequest struct {
	Rating   *int  `json:"rating"`
	Favorite *bool `json:"favorite"`
}

// patchTrack updates the user-facing stats of a library track.
func (s *server) patchTrack(w http.ResponseWriter, r *http.Request) {
	id, err := extractID(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	var req updateTrackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	if req.Rating != nil && (*req.Rating < 1 || *req.Rating > 5) {
		s.writeError(w, http.StatusBadRequest, errors.New("rating must be between 1 and 5"))
		return
	}

	track, err := s.db.getTrack(r.Context(), id)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	if track == nil {
		s.writeError(w, http.StatusNotFound, errors.New("track not found"))
		return
	}

	err = s.db.withTrackKey(track.ArtistKey, track.TrackKey, func() error {
		current, err := s.db.getTrack(r.Context(), id)
		if err != nil || current == nil {
			return err
		}
		if req.Rating != nil {
			current.Rating = req.Rating
		}
		if req.Favorite != nil {
			current.Favorite = *req.Favorite
		}
		track = current
		return s.db.saveTrack(r.Context(), current)
	})
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":  "track updated",
		"track_id": id,
		"rating":   track.Rating,
		"favorite": track.Favorite,
	})
}

func extractID(r *http.Request) (uint64, error) {
	idStr := chi.URLParam(r, "id")
	return strconv.ParseUint(idStr, 10, 64)
}
