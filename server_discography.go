package main

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
)

type loadDiscographyRequest struct {
	ArtistName string `json:"artist_name"`
}

// postLoadDiscography fetches and merges one artist's catalogue. A
// collaboration name ("2pac;Big skye") turns into one independent
// fetch per artist, each with its own summary.
func (s *server) postLoadDiscography(w http.ResponseWriter, r *http.Request) {
	var req loadDiscographyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	req.ArtistName = strings.TrimSpace(req.ArtistName)
	if req.ArtistName == "" {
		s.writeError(w, http.StatusBadRequest, errors.New("artist_name is required"))
		return
	}

	artists := splitArtists(req.ArtistName)

	agg := s.newAggregator()
	summaries := make([]DiscographySummary, 0, len(artists))
	for _, artist := range artists {
		summary := agg.LoadArtistDiscography(r.Context(), artist)
		slog.Info("discography loaded",
			"artist", artist,
			"status", summary.Status,
			"found", summary.TracksFound,
			"new", summary.NewTracks,
			"duplicates", summary.Duplicates,
			"updated", summary.Updated)
		summaries = append(summaries, *summary)
	}

	if len(summaries) == 1 {
		s.writeJSON(w, http.StatusOK, summaries[0])
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"artist_name": req.ArtistName,
		"summaries":   summaries,
	})
}

// postLoadAllDiscographies runs an aggregation pass for every distinct
// artist already in the store.
func (s *server) postLoadAllDiscographies(w http.ResponseWriter, r *http.Request) {
	agg := s.newAggregator()

	bulk, err := agg.LoadAllDiscographies(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}

	slog.Info("bulk discography load finished",
		"processed", bulk.ArtistsProcessed,
		"failed", bulk.ArtistsFailed,
		"new_tracks", bulk.TotalNewTracks)
	s.writeJSON(w, http.StatusOK, bulk)
}
