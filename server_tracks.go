package main

import (
	"net/http"
	"strconv"
)

const (
	defaultPageSize = 100
	maxPageSize     = 100
)

// getTracks lists the library tracks (removed ones excluded), with
// optional artist, genre and search filters plus pagination.
func (s *server) getTracks(w http.ResponseWriter, r *http.Request) {
	page, pageSize := parsePagination(r)

	filter := trackFilter{
		Artist: r.URL.Query().Get("artist_name"),
		Genre:  r.URL.Query().Get("genre"),
		Search: r.URL.Query().Get("search"),
		Offset: (page - 1) * pageSize,
		Limit:  pageSize,
	}

	total, err := s.db.countLibraryTracks(r.Context(), filter)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}

	tracks, err := s.db.listLibraryTracks(r.Context(), filter)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"count":       total,
		"page":        page,
		"page_size":   pageSize,
		"total_pages": (total + int64(pageSize) - 1) / int64(pageSize),
		"tracks":      tracks,
	})
}

func (s *server) getTrackGenres(w http.ResponseWriter, r *http.Request) {
	genres, err := s.db.listLibraryGenres(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"genres": genres,
	})
}

func (s *server) getTrackArtists(w http.ResponseWriter, r *http.Request) {
	artists, err := s.db.listLibraryArtists(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"artists": artists,
	})
}

func parsePagination(r *http.Request) (page, pageSize int) {
	page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}

	pageSize, _ = strconv.Atoi(r.URL.Query().Get("page_size"))
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	return page, pageSize
}
