package main

import (
	"strings"
	"time"
)

// Track statuses. Transitions are monotonic except for the explicit
// removed -> in_library restore path.
const (
	StatusRecommended = "recommended"
	StatusInLibrary   = "in_library"
	StatusRemoved     = "removed"
	StatusDownloading = "downloading"
	StatusDownloaded  = "downloaded"
	StatusFailed      = "failed"
)

// Track is a single track record, either in the recommended set
// (discovered via a provider, moving through the download pipeline) or
// in the library set (owned, removable and restorable). The same
// (artist, track) pair may exist once in each set.
type Track struct {
	ID         uint64 `gorm:"primarykey" json:"id"`
	ArtistName string `json:"artist_name"`
	TrackName  string `json:"track_name"`
	Album      string `json:"album,omitempty"`
	Genre      string `json:"genre,omitempty"`

	// Normalized matching keys, maintained on every write.
	ArtistKey string `gorm:"index:idx_track_key,unique,priority:1" json:"-"`
	TrackKey  string `gorm:"index:idx_track_key,unique,priority:2" json:"-"`
	Library   bool   `gorm:"index:idx_track_key,unique,priority:3" json:"-"`

	SourceProvider string `json:"source_provider,omitempty"`
	ExternalID     string `json:"external_id,omitempty"`
	Status         string `json:"status"`
	FailureReason  string `json:"failure_reason,omitempty"`

	// Library attributes, meaningful once Library is true.
	RelativePath string     `json:"relative_path,omitempty"`
	Playcount    int        `json:"playcount"`
	Skipcount    int        `json:"skipcount"`
	Rating       *int       `json:"rating,omitempty"`
	Favorite     bool       `json:"favorite"`
	PlayStreak   int        `json:"play_streak"`
	RemovedAt    *time.Time `json:"removed_at,omitempty"`

	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

func (t *Track) String() string {
	return t.ArtistName + " - " + t.TrackName
}

// RawTrack is one record as returned by a metadata provider, before
// normalization.
type RawTrack struct {
	ArtistName string
	TrackName  string
	Album      string
	ExternalID string
	Genre      string
}

// normalizeKey produces the case-insensitive, whitespace-normalized
// form used for identity matching.
func normalizeKey(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// splitArtists splits a collaboration artist name ("2pac;Big skye")
// into the individual artist names. Single artists come back as a
// one-element slice.
func splitArtists(name string) []string {
	parts := strings.Split(name, ";")
	artists := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			artists = append(artists, p)
		}
	}
	return artists
}

// Discography aggregation outcome statuses.
const (
	AggregationOK            = "ok"
	AggregationNotFound      = "not_found"
	AggregationProviderError = "provider_error"
)

// DiscographySummary is the per-artist result of an aggregation pass.
// Counts come from the actual per-track merge classifications.
type DiscographySummary struct {
	ArtistName  string `json:"artist_name"`
	TracksFound int    `json:"tracks_found"`
	NewTracks   int    `json:"new_tracks"`
	Duplicates  int    `json:"duplicates"`
	Updated     int    `json:"updated"`
	Malformed   int    `json:"malformed,omitempty"`
	ArtistGenre string `json:"artist_genre,omitempty"`
	Provider    string `json:"provider,omitempty"`
	Status      string `json:"status"`
}

// BulkLoadSummary aggregates the per-artist summaries of a bulk
// discography load.
type BulkLoadSummary struct {
	ArtistsProcessed int                  `json:"artists_processed"`
	ArtistsFailed    int                  `json:"artists_failed"`
	TotalNewTracks   int                  `json:"total_new_tracks"`
	Summaries        []DiscographySummary `json:"summaries"`
}

// TrackResult is the outcome of one download attempt within a batch.
type TrackResult struct {
	TrackID uint64 `json:"track_id"`
	Status  string `json:"status"`
	Reason  string `json:"reason,omitempty"`
}

// BatchResult reports a download batch. Results preserve the input
// order and cover every requested track, attempted or not.
type BatchResult struct {
	Successful int           `json:"successful"`
	Failed     int           `json:"failed"`
	Results    []TrackResult `json:"results"`
}

// DownloadStats summarizes the download pipeline state.
type DownloadStats struct {
	TotalTracks int64 `json:"total_tracks"`
	Downloaded  int64 `json:"downloaded"`
	Failed      int64 `json:"failed"`
	Pending     int64 `json:"pending"`
}
