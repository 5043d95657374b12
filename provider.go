package main

import (
	"context"
	"errors"
)

// Provider and resolver errors.
var (
	ErrArtistNotFound      = errors.New("artist not found")
	ErrProviderUnavailable = errors.New("provider unavailable")
)

// ArtistHandle identifies an artist within one provider's namespace.
type ArtistHandle struct {
	ID       string
	Name     string
	Provider string
}

// TagGranularity selects the level a tag lookup runs at.
type TagGranularity string

const (
	GranularityRecording    TagGranularity = "recording"
	GranularityReleaseGroup TagGranularity = "release-group"
	GranularityArtist       TagGranularity = "artist"
)

// MetadataProvider abstracts one external music-metadata source. The
// aggregator tries providers in configured priority order; adding a
// provider means adding an implementation, not touching the
// aggregator.
type MetadataProvider interface {
	// Name returns the provider's display name.
	Name() string

	// SearchArtist resolves an artist name to a provider-scoped
	// handle. Returns ErrArtistNotFound when the provider has no
	// match.
	SearchArtist(ctx context.Context, name string) (*ArtistHandle, error)

	// ListTracks returns one page of the artist's catalogue plus the
	// token for the next page. An empty next token signals
	// end-of-results. Pages must be requested sequentially.
	ListTracks(ctx context.Context, handle *ArtistHandle, pageToken string) ([]RawTrack, string, error)
}

// RecordingRef points at one recording and the entities tags can be
// looked up on, from most to least specific.
type RecordingRef struct {
	RecordingID    string
	ReleaseGroupID string
	ArtistID       string
}

// TagClient abstracts the tag provider the genre resolver queries.
type TagClient interface {
	Name() string

	// SearchRecording finds the recording matching an (artist, track)
	// pair. Returns ErrArtistNotFound when nothing matches.
	SearchRecording(ctx context.Context, artist, track string) (*RecordingRef, error)

	// GetTags returns the tags attached to an entity at the given
	// granularity. An empty slice is a valid answer.
	GetTags(ctx context.Context, entityID string, granularity TagGranularity) ([]string, error)
}
