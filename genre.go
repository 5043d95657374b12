package main

import (
	"context"
	"errors"
	"time"
)

// defaultTagDelay keeps tag lookups under the provider's published
// request-rate ceiling. The provider asks for at least one second
// between calls; two is the recommended margin.
const defaultTagDelay = 2 * time.Second

// genreResolver fills missing genres through a fallback chain of tag
// granularities: recording, then release group, then artist. The chain
// stops at the first non-empty result. Exhausting the chain without a
// result leaves the genre empty; that is not an error.
//
// Every external call waits on the resolver's own pacer, so the delay
// applies across tracks processed in sequence and never leaks between
// concurrent resolver instances.
type genreResolver struct {
	tags TagClient
	pace *pacer
}

func newGenreResolver(tags TagClient, delay time.Duration) *genreResolver {
	if delay <= 0 {
		delay = defaultTagDelay
	}
	return &genreResolver{
		tags: tags,
		pace: newPacer(delay),
	}
}

// ResolveGenre returns the first genre found for the (artist, track)
// pair, or "" when every granularity comes up empty.
func (r *genreResolver) ResolveGenre(ctx context.Context, artist, track string) (string, error) {
	if err := r.pace.wait(ctx); err != nil {
		return "", err
	}

	ref, err := r.tags.SearchRecording(ctx, artist, track)
	if err != nil {
		if errors.Is(err, ErrArtistNotFound) {
			return "", nil
		}
		return "", err
	}

	steps := []struct {
		entityID    string
		granularity TagGranularity
	}{
		{ref.RecordingID, GranularityRecording},
		{ref.ReleaseGroupID, GranularityReleaseGroup},
		{ref.ArtistID, GranularityArtist},
	}

	for _, step := range steps {
		if step.entityID == "" {
			continue
		}

		if err := r.pace.wait(ctx); err != nil {
			return "", err
		}

		tags, err := r.tags.GetTags(ctx, step.entityID, step.granularity)
		if err != nil {
			// A failed granularity does not abort the chain.
			continue
		}
		if len(tags) > 0 {
			return tags[0], nil
		}
	}

	return "", nil
}
