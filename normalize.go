package main

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedRecord marks a provider record that cannot be
// canonicalized. Malformed records are dropped and counted, never
// fatal to a batch.
var ErrMalformedRecord = errors.New("malformed provider record")

// normalizeTrack canonicalizes one raw provider record into a Track
// with status recommended. Display fields keep their original casing;
// only the matching keys are folded.
func normalizeTrack(raw RawTrack, provider string) (*Track, error) {
	artist := strings.TrimSpace(raw.ArtistName)
	name := strings.TrimSpace(raw.TrackName)

	if artist == "" {
		return nil, fmt.Errorf("%w: empty artist name", ErrMalformedRecord)
	}
	if name == "" {
		return nil, fmt.Errorf("%w: empty track name", ErrMalformedRecord)
	}

	return &Track{
		ArtistName:     artist,
		TrackName:      name,
		Album:          strings.TrimSpace(raw.Album),
		Genre:          strings.TrimSpace(raw.Genre),
		ArtistKey:      normalizeKey(artist),
		TrackKey:       normalizeKey(name),
		SourceProvider: provider,
		ExternalID:     raw.ExternalID,
		Status:         StatusRecommended,
	}, nil
}
