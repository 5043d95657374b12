package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestDatabase(t *testing.T) *database {
	t.Helper()

	db, err := newDatabase(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	return db
}

// seedTrack inserts a track, filling the matching keys from the display
// names when they are not set explicitly.
func seedTrack(t *testing.T, db *database, track *Track) *Track {
	t.Helper()

	if track.ArtistKey == "" {
		track.ArtistKey = normalizeKey(track.ArtistName)
	}
	if track.TrackKey == "" {
		track.TrackKey = normalizeKey(track.TrackName)
	}
	if track.Status == "" {
		track.Status = StatusRecommended
	}

	require.NoError(t, db.createTrack(context.Background(), track))
	return track
}
