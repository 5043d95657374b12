package main

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDownloader pops one scripted outcome per call. A nil error means
// success with a derived relative path.
type fakeDownloader struct {
	outcomes []error
	calls    int
}

func (d *fakeDownloader) Download(ctx context.Context, track *Track) (string, error) {
	d.calls++
	if len(d.outcomes) > 0 {
		err := d.outcomes[0]
		d.outcomes = d.outcomes[1:]
		if err != nil {
			return "", err
		}
	}
	return filepath.Join(track.ArtistName, track.TrackName+".mp3"), nil
}

func testOrchestrator(db *database, dl Downloader, retries int) *orchestrator {
	policy := newDelayPolicy(time.Millisecond, 5*time.Millisecond, 0.3)
	return newOrchestrator(db, dl, policy, retries)
}

func TestDownloadSelectedTracks(t *testing.T) {
	db := newTestDatabase(t)
	a := seedTrack(t, db, &Track{ArtistName: "2Pac", TrackName: "Dear Mama"})
	b := seedTrack(t, db, &Track{ArtistName: "2Pac", TrackName: "Changes"})

	dl := &fakeDownloader{}
	batch := testOrchestrator(db, dl, 1).DownloadSelectedTracks(context.Background(), []uint64{a.ID, b.ID})

	assert.Equal(t, 2, batch.Successful)
	assert.Zero(t, batch.Failed)
	require.Len(t, batch.Results, 2)
	assert.Equal(t, a.ID, batch.Results[0].TrackID)
	assert.Equal(t, b.ID, batch.Results[1].TrackID)

	stored, err := db.getTrack(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusDownloaded, stored.Status)
	assert.Equal(t, filepath.Join("2Pac", "Dear Mama.mp3"), stored.RelativePath)

	// A successful download lands the track in the library set too.
	library, err := db.findByKey(context.Background(), "2pac", "dear mama", true)
	require.NoError(t, err)
	require.NotNil(t, library)
	assert.Equal(t, StatusInLibrary, library.Status)
}

func TestDownloadRetriesTransientFailureOnce(t *testing.T) {
	db := newTestDatabase(t)
	track := seedTrack(t, db, &Track{ArtistName: "2Pac", TrackName: "Dear Mama"})

	dl := &fakeDownloader{outcomes: []error{transientFailure("timeout"), nil}}
	batch := testOrchestrator(db, dl, 1).DownloadSelectedTracks(context.Background(), []uint64{track.ID})

	assert.Equal(t, 1, batch.Successful)
	assert.Equal(t, 2, dl.calls)
	assert.Equal(t, StatusDownloaded, batch.Results[0].Status)
}

func TestDownloadTransientFailureExhaustsRetries(t *testing.T) {
	db := newTestDatabase(t)
	track := seedTrack(t, db, &Track{ArtistName: "2Pac", TrackName: "Dear Mama"})

	dl := &fakeDownloader{outcomes: []error{
		transientFailure("timeout"),
		transientFailure("timeout"),
	}}
	batch := testOrchestrator(db, dl, 1).DownloadSelectedTracks(context.Background(), []uint64{track.ID})

	assert.Equal(t, 1, batch.Failed)
	assert.Equal(t, 2, dl.calls)

	stored, err := db.getTrack(context.Background(), track.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, stored.Status)
	assert.Equal(t, "timeout", stored.FailureReason)
}

func TestDownloadPermanentFailureIsNotRetried(t *testing.T) {
	db := newTestDatabase(t)
	track := seedTrack(t, db, &Track{ArtistName: "2Pac", TrackName: "Dear Mama"})

	dl := &fakeDownloader{outcomes: []error{
		permanentFailure("video unavailable"),
		nil,
	}}
	batch := testOrchestrator(db, dl, 1).DownloadSelectedTracks(context.Background(), []uint64{track.ID})

	assert.Equal(t, 1, batch.Failed)
	assert.Equal(t, 1, dl.calls)
	assert.Equal(t, "video unavailable", batch.Results[0].Reason)
}

func TestDownloadFailureDoesNotAbortBatch(t *testing.T) {
	db := newTestDatabase(t)
	a := seedTrack(t, db, &Track{ArtistName: "2Pac", TrackName: "Dear Mama"})
	b := seedTrack(t, db, &Track{ArtistName: "2Pac", TrackName: "Changes"})
	c := seedTrack(t, db, &Track{ArtistName: "2Pac", TrackName: "California Love"})

	dl := &fakeDownloader{outcomes: []error{nil, permanentFailure("no results"), nil}}
	batch := testOrchestrator(db, dl, 0).DownloadSelectedTracks(
		context.Background(), []uint64{a.ID, b.ID, c.ID})

	assert.Equal(t, 2, batch.Successful)
	assert.Equal(t, 1, batch.Failed)
	require.Len(t, batch.Results, 3)
	assert.Equal(t, StatusDownloaded, batch.Results[0].Status)
	assert.Equal(t, StatusFailed, batch.Results[1].Status)
	assert.Equal(t, StatusDownloaded, batch.Results[2].Status)
}

func TestDownloadUnknownTrackIsReported(t *testing.T) {
	db := newTestDatabase(t)
	track := seedTrack(t, db, &Track{ArtistName: "2Pac", TrackName: "Dear Mama"})

	dl := &fakeDownloader{}
	batch := testOrchestrator(db, dl, 1).DownloadSelectedTracks(
		context.Background(), []uint64{9999, track.ID})

	require.Len(t, batch.Results, 2)
	assert.Equal(t, StatusFailed, batch.Results[0].Status)
	assert.Equal(t, "track not found", batch.Results[0].Reason)
	assert.Equal(t, StatusDownloaded, batch.Results[1].Status)
}

func TestDownloadAlreadyDownloadedSkipsDownloader(t *testing.T) {
	db := newTestDatabase(t)
	track := seedTrack(t, db, &Track{
		ArtistName: "2Pac",
		TrackName:  "Dear Mama",
		Status:     StatusDownloaded,
	})

	dl := &fakeDownloader{}
	batch := testOrchestrator(db, dl, 1).DownloadSelectedTracks(context.Background(), []uint64{track.ID})

	assert.Equal(t, 1, batch.Successful)
	assert.Zero(t, dl.calls)
	assert.Equal(t, "already downloaded", batch.Results[0].Reason)
}

func TestDownloadSkipsLibraryTracks(t *testing.T) {
	db := newTestDatabase(t)
	now := time.Now()
	removed := seedTrack(t, db, &Track{
		ArtistName:   "2Pac",
		TrackName:    "Dear Mama",
		Library:      true,
		Status:       StatusRemoved,
		RemovedAt:    &now,
		RelativePath: "2Pac/Dear Mama.mp3",
	})
	owned := seedTrack(t, db, &Track{
		ArtistName: "2Pac",
		TrackName:  "Changes",
		Library:    true,
		Status:     StatusInLibrary,
	})

	dl := &fakeDownloader{}
	batch := testOrchestrator(db, dl, 1).DownloadSelectedTracks(
		context.Background(), []uint64{removed.ID, owned.ID})

	assert.Zero(t, dl.calls)
	assert.Equal(t, 2, batch.Failed)
	for _, result := range batch.Results {
		assert.Equal(t, StatusFailed, result.Status)
		assert.Equal(t, "library tracks cannot be downloaded", result.Reason)
	}

	// The removed track stays removed, with its removal and file state
	// intact: only restore may bring it back.
	stored, err := db.getTrack(context.Background(), removed.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusRemoved, stored.Status)
	assert.NotNil(t, stored.RemovedAt)
	assert.Equal(t, "2Pac/Dear Mama.mp3", stored.RelativePath)

	removedList, total, err := db.listRemovedTracks(context.Background(), 0, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, removedList, 1)

	stored, err = db.getTrack(context.Background(), owned.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusInLibrary, stored.Status)
}

func TestDownloadCancellationCoversEveryTrack(t *testing.T) {
	db := newTestDatabase(t)
	a := seedTrack(t, db, &Track{ArtistName: "2Pac", TrackName: "Dear Mama"})
	b := seedTrack(t, db, &Track{ArtistName: "2Pac", TrackName: "Changes"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	dl := &fakeDownloader{}
	batch := testOrchestrator(db, dl, 1).DownloadSelectedTracks(ctx, []uint64{a.ID, b.ID})

	// Every requested id gets an outcome, even when nothing ran.
	require.Len(t, batch.Results, 2)
	assert.Equal(t, 2, batch.Failed)
	for _, result := range batch.Results {
		assert.Equal(t, StatusFailed, result.Status)
		assert.Equal(t, "batch cancelled", result.Reason)
	}
}
