package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// defaultAutoRetries is the number of automatic in-batch retries for a
// transient download failure.
const defaultAutoRetries = 1

// orchestrator executes a download batch: computed inter-request
// pacing, one automatic retry for transient failures, per-track
// outcome tracking in input order, and cooperative cancellation
// between tracks. One orchestrator serves one batch, so the delay
// state never leaks across batches.
type orchestrator struct {
	store      *database
	downloader Downloader
	delay      *delayPolicy
	maxRetries int
}

func newOrchestrator(store *database, downloader Downloader, delay *delayPolicy, maxRetries int) *orchestrator {
	if maxRetries < 0 {
		maxRetries = defaultAutoRetries
	}
	return &orchestrator{
		store:      store,
		downloader: downloader,
		delay:      delay,
		maxRetries: maxRetries,
	}
}

// DownloadSelectedTracks attempts each track in the given order. The
// result list always covers every requested id: tracks left
// unattempted after a cancellation are reported as failed, never
// silently dropped.
func (o *orchestrator) DownloadSelectedTracks(ctx context.Context, trackIDs []uint64) *BatchResult {
	batch := &BatchResult{
		Results: make([]TrackResult, 0, len(trackIDs)),
	}

	cancelled := false
	for i, id := range trackIDs {
		if cancelled || ctx.Err() != nil {
			cancelled = true
			batch.Failed++
			batch.Results = append(batch.Results, TrackResult{
				TrackID: id,
				Status:  StatusFailed,
				Reason:  "batch cancelled",
			})
			continue
		}

		if i > 0 {
			if !o.pause(ctx) {
				cancelled = true
				batch.Failed++
				batch.Results = append(batch.Results, TrackResult{
					TrackID: id,
					Status:  StatusFailed,
					Reason:  "batch cancelled",
				})
				continue
			}
		}

		result := o.downloadOne(ctx, id)
		if result.Status == StatusDownloaded {
			batch.Successful++
		} else {
			batch.Failed++
		}
		batch.Results = append(batch.Results, result)
	}

	return batch
}

// pause sleeps for the policy's current delay. Returns false when the
// context was cancelled during the wait.
func (o *orchestrator) pause(ctx context.Context) bool {
	select {
	case <-time.After(o.delay.next()):
		return true
	case <-ctx.Done():
		return false
	}
}

func (o *orchestrator) downloadOne(ctx context.Context, id uint64) TrackResult {
	track, err := o.store.getTrack(ctx, id)
	if err != nil {
		return TrackResult{TrackID: id, Status: StatusFailed, Reason: fmt.Sprintf("loading track: %s", err)}
	}
	if track == nil {
		return TrackResult{TrackID: id, Status: StatusFailed, Reason: "track not found"}
	}
	// Library records never enter the download pipeline: a removed
	// track only leaves that state through restore.
	if track.Library {
		return TrackResult{TrackID: id, Status: StatusFailed, Reason: "library tracks cannot be downloaded"}
	}
	if track.Status == StatusDownloaded {
		return TrackResult{TrackID: id, Status: StatusDownloaded, Reason: "already downloaded"}
	}

	if err := o.transition(ctx, id, func(t *Track) {
		t.Status = StatusDownloading
		t.FailureReason = ""
	}); err != nil {
		return TrackResult{TrackID: id, Status: StatusFailed, Reason: fmt.Sprintf("marking track downloading: %s", err)}
	}

	slog.Info("downloading", "track", track.String(), "id", id)

	var path string
	var dlErr error
	for attempt := 0; ; attempt++ {
		path, dlErr = o.downloader.Download(ctx, track)
		o.delay.observe(dlErr == nil)

		if dlErr == nil || !isTransient(dlErr) || attempt >= o.maxRetries || ctx.Err() != nil {
			break
		}

		slog.Warn("transient download failure, retrying", "track", track.String(), "error", dlErr)
		if !o.pause(ctx) {
			break
		}
	}

	if dlErr != nil {
		reason := dlErr.Error()
		if err := o.transition(ctx, id, func(t *Track) {
			t.Status = StatusFailed
			t.FailureReason = reason
		}); err != nil {
			slog.Error("persisting failed status", "id", id, "error", err)
		}
		return TrackResult{TrackID: id, Status: StatusFailed, Reason: reason}
	}

	if err := o.transition(ctx, id, func(t *Track) {
		t.Status = StatusDownloaded
		t.RelativePath = path
		t.FailureReason = ""
	}); err != nil {
		slog.Error("persisting downloaded status", "id", id, "error", err)
	}

	track.Status = StatusDownloaded
	track.RelativePath = path
	if err := o.store.promoteToLibrary(ctx, track); err != nil {
		slog.Error("promoting track to library", "id", id, "error", err)
	}

	return TrackResult{TrackID: id, Status: StatusDownloaded}
}

// transition re-reads the track under its key lock and applies the
// status change, so an overlapping writer never gets overwritten
// blindly.
func (o *orchestrator) transition(ctx context.Context, id uint64, apply func(*Track)) error {
	track, err := o.store.getTrack(ctx, id)
	if err != nil {
		return err
	}
	if track == nil {
		return fmt.Errorf("track %d not found", id)
	}

	return o.store.withTrackKey(track.ArtistKey, track.TrackKey, func() error {
		current, err := o.store.getTrack(ctx, id)
		if err != nil {
			return err
		}
		if current == nil {
			return fmt.Errorf("track %d not found", id)
		}
		apply(current)
		return o.store.saveTrack(ctx, current)
	})
}
