package main

import (
	"context"
	"errors"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// aggregator drives the discography ingestion pipeline for one API
// invocation: provider fallback, sequential pagination, normalization,
// merge classification and deferred genre resolution. Each invocation
// owns its rate state; nothing is shared between concurrent runs
// except the mutex-guarded provider pacers.
type aggregator struct {
	providers   []MetadataProvider
	resolver    *genreResolver
	merger      *mergeEngine
	store       *database
	concurrency int
}

func newAggregator(providers []MetadataProvider, resolver *genreResolver, store *database, concurrency int) *aggregator {
	if concurrency < 1 {
		concurrency = 1
	}
	return &aggregator{
		providers:   providers,
		resolver:    resolver,
		merger:      newMergeEngine(store),
		store:       store,
		concurrency: concurrency,
	}
}

// LoadArtistDiscography fetches and merges one artist's full
// catalogue. Provider and fetch errors are folded into the summary
// status; the caller always gets a structured outcome.
func (a *aggregator) LoadArtistDiscography(ctx context.Context, artistName string) *DiscographySummary {
	summary := &DiscographySummary{
		ArtistName: artistName,
		Status:     AggregationNotFound,
	}

	sawProviderError := false
	var handle *ArtistHandle

	for _, provider := range a.providers {
		h, err := provider.SearchArtist(ctx, artistName)
		if err != nil {
			if errors.Is(err, ErrArtistNotFound) {
				slog.Info("artist not found", "provider", provider.Name(), "artist", artistName)
			} else {
				slog.Warn("artist search failed", "provider", provider.Name(), "artist", artistName, "error", err)
				sawProviderError = true
			}
			continue
		}

		// Counters restart per provider pass so the summary reflects
		// the classifications of the pass that succeeded.
		summary.TracksFound = 0
		summary.NewTracks = 0
		summary.Duplicates = 0
		summary.Updated = 0
		summary.Malformed = 0

		err = a.consumeCatalogue(ctx, provider, h, summary)
		if err != nil {
			slog.Warn("catalogue fetch aborted", "provider", provider.Name(), "artist", artistName, "error", err)
			sawProviderError = true
			continue
		}

		if summary.TracksFound > 0 {
			summary.Status = AggregationOK
			summary.Provider = provider.Name()
			handle = h
			break
		}
	}

	if summary.Status != AggregationOK {
		if sawProviderError {
			summary.Status = AggregationProviderError
		}
		return summary
	}

	// Genre resolution runs only after the full catalogue has been
	// merged, so resolver latency never skews the merge counts.
	if a.resolver != nil {
		a.resolveGenres(ctx, handle, summary)
	}

	return summary
}

// consumeCatalogue paginates the provider's track list sequentially,
// feeding every page through the normalizer and the merge engine. A
// page fetch error aborts this provider's pass.
func (a *aggregator) consumeCatalogue(ctx context.Context, provider MetadataProvider, handle *ArtistHandle, summary *DiscographySummary) error {
	pageToken := ""
	for {
		records, next, err := provider.ListTracks(ctx, handle, pageToken)
		if err != nil {
			return err
		}

		for _, raw := range records {
			track, err := normalizeTrack(raw, provider.Name())
			if err != nil {
				summary.Malformed++
				continue
			}
			summary.TracksFound++

			outcome, err := a.merger.Merge(ctx, track)
			if err != nil {
				return err
			}
			switch outcome {
			case mergeNew:
				summary.NewTracks++
			case mergeDuplicate:
				summary.Duplicates++
			case mergeUpdated:
				summary.Updated++
			}
		}

		if next == "" {
			return nil
		}
		pageToken = next
	}
}

// resolveGenres fills missing genres for the artist's merged tracks
// through the resolver's fallback chain. Resolution failures leave the
// genre empty; they never fail the aggregation.
func (a *aggregator) resolveGenres(ctx context.Context, handle *ArtistHandle, summary *DiscographySummary) {
	tracks, err := a.store.listByArtist(ctx, normalizeKey(handle.Name))
	if err != nil {
		slog.Warn("listing tracks for genre resolution failed", "artist", handle.Name, "error", err)
		return
	}

	for _, track := range tracks {
		if track.Genre != "" {
			if summary.ArtistGenre == "" {
				summary.ArtistGenre = track.Genre
			}
			continue
		}

		genre, err := a.resolver.ResolveGenre(ctx, track.ArtistName, track.TrackName)
		if err != nil {
			slog.Warn("genre resolution failed", "track", track.String(), "error", err)
			if ctx.Err() != nil {
				return
			}
			continue
		}
		if genre == "" {
			continue
		}

		if summary.ArtistGenre == "" {
			summary.ArtistGenre = genre
		}

		id := track.ID
		err = a.store.withTrackKey(track.ArtistKey, track.TrackKey, func() error {
			current, err := a.store.getTrack(ctx, id)
			if err != nil || current == nil {
				return err
			}
			// Genre is write-once: only ever fill an empty field.
			if current.Genre != "" {
				return nil
			}
			current.Genre = genre
			return a.store.saveTrack(ctx, current)
		})
		if err != nil {
			slog.Warn("persisting genre failed", "track", track.String(), "error", err)
		}
	}
}

// LoadAllDiscographies runs an aggregation pass for every distinct
// artist in the store, splitting collaboration names into individual
// fetches. Concurrency is bounded; the default of one worker preserves
// strictly sequential processing.
func (a *aggregator) LoadAllDiscographies(ctx context.Context) (*BulkLoadSummary, error) {
	artists, err := a.store.listArtists(ctx)
	if err != nil {
		return nil, err
	}

	summaries := make([]DiscographySummary, len(artists))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)

	for i, artist := range artists {
		i, artist := i, artist
		g.Go(func() error {
			summaries[i] = *a.LoadArtistDiscography(gctx, artist)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	bulk := &BulkLoadSummary{Summaries: summaries}
	for _, s := range summaries {
		if s.Status == AggregationOK {
			bulk.ArtistsProcessed++
			bulk.TotalNewTracks += s.NewTracks
		} else {
			bulk.ArtistsFailed++
		}
	}
	return bulk, nil
}
