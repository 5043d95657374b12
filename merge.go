package main

import "context"

// Merge classifications.
type mergeOutcome int

const (
	mergeNew mergeOutcome = iota
	mergeDuplicate
	mergeUpdated
)

// mergeEngine classifies a normalized track against the existing
// records for the same key, in both the recommended and library sets.
// Matching is exact normalized-key equality; near-duplicate titles
// stay distinct records.
type mergeEngine struct {
	store *database
}

func newMergeEngine(store *database) *mergeEngine {
	return &mergeEngine{store: store}
}

// Merge inserts, skips or updates the incoming track. The whole
// classify-and-write runs under the track key's write lock, so an
// overlapping writer re-reads the stored record instead of clobbering
// it.
func (m *mergeEngine) Merge(ctx context.Context, incoming *Track) (mergeOutcome, error) {
	var outcome mergeOutcome

	err := m.store.withTrackKey(incoming.ArtistKey, incoming.TrackKey, func() error {
		existing, err := m.store.findByKey(ctx, incoming.ArtistKey, incoming.TrackKey, false)
		if err != nil {
			return err
		}
		if existing == nil {
			existing, err = m.store.findByKey(ctx, incoming.ArtistKey, incoming.TrackKey, true)
			if err != nil {
				return err
			}
		}

		if existing == nil {
			outcome = mergeNew
			return m.store.createTrack(ctx, incoming)
		}

		if !applyUpdates(existing, incoming) {
			outcome = mergeDuplicate
			return nil
		}

		outcome = mergeUpdated
		return m.store.saveTrack(ctx, existing)
	})

	return outcome, err
}

// applyUpdates copies fields the stored record lacks from the incoming
// one. A populated field is never overwritten, and an empty incoming
// field never clears anything.
func applyUpdates(stored, incoming *Track) bool {
	updated := false

	if stored.Album == "" && incoming.Album != "" {
		stored.Album = incoming.Album
		updated = true
	}
	if stored.Genre == "" && incoming.Genre != "" {
		stored.Genre = incoming.Genre
		updated = true
	}
	if stored.ExternalID == "" && incoming.ExternalID != "" {
		stored.ExternalID = incoming.ExternalID
		if stored.SourceProvider == "" {
			stored.SourceProvider = incoming.SourceProvider
		}
		updated = true
	}

	return updated
}
