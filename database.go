package main

import (
	"context"
	"errors"
	"sync"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type database struct {
	db *gorm.DB

	// One writer per track key at a time. Serializing the write path
	// keeps the dedup invariant intact when the aggregator and the
	// orchestrator touch the same key.
	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

func newDatabase(path string) (*database, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	err = db.AutoMigrate(&Track{})
	if err != nil {
		return nil, err
	}

	return &database{
		db:    db,
		locks: map[string]*sync.Mutex{},
	}, nil
}

func (d *database) Close() error {
	return nil
}

// withTrackKey runs fn while holding the write lock for one track key.
// Later writers re-read inside fn instead of overwriting blindly.
func (d *database) withTrackKey(artistKey, trackKey string, fn func() error) error {
	key := artistKey + "\x00" + trackKey

	d.locksMu.Lock()
	mu, ok := d.locks[key]
	if !ok {
		mu = &sync.Mutex{}
		d.locks[key] = mu
	}
	d.locksMu.Unlock()

	mu.Lock()
	defer mu.Unlock()
	return fn()
}

// findByKey returns the record with the given normalized key in one
// identity set, or nil when absent.
func (d *database) findByKey(ctx context.Context, artistKey, trackKey string, library bool) (*Track, error) {
	var track Track
	err := d.db.WithContext(ctx).
		Where("artist_key = ? AND track_key = ? AND library = ?", artistKey, trackKey, library).
		First(&track).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	return &track, nil
}

func (d *database) saveTrack(ctx context.Context, track *Track) error {
	return d.db.WithContext(ctx).Save(track).Error
}

func (d *database) createTrack(ctx context.Context, track *Track) error {
	return d.db.WithContext(ctx).Create(track).Error
}

func (d *database) getTrack(ctx context.Context, id uint64) (*Track, error) {
	var track Track
	err := d.db.WithContext(ctx).First(&track, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	return &track, nil
}

func (d *database) listByArtist(ctx context.Context, artistKey string) ([]*Track, error) {
	var tracks []*Track
	return tracks, d.db.WithContext(ctx).
		Where("artist_key = ?", artistKey).
		Order("track_key").
		Find(&tracks).Error
}

// listArtists returns every distinct artist name across both identity
// sets, with collaboration names split into individual artists.
func (d *database) listArtists(ctx context.Context) ([]string, error) {
	var names []string
	err := d.db.WithContext(ctx).Model(&Track{}).
		Where("artist_name <> ''").
		Distinct("artist_name").
		Order("artist_name").
		Pluck("artist_name", &names).Error
	if err != nil {
		return nil, err
	}

	seen := map[string]bool{}
	var artists []string
	for _, name := range names {
		for _, artist := range splitArtists(name) {
			key := normalizeKey(artist)
			if !seen[key] {
				seen[key] = true
				artists = append(artists, artist)
			}
		}
	}
	return artists, nil
}

type trackFilter struct {
	Artist string
	Genre  string
	Search string
	Offset int
	Limit  int
}

func (d *database) libraryQuery(ctx context.Context, filter trackFilter) *gorm.DB {
	q := d.db.WithContext(ctx).Model(&Track{}).
		Where("library = ? AND status = ?", true, StatusInLibrary)

	if filter.Artist != "" {
		q = q.Where("artist_key = ?", normalizeKey(filter.Artist))
	}
	if filter.Genre != "" {
		q = q.Where("genre = ?", filter.Genre)
	}
	if filter.Search != "" {
		like := "%" + filter.Search + "%"
		q = q.Where("artist_name LIKE ? OR track_name LIKE ?", like, like)
	}
	return q
}

func (d *database) countLibraryTracks(ctx context.Context, filter trackFilter) (int64, error) {
	var count int64
	return count, d.libraryQuery(ctx, filter).Count(&count).Error
}

func (d *database) listLibraryTracks(ctx context.Context, filter trackFilter) ([]*Track, error) {
	var tracks []*Track
	return tracks, d.libraryQuery(ctx, filter).
		Order("artist_name, track_name").
		Offset(filter.Offset).Limit(filter.Limit).
		Find(&tracks).Error
}

func (d *database) listRemovedTracks(ctx context.Context, offset, limit int) ([]*Track, int64, error) {
	q := d.db.WithContext(ctx).Model(&Track{}).Where("status = ?", StatusRemoved)

	var count int64
	if err := q.Count(&count).Error; err != nil {
		return nil, 0, err
	}

	var tracks []*Track
	err := q.Order("removed_at DESC, artist_name, track_name").
		Offset(offset).Limit(limit).
		Find(&tracks).Error
	return tracks, count, err
}

func (d *database) listLibraryGenres(ctx context.Context) ([]string, error) {
	var genres []string
	return genres, d.db.WithContext(ctx).Model(&Track{}).
		Where("library = ? AND status = ? AND genre <> ''", true, StatusInLibrary).
		Distinct("genre").
		Order("genre").
		Pluck("genre", &genres).Error
}

func (d *database) listLibraryArtists(ctx context.Context) ([]string, error) {
	var artists []string
	return artists, d.db.WithContext(ctx).Model(&Track{}).
		Where("library = ? AND status = ? AND artist_name <> ''", true, StatusInLibrary).
		Distinct("artist_name").
		Order("artist_name").
		Pluck("artist_name", &artists).Error
}

// removeFromLibrary soft-deletes a library track. Play statistics stay
// on the record so a restore brings them back untouched.
func (d *database) removeFromLibrary(ctx context.Context, id uint64) (*Track, error) {
	track, err := d.getTrack(ctx, id)
	if err != nil || track == nil {
		return track, err
	}

	return track, d.withTrackKey(track.ArtistKey, track.TrackKey, func() error {
		track, err = d.getTrack(ctx, id)
		if err != nil || track == nil {
			return err
		}
		if !track.Library || track.Status != StatusInLibrary {
			return nil
		}

		now := time.Now()
		track.Status = StatusRemoved
		track.RemovedAt = &now
		return d.saveTrack(ctx, track)
	})
}

// restoreToLibrary reverses a removal. No-op when the track is not
// currently removed.
func (d *database) restoreToLibrary(ctx context.Context, id uint64) (*Track, error) {
	track, err := d.getTrack(ctx, id)
	if err != nil || track == nil {
		return track, err
	}

	return track, d.withTrackKey(track.ArtistKey, track.TrackKey, func() error {
		track, err = d.getTrack(ctx, id)
		if err != nil || track == nil {
			return err
		}
		if track.Status != StatusRemoved {
			return nil
		}

		track.Status = StatusInLibrary
		track.RemovedAt = nil
		return d.saveTrack(ctx, track)
	})
}

func (d *database) restoreAllTracks(ctx context.Context) (int64, error) {
	result := d.db.WithContext(ctx).Model(&Track{}).
		Where("status = ?", StatusRemoved).
		Updates(map[string]interface{}{
			"status":     StatusInLibrary,
			"removed_at": nil,
		})
	return result.RowsAffected, result.Error
}

// promoteToLibrary inserts a library-set record for a downloaded track
// unless one with the same key already exists. The recommended-set
// record keeps its own identity.
func (d *database) promoteToLibrary(ctx context.Context, track *Track) error {
	return d.withTrackKey(track.ArtistKey, track.TrackKey, func() error {
		existing, err := d.findByKey(ctx, track.ArtistKey, track.TrackKey, true)
		if err != nil {
			return err
		}
		if existing != nil {
			return nil
		}

		return d.createTrack(ctx, &Track{
			ArtistName:     track.ArtistName,
			TrackName:      track.TrackName,
			Album:          track.Album,
			Genre:          track.Genre,
			ArtistKey:      track.ArtistKey,
			TrackKey:       track.TrackKey,
			Library:        true,
			SourceProvider: track.SourceProvider,
			ExternalID:     track.ExternalID,
			Status:         StatusInLibrary,
			RelativePath:   track.RelativePath,
		})
	})
}

func (d *database) downloadStats(ctx context.Context) (*DownloadStats, error) {
	count := func(query string, args ...interface{}) (int64, error) {
		var n int64
		err := d.db.WithContext(ctx).Model(&Track{}).Where(query, args...).Count(&n).Error
		return n, err
	}

	stats := &DownloadStats{}
	var err error
	if stats.TotalTracks, err = count("library = ?", false); err != nil {
		return nil, err
	}
	if stats.Downloaded, err = count("library = ? AND status = ?", false, StatusDownloaded); err != nil {
		return nil, err
	}
	if stats.Failed, err = count("library = ? AND status = ?", false, StatusFailed); err != nil {
		return nil, err
	}
	if stats.Pending, err = count("library = ? AND status = ?", false, StatusRecommended); err != nil {
		return nil, err
	}
	return stats, nil
}
