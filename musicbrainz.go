package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const (
	musicbrainzAPIURL    = "https://musicbrainz.org/ws/2"
	musicbrainzUserAgent = "musicserver/1.0 (https://github.com/musicserver)"
)

// musicbrainzClient implements TagClient against the MusicBrainz ws/2
// API. Call pacing is owned by the genre resolver, so independent
// resolver runs keep independent rate contexts.
type musicbrainzClient struct {
	client    *http.Client
	baseURL   string
	userAgent string
}

func newMusicBrainzClient() *musicbrainzClient {
	return &musicbrainzClient{
		client:    &http.Client{Timeout: 30 * time.Second},
		baseURL:   musicbrainzAPIURL,
		userAgent: musicbrainzUserAgent,
	}
}

func (c *musicbrainzClient) Name() string {
	return "musicbrainz"
}

type mbRecordingSearch struct {
	Recordings []struct {
		ID           string `json:"id"`
		ArtistCredit []struct {
			Artist struct {
				ID string `json:"id"`
			} `json:"artist"`
		} `json:"artist-credit"`
		Releases []struct {
			ReleaseGroup struct {
				ID string `json:"id"`
			} `json:"release-group"`
		} `json:"releases"`
	} `json:"recordings"`
}

type mbTag struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

type mbTaggedEntity struct {
	Tags []mbTag `json:"tags"`
}

func (c *musicbrainzClient) SearchRecording(ctx context.Context, artist, track string) (*RecordingRef, error) {
	params := url.Values{}
	params.Set("query", fmt.Sprintf(`artist:"%s" AND recording:"%s"`, artist, track))
	params.Set("limit", "1")
	params.Set("fmt", "json")

	var result mbRecordingSearch
	if err := c.get(ctx, "/recording?"+params.Encode(), &result); err != nil {
		return nil, err
	}

	if len(result.Recordings) == 0 {
		return nil, ErrArtistNotFound
	}

	recording := result.Recordings[0]
	ref := &RecordingRef{RecordingID: recording.ID}
	if len(recording.ArtistCredit) > 0 {
		ref.ArtistID = recording.ArtistCredit[0].Artist.ID
	}
	if len(recording.Releases) > 0 {
		ref.ReleaseGroupID = recording.Releases[0].ReleaseGroup.ID
	}
	return ref, nil
}

func (c *musicbrainzClient) GetTags(ctx context.Context, entityID string, granularity TagGranularity) ([]string, error) {
	var entity string
	switch granularity {
	case GranularityRecording:
		entity = "recording"
	case GranularityReleaseGroup:
		entity = "release-group"
	case GranularityArtist:
		entity = "artist"
	default:
		return nil, fmt.Errorf("unknown tag granularity %q", granularity)
	}

	params := url.Values{}
	params.Set("inc", "tags")
	params.Set("fmt", "json")

	var result mbTaggedEntity
	if err := c.get(ctx, "/"+entity+"/"+entityID+"?"+params.Encode(), &result); err != nil {
		return nil, err
	}

	tags := make([]string, 0, len(result.Tags))
	for _, tag := range result.Tags {
		if tag.Name != "" {
			tags = append(tags, tag.Name)
		}
	}
	return tags, nil
}

func (c *musicbrainzClient) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: musicbrainz returned status %d", ErrProviderUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrProviderUnavailable, err)
	}

	return json.Unmarshal(body, out)
}
