package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const deezerAPIURL = "https://api.deezer.com"

// deezerProvider implements MetadataProvider against the public Deezer
// API. It needs no credentials, which makes it the fallback when the
// primary provider is unconfigured or comes up empty.
type deezerProvider struct {
	client   *http.Client
	baseURL  string
	pageSize int
	pace     *pacer
}

func newDeezerProvider(pageSize int) *deezerProvider {
	return &deezerProvider{
		client:   &http.Client{Timeout: 30 * time.Second},
		baseURL:  deezerAPIURL,
		pageSize: pageSize,
		pace:     newPacer(200 * time.Millisecond),
	}
}

func (p *deezerProvider) Name() string {
	return "deezer"
}

type deezerArtistSearch struct {
	Data []struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
	} `json:"data"`
}

type deezerAlbumPage struct {
	Data []struct {
		ID    int64  `json:"id"`
		Title string `json:"title"`
	} `json:"data"`
}

type deezerTrackPage struct {
	Data []struct {
		ID    int64  `json:"id"`
		Title string `json:"title"`
	} `json:"data"`
}

func (p *deezerProvider) SearchArtist(ctx context.Context, name string) (*ArtistHandle, error) {
	params := url.Values{}
	params.Set("q", name)
	params.Set("limit", "1")

	var result deezerArtistSearch
	if err := p.get(ctx, "/search/artist?"+params.Encode(), &result); err != nil {
		return nil, err
	}

	if len(result.Data) == 0 {
		return nil, ErrArtistNotFound
	}

	item := result.Data[0]
	return &ArtistHandle{
		ID:       strconv.FormatInt(item.ID, 10),
		Name:     item.Name,
		Provider: p.Name(),
	}, nil
}

// ListTracks pages over the artist's albums by index. The page token
// is the album index of the next page.
func (p *deezerProvider) ListTracks(ctx context.Context, handle *ArtistHandle, pageToken string) ([]RawTrack, string, error) {
	index := 0
	if pageToken != "" {
		var err error
		index, err = strconv.Atoi(pageToken)
		if err != nil {
			return nil, "", fmt.Errorf("invalid page token %q: %w", pageToken, err)
		}
	}

	params := url.Values{}
	params.Set("index", strconv.Itoa(index))
	params.Set("limit", strconv.Itoa(p.pageSize))

	var albums deezerAlbumPage
	if err := p.get(ctx, "/artist/"+handle.ID+"/albums?"+params.Encode(), &albums); err != nil {
		return nil, "", err
	}

	var tracks []RawTrack
	for _, album := range albums.Data {
		var page deezerTrackPage
		if err := p.get(ctx, "/album/"+strconv.FormatInt(album.ID, 10)+"/tracks", &page); err != nil {
			return nil, "", err
		}

		for _, item := range page.Data {
			tracks = append(tracks, RawTrack{
				ArtistName: handle.Name,
				TrackName:  item.Title,
				Album:      album.Title,
				ExternalID: strconv.FormatInt(item.ID, 10),
			})
		}
	}

	next := ""
	if len(albums.Data) == p.pageSize {
		next = strconv.Itoa(index + p.pageSize)
	}
	return tracks, next, nil
}

func (p *deezerProvider) get(ctx context.Context, path string, out interface{}) error {
	if err := p.pace.wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: deezer returned status %d", ErrProviderUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrProviderUnavailable, err)
	}

	return json.Unmarshal(body, out)
}
