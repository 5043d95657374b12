package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	spotifyAPIURL   = "https://api.spotify.com/v1"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
)

// spotifyProvider implements MetadataProvider against the Spotify Web
// API using the client-credentials flow. Catalogue pages walk the
// artist's albums by offset; each page expands into the album tracks.
type spotifyProvider struct {
	client       *http.Client
	baseURL      string
	tokenURL     string
	clientID     string
	clientSecret string
	pageSize     int
	pace         *pacer

	token        string
	tokenExpires time.Time
}

func newSpotifyProvider(clientID, clientSecret string, pageSize int) *spotifyProvider {
	return &spotifyProvider{
		client:       &http.Client{Timeout: 30 * time.Second},
		baseURL:      spotifyAPIURL,
		tokenURL:     spotifyTokenURL,
		clientID:     clientID,
		clientSecret: clientSecret,
		pageSize:     pageSize,
		pace:         newPacer(200 * time.Millisecond),
	}
}

func (p *spotifyProvider) Name() string {
	return "spotify"
}

func (p *spotifyProvider) Configured() bool {
	return p.clientID != "" && p.clientSecret != ""
}

type spotifyTokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

type spotifyArtistSearch struct {
	Artists struct {
		Items []struct {
			ID     string   `json:"id"`
			Name   string   `json:"name"`
			Genres []string `json:"genres"`
		} `json:"items"`
	} `json:"artists"`
}

type spotifyAlbumPage struct {
	Items []struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"items"`
}

type spotifyTrackPage struct {
	Items []struct {
		ID      string `json:"id"`
		Name    string `json:"name"`
		Artists []struct {
			Name string `json:"name"`
		} `json:"artists"`
	} `json:"items"`
}

func (p *spotifyProvider) SearchArtist(ctx context.Context, name string) (*ArtistHandle, error) {
	params := url.Values{}
	params.Set("q", "artist:"+name)
	params.Set("type", "artist")
	params.Set("limit", "1")

	var result spotifyArtistSearch
	if err := p.get(ctx, "/search?"+params.Encode(), &result); err != nil {
		return nil, err
	}

	if len(result.Artists.Items) == 0 {
		return nil, ErrArtistNotFound
	}

	item := result.Artists.Items[0]
	return &ArtistHandle{ID: item.ID, Name: item.Name, Provider: p.Name()}, nil
}

// ListTracks pages over the artist's albums and singles. The page
// token is the album offset of the next page.
func (p *spotifyProvider) ListTracks(ctx context.Context, handle *ArtistHandle, pageToken string) ([]RawTrack, string, error) {
	offset := 0
	if pageToken != "" {
		var err error
		offset, err = strconv.Atoi(pageToken)
		if err != nil {
			return nil, "", fmt.Errorf("invalid page token %q: %w", pageToken, err)
		}
	}

	params := url.Values{}
	params.Set("include_groups", "album,single")
	params.Set("limit", strconv.Itoa(p.pageSize))
	params.Set("offset", strconv.Itoa(offset))

	var albums spotifyAlbumPage
	if err := p.get(ctx, "/artists/"+handle.ID+"/albums?"+params.Encode(), &albums); err != nil {
		return nil, "", err
	}

	var tracks []RawTrack
	for _, album := range albums.Items {
		trackParams := url.Values{}
		trackParams.Set("limit", "50")

		var page spotifyTrackPage
		if err := p.get(ctx, "/albums/"+album.ID+"/tracks?"+trackParams.Encode(), &page); err != nil {
			return nil, "", err
		}

		for _, item := range page.Items {
			tracks = append(tracks, RawTrack{
				ArtistName: handle.Name,
				TrackName:  item.Name,
				Album:      album.Name,
				ExternalID: item.ID,
			})
		}
	}

	next := ""
	if len(albums.Items) == p.pageSize {
		next = strconv.Itoa(offset + p.pageSize)
	}
	return tracks, next, nil
}

func (p *spotifyProvider) get(ctx context.Context, path string, out interface{}) error {
	if err := p.pace.wait(ctx); err != nil {
		return err
	}

	token, err := p.accessToken(ctx)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: spotify returned status %d", ErrProviderUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrProviderUnavailable, err)
	}

	return json.Unmarshal(body, out)
}

func (p *spotifyProvider) accessToken(ctx context.Context) (string, error) {
	if p.token != "" && time.Now().Before(p.tokenExpires) {
		return p.token, nil
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(p.clientID, p.clientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: token endpoint returned status %d", ErrProviderUnavailable, resp.StatusCode)
	}

	var token spotifyTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return "", fmt.Errorf("%w: %s", ErrProviderUnavailable, err)
	}

	// Refresh a minute early, but never turn a short-lived token into
	// an already-expired one.
	ttl := time.Duration(token.ExpiresIn) * time.Second
	if ttl > time.Minute {
		ttl -= time.Minute
	}

	p.token = token.AccessToken
	p.tokenExpires = time.Now().Add(ttl)
	return p.token, nil
}
