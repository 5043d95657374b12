package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSpotify(t *testing.T, api http.HandlerFunc) (*spotifyProvider, *int) {
	t.Helper()

	tokenRequests := 0
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenRequests++

		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "client-id", user)
		assert.Equal(t, "client-secret", pass)

		json.NewEncoder(w).Encode(spotifyTokenResponse{
			AccessToken: "test-token",
			ExpiresIn:   3600,
		})
	}))
	t.Cleanup(tokenServer.Close)

	apiServer := httptest.NewServer(api)
	t.Cleanup(apiServer.Close)

	p := newSpotifyProvider("client-id", "client-secret", 2)
	p.baseURL = apiServer.URL
	p.tokenURL = tokenServer.URL
	p.pace = newPacer(0)
	return p, &tokenRequests
}

func TestSpotifySearchArtist(t *testing.T) {
	p, tokenRequests := newTestSpotify(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		assert.Equal(t, "artist:2Pac", r.URL.Query().Get("q"))

		w.Write([]byte(`{"artists":{"items":[{"id":"sp-1","name":"2Pac"}]}}`))
	})

	handle, err := p.SearchArtist(context.Background(), "2Pac")
	require.NoError(t, err)
	assert.Equal(t, "sp-1", handle.ID)
	assert.Equal(t, "2Pac", handle.Name)
	assert.Equal(t, "spotify", handle.Provider)
	assert.Equal(t, 1, *tokenRequests)
}

func TestSpotifySearchArtistNotFound(t *testing.T) {
	p, _ := newTestSpotify(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"artists":{"items":[]}}`))
	})

	_, err := p.SearchArtist(context.Background(), "Nobody")
	require.ErrorIs(t, err, ErrArtistNotFound)
}

func TestSpotifyListTracks(t *testing.T) {
	p, tokenRequests := newTestSpotify(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/artists/sp-1/albums":
			assert.Equal(t, "0", r.URL.Query().Get("offset"))
			assert.Equal(t, "2", r.URL.Query().Get("limit"))
			w.Write([]byte(`{"items":[{"id":"al-1","name":"Me Against the World"},{"id":"al-2","name":"All Eyez on Me"}]}`))
		case "/albums/al-1/tracks":
			w.Write([]byte(`{"items":[{"id":"tr-1","name":"Dear Mama"}]}`))
		case "/albums/al-2/tracks":
			w.Write([]byte(`{"items":[{"id":"tr-2","name":"California Love"}]}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	})

	handle := &ArtistHandle{ID: "sp-1", Name: "2Pac", Provider: "spotify"}
	tracks, next, err := p.ListTracks(context.Background(), handle, "")
	require.NoError(t, err)

	require.Len(t, tracks, 2)
	assert.Equal(t, "Dear Mama", tracks[0].TrackName)
	assert.Equal(t, "Me Against the World", tracks[0].Album)
	assert.Equal(t, "2Pac", tracks[0].ArtistName)
	assert.Equal(t, "tr-1", tracks[0].ExternalID)

	// A full album page means another page may follow.
	assert.Equal(t, "2", next)

	// The access token is fetched once and cached.
	assert.Equal(t, 1, *tokenRequests)
}

func TestSpotifyListTracksLastPage(t *testing.T) {
	p, _ := newTestSpotify(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/artists/sp-1/albums":
			assert.Equal(t, "2", r.URL.Query().Get("offset"))
			w.Write([]byte(`{"items":[{"id":"al-3","name":"Greatest Hits"}]}`))
		case "/albums/al-3/tracks":
			w.Write([]byte(`{"items":[{"id":"tr-3","name":"Changes"}]}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	})

	handle := &ArtistHandle{ID: "sp-1", Name: "2Pac", Provider: "spotify"}
	tracks, next, err := p.ListTracks(context.Background(), handle, "2")
	require.NoError(t, err)
	assert.Len(t, tracks, 1)
	assert.Empty(t, next)
}

func TestSpotifyServerErrorIsProviderUnavailable(t *testing.T) {
	p, _ := newTestSpotify(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := p.SearchArtist(context.Background(), "2Pac")
	require.ErrorIs(t, err, ErrProviderUnavailable)
}

func TestSpotifyShortLivedTokenIsCached(t *testing.T) {
	tokenRequests := 0
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenRequests++
		json.NewEncoder(w).Encode(spotifyTokenResponse{
			AccessToken: "short-token",
			ExpiresIn:   30,
		})
	}))
	t.Cleanup(tokenServer.Close)

	apiServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"artists":{"items":[{"id":"sp-1","name":"2Pac"}]}}`))
	}))
	t.Cleanup(apiServer.Close)

	p := newSpotifyProvider("client-id", "client-secret", 2)
	p.baseURL = apiServer.URL
	p.tokenURL = tokenServer.URL
	p.pace = newPacer(0)

	// A token living less than the refresh margin is still usable for
	// its whole lifetime, not re-fetched on every request.
	_, err := p.SearchArtist(context.Background(), "2Pac")
	require.NoError(t, err)
	_, err = p.SearchArtist(context.Background(), "2Pac")
	require.NoError(t, err)

	assert.Equal(t, 1, tokenRequests)
}

func TestSpotifyConfigured(t *testing.T) {
	assert.True(t, newSpotifyProvider("id", "secret", 50).Configured())
	assert.False(t, newSpotifyProvider("", "secret", 50).Configured())
	assert.False(t, newSpotifyProvider("id", "", 50).Configured())
}
