package main

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/jwtauth/v5"
)

type config struct {
	Username     string
	PasswordHash string
	JWTSecret    string
	APIToken     string

	DownloadDir       string
	DownloaderCommand string

	ProviderPriority []string
	SpotifyClientID  string
	SpotifySecret    string
	PageSize         int

	MinDelay         time.Duration
	MaxDelay         time.Duration
	BackoffThreshold float64
	RetryCount       int
	TagDelay         time.Duration
	LoadConcurrency  int
}

type server struct {
	db        *database
	cfg       *config
	jwtAuth   *jwtauth.JWTAuth
	providers []MetadataProvider
	tags      TagClient
}

func newServer(db *database, cfg *config) (http.Handler, error) {
	s := &server{
		db:      db,
		cfg:     cfg,
		jwtAuth: jwtauth.New("HS256", []byte(cfg.JWTSecret), nil),
		tags:    newMusicBrainzClient(),
	}

	s.providers = buildProviders(cfg)

	r := chi.NewRouter()

	r.Post("/login", s.loginPost)
	r.Get("/logout", s.logoutGet)

	r.Group(func(r chi.Router) {
		r.Use(jwtauth.Verifier(s.jwtAuth))
		r.Use(s.mustAuthenticated)

		r.Route("/api", func(r chi.Router) {
			r.Post("/discography/load", s.postLoadDiscography)
			r.Post("/discography/load-all", s.postLoadAllDiscographies)

			r.Post("/downloads/batch", s.postDownloadBatch)
			r.Get("/downloads/stats", s.getDownloadStats)

			r.Get("/tracks", s.getTracks)
			r.Get("/tracks/genres", s.getTrackGenres)
			r.Get("/tracks/artists", s.getTrackArtists)

			r.Get("/library/removed", s.getRemovedTracks)
			r.Post("/library/restore-all", s.postRestoreAllTracks)
			r.Post("/library/tracks/{id}/remove", s.postRemoveTrack)
			r.Post("/library/tracks/{id}/restore", s.postRestoreTrack)
			r.Patch("/library/tracks/{id}", s.patchTrack)
		})
	})

	return r, nil
}

// buildProviders assembles the metadata providers in configured
// priority order. Unconfigured providers are skipped, so a missing
// Spotify credential pair simply promotes the fallback.
func buildProviders(cfg *config) []MetadataProvider {
	var providers []MetadataProvider
	for _, name := range cfg.ProviderPriority {
		switch name {
		case "spotify":
			p := newSpotifyProvider(cfg.SpotifyClientID, cfg.SpotifySecret, cfg.PageSize)
			if p.Configured() {
				providers = append(providers, p)
			} else {
				slog.Info("spotify credentials missing, provider skipped")
			}
		case "deezer":
			providers = append(providers, newDeezerProvider(cfg.PageSize))
		default:
			slog.Warn("unknown provider in priority list", "provider", name)
		}
	}
	return providers
}

// newAggregator builds a fresh aggregator with its own resolver rate
// state for one API invocation.
func (s *server) newAggregator() *aggregator {
	resolver := newGenreResolver(s.tags, s.cfg.TagDelay)
	return newAggregator(s.providers, resolver, s.db, s.cfg.LoadConcurrency)
}

// newOrchestrator builds a fresh orchestrator with its own delay
// policy for one download batch.
func (s *server) newOrchestrator() *orchestrator {
	delay := newDelayPolicy(s.cfg.MinDelay, s.cfg.MaxDelay, s.cfg.BackoffThreshold)
	downloader := newExecDownloader(s.cfg.DownloaderCommand, s.cfg.DownloadDir)
	return newOrchestrator(s.db, downloader, delay, s.cfg.RetryCount)
}

func (s *server) writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		slog.Error("serving json", "error", err)
	}
}

func (s *server) writeError(w http.ResponseWriter, code int, reqErr error) {
	if code >= http.StatusInternalServerError {
		slog.Error("request failed", "error", reqErr)
	}

	s.writeJSON(w, code, map[string]interface{}{
		"error": reqErr.Error(),
	})
}

// mustAuthenticated admits requests carrying either a valid session
// token or the configured API token.
func (s *server) mustAuthenticated(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.APIToken != "" && r.Header.Get("Authorization") == "Token "+s.cfg.APIToken {
			next.ServeHTTP(w, r)
			return
		}

		if s.isLoggedIn(r) {
			next.ServeHTTP(w, r)
			return
		}

		w.WriteHeader(http.StatusUnauthorized)
	})
}
