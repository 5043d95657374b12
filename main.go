package main

import (
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
)

func main() {
	err := godotenv.Load()
	if os.IsNotExist(err) {
		log.Printf("no .env file found, skipping")
	} else if err != nil {
		log.Fatalf("failed loading .env file: %s", err)
	}

	app := cli.NewApp()
	app.Name = "music-server"
	app.Usage = "Discography ingestion and batch download server."
	app.Flags = []cli.Flag{
		&cli.IntFlag{
			Name:    "port",
			Value:   8080,
			Usage:   "port to run server on",
			EnvVars: []string{"MUSIC_PORT"},
		},
		&cli.StringFlag{
			Name:     "database-path",
			Usage:    "path to the sqlite database file",
			EnvVars:  []string{"MUSIC_DB_PATH"},
			Required: true,
		},
		&cli.StringFlag{
			Name:     "download-dir",
			Usage:    "directory downloaded tracks are stored under",
			EnvVars:  []string{"MUSIC_DOWNLOAD_DIR"},
			Required: true,
		},
		&cli.StringFlag{
			Name:    "downloader-command",
			Value:   "yt-dlp",
			Usage:   "external command used to download tracks",
			EnvVars: []string{"MUSIC_DOWNLOADER_CMD"},
		},
		&cli.StringFlag{
			Name:     "username",
			Usage:    "login username",
			EnvVars:  []string{"MUSIC_USERNAME"},
			Required: true,
		},
		&cli.StringFlag{
			Name:     "password-hash",
			Usage:    "bcrypt hash of the login password",
			EnvVars:  []string{"MUSIC_PASSWORD_HASH"},
			Required: true,
		},
		&cli.StringFlag{
			Name:     "jwt-secret",
			Usage:    "secret used to sign session tokens",
			EnvVars:  []string{"MUSIC_JWT_SECRET"},
			Required: true,
		},
		&cli.StringFlag{
			Name:    "auth-token",
			Usage:   "http api authentication token",
			EnvVars: []string{"MUSIC_AUTH_TOKEN"},
		},
		&cli.StringSliceFlag{
			Name:    "provider",
			Value:   cli.NewStringSlice("spotify", "deezer"),
			Usage:   "metadata providers in priority order",
			EnvVars: []string{"MUSIC_PROVIDERS"},
		},
		&cli.StringFlag{
			Name:    "spotify-client-id",
			Usage:   "spotify api client id",
			EnvVars: []string{"SPOTIFY_CLIENT_ID"},
		},
		&cli.StringFlag{
			Name:    "spotify-client-secret",
			Usage:   "spotify api client secret",
			EnvVars: []string{"SPOTIFY_CLIENT_SECRET"},
		},
		&cli.IntFlag{
			Name:    "page-size",
			Value:   50,
			Usage:   "catalogue page size requested from providers",
			EnvVars: []string{"MUSIC_PAGE_SIZE"},
		},
		&cli.DurationFlag{
			Name:    "min-delay",
			Value:   defaultDelayFloor,
			Usage:   "minimum delay between downloads",
			EnvVars: []string{"MUSIC_MIN_DELAY"},
		},
		&cli.DurationFlag{
			Name:    "max-delay",
			Value:   defaultDelayCeiling,
			Usage:   "maximum delay between downloads",
			EnvVars: []string{"MUSIC_MAX_DELAY"},
		},
		&cli.Float64Flag{
			Name:    "backoff-threshold",
			Value:   defaultFailureThreshold,
			Usage:   "failure rate that triggers download backoff",
			EnvVars: []string{"MUSIC_BACKOFF_THRESHOLD"},
		},
		&cli.IntFlag{
			Name:    "retry-count",
			Value:   defaultAutoRetries,
			Usage:   "automatic retries for transient download failures",
			EnvVars: []string{"MUSIC_RETRY_COUNT"},
		},
		&cli.DurationFlag{
			Name:    "tag-delay",
			Value:   defaultTagDelay,
			Usage:   "minimum delay between tag provider calls",
			EnvVars: []string{"MUSIC_TAG_DELAY"},
		},
		&cli.IntFlag{
			Name:    "load-concurrency",
			Value:   1,
			Usage:   "concurrent artists during a bulk discography load",
			EnvVars: []string{"MUSIC_LOAD_CONCURRENCY"},
		},
	}
	app.Action = func(ctx *cli.Context) error {
		db, err := newDatabase(ctx.String("database-path"))
		if err != nil {
			return err
		}
		defer db.Close()

		cfg := &config{
			Username:          ctx.String("username"),
			PasswordHash:      ctx.String("password-hash"),
			JWTSecret:         ctx.String("jwt-secret"),
			APIToken:          ctx.String("auth-token"),
			DownloadDir:       ctx.String("download-dir"),
			DownloaderCommand: ctx.String("downloader-command"),
			ProviderPriority:  ctx.StringSlice("provider"),
			SpotifyClientID:   ctx.String("spotify-client-id"),
			SpotifySecret:     ctx.String("spotify-client-secret"),
			PageSize:          ctx.Int("page-size"),
			MinDelay:          ctx.Duration("min-delay"),
			MaxDelay:          ctx.Duration("max-delay"),
			BackoffThreshold:  ctx.Float64("backoff-threshold"),
			RetryCount:        ctx.Int("retry-count"),
			TagDelay:          ctx.Duration("tag-delay"),
			LoadConcurrency:   ctx.Int("load-concurrency"),
		}

		handler, err := newServer(db, cfg)
		if err != nil {
			return err
		}

		// Start HTTP handler.
		quit := make(chan os.Signal, 2)
		var wg sync.WaitGroup
		wg.Add(1)

		server := &http.Server{
			Addr:              ":" + strconv.Itoa(ctx.Int("port")),
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			defer wg.Done()

			slog.Info("serving", "address", server.Addr)

			err := server.ListenAndServe()
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				fmt.Fprintf(os.Stderr, "failed to start server: %s\n", err)
				quit <- os.Interrupt
			}
		}()

		signal.Notify(
			quit,
			syscall.SIGINT,
			syscall.SIGTERM,
			syscall.SIGHUP,
		)
		<-quit

		slog.Info("Server shutting down...")

		go server.Close()

		wg.Wait()
		return nil
	}

	err = app.Run(os.Args)
	if err != nil {
		log.Fatal(err)
	}
}
