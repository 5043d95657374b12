package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// Failure classification: transient failures are retried once within a
// batch, permanent ones are terminal immediately.
type failureKind int

const (
	failureTransient failureKind = iota
	failurePermanent
)

// downloadError carries the classification alongside the reason.
type downloadError struct {
	Kind   failureKind
	Reason string
}

func (e *downloadError) Error() string {
	return e.Reason
}

func transientFailure(reason string) *downloadError {
	return &downloadError{Kind: failureTransient, Reason: reason}
}

func permanentFailure(reason string) *downloadError {
	return &downloadError{Kind: failurePermanent, Reason: reason}
}

// isTransient reports whether err should be retried.
func isTransient(err error) bool {
	var dlErr *downloadError
	if errors.As(err, &dlErr) {
		return dlErr.Kind == failureTransient
	}
	return false
}

// Downloader retrieves an audio file for a track's identifying
// metadata and reports the path it was stored under.
type Downloader interface {
	Download(ctx context.Context, track *Track) (string, error)
}

const downloadTimeout = 5 * time.Minute

// execDownloader shells out to an external download tool (yt-dlp by
// default) that resolves "<artist> <track>" to an audio file. Files
// land under <downloadDir>/<artist>/<album>/<track>.mp3.
type execDownloader struct {
	command     string
	downloadDir string
}

func newExecDownloader(command, downloadDir string) *execDownloader {
	return &execDownloader{
		command:     command,
		downloadDir: downloadDir,
	}
}

func (d *execDownloader) Download(ctx context.Context, track *Track) (string, error) {
	artist := sanitizeFilename(track.ArtistName)
	if artist == "" {
		artist = "Unknown Artist"
	}
	album := sanitizeFilename(track.Album)
	if album == "" {
		album = "Unknown Album"
	}
	name := sanitizeFilename(track.TrackName)

	outputDir := filepath.Join(d.downloadDir, artist, album)
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", transientFailure(fmt.Sprintf("creating output directory: %s", err))
	}

	outputTemplate := filepath.Join(outputDir, name+".%(ext)s")
	query := track.ArtistName + " " + track.TrackName

	ctx, cancel := context.WithTimeout(ctx, downloadTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, d.command,
		"--extract-audio",
		"--audio-format", "mp3",
		"--audio-quality", "0",
		"--default-search", "ytsearch",
		"--output", outputTemplate,
		"--no-playlist",
		"--quiet",
		"--no-warnings",
		"ytsearch1:"+query,
	)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		if ctx.Err() != nil {
			return "", transientFailure("download timed out")
		}
		return "", classifyCommandFailure(stderr.String(), err)
	}

	target := filepath.Join(outputDir, name+".mp3")
	if _, err := os.Stat(target); err != nil {
		return "", permanentFailure("downloader produced no output file")
	}

	rel, err := filepath.Rel(d.downloadDir, target)
	if err != nil {
		rel = target
	}
	return rel, nil
}

// classifyCommandFailure maps downloader stderr output to the
// transient/permanent taxonomy. Unknown failures count as transient so
// they get their one retry.
func classifyCommandFailure(stderr string, err error) *downloadError {
	out := strings.ToLower(stderr)

	permanentMarkers := []string{
		"video unavailable",
		"not available",
		"no results",
		"not found",
		"blocked",
		"geo restrict",
		"copyright",
		"private video",
	}
	for _, marker := range permanentMarkers {
		if strings.Contains(out, marker) {
			return permanentFailure(firstStderrLine(stderr))
		}
	}

	if reason := firstStderrLine(stderr); reason != "" {
		return transientFailure(reason)
	}
	return transientFailure(err.Error())
}

func firstStderrLine(stderr string) string {
	for _, line := range strings.Split(stderr, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return ""
}

// sanitizeFilename strips the characters that are unsafe in path
// components.
func sanitizeFilename(name string) string {
	return strings.TrimSpace(strings.Map(func(r rune) rune {
		switch r {
		case '<', '>', ':', '"', '/', '\\', '|', '?', '*':
			return -1
		}
		return r
	}, name))
}
