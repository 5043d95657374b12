package main

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyCommandFailure(t *testing.T) {
	cases := []struct {
		name   string
		stderr string
		kind   failureKind
	}{
		{"video unavailable", "ERROR: Video unavailable", failurePermanent},
		{"no results", "ERROR: ytsearch1: no results found", failurePermanent},
		{"geo restricted", "ERROR: This video is geo restricted", failurePermanent},
		{"copyright", "ERROR: removed due to a copyright claim", failurePermanent},
		{"network error", "ERROR: unable to download webpage: timed out", failureTransient},
		{"rate limited", "HTTP Error 429: Too Many Requests", failureTransient},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := classifyCommandFailure(tc.stderr, errors.New("exit status 1"))
			assert.Equal(t, tc.kind, err.Kind)
		})
	}
}

func TestClassifyCommandFailureEmptyStderr(t *testing.T) {
	err := classifyCommandFailure("", errors.New("exit status 1"))
	assert.Equal(t, failureTransient, err.Kind)
	assert.Equal(t, "exit status 1", err.Reason)
}

func TestClassifyCommandFailureReasonIsFirstLine(t *testing.T) {
	err := classifyCommandFailure("\nWARNING: something\nERROR: more", errors.New("exit status 1"))
	assert.Equal(t, "WARNING: something", err.Reason)
}

func TestIsTransient(t *testing.T) {
	assert.True(t, isTransient(transientFailure("timeout")))
	assert.False(t, isTransient(permanentFailure("video unavailable")))
	assert.False(t, isTransient(errors.New("plain error")))
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "Dear Mama", sanitizeFilename("Dear Mama"))
	assert.Equal(t, "AMFM", sanitizeFilename("AM/FM"))
	assert.Equal(t, "WhoWhatWhere", sanitizeFilename(`Who?What*Where<>|`))
	assert.Equal(t, "intro", sanitizeFilename(`  "intro" `))
}
