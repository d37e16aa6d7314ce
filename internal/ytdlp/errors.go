// SPDX-License-Identifier: MIT

package ytdlp

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors the HTTP layer maps onto response codes.
var (
	// ErrInvalidVideoID rejects IDs that do not look like YouTube video IDs.
	ErrInvalidVideoID = errors.New("invalid video id")

	// ErrProbeFailed wraps any extraction failure (subprocess, remote, parse).
	ErrProbeFailed = errors.New("probe failed")
)

// stderrTailLimit bounds how much subprocess stderr rides on error messages.
const stderrTailLimit = 220

// networkFailureFragments identify transient network trouble in yt-dlp
// stderr. Matching is case-insensitive on the full stderr text. The list may
// grow but entries must never be removed.
var networkFailureFragments = []string{
	"timed out",
	"temporarily unavailable",
	"temporary failure",
	"connection refused",
	"network is unreachable",
	"cannot assign requested address",
	"failed to resolve",
	"tlsv1 alert",
	"proxy error",
	"transporterror",
}

// isNetworkFailure reports whether stderr indicates a transient network
// problem worth one retry with the other address family.
func isNetworkFailure(stderr string) bool {
	low := strings.ToLower(stderr)
	for _, frag := range networkFailureFragments {
		if strings.Contains(low, frag) {
			return true
		}
	}
	return false
}

// tail returns at most stderrTailLimit trailing characters of s with
// whitespace collapsed, for attaching to error messages.
func tail(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Join(strings.Fields(s), " ")
	if len(s) > stderrTailLimit {
		s = s[len(s)-stderrTailLimit:]
	}
	return s
}

// RunError carries the stderr tail of a failed yt-dlp invocation.
type RunError struct {
	Stderr string // full captured stderr, for classification
	Err    error
}

func (e *RunError) Error() string {
	t := tail(e.Stderr)
	if t == "" {
		return fmt.Sprintf("yt-dlp: %v", e.Err)
	}
	return fmt.Sprintf("yt-dlp: %v: %s", e.Err, t)
}

func (e *RunError) Unwrap() error { return e.Err }
