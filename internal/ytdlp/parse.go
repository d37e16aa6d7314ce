// SPDX-License-Identifier: MIT

package ytdlp

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
)

// jsonBlobRe extracts the widest object or array from noisy output. yt-dlp
// occasionally prints warnings around the JSON despite --no-warnings.
var jsonBlobRe = regexp.MustCompile(`(?s)(\{.*\}|\[.*\])`)

// ParseProbeOutput decodes yt-dlp stdout into a Probe. It tolerates noise
// before and after the JSON document and returns the exact byte range that
// was parsed, so cache round trips are byte-stable.
func ParseProbeOutput(out []byte) (*Probe, []byte, error) {
	candidate := bytes.TrimSpace(out)
	if len(candidate) == 0 {
		return nil, nil, fmt.Errorf("%w: empty output", ErrProbeFailed)
	}

	if !json.Valid(candidate) {
		m := jsonBlobRe.Find(candidate)
		if m != nil && json.Valid(m) {
			candidate = m
		} else if o := braceSpan(candidate); o != nil && json.Valid(o) {
			// Warning lines like "[youtube] ..." derail the greedy regex;
			// the first-{ to last-} span still finds the document.
			candidate = o
		} else {
			return nil, nil, fmt.Errorf("%w: no json document in output", ErrProbeFailed)
		}
	}

	if bytes.Equal(bytes.TrimSpace(candidate), []byte("null")) {
		return nil, nil, fmt.Errorf("%w: probe returned null", ErrProbeFailed)
	}

	var p Probe
	if err := json.Unmarshal(candidate, &p); err != nil {
		return nil, nil, fmt.Errorf("%w: decode probe: %v", ErrProbeFailed, err)
	}
	return &p, candidate, nil
}

// braceSpan returns the slice from the first '{' to the last '}', or nil.
func braceSpan(b []byte) []byte {
	start := bytes.IndexByte(b, '{')
	end := bytes.LastIndexByte(b, '}')
	if start < 0 || end <= start {
		return nil
	}
	return b[start : end+1]
}
