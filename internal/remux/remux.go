// SPDX-License-Identifier: MIT

// Package remux merges a split video/audio pair into a single fragmented
// MP4 stream by running ffmpeg in stream-copy mode.
package remux

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/exec"
	"strings"

	"github.com/rs/zerolog"

	"github.com/jellytube/ytbridge/internal/config"
	"github.com/jellytube/ytbridge/internal/headers"
	"github.com/jellytube/ytbridge/internal/metrics"
	"github.com/jellytube/ytbridge/internal/proxy"
)

// ErrBinaryMissing reports that the configured ffmpeg binary is not
// installed or not on PATH.
var ErrBinaryMissing = errors.New("ffmpeg binary not found")

// Input is one leg of the remux: a media URL plus the headers ffmpeg must
// present when fetching it.
type Input struct {
	URL    string
	Header http.Header
}

// Remuxer runs ffmpeg subprocesses.
type Remuxer struct {
	bin    string
	logger zerolog.Logger
}

// New builds a Remuxer for the configured binary.
func New(cfg config.FFmpeg, logger zerolog.Logger) *Remuxer {
	return &Remuxer{bin: cfg.Cmd, logger: logger}
}

// buildArgs assembles the ffmpeg argv. Both inputs are fetched by ffmpeg
// itself with reconnect handling; output is fragmented MP4 on stdout, which
// streams without a seekable moov atom.
func buildArgs(video, audio Input) []string {
	args := []string{
		"-loglevel", "error",
		"-nostdin",
		"-hide_banner",
	}
	for _, in := range []Input{video, audio} {
		args = append(args,
			"-reconnect", "1",
			"-reconnect_streamed", "1",
			"-reconnect_delay_max", "5",
			"-rw_timeout", "15000000",
		)
		if len(in.Header) > 0 {
			args = append(args, "-headers", headers.Flatten(in.Header))
		}
		args = append(args, "-i", in.URL)
	}
	args = append(args,
		"-c", "copy",
		"-movflags", "+frag_keyframe+empty_moov",
		"-f", "mp4",
		"pipe:1",
	)
	return args
}

// Stream remuxes the pair into w, returning the bytes delivered. The ffmpeg
// process is killed and reaped on every exit path, including client aborts
// and context cancellation.
func (r *Remuxer) Stream(ctx context.Context, w http.ResponseWriter, video, audio Input) (int64, error) {
	args := buildArgs(video, audio)
	cmd := exec.CommandContext(ctx, r.bin, args...) // #nosec G204 -- binary comes from operator config

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return 0, fmt.Errorf("ffmpeg stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return 0, fmt.Errorf("ffmpeg stderr pipe: %w", err)
	}

	r.logger.Debug().Str("bin", r.bin).Msg("starting ffmpeg remux")

	if err := cmd.Start(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return 0, ErrBinaryMissing
		}
		return 0, fmt.Errorf("start ffmpeg: %w", err)
	}

	metrics.RemuxActive.Inc()
	defer metrics.RemuxActive.Dec()

	// ffmpeg only speaks on stderr when something is wrong. The last lines
	// are kept for the error message when the process fails.
	stderrDone := make(chan string, 1)
	go func() {
		var lines []string
		sc := bufio.NewScanner(stderr)
		for sc.Scan() {
			line := sc.Text()
			r.logger.Debug().Str("line", line).Msg("ffmpeg")
			lines = append(lines, line)
			if len(lines) > 8 {
				lines = lines[1:]
			}
		}
		stderrDone <- strings.Join(lines, "; ")
	}()

	written, copyErr := proxy.Copy(w, stdout)
	metrics.AddStreamBytes("split", written)

	// The copy ends either because ffmpeg finished or because the client
	// went away. Kill unconditionally; reaping a finished process is a
	// no-op error we ignore.
	_ = cmd.Process.Kill()
	waitErr := cmd.Wait()
	errTail := <-stderrDone

	if copyErr != nil {
		if proxy.IsClientAbort(copyErr) {
			r.logger.Debug().Int64("bytes", written).Msg("client closed remux stream")
			return written, nil
		}
		return written, fmt.Errorf("remux stream: %w", copyErr)
	}
	if written == 0 && waitErr != nil && ctx.Err() == nil {
		if errTail != "" {
			return 0, fmt.Errorf("ffmpeg failed before producing output: %s", errTail)
		}
		return 0, fmt.Errorf("ffmpeg failed before producing output: %w", waitErr)
	}

	r.logger.Debug().Int64("bytes", written).Msg("remux complete")
	return written, nil
}

// Available reports whether the configured binary can be found. Used by the
// readiness and diagnostics endpoints.
func (r *Remuxer) Available() bool {
	_, err := exec.LookPath(r.bin)
	return err == nil
}
