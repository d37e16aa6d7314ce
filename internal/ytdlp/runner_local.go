// SPDX-License-Identifier: MIT

package ytdlp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"github.com/rs/zerolog"

	"github.com/jellytube/ytbridge/internal/config"
)

// probeTimeout bounds a single yt-dlp invocation.
const probeTimeout = 60 * time.Second

// Runner executes one probe and returns raw yt-dlp stdout.
type Runner interface {
	Probe(ctx context.Context, videoID string) ([]byte, error)
}

// LocalRunner invokes the yt-dlp binary as a subprocess.
type LocalRunner struct {
	cmd          string
	extraArgs    []string
	net          string
	cookies      string
	sponsorblock bool
	timeout      time.Duration
	logger       zerolog.Logger
}

// NewLocalRunner builds a subprocess runner from configuration.
func NewLocalRunner(cfg config.YTDLP, logger zerolog.Logger) *LocalRunner {
	return &LocalRunner{
		cmd:          cfg.Cmd,
		extraArgs:    cfg.ExtraArgs,
		net:          cfg.Net,
		cookies:      cfg.Cookies,
		sponsorblock: cfg.SponsorBlock,
		timeout:      probeTimeout,
		logger:       logger,
	}
}

// Probe runs yt-dlp for the video. On a network-classed failure it retries
// exactly once with the other address family, unless the operator already
// pinned a family through extra args.
func (r *LocalRunner) Probe(ctx context.Context, videoID string) ([]byte, error) {
	primary, fallback := r.familyFlags()

	out, err := r.runOnce(ctx, primary, videoID)
	if err == nil || fallback == "" {
		return out, err
	}

	var runErr *RunError
	if !errors.As(err, &runErr) {
		return nil, err
	}
	if !isNetworkFailure(runErr.Stderr) && !isNetworkFailure(runErr.Err.Error()) {
		return nil, err
	}
	if ctx.Err() != nil {
		return nil, err
	}

	r.logger.Warn().
		Str("video_id", videoID).
		Str("retry_flag", fallback).
		Msg("network failure from yt-dlp, retrying with other address family")

	return r.runOnce(ctx, fallback, videoID)
}

// familyFlags returns the address family flag for the first attempt and the
// flag for the one-shot retry ("" means no retry).
func (r *LocalRunner) familyFlags() (primary, fallback string) {
	if r.userForcedFamily() {
		return "", ""
	}
	switch r.net {
	case config.NetIPv6:
		return "--force-ipv6", "--force-ipv4"
	case config.NetAuto:
		return "--force-ipv4", "--force-ipv6"
	default:
		return "--force-ipv4", ""
	}
}

// userForcedFamily reports whether extra args already pin an address family.
func (r *LocalRunner) userForcedFamily() bool {
	for _, a := range r.extraArgs {
		if a == "--force-ipv4" || a == "--force-ipv6" {
			return true
		}
	}
	return false
}

// buildArgs assembles the yt-dlp argv for one attempt.
func (r *LocalRunner) buildArgs(familyFlag, videoID string) []string {
	args := make([]string, 0, 10+len(r.extraArgs))
	args = append(args, "-J", "--ignore-config", "--no-warnings", "--no-progress")
	if familyFlag != "" {
		args = append(args, familyFlag)
	}
	args = append(args, r.extraArgs...)
	if r.cookies != "" {
		args = append(args, "--cookies", r.cookies)
	}
	if r.sponsorblock {
		args = append(args, "--sponsorblock-mark", "all")
	}
	args = append(args, WatchURL(videoID))
	return args
}

func (r *LocalRunner) runOnce(ctx context.Context, familyFlag, videoID string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	args := r.buildArgs(familyFlag, videoID)
	cmd := exec.CommandContext(ctx, r.cmd, args...) // #nosec G204 -- binary and args come from operator config

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	r.logger.Debug().
		Str("video_id", videoID).
		Str("cmd", r.cmd).
		Strs("args", args).
		Msg("running yt-dlp")

	if err := cmd.Run(); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("timed out after %s: %w", r.timeout, err)
			return nil, &RunError{Stderr: stderr.String(), Err: err}
		}
		// yt-dlp sometimes exits non-zero while still emitting the full
		// JSON document; the exit code is observed but never overrules
		// parseable output.
		if out := bytes.TrimSpace(stdout.Bytes()); len(out) > 0 && !bytes.Equal(out, []byte("null")) {
			r.logger.Debug().Err(err).Str("video_id", videoID).Msg("yt-dlp exited non-zero with output, parsing anyway")
			return stdout.Bytes(), nil
		}
		return nil, &RunError{Stderr: stderr.String(), Err: err}
	}
	if out := bytes.TrimSpace(stdout.Bytes()); len(out) == 0 || bytes.Equal(out, []byte("null")) {
		hint := "no output"
		if isNetworkFailure(stderr.String()) {
			hint = "network error"
		}
		return nil, &RunError{Stderr: stderr.String(), Err: fmt.Errorf("returned no data (%s)", hint)}
	}
	return stdout.Bytes(), nil
}
