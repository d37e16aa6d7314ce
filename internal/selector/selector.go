// SPDX-License-Identifier: MIT

// Package selector turns a probe's format list into a concrete playback
// plan. Selection is pure: no I/O, same probe in, same plan out.
package selector

import (
	"sort"
	"strings"

	"github.com/jellytube/ytbridge/internal/ytdlp"
)

// Kind classifies how a plan is delivered.
type Kind string

// Plan kinds.
const (
	KindMuxed Kind = "muxed"
	KindSplit Kind = "split"
	KindHLS   Kind = "hls"
	KindNone  Kind = "none"
)

// PolicyH264MP4 prefers progressive mp4, then any muxed format, then a
// split pair, then HLS. It is the default policy.
const PolicyH264MP4 = "h264_mp4"

// hlsPreferredItags are the muxed h264+aac live variants, in preference order.
var hlsPreferredItags = []string{"94", "95", "96"}

// Plan is the selected way to play a video.
type Plan struct {
	Kind        Kind
	Video       *ytdlp.Format // muxed: the single format; split: video leg
	Audio       *ytdlp.Format // split: audio leg
	ManifestURL string        // hls only
	Policy      string
	Itag        string // the requested itag, set only when it matched
}

// Select picks a plan for the probe. When itag is non-empty only an exact
// format match is considered; a miss yields a none plan and the caller
// decides whether an HLS fallback applies.
func Select(p *ytdlp.Probe, policy, itag string) Plan {
	if policy == "" {
		policy = PolicyH264MP4
	}
	candidates := p.PlayableFormats()

	if itag != "" {
		plan, _ := selectByItag(candidates, itag)
		plan.Policy = policy
		return plan
	}

	plan := selectByPolicy(candidates)
	plan.Policy = policy
	return plan
}

// DiscoverHLS finds the probe's HLS manifest if it has one, preferring the
// muxed live itags 94/95/96. The second return is the matched itag, empty
// when discovery fell through to the first HLS-shaped format.
func DiscoverHLS(p *ytdlp.Probe) (manifestURL, itag string) {
	f := pickHLS(p.PlayableFormats())
	if f == nil {
		return "", ""
	}
	return f.ManifestURL(), f.ID()
}

// selectByPolicy walks the h264_mp4 ladder.
func selectByPolicy(formats []ytdlp.Format) Plan {
	if f := bestMuxed(formats, true); f != nil {
		return Plan{Kind: KindMuxed, Video: f}
	}
	if f := bestMuxed(formats, false); f != nil {
		return Plan{Kind: KindMuxed, Video: f}
	}
	if v, a := bestSplitPair(formats); v != nil && a != nil {
		return Plan{Kind: KindSplit, Video: v, Audio: a}
	}
	if f := pickHLS(formats); f != nil {
		return Plan{Kind: KindHLS, ManifestURL: f.ManifestURL()}
	}
	return Plan{Kind: KindNone}
}

// selectByItag resolves an explicit format request. A one-legged match that
// cannot be paired yields no plan, same as a missing itag.
func selectByItag(formats []ytdlp.Format, itag string) (Plan, bool) {
	var match *ytdlp.Format
	for i := range formats {
		f := &formats[i]
		if f.ID() == itag || string(f.Itag) == itag {
			match = f
			break
		}
	}
	if match == nil {
		return Plan{Kind: KindNone}, false
	}

	switch {
	case match.IsHLS():
		return Plan{Kind: KindHLS, ManifestURL: match.ManifestURL(), Itag: itag}, true
	case match.IsMuxed():
		return Plan{Kind: KindMuxed, Video: match, Itag: itag}, true
	case match.IsVideoOnly():
		if a := bestAudioSource(formats); a != nil {
			return Plan{Kind: KindSplit, Video: match, Audio: a, Itag: itag}, true
		}
		return Plan{Kind: KindNone}, false
	case match.IsAudioOnly():
		if v := bestVideoOnly(formats); v != nil {
			return Plan{Kind: KindSplit, Video: v, Audio: match, Itag: itag}, true
		}
		return Plan{Kind: KindNone}, false
	default:
		return Plan{Kind: KindNone}, false
	}
}

// bestMuxed returns the muxed format with the highest bitrate, restricted
// to mp4 when mp4Only is set. HLS manifests never qualify.
func bestMuxed(formats []ytdlp.Format, mp4Only bool) *ytdlp.Format {
	var best *ytdlp.Format
	for i := range formats {
		f := &formats[i]
		if !f.IsMuxed() || f.IsHLS() || f.URL == "" {
			continue
		}
		if mp4Only && f.Ext != "mp4" && f.Container != "mp4" {
			continue
		}
		if best == nil || f.TBR.Or(-1) > best.TBR.Or(-1) {
			best = f
		}
	}
	return best
}

// bestSplitPair returns the best video-only leg and the best audio source,
// both with direct URLs.
func bestSplitPair(formats []ytdlp.Format) (*ytdlp.Format, *ytdlp.Format) {
	return bestVideoOnly(formats), bestAudioSource(formats)
}

func bestVideoOnly(formats []ytdlp.Format) *ytdlp.Format {
	var best *ytdlp.Format
	for i := range formats {
		f := &formats[i]
		if !f.IsVideoOnly() || f.IsHLS() || f.URL == "" {
			continue
		}
		if best == nil || rankAbove(videoRank(f), videoRank(best)) {
			best = f
		}
	}
	return best
}

// bestAudioSource picks the best audio-only track; when none exists, the
// best muxed track stands in as the audio source for a remux.
func bestAudioSource(formats []ytdlp.Format) *ytdlp.Format {
	var best *ytdlp.Format
	for i := range formats {
		f := &formats[i]
		if !f.IsAudioOnly() || f.IsHLS() || f.URL == "" {
			continue
		}
		if best == nil || rankAbove(audioRank(f), audioRank(best)) {
			best = f
		}
	}
	if best != nil {
		return best
	}
	for i := range formats {
		f := &formats[i]
		if !f.IsMuxed() || f.IsHLS() || f.URL == "" {
			continue
		}
		if best == nil || rankAbove(audioRank(f), audioRank(best)) {
			best = f
		}
	}
	return best
}

// videoRank orders video legs by height, then bitrate; avc codec and mp4
// container break remaining ties.
func videoRank(f *ytdlp.Format) [4]float64 {
	return [4]float64{
		f.Height.Or(-1),
		f.TBR.Or(-1),
		boolRank(strings.HasPrefix(strings.ToLower(f.VCodec), "avc")),
		boolRank(strings.EqualFold(f.Ext, "mp4")),
	}
}

// audioRank prefers mp4-family audio, then audio bitrate, then total
// bitrate. The fourth key is unused.
func audioRank(f *ytdlp.Format) [4]float64 {
	return [4]float64{boolRank(isMP4Audio(f)), f.ABR.Or(-1), f.TBR.Or(-1), 0}
}

// isMP4Audio reports whether the audio belongs to the mp4 family, which
// muxes into fragmented MP4 without codec surprises.
func isMP4Audio(f *ytdlp.Format) bool {
	ac := strings.ToLower(f.ACodec)
	return strings.Contains(ac, "mp4a") ||
		strings.Contains(ac, "aac") ||
		strings.EqualFold(f.Ext, "m4a")
}

func boolRank(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// rankAbove reports whether rank a strictly outranks b. Ties keep the
// earlier format, so selection stays deterministic.
func rankAbove(a, b [4]float64) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] > b[i]
		}
	}
	return false
}

// pickHLS prefers the known muxed live itags, then the first HLS format.
func pickHLS(formats []ytdlp.Format) *ytdlp.Format {
	for _, want := range hlsPreferredItags {
		for i := range formats {
			f := &formats[i]
			if f.IsHLS() && (f.ID() == want || string(f.Itag) == want) {
				return f
			}
		}
	}
	for i := range formats {
		if f := &formats[i]; f.IsHLS() {
			return f
		}
	}
	return nil
}

// SortForListing orders formats for the /formats endpoint: progressive
// first, then height descending, then bitrate descending.
func SortForListing(formats []ytdlp.Format) {
	sort.SliceStable(formats, func(i, j int) bool {
		a, b := &formats[i], &formats[j]
		if a.IsMuxed() != b.IsMuxed() {
			return a.IsMuxed()
		}
		if ah, bh := a.Height.Or(-1), b.Height.Or(-1); ah != bh {
			return ah > bh
		}
		return a.TBR.Or(-1) > b.TBR.Or(-1)
	})
}
