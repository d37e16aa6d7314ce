// SPDX-License-Identifier: MIT

// Package ytdlp resolves YouTube video IDs into playable media URLs by
// running yt-dlp and decoding its JSON probe output.
package ytdlp

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// WatchURL returns the canonical watch page URL for a video ID.
func WatchURL(videoID string) string {
	return "https://www.youtube.com/watch?v=" + videoID
}

var videoIDRe = regexp.MustCompile(`^[A-Za-z0-9_-]{6,64}$`)

// ValidVideoID reports whether id is shaped like a YouTube video ID.
func ValidVideoID(id string) bool {
	return videoIDRe.MatchString(id)
}

// Num is a float64 that tolerates the loose typing of yt-dlp JSON: numbers,
// numeric strings and strings with a trailing unit ("720p") all decode.
type Num float64

var leadingNumRe = regexp.MustCompile(`^-?\d+(\.\d+)?`)

// UnmarshalJSON implements lenient numeric decoding.
func (n *Num) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		m := leadingNumRe.FindString(strings.TrimSpace(s))
		if m == "" {
			return fmt.Errorf("not a number: %q", s)
		}
		f, err := strconv.ParseFloat(m, 64)
		if err != nil {
			return err
		}
		*n = Num(f)
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	*n = Num(f)
	return nil
}

// Or returns the value, or def when the pointer is nil.
func (n *Num) Or(def float64) float64 {
	if n == nil {
		return def
	}
	return float64(*n)
}

// Int returns the value truncated to int, or def when nil.
func (n *Num) Int(def int) int {
	if n == nil {
		return def
	}
	return int(*n)
}

// Str is a string that also accepts JSON numbers. yt-dlp emits itags as
// strings, but third-party extractors have been seen emitting numbers.
type Str string

// UnmarshalJSON implements lenient string decoding.
func (s *Str) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		return nil
	}
	if b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = Str(v)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*s = Str(n.String())
	return nil
}

// Format is one entry of the probe's format list.
type Format struct {
	FormatID   Str               `json:"format_id"`
	Itag       Str               `json:"itag"`
	URL        string            `json:"url"`
	Ext        string            `json:"ext"`
	Protocol   string            `json:"protocol"`
	ACodec     string            `json:"acodec"`
	VCodec     string            `json:"vcodec"`
	Width      *Num              `json:"width"`
	Height     *Num              `json:"height"`
	FPS        *Num              `json:"fps"`
	TBR        *Num              `json:"tbr"`
	ABR        *Num              `json:"abr"`
	VBR        *Num              `json:"vbr"`
	Filesize   *Num              `json:"filesize"`
	FilesizeA  *Num              `json:"filesize_approx"`
	FormatNote string            `json:"format_note"`
	Quality    string            `json:"quality_label"`
	Resolution string            `json:"resolution"`
	AudioExt   string            `json:"audio_ext"`
	Container  string            `json:"container"`
	Manifest   string            `json:"manifest_url"`
	Headers    map[string]string `json:"http_headers"`
}

// ID returns the format's preferred identifier: format_id, falling back to
// the raw itag.
func (f *Format) ID() string {
	if f.FormatID != "" {
		return string(f.FormatID)
	}
	return string(f.Itag)
}

func hasCodec(c string) bool {
	c = strings.ToLower(c)
	return c != "" && c != "none"
}

// HasVideo reports whether the format carries a video track. Some
// extractors omit vcodec; a height or frame rate implies video.
func (f *Format) HasVideo() bool {
	if hasCodec(f.VCodec) {
		return true
	}
	return f.Height.Or(0) > 0 || f.FPS.Or(0) > 0
}

// HasAudio reports whether the format carries an audio track, inferred
// from abr or audio_ext when acodec is missing.
func (f *Format) HasAudio() bool {
	if hasCodec(f.ACodec) {
		return true
	}
	if f.ABR.Or(0) > 0 {
		return true
	}
	return f.AudioExt != "" && !strings.EqualFold(f.AudioExt, "none")
}

// IsMuxed reports whether the format carries both audio and video.
func (f *Format) IsMuxed() bool {
	return f.HasVideo() && f.HasAudio()
}

// IsVideoOnly reports whether the format carries video without audio.
func (f *Format) IsVideoOnly() bool {
	return f.HasVideo() && !f.HasAudio()
}

// IsAudioOnly reports whether the format carries audio without video.
func (f *Format) IsAudioOnly() bool {
	return f.HasAudio() && !f.HasVideo()
}

// IsStoryboard reports whether the format is a preview image strip rather
// than playable media.
func (f *Format) IsStoryboard() bool {
	id := strings.ToLower(f.ID())
	if strings.HasPrefix(id, "sb") {
		return true
	}
	if strings.EqualFold(f.Protocol, "mhtml") || strings.EqualFold(f.Ext, "mhtml") {
		return true
	}
	note := strings.ToLower(f.FormatNote)
	return strings.Contains(note, "storyboard") || strings.Contains(note, "preview")
}

// IsHLS reports whether the format points at an HLS manifest.
func (f *Format) IsHLS() bool {
	if strings.Contains(strings.ToLower(f.Protocol), "m3u8") {
		return true
	}
	return looksLikeManifestURL(f.URL) || looksLikeManifestURL(f.Manifest)
}

// looksLikeManifestURL recognises googlevideo HLS manifest URL shapes.
// The match must stay narrow: yt-dlp attaches a DASH manifest_url
// (.../api/manifest/dash/...) to ordinary progressive formats, and those
// must not read as HLS.
func looksLikeManifestURL(u string) bool {
	if u == "" {
		return false
	}
	low := strings.ToLower(u)
	base := low
	if i := strings.IndexAny(base, "?#"); i >= 0 {
		base = base[:i]
	}
	return strings.HasSuffix(base, ".m3u8") ||
		strings.Contains(low, "manifest/hls_playlist")
}

// ManifestURL returns the manifest address for an HLS format.
func (f *Format) ManifestURL() string {
	if f.URL != "" {
		return f.URL
	}
	return f.Manifest
}

// Thumbnail is one probe thumbnail entry.
type Thumbnail struct {
	URL string `json:"url"`
}

// Chapter is one probe chapter marker.
type Chapter struct {
	StartTime *Num   `json:"start_time"`
	EndTime   *Num   `json:"end_time"`
	Title     string `json:"title"`
}

// SubtitleTrack is one subtitle rendition for a language.
type SubtitleTrack struct {
	URL  string `json:"url"`
	Ext  string `json:"ext"`
	Name string `json:"name"`
}

// Probe is the decoded yt-dlp JSON for a single video.
type Probe struct {
	ID          string                     `json:"id"`
	Title       string                     `json:"title"`
	Duration    *Num                       `json:"duration"`
	IsLive      bool                       `json:"is_live"`
	Channel     string                     `json:"channel"`
	ChannelID   string                     `json:"channel_id"`
	Uploader    string                     `json:"uploader"`
	Description string                     `json:"description"`
	Thumbnail   string                     `json:"thumbnail"`
	Thumbnails  []Thumbnail                `json:"thumbnails"`
	Chapters    []Chapter                  `json:"chapters"`
	Subtitles   map[string][]SubtitleTrack `json:"subtitles"`
	Extractor   string                     `json:"extractor"`
	WebpageURL  string                     `json:"webpage_url"`
	Headers     map[string]string          `json:"http_headers"`
	Formats     []Format                   `json:"formats"`
}

// SuggestedHeaders returns the request headers yt-dlp recommends for the
// media origin: the probe-level set, falling back to the chosen format's.
func (p *Probe) SuggestedHeaders(f *Format) map[string]string {
	if len(p.Headers) > 0 {
		return p.Headers
	}
	if f != nil && len(f.Headers) > 0 {
		return f.Headers
	}
	return nil
}

// Author returns the channel name, falling back to the uploader.
func (p *Probe) Author() string {
	if p.Channel != "" {
		return p.Channel
	}
	return p.Uploader
}

// BestThumbnail returns the probe's thumbnail URL, preferring the top-level
// field and falling back to the last thumbnails entry.
func (p *Probe) BestThumbnail() string {
	if p.Thumbnail != "" {
		return p.Thumbnail
	}
	if len(p.Thumbnails) > 0 {
		return p.Thumbnails[len(p.Thumbnails)-1].URL
	}
	return ""
}

// PlayableFormats returns all formats that are candidates for playback:
// storyboards and entries without any URL are dropped.
func (p *Probe) PlayableFormats() []Format {
	out := make([]Format, 0, len(p.Formats))
	for _, f := range p.Formats {
		if f.IsStoryboard() {
			continue
		}
		if f.URL == "" && f.Manifest == "" {
			continue
		}
		out = append(out, f)
	}
	return out
}
