// SPDX-License-Identifier: MIT

package ytdlp

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidVideoID(t *testing.T) {
	tests := []struct {
		id   string
		want bool
	}{
		{"dQw4w9WgXcQ", true},
		{"abc-_09", true},
		{"short", false},                   // 5 chars
		{"", false},
		{"has space", false},
		{"semi;colon", false},
		{"dQw4w9WgXcQdQw4w9WgXcQdQw4w9WgXcQdQw4w9WgXcQdQw4w9WgXcQdQw4w9WgXcQ", false}, // 66 chars
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ValidVideoID(tt.id), "id=%q", tt.id)
	}
}

func TestNumLenientDecoding(t *testing.T) {
	var s struct {
		A *Num `json:"a"`
		B *Num `json:"b"`
		C *Num `json:"c"`
		D *Num `json:"d"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a": 1080, "b": "720p", "c": null, "d": "23.976"}`), &s))

	assert.Equal(t, 1080.0, s.A.Or(-1))
	assert.Equal(t, 720.0, s.B.Or(-1))
	assert.Nil(t, s.C)
	assert.Equal(t, -1.0, s.C.Or(-1))
	assert.InDelta(t, 23.976, s.D.Or(-1), 1e-9)
	assert.Equal(t, 1080, s.A.Int(0))
}

func TestNumRejectsGarbage(t *testing.T) {
	var s struct {
		A *Num `json:"a"`
	}
	assert.Error(t, json.Unmarshal([]byte(`{"a": "tall"}`), &s))
}

func TestStrAcceptsNumbers(t *testing.T) {
	var s struct {
		A Str `json:"a"`
		B Str `json:"b"`
		C Str `json:"c"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a": "22", "b": 137, "c": null}`), &s))
	assert.Equal(t, Str("22"), s.A)
	assert.Equal(t, Str("137"), s.B)
	assert.Equal(t, Str(""), s.C)
}

func TestFormatPredicates(t *testing.T) {
	muxed := Format{FormatID: "22", ACodec: "mp4a.40.2", VCodec: "avc1.64001F", Ext: "mp4"}
	videoOnly := Format{FormatID: "137", ACodec: "none", VCodec: "avc1.640028"}
	audioOnly := Format{FormatID: "140", ACodec: "mp4a.40.2", VCodec: "none"}

	assert.True(t, muxed.IsMuxed())
	assert.False(t, muxed.IsVideoOnly())
	assert.False(t, muxed.IsAudioOnly())

	assert.True(t, videoOnly.IsVideoOnly())
	assert.False(t, videoOnly.IsMuxed())

	assert.True(t, audioOnly.IsAudioOnly())
	assert.False(t, audioOnly.IsMuxed())
}

func TestStoryboardDetection(t *testing.T) {
	tests := []struct {
		name string
		f    Format
		want bool
	}{
		{"sb id", Format{FormatID: "sb0"}, true},
		{"sb itag only", Format{Itag: "sb2"}, true},
		{"mhtml protocol", Format{FormatID: "x", Protocol: "mhtml"}, true},
		{"mhtml ext", Format{FormatID: "x", Ext: "mhtml"}, true},
		{"storyboard note", Format{FormatID: "x", FormatNote: "Storyboard"}, true},
		{"preview note", Format{FormatID: "x", FormatNote: "preview frame"}, true},
		{"regular", Format{FormatID: "22", Ext: "mp4", FormatNote: "720p"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.f.IsStoryboard())
		})
	}
}

func TestHLSDetection(t *testing.T) {
	tests := []struct {
		name string
		f    Format
		want bool
	}{
		{"m3u8 protocol", Format{Protocol: "m3u8_native"}, true},
		{"m3u8 suffix", Format{URL: "https://example.com/index.m3u8"}, true},
		{"m3u8 suffix with query", Format{URL: "https://example.com/index.m3u8?sig=abc"}, true},
		{"hls_playlist path", Format{URL: "https://manifest.googlevideo.com/api/manifest/hls_playlist/x"}, true},
		{"hls_playlist manifest field", Format{Manifest: "https://manifest.googlevideo.com/api/manifest/hls_playlist/123"}, true},
		{"progressive", Format{URL: "https://rr3.googlevideo.com/videoplayback?x=1", Protocol: "https"}, false},
		{"dash manifest field", Format{
			URL:      "https://rr1.googlevideo.com/videoplayback?itag=299",
			Protocol: "https",
			Manifest: "https://manifest.googlevideo.com/api/manifest/dash/x",
		}, false},
		{"dash manifest url", Format{URL: "https://manifest.googlevideo.com/api/manifest/dash/x"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.f.IsHLS())
		})
	}
}

func TestPlayableFormatsFiltersStoryboardsAndURLless(t *testing.T) {
	p := Probe{Formats: []Format{
		{FormatID: "sb0", URL: "https://x/sb"},
		{FormatID: "22", URL: "https://x/22", ACodec: "aac", VCodec: "avc1"},
		{FormatID: "no-url"},
		{FormatID: "hls", Manifest: "https://x/index.m3u8"},
	}}

	got := p.PlayableFormats()
	require.Len(t, got, 2)
	assert.Equal(t, "22", got[0].ID())
	assert.Equal(t, "hls", got[1].ID())
}

func TestProbeAuthorAndThumbnail(t *testing.T) {
	p := Probe{Uploader: "Some Uploader"}
	assert.Equal(t, "Some Uploader", p.Author())

	p.Channel = "Some Channel"
	assert.Equal(t, "Some Channel", p.Author())

	assert.Empty(t, p.BestThumbnail())
	p.Thumbnails = []Thumbnail{{URL: "https://i/1"}, {URL: "https://i/2"}}
	assert.Equal(t, "https://i/2", p.BestThumbnail())
	p.Thumbnail = "https://i/main"
	assert.Equal(t, "https://i/main", p.BestThumbnail())
}

func TestFormatIDFallsBackToItag(t *testing.T) {
	f := Format{Itag: "251"}
	assert.Equal(t, "251", f.ID())
	f.FormatID = "251-drc"
	assert.Equal(t, "251-drc", f.ID())
}
