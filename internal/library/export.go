// SPDX-License-Identifier: MIT

package library

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"time"
)

// ExportOPML renders the subscriptions as an OPML document with one RSS
// outline per channel, the shape YouTube takeout and NewPipe import.
func ExportOPML(subs []Subscription, now time.Time) []byte {
	var b bytes.Buffer
	b.WriteString("<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n")
	b.WriteString("<opml version=\"1.0\">\n")
	b.WriteString("  <head>\n")
	fmt.Fprintf(&b, "    <title>JellyTube Subscriptions (%s)</title>\n", now.Format("2006-01-02 15:04:05"))
	b.WriteString("  </head>\n")
	b.WriteString("  <body>\n")
	for _, s := range subs {
		title := s.Title
		if title == "" {
			title = s.ChannelID
		}
		htmlURL := s.URL
		if htmlURL == "" {
			htmlURL = "https://www.youtube.com/channel/" + s.ChannelID
		}
		xmlURL := "https://www.youtube.com/feeds/videos.xml?channel_id=" + s.ChannelID
		fmt.Fprintf(&b, "    <outline text=%s title=%s type=\"rss\" xmlUrl=%s htmlUrl=%s />\n",
			xmlAttr(title), xmlAttr(title), xmlAttr(xmlURL), xmlAttr(htmlURL))
	}
	b.WriteString("  </body>\n")
	b.WriteString("</opml>\n")
	return b.Bytes()
}

// xmlAttr renders a quoted, escaped XML attribute value.
func xmlAttr(s string) string {
	var b bytes.Buffer
	b.WriteByte('"')
	_ = xml.EscapeText(&b, []byte(s))
	b.WriteByte('"')
	return b.String()
}

// ExportFreeTube renders the subscriptions in FreeTube's JSON shape.
func ExportFreeTube(subs []Subscription) ([]byte, error) {
	type entry struct {
		ChannelID string `json:"channelId"`
		Name      string `json:"name,omitempty"`
	}
	entries := make([]entry, 0, len(subs))
	for _, s := range subs {
		entries = append(entries, entry{ChannelID: s.ChannelID, Name: s.Title})
	}
	return json.MarshalIndent(map[string]any{"subscriptions": entries}, "", "  ")
}

// ExportFavorites renders the favorites export document.
func ExportFavorites(favs []Favorite) ([]byte, error) {
	if favs == nil {
		favs = []Favorite{}
	}
	return json.MarshalIndent(map[string]any{"favorites": favs}, "", "  ")
}
