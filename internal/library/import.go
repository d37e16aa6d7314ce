// SPDX-License-Identifier: MIT

package library

import (
	"encoding/json"
	"encoding/xml"
	"regexp"
	"strings"
)

var channelIDRe = regexp.MustCompile(`(?:channel_id=|/channel/)(UC[0-9A-Za-z_-]{22})`)

// ChannelIDFromURL extracts a canonical channel ID from a feed or channel
// URL, or returns "".
func ChannelIDFromURL(u string) string {
	m := channelIDRe.FindStringSubmatch(u)
	if m == nil {
		return ""
	}
	return m[1]
}

// opmlOutline is a recursive OPML <outline> node.
type opmlOutline struct {
	Text     string        `xml:"text,attr"`
	Title    string        `xml:"title,attr"`
	XMLURL   string        `xml:"xmlUrl,attr"`
	HTMLURL  string        `xml:"htmlUrl,attr"`
	Children []opmlOutline `xml:"outline"`
}

type opmlDoc struct {
	Body struct {
		Outlines []opmlOutline `xml:"outline"`
	} `xml:"body"`
}

// ParseOPML extracts subscriptions from an OPML export (YouTube takeout,
// NewPipe, most RSS readers). Outlines without a recognisable channel ID
// are skipped.
func ParseOPML(text string) []Subscription {
	var doc opmlDoc
	if err := xml.Unmarshal([]byte(text), &doc); err != nil {
		return nil
	}

	var subs []Subscription
	var walk func(nodes []opmlOutline)
	walk = func(nodes []opmlOutline) {
		for _, n := range nodes {
			cid := ChannelIDFromURL(n.XMLURL)
			if cid == "" {
				cid = ChannelIDFromURL(n.HTMLURL)
			}
			if cid != "" {
				title := n.Title
				if title == "" {
					title = n.Text
				}
				u := n.HTMLURL
				if u == "" {
					u = n.XMLURL
				}
				subs = append(subs, Subscription{ChannelID: cid, Title: title, URL: u})
			}
			walk(n.Children)
		}
	}
	walk(doc.Body.Outlines)
	return subs
}

// ParseSubscriptionsJSON extracts subscriptions from the JSON exports of
// FreeTube, NewPipe and Invidious. The accepted shapes are a bare array or
// an object wrapping one under "subscriptions", "channels" or
// "data.subscriptions".
func ParseSubscriptionsJSON(raw []byte) []Subscription {
	var items []map[string]any

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err == nil {
		for _, candidate := range []json.RawMessage{obj["subscriptions"], obj["channels"], nestedSubs(obj["data"])} {
			if candidate == nil {
				continue
			}
			if json.Unmarshal(candidate, &items) == nil && len(items) > 0 {
				break
			}
		}
	} else if json.Unmarshal(raw, &items) != nil {
		return nil
	}

	var subs []Subscription
	for _, it := range items {
		cid := firstString(it, "channelId", "authorId", "id")
		u := firstString(it, "url", "channelUrl", "link")
		if cid == "" {
			cid = ChannelIDFromURL(u)
		}
		if cid == "" {
			continue
		}
		subs = append(subs, Subscription{
			ChannelID: cid,
			Title:     firstString(it, "name", "author", "title"),
			URL:       u,
		})
	}
	return subs
}

func nestedSubs(data json.RawMessage) json.RawMessage {
	if data == nil {
		return nil
	}
	var inner map[string]json.RawMessage
	if json.Unmarshal(data, &inner) != nil {
		return nil
	}
	return inner["subscriptions"]
}

// ParseFavoritesJSON extracts favorites from a bare array (of objects or
// video-ID strings) or from an object carrying "favorites", "bookmarks",
// "watchLater", "liked" or playlist video lists.
func ParseFavoritesJSON(raw []byte) []Favorite {
	var favs []Favorite
	add := func(id, title string) {
		if id != "" {
			favs = append(favs, Favorite{VideoID: id, Title: title})
		}
	}
	addAny := func(v any) {
		switch it := v.(type) {
		case string:
			add(it, "")
		case map[string]any:
			add(firstString(it, "videoId", "id"), firstString(it, "title"))
		}
	}

	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err == nil {
		for _, key := range []string{"favorites", "bookmarks", "watchLater", "liked"} {
			list, _ := obj[key].([]any)
			for _, v := range list {
				addAny(v)
			}
		}
		playlists, _ := obj["playlists"].([]any)
		for _, p := range playlists {
			pl, _ := p.(map[string]any)
			videos, _ := pl["videos"].([]any)
			for _, v := range videos {
				addAny(v)
			}
		}
		return favs
	}

	var list []any
	if json.Unmarshal(raw, &list) != nil {
		return nil
	}
	for _, v := range list {
		addAny(v)
	}
	return favs
}

// firstString returns the first non-empty string value among keys.
func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// LooksLikeOPML reports whether a raw import payload is XML-shaped.
func LooksLikeOPML(raw []byte) bool {
	return strings.HasPrefix(strings.TrimSpace(string(raw)), "<")
}
