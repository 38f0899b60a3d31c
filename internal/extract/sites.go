package extract

import (
	"net/url"
	"strings"
)

// Site-specific URL shapes and selector lists live here so the detection,
// session and enforcement logic stays free of markup coupling.

// strategy reads one candidate value from the parsed document: element text
// when Attr is empty, otherwise the named attribute.
type strategy struct {
	Selector string
	Attr     string
}

// watchStrategies are tried in order on watch/detail pages; the first
// non-empty, non-placeholder result wins.
var watchStrategies = []strategy{
	{Selector: "h1 yt-formatted-string.style-scope.ytd-watch-metadata"},
	{Selector: "#video-title"},
	{Selector: `meta[property="og:title"]`, Attr: "content"},
}

// chromeTitles are page-chrome values that must never be submitted as
// content titles.
var chromeTitles = map[string]struct{}{
	"YouTube":   {},
	"Instagram": {},
	"TikTok":    {},
}

func isPlaceholder(title string) bool {
	if title == "" {
		return true
	}
	_, ok := chromeTitles[title]
	return ok
}

type shortFormShape struct {
	host string
	path string
}

var shortFormShapes = []shortFormShape{
	{host: "youtube.com", path: "/shorts/"},
	{host: "instagram.com", path: "/reel/"},
	{host: "instagram.com", path: "/reels/"},
	{host: "facebook.com", path: "/reel/"},
	{host: "tiktok.com", path: "/foryou"},
}

// IsShortForm reports whether the URL points at continuous short-form
// content (short-video, reel, clip-style paths).
func IsShortForm(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	host := u.Hostname()
	for _, s := range shortFormShapes {
		if strings.Contains(host, s.host) && strings.HasPrefix(u.Path, s.path) {
			return true
		}
	}
	return false
}

func isWatch(u *url.URL) bool {
	return strings.Contains(u.Hostname(), "youtube.com") && strings.HasPrefix(u.Path, "/watch")
}

// searchQueryOf extracts the query from recognized search URL shapes.
func searchQueryOf(u *url.URL) string {
	host := u.Hostname()
	if strings.Contains(host, "google.") || strings.Contains(host, "bing.") {
		return u.Query().Get("q")
	}
	if strings.Contains(host, "youtube.com") && u.Path == "/results" {
		return u.Query().Get("search_query")
	}
	// generic search/results paths carrying a q parameter
	if u.Path == "/search" || u.Path == "/results" {
		return u.Query().Get("q")
	}
	return ""
}

// Identity derives the content-distinguishing key for a URL: the video or
// post ID when the shape is recognizable, otherwise the raw URL.
func Identity(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	host := u.Hostname()
	if strings.Contains(host, "youtube.com") {
		if strings.HasPrefix(u.Path, "/watch") {
			if v := u.Query().Get("v"); v != "" {
				return "yt:" + v
			}
		}
		if strings.HasPrefix(u.Path, "/shorts/") {
			if id := strings.Trim(strings.TrimPrefix(u.Path, "/shorts/"), "/"); id != "" {
				return "yt:" + id
			}
		}
	}
	if strings.Contains(host, "instagram.com") {
		for _, p := range []string{"/reels/", "/reel/"} {
			if strings.HasPrefix(u.Path, p) {
				if id := strings.Trim(strings.TrimPrefix(u.Path, p), "/"); id != "" {
					return "ig:" + id
				}
			}
		}
	}
	return raw
}
