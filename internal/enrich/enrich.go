// Package enrich derives read-time fields for items and fetches DeArrow
// branding for YouTube videos. Nothing here is ever persisted.
package enrich

import (
	"log/slog"
	"net/url"
	"strings"

	"nbserver/internal/model"
)

// OriginShorts is the origin assigned to YouTube Shorts URLs.
const OriginShorts = "youtube shorts"

// youtubeHosts are the hostnames whose URLs carry a video id in the
// query string or path.
var youtubeHosts = map[string]bool{
	"www.youtube.com": true,
	"youtube.com":     true,
	"m.youtube.com":   true,
}

// Status classifies the outcome of enriching one item.
type Status int

const (
	// StatusEnriched means a video id was derived for the item.
	StatusEnriched Status = iota
	// StatusSkipped means the URL parsed but matched no video pattern.
	StatusSkipped
	// StatusFailed means the URL was unparseable or an upstream lookup failed.
	StatusFailed
)

// Result pairs an item with its enrichment outcome, so a skipped item is
// distinguishable from a failed one instead of both silently lacking fields.
type Result struct {
	Item   *model.Item
	Status Status
	Err    error
}

// Pipeline annotates items with derived fields and applies DeArrow titles.
type Pipeline struct {
	client *DeArrowClient
	log    *slog.Logger
}

// New creates a pipeline. client may be nil when DeArrow lookups are disabled.
func New(client *DeArrowClient, log *slog.Logger) *Pipeline {
	return &Pipeline{client: client, log: log}
}

// Annotate derives origin and youtube_id for each item in place and
// returns one result per item. Errors never abort the batch; a bad URL
// just yields a failed result for that item.
func (p *Pipeline) Annotate(items []model.Item) []Result {
	results := make([]Result, len(items))
	for i := range items {
		it := &items[i]
		origin, videoID, err := Derive(it.URL)
		it.Origin = origin
		it.YouTubeID = videoID
		switch {
		case err != nil:
			results[i] = Result{Item: it, Status: StatusFailed, Err: err}
			p.log.Warn("unparseable item url", "id", it.ID, "url", it.URL, "error", err)
		case videoID == "":
			results[i] = Result{Item: it, Status: StatusSkipped}
		default:
			results[i] = Result{Item: it, Status: StatusEnriched}
		}
	}
	return results
}

// Derive classifies an item URL. origin is "youtube shorts" for Shorts
// paths, otherwise the hostname; videoID is empty when no pattern matched.
func Derive(rawURL string) (origin, videoID string, err error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", err
	}
	if strings.Contains(u.Path, "/shorts/") {
		origin = OriginShorts
	} else {
		origin = u.Hostname()
	}
	return origin, ExtractVideoID(u), nil
}

// ExtractVideoID pulls a YouTube video id out of a parsed URL: the v query
// parameter, the last path segment of /embed/<id> and /v/<id>, or the path
// of a youtu.be short link. Empty when nothing matched.
func ExtractVideoID(u *url.URL) string {
	if youtubeHosts[u.Hostname()] {
		if v := u.Query().Get("v"); v != "" {
			return v
		}
		parts := strings.Split(u.Path, "/")
		if len(parts) >= 2 {
			switch parts[len(parts)-2] {
			case "embed", "v":
				return parts[len(parts)-1]
			}
		}
		return ""
	}
	if u.Hostname() == "youtu.be" {
		return strings.TrimPrefix(u.Path, "/")
	}
	return ""
}

// Apply overwrites item titles with the top DeArrow title where one exists,
// keeping the original title alongside. Transient only.
func (p *Pipeline) Apply(items []model.Item, brandings map[string]Branding) {
	for i := range items {
		it := &items[i]
		if it.YouTubeID == "" {
			continue
		}
		branding, ok := brandings[it.YouTubeID]
		if !ok || len(branding.Titles) == 0 {
			continue
		}
		it.OriginalTitle = it.Title
		it.Title = branding.Titles[0].Title
	}
}
