// Package model defines shared data structures.
package model

import "time"

// PubDateFormat is how timestamps are rendered at the API boundary.
// At rest they stay Unix seconds in the newsboat cache.
const PubDateFormat = "2006-01-02 15:04:05"

// Item represents a single entry from the newsboat rss_item table,
// joined with its parent feed for channel attribution.
type Item struct {
	ID          int64  `json:"id"`
	ChannelName string `json:"channel_name,omitempty"`
	ChannelURL  string `json:"channel_url,omitempty"`
	Title       string `json:"title"`
	URL         string `json:"url"`
	Deleted     bool   `json:"deleted"`
	Unread      bool   `json:"unread"`
	PubDate     string `json:"pubDate"`
	Content     string `json:"content"`
	Author      string `json:"author"`
	FeedURL     string `json:"feedurl"`
	Flags       string `json:"flags"`
	Starred     bool   `json:"starred"`

	// Set by enrichment at read time, never persisted.
	Origin        string `json:"origin,omitempty"`
	YouTubeID     string `json:"youtube_id,omitempty"`
	OriginalTitle string `json:"original_title,omitempty"`
}

// FlagState is the starred/unread portion of an item after a mutation.
type FlagState struct {
	Unread  bool   `json:"unread"`
	Flags   string `json:"flags"`
	Starred bool   `json:"starred"`
}

// FormatPubDate renders a Unix timestamp for the API boundary.
func FormatPubDate(ts int64) string {
	return time.Unix(ts, 0).Format(PubDateFormat)
}
