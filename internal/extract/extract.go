// SPDX-License-Identifier: MIT

// Package extract is the boundary to the external stream extractor. It
// normalizes source-platform URLs, runs the extractor behind a bounded
// worker pool and returns stream descriptors with proxy-rewritten URLs.
package extract

import (
	"context"
	"errors"
)

// ErrInvalidURL reports a source URL no video identifier could be
// recovered from.
var ErrInvalidURL = errors.New("invalid url")

// ErrNoStreams reports that extraction produced no playable HLS streams.
var ErrNoStreams = errors.New("no streams extracted")

// ErrNoManifest reports that no format carried an HLS manifest URL.
var ErrNoManifest = errors.New("no m3u8 manifest found")

// ErrNotFound reports a playlist or resource the extractor could not resolve.
var ErrNotFound = errors.New("not found")

// StreamInfo describes one playable stream of a video.
type StreamInfo struct {
	Type    string `json:"type"`    // "video" or "audio"
	Quality string `json:"quality"` // "1080p", "audio-128k", "source", ...
	URL     string `json:"url"`
}

// Channel identifies the uploader of a video.
type Channel struct {
	Name string `json:"name,omitempty"`
	ID   string `json:"id,omitempty"`
	URL  string `json:"url,omitempty"`
}

// VideoMeta is the client-facing metadata of one video.
type VideoMeta struct {
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	Channel     Channel `json:"channel"`
	ViewCount   int64   `json:"view_count,omitempty"`
	LikeCount   int64   `json:"like_count,omitempty"`
	UploadDate  string  `json:"upload_date,omitempty"`
	Duration    float64 `json:"duration,omitempty"`
	Thumbnail   string  `json:"thumbnail,omitempty"`
}

// PlaylistEntry is one flat playlist item.
type PlaylistEntry struct {
	ID        string `json:"id"`
	Title     string `json:"title,omitempty"`
	Duration  string `json:"duration,omitempty"`
	Thumbnail string `json:"thumbnail,omitempty"`
	URL       string `json:"url"`
}

// SearchResult is one search hit.
type SearchResult struct {
	ID        string `json:"id"`
	Title     string `json:"title,omitempty"`
	URL       string `json:"url"`
	Channel   string `json:"channel,omitempty"`
	Thumbnail string `json:"thumbnail"`
}

// Extractor is the consumed extraction interface. The service layer does not
// depend on any particular implementation; YtDlp is the production one.
type Extractor interface {
	// Extract returns metadata and the filtered HLS stream descriptors for
	// one video URL.
	Extract(ctx context.Context, url string) (*VideoMeta, []StreamInfo, error)

	// DirectManifest returns the first raw .m3u8 URL among the video's
	// formats, or ErrNoManifest.
	DirectManifest(ctx context.Context, url string) (string, error)

	// Playlist returns the flat entries of a playlist URL.
	Playlist(ctx context.Context, url string) ([]PlaylistEntry, error)

	// Search returns up to limit results for a free-text query.
	Search(ctx context.Context, query string, limit int) ([]SearchResult, error)
}
