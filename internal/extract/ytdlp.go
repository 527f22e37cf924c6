// SPDX-License-Identifier: MIT

package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"slices"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/oculora/hlsgate/internal/metrics"
)

// YtDlpConfig configures the subprocess extractor.
type YtDlpConfig struct {
	Path                string // yt-dlp binary
	UserAgent           string
	SupportedProtocols  []string
	ManifestCheck       string // substring marking an HLS URL, ".m3u8"
	MaxStreams          int
	DefaultVideoQuality string // label for the top-level live manifest
	AudioQualityPrefix  string
	UnknownHeightLabel  string
}

// YtDlp runs the yt-dlp binary as a subprocess and parses its JSON dump.
// All invocations pass through the worker pool.
type YtDlp struct {
	cfg    YtDlpConfig
	pool   *Pool
	logger zerolog.Logger
}

// NewYtDlp creates the subprocess extractor.
func NewYtDlp(cfg YtDlpConfig, pool *Pool, logger zerolog.Logger) *YtDlp {
	if cfg.Path == "" {
		cfg.Path = "yt-dlp"
	}
	if cfg.ManifestCheck == "" {
		cfg.ManifestCheck = ".m3u8"
	}
	return &YtDlp{cfg: cfg, pool: pool, logger: logger}
}

// ytdlpInfo is the subset of the yt-dlp JSON dump the gateway consumes.
type ytdlpInfo struct {
	ID          string        `json:"id"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Uploader    string        `json:"uploader"`
	Channel     string        `json:"channel"`
	ChannelID   string        `json:"channel_id"`
	ChannelURL  string        `json:"channel_url"`
	ViewCount   int64         `json:"view_count"`
	LikeCount   int64         `json:"like_count"`
	UploadDate  string        `json:"upload_date"`
	Duration    float64       `json:"duration"`
	Thumbnail   string        `json:"thumbnail"`
	URL         string        `json:"url"`
	Formats     []ytdlpFormat `json:"formats"`
	Entries     []ytdlpEntry  `json:"entries"`
}

type ytdlpFormat struct {
	Protocol    string  `json:"protocol"`
	URL         string  `json:"url"`
	ManifestURL string  `json:"manifest_url"`
	Vcodec      string  `json:"vcodec"`
	Resolution  string  `json:"resolution"`
	Height      int     `json:"height"`
	ABR         float64 `json:"abr"`
}

type ytdlpEntry struct {
	ID             string  `json:"id"`
	Title          string  `json:"title"`
	URL            string  `json:"url"`
	Channel        string  `json:"channel"`
	Thumbnail      string  `json:"thumbnail"`
	Duration       float64 `json:"duration"`
	DurationString string  `json:"duration_string"`
}

// run executes yt-dlp for url with the given extra flags and parses the dump.
func (y *YtDlp) run(ctx context.Context, url string, extra ...string) (*ytdlpInfo, error) {
	if err := y.pool.Acquire(ctx); err != nil {
		return nil, err
	}
	defer y.pool.Release()

	args := []string{"-J", "--no-warnings", "--skip-download"}
	if y.cfg.UserAgent != "" {
		args = append(args, "--user-agent", y.cfg.UserAgent)
	}
	args = append(args, extra...)
	args = append(args, url)

	cmd := exec.CommandContext(ctx, y.cfg.Path, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	y.logger.Debug().Str("url", url).Msg("running extractor")

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if len(msg) > 300 {
			msg = msg[:300]
		}
		return nil, fmt.Errorf("extractor failed for %s: %w: %s", url, err, msg)
	}

	var info ytdlpInfo
	if err := json.Unmarshal(stdout.Bytes(), &info); err != nil {
		return nil, fmt.Errorf("parse extractor output for %s: %w", url, err)
	}
	return &info, nil
}

// Extract implements Extractor.
func (y *YtDlp) Extract(ctx context.Context, url string) (meta *VideoMeta, streams []StreamInfo, err error) {
	defer func() { metrics.IncExtraction("extract", err) }()

	info, err := y.run(ctx, url)
	if err != nil {
		return nil, nil, err
	}

	streams = y.streamsFromInfo(info)
	if len(streams) == 0 {
		return nil, nil, fmt.Errorf("%w: %s", ErrNoStreams, url)
	}

	channelURL := info.ChannelURL
	if channelURL == "" && info.ChannelID != "" {
		channelURL = "https://www.youtube.com/channel/" + info.ChannelID
	}

	meta = &VideoMeta{
		Title:       info.Title,
		Description: info.Description,
		Channel: Channel{
			Name: info.Uploader,
			ID:   info.ChannelID,
			URL:  channelURL,
		},
		ViewCount:  info.ViewCount,
		LikeCount:  info.LikeCount,
		UploadDate: info.UploadDate,
		Duration:   info.Duration,
		Thumbnail:  info.Thumbnail,
	}
	if meta.Title == "" {
		meta.Title = "unknown"
	}

	return meta, streams, nil
}

// streamsFromInfo filters the format list down to HLS streams: a format
// passes when its protocol is in the supported set or its URL contains the
// manifest marker. The top-level URL (live streams) is appended when it is
// itself a manifest.
func (y *YtDlp) streamsFromInfo(info *ytdlpInfo) []StreamInfo {
	streams := make([]StreamInfo, 0, len(info.Formats))

	for _, f := range info.Formats {
		if !slices.Contains(y.cfg.SupportedProtocols, f.Protocol) &&
			!strings.Contains(f.URL, y.cfg.ManifestCheck) {
			continue
		}

		streamType := "video"
		if f.Vcodec == "none" {
			streamType = "audio"
		}

		var quality string
		if streamType == "video" {
			switch {
			case f.Resolution != "":
				quality = f.Resolution
			case f.Height > 0:
				quality = strconv.Itoa(f.Height) + "p"
			default:
				quality = y.cfg.UnknownHeightLabel + "p"
			}
		} else {
			if f.ABR > 0 {
				quality = fmt.Sprintf("%s-%dk", y.cfg.AudioQualityPrefix, int(f.ABR))
			} else {
				quality = y.cfg.AudioQualityPrefix
			}
		}

		manifestURL := f.ManifestURL
		if manifestURL == "" {
			manifestURL = f.URL
		}
		if manifestURL == "" {
			continue
		}

		streams = append(streams, StreamInfo{Type: streamType, Quality: quality, URL: manifestURL})

		if len(streams) >= y.cfg.MaxStreams {
			y.logger.Warn().Int("max_streams", y.cfg.MaxStreams).Msg("stream limit reached")
			break
		}
	}

	if strings.Contains(info.URL, y.cfg.ManifestCheck) {
		streams = append(streams, StreamInfo{
			Type:    "video",
			Quality: y.cfg.DefaultVideoQuality,
			URL:     info.URL,
		})
	}

	return streams
}

// DirectManifest implements Extractor.
func (y *YtDlp) DirectManifest(ctx context.Context, url string) (manifest string, err error) {
	defer func() { metrics.IncExtraction("stream_direct", err) }()

	info, err := y.run(ctx, url, "--allow-unplayable-formats")
	if err != nil {
		return "", err
	}

	for _, f := range info.Formats {
		if strings.Contains(f.URL, y.cfg.ManifestCheck) {
			return f.URL, nil
		}
	}

	return "", fmt.Errorf("%w: %s", ErrNoManifest, url)
}

// Playlist implements Extractor.
func (y *YtDlp) Playlist(ctx context.Context, url string) (entries []PlaylistEntry, err error) {
	defer func() { metrics.IncExtraction("playlist", err) }()

	info, err := y.run(ctx, url, "--flat-playlist")
	if err != nil {
		return nil, err
	}
	if len(info.Entries) == 0 {
		return nil, fmt.Errorf("%w: playlist %s", ErrNotFound, url)
	}

	entries = make([]PlaylistEntry, 0, len(info.Entries))
	for _, e := range info.Entries {
		duration := e.DurationString
		if duration == "" && e.Duration > 0 {
			duration = strconv.Itoa(int(e.Duration))
		}
		entries = append(entries, PlaylistEntry{
			ID:        e.ID,
			Title:     e.Title,
			Duration:  duration,
			Thumbnail: e.Thumbnail,
			URL:       "https://www.youtube.com/watch?v=" + e.ID,
		})
	}
	return entries, nil
}

// Search implements Extractor.
func (y *YtDlp) Search(ctx context.Context, query string, limit int) (results []SearchResult, err error) {
	defer func() { metrics.IncExtraction("search", err) }()

	target := fmt.Sprintf("ytsearch%d:%s", limit, query)
	info, err := y.run(ctx, target, "--flat-playlist")
	if err != nil {
		return nil, err
	}

	results = make([]SearchResult, 0, len(info.Entries))
	for _, e := range info.Entries {
		if len(results) >= limit {
			break
		}
		thumbnail := e.Thumbnail
		if thumbnail == "" {
			thumbnail = "https://i.ytimg.com/vi/" + e.ID + "/hqdefault.jpg"
		}
		results = append(results, SearchResult{
			ID:        e.ID,
			Title:     e.Title,
			URL:       e.URL,
			Channel:   e.Channel,
			Thumbnail: thumbnail,
		})
	}
	return results, nil
}
