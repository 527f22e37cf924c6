// SPDX-License-Identifier: MIT

// Package config loads gateway settings with precedence ENV > file > defaults.
package config

import "time"

// ServerSettings controls the HTTP listener.
type ServerSettings struct {
	ListenAddr        string
	ReadHeaderTimeout time.Duration
	IdleTimeout       time.Duration
	LogLevel          string
	LogService        string
}

// HTTPSettings controls the shared upstream HTTP client.
type HTTPSettings struct {
	Timeout                 time.Duration
	MaxConnections          int
	MaxKeepaliveConnections int
	KeepaliveExpiry         time.Duration
	Retries                 int
	MaxRedirects            int
	UserAgent               string
}

// CacheSettings controls the manifest/segment/extraction caches.
type CacheSettings struct {
	TTLManifest     time.Duration
	TTLSegment      time.Duration
	TTLExtract      time.Duration
	TTLStreamDirect time.Duration
	TTLPlaylist     time.Duration
	Namespace       string
	CleanupInterval time.Duration

	// Optional Redis tier for segment bytes. Empty Addr disables it.
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// ProxySettings controls manifest rewriting and segment streaming.
type ProxySettings struct {
	BasePath         string // path stub appended to scheme://host/, e.g. "proxy?url="
	URLSafeChars     string // characters exempt from percent-encoding
	BufferSize       int    // upstream read chunk size in bytes
	PrefetchSegments int    // prefetch window
	InjectStartTag   bool   // prepend #EXT-X-START when absent
}

// ExtractionSettings controls the stream extraction adapter.
type ExtractionSettings struct {
	SupportedProtocols  []string
	ManifestCheckString string
	MaxStreams          int
	DefaultVideoQuality string
	AudioQualityPrefix  string
	UnknownHeightLabel  string
	Workers             int
	YtdlpPath           string
}

// RateLimitSettings is a hook only; disabled by default.
type RateLimitSettings struct {
	Enabled           bool
	RequestsPerMinute int
}

// Messages holds localizable client-facing error strings.
type Messages struct {
	UpstreamError    string
	TimeoutError     string
	InvalidURL       string
	ExtractionFailed string
}

// Settings is the root configuration object.
type Settings struct {
	Server     ServerSettings
	HTTP       HTTPSettings
	Cache      CacheSettings
	Proxy      ProxySettings
	Extraction ExtractionSettings
	RateLimit  RateLimitSettings
	Messages   Messages
	Version    string
}

// Defaults returns the built-in configuration.
func Defaults() Settings {
	return Settings{
		Server: ServerSettings{
			ListenAddr:        ":8000",
			ReadHeaderTimeout: 10 * time.Second,
			IdleTimeout:       120 * time.Second,
			LogLevel:          "info",
			LogService:        "hlsgate",
		},
		HTTP: HTTPSettings{
			Timeout:                 20 * time.Second,
			MaxConnections:          100,
			MaxKeepaliveConnections: 20,
			KeepaliveExpiry:         5 * time.Second,
			Retries:                 3,
			MaxRedirects:            5,
			UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
				"AppleWebKit/537.36 (KHTML, like Gecko) " +
				"Chrome/139.0.0.0 Safari/537.36",
		},
		Cache: CacheSettings{
			TTLManifest:     60 * time.Second,
			TTLSegment:      300 * time.Second,
			TTLExtract:      600 * time.Second,
			TTLStreamDirect: 1800 * time.Second,
			TTLPlaylist:     600 * time.Second,
			Namespace:       "proxy",
			CleanupInterval: 60 * time.Second,
		},
		Proxy: ProxySettings{
			BasePath:         "proxy?url=",
			URLSafeChars:     "",
			BufferSize:       8192,
			PrefetchSegments: 3,
			InjectStartTag:   true,
		},
		Extraction: ExtractionSettings{
			SupportedProtocols:  []string{"m3u8", "m3u8_native"},
			ManifestCheckString: ".m3u8",
			MaxStreams:          50,
			DefaultVideoQuality: "source",
			AudioQualityPrefix:  "audio",
			UnknownHeightLabel:  "?",
			Workers:             4,
			YtdlpPath:           "yt-dlp",
		},
		RateLimit: RateLimitSettings{
			Enabled:           false,
			RequestsPerMinute: 60,
		},
		Messages: Messages{
			UpstreamError:    "upstream error",
			TimeoutError:     "request timeout",
			InvalidURL:       "invalid URL",
			ExtractionFailed: "extraction failed",
		},
	}
}

// applyEnv overlays environment variables on top of s.
func applyEnv(s *Settings) {
	s.Server.ListenAddr = ParseString("HLSGATE_LISTEN", s.Server.ListenAddr)
	s.Server.LogLevel = ParseString("HLSGATE_LOG_LEVEL", s.Server.LogLevel)
	s.Server.LogService = ParseString("HLSGATE_LOG_SERVICE", s.Server.LogService)

	s.HTTP.Timeout = ParseDuration("HLSGATE_HTTP_TIMEOUT", s.HTTP.Timeout)
	s.HTTP.MaxConnections = ParseInt("HLSGATE_HTTP_MAX_CONNECTIONS", s.HTTP.MaxConnections)
	s.HTTP.MaxKeepaliveConnections = ParseInt("HLSGATE_HTTP_MAX_KEEPALIVE", s.HTTP.MaxKeepaliveConnections)
	s.HTTP.KeepaliveExpiry = ParseDuration("HLSGATE_HTTP_KEEPALIVE_EXPIRY", s.HTTP.KeepaliveExpiry)
	s.HTTP.Retries = ParseInt("HLSGATE_HTTP_RETRIES", s.HTTP.Retries)
	s.HTTP.MaxRedirects = ParseInt("HLSGATE_HTTP_MAX_REDIRECTS", s.HTTP.MaxRedirects)
	s.HTTP.UserAgent = ParseString("HLSGATE_USER_AGENT", s.HTTP.UserAgent)

	s.Cache.TTLManifest = ParseDuration("HLSGATE_CACHE_TTL_M3U8", s.Cache.TTLManifest)
	s.Cache.TTLSegment = ParseDuration("HLSGATE_CACHE_TTL_SEGMENT", s.Cache.TTLSegment)
	s.Cache.TTLExtract = ParseDuration("HLSGATE_CACHE_TTL_EXTRACT", s.Cache.TTLExtract)
	s.Cache.Namespace = ParseString("HLSGATE_CACHE_NAMESPACE", s.Cache.Namespace)
	s.Cache.CleanupInterval = ParseDuration("HLSGATE_CACHE_CLEANUP_INTERVAL", s.Cache.CleanupInterval)
	s.Cache.RedisAddr = ParseString("HLSGATE_REDIS_ADDR", s.Cache.RedisAddr)
	s.Cache.RedisPassword = ParseString("HLSGATE_REDIS_PASSWORD", s.Cache.RedisPassword)
	s.Cache.RedisDB = ParseInt("HLSGATE_REDIS_DB", s.Cache.RedisDB)

	s.Proxy.BasePath = ParseString("HLSGATE_PROXY_BASE_PATH", s.Proxy.BasePath)
	s.Proxy.URLSafeChars = ParseString("HLSGATE_PROXY_SAFE_CHARS", s.Proxy.URLSafeChars)
	s.Proxy.BufferSize = ParseInt("HLSGATE_PROXY_BUFFER_SIZE", s.Proxy.BufferSize)
	s.Proxy.PrefetchSegments = ParseInt("HLSGATE_PROXY_PREFETCH_SEGMENTS", s.Proxy.PrefetchSegments)
	s.Proxy.InjectStartTag = ParseBool("HLSGATE_PROXY_INJECT_START_TAG", s.Proxy.InjectStartTag)

	s.Extraction.MaxStreams = ParseInt("HLSGATE_EXTRACT_MAX_STREAMS", s.Extraction.MaxStreams)
	s.Extraction.Workers = ParseInt("HLSGATE_EXTRACT_WORKERS", s.Extraction.Workers)
	s.Extraction.YtdlpPath = ParseString("HLSGATE_YTDLP_PATH", s.Extraction.YtdlpPath)

	s.RateLimit.Enabled = ParseBool("HLSGATE_RATE_LIMIT_ENABLED", s.RateLimit.Enabled)
	s.RateLimit.RequestsPerMinute = ParseInt("HLSGATE_RATE_LIMIT_RPM", s.RateLimit.RequestsPerMinute)
}
