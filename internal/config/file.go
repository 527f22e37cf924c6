// SPDX-License-Identifier: MIT

package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// fileConfig mirrors Settings with yaml tags and pointer fields so that
// absent keys leave the default untouched.
type fileConfig struct {
	Server struct {
		ListenAddr *string `yaml:"listenAddr"`
		LogLevel   *string `yaml:"logLevel"`
		LogService *string `yaml:"logService"`
	} `yaml:"server"`
	HTTP struct {
		TimeoutSeconds          *int    `yaml:"timeoutSeconds"`
		MaxConnections          *int    `yaml:"maxConnections"`
		MaxKeepaliveConnections *int    `yaml:"maxKeepaliveConnections"`
		KeepaliveExpirySeconds  *int    `yaml:"keepaliveExpirySeconds"`
		Retries                 *int    `yaml:"retries"`
		MaxRedirects            *int    `yaml:"maxRedirects"`
		UserAgent               *string `yaml:"userAgent"`
	} `yaml:"http"`
	Cache struct {
		TTLManifestSeconds *int    `yaml:"ttlM3U8Seconds"`
		TTLSegmentSeconds  *int    `yaml:"ttlSegmentSeconds"`
		TTLExtractSeconds  *int    `yaml:"ttlExtractSeconds"`
		Namespace          *string `yaml:"namespace"`
		RedisAddr          *string `yaml:"redisAddr"`
		RedisPassword      *string `yaml:"redisPassword"`
		RedisDB            *int    `yaml:"redisDB"`
	} `yaml:"cache"`
	Proxy struct {
		BasePath         *string `yaml:"basePath"`
		URLSafeChars     *string `yaml:"urlSafeChars"`
		BufferSize       *int    `yaml:"bufferSize"`
		PrefetchSegments *int    `yaml:"prefetchSegments"`
		InjectStartTag   *bool   `yaml:"injectStartTag"`
	} `yaml:"proxy"`
	Extraction struct {
		MaxStreams *int    `yaml:"maxStreams"`
		Workers    *int    `yaml:"workers"`
		YtdlpPath  *string `yaml:"ytdlpPath"`
	} `yaml:"extraction"`
	RateLimit struct {
		Enabled           *bool `yaml:"enabled"`
		RequestsPerMinute *int  `yaml:"requestsPerMinute"`
	} `yaml:"rateLimit"`
}

// applyFile overlays a YAML config file on top of s.
func applyFile(s *Settings, path string) error {
	data, err := os.ReadFile(path) // #nosec G304 -- path is operator-provided
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	setString(&s.Server.ListenAddr, fc.Server.ListenAddr)
	setString(&s.Server.LogLevel, fc.Server.LogLevel)
	setString(&s.Server.LogService, fc.Server.LogService)

	setSeconds(&s.HTTP.Timeout, fc.HTTP.TimeoutSeconds)
	setInt(&s.HTTP.MaxConnections, fc.HTTP.MaxConnections)
	setInt(&s.HTTP.MaxKeepaliveConnections, fc.HTTP.MaxKeepaliveConnections)
	setSeconds(&s.HTTP.KeepaliveExpiry, fc.HTTP.KeepaliveExpirySeconds)
	setInt(&s.HTTP.Retries, fc.HTTP.Retries)
	setInt(&s.HTTP.MaxRedirects, fc.HTTP.MaxRedirects)
	setString(&s.HTTP.UserAgent, fc.HTTP.UserAgent)

	setSeconds(&s.Cache.TTLManifest, fc.Cache.TTLManifestSeconds)
	setSeconds(&s.Cache.TTLSegment, fc.Cache.TTLSegmentSeconds)
	setSeconds(&s.Cache.TTLExtract, fc.Cache.TTLExtractSeconds)
	setString(&s.Cache.Namespace, fc.Cache.Namespace)
	setString(&s.Cache.RedisAddr, fc.Cache.RedisAddr)
	setString(&s.Cache.RedisPassword, fc.Cache.RedisPassword)
	setInt(&s.Cache.RedisDB, fc.Cache.RedisDB)

	setString(&s.Proxy.BasePath, fc.Proxy.BasePath)
	setString(&s.Proxy.URLSafeChars, fc.Proxy.URLSafeChars)
	setInt(&s.Proxy.BufferSize, fc.Proxy.BufferSize)
	setInt(&s.Proxy.PrefetchSegments, fc.Proxy.PrefetchSegments)
	setBool(&s.Proxy.InjectStartTag, fc.Proxy.InjectStartTag)

	setInt(&s.Extraction.MaxStreams, fc.Extraction.MaxStreams)
	setInt(&s.Extraction.Workers, fc.Extraction.Workers)
	setString(&s.Extraction.YtdlpPath, fc.Extraction.YtdlpPath)

	setBool(&s.RateLimit.Enabled, fc.RateLimit.Enabled)
	setInt(&s.RateLimit.RequestsPerMinute, fc.RateLimit.RequestsPerMinute)

	return nil
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

func setInt(dst *int, src *int) {
	if src != nil {
		*dst = *src
	}
}

func setBool(dst *bool, src *bool) {
	if src != nil {
		*dst = *src
	}
}

func setSeconds(dst *time.Duration, src *int) {
	if src != nil {
		*dst = time.Duration(*src) * time.Second
	}
}
