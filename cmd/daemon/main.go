// SPDX-License-Identifier: MIT
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/oculora/hlsgate/internal/api"
	"github.com/oculora/hlsgate/internal/cache"
	"github.com/oculora/hlsgate/internal/config"
	"github.com/oculora/hlsgate/internal/extract"
	"github.com/oculora/hlsgate/internal/fetch"
	"github.com/oculora/hlsgate/internal/health"
	hlog "github.com/oculora/hlsgate/internal/log"
	"github.com/oculora/hlsgate/internal/prefetch"
	"github.com/oculora/hlsgate/internal/rewrite"
)

var (
	version   = "v1.0.0"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "path to config file (YAML)")
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	// Safe logging defaults until config is loaded.
	hlog.Configure(hlog.Config{
		Level:   "info",
		Service: "hlsgate",
		Version: version,
	})
	logger := hlog.WithComponent("daemon")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.NewLoader(*configPath, version).Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("configuration invalid")
	}

	hlog.Configure(hlog.Config{
		Level:   cfg.Server.LogLevel,
		Service: cfg.Server.LogService,
		Version: version,
	})

	// Manifest and extraction results live in memory; segment bytes move to
	// Redis when an address is configured so replicas share one tier.
	memory := cache.NewMemory(cfg.Cache.CleanupInterval)
	defer memory.Stop()

	var segments cache.Cache = memory
	backend := "memory"
	if cfg.Cache.RedisAddr != "" {
		redisCache, err := cache.NewRedis(cache.RedisConfig{
			Addr:     cfg.Cache.RedisAddr,
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
		}, hlog.WithComponent("cache.redis"))
		if err != nil {
			logger.Fatal().Err(err).Str("addr", cfg.Cache.RedisAddr).Msg("redis connection failed")
		}
		defer func() { _ = redisCache.Close() }()
		segments = redisCache
		backend = "redis"
	}

	manifests := cache.NewFlight(memory)
	extractions := cache.NewFlight(memory)

	fetcher := fetch.New(fetch.Config{
		Timeout:                 cfg.HTTP.Timeout,
		MaxConnections:          cfg.HTTP.MaxConnections,
		MaxKeepaliveConnections: cfg.HTTP.MaxKeepaliveConnections,
		KeepaliveExpiry:         cfg.HTTP.KeepaliveExpiry,
		Retries:                 cfg.HTTP.Retries,
		MaxRedirects:            cfg.HTTP.MaxRedirects,
		UserAgent:               cfg.HTTP.UserAgent,
	}, hlog.WithComponent("fetch"))

	rewriter := &rewrite.Rewriter{
		SafeChars:      cfg.Proxy.URLSafeChars,
		InjectStartTag: cfg.Proxy.InjectStartTag,
	}

	prefetcher := prefetch.New(fetcher, segments, prefetch.Config{
		Window:     cfg.Proxy.PrefetchSegments,
		ChunkSize:  cfg.Proxy.BufferSize,
		Namespace:  cfg.Cache.Namespace,
		SegmentTTL: cfg.Cache.TTLSegment,
	}, hlog.WithComponent("prefetch"))

	pool := extract.NewPool(cfg.Extraction.Workers)
	ytdlp := extract.NewYtDlp(extract.YtDlpConfig{
		Path:                cfg.Extraction.YtdlpPath,
		UserAgent:           cfg.HTTP.UserAgent,
		SupportedProtocols:  cfg.Extraction.SupportedProtocols,
		ManifestCheck:       cfg.Extraction.ManifestCheckString,
		MaxStreams:          cfg.Extraction.MaxStreams,
		DefaultVideoQuality: cfg.Extraction.DefaultVideoQuality,
		AudioQualityPrefix:  cfg.Extraction.AudioQualityPrefix,
		UnknownHeightLabel:  cfg.Extraction.UnknownHeightLabel,
	}, pool, hlog.WithComponent("extract.ytdlp"))

	extractService := extract.NewService(ytdlp, extractions, rewriter, extract.ServiceConfig{
		TTLExtract:      cfg.Cache.TTLExtract,
		TTLStreamDirect: cfg.Cache.TTLStreamDirect,
		TTLPlaylist:     cfg.Cache.TTLPlaylist,
		BatchLimit:      20,
	}, hlog.WithComponent("extract"))

	server := api.New(&cfg, api.Deps{
		Manifests:  manifests,
		Fetcher:    fetcher,
		Rewriter:   rewriter,
		Prefetcher: prefetcher,
		Extract:    extractService,
		Health:     health.New(cfg.Server.LogService, version, backend),
	}, hlog.WithComponent("api"))

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown incomplete")
	}

	logger.Info().Msg("stopped")
}
