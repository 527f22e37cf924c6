// SPDX-License-Identifier: MIT

package config

import (
	"fmt"
	"strings"
)

// Loader assembles Settings with precedence ENV > file > defaults.
type Loader struct {
	path    string
	version string
}

// NewLoader creates a configuration loader. path may be empty (no file layer).
func NewLoader(path, version string) *Loader {
	return &Loader{path: strings.TrimSpace(path), version: version}
}

// Load builds the effective configuration.
func (l *Loader) Load() (Settings, error) {
	s := Defaults()
	s.Version = l.version

	if l.path != "" {
		if err := applyFile(&s, l.path); err != nil {
			return Settings{}, err
		}
	}

	applyEnv(&s)

	if err := validate(&s); err != nil {
		return Settings{}, err
	}
	return s, nil
}

func validate(s *Settings) error {
	if s.Server.ListenAddr == "" {
		return fmt.Errorf("listen address is required")
	}
	if s.HTTP.Retries < 0 {
		return fmt.Errorf("http retries must be >= 0, got %d", s.HTTP.Retries)
	}
	if s.Proxy.PrefetchSegments < 1 {
		return fmt.Errorf("prefetch segments must be >= 1, got %d", s.Proxy.PrefetchSegments)
	}
	if s.Proxy.BufferSize < 1 {
		return fmt.Errorf("buffer size must be >= 1, got %d", s.Proxy.BufferSize)
	}
	if s.Extraction.Workers < 1 {
		return fmt.Errorf("extraction workers must be >= 1, got %d", s.Extraction.Workers)
	}
	return nil
}
