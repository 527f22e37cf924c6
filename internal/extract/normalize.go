// SPDX-License-Identifier: MIT

package extract

import (
	"fmt"
	"net/url"
	"strings"
)

// Normalize canonicalizes a source video URL to
// https://www.youtube.com/watch?v=ID, accepting the watch?v=, youtu.be/ and
// /embed/ forms. Returns ErrInvalidURL when no identifier is recoverable or
// the scheme is not http(s).
func Normalize(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidURL, raw)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("%w: unsupported scheme %q", ErrInvalidURL, u.Scheme)
	}

	if id := u.Query().Get("v"); id != "" {
		return canonical(id), nil
	}

	if u.Host == "youtu.be" {
		if id := strings.Trim(u.Path, "/"); id != "" {
			return canonical(id), nil
		}
	}

	if strings.Contains(u.Path, "embed") {
		parts := strings.Split(strings.Trim(u.Path, "/"), "/")
		if id := parts[len(parts)-1]; id != "" && id != "embed" {
			return canonical(id), nil
		}
	}

	return "", fmt.Errorf("%w: no video id in %q", ErrInvalidURL, raw)
}

func canonical(id string) string {
	return "https://www.youtube.com/watch?v=" + url.QueryEscape(id)
}
