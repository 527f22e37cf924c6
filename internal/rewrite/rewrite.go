// SPDX-License-Identifier: MIT

// Package rewrite turns upstream HLS manifests into gateway-relative ones:
// every media reference and URI="..." attribute is resolved against the
// manifest's own URL, percent-encoded and routed through the proxy prefix.
package rewrite

import (
	"net/url"
	"regexp"
	"strings"
)

// startTag is prepended to manifests that lack their own #EXT-X-START so
// players begin at absolute offset 0 instead of seeking to the live edge.
const startTag = "#EXT-X-START:TIME-OFFSET=0,PRECISE=YES"

var uriAttrRe = regexp.MustCompile(`URI="([^"]+)"`)

// Rewriter rewrites M3U8 manifest bodies. The zero value encodes every
// non-unreserved byte and injects no start tag; use the fields to match the
// deployment's player expectations.
type Rewriter struct {
	// SafeChars lists additional bytes left unescaped when encoding
	// rewritten URLs. Empty means only RFC 3986 unreserved bytes survive.
	SafeChars string

	// InjectStartTag prepends #EXT-X-START when the manifest has none.
	InjectStartTag bool
}

// Rewrite returns body with all media references and URI attributes routed
// through proxyPrefix. base must be the absolute URL the manifest was fetched
// from; relative references are resolved against it. Pure function: directive
// text other than URI values is preserved byte for byte.
func (rw *Rewriter) Rewrite(body string, base *url.URL, proxyPrefix string) string {
	lines := strings.Split(body, "\n")
	out := make([]string, 0, len(lines)+1)

	if rw.InjectStartTag && !strings.Contains(body, "#EXT-X-START") {
		out = append(out, startTag)
	}

	for _, line := range lines {
		switch {
		case strings.TrimSpace(line) == "":
			// Whitespace-only lines pass through untouched.
			out = append(out, line)
		case strings.HasPrefix(line, "#"):
			out = append(out, uriAttrRe.ReplaceAllStringFunc(line, func(m string) string {
				ref := uriAttrRe.FindStringSubmatch(m)[1]
				return `URI="` + rw.Proxify(ref, base, proxyPrefix) + `"`
			}))
		default:
			out = append(out, rw.Proxify(strings.TrimSpace(line), base, proxyPrefix))
		}
	}

	return strings.Join(out, "\n")
}

// Proxify resolves ref against base and returns the proxied form
// proxyPrefix + percent-encoded absolute URL. An unparseable ref is returned
// unchanged rather than corrupted.
func (rw *Rewriter) Proxify(ref string, base *url.URL, proxyPrefix string) string {
	// Already routed through a proxy prefix; rewriting again would
	// double-encode the embedded URL.
	if strings.HasPrefix(ref, proxyPrefix) {
		return ref
	}

	abs, err := base.Parse(ref)
	if err != nil {
		return ref
	}

	return proxyPrefix + rw.Escape(abs.String())
}

// Escape percent-encodes s, leaving RFC 3986 unreserved bytes and the
// configured safe characters intact. Upper-case hex digits per the RFC.
func (rw *Rewriter) Escape(s string) string {
	var b strings.Builder
	b.Grow(len(s) * 3)

	for i := 0; i < len(s); i++ {
		c := s[i]
		if isUnreserved(c) || strings.IndexByte(rw.SafeChars, c) >= 0 {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(upperhex[c>>4])
		b.WriteByte(upperhex[c&0x0f])
	}

	return b.String()
}

const upperhex = "0123456789ABCDEF"

func isUnreserved(c byte) bool {
	switch {
	case 'A' <= c && c <= 'Z', 'a' <= c && c <= 'z', '0' <= c && c <= '9':
		return true
	case c == '-' || c == '_' || c == '.' || c == '~':
		return true
	}
	return false
}
