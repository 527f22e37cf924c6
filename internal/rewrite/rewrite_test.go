// SPDX-License-Identifier: MIT

package rewrite

import (
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

const prefix = "http://gw.local/proxy?url="

func TestRewrite_MediaLines(t *testing.T) {
	rw := &Rewriter{InjectStartTag: true}
	base := mustParse(t, "https://ex.com/a.m3u8")

	body := "#EXTM3U\n#EXTINF:10,\nseg1.ts\n"
	out := rw.Rewrite(body, base, prefix)

	lines := strings.Split(out, "\n")
	assert.Equal(t, "#EXT-X-START:TIME-OFFSET=0,PRECISE=YES", lines[0])
	assert.Equal(t, "#EXTM3U", lines[1])
	assert.Equal(t, "#EXTINF:10,", lines[2])
	assert.Equal(t, prefix+"https%3A%2F%2Fex.com%2Fseg1.ts", lines[3])
}

func TestRewrite_URIAttributes(t *testing.T) {
	rw := &Rewriter{}
	base := mustParse(t, "https://ex.com/a.m3u8")

	line := `#EXT-X-KEY:METHOD=AES-128,URI="https://ex.com/key.bin",IV=0x0`
	out := rw.Rewrite(line, base, prefix)

	assert.Equal(t,
		`#EXT-X-KEY:METHOD=AES-128,URI="`+prefix+`https%3A%2F%2Fex.com%2Fkey.bin",IV=0x0`,
		out)
}

func TestRewrite_MultipleURIAttributesPerLine(t *testing.T) {
	rw := &Rewriter{}
	base := mustParse(t, "https://ex.com/a.m3u8")

	line := `#EXT-X-FOO:URI="k1.bin",URI="k2.bin"`
	out := rw.Rewrite(line, base, prefix)

	assert.Contains(t, out, prefix+"https%3A%2F%2Fex.com%2Fk1.bin")
	assert.Contains(t, out, prefix+"https%3A%2F%2Fex.com%2Fk2.bin")
}

func TestRewrite_RelativeResolution(t *testing.T) {
	rw := &Rewriter{}
	base := mustParse(t, "https://ex.com/path/deep/a.m3u8")

	tests := []struct {
		name string
		ref  string
		want string
	}{
		{"sibling", "seg.ts", "https://ex.com/path/deep/seg.ts"},
		{"parent", "../seg.ts", "https://ex.com/path/seg.ts"},
		{"rooted", "/seg.ts", "https://ex.com/seg.ts"},
		{"absolute", "https://cdn.com/seg.ts", "https://cdn.com/seg.ts"},
		{"scheme relative", "//cdn.com/seg.ts", "https://cdn.com/seg.ts"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := rw.Rewrite(tt.ref, base, prefix)
			assert.Equal(t, prefix+rw.Escape(tt.want), out)
		})
	}
}

func TestRewrite_BlankLinesUnchanged(t *testing.T) {
	rw := &Rewriter{}
	base := mustParse(t, "https://ex.com/a.m3u8")

	body := "#EXTM3U\n\n   \nseg.ts"
	out := rw.Rewrite(body, base, prefix)

	lines := strings.Split(out, "\n")
	assert.Equal(t, "", lines[1])
	assert.Equal(t, "   ", lines[2])
}

func TestRewrite_StartTagInjection(t *testing.T) {
	base := mustParse(t, "https://ex.com/a.m3u8")

	t.Run("injected when absent", func(t *testing.T) {
		rw := &Rewriter{InjectStartTag: true}
		out := rw.Rewrite("#EXTM3U", base, prefix)
		assert.True(t, strings.HasPrefix(out, "#EXT-X-START:TIME-OFFSET=0,PRECISE=YES\n"))
	})

	t.Run("not duplicated", func(t *testing.T) {
		rw := &Rewriter{InjectStartTag: true}
		body := "#EXT-X-START:TIME-OFFSET=5.0\n#EXTM3U"
		out := rw.Rewrite(body, base, prefix)
		assert.Equal(t, 1, strings.Count(out, "#EXT-X-START"))
	})

	t.Run("disabled", func(t *testing.T) {
		rw := &Rewriter{}
		out := rw.Rewrite("#EXTM3U", base, prefix)
		assert.NotContains(t, out, "#EXT-X-START")
	})
}

func TestRewrite_Idempotent(t *testing.T) {
	rw := &Rewriter{InjectStartTag: true}
	base := mustParse(t, "https://ex.com/a.m3u8")

	body := "#EXTM3U\nseg1.ts\nseg2.ts"
	once := rw.Rewrite(body, base, prefix)
	twice := rw.Rewrite(once, base, prefix)

	assert.Equal(t, once, twice)
}

func TestEscape(t *testing.T) {
	tests := []struct {
		name string
		rw   Rewriter
		in   string
		want string
	}{
		{"unreserved untouched", Rewriter{}, "abcXYZ019-_.~", "abcXYZ019-_.~"},
		{"reserved encoded", Rewriter{}, "https://a/b?c=d&e", "https%3A%2F%2Fa%2Fb%3Fc%3Dd%26e"},
		{"safe chars exempt", Rewriter{SafeChars: "/:"}, "https://a/b", "https://a/b"},
		{"space", Rewriter{}, "a b", "a%20b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.rw.Escape(tt.in))
		})
	}
}
