// SPDX-License-Identifier: MIT

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldRequestID = "request_id"

	// Process fields
	FieldEvent     = "event"
	FieldComponent = "component"

	// Media / proxy fields
	FieldUpstreamURL = "upstream_url"
	FieldSegment     = "segment"
	FieldKind        = "kind"
	FieldCacheKey    = "cache_key"

	// Path / URL fields
	FieldPath    = "path"
	FieldBaseURL = "base_url"
)
