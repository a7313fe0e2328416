package models

import (
	"regexp"
	"strings"
	"time"
)

// Channel is a named display slot. Each unattended display points at exactly
// one channel and renders whatever media is currently bound to it.
//
// Why CurrentMediaID is a *int64 and not int64?
//   - The binding is optional: a freshly created channel has no media.
//   - A nil pointer scans cleanly from a NULL column and marshals to
//     JSON null, which is exactly what polling clients diff against.
//
// The pointer is movable, not owning: rebinding a channel never deletes
// the previously bound media, and deleting media never clears bindings
// that reference it. Reads resolve dangling pointers with a LEFT JOIN.
type Channel struct {
	ID             int64     `json:"id"`
	Name           string    `json:"name"`
	Description    string    `json:"description"`
	CurrentMediaID *int64    `json:"current_media_id"`
	CreatedAt      time.Time `json:"created_at"`
}

// Media is a stored binary asset: a metadata row plus a file on disk under
// Filename (the generated storage key). Rows are immutable after insert.
type Media struct {
	ID        int64     `json:"id"`
	Filename  string    `json:"filename"`
	MimeType  string    `json:"mime_type"`
	CreatedAt time.Time `json:"created_at"`
}

// ChannelState is a channel enriched with its bound media's details, the
// shape the poll and list endpoints return. The enrichment fields are
// pointers with omitempty: when CurrentMediaID dangles (media was deleted
// out from under the channel) the LEFT JOIN yields NULLs and the fields
// are simply omitted rather than erroring.
type ChannelState struct {
	Channel
	MediaID       *int64  `json:"media_id,omitempty"`
	MediaFilename *string `json:"filename,omitempty"`
	MediaMimeType *string `json:"mime_type,omitempty"`
}

// User is an operator account. Displays never authenticate; only the
// management actions require a logged-in operator.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// namePattern is the full set of characters a channel name may contain.
// Names are lowercased before validation and storage, which is what makes
// uniqueness case-insensitive by construction.
var namePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// NormalizeChannelName lowercases and trims a raw channel name.
// Every code path that touches a channel by name goes through this first,
// so "Lobby" and "lobby" always address the same row.
func NormalizeChannelName(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// ValidChannelName reports whether a (normalized) name is non-empty and
// matches the allowed pattern.
func ValidChannelName(name string) bool {
	return name != "" && namePattern.MatchString(name)
}

// Pagination bounds for the media library listing.
const (
	PageLimitDefault = 50
	PageLimitMax     = 100
)

// PageOptions is the validated form of the limit/offset query parameters.
// Out-of-range values are clamped, never rejected: a display wall fetching
// the library with limit=500 gets 100 rows, not a 400.
type PageOptions struct {
	Limit  int
	Offset int
}

// ClampPage builds PageOptions from raw integers, clamping limit into
// [1, PageLimitMax] and offset to >= 0. Callers apply PageLimitDefault
// when the parameter was absent, before clamping.
func ClampPage(limit, offset int) PageOptions {
	if limit < 1 {
		limit = 1
	}
	if limit > PageLimitMax {
		limit = PageLimitMax
	}
	if offset < 0 {
		offset = 0
	}
	return PageOptions{Limit: limit, Offset: offset}
}
