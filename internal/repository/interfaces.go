package repository

import (
	"context"

	"github.com/lalith-99/castboard/internal/models"
)

// Every method takes ctx first: these all touch the database, and the
// handler's request context propagates cancellation; a display that
// hangs up mid-poll stops the query too.
//
// Lookup methods return (nil, nil) when the row is absent. "Not there"
// is a normal outcome for this system (displays poll channels that may
// not exist yet), so it is not modeled as an error at this layer.
// Mutation methods that address a row by name/id return
// apperr.NotFound when nothing matched.

// ChannelRepository is the registry of named display channels.
type ChannelRepository interface {
	// Insert creates a channel with no media bound. The name must already
	// be normalized (lowercased); a duplicate yields apperr.Conflict.
	Insert(ctx context.Context, name, description string) (*models.Channel, error)

	// GetState returns the channel enriched with its bound media's
	// details via LEFT JOIN. A dangling current_media_id leaves the
	// enrichment fields nil. Returns nil, nil if not found.
	GetState(ctx context.Context, name string) (*models.ChannelState, error)

	// ListStates returns all channels enriched the same way, newest
	// created first. Returns empty slice (not nil) so JSON serializes
	// to [] not null.
	ListStates(ctx context.Context) ([]models.ChannelState, error)

	// UpdateDescription replaces the description only; the media binding
	// is untouched.
	UpdateDescription(ctx context.Context, name, description string) error

	// SetCurrentMedia points the channel at mediaID. The previous binding
	// is simply overwritten; the previously bound media stays in the
	// library. Existence of mediaID is the caller's concern.
	SetCurrentMedia(ctx context.Context, name string, mediaID int64) error

	// Delete hard-deletes the channel row. Never cascades to media.
	Delete(ctx context.Context, name string) error
}

// MediaRepository is the metadata side of the media library; file bytes
// live in storage.DiskStore under Media.Filename.
type MediaRepository interface {
	// Insert records an uploaded file. Rows are immutable after this.
	Insert(ctx context.Context, filename, mimeType string) (*models.Media, error)

	// GetByID returns nil, nil if not found.
	GetByID(ctx context.Context, id int64) (*models.Media, error)

	// GetByFilename looks up by storage key. Returns nil, nil if not found.
	GetByFilename(ctx context.Context, filename string) (*models.Media, error)

	// ListPaged returns one page, newest first, plus the total row count
	// for pagination metadata.
	ListPaged(ctx context.Context, page models.PageOptions) ([]models.Media, int64, error)

	// Delete removes the metadata row only. It deliberately does not
	// check or clear channels referencing the id; see DESIGN.md on the
	// referential policy.
	Delete(ctx context.Context, id int64) error

	// ChannelsUsing is the reverse lookup, for display purposes only;
	// it never blocks deletion.
	ChannelsUsing(ctx context.Context, mediaID int64) ([]models.Channel, error)
}

// UserRepository backs operator login.
type UserRepository interface {
	// GetByUsername returns nil, nil if not found.
	GetByUsername(ctx context.Context, username string) (*models.User, error)

	// Create inserts an operator account with an already-hashed password.
	Create(ctx context.Context, username, passwordHash string) (*models.User, error)
}
