// Package upload implements the multi-step media ingest workflow:
// validate, write the blob, insert metadata, optionally bind to a
// channel. Each step has a defined compensation, and the sequence is
// deliberately not atomic; a failure after the media is safely in the
// library degrades to a warning instead of throwing the asset away.
package upload

import (
	"context"
	"io"

	"github.com/lalith-99/castboard/internal/apperr"
	"github.com/lalith-99/castboard/internal/models"
	"github.com/lalith-99/castboard/internal/repository"
	"github.com/lalith-99/castboard/internal/storage"
	"go.uber.org/zap"
)

// BlobStore is the slice of storage.DiskStore the pipeline needs.
type BlobStore interface {
	Save(key string, r io.Reader) error
	Remove(key string) error
}

// Limits are the upload preconditions, checked before any I/O happens.
type Limits struct {
	MaxFileSize int64
	AllowedMIME []string
}

// Allowed reports whether mime is on the allow-list.
func (l Limits) Allowed(mime string) bool {
	for _, m := range l.AllowedMIME {
		if m == mime {
			return true
		}
	}
	return false
}

type Pipeline struct {
	media    repository.MediaRepository
	channels repository.ChannelRepository
	blobs    BlobStore
	limits   Limits
	logger   *zap.Logger
}

func NewPipeline(
	media repository.MediaRepository,
	channels repository.ChannelRepository,
	blobs BlobStore,
	limits Limits,
	logger *zap.Logger,
) *Pipeline {
	return &Pipeline{
		media:    media,
		channels: channels,
		blobs:    blobs,
		limits:   limits,
		logger:   logger,
	}
}

// Input describes one incoming file. Channel, when non-empty, is the
// normalized name of the channel the new media should be bound to.
type Input struct {
	Filename string
	MimeType string
	Size     int64
	Data     io.Reader
	Channel  string
}

// Result is returned on success. A non-empty Warning means the media is
// stored and usable but the secondary channel-linking step failed:
// "succeeded with a warning", never a hard failure.
type Result struct {
	Media   *models.Media
	Warning string
}

// Run executes the ordered steps:
//
//  1. Validate MIME and size. No side effects on failure.
//  2. Write the blob. Failure: apperr.KindStorage, nothing persisted.
//  3. Insert the metadata row. Failure: the just-written blob is removed
//     (compensation, best-effort) and apperr.KindPersistence returned.
//  4. Bind to Input.Channel if set. Failure here does NOT roll back 2–3:
//     the media is valid on its own in the library, so the error is
//     downgraded to Result.Warning.
func (p *Pipeline) Run(ctx context.Context, in Input) (*Result, error) {
	if !p.limits.Allowed(in.MimeType) {
		return nil, apperr.Validation("Invalid file type.")
	}
	if in.Size > p.limits.MaxFileSize {
		return nil, apperr.Validation("File size exceeds %d MB limit.",
			p.limits.MaxFileSize/(1024*1024))
	}

	key := storage.GenerateKey(in.Filename)
	if err := p.blobs.Save(key, in.Data); err != nil {
		return nil, apperr.Storage("Failed to save media file.", err)
	}

	media, err := p.media.Insert(ctx, key, in.MimeType)
	if err != nil {
		// Compensate: the blob without a row is unreachable garbage.
		// Its own failure is logged, not re-raised; the caller's error
		// is the metadata one.
		if rmErr := p.blobs.Remove(key); rmErr != nil {
			p.logger.Warn("compensation failed: orphaned upload left on disk",
				zap.String("key", key),
				zap.Error(rmErr),
			)
		}
		return nil, apperr.Persistence("File uploaded but failed to save to database.", err)
	}

	res := &Result{Media: media}

	if in.Channel != "" {
		if err := p.channels.SetCurrentMedia(ctx, in.Channel, media.ID); err != nil {
			p.logger.Warn("media stored but channel linking failed",
				zap.String("channel", in.Channel),
				zap.Int64("media_id", media.ID),
				zap.Error(err),
			)
			res.Warning = "Media uploaded but channel linking failed."
		}
	}

	return res, nil
}
