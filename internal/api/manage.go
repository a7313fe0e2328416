package api

import (
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/lalith-99/castboard/internal/apperr"
	"github.com/lalith-99/castboard/internal/cache"
	"github.com/lalith-99/castboard/internal/middleware"
	"github.com/lalith-99/castboard/internal/models"
	"github.com/lalith-99/castboard/internal/repository"
	"github.com/lalith-99/castboard/internal/storage"
	"github.com/lalith-99/castboard/internal/upload"
	"go.uber.org/zap"
)

// ManageHandler is the write side: one form/multipart endpoint dispatched
// on the "action" field, covering channel CRUD, uploads, and bindings.
// Every action answers {message, type: success|warning|error}.
type ManageHandler struct {
	channels repository.ChannelRepository
	media    repository.MediaRepository
	pipeline *upload.Pipeline
	blobs    *storage.DiskStore
	cache    *cache.ChannelCache
	logger   *zap.Logger
}

func NewManageHandler(
	channels repository.ChannelRepository,
	media repository.MediaRepository,
	pipeline *upload.Pipeline,
	blobs *storage.DiskStore,
	cc *cache.ChannelCache,
	logger *zap.Logger,
) *ManageHandler {
	return &ManageHandler{
		channels: channels,
		media:    media,
		pipeline: pipeline,
		blobs:    blobs,
		cache:    cc,
		logger:   logger,
	}
}

// Handle handles POST /api/manage. Every mutation is logged with the
// acting operator before dispatch; display reads never come through here.
func (h *ManageHandler) Handle(c *gin.Context) {
	action := c.PostForm("action")
	h.logger.Info("manage action",
		zap.String("action", action),
		zap.String("operator", middleware.GetUsername(c)),
	)

	switch action {
	case "create":
		h.createChannel(c)
	case "update":
		h.updateChannel(c)
	case "delete":
		h.deleteChannel(c)
	case "set_media":
		h.setMedia(c)
	case "upload_media":
		h.uploadMedia(c)
	case "delete_media":
		h.deleteMedia(c)
	default:
		respondMessage(c, http.StatusBadRequest, "error", "Invalid action.")
	}
}

// formFile returns the uploaded "media" part, or nil when the form has
// none; an absent file is a normal case for create/update.
func formFile(c *gin.Context) *multipart.FileHeader {
	fh, err := c.FormFile("media")
	if err != nil {
		return nil
	}
	return fh
}

// runPipeline feeds one multipart file through the upload workflow.
func (h *ManageHandler) runPipeline(c *gin.Context, fh *multipart.FileHeader, channel string) (*upload.Result, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, apperr.Storage("Upload failed.", err)
	}
	defer f.Close()

	return h.pipeline.Run(c.Request.Context(), upload.Input{
		Filename: fh.Filename,
		MimeType: fh.Header.Get("Content-Type"),
		Size:     fh.Size,
		Data:     f,
		Channel:  channel,
	})
}

// createChannel handles action=create: insert the channel, then deal with
// an optional media file or library media_id.
//
// The channel insert is the primary step and is never rolled back. Any
// failure in the secondary upload/link steps downgrades the response to
// a warning: the operator gets a channel without a binding, told so
// explicitly, instead of losing the channel over a bad file. This
// multi-resource operation is intentionally not atomic.
func (h *ManageHandler) createChannel(c *gin.Context) {
	name := models.NormalizeChannelName(c.PostForm("name"))
	desc := c.PostForm("desc")

	if !models.ValidChannelName(name) {
		respondMessage(c, http.StatusBadRequest, "error",
			"Invalid channel name: only letters, numbers, -, _ allowed.")
		return
	}

	if _, err := h.channels.Insert(c.Request.Context(), name, desc); err != nil {
		h.logger.Error("failed to create channel", zap.String("channel", name), zap.Error(err))
		respondAppError(c, err)
		return
	}
	defer h.cache.Invalidate(c.Request.Context(), name)

	if fh := formFile(c); fh != nil {
		res, err := h.runPipeline(c, fh, name)
		if err != nil {
			respondMessage(c, http.StatusOK, "warning",
				"Channel created but media upload failed: "+userReason(err))
			return
		}
		if res.Warning != "" {
			respondMessage(c, http.StatusOK, "warning", "Channel created but media linking failed.")
			return
		}
		respondMessage(c, http.StatusOK, "success", "Channel created and media uploaded.")
		return
	}

	if rawID := c.PostForm("media_id"); rawID != "" {
		mediaID, err := strconv.ParseInt(rawID, 10, 64)
		if err != nil {
			respondMessage(c, http.StatusOK, "warning", "Channel created but media not found.")
			return
		}
		m, err := h.media.GetByID(c.Request.Context(), mediaID)
		if err != nil || m == nil {
			respondMessage(c, http.StatusOK, "warning", "Channel created but media not found.")
			return
		}
		if err := h.channels.SetCurrentMedia(c.Request.Context(), name, m.ID); err != nil {
			h.logger.Warn("channel created but linking failed",
				zap.String("channel", name), zap.Int64("media_id", m.ID), zap.Error(err))
			respondMessage(c, http.StatusOK, "warning", "Channel created but media linking failed.")
			return
		}
		respondMessage(c, http.StatusOK, "success", "Channel created and media linked.")
		return
	}

	respondMessage(c, http.StatusOK, "success", "Channel created.")
}

// updateChannel handles action=update: replace the description, then
// optionally replace the bound media with a fresh upload or a library
// media_id. Same warning semantics as create; the description update is
// never rolled back.
func (h *ManageHandler) updateChannel(c *gin.Context) {
	name := models.NormalizeChannelName(c.PostForm("name_old"))
	if name == "" {
		name = models.NormalizeChannelName(c.PostForm("name"))
	}
	desc := c.PostForm("desc")

	if err := h.channels.UpdateDescription(c.Request.Context(), name, desc); err != nil {
		respondAppError(c, err)
		return
	}
	defer h.cache.Invalidate(c.Request.Context(), name)

	if fh := formFile(c); fh != nil {
		res, err := h.runPipeline(c, fh, name)
		if err != nil {
			respondMessage(c, http.StatusOK, "warning",
				"Channel updated but media upload failed: "+userReason(err))
			return
		}
		if res.Warning != "" {
			respondMessage(c, http.StatusOK, "warning", "Channel updated but media linking failed.")
			return
		}
		respondMessage(c, http.StatusOK, "success", "Channel updated and media replaced.")
		return
	}

	if rawID := c.PostForm("media_id"); rawID != "" {
		mediaID, err := strconv.ParseInt(rawID, 10, 64)
		if err != nil {
			respondMessage(c, http.StatusOK, "warning", "Channel updated but media not found.")
			return
		}
		m, err := h.media.GetByID(c.Request.Context(), mediaID)
		if err != nil || m == nil {
			respondMessage(c, http.StatusOK, "warning", "Channel updated but media not found.")
			return
		}
		if err := h.channels.SetCurrentMedia(c.Request.Context(), name, m.ID); err != nil {
			h.logger.Warn("channel updated but linking failed",
				zap.String("channel", name), zap.Int64("media_id", m.ID), zap.Error(err))
			respondMessage(c, http.StatusOK, "warning", "Channel updated but media linking failed.")
			return
		}
		respondMessage(c, http.StatusOK, "success", "Channel updated and media linked.")
		return
	}

	respondMessage(c, http.StatusOK, "success", "Channel updated.")
}

// deleteChannel handles action=delete: hard delete. Bound media stays in
// the library untouched; channels never own media.
func (h *ManageHandler) deleteChannel(c *gin.Context) {
	name := models.NormalizeChannelName(c.PostForm("name"))
	if name == "" {
		respondMessage(c, http.StatusBadRequest, "error", "Channel name required.")
		return
	}

	if err := h.channels.Delete(c.Request.Context(), name); err != nil {
		respondAppError(c, err)
		return
	}
	h.cache.Invalidate(c.Request.Context(), name)

	respondMessage(c, http.StatusOK, "success", "Channel deleted.")
}

// setMedia handles action=set_media: point a channel at an existing
// library item. Both sides are checked first, so a bind against a
// missing media id fails cleanly with the channel's binding unchanged.
func (h *ManageHandler) setMedia(c *gin.Context) {
	name := models.NormalizeChannelName(c.PostForm("channel_name"))
	if name == "" {
		name = models.NormalizeChannelName(c.PostForm("channel"))
	}

	mediaID, err := strconv.ParseInt(c.PostForm("media_id"), 10, 64)
	if err != nil {
		respondMessage(c, http.StatusBadRequest, "error", "Invalid media id.")
		return
	}

	ch, err := h.channels.GetState(c.Request.Context(), name)
	if err != nil {
		h.logger.Error("failed to get channel", zap.String("channel", name), zap.Error(err))
		respondMessage(c, http.StatusInternalServerError, "error", "Failed to set media.")
		return
	}
	if ch == nil {
		respondMessage(c, http.StatusNotFound, "error", "Channel not found.")
		return
	}

	m, err := h.media.GetByID(c.Request.Context(), mediaID)
	if err != nil {
		h.logger.Error("failed to get media", zap.Int64("media_id", mediaID), zap.Error(err))
		respondMessage(c, http.StatusInternalServerError, "error", "Failed to set media.")
		return
	}
	if m == nil {
		respondMessage(c, http.StatusNotFound, "error", "Media not found.")
		return
	}

	if err := h.channels.SetCurrentMedia(c.Request.Context(), name, m.ID); err != nil {
		h.logger.Error("failed to set channel media",
			zap.String("channel", name), zap.Int64("media_id", m.ID), zap.Error(err))
		respondAppError(c, err)
		return
	}
	h.cache.Invalidate(c.Request.Context(), name)

	respondMessage(c, http.StatusOK, "success", "Media set for channel.")
}

// uploadMedia handles action=upload_media: library upload, optionally
// bound to a channel in the same request.
func (h *ManageHandler) uploadMedia(c *gin.Context) {
	fh := formFile(c)
	if fh == nil {
		respondMessage(c, http.StatusBadRequest, "error", "Upload failed.")
		return
	}
	channel := models.NormalizeChannelName(c.PostForm("channel"))

	res, err := h.runPipeline(c, fh, channel)
	if err != nil {
		respondAppError(c, err)
		return
	}
	if channel != "" {
		h.cache.Invalidate(c.Request.Context(), channel)
	}

	if res.Warning != "" {
		respondMessage(c, http.StatusOK, "warning", res.Warning)
		return
	}
	respondMessage(c, http.StatusOK, "success", "Media uploaded successfully.")
}

// deleteMedia handles action=delete_media: remove file (best-effort,
// missing tolerated) then the row. Channels still pointing at the id
// keep their dangling pointer on purpose; their poll responses simply
// lose the enrichment fields. See DESIGN.md for the policy.
func (h *ManageHandler) deleteMedia(c *gin.Context) {
	mediaID, err := strconv.ParseInt(c.PostForm("media_id"), 10, 64)
	if err != nil {
		respondMessage(c, http.StatusBadRequest, "error", "Invalid media id.")
		return
	}

	m, err := h.media.GetByID(c.Request.Context(), mediaID)
	if err != nil {
		h.logger.Error("failed to get media", zap.Int64("media_id", mediaID), zap.Error(err))
		respondMessage(c, http.StatusInternalServerError, "error", "Failed to delete media.")
		return
	}
	if m == nil {
		respondMessage(c, http.StatusNotFound, "error", "Media not found.")
		return
	}

	// Affected channels are looked up before the row goes away, purely
	// to drop their cached poll responses.
	if using, err := h.media.ChannelsUsing(c.Request.Context(), mediaID); err == nil {
		names := make([]string, len(using))
		for i, ch := range using {
			names[i] = ch.Name
		}
		h.cache.Invalidate(c.Request.Context(), names...)
	}

	if err := h.blobs.Remove(m.Filename); err != nil {
		h.logger.Warn("failed to remove media file, deleting row anyway",
			zap.String("filename", m.Filename), zap.Error(err))
	}

	if err := h.media.Delete(c.Request.Context(), mediaID); err != nil {
		respondAppError(c, err)
		return
	}

	respondMessage(c, http.StatusOK, "success", "Media deleted.")
}
