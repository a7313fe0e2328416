package api

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/lalith-99/castboard/internal/models"
	"github.com/lalith-99/castboard/internal/repository"
	"github.com/lalith-99/castboard/internal/storage"
	"go.uber.org/zap"
)

// MediaHandler serves the media library reads and the binary download
// the displays fetch when a binding changes.
type MediaHandler struct {
	repo   repository.MediaRepository
	blobs  *storage.DiskStore
	logger *zap.Logger
}

func NewMediaHandler(repo repository.MediaRepository, blobs *storage.DiskStore, logger *zap.Logger) *MediaHandler {
	return &MediaHandler{repo: repo, blobs: blobs, logger: logger}
}

// parsePage reads limit/offset query params into validated PageOptions.
// Absent or unparseable values fall back to the defaults; out-of-range
// values are clamped, never rejected.
func parsePage(c *gin.Context) models.PageOptions {
	limit := models.PageLimitDefault
	if l := c.Query("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil {
			limit = n
		}
	}
	offset := 0
	if o := c.Query("offset"); o != "" {
		if n, err := strconv.Atoi(o); err == nil {
			offset = n
		}
	}
	return models.ClampPage(limit, offset)
}

// List handles GET /api/media?limit=50&offset=0: one page of the
// library, newest first, with pagination metadata.
func (h *MediaHandler) List(c *gin.Context) {
	page := parsePage(c)

	items, total, err := h.repo.ListPaged(c.Request.Context(), page)
	if err != nil {
		h.logger.Error("failed to list media", zap.Error(err))
		respondMessage(c, http.StatusInternalServerError, "error", "Failed to list media.")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"type": "success",
		"data": items,
		"pagination": Pagination{
			Limit:  page.Limit,
			Offset: page.Offset,
			Total:  total,
		},
	})
}

// Get handles GET /api/media/:id: a single item plus the channels
// currently bound to it. The usage list is informational: it is shown to
// the operator before a delete, but never blocks one.
func (h *MediaHandler) Get(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		respondMessage(c, http.StatusBadRequest, "error", "Invalid media id.")
		return
	}

	m, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("failed to get media", zap.Int64("media_id", id), zap.Error(err))
		respondMessage(c, http.StatusInternalServerError, "error", "Failed to fetch media.")
		return
	}
	if m == nil {
		respondMessage(c, http.StatusNotFound, "error", "Media not found.")
		return
	}

	channels, err := h.repo.ChannelsUsing(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("failed to list channels using media", zap.Int64("media_id", id), zap.Error(err))
		respondMessage(c, http.StatusInternalServerError, "error", "Failed to fetch media.")
		return
	}

	respondData(c, gin.H{
		"id":               m.ID,
		"filename":         m.Filename,
		"mime_type":        m.MimeType,
		"created_at":       m.CreatedAt,
		"used_by_channels": channels,
	})
}

// Download handles GET /api/media/:id/download: streams the stored
// bytes with the stored Content-Type. ?download=1 switches to attachment
// disposition with the file's basename; download=0 stays inline.
//
// A row without its file (or the reverse) is answered not-found: the
// two can genuinely diverge when a delete races an in-flight download,
// and that race is explicitly best-effort.
func (h *MediaHandler) Download(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		respondMessage(c, http.StatusBadRequest, "error", "Invalid media id.")
		return
	}

	m, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("failed to get media", zap.Int64("media_id", id), zap.Error(err))
		respondMessage(c, http.StatusInternalServerError, "error", "Failed to fetch media.")
		return
	}
	if m == nil {
		respondMessage(c, http.StatusNotFound, "error", "Media file not found.")
		return
	}

	f, err := h.blobs.Open(m.Filename)
	if err != nil {
		respondMessage(c, http.StatusNotFound, "error", "Media file not found.")
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		h.logger.Error("failed to stat media file", zap.String("filename", m.Filename), zap.Error(err))
		respondMessage(c, http.StatusInternalServerError, "error", "Failed to read media file.")
		return
	}

	var extra map[string]string
	if flag := c.Query("download"); flag != "" && flag != "0" {
		extra = map[string]string{
			"Content-Disposition": fmt.Sprintf("attachment; filename=%q", filepath.Base(m.Filename)),
		}
	}

	c.DataFromReader(http.StatusOK, info.Size(), m.MimeType, f, extra)
}
