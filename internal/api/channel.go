package api

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lalith-99/castboard/internal/cache"
	"github.com/lalith-99/castboard/internal/models"
	"github.com/lalith-99/castboard/internal/repository"
	"go.uber.org/zap"
)

// ChannelHandler serves the read side of the sync protocol: the poll
// endpoint every display hits on its tick, and the enriched list the
// management UI renders.
type ChannelHandler struct {
	repo   repository.ChannelRepository
	cache  *cache.ChannelCache
	logger *zap.Logger
}

func NewChannelHandler(repo repository.ChannelRepository, cc *cache.ChannelCache, logger *zap.Logger) *ChannelHandler {
	return &ChannelHandler{repo: repo, cache: cc, logger: logger}
}

// Get handles GET /api/channels/:name, the poll endpoint.
//
// A missing channel is answered with HTTP 200 and {type:"error", data:null},
// NOT a 404. Displays poll in a loop; a channel that isn't provisioned yet
// is an expected transient, and an error status would turn every tick into
// log/alert noise on the client side.
//
// Responses are serialized once and cached byte-for-byte, so two polls
// with no intervening mutation return identical payloads.
func (h *ChannelHandler) Get(c *gin.Context) {
	name := models.NormalizeChannelName(c.Param("name"))

	if payload, ok := h.cache.Get(c.Request.Context(), name); ok {
		c.Data(http.StatusOK, "application/json; charset=utf-8", payload)
		return
	}

	st, err := h.repo.GetState(c.Request.Context(), name)
	if err != nil {
		h.logger.Error("failed to get channel state", zap.String("channel", name), zap.Error(err))
		respondMessage(c, http.StatusInternalServerError, "error", "Failed to fetch channel.")
		return
	}

	var payload []byte
	if st == nil {
		payload, err = json.Marshal(gin.H{
			"type":    "error",
			"message": "Channel not found",
			"data":    nil,
		})
	} else {
		payload, err = json.Marshal(gin.H{
			"type": "success",
			"data": st,
		})
	}
	if err != nil {
		h.logger.Error("failed to marshal channel state", zap.String("channel", name), zap.Error(err))
		respondMessage(c, http.StatusInternalServerError, "error", "Failed to fetch channel.")
		return
	}

	h.cache.Set(c.Request.Context(), name, payload)
	c.Data(http.StatusOK, "application/json; charset=utf-8", payload)
}

// List handles GET /api/channels: all channels, newest created first,
// each enriched with its bound media where the pointer resolves.
func (h *ChannelHandler) List(c *gin.Context) {
	states, err := h.repo.ListStates(c.Request.Context())
	if err != nil {
		h.logger.Error("failed to list channels", zap.Error(err))
		respondMessage(c, http.StatusInternalServerError, "error", "Failed to list channels.")
		return
	}

	respondData(c, states)
}
