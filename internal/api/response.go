package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lalith-99/castboard/internal/apperr"
)

// Every endpoint answers with the same envelope:
//
//	reads:   {type: "success"|"error", data: ..., message?, pagination?}
//	actions: {type: "success"|"warning"|"error", message: ...}
//
// "warning" is reserved for partially-applied multi-step actions: the
// primary resource was created but a secondary step failed.

// Pagination is the metadata block on the media library listing.
type Pagination struct {
	Limit  int   `json:"limit"`
	Offset int   `json:"offset"`
	Total  int64 `json:"total"`
}

func respondData(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{
		"type": "success",
		"data": data,
	})
}

func respondMessage(c *gin.Context, status int, typ, message string) {
	c.JSON(status, gin.H{
		"type":    typ,
		"message": message,
	})
}

// userReason is the caller-safe reason string for a failed secondary
// step, appended to warning messages.
func userReason(err error) string {
	return apperr.UserMessage(err)
}

// respondAppError maps the error taxonomy onto HTTP statuses. Anything
// unclassified is an internal failure and exposes no detail.
func respondAppError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	if kind, ok := apperr.KindOf(err); ok {
		switch kind {
		case apperr.KindValidation:
			status = http.StatusBadRequest
		case apperr.KindNotFound:
			status = http.StatusNotFound
		case apperr.KindConflict:
			status = http.StatusConflict
		}
	}
	respondMessage(c, status, "error", apperr.UserMessage(err))
}
